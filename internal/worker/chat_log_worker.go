package worker

import (
	"context"
	"encoding/json"
	"log/slog"

	amqp "github.com/rabbitmq/amqp091-go"

	"docrag/internal/model"
)

type ChatLogStore interface {
	Create(ctx context.Context, entry *model.ChatLog) error
}

// ChatLogWorker persists chat log entries published by the chat service.
type ChatLogWorker struct {
	store    ChatLogStore
	consumer consumer
}

func NewChatLogWorker(conn *amqp.Connection, store ChatLogStore, queueName string) *ChatLogWorker {
	w := &ChatLogWorker{store: store}
	w.consumer = consumer{
		conn:      conn,
		queueName: queueName,
		workers:   1,
		handle:    w.handle,
	}
	return w
}

func (w *ChatLogWorker) Start(ctx context.Context) error {
	return w.consumer.start(ctx)
}

func (w *ChatLogWorker) Close() {
	w.consumer.close()
}

func (w *ChatLogWorker) handle(ctx context.Context, body []byte) action {
	var entry model.ChatLog
	if err := json.Unmarshal(body, &entry); err != nil {
		slog.Warn("worker decode chat log failed", "error", err)
		return actionDrop
	}

	if err := w.store.Create(ctx, &entry); err != nil {
		slog.Warn("worker persist chat log failed", "request_id", entry.RequestID, "error", err)
		return actionDrop
	}
	return actionAck
}
