package rabbitmq

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"docrag/internal/model"
)

// IngestJob asks a worker to (re)process one document.
type IngestJob struct {
	DocumentID uint `json:"document_id"`
}

type publisher struct {
	conn      *amqp.Connection
	queueName string
}

func (p *publisher) publishJSON(ctx context.Context, v any, messageID string) error {
	ch, err := p.conn.Channel()
	if err != nil {
		return fmt.Errorf("open rabbitmq channel failed: %w", err)
	}
	defer ch.Close()

	if err := declareQueue(ch, p.queueName); err != nil {
		return err
	}

	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal %s payload failed: %w", p.queueName, err)
	}

	if err := ch.PublishWithContext(
		ctx,
		"",
		p.queueName,
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			Body:         payload,
			DeliveryMode: amqp.Persistent,
			MessageId:    messageID,
			Timestamp:    time.Now(),
		},
	); err != nil {
		return fmt.Errorf("publish to %s failed: %w", p.queueName, err)
	}
	return nil
}

type IngestPublisher struct {
	publisher
}

func NewIngestPublisher(conn *amqp.Connection, queueName string) *IngestPublisher {
	return &IngestPublisher{publisher{conn: conn, queueName: queueName}}
}

func (p *IngestPublisher) Enqueue(ctx context.Context, documentID uint) error {
	return p.publishJSON(ctx, IngestJob{DocumentID: documentID}, fmt.Sprintf("document-%d", documentID))
}

type ChatLogPublisher struct {
	publisher
}

func NewChatLogPublisher(conn *amqp.Connection, queueName string) *ChatLogPublisher {
	return &ChatLogPublisher{publisher{conn: conn, queueName: queueName}}
}

func (p *ChatLogPublisher) Publish(ctx context.Context, entry model.ChatLog) error {
	return p.publishJSON(ctx, entry, entry.RequestID)
}
