package worker

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"docrag/internal/app"
	"docrag/internal/platform/rabbitmq"
)

const defaultRequeueDelay = 5 * time.Second

// DocumentProcessor runs one ingestion. It is satisfied by *app.IngestService.
type DocumentProcessor interface {
	Process(ctx context.Context, documentID uint) (*app.IngestResult, error)
}

// IngestWorker consumes ingestion jobs. A document that is already being
// ingested elsewhere is requeued; every other outcome is final because the
// failure is recorded on the document itself.
type IngestWorker struct {
	processor DocumentProcessor
	consumer  consumer
}

func NewIngestWorker(conn *amqp.Connection, processor DocumentProcessor, queueName string, workers int, requeueDelay time.Duration) *IngestWorker {
	if requeueDelay <= 0 {
		requeueDelay = defaultRequeueDelay
	}
	w := &IngestWorker{processor: processor}
	w.consumer = consumer{
		conn:         conn,
		queueName:    queueName,
		workers:      workers,
		requeueDelay: requeueDelay,
		handle:       w.handle,
	}
	return w
}

func (w *IngestWorker) Start(ctx context.Context) error {
	return w.consumer.start(ctx)
}

func (w *IngestWorker) Close() {
	w.consumer.close()
}

func (w *IngestWorker) handle(ctx context.Context, body []byte) action {
	var job rabbitmq.IngestJob
	if err := json.Unmarshal(body, &job); err != nil || job.DocumentID == 0 {
		slog.Warn("worker decode ingest job failed", "body", string(body), "error", err)
		return actionDrop
	}

	logger := slog.With("document_id", job.DocumentID)
	result, err := w.processor.Process(ctx, job.DocumentID)
	switch {
	case err == nil:
		logger.Info("ingest job done", "status", result.Status, "chunks_created", result.ChunksCreated)
		return actionAck
	case errors.Is(err, app.ErrIngestionInProgress):
		logger.Info("document busy, requeueing ingest job")
		return actionRequeue
	case errors.Is(err, context.Canceled) && ctx.Err() != nil:
		logger.Info("worker stopping, requeueing ingest job")
		return actionRequeue
	case errors.Is(err, app.ErrDocumentNotFound):
		logger.Warn("ingest job for missing document discarded")
		return actionAck
	default:
		logger.Warn("ingest job failed", "error", err)
		return actionAck
	}
}
