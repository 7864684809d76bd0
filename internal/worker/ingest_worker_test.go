package worker

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"docrag/internal/app"
	"docrag/internal/model"
)

type fakeProcessor struct {
	err   error
	calls []uint
}

func (p *fakeProcessor) Process(_ context.Context, documentID uint) (*app.IngestResult, error) {
	p.calls = append(p.calls, documentID)
	if p.err != nil {
		return nil, p.err
	}
	return &app.IngestResult{DocumentID: documentID, Status: model.DocumentProcessed, ChunksCreated: 2}, nil
}

func TestIngestWorker_Handle(t *testing.T) {
	cancelled, cancel := context.WithCancel(context.Background())
	cancel()

	tests := []struct {
		name string
		ctx  context.Context
		body string
		err  error
		want action
	}{
		{name: "processed", body: `{"document_id":4}`, want: actionAck},
		{name: "busy", body: `{"document_id":4}`, err: app.ErrIngestionInProgress, want: actionRequeue},
		{name: "failed", body: `{"document_id":4}`, err: fmt.Errorf("%w: no extractable text", app.ErrIngestionFailed), want: actionAck},
		{name: "missing", body: `{"document_id":4}`, err: app.ErrDocumentNotFound, want: actionAck},
		{name: "shutdown", ctx: cancelled, body: `{"document_id":4}`, err: fmt.Errorf("%w: %w", app.ErrIngestionFailed, context.Canceled), want: actionRequeue},
		{name: "transient", body: `{"document_id":4}`, err: errors.New("mysql gone away"), want: actionAck},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := tt.ctx
			if ctx == nil {
				ctx = context.Background()
			}
			proc := &fakeProcessor{err: tt.err}
			w := NewIngestWorker(nil, proc, "document.ingest", 2, 0)

			assert.Equal(t, tt.want, w.handle(ctx, []byte(tt.body)))
			assert.Equal(t, []uint{4}, proc.calls)
		})
	}
}

func TestIngestWorker_DropsUndecodableJobs(t *testing.T) {
	for _, body := range []string{`not json`, `{}`, `{"document_id":0}`} {
		proc := &fakeProcessor{}
		w := NewIngestWorker(nil, proc, "document.ingest", 1, 0)

		assert.Equal(t, actionDrop, w.handle(context.Background(), []byte(body)), body)
		assert.Empty(t, proc.calls)
	}
}

func TestIngestWorker_DefaultsRequeueDelay(t *testing.T) {
	w := NewIngestWorker(nil, &fakeProcessor{}, "q", 0, 0)
	assert.Equal(t, defaultRequeueDelay, w.consumer.requeueDelay)
}
