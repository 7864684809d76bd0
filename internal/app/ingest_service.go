package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"golang.org/x/sync/errgroup"

	"docrag/internal/chunker"
	"docrag/internal/embedding"
	"docrag/internal/extract"
	"docrag/internal/model"
)

const (
	msgEmptyText = "no text could be extracted from the document"
	msgNoChunks  = "no text chunks were generated; the document may be empty or contain only invalid characters"
)

// DocumentStore is the document persistence used by ingestion and the
// document service.
type DocumentStore interface {
	Create(ctx context.Context, doc *model.Document) error
	GetByID(ctx context.Context, id uint) (*model.Document, error)
	GetByIDAndUserID(ctx context.Context, id, userID uint) (*model.Document, error)
	ListByUserID(ctx context.Context, userID uint) ([]model.Document, error)
	UpdateStatus(ctx context.Context, id uint, status model.DocumentStatus) error
	Finish(ctx context.Context, id uint, status model.DocumentStatus, meta model.DocumentMetadata, processedAt *time.Time) error
	DeleteWithChunks(ctx context.Context, id uint) error
}

type ChunkStore interface {
	Create(ctx context.Context, chunk *model.DocumentChunk) error
	DeleteByDocumentID(ctx context.Context, documentID uint) error
}

type BlobStore interface {
	Upload(ctx context.Context, locator string, data []byte, contentType string) error
	Download(ctx context.Context, locator string) ([]byte, error)
	Delete(ctx context.Context, locator string) error
}

// Locker grants exclusive ingestion of one document. Acquire does not wait.
type Locker interface {
	Acquire(ctx context.Context, documentID uint) (release func(), ok bool, err error)
}

type IngestOptions struct {
	ChunkSize    int
	ChunkOverlap int
	// EmbedWorkers bounds how many chunks are embedded concurrently.
	EmbedWorkers int
}

type IngestResult struct {
	DocumentID    uint
	Status        model.DocumentStatus
	ChunksCreated int
	ChunksFailed  int
	TextLength    int
}

type IngestService struct {
	docs   DocumentStore
	chunks ChunkStore
	blobs  BlobStore
	lock   Locker
	opts   IngestOptions
	now    func() time.Time
}

func NewIngestService(docs DocumentStore, chunks ChunkStore, blobs BlobStore, lock Locker, opts IngestOptions) *IngestService {
	if opts.ChunkSize <= 0 {
		opts.ChunkSize = chunker.DefaultSize
	}
	if opts.ChunkOverlap < 0 || opts.ChunkOverlap >= opts.ChunkSize {
		opts.ChunkOverlap = chunker.DefaultOverlap
	}
	if opts.EmbedWorkers <= 0 {
		opts.EmbedWorkers = 4
	}
	return &IngestService{
		docs:   docs,
		chunks: chunks,
		blobs:  blobs,
		lock:   lock,
		opts:   opts,
		now:    time.Now,
	}
}

// Process runs the full ingestion of one document: download, extract, split,
// embed and persist. Prior chunks are replaced, so calling it again for the
// same document is safe.
//
// Every failure after the document is found leaves it in the error state with
// the cause recorded, and the returned error wraps ErrIngestionFailed. A
// partial result is not an error.
func (s *IngestService) Process(ctx context.Context, documentID uint) (result *IngestResult, err error) {
	logger := slog.With("document_id", documentID)

	release, ok, err := s.lock.Acquire(ctx, documentID)
	if err != nil {
		return nil, s.fail(ctx, documentID, fmt.Errorf("acquire ingest lock failed: %w", err))
	}
	if !ok {
		return nil, ErrIngestionInProgress
	}
	defer release()

	defer func() {
		if r := recover(); r != nil {
			logger.Error("ingestion panicked", "panic", r)
			result, err = nil, s.fail(ctx, documentID, fmt.Errorf("unexpected failure: %v", r))
		}
	}()

	doc, err := s.docs.GetByID(ctx, documentID)
	if err != nil {
		return nil, s.fail(ctx, documentID, err)
	}
	if doc == nil {
		return nil, ErrDocumentNotFound
	}
	if err := s.docs.UpdateStatus(ctx, doc.ID, model.DocumentProcessing); err != nil {
		return nil, s.fail(ctx, doc.ID, err)
	}
	logger.Info("ingestion started", "file_name", doc.FileName, "file_type", doc.FileType)

	data, err := s.blobs.Download(ctx, doc.StoragePath)
	if err != nil {
		return nil, s.fail(ctx, doc.ID, fmt.Errorf("download document failed: %w", err))
	}

	text, err := extract.Extract(data, doc.FileType, doc.FileName)
	if err != nil {
		return nil, s.fail(ctx, doc.ID, err)
	}
	if strings.TrimSpace(text) == "" {
		return nil, s.fail(ctx, doc.ID, errors.New(msgEmptyText))
	}

	pieces, err := chunker.Split(text, s.opts.ChunkSize, s.opts.ChunkOverlap)
	if err != nil || len(pieces) == 0 {
		return nil, s.fail(ctx, doc.ID, errors.New(msgNoChunks))
	}
	logger.Info("document split", "text_length", utf8.RuneCountInString(text), "chunks", len(pieces))

	if err := s.chunks.DeleteByDocumentID(ctx, doc.ID); err != nil {
		return nil, s.fail(ctx, doc.ID, fmt.Errorf("clear previous chunks failed: %w", err))
	}

	vectors, err := s.embedAll(ctx, pieces)
	if err != nil {
		return nil, s.fail(ctx, doc.ID, err)
	}

	result = &IngestResult{DocumentID: doc.ID, TextLength: utf8.RuneCountInString(text)}
	for i, piece := range pieces {
		chunk := &model.DocumentChunk{
			DocumentID: doc.ID,
			ChunkIndex: piece.Index,
			Content:    piece.Text,
			StartChar:  piece.Start,
			EndChar:    piece.End,
			Embedding:  vectors[i],
		}
		if err := s.chunks.Create(ctx, chunk); err != nil {
			logger.Warn("persist chunk failed", "chunk_index", piece.Index, "error", err)
			result.ChunksFailed++
			continue
		}
		result.ChunksCreated++
	}
	if err := ctx.Err(); err != nil {
		return nil, s.fail(ctx, doc.ID, err)
	}

	meta := model.DocumentMetadata{
		ChunksCreated: result.ChunksCreated,
		ChunksFailed:  result.ChunksFailed,
		TextLength:    result.TextLength,
	}
	processedAt := s.now()
	switch {
	case result.ChunksFailed == 0:
		result.Status = model.DocumentProcessed
	case result.ChunksCreated > 0:
		result.Status = model.DocumentPartial
	default:
		result.Status = model.DocumentError
		meta.ErrorMessage = fmt.Sprintf("all %d chunks failed to persist", result.ChunksFailed)
		meta.ErrorAt = &processedAt
	}

	if err := s.docs.Finish(context.WithoutCancel(ctx), doc.ID, result.Status, meta, &processedAt); err != nil {
		if errors.Is(err, ErrDocumentNotFound) {
			logger.Warn("document deleted during ingestion", "chunks_failed", result.ChunksFailed)
			return nil, err
		}
		return result, fmt.Errorf("record ingestion result failed: %w", err)
	}
	logger.Info("ingestion finished",
		"status", result.Status,
		"chunks_created", result.ChunksCreated,
		"chunks_failed", result.ChunksFailed,
	)
	if result.Status == model.DocumentError {
		return result, fmt.Errorf("%w: %s", ErrIngestionFailed, meta.ErrorMessage)
	}
	return result, nil
}

// embedAll embeds every chunk concurrently. The embedder is pure, so only
// cancellation can fail it.
func (s *IngestService) embedAll(ctx context.Context, pieces []chunker.Chunk) ([]model.Vector, error) {
	vectors := make([]model.Vector, len(pieces))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.opts.EmbedWorkers)
	for i := range pieces {
		i := i
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			vectors[i] = embedding.Embed(pieces[i].Text)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("embed chunks failed: %w", err)
	}
	return vectors, nil
}

// fail marks the document as errored with cause and returns the error to
// report. The status write survives cancellation of ctx.
func (s *IngestService) fail(ctx context.Context, documentID uint, cause error) error {
	at := s.now()
	meta := model.DocumentMetadata{ErrorMessage: cause.Error(), ErrorAt: &at}
	if err := s.docs.Finish(context.WithoutCancel(ctx), documentID, model.DocumentError, meta, nil); err != nil {
		slog.Error("mark document error failed", "document_id", documentID, "cause", cause, "error", err)
	}
	slog.Warn("ingestion failed", "document_id", documentID, "error", cause)
	return fmt.Errorf("%w: %w", ErrIngestionFailed, cause)
}
