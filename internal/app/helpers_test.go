package app

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"docrag/internal/cache"
	"docrag/internal/model"
	"docrag/internal/repository"
	"docrag/internal/storage"
)

type fixture struct {
	db     *gorm.DB
	docs   *repository.DocumentRepository
	chunks *repository.ChunkRepository
	blobs  *storage.LocalStore
	lock   *cache.LocalLock
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_pragma=foreign_keys(1)", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&model.User{}, &model.Document{}, &model.DocumentChunk{}, &model.ChatLog{}))
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})

	blobs, err := storage.NewLocalStore(t.TempDir())
	require.NoError(t, err)
	return &fixture{
		db:     db,
		docs:   repository.NewDocumentRepository(db),
		chunks: repository.NewChunkRepository(db),
		blobs:  blobs,
		lock:   cache.NewLocalLock(),
	}
}

// addDocument stores content and records a pending document for it.
func (f *fixture) addDocument(t *testing.T, userID uint, name, mimeType string, content []byte) *model.Document {
	t.Helper()
	ctx := context.Background()
	locator := fmt.Sprintf("%d/%s", userID, name)
	require.NoError(t, f.blobs.Upload(ctx, locator, content, mimeType))
	doc := &model.Document{
		UserID:      userID,
		Title:       model.TitleFromFileName(name),
		FileName:    name,
		FileType:    mimeType,
		FileSize:    int64(len(content)),
		StoragePath: locator,
		Status:      model.DocumentPending,
	}
	require.NoError(t, f.docs.Create(ctx, doc))
	return doc
}

func (f *fixture) reload(t *testing.T, id uint) *model.Document {
	t.Helper()
	doc, err := f.docs.GetByID(context.Background(), id)
	require.NoError(t, err)
	require.NotNil(t, doc)
	return doc
}

func (f *fixture) chunkList(t *testing.T, id uint) []model.DocumentChunk {
	t.Helper()
	var list []model.DocumentChunk
	require.NoError(t, f.db.Where("document_id = ?", id).Order("chunk_index").Find(&list).Error)
	return list
}

// failingChunks fails persistence for the listed chunk indices.
type failingChunks struct {
	ChunkStore
	failIndex map[int]bool
	failAll   bool
}

func (f *failingChunks) Create(ctx context.Context, chunk *model.DocumentChunk) error {
	if f.failAll || f.failIndex[chunk.ChunkIndex] {
		return fmt.Errorf("insert chunk %d: constraint violation", chunk.ChunkIndex)
	}
	return f.ChunkStore.Create(ctx, chunk)
}

// gatedChunks holds the first Create until open is closed.
type gatedChunks struct {
	ChunkStore
	entered chan struct{}
	open    chan struct{}
	once    sync.Once
}

func newGatedChunks(inner ChunkStore) *gatedChunks {
	return &gatedChunks{ChunkStore: inner, entered: make(chan struct{}), open: make(chan struct{})}
}

func (g *gatedChunks) Create(ctx context.Context, chunk *model.DocumentChunk) error {
	g.once.Do(func() {
		close(g.entered)
		<-g.open
	})
	return g.ChunkStore.Create(ctx, chunk)
}

type panickingBlobs struct {
	BlobStore
}

func (panickingBlobs) Download(context.Context, string) ([]byte, error) {
	panic("storage driver exploded")
}

type recordingQueue struct {
	mu  sync.Mutex
	ids []uint
	err error
}

func (q *recordingQueue) Enqueue(_ context.Context, documentID uint) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.err != nil {
		return q.err
	}
	q.ids = append(q.ids, documentID)
	return nil
}

type recordingPublisher struct {
	mu      sync.Mutex
	entries []model.ChatLog
	err     error
}

func (p *recordingPublisher) Publish(_ context.Context, entry model.ChatLog) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.entries = append(p.entries, entry)
	return p.err
}

func (p *recordingPublisher) all() []model.ChatLog {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]model.ChatLog(nil), p.entries...)
}
