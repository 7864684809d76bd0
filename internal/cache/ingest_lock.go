package cache

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	redisv9 "github.com/redis/go-redis/v9"
)

const releaseTimeout = 3 * time.Second

// releaseScript deletes the key only while it still holds our token, so an
// expired lock that was taken over by another worker is left alone.
var releaseScript = redisv9.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// IngestLock serializes ingestion runs of the same document across workers.
type IngestLock struct {
	client *redisv9.Client
	ttl    time.Duration
}

func NewIngestLock(client *redisv9.Client, ttl time.Duration) *IngestLock {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &IngestLock{client: client, ttl: ttl}
}

// Acquire tries to take the lock for documentID without waiting. When ok is
// true the caller must call release once done.
func (l *IngestLock) Acquire(ctx context.Context, documentID uint) (release func(), ok bool, err error) {
	key := l.key(documentID)
	token := uuid.NewString()
	ok, err = l.client.SetNX(ctx, key, token, l.ttl).Result()
	if err != nil {
		return nil, false, fmt.Errorf("redis acquire ingest lock failed: %w", err)
	}
	if !ok {
		return nil, false, nil
	}
	release = func() {
		releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), releaseTimeout)
		defer cancel()
		if err := releaseScript.Run(releaseCtx, l.client, []string{key}, token).Err(); err != nil {
			slog.Warn("release ingest lock failed", "document_id", documentID, "error", err)
		}
	}
	return release, true, nil
}

func (l *IngestLock) key(documentID uint) string {
	return fmt.Sprintf("ingest:lock:%d", documentID)
}

// LocalLock is the single-process variant used when no Redis is configured.
type LocalLock struct {
	mu   sync.Mutex
	held map[uint]struct{}
}

func NewLocalLock() *LocalLock {
	return &LocalLock{held: make(map[uint]struct{})}
}

func (l *LocalLock) Acquire(_ context.Context, documentID uint) (func(), bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, busy := l.held[documentID]; busy {
		return nil, false, nil
	}
	l.held[documentID] = struct{}{}
	var once sync.Once
	return func() {
		once.Do(func() {
			l.mu.Lock()
			delete(l.held, documentID)
			l.mu.Unlock()
		})
	}, true, nil
}
