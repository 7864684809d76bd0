package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"docrag/internal/ai"
	"docrag/internal/model"
	"docrag/internal/sse"
)

const (
	roleSystem    = "system"
	roleUser      = "user"
	roleAssistant = "assistant"

	logPublishTimeout = 5 * time.Second
	relayBufferSize   = 4 << 10
)

type ChatGateway interface {
	OpenStream(ctx context.Context, cfg ai.ChatConfig, messages []ai.ChatMessage) (io.ReadCloser, error)
}

// ChatLogPublisher hands a finished chat log entry to the persistence queue.
type ChatLogPublisher interface {
	Publish(ctx context.Context, entry model.ChatLog) error
}

type ContextRetriever interface {
	Retrieve(ctx context.Context, query string, userID uint) ([]model.ScoredChunk, error)
}

type ChatService struct {
	gateway    ChatGateway
	retriever  ContextRetriever
	publisher  ChatLogPublisher
	llm        ai.ChatConfig
	persona    Persona
	maxContext int

	logs sync.WaitGroup
}

// ChatInput is one conversation turn. A nil UserID selects the anonymous,
// ungrounded path.
type ChatInput struct {
	UserID   *uint
	Messages []ai.ChatMessage
}

func NewChatService(
	gateway ChatGateway,
	retriever ContextRetriever,
	publisher ChatLogPublisher,
	llm ai.ChatConfig,
	persona Persona,
	maxContext int,
) *ChatService {
	return &ChatService{
		gateway:    gateway,
		retriever:  retriever,
		publisher:  publisher,
		llm:        llm,
		persona:    persona,
		maxContext: maxContext,
	}
}

// Open prepares the prompt and starts the gateway stream. Gateway failures
// are returned as *ai.GatewayError and already logged.
func (s *ChatService) Open(ctx context.Context, input ChatInput) (*ChatStream, error) {
	history, lastUser, err := s.normalize(input.Messages)
	if err != nil {
		return nil, err
	}
	start := time.Now()

	var chunks []model.ScoredChunk
	if input.UserID != nil && s.retriever != nil {
		chunks, err = s.retriever.Retrieve(ctx, lastUser, *input.UserID)
		if err != nil {
			slog.Warn("retrieval failed, answering without document context", "user_id", *input.UserID, "error", err)
			chunks = nil
		}
	}

	prompt := make([]ai.ChatMessage, 0, len(history)+1)
	prompt = append(prompt, ai.ChatMessage{Role: roleSystem, Content: BuildSystemPrompt(s.persona, chunks)})
	prompt = append(prompt, history...)

	entry := model.ChatLog{
		RequestID: uuid.NewString(),
		UserID:    input.UserID,
		Message:   lastUser,
	}

	body, err := s.gateway.OpenStream(ctx, s.llm, prompt)
	if err != nil {
		entry.Status = model.ChatError
		entry.Response = err.Error()
		entry.ResponseTimeMS = time.Since(start).Milliseconds()
		s.logAsync(ctx, entry)
		return nil, err
	}

	entry.ResponseTimeMS = time.Since(start).Milliseconds()
	return &ChatStream{
		body:          body,
		entry:         entry,
		ContextChunks: len(chunks),
		svc:           s,
		ctx:           ctx,
	}, nil
}

// normalize keeps user and assistant turns and requires the history to end
// with a user message. The whole conversation is forwarded unless maxContext
// is positive, in which case only the most recent maxContext turns are kept.
func (s *ChatService) normalize(messages []ai.ChatMessage) ([]ai.ChatMessage, string, error) {
	out := make([]ai.ChatMessage, 0, len(messages))
	for _, m := range messages {
		role := strings.ToLower(strings.TrimSpace(m.Role))
		if role != roleUser && role != roleAssistant {
			continue
		}
		if strings.TrimSpace(m.Content) == "" {
			continue
		}
		out = append(out, ai.ChatMessage{Role: role, Content: m.Content})
	}
	if len(out) == 0 || out[len(out)-1].Role != roleUser {
		return nil, "", ErrEmptyMessage
	}
	if s.maxContext > 0 && len(out) > s.maxContext {
		out = out[len(out)-s.maxContext:]
	}
	return out, out[len(out)-1].Content, nil
}

// WaitForLogs blocks until every pending chat log publish has finished or
// ctx is done.
func (s *ChatService) WaitForLogs(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		s.logs.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *ChatService) logAsync(ctx context.Context, entry model.ChatLog) {
	if s.publisher == nil {
		return
	}
	entry.CreatedAt = time.Now()
	s.logs.Add(1)
	go func() {
		defer s.logs.Done()
		pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), logPublishTimeout)
		defer cancel()
		if err := s.publisher.Publish(pubCtx, entry); err != nil {
			slog.Warn("publish chat log failed", "request_id", entry.RequestID, "error", err)
		}
	}()
}

// ChatStream is an accepted gateway stream waiting to be relayed.
type ChatStream struct {
	// ContextChunks is the number of document chunks placed in the prompt.
	ContextChunks int

	body  io.ReadCloser
	entry model.ChatLog
	svc   *ChatService
	ctx   context.Context
	once  sync.Once
}

// Relay copies the gateway bytes to w unchanged while decoding them to
// record the final answer. It closes the upstream stream when done, including
// when w fails because the client went away.
func (cs *ChatStream) Relay(w io.Writer) error {
	var (
		acc      sse.Accumulator
		relayErr error
	)
	buf := make([]byte, relayBufferSize)
	for {
		n, err := cs.body.Read(buf)
		if n > 0 {
			acc, _ = sse.Feed(acc, string(buf[:n]))
			if _, werr := w.Write(buf[:n]); werr != nil {
				relayErr = fmt.Errorf("write to client failed: %w", werr)
				break
			}
		}
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			relayErr = err
			break
		}
	}
	acc, _ = sse.Finish(acc)

	cs.entry.Response = acc.Text
	cs.entry.Status = model.ChatSuccess
	if relayErr != nil {
		cs.entry.Status = model.ChatError
	}
	cs.finish()
	return relayErr
}

// Close releases the upstream stream without relaying it. It is safe to call
// after Relay.
func (cs *ChatStream) Close() error {
	cs.entry.Status = model.ChatError
	cs.entry.Response = "stream abandoned"
	cs.finish()
	return nil
}

func (cs *ChatStream) finish() {
	cs.once.Do(func() {
		_ = cs.body.Close()
		cs.svc.logAsync(cs.ctx, cs.entry)
	})
}
