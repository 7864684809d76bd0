package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync/atomic"
	"time"
)

const maxErrorBody = 4 << 10

type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type ChatConfig struct {
	BaseURL string
	APIKey  string
	Model   string
	// IdleTimeout bounds the gap between two reads of the stream body.
	// Zero disables it.
	IdleTimeout time.Duration
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []ChatMessage `json:"messages"`
	Stream   bool          `json:"stream"`
}

type OpenAICompatibleClient struct {
	httpClient *http.Client
}

// NewOpenAICompatibleClient returns a client without an overall request
// timeout; streaming bodies are bounded by ChatConfig.IdleTimeout instead.
func NewOpenAICompatibleClient() *OpenAICompatibleClient {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.ResponseHeaderTimeout = 90 * time.Second
	return &OpenAICompatibleClient{
		httpClient: &http.Client{Transport: transport},
	}
}

// OpenStream starts a streaming chat completion and returns the raw event
// stream body. The caller must close it; closing also aborts the upstream
// request. Every failure is a *GatewayError.
func (c *OpenAICompatibleClient) OpenStream(ctx context.Context, cfg ChatConfig, messages []ChatMessage) (io.ReadCloser, error) {
	bodyBytes, err := json.Marshal(chatRequest{Model: cfg.Model, Messages: messages, Stream: true})
	if err != nil {
		return nil, fmt.Errorf("marshal llm stream request failed: %w", err)
	}

	reqCtx, cancel := context.WithCancel(ctx)
	url := strings.TrimRight(cfg.BaseURL, "/") + "/chat/completions"
	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, url, bytes.NewReader(bodyBytes))
	if err != nil {
		cancel()
		return nil, fmt.Errorf("build llm stream request failed: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/event-stream")
	if cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+cfg.APIKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		cancel()
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, &GatewayError{Kind: KindNoBody, Detail: "llm stream request failed", Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		resp.Body.Close()
		cancel()
		return nil, ClassifyStatus(resp.StatusCode, strings.TrimSpace(string(raw)))
	}
	if resp.Body == nil || resp.Body == http.NoBody {
		cancel()
		return nil, &GatewayError{Kind: KindNoBody, Status: resp.StatusCode, Detail: "empty response body"}
	}

	return newIdleTimeoutBody(resp.Body, cancel, cfg.IdleTimeout), nil
}

// idleTimeoutBody cancels the request when no bytes arrive within idle and
// cancels it unconditionally on Close.
type idleTimeoutBody struct {
	io.ReadCloser
	cancel  context.CancelFunc
	idle    time.Duration
	timer   *time.Timer
	expired atomic.Bool
}

func newIdleTimeoutBody(body io.ReadCloser, cancel context.CancelFunc, idle time.Duration) *idleTimeoutBody {
	b := &idleTimeoutBody{ReadCloser: body, cancel: cancel, idle: idle}
	if idle > 0 {
		b.timer = time.AfterFunc(idle, func() {
			b.expired.Store(true)
			cancel()
		})
	}
	return b
}

func (b *idleTimeoutBody) Read(p []byte) (int, error) {
	n, err := b.ReadCloser.Read(p)
	if b.expired.Load() {
		return n, &GatewayError{Kind: KindNoBody, Detail: "no data received", Err: ErrStreamIdle}
	}
	if n > 0 && b.timer != nil {
		b.timer.Reset(b.idle)
	}
	return n, err
}

func (b *idleTimeoutBody) Close() error {
	if b.timer != nil {
		b.timer.Stop()
	}
	err := b.ReadCloser.Close()
	b.cancel()
	return err
}
