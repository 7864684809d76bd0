// Package chatclient is the caller side of the chat endpoints: it picks the
// grounded or anonymous route, decodes the relayed stream incrementally and
// keeps the conversation history.
package chatclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"docrag/internal/sse"
)

const (
	groundedPath  = "/api/v1/chat/rag"
	anonymousPath = "/api/v1/chat"

	readBufferSize = 4 << 10
	maxErrorBody   = 4 << 10
)

var (
	// ErrRateLimited is not fatal: the turn is dropped and no fallback
	// message is added.
	ErrRateLimited        = errors.New("rate limited, retry later")
	ErrServiceUnavailable = errors.New("service unavailable, contact operator")
	ErrNoBody             = errors.New("no response received from the server")
	ErrEmptyAnswer        = errors.New("the assistant returned an empty answer")
)

// StatusError is an unexpected non-success response.
type StatusError struct {
	Status int
	Body   string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("chat request failed with HTTP %d", e.Status)
	}
	return fmt.Sprintf("chat request failed with HTTP %d: %s", e.Status, e.Body)
}

type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Messages []Message `json:"messages"`
}

type Client struct {
	baseURL    string
	httpClient *http.Client
	contact    string
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithContact sets the human contact channel named in fallback messages.
func WithContact(contact string) Option {
	return func(c *Client) { c.contact = contact }
}

func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: http.DefaultClient,
		contact:    "the school services office",
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// FallbackMessage is the assistant text shown when a turn fails.
func (c *Client) FallbackMessage() string {
	return "Sorry, I had a problem processing your message. Please try again or contact " + c.contact + "."
}

// Reply describes one completed turn.
type Reply struct {
	Text string
	// Grounded is set when the answer came from the document-grounded route.
	Grounded bool
	// Fallback is set when Text is the local fallback message.
	Fallback bool
}

// Session is one conversation. It is not safe for concurrent use.
type Session struct {
	client  *Client
	token   string
	history []Message
}

// NewSession starts a conversation. An empty token selects the anonymous
// route for every turn.
func (c *Client) NewSession(token string) *Session {
	return &Session{client: c, token: token}
}

func (s *Session) History() []Message {
	return append([]Message(nil), s.history...)
}

// Send appends text as a user turn and streams the answer, calling onDelta
// with the full answer accumulated so far after every delta.
//
// On a fatal failure the fallback message is appended to the history and
// returned in Reply along with the cause. A rate-limited turn returns
// ErrRateLimited and adds nothing after the user message.
func (s *Session) Send(ctx context.Context, text string, onDelta func(full string)) (*Reply, error) {
	if strings.TrimSpace(text) == "" {
		return nil, errors.New("message is empty")
	}
	s.history = append(s.history, Message{Role: "user", Content: text})

	answer, grounded, err := s.client.stream(ctx, s.token, s.history, onDelta)
	if err == nil && strings.TrimSpace(answer) == "" {
		err = ErrEmptyAnswer
	}
	switch {
	case err == nil:
		s.history = append(s.history, Message{Role: "assistant", Content: answer})
		return &Reply{Text: answer, Grounded: grounded}, nil
	case errors.Is(err, ErrRateLimited):
		return nil, err
	default:
		fallback := s.client.FallbackMessage()
		s.history = append(s.history, Message{Role: "assistant", Content: fallback})
		return &Reply{Text: fallback, Fallback: true}, err
	}
}

// stream tries the grounded route when a token is present and falls back to
// the anonymous one when the token is refused.
func (c *Client) stream(ctx context.Context, token string, history []Message, onDelta func(string)) (string, bool, error) {
	var (
		resp     *http.Response
		err      error
		grounded bool
	)
	if token != "" {
		resp, err = c.post(ctx, groundedPath, token, history)
		if err != nil {
			return "", false, err
		}
		if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
			drain(resp)
			resp = nil
		} else {
			grounded = true
		}
	}
	if resp == nil {
		resp, err = c.post(ctx, anonymousPath, "", history)
		if err != nil {
			return "", false, err
		}
	}
	defer resp.Body.Close()

	if err := statusError(resp); err != nil {
		return "", false, err
	}
	if resp.Body == http.NoBody {
		return "", false, ErrNoBody
	}

	answer, err := decode(resp.Body, onDelta)
	return answer, grounded, err
}

func (c *Client) post(ctx context.Context, path, token string, history []Message) (*http.Response, error) {
	payload, err := json.Marshal(chatRequest{Messages: history})
	if err != nil {
		return nil, fmt.Errorf("marshal chat request failed: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("build chat request failed: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/event-stream")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, fmt.Errorf("%w: %v", ErrNoBody, err)
	}
	return resp, nil
}

func statusError(resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	switch resp.StatusCode {
	case http.StatusTooManyRequests:
		return ErrRateLimited
	case http.StatusPaymentRequired:
		return ErrServiceUnavailable
	}
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	return &StatusError{Status: resp.StatusCode, Body: strings.TrimSpace(string(raw))}
}

// decode reads the event stream until the end marker. A stream that ends
// without the marker was cut short upstream and counts as no response.
func decode(body io.Reader, onDelta func(string)) (string, error) {
	var acc sse.Accumulator
	buf := make([]byte, readBufferSize)
	for !acc.Done {
		n, err := body.Read(buf)
		if n > 0 {
			var snapshots []string
			acc, snapshots = sse.Feed(acc, string(buf[:n]))
			emit(onDelta, snapshots)
		}
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return acc.Text, fmt.Errorf("%w: %v", ErrNoBody, err)
		}
	}
	acc, snapshots := sse.Finish(acc)
	emit(onDelta, snapshots)
	if !acc.Done {
		return acc.Text, fmt.Errorf("%w: stream ended before completion", ErrNoBody)
	}
	return acc.Text, nil
}

func emit(onDelta func(string), snapshots []string) {
	if onDelta == nil {
		return
	}
	for _, s := range snapshots {
		onDelta(s)
	}
}

func drain(resp *http.Response) {
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxErrorBody))
	_ = resp.Body.Close()
}
