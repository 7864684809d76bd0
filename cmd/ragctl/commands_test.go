package main

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docrag/internal/sse/ssetest"
)

func runCLI(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetIn(strings.NewReader(stdin))
	rootCmd.SetArgs(args)
	defer rootCmd.SetArgs(nil)

	err := rootCmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestExtractCommand_Summary(t *testing.T) {
	path := filepath.Join(t.TempDir(), "calendar.md")
	body := strings.Repeat("Enrollment opens in August for every program. ", 40)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))

	out, err := runCLI(t, "", "extract", path, "--chunk-size", "500", "--overlap", "100", "--query", "")
	require.NoError(t, err)
	assert.Contains(t, out, "file:   calendar.md (1.8 kB)")
	assert.Contains(t, out, "kind:   text")
	assert.Contains(t, out, "text:   1,840 characters")
	assert.Contains(t, out, "chunks: 5")
}

func TestExtractCommand_RanksAgainstQuery(t *testing.T) {
	path := filepath.Join(t.TempDir(), "notes.txt")
	require.NoError(t, os.WriteFile(path, []byte("Scholarship deadline is in May."), 0o600))

	out, err := runCLI(t, "", "extract", path, "--chunk-size", "1000", "--overlap", "200", "--query", "Scholarship deadline is in May.", "--top", "1")
	require.NoError(t, err)
	assert.Contains(t, out, "#0  1.0000  Scholarship deadline is in May.")
}

func TestExtractCommand_Failures(t *testing.T) {
	_, err := runCLI(t, "", "extract", filepath.Join(t.TempDir(), "missing.txt"))
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "blob.bin")
	require.NoError(t, os.WriteFile(path, []byte{0x00, 0x01, 0x02, 'a'}, 0o600))
	_, err = runCLI(t, "", "extract", path, "--type", "application/octet-stream")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported file type")
}

func TestChatCommand_StreamsAnswers(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/chat", r.URL.Path)
		w.Header().Set("Content-Type", "text/event-stream")
		_, _ = w.Write([]byte(ssetest.Event("Hello") + ssetest.Event(", student") + ssetest.Done))
	}))
	defer srv.Close()

	out, err := runCLI(t, "hi\n\n/quit\n", "chat", "--server", srv.URL, "--token", "")
	require.NoError(t, err)
	assert.Contains(t, out, "> Hello, student\n> ")
}

func TestChatCommand_ShowsFallbackAndRateLimit(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.WriteHeader(http.StatusPaymentRequired)
	}))
	defer srv.Close()

	out, err := runCLI(t, "one\ntwo\n", "chat", "--server", srv.URL, "--token", "", "--contact", "info@example.edu")
	require.NoError(t, err)
	assert.Contains(t, out, "[rate limited, wait a moment and try again]")
	assert.Contains(t, out, "service unavailable, contact operator")
	assert.Contains(t, out, "info@example.edu")
}
