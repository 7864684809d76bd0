package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func withConfigFile(t *testing.T, body string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	t.Setenv("CONFIG_FILE", path)
}

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("CONFIG_FILE", filepath.Join(t.TempDir(), "missing.toml"))

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "0.0.0.0:8080", cfg.HTTPAddr())
	assert.Equal(t, 1000, cfg.Ingest.ChunkSize)
	assert.Equal(t, 200, cfg.Ingest.ChunkOverlap)
	assert.Equal(t, int64(10<<20), cfg.MaxUploadBytes())
	assert.Equal(t, 60*time.Second, cfg.LLMIdleTimeout())
	assert.Equal(t, "document.ingest", cfg.RabbitMQ.IngestQueue)
	assert.Equal(t, "chat.log.persist", cfg.RabbitMQ.ChatLogQueue)
	assert.InDelta(t, 0.01, cfg.Retrieval.MinSimilarity, 1e-9)
	assert.Empty(t, cfg.LLM.APIKey)
}

func TestLoad_FileThenEnv(t *testing.T) {
	withConfigFile(t, `
[app]
port = 9090

[retrieval]
top_k = 8

[assistant]
institution = "Test Institute"
areas = ["Admissions", "Scholarships"]
`)
	t.Setenv("RETRIEVAL_TOP_K", "3")
	t.Setenv("RETRIEVAL_MIN_SIMILARITY", "0.2")
	t.Setenv("LLM_API_KEY", "sk-test")
	t.Setenv("MYSQL_PORT", "not-a-number")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 9090, cfg.App.Port)
	assert.Equal(t, 3, cfg.Retrieval.TopK)
	assert.InDelta(t, 0.2, cfg.Retrieval.MinSimilarity, 1e-9)
	assert.Equal(t, "sk-test", cfg.LLM.APIKey)
	assert.Equal(t, 3306, cfg.MySQL.Port, "unparsable values keep the previous setting")
	assert.Equal(t, "Test Institute", cfg.Assistant.Institution)
	assert.Equal(t, []string{"Admissions", "Scholarships"}, cfg.Assistant.Areas)
}

func TestLoad_RejectsInvalidChunking(t *testing.T) {
	withConfigFile(t, "[ingest]\nchunk_size = 100\nchunk_overlap = 100\n")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "chunk_overlap")
}

func TestLoad_MalformedFile(t *testing.T) {
	withConfigFile(t, "[app\nport = ")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decode config file failed")
}

func TestMySQLDSN(t *testing.T) {
	cfg := defaultConfig()
	cfg.MySQL.Password = "secret"
	assert.Equal(t, "root:secret@tcp(127.0.0.1:3306)/docrag?parseTime=true&loc=Local&charset=utf8mb4", cfg.MySQLDSN())
}
