package app

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"docrag/internal/model"
)

func TestBuildSystemPrompt_WithoutContext(t *testing.T) {
	prompt := BuildSystemPrompt(testPersona, nil)

	assert.True(t, strings.HasPrefix(prompt, "You are the virtual assistant of Instituto Tecnológico de Ejemplo."))
	assert.Contains(t, prompt, "RESPONSE RULES:")
	assert.Contains(t, prompt, "- General contact: info@example.edu")
	assert.Contains(t, prompt, "AREAS YOU KNOW:\n- Admissions\n- Scholarships\n")
	assert.NotContains(t, prompt, "DOCUMENT CONTEXT")
	assert.NotContains(t, prompt, "RAG INSTRUCTIONS")
	assert.NotContains(t, prompt, "Mascot")
}

func TestBuildSystemPrompt_ContextKeepsRankOrder(t *testing.T) {
	chunks := []model.ScoredChunk{
		{DocumentChunk: model.DocumentChunk{Content: "first passage"}, Similarity: 0.9},
		{DocumentChunk: model.DocumentChunk{Content: "second passage"}, Similarity: 0.5},
	}
	prompt := BuildSystemPrompt(testPersona, chunks)

	assert.Contains(t, prompt, "IMPORTANT DOCUMENT CONTEXT (use this information as the PRIMARY source):\n\n- first passage\n\n- second passage\n\nRAG INSTRUCTIONS:")
	assert.Less(t, strings.Index(prompt, "first passage"), strings.Index(prompt, "second passage"))
}
