// Package ssetest builds OpenAI-style event streams for tests.
package ssetest

import "encoding/json"

// Done is the end-of-stream line.
const Done = "data: [DONE]\n\n"

type delta struct {
	Content string `json:"content"`
}

type choice struct {
	Delta delta `json:"delta"`
}

type payload struct {
	Choices []choice `json:"choices"`
}

// Event formats one content delta as an SSE data line.
func Event(content string) string {
	b, _ := json.Marshal(payload{Choices: []choice{{Delta: delta{Content: content}}}})
	return "data: " + string(b) + "\n\n"
}
