// Package embedding computes the deterministic hash-based text fingerprint
// shared by ingestion and query-time retrieval.
package embedding

import (
	"math"
	"strings"
	"unicode/utf16"
)

const (
	Dimensions = 1536

	maxCharacters = 10000
	charWeight    = 0.1
	wordWeight    = 0.05
)

// Embed maps text to a unit-length vector of Dimensions components. Empty
// input yields the zero vector.
//
// Characters are counted as UTF-16 code units so that vectors match the ones
// produced by existing clients for the same text.
func Embed(text string) []float32 {
	acc := make([]float64, Dimensions)
	normalized := strings.TrimSpace(strings.ToLower(text))

	units := utf16.Encode([]rune(normalized))
	for i, c := range units {
		if i >= maxCharacters {
			break
		}
		pos := (i*7 + int(c)*13) % Dimensions
		acc[pos] += float64(c) / 255 * charWeight
	}

	for _, word := range strings.Fields(normalized) {
		var h int32
		for _, c := range utf16.Encode([]rune(word)) {
			h = h*31 + int32(c)
		}
		abs := int64(h)
		if abs < 0 {
			abs = -abs
		}
		acc[abs%Dimensions] += wordWeight
	}

	var sum float64
	for _, v := range acc {
		sum += v * v
	}
	magnitude := math.Sqrt(sum)
	if magnitude == 0 {
		magnitude = 1
	}

	out := make([]float32, Dimensions)
	for i, v := range acc {
		out[i] = float32(v / magnitude)
	}
	return out
}

// Cosine returns the cosine similarity of a and b, or 0 when the lengths
// differ or either vector has no magnitude.
func Cosine(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		normA += x * x
		normB += y * y
	}
	if normA <= 0 || normB <= 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
