// Package sse decodes OpenAI-style server-sent event streams incrementally.
//
// The decoder keeps no state of its own: callers thread an Accumulator
// through Feed for every network fragment and call Finish once the body
// is exhausted.
package sse

import (
	"encoding/json"
	"strings"
)

const (
	dataPrefix = "data:"
	doneMarker = "[DONE]"
)

// Accumulator carries the reassembly state between fragments.
type Accumulator struct {
	// Text is the message assembled from every delta seen so far.
	Text string
	// Done is set once the end-of-stream marker has been read.
	Done bool

	pending string
}

type chunkPayload struct {
	Choices []chunkChoice `json:"choices"`
}

type chunkChoice struct {
	Delta chunkDelta `json:"delta"`
}

type chunkDelta struct {
	Content string `json:"content"`
}

type lineResult int

const (
	lineIgnored lineResult = iota
	lineDelta
	lineDone
	lineIncomplete
)

// Feed appends fragment to the pending buffer and decodes every complete
// line. It returns the updated accumulator and one snapshot of the full
// accumulated text per delta that added content.
//
// A data line that is not valid JSON yet is pushed back and retried on the
// next fragment. If more complete lines already follow it, the line is
// dropped so one bad event cannot stall the stream.
func Feed(acc Accumulator, fragment string) (Accumulator, []string) {
	if acc.Done {
		return acc, nil
	}
	buf := acc.pending + fragment
	var snapshots []string

	for {
		idx := strings.IndexByte(buf, '\n')
		if idx < 0 {
			break
		}
		line := strings.TrimSuffix(buf[:idx], "\r")
		buf = buf[idx+1:]

		delta, res := decodeLine(line)
		switch res {
		case lineDone:
			acc.Done = true
			acc.pending = ""
			return acc, snapshots
		case lineDelta:
			acc.Text += delta
			snapshots = append(snapshots, acc.Text)
		case lineIncomplete:
			if strings.IndexByte(buf, '\n') >= 0 {
				continue
			}
			acc.pending = line + "\n" + buf
			return acc, snapshots
		}
	}
	acc.pending = buf
	return acc, snapshots
}

// Finish decodes whatever is left in the pending buffer, including a final
// line without a trailing newline. Lines that still do not parse are
// discarded.
func Finish(acc Accumulator) (Accumulator, []string) {
	if acc.Done || acc.pending == "" {
		acc.pending = ""
		return acc, nil
	}
	var snapshots []string
	for _, line := range strings.Split(acc.pending, "\n") {
		delta, res := decodeLine(strings.TrimSuffix(line, "\r"))
		if res == lineDone {
			acc.Done = true
			break
		}
		if res == lineDelta {
			acc.Text += delta
			snapshots = append(snapshots, acc.Text)
		}
	}
	acc.pending = ""
	return acc, snapshots
}

func decodeLine(line string) (string, lineResult) {
	if line == "" || strings.HasPrefix(line, ":") {
		return "", lineIgnored
	}
	if !strings.HasPrefix(line, dataPrefix) {
		return "", lineIgnored
	}
	data := strings.TrimPrefix(line[len(dataPrefix):], " ")
	if strings.TrimSpace(data) == doneMarker {
		return "", lineDone
	}

	var payload chunkPayload
	if err := json.Unmarshal([]byte(data), &payload); err != nil {
		return "", lineIncomplete
	}
	if len(payload.Choices) == 0 || payload.Choices[0].Delta.Content == "" {
		return "", lineIgnored
	}
	return payload.Choices[0].Delta.Content, lineDelta
}
