package sse

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docrag/internal/sse/ssetest"
)

func feedAll(fragments ...string) (Accumulator, []string) {
	var (
		acc Accumulator
		all []string
	)
	for _, f := range fragments {
		var snaps []string
		acc, snaps = Feed(acc, f)
		all = append(all, snaps...)
	}
	acc, snaps := Finish(acc)
	return acc, append(all, snaps...)
}

func TestFeed_AccumulatesDeltas(t *testing.T) {
	stream := ssetest.Event("Hola") + ssetest.Event(", ") + ssetest.Event("mundo") + ssetest.Done
	acc, snaps := feedAll(stream)

	assert.True(t, acc.Done)
	assert.Equal(t, "Hola, mundo", acc.Text)
	assert.Equal(t, []string{"Hola", "Hola, ", "Hola, mundo"}, snaps)
}

func TestFeed_PayloadSplitAcrossFragments(t *testing.T) {
	stream := ssetest.Event("first") + ssetest.Event("second part") + ssetest.Done
	cut := strings.Index(stream, "second") - 3

	acc, snaps := Feed(Accumulator{}, stream[:cut])
	assert.Equal(t, []string{"first"}, snaps)
	assert.NotEmpty(t, acc.pending)

	acc, snaps = Feed(acc, stream[cut:])
	assert.Equal(t, []string{"firstsecond part"}, snaps)
	assert.Equal(t, "firstsecond part", acc.Text)
	assert.True(t, acc.Done)
}

func TestFeed_EveryByteBoundary(t *testing.T) {
	stream := ": keep-alive\n\n" + ssetest.Event("añadir") + ssetest.Event(" ✓ done") + ssetest.Done
	for cut := 0; cut <= len(stream); cut++ {
		acc, _ := feedAll(stream[:cut], stream[cut:])
		require.Equal(t, "añadir ✓ done", acc.Text, "cut at %d", cut)
		require.True(t, acc.Done, "cut at %d", cut)
	}
}

func TestFeed_CRLFAndPrefixWithoutSpace(t *testing.T) {
	stream := "data:{\"choices\":[{\"delta\":{\"content\":\"a\"}}]}\r\n\r\n" +
		"event: message\r\n" +
		"data: {\"choices\":[{\"delta\":{\"content\":\"b\"}}]}\r\n\r\n" +
		"data:[DONE]\r\n"
	acc, snaps := feedAll(stream)
	assert.Equal(t, "ab", acc.Text)
	assert.Equal(t, []string{"a", "ab"}, snaps)
	assert.True(t, acc.Done)
}

func TestFeed_IgnoresRoleOnlyAndEmptyChoices(t *testing.T) {
	stream := "data: {\"choices\":[{\"delta\":{\"role\":\"assistant\"}}]}\n\n" +
		"data: {\"choices\":[]}\n\n" +
		ssetest.Event("x")
	acc, snaps := feedAll(stream)
	assert.Equal(t, "x", acc.Text)
	assert.Equal(t, []string{"x"}, snaps)
	assert.False(t, acc.Done)
}

func TestFeed_StopsAtDone(t *testing.T) {
	acc, snaps := Feed(Accumulator{}, ssetest.Event("kept")+ssetest.Done+ssetest.Event("ignored"))
	assert.Equal(t, "kept", acc.Text)
	assert.Len(t, snaps, 1)
	assert.Empty(t, acc.pending)

	acc, snaps = Feed(acc, ssetest.Event("later"))
	assert.Nil(t, snaps)
	assert.Equal(t, "kept", acc.Text)
}

func TestFeed_MalformedLineIsRetainedUntilMoreLinesArrive(t *testing.T) {
	acc, snaps := Feed(Accumulator{}, "data: {not json\n")
	assert.Empty(t, snaps)
	assert.Equal(t, "data: {not json\n", acc.pending)

	acc, snaps = Feed(acc, ssetest.Event("next"))
	assert.Equal(t, []string{"next"}, snaps)
	assert.Equal(t, "next", acc.Text)
}

func TestFinish_FlushesLastLineWithoutNewline(t *testing.T) {
	acc, snaps := Feed(Accumulator{}, `data: {"choices":[{"delta":{"content":"tail"}}]}`)
	assert.Empty(t, snaps)

	acc, snaps = Finish(acc)
	assert.Equal(t, []string{"tail"}, snaps)
	assert.Equal(t, "tail", acc.Text)
	assert.Empty(t, acc.pending)
}

func TestFinish_DiscardsGarbage(t *testing.T) {
	acc, _ := Feed(Accumulator{}, "data: {\"choices\":")
	acc, snaps := Finish(acc)
	assert.Empty(t, snaps)
	assert.Empty(t, acc.Text)
}
