package chunker

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplit_EmptyText(t *testing.T) {
	assert.Nil(t, Split(""))
}

func TestSplit_ShorterThanChunkSize(t *testing.T) {
	chunks := Split("short text", WithChunkSize(100))
	require.Len(t, chunks, 1)
	assert.Equal(t, "short text", chunks[0])
}

func TestSplit_ExactBudget(t *testing.T) {
	text := strings.Repeat("a", 100)
	chunks := Split(text, WithChunkSize(100))
	require.Len(t, chunks, 1)
	assert.Equal(t, text, chunks[0])
}

func TestSplit_250CharsNoOverlap(t *testing.T) {
	text := strings.Repeat("x", 250)
	chunks := Split(text, WithChunkSize(100), WithOverlap(0))

	require.Len(t, chunks, 3)
	assert.Len(t, chunks[0], 100)
	assert.Len(t, chunks[1], 100)
	assert.Len(t, chunks[2], 50)
	assert.Equal(t, text, strings.Join(chunks, ""))
}

func TestSplit_WithOverlap(t *testing.T) {
	text := "abcdefghij" // 10 chars
	chunks := Split(text, WithChunkSize(4), WithOverlap(2))

	// step = 2: abcd, cdef, efgh, ghij
	require.Equal(t, []string{"abcd", "cdef", "efgh", "ghij"}, chunks)
}

func TestSplit_OverlapClampedBelowChunkSize(t *testing.T) {
	// Overlap >= chunk size would loop forever; it is clamped to size-1.
	chunks := Split("abcdef", WithChunkSize(3), WithOverlap(5))
	require.NotEmpty(t, chunks)
	assert.Equal(t, "abc", chunks[0])
}

func TestSplit_Deterministic(t *testing.T) {
	text := strings.Repeat("The quick brown fox jumps over the lazy dog. ", 20)

	first := Split(text, WithChunkSize(100), WithOverlap(10))
	second := Split(text, WithChunkSize(100), WithOverlap(10))

	assert.Equal(t, first, second)
}

func TestSplit_MultiByteRunes(t *testing.T) {
	text := strings.Repeat("世", 150)
	chunks := Split(text, WithChunkSize(100))

	require.Len(t, chunks, 2)
	// Rune counts, not byte counts.
	assert.Equal(t, 100, len([]rune(chunks[0])))
	assert.Equal(t, 50, len([]rune(chunks[1])))
	// No mojibake at the boundary.
	assert.Equal(t, text, strings.Join(chunks, ""))
}

func TestSplit_IgnoresInvalidOptions(t *testing.T) {
	chunks := Split("hello world", WithChunkSize(0), WithOverlap(-3))
	// Falls back to defaults: one chunk for short text.
	require.Len(t, chunks, 1)
	assert.Equal(t, "hello world", chunks[0])
}
