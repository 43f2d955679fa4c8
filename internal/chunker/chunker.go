// Package chunker splits document text into bounded, deterministic segments.
//
// Determinism is load-bearing: chunk text is content-addressed downstream
// (record id = hash of chunk text), so identical input must always produce
// identical chunk boundaries. Split depends on nothing but its arguments.
package chunker

// DefaultChunkSize is the default character budget per chunk.
const DefaultChunkSize = 100

// DefaultOverlap is the default number of overlapping characters.
const DefaultOverlap = 0

// Option configures a Split call.
type Option func(*splitConfig)

type splitConfig struct {
	chunkSize int
	overlap   int
}

// WithChunkSize sets the chunk size in characters. Non-positive values are ignored.
func WithChunkSize(size int) Option {
	return func(c *splitConfig) {
		if size > 0 {
			c.chunkSize = size
		}
	}
}

// WithOverlap sets the overlap between adjacent chunks in characters.
// Negative values are ignored.
func WithOverlap(overlap int) Option {
	return func(c *splitConfig) {
		if overlap >= 0 {
			c.overlap = overlap
		}
	}
}

// Split cuts text into chunks of at most chunkSize characters, with the
// configured overlap between adjacent chunks. Character means rune, so
// multi-byte text never splits mid-codepoint.
//
// Edge cases: empty text returns nil; text shorter than the chunk size
// returns exactly one chunk equal to the input.
func Split(text string, opts ...Option) []string {
	cfg := &splitConfig{
		chunkSize: DefaultChunkSize,
		overlap:   DefaultOverlap,
	}
	for _, opt := range opts {
		opt(cfg)
	}
	// Overlap must leave forward progress on every step.
	if cfg.overlap >= cfg.chunkSize {
		cfg.overlap = cfg.chunkSize - 1
	}

	if text == "" {
		return nil
	}

	runes := []rune(text)
	if len(runes) <= cfg.chunkSize {
		return []string{text}
	}

	step := cfg.chunkSize - cfg.overlap
	chunks := make([]string, 0, (len(runes)+step-1)/step)
	for start := 0; start < len(runes); start += step {
		end := start + cfg.chunkSize
		if end > len(runes) {
			end = len(runes)
		}
		chunks = append(chunks, string(runes[start:end]))
		if end == len(runes) {
			break
		}
	}
	return chunks
}
