package postprocessors

import (
	"strings"
	"unicode/utf8"

	"github.com/ledgerwise/ledgerwise-core/internal/core/ports/driven"
)

// ChunkConfig configures the chunker behavior.
type ChunkConfig struct {
	// ChunkSize is the maximum characters (runes) per chunk
	ChunkSize int

	// Overlap is the character overlap between consecutive chunks
	Overlap int

	// Separators are tried in order; "" means split between characters.
	Separators []string
}

// DefaultSeparators prefer paragraph, then line, then sentence, then word
// boundaries before cutting between characters.
var DefaultSeparators = []string{"\n\n", "\n", ". ", " ", ""}

// DefaultChunkConfig returns sensible defaults.
func DefaultChunkConfig() ChunkConfig {
	return ChunkConfig{
		ChunkSize:  1000,
		Overlap:    200,
		Separators: DefaultSeparators,
	}
}

// Chunker recursively splits text on the configured separators and merges
// the pieces back into windows of at most ChunkSize characters, carrying up
// to Overlap characters from the end of one window into the next.
type Chunker struct {
	config ChunkConfig
}

// Verify interface compliance
var _ driven.PostProcessor = (*Chunker)(nil)

// NewChunker creates a new chunker with the given config.
// Invalid sizes fall back to the defaults.
func NewChunker(config ChunkConfig) *Chunker {
	def := DefaultChunkConfig()
	if config.ChunkSize <= 0 {
		config.ChunkSize = def.ChunkSize
	}
	if config.Overlap < 0 || config.Overlap >= config.ChunkSize {
		config.Overlap = 0
	}
	if len(config.Separators) == 0 {
		config.Separators = def.Separators
	}
	return &Chunker{config: config}
}

// Process splits every chunk into overlapping windows.
func (c *Chunker) Process(chunks []driven.Chunk) []driven.Chunk {
	var result []driven.Chunk
	position := 0

	for _, chunk := range chunks {
		floor, guess := 0, 0
		for _, piece := range c.Split(chunk.Content) {
			start := locate(chunk.Content, piece, guess, floor)
			end := start + len(piece)
			result = append(result, driven.Chunk{
				Content:     piece,
				Position:    position,
				StartOffset: chunk.StartOffset + start,
				EndOffset:   chunk.StartOffset + end,
			})
			position++

			// the next window usually begins inside this one's overlap tail
			floor = min(start+1, len(chunk.Content))
			guess = max(floor, end-tailBytes(piece, c.config.Overlap))
		}
	}

	return result
}

// locate finds piece in content, preferring a match at or after guess
func locate(content, piece string, guess, floor int) int {
	if idx := strings.Index(content[guess:], piece); idx >= 0 {
		return guess + idx
	}
	if idx := strings.Index(content[floor:], piece); idx >= 0 {
		return floor + idx
	}
	return floor
}

// tailBytes returns the byte length of the last n runes of s
func tailBytes(s string, n int) int {
	i := len(s)
	for ; i > 0 && n > 0; n-- {
		_, size := utf8.DecodeLastRuneInString(s[:i])
		i -= size
	}
	return len(s) - i
}

// Name returns the processor name.
func (c *Chunker) Name() string {
	return "chunker"
}

// Order returns 0 - chunker should be first.
func (c *Chunker) Order() int {
	return 0
}

// Split returns the windows for text. Empty or blank text yields none.
func (c *Chunker) Split(text string) []string {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	return c.split(text, c.config.Separators)
}

func (c *Chunker) split(text string, separators []string) []string {
	separator := ""
	var rest []string
	for i, sep := range separators {
		if sep == "" {
			separator = ""
			rest = nil
			break
		}
		if strings.Contains(text, sep) {
			separator = sep
			rest = separators[i+1:]
			break
		}
	}

	var pieces []string
	if separator == "" {
		for _, r := range text {
			pieces = append(pieces, string(r))
		}
	} else {
		for _, p := range strings.SplitAfter(text, separator) {
			if p != "" {
				pieces = append(pieces, p)
			}
		}
	}

	var final, pending []string
	for _, p := range pieces {
		if utf8.RuneCountInString(p) < c.config.ChunkSize {
			pending = append(pending, p)
			continue
		}
		if len(pending) > 0 {
			final = append(final, c.merge(pending)...)
			pending = nil
		}
		if len(rest) == 0 {
			final = append(final, p)
		} else {
			final = append(final, c.split(p, rest)...)
		}
	}
	if len(pending) > 0 {
		final = append(final, c.merge(pending)...)
	}
	return final
}

// merge packs pieces into windows. When a window fills up, pieces are
// dropped from its front until at most Overlap characters remain, and
// those carry into the next window.
func (c *Chunker) merge(pieces []string) []string {
	var windows []string
	var current []string
	total := 0

	for _, p := range pieces {
		n := utf8.RuneCountInString(p)
		if total+n > c.config.ChunkSize && len(current) > 0 {
			if w := strings.TrimSpace(strings.Join(current, "")); w != "" {
				windows = append(windows, w)
			}
			for total > c.config.Overlap || (total+n > c.config.ChunkSize && total > 0) {
				total -= utf8.RuneCountInString(current[0])
				current = current[1:]
			}
		}
		current = append(current, p)
		total += n
	}

	if w := strings.TrimSpace(strings.Join(current, "")); w != "" {
		windows = append(windows, w)
	}
	return windows
}
