// Package indexer turns parsed documents into stored vectors: chunking, metadata and
// the ingestion pipeline.
package indexer

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/hyperjump/careervec/internal/models"
)

// ErrInvalidArgument is returned for chunker settings that cannot make progress.
var ErrInvalidArgument = errors.New("invalid argument")

// boundaryFraction is the share of the window a sentence end must lie beyond to be used as the cut.
const boundaryFraction = 0.7

// Chunker splits text into overlapping character windows, preferring to cut at a sentence end.
// Sizes are counted in runes.
type Chunker struct {
	chunkSize    int
	chunkOverlap int
}

// NewChunker creates a chunker with the given size and overlap (in characters).
// Overlap must be smaller than size so every window advances.
func NewChunker(chunkSize, chunkOverlap int) (*Chunker, error) {
	if chunkSize <= 0 {
		return nil, fmt.Errorf("%w: chunk size must be positive, got %d", ErrInvalidArgument, chunkSize)
	}
	if chunkOverlap < 0 {
		return nil, fmt.Errorf("%w: overlap must not be negative, got %d", ErrInvalidArgument, chunkOverlap)
	}
	if chunkOverlap >= chunkSize {
		return nil, fmt.Errorf("%w: overlap %d must be smaller than chunk size %d", ErrInvalidArgument, chunkOverlap, chunkSize)
	}
	return &Chunker{
		chunkSize:    chunkSize,
		chunkOverlap: chunkOverlap,
	}, nil
}

// Size returns the window length in characters.
func (c *Chunker) Size() int { return c.chunkSize }

// Overlap returns the overlap in characters.
func (c *Chunker) Overlap() int { return c.chunkOverlap }

// Chunk splits text into trimmed chunks. Text no longer than the chunk size is
// returned unchanged as the only chunk. Whitespace-only windows are dropped.
func (c *Chunker) Chunk(text string) []string {
	runes := []rune(text)
	if len(runes) <= c.chunkSize {
		return []string{text}
	}

	var chunks []string
	for _, sp := range c.spans(runes) {
		if chunk := strings.TrimSpace(string(runes[sp.start:sp.end])); chunk != "" {
			chunks = append(chunks, chunk)
		}
	}
	return chunks
}

// span is a window [start, end) over the runes of a text.
type span struct {
	start, end int
}

// spans returns the untrimmed windows. Each window starts overlap characters
// before the previous one ended, until a start reaches the end of the text, so
// a window ending within the overlap of the end is followed by a final window
// holding just that overlap.
func (c *Chunker) spans(runes []rune) []span {
	n := len(runes)
	var out []span
	start := 0
	for start < n {
		end := start + c.chunkSize
		if end < n {
			if cut := c.sentenceCut(runes, start, end); cut > 0 {
				end = cut
			}
		}
		out = append(out, span{start: start, end: min(end, n)})

		// end is left unclamped so the last window follows the same start rule.
		next := end - c.chunkOverlap
		if next <= start {
			next = end
		}
		start = next
	}
	return out
}

// sentenceCut returns the index just after the last sentence-ending mark in
// runes[start:end] that is followed by a space or newline inside the window and
// lies beyond boundaryFraction of the chunk size. It returns 0 when there is none.
func (c *Chunker) sentenceCut(runes []rune, start, end int) int {
	limit := float64(c.chunkSize) * boundaryFraction
	for i := end - 2; i >= start; i-- {
		if float64(i-start) <= limit {
			return 0
		}
		if isSentenceEnd(runes[i]) && (runes[i+1] == ' ' || runes[i+1] == '\n') {
			return i + 1
		}
	}
	return 0
}

func isSentenceEnd(r rune) bool {
	return r == '.' || r == '!' || r == '?'
}

// ChunkDocument chunks text and wraps each piece as a TextChunk of docID.
// Empty or whitespace-only text yields no chunks.
func (c *Chunker) ChunkDocument(docID, text string) []*models.TextChunk {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	pieces := c.Chunk(text)
	chunks := make([]*models.TextChunk, 0, len(pieces))
	for _, p := range pieces {
		chunks = append(chunks, &models.TextChunk{
			ID:         uuid.New().String(),
			DocumentID: docID,
			Index:      len(chunks),
			Content:    p,
		})
	}
	return chunks
}
