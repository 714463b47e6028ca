package kb

import (
	"context"
	"fmt"

	"github.com/pkoukk/tiktoken-go"
)

// Chunker splits documents into token windows suitable for embedding.
// It uses a tiktoken codec so chunk sizes line up with model token limits.
type Chunker struct {
	enc           *tiktoken.Tiktoken
	maxTokens     int
	overlapTokens int
}

// ChunkerOption customises the chunker.
type ChunkerOption func(*Chunker)

// WithMaxTokens sets the maximum allowed tokens per chunk (default 256).
func WithMaxTokens(tokens int) ChunkerOption {
	return func(c *Chunker) {
		if tokens > 0 {
			c.maxTokens = tokens
		}
	}
}

// WithOverlapTokens sets how many tokens are shared between consecutive chunks.
func WithOverlapTokens(tokens int) ChunkerOption {
	return func(c *Chunker) {
		if tokens >= 0 {
			c.overlapTokens = tokens
		}
	}
}

// NewChunker creates a token-aware chunker for the given encoding
// (e.g. "cl100k_base").
func NewChunker(encoding string, opts ...ChunkerOption) (*Chunker, error) {
	if encoding == "" {
		encoding = "cl100k_base"
	}
	enc, err := tiktoken.GetEncoding(encoding)
	if err != nil {
		return nil, fmt.Errorf("load encoding %q: %w", encoding, err)
	}
	ch := &Chunker{
		enc:           enc,
		maxTokens:     256,
		overlapTokens: 32,
	}
	for _, opt := range opts {
		opt(ch)
	}
	if ch.overlapTokens >= ch.maxTokens {
		ch.overlapTokens = ch.maxTokens / 4
	}
	return ch, nil
}

// Chunk splits the document content into overlapping token windows.
func (c *Chunker) Chunk(ctx context.Context, doc Document) ([]Chunk, error) {
	EnsureDocumentID(&doc)

	tokens := c.enc.Encode(doc.Content, nil, nil)
	if len(tokens) == 0 || len(tokens) <= c.maxTokens {
		return []Chunk{
			{
				ID:         NextChunkID(doc.ID),
				DocumentID: doc.ID,
				Content:    doc.Content,
			},
		}, nil
	}

	var chunks []Chunk
	ordinal := 0
	start := 0
	for start < len(tokens) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		end := start + c.maxTokens
		if end > len(tokens) {
			end = len(tokens)
		}
		chunks = append(chunks, Chunk{
			ID:         NextChunkID(doc.ID),
			DocumentID: doc.ID,
			Content:    c.enc.Decode(tokens[start:end]),
			Ordinal:    ordinal,
		})
		ordinal++
		if end == len(tokens) {
			break
		}
		start = end - c.overlapTokens
	}

	return chunks, nil
}
