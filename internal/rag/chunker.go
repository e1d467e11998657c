// Package rag turns statement narration into retrievable chunks, embeds
// them and answers similarity queries over a chromem-go collection.
package rag

import (
	"crypto/md5"
	"encoding/hex"
	"strings"
	"unicode/utf8"
)

// Default chunking parameters, in words.
const (
	DefaultChunkSize    = 100
	DefaultChunkOverlap = 20

	// minChunkChars is the length a chunk must exceed to be kept.
	minChunkChars = 50
)

// Chunk is a window of words from one source document.
type Chunk struct {
	ID        string `json:"id"`
	Text      string `json:"text"`
	Source    string `json:"source"`
	StartPos  int    `json:"startPos"` // word offset in the source
	WordCount int    `json:"wordCount"`
}

// Chunker splits text into overlapping word windows.
type Chunker struct {
	Size    int
	Overlap int
}

// NewChunker returns a chunker, substituting defaults for invalid values.
func NewChunker(size, overlap int) Chunker {
	if size <= 0 {
		size = DefaultChunkSize
	}
	if overlap < 0 || overlap >= size {
		overlap = 0
	}
	return Chunker{Size: size, Overlap: overlap}
}

// Split chunks text from source. Windows start every Size-Overlap words;
// windows of minChunkChars characters or fewer are dropped.
func (c Chunker) Split(text, source string) []Chunk {
	c = NewChunker(c.Size, c.Overlap)
	words := strings.Fields(text)
	step := c.Size - c.Overlap

	var chunks []Chunk
	for i := 0; i < len(words); i += step {
		end := i + c.Size
		if end > len(words) {
			end = len(words)
		}
		body := strings.Join(words[i:end], " ")
		if utf8.RuneCountInString(body) <= minChunkChars {
			continue
		}
		chunks = append(chunks, Chunk{
			ID:        ChunkID(body),
			Text:      body,
			Source:    source,
			StartPos:  i,
			WordCount: end - i,
		})
	}
	return chunks
}

// ChunkID is the first 12 hex characters of the MD5 of text.
func ChunkID(text string) string {
	sum := md5.Sum([]byte(text))
	return hex.EncodeToString(sum[:])[:12]
}
