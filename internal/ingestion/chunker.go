package ingestion

import (
	"strings"

	prose "github.com/jdkato/prose/v2"
)

// Chunk is one segment of extracted text, sized for embedding.
type Chunk struct {
	Content string
	// SemanticBoundary is set when the chunk ends on a sentence boundary.
	SemanticBoundary bool
}

// Chunker splits extracted text into overlapping segments. Splits prefer
// sentence boundaries so that retrieved passages read as complete thoughts.
type Chunker struct {
	maxSize int
	overlap int
}

func NewChunker(maxSize, overlap int) *Chunker {
	if maxSize <= 0 {
		maxSize = 1000
	}
	if overlap < 0 || overlap >= maxSize {
		overlap = maxSize / 5
	}
	return &Chunker{maxSize: maxSize, overlap: overlap}
}

// Split segments text into chunks of at most maxSize characters. Sentences
// longer than maxSize fall back to word-level splitting.
func (c *Chunker) Split(text string) []Chunk {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	sentences := c.sentences(text)

	var chunks []Chunk
	var current strings.Builder

	flush := func(boundary bool) {
		content := strings.TrimSpace(current.String())
		if content != "" {
			chunks = append(chunks, Chunk{Content: content, SemanticBoundary: boundary})
		}
		current.Reset()
	}

	for _, sentence := range sentences {
		if len(sentence) > c.maxSize {
			flush(true)
			for _, part := range c.splitByWords(sentence) {
				chunks = append(chunks, Chunk{Content: part})
			}
			continue
		}

		if current.Len()+len(sentence)+1 > c.maxSize {
			flush(true)
			current.WriteString(c.tailOverlap(chunks))
		}
		if current.Len() > 0 {
			current.WriteString(" ")
		}
		current.WriteString(sentence)
	}
	flush(true)

	return chunks
}

// sentences segments text with the NLP tokenizer, falling back to the whole
// text as one sentence if segmentation fails.
func (c *Chunker) sentences(text string) []string {
	doc, err := prose.NewDocument(text,
		prose.WithTagging(false),
		prose.WithExtraction(false),
	)
	if err != nil {
		return []string{text}
	}

	sents := doc.Sentences()
	out := make([]string, 0, len(sents))
	for _, s := range sents {
		trimmed := strings.TrimSpace(s.Text)
		if trimmed != "" {
			out = append(out, trimmed)
		}
	}
	if len(out) == 0 {
		return []string{text}
	}
	return out
}

func (c *Chunker) splitByWords(sentence string) []string {
	words := strings.Fields(sentence)

	var parts []string
	var current strings.Builder
	for _, w := range words {
		if current.Len()+len(w)+1 > c.maxSize && current.Len() > 0 {
			parts = append(parts, current.String())
			current.Reset()
		}
		if current.Len() > 0 {
			current.WriteString(" ")
		}
		current.WriteString(w)
	}
	if current.Len() > 0 {
		parts = append(parts, current.String())
	}
	return parts
}

// tailOverlap returns the trailing characters of the last chunk, so
// consecutive chunks share context across the split point.
func (c *Chunker) tailOverlap(chunks []Chunk) string {
	if c.overlap == 0 || len(chunks) == 0 {
		return ""
	}
	last := chunks[len(chunks)-1].Content
	if len(last) <= c.overlap {
		return last
	}

	tail := last[len(last)-c.overlap:]
	// Cut at a word boundary inside the overlap window.
	if i := strings.IndexByte(tail, ' '); i >= 0 {
		tail = tail[i+1:]
	}
	return tail
}
