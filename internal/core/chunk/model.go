package chunk

import (
	"strings"

	"github.com/google/uuid"
)

// Chunk is a bounded slice of a document's canonical text, sized for
// embedding and inference context limits. Chunks are contiguous over the
// canonical text: each chunk's core text starts exactly where the previous
// one ended, and overlap prefixes are extra context prepended to Text
// without affecting the offsets.
type Chunk struct {
	ID          uuid.UUID
	DocumentID  uuid.UUID
	Ordinal     int
	SectionRefs []int
	// Text is the chunk content handed to embedding/inference, including
	// the overlap prefix when OverlapWithPrev is set.
	Text        string
	StartOffset int
	EndOffset   int
	// OverlapWithPrev marks chunks whose Text is prefixed with the trailing
	// overlap region of the previous chunk.
	OverlapWithPrev bool
}

// CoreText returns the chunk text without the overlap prefix, i.e. the exact
// substring [StartOffset, EndOffset) of the document's canonical text.
func (c Chunk) CoreText() string {
	core := c.EndOffset - c.StartOffset
	return c.Text[len(c.Text)-core:]
}

// Reconstruct concatenates the core texts of an ordered chunk sequence,
// yielding the document's canonical text exactly.
func Reconstruct(chunks []Chunk) string {
	var sb strings.Builder
	for _, c := range chunks {
		sb.WriteString(c.CoreText())
	}
	return sb.String()
}
