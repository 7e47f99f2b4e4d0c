package document

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Format identifies the declared source format of an uploaded document.
type Format string

const (
	FormatPDF  Format = "pdf"
	FormatDOCX Format = "docx"
	FormatText Format = "txt"
	FormatXML  Format = "xml"
)

// ParseFormat maps a file extension or format name to a Format.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimPrefix(strings.TrimSpace(s), ".")) {
	case "pdf":
		return FormatPDF, nil
	case "docx", "doc":
		return FormatDOCX, nil
	case "txt", "text":
		return FormatText, nil
	case "xml":
		return FormatXML, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, s)
	}
}

// Section is one structural unit of a normalized document. Ordering is
// significant and preserved from the source structure.
type Section struct {
	Heading string
	Ordinal int
	Body    string
	Level   int
}

// Document is the canonical structured form of an ingested file. It is
// immutable once created; re-ingestion produces a new document with a new ID.
type Document struct {
	ID           uuid.UUID
	SourceFormat Format
	Language     string
	Metadata     map[string]string
	Sections     []Section
	// Partial marks documents recovered from partially malformed input.
	Partial   bool
	WordCount int
	CreatedAt time.Time
}

// FullText returns the document body as a single string, non-empty section
// bodies joined in order.
func (d *Document) FullText() string {
	bodies := make([]string, 0, len(d.Sections))
	for _, s := range d.Sections {
		if s.Body != "" {
			bodies = append(bodies, s.Body)
		}
	}
	return strings.Join(bodies, "\n\n")
}

// CountWords counts whitespace-separated words.
func CountWords(s string) int {
	return len(strings.Fields(s))
}
