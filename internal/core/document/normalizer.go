package document

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Normalizer converts raw document bytes into the canonical Document form.
// Normalization is a pure function over the input bytes: all fallbacks are
// deterministic given identical input, and nothing is persisted here.
type Normalizer struct {
	logger *slog.Logger
}

// Option configures a Normalizer.
type Option func(*Normalizer)

// WithLogger sets the logger used for recovery warnings.
func WithLogger(logger *slog.Logger) Option {
	return func(n *Normalizer) {
		n.logger = logger
	}
}

// New creates a Normalizer.
func New(opts ...Option) *Normalizer {
	n := &Normalizer{
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// Normalize parses raw bytes in the declared format into a Document.
// It prefers best-effort partial results over hard failure: as long as any
// text is recoverable, a Document is returned (flagged Partial when recovery
// was lossy). It fails with ErrUnsupportedFormat for unknown formats and
// ErrMalformedInput when no text can be extracted at all.
func (n *Normalizer) Normalize(raw []byte, format Format) (*Document, error) {
	if len(raw) == 0 {
		return nil, fmt.Errorf("%w: empty input", ErrMalformedInput)
	}

	var (
		doc *Document
		err error
	)

	switch format {
	case FormatPDF:
		doc, err = n.normalizePDF(raw)
	case FormatDOCX:
		doc, err = n.normalizeDOCX(raw)
	case FormatText:
		doc, err = n.normalizeText(raw)
	case FormatXML:
		doc, err = n.normalizeXML(raw)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}

	if err != nil {
		return nil, err
	}

	doc.ID = uuid.New()
	doc.SourceFormat = format
	doc.CreatedAt = time.Now().UTC()
	if doc.Metadata == nil {
		doc.Metadata = map[string]string{}
	}
	finalizeSections(doc)
	doc.WordCount = CountWords(doc.FullText())

	if doc.Partial {
		n.logger.Warn("document normalized with partial recovery",
			"format", string(format),
			"sections", len(doc.Sections),
		)
	}

	return doc, nil
}

// normalizeText handles plain-text input as a single unstructured section.
func (n *Normalizer) normalizeText(raw []byte) (*Document, error) {
	text := strings.TrimSpace(string(raw))
	if text == "" {
		return nil, fmt.Errorf("%w: no extractable text", ErrMalformedInput)
	}
	return &Document{
		Sections: []Section{{Body: text}},
	}, nil
}

// finalizeSections drops sections without any text and renumbers ordinals.
func finalizeSections(doc *Document) {
	kept := doc.Sections[:0]
	for _, s := range doc.Sections {
		s.Body = strings.TrimSpace(s.Body)
		s.Heading = collapseWhitespace(s.Heading)
		if s.Body == "" && s.Heading == "" {
			continue
		}
		s.Ordinal = len(kept)
		kept = append(kept, s)
	}
	doc.Sections = kept
}

// collapseWhitespace squeezes runs of whitespace into single spaces.
func collapseWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
