package document

import (
	"bytes"
	"fmt"
	"math"
	"strings"

	"github.com/ledongthuc/pdf"
)

// headingSizeRatio is the minimum ratio between a text run's font size and
// the dominant body font size for the run to be treated as a heading.
const headingSizeRatio = 1.15

// maxHeadingLen caps how long a styled run may be to still count as a
// heading; longer runs are emphasized body text, not structure.
const maxHeadingLen = 200

// textSpan is a run of consecutive PDF text items sharing a font size.
type textSpan struct {
	size float64
	text string
}

// normalizePDF extracts text in reading order and infers section boundaries
// from font-size runs. When no heading-sized runs exist the whole document
// becomes a single unstructured section.
func (n *Normalizer) normalizePDF(raw []byte) (doc *Document, err error) {
	// The pdf package panics on some malformed files.
	defer func() {
		if r := recover(); r != nil {
			doc = nil
			err = fmt.Errorf("%w: pdf parse panic: %v", ErrMalformedInput, r)
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(raw), int64(len(raw)))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedInput, err)
	}

	var (
		spans       []textSpan
		failedPages int
	)
	for i := 1; i <= reader.NumPage(); i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			failedPages++
			continue
		}
		pageSpans, ok := extractPageSpans(page)
		if !ok {
			failedPages++
			continue
		}
		spans = append(spans, pageSpans...)
	}

	if len(spans) == 0 {
		return nil, fmt.Errorf("%w: no extractable text in pdf", ErrMalformedInput)
	}

	bodySize := dominantFontSize(spans)
	sections := sectionsFromSpans(spans, bodySize)

	return &Document{
		Sections: sections,
		Partial:  failedPages > 0,
	}, nil
}

// extractPageSpans flattens one page's text items into font-size spans,
// inserting newlines on vertical position changes.
func extractPageSpans(page pdf.Page) (spans []textSpan, ok bool) {
	defer func() {
		if r := recover(); r != nil {
			spans, ok = nil, false
		}
	}()

	content := page.Content()
	var (
		cur   *textSpan
		lastY = math.NaN()
	)
	for _, t := range content.Text {
		if t.S == "" {
			continue
		}
		if cur == nil || math.Abs(cur.size-t.FontSize) > 0.1 {
			if cur != nil && strings.TrimSpace(cur.text) != "" {
				spans = append(spans, *cur)
			}
			cur = &textSpan{size: t.FontSize}
			lastY = math.NaN()
		}
		if !math.IsNaN(lastY) && math.Abs(t.Y-lastY) > 2 {
			cur.text += "\n"
		}
		cur.text += t.S
		lastY = t.Y
	}
	if cur != nil && strings.TrimSpace(cur.text) != "" {
		spans = append(spans, *cur)
	}
	return spans, true
}

// dominantFontSize returns the font size carrying the most characters,
// which is taken to be the body text size.
func dominantFontSize(spans []textSpan) float64 {
	weights := make(map[float64]int)
	for _, s := range spans {
		weights[roundSize(s.size)] += len(s.text)
	}
	var (
		best       float64
		bestWeight int
	)
	for size, weight := range weights {
		if weight > bestWeight || (weight == bestWeight && size < best) {
			best = size
			bestWeight = weight
		}
	}
	return best
}

func roundSize(size float64) float64 {
	return math.Round(size*2) / 2
}

// sectionsFromSpans builds sections from font-size spans: spans noticeably
// larger than the body size open a new section with that span as heading.
func sectionsFromSpans(spans []textSpan, bodySize float64) []Section {
	var (
		sections []Section
		current  Section
	)
	flush := func() {
		if strings.TrimSpace(current.Body) != "" || current.Heading != "" {
			sections = append(sections, current)
		}
	}

	for _, span := range spans {
		text := strings.TrimSpace(span.text)
		if text == "" {
			continue
		}
		isHeading := bodySize > 0 &&
			roundSize(span.size) >= bodySize*headingSizeRatio &&
			len(text) <= maxHeadingLen
		if isHeading {
			flush()
			current = Section{Heading: text, Level: 1}
			continue
		}
		if current.Body != "" {
			current.Body += "\n"
		}
		current.Body += text
	}
	flush()

	if len(sections) == 0 {
		return []Section{{Body: joinSpanText(spans)}}
	}
	return sections
}

func joinSpanText(spans []textSpan) string {
	parts := make([]string, 0, len(spans))
	for _, s := range spans {
		if t := strings.TrimSpace(s.text); t != "" {
			parts = append(parts, t)
		}
	}
	return strings.Join(parts, "\n")
}
