package chunk

import (
	"errors"
	"fmt"
	"log/slog"
	"unicode"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/wongivan852/legal-financial-ai-vault/internal/core/document"
)

// sectionSeparator joins section bodies in the canonical text. It must match
// document.FullText.
const sectionSeparator = "\n\n"

var ErrInvalidConfig = errors.New("chunk: invalid chunker configuration")

// Chunker splits a document's canonical text into bounded chunks. Whole
// sections are packed greedily; a section longer than the limit is split at
// sentence boundaries. Chunking is deterministic: the same document and
// configuration always produce the same chunk sequence.
type Chunker struct {
	maxChars     int
	overlapChars int
	logger       *slog.Logger
}

type Option func(*Chunker)

func WithLogger(logger *slog.Logger) Option {
	return func(c *Chunker) {
		c.logger = logger
	}
}

func New(maxChars, overlapChars int, opts ...Option) (*Chunker, error) {
	if maxChars <= len(sectionSeparator) {
		return nil, fmt.Errorf("%w: max chars %d too small", ErrInvalidConfig, maxChars)
	}
	if overlapChars < 0 || overlapChars >= maxChars {
		return nil, fmt.Errorf("%w: overlap %d must be in [0, %d)", ErrInvalidConfig, overlapChars, maxChars)
	}
	c := &Chunker{
		maxChars:     maxChars,
		overlapChars: overlapChars,
		logger:       slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// unit is an indivisible piece of the canonical text: a section body, or one
// sentence-bounded slice of an oversized body. The span includes the
// separator preceding the unit's section, so consecutive units tile the
// canonical text exactly.
type unit struct {
	text       string
	sectionRef int
}

// Chunk splits the document. An empty document yields no chunks.
func (c *Chunker) Chunk(doc *document.Document) ([]Chunk, error) {
	units := c.buildUnits(doc)
	if len(units) == 0 {
		return nil, nil
	}

	var (
		chunks  []Chunk
		cur     []unit
		curLen  int
		offset  int
		ordinal int
	)
	flush := func() {
		if len(cur) == 0 {
			return
		}
		chunks = append(chunks, c.assemble(doc.ID, ordinal, cur, offset, chunks))
		offset += curLen
		ordinal++
		cur = nil
		curLen = 0
	}

	for _, u := range units {
		if curLen > 0 && curLen+len(u.text) > c.maxChars {
			flush()
		}
		cur = append(cur, u)
		curLen += len(u.text)
	}
	flush()

	c.logger.Debug("document chunked",
		"document_id", doc.ID,
		"chunks", len(chunks),
		"canonical_chars", offset,
	)
	return chunks, nil
}

// buildUnits flattens the document into tiling units. The first piece of each
// section after the first carries the section separator, and its size budget
// shrinks accordingly so no single unit can exceed the chunk limit.
func (c *Chunker) buildUnits(doc *document.Document) []unit {
	var units []unit
	first := true
	for _, s := range doc.Sections {
		if s.Body == "" {
			continue
		}
		prefix := ""
		if !first {
			prefix = sectionSeparator
		}
		first = false

		pieces := splitBody(s.Body, c.maxChars-len(prefix), c.maxChars)
		for i, p := range pieces {
			if i == 0 {
				p = prefix + p
			}
			units = append(units, unit{text: p, sectionRef: s.Ordinal})
		}
	}
	return units
}

// assemble builds one chunk from consecutive units starting at the given
// canonical offset, prepending the overlap prefix from the previous chunk.
func (c *Chunker) assemble(docID uuid.UUID, ordinal int, units []unit, start int, prev []Chunk) Chunk {
	var core string
	refs := make([]int, 0, len(units))
	for _, u := range units {
		core += u.text
		if len(refs) == 0 || refs[len(refs)-1] != u.sectionRef {
			refs = append(refs, u.sectionRef)
		}
	}

	overlap := ""
	if c.overlapChars > 0 && len(prev) > 0 {
		overlap = tailRunes(prev[len(prev)-1].CoreText(), c.overlapChars)
	}

	return Chunk{
		ID:              uuid.NewSHA1(docID, []byte(fmt.Sprintf("chunk/%d", ordinal))),
		DocumentID:      docID,
		Ordinal:         ordinal,
		SectionRefs:     refs,
		Text:            overlap + core,
		StartOffset:     start,
		EndOffset:       start + len(core),
		OverlapWithPrev: overlap != "",
	}
}

// splitBody cuts a section body into pieces no longer than the budget,
// preferring the sentence boundary closest to the limit. Pieces concatenate
// back to the body exactly. firstBudget applies to the first piece only.
func splitBody(body string, firstBudget, budget int) []string {
	if firstBudget < 1 {
		firstBudget = 1
	}
	var pieces []string
	rest := body
	limit := firstBudget
	for len(rest) > limit {
		cut := sentenceCut(rest, limit)
		pieces = append(pieces, rest[:cut])
		rest = rest[cut:]
		limit = budget
	}
	pieces = append(pieces, rest)
	return pieces
}

// sentenceCut finds the byte position to cut at: the last sentence boundary
// within the limit, falling back to the last rune boundary at the limit when
// a single sentence overruns it. A rune that alone overruns the limit is
// kept whole, so pieces are always valid UTF-8.
func sentenceCut(s string, limit int) int {
	best := 0
	for i, r := range s {
		end := i + utf8.RuneLen(r)
		if end > limit {
			break
		}
		if !isSentenceEnd(r) {
			continue
		}
		next, _ := utf8.DecodeRuneInString(s[end:])
		if next == utf8.RuneError || unicode.IsSpace(next) {
			best = end
		}
	}
	if best > 0 {
		return best
	}
	cut := limit
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	if cut == 0 {
		// The first rune alone overruns the limit. Overshoot to its end
		// rather than splitting it into invalid UTF-8.
		cut = limit
		for cut < len(s) && !utf8.RuneStart(s[cut]) {
			cut++
		}
	}
	return cut
}

func isSentenceEnd(r rune) bool {
	switch r {
	case '.', '!', '?', '\n', '。', '！', '？', '；':
		return true
	}
	return false
}

// tailRunes returns the trailing n bytes of s, trimmed forward to a rune
// boundary.
func tailRunes(s string, n int) string {
	if len(s) <= n {
		return s
	}
	start := len(s) - n
	for start < len(s) && !utf8.RuneStart(s[start]) {
		start++
	}
	return s[start:]
}
