package chunk

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wongivan852/legal-financial-ai-vault/internal/core/document"
)

func testDocument(sections ...document.Section) *document.Document {
	for i := range sections {
		sections[i].Ordinal = i + 1
	}
	return &document.Document{
		ID:       uuid.MustParse("f47ac10b-58cc-4372-a567-0e02b2c3d479"),
		Sections: sections,
	}
}

func TestNewValidation(t *testing.T) {
	_, err := New(0, 0)
	assert.ErrorIs(t, err, ErrInvalidConfig)

	_, err = New(100, -1)
	assert.ErrorIs(t, err, ErrInvalidConfig)

	_, err = New(100, 100)
	assert.ErrorIs(t, err, ErrInvalidConfig)

	_, err = New(100, 10)
	assert.NoError(t, err)
}

func TestChunkSmallDocumentSingleChunk(t *testing.T) {
	chunker, err := New(1000, 100)
	require.NoError(t, err)

	doc := testDocument(
		document.Section{Heading: "Definitions", Body: "Alpha clause."},
		document.Section{Heading: "Term", Body: "Omega clause."},
	)

	chunks, err := chunker.Chunk(doc)
	require.NoError(t, err)
	require.Len(t, chunks, 1)

	c := chunks[0]
	assert.Equal(t, doc.FullText(), c.Text)
	assert.Equal(t, 0, c.StartOffset)
	assert.Equal(t, len(doc.FullText()), c.EndOffset)
	assert.Equal(t, []int{1, 2}, c.SectionRefs)
	assert.False(t, c.OverlapWithPrev)
	assert.Equal(t, 0, c.Ordinal)
}

func TestChunkOversizedSectionSplitsAtSentenceBoundary(t *testing.T) {
	chunker, err := New(40, 0)
	require.NoError(t, err)

	doc := testDocument(
		document.Section{Body: "Alpha clause."},
		document.Section{Body: "One sentence here. Two sentence here. Three sentence here."},
		document.Section{Body: "Omega clause."},
	)

	chunks, err := chunker.Chunk(doc)
	require.NoError(t, err)
	require.Len(t, chunks, 3)

	assert.Equal(t, "Alpha clause.", chunks[0].CoreText())
	assert.Equal(t, "\n\nOne sentence here. Two sentence here.", chunks[1].CoreText())
	assert.Equal(t, " Three sentence here.\n\nOmega clause.", chunks[2].CoreText())

	// The boundary inside section 2 falls on a sentence end.
	assert.True(t, strings.HasSuffix(chunks[1].CoreText(), "."))

	assert.Equal(t, []int{1}, chunks[0].SectionRefs)
	assert.Equal(t, []int{2}, chunks[1].SectionRefs)
	assert.Equal(t, []int{2, 3}, chunks[2].SectionRefs)

	for _, c := range chunks {
		assert.LessOrEqual(t, len(c.CoreText()), 40)
	}
}

func TestChunkOffsetsAreContiguous(t *testing.T) {
	chunker, err := New(64, 0)
	require.NoError(t, err)

	var body strings.Builder
	for i := 0; i < 50; i++ {
		body.WriteString("This is a filler sentence for testing. ")
	}
	doc := testDocument(
		document.Section{Heading: "Intro", Body: "Short intro body."},
		document.Section{Heading: "Clauses", Body: strings.TrimSpace(body.String())},
		document.Section{Heading: "Closing", Body: "Short closing body."},
	)

	chunks, err := chunker.Chunk(doc)
	require.NoError(t, err)
	require.NotEmpty(t, chunks)

	assert.Equal(t, 0, chunks[0].StartOffset)
	for i := 1; i < len(chunks); i++ {
		assert.Equal(t, chunks[i-1].EndOffset, chunks[i].StartOffset)
		assert.Equal(t, i, chunks[i].Ordinal)
	}
	assert.Equal(t, doc.FullText(), Reconstruct(chunks))
	assert.Equal(t, len(doc.FullText()), chunks[len(chunks)-1].EndOffset)
}

func TestChunkOverlapPrefix(t *testing.T) {
	chunker, err := New(40, 10)
	require.NoError(t, err)

	doc := testDocument(
		document.Section{Body: "Alpha clause."},
		document.Section{Body: "One sentence here. Two sentence here. Three sentence here."},
	)

	chunks, err := chunker.Chunk(doc)
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(chunks), 2)

	first, second := chunks[0], chunks[1]
	assert.False(t, first.OverlapWithPrev)
	assert.True(t, second.OverlapWithPrev)

	wantPrefix := first.CoreText()[len(first.CoreText())-10:]
	assert.Equal(t, wantPrefix+second.CoreText(), second.Text)

	// Overlap never shifts offsets: reconstruction ignores prefixes.
	assert.Equal(t, doc.FullText(), Reconstruct(chunks))
}

func TestChunkDeterministic(t *testing.T) {
	chunker, err := New(50, 8)
	require.NoError(t, err)

	doc := testDocument(
		document.Section{Heading: "A", Body: "First sentence here. Second sentence here. Third sentence here."},
		document.Section{Heading: "B", Body: "Closing words of the agreement."},
	)

	a, err := chunker.Chunk(doc)
	require.NoError(t, err)
	b, err := chunker.Chunk(doc)
	require.NoError(t, err)

	assert.Equal(t, a, b)
	for _, c := range a {
		assert.Equal(t, doc.ID, c.DocumentID)
		assert.NotEqual(t, uuid.Nil, c.ID)
	}
}

func TestChunkEmptyDocument(t *testing.T) {
	chunker, err := New(100, 10)
	require.NoError(t, err)

	chunks, err := chunker.Chunk(testDocument(document.Section{Heading: "Empty"}))
	require.NoError(t, err)
	assert.Empty(t, chunks)
}

func TestChunkNeverSplitsRunes(t *testing.T) {
	// A budget of 4 bytes cannot hold two 3-byte CJK runes, and the second
	// section's separator shrinks its first budget below a single rune.
	chunker, err := New(4, 0)
	require.NoError(t, err)

	doc := testDocument(
		document.Section{Body: "第一條款"},
		document.Section{Body: "第二條款"},
	)

	chunks, err := chunker.Chunk(doc)
	require.NoError(t, err)
	require.NotEmpty(t, chunks)

	for _, c := range chunks {
		assert.True(t, utf8.ValidString(c.Text), "chunk %d is not valid UTF-8: %q", c.Ordinal, c.Text)
	}
	assert.Equal(t, doc.FullText(), Reconstruct(chunks))
}

func TestChunkHeadingOnlySectionsDoNotAffectOffsets(t *testing.T) {
	chunker, err := New(1000, 0)
	require.NoError(t, err)

	doc := testDocument(
		document.Section{Heading: "Part I"},
		document.Section{Heading: "Section 1", Body: "Body one."},
		document.Section{Heading: "Part II"},
		document.Section{Heading: "Section 2", Body: "Body two."},
	)

	chunks, err := chunker.Chunk(doc)
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	assert.Equal(t, "Body one.\n\nBody two.", chunks[0].Text)
	assert.Equal(t, []int{2, 4}, chunks[0].SectionRefs)
}
