package document

import (
	"archive/zip"
	"bytes"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFormat(t *testing.T) {
	tests := []struct {
		in   string
		want Format
	}{
		{"pdf", FormatPDF},
		{".PDF", FormatPDF},
		{"docx", FormatDOCX},
		{"doc", FormatDOCX},
		{"txt", FormatText},
		{"xml", FormatXML},
	}
	for _, tt := range tests {
		got, err := ParseFormat(tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got)
	}

	_, err := ParseFormat("csv")
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
}

func TestNormalizeText(t *testing.T) {
	n := New()

	doc, err := n.Normalize([]byte("  Seller shall deliver the goods.\n"), FormatText)
	require.NoError(t, err)

	assert.NotEqual(t, uuid.Nil, doc.ID)
	assert.Equal(t, FormatText, doc.SourceFormat)
	assert.False(t, doc.Partial)
	require.Len(t, doc.Sections, 1)
	assert.Equal(t, "Seller shall deliver the goods.", doc.Sections[0].Body)
	assert.Equal(t, 5, doc.WordCount)
	assert.False(t, doc.CreatedAt.IsZero())
}

func TestNormalizeEmptyInput(t *testing.T) {
	n := New()

	_, err := n.Normalize(nil, FormatText)
	assert.ErrorIs(t, err, ErrMalformedInput)

	_, err = n.Normalize([]byte("   \n\t"), FormatText)
	assert.ErrorIs(t, err, ErrMalformedInput)
}

func TestNormalizeUnknownFormat(t *testing.T) {
	n := New()

	_, err := n.Normalize([]byte("data"), Format("csv"))
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
}

func TestNormalizeLegalXML(t *testing.T) {
	raw := []byte(`<?xml version="1.0"?>
<akomaNtoso>
  <act>
    <meta>
      <identification>
        <FRBRWork>
          <FRBRthis value="/hk/cap622"/>
          <FRBRdate date="2014-03-03"/>
        </FRBRWork>
        <docTitle>Companies Ordinance</docTitle>
        <docNumber>Cap. 622</docNumber>
      </identification>
    </meta>
    <body>
      <part>
        <num>Part 1</num>
        <heading>Preliminary</heading>
        <section>
          <num>1.</num>
          <heading>Short title</heading>
          <content><p>This Ordinance may be cited as the Companies Ordinance.</p></content>
        </section>
        <section>
          <num>2.</num>
          <heading>Interpretation</heading>
          <content><p>In this Ordinance, company means a body corporate.</p></content>
        </section>
      </part>
    </body>
  </act>
</akomaNtoso>`)

	doc, err := New().Normalize(raw, FormatXML)
	require.NoError(t, err)
	assert.False(t, doc.Partial)

	assert.Equal(t, "Companies Ordinance", doc.Metadata["doc_title"])
	assert.Equal(t, "Cap. 622", doc.Metadata["doc_number"])
	assert.Equal(t, "/hk/cap622", doc.Metadata["frbrthis"])
	assert.Equal(t, "2014-03-03", doc.Metadata["frbrdate"])

	require.Len(t, doc.Sections, 3)
	assert.Equal(t, "Part 1 Preliminary", doc.Sections[0].Heading)
	assert.Empty(t, doc.Sections[0].Body)
	assert.Equal(t, 1, doc.Sections[0].Level)

	assert.Equal(t, "1. Short title", doc.Sections[1].Heading)
	assert.Equal(t, "This Ordinance may be cited as the Companies Ordinance.", doc.Sections[1].Body)
	assert.Equal(t, 2, doc.Sections[1].Level)

	assert.Equal(t, "2. Interpretation", doc.Sections[2].Heading)
	assert.Equal(t, "In this Ordinance, company means a body corporate.", doc.Sections[2].Body)

	for i, s := range doc.Sections {
		assert.Equal(t, i, s.Ordinal)
	}
}

func TestNormalizeGenericXML(t *testing.T) {
	raw := []byte(`<contract>
  <clause><title>Payment</title>Payment is due in thirty days.</clause>
  <clause>Either party may terminate.</clause>
</contract>`)

	doc, err := New().Normalize(raw, FormatXML)
	require.NoError(t, err)
	assert.False(t, doc.Partial)

	require.Len(t, doc.Sections, 2)
	assert.Contains(t, doc.Sections[0].Body, "Payment is due in thirty days.")
	assert.Equal(t, "Either party may terminate.", doc.Sections[1].Body)
}

func TestNormalizeMalformedXMLRecoversText(t *testing.T) {
	raw := []byte(`<doc><p>recovered clause text`)

	doc, err := New().Normalize(raw, FormatXML)
	require.NoError(t, err)

	assert.True(t, doc.Partial)
	require.Len(t, doc.Sections, 1)
	assert.Equal(t, "recovered clause text", doc.Sections[0].Body)
}

func TestNormalizeXMLWithoutText(t *testing.T) {
	_, err := New().Normalize([]byte(`<doc></doc>`), FormatXML)
	assert.ErrorIs(t, err, ErrMalformedInput)
}

func buildDOCX(t *testing.T, documentXML string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, err := zw.Create("word/document.xml")
	require.NoError(t, err)
	_, err = w.Write([]byte(documentXML))
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func TestNormalizeDOCX(t *testing.T) {
	raw := buildDOCX(t, `<?xml version="1.0"?>
<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main">
  <w:body>
    <w:p><w:pPr><w:pStyle w:val="Heading1"/></w:pPr><w:r><w:t>Definitions</w:t></w:r></w:p>
    <w:p><w:r><w:t>Seller means the selling party.</w:t></w:r></w:p>
    <w:tbl>
      <w:tr>
        <w:tc><w:p><w:r><w:t>Item</w:t></w:r></w:p></w:tc>
        <w:tc><w:p><w:r><w:t>Price</w:t></w:r></w:p></w:tc>
      </w:tr>
    </w:tbl>
    <w:p><w:pPr><w:pStyle w:val="Heading2"/></w:pPr><w:r><w:t>Term</w:t></w:r></w:p>
    <w:p><w:r><w:t>Two years.</w:t></w:r></w:p>
  </w:body>
</w:document>`)

	doc, err := New().Normalize(raw, FormatDOCX)
	require.NoError(t, err)
	assert.False(t, doc.Partial)

	require.Len(t, doc.Sections, 2)
	assert.Equal(t, "Definitions", doc.Sections[0].Heading)
	assert.Equal(t, 1, doc.Sections[0].Level)
	assert.Equal(t, "Seller means the selling party.\n\nItem | Price", doc.Sections[0].Body)

	assert.Equal(t, "Term", doc.Sections[1].Heading)
	assert.Equal(t, 2, doc.Sections[1].Level)
	assert.Equal(t, "Two years.", doc.Sections[1].Body)
}

func TestNormalizeDOCXLeadingTextWithoutHeading(t *testing.T) {
	raw := buildDOCX(t, `<w:document xmlns:w="x">
  <w:body>
    <w:p><w:r><w:t>Preamble text.</w:t></w:r></w:p>
    <w:p><w:pPr><w:pStyle w:val="Heading1"/></w:pPr><w:r><w:t>Clause 1</w:t></w:r></w:p>
    <w:p><w:r><w:t>Clause body.</w:t></w:r></w:p>
  </w:body>
</w:document>`)

	doc, err := New().Normalize(raw, FormatDOCX)
	require.NoError(t, err)

	require.Len(t, doc.Sections, 2)
	assert.Empty(t, doc.Sections[0].Heading)
	assert.Equal(t, "Preamble text.", doc.Sections[0].Body)
	assert.Equal(t, "Clause 1", doc.Sections[1].Heading)
}

func TestNormalizeDOCXNotAnArchive(t *testing.T) {
	_, err := New().Normalize([]byte("plain bytes, not a zip"), FormatDOCX)
	assert.ErrorIs(t, err, ErrMalformedInput)
}

func TestNormalizeDOCXMissingDocumentPart(t *testing.T) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, err := zw.Create("word/styles.xml")
	require.NoError(t, err)
	_, err = w.Write([]byte("<styles/>"))
	require.NoError(t, err)
	require.NoError(t, zw.Close())

	_, err = New().Normalize(buf.Bytes(), FormatDOCX)
	assert.ErrorIs(t, err, ErrMalformedInput)
}

func TestNormalizePDFGarbage(t *testing.T) {
	_, err := New().Normalize([]byte("not a pdf at all"), FormatPDF)
	assert.ErrorIs(t, err, ErrMalformedInput)
}
