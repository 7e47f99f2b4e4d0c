package document

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// docxParagraph is a flattened paragraph from word/document.xml. A heading
// level of zero means regular body text.
type docxParagraph struct {
	text         string
	headingLevel int
}

// normalizeDOCX extracts paragraphs, heading styles and table rows from the
// OOXML main document part. Table rows become pipe-separated lines, the same
// shape the rest of the pipeline expects from tabular content.
func (n *Normalizer) normalizeDOCX(raw []byte) (*Document, error) {
	zr, err := zip.NewReader(bytes.NewReader(raw), int64(len(raw)))
	if err != nil {
		return nil, fmt.Errorf("%w: not a docx archive: %v", ErrMalformedInput, err)
	}

	var docFile *zip.File
	for _, f := range zr.File {
		if f.Name == "word/document.xml" {
			docFile = f
			break
		}
	}
	if docFile == nil {
		return nil, fmt.Errorf("%w: word/document.xml missing", ErrMalformedInput)
	}

	rc, err := docFile.Open()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedInput, err)
	}
	defer rc.Close()

	paragraphs, partial := parseDOCXBody(rc)
	if len(paragraphs) == 0 {
		return nil, fmt.Errorf("%w: no extractable text in docx", ErrMalformedInput)
	}

	return &Document{
		Sections: sectionsFromParagraphs(paragraphs),
		Partial:  partial,
	}, nil
}

// parseDOCXBody walks the OOXML token stream. A decode error mid-stream stops
// parsing but keeps whatever was already collected (partial recovery).
func parseDOCXBody(r io.Reader) (paragraphs []docxParagraph, partial bool) {
	dec := xml.NewDecoder(r)
	dec.Strict = false

	var (
		para      strings.Builder
		paraLevel int
		inText    bool
		tableRow  []string
		cell      strings.Builder
		inCell    bool
	)

	flushPara := func() {
		text := collapseWhitespace(para.String())
		para.Reset()
		level := paraLevel
		paraLevel = 0
		if text == "" {
			return
		}
		if inCell {
			if cell.Len() > 0 {
				cell.WriteString(" ")
			}
			cell.WriteString(text)
			return
		}
		paragraphs = append(paragraphs, docxParagraph{text: text, headingLevel: level})
	}

	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			partial = len(paragraphs) > 0
			break
		}

		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "p":
				para.Reset()
				paraLevel = 0
			case "pStyle":
				paraLevel = headingLevelFromStyle(attrValue(t, "val"))
			case "t":
				inText = true
			case "tab":
				para.WriteString("\t")
			case "br", "cr":
				para.WriteString("\n")
			case "tr":
				tableRow = tableRow[:0]
			case "tc":
				inCell = true
				cell.Reset()
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "p":
				flushPara()
			case "t":
				inText = false
			case "tc":
				tableRow = append(tableRow, strings.TrimSpace(cell.String()))
				inCell = false
			case "tr":
				if row := strings.TrimSpace(strings.Join(tableRow, " | ")); row != "" {
					paragraphs = append(paragraphs, docxParagraph{text: row})
				}
			}
		case xml.CharData:
			if inText {
				para.Write(t)
			}
		}
	}

	return paragraphs, partial
}

// headingLevelFromStyle maps OOXML paragraph styles like "Heading1" to a
// nesting level. "Title" is treated as the top level.
func headingLevelFromStyle(style string) int {
	if style == "Title" {
		return 1
	}
	rest, ok := strings.CutPrefix(style, "Heading")
	if !ok {
		return 0
	}
	level, err := strconv.Atoi(rest)
	if err != nil || level < 1 {
		return 0
	}
	return level
}

func attrValue(el xml.StartElement, local string) string {
	for _, a := range el.Attr {
		if a.Name.Local == local {
			return a.Value
		}
	}
	return ""
}

// sectionsFromParagraphs groups paragraphs into sections at heading
// boundaries. Text before the first heading becomes an unnamed leading
// section.
func sectionsFromParagraphs(paragraphs []docxParagraph) []Section {
	var (
		sections []Section
		current  Section
		started  bool
	)
	flush := func() {
		if started && (current.Body != "" || current.Heading != "") {
			sections = append(sections, current)
		}
	}

	for _, p := range paragraphs {
		if p.headingLevel > 0 {
			flush()
			current = Section{Heading: p.text, Level: p.headingLevel}
			started = true
			continue
		}
		if !started {
			current = Section{}
			started = true
		}
		if current.Body != "" {
			current.Body += "\n\n"
		}
		current.Body += p.text
	}
	flush()
	return sections
}
