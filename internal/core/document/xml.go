package document

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"strings"
)

// xmlNode is a minimal element tree used for schema-aware extraction.
// Namespaces are dropped; legal XML dialects (Akoma Ntoso, HK e-Legislation)
// are matched on local names only.
type xmlNode struct {
	name     string
	attrs    map[string]string
	children []*xmlNode
	text     string
}

// metadataElements are the leaf metadata element names recognized inside a
// meta/identification block. Covers the HK e-Legislation doc* elements and
// Dublin Core fields.
var metadataElements = map[string]string{
	"docname":    "doc_name",
	"doctype":    "doc_type",
	"docnumber":  "doc_number",
	"docstatus":  "doc_status",
	"doctitle":   "doc_title",
	"identifier": "identifier",
	"date":       "effective_date",
	"subject":    "subject",
	"language":   "language",
	"publisher":  "publisher",
	"rights":     "rights",
	"country":    "jurisdiction",
}

// normalizeXML parses legal XML. It attempts schema-aware extraction first
// (FRBR/meta identification plus section/article elements), falls back to a
// generic walker that treats top-level repeating elements as sections, and
// finally to raw character-data extraction before failing only when no text
// exists at all.
func (n *Normalizer) normalizeXML(raw []byte) (*Document, error) {
	root, parseErr := parseXMLTree(raw)
	if parseErr == nil && root != nil {
		metadata := extractLegalMetadata(root)
		sections := extractLegalSections(root)
		if len(sections) == 0 {
			sections = genericSections(root)
		}
		if len(sections) > 0 {
			return &Document{
				Language: xmlLanguage(root, metadata),
				Metadata: metadata,
				Sections: sections,
			}, nil
		}
	}

	if parseErr != nil {
		n.logger.Warn("xml parse failed, recovering character data", "error", parseErr)
	}

	// Last resort: strip markup and keep whatever character data remains.
	text := stripMarkup(raw)
	if text == "" {
		return nil, fmt.Errorf("%w: no extractable text in xml", ErrMalformedInput)
	}
	return &Document{
		Sections: []Section{{Body: text}},
		Partial:  true,
	}, nil
}

// parseXMLTree decodes the document into an element tree, tolerating
// non-strict input.
func parseXMLTree(raw []byte) (*xmlNode, error) {
	dec := xml.NewDecoder(bytes.NewReader(raw))
	dec.Strict = false

	var (
		root  *xmlNode
		stack []*xmlNode
	)
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			// Keep a partially built tree only if the root element closed.
			if root != nil && len(stack) == 0 {
				break
			}
			return nil, err
		}

		switch t := tok.(type) {
		case xml.StartElement:
			node := &xmlNode{
				name:  strings.ToLower(t.Name.Local),
				attrs: make(map[string]string, len(t.Attr)),
			}
			for _, a := range t.Attr {
				node.attrs[strings.ToLower(a.Name.Local)] = a.Value
			}
			if len(stack) == 0 {
				if root != nil {
					return nil, fmt.Errorf("multiple root elements")
				}
				root = node
			} else {
				parent := stack[len(stack)-1]
				parent.children = append(parent.children, node)
			}
			stack = append(stack, node)
		case xml.EndElement:
			if len(stack) > 0 {
				stack = stack[:len(stack)-1]
			}
		case xml.CharData:
			if len(stack) > 0 {
				stack[len(stack)-1].text += string(t)
			}
		}
	}

	if root == nil {
		return nil, fmt.Errorf("no root element")
	}
	return root, nil
}

// flatText returns all character data beneath the node, whitespace-collapsed.
func (n *xmlNode) flatText() string {
	var sb strings.Builder
	n.appendText(&sb)
	return collapseWhitespace(sb.String())
}

func (n *xmlNode) appendText(sb *strings.Builder) {
	if t := strings.TrimSpace(n.text); t != "" {
		sb.WriteString(t)
		sb.WriteString(" ")
	}
	for _, c := range n.children {
		c.appendText(sb)
	}
}

// findFirst returns the first descendant (or the node itself) with one of
// the given local names, depth-first.
func (n *xmlNode) findFirst(names ...string) *xmlNode {
	for _, name := range names {
		if n.name == name {
			return n
		}
	}
	for _, c := range n.children {
		if found := c.findFirst(names...); found != nil {
			return found
		}
	}
	return nil
}

// child returns the first direct child with the given local name.
func (n *xmlNode) child(name string) *xmlNode {
	for _, c := range n.children {
		if c.name == name {
			return c
		}
	}
	return nil
}

// extractLegalMetadata pulls identification metadata out of a meta or
// identification block: HK e-Legislation doc* elements, Dublin Core leaves
// and Akoma Ntoso FRBR value attributes.
func extractLegalMetadata(root *xmlNode) map[string]string {
	metadata := map[string]string{}
	meta := root.findFirst("meta", "identification")
	if meta == nil {
		return metadata
	}

	var walk func(node *xmlNode)
	walk = func(node *xmlNode) {
		if key, ok := metadataElements[node.name]; ok {
			if value := node.flatText(); value != "" {
				metadata[key] = value
			}
		}
		if strings.HasPrefix(node.name, "frbr") {
			if value := node.attrs["value"]; value != "" {
				metadata[node.name] = value
			} else if value := node.attrs["date"]; value != "" {
				metadata[node.name] = value
			}
		}
		for _, c := range node.children {
			walk(c)
		}
	}
	walk(meta)
	return metadata
}

// extractLegalSections collects section/article/chapter elements in document
// order. Nested occurrences stay inside their ancestor's body so that each
// piece of text belongs to exactly one section.
func extractLegalSections(root *xmlNode) []Section {
	body := root.findFirst("main", "body", "act", "bill", "judgment")
	if body == nil {
		body = root
	}

	var sections []Section
	var walk func(node *xmlNode, level int)
	walk = func(node *xmlNode, level int) {
		for _, c := range node.children {
			switch c.name {
			case "chapter", "part":
				if heading := headingOf(c); heading != "" {
					// Containers contribute a heading-only section; their
					// children carry the text one level deeper.
					sections = append(sections, Section{Heading: heading, Level: level})
					walk(c, level+1)
					continue
				}
				walk(c, level)
			case "section", "article":
				sections = append(sections, Section{
					Heading: headingOf(c),
					Body:    bodyOf(c),
					Level:   level,
				})
			default:
				walk(c, level)
			}
		}
	}
	walk(body, 1)
	return sections
}

// headingOf combines a section's num and heading children.
func headingOf(node *xmlNode) string {
	var parts []string
	if num := node.child("num"); num != nil {
		if t := num.flatText(); t != "" {
			parts = append(parts, t)
		}
	}
	if heading := node.child("heading"); heading != nil {
		if t := heading.flatText(); t != "" {
			parts = append(parts, t)
		}
	}
	return strings.Join(parts, " ")
}

// bodyOf returns a section's text excluding its num/heading children.
func bodyOf(node *xmlNode) string {
	var sb strings.Builder
	if t := strings.TrimSpace(node.text); t != "" {
		sb.WriteString(t)
		sb.WriteString(" ")
	}
	for _, c := range node.children {
		if c.name == "num" || c.name == "heading" {
			continue
		}
		c.appendText(&sb)
	}
	return collapseWhitespace(sb.String())
}

// genericSections handles XML that matches no known legal schema: descend
// through single-child wrappers, then treat the repeating top-level elements
// as sections with markup stripped.
func genericSections(root *xmlNode) []Section {
	node := root
	for len(node.children) == 1 && strings.TrimSpace(node.text) == "" {
		node = node.children[0]
	}

	var sections []Section
	for _, c := range node.children {
		text := c.flatText()
		if text == "" {
			continue
		}
		sections = append(sections, Section{
			Heading: headingOf(c),
			Body:    text,
			Level:   1,
		})
	}
	if len(sections) == 0 {
		if text := node.flatText(); text != "" {
			sections = []Section{{Body: text}}
		}
	}
	return sections
}

func xmlLanguage(root *xmlNode, metadata map[string]string) string {
	if lang := metadata["language"]; lang != "" {
		return lang
	}
	return root.attrs["lang"]
}

// stripMarkup removes everything between angle brackets and collapses the
// remaining character data.
func stripMarkup(raw []byte) string {
	var (
		sb    strings.Builder
		inTag bool
	)
	for _, b := range raw {
		switch {
		case b == '<':
			inTag = true
			sb.WriteByte(' ')
		case b == '>':
			inTag = false
		case !inTag:
			sb.WriteByte(b)
		}
	}
	return collapseWhitespace(sb.String())
}
