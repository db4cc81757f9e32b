// Package richtext implements the minimal document tree used as the
// canonical content format for ticket messages and notes: a doc node
// containing paragraph blocks, each holding zero or more text runs.
package richtext

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Node type discriminators as stored in editor JSON.
const (
	TypeDoc       = "doc"
	TypeParagraph = "paragraph"
	TypeText      = "text"
)

// TextRun is a leaf node carrying literal text.
type TextRun struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// Paragraph is a block node. Runs is nil for an empty paragraph; the
// JSON form then omits the content key entirely, which is how the
// editor represents blank lines.
type Paragraph struct {
	Type string    `json:"type"`
	Runs []TextRun `json:"content,omitempty"`
}

// Document is the root node of a rich-text document.
type Document struct {
	Type   string      `json:"type"`
	Blocks []Paragraph `json:"content"`
}

// Empty returns the canonical empty document: exactly one paragraph
// with no runs. Editors compare against this sentinel to detect an
// untouched draft, so it must never be a zero-block document.
func Empty() Document {
	return Document{
		Type:   TypeDoc,
		Blocks: []Paragraph{{Type: TypeParagraph}},
	}
}

// IsEmpty reports whether doc is the canonical empty sentinel or
// otherwise contains no text at all.
func IsEmpty(doc Document) bool {
	for _, b := range doc.Blocks {
		for _, r := range b.Runs {
			if r.Text != "" {
				return false
			}
		}
	}
	return true
}

// FromPlainText converts plain text into a Document. Each line becomes
// one paragraph; non-empty lines get a single text run, empty lines
// become run-less paragraphs. Empty input yields the Empty sentinel.
func FromPlainText(text string) Document {
	if text == "" {
		return Empty()
	}

	lines := strings.Split(text, "\n")
	blocks := make([]Paragraph, len(lines))
	for i, line := range lines {
		p := Paragraph{Type: TypeParagraph}
		if line != "" {
			p.Runs = []TextRun{{Type: TypeText, Text: line}}
		}
		blocks[i] = p
	}

	return Document{Type: TypeDoc, Blocks: blocks}
}

// PlainText extracts the text of a Document, joining paragraphs with
// newlines. A paragraph with no runs contributes an empty line.
func PlainText(doc Document) string {
	parts := make([]string, len(doc.Blocks))
	for i, b := range doc.Blocks {
		var sb strings.Builder
		for _, r := range b.Runs {
			sb.WriteString(r.Text)
		}
		parts[i] = sb.String()
	}
	return strings.Join(parts, "\n")
}

// ToPlainText extracts plain text from whatever content shape a stored
// message body arrives in: a Document, a JSON-encoded document, or a
// legacy plain string. Anything that fails the shape check is stringified
// as-is. It never returns an error; callers treat message bodies as
// opaque until proven to be documents.
func ToPlainText(content any) string {
	switch v := content.(type) {
	case Document:
		return PlainText(v)
	case *Document:
		if v == nil {
			return ""
		}
		return PlainText(*v)
	case json.RawMessage:
		return fromJSON([]byte(v))
	case []byte:
		return fromJSON(v)
	case string:
		if doc, ok := tryParse([]byte(v)); ok {
			return PlainText(doc)
		}
		return v
	case nil:
		return ""
	default:
		return fmt.Sprint(v)
	}
}

func fromJSON(data []byte) string {
	if doc, ok := tryParse(data); ok {
		return PlainText(doc)
	}
	return string(data)
}

func tryParse(data []byte) (Document, bool) {
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return Document{}, false
	}
	if doc.Type != TypeDoc {
		return Document{}, false
	}
	return doc, true
}
