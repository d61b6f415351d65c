// Package extract turns user-supplied document files into plain text ready
// for analysis. Plain text and Markdown pass through with line-ending
// normalization; HTML is reduced to its readable content.
package extract

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/net/html"
)

// Document is the extracted content of one input file.
type Document struct {
	Title string
	Text  string
}

// ErrUnsupportedFormat marks a file extension FromFile does not handle.
var ErrUnsupportedFormat = errors.New("unsupported document format")

// ExtractionError reports a file that could not be turned into text. The
// message names the file so it can be shown next to the input control, and
// callers keep whatever text they already hold.
type ExtractionError struct {
	Path string
	Err  error
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("could not extract text from %q: %v", e.Path, e.Err)
}

func (e *ExtractionError) Unwrap() error { return e.Err }

// FromFile reads path and extracts its text based on the file extension.
// Supported: .txt, .text, .md, .markdown, .html, .htm. Any failure comes
// back as an *ExtractionError.
func FromFile(path string) (Document, error) {
	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".txt", ".text", ".md", ".markdown", ".html", ".htm":
	default:
		return Document{}, &ExtractionError{Path: path, Err: fmt.Errorf("%w %q", ErrUnsupportedFormat, ext)}
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return Document{}, &ExtractionError{Path: path, Err: err}
	}

	var doc Document
	switch ext {
	case ".html", ".htm":
		doc = FromHTML(raw)
		if strings.TrimSpace(doc.Text) == "" {
			return Document{}, &ExtractionError{Path: path, Err: errors.New("no readable text in document")}
		}
	default:
		doc = Document{Text: normalizeText(raw)}
		if ext == ".md" || ext == ".markdown" {
			doc.Title = headingTitle(doc.Text)
		}
	}
	if doc.Title == "" {
		doc.Title = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	return doc, nil
}

// FromHTML reduces an HTML document to readable text. It prefers <main> or
// <article> over the whole <body>, keeps headings, paragraphs, list items
// and pre/code content, and drops script, style and navigation chrome.
func FromHTML(input []byte) Document {
	root, err := html.Parse(bytes.NewReader(input))
	if err != nil || root == nil {
		return Document{}
	}
	doc := Document{Title: strings.TrimSpace(pageTitle(root))}

	content := firstElement(root, "main")
	if content == nil {
		content = firstElement(root, "article")
	}
	if content == nil {
		content = firstElement(root, "body")
	}
	if content == nil {
		return doc
	}

	var b strings.Builder
	walkText(&b, content, false)
	doc.Text = normalizeLines(b.String())
	return doc
}

var skipElements = map[string]bool{
	"script":   true,
	"style":    true,
	"noscript": true,
	"template": true,
	"nav":      true,
	"header":   true,
	"footer":   true,
	"aside":    true,
	"iframe":   true,
}

func walkText(b *strings.Builder, n *html.Node, pre bool) {
	switch n.Type {
	case html.ElementNode:
		name := strings.ToLower(n.Data)
		if skipElements[name] {
			return
		}
		switch name {
		case "pre", "code":
			pre = true
		case "br", "hr":
			b.WriteByte('\n')
		case "p", "h1", "h2", "h3", "h4", "h5", "h6", "li", "ul", "ol", "blockquote", "tr":
			b.WriteByte('\n')
		}
	case html.TextNode:
		data := n.Data
		if !pre {
			data = strings.ReplaceAll(data, "\t", " ")
			data = strings.ReplaceAll(data, "\r", " ")
		}
		b.WriteString(data)
	}

	for c := n.FirstChild; c != nil; c = c.NextSibling {
		walkText(b, c, pre)
	}

	if n.Type == html.ElementNode {
		switch strings.ToLower(n.Data) {
		case "p", "h1", "h2", "h3", "h4", "h5", "h6", "blockquote":
			b.WriteString("\n\n")
		case "li", "tr", "pre", "code":
			b.WriteByte('\n')
		}
	}
}

func pageTitle(root *html.Node) string {
	head := firstElement(root, "head")
	if head == nil {
		return ""
	}
	title := firstElement(head, "title")
	if title == nil || title.FirstChild == nil {
		return ""
	}
	return title.FirstChild.Data
}

func firstElement(n *html.Node, tag string) *html.Node {
	if n.Type == html.ElementNode && strings.EqualFold(n.Data, tag) {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := firstElement(c, tag); found != nil {
			return found
		}
	}
	return nil
}

// normalizeText strips a UTF-8 BOM and converts Windows and old Mac line
// endings to plain newlines. The text is otherwise left alone.
func normalizeText(raw []byte) string {
	raw = bytes.TrimPrefix(raw, []byte{0xEF, 0xBB, 0xBF})
	s := strings.ReplaceAll(string(raw), "\r\n", "\n")
	return strings.ReplaceAll(s, "\r", "\n")
}

// headingTitle returns the first ATX heading of a Markdown document, if the
// document opens with one.
func headingTitle(text string) string {
	for _, line := range strings.Split(text, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}
		if strings.HasPrefix(trimmed, "# ") {
			return strings.TrimSpace(strings.TrimPrefix(trimmed, "# "))
		}
		return ""
	}
	return ""
}

// normalizeLines trims each line, collapses internal whitespace runs and
// keeps at most one blank line between blocks.
func normalizeLines(s string) string {
	lines := strings.Split(s, "\n")
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			if len(out) == 0 || out[len(out)-1] == "" {
				continue
			}
			out = append(out, "")
			continue
		}
		out = append(out, strings.Join(strings.Fields(trimmed), " "))
	}
	for len(out) > 0 && out[len(out)-1] == "" {
		out = out[:len(out)-1]
	}
	return strings.Join(out, "\n")
}
