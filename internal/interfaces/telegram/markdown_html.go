// Copyright 2026 Chatwork Authors
// SPDX-License-Identifier: Apache-2.0

package telegram

import (
	"bytes"
	"html"
	"strconv"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

// MarkdownToTelegramHTML converts Markdown to Telegram-safe HTML.
// Telegram accepts a small tag set: <b>, <i>, <s>, <code>, <pre>,
// <a href="">. Rendering through the AST guarantees well-formed tags,
// which raw Markdown parse_mode does not.
func MarkdownToTelegramHTML(markdown string) string {
	if markdown == "" {
		return ""
	}

	src := []byte(markdown)
	doc := goldmark.New().Parser().Parse(text.NewReader(src))

	var buf bytes.Buffer
	r := &htmlRenderer{src: src}
	r.renderChildren(&buf, doc)

	return strings.TrimRight(buf.String(), "\n")
}

type htmlRenderer struct {
	src []byte
}

func (r *htmlRenderer) renderChildren(w *bytes.Buffer, node ast.Node) {
	for child := node.FirstChild(); child != nil; child = child.NextSibling() {
		r.renderNode(w, child)
	}
}

func (r *htmlRenderer) renderNode(w *bytes.Buffer, node ast.Node) {
	switch n := node.(type) {
	case *ast.Paragraph:
		r.renderChildren(w, n)
		w.WriteString("\n\n")

	case *ast.Heading:
		// No heading tags in Telegram, bold stands in.
		w.WriteString("<b>")
		r.renderChildren(w, n)
		w.WriteString("</b>\n\n")

	case *ast.ThematicBreak:
		w.WriteString("———\n\n")

	case *ast.Blockquote:
		var inner bytes.Buffer
		r.renderChildren(&inner, n)
		for _, line := range strings.Split(strings.TrimRight(inner.String(), "\n"), "\n") {
			w.WriteString("▎")
			w.WriteString(line)
			w.WriteString("\n")
		}
		w.WriteString("\n")

	case *ast.FencedCodeBlock:
		lang := string(n.Language(r.src))
		if lang != "" {
			w.WriteString(`<pre><code class="language-`)
			w.WriteString(html.EscapeString(lang))
			w.WriteString(`">`)
		} else {
			w.WriteString("<pre><code>")
		}
		r.writeLines(w, n.Lines())
		w.WriteString("</code></pre>\n\n")

	case *ast.CodeBlock:
		w.WriteString("<pre><code>")
		r.writeLines(w, n.Lines())
		w.WriteString("</code></pre>\n\n")

	case *ast.List:
		r.renderList(w, n)

	case *ast.ListItem:
		r.renderChildren(w, n)

	case *ast.Text:
		w.WriteString(html.EscapeString(string(n.Segment.Value(r.src))))
		if n.SoftLineBreak() || n.HardLineBreak() {
			w.WriteString("\n")
		}

	case *ast.String:
		w.WriteString(html.EscapeString(string(n.Value)))

	case *ast.CodeSpan:
		w.WriteString("<code>")
		r.renderPlainText(w, n)
		w.WriteString("</code>")

	case *ast.Emphasis:
		tag := "i"
		if n.Level == 2 {
			tag = "b"
		}
		w.WriteString("<" + tag + ">")
		r.renderChildren(w, n)
		w.WriteString("</" + tag + ">")

	case *ast.Link:
		w.WriteString(`<a href="`)
		w.WriteString(html.EscapeString(string(n.Destination)))
		w.WriteString(`">`)
		r.renderChildren(w, n)
		w.WriteString("</a>")

	case *ast.AutoLink:
		url := string(n.URL(r.src))
		w.WriteString(`<a href="`)
		w.WriteString(html.EscapeString(url))
		w.WriteString(`">`)
		w.WriteString(html.EscapeString(url))
		w.WriteString("</a>")

	case *ast.Image:
		// No inline images in Telegram HTML, show the reference.
		w.WriteString("[image: ")
		w.WriteString(html.EscapeString(string(n.Destination)))
		w.WriteString("]")

	case *ast.RawHTML:
		for i := 0; i < n.Segments.Len(); i++ {
			seg := n.Segments.At(i)
			w.Write(seg.Value(r.src))
		}

	case *ast.HTMLBlock:
		r.writeRawLines(w, n.Lines())
		w.WriteString("\n")

	default:
		r.renderChildren(w, node)
	}
}

func (r *htmlRenderer) writeLines(w *bytes.Buffer, lines *text.Segments) {
	for i := 0; i < lines.Len(); i++ {
		line := lines.At(i)
		w.WriteString(html.EscapeString(string(line.Value(r.src))))
	}
}

func (r *htmlRenderer) writeRawLines(w *bytes.Buffer, lines *text.Segments) {
	for i := 0; i < lines.Len(); i++ {
		line := lines.At(i)
		w.Write(line.Value(r.src))
	}
}

func (r *htmlRenderer) renderPlainText(w *bytes.Buffer, node ast.Node) {
	for child := node.FirstChild(); child != nil; child = child.NextSibling() {
		if t, ok := child.(*ast.Text); ok {
			w.WriteString(html.EscapeString(string(t.Segment.Value(r.src))))
		} else {
			r.renderPlainText(w, child)
		}
	}
}

func (r *htmlRenderer) renderList(w *bytes.Buffer, list *ast.List) {
	idx := list.Start
	for child := list.FirstChild(); child != nil; child = child.NextSibling() {
		if list.IsOrdered() {
			w.WriteString(strconv.Itoa(idx))
			w.WriteString(". ")
			idx++
		} else {
			w.WriteString("• ")
		}
		var itemBuf bytes.Buffer
		r.renderChildren(&itemBuf, child)
		for i, line := range strings.Split(strings.TrimRight(itemBuf.String(), "\n"), "\n") {
			if i > 0 {
				w.WriteString("\n  ")
			}
			w.WriteString(line)
		}
		w.WriteString("\n")
	}
	w.WriteString("\n")
}
