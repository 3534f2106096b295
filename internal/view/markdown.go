// Package view renders threads, interrupts and inboxes as HTML pages and
// as terminal text.
package view

import (
	"bytes"
	"html/template"
	"log/slog"
	"strings"

	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/renderer/html"
)

// markdown renders descriptions. Raw HTML in the source is dropped.
var markdown = goldmark.New(
	goldmark.WithExtensions(extension.GFM),
	goldmark.WithRendererOptions(html.WithHardWraps()),
)

// RenderMarkdown converts markdown to sanitized HTML.
func RenderMarkdown(src string) template.HTML {
	var buf bytes.Buffer
	if err := markdown.Convert([]byte(src), &buf); err != nil {
		slog.Warn("rendering markdown failed", "error", err)
		return template.HTML(template.HTMLEscapeString(src))
	}
	return template.HTML(buf.String())
}

// MarkdownText normalizes a description for the terminal: embedded HTML is
// converted to markdown.
func MarkdownText(src string) string {
	if !strings.Contains(src, "<") || !strings.Contains(src, ">") {
		return src
	}
	md, err := htmltomarkdown.ConvertString(src)
	if err != nil {
		slog.Debug("converting html description failed", "error", err)
		return src
	}
	return strings.TrimSpace(md)
}
