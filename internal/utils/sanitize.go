// internal/utils/sanitize.go
package utils

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
)

var (
	strictPolicy = bluemonday.StrictPolicy()
	ugcPolicy    = bluemonday.UGCPolicy()
	markdown     = goldmark.New(goldmark.WithExtensions(extension.GFM))
)

// SanitizeText strips every tag from user input and returns plain, trimmed text.
func SanitizeText(s string) string {
	return strings.TrimSpace(html.UnescapeString(strictPolicy.Sanitize(s)))
}

// SanitizeFields applies SanitizeText to each pointed-to string.
func SanitizeFields(fields ...*string) {
	for _, f := range fields {
		if f != nil {
			*f = SanitizeText(*f)
		}
	}
}

// RenderMarkdown converts markdown to HTML that is safe to embed in pages and emails.
func RenderMarkdown(src string) string {
	if strings.TrimSpace(src) == "" {
		return ""
	}

	var buf strings.Builder
	if err := markdown.Convert([]byte(src), &buf); err != nil {
		return html.EscapeString(src)
	}

	return ugcPolicy.Sanitize(buf.String())
}
