// Package format renders Telegram HTML parse mode fragments.
package format

import (
	"html"
	"strings"
)

// Escape makes arbitrary text safe for HTML parse mode.
func Escape(text string) string {
	return html.EscapeString(text)
}

// Bold wraps escaped text in <b>.
func Bold(text string) string {
	return "<b>" + Escape(text) + "</b>"
}

// Italic wraps escaped text in <i>.
func Italic(text string) string {
	return "<i>" + Escape(text) + "</i>"
}

// Link renders an anchor; href is attribute-escaped.
func Link(href, text string) string {
	return `<a href="` + html.EscapeString(href) + `">` + Escape(text) + "</a>"
}

// Lines joins non-empty parts with newlines.
func Lines(parts ...string) string {
	out := parts[:0:0]
	for _, p := range parts {
		if strings.TrimSpace(p) != "" {
			out = append(out, p)
		}
	}
	return strings.Join(out, "\n")
}

// Paragraphs joins non-empty parts with blank lines.
func Paragraphs(parts ...string) string {
	out := parts[:0:0]
	for _, p := range parts {
		if strings.TrimSpace(p) != "" {
			out = append(out, p)
		}
	}
	return strings.Join(out, "\n\n")
}
