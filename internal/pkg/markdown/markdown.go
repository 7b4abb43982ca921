package markdown

import (
	"bytes"
	"html/template"
	"strings"

	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	htmlrenderer "github.com/yuin/goldmark/renderer/html"
)

// Raw HTML in the source is dropped; goldmark only emits it with WithUnsafe.
var engine = goldmark.New(
	goldmark.WithExtensions(
		extension.GFM,
		extension.Linkify,
		extension.Typographer,
	),
	goldmark.WithRendererOptions(
		htmlrenderer.WithHardWraps(),
		htmlrenderer.WithXHTML(),
	),
)

// sanitizer hardens the rendered output: links get rel="nofollow" and
// anything outside the user-content allowlist is stripped.
var sanitizer = bluemonday.UGCPolicy()

// Render converts markdown to HTML. Blank input renders to "".
func Render(src string) string {
	text := strings.TrimSpace(src)
	if text == "" {
		return ""
	}
	var out bytes.Buffer
	if err := engine.Convert([]byte(text), &out); err != nil {
		return template.HTMLEscapeString(text)
	}
	return sanitizer.Sanitize(out.String())
}
