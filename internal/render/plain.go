package render

import (
	"html"
	"strings"
)

// Renderer turns entry text into HTML for the given output format. It must
// be deterministic: the cache may keep whichever of two concurrent renders of
// the same key finishes last.
type Renderer func(text, ext string) (string, error)

// Plain renders text escaped inside a pre block, whatever the format. It is
// the fallback when no highlighter is wired in.
func Plain(text, ext string) (string, error) {
	var b strings.Builder
	b.Grow(len(text) + 64)
	b.WriteString(`<pre class="`)
	b.WriteString(html.EscapeString(ext))
	b.WriteString(`">`)
	b.WriteString(html.EscapeString(text))
	b.WriteString(`</pre>`)
	return b.String(), nil
}
