// Package placeholder substitutes {{path}} tokens in short summary templates.
//
// Only tokens of the form {{segment(.segment)*}} are recognised, where a
// segment is a run of ASCII letters, digits or underscores. Anything else,
// including tokens whose path does not resolve, is copied through verbatim.
package placeholder

import (
	"strings"

	"github.com/fastygo/notifyagg/pkg/fieldpath"
)

const (
	openDelim  = "{{"
	closeDelim = "}}"
)

// Render replaces every recognised token with the text of the value it
// resolves to in ctx.
func Render(tmpl string, ctx fieldpath.Value) string {
	if !strings.Contains(tmpl, openDelim) {
		return tmpl
	}

	var b strings.Builder
	b.Grow(len(tmpl))

	rest := tmpl
	for {
		start := strings.Index(rest, openDelim)
		if start < 0 {
			b.WriteString(rest)
			return b.String()
		}
		b.WriteString(rest[:start])
		rest = rest[start:]

		end := strings.Index(rest[len(openDelim):], closeDelim)
		if end < 0 {
			b.WriteString(rest)
			return b.String()
		}
		token := rest[:len(openDelim)+end+len(closeDelim)]
		path := token[len(openDelim) : len(token)-len(closeDelim)]

		// A malformed span may still contain a real token; rescan after the delimiter.
		if !validPath(path) {
			b.WriteString(openDelim)
			rest = rest[len(openDelim):]
			continue
		}
		if text, ok := fieldpath.ResolveText(ctx, path); ok {
			b.WriteString(text)
		} else {
			b.WriteString(token)
		}
		rest = rest[len(token):]
	}
}

// Tokens lists the paths referenced by well-formed tokens in tmpl, in order.
func Tokens(tmpl string) []string {
	var paths []string
	rest := tmpl
	for {
		start := strings.Index(rest, openDelim)
		if start < 0 {
			return paths
		}
		rest = rest[start+len(openDelim):]
		end := strings.Index(rest, closeDelim)
		if end < 0 {
			return paths
		}
		path := rest[:end]
		if !validPath(path) {
			continue
		}
		paths = append(paths, path)
		rest = rest[end+len(closeDelim):]
	}
}

func validPath(path string) bool {
	if path == "" {
		return false
	}
	for _, segment := range strings.Split(path, ".") {
		if segment == "" {
			return false
		}
		for i := 0; i < len(segment); i++ {
			c := segment[i]
			switch {
			case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9', c == '_':
			default:
				return false
			}
		}
	}
	return true
}
