// Package htmlsanitize cleans user-authored rich text (post bodies,
// enquiry conclusions) before it is stored.
package htmlsanitize

import (
	"html/template"
	"strings"
	"sync"

	"github.com/microcosm-cc/bluemonday"
)

var (
	once   sync.Once
	rich   *bluemonday.Policy
	strict *bluemonday.Policy
)

func policies() (*bluemonday.Policy, *bluemonday.Policy) {
	once.Do(func() {
		rich = bluemonday.UGCPolicy()
		rich.AllowAttrs("class").OnElements("table")
		rich.AllowAttrs("colspan", "rowspan").Matching(bluemonday.Integer).OnElements("td", "th")
		strict = bluemonday.StrictPolicy()
	})
	return rich, strict
}

// Sanitize keeps formatting, lists, tables and safe links; scripts,
// event handlers and javascript: URLs are removed.
func Sanitize(s string) string {
	if s == "" {
		return ""
	}
	p, _ := policies()
	return strings.TrimSpace(p.Sanitize(s))
}

// SanitizeToHTML is Sanitize for direct use in html/template output.
func SanitizeToHTML(s string) template.HTML {
	return template.HTML(Sanitize(s)) // #nosec G203 -- sanitized above
}

// StripTags returns only the text content of s, for plain-text email
// and length checks.
func StripTags(s string) string {
	if s == "" {
		return ""
	}
	_, p := policies()
	return strings.TrimSpace(p.Sanitize(s))
}

// IsPlainText reports whether s carries no markup at all.
func IsPlainText(s string) bool {
	return !strings.ContainsAny(s, "<>")
}

// IsBlank reports whether s has no visible text once markup is removed.
func IsBlank(s string) bool {
	return strings.TrimSpace(strings.ReplaceAll(StripTags(s), "&nbsp;", "")) == ""
}
