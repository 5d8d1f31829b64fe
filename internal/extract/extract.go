// Package extract pulls the text of the conversation being replied to out
// of a page, so the reply service gets real context instead of raw HTML.
package extract

import (
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	readability "github.com/go-shiori/go-readability"
)

// maxTextLen caps the context sent to the service; the model's prompt
// window is small and old thread history adds nothing.
const maxTextLen = 8000

// minUseful is the shortest extraction worth preferring over the next
// rule; tiny matches are usually chrome, not message text.
const minUseful = 40

type providerRule struct {
	name     string
	selector string
}

// Provider-specific message-body selectors, tried in order before the
// generic readability fallback.
var providerRules = []providerRule{
	{"gmail", `div[role="listitem"] div.a3s`},
	{"gmail", `div.a3s`},
	{"outlook", `div[role="document"]`},
	{"generic", `[role="main"] p`},
}

// ThreadText extracts the conversation text from a page's HTML. Known
// webmail structures are tried first; anything else goes through
// readability. Returns "" when nothing useful is found, which callers
// treat as an empty compose context, not an error.
func ThreadText(html string) string {
	if doc, err := goquery.NewDocumentFromReader(strings.NewReader(html)); err == nil {
		for _, rule := range providerRules {
			text := collect(doc, rule.selector)
			if len(text) >= minUseful {
				return clip(text)
			}
		}
	}

	article, err := readability.FromReader(strings.NewReader(html), nil)
	if err != nil {
		return ""
	}
	return clip(normalize(article.TextContent))
}

// collect joins the trimmed text of all matches for one selector.
func collect(doc *goquery.Document, selector string) string {
	var parts []string
	doc.Find(selector).Each(func(_ int, sel *goquery.Selection) {
		if t := normalize(sel.Text()); t != "" {
			parts = append(parts, t)
		}
	})
	return strings.Join(parts, "\n\n")
}

// normalize collapses runs of whitespace within lines while keeping
// paragraph breaks readable.
func normalize(s string) string {
	lines := strings.Split(s, "\n")
	out := lines[:0]
	for _, line := range lines {
		line = strings.Join(strings.Fields(line), " ")
		if line != "" {
			out = append(out, line)
		}
	}
	return strings.TrimSpace(strings.Join(out, "\n"))
}

// clip truncates to the byte cap without splitting a multi-byte rune.
func clip(s string) string {
	if len(s) <= maxTextLen {
		return s
	}
	cut := maxTextLen
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}
