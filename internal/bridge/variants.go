package bridge

import (
	"strings"

	"draftling/internal/types"
)

// courtesyTail is appended to form the elongated variant.
const courtesyTail = "Please let me know if you'd like more details."

// fallbackItems is the fixed set shown whenever the service cannot produce
// a reply. Order matters; panels display items by ordinal.
var fallbackItems = [3]string{
	"Thank you for your email. I'll review this and get back to you shortly.",
	"Thanks for reaching out. Let me look into it and follow up soon.",
	"Got it, thank you. I'll reply with more details as soon as I can.",
}

// FallbackSet returns a fresh copy of the static fallback suggestion set.
func FallbackSet() types.SuggestionSet {
	return types.SuggestionSet{Items: []string{fallbackItems[0], fallbackItems[1], fallbackItems[2]}}
}

// Variants expands a single generated reply into the three display
// variants: the reply verbatim, a shortened version (up through the first
// sentence boundary) and an elongated version (reply plus a courtesy
// sentence). One round trip, three choices.
func Variants(reply string) []string {
	reply = strings.TrimSpace(reply)
	short := firstSentence(reply)
	long := reply + " " + courtesyTail
	return []string{reply, short, long}
}

// firstSentence returns s up to and including the first sentence-ending
// punctuation that is followed by whitespace or end of string. If no
// boundary is found the whole string is returned.
func firstSentence(s string) string {
	runes := []rune(s)
	for i, r := range runes {
		if r != '.' && r != '!' && r != '?' {
			continue
		}
		if i+1 == len(runes) {
			return s
		}
		next := runes[i+1]
		if next == ' ' || next == '\t' || next == '\n' {
			return string(runes[:i+1])
		}
	}
	return s
}
