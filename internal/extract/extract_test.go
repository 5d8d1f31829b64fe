package extract

import (
	"strings"
	"testing"
	"unicode/utf8"
)

func TestThreadTextGmail(t *testing.T) {
	html := `<html><body>
		<div role="navigation">Inbox Starred Sent</div>
		<div role="listitem">
			<div class="a3s">Hi team, the deploy is scheduled for Friday afternoon. Please hold off on merging anything risky until then.</div>
		</div>
		<div role="listitem">
			<div class="a3s">Sounds good, I will wait until Monday with the refactor branch.</div>
		</div>
	</body></html>`

	got := ThreadText(html)
	if !strings.Contains(got, "deploy is scheduled for Friday") {
		t.Errorf("missing first message: %q", got)
	}
	if !strings.Contains(got, "wait until Monday") {
		t.Errorf("missing second message: %q", got)
	}
	if strings.Contains(got, "Inbox Starred") {
		t.Errorf("navigation chrome leaked into context: %q", got)
	}
}

func TestThreadTextOutlook(t *testing.T) {
	html := `<html><body>
		<div role="document">Hello, just checking whether the contract draft from last week is ready for review. Thanks, Dana</div>
	</body></html>`

	got := ThreadText(html)
	if !strings.Contains(got, "contract draft from last week") {
		t.Errorf("ThreadText = %q", got)
	}
}

func TestThreadTextSkipsTinyMatches(t *testing.T) {
	// A matching selector whose text is below the useful threshold must
	// not win over a later rule with real content.
	html := `<html><body>
		<div class="a3s">Re:</div>
		<div role="document">The full message body lives here and is comfortably longer than the threshold.</div>
	</body></html>`

	got := ThreadText(html)
	if !strings.Contains(got, "full message body lives here") {
		t.Errorf("ThreadText = %q, tiny gmail match should have been skipped", got)
	}
}

func TestThreadTextReadabilityFallback(t *testing.T) {
	// No provider structure at all; readability should still find the
	// article text.
	html := `<html><head><title>Note</title></head><body>
		<article><p>This message was written on a site with no recognizable webmail markup.
		It still contains enough prose for the generic extractor to pick up and normalize
		into a usable compose context for the reply service.</p></article>
	</body></html>`

	got := ThreadText(html)
	if !strings.Contains(got, "no recognizable webmail markup") {
		t.Errorf("ThreadText = %q", got)
	}
}

func TestThreadTextEmpty(t *testing.T) {
	if got := ThreadText(""); got != "" {
		t.Errorf("ThreadText(\"\") = %q, want empty", got)
	}
}

func TestThreadTextClipped(t *testing.T) {
	long := strings.Repeat("All work and no play makes for a dull inbox. ", 400)
	html := `<html><body><div class="a3s">` + long + `</div></body></html>`

	got := ThreadText(html)
	if len(got) > maxTextLen {
		t.Errorf("len = %d, want <= %d", len(got), maxTextLen)
	}
	if len(got) < maxTextLen/2 {
		t.Errorf("len = %d, clipped far too aggressively", len(got))
	}
}

func TestClipKeepsRuneBoundary(t *testing.T) {
	// 8000 is not a multiple of three, so a run of three-byte runes puts a
	// rune straddling the cap; the clip must back off to a whole rune.
	long := strings.Repeat("€", 4000)

	got := clip(long)
	if len(got) > maxTextLen {
		t.Errorf("len = %d, want <= %d", len(got), maxTextLen)
	}
	if !utf8.ValidString(got) {
		t.Error("clip produced invalid UTF-8")
	}
	if want := maxTextLen - maxTextLen%3; len(got) != want {
		t.Errorf("len = %d, want %d", len(got), want)
	}
}

func TestNormalize(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"  hello   world  ", "hello world"},
		{"line one\n\n\nline   two", "line one\nline two"},
		{"\n\t \n", ""},
		{"already clean", "already clean"},
	}

	for _, tt := range tests {
		if got := normalize(tt.in); got != tt.want {
			t.Errorf("normalize(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
