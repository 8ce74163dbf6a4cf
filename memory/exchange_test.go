package memory

import (
	"strings"
	"testing"
	"unicode/utf8"
)

func TestTruncate(t *testing.T) {
	if got := truncate("short", 100); got != "short" {
		t.Errorf("untruncated string changed: %q", got)
	}
	if got := truncate("a longer sentence", 10); got != "a longe..." {
		t.Errorf("got %q", got)
	}
	if got := truncate("anything", 2); got != "..." {
		t.Errorf("tiny budget: got %q", got)
	}
}

func TestTruncateKeepsRunesWhole(t *testing.T) {
	// "né" is 3 bytes; cutting at an arbitrary byte index would split
	// the é and leave invalid UTF-8 in the prompt.
	s := strings.Repeat("né", 20)
	for maxLen := 4; maxLen < len(s); maxLen++ {
		got := truncate(s, maxLen)
		if !utf8.ValidString(got) {
			t.Fatalf("maxLen=%d produced invalid UTF-8: %q", maxLen, got)
		}
		if len(got) > maxLen {
			t.Fatalf("maxLen=%d exceeded: %d bytes", maxLen, len(got))
		}
	}
}

func TestExchangeFormatValidUTF8(t *testing.T) {
	mem := NewExchangeMemory("user-1", "s1",
		strings.Repeat("café ", 50), strings.Repeat("naïve ", 50), "neutral")
	out := mem.Format(FormatContext{MaxLength: 100})
	if !utf8.ValidString(out) {
		t.Errorf("formatted exchange contains invalid UTF-8: %q", out)
	}
}
