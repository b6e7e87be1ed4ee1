package bot

import (
	"strings"
	"testing"
	"unicode/utf8"
)

func TestTruncateName(t *testing.T) {
	if got := truncateName("short", 30); got != "short" {
		t.Fatalf("expected unchanged name, got %q", got)
	}

	long := strings.Repeat("a", 35)
	if got := truncateName(long, 30); len(got) != 30 {
		t.Fatalf("expected 30 bytes, got %d", len(got))
	}

	cyrillic := strings.Repeat("ж", 35)
	got := truncateName(cyrillic, 30)
	if utf8.RuneCountInString(got) != 30 {
		t.Fatalf("expected 30 runes, got %d", utf8.RuneCountInString(got))
	}
	if !utf8.ValidString(got) {
		t.Fatalf("truncation produced invalid UTF-8: %q", got)
	}
}
