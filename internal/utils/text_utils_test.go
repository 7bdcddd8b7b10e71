package utils

import (
	"strings"
	"testing"
	"unicode/utf8"

	"go.uber.org/zap"
)

func TestCleanHeader(t *testing.T) {
	tp := NewTextProcessor(zap.NewNop())

	tests := []struct {
		name string
		in   string
		want string
	}{
		{"trims whitespace", "  hello  ", "hello"},
		{"strips control characters", "he\x00llo\x1b", "hello"},
		{"nfkc normalizes compatibility forms", "ｆｕｌｌｗｉｄｔｈ", "fullwidth"},
		{"empty input", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tp.CleanHeader(tt.in); got != tt.want {
				t.Errorf("CleanHeader(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestCleanBody(t *testing.T) {
	tp := NewTextProcessor(zap.NewNop())

	tests := []struct {
		name string
		in   string
		want string
	}{
		{"collapses excessive newlines", "a\n\n\n\n\nb", "a\n\nb"},
		{"trims trailing spaces per line", "a   \nb\t\nc", "a\nb\nc"},
		{"strips control characters", "a\x00b", "ab"},
		{"trims surrounding whitespace", "\n\n  body  \n\n", "body"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tp.CleanBody(tt.in); got != tt.want {
				t.Errorf("CleanBody(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestClip(t *testing.T) {
	tp := NewTextProcessor(zap.NewNop())

	if got := tp.Clip("hello", 10); got != "hello" {
		t.Errorf("Clip under limit = %q", got)
	}
	if got := tp.Clip("hello", 3); got != "hel" {
		t.Errorf("Clip = %q, want %q", got, "hel")
	}

	// Never cut through a multi-byte rune.
	got := tp.Clip("héllo", 2)
	if !utf8.ValidString(got) {
		t.Errorf("Clip produced invalid UTF-8: %q", got)
	}
	if got != "h" {
		t.Errorf("Clip = %q, want %q", got, "h")
	}

	if got := tp.Clip("hello", 0); got != "hello" {
		t.Errorf("Clip with zero max = %q, want input unchanged", got)
	}
}

func TestTruncateTextAddsMarker(t *testing.T) {
	tp := NewTextProcessor(zap.NewNop())

	long := strings.Repeat("x", 100)
	got := tp.TruncateText(long, 10)
	if !strings.HasPrefix(got, "xxxxxxxxxx") {
		t.Errorf("TruncateText = %q", got)
	}
	if !strings.Contains(got, "Content truncated") {
		t.Errorf("TruncateText missing marker: %q", got)
	}

	if got := tp.TruncateText("short", 10); got != "short" {
		t.Errorf("TruncateText under limit = %q", got)
	}
}

func TestToValidUTF8(t *testing.T) {
	tp := NewTextProcessor(zap.NewNop())

	if got := tp.ToValidUTF8("valid"); got != "valid" {
		t.Errorf("ToValidUTF8 = %q", got)
	}

	got := tp.ToValidUTF8("bad\xffbyte")
	if !utf8.ValidString(got) {
		t.Errorf("ToValidUTF8 produced invalid UTF-8: %q", got)
	}
	if !strings.Contains(got, "bad") || !strings.Contains(got, "byte") {
		t.Errorf("ToValidUTF8 dropped valid content: %q", got)
	}
}
