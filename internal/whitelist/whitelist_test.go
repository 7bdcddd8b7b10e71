package whitelist

import (
	"testing"

	"go.uber.org/zap"
)

func TestIsTrusted(t *testing.T) {
	checker := NewChecker([]string{" Example.COM ", "corp.example.org"}, zap.NewNop())

	tests := []struct {
		from string
		want bool
	}{
		{"alice@example.com", true},
		{"alice@EXAMPLE.com", true},
		{"bob@corp.example.org", true},
		{"mallory@evil.example", false},
		{"sub.example.com is not listed@sub.example.com", false},
		{"not-an-address", false},
		{"", false},
	}

	for _, tt := range tests {
		if got := checker.IsTrusted(tt.from); got != tt.want {
			t.Errorf("IsTrusted(%q) = %v, want %v", tt.from, got, tt.want)
		}
	}
}

func TestIsTrustedEmptyList(t *testing.T) {
	checker := NewChecker(nil, zap.NewNop())
	if checker.IsTrusted("alice@example.com") {
		t.Error("empty trust list should trust nobody")
	}
}
