package parser

import (
	"errors"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/mikey/phishing-analyzer/internal/utils"
	"go.uber.org/zap"
)

func newTestParser(t *testing.T, limits Limits) *Parser {
	t.Helper()
	return New(limits, utils.NewTextProcessor(zap.NewNop()), zap.NewNop())
}

func hasWarning(warnings []string, substr string) bool {
	for _, w := range warnings {
		if strings.Contains(w, substr) {
			return true
		}
	}
	return false
}

func TestParseSimpleMessage(t *testing.T) {
	raw := []byte("From: Alice Smith <Alice@Example.com>\r\n" +
		"To: bob@example.com\r\n" +
		"Subject: Lunch on Friday?\r\n" +
		"Date: Mon, 24 Aug 2026 10:00:00 +0000\r\n" +
		"Message-Id: <abc123@example.com>\r\n" +
		"\r\n" +
		"Hi Bob,\r\n" +
		"Menu is at https://example.com/menu.\r\n" +
		"Cheers, Alice\r\n")

	msg, err := newTestParser(t, DefaultLimits()).Parse(raw, "test")
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	if msg.Headers.FromAddress != "alice@example.com" {
		t.Errorf("FromAddress = %q, want lowercased address", msg.Headers.FromAddress)
	}
	if msg.Headers.FromDisplayName != "Alice Smith" {
		t.Errorf("FromDisplayName = %q", msg.Headers.FromDisplayName)
	}
	if msg.Headers.ToAddress != "bob@example.com" {
		t.Errorf("ToAddress = %q", msg.Headers.ToAddress)
	}
	if msg.Headers.Subject != "Lunch on Friday?" {
		t.Errorf("Subject = %q", msg.Headers.Subject)
	}
	if !strings.Contains(msg.TextBody, "Hi Bob,") {
		t.Errorf("TextBody missing greeting: %q", msg.TextBody)
	}
	if msg.RawSize != len(raw) {
		t.Errorf("RawSize = %d, want %d", msg.RawSize, len(raw))
	}

	if len(msg.URLs) != 1 {
		t.Fatalf("got %d URLs, want 1: %+v", len(msg.URLs), msg.URLs)
	}
	u := msg.URLs[0]
	if u.Domain != "example.com" {
		t.Errorf("URL domain = %q", u.Domain)
	}
	if u.Normalized != "https://example.com/menu" {
		t.Errorf("URL normalized = %q (trailing punctuation should be stripped)", u.Normalized)
	}
	if !strings.Contains(u.Context, "Menu is at") {
		t.Errorf("URL context = %q", u.Context)
	}
}

func TestParseEncodedHeaders(t *testing.T) {
	raw := []byte("From: =?UTF-8?B?UGF5UGFsIFN1cHBvcnQ=?= <support@evil.example>\r\n" +
		"Subject: =?iso-8859-1?Q?Caf=E9_meeting?=\r\n" +
		"\r\n" +
		"Body.\r\n")

	msg, err := newTestParser(t, DefaultLimits()).Parse(raw, "test")
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	if msg.Headers.FromDisplayName != "PayPal Support" {
		t.Errorf("FromDisplayName = %q, want decoded RFC 2047 value", msg.Headers.FromDisplayName)
	}
	if msg.Headers.Subject != "Café meeting" {
		t.Errorf("Subject = %q, want decoded latin-1 value", msg.Headers.Subject)
	}
}

func TestParseMultipartAlternative(t *testing.T) {
	raw := []byte("From: news@example.com\r\n" +
		"To: bob@example.com\r\n" +
		"Subject: Update\r\n" +
		"MIME-Version: 1.0\r\n" +
		"Content-Type: multipart/alternative; boundary=\"frontier\"\r\n" +
		"\r\n" +
		"--frontier\r\n" +
		"Content-Type: text/plain; charset=utf-8\r\n" +
		"\r\n" +
		"Plain text version.\r\n" +
		"--frontier\r\n" +
		"Content-Type: text/html; charset=utf-8\r\n" +
		"\r\n" +
		"<html><body><p>Click <a href=\"https://example.com/update\">here</a></p></body></html>\r\n" +
		"--frontier--\r\n")

	msg, err := newTestParser(t, DefaultLimits()).Parse(raw, "test")
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	if !strings.Contains(msg.TextBody, "Plain text version.") {
		t.Errorf("TextBody = %q", msg.TextBody)
	}
	if !strings.Contains(msg.HTMLBody, "<a href=") {
		t.Errorf("HTMLBody = %q", msg.HTMLBody)
	}
	if !strings.Contains(msg.HTMLRenderedAsText, "here (https://example.com/update)") {
		t.Errorf("HTMLRenderedAsText = %q, want link rendered as text (href)", msg.HTMLRenderedAsText)
	}

	// URL from the HTML surface must be extracted.
	found := false
	for _, u := range msg.URLs {
		if u.Normalized == "https://example.com/update" {
			found = true
		}
	}
	if !found {
		t.Errorf("URL from HTML not extracted: %+v", msg.URLs)
	}
}

func TestParseBase64Body(t *testing.T) {
	// "Please verify your account." in base64.
	raw := []byte("From: a@example.com\r\n" +
		"Content-Type: text/plain; charset=utf-8\r\n" +
		"Content-Transfer-Encoding: base64\r\n" +
		"\r\n" +
		"UGxlYXNlIHZlcmlmeSB5b3VyIGFjY291bnQu\r\n")

	msg, err := newTestParser(t, DefaultLimits()).Parse(raw, "test")
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if !strings.Contains(msg.TextBody, "Please verify your account.") {
		t.Errorf("TextBody = %q, want decoded base64 content", msg.TextBody)
	}
}

func TestParseTooLargeIsFatal(t *testing.T) {
	limits := DefaultLimits()
	limits.MaxRawSize = 64

	raw := []byte("From: a@example.com\r\n\r\n" + strings.Repeat("x", 128))
	_, err := newTestParser(t, limits).Parse(raw, "test")
	if !errors.Is(err, ErrTooLarge) {
		t.Fatalf("Parse() error = %v, want ErrTooLarge", err)
	}

	var pe *ParseError
	if !errors.As(err, &pe) {
		t.Fatalf("error is not a *ParseError: %v", err)
	}
	if pe.Label != "test" {
		t.Errorf("ParseError label = %q", pe.Label)
	}
}

func TestParseStructuralFailureIsFatal(t *testing.T) {
	for _, raw := range [][]byte{
		[]byte("this is not an email at all"),
		{},
	} {
		_, err := newTestParser(t, DefaultLimits()).Parse(raw, "test")
		if !errors.Is(err, ErrStructuralFailure) {
			t.Errorf("Parse(%q) error = %v, want ErrStructuralFailure", raw, err)
		}
	}
}

func TestParseReceivedCap(t *testing.T) {
	limits := DefaultLimits()
	limits.MaxReceived = 2

	var b strings.Builder
	b.WriteString("From: a@example.com\r\n")
	for i := 0; i < 5; i++ {
		b.WriteString("Received: from relay.example.com by mx.example.com; Mon, 24 Aug 2026 10:00:00 +0000\r\n")
	}
	b.WriteString("\r\nbody\r\n")

	msg, err := newTestParser(t, limits).Parse([]byte(b.String()), "test")
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if len(msg.Headers.Received) != 2 {
		t.Errorf("got %d Received lines, want 2", len(msg.Headers.Received))
	}
	if !hasWarning(msg.SecurityWarnings, "received headers capped") {
		t.Errorf("missing cap warning: %v", msg.SecurityWarnings)
	}
}

func TestParseOversizedBodyTruncates(t *testing.T) {
	limits := DefaultLimits()
	limits.MaxTextSize = 200

	raw := []byte("From: a@example.com\r\n\r\n" + strings.Repeat("padding words here ", 50))
	msg, err := newTestParser(t, limits).Parse(raw, "test")
	if err != nil {
		t.Fatalf("Parse() error = %v, truncation must not be fatal", err)
	}
	if len(msg.TextBody) > limits.MaxTextSize {
		t.Errorf("TextBody length %d exceeds cap %d", len(msg.TextBody), limits.MaxTextSize)
	}
	if !hasWarning(msg.SecurityWarnings, "truncated") {
		t.Errorf("missing truncation warning: %v", msg.SecurityWarnings)
	}
}

func TestParseOversizedPlainTextGetsFullBudget(t *testing.T) {
	limits := DefaultLimits()
	limits.MaxTextSize = 200

	// No HTML part, so the whole text budget belongs to the plain body.
	raw := []byte("From: a@example.com\r\n\r\n" + strings.Repeat("padding words here ", 50))
	msg, err := newTestParser(t, limits).Parse(raw, "test")
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if len(msg.TextBody) > limits.MaxTextSize {
		t.Errorf("TextBody length %d exceeds cap %d", len(msg.TextBody), limits.MaxTextSize)
	}
	if len(msg.TextBody) <= limits.MaxTextSize/2 {
		t.Errorf("TextBody length %d, want more than half the cap when HTML is empty", len(msg.TextBody))
	}
}

func TestParseTimeBudgetDegrades(t *testing.T) {
	limits := DefaultLimits()
	limits.TimeBudget = -time.Second // already spent

	raw := []byte("From: a@example.com\r\nSubject: hello\r\n\r\nBody with https://example.com/x\r\n")
	msg, err := newTestParser(t, limits).Parse(raw, "test")
	if err != nil {
		t.Fatalf("Parse() error = %v, budget exhaustion must not be fatal", err)
	}

	// Headers survive, enrichment phases are skipped with a warning.
	if msg.Headers.Subject != "hello" {
		t.Errorf("Subject = %q", msg.Headers.Subject)
	}
	if msg.TextBody != "" {
		t.Errorf("TextBody = %q, want skipped", msg.TextBody)
	}
	if len(msg.URLs) != 0 {
		t.Errorf("URLs = %+v, want none", msg.URLs)
	}
	if !hasWarning(msg.SecurityWarnings, "time budget exceeded") {
		t.Errorf("missing budget warning: %v", msg.SecurityWarnings)
	}
}

func TestParseUnknownCharsetDegrades(t *testing.T) {
	raw := []byte("From: a@example.com\r\n" +
		"Content-Type: text/plain; charset=not-a-charset\r\n" +
		"\r\n" +
		"readable content\r\n")

	msg, err := newTestParser(t, DefaultLimits()).Parse(raw, "test")
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if !strings.Contains(msg.TextBody, "readable content") {
		t.Errorf("TextBody = %q, want raw content kept", msg.TextBody)
	}
	if !hasWarning(msg.SecurityWarnings, "failed to decode part") {
		t.Errorf("missing charset warning: %v", msg.SecurityWarnings)
	}
}

func TestParseIsDeterministic(t *testing.T) {
	raw := []byte("From: PayPal Support <support@evil.example>\r\n" +
		"Reply-To: collector@elsewhere.example\r\n" +
		"Subject: Urgent: verify your account\r\n" +
		"Authentication-Results: mx.example.com; spf=fail\r\n" +
		"\r\n" +
		"Dear Customer, click https://bit.ly/3xy?utm_source=mail&id=7 now.\r\n")

	p := newTestParser(t, DefaultLimits())
	first, err := p.Parse(raw, "test")
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	second, err := p.Parse(raw, "test")
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	first.ParseDuration = 0
	second.ParseDuration = 0
	if !reflect.DeepEqual(first, second) {
		t.Errorf("parse not deterministic:\nfirst:  %+v\nsecond: %+v", first, second)
	}
}

func TestParseMissingHeadersAreEmpty(t *testing.T) {
	raw := []byte("From: a@example.com\r\n\r\nbody\r\n")
	msg, err := newTestParser(t, DefaultLimits()).Parse(raw, "test")
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if msg.Headers.ReplyTo != "" || msg.Headers.Subject != "" || msg.Headers.AuthenticationResults != "" {
		t.Errorf("missing headers should be empty strings: %+v", msg.Headers)
	}
	if len(msg.Headers.Received) != 0 {
		t.Errorf("Received = %v, want empty", msg.Headers.Received)
	}
}
