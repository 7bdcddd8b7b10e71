package filter

import (
	"strings"
	"testing"

	"github.com/mikey/phishing-analyzer/internal/core"
)

func TestEvidenceSummary(t *testing.T) {
	tests := []struct {
		name      string
		detection *core.DetectionResult
		want      string
	}{
		{
			"no evidence",
			&core.DetectionResult{},
			"no rules fired",
		},
		{
			"joins rule ids",
			&core.DetectionResult{Evidence: []core.Evidence{
				{RuleID: "AUTH_FAIL_HINTS"},
				{RuleID: "URL_SHORTENER"},
			}},
			"AUTH_FAIL_HINTS, URL_SHORTENER",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := evidenceSummary(tt.detection); got != tt.want {
				t.Errorf("evidenceSummary() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestStampHeaders(t *testing.T) {
	f := NewPostfixFilter(nil, nil, ":10025", false,
		"X-Phishing-Score", "X-Phishing-Label", "X-Phishing-Reason",
		"127.0.0.1", 10026, true, "[**PHISHING**] ", true)
	s := &smtpSession{filter: f}

	raw := []byte("From: a@example.com\r\n" +
		"Subject: Invoice attached\r\n" +
		"\r\n" +
		"body line one\r\n")
	detection := &core.DetectionResult{
		Score: 65,
		Label: core.LabelPhishing,
		Evidence: []core.Evidence{
			{RuleID: "ATTACHMENT_KEYWORDS"},
		},
	}

	out := string(s.stampHeaders(raw, detection, nil, true))

	for _, want := range []string{
		"X-Phishing-Score: 65\r\n",
		"X-Phishing-Label: Phishing\r\n",
		"X-Phishing-Reason: ATTACHMENT_KEYWORDS\r\n",
		"Subject: [**PHISHING**] Invoice attached\r\n",
		"body line one",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "Subject: Invoice attached\r\n") {
		t.Error("original subject kept alongside rewritten one")
	}
}

func TestStampHeadersSafeMessageKeepsSubject(t *testing.T) {
	f := NewPostfixFilter(nil, nil, ":10025", false,
		"X-Phishing-Score", "X-Phishing-Label", "X-Phishing-Reason",
		"127.0.0.1", 10026, true, "", false)
	s := &smtpSession{filter: f}

	raw := []byte("From: a@example.com\r\nSubject: Hello\r\n\r\nhi\r\n")
	detection := &core.DetectionResult{Score: 0, Label: core.LabelSafe}

	out := string(s.stampHeaders(raw, detection, nil, false))

	if !strings.Contains(out, "Subject: Hello\r\n") {
		t.Errorf("subject altered:\n%s", out)
	}
	if !strings.Contains(out, "X-Phishing-Label: Safe\r\n") {
		t.Errorf("missing label header:\n%s", out)
	}
}
