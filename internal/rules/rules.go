package rules

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
	"unicode"

	"github.com/mikey/phishing-analyzer/internal/core"
)

// CheckFunc inspects a parsed message and returns evidence when the rule
// fires, nil otherwise. Checks never mutate the message.
type CheckFunc func(msg *core.ParsedMessage) *core.Evidence

// Rule is a named, fixed-weight predicate over a parsed message. Rule IDs
// are stable across versions; downstream consumers key on them.
type Rule struct {
	ID          string
	Description string
	Weight      int
	Check       CheckFunc
}

// Default rule weights, tuned heuristically and overridable through
// configuration.
const (
	WeightHeaderMismatch     = 15
	WeightReplyToMismatch    = 10
	WeightAuthFailHints      = 20
	WeightUrgentLanguage     = 10
	WeightURLShortener       = 10
	WeightSuspiciousTLDs     = 10
	WeightUnicodeSpoof       = 10
	WeightNoPersonalization  = 5
	WeightAttachmentKeywords = 5
)

// urlShorteners are domains of common link-shortening services.
var urlShorteners = map[string]struct{}{
	"bit.ly": {}, "tinyurl.com": {}, "t.co": {}, "goo.gl": {}, "ow.ly": {},
	"is.gd": {}, "buff.ly": {}, "adf.ly": {}, "short.link": {}, "tiny.cc": {},
	"rb.gy": {}, "cutt.ly": {}, "short.io": {}, "rebrandly.com": {}, "clck.ru": {},
}

// suspiciousTLDs are top-level domains with a high abuse rate.
var suspiciousTLDs = []string{
	".top", ".xyz", ".click", ".cam", ".zip", ".download",
	".work", ".men", ".date", ".racing", ".loan", ".science",
	".cf", ".tk", ".ml", ".ga", ".country", ".stream",
}

var urgentPatterns = []*regexp.Regexp{
	regexp.MustCompile(`\burgent\b`),
	regexp.MustCompile(`\bimmediate\s+action\b`),
	regexp.MustCompile(`\bexpires?\s+today\b`),
	regexp.MustCompile(`\bverify\s+your\s+account\b`),
	regexp.MustCompile(`\bsuspend(?:ed)?\s+account\b`),
	regexp.MustCompile(`\bact\s+now\b`),
	regexp.MustCompile(`\btime\s+sensitive\b`),
	regexp.MustCompile(`\blimited\s+time\b`),
	regexp.MustCompile(`\b24\s+hours?\b`),
	regexp.MustCompile(`\bexpir(?:e|ing)\s+soon\b`),
}

var genericGreetings = []*regexp.Regexp{
	regexp.MustCompile(`\bdear\s+(?:user|customer|client|member|sir|madam)\b`),
	regexp.MustCompile(`\bvalued\s+(?:customer|client|member)\b`),
	regexp.MustCompile(`\bhello\s+(?:user|customer|there)\b`),
	regexp.MustCompile(`\bgreetings?\s+(?:user|customer)\b`),
}

var attachmentKeywords = []string{
	"invoice", "payment", "receipt", "bill", "statement",
	"document", "attachment", "pdf", "download", "password",
}

var authFailPatterns = []*regexp.Regexp{
	regexp.MustCompile(`spf\s*=\s*(?:fail|softfail|none)`),
	regexp.MustCompile(`dkim\s*=\s*(?:fail|none)`),
	regexp.MustCompile(`dmarc\s*=\s*(?:fail|none)`),
}

// displayNameDomain finds a domain-shaped token inside a display name.
var displayNameDomain = regexp.MustCompile(`[a-z0-9.-]+\.[a-z]{2,}`)

// brandDomains maps well-known brand names that appear in spoofed display
// names to the domain they imply.
var brandDomains = map[string]string{
	"microsoft":  "microsoft.com",
	"office 365": "microsoft.com",
	"outlook":    "microsoft.com",
	"paypal":     "paypal.com",
	"apple":      "apple.com",
	"icloud":     "apple.com",
	"amazon":     "amazon.com",
	"google":     "google.com",
	"netflix":    "netflix.com",
	"docusign":   "docusign.com",
	"dhl":        "dhl.com",
	"fedex":      "fedex.com",
}

// DefaultRules returns the fixed battery in evaluation order.
func DefaultRules() []Rule {
	return []Rule{
		{
			ID:          "HEADER_MISMATCH",
			Description: "Display name domain differs from From domain",
			Weight:      WeightHeaderMismatch,
			Check:       checkHeaderMismatch,
		},
		{
			ID:          "REPLYTO_MISMATCH",
			Description: "Reply-To domain differs from From domain",
			Weight:      WeightReplyToMismatch,
			Check:       checkReplyToMismatch,
		},
		{
			ID:          "AUTH_FAIL_HINTS",
			Description: "Authentication-Results indicates SPF/DKIM/DMARC failure",
			Weight:      WeightAuthFailHints,
			Check:       checkAuthFailure,
		},
		{
			ID:          "URGENT_LANGUAGE",
			Description: "Contains urgent or pressure language",
			Weight:      WeightUrgentLanguage,
			Check:       checkUrgentLanguage,
		},
		{
			ID:          "URL_SHORTENER",
			Description: "Contains URLs from shortening services",
			Weight:      WeightURLShortener,
			Check:       checkURLShortener,
		},
		{
			ID:          "SUSPICIOUS_TLDS",
			Description: "Contains URLs with suspicious TLDs",
			Weight:      WeightSuspiciousTLDs,
			Check:       checkSuspiciousTLD,
		},
		{
			ID:          "UNICODE_SPOOF",
			Description: "Potential Unicode spoofing in domains",
			Weight:      WeightUnicodeSpoof,
			Check:       checkUnicodeSpoof,
		},
		{
			ID:          "NO_PERSONALIZATION",
			Description: "Uses generic greetings without personalization",
			Weight:      WeightNoPersonalization,
			Check:       checkNoPersonalization,
		},
		{
			ID:          "ATTACHMENT_KEYWORDS",
			Description: "Mentions attachments/payments with links present",
			Weight:      WeightAttachmentKeywords,
			Check:       checkAttachmentKeywords,
		},
	}
}

// ApplyWeights returns a copy of rules with any configured weight overrides
// applied. Unknown IDs in the override map are ignored.
func ApplyWeights(rules []Rule, overrides map[string]int) []Rule {
	if len(overrides) == 0 {
		return rules
	}
	out := make([]Rule, len(rules))
	copy(out, rules)
	for i := range out {
		if w, ok := overrides[out[i].ID]; ok && w >= 0 {
			out[i].Weight = w
		}
	}
	return out
}

func domainOfAddress(addr string) string {
	if idx := strings.LastIndex(addr, "@"); idx >= 0 {
		return strings.ToLower(strings.TrimSpace(addr[idx+1:]))
	}
	return ""
}

// domainImpliedByDisplayName extracts the domain a display name suggests,
// either spelled out ("support@paypal.com", "paypal.com Support") or implied
// by a known brand name ("PayPal Billing").
func domainImpliedByDisplayName(display string) string {
	lower := strings.ToLower(display)
	if m := displayNameDomain.FindString(lower); m != "" {
		return m
	}
	for brand, domain := range brandDomains {
		if strings.Contains(lower, brand) {
			return domain
		}
	}
	return ""
}

func checkHeaderMismatch(msg *core.ParsedMessage) *core.Evidence {
	h := msg.Headers
	if h.FromDisplayName == "" || h.FromAddress == "" {
		return nil
	}

	fromDomain := domainOfAddress(h.FromAddress)
	displayDomain := domainImpliedByDisplayName(h.FromDisplayName)
	if fromDomain == "" || displayDomain == "" {
		return nil
	}
	if displayDomain == fromDomain || strings.HasSuffix(fromDomain, "."+displayDomain) {
		return nil
	}

	return &core.Evidence{
		Details:        fmt.Sprintf("Display name suggests %q but From address is %q", displayDomain, fromDomain),
		MatchedExcerpt: fmt.Sprintf("Display: %q, From: %q", h.FromDisplayName, h.FromAddress),
	}
}

func checkReplyToMismatch(msg *core.ParsedMessage) *core.Evidence {
	h := msg.Headers
	if h.ReplyTo == "" || h.FromAddress == "" {
		return nil
	}

	fromDomain := domainOfAddress(h.FromAddress)
	replyDomain := domainOfAddress(h.ReplyTo)
	if fromDomain == "" || replyDomain == "" || fromDomain == replyDomain {
		return nil
	}

	return &core.Evidence{
		Details:        fmt.Sprintf("From domain %q != Reply-To domain %q", fromDomain, replyDomain),
		MatchedExcerpt: fmt.Sprintf("From: %s, Reply-To: %s", h.FromAddress, h.ReplyTo),
	}
}

func checkAuthFailure(msg *core.ParsedMessage) *core.Evidence {
	authResults := strings.ToLower(msg.Headers.AuthenticationResults)
	if authResults == "" {
		return nil
	}

	var failures []string
	for _, pattern := range authFailPatterns {
		failures = append(failures, pattern.FindAllString(authResults, -1)...)
	}
	if len(failures) == 0 {
		return nil
	}

	excerpt := authResults
	if len(excerpt) > 200 {
		excerpt = excerpt[:200]
	}
	return &core.Evidence{
		Details:        fmt.Sprintf("Authentication failures detected: %s", strings.Join(uniqueStrings(failures), ", ")),
		MatchedExcerpt: excerpt,
	}
}

func checkUrgentLanguage(msg *core.ParsedMessage) *core.Evidence {
	text := strings.ToLower(msg.Headers.Subject + " " + msg.TextBody + " " + msg.HTMLRenderedAsText)

	var matches []string
	for _, pattern := range urgentPatterns {
		matches = append(matches, pattern.FindAllString(text, -1)...)
	}
	if len(matches) == 0 {
		return nil
	}

	unique := uniqueStrings(matches)
	return &core.Evidence{
		Details:        fmt.Sprintf("Urgent language detected: %s", strings.Join(firstN(unique, 5), ", ")),
		MatchedExcerpt: strings.Join(unique, ", "),
	}
}

func checkURLShortener(msg *core.ParsedMessage) *core.Evidence {
	var shorteners []string
	for _, u := range msg.URLs {
		if _, ok := urlShorteners[u.Domain]; ok {
			shorteners = append(shorteners, u.Domain)
		}
	}
	if len(shorteners) == 0 {
		return nil
	}

	unique := uniqueStrings(shorteners)
	return &core.Evidence{
		Details:        fmt.Sprintf("URL shorteners found: %s", strings.Join(unique, ", ")),
		MatchedExcerpt: strings.Join(unique, ", "),
	}
}

func checkSuspiciousTLD(msg *core.ParsedMessage) *core.Evidence {
	var suspicious []string
	for _, u := range msg.URLs {
		domain := strings.ToLower(u.Domain)
		for _, tld := range suspiciousTLDs {
			if strings.HasSuffix(domain, tld) {
				suspicious = append(suspicious, fmt.Sprintf("%s (%s)", domain, tld))
				break
			}
		}
	}
	if len(suspicious) == 0 {
		return nil
	}

	return &core.Evidence{
		Details:        fmt.Sprintf("Suspicious TLDs found: %s", strings.Join(firstN(suspicious, 5), ", ")),
		MatchedExcerpt: strings.Join(suspicious, ", "),
	}
}

func checkUnicodeSpoof(msg *core.ParsedMessage) *core.Evidence {
	var suspicious []string
	for _, u := range msg.URLs {
		if isASCII(u.Domain) {
			continue
		}
		kind := "non-ASCII"
		if hasMixedScripts(u.Domain) {
			kind = "mixed-script"
		}
		suspicious = append(suspicious, fmt.Sprintf("%s (%s)", u.Domain, kind))
	}
	if len(suspicious) == 0 {
		return nil
	}

	return &core.Evidence{
		Details:        fmt.Sprintf("Suspicious domains: %s", strings.Join(firstN(suspicious, 3), ", ")),
		MatchedExcerpt: strings.Join(suspicious, ", "),
	}
}

func checkNoPersonalization(msg *core.ParsedMessage) *core.Evidence {
	text := strings.ToLower(msg.TextBody + " " + msg.HTMLRenderedAsText)

	var matches []string
	for _, pattern := range genericGreetings {
		matches = append(matches, pattern.FindAllString(text, -1)...)
	}
	if len(matches) == 0 {
		return nil
	}

	unique := uniqueStrings(matches)
	return &core.Evidence{
		Details:        fmt.Sprintf("Generic greetings: %s", strings.Join(firstN(unique, 3), ", ")),
		MatchedExcerpt: strings.Join(unique, ", "),
	}
}

func checkAttachmentKeywords(msg *core.ParsedMessage) *core.Evidence {
	// Payment language without a link to click is not a lure.
	if len(msg.URLs) == 0 {
		return nil
	}

	text := strings.ToLower(msg.Headers.Subject + " " + msg.TextBody + " " + msg.HTMLRenderedAsText)
	var found []string
	for _, keyword := range attachmentKeywords {
		if strings.Contains(text, keyword) {
			found = append(found, keyword)
		}
	}
	if len(found) == 0 {
		return nil
	}

	return &core.Evidence{
		Details:        fmt.Sprintf("Keywords %q with %d URLs", strings.Join(firstN(found, 3), ", "), len(msg.URLs)),
		MatchedExcerpt: strings.Join(found, ", "),
	}
}

func isASCII(s string) bool {
	for _, r := range s {
		if r > unicode.MaxASCII {
			return false
		}
	}
	return true
}

// hasMixedScripts reports whether any single label of a domain mixes letters
// from more than one Unicode script, the classic homoglyph-spoof signature.
// Labels are checked separately so an all-Cyrillic name under an ASCII TLD
// does not count as mixed.
func hasMixedScripts(domain string) bool {
	for _, label := range strings.Split(domain, ".") {
		scripts := 0
		for _, table := range scriptTables {
			for _, r := range label {
				if unicode.IsLetter(r) && unicode.Is(table, r) {
					scripts++
					break
				}
			}
		}
		if scripts > 1 {
			return true
		}
	}
	return false
}

var scriptTables = map[string]*unicode.RangeTable{
	"latin":    unicode.Latin,
	"cyrillic": unicode.Cyrillic,
	"greek":    unicode.Greek,
	"armenian": unicode.Armenian,
	"hebrew":   unicode.Hebrew,
}

// uniqueStrings deduplicates while keeping deterministic (sorted) order so
// evidence strings are reproducible.
func uniqueStrings(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	var out []string
	for _, s := range in {
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

func firstN(in []string, n int) []string {
	if len(in) <= n {
		return in
	}
	return in[:n]
}
