package parser

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/mikey/phishing-analyzer/internal/core"
	"golang.org/x/net/idna"
)

// urlPattern matches URL-shaped substrings. Go's regexp is RE2, so the scan
// is linear in the input regardless of content.
var urlPattern = regexp.MustCompile(`(?i)https?://[^\s<>"'` + "`" + `{}|\\^]+`)

// trailingJunk is punctuation that commonly trails a URL in prose and is not
// part of it.
const trailingJunk = ".,;:!?)]}>'\""

// trackingParams are query parameters stripped during normalization.
var trackingParams = map[string]struct{}{
	"utm_source":   {},
	"utm_medium":   {},
	"utm_campaign": {},
	"utm_term":     {},
	"utm_content":  {},
	"fbclid":       {},
	"gclid":        {},
	"msclkid":      {},
	"_ga":          {},
	"mc_cid":       {},
	"mc_eid":       {},
}

// extractURLs scans the cleaned text surfaces of a message for URLs,
// normalizes each and deduplicates by normalized form in first-seen order.
func (p *Parser) extractURLs(textBody, htmlRendered string, headers core.ParsedHeaders, warnings *[]string) []core.ParsedURL {
	var urls []core.ParsedURL
	seen := make(map[string]struct{})
	capped := false

	surfaces := []struct {
		name    string
		content string
	}{
		{"text_body", textBody},
		{"html_rendered", htmlRendered},
		{"subject", headers.Subject},
		{"return_path", headers.ReturnPath},
	}

	for _, surface := range surfaces {
		if surface.content == "" {
			continue
		}
		for _, loc := range urlPattern.FindAllStringIndex(surface.content, -1) {
			if len(urls) >= p.limits.MaxURLs {
				if !capped {
					*warnings = append(*warnings, fmt.Sprintf("url limit reached: %d", p.limits.MaxURLs))
					capped = true
				}
				break
			}

			match := strings.TrimRight(surface.content[loc[0]:loc[1]], trailingJunk)
			if match == "" {
				continue
			}
			position := loc[0]

			normalized := NormalizeURL(match)
			if _, dup := seen[normalized]; dup {
				continue
			}
			seen[normalized] = struct{}{}

			domain, path := splitURL(normalized)

			urls = append(urls, core.ParsedURL{
				Original:   match,
				Normalized: normalized,
				Domain:     domain,
				Path:       path,
				Position:   position,
				Context:    p.urlContext(surface.content, position, len(match)),
			})
		}
	}

	return urls
}

// urlContext returns the text surrounding a match, newlines flattened, with
// any rune split at the window edges dropped.
func (p *Parser) urlContext(content string, position, length int) string {
	start := position - p.limits.URLContextRadius
	if start < 0 {
		start = 0
	}
	end := position + length + p.limits.URLContextRadius
	if end > len(content) {
		end = len(content)
	}
	window := strings.ToValidUTF8(content[start:end], "")
	return strings.ReplaceAll(window, "\n", " ")
}

// NormalizeURL produces the canonical form of a URL: lowercased scheme and
// host, punycode labels decoded, percent-encoding in path and fragment
// decoded to a fixpoint, known tracking parameters stripped. Normalization
// is deterministic and idempotent; input that cannot be parsed is returned
// unchanged.
func NormalizeURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return raw
	}

	host := strings.ToLower(u.Hostname())
	if strings.Contains(host, "xn--") {
		if unicodeHost, err := idna.Lookup.ToUnicode(host); err == nil {
			host = unicodeHost
		}
	}
	if port := u.Port(); port != "" {
		host += ":" + port
	}

	path := unescapeFixpoint(u.EscapedPath())

	var b strings.Builder
	b.WriteString(strings.ToLower(u.Scheme))
	b.WriteString("://")
	b.WriteString(host)
	b.WriteString(path)
	if q := stripTracking(u.RawQuery); q != "" {
		b.WriteString("?")
		b.WriteString(q)
	}
	if u.Fragment != "" {
		b.WriteString("#")
		b.WriteString(unescapeFixpoint(u.Fragment))
	}
	return b.String()
}

// unescapeFixpoint percent-decodes repeatedly until the value stops
// changing, so double-encoded paths normalize to the same form as their
// decoded equivalents.
func unescapeFixpoint(s string) string {
	for i := 0; i < 4; i++ {
		decoded, err := url.PathUnescape(s)
		if err != nil || decoded == s {
			break
		}
		s = decoded
	}
	return s
}

// stripTracking removes known tracking parameters from a raw query string,
// preserving the order of the rest.
func stripTracking(rawQuery string) string {
	if rawQuery == "" {
		return ""
	}
	var kept []string
	for _, param := range strings.Split(rawQuery, "&") {
		key := param
		if idx := strings.Index(param, "="); idx >= 0 {
			key = param[:idx]
		}
		if _, tracked := trackingParams[strings.ToLower(key)]; tracked {
			continue
		}
		kept = append(kept, param)
	}
	return strings.Join(kept, "&")
}

// splitURL extracts the host (without port) and path of a normalized URL.
func splitURL(normalized string) (domain, path string) {
	u, err := url.Parse(normalized)
	if err != nil {
		return "invalid", ""
	}
	return strings.ToLower(u.Hostname()), u.Path
}
