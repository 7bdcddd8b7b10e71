package parser

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/mail"
	"strings"
	"time"

	"github.com/mikey/phishing-analyzer/internal/core"
	"github.com/mikey/phishing-analyzer/internal/utils"
	"go.uber.org/zap"
)

var (
	// ErrTooLarge is returned when the raw input exceeds the hard size ceiling.
	ErrTooLarge = errors.New("message exceeds size ceiling")
	// ErrStructuralFailure is returned when the byte stream cannot be
	// interpreted as any message structure.
	ErrStructuralFailure = errors.New("message structure unreadable")
)

// ParseError is the fatal failure type of the parser. Recoverable anomalies
// never produce a ParseError; they accumulate as security warnings on the
// successful result.
type ParseError struct {
	Label string
	Err   error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse %q: %v", e.Label, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// Limits bounds the resources a single parse may consume.
type Limits struct {
	MaxRawSize       int
	MaxHeaderSize    int
	MaxTextSize      int
	MaxURLs          int
	MaxReceived      int
	TimeBudget       time.Duration
	URLContextRadius int
}

// DefaultLimits returns the stock security limits.
func DefaultLimits() Limits {
	return Limits{
		MaxRawSize:       25 * 1024 * 1024,
		MaxHeaderSize:    64 * 1024,
		MaxTextSize:      1024 * 1024,
		MaxURLs:          500,
		MaxReceived:      20,
		TimeBudget:       30 * time.Second,
		URLContextRadius: 20,
	}
}

// maxReceivedLineSize caps a single stored Received header line.
const maxReceivedLineSize = 1000

// Parser converts raw, untrusted email bytes into a core.ParsedMessage.
// It performs no I/O and holds no mutable state between calls.
type Parser struct {
	limits Limits
	text   *utils.TextProcessor
	logger *zap.Logger
}

// New creates a parser with the given limits.
func New(limits Limits, text *utils.TextProcessor, logger *zap.Logger) *Parser {
	return &Parser{
		limits: limits,
		text:   text,
		logger: logger,
	}
}

// Parse parses raw email bytes into a structured message. The label is used
// for diagnostics only and is never interpreted.
//
// Only two conditions are fatal: the raw input exceeding the size ceiling and
// a byte stream with no recognizable header block. Everything else degrades
// to a security warning on the returned message.
func (p *Parser) Parse(raw []byte, label string) (*core.ParsedMessage, error) {
	start := time.Now()
	deadline := start.Add(p.limits.TimeBudget)
	var warnings []string

	rawSize := len(raw)
	if rawSize > p.limits.MaxRawSize {
		return nil, &ParseError{Label: label, Err: fmt.Errorf("%w: %d bytes", ErrTooLarge, rawSize)}
	}

	p.logger.Debug("Parsing message",
		zap.String("label", label),
		zap.Int("raw_size", rawSize))

	msg, err := mail.ReadMessage(bytes.NewReader(raw))
	if err != nil {
		return nil, &ParseError{Label: label, Err: fmt.Errorf("%w: %v", ErrStructuralFailure, err)}
	}

	headers := p.extractHeaders(msg.Header, &warnings)

	var textBody, htmlBody, htmlRendered string
	if p.overBudget(deadline, "body extraction", &warnings) {
		// Keep whatever the structural phase produced.
	} else {
		textBody, htmlBody = p.extractBody(msg, &warnings)

		if htmlBody != "" && !p.overBudget(deadline, "html rendering", &warnings) {
			rendered, err := renderHTMLToText(htmlBody)
			if err != nil {
				warnings = append(warnings, fmt.Sprintf("HTML to text conversion failed: %v", err))
			} else {
				htmlRendered = rendered
			}
		}

		textBody = p.text.CleanBody(p.text.ToValidUTF8(textBody))
		htmlRendered = p.text.CleanBody(p.text.ToValidUTF8(htmlRendered))
	}

	// Enforce the total extracted text cap across both body forms.
	if len(textBody)+len(htmlBody) > p.limits.MaxTextSize {
		warnings = append(warnings, fmt.Sprintf("parsed content truncated: %d > %d bytes",
			len(textBody)+len(htmlBody), p.limits.MaxTextSize))
		textCap := p.limits.MaxTextSize / 2
		htmlCap := p.limits.MaxTextSize - textCap
		// Budget a shorter body form does not need goes to the other one.
		if spare := htmlCap - len(htmlBody); spare > 0 {
			textCap += spare
		} else if spare := textCap - len(textBody); spare > 0 {
			htmlCap += spare
		}
		textBody = p.text.Clip(textBody, textCap)
		htmlBody = p.text.Clip(htmlBody, htmlCap)
		htmlRendered = p.text.Clip(htmlRendered, htmlCap)
	}

	var urls []core.ParsedURL
	if !p.overBudget(deadline, "url extraction", &warnings) {
		urls = p.extractURLs(textBody, htmlRendered, headers, &warnings)
	}

	parsed := &core.ParsedMessage{
		Headers:            headers,
		TextBody:           textBody,
		HTMLBody:           htmlBody,
		HTMLRenderedAsText: htmlRendered,
		URLs:               urls,
		ParseDuration:      time.Since(start),
		SecurityWarnings:   warnings,
		RawSize:            rawSize,
		NormalizedSize:     len(textBody) + len(htmlBody),
	}

	p.logger.Debug("Message parsed",
		zap.String("label", label),
		zap.Duration("duration", parsed.ParseDuration),
		zap.Int("urls", len(urls)),
		zap.Int("warnings", len(warnings)))

	return parsed, nil
}

// overBudget records a warning and reports true once the wall-clock budget
// for the whole parse has been spent. Later phases are skipped rather than
// aborting the parse.
func (p *Parser) overBudget(deadline time.Time, phase string, warnings *[]string) bool {
	if time.Now().Before(deadline) {
		return false
	}
	*warnings = append(*warnings, fmt.Sprintf("parse time budget exceeded before %s", phase))
	return true
}

// extractHeaders pulls the allowlisted headers, decoding and bounding each.
func (p *Parser) extractHeaders(h mail.Header, warnings *[]string) core.ParsedHeaders {
	fromDisplay, fromAddr := p.splitAddress(p.safeHeader(h, "From", warnings))
	_, toAddr := p.splitAddress(p.safeHeader(h, "To", warnings))
	_, replyTo := p.splitAddress(p.safeHeader(h, "Reply-To", warnings))

	var received []string
	for _, line := range h["Received"] {
		if len(received) >= p.limits.MaxReceived {
			*warnings = append(*warnings, fmt.Sprintf("received headers capped at %d", p.limits.MaxReceived))
			break
		}
		received = append(received, p.text.Clip(p.text.CleanHeader(line), maxReceivedLineSize))
	}

	return core.ParsedHeaders{
		FromAddress:           fromAddr,
		FromDisplayName:       fromDisplay,
		ToAddress:             toAddr,
		ReplyTo:               replyTo,
		ReturnPath:            p.safeHeader(h, "Return-Path", warnings),
		Subject:               p.safeHeader(h, "Subject", warnings),
		Date:                  p.safeHeader(h, "Date", warnings),
		Received:              received,
		AuthenticationResults: p.safeHeader(h, "Authentication-Results", warnings),
		MessageID:             p.safeHeader(h, "Message-Id", warnings),
	}
}

// safeHeader extracts a single header with the per-header size cap, RFC 2047
// decoding and text cleaning applied. Decode failures fall back to the raw
// value.
func (p *Parser) safeHeader(h mail.Header, name string, warnings *[]string) string {
	value := h.Get(name)
	if value == "" {
		return ""
	}
	if len(value) > p.limits.MaxHeaderSize {
		*warnings = append(*warnings, fmt.Sprintf("header %q truncated", name))
		value = p.text.Clip(value, p.limits.MaxHeaderSize)
	}
	if decoded, err := wordDecoder.DecodeHeader(value); err == nil {
		value = decoded
	}
	return p.text.CleanHeader(p.text.ToValidUTF8(value))
}

// wordDecoder decodes RFC 2047 encoded words with charset support beyond
// UTF-8.
var wordDecoder = &mime.WordDecoder{CharsetReader: charsetReader}

// splitAddress splits an address header into display name and address using
// permissive parsing. An unparseable value is kept verbatim as the address so
// the rules still see it.
func (p *Parser) splitAddress(value string) (display, address string) {
	if value == "" {
		return "", ""
	}
	addr, err := mail.ParseAddress(value)
	if err != nil {
		if list, lerr := mail.ParseAddressList(value); lerr == nil && len(list) > 0 {
			addr = list[0]
		} else {
			return "", strings.TrimSpace(value)
		}
	}
	return strings.TrimSpace(addr.Name), strings.ToLower(strings.TrimSpace(addr.Address))
}

// extractBody walks all MIME leaves and accumulates the plain-text and HTML
// bodies separately.
func (p *Parser) extractBody(msg *mail.Message, warnings *[]string) (textBody, htmlBody string) {
	var textBuf, htmlBuf bytes.Buffer

	for _, leaf := range p.collectLeaves(msg, warnings) {
		// decodeCharset falls back to replacement-substituted UTF-8 on
		// failure, so content is always usable.
		content, err := decodeCharset(leaf.body, leaf.charset)
		if err != nil {
			*warnings = append(*warnings, fmt.Sprintf("failed to decode part %s: %v", leaf.mediaType, err))
		}
		if len(content) > p.limits.MaxTextSize {
			*warnings = append(*warnings, fmt.Sprintf("part content truncated: %s", leaf.mediaType))
			content = p.text.Clip(content, p.limits.MaxTextSize)
		}

		switch leaf.mediaType {
		case "text/plain":
			textBuf.WriteString(content)
			textBuf.WriteString("\n")
		case "text/html":
			htmlBuf.WriteString(content)
			htmlBuf.WriteString("\n")
		}

		// Both buffers past the cap: nothing more to gain from walking on.
		if textBuf.Len() > p.limits.MaxTextSize && htmlBuf.Len() > p.limits.MaxTextSize {
			break
		}
	}

	return textBuf.String(), htmlBuf.String()
}

// readBodyLimit bounds how much of any single body stream is read. Raw input
// is already capped, so this is a backstop against decompression-style blowup
// from transfer-encoding decoders.
func (p *Parser) readBodyLimit() int64 {
	return int64(p.limits.MaxRawSize) + 1
}

func limitedReadAll(r io.Reader, max int64) ([]byte, error) {
	return io.ReadAll(io.LimitReader(r, max))
}
