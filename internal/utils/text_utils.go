package utils

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"go.uber.org/zap"
	"golang.org/x/text/unicode/norm"
)

var excessiveNewlines = regexp.MustCompile(`\n{3,}`)

// TextProcessor provides utilities for normalizing and bounding text
// extracted from untrusted messages.
type TextProcessor struct {
	logger *zap.Logger
}

// NewTextProcessor creates a new TextProcessor
func NewTextProcessor(logger *zap.Logger) *TextProcessor {
	return &TextProcessor{
		logger: logger,
	}
}

// CleanHeader decodes nothing; it NFKC-normalizes a header value, strips
// control characters and trims surrounding whitespace.
func (tp *TextProcessor) CleanHeader(value string) string {
	if value == "" {
		return ""
	}
	value = norm.NFKC.String(value)
	value = stripControl(value)
	return strings.TrimSpace(value)
}

// CleanBody normalizes body text: NFKC, control characters stripped except
// whitespace, trailing spaces removed per line, 3+ consecutive newlines
// collapsed to 2.
func (tp *TextProcessor) CleanBody(content string) string {
	if content == "" {
		return ""
	}
	content = norm.NFKC.String(content)
	content = stripControl(content)

	lines := strings.Split(content, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimRight(line, " \t")
	}
	content = strings.Join(lines, "\n")
	content = excessiveNewlines.ReplaceAllString(content, "\n\n")

	return strings.TrimSpace(content)
}

// ToValidUTF8 replaces invalid UTF-8 sequences with the Unicode replacement
// character.
func (tp *TextProcessor) ToValidUTF8(text string) string {
	if utf8.ValidString(text) {
		return text
	}
	return strings.ToValidUTF8(text, string(utf8.RuneError))
}

// Clip truncates text to at most maxSize bytes on a UTF-8 boundary, without
// adding any marker.
func (tp *TextProcessor) Clip(text string, maxSize int) string {
	if maxSize <= 0 || len(text) <= maxSize {
		return text
	}
	truncated := text[:maxSize]
	for !utf8.ValidString(truncated) && len(truncated) > 0 {
		truncated = truncated[:len(truncated)-1]
	}
	return truncated
}

// TruncateText safely truncates text to the specified maximum size and marks
// the cut. Used when preparing content for AI providers.
func (tp *TextProcessor) TruncateText(text string, maxSize int) string {
	if maxSize <= 0 || len(text) <= maxSize {
		return text
	}

	truncated := tp.Clip(text, maxSize)

	tp.logger.Debug("Text truncated",
		zap.Int("original_size", len(text)),
		zap.Int("truncated_size", len(truncated)),
		zap.Int("max_size", maxSize))

	return truncated + "\n[... Content truncated due to size limits ...]"
}

// ProcessText truncates and sanitizes text in one operation
func (tp *TextProcessor) ProcessText(text string, maxSize int) string {
	return tp.ToValidUTF8(tp.TruncateText(text, maxSize))
}

// stripControl removes control characters except horizontal and vertical
// whitespace.
func stripControl(s string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '\t', '\n', '\r', '\v', '\f':
			return r
		}
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, s)
}
