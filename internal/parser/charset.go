package parser

import (
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/htmlindex"
)

// charsetReader resolves arbitrary declared charsets for RFC 2047 word
// decoding via the WHATWG encoding index.
func charsetReader(charset string, input io.Reader) (io.Reader, error) {
	enc, err := htmlindex.Get(charset)
	if err != nil {
		return nil, fmt.Errorf("unsupported charset %q: %w", charset, err)
	}
	return enc.NewDecoder().Reader(input), nil
}

// decodeCharset decodes a body part with its declared charset. UTF-8 and
// unknown charsets fall back to UTF-8 with replacement-character
// substitution for invalid sequences.
func decodeCharset(body []byte, charset string) (string, error) {
	charset = strings.ToLower(strings.TrimSpace(charset))
	switch charset {
	case "", "utf-8", "utf8", "us-ascii", "ascii":
		return replaceInvalidUTF8(string(body)), nil
	}

	enc, err := htmlindex.Get(charset)
	if err != nil {
		return replaceInvalidUTF8(string(body)), fmt.Errorf("unsupported charset %q", charset)
	}

	decoded, err := enc.NewDecoder().Bytes(body)
	if err != nil {
		return replaceInvalidUTF8(string(body)), fmt.Errorf("charset %q decode failed: %w", charset, err)
	}
	return string(decoded), nil
}

func replaceInvalidUTF8(s string) string {
	if utf8.ValidString(s) {
		return s
	}
	return strings.ToValidUTF8(s, string(utf8.RuneError))
}
