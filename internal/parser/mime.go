package parser

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"mime/quotedprintable"
	"net/mail"
	"net/textproto"
	"strings"
)

// maxPartDepth bounds multipart nesting to resist recursion bombs.
const maxPartDepth = 10

// leaf is a single non-multipart MIME part with its transfer encoding
// already undone.
type leaf struct {
	mediaType string
	charset   string
	body      []byte
}

// collectLeaves flattens the MIME tree of a message into its non-multipart
// leaves. Malformed structure degrades to a best-effort single-part
// interpretation instead of failing.
func (p *Parser) collectLeaves(msg *mail.Message, warnings *[]string) []leaf {
	contentType := msg.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "text/plain"
	}

	mediaType, params, err := mime.ParseMediaType(contentType)
	if err != nil {
		*warnings = append(*warnings, fmt.Sprintf("unparseable content type %q, treating as text/plain", contentType))
		mediaType = "text/plain"
		params = map[string]string{}
	}

	if strings.HasPrefix(mediaType, "multipart/") {
		boundary := params["boundary"]
		if boundary == "" {
			*warnings = append(*warnings, "multipart message without boundary, treating as single part")
			return p.singleLeaf(msg.Body, "text/plain", params, msg.Header.Get("Content-Transfer-Encoding"))
		}
		leaves, err := p.walkMultipart(msg.Body, boundary, 0, warnings)
		if err != nil && len(leaves) == 0 {
			*warnings = append(*warnings, fmt.Sprintf("multipart walk failed: %v", err))
		}
		return leaves
	}

	return p.singleLeaf(msg.Body, mediaType, params, msg.Header.Get("Content-Transfer-Encoding"))
}

func (p *Parser) singleLeaf(body io.Reader, mediaType string, params map[string]string, encoding string) []leaf {
	data, err := limitedReadAll(body, p.readBodyLimit())
	if err != nil {
		return nil
	}
	return []leaf{{
		mediaType: mediaType,
		charset:   params["charset"],
		body:      decodeTransferEncoding(data, encoding),
	}}
}

// walkMultipart reads all parts of one multipart level, recursing into
// nested multiparts. Errors mid-stream return the leaves gathered so far.
func (p *Parser) walkMultipart(body io.Reader, boundary string, depth int, warnings *[]string) ([]leaf, error) {
	if depth >= maxPartDepth {
		*warnings = append(*warnings, fmt.Sprintf("multipart nesting capped at depth %d", maxPartDepth))
		return nil, nil
	}

	var leaves []leaf
	mr := multipart.NewReader(body, boundary)

	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			return leaves, err
		}

		contentType := part.Header.Get("Content-Type")
		if contentType == "" {
			contentType = "text/plain"
		}
		mediaType, params, err := mime.ParseMediaType(contentType)
		if err != nil {
			mediaType = "text/plain"
			params = map[string]string{}
		}

		data, err := limitedReadAll(part, p.readBodyLimit())
		if err != nil {
			*warnings = append(*warnings, fmt.Sprintf("failed to read part %s: %v", mediaType, err))
			continue
		}
		decoded := decodeTransferEncoding(data, transferEncoding(part.Header))

		if strings.HasPrefix(mediaType, "multipart/") {
			if nested := params["boundary"]; nested != "" {
				nestedLeaves, err := p.walkMultipart(bytes.NewReader(decoded), nested, depth+1, warnings)
				if err != nil && len(nestedLeaves) == 0 {
					*warnings = append(*warnings, fmt.Sprintf("nested multipart walk failed: %v", err))
				}
				leaves = append(leaves, nestedLeaves...)
			}
			continue
		}

		leaves = append(leaves, leaf{
			mediaType: mediaType,
			charset:   params["charset"],
			body:      decoded,
		})
	}

	return leaves, nil
}

func transferEncoding(h textproto.MIMEHeader) string {
	return h.Get("Content-Transfer-Encoding")
}

// decodeTransferEncoding undoes base64 and quoted-printable transfer
// encodings, returning the input unchanged when decoding fails.
func decodeTransferEncoding(body []byte, encoding string) []byte {
	switch strings.ToLower(strings.TrimSpace(encoding)) {
	case "base64":
		cleaned := bytes.Map(func(r rune) rune {
			if r == '\r' || r == '\n' {
				return -1
			}
			return r
		}, body)
		decoded := make([]byte, base64.StdEncoding.DecodedLen(len(cleaned)))
		n, err := base64.StdEncoding.Decode(decoded, cleaned)
		if err == nil {
			return decoded[:n]
		}
	case "quoted-printable":
		reader := quotedprintable.NewReader(bytes.NewReader(body))
		decoded, err := io.ReadAll(reader)
		if err == nil {
			return decoded
		}
	}
	return body
}
