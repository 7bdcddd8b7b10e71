package filter

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net"
	"net/mail"
	"os"
	"strings"
	"time"

	"github.com/emersion/go-smtp"
	"github.com/mikey/phishing-analyzer/internal/core"
	"github.com/mikey/phishing-analyzer/internal/parser"
	"go.uber.org/zap"
)

// PostfixFilter implements a Postfix content filter. It accepts messages over
// SMTP, runs the analysis pipeline, stamps verdict headers and re-injects the
// message into Postfix.
type PostfixFilter struct {
	service        *core.AnalysisService
	logger         *zap.Logger
	listenAddr     string
	server         *smtp.Server
	blockPhishing  bool
	scoreHeader    string
	labelHeader    string
	reasonHeader   string
	postfixAddr    string
	postfixPort    int
	postfixEnabled bool
	subjectPrefix  string
	modifySubject  bool
}

// NewPostfixFilter creates a new Postfix content filter
func NewPostfixFilter(
	service *core.AnalysisService,
	logger *zap.Logger,
	listenAddr string,
	blockPhishing bool,
	scoreHeader string,
	labelHeader string,
	reasonHeader string,
	postfixAddr string,
	postfixPort int,
	postfixEnabled bool,
	subjectPrefix string,
	modifySubject bool,
) *PostfixFilter {
	if subjectPrefix == "" && modifySubject {
		subjectPrefix = "[**PHISHING**] "
	}

	return &PostfixFilter{
		service:        service,
		logger:         logger,
		listenAddr:     listenAddr,
		blockPhishing:  blockPhishing,
		scoreHeader:    scoreHeader,
		labelHeader:    labelHeader,
		reasonHeader:   reasonHeader,
		postfixAddr:    postfixAddr,
		postfixPort:    postfixPort,
		postfixEnabled: postfixEnabled,
		subjectPrefix:  subjectPrefix,
		modifySubject:  modifySubject,
	}
}

// Start starts the Postfix filter service
func (f *PostfixFilter) Start() error {
	f.server = smtp.NewServer(&smtpBackend{filter: f})

	f.server.Addr = f.listenAddr
	f.server.Domain = "localhost"
	f.server.ReadTimeout = 30 * time.Second
	f.server.WriteTimeout = 30 * time.Second
	f.server.MaxMessageBytes = 30 * 1024 * 1024
	f.server.MaxRecipients = 50
	f.server.AllowInsecureAuth = true

	f.logger.Info("Postfix filter starting", zap.String("address", f.listenAddr))

	go func() {
		if err := f.server.ListenAndServe(); err != nil {
			if err != smtp.ErrServerClosed {
				f.logger.Error("SMTP server error", zap.Error(err))
			}
		}
	}()

	return nil
}

// Stop stops the Postfix filter service
func (f *PostfixFilter) Stop() error {
	if f.server != nil {
		return f.server.Close()
	}
	return nil
}

// ProcessMessage analyzes raw message bytes. Mainly used for testing or
// direct API calls.
func (f *PostfixFilter) ProcessMessage(ctx context.Context, raw []byte, label string) (*core.AnalysisReport, error) {
	return f.service.AnalyzeRaw(ctx, raw, label)
}

// sendToPostfix re-injects the processed message into Postfix on the
// configured port using go-smtp
func (f *PostfixFilter) sendToPostfix(sender string, recipients []string, emailData []byte) error {
	postfixAddr := fmt.Sprintf("%s:%d", f.postfixAddr, f.postfixPort)

	hostname, err := os.Hostname()
	if err != nil {
		hostname = "localhost"
	}

	conn, err := net.DialTimeout("tcp", postfixAddr, 10*time.Second)
	if err != nil {
		return fmt.Errorf("failed to connect to Postfix: %w", err)
	}

	if err := conn.SetDeadline(time.Now().Add(30 * time.Second)); err != nil {
		conn.Close()
		return fmt.Errorf("failed to set connection deadline: %w", err)
	}

	c := smtp.NewClient(conn)
	defer c.Close()

	if err := c.Hello(hostname); err != nil {
		return fmt.Errorf("EHLO failed: %w", err)
	}

	if err := c.Mail(sender, nil); err != nil {
		return fmt.Errorf("MAIL FROM failed: %w", err)
	}

	recipientOK := false
	for _, recipient := range recipients {
		if err := c.Rcpt(recipient, nil); err != nil {
			f.logger.Warn("RCPT TO failed for recipient",
				zap.String("recipient", recipient),
				zap.Error(err))
		} else {
			recipientOK = true
		}
	}

	if !recipientOK {
		return fmt.Errorf("all recipients were rejected")
	}

	wc, err := c.Data()
	if err != nil {
		return fmt.Errorf("DATA command failed: %w", err)
	}

	_, err = wc.Write(emailData)
	if err != nil {
		wc.Close()
		return fmt.Errorf("failed to send email data: %w", err)
	}

	if err := wc.Close(); err != nil {
		return fmt.Errorf("failed to close data writer: %w", err)
	}

	if err := c.Quit(); err != nil {
		f.logger.Warn("QUIT command failed", zap.Error(err))
	}

	return nil
}

// evidenceSummary builds a short reason line out of fired rules.
func evidenceSummary(detection *core.DetectionResult) string {
	if len(detection.Evidence) == 0 {
		return "no rules fired"
	}
	ids := make([]string, 0, len(detection.Evidence))
	for _, ev := range detection.Evidence {
		ids = append(ids, ev.RuleID)
	}
	return strings.Join(ids, ", ")
}

// decodeEncodedHeader decodes RFC 2047 encoded words in a header value.
func decodeEncodedHeader(value string) (string, error) {
	dec := mime.WordDecoder{}
	return dec.DecodeHeader(value)
}

// smtpBackend implements the go-smtp Backend interface
type smtpBackend struct {
	filter *PostfixFilter
}

// NewSession creates a new SMTP session
func (b *smtpBackend) NewSession(c *smtp.Conn) (smtp.Session, error) {
	return &smtpSession{
		filter:     b.filter,
		recipients: make([]string, 0),
	}, nil
}

// smtpSession implements the go-smtp Session interface
type smtpSession struct {
	filter     *PostfixFilter
	sender     string
	recipients []string
}

// Reset resets the session state
func (s *smtpSession) Reset() {
	s.sender = ""
	s.recipients = make([]string, 0)
}

// AuthPlain handles PLAIN authentication (not needed for our filter)
func (s *smtpSession) AuthPlain(_ []byte) error {
	return smtp.ErrAuthUnsupported
}

// Mail sets the sender address
func (s *smtpSession) Mail(from string, _ *smtp.MailOptions) error {
	s.sender = from
	return nil
}

// Rcpt adds a recipient
func (s *smtpSession) Rcpt(to string, _ *smtp.RcptOptions) error {
	s.recipients = append(s.recipients, to)
	return nil
}

// Data handles the message data
func (s *smtpSession) Data(r io.Reader) error {
	rawData, err := io.ReadAll(r)
	if err != nil {
		s.filter.logger.Error("Failed to read message data", zap.Error(err))
		return err
	}

	senderDomain := "unknown"
	if parts := strings.Split(s.sender, "@"); len(parts) == 2 {
		senderDomain = parts[1]
	}

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	report, analysisErr := s.filter.service.AnalyzeRaw(ctx, rawData, "smtp")
	if analysisErr != nil {
		if errors.Is(analysisErr, parser.ErrTooLarge) {
			s.filter.logger.Warn("Rejecting oversized message",
				zap.String("sender", s.sender),
				zap.Int("size", len(rawData)))
			return &smtp.SMTPError{
				Code:         552,
				EnhancedCode: smtp.EnhancedCode{5, 3, 4},
				Message:      "Message exceeds maximum size",
			}
		}
		s.filter.logger.Error("Failed to analyze message",
			zap.Error(analysisErr),
			zap.String("sender", s.sender),
			zap.String("sender_domain", senderDomain))

		// Analysis errors must never lose mail: pass through unlabeled.
		report = &core.AnalysisReport{
			Detection: &core.DetectionResult{
				Score:      0,
				Label:      core.LabelSafe,
				Confidence: 0,
			},
		}
	}

	detection := report.Detection
	isPhishing := detection.Label == core.LabelPhishing

	if isPhishing && s.filter.blockPhishing && analysisErr == nil {
		s.filter.logger.Info("Rejecting phishing message",
			zap.String("from", s.sender),
			zap.String("sender_domain", senderDomain),
			zap.Int("score", detection.Score),
			zap.String("reason", evidenceSummary(detection)))
		return &smtp.SMTPError{
			Code:         550,
			EnhancedCode: smtp.EnhancedCode{5, 7, 1},
			Message:      fmt.Sprintf("Rejected as phishing (score: %d)", detection.Score),
		}
	}

	modified := s.stampHeaders(rawData, detection, analysisErr, isPhishing)

	if s.filter.postfixEnabled {
		if err := s.filter.sendToPostfix(s.sender, s.recipients, modified); err != nil {
			s.filter.logger.Error("Failed to send message back to Postfix",
				zap.Error(err),
				zap.String("sender", s.sender))
			return err
		}
	} else {
		s.filter.logger.Warn("Postfix forwarding disabled, this is likely a misconfiguration")
	}

	s.filter.logger.Info("Processed message",
		zap.String("from", s.sender),
		zap.String("sender_domain", senderDomain),
		zap.String("label", detection.Label),
		zap.Int("score", detection.Score),
		zap.Bool("from_cache", report.FromCache))

	return nil
}

// stampHeaders prepends the verdict headers (and the optional subject prefix)
// to the raw message, preserving all MIME parts and attachments.
func (s *smtpSession) stampHeaders(rawData []byte, detection *core.DetectionResult, analysisErr error, isPhishing bool) []byte {
	var modified bytes.Buffer

	fmt.Fprintf(&modified, "%s: %d\r\n", s.filter.scoreHeader, detection.Score)
	fmt.Fprintf(&modified, "%s: %s\r\n", s.filter.labelHeader, detection.Label)
	fmt.Fprintf(&modified, "%s: %s\r\n", s.filter.reasonHeader, evidenceSummary(detection))

	if analysisErr != nil {
		fmt.Fprintf(&modified, "X-Phishing-Analysis-Error: %s\r\n", analysisErr.Error())
	}

	msg, err := mail.ReadMessage(bytes.NewReader(rawData))
	if err != nil {
		// Structurally broken message, forward it untouched after the
		// verdict headers.
		modified.Write(rawData)
		return modified.Bytes()
	}

	rewriteSubject := isPhishing && s.filter.modifySubject && s.filter.subjectPrefix != ""
	if rewriteSubject {
		originalSubject := msg.Header.Get("Subject")
		decodedSubject, err := decodeEncodedHeader(originalSubject)
		if err != nil {
			decodedSubject = originalSubject
		}
		if !strings.HasPrefix(decodedSubject, s.filter.subjectPrefix) {
			fmt.Fprintf(&modified, "Subject: %s%s\r\n", s.filter.subjectPrefix, decodedSubject)
		} else {
			rewriteSubject = false
		}
	}

	for key, values := range msg.Header {
		if rewriteSubject && strings.EqualFold(key, "Subject") {
			continue
		}
		for _, value := range values {
			fmt.Fprintf(&modified, "%s: %s\r\n", key, value)
		}
	}

	fmt.Fprintf(&modified, "\r\n")

	bodyStart := bytes.Index(rawData, []byte("\r\n\r\n"))
	if bodyStart != -1 {
		modified.Write(rawData[bodyStart+4:])
		return modified.Bytes()
	}
	bodyStart = bytes.Index(rawData, []byte("\n\n"))
	if bodyStart != -1 {
		modified.Write(rawData[bodyStart+2:])
		return modified.Bytes()
	}

	body, err := io.ReadAll(msg.Body)
	if err == nil {
		modified.Write(body)
	}
	return modified.Bytes()
}

// Logout handles SMTP logout (not needed for our filter)
func (s *smtpSession) Logout() error {
	return nil
}
