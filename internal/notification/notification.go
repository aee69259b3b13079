// Package notification provides report delivery over SMTP and Logic App.
package notification

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/smtp"
	"net/textproto"
	"time"
)

// Channel represents a delivery channel.
type Channel string

const (
	ChannelEmail    Channel = "email"
	ChannelLogicApp Channel = "logicapp"
)

// Attachment is a named file attached to an outgoing report.
type Attachment struct {
	Name        string
	ContentType string
	Content     []byte
}

// Message is a rendered report addressed to a single recipient.
type Message struct {
	Recipient   string
	Subject     string
	HTMLBody    string
	Attachments []Attachment
}

// Config holds delivery configuration.
type Config struct {
	EmailSMTPHost    string
	EmailSMTPPort    int
	EmailFrom        string
	EmailPassword    string
	LogicAppEndpoint string
}

// Service delivers messages over the configured channels.
type Service struct {
	cfg        Config
	httpClient *http.Client
	logger     *slog.Logger
	channels   []Channel
}

// NewService creates a new notification service.
func NewService(cfg Config, logger *slog.Logger) *Service {
	s := &Service{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		logger:     logger,
	}

	if cfg.EmailSMTPHost != "" {
		s.channels = append(s.channels, ChannelEmail)
	}
	if cfg.LogicAppEndpoint != "" {
		s.channels = append(s.channels, ChannelLogicApp)
	}

	return s
}

// Channels returns the configured channels.
func (s *Service) Channels() []Channel {
	return s.channels
}

// Send delivers a message over every configured channel. The first
// channel that succeeds counts as delivered.
func (s *Service) Send(ctx context.Context, msg Message) error {
	if len(s.channels) == 0 {
		return fmt.Errorf("no delivery channel configured")
	}

	var lastErr error
	for _, ch := range s.channels {
		var err error
		switch ch {
		case ChannelEmail:
			err = s.sendEmail(msg)
		case ChannelLogicApp:
			err = s.sendLogicApp(ctx, msg)
		}
		if err == nil {
			return nil
		}
		s.logger.Error("report delivery failed", "channel", ch, "recipient", msg.Recipient, "error", err)
		lastErr = err
	}
	return lastErr
}

// sendEmail delivers the message as a multipart MIME email with the
// HTML body and any attachments.
func (s *Service) sendEmail(msg Message) error {
	body, err := buildMIME(s.cfg.EmailFrom, msg)
	if err != nil {
		return err
	}

	addr := fmt.Sprintf("%s:%d", s.cfg.EmailSMTPHost, s.cfg.EmailSMTPPort)

	var auth smtp.Auth
	if s.cfg.EmailPassword != "" {
		auth = smtp.PlainAuth("", s.cfg.EmailFrom, s.cfg.EmailPassword, s.cfg.EmailSMTPHost)
	}

	if err := smtp.SendMail(addr, auth, s.cfg.EmailFrom, []string{msg.Recipient}, body); err != nil {
		return fmt.Errorf("email send failed: %w", err)
	}

	s.logger.Info("report emailed", "recipient", msg.Recipient, "attachments", len(msg.Attachments))
	return nil
}

// sendLogicApp posts the message to an Azure Logic App HTTP trigger.
// Attachments travel base64-encoded in the payload.
func (s *Service) sendLogicApp(ctx context.Context, msg Message) error {
	type laAttachment struct {
		Name         string `json:"Name"`
		ContentBytes string `json:"ContentBytes"`
	}

	attachments := make([]laAttachment, 0, len(msg.Attachments))
	for _, a := range msg.Attachments {
		attachments = append(attachments, laAttachment{
			Name:         a.Name,
			ContentBytes: base64.StdEncoding.EncodeToString(a.Content),
		})
	}

	payload := map[string]any{
		"recipient":   msg.Recipient,
		"subject":     msg.Subject,
		"html":        msg.HTMLBody,
		"attachments": attachments,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, "POST", s.cfg.LogicAppEndpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("logic app request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("logic app returned status %d", resp.StatusCode)
	}

	s.logger.Info("report sent via logic app", "recipient", msg.Recipient)
	return nil
}

func buildMIME(from string, msg Message) ([]byte, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	fmt.Fprintf(&buf, "From: %s\r\n", from)
	fmt.Fprintf(&buf, "To: %s\r\n", msg.Recipient)
	fmt.Fprintf(&buf, "Subject: %s\r\n", msg.Subject)
	fmt.Fprintf(&buf, "MIME-Version: 1.0\r\n")
	fmt.Fprintf(&buf, "Content-Type: multipart/mixed; boundary=%s\r\n\r\n", mw.Boundary())

	htmlHeader := textproto.MIMEHeader{}
	htmlHeader.Set("Content-Type", "text/html; charset=UTF-8")
	part, err := mw.CreatePart(htmlHeader)
	if err != nil {
		return nil, err
	}
	if _, err := part.Write([]byte(msg.HTMLBody)); err != nil {
		return nil, err
	}

	for _, a := range msg.Attachments {
		contentType := a.ContentType
		if contentType == "" {
			contentType = "application/octet-stream"
		}
		header := textproto.MIMEHeader{}
		header.Set("Content-Type", contentType)
		header.Set("Content-Transfer-Encoding", "base64")
		header.Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", a.Name))

		part, err := mw.CreatePart(header)
		if err != nil {
			return nil, err
		}
		encoded := base64.StdEncoding.EncodeToString(a.Content)
		if _, err := part.Write([]byte(encoded)); err != nil {
			return nil, err
		}
	}

	if err := mw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
