// Package email sends folder share notices over SMTP.
package email

import (
	"bytes"
	"fmt"
	"html/template"
	"log"
	"net/smtp"
	"strings"
)

// Config holds SMTP configuration
type Config struct {
	Host     string
	Port     string
	Username string
	Password string
	From     string
	FromName string
}

type sendFunc func(addr string, auth smtp.Auth, from string, to []string, msg []byte) error

// Service sends notices. An unconfigured Service drops them silently.
type Service struct {
	config Config
	server string
	auth   smtp.Auth
	send   sendFunc
}

func NewService(config Config) *Service {
	var auth smtp.Auth
	if config.Username != "" {
		auth = smtp.PlainAuth("", config.Username, config.Password, config.Host)
	}
	return &Service{
		config: config,
		server: config.Host + ":" + config.Port,
		auth:   auth,
		send:   smtp.SendMail,
	}
}

// IsConfigured returns true if email is configured
func (s *Service) IsConfigured() bool {
	return s.config.Host != "" && s.config.Port != "" && s.config.From != ""
}

// ShareNotice tells a user they were given access to a folder.
type ShareNotice struct {
	To         string
	FolderName string
	SharedBy   string
	Role       string
}

// SendShareNotice delivers notice in the background. Failures are logged.
func (s *Service) SendShareNotice(notice ShareNotice) {
	if !s.IsConfigured() {
		return
	}
	go func() {
		if err := s.deliverShareNotice(notice); err != nil {
			log.Printf("email: share notice to %s: %v", notice.To, err)
		}
	}()
}

func (s *Service) deliverShareNotice(notice ShareNotice) error {
	html, err := renderTemplate(shareNoticeTemplate, notice)
	if err != nil {
		return fmt.Errorf("render share notice: %w", err)
	}
	subject := fmt.Sprintf("%s shared \"%s\" with you", notice.SharedBy, notice.FolderName)
	msg := s.buildMessage([]string{notice.To}, subject, html)
	return s.send(s.server, s.auth, s.config.From, []string{notice.To}, msg)
}

func (s *Service) buildMessage(to []string, subject, htmlBody string) []byte {
	from := s.config.From
	if s.config.FromName != "" {
		from = fmt.Sprintf("%s <%s>", s.config.FromName, s.config.From)
	}
	boundary := "boundary-snipshelf"

	var msg bytes.Buffer
	fmt.Fprintf(&msg, "To: %s\r\n", strings.Join(to, ", "))
	fmt.Fprintf(&msg, "From: %s\r\n", from)
	fmt.Fprintf(&msg, "Subject: %s\r\n", subject)
	fmt.Fprintf(&msg, "MIME-Version: 1.0\r\n")
	fmt.Fprintf(&msg, "Content-Type: multipart/alternative; boundary=\"%s\"\r\n", boundary)
	fmt.Fprintf(&msg, "\r\n")

	fmt.Fprintf(&msg, "--%s\r\n", boundary)
	fmt.Fprintf(&msg, "Content-Type: text/plain; charset=UTF-8\r\n")
	fmt.Fprintf(&msg, "\r\n")
	fmt.Fprintf(&msg, "%s\r\n", subject)
	fmt.Fprintf(&msg, "\r\n")

	fmt.Fprintf(&msg, "--%s\r\n", boundary)
	fmt.Fprintf(&msg, "Content-Type: text/html; charset=UTF-8\r\n")
	fmt.Fprintf(&msg, "\r\n")
	fmt.Fprintf(&msg, "%s\r\n", htmlBody)
	fmt.Fprintf(&msg, "\r\n")
	fmt.Fprintf(&msg, "--%s--\r\n", boundary)
	return msg.Bytes()
}

func renderTemplate(tmpl string, data any) (string, error) {
	t, err := template.New("email").Parse(tmpl)
	if err != nil {
		return "", err
	}
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

const shareNoticeTemplate = `<!DOCTYPE html>
<html>
<head>
    <meta charset="UTF-8">
    <title>A folder was shared with you</title>
</head>
<body style="font-family: -apple-system, sans-serif; line-height: 1.6; color: #333; max-width: 600px; margin: 0 auto; padding: 20px;">
    <h2>{{.SharedBy}} shared a folder with you</h2>
    <p>You can now open <strong>{{.FolderName}}</strong> in snipshelf as <em>{{.Role}}</em>.</p>
    <p style="margin-top: 30px; font-size: 12px; color: #666;">You received this because someone shared a snipshelf folder with this address.</p>
</body>
</html>`
