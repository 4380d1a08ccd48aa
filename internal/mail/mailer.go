// Package mail renders and sends the portal's notification emails over SMTP.
package mail

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	"html/template"
	"mime"
	"net"
	"net/mail"
	"net/smtp"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/dreamers/incubation-portal/internal/config"
	"github.com/dreamers/incubation-portal/internal/queue"
)

//go:embed templates/*.html
var templateFS embed.FS

var templates = template.Must(template.ParseFS(templateFS, "templates/*.html"))

// SendFunc matches smtp.SendMail.
type SendFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

// SMTPMailer implements queue.Mailer on top of net/smtp.
type SMTPMailer struct {
	cfg     config.SMTPConfig
	baseURL string
	send    SendFunc
	log     *logrus.Logger
	now     func() time.Time
}

// NewSMTPMailer returns a mailer that builds approval links against
// baseURL (the public origin serving /approval).
func NewSMTPMailer(cfg config.SMTPConfig, baseURL string, log *logrus.Logger) *SMTPMailer {
	return &SMTPMailer{
		cfg:     cfg,
		baseURL: strings.TrimRight(baseURL, "/"),
		send:    smtp.SendMail,
		log:     log,
		now:     time.Now,
	}
}

// WithSender swaps the transport, mainly for tests.
func (m *SMTPMailer) WithSender(fn SendFunc) *SMTPMailer {
	m.send = fn
	return m
}

type approvalRequestData struct {
	queue.ApplicationSubmittedEvent
	ApproveURL string
	RejectURL  string
	ValidDays  int
}

// SendApprovalRequest emails the centre admin the approve/reject links.
func (m *SMTPMailer) SendApprovalRequest(ctx context.Context, ev queue.ApplicationSubmittedEvent) error {
	days := int(ev.ExpiresAt.Sub(ev.SubmittedAt).Round(24*time.Hour) / (24 * time.Hour))
	if days <= 0 {
		days = 7
	}
	data := approvalRequestData{
		ApplicationSubmittedEvent: ev,
		ApproveURL:                m.ApprovalURL(ev.ApproveToken),
		RejectURL:                 m.ApprovalURL(ev.RejectToken),
		ValidDays:                 days,
	}
	subject := "New Application for " + ev.IncubationCentre
	return m.deliver(ctx, ev.CentreAdminEmail, subject, "approval_request.html", data)
}

// SendStatusUpdate tells the founder about the review decision.
func (m *SMTPMailer) SendStatusUpdate(ctx context.Context, ev queue.StatusChangedEvent) error {
	subject := fmt.Sprintf("Your application for %s has been %s", ev.StartupName, ev.Status)
	return m.deliver(ctx, ev.Email, subject, "status_update.html", ev)
}

// ApprovalURL is the link embedded in approval emails for token.
func (m *SMTPMailer) ApprovalURL(token string) string {
	return m.baseURL + "/approval?token=" + url.QueryEscape(token)
}

func (m *SMTPMailer) deliver(ctx context.Context, to, subject, tmpl string, data any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, err := mail.ParseAddress(to); err != nil {
		return fmt.Errorf("recipient %q: %w", to, err)
	}
	from, err := mail.ParseAddress(m.cfg.From)
	if err != nil {
		return fmt.Errorf("sender %q: %w", m.cfg.From, err)
	}

	var body bytes.Buffer
	if err := templates.ExecuteTemplate(&body, tmpl, data); err != nil {
		return fmt.Errorf("render %s: %w", tmpl, err)
	}
	msg := m.compose(from.String(), to, subject, body.Bytes())

	var auth smtp.Auth
	if m.cfg.Username != "" {
		auth = smtp.PlainAuth("", m.cfg.Username, m.cfg.Password, m.cfg.Host)
	}
	addr := net.JoinHostPort(m.cfg.Host, strconv.Itoa(m.cfg.Port))
	if err := m.send(addr, auth, from.Address, []string{to}, msg); err != nil {
		return fmt.Errorf("smtp send: %w", err)
	}
	m.log.WithFields(logrus.Fields{"to": to, "template": tmpl}).Debug("mail sent")
	return nil
}

func (m *SMTPMailer) compose(from, to, subject string, html []byte) []byte {
	var b bytes.Buffer
	b.WriteString("From: " + from + "\r\n")
	b.WriteString("To: " + to + "\r\n")
	b.WriteString("Subject: " + mime.QEncoding.Encode("utf-8", subject) + "\r\n")
	b.WriteString("Date: " + m.now().UTC().Format(time.RFC1123Z) + "\r\n")
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/html; charset=\"utf-8\"\r\n")
	b.WriteString("\r\n")
	b.Write(html)
	return b.Bytes()
}
