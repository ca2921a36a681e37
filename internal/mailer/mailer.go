// Package mailer delivers report emails with attachments over SMTP.
package mailer

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net"
	"net/smtp"
	"net/textproto"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"truck_notify_bot/internal/logging"
)

const implicitTLSPort = 465

var (
	// ErrNotConfigured is returned when SMTP settings are incomplete.
	ErrNotConfigured = errors.New("smtp is not configured")
	// ErrNoRecipients is returned when a message has no recipients.
	ErrNoRecipients = errors.New("no email recipients")
)

// Settings holds the SMTP connection details.
type Settings struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

func (s Settings) complete() bool {
	return s.Host != "" && s.Username != "" && s.Password != "" && s.From != ""
}

// Attachment is a file attached to a message.
type Attachment struct {
	Filename    string
	ContentType string
	Data        []byte
}

// Message is a plain-text email with optional attachments.
type Message struct {
	To          []string
	Subject     string
	Body        string
	Attachments []Attachment
}

type sendFunc func(ctx context.Context, s Settings, from string, to []string, msg []byte) error

// Mailer sends messages through a single SMTP account.
type Mailer struct {
	settings Settings
	send     sendFunc
	logger   *logrus.Entry
	now      func() time.Time
}

// New constructs a Mailer. A Mailer with incomplete settings returns
// ErrNotConfigured from Send.
func New(settings Settings, logger *logrus.Entry) *Mailer {
	if logger == nil {
		logger = logging.Logger()
	}
	return &Mailer{
		settings: settings,
		send:     dialAndSend,
		logger:   logger,
		now:      time.Now,
	}
}

// Enabled reports whether the mailer has every setting it needs.
func (m *Mailer) Enabled() bool {
	return m != nil && m.settings.complete()
}

// Send delivers msg to every recipient in one SMTP transaction.
func (m *Mailer) Send(ctx context.Context, msg Message) error {
	if ctx == nil {
		return errors.New("context is required")
	}
	if !m.Enabled() {
		return ErrNotConfigured
	}
	if len(msg.To) == 0 {
		return ErrNoRecipients
	}

	raw, err := m.compose(msg)
	if err != nil {
		return fmt.Errorf("compose email: %w", err)
	}

	if err := m.send(ctx, m.settings, m.settings.From, msg.To, raw); err != nil {
		m.logger.WithFields(logging.Fields{
			"event":   "email_failed",
			"to":      strings.Join(msg.To, ","),
			"subject": msg.Subject,
		}).WithError(err).Error("email delivery failed")
		return fmt.Errorf("send email: %w", err)
	}

	m.logger.WithFields(logging.Fields{
		"event":   "email_sent",
		"to":      strings.Join(msg.To, ","),
		"subject": msg.Subject,
	}).Info("email sent")

	return nil
}

func (m *Mailer) compose(msg Message) ([]byte, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	domain := "localhost"
	if at := strings.LastIndex(m.settings.From, "@"); at >= 0 {
		domain = m.settings.From[at+1:]
	}

	headers := []string{
		"From: " + m.settings.From,
		"To: " + strings.Join(msg.To, ", "),
		"Subject: " + mime.QEncoding.Encode("utf-8", msg.Subject),
		"Date: " + m.now().Format(time.RFC1123Z),
		"Message-ID: <" + uuid.NewString() + "@" + domain + ">",
		"MIME-Version: 1.0",
		"Content-Type: multipart/mixed; boundary=" + writer.Boundary(),
	}
	buf.WriteString(strings.Join(headers, "\r\n") + "\r\n\r\n")

	textPart, err := writer.CreatePart(textproto.MIMEHeader{
		"Content-Type":              {"text/plain; charset=utf-8"},
		"Content-Transfer-Encoding": {"base64"},
	})
	if err != nil {
		return nil, err
	}
	if err := writeBase64(textPart, []byte(msg.Body)); err != nil {
		return nil, err
	}

	for _, att := range msg.Attachments {
		contentType := att.ContentType
		if contentType == "" {
			contentType = "application/octet-stream"
		}
		part, err := writer.CreatePart(textproto.MIMEHeader{
			"Content-Type":              {contentType},
			"Content-Transfer-Encoding": {"base64"},
			"Content-Disposition":       {mime.FormatMediaType("attachment", map[string]string{"filename": att.Filename})},
		})
		if err != nil {
			return nil, err
		}
		if err := writeBase64(part, att.Data); err != nil {
			return nil, err
		}
	}

	if err := writer.Close(); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}

// writeBase64 wraps encoded output at 76 columns.
func writeBase64(w io.Writer, data []byte) error {
	encoded := base64.StdEncoding.EncodeToString(data)
	for len(encoded) > 76 {
		if _, err := w.Write([]byte(encoded[:76] + "\r\n")); err != nil {
			return err
		}
		encoded = encoded[76:]
	}
	_, err := w.Write([]byte(encoded + "\r\n"))
	return err
}

func dialAndSend(ctx context.Context, s Settings, from string, to []string, msg []byte) error {
	addr := net.JoinHostPort(s.Host, strconv.Itoa(s.Port))
	dialer := &net.Dialer{Timeout: 30 * time.Second}

	var (
		conn net.Conn
		err  error
	)
	if s.Port == implicitTLSPort {
		conn, err = (&tls.Dialer{NetDialer: dialer, Config: &tls.Config{ServerName: s.Host}}).DialContext(ctx, "tcp", addr)
	} else {
		conn, err = dialer.DialContext(ctx, "tcp", addr)
	}
	if err != nil {
		return fmt.Errorf("dial %s: %w", addr, err)
	}
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}

	client, err := smtp.NewClient(conn, s.Host)
	if err != nil {
		conn.Close()
		return fmt.Errorf("smtp handshake: %w", err)
	}
	defer client.Close()

	if s.Port != implicitTLSPort {
		if ok, _ := client.Extension("STARTTLS"); ok {
			if err := client.StartTLS(&tls.Config{ServerName: s.Host}); err != nil {
				return fmt.Errorf("starttls: %w", err)
			}
		}
	}

	if err := client.Auth(smtp.PlainAuth("", s.Username, s.Password, s.Host)); err != nil {
		return fmt.Errorf("smtp auth: %w", err)
	}
	if err := client.Mail(from); err != nil {
		return fmt.Errorf("mail from: %w", err)
	}
	for _, rcpt := range to {
		if err := client.Rcpt(rcpt); err != nil {
			return fmt.Errorf("rcpt %s: %w", rcpt, err)
		}
	}

	w, err := client.Data()
	if err != nil {
		return fmt.Errorf("data: %w", err)
	}
	if _, err := w.Write(msg); err != nil {
		return fmt.Errorf("write message: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("finish message: %w", err)
	}

	return client.Quit()
}
