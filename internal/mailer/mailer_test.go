package mailer

import (
	"bytes"
	"context"
	"errors"
	"io"
	"mime"
	"mime/multipart"
	"net/mail"
	"strings"
	"testing"
	"time"

	logtest "github.com/sirupsen/logrus/hooks/test"
)

func testSettings() Settings {
	return Settings{Host: "smtp.example.com", Port: 587, Username: "bot", Password: "secret", From: "bot@example.com"}
}

func newTestMailer(t *testing.T, settings Settings) (*Mailer, *logtest.Hook) {
	t.Helper()
	logger, hook := logtest.NewNullLogger()
	m := New(settings, logger.WithField("test", true))
	m.now = func() time.Time { return time.Date(2024, 5, 10, 9, 0, 0, 0, time.UTC) }
	return m, hook
}

func TestSendComposesMultipartMessage(t *testing.T) {
	m, hook := newTestMailer(t, testSettings())

	var (
		gotTo  []string
		gotRaw []byte
	)
	m.send = func(ctx context.Context, s Settings, from string, to []string, msg []byte) error {
		if from != "bot@example.com" {
			t.Errorf("unexpected sender %q", from)
		}
		gotTo = to
		gotRaw = msg
		return nil
	}

	err := m.Send(context.Background(), Message{
		To:      []string{"a@example.com", "b@example.com"},
		Subject: "Truck Maintenance Notification: KAA1",
		Body:    "Dear RRU Team Eldoret,",
		Attachments: []Attachment{
			{Filename: "RepairReport-KAA1.xlsx", ContentType: "application/vnd.ms-excel", Data: []byte("xlsx-bytes")},
		},
	})
	if err != nil {
		t.Fatalf("Send returned error: %v", err)
	}
	if len(gotTo) != 2 {
		t.Fatalf("expected 2 recipients, got %v", gotTo)
	}

	parsed, err := mail.ReadMessage(bytes.NewReader(gotRaw))
	if err != nil {
		t.Fatalf("parse message: %v", err)
	}
	if got := parsed.Header.Get("To"); got != "a@example.com, b@example.com" {
		t.Fatalf("unexpected To header %q", got)
	}
	if !strings.HasSuffix(parsed.Header.Get("Message-ID"), "@example.com>") {
		t.Fatalf("unexpected Message-ID %q", parsed.Header.Get("Message-ID"))
	}

	mediaType, params, err := mime.ParseMediaType(parsed.Header.Get("Content-Type"))
	if err != nil || mediaType != "multipart/mixed" {
		t.Fatalf("unexpected content type %q: %v", mediaType, err)
	}

	reader := multipart.NewReader(parsed.Body, params["boundary"])
	var parts []*multipart.Part
	var bodies []string
	for {
		part, err := reader.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatalf("read part: %v", err)
		}
		// NextPart decodes quoted-printable only; base64 stays encoded.
		data, _ := io.ReadAll(part)
		parts = append(parts, part)
		bodies = append(bodies, string(data))
	}
	if len(parts) != 2 {
		t.Fatalf("expected body and attachment parts, got %d", len(parts))
	}
	if parts[1].FileName() != "RepairReport-KAA1.xlsx" {
		t.Fatalf("unexpected attachment name %q", parts[1].FileName())
	}
	if strings.TrimSpace(bodies[1]) != "eGxzeC1ieXRlcw==" {
		t.Fatalf("unexpected attachment encoding %q", bodies[1])
	}

	if len(hook.Entries) != 1 || hook.LastEntry().Data["event"] != "email_sent" {
		t.Fatalf("expected email_sent log entry, got %+v", hook.Entries)
	}
}

func TestSendNotConfigured(t *testing.T) {
	settings := testSettings()
	settings.Password = ""
	m, _ := newTestMailer(t, settings)
	m.send = func(context.Context, Settings, string, []string, []byte) error {
		t.Fatalf("send must not be called")
		return nil
	}

	if m.Enabled() {
		t.Fatalf("expected mailer to be disabled")
	}
	if err := m.Send(context.Background(), Message{To: []string{"a@example.com"}}); !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("expected ErrNotConfigured, got %v", err)
	}
}

func TestSendNoRecipients(t *testing.T) {
	m, _ := newTestMailer(t, testSettings())

	if err := m.Send(context.Background(), Message{Subject: "x"}); !errors.Is(err, ErrNoRecipients) {
		t.Fatalf("expected ErrNoRecipients, got %v", err)
	}
}

func TestSendPropagatesTransportError(t *testing.T) {
	m, hook := newTestMailer(t, testSettings())
	transportErr := errors.New("connection refused")
	m.send = func(context.Context, Settings, string, []string, []byte) error {
		return transportErr
	}

	err := m.Send(context.Background(), Message{To: []string{"a@example.com"}, Subject: "s"})
	if !errors.Is(err, transportErr) {
		t.Fatalf("expected transport error, got %v", err)
	}
	if hook.LastEntry() == nil || hook.LastEntry().Data["event"] != "email_failed" {
		t.Fatalf("expected email_failed log entry")
	}
}

func TestWriteBase64WrapsLines(t *testing.T) {
	var buf bytes.Buffer
	if err := writeBase64(&buf, bytes.Repeat([]byte("a"), 100)); err != nil {
		t.Fatalf("writeBase64 returned error: %v", err)
	}
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\r\n") {
		if len(line) > 76 {
			t.Fatalf("line longer than 76 chars: %d", len(line))
		}
	}
}
