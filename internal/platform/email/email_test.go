package email

import (
	"context"
	"strings"
	"testing"
	"time"

	"hrims/internal/domain/notifications"
	"hrims/internal/platform/config"
)

func TestBuildMessage(t *testing.T) {
	at := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	msg := string(buildMessage(notifications.Mail{
		From:    "no-reply@hrims.local",
		To:      "chair@example.edu",
		Subject: "Leave request approved",
		Body:    "Your leave was approved.\nEnjoy.",
	}, at))

	for _, want := range []string{
		"From: no-reply@hrims.local\r\n",
		"To: chair@example.edu\r\n",
		"Subject: Leave request approved\r\n",
		"Date: Mon, 02 Mar 2026 09:00:00 +0000\r\n",
		"\r\n\r\nYour leave was approved.\r\nEnjoy.",
	} {
		if !strings.Contains(msg, want) {
			t.Fatalf("message missing %q:\n%s", want, msg)
		}
	}
}

func TestBuildMessageEncodesNonASCIISubject(t *testing.T) {
	msg := string(buildMessage(notifications.Mail{Subject: "Aprobación"}, time.Now()))
	if !strings.Contains(msg, "Subject: =?utf-8?q?") {
		t.Fatalf("expected encoded subject:\n%s", msg)
	}
}

func TestNewWithoutSMTPIsNoop(t *testing.T) {
	m := New(config.Config{EmailEnabled: true})
	if _, ok := m.(noopMailer); !ok {
		t.Fatalf("expected noop mailer, got %T", m)
	}
	if err := m.Send(context.Background(), notifications.Mail{To: "a@b.c"}); err != nil {
		t.Fatalf("noop send failed: %v", err)
	}
}
