package mailer

import (
	"errors"
	"net/textproto"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildMessageHeaders(t *testing.T) {
	s := NewSMTPSender(SMTPConfig{Host: "smtp.example.com", Port: 465})
	s.now = func() time.Time { return time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC) }

	body, err := s.buildMessage(Message{
		From:    "sender@example.com",
		To:      "ada@example.com",
		Subject: "Grüße",
		HTML:    "<p>Hello Ada</p>",
	})
	require.NoError(t, err)

	head, content, found := strings.Cut(body, "\r\n\r\n")
	require.True(t, found)
	assert.Contains(t, head, "From: <sender@example.com>")
	assert.Contains(t, head, "To: <ada@example.com>")
	assert.Contains(t, head, "Subject: =?utf-8?q?Gr=C3=BC=C3=9Fe?=")
	assert.Contains(t, head, "Date: Wed, 01 May 2024 10:00:00 +0000")
	assert.Contains(t, head, "@example.com>")
	assert.Contains(t, head, "Content-Type: text/html; charset=UTF-8")
	assert.Contains(t, content, "<p>Hello Ada</p>")
}

func TestBuildMessageRejectsBadAddress(t *testing.T) {
	s := NewSMTPSender(SMTPConfig{Host: "smtp.example.com"})
	_, err := s.buildMessage(Message{From: "not an address", To: "ada@example.com", Subject: "x", HTML: "y"})
	assert.Error(t, err)
}

func TestClassifySMTPReplies(t *testing.T) {
	assert.NoError(t, classify(nil))
	assert.True(t, IsPermanent(classify(&textproto.Error{Code: 535, Msg: "auth failed"})))
	assert.False(t, IsPermanent(classify(&textproto.Error{Code: 421, Msg: "try later"})))
	assert.False(t, IsPermanent(classify(errors.New("eof"))))
}

func TestNewSMTPSenderDefaults(t *testing.T) {
	s := NewSMTPSender(SMTPConfig{Host: "smtp.example.com", Port: 465})
	assert.Equal(t, TLSImplicit, s.cfg.TLSMode)
	assert.Equal(t, 30*time.Second, s.cfg.Timeout)
	assert.Equal(t, "smtp", s.Name())
}
