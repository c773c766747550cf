package mailer

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"mime"
	"mime/quotedprintable"
	"net"
	"net/mail"
	"net/smtp"
	"net/textproto"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// TLS modes for the relay connection.
const (
	TLSImplicit = "tls"      // TLS from the first byte (port 465)
	TLSStart    = "starttls" // upgrade a plain session (port 587)
	TLSNone     = "none"
)

// SMTPConfig points at the fixed relay. Credentials come from each request.
type SMTPConfig struct {
	Host    string
	Port    int
	TLSMode string
	Timeout time.Duration
}

// SMTPSender opens a fresh authenticated session for every Send.
type SMTPSender struct {
	cfg  SMTPConfig
	dial func(ctx context.Context, network, addr string) (net.Conn, error)
	now  func() time.Time
}

func NewSMTPSender(cfg SMTPConfig) *SMTPSender {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.TLSMode == "" {
		cfg.TLSMode = TLSImplicit
	}
	dialer := &net.Dialer{Timeout: cfg.Timeout}
	return &SMTPSender{cfg: cfg, dial: dialer.DialContext, now: time.Now}
}

func (s *SMTPSender) Name() string {
	return "smtp"
}

func (s *SMTPSender) Send(ctx context.Context, creds Credentials, msg Message) error {
	if err := msg.Validate(); err != nil {
		return Permanent(err)
	}
	body, err := s.buildMessage(msg)
	if err != nil {
		return Permanent(err)
	}

	client, conn, err := s.connect(ctx)
	if err != nil {
		return err
	}
	defer conn.Close()
	defer client.Quit() //nolint:errcheck

	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	} else {
		_ = conn.SetDeadline(time.Now().Add(s.cfg.Timeout))
	}

	if s.cfg.TLSMode == TLSStart {
		if err := client.StartTLS(&tls.Config{ServerName: s.cfg.Host}); err != nil {
			return classify(err)
		}
	}

	if creds.Address != "" && creds.Secret != "" {
		if ok, _ := client.Extension("AUTH"); ok {
			if err := client.Auth(smtp.PlainAuth("", creds.Address, creds.Secret, s.cfg.Host)); err != nil {
				return classify(err)
			}
		}
	}

	if err := client.Mail(msg.From); err != nil {
		return classify(err)
	}
	if err := client.Rcpt(msg.To); err != nil {
		return classify(err)
	}
	w, err := client.Data()
	if err != nil {
		return classify(err)
	}
	if _, err := w.Write([]byte(body)); err != nil {
		return err
	}
	return classify(w.Close())
}

func (s *SMTPSender) connect(ctx context.Context) (*smtp.Client, net.Conn, error) {
	addr := net.JoinHostPort(s.cfg.Host, strconv.Itoa(s.cfg.Port))
	conn, err := s.dial(ctx, "tcp", addr)
	if err != nil {
		return nil, nil, err
	}
	if s.cfg.TLSMode == TLSImplicit {
		tlsConn := tls.Client(conn, &tls.Config{ServerName: s.cfg.Host})
		if err := tlsConn.HandshakeContext(ctx); err != nil {
			conn.Close()
			return nil, nil, err
		}
		conn = tlsConn
	}
	client, err := smtp.NewClient(conn, s.cfg.Host)
	if err != nil {
		conn.Close()
		return nil, nil, err
	}
	return client, conn, nil
}

func (s *SMTPSender) buildMessage(msg Message) (string, error) {
	from, err := mail.ParseAddress(msg.From)
	if err != nil {
		return "", fmt.Errorf("invalid sender address: %w", err)
	}
	to, err := mail.ParseAddress(msg.To)
	if err != nil {
		return "", fmt.Errorf("invalid recipient address: %w", err)
	}

	var b strings.Builder
	b.WriteString("From: " + from.String() + "\r\n")
	b.WriteString("To: " + to.String() + "\r\n")
	b.WriteString("Subject: " + mime.QEncoding.Encode("utf-8", msg.Subject) + "\r\n")
	b.WriteString("Date: " + s.now().Format(time.RFC1123Z) + "\r\n")
	b.WriteString(fmt.Sprintf("Message-ID: <%s@%s>\r\n", uuid.NewString(), domainOf(from.Address)))
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/html; charset=UTF-8\r\n")
	b.WriteString("Content-Transfer-Encoding: quoted-printable\r\n\r\n")

	qp := quotedprintable.NewWriter(&b)
	if _, err := qp.Write([]byte(msg.HTML)); err != nil {
		return "", err
	}
	if err := qp.Close(); err != nil {
		return "", err
	}
	b.WriteString("\r\n")
	return b.String(), nil
}

// classify marks 5xx replies as permanent; everything else is retried.
func classify(err error) error {
	if err == nil {
		return nil
	}
	var tpErr *textproto.Error
	if errors.As(err, &tpErr) && tpErr.Code >= 500 {
		return Permanent(err)
	}
	return err
}

func domainOf(address string) string {
	if i := strings.LastIndex(address, "@"); i >= 0 {
		return address[i+1:]
	}
	return "localhost"
}
