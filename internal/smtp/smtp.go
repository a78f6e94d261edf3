// Package smtp wraps outbound mail delivery behind a session interface.
//
// A campaign opens exactly one Session and reuses it for every message; the
// session is closed when the campaign ends, whatever the exit path. Two
// providers are available: a persistent SMTP connection (gomail) and AWS SES.
package smtp

import (
	"context"
	"crypto/tls"
	"fmt"

	"gopkg.in/gomail.v2"

	"github.com/ignite/mailblast/internal/config"
)

// Message is one outbound email. Plain text for clients without HTML
// rendering is derived from HTML at send time.
type Message struct {
	From     string
	FromName string
	To       string
	Subject  string
	HTML     string
}

// Session is a single opened, reusable outbound connection.
type Session interface {
	// Send transmits one message. A failure affects only that message;
	// the session is assumed usable for the next one.
	Send(m *Message) error
	Close() error
}

// Mailer opens delivery sessions.
type Mailer interface {
	Open(ctx context.Context) (Session, error)
}

// Dialer is an SMTP-backed Mailer holding connection settings. The
// underlying connection is established once per Open and kept alive for
// the whole campaign.
type Dialer struct {
	dialer *gomail.Dialer
}

// NewDialer creates an SMTP mailer from config.
func NewDialer(cfg config.SMTPConfig) *Dialer {
	d := gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password)
	if cfg.InsecureSkipVerify {
		d.TLSConfig = &tls.Config{InsecureSkipVerify: true}
	}
	return &Dialer{dialer: d}
}

// Open dials the SMTP server and returns the persistent session.
func (d *Dialer) Open(_ context.Context) (Session, error) {
	sc, err := d.dialer.Dial()
	if err != nil {
		return nil, fmt.Errorf("connecting to %s:%d: %w", d.dialer.Host, d.dialer.Port, err)
	}
	return &smtpSession{sc: sc}, nil
}

type smtpSession struct {
	sc gomail.SendCloser
}

func (s *smtpSession) Send(m *Message) error {
	msg := gomail.NewMessage()
	msg.SetAddressHeader("From", m.From, m.FromName)
	msg.SetHeader("To", m.To)
	msg.SetHeader("Subject", m.Subject)
	// Multipart alternative: readable plain part first, HTML preferred.
	msg.SetBody("text/plain", HTMLToPlain(m.HTML))
	msg.AddAlternative("text/html", m.HTML)

	if err := gomail.Send(s.sc, msg); err != nil {
		return fmt.Errorf("sending to %s: %w", m.To, err)
	}
	return nil
}

func (s *smtpSession) Close() error {
	return s.sc.Close()
}
