package mail

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/smtp"
	"strings"
	"time"
)

// SMTPError reports the SMTP step that failed.
type SMTPError struct {
	Op  string
	Err error
}

func (e *SMTPError) Error() string { return fmt.Sprintf("smtp %s: %v", e.Op, e.Err) }
func (e *SMTPError) Unwrap() error { return e.Err }

type SMTPMailer struct {
	addr     string
	host     string
	user     string
	pass     string
	from     string
	fromName string
	dialer   net.Dialer
}

func NewSMTPMailer(cfg Config) *SMTPMailer {
	port := cfg.Port
	if port == "" {
		port = "587"
	}
	return &SMTPMailer{
		addr:     net.JoinHostPort(cfg.Host, port),
		host:     cfg.Host,
		user:     cfg.User,
		pass:     cfg.Pass,
		from:     cfg.From,
		fromName: cfg.FromName,
		dialer:   net.Dialer{Timeout: 10 * time.Second},
	}
}

func (m *SMTPMailer) Send(ctx context.Context, msg Message) error {
	conn, err := m.dialer.DialContext(ctx, "tcp", m.addr)
	if err != nil {
		return err
	}
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}

	c, err := smtp.NewClient(conn, m.host)
	if err != nil {
		conn.Close()
		return &SMTPError{Op: "hello", Err: err}
	}
	defer c.Close()

	if ok, _ := c.Extension("STARTTLS"); ok {
		if err := c.StartTLS(&tls.Config{ServerName: m.host}); err != nil {
			return &SMTPError{Op: "starttls", Err: err}
		}
	}
	if m.user != "" {
		if err := c.Auth(smtp.PlainAuth("", m.user, m.pass, m.host)); err != nil {
			return &SMTPError{Op: "auth", Err: err}
		}
	}
	if err := c.Mail(m.from); err != nil {
		return &SMTPError{Op: "mail", Err: err}
	}
	if err := c.Rcpt(msg.To); err != nil {
		return &SMTPError{Op: "rcpt", Err: err}
	}

	w, err := c.Data()
	if err != nil {
		return &SMTPError{Op: "data", Err: err}
	}
	if _, err := w.Write(m.render(msg)); err != nil {
		return &SMTPError{Op: "data", Err: err}
	}
	if err := w.Close(); err != nil {
		return &SMTPError{Op: "data", Err: err}
	}
	return c.Quit()
}

const boundary = "pgbrowser-alternative"

func (m *SMTPMailer) render(msg Message) []byte {
	from := m.from
	if m.fromName != "" {
		from = fmt.Sprintf("%s <%s>", m.fromName, m.from)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", from)
	fmt.Fprintf(&b, "To: %s\r\n", msg.To)
	fmt.Fprintf(&b, "Subject: %s\r\n", msg.Subject)
	b.WriteString("MIME-Version: 1.0\r\n")
	fmt.Fprintf(&b, "Content-Type: multipart/alternative; boundary=%q\r\n\r\n", boundary)

	fmt.Fprintf(&b, "--%s\r\nContent-Type: text/plain; charset=utf-8\r\n\r\n%s\r\n", boundary, msg.Text)
	if msg.HTML != "" {
		fmt.Fprintf(&b, "--%s\r\nContent-Type: text/html; charset=utf-8\r\n\r\n%s\r\n", boundary, msg.HTML)
	}
	fmt.Fprintf(&b, "--%s--\r\n", boundary)
	return []byte(b.String())
}
