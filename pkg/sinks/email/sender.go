// Package email sends export notifications and artifacts over SMTP.
package email

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"mime/multipart"
	"net"
	"net/smtp"
	"net/textproto"
	"strconv"
	"strings"
	"time"

	"mercator-hq/scanport/pkg/config"

	"github.com/google/uuid"
)

var (
	// ErrNoRecipients indicates a message without recipients.
	ErrNoRecipients = errors.New("email has no recipients")

	// ErrNotConfigured indicates the sender has no SMTP host or sender address.
	ErrNotConfigured = errors.New("email sink not configured")
)

// Attachment is a file attached to a Message.
type Attachment struct {
	Name     string
	MIMEType string
	Content  []byte
}

// Message is one outgoing email.
type Message struct {
	To         []string
	Subject    string
	Body       string
	HTML       bool
	Attachment *Attachment
}

// Receipt confirms a sent message.
type Receipt struct {
	MessageID string    `json:"message_id"`
	SentAt    time.Time `json:"sent_at"`
}

// Sender delivers messages.
type Sender interface {
	Send(ctx context.Context, msg Message) (*Receipt, error)
}

// SMTPSender delivers messages through an SMTP relay. STARTTLS and AUTH
// are used when the server advertises them.
type SMTPSender struct {
	host     string
	port     int
	username string
	password string
	from     string
	timeout  time.Duration
	logger   *slog.Logger
	now      func() time.Time
}

// NewSMTPSender creates an SMTPSender from the email sink configuration.
func NewSMTPSender(cfg config.EmailConfig, logger *slog.Logger) *SMTPSender {
	if logger == nil {
		logger = slog.Default()
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = config.DefaultEmailTimeout
	}
	port := cfg.Port
	if port == 0 {
		port = config.DefaultSMTPPort
	}
	return &SMTPSender{
		host:     cfg.Host,
		port:     port,
		username: cfg.Username,
		password: cfg.Password,
		from:     cfg.From,
		timeout:  timeout,
		logger:   logger.With("component", "email"),
		now:      time.Now,
	}
}

// Send implements Sender.
func (s *SMTPSender) Send(ctx context.Context, msg Message) (*Receipt, error) {
	if s.host == "" || s.from == "" {
		return nil, ErrNotConfigured
	}
	if len(msg.To) == 0 {
		return nil, ErrNoRecipients
	}

	sentAt := s.now()
	id := fmt.Sprintf("<%s@%s>", uuid.NewString(), s.host)
	raw, err := buildMessage(s.from, msg, id, sentAt)
	if err != nil {
		return nil, err
	}

	if err := s.deliver(ctx, msg.To, raw); err != nil {
		return nil, err
	}

	s.logger.Info("email sent",
		"recipients", len(msg.To),
		"subject", msg.Subject,
		"bytes", len(raw),
	)
	return &Receipt{MessageID: id, SentAt: sentAt}, nil
}

func (s *SMTPSender) deliver(ctx context.Context, to []string, raw []byte) error {
	addr := net.JoinHostPort(s.host, strconv.Itoa(s.port))

	dialer := net.Dialer{Timeout: s.timeout}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("dial %s: %w", addr, err)
	}
	deadline := time.Now().Add(s.timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if err := conn.SetDeadline(deadline); err != nil {
		conn.Close()
		return fmt.Errorf("set deadline: %w", err)
	}

	c, err := smtp.NewClient(conn, s.host)
	if err != nil {
		conn.Close()
		return fmt.Errorf("smtp handshake: %w", err)
	}
	defer c.Close()

	if ok, _ := c.Extension("STARTTLS"); ok {
		if err := c.StartTLS(&tls.Config{ServerName: s.host}); err != nil {
			return fmt.Errorf("smtp starttls: %w", err)
		}
	}
	if s.username != "" {
		if ok, _ := c.Extension("AUTH"); ok {
			if err := c.Auth(smtp.PlainAuth("", s.username, s.password, s.host)); err != nil {
				return fmt.Errorf("smtp auth: %w", err)
			}
		}
	}

	if err := c.Mail(s.from); err != nil {
		return fmt.Errorf("smtp mail from: %w", err)
	}
	for _, rcpt := range to {
		if err := c.Rcpt(rcpt); err != nil {
			return fmt.Errorf("smtp rcpt %s: %w", rcpt, err)
		}
	}

	w, err := c.Data()
	if err != nil {
		return fmt.Errorf("smtp data: %w", err)
	}
	if _, err := w.Write(raw); err != nil {
		w.Close()
		return fmt.Errorf("smtp write: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("smtp data close: %w", err)
	}

	return c.Quit()
}

// buildMessage renders msg as an RFC 5322 message. Messages with an
// attachment are multipart/mixed.
func buildMessage(from string, msg Message, id string, at time.Time) ([]byte, error) {
	var buf bytes.Buffer

	header := textproto.MIMEHeader{}
	header.Set("From", from)
	header.Set("To", strings.Join(msg.To, ", "))
	header.Set("Subject", mime.QEncoding.Encode("utf-8", msg.Subject))
	header.Set("Date", at.Format(time.RFC1123Z))
	header.Set("Message-ID", id)
	header.Set("MIME-Version", "1.0")

	bodyType := "text/plain; charset=utf-8"
	if msg.HTML {
		bodyType = "text/html; charset=utf-8"
	}

	if msg.Attachment == nil {
		header.Set("Content-Type", bodyType)
		header.Set("Content-Transfer-Encoding", "8bit")
		writeHeader(&buf, header)
		buf.WriteString(msg.Body)
		return buf.Bytes(), nil
	}

	mw := multipart.NewWriter(&buf)
	header.Set("Content-Type", "multipart/mixed; boundary="+mw.Boundary())
	var head bytes.Buffer
	writeHeader(&head, header)

	part, err := mw.CreatePart(textproto.MIMEHeader{
		"Content-Type":              {bodyType},
		"Content-Transfer-Encoding": {"8bit"},
	})
	if err != nil {
		return nil, fmt.Errorf("create body part: %w", err)
	}
	if _, err := part.Write([]byte(msg.Body)); err != nil {
		return nil, fmt.Errorf("write body part: %w", err)
	}

	att := msg.Attachment
	mimeType := att.MIMEType
	if mimeType == "" {
		mimeType = "application/octet-stream"
	}
	part, err = mw.CreatePart(textproto.MIMEHeader{
		"Content-Type":              {mimeType},
		"Content-Transfer-Encoding": {"base64"},
		"Content-Disposition":       {mime.FormatMediaType("attachment", map[string]string{"filename": att.Name})},
	})
	if err != nil {
		return nil, fmt.Errorf("create attachment part: %w", err)
	}
	enc := base64.NewEncoder(base64.StdEncoding, &lineWrapper{w: part})
	if _, err := enc.Write(att.Content); err != nil {
		return nil, fmt.Errorf("encode attachment: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("encode attachment: %w", err)
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("close multipart: %w", err)
	}

	return append(head.Bytes(), buf.Bytes()...), nil
}

var headerOrder = []string{"From", "To", "Subject", "Date", "Message-Id", "Mime-Version", "Content-Type", "Content-Transfer-Encoding"}

func writeHeader(buf *bytes.Buffer, h textproto.MIMEHeader) {
	for _, k := range headerOrder {
		if v := h.Get(k); v != "" {
			fmt.Fprintf(buf, "%s: %s\r\n", k, v)
		}
	}
	buf.WriteString("\r\n")
}

// lineWrapper breaks base64 output into 76 character lines.
type lineWrapper struct {
	w   io.Writer
	col int
}

func (l *lineWrapper) Write(p []byte) (int, error) {
	written := 0
	for len(p) > 0 {
		n := min(76-l.col, len(p))
		if _, err := l.w.Write(p[:n]); err != nil {
			return written, err
		}
		written += n
		l.col += n
		p = p[n:]
		if l.col == 76 {
			if _, err := l.w.Write([]byte("\r\n")); err != nil {
				return written, err
			}
			l.col = 0
		}
	}
	return written, nil
}
