package notifier

import (
	"context"
	"crypto/tls"
	"fmt"
	"html"
	"log/slog"
	"mime"
	"net"
	"net/smtp"
	"strconv"
	"strings"
	"time"

	"github.com/pauljones0/rental-watch-bot/internal/models"
)

const implicitTLSPort = 465

// Email delivers batches as an HTML mail over SMTP. Port 465 uses implicit
// TLS; other ports upgrade with STARTTLS when the server offers it.
type Email struct {
	host     string
	port     int
	from     string
	password string
	to       string
	timeout  time.Duration
}

func NewEmail(host string, port int, from, password, to string) *Email {
	return &Email{
		host:     host,
		port:     port,
		from:     from,
		password: password,
		to:       to,
		timeout:  20 * time.Second,
	}
}

func (e *Email) Notify(ctx context.Context, batch models.Batch) error {
	if len(batch.Listings) == 0 {
		return nil
	}
	msg := buildEmail(e.from, e.to, batch, time.Now())

	if err := e.send(ctx, msg); err != nil {
		return fmt.Errorf("email to %s: %w", e.to, err)
	}
	slog.Info("Email notification sent", "listings", len(batch.Listings), "to", e.to)
	return nil
}

func (e *Email) send(ctx context.Context, msg []byte) error {
	addr := net.JoinHostPort(e.host, strconv.Itoa(e.port))
	dialer := &net.Dialer{Timeout: e.timeout}
	tlsConfig := &tls.Config{ServerName: e.host, MinVersion: tls.VersionTLS12}

	var conn net.Conn
	var err error
	if e.port == implicitTLSPort {
		conn, err = (&tls.Dialer{NetDialer: dialer, Config: tlsConfig}).DialContext(ctx, "tcp", addr)
	} else {
		conn, err = dialer.DialContext(ctx, "tcp", addr)
	}
	if err != nil {
		return fmt.Errorf("dial %s: %w", addr, err)
	}
	deadline := time.Now().Add(e.timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	_ = conn.SetDeadline(deadline)

	c, err := smtp.NewClient(conn, e.host)
	if err != nil {
		conn.Close()
		return fmt.Errorf("smtp handshake: %w", err)
	}
	defer c.Close()

	if e.port != implicitTLSPort {
		if ok, _ := c.Extension("STARTTLS"); ok {
			if err := c.StartTLS(tlsConfig); err != nil {
				return fmt.Errorf("starttls: %w", err)
			}
		}
	}
	if e.password != "" {
		if err := c.Auth(smtp.PlainAuth("", e.from, e.password, e.host)); err != nil {
			return fmt.Errorf("smtp auth: %w", err)
		}
	}
	if err := c.Mail(e.from); err != nil {
		return fmt.Errorf("smtp MAIL FROM: %w", err)
	}
	if err := c.Rcpt(e.to); err != nil {
		return fmt.Errorf("smtp RCPT TO: %w", err)
	}
	w, err := c.Data()
	if err != nil {
		return fmt.Errorf("smtp DATA: %w", err)
	}
	if _, err := w.Write(msg); err != nil {
		return fmt.Errorf("smtp write: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("smtp end of data: %w", err)
	}
	return c.Quit()
}

// emailSubject reads e.g. "3 new listings in Utrecht".
func emailSubject(batch models.Batch) string {
	noun := "listings"
	if len(batch.Listings) == 1 {
		noun = "listing"
	}
	return fmt.Sprintf("🏠 %d new %s in %s", len(batch.Listings), noun, batch.SearchLabel)
}

func buildEmail(from, to string, batch models.Batch, now time.Time) []byte {
	var b strings.Builder
	b.WriteString("From: " + from + "\r\n")
	b.WriteString("To: " + to + "\r\n")
	b.WriteString("Subject: " + mime.QEncoding.Encode("utf-8", emailSubject(batch)) + "\r\n")
	b.WriteString("Date: " + now.Format(time.RFC1123Z) + "\r\n")
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/html; charset=UTF-8\r\n")
	b.WriteString("\r\n")

	b.WriteString("<h2>🏠 New listings found</h2>\r\n<table cellpadding=\"6\" style=\"border-collapse:collapse\">\r\n")
	b.WriteString("<tr><th align=\"left\">Listing</th><th align=\"left\">Price</th><th align=\"left\">Location</th></tr>\r\n")
	for _, l := range batch.Listings {
		fmt.Fprintf(&b, "<tr><td><a href=\"%s\">%s</a></td><td>%s</td><td>%s</td></tr>\r\n",
			html.EscapeString(l.URL),
			html.EscapeString(l.DisplayTitle()),
			html.EscapeString(orDash(l.RawPrice)),
			html.EscapeString(orDash(l.Location)),
		)
	}
	b.WriteString("</table>\r\n")
	fmt.Fprintf(&b, "<p>Total tracked: %d</p>\r\n", batch.TotalTracked)
	return []byte(b.String())
}
