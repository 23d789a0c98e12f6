package notify

import (
	"crypto/tls"
	"fmt"
	"html"
	"net/smtp"
	"strings"
	"time"
)

// EmailService mails price-drop notifications to one recipient
type EmailService struct {
	host     string
	port     int
	username string
	password string
	from     string
	to       string
}

// NewEmailService creates an email channel. It is only usable when
// credentials and a valid recipient are set; see Enabled.
func NewEmailService(host, username, password, from, to string, port int) *EmailService {
	return &EmailService{
		host:     host,
		port:     port,
		username: username,
		password: password,
		from:     from,
		to:       to,
	}
}

// Enabled reports whether the service has credentials and a recipient
func (e *EmailService) Enabled() bool {
	return e.username != "" && e.password != "" && ValidateEmail(e.to)
}

// Name implements Channel
func (e *EmailService) Name() string { return "email" }

// SendEmail sends an email to the configured recipient
func (e *EmailService) SendEmail(subject, body string) error {
	if !e.Enabled() {
		return fmt.Errorf("email service is not configured")
	}

	msg := e.buildMessage(subject, body)
	addr := fmt.Sprintf("%s:%d", e.host, e.port)

	// Try with explicit TLS negotiation first
	if err := e.sendWithTLS(addr, msg); err == nil {
		return nil
	}

	// Fallback to STARTTLS
	return e.sendWithSTARTTLS(addr, msg)
}

// sendWithTLS sends email over a connection upgraded with StartTLS
func (e *EmailService) sendWithTLS(addr, msg string) error {
	auth := smtp.PlainAuth("", e.username, e.password, e.host)

	client, err := smtp.Dial(addr)
	if err != nil {
		return err
	}
	defer client.Close()

	if err := client.StartTLS(&tls.Config{ServerName: e.host}); err != nil {
		return err
	}
	if err := client.Auth(auth); err != nil {
		return err
	}
	if err := client.Mail(e.username); err != nil {
		return err
	}
	if err := client.Rcpt(e.to); err != nil {
		return err
	}

	wc, err := client.Data()
	if err != nil {
		return err
	}
	if _, err := fmt.Fprint(wc, msg); err != nil {
		wc.Close()
		return err
	}
	return wc.Close()
}

// sendWithSTARTTLS sends email using smtp.SendMail
func (e *EmailService) sendWithSTARTTLS(addr, msg string) error {
	auth := smtp.PlainAuth("", e.username, e.password, e.host)

	return smtp.SendMail(addr, auth, e.username, []string{e.to}, []byte(msg))
}

// buildMessage builds the email message
func (e *EmailService) buildMessage(subject, body string) string {
	var msg strings.Builder

	msg.WriteString(fmt.Sprintf("From: %s\r\n", e.from))
	msg.WriteString(fmt.Sprintf("To: %s\r\n", e.to))
	msg.WriteString(fmt.Sprintf("Subject: %s\r\n", subject))
	msg.WriteString("MIME-Version: 1.0\r\n")
	msg.WriteString("Content-Type: text/html; charset=UTF-8\r\n")
	msg.WriteString("\r\n")
	msg.WriteString(body)

	return msg.String()
}

// SendPriceDrop implements Channel
func (e *EmailService) SendPriceDrop(d PriceDrop) error {
	subject := "二手估價下降提醒: " + d.Name
	return e.SendEmail(subject, buildPriceDropHTML(d, time.Now()))
}

// buildPriceDropHTML builds the HTML body of a price-drop email
func buildPriceDropHTML(d PriceDrop, now time.Time) string {
	return fmt.Sprintf(`
<!DOCTYPE html>
<html>
<head>
	<meta charset="UTF-8">
	<style>
		body { font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, sans-serif; }
		.container { max-width: 600px; margin: 0 auto; padding: 20px; }
		.content { background: #f9f9f9; padding: 30px; border-radius: 10px; }
		.product-name { font-size: 24px; font-weight: bold; margin: 20px 0; }
		.price-old { text-decoration: line-through; color: #999; }
		.price-new { color: #00cc66; font-size: 32px; font-weight: bold; }
		.footer { text-align: center; color: #999; font-size: 12px; margin-top: 30px; }
	</style>
</head>
<body>
	<div class="container">
		<div class="content">
			<p>重新估價後，建議售價下降了 NT$%d：</p>
			<div class="product-name">%s</div>
			<p>%s · %s</p>
			<div>
				<span class="price-old">NT$%d</span>
				→
				<span class="price-new">NT$%d</span>
			</div>
			<div class="footer">
				<p>%s</p>
			</div>
		</div>
	</div>
</body>
</html>`,
		d.OldPrice-d.NewPrice,
		html.EscapeString(d.Name),
		html.EscapeString(d.Category),
		html.EscapeString(d.Condition),
		d.OldPrice,
		d.NewPrice,
		now.Format("2006-01-02 15:04:05"),
	)
}

// ValidateEmail validates an email address
func ValidateEmail(email string) bool {
	parts := strings.Split(email, "@")
	if len(parts) != 2 {
		return false
	}
	if parts[0] == "" || parts[1] == "" {
		return false
	}
	return strings.Contains(parts[1], ".")
}
