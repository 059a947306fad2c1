package notify

import (
	"context"
	"fmt"

	"github.com/wneessen/go-mail"
)

// SMTP delivers mail through an SMTP relay over implicit TLS, the transport
// classroom deployments use with an app-password account.
type SMTP struct {
	host     string
	port     int
	username string
	password string
	from     string
}

// NewSMTP creates an SMTP mailer sending from the given account.
func NewSMTP(host string, port int, username, password, from string) *SMTP {
	if from == "" {
		from = username
	}
	return &SMTP{host: host, port: port, username: username, password: password, from: from}
}

// Send composes and delivers one message.
func (s *SMTP) Send(ctx context.Context, msg Message) error {
	m := mail.NewMsg()
	if err := m.From(s.from); err != nil {
		return fmt.Errorf("smtp: from address: %w", err)
	}
	if err := m.To(msg.To); err != nil {
		return fmt.Errorf("smtp: to address: %w", err)
	}
	m.Subject(msg.Subject)
	m.SetBodyString(mail.TypeTextPlain, msg.Body)
	if msg.AttachmentPath != "" {
		m.AttachFile(msg.AttachmentPath)
	}

	client, err := mail.NewClient(s.host,
		mail.WithPort(s.port),
		mail.WithSSL(),
		mail.WithSMTPAuth(mail.SMTPAuthPlain),
		mail.WithUsername(s.username),
		mail.WithPassword(s.password),
	)
	if err != nil {
		return fmt.Errorf("smtp: client: %w", err)
	}
	if err := client.DialAndSendWithContext(ctx, m); err != nil {
		return fmt.Errorf("smtp: send: %w", err)
	}
	return nil
}
