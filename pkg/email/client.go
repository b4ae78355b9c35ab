// Package email sends notification emails over SMTP.
//
// Every outbound message carries a dedupe key header that is stable per
// logical notification, so providers that honor it will drop a duplicate
// delivery even when a job is retried after an unconfirmed success.
package email

import (
	"fmt"

	"github.com/google/uuid"
	"gopkg.in/mail.v2"
)

// Message is one rendered email ready to be handed to the provider.
type Message struct {
	To        string
	Subject   string
	Text      string
	HTML      string
	DedupeKey string // stable per logical notification, never per attempt
}

type Client struct {
	smtpHost string
	smtpPort int
	username string
	password string
	from     string
}

func NewClient(smtpHost string, smtpPort int, username, password, from string) *Client {
	return &Client{
		smtpHost: smtpHost,
		smtpPort: smtpPort,
		username: username,
		password: password,
		from:     from,
	}
}

// Send delivers the message and returns the provider message id. Failures
// come back as *SendError carrying a retryability classification.
func (c *Client) Send(m Message) (string, error) {
	msg := mail.NewMessage()

	messageID := fmt.Sprintf("<%s@%s>", uuid.New(), c.smtpHost)

	msg.SetHeader("From", c.from)
	msg.SetHeader("To", m.To)
	msg.SetHeader("Subject", m.Subject)
	msg.SetHeader("Message-ID", messageID)
	if m.DedupeKey != "" {
		msg.SetHeader("X-Entity-Ref-ID", m.DedupeKey)
	}

	msg.SetBody("text/plain", m.Text)
	if m.HTML != "" {
		msg.AddAlternative("text/html", m.HTML)
	}

	dialer := mail.NewDialer(c.smtpHost, c.smtpPort, c.username, c.password)

	if err := dialer.DialAndSend(msg); err != nil {
		return "", Classify(err)
	}

	return messageID, nil
}
