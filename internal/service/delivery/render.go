package delivery

import (
	"fmt"
	"html"

	"github.com/bangbuy/notification-service/internal/model"
	"github.com/bangbuy/notification-service/pkg/email"
)

// renderDigest builds the digest email for a claimed job. The dedupe key
// is the job id, stable across attempts, so a retry after an unconfirmed
// provider success cannot double-send.
func renderDigest(j model.NotificationJob, to string) email.Message {
	p := j.Payload

	var subject string
	if p.UnreadCount == 1 {
		subject = fmt.Sprintf("%s sent you a message on BangBuy", p.SenderName)
	} else {
		subject = fmt.Sprintf("%d unread messages from %s on BangBuy", p.UnreadCount, p.SenderName)
	}

	text := fmt.Sprintf(
		"You have %d unread message(s) from %s.\n\n%q\n\nOpen BangBuy to read and reply.\n",
		p.UnreadCount, p.SenderName, p.Excerpt,
	)

	htmlBody := fmt.Sprintf(
		`<p>You have <strong>%d</strong> unread message(s) from <strong>%s</strong>.</p>`+
			`<blockquote>%s</blockquote>`+
			`<p><a href="https://bangbuy.app/chat/%s">Open the conversation</a></p>`,
		p.UnreadCount, html.EscapeString(p.SenderName), html.EscapeString(p.Excerpt), j.ConversationID,
	)

	return email.Message{
		To:        to,
		Subject:   subject,
		Text:      text,
		HTML:      htmlBody,
		DedupeKey: "job:" + j.ID.String(),
	}
}
