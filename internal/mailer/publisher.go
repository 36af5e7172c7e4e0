// Package mailer delivers email-confirmation letters. The API publishes
// requests to a queue; the worker consumes them, mints a verification token
// and sends the letter over SMTP.
package mailer

import (
	"context"
	"fmt"

	"github.com/contactsbook/apiserver/internal/mq"
	"github.com/contactsbook/apiserver/types"
)

// QueuePublisher hands confirmation requests to the mail worker through a
// message queue.
type QueuePublisher struct {
	backend mq.Backend
	channel string
}

func NewQueuePublisher(backend mq.Backend, channel string) *QueuePublisher {
	return &QueuePublisher{backend: backend, channel: channel}
}

// SendConfirmation enqueues a confirmation letter for email.
func (p *QueuePublisher) SendConfirmation(ctx context.Context, email, username, baseURL string) error {
	msg := types.ConfirmationMessage{
		Email:    email,
		Username: username,
		BaseURL:  baseURL,
	}
	if _, err := mq.PublishJSON(ctx, p.backend, p.channel, msg); err != nil {
		return fmt.Errorf("publish confirmation: %w", err)
	}
	return nil
}
