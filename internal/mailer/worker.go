package mailer

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/contactsbook/apiserver/internal/mq"
	"github.com/contactsbook/apiserver/types"
)

// TokenMinter issues email-verification tokens.
type TokenMinter interface {
	CreateEmailToken(subject string) (string, error)
}

// Worker consumes confirmation requests and sends the letters.
type Worker struct {
	backend mq.Backend
	channel string
	tokens  TokenMinter
	sender  Sender
	logger  *slog.Logger
}

func NewWorker(backend mq.Backend, channel string, tokens TokenMinter, sender Sender, logger *slog.Logger) *Worker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Worker{
		backend: backend,
		channel: channel,
		tokens:  tokens,
		sender:  sender,
		logger:  logger,
	}
}

// Run consumes the confirmation channel until ctx is done.
func (w *Worker) Run(ctx context.Context) error {
	w.logger.InfoContext(ctx, "mail worker started", "channel", w.channel)
	return w.backend.Subscribe(ctx, w.channel, w.Handle)
}

// Handle sends the letter described by msg. Malformed messages are dropped;
// delivery failures are returned so the broker redelivers.
func (w *Worker) Handle(ctx context.Context, msg mq.Message) error {
	var req types.ConfirmationMessage
	if err := mq.DecodeJSON(msg, &req); err != nil {
		w.logger.WarnContext(ctx, "dropping malformed confirmation request", "message_id", msg.ID, "error", err)
		return nil
	}
	if strings.TrimSpace(req.Email) == "" {
		w.logger.WarnContext(ctx, "dropping confirmation request without email", "message_id", msg.ID)
		return nil
	}

	token, err := w.tokens.CreateEmailToken(req.Email)
	if err != nil {
		return fmt.Errorf("create email token: %w", err)
	}
	html, err := renderConfirmation(req.Username, confirmationLink(req.BaseURL, token))
	if err != nil {
		return fmt.Errorf("render confirmation: %w", err)
	}

	if err := w.sender.Send(ctx, req.Email, confirmationSubject, html); err != nil {
		w.logger.WarnContext(ctx, "confirmation letter not sent", "message_id", msg.ID, "error", err)
		return err
	}
	w.logger.InfoContext(ctx, "confirmation letter sent", "message_id", msg.ID)
	return nil
}
