package whatsapp

import (
	"context"

	"github.com/sirupsen/logrus"
)

// ConsoleSender logs messages instead of delivering them. Used with MESSAGE_PROVIDER=console.
type ConsoleSender struct {
	logger *logrus.Entry
}

func NewConsoleSender(logger *logrus.Entry) *ConsoleSender {
	return &ConsoleSender{logger: logger}
}

func (s *ConsoleSender) Send(ctx context.Context, chatID string, text string) error {
	s.logger.WithFields(logrus.Fields{
		"chat_id": chatID,
		"length":  len(text),
	}).Info("Message (console provider, not delivered)")
	s.logger.Debug(text)
	return ctx.Err()
}
