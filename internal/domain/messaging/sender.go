package messaging

import "context"

// Sender delivers a plain-text message to a chat id such as 919876543210@c.us.
// This keeps the application logic independent of the message provider.
type Sender interface {
	Send(ctx context.Context, chatID string, text string) error
}
