package notify

import "context"

//go:generate go tool mockgen -source=channel.go -destination=mock_channel.go -package=notify

// Channel delivers a rendered message through one transport.
type Channel interface {
	// Name identifies the channel in logs and metrics, e.g. "email".
	Name() string
	Send(ctx context.Context, msg Message) error
}

// SMSSender sends a single text message to one number.
// *modem.Modem satisfies it.
type SMSSender interface {
	SendSMS(ctx context.Context, number, message string) error
}
