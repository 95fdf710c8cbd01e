package notify

import (
	"context"
	"errors"
	"fmt"
)

// SMSChannel texts the message body to every configured number, one after
// the other. The sender is responsible for pacing the modem.
type SMSChannel struct {
	sender  SMSSender
	numbers []string
}

// NewSMSChannel returns a channel that sends through sender to numbers.
func NewSMSChannel(sender SMSSender, numbers []string) *SMSChannel {
	return &SMSChannel{
		sender:  sender,
		numbers: append([]string(nil), numbers...),
	}
}

func (c *SMSChannel) Name() string { return "sms" }

// Send tries every number even when an earlier one failed and returns the
// joined failures.
func (c *SMSChannel) Send(ctx context.Context, msg Message) error {
	var errs []error
	for _, number := range c.numbers {
		if err := c.sender.SendSMS(ctx, number, msg.Body); err != nil {
			errs = append(errs, fmt.Errorf("send to %s: %w", number, err))
		}
	}
	return errors.Join(errs...)
}
