package modem

import (
	"context"
	"fmt"

	"i4.energy/across/powermon/at"
)

// SendSMS sends a text message to a single recipient.
//
// The sequence is AT+CMGS="<number>", the message body, then Ctrl-Z, each
// written as its own command and followed by the settle delay. The modem's
// replies are not inspected. After the sequence SendSMS waits for the send
// gap because the modem cannot accept the next message any sooner. Complete
// sequences from concurrent callers never interleave.
func (m *Modem) SendSMS(ctx context.Context, number, message string) error {
	if number == "" {
		return ErrNoRecipient
	}

	m.smsMu.Lock()
	defer m.smsMu.Unlock()

	if err := m.SendCmd(ctx, at.CmdSendSMS(number)); err != nil {
		return fmt.Errorf("AT+CMGS command failed: %w", err)
	}
	if err := m.SendCmd(ctx, message); err != nil {
		return fmt.Errorf("SMS body write failed: %w", err)
	}
	if err := m.SendCmd(ctx, at.CtrlZ); err != nil {
		return fmt.Errorf("SMS terminator write failed: %w", err)
	}

	return sleep(ctx, m.sendGap)
}
