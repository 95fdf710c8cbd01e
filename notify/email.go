package notify

import (
	"context"
	"errors"
	"fmt"

	"github.com/wneessen/go-mail"
)

// EmailConfig describes the SMTP relay and the envelope of every alert.
type EmailConfig struct {
	Host string
	Port int
	// From is the sender address; FromName is shown next to it.
	From     string
	FromName string
	To       []string
	// Username and Password enable SMTP PLAIN auth when Username is set.
	Username string
	Password string
}

// EmailChannel sends alerts through an SMTP relay. A new connection is
// dialed for every message so concurrent dispatches never share a client.
type EmailChannel struct {
	cfg EmailConfig
}

// NewEmailChannel checks cfg and returns the channel.
func NewEmailChannel(cfg EmailConfig) (*EmailChannel, error) {
	if cfg.Host == "" {
		return nil, errors.New("email: host is required")
	}
	if cfg.From == "" {
		return nil, errors.New("email: from address is required")
	}
	if len(cfg.To) == 0 {
		return nil, errors.New("email: at least one recipient is required")
	}
	if cfg.Port == 0 {
		cfg.Port = mail.DefaultPort
	}
	cfg.To = append([]string(nil), cfg.To...)
	return &EmailChannel{cfg: cfg}, nil
}

func (c *EmailChannel) Name() string { return "email" }

// Send delivers msg to every recipient in a single SMTP transaction.
func (c *EmailChannel) Send(ctx context.Context, msg Message) error {
	m, err := c.newMsg(msg)
	if err != nil {
		return err
	}

	opts := []mail.Option{
		mail.WithPort(c.cfg.Port),
		mail.WithTLSPolicy(mail.TLSOpportunistic),
	}
	if c.cfg.Username != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(c.cfg.Username),
			mail.WithPassword(c.cfg.Password),
		)
	}

	client, err := mail.NewClient(c.cfg.Host, opts...)
	if err != nil {
		return fmt.Errorf("create smtp client: %w", err)
	}
	if err := client.DialAndSendWithContext(ctx, m); err != nil {
		return fmt.Errorf("send mail via %s:%d: %w", c.cfg.Host, c.cfg.Port, err)
	}
	return nil
}

func (c *EmailChannel) newMsg(msg Message) (*mail.Msg, error) {
	m := mail.NewMsg(mail.WithEncoding(mail.NoEncoding))
	if err := m.FromFormat(c.cfg.FromName, c.cfg.From); err != nil {
		return nil, fmt.Errorf("set from address: %w", err)
	}
	if err := m.To(c.cfg.To...); err != nil {
		return nil, fmt.Errorf("set recipients: %w", err)
	}
	m.Subject(msg.Subject)
	m.SetBodyString(mail.TypeTextPlain, msg.Body)
	return m, nil
}
