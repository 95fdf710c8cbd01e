package modem

import (
	"fmt"
	"time"
)

const (
	// DefaultSettleDelay is the pause after each command; the SIM900
	// firmware is not ready for the next command any sooner.
	DefaultSettleDelay = 100 * time.Millisecond
	// DefaultPollInterval is the quiescence window used by ReadAll.
	DefaultPollInterval = 100 * time.Millisecond
	// DefaultSendGap is the pause after each complete SMS send sequence.
	DefaultSendGap = 3 * time.Second
)

// Config holds the settings of a Modem. Build one with NewConfigBuilder.
type Config struct {
	dialer       Dialer
	settleDelay  time.Duration
	pollInterval time.Duration
	readTimeout  time.Duration
	sendGap      time.Duration
}

func (c *Config) validate() error {
	if c.dialer == nil {
		return ErrNoDialer
	}
	for name, d := range map[string]time.Duration{
		"settle delay":  c.settleDelay,
		"poll interval": c.pollInterval,
		"read timeout":  c.readTimeout,
		"send gap":      c.sendGap,
	} {
		if d < 0 {
			return fmt.Errorf("%s %v: %w", name, d, ErrNegativeDuration)
		}
	}
	return nil
}

// ConfigBuilder assembles a Config starting from the defaults.
type ConfigBuilder struct {
	config Config
}

// NewConfigBuilder returns a builder preloaded with the default delays and
// no read timeout.
func NewConfigBuilder() *ConfigBuilder {
	return &ConfigBuilder{
		config: Config{
			settleDelay:  DefaultSettleDelay,
			pollInterval: DefaultPollInterval,
			sendGap:      DefaultSendGap,
		},
	}
}

// WithDialer sets how the Transport is opened.
func (b *ConfigBuilder) WithDialer(d Dialer) *ConfigBuilder {
	b.config.dialer = d
	return b
}

// WithSettleDelay sets the default pause after each command.
func (b *ConfigBuilder) WithSettleDelay(d time.Duration) *ConfigBuilder {
	b.config.settleDelay = d
	return b
}

// WithPollInterval sets the quiescence window of ReadAll.
func (b *ConfigBuilder) WithPollInterval(d time.Duration) *ConfigBuilder {
	b.config.pollInterval = d
	return b
}

// WithReadTimeout bounds ReadAll. Zero keeps it unbounded.
func (b *ConfigBuilder) WithReadTimeout(d time.Duration) *ConfigBuilder {
	b.config.readTimeout = d
	return b
}

// WithSendGap sets the pause after each SMS send sequence.
func (b *ConfigBuilder) WithSendGap(d time.Duration) *ConfigBuilder {
	b.config.sendGap = d
	return b
}

// Build validates and returns the Config.
func (b *ConfigBuilder) Build() (Config, error) {
	c := b.config
	if err := c.validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}
