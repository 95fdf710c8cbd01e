package main

import (
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"log/slog"
	"net/mail"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// ErrInvalidConfig is returned by Validate. It wraps every problem found.
var ErrInvalidConfig = errors.New("invalid configuration")

// Config holds the application configuration
type Config struct {
	Mail     MailConfig     `yaml:"mail"`
	SMS      SMSConfig      `yaml:"sms"`
	Monitor  MonitorConfig  `yaml:"monitor"`
	Sensor   SensorConfig   `yaml:"sensor"`
	Listener ListenerConfig `yaml:"listener"`
	HTTP     HTTPConfig     `yaml:"http"`
	Log      LogConfig      `yaml:"log"`
	// PIDFile is where start records the daemon's process id.
	PIDFile string `yaml:"pid_file"`
}

// MailConfig describes the SMTP relay used for email alerts.
type MailConfig struct {
	Host       string   `yaml:"host"`
	Port       int      `yaml:"port"`
	From       string   `yaml:"from"`
	FromName   string   `yaml:"from_name"`
	Recipients []string `yaml:"recipients"`
	Username   string   `yaml:"username"`
	Password   string   `yaml:"password"`
}

// SMSConfig describes the modem used to text alerts.
type SMSConfig struct {
	Recipients []string `yaml:"recipients"`
	// SerialPort is the path to the modem's serial port (e.g. "/dev/ttyAMA0")
	SerialPort string `yaml:"serial_port"`
	// BaudRate is the baud rate for serial communication with the modem (e.g. 115200)
	BaudRate    int           `yaml:"baud_rate"`
	SettleDelay time.Duration `yaml:"settle_delay"`
	SendGap     time.Duration `yaml:"send_gap"`
}

// MonitorConfig tunes the outage state machine.
type MonitorConfig struct {
	NotifyInterval    time.Duration `yaml:"notify_interval"`
	ThresholdMA       float64       `yaml:"threshold_ma"`
	Tick              time.Duration `yaml:"tick"`
	MaxSensorFailures int           `yaml:"max_sensor_failures"`
}

// SensorConfig locates and calibrates the INA219. Zero values keep the
// breakout board defaults.
type SensorConfig struct {
	// Bus is the I2C bus name, e.g. "1". Empty picks the first bus.
	Bus            string `yaml:"bus"`
	Address        int    `yaml:"address"`
	ShuntMilliOhms int    `yaml:"shunt_milliohms"`
	MaxCurrentMA   int    `yaml:"max_current_ma"`
}

// ListenerConfig describes the optional inbound SMS listener. It is
// disabled while SerialPort is empty.
type ListenerConfig struct {
	SerialPort   string        `yaml:"serial_port"`
	BaudRate     int           `yaml:"baud_rate"`
	PollInterval time.Duration `yaml:"poll_interval"`
	DBPath       string        `yaml:"db_path"`
}

type HTTPConfig struct {
	// BindAddress is the address the server listens on. Empty disables it.
	BindAddress string `yaml:"bind_address"`
}

type LogConfig struct {
	// Level sets the logging level (e.g. "debug", "info", "warn", "error")
	Level string `yaml:"level"`
	// File receives the log in append mode. Empty means stderr.
	File string `yaml:"file"`
}

// ConfigOption is a function that modifies a Config
type ConfigOption func(*Config) error

// LoadConfig creates a new config by applying the given options in order
func LoadConfig(opts ...ConfigOption) (*Config, error) {
	config := &Config{}

	for _, opt := range opts {
		if err := opt(config); err != nil {
			return nil, err
		}
	}

	return config, nil
}

// WithDefaults applies default configuration values
func WithDefaults() ConfigOption {
	return func(c *Config) error {
		c.Mail = MailConfig{
			Host:       "mail.example.com",
			Port:       25,
			From:       "powerpi@example.com",
			FromName:   "powerpi",
			Recipients: []string{"jdoe@example.com"},
		}
		c.SMS = SMSConfig{
			Recipients:  []string{"15555555555"},
			SerialPort:  "/dev/ttyAMA0",
			BaudRate:    115200,
			SettleDelay: 500 * time.Millisecond,
			SendGap:     3 * time.Second,
		}
		c.Monitor = MonitorConfig{
			NotifyInterval:    900 * time.Second,
			ThresholdMA:       10,
			Tick:              time.Second,
			MaxSensorFailures: 30,
		}
		c.Sensor = SensorConfig{
			Address:        0x40,
			ShuntMilliOhms: 100,
			MaxCurrentMA:   3200,
		}
		c.Listener = ListenerConfig{
			BaudRate:     4800,
			PollInterval: time.Second,
			DBPath:       "inbox.db",
		}
		c.HTTP.BindAddress = "127.0.0.1:8080"
		c.Log.Level = "info"
		c.PIDFile = "powermon.pid"
		return nil
	}
}

// WithFile overlays the YAML file at path. An empty path is a no-op.
func WithFile(path string) ConfigOption {
	return func(c *Config) error {
		if path == "" {
			return nil
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, c); err != nil {
			return fmt.Errorf("failed to unmarshal config: %w", err)
		}
		return nil
	}
}

// WithDotEnv loads the given .env files into the process environment so
// WithEnv can pick them up. Missing files are skipped and variables that
// are already set win.
func WithDotEnv(files ...string) ConfigOption {
	return func(c *Config) error {
		for _, f := range files {
			if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
				return fmt.Errorf("failed to load %s: %w", f, err)
			}
		}
		return nil
	}
}

// WithEnv loads configuration from environment variables
func WithEnv() ConfigOption {
	return func(c *Config) error {
		if host := os.Getenv("MAIL_HOST"); host != "" {
			c.Mail.Host = host
		}

		if port := os.Getenv("MAIL_PORT"); port != "" {
			p, err := strconv.Atoi(port)
			if err != nil {
				return fmt.Errorf("invalid MAIL_PORT %q: %w", port, err)
			}
			c.Mail.Port = p
		}

		if from := os.Getenv("MAIL_FROM"); from != "" {
			c.Mail.From = from
		}

		if name := os.Getenv("MAIL_FROM_NAME"); name != "" {
			c.Mail.FromName = name
		}

		if rcpts := os.Getenv("MAIL_RECIPIENTS"); rcpts != "" {
			c.Mail.Recipients = splitList(rcpts)
		}

		if user := os.Getenv("MAIL_USERNAME"); user != "" {
			c.Mail.Username = user
		}

		if pass := os.Getenv("MAIL_PASSWORD"); pass != "" {
			c.Mail.Password = pass
		}

		if numbers := os.Getenv("SMS_RECIPIENTS"); numbers != "" {
			c.SMS.Recipients = splitList(numbers)
		}

		if serial := os.Getenv("SMS_SERIAL_PORT"); serial != "" {
			c.SMS.SerialPort = serial
		}

		if baud := os.Getenv("SMS_BAUD_RATE"); baud != "" {
			b, err := strconv.Atoi(baud)
			if err != nil {
				return fmt.Errorf("invalid SMS_BAUD_RATE %q: %w", baud, err)
			}
			c.SMS.BaudRate = b
		}

		if interval := os.Getenv("NOTIFY_INTERVAL"); interval != "" {
			s, err := strconv.Atoi(interval)
			if err != nil {
				return fmt.Errorf("invalid NOTIFY_INTERVAL %q: %w", interval, err)
			}
			c.Monitor.NotifyInterval = time.Duration(s) * time.Second
		}

		if bus := os.Getenv("SENSOR_I2C_BUS"); bus != "" {
			c.Sensor.Bus = bus
		}

		if addr := os.Getenv("SENSOR_I2C_ADDRESS"); addr != "" {
			a, err := parseAddress(addr)
			if err != nil {
				return fmt.Errorf("invalid SENSOR_I2C_ADDRESS %q: %w", addr, err)
			}
			c.Sensor.Address = a
		}

		if serial := os.Getenv("LISTENER_SERIAL_PORT"); serial != "" {
			c.Listener.SerialPort = serial
		}

		if db := os.Getenv("LISTENER_DB_PATH"); db != "" {
			c.Listener.DBPath = db
		}

		if addr, ok := os.LookupEnv("BIND_ADDRESS"); ok {
			c.HTTP.BindAddress = addr
		}

		if level := os.Getenv("LOG_LEVEL"); level != "" {
			c.Log.Level = level
		}

		if file := os.Getenv("LOG_FILE"); file != "" {
			c.Log.File = file
		}

		if pid := os.Getenv("PID_FILE"); pid != "" {
			c.PIDFile = pid
		}

		return nil
	}
}

// registerFlags defines every flag WithFlags understands on fSet.
func registerFlags(fSet *flag.FlagSet) {
	fSet.String("config", "", "Path to a YAML configuration file")
	fSet.String("mail-host", "mail.example.com", "SMTP relay host")
	fSet.Int("mail-port", 25, "SMTP relay port")
	fSet.String("mail-from", "powerpi@example.com", "Sender address of email alerts")
	fSet.String("sms-serial-port", "/dev/ttyAMA0", "Serial port of the modem that sends SMS alerts")
	fSet.Int("sms-baud-rate", 115200, "Baud rate of the SMS modem")
	fSet.Int("notify-interval", 900, "Seconds between repeated alerts during an outage")
	fSet.String("sensor-bus", "", "I2C bus of the INA219 (empty picks the first bus)")
	fSet.String("sensor-address", "0x40", "I2C address of the INA219")
	fSet.String("listener-serial-port", "", "Serial port of the modem receiving SMS (empty disables the listener)")
	fSet.String("bind-address", "127.0.0.1:8080", "Bind address for the HTTP server (empty disables it)")
	fSet.String("log-level", "info", "Log level (debug, info, warn, error)")
	fSet.String("log-file", "", "Append logs to this file instead of stderr")
	fSet.String("pid-file", "powermon.pid", "Path of the PID file")
}

// WithFlags loads configuration from command-line flags
func WithFlags(fSet *flag.FlagSet) ConfigOption {
	return func(c *Config) error {
		var errs []error
		fSet.Visit(func(f *flag.Flag) {
			switch f.Name {
			case "mail-host":
				c.Mail.Host = f.Value.String()
			case "mail-port":
				if p, err := strconv.Atoi(f.Value.String()); err == nil {
					c.Mail.Port = p
				}
			case "mail-from":
				c.Mail.From = f.Value.String()
			case "sms-serial-port":
				c.SMS.SerialPort = f.Value.String()
			case "sms-baud-rate":
				if b, err := strconv.Atoi(f.Value.String()); err == nil {
					c.SMS.BaudRate = b
				}
			case "notify-interval":
				if s, err := strconv.Atoi(f.Value.String()); err == nil {
					c.Monitor.NotifyInterval = time.Duration(s) * time.Second
				}
			case "sensor-bus":
				c.Sensor.Bus = f.Value.String()
			case "sensor-address":
				a, err := parseAddress(f.Value.String())
				if err != nil {
					errs = append(errs, fmt.Errorf("invalid -sensor-address %q: %w", f.Value.String(), err))
					return
				}
				c.Sensor.Address = a
			case "listener-serial-port":
				c.Listener.SerialPort = f.Value.String()
			case "bind-address":
				c.HTTP.BindAddress = f.Value.String()
			case "log-level":
				c.Log.Level = f.Value.String()
			case "log-file":
				c.Log.File = f.Value.String()
			case "pid-file":
				c.PIDFile = f.Value.String()
			}
		})
		return errors.Join(errs...)
	}
}

// parseAddress accepts decimal, 0x hex or 0o octal.
func parseAddress(s string) (int, error) {
	a, err := strconv.ParseInt(s, 0, 0)
	if err != nil {
		return 0, err
	}
	return int(a), nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

var phoneNumber = regexp.MustCompile(`^\+?\d{7,15}$`)

// Validate reports every setting the daemon cannot start with.
func (c *Config) Validate() error {
	var errs []error

	if c.Mail.Host == "" {
		errs = append(errs, errors.New("mail host is required"))
	}
	if c.Mail.Port <= 0 || c.Mail.Port > 65535 {
		errs = append(errs, fmt.Errorf("mail port %d out of range", c.Mail.Port))
	}
	if _, err := mail.ParseAddress(c.Mail.From); err != nil {
		errs = append(errs, fmt.Errorf("mail from address %q: %w", c.Mail.From, err))
	}
	if len(c.Mail.Recipients) == 0 {
		errs = append(errs, errors.New("at least one email recipient is required"))
	}
	for _, rcpt := range c.Mail.Recipients {
		if _, err := mail.ParseAddress(rcpt); err != nil {
			errs = append(errs, fmt.Errorf("email recipient %q: %w", rcpt, err))
		}
	}

	if len(c.SMS.Recipients) == 0 {
		errs = append(errs, errors.New("at least one SMS recipient is required"))
	}
	for _, number := range c.SMS.Recipients {
		if !phoneNumber.MatchString(number) {
			errs = append(errs, fmt.Errorf("SMS recipient %q is not a phone number", number))
		}
	}
	if c.SMS.SerialPort == "" {
		errs = append(errs, errors.New("SMS serial port is required"))
	}
	if c.SMS.BaudRate <= 0 {
		errs = append(errs, fmt.Errorf("SMS baud rate must be positive, got %d", c.SMS.BaudRate))
	}
	if c.SMS.SettleDelay < 0 || c.SMS.SendGap < 0 {
		errs = append(errs, errors.New("SMS delays must not be negative"))
	}

	if c.Monitor.NotifyInterval <= 0 {
		errs = append(errs, errors.New("notify interval must be positive"))
	}
	if c.Monitor.ThresholdMA <= 0 {
		errs = append(errs, errors.New("current threshold must be positive"))
	}
	if c.Monitor.Tick <= 0 {
		errs = append(errs, errors.New("monitor tick must be positive"))
	}
	if c.Sensor.Address < 0x03 || c.Sensor.Address > 0x77 {
		errs = append(errs, fmt.Errorf("sensor I2C address %#x out of range", c.Sensor.Address))
	}
	if c.Sensor.ShuntMilliOhms < 0 || c.Sensor.MaxCurrentMA < 0 {
		errs = append(errs, errors.New("sensor calibration must not be negative"))
	}

	if c.Listener.SerialPort != "" {
		if c.Listener.BaudRate <= 0 {
			errs = append(errs, fmt.Errorf("listener baud rate must be positive, got %d", c.Listener.BaudRate))
		}
		if c.Listener.PollInterval <= 0 {
			errs = append(errs, errors.New("listener poll interval must be positive"))
		}
		if c.Listener.DBPath == "" {
			errs = append(errs, errors.New("listener database path is required"))
		}
	}

	if _, err := parseLogLevel(c.Log.Level); err != nil {
		errs = append(errs, err)
	}
	if c.PIDFile == "" {
		errs = append(errs, errors.New("PID file path is required"))
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, errors.Join(errs...))
	}
	return nil
}

func parseLogLevel(level string) (slog.Level, error) {
	switch level {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("unknown log level %q", level)
	}
}
