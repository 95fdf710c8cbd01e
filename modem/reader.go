package modem

import (
	"context"
	"io"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"i4.energy/across/powermon/at"
)

//go:generate go tool mockgen -source=reader.go -destination=mock_reader.go -package=modem

// NoActiveConnection is what InitReader reports when the modem printed
// nothing back.
const NoActiveConnection = "No active connection"

// TextMsg is an SMS delivered by the modem as a +CMT URC.
type TextMsg struct {
	// PhoneNumber of the sender, e.g. "+12223334444".
	PhoneNumber string `json:"phone_number"`
	// Timestamp in the modem's own format, e.g. "14/05/30,00:13:34-32".
	Timestamp string `json:"timestamp"`
	// Message body without surrounding whitespace.
	Message string `json:"message"`
}

func (t TextMsg) String() string {
	return strings.Join([]string{t.PhoneNumber, t.Timestamp, t.Message}, ", ")
}

// cmtPattern matches a text mode +CMT header followed by a single line body.
// The modem may be configured to add more header fields; those frames are
// not recognized.
var cmtPattern = regexp.MustCompile(`\+CMT: "(\+\d{11})","","(\d{2}/\d{2}/\d{2},\d{2}:\d{2}:\d{2}-\d{2})"\r\n(.*)\r\n`)

// ExtractSMS finds the first +CMT frame anywhere in raw. Noise before or
// after the frame is ignored. ok is false when raw holds no frame, which is
// not an error: there was simply nothing to report.
func ExtractSMS(raw string) (msg TextMsg, ok bool) {
	m := cmtPattern.FindStringSubmatch(raw)
	if m == nil {
		return TextMsg{}, false
	}
	return newTextMsg(m), true
}

// ExtractAllSMS returns every +CMT frame in raw, in order.
func ExtractAllSMS(raw string) []TextMsg {
	matches := cmtPattern.FindAllStringSubmatch(raw, -1)
	msgs := make([]TextMsg, 0, len(matches))
	for _, m := range matches {
		msgs = append(msgs, newTextMsg(m))
	}
	return msgs
}

func newTextMsg(groups []string) TextMsg {
	return TextMsg{
		PhoneNumber: groups[1],
		Timestamp:   groups[2],
		Message:     strings.TrimSpace(groups[3]),
	}
}

// Line is the part of Modem the SMS reader needs.
type Line interface {
	SendCmd(ctx context.Context, cmd string) error
	ReadAll(ctx context.Context) (string, error)
}

var _ Line = (*Modem)(nil)

// SMSReader listens for incoming text messages on its own modem line.
type SMSReader struct {
	line   Line
	logger *slog.Logger
}

// NewSMSReader returns a reader on line. A nil logger discards output.
func NewSMSReader(line Line, logger *slog.Logger) *SMSReader {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &SMSReader{line: line, logger: logger}
}

// InitReader puts the modem in text mode and asks it to deliver new
// messages directly as +CMT URCs. It returns the modem's raw reply for
// diagnostics, or NoActiveConnection when the modem stayed silent.
func (r *SMSReader) InitReader(ctx context.Context) (string, error) {
	if err := r.line.SendCmd(ctx, at.CmdSetTextMode); err != nil {
		return "", err
	}
	if err := r.line.SendCmd(ctx, at.CmdDirectDelivery); err != nil {
		return "", err
	}

	resp, err := r.line.ReadAll(ctx)
	if err != nil {
		return resp, err
	}
	if resp == "" {
		return NoActiveConnection, nil
	}
	return resp, nil
}

// Listen drains the line once and extracts a message from it. ok is false
// when nothing recognizable arrived.
func (r *SMSReader) Listen(ctx context.Context) (msg TextMsg, ok bool, err error) {
	raw, err := r.line.ReadAll(ctx)
	msg, ok = ExtractSMS(raw)
	if !ok {
		r.logUnmatched(raw)
	}
	return msg, ok, err
}

// Run polls the line every interval and calls handle for each message that
// arrived. It returns when ctx is done or the line is closed. Handler errors
// and transient read errors are logged and polling continues.
func (r *SMSReader) Run(ctx context.Context, interval time.Duration, handle func(context.Context, TextMsg) error) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}

		raw, err := r.line.ReadAll(ctx)

		msgs := ExtractAllSMS(raw)
		if len(msgs) == 0 {
			r.logUnmatched(raw)
		}
		for _, msg := range msgs {
			r.logger.Info("SMS received", "from", msg.PhoneNumber, "timestamp", msg.Timestamp, "length", len(msg.Message))
			if herr := handle(ctx, msg); herr != nil {
				r.logger.Error("Failed to handle SMS", "error", herr, "from", msg.PhoneNumber)
			}
		}

		switch {
		case err == nil:
		case isLineClosed(err):
			return err
		case ctx.Err() != nil:
			return ctx.Err()
		default:
			r.logger.Warn("Failed to read modem line", "error", err)
		}
	}
}

// logUnmatched reports modem output that did not contain a message. Error
// results are worth a warning, anything else is debug noise.
func (r *SMSReader) logUnmatched(raw string) {
	for _, line := range at.Lines(raw) {
		kind := at.Classify(line)
		if kind == at.TypeFinal && line != at.OK {
			r.logger.Warn("Modem reported an error", "line", line)
			continue
		}
		r.logger.Debug("Ignoring modem output", "line", line, "type", kind.String())
	}
}
