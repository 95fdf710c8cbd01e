package notify

import (
	"fmt"
	"time"
)

const (
	dateLayout = "2006-01-02"
	timeLayout = "15:04:05"
)

// Request is everything needed to render one notification.
type Request struct {
	Kind Kind
	// EventTime is when the outage started.
	EventTime time.Time
	// DispatchTime is when the notification is being sent.
	DispatchTime time.Time
}

// Duration is the time elapsed between the event and the dispatch.
func (r Request) Duration() time.Duration {
	return r.DispatchTime.Sub(r.EventTime)
}

// Message is a rendered notification. SMS channels only use Body.
type Message struct {
	Subject string
	Body    string
}

// Render fills in the template for r.Kind.
func Render(r Request) (Message, error) {
	eventDate := r.EventTime.Format(dateLayout)
	eventTime := r.EventTime.Format(timeLayout)
	duration := FormatDuration(r.Duration())

	lost := fmt.Sprintf("A loss of power occurred on %s at %s. Outage duration has been %s.",
		eventDate, eventTime, duration)

	switch r.Kind {
	case Lost:
		return Message{
			Subject: "ALERT: Power Failure Detected",
			Body:    lost,
		}, nil
	case Restored:
		return Message{
			Subject: "ALERT: Power has been Restored",
			Body: fmt.Sprintf("Power has been restored. Outage began on %s at %s and ended on %s at %s. Total outage duration was %s.",
				eventDate, eventTime, r.DispatchTime.Format(dateLayout), r.DispatchTime.Format(timeLayout), duration),
		}, nil
	case Depleted:
		return Message{
			Subject: "ALERT: Backup Battery Depleted",
			Body:    lost + " Backup battery of power monitor has been depleted and the system will now shutdown.",
		}, nil
	default:
		return Message{}, fmt.Errorf("%w: %v", ErrUnknownKind, r.Kind)
	}
}

// FormatDuration renders d as H:MM:SS, truncated to whole seconds. Spans of
// a day or more get a "N day(s), " prefix, e.g. "1 day, 2:03:04". Negative
// durations, which only a clock step can produce, render as zero.
func FormatDuration(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	secs := int64(d / time.Second)

	days := secs / 86400
	secs %= 86400
	hms := fmt.Sprintf("%d:%02d:%02d", secs/3600, secs%3600/60, secs%60)

	switch days {
	case 0:
		return hms
	case 1:
		return "1 day, " + hms
	default:
		return fmt.Sprintf("%d days, %s", days, hms)
	}
}
