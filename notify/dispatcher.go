package notify

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"i4.energy/across/powermon/metrics"
)

// Dispatcher fans a notification out to every channel. Each channel gets
// its own goroutine, so a slow or failing transport neither delays the
// caller nor the other channels.
//
// There is no retry, no backpressure and no cancellation: a send that
// fails is logged and dropped, and a send that hangs keeps its goroutine
// until the transport gives up or the process exits.
type Dispatcher struct {
	channels []Channel
	logger   *slog.Logger
	now      func() time.Time

	wg sync.WaitGroup
}

// DispatcherOption configures a Dispatcher.
type DispatcherOption func(*Dispatcher)

// WithClock replaces time.Now as the source of dispatch timestamps.
func WithClock(now func() time.Time) DispatcherOption {
	return func(d *Dispatcher) {
		d.now = now
	}
}

// NewDispatcher returns a dispatcher for channels. A nil logger discards
// output.
func NewDispatcher(logger *slog.Logger, channels []Channel, opts ...DispatcherOption) *Dispatcher {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	d := &Dispatcher{
		channels: append([]Channel(nil), channels...),
		logger:   logger,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Dispatch starts one delivery per channel and returns immediately.
// eventTime is the start of the outage being reported.
func (d *Dispatcher) Dispatch(kind Kind, eventTime time.Time) {
	id := uuid.NewString()
	d.logger.Debug("Dispatching notification", "dispatch_id", id, "kind", kind.String(), "event_time", eventTime)

	for _, ch := range d.channels {
		d.wg.Add(1)
		go d.deliver(id, ch, kind, eventTime)
	}
}

func (d *Dispatcher) deliver(id string, ch Channel, kind Kind, eventTime time.Time) {
	defer d.wg.Done()

	name := ch.Name()
	logger := d.logger.With("dispatch_id", id, "channel", name, "kind", kind.String())

	defer func() {
		if r := recover(); r != nil {
			logger.Error("Notification channel panicked", "panic", fmt.Sprint(r))
			metrics.Notifications.WithLabelValues(name, kind.String(), "failed").Inc()
		}
	}()

	req := Request{Kind: kind, EventTime: eventTime, DispatchTime: d.now()}
	msg, err := Render(req)
	if err != nil {
		logger.Error("Failed to render notification", "error", err)
		metrics.Notifications.WithLabelValues(name, kind.String(), "failed").Inc()
		return
	}

	start := time.Now()
	err = ch.Send(context.Background(), msg)
	metrics.NotificationDuration.WithLabelValues(name).Observe(time.Since(start).Seconds())
	if err != nil {
		err = &TransportError{Channel: name, Err: err}
		logger.Error("Failed to send notification", "error", err)
		metrics.Notifications.WithLabelValues(name, kind.String(), "failed").Inc()
		return
	}

	logger.Info("Notification sent", "duration", FormatDuration(req.Duration()))
	metrics.Notifications.WithLabelValues(name, kind.String(), "sent").Inc()
}

// Wait blocks until every delivery started so far has finished or ctx is
// done.
func (d *Dispatcher) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
