package outage

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"i4.energy/across/powermon/metrics"
	"i4.energy/across/powermon/notify"
)

const (
	// DefaultThreshold is the load in milliamps below which mains power is
	// considered lost.
	DefaultThreshold = 10.0
	// DefaultNotifyInterval is the minimum time between two alerts for the
	// same outage.
	DefaultNotifyInterval = 900 * time.Second
	// DefaultTick is the sensor sampling period.
	DefaultTick = time.Second
	// DefaultMaxSensorFailures is how many reads in a row may fail before
	// Run gives up.
	DefaultMaxSensorFailures = 30
)

// State of the power supply as seen by the monitor.
type State int

const (
	Normal State = iota
	Outage
)

func (s State) String() string {
	switch s {
	case Normal:
		return "normal"
	case Outage:
		return "outage"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// MarshalText renders the state by name in JSON.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Status is a copy of the monitor's episode state.
type Status struct {
	State          State     `json:"state"`
	StartedAt      time.Time `json:"started_at,omitzero"`
	LastNotifiedAt time.Time `json:"last_notified_at,omitzero"`
	LoadMilliamps  float64   `json:"load_ma"`
	SensorFailures int       `json:"sensor_failures"`
}

// Monitor samples the load current on a fixed tick and turns threshold
// crossings into outage notifications.
//
// A single reading below the threshold opens an outage and a single reading
// at or above it closes the outage again; there is no hysteresis. While an
// outage lasts, a Lost alert is repeated whenever more than the notify
// interval has passed since the previous one.
//
// All episode state is owned by the goroutine running Run. Deplete and
// Snapshot hand requests to that goroutine and wait for its answer.
type Monitor struct {
	sensor   Sensor
	notifier Notifier
	logger   *slog.Logger
	now      func() time.Time

	threshold         float64
	notifyInterval    time.Duration
	tick              time.Duration
	maxSensorFailures int

	state State
	// startedAt is when the open outage began. Zero while Normal.
	startedAt time.Time
	// lastNotifiedAt is zero until the first alert of an episode, which
	// makes that alert fire immediately.
	lastNotifiedAt time.Time
	lastLoad       float64
	failures       int

	// requests carries Deplete and Snapshot calls to the Run loop.
	requests chan *request
	// stopped is closed when Run returns.
	stopped  chan struct{}
	stopOnce sync.Once
}

type requestKind int

const (
	requestSnapshot requestKind = iota
	requestDeplete
)

// request is a call handed to the Run loop.
type request struct {
	kind requestKind
	// respChan receives the result from the loop
	respChan chan response
}

type response struct {
	status Status
	err    error
}

// Option configures a Monitor.
type Option func(*Monitor)

// WithThreshold sets the outage threshold in milliamps.
func WithThreshold(ma float64) Option {
	return func(m *Monitor) { m.threshold = ma }
}

// WithNotifyInterval sets the re-alert interval.
func WithNotifyInterval(d time.Duration) Option {
	return func(m *Monitor) { m.notifyInterval = d }
}

// WithTick sets the sampling period used by Run.
func WithTick(d time.Duration) Option {
	return func(m *Monitor) { m.tick = d }
}

// WithMaxSensorFailures sets how many consecutive failed reads Run
// tolerates. Zero or less means no limit.
func WithMaxSensorFailures(n int) Option {
	return func(m *Monitor) { m.maxSensorFailures = n }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(m *Monitor) { m.now = now }
}

// WithLogger sets the logger. The default discards output.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Monitor) { m.logger = logger }
}

// NewMonitor returns a monitor in the Normal state.
func NewMonitor(sensor Sensor, notifier Notifier, opts ...Option) *Monitor {
	m := &Monitor{
		sensor:            sensor,
		notifier:          notifier,
		logger:            slog.New(slog.NewTextHandler(io.Discard, nil)),
		now:               time.Now,
		threshold:         DefaultThreshold,
		notifyInterval:    DefaultNotifyInterval,
		tick:              DefaultTick,
		maxSensorFailures: DefaultMaxSensorFailures,
		state:             Normal,
		requests:          make(chan *request),
		stopped:           make(chan struct{}),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Evaluate applies one reading taken at now. It reports the notification it
// dispatched, if any. It must only be called from the goroutine that owns
// the monitor.
func (m *Monitor) Evaluate(load float64, now time.Time) (kind notify.Kind, dispatched bool) {
	m.lastLoad = load
	metrics.LoadMilliamps.Set(load)

	if load < m.threshold {
		m.logger.Debug("Current load", "load_ma", load)
		if m.state == Normal {
			m.state = Outage
			m.startedAt = now
			m.logger.Error("Power outage has occurred", "load_ma", load, "started_at", now)
			metrics.OutageActive.Set(1)
			metrics.Transitions.WithLabelValues(Outage.String()).Inc()
		}

		if m.lastNotifiedAt.IsZero() || now.Sub(m.lastNotifiedAt) > m.notifyInterval {
			m.notifier.Dispatch(notify.Lost, m.startedAt)
			m.lastNotifiedAt = now
			return notify.Lost, true
		}
		return 0, false
	}

	if m.state == Normal {
		return 0, false
	}

	startedAt := m.startedAt
	m.notifier.Dispatch(notify.Restored, startedAt)
	m.logger.Info("Power has been restored", "load_ma", load, "duration", notify.FormatDuration(now.Sub(startedAt)))
	metrics.OutageActive.Set(0)
	metrics.Transitions.WithLabelValues(Normal.String()).Inc()

	m.state = Normal
	m.startedAt = time.Time{}
	m.lastNotifiedAt = time.Time{}
	return notify.Restored, true
}

// Step reads the sensor once and evaluates the reading. A failed read
// leaves the state untouched. Once the configured number of consecutive
// reads has failed, Step returns an error wrapping ErrSensorFailed.
func (m *Monitor) Step(ctx context.Context) error {
	load, err := m.sensor.ReadCurrent(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		m.failures++
		metrics.SensorErrors.Inc()
		m.logger.Warn("Failed to read sensor", "error", err, "consecutive_failures", m.failures)
		if m.maxSensorFailures > 0 && m.failures >= m.maxSensorFailures {
			return fmt.Errorf("%w after %d consecutive reads: %w", ErrSensorFailed, m.failures, err)
		}
		return nil
	}

	m.failures = 0
	m.Evaluate(load, m.now())
	return nil
}

// Run samples the sensor immediately and then once per tick until ctx is
// done or the sensor fails for good. It also serves Deplete and Snapshot.
func (m *Monitor) Run(ctx context.Context) error {
	defer m.stopOnce.Do(func() { close(m.stopped) })

	m.logger.Info("Starting power monitor",
		"threshold_ma", m.threshold,
		"notify_interval", m.notifyInterval,
		"tick", m.tick,
	)

	if err := m.Step(ctx); err != nil {
		return err
	}

	ticker := time.NewTicker(m.tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := m.Step(ctx); err != nil {
				return err
			}
		case req := <-m.requests:
			req.respChan <- m.handle(req)
		}
	}
}

func (m *Monitor) handle(req *request) response {
	switch req.kind {
	case requestDeplete:
		if m.state != Outage {
			return response{status: m.status(), err: ErrNoOutage}
		}
		m.logger.Warn("Backup battery depleted", "started_at", m.startedAt)
		m.notifier.Dispatch(notify.Depleted, m.startedAt)
		return response{status: m.status()}
	default:
		return response{status: m.status()}
	}
}

func (m *Monitor) status() Status {
	return Status{
		State:          m.state,
		StartedAt:      m.startedAt,
		LastNotifiedAt: m.lastNotifiedAt,
		LoadMilliamps:  m.lastLoad,
		SensorFailures: m.failures,
	}
}

// Deplete dispatches a Depleted notification for the open outage. It
// returns ErrNoOutage when power is normal.
func (m *Monitor) Deplete(ctx context.Context) (Status, error) {
	return m.exec(ctx, requestDeplete)
}

// Snapshot returns the current episode state.
func (m *Monitor) Snapshot(ctx context.Context) (Status, error) {
	return m.exec(ctx, requestSnapshot)
}

func (m *Monitor) exec(ctx context.Context, kind requestKind) (Status, error) {
	req := &request{
		kind:     kind,
		respChan: make(chan response, 1),
	}

	select {
	case m.requests <- req:
	case <-m.stopped:
		return Status{}, ErrNotRunning
	case <-ctx.Done():
		return Status{}, ctx.Err()
	}

	resp := <-req.respChan
	return resp.status, resp.err
}
