package outage

import "errors"

var (
	// ErrNoOutage is returned by Deplete when no outage episode is open.
	ErrNoOutage = errors.New("no outage in progress")

	// ErrSensorFailed is returned by Run after too many consecutive failed
	// sensor reads.
	ErrSensorFailed = errors.New("sensor failed")

	// ErrNotRunning is returned when a request reaches a Monitor whose Run
	// loop has already returned.
	ErrNotRunning = errors.New("monitor not running")
)
