package outage

import (
	"context"
	"time"

	"i4.energy/across/powermon/notify"
)

//go:generate go tool mockgen -source=interfaces.go -destination=mock_interfaces.go -package=outage

// Sensor reports the load current in milliamps.
type Sensor interface {
	ReadCurrent(ctx context.Context) (float64, error)
}

// Notifier starts a notification without waiting for it to be delivered.
// *notify.Dispatcher satisfies it.
type Notifier interface {
	Dispatch(kind notify.Kind, eventTime time.Time)
}
