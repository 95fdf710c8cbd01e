// Package sensor reads the supply current from an INA219 on an I2C bus.
package sensor

import (
	"context"
	"errors"
	"fmt"
	"io"

	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/devices/v3/ina219"
	"periph.io/x/host/v3"
)

// DefaultAddress is the INA219 address with A0 and A1 tied to ground.
const DefaultAddress = 0x40

var (
	// ErrSensorOpen is returned by Open when the bus or device is unusable.
	ErrSensorOpen = errors.New("sensor open failed")
	// ErrSensorRead is returned when a measurement cannot be taken.
	ErrSensorRead = errors.New("sensor read failed")
)

// device is the part of *ina219.Dev the reader needs.
type device interface {
	Sense() (ina219.PowerMonitor, error)
}

// Option tunes the INA219 calibration.
type Option func(*ina219.Opts)

// WithAddress sets the I2C address. Zero keeps DefaultAddress.
func WithAddress(addr int) Option {
	return func(o *ina219.Opts) {
		if addr != 0 {
			o.Address = addr
		}
	}
}

// WithShunt sets the shunt resistor in milliohms. Zero keeps the breakout
// board's 100 mΩ.
func WithShunt(milliohms int) Option {
	return func(o *ina219.Opts) {
		if milliohms > 0 {
			o.SenseResistor = physic.ElectricResistance(milliohms) * physic.MilliOhm
		}
	}
}

// WithMaxCurrent sets the largest expected current in milliamps, which
// fixes the measurement resolution. Zero keeps 3.2 A.
func WithMaxCurrent(ma int) Option {
	return func(o *ina219.Opts) {
		if ma > 0 {
			o.MaxCurrent = physic.ElectricCurrent(ma) * physic.MilliAmpere
		}
	}
}

// INA219 reads the load current from the chip.
type INA219 struct {
	dev   device
	bus   io.Closer
	label string
}

// Open initializes the host drivers, opens the named I2C bus (the first
// one when bus is empty) and calibrates the INA219 on it.
func Open(bus string, opts ...Option) (*INA219, error) {
	o := ina219.DefaultOpts
	for _, opt := range opts {
		opt(&o)
	}

	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("%w: host init: %w", ErrSensorOpen, err)
	}

	b, err := i2creg.Open(bus)
	if err != nil {
		return nil, fmt.Errorf("%w: open I2C bus %q: %w", ErrSensorOpen, bus, err)
	}

	dev, err := ina219.New(b, &o)
	if err != nil {
		b.Close()
		return nil, fmt.Errorf("%w: INA219 at %#x: %w", ErrSensorOpen, o.Address, err)
	}

	return &INA219{dev: dev, bus: b, label: fmt.Sprintf("%s@%#x", b, o.Address)}, nil
}

// String names the bus and address being read.
func (s *INA219) String() string { return s.label }

// ReadCurrent returns the present load in milliamps.
func (s *INA219) ReadCurrent(ctx context.Context) (float64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	pm, err := s.dev.Sense()
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrSensorRead, err)
	}
	return float64(pm.Current) / float64(physic.MilliAmpere), nil
}

// Close releases the I2C bus.
func (s *INA219) Close() error {
	if s.bus == nil {
		return nil
	}
	return s.bus.Close()
}
