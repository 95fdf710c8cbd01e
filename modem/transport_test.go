package modem

import (
	"context"
	"errors"
	"testing"

	"go.bug.st/serial"
)

// stubOpenPort records what Dial passes to the serial driver and fails the
// open with errOpen.
func stubOpenPort(t *testing.T) (gotName *string, gotMode **serial.Mode) {
	t.Helper()
	var name string
	var mode *serial.Mode

	orig := openPort
	openPort = func(portName string, m *serial.Mode) (serial.Port, error) {
		name, mode = portName, m
		return nil, errOpen
	}
	t.Cleanup(func() { openPort = orig })
	return &name, &mode
}

var errOpen = errors.New("no such device")

func TestSerialDialerMode(t *testing.T) {
	tests := []struct {
		name     string
		dialer   SerialDialer
		wantBaud int
	}{
		{name: "Unset baud rate falls back to the default", dialer: SerialDialer{}, wantBaud: DefaultBaudRate},
		{name: "Negative baud rate falls back to the default", dialer: SerialDialer{BaudRate: -1}, wantBaud: DefaultBaudRate},
		{name: "Listener modem at 4800", dialer: SerialDialer{BaudRate: 4800}, wantBaud: 4800},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := tt.dialer.mode()
			if m.BaudRate != tt.wantBaud {
				t.Errorf("BaudRate = %d, want %d", m.BaudRate, tt.wantBaud)
			}
			if m.DataBits != 8 || m.Parity != serial.NoParity || m.StopBits != serial.OneStopBit {
				t.Errorf("expected 8N1, got %+v", m)
			}
		})
	}

	t.Run("Explicit mode wins over baud rate", func(t *testing.T) {
		custom := &serial.Mode{BaudRate: 9600, DataBits: 7, Parity: serial.EvenParity}
		if got := (SerialDialer{BaudRate: 4800, Mode: custom}).mode(); got != custom {
			t.Errorf("mode() = %+v, want the explicit mode", got)
		}
	})
}

func TestSerialDialerDial(t *testing.T) {
	t.Run("Opens the named port with the derived mode", func(t *testing.T) {
		name, mode := stubOpenPort(t)

		_, err := SerialDialer{PortName: "/dev/ttyUSB1"}.Dial(context.Background())
		if !errors.Is(err, errOpen) {
			t.Fatalf("expected the open error to be wrapped, got: %v", err)
		}
		if *name != "/dev/ttyUSB1" {
			t.Errorf("opened %q, want /dev/ttyUSB1", *name)
		}
		if *mode == nil || (*mode).BaudRate != DefaultBaudRate {
			t.Errorf("opened with mode %+v, want %d baud", *mode, DefaultBaudRate)
		}
	})

	tests := []struct {
		name    string
		dialer  SerialDialer
		ctx     func() context.Context
		wantErr error
		wantMsg string
	}{
		{
			name:    "Empty port name",
			dialer:  SerialDialer{BaudRate: 4800},
			ctx:     context.Background,
			wantMsg: "modem: serial port name is required",
		},
		{
			name:    "Nil context",
			dialer:  SerialDialer{PortName: "/dev/ttyAMA0"},
			ctx:     func() context.Context { return nil },
			wantMsg: "modem: context is nil",
		},
		{
			name:   "Cancelled context",
			dialer: SerialDialer{PortName: "/dev/ttyAMA0"},
			ctx: func() context.Context {
				ctx, cancel := context.WithCancel(context.Background())
				cancel()
				return ctx
			},
			wantErr: context.Canceled,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			name, _ := stubOpenPort(t)

			transport, err := tt.dialer.Dial(tt.ctx())
			if transport != nil {
				t.Error("expected no transport")
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Errorf("expected %v, got: %v", tt.wantErr, err)
			}
			if tt.wantMsg != "" && (err == nil || err.Error() != tt.wantMsg) {
				t.Errorf("error = %v, want %q", err, tt.wantMsg)
			}
			if *name != "" {
				t.Errorf("the port should not be opened, got %q", *name)
			}
		})
	}
}
