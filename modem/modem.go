package modem

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"i4.energy/across/powermon/at"
)

// Modem drives a SIM900-class GSM modem over a line-oriented AT protocol.
//
// Commands are fire-and-forget: the modem's replies are not matched against
// the commands that produced them. Instead every command is followed by a
// settle delay, and callers drain whatever the modem printed with ReadAll.
//
// A background goroutine is the only reader of the transport. It hands the
// raw bytes to ReadAll through a channel, so ReadAll can tell "nothing
// arrived during the last poll interval" apart from a blocked read.
type Modem struct {
	// transport provides the physical connection to the modem (serial, TCP, etc.)
	transport Transport

	settleDelay  time.Duration
	pollInterval time.Duration
	readTimeout  time.Duration
	sendGap      time.Duration

	// closed indicates if the modem has been shut down
	closed atomic.Bool

	// writeMu serializes writes of single commands.
	writeMu sync.Mutex
	// smsMu keeps a complete AT+CMGS sequence from being interleaved.
	smsMu sync.Mutex
	// readMu allows a single ReadAll at a time.
	readMu sync.Mutex

	// chunks carries raw transport reads to ReadAll. It is closed by
	// readLoop once the transport returns an error.
	chunks chan []byte
	// readErr is the error that ended readLoop. Only read after chunks is closed.
	readErr error
	// quit stops readLoop when it is blocked handing over a chunk.
	quit chan struct{}
	// done is closed when readLoop returns.
	done chan struct{}
}

// New creates a new Modem instance with the given configuration.
// It establishes the transport connection, starts the reader goroutine and
// performs the initialization handshake: AT as a liveness check followed by
// AT+CMGF=1 to switch to text-mode SMS. The replies to both are left on the
// line and not inspected.
//
// Returns an error if the transport connection or the handshake writes fail.
func New(ctx context.Context, config Config) (*Modem, error) {
	if config.dialer == nil {
		return nil, ErrNoDialer
	}
	transport, err := config.dialer.Dial(ctx)
	if err != nil {
		return nil, err
	}
	if transport == nil {
		return nil, ErrNotInitialized
	}

	m := &Modem{
		transport:    transport,
		settleDelay:  config.settleDelay,
		pollInterval: config.pollInterval,
		readTimeout:  config.readTimeout,
		sendGap:      config.sendGap,
		chunks:       make(chan []byte, 64),
		quit:         make(chan struct{}),
		done:         make(chan struct{}),
	}

	go m.readLoop()

	if err := m.init(ctx); err != nil {
		m.Close()
		return nil, fmt.Errorf("initialize modem: %w", err)
	}

	return m, nil
}

// init performs the handshake sent on every new connection.
func (m *Modem) init(ctx context.Context) error {
	if err := m.SendCmd(ctx, at.CmdAt); err != nil {
		return err
	}
	return m.SendCmd(ctx, at.CmdSetTextMode)
}

// readLoop copies everything the transport delivers into m.chunks until the
// transport fails or the modem is closed.
func (m *Modem) readLoop() {
	defer close(m.done)
	defer close(m.chunks)

	buf := make([]byte, 1024)
	for {
		n, err := m.transport.Read(buf)
		if n > 0 {
			chunk := make([]byte, n)
			copy(chunk, buf[:n])
			select {
			case m.chunks <- chunk:
			case <-m.quit:
				return
			}
		}
		if err != nil {
			m.readErr = err
			return
		}
	}
}

// SendCmd writes cmd followed by CRLF and then waits for the configured
// settle delay.
func (m *Modem) SendCmd(ctx context.Context, cmd string) error {
	return m.SendCmdDelay(ctx, cmd, m.settleDelay)
}

// SendCmdDelay is SendCmd with a per-call settle delay.
func (m *Modem) SendCmdDelay(ctx context.Context, cmd string, delay time.Duration) error {
	if m.closed.Load() {
		return ErrAlreadyClosed
	}

	m.writeMu.Lock()
	_, err := m.transport.Write([]byte(cmd + at.CRLF))
	m.writeMu.Unlock()
	if err != nil {
		return fmt.Errorf("write command %q: %w", cmd, err)
	}

	return sleep(ctx, delay)
}

// ReadAll drains the input until the line goes quiet: it takes whatever has
// arrived, waits one poll interval and repeats, returning once a full poll
// interval produced no new bytes. An empty line returns "" immediately.
//
// This tolerates very slow baud rates where a message trickles in, but it
// also means ReadAll never returns on a line that never goes quiet, unless
// ctx is cancelled or a read timeout was configured.
func (m *Modem) ReadAll(ctx context.Context) (string, error) {
	if m.closed.Load() {
		return "", ErrAlreadyClosed
	}

	m.readMu.Lock()
	defer m.readMu.Unlock()

	if m.readTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeoutCause(ctx, m.readTimeout, ErrReadTimeout)
		defer cancel()
	}

	var sb strings.Builder
	for {
		n, err := m.drain(&sb)
		if err != nil {
			return sb.String(), err
		}
		if n == 0 {
			return sb.String(), nil
		}
		if err := sleep(ctx, m.pollInterval); err != nil {
			return sb.String(), context.Cause(ctx)
		}
	}
}

// drain moves every chunk that is already waiting into sb without blocking.
func (m *Modem) drain(sb *strings.Builder) (int, error) {
	n := 0
	for {
		select {
		case chunk, ok := <-m.chunks:
			if !ok {
				return n, m.lineClosedErr()
			}
			sb.Write(chunk)
			n += len(chunk)
		default:
			return n, nil
		}
	}
}

func (m *Modem) lineClosedErr() error {
	if m.readErr == nil {
		return ErrLineClosed
	}
	return fmt.Errorf("%w: %w", ErrLineClosed, m.readErr)
}

// Close shuts down the modem and releases all resources.
// It stops the reader goroutine, closes the transport connection, and marks
// the modem as closed. After calling Close(), the modem cannot be reused.
func (m *Modem) Close() error {
	if !m.closed.CompareAndSwap(false, true) {
		return ErrAlreadyClosed
	}

	close(m.quit)
	err := m.transport.Close()
	<-m.done

	return err
}

// sleep waits for d or until ctx is done.
func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// isLineClosed reports whether err means the transport is gone for good.
func isLineClosed(err error) bool {
	return errors.Is(err, ErrLineClosed) || errors.Is(err, ErrAlreadyClosed)
}
