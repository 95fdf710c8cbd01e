package modem

import (
	"io"
	"sync"
)

// TestTransport is a test helper that simulates a blocking transport using channels.
// Reads block until data is queued with SendData or the transport is closed,
// like a real serial port would. Every write is recorded.
type TestTransport struct {
	mu       sync.Mutex
	readChan chan []byte
	pending  []byte
	writes   []string
	closed   bool
	done     chan struct{}
}

// NewTestTransport creates a new test transport for testing.
// Exported for use in tests.
func NewTestTransport() *TestTransport {
	return &TestTransport{
		readChan: make(chan []byte, 16),
		done:     make(chan struct{}),
	}
}

func (t *TestTransport) Write(p []byte) (n int, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return 0, io.ErrClosedPipe
	}
	t.writes = append(t.writes, string(p))
	return len(p), nil
}

func (t *TestTransport) Read(p []byte) (n int, err error) {
	if len(t.pending) == 0 {
		select {
		case data := <-t.readChan:
			t.pending = data
		case <-t.done:
			return 0, io.EOF
		}
	}
	n = copy(p, t.pending)
	t.pending = t.pending[n:]
	return n, nil
}

func (t *TestTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return nil
	}
	t.closed = true
	close(t.done)
	return nil
}

// SendData queues data to be read by the transport.
// This simulates receiving data from the modem. It is a no-op once the
// transport is closed.
func (t *TestTransport) SendData(data string) {
	select {
	case t.readChan <- []byte(data):
	case <-t.done:
	}
}

// Writes returns everything written so far, one entry per Write call.
func (t *TestTransport) Writes() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]string, len(t.writes))
	copy(out, t.writes)
	return out
}
