package modem_test

import (
	"context"
	"errors"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"

	"i4.energy/across/powermon/modem"
)

func TestSendSMS(t *testing.T) {
	// The modem replies are never inspected, so the sequence is fully
	// described by what was written:
	//
	//  1. AT+CMGS="<number>"\r\n
	//  2. <body>\r\n
	//  3. Ctrl-Z\r\n
	t.Run("Writes the CMGS sequence", func(t *testing.T) {
		m, transport := newTestModem(t)

		if err := m.SendSMS(context.Background(), "15555555555", "Power is out"); err != nil {
			t.Fatalf("unexpected error from SendSMS(): %v", err)
		}

		writes := transport.Writes()[2:] // skip the handshake
		want := []string{
			"AT+CMGS=\"15555555555\"\r\n",
			"Power is out\r\n",
			"\x1a\r\n",
		}
		if !slices.Equal(writes, want) {
			t.Errorf("writes = %q, want %q", writes, want)
		}
	})

	t.Run("Waits for the send gap", func(t *testing.T) {
		m, _ := newTestModem(t, func(b *modem.ConfigBuilder) {
			b.WithSendGap(40 * time.Millisecond)
		})

		start := time.Now()
		if err := m.SendSMS(context.Background(), "15555555555", "hi"); err != nil {
			t.Fatalf("unexpected error from SendSMS(): %v", err)
		}
		if elapsed := time.Since(start); elapsed < 40*time.Millisecond {
			t.Errorf("SendSMS returned after %v, want at least the 40ms gap", elapsed)
		}
	})

	t.Run("ErrNoRecipient for an empty number", func(t *testing.T) {
		m, transport := newTestModem(t)

		err := m.SendSMS(context.Background(), "", "hi")
		if !errors.Is(err, modem.ErrNoRecipient) {
			t.Errorf("expected ErrNoRecipient, got: %v", err)
		}
		if n := len(transport.Writes()); n != 2 {
			t.Errorf("expected only the handshake to be written, got %d writes", n)
		}
	})

	t.Run("Fails after close", func(t *testing.T) {
		m, _ := newTestModem(t)
		m.Close()

		err := m.SendSMS(context.Background(), "15555555555", "hi")
		if !errors.Is(err, modem.ErrAlreadyClosed) {
			t.Errorf("expected ErrAlreadyClosed, got: %v", err)
		}
	})

	t.Run("Concurrent sequences do not interleave", func(t *testing.T) {
		m, transport := newTestModem(t, func(b *modem.ConfigBuilder) {
			b.WithSettleDelay(2 * time.Millisecond)
		})

		var wg sync.WaitGroup
		for _, number := range []string{"111", "222", "333"} {
			number := number
			wg.Add(1)
			go func() {
				defer wg.Done()
				if err := m.SendSMS(context.Background(), number, "body "+number); err != nil {
					t.Errorf("unexpected error from SendSMS(): %v", err)
				}
			}()
		}
		wg.Wait()

		writes := transport.Writes()[2:]
		if len(writes) != 9 {
			t.Fatalf("expected 9 writes, got %d: %q", len(writes), writes)
		}
		for i := 0; i < len(writes); i += 3 {
			number := strings.TrimSuffix(strings.TrimPrefix(writes[i], "AT+CMGS=\""), "\"\r\n")
			if writes[i+1] != "body "+number+"\r\n" || writes[i+2] != "\x1a\r\n" {
				t.Errorf("sequence %d interleaved: %q", i/3, writes[i:i+3])
			}
		}
	})
}
