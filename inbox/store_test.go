package inbox_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"i4.energy/across/powermon/inbox"
	"i4.energy/across/powermon/modem"
)

func newStore(t *testing.T) *inbox.SQLiteStore {
	t.Helper()
	s, err := inbox.NewSQLite(filepath.Join(t.TempDir(), "data", "inbox.db"))
	if err != nil {
		t.Fatalf("unexpected error from NewSQLite(): %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSQLiteStore(t *testing.T) {
	ctx := context.Background()
	received := time.Date(2024, 5, 30, 0, 13, 40, 0, time.UTC)

	t.Run("Save then list newest first", func(t *testing.T) {
		s := newStore(t)

		first := modem.TextMsg{PhoneNumber: "+12223334444", Timestamp: "14/05/30,00:13:34-32", Message: "Hello"}
		second := modem.TextMsg{PhoneNumber: "+15556667777", Timestamp: "14/05/30,00:14:00-32", Message: "Bye"}

		id1, err := s.Save(ctx, first, received)
		if err != nil {
			t.Fatalf("unexpected error from Save(): %v", err)
		}
		id2, err := s.Save(ctx, second, received.Add(time.Minute))
		if err != nil {
			t.Fatalf("unexpected error from Save(): %v", err)
		}
		if id2 <= id1 {
			t.Errorf("ids should increase: %d, %d", id1, id2)
		}

		msgs, err := s.List(ctx, 0)
		if err != nil {
			t.Fatalf("unexpected error from List(): %v", err)
		}
		if len(msgs) != 2 {
			t.Fatalf("expected 2 messages, got %d", len(msgs))
		}
		if msgs[0].TextMsg != second || msgs[1].TextMsg != first {
			t.Errorf("unexpected order or content: %+v", msgs)
		}
		if !msgs[1].ReceivedAt.Equal(received) {
			t.Errorf("ReceivedAt = %v, want %v", msgs[1].ReceivedAt, received)
		}
	})

	t.Run("Limit", func(t *testing.T) {
		s := newStore(t)
		for i := 0; i < 5; i++ {
			if _, err := s.Save(ctx, modem.TextMsg{PhoneNumber: "+12223334444", Timestamp: "t", Message: "m"}, received); err != nil {
				t.Fatalf("unexpected error from Save(): %v", err)
			}
		}

		msgs, err := s.List(ctx, 3)
		if err != nil {
			t.Fatalf("unexpected error from List(): %v", err)
		}
		if len(msgs) != 3 {
			t.Errorf("expected 3 messages, got %d", len(msgs))
		}
	})

	t.Run("Empty inbox", func(t *testing.T) {
		msgs, err := newStore(t).List(ctx, 10)
		if err != nil {
			t.Fatalf("unexpected error from List(): %v", err)
		}
		if msgs == nil || len(msgs) != 0 {
			t.Errorf("expected an empty, non-nil slice, got %#v", msgs)
		}
	})

	t.Run("Reopen keeps messages", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "inbox.db")
		s, err := inbox.NewSQLite(path)
		if err != nil {
			t.Fatalf("unexpected error from NewSQLite(): %v", err)
		}
		if _, err := s.Save(ctx, modem.TextMsg{PhoneNumber: "+12223334444", Timestamp: "t", Message: "kept"}, received); err != nil {
			t.Fatalf("unexpected error from Save(): %v", err)
		}
		s.Close()

		s, err = inbox.NewSQLite(path)
		if err != nil {
			t.Fatalf("unexpected error reopening: %v", err)
		}
		defer s.Close()
		msgs, err := s.List(ctx, 0)
		if err != nil || len(msgs) != 1 || msgs[0].Message != "kept" {
			t.Errorf("List() = %+v, %v", msgs, err)
		}
	})

	t.Run("Empty path", func(t *testing.T) {
		if _, err := inbox.NewSQLite(""); err == nil {
			t.Error("expected an error")
		}
	})
}
