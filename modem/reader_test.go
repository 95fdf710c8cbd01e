package modem_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/mock/gomock"
	"i4.energy/across/powermon/modem"
)

const validFrame = "+CMT: \"+12223334444\",\"\",\"14/05/30,00:13:34-32\"\r\nHello\r\n"

func TestExtractSMS(t *testing.T) {
	want := modem.TextMsg{
		PhoneNumber: "+12223334444",
		Timestamp:   "14/05/30,00:13:34-32",
		Message:     "Hello",
	}

	tests := []struct {
		name   string
		input  string
		want   modem.TextMsg
		wantOK bool
	}{
		{name: "Well formed frame", input: validFrame, want: want, wantOK: true},
		{name: "Noise before and after", input: "garbage" + validFrame + "garbage", want: want, wantOK: true},
		{name: "Command echo before the frame", input: "AT+CNMI=2,2,0,0,0\r\nOK\r\n\r\n" + validFrame, want: want, wantOK: true},
		{
			name:   "Body whitespace is trimmed",
			input:  "+CMT: \"+12223334444\",\"\",\"14/05/30,00:13:34-32\"\r\n  status please \r\n",
			want:   modem.TextMsg{PhoneNumber: "+12223334444", Timestamp: "14/05/30,00:13:34-32", Message: "status please"},
			wantOK: true,
		},
		{
			name:   "Only the first body line is taken",
			input:  validFrame + "second line\r\n",
			want:   want,
			wantOK: true,
		},
		{name: "No CMT marker", input: "RING\r\nOK\r\n", wantOK: false},
		{name: "Empty input", input: "", wantOK: false},
		{name: "Phone number too short", input: "+CMT: \"+1222333444\",\"\",\"14/05/30,00:13:34-32\"\r\nHello\r\n", wantOK: false},
		{name: "Phone number without plus", input: "+CMT: \"12223334444\",\"\",\"14/05/30,00:13:34-32\"\r\nHello\r\n", wantOK: false},
		{name: "Positive timezone offset", input: "+CMT: \"+12223334444\",\"\",\"14/05/30,00:13:34+32\"\r\nHello\r\n", wantOK: false},
		{name: "Body without terminator", input: "+CMT: \"+12223334444\",\"\",\"14/05/30,00:13:34-32\"\r\nHello", wantOK: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := modem.ExtractSMS(tt.input)
			if ok != tt.wantOK {
				t.Fatalf("ExtractSMS() ok = %v, want %v", ok, tt.wantOK)
			}
			if got != tt.want {
				t.Errorf("ExtractSMS() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestExtractAllSMS(t *testing.T) {
	second := "+CMT: \"+15556667777\",\"\",\"14/05/30,00:14:00-32\"\r\nBye\r\n"

	msgs := modem.ExtractAllSMS("noise" + validFrame + second)
	if len(msgs) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(msgs))
	}
	if msgs[0].Message != "Hello" || msgs[1].Message != "Bye" {
		t.Errorf("unexpected messages: %+v", msgs)
	}

	if msgs := modem.ExtractAllSMS("OK\r\n"); len(msgs) != 0 {
		t.Errorf("expected no messages, got %+v", msgs)
	}
}

func TestTextMsgString(t *testing.T) {
	msg := modem.TextMsg{PhoneNumber: "+12223334444", Timestamp: "14/05/30,00:13:34-32", Message: "Hello"}
	if got, want := msg.String(), "+12223334444, 14/05/30,00:13:34-32, Hello"; got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}
}

func TestSMSReaderInitReader(t *testing.T) {
	t.Run("Sends text mode and direct delivery", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		line := modem.NewMockLine(ctrl)

		gomock.InOrder(
			line.EXPECT().SendCmd(gomock.Any(), "AT+CMGF=1").Return(nil),
			line.EXPECT().SendCmd(gomock.Any(), "AT+CNMI=2,2,0,0,0").Return(nil),
			line.EXPECT().ReadAll(gomock.Any()).Return("OK\r\nOK\r\n", nil),
		)

		resp, err := modem.NewSMSReader(line, nil).InitReader(context.Background())
		if err != nil {
			t.Fatalf("unexpected error from InitReader(): %v", err)
		}
		if resp != "OK\r\nOK\r\n" {
			t.Errorf("InitReader() = %q, want the raw modem reply", resp)
		}
	})

	t.Run("Silent modem", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		line := modem.NewMockLine(ctrl)

		line.EXPECT().SendCmd(gomock.Any(), gomock.Any()).Return(nil).Times(2)
		line.EXPECT().ReadAll(gomock.Any()).Return("", nil)

		resp, err := modem.NewSMSReader(line, nil).InitReader(context.Background())
		if err != nil {
			t.Fatalf("unexpected error from InitReader(): %v", err)
		}
		if resp != modem.NoActiveConnection {
			t.Errorf("InitReader() = %q, want %q", resp, modem.NoActiveConnection)
		}
	})

	t.Run("Write failure", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		line := modem.NewMockLine(ctrl)
		writeErr := errors.New("write failed")

		line.EXPECT().SendCmd(gomock.Any(), "AT+CMGF=1").Return(writeErr)

		_, err := modem.NewSMSReader(line, nil).InitReader(context.Background())
		if !errors.Is(err, writeErr) {
			t.Errorf("expected write error, got: %v", err)
		}
	})
}

func TestSMSReaderListen(t *testing.T) {
	t.Run("Message found", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		line := modem.NewMockLine(ctrl)
		line.EXPECT().ReadAll(gomock.Any()).Return("\r\n"+validFrame, nil)

		msg, ok, err := modem.NewSMSReader(line, nil).Listen(context.Background())
		if err != nil {
			t.Fatalf("unexpected error from Listen(): %v", err)
		}
		if !ok {
			t.Fatal("expected a message")
		}
		if msg.PhoneNumber != "+12223334444" || msg.Message != "Hello" {
			t.Errorf("unexpected message: %+v", msg)
		}
	})

	t.Run("Nothing to report", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		line := modem.NewMockLine(ctrl)
		line.EXPECT().ReadAll(gomock.Any()).Return("+CMS ERROR: 500\r\n", nil)

		_, ok, err := modem.NewSMSReader(line, nil).Listen(context.Background())
		if err != nil {
			t.Fatalf("unexpected error from Listen(): %v", err)
		}
		if ok {
			t.Error("expected no message")
		}
	})

	t.Run("Over a real modem line", func(t *testing.T) {
		m, transport := newTestModem(t)

		transport.SendData("+CMT: \"+12223334444\",\"\",\"14/05/30,00:13:34-32\"\r\n")
		transport.SendData("Hello\r\n")
		time.Sleep(20 * time.Millisecond)

		msg, ok, err := modem.NewSMSReader(m, nil).Listen(context.Background())
		if err != nil {
			t.Fatalf("unexpected error from Listen(): %v", err)
		}
		if !ok {
			t.Fatal("expected a message")
		}
		want := modem.TextMsg{PhoneNumber: "+12223334444", Timestamp: "14/05/30,00:13:34-32", Message: "Hello"}
		if msg != want {
			t.Errorf("Listen() = %+v, want %+v", msg, want)
		}
	})
}

func TestSMSReaderRun(t *testing.T) {
	t.Run("Handles messages until the line closes", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		line := modem.NewMockLine(ctrl)

		handlerErr := errors.New("store unavailable")
		gomock.InOrder(
			line.EXPECT().ReadAll(gomock.Any()).Return("", nil),
			line.EXPECT().ReadAll(gomock.Any()).Return(validFrame, nil),
			line.EXPECT().ReadAll(gomock.Any()).Return("", errors.New("transient")),
			line.EXPECT().ReadAll(gomock.Any()).Return(validFrame, modem.ErrLineClosed),
		)

		var got []modem.TextMsg
		err := modem.NewSMSReader(line, nil).Run(context.Background(), time.Millisecond,
			func(_ context.Context, msg modem.TextMsg) error {
				got = append(got, msg)
				return handlerErr
			})

		if !errors.Is(err, modem.ErrLineClosed) {
			t.Errorf("expected ErrLineClosed, got: %v", err)
		}
		if len(got) != 2 {
			t.Errorf("expected 2 handled messages, got %d", len(got))
		}
	})

	t.Run("Stops on context cancellation", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		line := modem.NewMockLine(ctrl)
		line.EXPECT().ReadAll(gomock.Any()).Return("", nil).AnyTimes()

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
		defer cancel()

		err := modem.NewSMSReader(line, nil).Run(ctx, 5*time.Millisecond,
			func(context.Context, modem.TextMsg) error { return nil })
		if !errors.Is(err, context.DeadlineExceeded) {
			t.Errorf("expected context.DeadlineExceeded, got: %v", err)
		}
	})
}
