package modem

import "errors"

var (
	// ErrNoDialer is returned when a Modem is constructed without a Dialer.
	//
	// This indicates a configuration error. A Dialer is required in order to
	// establish a connection to the modem.
	ErrNoDialer = errors.New("no dialer configured")

	// ErrNotInitialized is returned when the Dialer hands back no Transport.
	ErrNotInitialized = errors.New("modem not initialized")

	// ErrAlreadyClosed is returned when an operation is attempted on a Modem
	// that has already been closed, including a second call to Close.
	ErrAlreadyClosed = errors.New("modem already closed")

	// ErrLineClosed is returned by ReadAll once the transport stopped
	// delivering data (EOF or a read error). Any bytes drained before that
	// point are still returned alongside it.
	ErrLineClosed = errors.New("modem line closed")

	// ErrReadTimeout is returned by ReadAll when the optional read timeout
	// expires before the line went quiet.
	ErrReadTimeout = errors.New("modem read timeout")

	// ErrNoRecipient is returned by SendSMS for an empty phone number.
	ErrNoRecipient = errors.New("no SMS recipient")

	// ErrNegativeDuration is returned by ConfigBuilder.Build when a delay
	// or interval is negative.
	ErrNegativeDuration = errors.New("duration must not be negative")
)
