package notify

import (
	"errors"
	"fmt"
)

// ErrUnknownKind is returned by Render for a Kind it has no template for.
var ErrUnknownKind = errors.New("unknown notification kind")

// TransportError wraps a failure of a channel's underlying transport.
// Dispatcher logs these, it never returns them to the caller.
type TransportError struct {
	Channel string
	Err     error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s transport: %v", e.Channel, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}
