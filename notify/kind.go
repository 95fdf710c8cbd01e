package notify

import "fmt"

// Kind identifies the event a notification reports.
type Kind int

const (
	// Lost reports a detected power failure. It is also used for the
	// periodic re-alerts while the outage lasts.
	Lost Kind = iota
	// Restored reports the end of an outage.
	Restored
	// Depleted reports that the backup battery ran out during an outage
	// and the system is about to shut down.
	Depleted
)

func (k Kind) String() string {
	switch k {
	case Lost:
		return "lost"
	case Restored:
		return "restored"
	case Depleted:
		return "depleted"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}
