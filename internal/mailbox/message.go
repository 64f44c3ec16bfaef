// Package mailbox drives one IMAP session through the two-phase
// candidate search, per-message fetch and parse, priority selection,
// and read-state mutation.
package mailbox

import (
	"time"

	"github.com/emersion/go-imap/v2"
)

// Phase identifies which search strategy produced a set of candidates.
type Phase int

const (
	// PhaseUnread is the first strategy: matching unread messages, no
	// time bound.
	PhaseUnread Phase = iota
	// PhaseRecent is the fallback: matching messages received within
	// the recency window, regardless of read state.
	PhaseRecent
)

func (p Phase) String() string {
	if p == PhaseUnread {
		return "unread"
	}
	return "recent"
}

// Message is one fetched candidate. It exists only for the duration of
// a single fetch call and is never persisted.
type Message struct {
	UID        imap.UID
	ReceivedAt time.Time
	Unread     bool
	Subject    string
	From       string
	BodyText   string
	BodyHTML   string
}
