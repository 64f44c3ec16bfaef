package mailbox

import (
	"time"

	"github.com/emersion/go-imap/v2"

	"github.com/msaqhib/netflix-household-verify/internal/extractor"
)

// Selection is the winning candidate of one fetch call.
type Selection struct {
	Code       string
	UID        imap.UID
	ReceivedAt time.Time
	// MarkAsRead is true only when the winner came from the unread
	// phase; it is the sole trigger for the read-state mutation.
	MarkAsRead bool
}

// PickBest applies the priority policy over all processed candidates
// and returns the winner, if any. The result does not depend on the
// order messages were parsed in: for each candidate the extractor runs
// over subject, plain body, then rendered body, and among eligible
// candidates the latest ReceivedAt wins, with equal timestamps resolved
// in favor of the later-processed message.
//
// In the unread phase only messages still flagged unread are eligible;
// a candidate whose flag went stale between search and fetch
// contributes nothing.
func PickBest(msgs []Message, phase Phase, ex *extractor.Extractor) (Selection, bool) {
	var best Selection

	for _, msg := range msgs {
		code := ex.Extract(msg.Subject)
		if code == "" {
			code = ex.Extract(msg.BodyText)
		}
		if code == "" {
			code = ex.Extract(msg.BodyHTML)
		}
		if code == "" {
			continue
		}

		if phase == PhaseUnread && !msg.Unread {
			continue
		}

		if best.Code == "" || !msg.ReceivedAt.Before(best.ReceivedAt) {
			best = Selection{
				Code:       code,
				UID:        msg.UID,
				ReceivedAt: msg.ReceivedAt,
				MarkAsRead: phase == PhaseUnread,
			}
		}
	}

	return best, best.Code != ""
}
