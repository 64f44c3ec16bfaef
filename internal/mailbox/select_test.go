package mailbox

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/msaqhib/netflix-household-verify/internal/extractor"
)

func TestPickBestUnreadBeatsNewerRead(t *testing.T) {
	base := time.Now()
	msgs := []Message{
		{
			UID:        7,
			ReceivedAt: base.Add(-time.Hour),
			Unread:     true,
			BodyText:   "Your Verification Code: 123456",
		},
		{
			UID:        8,
			ReceivedAt: base,
			Unread:     false,
			BodyText:   "Your Verification Code: 999999",
		},
	}

	sel, ok := PickBest(msgs, PhaseUnread, extractor.New())

	require.True(t, ok)
	assert.Equal(t, "123456", sel.Code)
	assert.Equal(t, msgs[0].UID, sel.UID)
	assert.True(t, sel.MarkAsRead)
}

func TestPickBestRecentLatestWins(t *testing.T) {
	t1 := time.Now().Add(-5 * time.Minute)
	t2 := time.Now().Add(-1 * time.Minute)
	msgs := []Message{
		{UID: 1, ReceivedAt: t2, BodyText: "code: 222222"},
		{UID: 2, ReceivedAt: t1, BodyText: "code: 111111"},
	}

	sel, ok := PickBest(msgs, PhaseRecent, extractor.New())

	require.True(t, ok)
	assert.Equal(t, "222222", sel.Code)
	assert.False(t, sel.MarkAsRead)

	// Same outcome regardless of processing order.
	sel, ok = PickBest([]Message{msgs[1], msgs[0]}, PhaseRecent, extractor.New())
	require.True(t, ok)
	assert.Equal(t, "222222", sel.Code)
}

func TestPickBestEqualTimestampsLaterProcessedWins(t *testing.T) {
	at := time.Now()
	msgs := []Message{
		{UID: 1, ReceivedAt: at, BodyText: "code: 111111"},
		{UID: 2, ReceivedAt: at, BodyText: "code: 222222"},
	}

	sel, ok := PickBest(msgs, PhaseRecent, extractor.New())

	require.True(t, ok)
	assert.Equal(t, "222222", sel.Code)
	assert.Equal(t, msgs[1].UID, sel.UID)
}

func TestPickBestStaleUnreadFlagContributesNothing(t *testing.T) {
	msgs := []Message{
		{UID: 1, ReceivedAt: time.Now(), Unread: false, BodyText: "code: 111111"},
	}

	_, ok := PickBest(msgs, PhaseUnread, extractor.New())
	assert.False(t, ok)

	// The same message is eligible under recency-phase logic.
	sel, ok := PickBest(msgs, PhaseRecent, extractor.New())
	require.True(t, ok)
	assert.Equal(t, "111111", sel.Code)
}

func TestPickBestSubjectTakesPriorityOverBodies(t *testing.T) {
	msgs := []Message{
		{
			UID:        1,
			ReceivedAt: time.Now(),
			Unread:     true,
			Subject:    "Your Verification Code: 123456",
			BodyText:   "Your Verification Code: 999999",
			BodyHTML:   "Your Verification Code: 888888",
		},
	}

	sel, ok := PickBest(msgs, PhaseUnread, extractor.New())

	require.True(t, ok)
	assert.Equal(t, "123456", sel.Code)
}

func TestPickBestParseFailureDoesNotAbortOthers(t *testing.T) {
	// A message whose parse failed carries empty bodies: processed,
	// contributing nothing.
	msgs := []Message{
		{UID: 1, ReceivedAt: time.Now(), Unread: true},
		{UID: 2, ReceivedAt: time.Now(), Unread: true, BodyText: "code: 424242"},
	}

	sel, ok := PickBest(msgs, PhaseUnread, extractor.New())

	require.True(t, ok)
	assert.Equal(t, "424242", sel.Code)
	assert.Equal(t, msgs[1].UID, sel.UID)
}

func TestPickBestNoCandidates(t *testing.T) {
	_, ok := PickBest(nil, PhaseRecent, extractor.New())
	assert.False(t, ok)

	_, ok = PickBest([]Message{{UID: 3, ReceivedAt: time.Now(), BodyText: "nothing here"}}, PhaseRecent, extractor.New())
	assert.False(t, ok)
}
