package verify

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/emersion/go-imap/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/msaqhib/netflix-household-verify/internal/config"
	"github.com/msaqhib/netflix-household-verify/internal/mailbox"
	"github.com/msaqhib/netflix-household-verify/internal/provider"
	"github.com/msaqhib/netflix-household-verify/internal/session"
)

type fakeMailbox struct {
	uids      []imap.UID
	phase     mailbox.Phase
	msgs      []mailbox.Message
	searchErr error
	fetchErr  error
	markErr   error
	marked    []imap.UID
	closed    bool
}

func (f *fakeMailbox) Search(time.Duration) ([]imap.UID, mailbox.Phase, error) {
	return f.uids, f.phase, f.searchErr
}

func (f *fakeMailbox) FetchMessages([]imap.UID) ([]mailbox.Message, error) {
	return f.msgs, f.fetchErr
}

func (f *fakeMailbox) MarkRead(uid imap.UID) error {
	f.marked = append(f.marked, uid)
	return f.markErr
}

func (f *fakeMailbox) Close() error {
	f.closed = true
	return nil
}

func testConfig() *config.Config {
	return &config.Config{
		Account: config.Account{
			Email:    "inbox@gmail.com",
			Password: "app-password",
		},
		Extractor: config.Extractor{BareNumberFallback: true},
	}
}

func testService(cfg *config.Config, dial Dialer) *Service {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc := NewService(cfg, session.NewStore(logger), logger)
	if dial != nil {
		svc.dial = dial
	}
	return svc
}

func TestConnectCreatesSession(t *testing.T) {
	mb := &fakeMailbox{}
	var dialedEmail string
	svc := testService(testConfig(), func(p provider.Profile, email, password string) (Mailbox, error) {
		dialedEmail = email
		return mb, nil
	})

	id, err := svc.Connect(context.Background(), "user@gmail.com", "secret")

	require.NoError(t, err)
	require.NotEmpty(t, id)
	assert.Equal(t, "user@gmail.com", dialedEmail)
	assert.True(t, mb.closed, "verifying connection must be closed")
	assert.True(t, svc.sessions.Exists(id))

	assert.True(t, svc.Logout(id))
	assert.False(t, svc.sessions.Exists(id))
	assert.False(t, svc.Logout(id), "second logout reports no active session")
}

func TestConnectFallsBackToDefaultIdentity(t *testing.T) {
	var dialedEmail string
	svc := testService(testConfig(), func(p provider.Profile, email, password string) (Mailbox, error) {
		dialedEmail = email
		return &fakeMailbox{}, nil
	})

	_, err := svc.Connect(context.Background(), "", "")

	require.NoError(t, err)
	assert.Equal(t, "inbox@gmail.com", dialedEmail)
}

func TestConnectMissingCredentials(t *testing.T) {
	cfg := testConfig()
	cfg.Account = config.Account{}
	dialed := false
	svc := testService(cfg, func(provider.Profile, string, string) (Mailbox, error) {
		dialed = true
		return &fakeMailbox{}, nil
	})

	_, err := svc.Connect(context.Background(), "", "")

	var verr *Error
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, KindInput, verr.Kind)
	assert.Equal(t, "Email and password are required", verr.Message)
	assert.False(t, dialed)
}

func TestConnectUnsupportedProvider(t *testing.T) {
	dialed := false
	svc := testService(testConfig(), func(provider.Profile, string, string) (Mailbox, error) {
		dialed = true
		return &fakeMailbox{}, nil
	})

	_, err := svc.Connect(context.Background(), "user@yahoo.com", "secret")

	var verr *Error
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, KindInput, verr.Kind)
	assert.False(t, dialed, "no network attempt for unsupported domains")
	assert.Equal(t, 0, svc.sessions.Len())
}

func TestConnectAuthFailure(t *testing.T) {
	svc := testService(testConfig(), func(provider.Profile, string, string) (Mailbox, error) {
		return nil, &mailbox.LoginError{Err: errors.New("NO LOGIN failed")}
	})

	_, err := svc.Connect(context.Background(), "user@gmail.com", "wrong")

	var verr *Error
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, KindAuth, verr.Kind)
	assert.Contains(t, verr.Message, "App Password")
	assert.Equal(t, 0, svc.sessions.Len(), "no session stored on failure")
}

func TestConnectInboxFailure(t *testing.T) {
	svc := testService(testConfig(), func(provider.Profile, string, string) (Mailbox, error) {
		return nil, &mailbox.InboxError{Err: errors.New("NO cannot select")}
	})

	_, err := svc.Connect(context.Background(), "user@gmail.com", "secret")

	var verr *Error
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, KindInbox, verr.Kind)
}

func TestConnectTimeout(t *testing.T) {
	mb := &fakeMailbox{}
	svc := testService(testConfig(), func(provider.Profile, string, string) (Mailbox, error) {
		time.Sleep(100 * time.Millisecond)
		return mb, nil
	})

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := svc.Connect(ctx, "user@gmail.com", "secret")

	var verr *Error
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, KindTimeout, verr.Kind)
	assert.Equal(t, 0, svc.sessions.Len())

	// The late connection is still closed, not leaked.
	assert.Eventually(t, func() bool { return mb.closed }, time.Second, 10*time.Millisecond)
}

func TestFetchCodeUnknownSession(t *testing.T) {
	dialed := false
	svc := testService(testConfig(), func(provider.Profile, string, string) (Mailbox, error) {
		dialed = true
		return &fakeMailbox{}, nil
	})

	_, err := svc.FetchCode(context.Background(), "1700000000000")

	var verr *Error
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, KindInput, verr.Kind)
	assert.Equal(t, "Invalid or expired session", verr.Message)
	assert.False(t, dialed, "no network operation for unknown sessions")
}

func TestFetchCodeNoCandidates(t *testing.T) {
	mb := &fakeMailbox{phase: mailbox.PhaseRecent}
	svc := testService(testConfig(), func(provider.Profile, string, string) (Mailbox, error) {
		return mb, nil
	})
	id := svc.sessions.Create(nil)

	res, err := svc.FetchCode(context.Background(), id)

	require.NoError(t, err)
	assert.False(t, res.Found)
	assert.Contains(t, res.Message, "No recent Netflix emails found")
	assert.True(t, mb.closed)
}

func TestFetchCodeUnreadWinnerMarkedRead(t *testing.T) {
	received := time.Now().Add(-2 * time.Minute)
	mb := &fakeMailbox{
		uids:  []imap.UID{42},
		phase: mailbox.PhaseUnread,
		msgs: []mailbox.Message{
			{
				UID:        42,
				ReceivedAt: received,
				Unread:     true,
				BodyText:   "Your Verification Code: 123456",
			},
		},
	}
	svc := testService(testConfig(), func(provider.Profile, string, string) (Mailbox, error) {
		return mb, nil
	})
	id := svc.sessions.Create(nil)

	res, err := svc.FetchCode(context.Background(), id)

	require.NoError(t, err)
	assert.True(t, res.Found)
	assert.Equal(t, "123456", res.Code)
	assert.True(t, res.WasUnread)
	assert.Equal(t, received.UnixMilli(), res.Timestamp)
	assert.Equal(t, []imap.UID{42}, mb.marked)
	assert.True(t, mb.closed)
}

func TestFetchCodeMarkReadFailureKeepsResult(t *testing.T) {
	mb := &fakeMailbox{
		uids:    []imap.UID{7},
		phase:   mailbox.PhaseUnread,
		markErr: errors.New("STORE failed"),
		msgs: []mailbox.Message{
			{UID: 7, ReceivedAt: time.Now(), Unread: true, BodyText: "code: 777777"},
		},
	}
	svc := testService(testConfig(), func(provider.Profile, string, string) (Mailbox, error) {
		return mb, nil
	})
	id := svc.sessions.Create(nil)

	res, err := svc.FetchCode(context.Background(), id)

	require.NoError(t, err)
	assert.True(t, res.Found)
	assert.Equal(t, "777777", res.Code)
}

func TestFetchCodeNoCodeInCandidates(t *testing.T) {
	cfg := testConfig()
	cfg.Extractor.BareNumberFallback = false
	mb := &fakeMailbox{
		uids:  []imap.UID{1},
		phase: mailbox.PhaseRecent,
		msgs: []mailbox.Message{
			{UID: 1, ReceivedAt: time.Now(), BodyText: "nothing relevant 482915"},
		},
	}
	svc := testService(cfg, func(provider.Profile, string, string) (Mailbox, error) {
		return mb, nil
	})
	id := svc.sessions.Create(nil)

	res, err := svc.FetchCode(context.Background(), id)

	require.NoError(t, err)
	assert.False(t, res.Found)
	assert.Contains(t, res.Message, "No verification code found")
}

func TestFetchCodeSearchFailureClosesConnection(t *testing.T) {
	mb := &fakeMailbox{searchErr: errors.New("SEARCH failed")}
	svc := testService(testConfig(), func(provider.Profile, string, string) (Mailbox, error) {
		return mb, nil
	})
	id := svc.sessions.Create(nil)

	_, err := svc.FetchCode(context.Background(), id)

	var verr *Error
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, KindInternal, verr.Kind)
	assert.True(t, mb.closed)
}

func TestFetchCodeNoDefaultCredentials(t *testing.T) {
	cfg := testConfig()
	cfg.Account = config.Account{}
	svc := testService(cfg, nil)
	id := svc.sessions.Create(nil)

	_, err := svc.FetchCode(context.Background(), id)

	var verr *Error
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, KindInternal, verr.Kind)
}

func TestDefaultIdentity(t *testing.T) {
	svc := testService(testConfig(), nil)
	email, ok := svc.DefaultIdentity()
	assert.True(t, ok)
	assert.Equal(t, "inbox@gmail.com", email)

	cfg := testConfig()
	cfg.Account.Password = ""
	svc = testService(cfg, nil)
	_, ok = svc.DefaultIdentity()
	assert.False(t, ok)
}
