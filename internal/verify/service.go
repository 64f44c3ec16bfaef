// Package verify composes the session store, provider resolution, and
// mailbox pipeline into the three externally visible operations:
// connect, fetch-verification, and logout.
package verify

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"time"

	"github.com/emersion/go-imap/v2"

	"github.com/msaqhib/netflix-household-verify/internal/config"
	"github.com/msaqhib/netflix-household-verify/internal/extractor"
	"github.com/msaqhib/netflix-household-verify/internal/mailbox"
	"github.com/msaqhib/netflix-household-verify/internal/provider"
	"github.com/msaqhib/netflix-household-verify/internal/session"
)

// Mailbox is the slice of mailbox.Conn the orchestrator depends on.
type Mailbox interface {
	Search(window time.Duration) ([]imap.UID, mailbox.Phase, error)
	FetchMessages(uids []imap.UID) ([]mailbox.Message, error)
	MarkRead(uid imap.UID) error
	Close() error
}

// Dialer opens an authenticated mailbox session with INBOX selected.
type Dialer func(p provider.Profile, email, password string) (Mailbox, error)

// Result is the outcome of one fetch-verification call. Found false
// with a Message is a normal outcome, not an error.
type Result struct {
	Found     bool
	Code      string
	Message   string
	Timestamp int64 // unix milliseconds of the winning message
	WasUnread bool
}

// Service is the retrieval orchestrator.
type Service struct {
	cfg       *config.Config
	sessions  *session.Store
	extractor *extractor.Extractor
	dial      Dialer
	logger    *slog.Logger
}

// NewService creates the orchestrator with the real IMAP dialer.
func NewService(cfg *config.Config, sessions *session.Store, logger *slog.Logger) *Service {
	return &Service{
		cfg:      cfg,
		sessions: sessions,
		extractor: &extractor.Extractor{
			BareNumberFallback: cfg.Extractor.BareNumberFallback,
		},
		dial: func(p provider.Profile, email, password string) (Mailbox, error) {
			return mailbox.Dial(p, email, password, logger)
		},
		logger: logger,
	}
}

// DefaultIdentity returns the configured default email address, if a
// complete default identity exists.
func (s *Service) DefaultIdentity() (string, bool) {
	if s.cfg.Account.HasCredentials() {
		return s.cfg.Account.Email, true
	}
	return "", false
}

// Connect validates the credentials against the provider by opening a
// session and INBOX, then registers a new session id. The verifying
// connection is closed; fetches open their own. The whole attempt is
// bounded by the configured connect timeout.
func (s *Service) Connect(ctx context.Context, email, password string) (string, error) {
	if email == "" {
		email = s.cfg.Account.Email
	}
	if password == "" {
		password = s.cfg.Account.Password
	}
	if email == "" || password == "" {
		return "", &Error{Kind: KindInput, Message: "Email and password are required"}
	}

	profile, err := provider.Resolve(email)
	if err != nil {
		return "", &Error{
			Kind:    KindInput,
			Message: "Unsupported email provider. Currently only Gmail, Outlook and Hotmail are supported.",
			Err:     err,
		}
	}

	s.logger.Info("connecting to mail provider", "email", email, "host", profile.Host)

	mb, err := s.dialBounded(ctx, profile, email, password, s.cfg.Timeouts.ConnectTimeout())
	if err != nil {
		return "", s.categorize(err)
	}
	if err := mb.Close(); err != nil {
		s.logger.Warn("close verifying connection", "error", err)
	}

	return s.sessions.Create(nil), nil
}

// FetchCode runs the retrieval pipeline for an existing session: fresh
// connection with the default identity, two-phase search, concurrent
// fetch and parse, selection, optional mark-read. Bounded by the
// configured fetch timeout.
func (s *Service) FetchCode(ctx context.Context, sessionID string) (Result, error) {
	if sessionID == "" || !s.sessions.Exists(sessionID) {
		return Result{}, &Error{Kind: KindInput, Message: "Invalid or expired session"}
	}
	if !s.cfg.Account.HasCredentials() {
		return Result{}, &Error{Kind: KindInternal, Message: "No default mailbox credentials configured"}
	}

	profile, err := provider.Resolve(s.cfg.Account.Email)
	if err != nil {
		return Result{}, &Error{Kind: KindInternal, Message: "Default mailbox provider is not supported", Err: err}
	}

	ctx, cancel := context.WithTimeout(ctx, s.cfg.Timeouts.FetchTimeout())
	defer cancel()

	type outcome struct {
		res Result
		err error
	}
	done := make(chan outcome, 1)
	go func() {
		res, err := s.runFetch(profile)
		done <- outcome{res, err}
	}()

	select {
	case out := <-done:
		if out.err != nil {
			return Result{}, s.categorize(out.err)
		}
		return out.res, nil
	case <-ctx.Done():
		// The pipeline goroutine still owns its connection and closes
		// it when the underlying call returns.
		return Result{}, &Error{
			Kind:    KindTimeout,
			Message: "Fetching verification emails timed out",
			Err:     ctx.Err(),
		}
	}
}

// Logout removes the session, reporting whether it existed.
func (s *Service) Logout(sessionID string) bool {
	return s.sessions.Remove(sessionID)
}

func (s *Service) runFetch(profile provider.Profile) (Result, error) {
	mb, err := s.dial(profile, s.cfg.Account.Email, s.cfg.Account.Password)
	if err != nil {
		return Result{}, err
	}
	defer func() {
		if err := mb.Close(); err != nil {
			s.logger.Warn("close fetch connection", "error", err)
		}
	}()

	uids, phase, err := mb.Search(s.cfg.Search.RecencyWindow())
	if err != nil {
		return Result{}, err
	}
	if len(uids) == 0 {
		return Result{
			Message: "No recent Netflix emails found. Please check if verification email has arrived.",
		}, nil
	}

	s.logger.Info("processing candidates", "count", len(uids), "phase", phase.String())

	msgs, err := mb.FetchMessages(uids)
	if err != nil {
		return Result{}, err
	}

	sel, ok := mailbox.PickBest(msgs, phase, s.extractor)
	if !ok {
		return Result{
			Message: "No verification code found in recent emails.",
		}, nil
	}

	if sel.MarkAsRead {
		if err := mb.MarkRead(sel.UID); err != nil {
			// The computed result stands even when the flag mutation
			// fails.
			s.logger.Warn("mark as read failed", "uid", sel.UID, "error", err)
		}
	}

	s.logger.Info("verification code selected",
		"uid", sel.UID,
		"unread", sel.MarkAsRead,
		"received_at", sel.ReceivedAt,
	)

	return Result{
		Found:     true,
		Code:      sel.Code,
		Message:   "Fresh verification code found!",
		Timestamp: sel.ReceivedAt.UnixMilli(),
		WasUnread: sel.MarkAsRead,
	}, nil
}

type dialOutcome struct {
	mb  Mailbox
	err error
}

func (s *Service) dialBounded(ctx context.Context, p provider.Profile, email, password string, timeout time.Duration) (Mailbox, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	done := make(chan dialOutcome, 1)
	go func() {
		mb, err := s.dial(p, email, password)
		done <- dialOutcome{mb, err}
	}()

	select {
	case out := <-done:
		return out.mb, out.err
	case <-ctx.Done():
		// Close the connection when the dial eventually returns so it
		// is not leaked.
		go func() {
			if out := <-done; out.mb != nil {
				_ = out.mb.Close()
			}
		}()
		return nil, &Error{
			Kind:    KindTimeout,
			Message: "Connection timed out. Check your email credentials or internet connection.",
			Err:     ctx.Err(),
		}
	}
}

func (s *Service) categorize(err error) error {
	var verr *Error
	if errors.As(err, &verr) {
		return verr
	}

	var loginErr *mailbox.LoginError
	if errors.As(err, &loginErr) {
		return &Error{
			Kind:    KindAuth,
			Message: "Authentication failed. If using Gmail, make sure you're using an App Password.",
			Err:     err,
		}
	}

	var inboxErr *mailbox.InboxError
	if errors.As(err, &inboxErr) {
		return &Error{
			Kind:    KindInbox,
			Message: "Connected to email server but could not access inbox",
			Err:     err,
		}
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return &Error{
			Kind:    KindConnectivity,
			Message: "Could not reach email server. Check your internet connection.",
			Err:     err,
		}
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return &Error{
			Kind:    KindTimeout,
			Message: "Connection timed out. Check your email credentials or internet connection.",
			Err:     err,
		}
	}

	return &Error{Kind: KindInternal, Message: "Email connection error", Err: err}
}
