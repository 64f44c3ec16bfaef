// Package poller implements the caller-side polling loop: repeated
// fetch-verification calls with distinct backoff for found, not-found,
// and error outcomes, plus a manual-entry fallback after a bounded
// wait.
package poller

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

const (
	// DefaultFoundInterval is the re-poll delay after a code was
	// displayed, to catch a newer code superseding it.
	DefaultFoundInterval = 15 * time.Second
	// DefaultRetryInterval is the re-poll delay after a not-found
	// result or a transient error.
	DefaultRetryInterval = 5 * time.Second
	// DefaultManualEntryAfter is how long to poll without resolution
	// before offering manual code entry.
	DefaultManualEntryAfter = 30 * time.Second
)

// Options configures a Poller. Zero intervals take the defaults; nil
// callbacks are skipped.
type Options struct {
	FoundInterval    time.Duration
	RetryInterval    time.Duration
	ManualEntryAfter time.Duration

	// OnCode is called on every found result; fresh is true when the
	// code differs from the previously displayed one.
	OnCode func(code string, fresh bool)
	// OnStatus receives not-found and transient-error notifications.
	OnStatus func(message string)
	// OnManualPrompt is called once if no code resolved within
	// ManualEntryAfter. Polling continues regardless.
	OnManualPrompt func()
}

// Poller drives the fetch loop for one session.
type Poller struct {
	client *Client
	opts   Options
	logger *slog.Logger

	sessionID string

	mu       sync.Mutex
	lastCode string
}

// New creates a Poller for an established session.
func New(client *Client, sessionID string, opts Options, logger *slog.Logger) *Poller {
	if opts.FoundInterval <= 0 {
		opts.FoundInterval = DefaultFoundInterval
	}
	if opts.RetryInterval <= 0 {
		opts.RetryInterval = DefaultRetryInterval
	}
	if opts.ManualEntryAfter <= 0 {
		opts.ManualEntryAfter = DefaultManualEntryAfter
	}
	return &Poller{
		client:    client,
		opts:      opts,
		logger:    logger,
		sessionID: sessionID,
	}
}

// Run polls until ctx is cancelled, performing the first fetch
// immediately. The manual-entry prompt fires from a side timer so it
// never interrupts the poll cadence.
func (p *Poller) Run(ctx context.Context) {
	manual := time.AfterFunc(p.opts.ManualEntryAfter, func() {
		if p.currentCode() != "" {
			return
		}
		p.logger.Info("no code resolved yet, offering manual entry")
		if p.opts.OnManualPrompt != nil {
			p.opts.OnManualPrompt()
		}
	})
	defer manual.Stop()

	for {
		interval := p.poll(ctx)
		select {
		case <-ctx.Done():
			return
		case <-time.After(interval):
		}
	}
}

// poll performs one fetch and returns the delay before the next one.
func (p *Poller) poll(ctx context.Context) time.Duration {
	res, err := p.client.FetchVerification(ctx, p.sessionID)
	if err != nil {
		// Transient by policy: retry on the not-found cadence.
		p.logger.Warn("fetch failed", "error", err)
		p.status("Error fetching verification code: " + err.Error())
		return p.opts.RetryInterval
	}

	if !res.Success {
		p.logger.Debug("no code yet", "message", res.Message)
		p.status(res.Message)
		return p.opts.RetryInterval
	}

	p.mu.Lock()
	fresh := res.Code != p.lastCode
	p.lastCode = res.Code
	p.mu.Unlock()

	p.logger.Info("verification code received", "fresh", fresh, "unread", res.WasUnread)
	if p.opts.OnCode != nil {
		p.opts.OnCode(res.Code, fresh)
	}
	return p.opts.FoundInterval
}

func (p *Poller) currentCode() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lastCode
}

func (p *Poller) status(message string) {
	if p.opts.OnStatus != nil {
		p.opts.OnStatus(message)
	}
}
