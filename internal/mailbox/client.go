package mailbox

import (
	"bytes"
	"cmp"
	"crypto/tls"
	"fmt"
	"io"
	"log/slog"
	"net"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/emersion/go-imap/v2"
	"github.com/emersion/go-imap/v2/imapclient"
	"github.com/emersion/go-message/mail"

	"github.com/msaqhib/netflix-household-verify/internal/provider"
)

// LoginError indicates the server rejected the supplied credentials.
type LoginError struct {
	Err error
}

func (e *LoginError) Error() string { return "imap login: " + e.Err.Error() }
func (e *LoginError) Unwrap() error { return e.Err }

// InboxError indicates authentication succeeded but INBOX could not be
// opened.
type InboxError struct {
	Err error
}

func (e *InboxError) Error() string { return "imap open inbox: " + e.Err.Error() }
func (e *InboxError) Unwrap() error { return e.Err }

// Conn is one established IMAP session with INBOX selected.
type Conn struct {
	client *imapclient.Client
	logger *slog.Logger
}

// Dial connects to the provider's IMAP endpoint, authenticates, and
// selects INBOX. The caller owns the returned Conn and must Close it on
// every exit path.
func Dial(p provider.Profile, email, password string, logger *slog.Logger) (*Conn, error) {
	addr := net.JoinHostPort(p.Host, fmt.Sprintf("%d", p.Port))

	var client *imapclient.Client
	var err error

	if p.UseTLS {
		client, err = imapclient.DialTLS(addr, &imapclient.Options{
			TLSConfig: &tls.Config{ServerName: p.Host},
		})
	} else {
		client, err = imapclient.DialInsecure(addr, nil)
	}
	if err != nil {
		return nil, fmt.Errorf("imap connect %s: %w", addr, err)
	}

	if err := client.Login(email, password).Wait(); err != nil {
		client.Close()
		return nil, &LoginError{Err: err}
	}

	if _, err := client.Select("INBOX", nil).Wait(); err != nil {
		_ = client.Logout().Wait()
		client.Close()
		return nil, &InboxError{Err: err}
	}

	return &Conn{client: client, logger: logger}, nil
}

// Close logs the session out and releases the connection.
func (c *Conn) Close() error {
	defer c.client.Close()
	if err := c.client.Logout().Wait(); err != nil {
		return fmt.Errorf("imap logout: %w", err)
	}
	return nil
}

// Search runs the two-phase candidate search: unread messages first,
// then messages received within the recency window. The unread phase
// fully preempts the recency phase when it yields anything. UIDs are
// returned newest-first; an empty result is not an error.
func (c *Conn) Search(window time.Duration) ([]imap.UID, Phase, error) {
	data, err := c.client.UIDSearch(UnreadCriteria(), nil).Wait()
	if err != nil {
		return nil, PhaseUnread, fmt.Errorf("unread search: %w", err)
	}

	uids := data.AllUIDs()
	if len(uids) > 0 {
		sortNewestFirst(uids)
		c.logger.Info("found unread candidates", "count", len(uids))
		return uids, PhaseUnread, nil
	}

	c.logger.Debug("no unread candidates, searching recent messages", "window", window)

	data, err = c.client.UIDSearch(RecentCriteria(time.Now().Add(-window)), nil).Wait()
	if err != nil {
		return nil, PhaseRecent, fmt.Errorf("recent search: %w", err)
	}

	uids = data.AllUIDs()
	sortNewestFirst(uids)
	c.logger.Info("found recent candidates", "count", len(uids))
	return uids, PhaseRecent, nil
}

func sortNewestFirst(uids []imap.UID) {
	slices.SortFunc(uids, func(a, b imap.UID) int {
		return cmp.Compare(b, a)
	})
}

// FetchMessages fetches attributes and bodies for all UIDs and parses
// the bodies concurrently. It returns only after every parse has
// finished; a message whose body fails to parse is still returned, with
// empty bodies, so it counts as processed without contributing a code.
func (c *Conn) FetchMessages(uids []imap.UID) ([]Message, error) {
	if len(uids) == 0 {
		return nil, nil
	}

	bodySection := &imap.FetchItemBodySection{Peek: true}
	fetchOptions := &imap.FetchOptions{
		Envelope:     true,
		Flags:        true,
		UID:          true,
		InternalDate: true,
		BodySection:  []*imap.FetchItemBodySection{bodySection},
	}

	buffers, err := c.client.Fetch(imap.UIDSetNum(uids...), fetchOptions).Collect()
	if err != nil {
		return nil, fmt.Errorf("imap fetch: %w", err)
	}

	msgs := make([]Message, len(buffers))

	var wg sync.WaitGroup
	for i, buf := range buffers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			msgs[i] = c.buildMessage(buf, bodySection)
		}()
	}
	wg.Wait()

	return msgs, nil
}

// MarkRead sets the \Seen flag on one message.
func (c *Conn) MarkRead(uid imap.UID) error {
	cmd := c.client.Store(imap.UIDSetNum(uid), &imap.StoreFlags{
		Op:     imap.StoreFlagsAdd,
		Silent: true,
		Flags:  []imap.Flag{imap.FlagSeen},
	}, nil)
	if err := cmd.Close(); err != nil {
		return fmt.Errorf("store seen flag: %w", err)
	}
	return nil
}

func (c *Conn) buildMessage(buf *imapclient.FetchMessageBuffer, section *imap.FetchItemBodySection) Message {
	msg := Message{
		UID:        buf.UID,
		ReceivedAt: buf.InternalDate,
		Unread:     !slices.Contains(buf.Flags, imap.FlagSeen),
	}

	if buf.Envelope != nil {
		msg.Subject = buf.Envelope.Subject
		if !buf.Envelope.Date.IsZero() {
			msg.ReceivedAt = buf.Envelope.Date
		}
		if len(buf.Envelope.From) > 0 {
			from := buf.Envelope.From[0]
			if from.Name != "" {
				msg.From = fmt.Sprintf("%s <%s>", from.Name, from.Addr())
			} else {
				msg.From = from.Addr()
			}
		}
	}
	if msg.ReceivedAt.IsZero() {
		msg.ReceivedAt = time.Now()
	}

	raw := buf.FindBodySection(section)
	if len(raw) == 0 {
		c.logger.Warn("empty body section", "uid", msg.UID)
		return msg
	}

	text, html, err := parseBody(raw)
	if err != nil {
		c.logger.Warn("body parse failed", "uid", msg.UID, "error", err)
		return msg
	}
	msg.BodyText = text
	msg.BodyHTML = html

	return msg
}

// parseBody walks the MIME structure and extracts the text/plain and
// text/html inline parts.
func parseBody(raw []byte) (textBody, htmlBody string, err error) {
	mr, err := mail.CreateReader(bytes.NewReader(raw))
	if err != nil {
		return "", "", fmt.Errorf("create mail reader: %w", err)
	}
	defer mr.Close()

	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			break
		}

		header, ok := part.Header.(*mail.InlineHeader)
		if !ok {
			continue
		}

		contentType, _, _ := header.ContentType()
		body, readErr := io.ReadAll(part.Body)
		if readErr != nil {
			continue
		}

		switch {
		case strings.HasPrefix(contentType, "text/plain"):
			textBody = string(body)
		case strings.HasPrefix(contentType, "text/html"):
			htmlBody = string(body)
		}
	}

	return textBody, htmlBody, nil
}
