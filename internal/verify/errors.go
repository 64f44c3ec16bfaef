package verify

// ErrorKind categorizes a failure so the HTTP boundary can map it to a
// status code without inspecting error chains.
type ErrorKind int

const (
	// KindInput covers missing or malformed request fields and
	// unsupported provider domains; no network attempt was made.
	KindInput ErrorKind = iota
	// KindAuth is a rejected login.
	KindAuth
	// KindConnectivity is an unreachable mail server.
	KindConnectivity
	// KindTimeout is an operation that exceeded its bound.
	KindTimeout
	// KindInbox is a successful login that could not open INBOX.
	KindInbox
	// KindInternal is everything else.
	KindInternal
)

// Error is a categorized failure with a user-facing message. All
// internal failures are converted to this type at the orchestrator
// boundary; nothing else escapes to the HTTP layer.
type Error struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }
