package session

import "errors"

var (
	// ErrInvalidSession means a session was opened without both identities.
	ErrInvalidSession = errors.New("invalid session")
	// ErrHistoryUnavailable wraps network failures of the history fetch.
	ErrHistoryUnavailable = errors.New("history unavailable")
	// ErrUnauthorized means the history endpoint rejected our credentials.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrEmptyMessage rejects sends whose trimmed text is empty.
	ErrEmptyMessage = errors.New("empty message")
	// ErrMessageTooLong rejects sends above the text cap.
	ErrMessageTooLong = errors.New("message too long")
	// ErrNotConnected rejects sends while the connection is not up.
	ErrNotConnected = errors.New("not connected")
	// ErrMissingIdentity means the send pipeline has no resolved identities.
	ErrMissingIdentity = errors.New("missing identity")
	// ErrAlreadyInitialized rejects a second history load.
	ErrAlreadyInitialized = errors.New("timeline already initialized")
)
