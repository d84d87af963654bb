package contextkey

type contextKey string

const (
	// ContextKeyRequestID carries the per-request uuid.UUID set by the
	// request ID middleware.
	ContextKeyRequestID contextKey = "request_id"
	// ContextKeyUserID carries the authenticated user's uuid.UUID.
	ContextKeyUserID contextKey = "user_id"
	// ContextKeySessionID carries the cookie session's uuid.UUID.
	ContextKeySessionID contextKey = "session_id"
)
