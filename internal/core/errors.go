package core

// Error codes sent to WebSocket clients.
const (
	ErrCodeBadRequest  = "bad_request"
	ErrCodeRateLimited = "rate_limited"
)
