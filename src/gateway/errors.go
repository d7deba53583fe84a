package gateway

import (
	"context"
	"errors"
	"net"
	"strings"
)

// Error taxonomy of the place-order contract. Rate limiting and timeouts are
// transient and eligible for the coordinator's retry policy; everything else
// is surfaced immediately.
var (
	ErrRateLimited        = errors.New("exchange rate limited")
	ErrInsufficientMargin = errors.New("insufficient margin")
	ErrInvalidPrice       = errors.New("invalid price")
	ErrOrderRejected      = errors.New("order rejected")
	ErrCoinNotListed      = errors.New("coin not listed")
)

// IsTransient reports whether err may succeed on retry.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrRateLimited) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	return false
}

// classifyOrderError maps a venue rejection string onto the error taxonomy.
func classifyOrderError(msg string) error {
	lower := strings.ToLower(msg)
	switch {
	case strings.Contains(lower, "rate limit"), strings.Contains(lower, "429"):
		return ErrRateLimited
	case strings.Contains(lower, "margin"):
		return ErrInsufficientMargin
	case strings.Contains(lower, "price"), strings.Contains(lower, "px"):
		return ErrInvalidPrice
	default:
		return ErrOrderRejected
	}
}
