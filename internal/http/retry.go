package http

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"time"
)

// ErrorType classifies a failure for the upload retry strategy.
type ErrorType int

const (
	ErrorTypeSuccess ErrorType = iota
	// ErrorTypeCredential is an authentication failure (403, expired SAS or token).
	ErrorTypeCredential
	// ErrorTypeNetwork is a connection-level failure.
	ErrorTypeNetwork
	// ErrorTypeRetryable is a server-side or throttling failure.
	ErrorTypeRetryable
	// ErrorTypeFatal is a client error that will not succeed on retry.
	ErrorTypeFatal
)

// RetryConfig holds parameters for ExecuteWithRetry.
// Only export uploads retry; row loading relies on a user-triggered reload.
type RetryConfig struct {
	MaxRetries   int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	OnRetry      func(attempt int, err error, errorType ErrorType)
}

// DefaultRetryConfig returns upload retry defaults.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:   5,
		InitialDelay: 200 * time.Millisecond,
		MaxDelay:     15 * time.Second,
	}
}

// ClassifyError determines the error type for retry strategy.
// Matches both AWS and Azure error texts.
func ClassifyError(err error) ErrorType {
	if err == nil {
		return ErrorTypeSuccess
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return ErrorTypeFatal
	}

	errStr := strings.ToLower(err.Error())

	if containsAny(errStr, "expired", "invalid token", "403", "unauthorized",
		"authentication failed", "authenticationfailed", "invalid sas",
		"signature not valid", "authorization failure") {
		return ErrorTypeCredential
	}

	if containsAny(errStr, "tls handshake timeout", "connection reset", "i/o timeout",
		"eof", "connection refused", "broken pipe", "timeout") {
		return ErrorTypeNetwork
	}

	if containsAny(errStr, "requesttimeout", "internalerror", "serviceunavailable",
		"slowdown", "throttl", "429", "500", "502", "503", "504",
		"server busy", "serverbusy", "operationtimeout", "service unavailable") {
		return ErrorTypeRetryable
	}

	return ErrorTypeFatal
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

// CalculateBackoff returns exponential backoff duration with full jitter.
//
// Formula: random(0, min(maxDelay, initialDelay * 2^attempt))
func CalculateBackoff(attempt int, initialDelay, maxDelay time.Duration) time.Duration {
	if attempt <= 0 || initialDelay <= 0 {
		return 0
	}

	base := time.Duration(1<<uint(attempt)) * initialDelay
	if base > maxDelay || base <= 0 {
		base = maxDelay
	}
	return time.Duration(rand.Int63n(int64(base)))
}

// ExecuteWithRetry runs an operation, retrying network, server and
// credential failures up to MaxRetries attempts. Fatal errors and context
// cancellation return immediately.
func ExecuteWithRetry(ctx context.Context, config RetryConfig, operation func() error) error {
	if config.MaxRetries <= 0 {
		config.MaxRetries = 1
	}

	var lastErr error
	for attempt := 0; attempt < config.MaxRetries; attempt++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		err := operation()
		if err == nil {
			return nil
		}
		lastErr = err

		errType := ClassifyError(err)
		if errType == ErrorTypeFatal {
			return err
		}
		if attempt == config.MaxRetries-1 {
			break
		}

		if config.OnRetry != nil {
			config.OnRetry(attempt+1, err, errType)
		}

		delay := time.Second
		if errType != ErrorTypeCredential {
			delay = CalculateBackoff(attempt+1, config.InitialDelay, config.MaxDelay)
		}
		if deadline, ok := ctx.Deadline(); ok && time.Until(deadline) < delay {
			return fmt.Errorf("deadline too short for retry: %w", lastErr)
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}

	return fmt.Errorf("operation failed after %d attempts: %w", config.MaxRetries, lastErr)
}

// ErrorTypeName returns a human-readable name for an ErrorType
func ErrorTypeName(errType ErrorType) string {
	switch errType {
	case ErrorTypeSuccess:
		return "success"
	case ErrorTypeCredential:
		return "credential"
	case ErrorTypeNetwork:
		return "network"
	case ErrorTypeRetryable:
		return "retryable"
	case ErrorTypeFatal:
		return "fatal"
	default:
		return "unknown"
	}
}
