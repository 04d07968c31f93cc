package connectors

import (
	"fmt"
	"time"
)

// ThrottleError: платежный провайдер отказал до исполнения и просит повторить позже.
// Только такой отказ безопасно ретраить: деньги гарантированно не ушли.
type ThrottleError struct {
	RetryAfter time.Duration
	Cause      error
}

func (e *ThrottleError) Error() string {
	return fmt.Sprintf("throttled: retry after %v (cause: %v)", e.RetryAfter, e.Cause)
}

func (e *ThrottleError) Unwrap() error { return e.Cause }
