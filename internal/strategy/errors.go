package strategy

import "errors"

var (
	ErrUserNotFound     = errors.New("user not found")
	ErrStrategyNotFound = errors.New("strategy not found")

	// ErrConcurrencyFault means a registry map was left in an unknown state by a
	// panic inside its critical section. It is not retryable.
	ErrConcurrencyFault = errors.New("registry concurrency fault")
)

// ErrInvalidStatus rejects values outside ACTIVE, PAUSED and STOPPED.
var ErrInvalidStatus = errors.New("invalid strategy status")
