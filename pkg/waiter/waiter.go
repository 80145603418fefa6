// Package waiter implements bounded-retry polling with a uniform timeout
// message.
package waiter

import (
	"time"

	"github.com/pkg/errors"
)

// TimeoutError is raised when Poll exhausts max_attempts without the
// predicate succeeding.
type TimeoutError struct {
	Message  string
	Attempts int
}

func (e *TimeoutError) Error() string {
	return errors.Errorf("timed out after %d attempt(s): %s", e.Attempts, e.Message).Error()
}

// Predicate returns true on success; any error it returns counts the
// attempt as failed rather than aborting the poll.
type Predicate func() (bool, error)

// Poll invokes predicate up to maxAttempts times (1-indexed), sleeping
// interval between attempts, until it returns true or attempts are
// exhausted. interval may be 0 for unit tests.
func Poll(maxAttempts int, interval time.Duration, message string, predicate Predicate) error {
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		ok, err := safeInvoke(predicate)
		if err == nil && ok {
			return nil
		}
		if attempt < maxAttempts && interval > 0 {
			time.Sleep(interval)
		}
	}
	return &TimeoutError{Message: message, Attempts: maxAttempts}
}

func safeInvoke(predicate Predicate) (ok bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			ok, err = false, errors.Errorf("predicate panicked: %v", r)
		}
	}()
	return predicate()
}

// RetryableValue is the predicate Retry calls: a value on success, or
// an error that counts the attempt as failed.
type RetryableValue[T any] func() (T, error)

// Retry retries predicate up to maxAttempts times using exponential
// backoff (backoffBase * 2^(attempt-1)) between attempts, for transient
// network failures. It returns the first successful value, or the last
// error once attempts are exhausted.
func Retry[T any](maxAttempts int, backoffBase time.Duration, predicate RetryableValue[T]) (T, error) {
	var lastErr error
	var zero T
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		val, err := predicate()
		if err == nil {
			return val, nil
		}
		lastErr = err
		if attempt < maxAttempts {
			backoff := backoffBase * time.Duration(1<<uint(attempt-1))
			time.Sleep(backoff)
		}
	}
	return zero, errors.Wrapf(lastErr, "exhausted %d attempt(s)", maxAttempts)
}
