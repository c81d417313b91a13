package summarize

import (
	"errors"
	"fmt"
)

// ErrorKind classifies service failures for retry decisions.
type ErrorKind string

const (
	// KindTransient covers timeouts and flaky transport failures.
	// Retryable with normal backoff.
	KindTransient ErrorKind = "transient"
	// KindQuota covers rate-limit rejections. Retryable with longer backoff.
	KindQuota ErrorKind = "quota"
	// KindInvalidInput covers requests the service will never accept.
	KindInvalidInput ErrorKind = "invalid_input"
	// KindUnavailable covers auth failures and service outages. Not
	// retryable within the current attempt.
	KindUnavailable ErrorKind = "unavailable"
)

// ServiceError is a classified failure from a summarization provider.
type ServiceError struct {
	Kind ErrorKind
	Op   string
	Err  error
}

func (e *ServiceError) Error() string {
	return fmt.Sprintf("summarize %s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *ServiceError) Unwrap() error {
	return e.Err
}

// KindOf returns the classification of err, or KindUnavailable when err is
// not a ServiceError. Unclassified failures should not be retried blindly.
func KindOf(err error) ErrorKind {
	var se *ServiceError
	if errors.As(err, &se) {
		return se.Kind
	}
	return KindUnavailable
}

// Retryable reports whether err may succeed on a later attempt.
func Retryable(err error) bool {
	k := KindOf(err)
	return k == KindTransient || k == KindQuota
}
