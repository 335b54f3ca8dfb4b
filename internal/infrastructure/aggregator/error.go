package aggregator

import (
	"errors"
	"fmt"
)

// Permanent error codes reported by the aggregator.
const (
	CodeItemLoginRequired  = "ITEM_LOGIN_REQUIRED"
	CodeItemNotFound       = "ITEM_NOT_FOUND"
	CodeInvalidPublicToken = "INVALID_PUBLIC_TOKEN"
	CodeInstitutionError   = "INSTITUTION_ERROR"
)

// TransientError wraps failures the caller may retry: network errors,
// timeouts, and rate limits.
type TransientError struct {
	Err error
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("aggregator transient error: %v", e.Err)
}

func (e *TransientError) Unwrap() error {
	return e.Err
}

// PermanentError reports a definitive aggregator failure: retrying the
// same call cannot succeed. The owning connection must be flipped to
// the error state.
type PermanentError struct {
	Code    string
	Message string
}

func (e *PermanentError) Error() string {
	return fmt.Sprintf("aggregator error %s: %s", e.Code, e.Message)
}

func IsTransient(err error) bool {
	var te *TransientError
	return errors.As(err, &te)
}

func IsPermanent(err error) bool {
	var pe *PermanentError
	return errors.As(err, &pe)
}

// PermanentCode extracts the aggregator error code, if any.
func PermanentCode(err error) string {
	var pe *PermanentError
	if errors.As(err, &pe) {
		return pe.Code
	}
	return ""
}
