package identity

import (
	"errors"
	"fmt"
)

// DeliveryError means the verification endpoint or identity provider could
// not be reached, or answered outside the 2xx range. The surface shows it
// inline next to the form that triggered the call.
type DeliveryError struct {
	Op  string
	Err error
}

func (e *DeliveryError) Error() string {
	return fmt.Sprintf("%s: delivery failed: %v", e.Op, e.Err)
}

func (e *DeliveryError) Unwrap() error { return e.Err }

// InvalidCodeError means the one-time code was wrong or expired. The form
// stays open so the user can retry.
type InvalidCodeError struct {
	Identifier string
	Message    string
}

func (e *InvalidCodeError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("invalid code for %s: %s", e.Identifier, e.Message)
	}
	return fmt.Sprintf("invalid code for %s", e.Identifier)
}

// IsDeliveryError reports whether err is (or wraps) a DeliveryError.
func IsDeliveryError(err error) bool {
	var de *DeliveryError
	return errors.As(err, &de)
}

// IsInvalidCode reports whether err is (or wraps) an InvalidCodeError.
func IsInvalidCode(err error) bool {
	var ice *InvalidCodeError
	return errors.As(err, &ice)
}
