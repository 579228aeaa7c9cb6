package apierr

import (
	"errors"
	"fmt"
	"net/http"
)

// Stable machine codes returned in the error envelope.
const (
	CodeUnauthenticated         = "unauthenticated"
	CodeForbidden               = "forbidden"
	CodeQuotaExhausted          = "quota_exhausted"
	CodeSubscriptionRequired    = "subscription_required"
	CodeUnsupportedModel        = "unsupported_model"
	CodeUnsupportedVendor       = "unsupported_vendor"
	CodeUpstreamFailure         = "upstream_failure"
	CodeTooManyStreams          = "too_many_streams"
	CodePaymentAlreadyProcessed = "payment_already_processed"
	CodePaymentInProgress       = "payment_in_progress"
	CodeInvalidSignature        = "invalid_signature"
	CodePaymentNotConfirmed     = "payment_not_confirmed"
	CodePaymentsDisabled        = "payments_disabled"
	CodeUnknownPlan             = "unknown_plan"
	CodeNotFound                = "not_found"
	CodeInvalidRequest          = "invalid_request"
	CodeInternal                = "internal"
)

type Error struct {
	Status int
	Code   string
	Err    error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	if e.Code != "" {
		return e.Code
	}
	if e.Status != 0 {
		return fmt.Sprintf("api error (%d)", e.Status)
	}
	return "api error"
}

func (e *Error) Unwrap() error { return e.Err }

func New(status int, code string, err error) *Error {
	return &Error{Status: status, Code: code, Err: err}
}

// As extracts an *Error from err, falling back to a 500 internal error.
func As(err error) *Error {
	var ae *Error
	if errors.As(err, &ae) && ae != nil {
		return ae
	}
	return New(http.StatusInternalServerError, CodeInternal, err)
}
