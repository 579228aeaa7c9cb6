package handlers

import (
	"errors"
	"net/http"

	"github.com/yungbote/chatgateway-backend/internal/platform/apierr"
	"github.com/yungbote/chatgateway-backend/internal/services/auth"
	"github.com/yungbote/chatgateway-backend/internal/services/orchestrator"
	"github.com/yungbote/chatgateway-backend/internal/services/payments"
	"github.com/yungbote/chatgateway-backend/internal/services/quota"
	"github.com/yungbote/chatgateway-backend/internal/services/recorder"
)

type errMapping struct {
	target error
	status int
	code   string
}

var errMappings = []errMapping{
	{auth.ErrInvalidGoogleToken, http.StatusUnauthorized, apierr.CodeUnauthenticated},
	{auth.ErrInvalidSession, http.StatusUnauthorized, apierr.CodeUnauthenticated},

	{recorder.ErrForbidden, http.StatusForbidden, apierr.CodeForbidden},
	{recorder.ErrThreadNotFound, http.StatusNotFound, apierr.CodeNotFound},

	{quota.ErrQuotaExhausted, http.StatusPaymentRequired, apierr.CodeQuotaExhausted},
	{quota.ErrSubscriptionRequired, http.StatusPaymentRequired, apierr.CodeSubscriptionRequired},
	{quota.ErrGatewayUnavailable, http.StatusBadGateway, apierr.CodeUpstreamFailure},

	{orchestrator.ErrEmptyInput, http.StatusBadRequest, apierr.CodeInvalidRequest},
	{orchestrator.ErrUnsupportedModel, http.StatusBadRequest, apierr.CodeUnsupportedModel},
	{orchestrator.ErrUnsupportedVendor, http.StatusBadRequest, apierr.CodeUnsupportedVendor},
	{orchestrator.ErrUpstreamFailure, http.StatusBadGateway, apierr.CodeUpstreamFailure},
	{orchestrator.ErrTooManyStreams, http.StatusTooManyRequests, apierr.CodeTooManyStreams},

	{payments.ErrAlreadyProcessed, http.StatusConflict, apierr.CodePaymentAlreadyProcessed},
	{payments.ErrPaymentInProgress, http.StatusConflict, apierr.CodePaymentInProgress},
	{payments.ErrInvalidSignature, http.StatusBadRequest, apierr.CodeInvalidSignature},
	{payments.ErrPaymentNotConfirmed, http.StatusPaymentRequired, apierr.CodePaymentNotConfirmed},
	{payments.ErrUnknownPlan, http.StatusBadRequest, apierr.CodeUnknownPlan},
	{payments.ErrForbidden, http.StatusForbidden, apierr.CodeForbidden},
	{payments.ErrNotFound, http.StatusNotFound, apierr.CodeNotFound},
}

// toAPIError maps service errors onto the public taxonomy. Unknown errors
// become 500 internal.
func toAPIError(err error) error {
	if err == nil {
		return nil
	}
	var ae *apierr.Error
	if errors.As(err, &ae) {
		return ae
	}
	for _, m := range errMappings {
		if errors.Is(err, m.target) {
			return apierr.New(m.status, m.code, err)
		}
	}
	return apierr.New(http.StatusInternalServerError, apierr.CodeInternal, err)
}

func badRequest(err error) error {
	return apierr.New(http.StatusBadRequest, apierr.CodeInvalidRequest, err)
}

var errInvalidPage = errors.New("page must be a positive integer")
