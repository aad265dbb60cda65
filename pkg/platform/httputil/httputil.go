package httputil

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	dErrors "apihub/pkg/domain-errors"
	"apihub/pkg/requestcontext"
)

func WriteJSON(w http.ResponseWriter, status int, response any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	// Headers are already sent, an encoding error cannot change the status.
	_ = json.NewEncoder(w).Encode(response)
}

// Detailed is implemented by errors that carry a structured payload for the
// caller, such as the per-environment failures of a scope reconciliation.
type Detailed interface {
	error
	Details() any
}

// WriteError centralizes domain error translation to HTTP responses.
func WriteError(w http.ResponseWriter, err error) {
	var domainErr *dErrors.Error
	if !errors.As(err, &domainErr) {
		WriteJSON(w, http.StatusInternalServerError, map[string]any{
			"error": DomainCodeToHTTPCode(dErrors.CodeInternal),
		})
		return
	}

	response := map[string]any{
		"error": DomainCodeToHTTPCode(domainErr.Code),
	}
	if domainErr.Message != "" {
		response["error_description"] = domainErr.Message
	}
	var detailed Detailed
	if errors.As(err, &detailed) {
		response["failures"] = detailed.Details()
	}
	WriteJSON(w, DomainCodeToHTTPStatus(domainErr.Code), response)
}

// DomainCodeToHTTPStatus translates domain error codes to HTTP status codes.
func DomainCodeToHTTPStatus(code dErrors.Code) int {
	switch code {
	case dErrors.CodeNotFound:
		return http.StatusNotFound
	case dErrors.CodeBadRequest, dErrors.CodeValidation, dErrors.CodeInvalidInput, dErrors.CodeInvariantViolation:
		return http.StatusBadRequest
	case dErrors.CodeConflict, dErrors.CodeNotPending:
		return http.StatusConflict
	case dErrors.CodeUnauthorized:
		return http.StatusUnauthorized
	case dErrors.CodeForbidden:
		return http.StatusForbidden
	case dErrors.CodeUpstreamUnavailable, dErrors.CodeUpstreamUnexpectedResponse:
		return http.StatusBadGateway
	case dErrors.CodeTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// DomainCodeToHTTPCode translates domain error codes to the machine readable
// code of the JSON body.
func DomainCodeToHTTPCode(code dErrors.Code) string {
	switch code {
	case dErrors.CodeNotFound:
		return "not_found"
	case dErrors.CodeBadRequest, dErrors.CodeInvalidInput:
		return "bad_request"
	case dErrors.CodeValidation, dErrors.CodeInvariantViolation:
		return "validation_error"
	case dErrors.CodeConflict:
		return "conflict"
	case dErrors.CodeNotPending:
		return "not_pending"
	case dErrors.CodeUnauthorized:
		return "unauthorized"
	case dErrors.CodeForbidden:
		return "forbidden"
	case dErrors.CodeUpstreamUnavailable:
		return "upstream_unavailable"
	case dErrors.CodeUpstreamUnexpectedResponse:
		return "upstream_unexpected_response"
	case dErrors.CodeTimeout:
		return "upstream_timeout"
	case dErrors.CodeInternalInconsistency:
		return "internal_inconsistency"
	default:
		return "internal_error"
	}
}

// RequireCaller returns the authenticated caller's email from context.
// Handlers mounted behind the auth middleware never see an empty caller, so
// a miss is reported as an internal error.
func RequireCaller(ctx context.Context, logger *slog.Logger) (string, error) {
	caller := requestcontext.User(ctx)
	if caller == "" {
		if logger != nil {
			logger.ErrorContext(ctx, "caller missing from context despite auth middleware",
				"request_id", requestcontext.RequestID(ctx))
		}
		return "", dErrors.New(dErrors.CodeInternal, "authentication context error")
	}
	return caller, nil
}
