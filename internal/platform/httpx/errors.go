// Package httpx provides HTTP response utilities.
package httpx

import (
	"errors"
	"net/http"

	"github.com/sitestock/sitestock/internal/shared"
)

// ErrMalformedBody is returned when a request body cannot be decoded.
var ErrMalformedBody = shared.Validation("malformed_body", "request body is not valid JSON")

// StatusFor maps the domain error taxonomy to an HTTP status code.
func StatusFor(err error) int {
	switch shared.KindOf(err) {
	case shared.KindNotFound:
		return http.StatusNotFound
	case shared.KindValidation:
		return http.StatusUnprocessableEntity
	case shared.KindAuthorization:
		if errors.Is(err, shared.ErrUnauthenticated) {
			return http.StatusUnauthorized
		}
		return http.StatusForbidden
	case shared.KindConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// RespondError maps domain errors to HTTP responses using RFC7807.
func RespondError(w http.ResponseWriter, err error) {
	status := StatusFor(err)
	var de *shared.Error
	if status == http.StatusInternalServerError || !errors.As(err, &de) {
		Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}
	JSON(w, status, ProblemDetail{
		Type:      "urn:sitestock:error:" + de.Code,
		Title:     http.StatusText(status),
		Status:    status,
		Detail:    de.Message,
		Code:      de.Code,
		Retryable: de.Retryable,
		Details:   de.Details,
	})
}
