package httpx

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/sitestock/sitestock/internal/shared"
)

var (
	// ErrInvalidPayload wraps struct validation failures.
	ErrInvalidPayload = shared.Validation("invalid_payload", "request payload failed validation")
	// ErrInvalidParam indicates a malformed path or query parameter.
	ErrInvalidParam = shared.Validation("invalid_param", "invalid parameter")
)

// Bind decodes the JSON body into target and runs struct validation.
func Bind(r *http.Request, v *validator.Validate, target any) error {
	if err := DecodeJSON(r, target); err != nil {
		return err
	}
	if v == nil {
		return nil
	}
	if err := v.Struct(target); err != nil {
		var fieldErrs validator.ValidationErrors
		if !errors.As(err, &fieldErrs) {
			return err
		}
		out := ErrInvalidPayload
		for _, fieldErr := range fieldErrs {
			out = out.With(strings.ToLower(fieldErr.Namespace()), fieldErr.Tag())
		}
		return out
	}
	return nil
}

// IDParam parses a positive int64 URL parameter.
func IDParam(r *http.Request, name string) (int64, error) {
	raw := chi.URLParam(r, name)
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, ErrInvalidParam.With(name, raw)
	}
	return id, nil
}

// QueryInt64 parses an optional int64 query parameter, returning 0 when absent.
func QueryInt64(r *http.Request, name string) (int64, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, ErrInvalidParam.With(name, raw)
	}
	return v, nil
}

// QueryTime parses an optional RFC 3339 query parameter, returning the zero time when absent.
func QueryTime(r *http.Request, name string) (time.Time, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, ErrInvalidParam.With(name, raw)
	}
	return t, nil
}

// Page reads limit and offset query parameters. Bad values fall back to defaults.
func Page(r *http.Request) (int, int) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
	return shared.PageBounds(limit, offset)
}

// RequireActor returns the acting identity or ErrUnauthenticated.
func RequireActor(r *http.Request) (shared.Actor, error) {
	actor, ok := shared.ActorFromContext(r.Context())
	if !ok {
		return shared.Actor{}, shared.ErrUnauthenticated
	}
	return actor, nil
}

// ListResponse is the envelope of paged listings.
type ListResponse[T any] struct {
	Items  []T `json:"items"`
	Total  int `json:"total"`
	Limit  int `json:"limit"`
	Offset int `json:"offset"`
}
