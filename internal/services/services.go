// package services implements HTTP clients for the Google Books and OAuth2 APIs
package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"strings"

	"github.com/desertthunder/shelfx/internal/shared"
)

const (
	googleAPIBaseURL = "https://www.googleapis.com"
	googleAuthURL    = "https://accounts.google.com/o/oauth2/v2/auth"
	googleTokenURL   = "https://oauth2.googleapis.com/token"

	userinfoPath  = "/oauth2/v2/userinfo"
	tokeninfoPath = "/oauth2/v1/tokeninfo"
	shelvesPath   = "/books/v1/mylibrary/bookshelves"
	volumesPath   = "/books/v1/volumes"
	publicUsers   = "/books/v1/users"
)

// Scopes requested on interactive login.
var Scopes = []string{"openid", "email", "profile", "https://www.googleapis.com/auth/books"}

var (
	insufficientScopeRe = regexp.MustCompile(`(?i)insufficient.*scope`)
	apiNotEnabledRe     = regexp.MustCompile(`(?i)Access Not Configured|API has not been used|not enabled`)
)

// APIError is a non-2xx response from a Google API.
//
// It unwraps to one of [shared.ErrUnauthorized], [shared.ErrInsufficientScope],
// [shared.ErrAPINotEnabled], [shared.ErrNotFound] or [shared.ErrAPIRequest].
type APIError struct {
	Status  int
	Reason  string
	Message string
	kind    error
}

func (e *APIError) Error() string {
	switch e.kind {
	case shared.ErrUnauthorized, shared.ErrInsufficientScope, shared.ErrAPINotEnabled:
		return e.kind.Error()
	}
	if e.Message == "" {
		return fmt.Sprintf("%v: status %d", e.kind, e.Status)
	}
	return fmt.Sprintf("%v: status %d: %s", e.kind, e.Status, e.Message)
}

func (e *APIError) Unwrap() error { return e.kind }

// newAPIError classifies a failed response.
func newAPIError(status int, reason, message string) *APIError {
	e := &APIError{Status: status, Reason: reason, Message: message}
	text := reason + " " + message

	switch {
	case status == http.StatusUnauthorized:
		e.kind = shared.ErrUnauthorized
	case status == http.StatusForbidden && (insufficientScopeRe.MatchString(text) ||
		strings.EqualFold(reason, "insufficientPermissions") ||
		strings.EqualFold(reason, "ACCESS_TOKEN_SCOPE_INSUFFICIENT")):
		e.kind = shared.ErrInsufficientScope
	case status == http.StatusForbidden && (apiNotEnabledRe.MatchString(text) ||
		strings.EqualFold(reason, "accessNotConfigured") ||
		strings.EqualFold(reason, "SERVICE_DISABLED")):
		e.kind = shared.ErrAPINotEnabled
	case status == http.StatusNotFound:
		e.kind = shared.ErrNotFound
	default:
		e.kind = shared.ErrAPIRequest
	}
	return e
}

// IsUnauthorized reports whether err is an HTTP 401 from the API.
func IsUnauthorized(err error) bool {
	return errors.Is(err, shared.ErrUnauthorized)
}

type hookKey struct{}

// WithoutUnauthorizedHook marks ctx so a 401 on requests made with it does not
// invoke the transport's unauthorized callback.
func WithoutUnauthorizedHook(ctx context.Context) context.Context {
	return context.WithValue(ctx, hookKey{}, true)
}

func hookSuppressed(ctx context.Context) bool {
	v, _ := ctx.Value(hookKey{}).(bool)
	return v
}
