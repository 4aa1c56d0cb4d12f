package shared

import "fmt"

var (
	// Configuration errors
	ErrInvalidConfig      = fmt.Errorf("invalid configuration")
	ErrMissingCredentials = fmt.Errorf("missing credentials")

	// Authentication errors
	ErrAuthFailed       = fmt.Errorf("authentication failed")
	ErrNotAuthenticated = fmt.Errorf("not authenticated")
	ErrRefreshFailed    = fmt.Errorf("token refresh failed")
	ErrNoGrant          = fmt.Errorf("no stored grant for silent login")
	ErrTimeout          = fmt.Errorf("operation timed out")
	ErrSessionEnded     = fmt.Errorf("session ended while request was in flight")

	// API and service errors
	ErrAPIRequest         = fmt.Errorf("API request failed")
	ErrServiceUnavailable = fmt.Errorf("service unavailable")
	ErrUnauthorized       = fmt.Errorf("session expired or missing token, please sign in again")
	ErrInsufficientScope  = fmt.Errorf("missing Google Books permission, log out and sign in again to grant access")
	ErrAPINotEnabled      = fmt.Errorf("Google Books API not enabled for your project, enable it in Google Cloud Console")
	ErrNotFound           = fmt.Errorf("resource not found")
	ErrMutationInFlight   = fmt.Errorf("a change for this volume and shelf is already in progress")

	// Storage errors
	ErrStorage = fmt.Errorf("storage operation failed")

	// Input validation errors
	ErrInvalidInput    = fmt.Errorf("invalid input")
	ErrMissingArgument = fmt.Errorf("missing required argument")
	ErrInvalidArgument = fmt.Errorf("invalid argument")
	ErrInvalidFlag     = fmt.Errorf("invalid flag value")
)
