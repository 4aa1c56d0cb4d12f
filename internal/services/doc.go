// Package services implements the HTTP clients shelfx uses to talk to Google.
//
// # Transport
//
// [Transport] sends JSON requests to a googleapis.com base URL with the current
// bearer token, an outbound rate limit and, for idempotent GETs, retries through
// go-httpretry. Non-2xx responses become [*APIError], which unwraps to a
// sentinel from the shared package:
//   - [shared.ErrUnauthorized] : 401, the session needs a silent refresh
//   - [shared.ErrInsufficientScope] : 403 without the Books scope, re-login required
//   - [shared.ErrAPINotEnabled] : 403 because the Books API is disabled for the project
//   - [shared.ErrNotFound] : 404
//   - [shared.ErrAPIRequest] : anything else
//
// A 401 also invokes the callback registered with [Transport.OnUnauthorized],
// which is how the session controller learns a token went stale.
//
// # Clients
//
// [GoogleService] covers the signed-in user's library (mylibrary/bookshelves) and
// the OAuth2 userinfo and tokeninfo endpoints. [CatalogService] covers public
// volume search and details. [AuthClient] obtains tokens through the browser or
// from a stored refresh grant.
package services
