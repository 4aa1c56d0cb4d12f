// Package server provides the loopback HTTP server that receives the OAuth redirect during interactive login.
//
// # Router Infrastructure
//
// The [Router] interface defines HTTP routing with middleware support.
// [Middleware] wraps handlers in reverse order (last added executes first).
// The [BasicRouter] implementation uses [http.ServeMux] internally with method filtering.
//
// # OAuth Callback Handler
//
// [OAuthHandler] validates the state parameter, exchanges the authorization code for tokens,
// and sends the result through a channel. It only processes one callback.
//
// [Listen] binds the callback address before serving and [Loopback.Shutdown] stops it once
// the result has been received.
package server
