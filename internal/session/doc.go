// Package session manages the signed-in user's OAuth session.
//
// A [Controller] owns the session state machine:
//
//	Unauthenticated --Login--> Authenticated
//	* --Restore--> Restoring --> Authenticated | Unauthenticated
//	Authenticated --timer or 401--> RefreshingSilently --> Authenticated | Unauthenticated
//	* --Logout--> LoggingOut --> Unauthenticated
//
// The token is refreshed silently one minute before it expires ([Scheduler]),
// and again whenever the API answers 401. Concurrent refreshes are coalesced and
// a failed refresh always ends the session with storage cleared. Work that
// completes after the session it started in has ended is discarded.
package session
