// Package library mutates and reads the signed-in user's bookshelves.
//
// [Service] wraps the shelf endpoints with the behavior the CLI and the shelf
// picker rely on: idempotent add and remove, remove-then-add moves, a
// per-(volume, shelf) in-flight guard, favorite and reading tracking that
// falls back to local records when the API cannot be reached, and a diff based
// reconcile for the save dialog. Every operation returns a [Result] value
// instead of an error so callers can render partial and fallback outcomes.
//
// [View] is an optimistic copy of the shelves the caller has loaded. Mutations
// are applied to it before the request is sent, reverted if the request fails
// and replaced by a fresh read once it succeeds.
package library
