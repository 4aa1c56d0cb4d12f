// Package repositories implements local persistence for shelfx.
//
// All session and fallback state lives in a single key-value table so it can be
// swapped for an in-memory store in tests.
//
// Key Implementations:
//   - [KVRepository] : SQLite-backed [Storage]
//   - [MemoryStorage] : map-backed [Storage]
//   - [TokenStore] : bearer token, expiry, cached profile and refresh grant
//   - [FallbackStore] : per-user favorites and currently-reading records kept when the API fails
//   - [ExportRepository] : history of library exports
package repositories
