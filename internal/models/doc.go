// Package models defines the domain entities shared by shelfx packages.
//
// The package contains two categories of types:
//
// 1. Remote resources decoded from the Google Books and OAuth2 APIs
//   - [UserProfile] : identity of the signed-in user
//   - [Shelf] : one of the user's bookshelves with its volume count
//   - [Volume] : catalog entry with [VolumeInfo], sale and access details
//
// 2. Local state owned by the client
//   - [Session] : bearer token, expiry and cached profile
//   - [LocalRecord] : favorites and currently-reading entries kept when the API is unavailable
//   - [ExportRecord] : history of library exports
//
// Shelf ids 0, 2, 3 and 4 are fixed by the provider and exposed as [ShelfID] constants.
package models
