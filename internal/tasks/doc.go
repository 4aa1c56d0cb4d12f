// Package tasks runs long library operations with progress reporting.
//
// # Core Operations
//
// The [Engine] interface defines two operations:
//
//  1. [Engine.BulkExport] : Export shelves to files
//     - Reads shelf titles once, then each shelf's full contents
//     - Writes JSON, CSV, Markdown or text per shelf on a worker pool
//     - Writes export_manifest.json and records the run in export history
//
//  2. [Engine.Dump] : Snapshot the whole library
//     - Reads every main shelf and its contents
//     - Includes local records kept while the API was unreachable
//
// # Progress Reporting
//
// Both operations send [ProgressUpdate] values on an optional channel. Sends
// never block: when the channel is full the update is dropped.
//
// # Implementation
//
// [LibraryEngine] implements [Engine] with dependencies on:
//   - [ShelfReader] : the Books API client (services.GoogleService)
//   - [LocalReader] : optional fallback records (library.Service)
//   - [ExportRecorder] : optional export history (repositories.ExportRepository)
package tasks
