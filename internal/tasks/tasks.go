package tasks

import (
	"context"
	"fmt"

	"github.com/desertthunder/shelfx/internal/models"
	"github.com/desertthunder/shelfx/internal/shared"
)

// ShelfReader reads shelves and their contents.
type ShelfReader interface {
	Shelves(ctx context.Context) ([]models.Shelf, error)
	ShelfVolumes(ctx context.Context, id models.ShelfID) ([]models.Volume, error)
}

// LocalReader lists records kept locally for a shelf.
type LocalReader interface {
	LocalRecords(shelf models.ShelfID) ([]models.LocalRecord, error)
}

// ExportRecorder stores the history of completed exports.
type ExportRecorder interface {
	Create(rec *models.ExportRecord) error
}

// ShelfError is a shelf that could not be read.
type ShelfError struct {
	Shelf models.ShelfID `json:"shelf"`
	Error string         `json:"error"`
}

// DumpResult is a snapshot of the user's library.
type DumpResult struct {
	Shelves []models.ShelfExport                     `json:"shelves"`
	Local   map[models.ShelfKey][]models.LocalRecord `json:"local,omitempty"`
	Errors  []ShelfError                             `json:"errors,omitempty"`
}

// Engine defines long-running library operations.
type Engine interface {
	// BulkExport writes each shelf in ids to opts.OutputDir in opts.Format.
	BulkExport(ctx context.Context, progress chan<- ProgressUpdate, ids []models.ShelfID, opts BulkExportOpts) (*BulkExportResult, error)

	// Dump reads every main shelf and the local fallback records.
	Dump(ctx context.Context, progress chan<- ProgressUpdate) (*DumpResult, error)
}

// LibraryEngine implements Engine against the Books API.
type LibraryEngine struct {
	shelves ShelfReader
	local   LocalReader
	history ExportRecorder
}

// NewLibraryEngine creates an engine. local and history may be nil.
func NewLibraryEngine(shelves ShelfReader, local LocalReader, history ExportRecorder) *LibraryEngine {
	return &LibraryEngine{shelves: shelves, local: local, history: history}
}

// sendProgress sends a progress update through the channel without blocking.
func (e *LibraryEngine) sendProgress(progress chan<- ProgressUpdate, update ProgressUpdate) {
	if progress == nil {
		return
	}
	select {
	case progress <- update:
	default:
	}
}

// titles maps shelf ids to titles, falling back to the built-in names when the
// shelf list cannot be read.
func (e *LibraryEngine) titles(ctx context.Context) map[models.ShelfID]models.Shelf {
	byID := make(map[models.ShelfID]models.Shelf)
	shelves, err := e.shelves.Shelves(ctx)
	if err != nil {
		return byID
	}
	for _, s := range shelves {
		byID[s.ID] = s
	}
	return byID
}

func shelfOrDefault(known map[models.ShelfID]models.Shelf, id models.ShelfID) models.Shelf {
	if s, ok := known[id]; ok {
		return s
	}
	return models.Shelf{ID: id, Title: id.String()}
}

// Dump reads the main shelves one at a time. Unreadable shelves are listed in
// Errors; Dump only fails when every shelf does.
func (e *LibraryEngine) Dump(ctx context.Context, progress chan<- ProgressUpdate) (*DumpResult, error) {
	if e.shelves == nil {
		return nil, fmt.Errorf("%w: shelf reader not initialized", shared.ErrServiceUnavailable)
	}

	total := len(models.MainShelves)
	e.sendProgress(progress, fetchShelvesUpdate(0, total))
	known := e.titles(ctx)

	result := &DumpResult{Local: make(map[models.ShelfKey][]models.LocalRecord)}
	for i, id := range models.MainShelves {
		shelf := shelfOrDefault(known, id)
		e.sendProgress(progress, fetchVolumesUpdate(i+1, total, shelf.Title))

		vols, err := e.shelves.ShelfVolumes(ctx, id)
		if err != nil {
			result.Errors = append(result.Errors, ShelfError{Shelf: id, Error: err.Error()})
		} else {
			shelf.VolumeCount = len(vols)
			result.Shelves = append(result.Shelves, models.ShelfExport{Shelf: shelf, Volumes: vols})
		}

		if e.local != nil {
			if records, err := e.local.LocalRecords(id); err == nil && len(records) > 0 {
				result.Local[id.Key()] = records
			}
		}
	}

	if len(result.Shelves) == 0 && len(result.Errors) > 0 {
		return result, fmt.Errorf("%w: no shelf could be read: %s", shared.ErrAPIRequest, result.Errors[0].Error)
	}
	return result, nil
}
