package formatter

import (
	"fmt"
	"os"
	"time"

	"github.com/desertthunder/shelfx/internal/models"
	"github.com/desertthunder/shelfx/internal/shared"
)

// ExportEntry is the outcome of exporting one shelf.
type ExportEntry struct {
	ShelfID    models.ShelfID
	ShelfTitle string
	Volumes    int
	Success    bool
	Files      []string
	Error      error
}

// BulkExportSummary is what a bulk export reports to its manifest.
type BulkExportSummary struct {
	RunID             string
	TotalShelves      int
	SuccessfulExports int
	FailedExports     int
	Entries           []ExportEntry
	OutputDirectory   string
}

type manifest struct {
	RunID             string          `json:"run_id,omitempty"`
	Format            string          `json:"format"`
	ExportedAt        time.Time       `json:"exported_at"`
	OutputDirectory   string          `json:"output_directory,omitempty"`
	TotalShelves      int             `json:"total_shelves"`
	SuccessfulExports int             `json:"successful_exports"`
	FailedExports     int             `json:"failed_exports"`
	Shelves           []manifestEntry `json:"shelves"`
}

type manifestEntry struct {
	ID      models.ShelfID `json:"id"`
	Title   string         `json:"title"`
	Volumes int            `json:"volumes"`
	Status  string         `json:"status"`
	Files   []string       `json:"files,omitempty"`
	Error   string         `json:"error,omitempty"`
}

// WriteBulkExportManifest writes export_manifest.json describing every shelf in the run.
func WriteBulkExportManifest(summary BulkExportSummary, format, path string) error {
	m := manifest{
		RunID:             summary.RunID,
		Format:            format,
		ExportedAt:        time.Now().UTC(),
		OutputDirectory:   summary.OutputDirectory,
		TotalShelves:      summary.TotalShelves,
		SuccessfulExports: summary.SuccessfulExports,
		FailedExports:     summary.FailedExports,
		Shelves:           make([]manifestEntry, 0, len(summary.Entries)),
	}

	for _, e := range summary.Entries {
		entry := manifestEntry{ID: e.ShelfID, Title: e.ShelfTitle, Volumes: e.Volumes, Status: "success", Files: e.Files}
		if !e.Success {
			entry.Status = "failed"
		}
		if e.Error != nil {
			entry.Error = e.Error.Error()
		}
		m.Shelves = append(m.Shelves, entry)
	}

	data, err := shared.MarshalJSON(m, true)
	if err != nil {
		return fmt.Errorf("failed to marshal manifest: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write manifest: %w", err)
	}
	return nil
}
