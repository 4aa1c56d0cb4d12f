package tasks

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/desertthunder/shelfx/internal/formatter"
	"github.com/desertthunder/shelfx/internal/models"
	"github.com/desertthunder/shelfx/internal/shared"
)

// Export formats accepted by [BulkExportOpts].
const (
	FormatJSON     = "json"
	FormatCSV      = "csv"
	FormatMarkdown = "markdown"
	FormatText     = "txt"
)

// Formats lists the accepted export formats.
var Formats = []string{FormatJSON, FormatCSV, FormatMarkdown, FormatText}

// BulkExportOpts contains configuration for bulk shelf exports.
type BulkExportOpts struct {
	Format     string  // Export format: json, csv, markdown, txt
	OutputDir  string  // Base output directory (default: shelfx_export_{epoch})
	NumWorkers int     // Concurrent workers (default: 5, max 10)
	RateLimit  float64 // Shelf reads per second (default: 5)
	NoCovers   bool    // Skip downloading a cover for Markdown exports
}

// BulkExportResult summarizes a bulk export.
type BulkExportResult struct {
	RunID             string
	TotalShelves      int
	SuccessfulExports int
	FailedExports     int
	Volumes           int
	Results           []formatter.ExportEntry // In the order the shelves were requested
	OutputDirectory   string
	ManifestPath      string
}

// Summary converts the result for [formatter.WriteBulkExportManifest].
func (r *BulkExportResult) Summary() formatter.BulkExportSummary {
	return formatter.BulkExportSummary{
		RunID:             r.RunID,
		TotalShelves:      r.TotalShelves,
		SuccessfulExports: r.SuccessfulExports,
		FailedExports:     r.FailedExports,
		Entries:           r.Results,
		OutputDirectory:   r.OutputDirectory,
	}
}

// ShelfExportJob is a shelf whose contents have been read and await writing.
type ShelfExportJob struct {
	Export *models.ShelfExport
}

// BulkExport exports shelves concurrently with rate limiting and progress tracking.
//
// A single producer reads shelves at opts.RateLimit and hands them to a pool of
// workers that write the files. Failures are recorded per shelf; the export
// only fails outright when the output directory or manifest cannot be written.
func (e *LibraryEngine) BulkExport(
	ctx context.Context,
	prog chan<- ProgressUpdate,
	ids []models.ShelfID,
	opts BulkExportOpts,
) (*BulkExportResult, error) {
	if e.shelves == nil {
		return nil, fmt.Errorf("%w: shelf reader not initialized", shared.ErrServiceUnavailable)
	}
	if len(ids) == 0 {
		ids = models.MainShelves
	}
	if opts.Format == "" {
		opts.Format = FormatJSON
	}
	if !slices.Contains(Formats, opts.Format) {
		return nil, fmt.Errorf("%w: unknown format %q", shared.ErrInvalidInput, opts.Format)
	}
	if opts.OutputDir == "" {
		opts.OutputDir = fmt.Sprintf("shelfx_export_%d", time.Now().Unix())
	}
	if opts.NumWorkers <= 0 {
		opts.NumWorkers = 5
	}
	if opts.NumWorkers > 10 {
		opts.NumWorkers = 10
	}
	if opts.RateLimit <= 0 {
		opts.RateLimit = 5.0
	}

	if err := os.MkdirAll(opts.OutputDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	result := &BulkExportResult{
		RunID:           shared.GenerateID(),
		TotalShelves:    len(ids),
		OutputDirectory: opts.OutputDir,
		Results:         make([]formatter.ExportEntry, 0, len(ids)),
	}

	e.sendProgress(prog, fetchShelvesUpdate(0, len(ids)))
	known := e.titles(ctx)

	limiter := rate.NewLimiter(rate.Limit(opts.RateLimit), 1)
	jobs := make(chan ShelfExportJob, len(ids))
	results := make(chan formatter.ExportEntry, len(ids))

	var wg sync.WaitGroup
	for range opts.NumWorkers {
		wg.Add(1)
		go e.exportWorker(ctx, &wg, jobs, results, opts)
	}

	go func() {
		defer close(jobs)
		for i, id := range ids {
			if err := limiter.Wait(ctx); err != nil {
				return
			}

			shelf := shelfOrDefault(known, id)
			e.sendProgress(prog, fetchVolumesUpdate(i+1, len(ids), shelf.Title))

			vols, err := e.shelves.ShelfVolumes(ctx, id)
			if err != nil {
				results <- formatter.ExportEntry{
					ShelfID:    id,
					ShelfTitle: shelf.Title,
					Error:      fmt.Errorf("failed to read shelf: %w", err),
				}
				continue
			}

			shelf.VolumeCount = len(vols)
			jobs <- ShelfExportJob{Export: &models.ShelfExport{Shelf: shelf, Volumes: vols, ExportedAt: time.Now().UTC()}}
		}
	}()

	go func() {
		wg.Wait()
		close(results)
	}()

	completed := 0
	for res := range results {
		completed++
		result.Results = append(result.Results, res)

		if res.Success {
			result.SuccessfulExports++
			result.Volumes += res.Volumes
			e.sendProgress(prog, exportCompletedUpdate(completed, len(ids), res.ShelfTitle, res.Volumes, len(res.Files)))
		} else {
			result.FailedExports++
			e.sendProgress(prog, exportFailedUpdate(completed, len(ids), res.ShelfTitle, res.Error))
		}
	}

	slices.SortStableFunc(result.Results, func(a, b formatter.ExportEntry) int {
		return slices.Index(ids, a.ShelfID) - slices.Index(ids, b.ShelfID)
	})

	if err := ctx.Err(); err != nil {
		return result, fmt.Errorf("export cancelled: %w", err)
	}

	manifestPath := filepath.Join(opts.OutputDir, "export_manifest.json")
	if err := formatter.WriteBulkExportManifest(result.Summary(), opts.Format, manifestPath); err != nil {
		return result, fmt.Errorf("export completed but failed to write manifest: %w", err)
	}
	result.ManifestPath = manifestPath

	if e.history != nil {
		e.sendProgress(prog, recordExportUpdate(result.RunID))
		rec := &models.ExportRecord{
			ID:        result.RunID,
			OutputDir: opts.OutputDir,
			Format:    opts.Format,
			Shelves:   result.SuccessfulExports,
			Volumes:   result.Volumes,
			Failed:    result.FailedExports,
		}
		if err := e.history.Create(rec); err != nil {
			return result, fmt.Errorf("export completed but failed to record history: %w", err)
		}
	}
	return result, nil
}

// exportWorker is a worker goroutine that writes shelves from the jobs channel.
func (e *LibraryEngine) exportWorker(
	ctx context.Context,
	wg *sync.WaitGroup,
	jobs <-chan ShelfExportJob,
	results chan<- formatter.ExportEntry,
	opts BulkExportOpts,
) {
	defer wg.Done()

	for job := range jobs {
		if ctx.Err() != nil {
			results <- formatter.ExportEntry{
				ShelfID:    job.Export.Shelf.ID,
				ShelfTitle: job.Export.Shelf.Title,
				Error:      ctx.Err(),
			}
			continue
		}
		results <- e.exportSingleShelf(ctx, job, opts)
	}
}

// exportSingleShelf writes one shelf in the requested format.
func (e *LibraryEngine) exportSingleShelf(ctx context.Context, j ShelfExportJob, opts BulkExportOpts) formatter.ExportEntry {
	export := j.Export
	result := formatter.ExportEntry{
		ShelfID:    export.Shelf.ID,
		ShelfTitle: export.Shelf.Title,
		Volumes:    len(export.Volumes),
		Files:      []string{},
	}
	base := filepath.Join(opts.OutputDir, formatter.BaseName(export.Shelf))

	switch opts.Format {
	case FormatCSV:
		csvRes, err := formatter.WriteCSVExport(export, base)
		if err != nil {
			result.Error = fmt.Errorf("CSV export failed: %w", err)
			return result
		}
		result.Files = []string{csvRes.VolumesFile, csvRes.MetadataFile}

	case FormatMarkdown:
		var cover string
		if !opts.NoCovers {
			for _, v := range export.Volumes {
				if cover = v.Cover(); cover != "" {
					break
				}
			}
		}

		mdRes, err := formatter.WriteMarkdownExport(ctx, export, base, cover)
		if err != nil {
			result.Error = fmt.Errorf("markdown export failed: %w", err)
			return result
		}
		result.Files = mdRes.Files

	case FormatText:
		path, err := formatter.WriteTextExport(export, base+"_volumes.txt")
		if err != nil {
			result.Error = fmt.Errorf("text export failed: %w", err)
			return result
		}
		result.Files = []string{path}

	default:
		path, err := formatter.WriteJSONExport(export, base+".json")
		if err != nil {
			result.Error = fmt.Errorf("JSON export failed: %w", err)
			return result
		}
		result.Files = []string{path}
	}

	result.Success = true
	return result
}
