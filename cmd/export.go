package main

import (
	"context"
	"fmt"
	"sync"

	"github.com/desertthunder/shelfx/internal/models"
	"github.com/desertthunder/shelfx/internal/shared"
	"github.com/desertthunder/shelfx/internal/tasks"
	"github.com/urfave/cli/v3"
)

// Export writes the user's shelves to files, or dumps them as JSON with --dump.
func (r *Runner) Export(ctx context.Context, cmd *cli.Command) error {
	var ids []models.ShelfID
	for _, s := range cmd.StringSlice("shelf") {
		id, err := parseShelf(s)
		if err != nil {
			return err
		}
		ids = append(ids, id)
	}
	if err := r.requireSession(ctx); err != nil {
		return err
	}

	progress := make(chan tasks.ProgressUpdate, 32)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for u := range progress {
			r.logger.Info(u.Message, "phase", u.Phase, "step", u.Step, "total", u.Total)
		}
	}()
	finish := func() {
		close(progress)
		wg.Wait()
	}

	if cmd.Bool("dump") {
		dump, err := r.engine.Dump(ctx, progress)
		finish()
		if err != nil {
			return fmt.Errorf("dump failed: %w", err)
		}
		return r.writeJSON(dump, true)
	}

	result, err := r.engine.BulkExport(ctx, progress, ids, tasks.BulkExportOpts{
		Format:     cmd.String("format"),
		OutputDir:  cmd.String("output"),
		NumWorkers: cmd.Int("workers"),
		RateLimit:  cmd.Float("rate"),
		NoCovers:   cmd.Bool("no-covers"),
	})
	finish()
	if result != nil {
		r.writeExportResult(result)
	}
	if err != nil {
		return fmt.Errorf("export failed: %w", err)
	}
	if result.SuccessfulExports == 0 {
		return fmt.Errorf("%w: no shelf could be exported", shared.ErrAPIRequest)
	}
	return nil
}

// ExportHistory lists previous exports, newest first.
func (r *Runner) ExportHistory(ctx context.Context, cmd *cli.Command) error {
	if r.history == nil {
		return fmt.Errorf("%w: export history requires the database", shared.ErrServiceUnavailable)
	}

	records, err := r.history.List(cmd.Int("limit"))
	if err != nil {
		return fmt.Errorf("failed to list exports: %w", err)
	}

	if cmd.Bool("json") {
		return r.writeJSON(records, cmd.Bool("pretty"))
	}
	if len(records) == 0 {
		return r.writePlain("No exports yet\n")
	}

	r.writePlainHeader("Exports")
	for _, rec := range records {
		r.writePlain("%s  %-8s %d shelves, %d volumes, %d failed  %s\n",
			rec.CreatedAt.Local().Format("2006-01-02 15:04"), rec.Format, rec.Shelves, rec.Volumes, rec.Failed, rec.OutputDir)
	}
	return nil
}

func (r *Runner) writeExportResult(result *tasks.BulkExportResult) {
	r.writePlainHeader("Export Summary")
	r.writePlain("Shelves: %d exported, %d failed\n", result.SuccessfulExports, result.FailedExports)
	r.writePlain("Volumes: %d\n", result.Volumes)
	r.writePlain("Output:  %s\n", result.OutputDirectory)
	if result.ManifestPath != "" {
		r.writePlain("Manifest: %s\n", result.ManifestPath)
	}
	for _, e := range result.Results {
		if e.Error != nil {
			r.writePlain("✗ %s: %v\n", e.ShelfTitle, e.Error)
		}
	}
}
