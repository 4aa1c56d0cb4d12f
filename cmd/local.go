package main

import (
	"context"
	"fmt"

	"github.com/desertthunder/shelfx/internal/library"
	"github.com/desertthunder/shelfx/internal/models"
	"github.com/desertthunder/shelfx/internal/shared"
	"github.com/urfave/cli/v3"
)

// localShelves are the shelves that keep records when Google cannot be updated.
var localShelves = []models.ShelfID{models.Favorites, models.CurrentlyReading}

// LocalList prints the signed-in user's local records.
func (r *Runner) LocalList(ctx context.Context, cmd *cli.Command) error {
	if err := r.requireSession(ctx); err != nil {
		return err
	}

	all := make(map[models.ShelfKey][]models.LocalRecord)
	for _, shelf := range localShelves {
		records, err := r.library.LocalRecords(shelf)
		if err != nil {
			return fmt.Errorf("failed to read local records: %w", err)
		}
		all[shelf.Key()] = records
	}

	if cmd.Bool("json") {
		return r.writeJSON(all, cmd.Bool("pretty"))
	}

	for _, shelf := range localShelves {
		records := all[shelf.Key()]
		r.writePlainHeader(fmt.Sprintf("%s (%d local)", shelf, len(records)))
		for _, rec := range records {
			r.writePlain("  %s [%s]\n", rec.Title, rec.ID)
		}
	}
	return nil
}

// LocalSync retries each local record against Google. Records that reach the
// server are dropped from local storage.
func (r *Runner) LocalSync(ctx context.Context, cmd *cli.Command) error {
	if err := r.requireSession(ctx); err != nil {
		return err
	}

	synced, pending := 0, 0
	for _, shelf := range localShelves {
		records, err := r.library.LocalRecords(shelf)
		if err != nil {
			return fmt.Errorf("failed to read local records: %w", err)
		}

		for _, rec := range records {
			var res library.Result
			if shelf == models.Favorites {
				res = r.library.ToggleFavorite(ctx, rec.ID, rec.Title, rec.Authors, true)
			} else {
				res = r.library.TrackView(ctx, rec.ID, rec.Title, rec.Authors)
			}

			if res.Success && !res.Fallback {
				synced++
				r.writePlain("✓ %s → %s\n", rec.Title, shelf)
				continue
			}
			pending++
			r.logger.Warn("still unsynced", "volume", rec.ID, "shelf", shelf, "error", res.Err)
		}
	}

	r.writePlain("%d synced, %d still local\n", synced, pending)
	if pending > 0 && synced == 0 {
		return fmt.Errorf("%w: no local record could be synced", shared.ErrAPIRequest)
	}
	return nil
}
