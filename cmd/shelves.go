package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/desertthunder/shelfx/internal/library"
	"github.com/desertthunder/shelfx/internal/models"
	"github.com/desertthunder/shelfx/internal/shared"
	"github.com/urfave/cli/v3"
)

// membershipStatus is the JSON form of `shelves status`.
type membershipStatus struct {
	Volume   string           `json:"volume"`
	Shelf    *models.Shelf    `json:"shelf,omitempty"`
	Shelves  []models.ShelfID `json:"shelves"`
	Favorite bool             `json:"favorite"`
	Local    bool             `json:"favorite_local"`
}

func volumeArg(cmd *cli.Command) (string, error) {
	id := strings.TrimSpace(cmd.StringArg("volume"))
	if id == "" {
		return "", fmt.Errorf("%w: volume id", shared.ErrMissingArgument)
	}
	return id, nil
}

func parseShelf(s string) (models.ShelfID, error) {
	id, err := models.ParseShelf(s)
	if err != nil {
		return models.NoShelf, fmt.Errorf("%w: %v", shared.ErrInvalidArgument, err)
	}
	return id, nil
}

// ShelvesList prints the main shelves and their volume counts.
func (r *Runner) ShelvesList(ctx context.Context, cmd *cli.Command) error {
	if err := r.requireSession(ctx); err != nil {
		return err
	}

	shelves, err := r.library.Shelves(ctx)
	if err != nil {
		return fmt.Errorf("failed to list shelves: %w", err)
	}

	if cmd.Bool("json") {
		return r.writeJSON(shelves, cmd.Bool("pretty"))
	}

	r.writePlainHeader("Bookshelves")
	for _, s := range shelves {
		r.writePlain("%-3d %-20s %d volumes\n", int(s.ID), s.Title, s.VolumeCount)
	}
	return nil
}

// ShelvesVolumes prints the volumes on a shelf.
func (r *Runner) ShelvesVolumes(ctx context.Context, cmd *cli.Command) error {
	shelf, err := parseShelf(cmd.StringArg("shelf"))
	if err != nil {
		return err
	}
	if err := r.requireSession(ctx); err != nil {
		return err
	}

	var vols []models.Volume
	if cmd.Bool("refresh") {
		vols, err = r.library.Refresh(ctx, shelf)
	} else {
		vols, err = r.library.Volumes(ctx, shelf)
	}
	if err != nil {
		return fmt.Errorf("failed to read shelf %s: %w", shelf, err)
	}

	if cmd.Bool("json") {
		return r.writeJSON(vols, cmd.Bool("pretty"))
	}

	r.writePlainHeader(fmt.Sprintf("%s (%d)", shelf, len(vols)))
	r.writeVolumes(vols)
	return nil
}

// ShelvesAdd adds a volume to a shelf.
func (r *Runner) ShelvesAdd(ctx context.Context, cmd *cli.Command) error {
	volumeID, shelf, err := r.shelfOperands(cmd)
	if err != nil {
		return err
	}
	if err := r.requireSession(ctx); err != nil {
		return err
	}

	if res := r.library.AddToShelf(ctx, volumeID, shelf); !res.Success {
		return fmt.Errorf("failed to add %s to %s: %w", volumeID, shelf, res.Err)
	}
	return r.writePlain("✓ Added %s to %s\n", volumeID, shelf)
}

// ShelvesRemove removes a volume from a shelf.
func (r *Runner) ShelvesRemove(ctx context.Context, cmd *cli.Command) error {
	volumeID, shelf, err := r.shelfOperands(cmd)
	if err != nil {
		return err
	}
	if err := r.requireSession(ctx); err != nil {
		return err
	}

	if res := r.library.RemoveFromShelf(ctx, volumeID, shelf); !res.Success {
		return fmt.Errorf("failed to remove %s from %s: %w", volumeID, shelf, res.Err)
	}
	return r.writePlain("✓ Removed %s from %s\n", volumeID, shelf)
}

// ShelvesMove moves a volume between shelves.
func (r *Runner) ShelvesMove(ctx context.Context, cmd *cli.Command) error {
	volumeID, err := volumeArg(cmd)
	if err != nil {
		return err
	}
	from, err := parseShelf(cmd.String("from"))
	if err != nil {
		return err
	}
	to, err := parseShelf(cmd.String("to"))
	if err != nil {
		return err
	}
	if err := r.requireSession(ctx); err != nil {
		return err
	}

	res := r.library.MoveBetweenShelves(ctx, volumeID, from, to)
	switch {
	case res.Success:
		return r.writePlain("✓ Moved %s from %s to %s\n", volumeID, from, to)
	case res.Orphaned:
		r.writePlain("! %s was removed from %s but could not be added to %s\n", volumeID, from, to)
		return fmt.Errorf("move incomplete: %w", res.Err)
	default:
		return fmt.Errorf("failed to move %s: %w", volumeID, res.Err)
	}
}

// ShelvesReorder moves a volume within a shelf.
func (r *Runner) ShelvesReorder(ctx context.Context, cmd *cli.Command) error {
	volumeID, shelf, err := r.shelfOperands(cmd)
	if err != nil {
		return err
	}
	if err := r.requireSession(ctx); err != nil {
		return err
	}

	position := cmd.Int("position")
	if res := r.library.Reposition(ctx, volumeID, shelf, position); !res.Success {
		return fmt.Errorf("failed to reorder %s on %s: %w", volumeID, shelf, res.Err)
	}
	return r.writePlain("✓ Moved %s to position %d on %s\n", volumeID, position, shelf)
}

// ShelvesClear empties a shelf after confirmation.
func (r *Runner) ShelvesClear(ctx context.Context, cmd *cli.Command) error {
	shelf, err := parseShelf(cmd.StringArg("shelf"))
	if err != nil {
		return err
	}
	if shelf == models.NoShelf {
		return fmt.Errorf("%w: shelf", shared.ErrMissingArgument)
	}
	if !cmd.Bool("yes") {
		return fmt.Errorf("%w: clearing %s removes every volume; pass --yes to confirm", shared.ErrInvalidFlag, shelf)
	}
	if err := r.requireSession(ctx); err != nil {
		return err
	}

	if res := r.library.ClearShelf(ctx, shelf); !res.Success {
		return fmt.Errorf("failed to clear %s: %w", shelf, res.Err)
	}
	return r.writePlain("✓ Cleared %s\n", shelf)
}

// ShelvesSave puts a volume on exactly the requested main shelves.
func (r *Runner) ShelvesSave(ctx context.Context, cmd *cli.Command) error {
	volumeID, err := volumeArg(cmd)
	if err != nil {
		return err
	}

	var desired []models.ShelfID
	for _, s := range cmd.StringSlice("shelf") {
		id, err := parseShelf(s)
		if err != nil {
			return err
		}
		desired = append(desired, id)
	}
	if err := r.requireSession(ctx); err != nil {
		return err
	}

	res := r.library.Reconcile(ctx, volumeID, desired)
	r.writeReconcile(res)
	if res.Outcome == library.Failed || res.Outcome == library.Partial {
		return fmt.Errorf("%w: %d of %d shelf changes failed", shared.ErrAPIRequest, res.Failed, len(res.Changes))
	}
	return nil
}

// ShelvesStatus reports the shelves holding a volume.
func (r *Runner) ShelvesStatus(ctx context.Context, cmd *cli.Command) error {
	volumeID, err := volumeArg(cmd)
	if err != nil {
		return err
	}
	if err := r.requireSession(ctx); err != nil {
		return err
	}

	status := membershipStatus{Volume: volumeID}
	if shelf, ok := r.library.GetMembership(ctx, models.MainShelves, volumeID); ok {
		status.Shelf = shelf
	}
	status.Shelves = r.library.CurrentShelves(ctx, models.MainShelves, volumeID)
	status.Favorite, status.Local = r.library.IsFavorite(ctx, volumeID)

	if cmd.Bool("json") {
		return r.writeJSON(status, cmd.Bool("pretty"))
	}

	if status.Shelf == nil {
		r.writePlain("%s is not on any shelf\n", volumeID)
	} else {
		names := make([]string, len(status.Shelves))
		for i, id := range status.Shelves {
			names[i] = id.String()
		}
		r.writePlain("%s is on %s\n", volumeID, status.Shelf.Title)
		if len(names) > 1 {
			r.writePlain("All shelves: %s\n", strings.Join(names, ", "))
		}
	}
	if status.Favorite && status.Local {
		r.writePlain("Favorite: yes (saved locally)\n")
	} else if status.Favorite {
		r.writePlain("Favorite: yes\n")
	}
	return nil
}

func (r *Runner) shelfOperands(cmd *cli.Command) (string, models.ShelfID, error) {
	volumeID, err := volumeArg(cmd)
	if err != nil {
		return "", models.NoShelf, err
	}
	shelf, err := parseShelf(cmd.String("shelf"))
	if err != nil {
		return "", models.NoShelf, err
	}
	if shelf == models.NoShelf {
		return "", models.NoShelf, fmt.Errorf("%w: shelf is required", shared.ErrInvalidArgument)
	}
	return volumeID, shelf, nil
}

func (r *Runner) writeReconcile(res library.ReconcileResult) {
	if res.Outcome == library.NoOp {
		r.writePlain("No changes\n")
		return
	}
	for _, c := range res.Changes {
		verb, prep := "Added", "to"
		if !c.Add {
			verb, prep = "Removed", "from"
		}
		if c.Err != nil {
			r.writePlain("✗ %s %s %s: %v\n", verb, prep, c.Shelf, c.Err)
		} else {
			r.writePlain("✓ %s %s %s\n", verb, prep, c.Shelf)
		}
	}
	r.writePlain("%d succeeded, %d failed (%s)\n", res.Succeeded, res.Failed, res.Outcome)
}

func (r *Runner) writeVolumes(vols []models.Volume) {
	for i, v := range vols {
		r.writePlain("%2d. %s - %s [%s]\n", i+1, v.AuthorList(), v.Info.Title, v.ID)
	}
}
