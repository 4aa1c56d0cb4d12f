package main

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"
)

// FavoriteAdd adds a volume to Favorites, keeping it locally when Google cannot be updated.
func (r *Runner) FavoriteAdd(ctx context.Context, cmd *cli.Command) error {
	return r.setFavorite(ctx, cmd, true)
}

// FavoriteRemove removes a volume from Favorites, locally when Google cannot be updated.
func (r *Runner) FavoriteRemove(ctx context.Context, cmd *cli.Command) error {
	return r.setFavorite(ctx, cmd, false)
}

func (r *Runner) setFavorite(ctx context.Context, cmd *cli.Command, desired bool) error {
	volumeID, err := volumeArg(cmd)
	if err != nil {
		return err
	}
	if err := r.requireSession(ctx); err != nil {
		return err
	}

	v := r.lookupVolume(ctx, volumeID)
	res := r.library.ToggleFavorite(ctx, volumeID, v.Info.Title, v.Info.Authors, desired)
	if !res.Success {
		return fmt.Errorf("failed to update favorites: %w", res.Err)
	}

	verb := "Favorited"
	if !desired {
		verb = "Unfavorited"
	}
	if res.Fallback {
		r.logger.Warn("favorites kept locally", "volume", volumeID, "error", res.Err)
		return r.writePlain("✓ %s %s locally; run 'shelfx local sync' to retry\n", verb, v.Info.Title)
	}
	return r.writePlain("✓ %s %s\n", verb, v.Info.Title)
}

// FavoriteCheck reports whether a volume is a favorite.
func (r *Runner) FavoriteCheck(ctx context.Context, cmd *cli.Command) error {
	volumeID, err := volumeArg(cmd)
	if err != nil {
		return err
	}
	if err := r.requireSession(ctx); err != nil {
		return err
	}

	favorite, local := r.library.IsFavorite(ctx, volumeID)
	switch {
	case favorite && local:
		return r.writePlain("♥ %s is a favorite (saved locally)\n", volumeID)
	case favorite:
		return r.writePlain("♥ %s is a favorite\n", volumeID)
	default:
		return r.writePlain("%s is not a favorite\n", volumeID)
	}
}
