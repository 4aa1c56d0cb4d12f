package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/desertthunder/shelfx/internal/models"
	"github.com/desertthunder/shelfx/internal/recommend"
	"github.com/desertthunder/shelfx/internal/services"
	"github.com/desertthunder/shelfx/internal/shared"
	"github.com/urfave/cli/v3"
)

// searchResult is a volume with the signed-in user's favorite flag.
type searchResult struct {
	models.Volume
	Favorite bool `json:"favorite"`
}

// BooksSearch searches the public catalog. Favorites are marked when a session is stored.
func (r *Runner) BooksSearch(ctx context.Context, cmd *cli.Command) error {
	q := services.Query{
		Terms:      strings.TrimSpace(cmd.StringArg("query")),
		Title:      cmd.String("title"),
		Author:     cmd.String("author"),
		Subject:    cmd.String("subject"),
		OrderBy:    cmd.String("order"),
		StartIndex: cmd.Int("start"),
		MaxResults: cmd.Int("limit"),
	}
	if q.String() == "" {
		return fmt.Errorf("%w: search terms or --title/--author/--subject", shared.ErrMissingArgument)
	}

	list, err := r.catalog.SearchVolumes(ctx, q)
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}

	ids := make([]string, len(list.Items))
	for i, v := range list.Items {
		ids[i] = v.ID
	}
	flags := map[string]bool{}
	if err := r.session.Restore(ctx); err == nil && r.session.Snapshot().IsAuthenticated {
		flags = r.library.FavoriteFlags(ctx, ids)
	}

	results := make([]searchResult, len(list.Items))
	for i, v := range list.Items {
		results[i] = searchResult{Volume: v, Favorite: flags[v.ID]}
	}

	if cmd.Bool("json") {
		return r.writeJSON(results, cmd.Bool("pretty"))
	}

	r.writePlainHeader(fmt.Sprintf("%d results for %s", list.TotalItems, q))
	for i, res := range results {
		mark := " "
		if res.Favorite {
			mark = "♥"
		}
		r.writePlain("%s %2d. %s - %s [%s]\n", mark, q.StartIndex+i+1, res.AuthorList(), res.Info.Title, res.ID)
	}
	return nil
}

// BooksShow prints a volume's details.
func (r *Runner) BooksShow(ctx context.Context, cmd *cli.Command) error {
	volumeID, err := volumeArg(cmd)
	if err != nil {
		return err
	}

	v, err := r.catalog.GetVolume(ctx, volumeID)
	if err != nil {
		return fmt.Errorf("failed to fetch volume: %w", err)
	}

	if cmd.Bool("json") {
		return r.writeJSON(v, cmd.Bool("pretty"))
	}

	info := v.Info
	title := info.Title
	if info.Subtitle != "" {
		title += ": " + info.Subtitle
	}
	r.writePlainHeader(title)
	r.writePlain("Authors:   %s\n", v.AuthorList())
	if info.Publisher != "" || info.PublishedDate != "" {
		r.writePlain("Published: %s %s\n", info.Publisher, info.PublishedDate)
	}
	if isbn := v.ISBN(); isbn != "" {
		r.writePlain("ISBN:      %s\n", isbn)
	}
	if info.PageCount > 0 {
		r.writePlain("Pages:     %d\n", info.PageCount)
	}
	if len(info.Categories) > 0 {
		r.writePlain("Genres:    %s\n", strings.Join(info.Categories, ", "))
	}
	if info.AverageRating > 0 {
		r.writePlain("Rating:    %.1f (%d ratings)\n", info.AverageRating, info.RatingsCount)
	}
	if cover := v.Cover(); cover != "" {
		r.writePlain("Cover:     %s\n", cover)
	}
	if info.Description != "" {
		r.writePlainln("%s", info.Description)
	}
	return nil
}

// BooksRead records the volume as currently reading and prints where to read it.
func (r *Runner) BooksRead(ctx context.Context, cmd *cli.Command) error {
	volumeID, err := volumeArg(cmd)
	if err != nil {
		return err
	}
	if err := r.requireSession(ctx); err != nil {
		return err
	}

	v := r.lookupVolume(ctx, volumeID)
	res := r.library.TrackView(ctx, volumeID, v.Info.Title, v.Info.Authors)
	switch {
	case res.Fallback:
		r.writePlain("✓ Saved %s as currently reading locally (%v)\n", v.Info.Title, res.Err)
	case res.Success:
		r.writePlain("✓ Added %s to %s\n", v.Info.Title, models.CurrentlyReading)
	default:
		return fmt.Errorf("failed to track reading: %w", res.Err)
	}

	link := v.Info.PreviewLink
	if v.AccessInfo != nil && v.AccessInfo.WebReaderLink != "" {
		link = v.AccessInfo.WebReaderLink
	}
	if link == "" {
		return r.writePlain("No reader available for this volume\n")
	}
	link = models.SecureURL(link)
	r.writePlain("Read: %s\n", link)

	if cmd.Bool("open") {
		if err := shared.OpenBrowser(link); err != nil {
			r.logger.Warn("failed to open browser", "error", err)
		}
	}
	return nil
}

// BooksPublic lists another user's public shelves, or one shelf's volumes.
func (r *Runner) BooksPublic(ctx context.Context, cmd *cli.Command) error {
	userID := strings.TrimSpace(cmd.StringArg("user"))
	if userID == "" {
		return fmt.Errorf("%w: user id", shared.ErrMissingArgument)
	}

	if name := cmd.String("shelf"); name != "" {
		shelf, err := parseShelf(name)
		if err != nil {
			return err
		}
		vols, err := r.catalog.PublicShelfVolumes(ctx, userID, shelf)
		if err != nil {
			return err
		}
		if cmd.Bool("json") {
			return r.writeJSON(vols, cmd.Bool("pretty"))
		}
		r.writePlainHeader(fmt.Sprintf("%s's %s (%d)", userID, shelf, len(vols)))
		r.writeVolumes(vols)
		return nil
	}

	shelves, err := r.catalog.PublicShelves(ctx, userID)
	if err != nil {
		return err
	}
	if cmd.Bool("json") {
		return r.writeJSON(shelves, cmd.Bool("pretty"))
	}
	r.writePlainHeader(fmt.Sprintf("%s's public shelves", userID))
	for _, s := range shelves {
		r.writePlain("%-3d %-20s %d volumes\n", int(s.ID), s.Title, s.VolumeCount)
	}
	return nil
}

// Recommend suggests volumes based on the Favorites shelf.
func (r *Runner) Recommend(ctx context.Context, cmd *cli.Command) error {
	mode := recommend.Mode(cmd.String("mode"))
	if mode != recommend.ByAuthor && mode != recommend.ByGenre {
		return fmt.Errorf("%w: mode must be %s or %s", shared.ErrInvalidFlag, recommend.ByAuthor, recommend.ByGenre)
	}
	if err := r.requireSession(ctx); err != nil {
		return err
	}

	favorites, err := r.library.Volumes(ctx, models.Favorites)
	if err != nil {
		return fmt.Errorf("failed to read favorites: %w", err)
	}

	picks := r.recommender.Recommend(ctx, mode, favorites)
	if cmd.Bool("json") {
		return r.writeJSON(picks, cmd.Bool("pretty"))
	}

	if len(picks) == 0 {
		return r.writePlain("No recommendations yet. Favorite a few books first.\n")
	}
	r.writePlainHeader(fmt.Sprintf("Recommended by %s", mode))
	r.writeVolumes(picks)
	return nil
}

// lookupVolume fetches display fields for local records. Failures yield a
// volume with only the id.
func (r *Runner) lookupVolume(ctx context.Context, volumeID string) *models.Volume {
	v, err := r.catalog.GetVolume(ctx, volumeID)
	if err != nil {
		r.logger.Debug("volume lookup failed", "volume", volumeID, "error", err)
		return &models.Volume{ID: volumeID, Info: models.VolumeInfo{Title: volumeID}}
	}
	return v
}
