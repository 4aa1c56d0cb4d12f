package library

import (
	"context"

	"github.com/desertthunder/shelfx/internal/models"
)

// GetMembership returns the first of shelfIDs whose contents include the volume.
//
// Shelves are read one at a time and a shelf that cannot be read is skipped,
// so the answer is best-effort and meant for display only.
func (s *Service) GetMembership(ctx context.Context, shelfIDs []models.ShelfID, volumeID string) (*models.Shelf, bool) {
	for _, id := range shelfIDs {
		vols, err := s.loadVolumes(ctx, id)
		if err != nil {
			s.logger.Debug("membership read failed", "shelf", id, "error", err)
			continue
		}
		if indexOf(vols, volumeID) >= 0 {
			return &models.Shelf{ID: id, Title: s.titleOf(id), VolumeCount: len(vols)}, true
		}
	}
	return nil, false
}

// CurrentShelves returns every one of shelfIDs that holds the volume, skipping
// shelves that cannot be read.
func (s *Service) CurrentShelves(ctx context.Context, shelfIDs []models.ShelfID, volumeID string) []models.ShelfID {
	var current []models.ShelfID
	for _, id := range shelfIDs {
		vols, err := s.loadVolumes(ctx, id)
		if err != nil {
			s.logger.Debug("membership read failed", "shelf", id, "error", err)
			continue
		}
		if indexOf(vols, volumeID) >= 0 {
			current = append(current, id)
		}
	}
	return current
}

// IsFavorite reports whether the volume is a favorite. fallback is true when
// the answer comes from a local record, either because Favorites could not be
// read or because the favorite was never confirmed by the server.
func (s *Service) IsFavorite(ctx context.Context, volumeID string) (favorite, fallback bool) {
	local := s.fallback != nil && s.fallback.Contains(s.userKey(), models.Favorites, volumeID)

	vols, err := s.loadVolumes(ctx, models.Favorites)
	if err != nil {
		s.logger.Debug("favorites unavailable", "error", err)
		return local, true
	}
	if indexOf(vols, volumeID) >= 0 {
		return true, false
	}
	return local, local
}

// FavoriteFlags marks which of volumeIDs are favorites, remotely or locally,
// with a single read of the Favorites shelf.
func (s *Service) FavoriteFlags(ctx context.Context, volumeIDs []string) map[string]bool {
	favorites := make(map[string]bool)

	if vols, err := s.loadVolumes(ctx, models.Favorites); err == nil {
		for _, v := range vols {
			favorites[v.ID] = true
		}
	} else {
		s.logger.Debug("favorites unavailable", "error", err)
	}

	if records, err := s.LocalRecords(models.Favorites); err == nil {
		for _, r := range records {
			favorites[r.ID] = true
		}
	}

	flags := make(map[string]bool, len(volumeIDs))
	for _, id := range volumeIDs {
		flags[id] = favorites[id]
	}
	return flags
}

func (s *Service) titleOf(id models.ShelfID) string {
	for _, shelf := range s.view.Shelves() {
		if shelf.ID == id && shelf.Title != "" {
			return shelf.Title
		}
	}
	return id.String()
}
