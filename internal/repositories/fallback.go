package repositories

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/desertthunder/shelfx/internal/models"
)

// FallbackStore keeps per-user records of favorites and books being read when
// the shelf API could not be reached.
//
// Records are JSON arrays stored under favorites_<userKey> and currently_reading_<userKey>.
//
// Put and Remove hold mu across their read and write.
type FallbackStore struct {
	storage Storage
	now     func() time.Time

	mu sync.Mutex
}

// NewFallbackStore wraps storage.
func NewFallbackStore(storage Storage) *FallbackStore {
	return &FallbackStore{storage: storage, now: time.Now}
}

func fallbackKey(shelf models.ShelfID, userKey string) string {
	switch shelf {
	case models.Favorites:
		return "favorites_" + userKey
	case models.CurrentlyReading:
		return "currently_reading_" + userKey
	default:
		return fmt.Sprintf("shelf_%d_%s", int(shelf), userKey)
	}
}

// List returns the local records for the shelf.
//
// Corrupt data reads as empty.
func (s *FallbackStore) List(userKey string, shelf models.ShelfID) ([]models.LocalRecord, error) {
	raw, ok, err := s.storage.Get(fallbackKey(shelf, userKey))
	if err != nil {
		return nil, err
	}
	if !ok || raw == "" {
		return nil, nil
	}

	var records []models.LocalRecord
	if err := json.Unmarshal([]byte(raw), &records); err != nil {
		return nil, nil
	}
	return records, nil
}

// Contains reports whether a local record exists for the volume.
func (s *FallbackStore) Contains(userKey string, shelf models.ShelfID, volumeID string) bool {
	records, err := s.List(userKey, shelf)
	if err != nil {
		return false
	}
	for _, r := range records {
		if r.ID == volumeID {
			return true
		}
	}
	return false
}

// Put records the volume on the shelf. Existing records are left unchanged.
func (s *FallbackStore) Put(userKey string, shelf models.ShelfID, volumeID, title string, authors []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	records, err := s.List(userKey, shelf)
	if err != nil {
		return err
	}
	for _, r := range records {
		if r.ID == volumeID {
			return nil
		}
	}

	now := s.now()
	rec := models.LocalRecord{ID: volumeID, Title: title, Authors: authors, Shelf: shelf}
	if shelf == models.Favorites {
		rec.FavoritedAt = &now
	} else {
		rec.StartedAt = &now
	}

	return s.write(userKey, shelf, append(records, rec))
}

// Remove deletes the volume's record. Absent records are a no-op.
func (s *FallbackStore) Remove(userKey string, shelf models.ShelfID, volumeID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	records, err := s.List(userKey, shelf)
	if err != nil {
		return err
	}

	kept := records[:0]
	for _, r := range records {
		if r.ID != volumeID {
			kept = append(kept, r)
		}
	}
	if len(kept) == len(records) {
		return nil
	}
	return s.write(userKey, shelf, kept)
}

func (s *FallbackStore) write(userKey string, shelf models.ShelfID, records []models.LocalRecord) error {
	data, err := json.Marshal(records)
	if err != nil {
		return err
	}
	return s.storage.Set(fallbackKey(shelf, userKey), string(data))
}
