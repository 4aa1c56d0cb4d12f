package library

import (
	"slices"
	"sync"

	"github.com/desertthunder/shelfx/internal/models"
)

// View holds the last known shelves and their contents, including
// optimistic changes for mutations still in flight.
type View struct {
	mu      sync.RWMutex
	shelves []models.Shelf
	volumes map[models.ShelfID][]models.Volume
}

// NewView creates an empty view.
func NewView() *View {
	return &View{volumes: make(map[models.ShelfID][]models.Volume)}
}

// Shelves returns the shelves in display order.
func (v *View) Shelves() []models.Shelf {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return slices.Clone(v.shelves)
}

// Volumes returns the shelf's contents and whether they have been loaded.
func (v *View) Volumes(id models.ShelfID) ([]models.Volume, bool) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	vols, ok := v.volumes[id]
	return slices.Clone(vols), ok
}

// Loaded reports whether the shelf's contents are held.
func (v *View) Loaded(id models.ShelfID) bool {
	v.mu.RLock()
	defer v.mu.RUnlock()
	_, ok := v.volumes[id]
	return ok
}

// Contains reports whether the loaded shelf holds the volume.
func (v *View) Contains(id models.ShelfID, volumeID string) bool {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return indexOf(v.volumes[id], volumeID) >= 0
}

func (v *View) setShelves(shelves []models.Shelf) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.shelves = slices.Clone(shelves)
}

func (v *View) setShelf(shelf models.Shelf) {
	v.mu.Lock()
	defer v.mu.Unlock()
	for i := range v.shelves {
		if v.shelves[i].ID == shelf.ID {
			v.shelves[i] = shelf
			return
		}
	}
}

func (v *View) setVolumes(id models.ShelfID, vols []models.Volume) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if vols == nil {
		vols = []models.Volume{}
	}
	v.volumes[id] = slices.Clone(vols)
	v.setCountLocked(id, len(vols))
}

// applyAdd puts the volume at the top of a loaded shelf and returns the undo.
func (v *View) applyAdd(id models.ShelfID, volumeID string) (revert func()) {
	v.mu.Lock()
	defer v.mu.Unlock()

	vols, ok := v.volumes[id]
	if !ok || indexOf(vols, volumeID) >= 0 {
		return func() {}
	}

	vol := v.lookupLocked(volumeID)
	v.volumes[id] = append([]models.Volume{vol}, vols...)
	v.setCountLocked(id, len(vols)+1)

	return func() {
		v.mu.Lock()
		defer v.mu.Unlock()
		if i := indexOf(v.volumes[id], volumeID); i >= 0 {
			v.volumes[id] = slices.Delete(slices.Clone(v.volumes[id]), i, i+1)
			v.setCountLocked(id, len(v.volumes[id]))
		}
	}
}

// applyRemove drops the volume from a loaded shelf and returns the undo.
func (v *View) applyRemove(id models.ShelfID, volumeID string) (revert func()) {
	v.mu.Lock()
	defer v.mu.Unlock()

	vols := v.volumes[id]
	i := indexOf(vols, volumeID)
	if i < 0 {
		return func() {}
	}

	removed := vols[i]
	v.volumes[id] = slices.Delete(slices.Clone(vols), i, i+1)
	v.setCountLocked(id, len(vols)-1)

	return func() {
		v.mu.Lock()
		defer v.mu.Unlock()
		cur, ok := v.volumes[id]
		if !ok || indexOf(cur, volumeID) >= 0 {
			return
		}
		at := min(i, len(cur))
		v.volumes[id] = slices.Insert(slices.Clone(cur), at, removed)
		v.setCountLocked(id, len(cur)+1)
	}
}

// lookupLocked finds the volume's details on any loaded shelf.
func (v *View) lookupLocked(volumeID string) models.Volume {
	for _, vols := range v.volumes {
		if i := indexOf(vols, volumeID); i >= 0 {
			return vols[i]
		}
	}
	return models.Volume{ID: volumeID}
}

func (v *View) setCountLocked(id models.ShelfID, n int) {
	for i := range v.shelves {
		if v.shelves[i].ID == id {
			v.shelves[i].VolumeCount = n
		}
	}
}

func indexOf(vols []models.Volume, volumeID string) int {
	return slices.IndexFunc(vols, func(v models.Volume) bool { return v.ID == volumeID })
}
