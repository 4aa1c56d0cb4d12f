package library

import (
	"context"
	"slices"

	"github.com/desertthunder/shelfx/internal/models"
)

// Outcome summarizes a reconcile.
type Outcome int

const (
	NoOp    Outcome = iota // Nothing to change
	Applied                // Every change succeeded
	Partial                // Some changes failed
	Failed                 // Every change failed
)

func (o Outcome) String() string {
	switch o {
	case Applied:
		return "applied"
	case Partial:
		return "partial"
	case Failed:
		return "failed"
	default:
		return "no-op"
	}
}

// Change is one add or remove issued by a reconcile.
type Change struct {
	Shelf models.ShelfID
	Add   bool
	Err   error
}

// ReconcileResult reports the changes a reconcile issued, in order.
type ReconcileResult struct {
	Changes   []Change
	Succeeded int
	Failed    int
	Outcome   Outcome
}

// Diff returns the shelves to add the volume to and remove it from to go from
// current to desired. Both lists keep the order of their source.
func Diff(current, desired []models.ShelfID) (toAdd, toRemove []models.ShelfID) {
	for _, id := range desired {
		if !slices.Contains(current, id) && !slices.Contains(toAdd, id) {
			toAdd = append(toAdd, id)
		}
	}
	for _, id := range current {
		if !slices.Contains(desired, id) && !slices.Contains(toRemove, id) {
			toRemove = append(toRemove, id)
		}
	}
	return toAdd, toRemove
}

// Reconcile reads which main shelves (and any extra desired shelves) hold the
// volume, then applies the difference with [Service.Apply].
func (s *Service) Reconcile(ctx context.Context, volumeID string, desired []models.ShelfID) ReconcileResult {
	candidates := slices.Clone(models.MainShelves)
	for _, id := range desired {
		if !slices.Contains(candidates, id) {
			candidates = append(candidates, id)
		}
	}
	current := s.CurrentShelves(ctx, candidates, volumeID)
	return s.Apply(ctx, volumeID, current, desired)
}

// Apply issues the additions from [Diff] before the removals. Failures are
// counted, not rolled back.
func (s *Service) Apply(ctx context.Context, volumeID string, current, desired []models.ShelfID) ReconcileResult {
	toAdd, toRemove := Diff(current, desired)
	var res ReconcileResult

	record := func(shelf models.ShelfID, add bool, r Result) {
		res.Changes = append(res.Changes, Change{Shelf: shelf, Add: add, Err: r.Err})
		if r.Success {
			res.Succeeded++
		} else {
			res.Failed++
		}
	}

	for _, id := range toAdd {
		record(id, true, s.AddToShelf(ctx, volumeID, id))
	}
	for _, id := range toRemove {
		record(id, false, s.RemoveFromShelf(ctx, volumeID, id))
	}

	switch {
	case len(res.Changes) == 0:
		res.Outcome = NoOp
	case res.Failed == 0:
		res.Outcome = Applied
	case res.Succeeded == 0:
		res.Outcome = Failed
	default:
		res.Outcome = Partial
	}

	s.logger.Info("reconciled shelves", "volume", volumeID, "outcome", res.Outcome,
		"succeeded", res.Succeeded, "failed", res.Failed)
	return res
}
