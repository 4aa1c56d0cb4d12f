package library

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/charmbracelet/log"

	"github.com/desertthunder/shelfx/internal/models"
	"github.com/desertthunder/shelfx/internal/repositories"
	"github.com/desertthunder/shelfx/internal/services"
	"github.com/desertthunder/shelfx/internal/shared"
)

// Remote is the shelf API the service drives.
type Remote interface {
	Shelves(ctx context.Context) ([]models.Shelf, error)
	Shelf(ctx context.Context, id models.ShelfID) (*models.Shelf, error)
	ShelfVolumes(ctx context.Context, id models.ShelfID) ([]models.Volume, error)
	AddVolume(ctx context.Context, id models.ShelfID, volumeID string) error
	RemoveVolume(ctx context.Context, id models.ShelfID, volumeID string) error
	MoveVolume(ctx context.Context, id models.ShelfID, volumeID string, position int) error
	ClearVolumes(ctx context.Context, id models.ShelfID) error
}

// Identity names the user that local fallback records belong to.
type Identity interface {
	UserKey() string
}

// Result is the outcome of one shelf operation.
//
// Err is set whenever the remote call failed, including when the intent was
// kept locally (Success and Fallback both true).
type Result struct {
	Success  bool  // The user's intent is reflected, remotely or locally
	Fallback bool  // Recorded locally only; the server was not updated
	Orphaned bool  // A move removed the volume but could not add it back
	Err      error // Remote failure, if any
}

// Opts configures a [Service].
type Opts struct {
	Remote   Remote
	Identity Identity
	Fallback *repositories.FallbackStore
	Logger   *log.Logger
}

// Service performs shelf operations against [Remote] and keeps a [View] in step.
type Service struct {
	remote   Remote
	identity Identity
	fallback *repositories.FallbackStore
	logger   *log.Logger
	view     *View

	mu       sync.Mutex
	inflight map[pendingKey]struct{}
}

type pendingKey struct {
	volumeID string
	shelf    models.ShelfID
}

// New creates a service. Fallback and Identity may be nil, which disables local records.
func New(opts Opts) *Service {
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(io.Discard)
	}
	return &Service{
		remote:   opts.Remote,
		identity: opts.Identity,
		fallback: opts.Fallback,
		logger:   opts.Logger.With("component", "library"),
		view:     NewView(),
		inflight: make(map[pendingKey]struct{}),
	}
}

// View returns the optimistic shelf view.
func (s *Service) View() *View { return s.view }

// acquire claims the (volumeID, shelf) pair until release is called.
func (s *Service) acquire(volumeID string, shelves ...models.ShelfID) (release func(), err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	keys := make([]pendingKey, 0, len(shelves))
	for _, shelf := range shelves {
		k := pendingKey{volumeID: volumeID, shelf: shelf}
		if _, busy := s.inflight[k]; busy {
			return nil, fmt.Errorf("%w: %s on %s", shared.ErrMutationInFlight, volumeID, shelf)
		}
		keys = append(keys, k)
	}
	for _, k := range keys {
		s.inflight[k] = struct{}{}
	}

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		for _, k := range keys {
			delete(s.inflight, k)
		}
	}, nil
}

func validate(volumeID string, shelf models.ShelfID) error {
	if volumeID == "" {
		return fmt.Errorf("%w: volume id is required", shared.ErrInvalidArgument)
	}
	if shelf < 0 {
		return fmt.Errorf("%w: shelf id %d", shared.ErrInvalidArgument, int(shelf))
	}
	return nil
}

// AddToShelf adds the volume to the shelf. Adding a volume already present succeeds.
func (s *Service) AddToShelf(ctx context.Context, volumeID string, shelf models.ShelfID) Result {
	if err := validate(volumeID, shelf); err != nil {
		return Result{Err: err}
	}
	release, err := s.acquire(volumeID, shelf)
	if err != nil {
		return Result{Err: err}
	}
	defer release()

	if err := s.add(ctx, volumeID, shelf); err != nil {
		return Result{Err: err}
	}
	return Result{Success: true}
}

// RemoveFromShelf removes the volume from the shelf. Removing an absent volume succeeds.
func (s *Service) RemoveFromShelf(ctx context.Context, volumeID string, shelf models.ShelfID) Result {
	if err := validate(volumeID, shelf); err != nil {
		return Result{Err: err}
	}
	release, err := s.acquire(volumeID, shelf)
	if err != nil {
		return Result{Err: err}
	}
	defer release()

	if err := s.remove(ctx, volumeID, shelf); err != nil {
		return Result{Err: err}
	}
	return Result{Success: true}
}

// MoveBetweenShelves removes the volume from one shelf and adds it to another.
//
// from may be [models.NoShelf] for a volume that is not shelved. There is no
// compensation: when the add fails after the remove succeeded the volume is
// left off both shelves and the result is marked Orphaned.
func (s *Service) MoveBetweenShelves(ctx context.Context, volumeID string, from, to models.ShelfID) Result {
	if err := validate(volumeID, to); err != nil {
		return Result{Err: err}
	}
	if from != models.NoShelf {
		if err := validate(volumeID, from); err != nil {
			return Result{Err: err}
		}
	}
	if from == to {
		return Result{Success: true}
	}

	shelves := []models.ShelfID{to}
	if from != models.NoShelf {
		shelves = append(shelves, from)
	}
	release, err := s.acquire(volumeID, shelves...)
	if err != nil {
		return Result{Err: err}
	}
	defer release()

	if from != models.NoShelf {
		if err := s.remove(ctx, volumeID, from); err != nil {
			return Result{Err: err}
		}
	}

	if err := s.add(ctx, volumeID, to); err != nil {
		orphaned := from != models.NoShelf
		if orphaned {
			s.logger.Warn("move left volume unshelved", "volume", volumeID, "from", from, "to", to, "error", err)
		}
		return Result{Orphaned: orphaned, Err: err}
	}
	return Result{Success: true}
}

// Reposition moves a volume already on the shelf to position (0 is first).
func (s *Service) Reposition(ctx context.Context, volumeID string, shelf models.ShelfID, position int) Result {
	if err := validate(volumeID, shelf); err != nil {
		return Result{Err: err}
	}
	if position < 0 {
		return Result{Err: fmt.Errorf("%w: position %d", shared.ErrInvalidArgument, position)}
	}
	release, err := s.acquire(volumeID, shelf)
	if err != nil {
		return Result{Err: err}
	}
	defer release()

	if err := s.remote.MoveVolume(ctx, shelf, volumeID, position); err != nil {
		s.logger.Debug("reposition failed", "shelf", shelf, "volume", volumeID, "error", err)
		return Result{Err: err}
	}
	s.refresh(ctx, shelf)
	return Result{Success: true}
}

// ClearShelf removes every volume from the shelf. Local records are kept.
func (s *Service) ClearShelf(ctx context.Context, shelf models.ShelfID) Result {
	if shelf < 0 {
		return Result{Err: fmt.Errorf("%w: shelf id %d", shared.ErrInvalidArgument, int(shelf))}
	}
	if err := s.remote.ClearVolumes(ctx, shelf); err != nil {
		return Result{Err: err}
	}
	if s.view.Loaded(shelf) {
		s.view.setVolumes(shelf, nil)
	}
	s.refresh(ctx, shelf)
	return Result{Success: true}
}

// ToggleFavorite adds the volume to or removes it from Favorites.
//
// When the API call fails for any reason other than an expired session the
// intent is kept as a local record for the current user and the result is
// Success with Fallback set.
func (s *Service) ToggleFavorite(ctx context.Context, volumeID, title string, authors []string, desired bool) Result {
	return s.track(ctx, models.Favorites, volumeID, title, authors, desired)
}

// TrackView marks the volume as currently being read, with the same local
// fallback as [Service.ToggleFavorite].
func (s *Service) TrackView(ctx context.Context, volumeID, title string, authors []string) Result {
	return s.track(ctx, models.CurrentlyReading, volumeID, title, authors, true)
}

func (s *Service) track(ctx context.Context, shelf models.ShelfID, volumeID, title string, authors []string, desired bool) Result {
	if err := validate(volumeID, shelf); err != nil {
		return Result{Err: err}
	}
	release, err := s.acquire(volumeID, shelf)
	if err != nil {
		return Result{Err: err}
	}
	defer release()

	if desired {
		err = s.add(ctx, volumeID, shelf)
	} else {
		err = s.remove(ctx, volumeID, shelf)
	}

	userKey := s.userKey()
	if err == nil {
		if s.fallback != nil {
			if rerr := s.fallback.Remove(userKey, shelf, volumeID); rerr != nil {
				s.logger.Debug("failed to drop local record", "volume", volumeID, "error", rerr)
			}
		}
		return Result{Success: true}
	}

	if s.fallback == nil || !canFallback(err) {
		return Result{Err: err}
	}

	if desired {
		err2 := s.fallback.Put(userKey, shelf, volumeID, title, authors)
		if err2 != nil {
			return Result{Err: fmt.Errorf("%w: %v (remote: %v)", shared.ErrStorage, err2, err)}
		}
	} else if err2 := s.fallback.Remove(userKey, shelf, volumeID); err2 != nil {
		return Result{Err: fmt.Errorf("%w: %v (remote: %v)", shared.ErrStorage, err2, err)}
	}

	s.logger.Warn("shelf unavailable, kept locally", "shelf", shelf, "volume", volumeID, "error", err)
	return Result{Success: true, Fallback: true, Err: err}
}

// canFallback excludes failures a local record would only hide: an expired
// session is being handled by the session controller.
func canFallback(err error) bool {
	switch {
	case services.IsUnauthorized(err):
		return false
	case errors.Is(err, shared.ErrInvalidArgument):
		return false
	case errors.Is(err, context.Canceled):
		return false
	}
	return true
}

func (s *Service) userKey() string {
	if s.identity == nil {
		return (*models.UserProfile)(nil).Key()
	}
	return s.identity.UserKey()
}

// add applies the addition to the view, sends it, and reverts or refreshes.
func (s *Service) add(ctx context.Context, volumeID string, shelf models.ShelfID) error {
	revert := s.view.applyAdd(shelf, volumeID)
	if err := s.remote.AddVolume(ctx, shelf, volumeID); err != nil {
		revert()
		s.logger.Debug("add failed", "shelf", shelf, "volume", volumeID, "error", err)
		return err
	}
	s.refresh(ctx, shelf)
	return nil
}

func (s *Service) remove(ctx context.Context, volumeID string, shelf models.ShelfID) error {
	revert := s.view.applyRemove(shelf, volumeID)
	err := s.remote.RemoveVolume(ctx, shelf, volumeID)
	if err != nil && errors.Is(err, shared.ErrNotFound) {
		s.logger.Debug("volume already absent", "shelf", shelf, "volume", volumeID)
		err = nil
	}
	if err != nil {
		revert()
		s.logger.Debug("remove failed", "shelf", shelf, "volume", volumeID, "error", err)
		return err
	}
	s.refresh(ctx, shelf)
	return nil
}

// refresh re-reads a shelf the view is showing. Failures keep the optimistic state.
func (s *Service) refresh(ctx context.Context, shelf models.ShelfID) {
	if !s.view.Loaded(shelf) {
		return
	}
	if _, err := s.loadVolumes(ctx, shelf); err != nil {
		s.logger.Debug("refresh after mutation failed", "shelf", shelf, "error", err)
		return
	}
	if meta, err := s.remote.Shelf(ctx, shelf); err == nil {
		s.view.setShelf(*meta)
	}
}

// Shelves reads the main shelves and stores them in the view.
func (s *Service) Shelves(ctx context.Context) ([]models.Shelf, error) {
	all, err := s.remote.Shelves(ctx)
	if err != nil {
		return nil, err
	}
	shelves := models.FilterMain(all)
	s.view.setShelves(shelves)
	return shelves, nil
}

// Volumes returns the shelf's contents from the view, reading them on first use.
func (s *Service) Volumes(ctx context.Context, shelf models.ShelfID) ([]models.Volume, error) {
	if vols, ok := s.view.Volumes(shelf); ok {
		return vols, nil
	}
	return s.loadVolumes(ctx, shelf)
}

// Refresh re-reads the shelf's contents into the view.
func (s *Service) Refresh(ctx context.Context, shelf models.ShelfID) ([]models.Volume, error) {
	return s.loadVolumes(ctx, shelf)
}

func (s *Service) loadVolumes(ctx context.Context, shelf models.ShelfID) ([]models.Volume, error) {
	vols, err := s.remote.ShelfVolumes(ctx, shelf)
	if err != nil {
		return nil, err
	}
	s.view.setVolumes(shelf, vols)
	return vols, nil
}

// LocalRecords lists the current user's fallback records for the shelf.
func (s *Service) LocalRecords(shelf models.ShelfID) ([]models.LocalRecord, error) {
	if s.fallback == nil {
		return nil, nil
	}
	return s.fallback.List(s.userKey(), shelf)
}
