package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/singleflight"

	"github.com/desertthunder/shelfx/internal/models"
	"github.com/desertthunder/shelfx/internal/repositories"
	"github.com/desertthunder/shelfx/internal/services"
	"github.com/desertthunder/shelfx/internal/shared"
)

// refreshDebounce absorbs 401s from requests that were sent with the old token
// just before a refresh completed.
const refreshDebounce = 5 * time.Second

// Authenticator obtains access tokens.
type Authenticator interface {
	LoginInteractive(ctx context.Context) (services.TokenResult, error)
	LoginSilent(ctx context.Context) (services.TokenResult, error)
}

// Remote is the API surface the controller calls directly.
type Remote interface {
	ProfileFetcher
	TokenInfo(ctx context.Context, token string) (*models.TokenInfo, error)
}

// UnauthorizedNotifier lets the controller subscribe to 401 responses.
type UnauthorizedNotifier interface {
	OnUnauthorized(fn func(ctx context.Context))
}

// Opts configures a [Controller].
type Opts struct {
	Auth   Authenticator
	Remote Remote
	Tokens *repositories.TokenStore
	// Notifier, when set, has [Controller.HandleUnauthorized] registered on it.
	Notifier UnauthorizedNotifier
	Clock    Clock
	Logger   *log.Logger
}

// Controller owns the session: token persistence, refresh scheduling, profile
// resolution and recovery from 401 responses.
type Controller struct {
	auth      Authenticator
	remote    Remote
	tokens    *repositories.TokenStore
	clock     Clock
	scheduler *Scheduler
	logger    *log.Logger
	refresh   singleflight.Group

	mu          sync.Mutex
	state       State
	profile     *models.UserProfile
	expiresAt   time.Time
	epoch       uint64
	lastRefresh time.Time
	refreshes   uint64
	observers   map[int]func(Snapshot)
	nextID      int
}

// NewController creates a controller in the Unauthenticated state and registers
// its 401 handler on opts.Notifier.
func NewController(opts Opts) *Controller {
	if opts.Clock == nil {
		opts.Clock = SystemClock
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(io.Discard)
	}

	c := &Controller{
		auth:      opts.Auth,
		remote:    opts.Remote,
		tokens:    opts.Tokens,
		clock:     opts.Clock,
		scheduler: NewScheduler(opts.Clock),
		logger:    opts.Logger.With("component", "session"),
		observers: make(map[int]func(Snapshot)),
	}
	if opts.Notifier != nil {
		opts.Notifier.OnUnauthorized(c.HandleUnauthorized)
	}
	return c
}

// Snapshot returns the current session view.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

func (c *Controller) snapshotLocked() Snapshot {
	snap := Snapshot{
		State:           c.state,
		StateName:       c.state.String(),
		IsAuthenticated: c.state == Authenticated || c.state == RefreshingSilently,
		Profile:         c.profile,
		ExpiresAt:       c.expiresAt,
	}
	if at, ok := c.scheduler.Deadline(); ok {
		snap.RefreshAt = at
	}
	return snap
}

// UserKey identifies the signed-in user for local records.
func (c *Controller) UserKey() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.profile.Key()
}

// Subscribe registers fn to receive a snapshot after every state change.
func (c *Controller) Subscribe(fn func(Snapshot)) (unsubscribe func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	id := c.nextID
	c.nextID++
	c.observers[id] = fn
	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		delete(c.observers, id)
	}
}

// setLocked changes state and returns the notification to deliver once unlocked.
func (c *Controller) setLocked(s State) func() {
	if c.state == s {
		return func() {}
	}
	c.state = s
	snap := c.snapshotLocked()
	observers := make([]func(Snapshot), 0, len(c.observers))
	for _, fn := range c.observers {
		observers = append(observers, fn)
	}
	return func() {
		for _, fn := range observers {
			fn(snap)
		}
	}
}

func (c *Controller) transition(epoch uint64, s State, mutate func()) bool {
	c.mu.Lock()
	if c.epoch != epoch {
		c.mu.Unlock()
		return false
	}
	if mutate != nil {
		mutate()
	}
	notify := c.setLocked(s)
	c.mu.Unlock()
	notify()
	return true
}

// Login runs the interactive flow. On failure the session is left as it was.
func (c *Controller) Login(ctx context.Context) error {
	res, err := c.auth.LoginInteractive(ctx)
	if err != nil {
		return err
	}

	c.mu.Lock()
	c.epoch++
	epoch := c.epoch
	c.profile = nil
	c.scheduler.Disarm()
	c.mu.Unlock()

	if !c.applyToken(epoch, res, false) {
		return shared.ErrSessionEnded
	}

	ctx = services.WithoutUnauthorizedHook(ctx)
	var profile *models.UserProfile
	err = c.withSilentRefresh(ctx, epoch, func(ctx context.Context) error {
		p, err := c.resolver(epoch).Resolve(ctx, true)
		profile = p
		return err
	})
	if err != nil {
		c.logger.Warn("profile unavailable after login", "error", err)
		c.forceLogout(epoch)
		return fmt.Errorf("%w: %v", shared.ErrAuthFailed, err)
	}

	if !c.transition(epoch, Authenticated, func() { c.profile = profile }) {
		return shared.ErrSessionEnded
	}
	c.logger.Info("signed in", "user", profile.Email)
	return nil
}

// Restore rebuilds the session from storage. Any failure ends in a clean
// Unauthenticated state; the error is returned for logging.
func (c *Controller) Restore(ctx context.Context) error {
	c.mu.Lock()
	epoch, seen := c.epoch, c.refreshes
	c.scheduler.Disarm()
	notify := c.setLocked(Restoring)
	c.mu.Unlock()
	notify()

	ctx = services.WithoutUnauthorizedHook(ctx)

	token, expiresAt, ok, err := c.tokens.Load()
	if err != nil || !ok {
		c.transition(epoch, Unauthenticated, nil)
		return err
	}

	now := c.clock.Now()
	if expiresAt.IsZero() || !now.Before(expiresAt) {
		if info, ierr := c.remote.TokenInfo(ctx, token); ierr == nil && info.ExpiresIn > 0 {
			expiresAt = now.Add(time.Duration(info.ExpiresIn) * time.Second)
			if err := c.tokens.Save(token, expiresAt); err != nil {
				c.logger.Warn("failed to persist recovered expiry", "error", err)
			}
		} else if ierr != nil {
			c.logger.Debug("token metadata unavailable", "error", ierr)
		}
	}

	if !expiresAt.IsZero() && now.Before(expiresAt) {
		c.mu.Lock()
		if c.epoch == epoch {
			c.expiresAt = expiresAt
			c.scheduler.Arm(expiresAt, c.onDue(epoch))
		}
		c.mu.Unlock()

		var profile *models.UserProfile
		err := c.withSilentRefresh(ctx, epoch, func(ctx context.Context) error {
			p, err := c.resolver(epoch).Resolve(ctx, false)
			profile = p
			return err
		})
		if err != nil {
			c.forceLogout(epoch)
			return err
		}
		if !c.transition(epoch, Authenticated, func() { c.profile = profile }) {
			return shared.ErrSessionEnded
		}
		return nil
	}

	if err := c.silentRefresh(ctx, epoch, seen); err != nil {
		c.forceLogout(epoch)
		return err
	}
	profile, err := c.resolver(epoch).Resolve(ctx, false)
	if err != nil {
		c.forceLogout(epoch)
		return err
	}
	if !c.transition(epoch, Authenticated, func() { c.profile = profile }) {
		return shared.ErrSessionEnded
	}
	return nil
}

// HandleUnauthorized is the transport's 401 callback. While signed in it makes
// one silent refresh attempt, coalesced with any already running, and ends the
// session if it fails. The request that failed is not retried.
func (c *Controller) HandleUnauthorized(ctx context.Context) {
	c.mu.Lock()
	epoch, state, seen := c.epoch, c.state, c.refreshes
	recent := !c.lastRefresh.IsZero() && c.clock.Now().Sub(c.lastRefresh) < refreshDebounce
	if state != Authenticated && state != RefreshingSilently {
		c.mu.Unlock()
		return
	}
	if recent {
		c.mu.Unlock()
		c.logger.Debug("ignoring 401 from request sent before last refresh")
		return
	}
	notify := c.setLocked(RefreshingSilently)
	c.mu.Unlock()
	notify()

	c.logger.Info("request unauthorized, refreshing session")
	if err := c.silentRefresh(services.WithoutUnauthorizedHook(ctx), epoch, seen); err != nil {
		c.logger.Warn("silent refresh failed, signing out", "error", err)
		c.forceLogout(epoch)
		return
	}
	c.transition(epoch, Authenticated, nil)
}

// Logout ends the session from any state. Safe to call repeatedly.
func (c *Controller) Logout() error {
	c.mu.Lock()
	c.epoch++
	if c.state != Unauthenticated {
		notify := c.setLocked(LoggingOut)
		c.mu.Unlock()
		notify()
		c.mu.Lock()
	}
	err := c.clearLocked()
	notify := c.setLocked(Unauthenticated)
	c.mu.Unlock()
	notify()

	if err != nil {
		return fmt.Errorf("failed to clear session: %w", err)
	}
	return nil
}

// Close stops the refresh timer without touching stored credentials.
func (c *Controller) Close() {
	c.scheduler.Disarm()
}

func (c *Controller) clearLocked() error {
	c.scheduler.Disarm()
	c.profile = nil
	c.expiresAt = time.Time{}
	c.lastRefresh = time.Time{}
	return c.tokens.Clear()
}

// forceLogout ends the session only if it is still the one identified by epoch.
func (c *Controller) forceLogout(epoch uint64) {
	c.mu.Lock()
	if c.epoch != epoch {
		c.mu.Unlock()
		return
	}
	c.epoch++
	if err := c.clearLocked(); err != nil {
		c.logger.Error("failed to clear session", "error", err)
	}
	notify := c.setLocked(Unauthenticated)
	c.mu.Unlock()
	notify()
}

// applyToken persists res and re-arms the timer if epoch is still current.
//
// refreshed marks the token as coming from a silent refresh, which starts the 401 debounce window.
func (c *Controller) applyToken(epoch uint64, res services.TokenResult, refreshed bool) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.epoch != epoch {
		return false
	}

	now := c.clock.Now()
	expiresAt := now.Add(res.ExpiresIn)
	if err := c.tokens.Save(res.AccessToken, expiresAt); err != nil {
		c.logger.Error("failed to persist token", "error", err)
	}
	if err := c.tokens.SaveGrant(res.RefreshToken); err != nil {
		c.logger.Error("failed to persist grant", "error", err)
	}
	c.expiresAt = expiresAt
	if refreshed {
		c.lastRefresh = now
		c.refreshes++
	}
	c.scheduler.Arm(expiresAt, c.onDue(epoch))
	return true
}

// silentRefresh runs one LoginSilent, shared by all concurrent callers. seen is
// the refresh count the caller observed before its failure; if another refresh
// has completed since, no new one is started.
func (c *Controller) silentRefresh(ctx context.Context, epoch, seen uint64) error {
	_, err, _ := c.refresh.Do("refresh", func() (any, error) {
		c.mu.Lock()
		current, done := c.epoch == epoch, c.refreshes != seen
		c.mu.Unlock()
		if !current {
			return nil, shared.ErrSessionEnded
		}
		if done {
			return nil, nil
		}

		res, err := c.auth.LoginSilent(ctx)
		if err != nil {
			return nil, err
		}
		if !c.applyToken(epoch, res, true) {
			return nil, shared.ErrSessionEnded
		}
		c.logger.Debug("token refreshed", "expires_in", res.ExpiresIn)
		return nil, nil
	})
	return err
}

// withSilentRefresh runs op, and on failure refreshes once and runs op again.
func (c *Controller) withSilentRefresh(ctx context.Context, epoch uint64, op func(context.Context) error) error {
	seen := c.refreshCount()
	err := op(ctx)
	if err == nil {
		return nil
	}
	if errors.Is(err, shared.ErrSessionEnded) {
		return err
	}

	c.logger.Debug("retrying after silent refresh", "error", err)
	if rerr := c.silentRefresh(ctx, epoch, seen); rerr != nil {
		return fmt.Errorf("%w (silent refresh: %v)", err, rerr)
	}
	return op(ctx)
}

// onDue returns the timer callback for the session identified by epoch.
func (c *Controller) onDue(epoch uint64) func() {
	return func() {
		c.mu.Lock()
		if c.epoch != epoch || c.state != Authenticated {
			c.mu.Unlock()
			return
		}
		seen := c.refreshes
		notify := c.setLocked(RefreshingSilently)
		c.mu.Unlock()
		notify()

		ctx := services.WithoutUnauthorizedHook(context.Background())
		if err := c.silentRefresh(ctx, epoch, seen); err != nil {
			c.logger.Warn("scheduled refresh failed, signing out", "error", err)
			c.forceLogout(epoch)
			return
		}

		profile, err := c.resolver(epoch).Resolve(ctx, false)
		c.transition(epoch, Authenticated, func() {
			if err == nil {
				c.profile = profile
			}
		})
	}
}

func (c *Controller) refreshCount() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.refreshes
}

// resolver returns a ProfileResolver whose cache writes are dropped once the session ends.
func (c *Controller) resolver(epoch uint64) *ProfileResolver {
	return NewProfileResolver(c.remote, &epochCache{c: c, epoch: epoch})
}

type epochCache struct {
	c     *Controller
	epoch uint64
}

func (e *epochCache) LoadProfile() (*models.UserProfile, bool) {
	return e.c.tokens.LoadProfile()
}

func (e *epochCache) SaveProfile(p *models.UserProfile) error {
	e.c.mu.Lock()
	defer e.c.mu.Unlock()
	if e.c.epoch != e.epoch {
		return shared.ErrSessionEnded
	}
	return e.c.tokens.SaveProfile(p)
}
