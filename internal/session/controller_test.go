package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/desertthunder/shelfx/internal/models"
	"github.com/desertthunder/shelfx/internal/repositories"
	"github.com/desertthunder/shelfx/internal/services"
	"github.com/desertthunder/shelfx/internal/shared"
	tu "github.com/desertthunder/shelfx/internal/testing"
)

var start = time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)

type fakeAuth struct {
	mu          sync.Mutex
	interactive services.TokenResult
	loginErr    error
	silent      services.TokenResult
	silentErr   error
	silentCalls int
	// gate, when set, blocks LoginSilent until closed. entered receives once per call.
	gate    chan struct{}
	entered chan struct{}
}

func (f *fakeAuth) LoginInteractive(ctx context.Context) (services.TokenResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.interactive, f.loginErr
}

func (f *fakeAuth) LoginSilent(ctx context.Context) (services.TokenResult, error) {
	f.mu.Lock()
	f.silentCalls++
	gate, entered := f.gate, f.entered
	f.mu.Unlock()

	if entered != nil {
		entered <- struct{}{}
	}
	if gate != nil {
		<-gate
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	return f.silent, f.silentErr
}

func (f *fakeAuth) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.silentCalls
}

// gatedRemote blocks FetchProfile until release is closed.
type gatedRemote struct {
	Remote
	entered chan struct{}
	release chan struct{}
}

func (g *gatedRemote) FetchProfile(ctx context.Context) (*models.UserProfile, error) {
	g.entered <- struct{}{}
	<-g.release
	return g.Remote.FetchProfile(ctx)
}

type harness struct {
	clock  *tu.FakeClock
	books  *tu.FakeBooks
	tokens *repositories.TokenStore
	auth   *fakeAuth
	google *services.GoogleService
	ctrl   *Controller
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	h := &harness{
		clock:  tu.NewFakeClock(start),
		books:  tu.NewFakeBooks(t),
		tokens: repositories.NewTokenStore(repositories.NewMemoryStorage()),
		auth: &fakeAuth{
			interactive: services.TokenResult{AccessToken: "fresh", ExpiresIn: time.Hour, RefreshToken: "grant-1"},
			silent:      services.TokenResult{AccessToken: "fresh", ExpiresIn: time.Hour},
		},
	}
	h.books.SetToken("fresh")

	transport, err := services.NewTransport(services.TransportOpts{BaseURL: h.books.URL(), Token: h.tokens.Token})
	if err != nil {
		t.Fatalf("failed to create transport: %v", err)
	}
	h.google = services.NewGoogleService(transport, 40)
	h.ctrl = NewController(Opts{
		Auth:     h.auth,
		Remote:   h.google,
		Tokens:   h.tokens,
		Notifier: transport,
		Clock:    h.clock,
	})
	t.Cleanup(h.ctrl.Close)
	return h
}

// seed stores a token with the given expiry and a cached profile.
func (h *harness) seed(t *testing.T, token string, expiresAt time.Time) {
	t.Helper()
	if err := h.tokens.Save(token, expiresAt); err != nil {
		t.Fatalf("failed to save token: %v", err)
	}
	h.tokens.SaveGrant("grant-1")
	h.tokens.SaveProfile(&models.UserProfile{ID: "user-1", Email: "reader@example.com"})
}

func assertSignedOut(t *testing.T, h *harness) {
	t.Helper()
	if s := h.ctrl.Snapshot(); s.State != Unauthenticated || s.IsAuthenticated || s.Profile != nil {
		t.Errorf("expected signed out snapshot, got %+v", s)
	}
	if _, _, ok, _ := h.tokens.Load(); ok {
		t.Error("expected token to be cleared")
	}
	if _, ok := h.tokens.LoadProfile(); ok {
		t.Error("expected profile to be cleared")
	}
	if _, ok := h.tokens.LoadGrant(); ok {
		t.Error("expected grant to be cleared")
	}
	if len(h.clock.Pending()) != 0 {
		t.Errorf("expected no refresh timer, got %v", h.clock.Pending())
	}
}

func TestControllerLogin(t *testing.T) {
	ctx := context.Background()

	t.Run("Success", func(t *testing.T) {
		h := newHarness(t)
		if err := h.ctrl.Login(ctx); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		snap := h.ctrl.Snapshot()
		if snap.State != Authenticated || !snap.IsAuthenticated {
			t.Errorf("expected Authenticated, got %s", snap.StateName)
		}
		if snap.Profile == nil || snap.Profile.ID != "user-1" {
			t.Errorf("expected profile user-1, got %+v", snap.Profile)
		}
		if want := start.Add(59 * time.Minute); !snap.RefreshAt.Equal(want) {
			t.Errorf("expected refresh at %v, got %v", want, snap.RefreshAt)
		}

		token, expiresAt, ok, _ := h.tokens.Load()
		if !ok || token != "fresh" || !expiresAt.Equal(start.Add(time.Hour)) {
			t.Errorf("unexpected stored token %q expiring %v", token, expiresAt)
		}
		if grant, _ := h.tokens.LoadGrant(); grant != "grant-1" {
			t.Errorf("expected grant to be stored, got %q", grant)
		}
		if h.ctrl.UserKey() != "user-1" {
			t.Errorf("expected user key user-1, got %s", h.ctrl.UserKey())
		}
	})

	t.Run("Interactive Failure Leaves State", func(t *testing.T) {
		h := newHarness(t)
		h.auth.loginErr = shared.ErrTimeout

		err := h.ctrl.Login(ctx)
		if !errors.Is(err, shared.ErrTimeout) {
			t.Errorf("expected ErrTimeout, got %v", err)
		}
		if s := h.ctrl.Snapshot(); s.State != Unauthenticated {
			t.Errorf("expected Unauthenticated, got %s", s.StateName)
		}
		if h.books.TotalCalls() != 0 {
			t.Errorf("expected no API calls, got %d", h.books.TotalCalls())
		}
	})

	t.Run("Profile Recovered By Silent Refresh", func(t *testing.T) {
		h := newHarness(t)
		h.auth.interactive.AccessToken = "stale"

		if err := h.ctrl.Login(ctx); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if h.auth.calls() != 1 {
			t.Errorf("expected one silent refresh, got %d", h.auth.calls())
		}
		if h.tokens.Token() != "fresh" {
			t.Errorf("expected refreshed token, got %s", h.tokens.Token())
		}
		if s := h.ctrl.Snapshot(); s.State != Authenticated {
			t.Errorf("expected Authenticated, got %s", s.StateName)
		}
	})

	t.Run("Profile Unavailable Signs Out", func(t *testing.T) {
		h := newHarness(t)
		h.auth.interactive.AccessToken = "stale"
		h.auth.silentErr = shared.ErrRefreshFailed

		err := h.ctrl.Login(ctx)
		if !errors.Is(err, shared.ErrAuthFailed) {
			t.Errorf("expected ErrAuthFailed, got %v", err)
		}
		assertSignedOut(t, h)
	})
}

func TestControllerRestore(t *testing.T) {
	ctx := context.Background()

	t.Run("No Token", func(t *testing.T) {
		h := newHarness(t)
		if err := h.ctrl.Restore(ctx); err != nil {
			t.Errorf("unexpected error: %v", err)
		}
		if s := h.ctrl.Snapshot(); s.State != Unauthenticated {
			t.Errorf("expected Unauthenticated, got %s", s.StateName)
		}
		if h.books.TotalCalls() != 0 || h.auth.calls() != 0 {
			t.Error("expected no network activity")
		}
	})

	t.Run("Cached Profile Makes No Calls", func(t *testing.T) {
		h := newHarness(t)
		h.seed(t, "fresh", start.Add(30*time.Minute))

		if err := h.ctrl.Restore(ctx); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		snap := h.ctrl.Snapshot()
		if snap.State != Authenticated || snap.Profile == nil || snap.Profile.ID != "user-1" {
			t.Errorf("unexpected snapshot %+v", snap)
		}
		if want := start.Add(29 * time.Minute); !snap.RefreshAt.Equal(want) {
			t.Errorf("expected refresh at %v, got %v", want, snap.RefreshAt)
		}
		if h.books.TotalCalls() != 0 || h.auth.calls() != 0 {
			t.Errorf("expected zero network calls, got %d api and %d refreshes", h.books.TotalCalls(), h.auth.calls())
		}
	})

	t.Run("Missing Profile Is Fetched", func(t *testing.T) {
		h := newHarness(t)
		h.tokens.Save("fresh", start.Add(30*time.Minute))

		if err := h.ctrl.Restore(ctx); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if h.books.Calls("GET /oauth2/v2/userinfo") != 1 {
			t.Errorf("expected one profile fetch, got %d", h.books.Calls("GET /oauth2/v2/userinfo"))
		}
		if _, ok := h.tokens.LoadProfile(); !ok {
			t.Error("expected profile to be cached")
		}
	})

	t.Run("Expired With Failing Refresh", func(t *testing.T) {
		h := newHarness(t)
		h.seed(t, "old", start.Add(-time.Minute))
		h.auth.silentErr = shared.ErrRefreshFailed

		if err := h.ctrl.Restore(ctx); !errors.Is(err, shared.ErrRefreshFailed) {
			t.Errorf("expected ErrRefreshFailed, got %v", err)
		}
		assertSignedOut(t, h)
	})

	t.Run("Expired With Successful Refresh", func(t *testing.T) {
		h := newHarness(t)
		h.seed(t, "old", start.Add(-time.Minute))

		if err := h.ctrl.Restore(ctx); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if h.tokens.Token() != "fresh" {
			t.Errorf("expected refreshed token, got %s", h.tokens.Token())
		}
		if s := h.ctrl.Snapshot(); s.State != Authenticated || !s.ExpiresAt.Equal(start.Add(time.Hour)) {
			t.Errorf("unexpected snapshot %+v", s)
		}
	})

	t.Run("Expired Token Queries Metadata First", func(t *testing.T) {
		h := newHarness(t)
		h.seed(t, "old", start.Add(-time.Minute))

		if err := h.ctrl.Restore(ctx); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if n := h.books.Calls("GET /oauth2/v1/tokeninfo"); n != 1 {
			t.Errorf("expected one tokeninfo query, got %d", n)
		}
		if h.auth.calls() != 1 {
			t.Errorf("expected one refresh after tokeninfo failed, got %d", h.auth.calls())
		}
	})

	t.Run("Expired Token Still Valid Per Metadata", func(t *testing.T) {
		h := newHarness(t)
		h.seed(t, "fresh", start.Add(-time.Minute))
		h.books.SetTokenInfo(600)

		if err := h.ctrl.Restore(ctx); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if h.auth.calls() != 0 {
			t.Errorf("expected no refresh, got %d", h.auth.calls())
		}
		if s := h.ctrl.Snapshot(); s.State != Authenticated || !s.ExpiresAt.Equal(start.Add(10*time.Minute)) {
			t.Errorf("unexpected snapshot %+v", s)
		}
	})

	t.Run("Unknown Expiry Recovered", func(t *testing.T) {
		h := newHarness(t)
		h.seed(t, "fresh", time.Time{})
		h.books.SetTokenInfo(1200)

		if err := h.ctrl.Restore(ctx); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if s := h.ctrl.Snapshot(); !s.ExpiresAt.Equal(start.Add(20 * time.Minute)) {
			t.Errorf("expected recovered expiry, got %v", s.ExpiresAt)
		}
		if _, expiresAt, _, _ := h.tokens.Load(); !expiresAt.Equal(start.Add(20 * time.Minute)) {
			t.Errorf("expected recovered expiry to be stored, got %v", expiresAt)
		}
		if h.auth.calls() != 0 {
			t.Errorf("expected no refresh, got %d", h.auth.calls())
		}
	})

	t.Run("Unknown Expiry Falls Back To Refresh", func(t *testing.T) {
		h := newHarness(t)
		h.seed(t, "fresh", time.Time{})

		if err := h.ctrl.Restore(ctx); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if h.auth.calls() != 1 {
			t.Errorf("expected one refresh, got %d", h.auth.calls())
		}
	})
}

func TestControllerUnauthorized(t *testing.T) {
	ctx := context.Background()

	t.Run("Refreshes Once Without Retrying", func(t *testing.T) {
		h := newHarness(t)
		h.seed(t, "stale", start.Add(30*time.Minute))
		if err := h.ctrl.Restore(ctx); err != nil {
			t.Fatalf("unexpected restore error: %v", err)
		}

		_, err := h.google.Shelves(ctx)
		if !services.IsUnauthorized(err) {
			t.Fatalf("expected 401 error, got %v", err)
		}
		if h.auth.calls() != 1 {
			t.Errorf("expected one refresh, got %d", h.auth.calls())
		}
		if h.books.Calls("GET /books/v1/mylibrary/bookshelves") != 1 {
			t.Errorf("expected request not to be retried, got %d", h.books.Calls("GET /books/v1/mylibrary/bookshelves"))
		}
		if s := h.ctrl.Snapshot(); s.State != Authenticated {
			t.Errorf("expected Authenticated, got %s", s.StateName)
		}

		if _, err := h.google.Shelves(ctx); err != nil {
			t.Errorf("expected follow-up request to succeed, got %v", err)
		}
	})

	t.Run("Failed Refresh Signs Out", func(t *testing.T) {
		h := newHarness(t)
		h.seed(t, "stale", start.Add(30*time.Minute))
		h.ctrl.Restore(ctx)
		h.auth.silentErr = shared.ErrRefreshFailed

		var states []State
		h.ctrl.Subscribe(func(s Snapshot) { states = append(states, s.State) })

		h.google.Shelves(ctx)

		assertSignedOut(t, h)
		if len(states) != 2 || states[0] != RefreshingSilently || states[1] != Unauthenticated {
			t.Errorf("unexpected transitions %v", states)
		}
	})

	t.Run("Ignored While Signed Out", func(t *testing.T) {
		h := newHarness(t)
		h.ctrl.HandleUnauthorized(ctx)
		if h.auth.calls() != 0 {
			t.Errorf("expected no refresh, got %d", h.auth.calls())
		}
	})

	t.Run("Concurrent Failures Coalesce", func(t *testing.T) {
		h := newHarness(t)
		h.seed(t, "stale", start.Add(30*time.Minute))
		h.ctrl.Restore(ctx)

		h.auth.gate = make(chan struct{})
		h.auth.entered = make(chan struct{}, 8)

		var wg sync.WaitGroup
		for range 5 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				h.google.Shelves(ctx)
			}()
		}

		<-h.auth.entered
		time.Sleep(50 * time.Millisecond)
		close(h.auth.gate)
		wg.Wait()

		if h.auth.calls() != 1 {
			t.Errorf("expected exactly one refresh, got %d", h.auth.calls())
		}
		if s := h.ctrl.Snapshot(); s.State != Authenticated {
			t.Errorf("expected Authenticated, got %s", s.StateName)
		}
	})
}

func TestControllerTimer(t *testing.T) {
	ctx := context.Background()

	t.Run("Refreshes Before Expiry", func(t *testing.T) {
		h := newHarness(t)
		if err := h.ctrl.Login(ctx); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		h.auth.silent = services.TokenResult{AccessToken: "fresh", ExpiresIn: 30 * time.Minute}

		h.clock.Advance(59 * time.Minute)

		if h.auth.calls() != 1 {
			t.Fatalf("expected scheduled refresh, got %d", h.auth.calls())
		}
		snap := h.ctrl.Snapshot()
		if snap.State != Authenticated {
			t.Errorf("expected Authenticated, got %s", snap.StateName)
		}
		if want := start.Add(59*time.Minute + 29*time.Minute); !snap.RefreshAt.Equal(want) {
			t.Errorf("expected next refresh at %v, got %v", want, snap.RefreshAt)
		}
	})

	t.Run("Failure Signs Out", func(t *testing.T) {
		h := newHarness(t)
		h.ctrl.Login(ctx)
		h.auth.silentErr = shared.ErrRefreshFailed

		h.clock.Advance(59 * time.Minute)

		assertSignedOut(t, h)
	})
}

func TestControllerLogout(t *testing.T) {
	ctx := context.Background()

	t.Run("Idempotent", func(t *testing.T) {
		h := newHarness(t)
		h.ctrl.Login(ctx)

		var states []State
		h.ctrl.Subscribe(func(s Snapshot) { states = append(states, s.State) })

		if err := h.ctrl.Logout(); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if err := h.ctrl.Logout(); err != nil {
			t.Fatalf("unexpected error on second logout: %v", err)
		}

		assertSignedOut(t, h)
		if len(states) != 2 || states[0] != LoggingOut || states[1] != Unauthenticated {
			t.Errorf("unexpected transitions %v", states)
		}
	})

	t.Run("Unsubscribe", func(t *testing.T) {
		h := newHarness(t)
		calls := 0
		unsubscribe := h.ctrl.Subscribe(func(Snapshot) { calls++ })
		unsubscribe()

		h.ctrl.Login(ctx)
		if calls != 0 {
			t.Errorf("expected no notifications, got %d", calls)
		}
	})

	t.Run("Discards Late Results", func(t *testing.T) {
		h := newHarness(t)
		gated := &gatedRemote{Remote: h.google, entered: make(chan struct{}, 1), release: make(chan struct{})}
		h.ctrl.remote = gated

		done := make(chan error, 1)
		go func() { done <- h.ctrl.Login(ctx) }()

		<-gated.entered
		if err := h.ctrl.Logout(); err != nil {
			t.Fatalf("unexpected logout error: %v", err)
		}
		close(gated.release)

		if err := <-done; err == nil {
			t.Error("expected login to report the ended session")
		}
		assertSignedOut(t, h)
	})
}
