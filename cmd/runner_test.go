package main

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/desertthunder/shelfx/internal/models"
	"github.com/desertthunder/shelfx/internal/repositories"
	"github.com/desertthunder/shelfx/internal/services"
	"github.com/desertthunder/shelfx/internal/shared"
	tu "github.com/desertthunder/shelfx/internal/testing"
	"github.com/urfave/cli/v3"
)

var now = time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)

type stubAuth struct {
	token string
	err   error
}

func (s *stubAuth) LoginInteractive(context.Context) (services.TokenResult, error) {
	return services.TokenResult{AccessToken: s.token, ExpiresIn: time.Hour, RefreshToken: "grant-1"}, s.err
}

func (s *stubAuth) LoginSilent(context.Context) (services.TokenResult, error) {
	return services.TokenResult{AccessToken: s.token, ExpiresIn: time.Hour}, s.err
}

func mustRunner(t *testing.T, opts RunnerOpts) *Runner {
	t.Helper()
	r, err := NewRunner(opts)
	if err != nil {
		t.Fatalf("NewRunner failed: %v", err)
	}
	t.Cleanup(r.Close)
	return r
}

type harness struct {
	books   *tu.FakeBooks
	storage *repositories.MemoryStorage
	out     *bytes.Buffer
	runner  *Runner
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		books:   tu.NewFakeBooks(t),
		storage: repositories.NewMemoryStorage(),
		out:     &bytes.Buffer{},
	}
	h.books.SetToken("fresh")
	h.runner = mustRunner(t, RunnerOpts{
		Storage: h.storage,
		Auth:    &stubAuth{token: "fresh"},
		BaseURL: h.books.URL(),
		Clock:   tu.NewFakeClock(now),
		Logger:  shared.NewLogger(io.Discard),
		Output:  h.out,
	})
	return h
}

// signIn stores a valid session so commands restore without network calls.
func (h *harness) signIn(t *testing.T) {
	t.Helper()
	tokens := repositories.NewTokenStore(h.storage)
	if err := tokens.Save("fresh", now.Add(time.Hour)); err != nil {
		t.Fatalf("failed to save token: %v", err)
	}
	if err := tokens.SaveProfile(&models.UserProfile{ID: "user-1", Name: "Test Reader", Email: "reader@example.com"}); err != nil {
		t.Fatalf("failed to save profile: %v", err)
	}
}

func (h *harness) run(args ...string) error {
	h.out.Reset()
	app := &cli.Command{
		Name:      "shelfx",
		Commands:  h.runner.register(),
		Writer:    io.Discard,
		ErrWriter: io.Discard,
	}
	return app.Run(context.Background(), append([]string{"shelfx"}, args...))
}

func TestRunner(t *testing.T) {
	t.Run("NewRunner", func(t *testing.T) {
		t.Run("with all dependencies provided", func(t *testing.T) {
			config := shared.DefaultConfig()
			logger := shared.NewLogger(nil)
			output := &bytes.Buffer{}
			httpClient := &http.Client{}

			runner := mustRunner(t, RunnerOpts{
				Config:     config,
				ConfigPath: "/test/path/config.toml",
				Logger:     logger,
				Output:     output,
				HTTPClient: httpClient,
			})

			if runner.config != config {
				t.Error("expected config to be set")
			}
			if runner.logger != logger {
				t.Error("expected logger to be set")
			}
			if runner.output != output {
				t.Error("expected output to be set")
			}
			if runner.httpClient != httpClient {
				t.Error("expected httpClient to be set")
			}
			if runner.configPath != "/test/path/config.toml" {
				t.Errorf("expected configPath to be set, got %s", runner.configPath)
			}
			if runner.session == nil || runner.library == nil || runner.engine == nil {
				t.Error("expected services to be wired")
			}
		})

		t.Run("with nil options uses defaults", func(t *testing.T) {
			runner := mustRunner(t, RunnerOpts{})

			if runner.config == nil {
				t.Error("expected default config to be set")
			}
			if runner.logger == nil {
				t.Error("expected default logger to be set")
			}
			if runner.output != os.Stdout {
				t.Error("expected output to default to os.Stdout")
			}
			if runner.httpClient != http.DefaultClient {
				t.Error("expected httpClient to default to http.DefaultClient")
			}
		})

		t.Run("without credentials login reports them missing", func(t *testing.T) {
			runner := mustRunner(t, RunnerOpts{Logger: shared.NewLogger(io.Discard), Output: io.Discard})

			err := runner.session.Login(context.Background())
			if !errors.Is(err, shared.ErrMissingCredentials) {
				t.Errorf("expected ErrMissingCredentials, got %v", err)
			}
		})
	})

	t.Run("writeJSON", func(t *testing.T) {
		t.Run("writes formatted JSON successfully", func(t *testing.T) {
			output := &bytes.Buffer{}
			runner := mustRunner(t, RunnerOpts{Output: output})

			if err := runner.writeJSON(map[string]string{"key": "value"}, true); err != nil {
				t.Fatalf("expected no error, got %v", err)
			}

			result := output.String()
			if !strings.Contains(result, `"key": "value"`) {
				t.Errorf("expected formatted JSON, got %s", result)
			}
			if !strings.HasSuffix(result, "\n") {
				t.Error("expected output to end with newline")
			}
		})

		t.Run("writes compact JSON successfully", func(t *testing.T) {
			output := &bytes.Buffer{}
			runner := mustRunner(t, RunnerOpts{Output: output})

			if err := runner.writeJSON(map[string]string{"key": "value"}, false); err != nil {
				t.Fatalf("expected no error, got %v", err)
			}

			expected := `{"key":"value"}` + "\n"
			if result := output.String(); result != expected {
				t.Errorf("expected %q, got %q", expected, result)
			}
		})

		t.Run("handles marshal error with non-serializable data", func(t *testing.T) {
			runner := mustRunner(t, RunnerOpts{Output: &bytes.Buffer{}})

			err := runner.writeJSON(make(chan int), false)
			if err == nil || !strings.Contains(err.Error(), "failed to marshal JSON") {
				t.Errorf("expected marshal error, got %v", err)
			}
		})

		t.Run("handles write failure", func(t *testing.T) {
			runner := mustRunner(t, RunnerOpts{Output: &tu.FWriter{}})

			err := runner.writeJSON(map[string]string{"key": "value"}, false)
			if err == nil || !strings.Contains(err.Error(), "failed to write output") {
				t.Errorf("expected write error, got %v", err)
			}
		})

		t.Run("handles newline write failure", func(t *testing.T) {
			limitedWriter := tu.NewLimitedWriter(1, 0, &bytes.Buffer{})
			runner := mustRunner(t, RunnerOpts{Output: &limitedWriter})

			err := runner.writeJSON(map[string]string{"key": "value"}, false)
			if err == nil || !strings.Contains(err.Error(), "failed to write newline") {
				t.Errorf("expected newline write error, got %v", err)
			}
		})
	})

	t.Run("writePlain", func(t *testing.T) {
		output := &bytes.Buffer{}
		runner := mustRunner(t, RunnerOpts{Output: output})

		if err := runner.writePlain("hello %s", "world"); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if result := output.String(); result != "hello world" {
			t.Errorf("expected 'hello world', got %q", result)
		}
	})
}

func TestAuthCommands(t *testing.T) {
	t.Run("Status Signed Out", func(t *testing.T) {
		h := newHarness(t)

		if err := h.run("auth", "status"); err != nil {
			t.Fatalf("status failed: %v", err)
		}
		if !strings.Contains(h.out.String(), "Not signed in") {
			t.Errorf("unexpected output %q", h.out.String())
		}
	})

	t.Run("Login Then Logout", func(t *testing.T) {
		h := newHarness(t)

		if err := h.run("auth", "login"); err != nil {
			t.Fatalf("login failed: %v", err)
		}
		if !strings.Contains(h.out.String(), "Signed in as Test Reader") {
			t.Errorf("unexpected output %q", h.out.String())
		}
		if grant, ok := repositories.NewTokenStore(h.storage).LoadGrant(); !ok || grant != "grant-1" {
			t.Errorf("expected grant to be stored, got %q", grant)
		}

		if err := h.run("auth", "logout"); err != nil {
			t.Fatalf("logout failed: %v", err)
		}
		if _, _, ok, _ := repositories.NewTokenStore(h.storage).Load(); ok {
			t.Error("expected token to be cleared")
		}
	})

	t.Run("Status JSON From Cache", func(t *testing.T) {
		h := newHarness(t)
		h.signIn(t)

		if err := h.run("auth", "status", "--json"); err != nil {
			t.Fatalf("status failed: %v", err)
		}
		if out := h.out.String(); !strings.Contains(out, `"authenticated": true`) || !strings.Contains(out, "user-1") {
			t.Errorf("unexpected output %q", out)
		}
		if n := h.books.TotalCalls(); n != 0 {
			t.Errorf("expected no network calls, got %d", n)
		}
	})

	t.Run("Restore Requires Session", func(t *testing.T) {
		h := newHarness(t)

		if err := h.run("auth", "restore"); !errors.Is(err, shared.ErrNotAuthenticated) {
			t.Errorf("expected ErrNotAuthenticated, got %v", err)
		}
	})
}

func TestShelfCommands(t *testing.T) {
	t.Run("Require Session", func(t *testing.T) {
		h := newHarness(t)

		if err := h.run("shelves", "list"); !errors.Is(err, shared.ErrNotAuthenticated) {
			t.Errorf("expected ErrNotAuthenticated, got %v", err)
		}
	})

	t.Run("Add List Remove", func(t *testing.T) {
		h := newHarness(t)
		h.signIn(t)

		if err := h.run("shelves", "add", "--shelf", "to-read", "vol1"); err != nil {
			t.Fatalf("add failed: %v", err)
		}
		if got := h.books.ShelfContents(models.WantToRead); len(got) != 1 || got[0] != "vol1" {
			t.Errorf("expected vol1 on Want to read, got %v", got)
		}

		if err := h.run("shelves", "volumes", "to-read"); err != nil {
			t.Fatalf("volumes failed: %v", err)
		}
		if !strings.Contains(h.out.String(), "[vol1]") {
			t.Errorf("unexpected output %q", h.out.String())
		}

		if err := h.run("shelves", "remove", "--shelf", "2", "vol1"); err != nil {
			t.Fatalf("remove failed: %v", err)
		}
		if got := h.books.ShelfContents(models.WantToRead); len(got) != 0 {
			t.Errorf("expected shelf to be empty, got %v", got)
		}
	})

	t.Run("Unknown Shelf", func(t *testing.T) {
		h := newHarness(t)
		h.signIn(t)

		if err := h.run("shelves", "add", "--shelf", "bogus", "vol1"); !errors.Is(err, shared.ErrInvalidArgument) {
			t.Errorf("expected ErrInvalidArgument, got %v", err)
		}
	})

	t.Run("Move", func(t *testing.T) {
		h := newHarness(t)
		h.signIn(t)
		h.books.Seed(models.WantToRead, tu.Book("vol1", "Dune", "Frank Herbert"))

		if err := h.run("shelves", "move", "--from", "to-read", "--to", "reading", "vol1"); err != nil {
			t.Fatalf("move failed: %v", err)
		}
		if len(h.books.ShelfContents(models.WantToRead)) != 0 || len(h.books.ShelfContents(models.CurrentlyReading)) != 1 {
			t.Error("expected vol1 to move to Currently reading")
		}
	})

	t.Run("Save And Status", func(t *testing.T) {
		h := newHarness(t)
		h.signIn(t)
		h.books.Seed(models.WantToRead, tu.Book("vol1", "Dune", "Frank Herbert"))

		if err := h.run("shelves", "save", "--shelf", "reading", "--shelf", "favorites", "vol1"); err != nil {
			t.Fatalf("save failed: %v", err)
		}
		if out := h.out.String(); !strings.Contains(out, "2 succeeded") && !strings.Contains(out, "3 succeeded") {
			t.Errorf("unexpected output %q", out)
		}

		if err := h.run("shelves", "status", "--json", "vol1"); err != nil {
			t.Fatalf("status failed: %v", err)
		}
		out := h.out.String()
		if !strings.Contains(out, `"favorite": true`) || strings.Contains(out, `"favorite_local": true`) {
			t.Errorf("expected remote favorite, got %q", out)
		}
		if len(h.books.ShelfContents(models.WantToRead)) != 0 {
			t.Error("expected vol1 removed from Want to read")
		}
	})
}

func TestFavoriteAndLocalCommands(t *testing.T) {
	h := newHarness(t)
	h.signIn(t)
	h.books.Seed(models.HaveRead, tu.Book("vol1", "Dune", "Frank Herbert"))
	h.books.FailShelf(models.Favorites, http.StatusServiceUnavailable)

	if err := h.run("favorite", "add", "vol1"); err != nil {
		t.Fatalf("favorite add failed: %v", err)
	}
	if out := h.out.String(); !strings.Contains(out, "Favorited Dune locally") {
		t.Errorf("unexpected output %q", out)
	}

	if err := h.run("favorite", "check", "vol1"); err != nil {
		t.Fatalf("favorite check failed: %v", err)
	}
	if !strings.Contains(h.out.String(), "saved locally") {
		t.Errorf("unexpected output %q", h.out.String())
	}

	if err := h.run("local", "list"); err != nil {
		t.Fatalf("local list failed: %v", err)
	}
	if !strings.Contains(h.out.String(), "Dune [vol1]") {
		t.Errorf("unexpected output %q", h.out.String())
	}

	h.books.FailShelf(models.Favorites, 0)
	if err := h.run("local", "sync"); err != nil {
		t.Fatalf("local sync failed: %v", err)
	}
	if !strings.Contains(h.out.String(), "1 synced, 0 still local") {
		t.Errorf("unexpected output %q", h.out.String())
	}
	if got := h.books.ShelfContents(models.Favorites); len(got) != 1 || got[0] != "vol1" {
		t.Errorf("expected vol1 on Favorites, got %v", got)
	}
}

func TestBooksCommands(t *testing.T) {
	t.Run("Search Marks Favorites", func(t *testing.T) {
		h := newHarness(t)
		h.signIn(t)
		h.books.Seed(models.Favorites, tu.Book("vol1", "Dune", "Frank Herbert"))
		h.books.Seed(models.HaveRead, tu.Book("vol2", "Dune Messiah", "Frank Herbert"))

		if err := h.run("books", "search", "--json", "dune"); err != nil {
			t.Fatalf("search failed: %v", err)
		}
		out := h.out.String()
		if strings.Count(out, `"favorite": true`) != 1 || !strings.Contains(out, "Dune Messiah") {
			t.Errorf("unexpected output %q", out)
		}
	})

	t.Run("Search Needs Terms", func(t *testing.T) {
		h := newHarness(t)

		if err := h.run("books", "search"); !errors.Is(err, shared.ErrMissingArgument) {
			t.Errorf("expected ErrMissingArgument, got %v", err)
		}
	})

	t.Run("Show", func(t *testing.T) {
		h := newHarness(t)
		h.books.Seed(models.HaveRead, tu.Book("vol1", "Dune", "Frank Herbert"))

		if err := h.run("books", "show", "vol1"); err != nil {
			t.Fatalf("show failed: %v", err)
		}
		if out := h.out.String(); !strings.Contains(out, "Dune") || !strings.Contains(out, "Frank Herbert") {
			t.Errorf("unexpected output %q", out)
		}
	})

	t.Run("Recommend", func(t *testing.T) {
		h := newHarness(t)
		h.signIn(t)
		h.books.Seed(models.Favorites, tu.Book("vol1", "Dune", "Frank Herbert"))
		h.books.Seed(models.HaveRead, tu.Book("vol2", "Children of Dune", "Frank Herbert"))

		if err := h.run("recommend", "--mode", "author"); err != nil {
			t.Fatalf("recommend failed: %v", err)
		}
		out := h.out.String()
		if !strings.Contains(out, "Children of Dune") || strings.Contains(out, "[vol1]") {
			t.Errorf("unexpected output %q", out)
		}
	})

	t.Run("Recommend Rejects Mode", func(t *testing.T) {
		h := newHarness(t)

		if err := h.run("recommend", "--mode", "mood"); !errors.Is(err, shared.ErrInvalidFlag) {
			t.Errorf("expected ErrInvalidFlag, got %v", err)
		}
	})
}

func TestExportCommand(t *testing.T) {
	t.Run("Files", func(t *testing.T) {
		h := newHarness(t)
		h.signIn(t)
		h.books.Seed(models.Favorites, tu.Book("vol1", "Dune", "Frank Herbert"))
		dir := t.TempDir()

		if err := h.run("export", "--format", "csv", "--output", dir, "--rate", "100", "--shelf", "favorites"); err != nil {
			t.Fatalf("export failed: %v", err)
		}
		if !strings.Contains(h.out.String(), "1 exported, 0 failed") {
			t.Errorf("unexpected output %q", h.out.String())
		}
		tu.AssertFileExists(t, dir+"/favorites_volumes.csv")
	})

	t.Run("Dump", func(t *testing.T) {
		h := newHarness(t)
		h.signIn(t)
		h.books.Seed(models.HaveRead, tu.Book("vol1", "Dune", "Frank Herbert"))

		if err := h.run("export", "--dump"); err != nil {
			t.Fatalf("dump failed: %v", err)
		}
		if out := h.out.String(); !strings.Contains(out, `"shelves"`) || !strings.Contains(out, "vol1") {
			t.Errorf("unexpected output %q", out)
		}
	})

	t.Run("History Without Database", func(t *testing.T) {
		h := newHarness(t)

		if err := h.run("export", "history"); !errors.Is(err, shared.ErrServiceUnavailable) {
			t.Errorf("expected ErrServiceUnavailable, got %v", err)
		}
	})
}

func TestShelfMaintenanceCommands(t *testing.T) {
	t.Run("Reorder", func(t *testing.T) {
		h := newHarness(t)
		h.signIn(t)
		h.books.Seed(models.WantToRead, tu.Book("a", "Emma", "Jane Austen"), tu.Book("b", "Dune", "Frank Herbert"))

		if err := h.run("shelves", "reorder", "--shelf", "to-read", "--position", "0", "b"); err != nil {
			t.Fatalf("reorder failed: %v", err)
		}
		if got := h.books.ShelfContents(models.WantToRead); len(got) != 2 || got[0] != "b" {
			t.Errorf("expected b first, got %v", got)
		}
	})

	t.Run("Clear Requires Confirmation", func(t *testing.T) {
		h := newHarness(t)
		h.signIn(t)
		h.books.Seed(models.HaveRead, tu.Book("a", "Emma", "Jane Austen"))

		if err := h.run("shelves", "clear", "finished"); !errors.Is(err, shared.ErrInvalidFlag) {
			t.Errorf("expected ErrInvalidFlag, got %v", err)
		}
		if len(h.books.ShelfContents(models.HaveRead)) != 1 {
			t.Error("expected shelf to be untouched")
		}

		if err := h.run("shelves", "clear", "--yes", "finished"); err != nil {
			t.Fatalf("clear failed: %v", err)
		}
		if got := h.books.ShelfContents(models.HaveRead); len(got) != 0 {
			t.Errorf("expected empty shelf, got %v", got)
		}
	})

	t.Run("Public Shelves", func(t *testing.T) {
		h := newHarness(t)
		h.books.Seed(models.HaveRead, tu.Book("a", "Emma", "Jane Austen"))

		if err := h.run("books", "public", "user-1"); err != nil {
			t.Fatalf("public failed: %v", err)
		}
		if !strings.Contains(h.out.String(), "user-1's public shelves") {
			t.Errorf("unexpected output %q", h.out.String())
		}

		if err := h.run("books", "public", "--shelf", "finished", "user-1"); err != nil {
			t.Fatalf("public shelf failed: %v", err)
		}
		if !strings.Contains(h.out.String(), "Jane Austen - Emma [a]") {
			t.Errorf("unexpected output %q", h.out.String())
		}
	})
}
