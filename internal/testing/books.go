package testing

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/desertthunder/shelfx/internal/models"
)

// FakeBooks is an in-process Google Books and OAuth2 API.
//
// Requests must carry "Bearer <Token>" unless Token is empty. Failures are
// injected per shelf or per action with [FakeBooks.FailShelf] and [FakeBooks.FailAction].
type FakeBooks struct {
	Server *httptest.Server

	mu                 sync.Mutex
	token              string
	profile            models.UserProfile
	profileStatus      int
	tokenInfoExpiresIn int
	shelves            map[models.ShelfID][]string
	titles             map[models.ShelfID]string
	volumes            map[string]models.Volume
	failShelf          map[models.ShelfID]int
	failAction         map[string]int
	calls              []string
}

// NewFakeBooks starts a fake API with the four main shelves, empty.
func NewFakeBooks(t *testing.T) *FakeBooks {
	t.Helper()

	f := &FakeBooks{
		profile:    models.UserProfile{ID: "user-1", Name: "Test Reader", Email: "reader@example.com"},
		shelves:    make(map[models.ShelfID][]string),
		titles:     make(map[models.ShelfID]string),
		volumes:    make(map[string]models.Volume),
		failShelf:  make(map[models.ShelfID]int),
		failAction: make(map[string]int),
	}
	for _, id := range models.MainShelves {
		f.shelves[id] = nil
		f.titles[id] = id.String()
	}

	f.Server = httptest.NewServer(http.HandlerFunc(f.serve))
	t.Cleanup(f.Server.Close)
	return f
}

// URL is the base URL to configure the transport with.
func (f *FakeBooks) URL() string { return f.Server.URL }

// SetToken sets the only accepted bearer token.
func (f *FakeBooks) SetToken(token string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.token = token
}

// SetProfile sets the userinfo response.
func (f *FakeBooks) SetProfile(p models.UserProfile) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.profile = p
}

// SetProfileStatus makes userinfo fail with status (0 restores success).
func (f *FakeBooks) SetProfileStatus(status int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.profileStatus = status
}

// SetTokenInfo makes tokeninfo report expiresIn seconds (0 answers invalid_token).
func (f *FakeBooks) SetTokenInfo(expiresIn int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tokenInfoExpiresIn = expiresIn
}

// AddShelf registers a non-main shelf.
func (f *FakeBooks) AddShelf(id models.ShelfID, title string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.titles[id] = title
	if _, ok := f.shelves[id]; !ok {
		f.shelves[id] = nil
	}
}

// Seed places volumes on the shelf.
func (f *FakeBooks) Seed(id models.ShelfID, vols ...models.Volume) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, v := range vols {
		f.volumes[v.ID] = v
		if !contains(f.shelves[id], v.ID) {
			f.shelves[id] = append(f.shelves[id], v.ID)
		}
	}
}

// FailShelf makes every request touching the shelf return status (0 clears).
func (f *FakeBooks) FailShelf(id models.ShelfID, status int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failShelf[id] = status
}

// FailAction makes "addVolume", "removeVolume", ... on any shelf return status (0 clears).
func (f *FakeBooks) FailAction(action string, status int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failAction[action] = status
}

// ShelfContents returns the volume ids on the shelf.
func (f *FakeBooks) ShelfContents(id models.ShelfID) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.shelves[id]...)
}

// Calls returns the number of requests whose "METHOD path" starts with prefix.
func (f *FakeBooks) Calls(prefix string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		if strings.HasPrefix(c, prefix) {
			n++
		}
	}
	return n
}

// TotalCalls returns the number of requests served.
func (f *FakeBooks) TotalCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func (f *FakeBooks) serve(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.calls = append(f.calls, r.Method+" "+r.URL.Path)
	path := r.URL.Path

	if path == "/oauth2/v1/tokeninfo" {
		if f.tokenInfoExpiresIn <= 0 || (f.token != "" && r.URL.Query().Get("access_token") != f.token) {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid_token", "error_description": "Invalid Value"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"audience": "client", "scope": "books", "expires_in": f.tokenInfoExpiresIn})
		return
	}

	if strings.HasPrefix(path, "/books/v1/volumes") {
		f.serveCatalog(w, r)
		return
	}
	if strings.HasPrefix(path, "/books/v1/users/") {
		f.servePublic(w, r, strings.TrimPrefix(path, "/books/v1/users/"))
		return
	}

	if f.token != "" && r.Header.Get("Authorization") != "Bearer "+f.token {
		writeGoogleError(w, http.StatusUnauthorized, "authError", "Invalid Credentials")
		return
	}

	switch {
	case path == "/oauth2/v2/userinfo":
		if f.profileStatus != 0 {
			writeGoogleError(w, f.profileStatus, "backendError", "profile unavailable")
			return
		}
		writeJSON(w, http.StatusOK, f.profile)
	case path == "/books/v1/mylibrary/bookshelves":
		items := []models.Shelf{}
		for id, vols := range f.shelves {
			items = append(items, models.Shelf{ID: id, Title: f.titles[id], VolumeCount: len(vols)})
		}
		writeJSON(w, http.StatusOK, map[string]any{"kind": "books#bookshelves", "items": items})
	case strings.HasPrefix(path, "/books/v1/mylibrary/bookshelves/"):
		f.serveShelf(w, r, strings.TrimPrefix(path, "/books/v1/mylibrary/bookshelves/"))
	default:
		writeGoogleError(w, http.StatusNotFound, "notFound", "Not Found")
	}
}

func (f *FakeBooks) serveShelf(w http.ResponseWriter, r *http.Request, rest string) {
	idStr, action, _ := strings.Cut(rest, "/")
	n, err := strconv.Atoi(idStr)
	if err != nil {
		writeGoogleError(w, http.StatusBadRequest, "invalid", "bad shelf id")
		return
	}
	id := models.ShelfID(n)

	if status := f.failShelf[id]; status != 0 {
		writeGoogleError(w, status, "backendError", fmt.Sprintf("shelf %d unavailable", n))
		return
	}
	if status := f.failAction[action]; status != 0 {
		writeGoogleError(w, status, "backendError", action+" failed")
		return
	}

	vols, ok := f.shelves[id]
	if !ok {
		writeGoogleError(w, http.StatusNotFound, "notFound", "The bookshelf ID could not be found.")
		return
	}

	volumeID := r.URL.Query().Get("volumeId")
	switch action {
	case "":
		writeJSON(w, http.StatusOK, models.Shelf{ID: id, Title: f.titles[id], VolumeCount: len(vols)})
	case "volumes":
		start, _ := strconv.Atoi(r.URL.Query().Get("startIndex"))
		max, _ := strconv.Atoi(r.URL.Query().Get("maxResults"))
		if max <= 0 {
			max = 10
		}
		items := []models.Volume{}
		for i := start; i < len(vols) && i < start+max; i++ {
			items = append(items, f.volumes[vols[i]])
		}
		writeJSON(w, http.StatusOK, map[string]any{"totalItems": len(vols), "items": items})
	case "addVolume":
		if !contains(vols, volumeID) {
			f.shelves[id] = append(vols, volumeID)
			if _, ok := f.volumes[volumeID]; !ok {
				f.volumes[volumeID] = models.Volume{ID: volumeID, Info: models.VolumeInfo{Title: volumeID}}
			}
		}
		w.WriteHeader(http.StatusNoContent)
	case "removeVolume":
		kept := []string{}
		for _, v := range vols {
			if v != volumeID {
				kept = append(kept, v)
			}
		}
		f.shelves[id] = kept
		w.WriteHeader(http.StatusNoContent)
	case "moveVolume":
		pos, _ := strconv.Atoi(r.URL.Query().Get("volumePosition"))
		kept := []string{}
		for _, v := range vols {
			if v != volumeID {
				kept = append(kept, v)
			}
		}
		pos = min(max(pos, 0), len(kept))
		kept = append(kept[:pos], append([]string{volumeID}, kept[pos:]...)...)
		f.shelves[id] = kept
		w.WriteHeader(http.StatusNoContent)
	case "clearVolumes":
		f.shelves[id] = nil
		w.WriteHeader(http.StatusNoContent)
	default:
		writeGoogleError(w, http.StatusNotFound, "notFound", "Not Found")
	}
}

func (f *FakeBooks) serveCatalog(w http.ResponseWriter, r *http.Request) {
	if id := strings.TrimPrefix(r.URL.Path, "/books/v1/volumes/"); id != r.URL.Path && id != "" {
		v, ok := f.volumes[id]
		if !ok {
			writeGoogleError(w, http.StatusNotFound, "notFound", "The volume ID could not be found.")
			return
		}
		writeJSON(w, http.StatusOK, v)
		return
	}

	q := strings.ToLower(r.URL.Query().Get("q"))
	items := []models.Volume{}
	for _, v := range f.volumes {
		if matchesQuery(v, q) {
			items = append(items, v)
		}
	}
	sortVolumes(items)
	if max, _ := strconv.Atoi(r.URL.Query().Get("maxResults")); max > 0 && len(items) > max {
		items = items[:max]
	}
	writeJSON(w, http.StatusOK, map[string]any{"totalItems": len(items), "items": items})
}

// servePublic exposes the fake user's shelves as public under their profile id.
func (f *FakeBooks) servePublic(w http.ResponseWriter, r *http.Request, rest string) {
	uid, rest, _ := strings.Cut(rest, "/")
	if uid != f.profile.ID || !strings.HasPrefix(rest, "bookshelves") {
		writeGoogleError(w, http.StatusNotFound, "notFound", "The user could not be found.")
		return
	}
	if rest == "bookshelves" {
		items := []models.Shelf{}
		for _, id := range models.MainShelves {
			items = append(items, models.Shelf{ID: id, Title: f.titles[id], Access: "PUBLIC", VolumeCount: len(f.shelves[id])})
		}
		writeJSON(w, http.StatusOK, map[string]any{"kind": "books#bookshelves", "items": items})
		return
	}
	f.serveShelf(w, r, strings.TrimPrefix(rest, "bookshelves/"))
}

func matchesQuery(v models.Volume, q string) bool {
	field, term, ok := strings.Cut(q, ":")
	term = strings.Trim(term, `"`)
	if !ok {
		return strings.Contains(strings.ToLower(v.Info.Title), q)
	}
	switch field {
	case "inauthor":
		for _, a := range v.Info.Authors {
			if strings.EqualFold(a, term) {
				return true
			}
		}
	case "subject":
		for _, c := range v.Info.Categories {
			if strings.HasPrefix(strings.ToLower(c), term) {
				return true
			}
		}
	case "intitle":
		return strings.Contains(strings.ToLower(v.Info.Title), term)
	}
	return false
}

func sortVolumes(items []models.Volume) {
	for i := 1; i < len(items); i++ {
		for j := i; j > 0 && items[j].ID < items[j-1].ID; j-- {
			items[j], items[j-1] = items[j-1], items[j]
		}
	}
}

func contains(ids []string, id string) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeGoogleError(w http.ResponseWriter, status int, reason, message string) {
	writeJSON(w, status, map[string]any{
		"error": map[string]any{
			"code":    status,
			"message": message,
			"errors":  []map[string]string{{"reason": reason, "message": message}},
		},
	})
}

// Book is a shorthand constructor for test volumes.
func Book(id, title string, authors ...string) models.Volume {
	return models.Volume{ID: id, Info: models.VolumeInfo{Title: title, Authors: authors}}
}
