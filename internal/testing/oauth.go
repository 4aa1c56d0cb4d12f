package testing

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
)

// FakeTokenServer is an OAuth2 token endpoint supporting the authorization_code and refresh_token grants.
type FakeTokenServer struct {
	Server *httptest.Server

	mu          sync.Mutex
	accessToken string
	expiresIn   int
	failRefresh bool
	refreshes   int
	exchanges   int
	onRefresh   func()
}

// NewFakeTokenServer issues accessToken with a one hour lifetime.
func NewFakeTokenServer(t *testing.T, accessToken string) *FakeTokenServer {
	t.Helper()
	f := &FakeTokenServer{accessToken: accessToken, expiresIn: 3600}
	f.Server = httptest.NewServer(http.HandlerFunc(f.serve))
	t.Cleanup(f.Server.Close)
	return f
}

// URL is the token endpoint.
func (f *FakeTokenServer) URL() string { return f.Server.URL + "/token" }

// SetAccessToken changes the token returned by subsequent grants.
func (f *FakeTokenServer) SetAccessToken(token string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.accessToken = token
}

// SetExpiresIn changes the lifetime in seconds of subsequent tokens.
func (f *FakeTokenServer) SetExpiresIn(seconds int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.expiresIn = seconds
}

// FailRefresh makes refresh_token grants answer invalid_grant.
func (f *FakeTokenServer) FailRefresh(fail bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failRefresh = fail
}

// OnRefresh runs fn at the start of every refresh_token grant, before responding.
func (f *FakeTokenServer) OnRefresh(fn func()) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.onRefresh = fn
}

// Refreshes returns the number of refresh_token grants received.
func (f *FakeTokenServer) Refreshes() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.refreshes
}

// Exchanges returns the number of authorization_code grants received.
func (f *FakeTokenServer) Exchanges() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.exchanges
}

func (f *FakeTokenServer) serve(w http.ResponseWriter, r *http.Request) {
	r.ParseForm()

	f.mu.Lock()
	hook := f.onRefresh
	grant := r.Form.Get("grant_type")
	if grant == "refresh_token" {
		f.refreshes++
	} else {
		f.exchanges++
	}
	fail := f.failRefresh
	token, expiresIn := f.accessToken, f.expiresIn
	f.mu.Unlock()

	if grant == "refresh_token" && hook != nil {
		hook()
	}

	w.Header().Set("Content-Type", "application/json")
	if grant == "refresh_token" && fail {
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(map[string]string{"error": "invalid_grant", "error_description": "Token has been expired or revoked."})
		return
	}

	resp := map[string]any{"access_token": token, "token_type": "Bearer", "expires_in": expiresIn}
	if grant != "refresh_token" {
		resp["refresh_token"] = "refresh-" + token
	}
	json.NewEncoder(w).Encode(resp)
}
