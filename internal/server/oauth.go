package server

import (
	"fmt"
	"html/template"
	"net/http"
	"sync"

	"github.com/charmbracelet/log"
	"golang.org/x/oauth2"
)

// OAuthResult contains the result of an OAuth authorization flow.
type OAuthResult struct {
	Token *oauth2.Token
	err   error
}

func (o *OAuthResult) Error() error {
	return o.err
}

// OAuthHandler handles the loopback redirect of the authorization code flow.
// Implements the Handler interface for registration with a Router.
type OAuthHandler struct {
	config       *oauth2.Config
	state        string
	exchangeOpts []oauth2.AuthCodeOption
	resultChan   chan OAuthResult
	once         sync.Once
	callbackHit  bool
	mu           sync.Mutex
	logger       *log.Logger
}

// NewOAuthHandler creates a handler that accepts one callback carrying state.
//
// exchangeOpts are passed to [oauth2.Config.Exchange], e.g. [oauth2.VerifierOption] for PKCE.
func NewOAuthHandler(config *oauth2.Config, state string, exchangeOpts ...oauth2.AuthCodeOption) *OAuthHandler {
	return &OAuthHandler{
		config:       config,
		state:        state,
		exchangeOpts: exchangeOpts,
		resultChan:   make(chan OAuthResult, 1),
	}
}

// SetLogger sets the logger used to report page render failures.
func (h *OAuthHandler) SetLogger(logger *log.Logger) {
	h.logger = logger
}

// Routes returns the HTTP routes this handler serves.
func (h *OAuthHandler) Routes() []string {
	return []string{"/callback"}
}

// ServeHTTP validates state, exchanges the code and sends the result through the result channel.
func (h *OAuthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	if h.callbackHit {
		h.mu.Unlock()
		http.Error(w, "Callback already processed", http.StatusBadRequest)
		return
	}
	h.callbackHit = true
	h.mu.Unlock()

	q := r.URL.Query()
	if q.Get("state") != h.state {
		h.Send(OAuthResult{err: fmt.Errorf("invalid state parameter")})
		h.render(w, http.StatusBadRequest, "Sign-in failed", "The request could not be verified. Run the login command again.")
		return
	}

	code := q.Get("code")
	if code == "" {
		err := fmt.Errorf("authorization failed: %s - %s", q.Get("error"), q.Get("error_description"))
		h.Send(OAuthResult{err: err})
		h.render(w, http.StatusBadRequest, "Sign-in cancelled", "Google did not grant access. You can close this window.")
		return
	}

	token, err := h.config.Exchange(r.Context(), code, h.exchangeOpts...)
	if err != nil {
		h.Send(OAuthResult{err: fmt.Errorf("token exchange failed: %w", err)})
		h.render(w, http.StatusInternalServerError, "Sign-in failed", "The authorization code could not be exchanged.")
		return
	}

	h.Send(OAuthResult{Token: token})
	h.render(w, http.StatusOK, "Signed in to shelfx", "You can close this window and return to the terminal.")
}

// Send sends the OAuth result through the channel (only once).
func (h *OAuthHandler) Send(result OAuthResult) {
	h.once.Do(func() {
		h.resultChan <- result
		close(h.resultChan)
	})
}

// Result returns the result channel for receiving OAuth flow completion.
//
// Channel will receive exactly one result and then be closed.
func (h *OAuthHandler) Result() <-chan OAuthResult {
	return h.resultChan
}

var pageTmpl = template.Must(template.New("page").Parse(`<!DOCTYPE html>
<html>
<head>
    <title>{{.Title}}</title>
    <style>
        body { font-family: Georgia, "Times New Roman", serif; display: flex; align-items: center;
               justify-content: center; height: 100vh; margin: 0; background: #f4efe6; }
        .card { text-align: center; background: #fffdf8; padding: 2rem 3rem;
                border-radius: 6px; box-shadow: 0 2px 6px rgba(0,0,0,0.12); }
        h1 { color: #7a4b2a; margin: 0 0 1rem 0; }
        p { color: #555; margin: 0; }
    </style>
</head>
<body>
    <div class="card">
        <h1>{{.Title}}</h1>
        <p>{{.Message}}</p>
    </div>
</body>
</html>
`))

func (h *OAuthHandler) render(w http.ResponseWriter, status int, title, message string) {
	if err := renderPage(w, status, title, message); err != nil && h.logger != nil {
		h.logger.Warn("failed to render callback page", "status", status, "error", err)
	}
}

func renderPage(w http.ResponseWriter, status int, title, message string) error {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	return pageTmpl.Execute(w, struct{ Title, Message string }{title, message})
}
