package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/oauth2"

	"github.com/desertthunder/shelfx/internal/server"
	"github.com/desertthunder/shelfx/internal/shared"
)

const (
	defaultLoginTimeout = 2 * time.Minute
	defaultExpiresIn    = time.Hour
)

// TokenResult is a freshly issued access token.
type TokenResult struct {
	AccessToken  string
	ExpiresIn    time.Duration
	RefreshToken string
}

// GrantStore provides the refresh token used for silent login.
type GrantStore interface {
	LoadGrant() (string, bool)
}

// AuthOpts configures an [AuthClient].
type AuthOpts struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
	// CallbackAddr is the host:port the loopback server binds.
	CallbackAddr string
	// Endpoint defaults to Google's OAuth2 endpoints.
	Endpoint    oauth2.Endpoint
	Grants      GrantStore
	HTTPClient  *http.Client
	Out         io.Writer
	OpenBrowser func(url string) error
	Timeout     time.Duration
	Logger      *log.Logger
}

// AuthClient obtains access tokens from Google, interactively through the
// browser or silently from a stored refresh grant.
type AuthClient struct {
	config      *oauth2.Config
	addr        string
	grants      GrantStore
	httpClient  *http.Client
	out         io.Writer
	openBrowser func(string) error
	timeout     time.Duration
	logger      *log.Logger
	now         func() time.Time
}

// NewAuthClient validates credentials and builds the OAuth2 config.
func NewAuthClient(opts AuthOpts) (*AuthClient, error) {
	if opts.ClientID == "" {
		return nil, fmt.Errorf("%w: missing client_id", shared.ErrMissingCredentials)
	}
	if opts.ClientSecret == "" {
		return nil, fmt.Errorf("%w: missing client_secret", shared.ErrMissingCredentials)
	}
	if opts.Endpoint.AuthURL == "" && opts.Endpoint.TokenURL == "" {
		opts.Endpoint = oauth2.Endpoint{AuthURL: googleAuthURL, TokenURL: googleTokenURL, AuthStyle: oauth2.AuthStyleInParams}
	}
	if opts.CallbackAddr == "" {
		opts.CallbackAddr = "127.0.0.1:8085"
	}
	if opts.RedirectURL == "" {
		opts.RedirectURL = "http://" + opts.CallbackAddr + "/callback"
	}
	if opts.Out == nil {
		opts.Out = io.Discard
	}
	if opts.OpenBrowser == nil {
		opts.OpenBrowser = shared.OpenBrowser
	}
	if opts.Timeout <= 0 {
		opts.Timeout = defaultLoginTimeout
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(io.Discard)
	}

	return &AuthClient{
		config: &oauth2.Config{
			ClientID:     opts.ClientID,
			ClientSecret: opts.ClientSecret,
			RedirectURL:  opts.RedirectURL,
			Scopes:       Scopes,
			Endpoint:     opts.Endpoint,
		},
		addr:        opts.CallbackAddr,
		grants:      opts.Grants,
		httpClient:  opts.HTTPClient,
		out:         opts.Out,
		openBrowser: opts.OpenBrowser,
		timeout:     opts.Timeout,
		logger:      opts.Logger,
		now:         time.Now,
	}, nil
}

// AuthURL returns the consent URL for state and PKCE verifier.
//
// Consent is always prompted so a missing Books scope can be granted on re-login.
func (a *AuthClient) AuthURL(state, verifier string) string {
	return a.config.AuthCodeURL(state,
		oauth2.AccessTypeOffline,
		oauth2.SetAuthURLParam("prompt", "consent"),
		oauth2.SetAuthURLParam("include_granted_scopes", "true"),
		oauth2.S256ChallengeOption(verifier),
	)
}

// LoginInteractive runs the authorization code flow through a loopback server
// and the system browser. It blocks until the redirect arrives, ctx is done, or
// the login timeout elapses.
func (a *AuthClient) LoginInteractive(ctx context.Context) (TokenResult, error) {
	state, err := shared.GenerateState()
	if err != nil {
		return TokenResult{}, fmt.Errorf("failed to generate state token: %w", err)
	}
	verifier := oauth2.GenerateVerifier()

	handler := server.NewOAuthHandler(a.config, state, oauth2.VerifierOption(verifier))
	handler.SetLogger(a.logger)
	router := server.NewBasicRouter()
	router.Use(server.Recoverer(a.logger), server.RequestLogger(a.logger))
	router.Handler(handler)

	lb, err := server.Listen(a.addr, router)
	if err != nil {
		return TokenResult{}, fmt.Errorf("%w: failed to start callback server on %s: %v", shared.ErrAuthFailed, a.addr, err)
	}
	defer func() {
		if err := lb.Shutdown(); err != nil {
			a.logger.Warn("error shutting down callback server", "error", err)
		}
	}()
	a.logger.Info("waiting for OAuth callback", "addr", lb.Addr())

	authURL := a.AuthURL(state, verifier)
	fmt.Fprintln(a.out, "→ Opening browser for Google sign-in...")
	if err := a.openBrowser(authURL); err != nil {
		a.logger.Warn("failed to open browser automatically", "error", err)
		fmt.Fprintf(a.out, "⚠ Could not open browser automatically.\nPlease open this URL in your browser:\n%s\n\n", authURL)
	}
	fmt.Fprintf(a.out, "→ Waiting for authorization (%s timeout)...\n", a.timeout)

	timer := time.NewTimer(a.timeout)
	defer timer.Stop()

	var result server.OAuthResult
	select {
	case result = <-handler.Result():
	case err := <-lb.Errors():
		return TokenResult{}, fmt.Errorf("%w: callback server error: %v", shared.ErrAuthFailed, err)
	case <-timer.C:
		return TokenResult{}, fmt.Errorf("%w: authorization timed out after %s", shared.ErrTimeout, a.timeout)
	case <-ctx.Done():
		return TokenResult{}, ctx.Err()
	}

	if result.Error() != nil {
		return TokenResult{}, fmt.Errorf("%w: %v", shared.ErrAuthFailed, result.Error())
	}
	if result.Token == nil {
		return TokenResult{}, fmt.Errorf("%w: no token received", shared.ErrAuthFailed)
	}
	return a.toResult(result.Token), nil
}

// LoginSilent exchanges the stored refresh grant for a new access token without user interaction.
func (a *AuthClient) LoginSilent(ctx context.Context) (TokenResult, error) {
	if a.grants == nil {
		return TokenResult{}, shared.ErrNoGrant
	}
	grant, ok := a.grants.LoadGrant()
	if !ok {
		return TokenResult{}, shared.ErrNoGrant
	}

	if a.httpClient != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, a.httpClient)
	}

	tok, err := a.config.TokenSource(ctx, &oauth2.Token{RefreshToken: grant}).Token()
	if err != nil {
		var re *oauth2.RetrieveError
		if errors.As(err, &re) && re.ErrorCode == "invalid_grant" {
			return TokenResult{}, fmt.Errorf("%w: grant revoked or expired", shared.ErrRefreshFailed)
		}
		return TokenResult{}, fmt.Errorf("%w: %v", shared.ErrRefreshFailed, err)
	}

	res := a.toResult(tok)
	if res.RefreshToken == "" {
		res.RefreshToken = grant
	}
	return res, nil
}

func (a *AuthClient) toResult(tok *oauth2.Token) TokenResult {
	expiresIn := defaultExpiresIn
	if !tok.Expiry.IsZero() {
		expiresIn = tok.Expiry.Sub(a.now())
	}
	return TokenResult{AccessToken: tok.AccessToken, ExpiresIn: expiresIn, RefreshToken: tok.RefreshToken}
}
