package repositories

import (
	"encoding/json"
	"strconv"
	"time"

	"github.com/desertthunder/shelfx/internal/models"
)

// Storage keys owned by [TokenStore].
const (
	KeyToken     = "token"
	KeyExpiresAt = "token_expires_at"
	KeyUser      = "user"
	KeyGrant     = "refresh_token"
)

// TokenStore persists the session's bearer token, expiry, cached profile and refresh grant.
//
// Expiry is stored as epoch milliseconds of the real token expiry.
type TokenStore struct {
	storage Storage
}

// NewTokenStore wraps storage.
func NewTokenStore(storage Storage) *TokenStore {
	return &TokenStore{storage: storage}
}

// Save writes the token and its expiry together.
func (s *TokenStore) Save(token string, expiresAt time.Time) error {
	return s.storage.SetMany(map[string]string{
		KeyToken:     token,
		KeyExpiresAt: strconv.FormatInt(expiresAt.UnixMilli(), 10),
	})
}

// Load returns the stored token and expiry.
//
// A missing or unparseable expiry is returned as the zero time. ok is false when no token is stored.
func (s *TokenStore) Load() (token string, expiresAt time.Time, ok bool, err error) {
	token, ok, err = s.storage.Get(KeyToken)
	if err != nil || !ok || token == "" {
		return "", time.Time{}, false, err
	}

	raw, found, err := s.storage.Get(KeyExpiresAt)
	if err != nil {
		return "", time.Time{}, false, err
	}
	if found {
		if ms, perr := strconv.ParseInt(raw, 10, 64); perr == nil && ms > 0 {
			expiresAt = time.UnixMilli(ms)
		}
	}
	return token, expiresAt, true, nil
}

// Token returns just the bearer token, or "" when none is stored.
func (s *TokenStore) Token() string {
	token, ok, err := s.storage.Get(KeyToken)
	if err != nil || !ok {
		return ""
	}
	return token
}

// SaveProfile caches the user profile as JSON.
func (s *TokenStore) SaveProfile(p *models.UserProfile) error {
	data, err := json.Marshal(p)
	if err != nil {
		return err
	}
	return s.storage.Set(KeyUser, string(data))
}

// LoadProfile returns the cached profile.
//
// A corrupt entry is treated as absent.
func (s *TokenStore) LoadProfile() (*models.UserProfile, bool) {
	raw, ok, err := s.storage.Get(KeyUser)
	if err != nil || !ok || raw == "" {
		return nil, false
	}

	var p models.UserProfile
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		return nil, false
	}
	return &p, true
}

// SaveGrant stores the refresh token used for silent login.
func (s *TokenStore) SaveGrant(refreshToken string) error {
	if refreshToken == "" {
		return nil
	}
	return s.storage.Set(KeyGrant, refreshToken)
}

// LoadGrant returns the stored refresh token.
func (s *TokenStore) LoadGrant() (string, bool) {
	grant, ok, err := s.storage.Get(KeyGrant)
	if err != nil || !ok || grant == "" {
		return "", false
	}
	return grant, true
}

// Clear removes the token, expiry, profile and grant.
func (s *TokenStore) Clear() error {
	return s.storage.Delete(KeyToken, KeyExpiresAt, KeyUser, KeyGrant)
}
