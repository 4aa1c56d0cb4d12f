package models

import (
	"strings"
	"time"
)

// UserProfile is the identity returned by the OAuth2 userinfo endpoint.
type UserProfile struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Email   string `json:"email"`
	Picture string `json:"picture,omitempty"`
}

// Key identifies the user for per-user local records.
//
// Falls back to email, then "unknown".
func (p *UserProfile) Key() string {
	if p == nil {
		return "unknown"
	}
	if p.ID != "" {
		return p.ID
	}
	if p.Email != "" {
		return p.Email
	}
	return "unknown"
}

// DisplayName returns the name or, when empty, the email.
func (p *UserProfile) DisplayName() string {
	if p == nil {
		return ""
	}
	if strings.TrimSpace(p.Name) != "" {
		return p.Name
	}
	return p.Email
}

// TokenInfo is the subset of the tokeninfo response used to recover an unknown expiry.
type TokenInfo struct {
	Audience  string `json:"audience"`
	Scope     string `json:"scope"`
	ExpiresIn int    `json:"expires_in"`
	Email     string `json:"email,omitempty"`
}

// LocalRecord is a volume remembered locally when a shelf mutation could not reach the API.
type LocalRecord struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	Authors     []string   `json:"authors,omitempty"`
	Shelf       ShelfID    `json:"shelf"`
	FavoritedAt *time.Time `json:"favoritedAt,omitempty"`
	StartedAt   *time.Time `json:"startedAt,omitempty"`
}

// ExportRecord describes one completed library export.
type ExportRecord struct {
	ID        string    `json:"id"`
	OutputDir string    `json:"output_dir"`
	Format    string    `json:"format"`
	Shelves   int       `json:"shelves"`
	Volumes   int       `json:"volumes"`
	Failed    int       `json:"failed"`
	CreatedAt time.Time `json:"created_at"`
}
