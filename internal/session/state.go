package session

import (
	"time"

	"github.com/desertthunder/shelfx/internal/models"
)

// State is the session lifecycle state.
type State int

const (
	Unauthenticated State = iota
	Restoring
	Authenticated
	RefreshingSilently
	LoggingOut
)

func (s State) String() string {
	switch s {
	case Unauthenticated:
		return "unauthenticated"
	case Restoring:
		return "restoring"
	case Authenticated:
		return "authenticated"
	case RefreshingSilently:
		return "refreshing"
	case LoggingOut:
		return "logging out"
	default:
		return "unknown"
	}
}

// Snapshot is an immutable view of the session handed to observers.
type Snapshot struct {
	State           State               `json:"-"`
	StateName       string              `json:"state"`
	IsAuthenticated bool                `json:"authenticated"`
	Profile         *models.UserProfile `json:"profile,omitempty"`
	ExpiresAt       time.Time           `json:"expires_at,omitzero"`
	RefreshAt       time.Time           `json:"refresh_at,omitzero"`
}
