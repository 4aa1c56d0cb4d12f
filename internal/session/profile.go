package session

import (
	"context"

	"github.com/desertthunder/shelfx/internal/models"
)

// ProfileFetcher loads the signed-in user's profile from the API.
type ProfileFetcher interface {
	FetchProfile(ctx context.Context) (*models.UserProfile, error)
}

// ProfileCache stores the last fetched profile.
type ProfileCache interface {
	LoadProfile() (*models.UserProfile, bool)
	SaveProfile(p *models.UserProfile) error
}

// ProfileResolver returns the cached profile, fetching it when absent or forced.
type ProfileResolver struct {
	fetcher ProfileFetcher
	cache   ProfileCache
}

// NewProfileResolver creates a resolver.
func NewProfileResolver(fetcher ProfileFetcher, cache ProfileCache) *ProfileResolver {
	return &ProfileResolver{fetcher: fetcher, cache: cache}
}

// Resolve makes at most one fetch. Failures are returned without retry.
func (r *ProfileResolver) Resolve(ctx context.Context, force bool) (*models.UserProfile, error) {
	if !force {
		if p, ok := r.cache.LoadProfile(); ok {
			return p, nil
		}
	}

	p, err := r.fetcher.FetchProfile(ctx)
	if err != nil {
		return nil, err
	}
	if err := r.cache.SaveProfile(p); err != nil {
		return nil, err
	}
	return p, nil
}
