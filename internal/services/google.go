package services

import (
	"context"
	"fmt"
	"net/url"
	"strconv"

	"github.com/desertthunder/shelfx/internal/models"
	"github.com/desertthunder/shelfx/internal/shared"
)

const (
	defaultPageSize = 40
	maxShelfPages   = 50
)

// GoogleService calls the authenticated Google Books "mylibrary" endpoints
// and the OAuth2 userinfo/tokeninfo endpoints.
type GoogleService struct {
	transport *Transport
	pageSize  int
}

// NewGoogleService wraps transport. pageSize is capped at 40, the API maximum.
func NewGoogleService(transport *Transport, pageSize int) *GoogleService {
	if pageSize <= 0 || pageSize > defaultPageSize {
		pageSize = defaultPageSize
	}
	return &GoogleService{transport: transport, pageSize: pageSize}
}

// FetchProfile returns the signed-in user's identity.
func (s *GoogleService) FetchProfile(ctx context.Context) (*models.UserProfile, error) {
	var p models.UserProfile
	if err := s.transport.Get(ctx, userinfoPath, nil, &p); err != nil {
		return nil, fmt.Errorf("failed to fetch profile: %w", err)
	}
	return &p, nil
}

// TokenInfo asks the provider for metadata about token, used to recover an unknown expiry.
func (s *GoogleService) TokenInfo(ctx context.Context, token string) (*models.TokenInfo, error) {
	var info models.TokenInfo
	q := url.Values{"access_token": {token}}
	if err := s.transport.Get(WithoutUnauthorizedHook(ctx), tokeninfoPath, q, &info); err != nil {
		return nil, fmt.Errorf("failed to fetch token info: %w", err)
	}
	return &info, nil
}

// Shelves lists all of the user's bookshelves.
func (s *GoogleService) Shelves(ctx context.Context) ([]models.Shelf, error) {
	var resp struct {
		Items []models.Shelf `json:"items"`
	}
	if err := s.transport.Get(ctx, shelvesPath, nil, &resp); err != nil {
		return nil, fmt.Errorf("failed to list shelves: %w", err)
	}
	return resp.Items, nil
}

// Shelf returns a single bookshelf.
func (s *GoogleService) Shelf(ctx context.Context, id models.ShelfID) (*models.Shelf, error) {
	var shelf models.Shelf
	if err := s.transport.Get(ctx, shelfPath(id), nil, &shelf); err != nil {
		return nil, fmt.Errorf("failed to get shelf %d: %w", int(id), err)
	}
	return &shelf, nil
}

// ShelfVolumes returns every volume on the shelf, following startIndex pagination.
func (s *GoogleService) ShelfVolumes(ctx context.Context, id models.ShelfID) ([]models.Volume, error) {
	var volumes []models.Volume

	for page := 0; page < maxShelfPages; page++ {
		q := url.Values{
			"startIndex": {strconv.Itoa(len(volumes))},
			"maxResults": {strconv.Itoa(s.pageSize)},
		}

		var list models.VolumeList
		if err := s.transport.Get(ctx, shelfPath(id)+"/volumes", q, &list); err != nil {
			return nil, fmt.Errorf("failed to list volumes on shelf %d: %w", int(id), err)
		}

		volumes = append(volumes, list.Items...)
		if len(list.Items) == 0 || len(volumes) >= list.TotalItems {
			break
		}
	}

	return volumes, nil
}

// AddVolume adds the volume to the shelf. Adding a volume already present succeeds.
func (s *GoogleService) AddVolume(ctx context.Context, id models.ShelfID, volumeID string) error {
	return s.mutate(ctx, id, "addVolume", url.Values{"volumeId": {volumeID}})
}

// RemoveVolume removes the volume from the shelf.
func (s *GoogleService) RemoveVolume(ctx context.Context, id models.ShelfID, volumeID string) error {
	return s.mutate(ctx, id, "removeVolume", url.Values{"volumeId": {volumeID}})
}

// MoveVolume repositions the volume within the shelf.
func (s *GoogleService) MoveVolume(ctx context.Context, id models.ShelfID, volumeID string, position int) error {
	return s.mutate(ctx, id, "moveVolume", url.Values{
		"volumeId":       {volumeID},
		"volumePosition": {strconv.Itoa(position)},
	})
}

// ClearVolumes removes every volume from the shelf.
func (s *GoogleService) ClearVolumes(ctx context.Context, id models.ShelfID) error {
	return s.mutate(ctx, id, "clearVolumes", nil)
}

func (s *GoogleService) mutate(ctx context.Context, id models.ShelfID, action string, q url.Values) error {
	if id < 0 {
		return fmt.Errorf("%w: shelf id %d", shared.ErrInvalidArgument, int(id))
	}
	if err := s.transport.Post(ctx, shelfPath(id)+"/"+action, q, nil); err != nil {
		return fmt.Errorf("%s on shelf %d: %w", action, int(id), err)
	}
	return nil
}

func shelfPath(id models.ShelfID) string {
	return shelvesPath + "/" + strconv.Itoa(int(id))
}
