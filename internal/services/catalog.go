package services

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/desertthunder/shelfx/internal/models"
	"github.com/desertthunder/shelfx/internal/shared"
)

// Query is a catalog search.
//
// Author, Title and Subject become inauthor:, intitle: and subject: terms appended to Terms.
type Query struct {
	Terms      string
	Title      string
	Author     string
	Subject    string
	OrderBy    string // "relevance" or "newest"
	StartIndex int
	MaxResults int
}

// String renders the q parameter.
func (q Query) String() string {
	parts := []string{}
	if t := strings.TrimSpace(q.Terms); t != "" {
		parts = append(parts, t)
	}
	if q.Title != "" {
		parts = append(parts, "intitle:"+quote(q.Title))
	}
	if q.Author != "" {
		parts = append(parts, "inauthor:"+quote(q.Author))
	}
	if q.Subject != "" {
		parts = append(parts, "subject:"+quote(q.Subject))
	}
	return strings.Join(parts, " ")
}

func quote(s string) string {
	if strings.ContainsAny(s, " \t") {
		return `"` + s + `"`
	}
	return s
}

// CatalogService searches the public volumes collection. It works signed out;
// an API key raises the quota.
type CatalogService struct {
	transport *Transport
	apiKey    string
}

// NewCatalogService wraps transport.
func NewCatalogService(transport *Transport, apiKey string) *CatalogService {
	return &CatalogService{transport: transport, apiKey: apiKey}
}

// SearchVolumes runs q against the catalog.
func (s *CatalogService) SearchVolumes(ctx context.Context, q Query) (*models.VolumeList, error) {
	text := q.String()
	if text == "" {
		return nil, fmt.Errorf("%w: empty search query", shared.ErrInvalidInput)
	}

	params := s.params()
	params.Set("q", text)
	if q.MaxResults > 0 {
		params.Set("maxResults", strconv.Itoa(min(q.MaxResults, 40)))
	}
	if q.StartIndex > 0 {
		params.Set("startIndex", strconv.Itoa(q.StartIndex))
	}
	if q.OrderBy != "" {
		params.Set("orderBy", q.OrderBy)
	}

	var list models.VolumeList
	if err := s.transport.Get(WithoutUnauthorizedHook(ctx), volumesPath, params, &list); err != nil {
		return nil, fmt.Errorf("search failed: %w", err)
	}
	return &list, nil
}

// GetVolume returns full details for one volume.
func (s *CatalogService) GetVolume(ctx context.Context, id string) (*models.Volume, error) {
	if strings.TrimSpace(id) == "" {
		return nil, fmt.Errorf("%w: volume id", shared.ErrMissingArgument)
	}

	var v models.Volume
	if err := s.transport.Get(WithoutUnauthorizedHook(ctx), volumesPath+"/"+url.PathEscape(id), s.params(), &v); err != nil {
		return nil, fmt.Errorf("failed to get volume %s: %w", id, err)
	}
	return &v, nil
}

// PublicShelves lists another user's public bookshelves.
func (s *CatalogService) PublicShelves(ctx context.Context, userID string) ([]models.Shelf, error) {
	var resp struct {
		Items []models.Shelf `json:"items"`
	}
	path := publicUsers + "/" + url.PathEscape(userID) + "/bookshelves"
	if err := s.transport.Get(WithoutUnauthorizedHook(ctx), path, s.params(), &resp); err != nil {
		return nil, fmt.Errorf("failed to list public shelves: %w", err)
	}
	return resp.Items, nil
}

// PublicShelfVolumes lists volumes on another user's public shelf.
func (s *CatalogService) PublicShelfVolumes(ctx context.Context, userID string, shelf models.ShelfID) ([]models.Volume, error) {
	var list models.VolumeList
	path := fmt.Sprintf("%s/%s/bookshelves/%d/volumes", publicUsers, url.PathEscape(userID), int(shelf))
	if err := s.transport.Get(WithoutUnauthorizedHook(ctx), path, s.params(), &list); err != nil {
		return nil, fmt.Errorf("failed to list public shelf volumes: %w", err)
	}
	return list.Items, nil
}

func (s *CatalogService) params() url.Values {
	v := url.Values{}
	if s.apiKey != "" {
		v.Set("key", s.apiKey)
	}
	return v
}
