package services

import (
	"context"
	"errors"
	"testing"

	"github.com/desertthunder/shelfx/internal/models"
	"github.com/desertthunder/shelfx/internal/shared"
	tu "github.com/desertthunder/shelfx/internal/testing"
)

func TestQueryString(t *testing.T) {
	tc := []struct {
		name string
		q    Query
		want string
	}{
		{"terms only", Query{Terms: " dune "}, "dune"},
		{"author with space", Query{Author: "Ursula K. Le Guin"}, `inauthor:"Ursula K. Le Guin"`},
		{"combined", Query{Terms: "sea", Subject: "Fiction", Title: "Earthsea"}, "sea intitle:Earthsea subject:Fiction"},
	}

	for _, tt := range tc {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.q.String(); got != tt.want {
				t.Errorf("Query.String() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestCatalogService(t *testing.T) {
	ctx := context.Background()

	newCatalog := func(t *testing.T) (*CatalogService, *tu.FakeBooks) {
		fake := tu.NewFakeBooks(t)
		tr, err := NewTransport(TransportOpts{BaseURL: fake.URL(), Retry: true})
		if err != nil {
			t.Fatalf("failed to create transport: %v", err)
		}
		return NewCatalogService(tr, "key"), fake
	}

	t.Run("SearchVolumes", func(t *testing.T) {
		srv, fake := newCatalog(t)
		fake.Seed(99, tu.Book("a", "The Left Hand of Darkness", "Ursula K. Le Guin"), tu.Book("b", "Dune", "Frank Herbert"))

		list, err := srv.SearchVolumes(ctx, Query{Author: "Frank Herbert", MaxResults: 5})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(list.Items) != 1 || list.Items[0].ID != "b" {
			t.Errorf("unexpected results %+v", list.Items)
		}
	})

	t.Run("Empty Query", func(t *testing.T) {
		srv, _ := newCatalog(t)
		if _, err := srv.SearchVolumes(ctx, Query{}); !errors.Is(err, shared.ErrInvalidInput) {
			t.Errorf("expected ErrInvalidInput, got %v", err)
		}
	})

	t.Run("GetVolume", func(t *testing.T) {
		srv, fake := newCatalog(t)
		fake.Seed(99, models.Volume{ID: "x1", Info: models.VolumeInfo{Title: "Emma", PageCount: 400}})

		v, err := srv.GetVolume(ctx, "x1")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if v.Info.PageCount != 400 {
			t.Errorf("unexpected volume %+v", v)
		}

		if _, err := srv.GetVolume(ctx, "missing"); !errors.Is(err, shared.ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})
}

func TestPublicShelves(t *testing.T) {
	ctx := context.Background()
	fake := tu.NewFakeBooks(t)
	fake.SetToken("secret")
	fake.Seed(models.HaveRead, tu.Book("a", "Emma", "Jane Austen"), tu.Book("b", "Persuasion", "Jane Austen"))

	tr, err := NewTransport(TransportOpts{BaseURL: fake.URL()})
	if err != nil {
		t.Fatalf("failed to create transport: %v", err)
	}
	srv := NewCatalogService(tr, "")

	t.Run("Lists Shelves Without Token", func(t *testing.T) {
		shelves, err := srv.PublicShelves(ctx, "user-1")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(shelves) != len(models.MainShelves) {
			t.Errorf("expected %d shelves, got %d", len(models.MainShelves), len(shelves))
		}
	})

	t.Run("Lists Volumes", func(t *testing.T) {
		vols, err := srv.PublicShelfVolumes(ctx, "user-1", models.HaveRead)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(vols) != 2 || vols[0].ID != "a" {
			t.Errorf("unexpected volumes %+v", vols)
		}
	})

	t.Run("Unknown User", func(t *testing.T) {
		if _, err := srv.PublicShelves(ctx, "nobody"); !errors.Is(err, shared.ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})
}
