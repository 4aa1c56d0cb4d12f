package models

import "testing"

func TestShelfKeys(t *testing.T) {
	tc := []struct {
		name  string
		title string
		id    ShelfID
		want  ShelfKey
	}{
		{name: "known id wins", title: "Whatever", id: WantToRead, want: KeyWantToRead},
		{name: "title with dashes", title: "Currently-Reading", id: 42, want: KeyCurrentlyReading},
		{name: "british spelling", title: "  Favourites ", id: 99, want: KeyFavorites},
		{name: "finished", title: "Have read", id: 7, want: KeyFinished},
		{name: "unknown", title: "Reviewed", id: 5, want: KeyOther},
	}

	for _, tt := range tc {
		t.Run(tt.name, func(t *testing.T) {
			if got := NormalizeShelfKey(tt.title, tt.id); got != tt.want {
				t.Errorf("NormalizeShelfKey() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestParseShelf(t *testing.T) {
	tc := []struct {
		in      string
		want    ShelfID
		wantErr bool
	}{
		{in: "0", want: Favorites},
		{in: "favorites", want: Favorites},
		{in: "want-to-read", want: WantToRead},
		{in: "reading", want: CurrentlyReading},
		{in: "read", want: HaveRead},
		{in: "none", want: NoShelf},
		{in: "-1", want: NoShelf},
		{in: "bogus", wantErr: true},
	}

	for _, tt := range tc {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseShelf(tt.in)
			if tt.wantErr {
				if err == nil {
					t.Errorf("expected error for %q", tt.in)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("expected %v, got %v", tt.want, got)
			}
		})
	}
}

func TestFilterMain(t *testing.T) {
	shelves := []Shelf{
		{ID: HaveRead, Title: "Have read"},
		{ID: 7, Title: "My Google eBooks"},
		{ID: Favorites, Title: "Favorites"},
		{ID: Purchased, Title: "Purchased"},
	}

	got := FilterMain(shelves)
	if len(got) != 2 {
		t.Fatalf("expected 2 shelves, got %d", len(got))
	}
	if got[0].ID != Favorites || got[1].ID != HaveRead {
		t.Errorf("expected display order Favorites, Have read; got %v, %v", got[0].ID, got[1].ID)
	}
}

func TestVolumeHelpers(t *testing.T) {
	t.Run("Cover Prefers Largest And Forces HTTPS", func(t *testing.T) {
		v := Volume{Info: VolumeInfo{ImageLinks: &ImageLinks{
			Thumbnail: "http://books.google.com/thumb",
			Medium:    "http://books.google.com/medium",
		}}}
		if got := v.Cover(); got != "https://books.google.com/medium" {
			t.Errorf("unexpected cover %s", got)
		}
	})

	t.Run("ISBN Prefers 13", func(t *testing.T) {
		v := Volume{Info: VolumeInfo{IndustryIdentifiers: []Identifier{
			{Type: "ISBN_10", Identifier: "0123456789"},
			{Type: "ISBN_13", Identifier: "9780123456786"},
		}}}
		if got := v.ISBN(); got != "9780123456786" {
			t.Errorf("expected ISBN-13, got %s", got)
		}
	})

	t.Run("PrimaryCategory", func(t *testing.T) {
		v := Volume{Info: VolumeInfo{Categories: []string{"Fiction / Science Fiction / General"}}}
		if got := v.PrimaryCategory(); got != "Fiction" {
			t.Errorf("expected Fiction, got %q", got)
		}
	})
}

func TestProfileKey(t *testing.T) {
	var nilProfile *UserProfile
	if nilProfile.Key() != "unknown" {
		t.Errorf("expected unknown for nil profile")
	}
	if (&UserProfile{Email: "a@example.com"}).Key() != "a@example.com" {
		t.Errorf("expected email fallback")
	}
	if (&UserProfile{ID: "123", Email: "a@example.com"}).Key() != "123" {
		t.Errorf("expected id to win")
	}
}
