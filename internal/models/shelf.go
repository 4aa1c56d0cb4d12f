package models

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ShelfID identifies a bookshelf in the user's library.
type ShelfID int

const (
	NoShelf          ShelfID = -1
	Favorites        ShelfID = 0
	Purchased        ShelfID = 1
	WantToRead       ShelfID = 2
	CurrentlyReading ShelfID = 3
	HaveRead         ShelfID = 4
)

// MainShelves lists the shelves shelfx manages, in display order.
var MainShelves = []ShelfID{Favorites, WantToRead, CurrentlyReading, HaveRead}

// ShelfKey is the normalized category of a shelf.
type ShelfKey string

const (
	KeyFavorites        ShelfKey = "favorites"
	KeyWantToRead       ShelfKey = "want-to-read"
	KeyCurrentlyReading ShelfKey = "currently-reading"
	KeyFinished         ShelfKey = "finished"
	KeyOther            ShelfKey = "other"
)

func (id ShelfID) String() string {
	switch id {
	case Favorites:
		return "Favorites"
	case WantToRead:
		return "Want to read"
	case CurrentlyReading:
		return "Currently reading"
	case HaveRead:
		return "Have read"
	case NoShelf:
		return "None"
	default:
		return fmt.Sprintf("Shelf %d", int(id))
	}
}

// Key returns the normalized key for a known shelf id.
func (id ShelfID) Key() ShelfKey {
	switch id {
	case Favorites:
		return KeyFavorites
	case WantToRead:
		return KeyWantToRead
	case CurrentlyReading:
		return KeyCurrentlyReading
	case HaveRead:
		return KeyFinished
	default:
		return KeyOther
	}
}

// IsMain reports whether id is one of [MainShelves].
func (id ShelfID) IsMain() bool {
	for _, m := range MainShelves {
		if m == id {
			return true
		}
	}
	return false
}

// ParseShelf accepts a numeric id or a shelf name such as "favorites",
// "want-to-read", "reading" or "read".
func ParseShelf(s string) (ShelfID, error) {
	s = strings.TrimSpace(s)
	if n, err := strconv.Atoi(s); err == nil {
		if n < 0 {
			return NoShelf, nil
		}
		return ShelfID(n), nil
	}

	switch key := NormalizeShelfKey(s, NoShelf); key {
	case KeyFavorites:
		return Favorites, nil
	case KeyWantToRead:
		return WantToRead, nil
	case KeyCurrentlyReading:
		return CurrentlyReading, nil
	case KeyFinished:
		return HaveRead, nil
	}

	if strings.EqualFold(s, "none") {
		return NoShelf, nil
	}
	return NoShelf, fmt.Errorf("unknown shelf %q", s)
}

// NormalizeShelfKey maps a shelf title (in any casing or spacing) or id to its [ShelfKey].
//
// The id wins when it is a known shelf.
func NormalizeShelfKey(title string, id ShelfID) ShelfKey {
	if key := id.Key(); key != KeyOther {
		return key
	}

	t := strings.ToLower(strings.TrimSpace(title))
	t = strings.NewReplacer("-", " ", "_", " ").Replace(t)
	t = strings.Join(strings.Fields(t), " ")

	switch {
	case t == "favorites" || t == "favourites" || t == "favorite":
		return KeyFavorites
	case t == "to read" || t == "want to read" || t == "wishlist":
		return KeyWantToRead
	case t == "reading" || t == "currently reading" || t == "reading now":
		return KeyCurrentlyReading
	case t == "read" || t == "have read" || t == "finished":
		return KeyFinished
	default:
		return KeyOther
	}
}

// Shelf is a bookshelf as returned by the mylibrary/bookshelves endpoint.
type Shelf struct {
	ID          ShelfID   `json:"id"`
	Title       string    `json:"title"`
	Access      string    `json:"access,omitempty"`
	VolumeCount int       `json:"volumeCount"`
	Updated     time.Time `json:"updated,omitzero"`
}

// Key returns the normalized key for the shelf.
func (s Shelf) Key() ShelfKey {
	return NormalizeShelfKey(s.Title, s.ID)
}

// FilterMain keeps only the shelves listed in [MainShelves], ordered like it.
func FilterMain(shelves []Shelf) []Shelf {
	byID := make(map[ShelfID]Shelf, len(shelves))
	for _, s := range shelves {
		byID[s.ID] = s
	}

	out := make([]Shelf, 0, len(MainShelves))
	for _, id := range MainShelves {
		if s, ok := byID[id]; ok {
			out = append(out, s)
		}
	}
	return out
}

// ShelfExport is a shelf and its full contents, as written by exports.
type ShelfExport struct {
	Shelf      Shelf     `json:"shelf"`
	Volumes    []Volume  `json:"volumes"`
	ExportedAt time.Time `json:"exported_at"`
}
