package models

import (
	"strings"
)

// Volume is a Google Books catalog entry.
type Volume struct {
	ID         string      `json:"id"`
	ETag       string      `json:"etag,omitempty"`
	SelfLink   string      `json:"selfLink,omitempty"`
	Info       VolumeInfo  `json:"volumeInfo"`
	SaleInfo   *SaleInfo   `json:"saleInfo,omitempty"`
	AccessInfo *AccessInfo `json:"accessInfo,omitempty"`
}

// VolumeInfo holds the bibliographic fields of a [Volume].
type VolumeInfo struct {
	Title               string       `json:"title"`
	Subtitle            string       `json:"subtitle,omitempty"`
	Authors             []string     `json:"authors,omitempty"`
	Publisher           string       `json:"publisher,omitempty"`
	PublishedDate       string       `json:"publishedDate,omitempty"`
	Description         string       `json:"description,omitempty"`
	Categories          []string     `json:"categories,omitempty"`
	PageCount           int          `json:"pageCount,omitempty"`
	Language            string       `json:"language,omitempty"`
	AverageRating       float64      `json:"averageRating,omitempty"`
	RatingsCount        int          `json:"ratingsCount,omitempty"`
	ImageLinks          *ImageLinks  `json:"imageLinks,omitempty"`
	IndustryIdentifiers []Identifier `json:"industryIdentifiers,omitempty"`
	PreviewLink         string       `json:"previewLink,omitempty"`
	InfoLink            string       `json:"infoLink,omitempty"`
}

// Identifier is an ISBN or other industry identifier.
type Identifier struct {
	Type       string `json:"type"`
	Identifier string `json:"identifier"`
}

// ImageLinks are the cover image sizes offered for a volume.
type ImageLinks struct {
	SmallThumbnail string `json:"smallThumbnail,omitempty"`
	Thumbnail      string `json:"thumbnail,omitempty"`
	Small          string `json:"small,omitempty"`
	Medium         string `json:"medium,omitempty"`
	Large          string `json:"large,omitempty"`
	ExtraLarge     string `json:"extraLarge,omitempty"`
}

// SaleInfo describes whether and for how much a volume is sold.
type SaleInfo struct {
	Country     string `json:"country,omitempty"`
	Saleability string `json:"saleability,omitempty"`
	IsEbook     bool   `json:"isEbook"`
	ListPrice   *Price `json:"listPrice,omitempty"`
	RetailPrice *Price `json:"retailPrice,omitempty"`
	BuyLink     string `json:"buyLink,omitempty"`
}

// Price is an amount in a currency.
type Price struct {
	Amount       float64 `json:"amount"`
	CurrencyCode string  `json:"currencyCode"`
}

// AccessInfo describes reading access to a volume.
type AccessInfo struct {
	Viewability   string `json:"viewability,omitempty"`
	PublicDomain  bool   `json:"publicDomain"`
	WebReaderLink string `json:"webReaderLink,omitempty"`
	EPub          struct {
		IsAvailable bool `json:"isAvailable"`
	} `json:"epub"`
	PDF struct {
		IsAvailable bool `json:"isAvailable"`
	} `json:"pdf"`
}

// VolumeList is a page of volumes from a search or shelf listing.
type VolumeList struct {
	TotalItems int      `json:"totalItems"`
	Items      []Volume `json:"items"`
}

// Cover returns the largest available cover image, forced to https.
func (v Volume) Cover() string {
	l := v.Info.ImageLinks
	if l == nil {
		return ""
	}
	for _, u := range []string{l.ExtraLarge, l.Large, l.Medium, l.Small, l.Thumbnail, l.SmallThumbnail} {
		if u != "" {
			return SecureURL(u)
		}
	}
	return ""
}

// AuthorList joins the authors for display.
func (v Volume) AuthorList() string {
	if len(v.Info.Authors) == 0 {
		return "Unknown author"
	}
	return strings.Join(v.Info.Authors, ", ")
}

// ISBN returns the ISBN-13, or ISBN-10 when no ISBN-13 is listed.
func (v Volume) ISBN() string {
	var isbn10 string
	for _, id := range v.Info.IndustryIdentifiers {
		switch id.Type {
		case "ISBN_13":
			return id.Identifier
		case "ISBN_10":
			isbn10 = id.Identifier
		}
	}
	return isbn10
}

// PrimaryCategory is the first segment of the first category ("Fiction / Fantasy" -> "Fiction").
func (v Volume) PrimaryCategory() string {
	if len(v.Info.Categories) == 0 {
		return ""
	}
	head, _, _ := strings.Cut(v.Info.Categories[0], "/")
	return strings.TrimSpace(head)
}

// SecureURL rewrites http:// links to https://.
func SecureURL(u string) string {
	if strings.HasPrefix(u, "http://") {
		return "https://" + strings.TrimPrefix(u, "http://")
	}
	return u
}
