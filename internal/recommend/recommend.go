// Package recommend suggests volumes based on the user's favorites.
package recommend

import (
	"context"
	"io"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/desertthunder/shelfx/internal/models"
	"github.com/desertthunder/shelfx/internal/services"
	"github.com/desertthunder/shelfx/internal/shared"
)

const (
	maxAuthors    = 5
	maxCategories = 4
	perQuery      = 4 // results requested per author or category
	keepPerQuery  = 3 // results kept per author or category
	maxResults    = 8
	fallbackTerms = "bestseller"
)

// Mode selects how suggestions are derived.
type Mode string

const (
	ByAuthor Mode = "author"
	ByGenre  Mode = "genre"
)

// Searcher runs catalog queries.
type Searcher interface {
	SearchVolumes(ctx context.Context, q services.Query) (*models.VolumeList, error)
}

// Recommender builds suggestion lists from catalog searches.
type Recommender struct {
	catalog Searcher
	logger  *log.Logger
}

// New creates a recommender. A nil logger discards output.
func New(catalog Searcher, logger *log.Logger) *Recommender {
	if logger == nil {
		logger = shared.NewLogger(io.Discard)
	}
	return &Recommender{catalog: catalog, logger: logger.With("component", "recommend")}
}

// Recommend dispatches on mode.
func (r *Recommender) Recommend(ctx context.Context, mode Mode, favorites []models.Volume) []models.Volume {
	if mode == ByGenre {
		return r.ByGenre(ctx, favorites)
	}
	return r.ByAuthor(ctx, favorites)
}

// ByAuthor searches the first five distinct authors among favorites and keeps
// up to three new volumes from each.
func (r *Recommender) ByAuthor(ctx context.Context, favorites []models.Volume) []models.Volume {
	var queries []services.Query
	for _, author := range distinct(favorites, func(v models.Volume) []string { return v.Info.Authors }, maxAuthors) {
		queries = append(queries, services.Query{Author: author, MaxResults: perQuery})
	}
	return r.collect(ctx, queries, favorites)
}

// ByGenre searches the first four distinct top-level categories among
// favorites. With no categories it falls back to a bestseller search.
func (r *Recommender) ByGenre(ctx context.Context, favorites []models.Volume) []models.Volume {
	categories := distinct(favorites, func(v models.Volume) []string {
		out := make([]string, 0, len(v.Info.Categories))
		for _, c := range v.Info.Categories {
			head, _, _ := strings.Cut(c, "/")
			out = append(out, strings.TrimSpace(head))
		}
		return out
	}, maxCategories)

	if len(categories) == 0 {
		list, err := r.catalog.SearchVolumes(ctx, services.Query{Terms: fallbackTerms, MaxResults: perQuery, OrderBy: "relevance"})
		if err != nil {
			r.logger.Warn("bestseller search failed", "error", err)
			return nil
		}
		return limit(list.Items, maxResults)
	}

	var queries []services.Query
	for _, c := range categories {
		queries = append(queries, services.Query{Subject: c, MaxResults: perQuery, OrderBy: "relevance"})
	}
	return r.collect(ctx, queries, favorites)
}

// collect runs each query in turn, skipping failures, and merges the results.
func (r *Recommender) collect(ctx context.Context, queries []services.Query, favorites []models.Volume) []models.Volume {
	exclude := make(map[string]bool, len(favorites))
	for _, f := range favorites {
		exclude[f.ID] = true
	}

	var out []models.Volume
	seen := make(map[string]bool)
	for _, q := range queries {
		list, err := r.catalog.SearchVolumes(ctx, q)
		if err != nil {
			r.logger.Warn("recommendation query failed", "query", q.String(), "error", err)
			continue
		}

		kept := 0
		for _, v := range list.Items {
			if kept == keepPerQuery {
				break
			}
			if exclude[v.ID] {
				continue
			}
			kept++
			if !seen[v.ID] {
				seen[v.ID] = true
				out = append(out, v)
			}
		}
	}
	return limit(out, maxResults)
}

func distinct(vols []models.Volume, values func(models.Volume) []string, n int) []string {
	var out []string
	seen := make(map[string]bool)
	for _, v := range vols {
		for _, s := range values(v) {
			if s == "" || seen[s] {
				continue
			}
			seen[s] = true
			out = append(out, s)
			if len(out) == n {
				return out
			}
		}
	}
	return out
}

func limit(vols []models.Volume, n int) []models.Volume {
	if len(vols) > n {
		return vols[:n]
	}
	return vols
}
