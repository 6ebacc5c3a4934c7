// Package view derives ordered, filtered sequences from accumulated news
// items. Everything here is pure: inputs are never mutated.
package view

import (
	"sort"
	"strings"

	"github.com/codebysope/crypto-checker/internal/feed"
)

type SortKey string

const (
	SortNone       SortKey = ""
	SortDate       SortKey = "date"
	SortPopularity SortKey = "popularity"
)

// ParseSortKey maps user input to a SortKey. Unknown values sort by date.
func ParseSortKey(s string) SortKey {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "":
		return SortNone
	case "popularity", "popular", "score":
		return SortPopularity
	default:
		return SortDate
	}
}

// SourceRef identifies a news source by name and language.
type SourceRef struct {
	Name     string
	Language string
}

type Query struct {
	Search  string
	Sources []SourceRef
	// Saved restricts output to these ids when non-nil.
	Saved map[string]bool
	Sort  SortKey
}

// Apply filters and orders items according to q. It returns a new slice.
func Apply(items []feed.Item, q Query) []feed.Item {
	needle := strings.ToLower(strings.TrimSpace(q.Search))

	var sources map[SourceRef]bool
	if len(q.Sources) > 0 {
		sources = make(map[SourceRef]bool, len(q.Sources))
		for _, ref := range q.Sources {
			sources[normalizeRef(ref)] = true
		}
	}

	out := make([]feed.Item, 0, len(items))
	for _, item := range items {
		if q.Saved != nil && !q.Saved[item.ID] {
			continue
		}
		if sources != nil && !sources[normalizeRef(SourceRef{Name: item.Source, Language: item.Language})] {
			continue
		}
		if needle != "" && !matches(item, needle) {
			continue
		}
		item.Tags = append([]string(nil), item.Tags...)
		out = append(out, item)
	}

	switch q.Sort {
	case SortDate:
		sort.SliceStable(out, func(i, j int) bool {
			return out[i].PublishedAt.After(out[j].PublishedAt)
		})
	case SortPopularity:
		sort.SliceStable(out, func(i, j int) bool {
			a, b := out[i], out[j]
			if a.Score() != b.Score() {
				return a.Score() > b.Score()
			}
			if a.Views != b.Views {
				return a.Views > b.Views
			}
			return a.PublishedAt.After(b.PublishedAt)
		})
	}
	return out
}

func matches(item feed.Item, needle string) bool {
	if strings.Contains(strings.ToLower(item.Title), needle) ||
		strings.Contains(strings.ToLower(item.Body), needle) ||
		strings.Contains(strings.ToLower(item.Source), needle) {
		return true
	}
	for _, tag := range item.Tags {
		if strings.Contains(strings.ToLower(tag), needle) {
			return true
		}
	}
	return false
}

func normalizeRef(ref SourceRef) SourceRef {
	return SourceRef{
		Name:     strings.ToLower(strings.TrimSpace(ref.Name)),
		Language: strings.ToLower(strings.TrimSpace(ref.Language)),
	}
}
