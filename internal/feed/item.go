package feed

import (
	"slices"
	"strings"
	"time"
)

// Item is one news article as the core sees it. Provider payloads are mapped
// into this shape by the upstream adapters.
type Item struct {
	ID          string    `json:"id"`
	PublishedAt time.Time `json:"published_at"`
	Title       string    `json:"title"`
	Body        string    `json:"body,omitempty"`
	URL         string    `json:"url,omitempty"`
	ImageURL    string    `json:"image_url,omitempty"`
	Source      string    `json:"source,omitempty"`
	Language    string    `json:"language,omitempty"`
	Category    string    `json:"category,omitempty"`
	Tags        []string  `json:"tags,omitempty"`
	Upvotes     int       `json:"upvotes,omitempty"`
	Downvotes   int       `json:"downvotes,omitempty"`
	Views       int       `json:"views,omitempty"`
}

// Score is upvotes minus downvotes.
func (i Item) Score() int {
	return i.Upvotes - i.Downvotes
}

func (i Item) clone() Item {
	i.Tags = slices.Clone(i.Tags)
	return i
}

// AllCategories is the filter value that disables category scoping.
const AllCategories = "ALL"

// Filter scopes an accumulation. Changing the filter resets accumulated pages.
type Filter struct {
	Category string
	Search   string
}

func (f Filter) normalized() Filter {
	f.Category = strings.TrimSpace(f.Category)
	if f.Category == "" || strings.EqualFold(f.Category, AllCategories) {
		f.Category = AllCategories
	}
	f.Search = strings.TrimSpace(f.Search)
	return f
}

func (f Filter) String() string {
	n := f.normalized()
	if n.Search == "" {
		return n.Category
	}
	return n.Category + "/" + n.Search
}
