package upstream

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/mmcdole/gofeed"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/codebysope/crypto-checker/internal/classify"
	"github.com/codebysope/crypto-checker/internal/config"
	"github.com/codebysope/crypto-checker/internal/errkind"
	"github.com/codebysope/crypto-checker/internal/feed"
	"github.com/codebysope/crypto-checker/internal/fetch"
	"github.com/codebysope/crypto-checker/internal/resource"
)

const (
	// DefaultMaxAge drops items older than a week.
	DefaultMaxAge = 7 * 24 * time.Hour

	// DefaultSnapshotTTL is how long one aggregation of all sources serves
	// page requests before the feeds are downloaded again.
	DefaultSnapshotTTL = time.Minute

	aggregateTimeout = 30 * time.Second

	maxBodyChars     = 300
	concurrentFeeds  = 4
	feedAcceptHeader = "application/rss+xml, application/atom+xml, application/xml;q=0.9, */*;q=0.8"
)

// NewsSource aggregates RSS/Atom feeds and serves them as pages of feed.Item
// for news keys. Recognized params: page (1-indexed), size, category, search.
type NewsSource struct {
	sources []config.Source
	client  *http.Client
	logger  *slog.Logger
	maxAge  time.Duration
	ttl     time.Duration
	now     func() time.Time

	group singleflight.Group

	mu        sync.Mutex
	snapshot  []feed.Item
	takenAt   time.Time
	lastFails []error
}

var _ fetch.Source = (*NewsSource)(nil)

func NewNewsSource(sources []config.Source, opts ...Option) *NewsSource {
	o := buildOptions(opts)
	return &NewsSource{
		sources: sources,
		client:  o.client,
		logger:  o.logger,
		maxAge:  DefaultMaxAge,
		ttl:     DefaultSnapshotTTL,
		now:     time.Now,
	}
}

func (n *NewsSource) Fetch(ctx context.Context, key resource.Key) (json.RawMessage, error) {
	if key.Kind() != resource.KindNews {
		return nil, errkind.New(errkind.ClientRequest, "news "+key.String(), fmt.Errorf("unsupported kind %q", key.Kind()))
	}
	page, size, err := pageParams(key)
	if err != nil {
		return nil, errkind.New(errkind.ClientRequest, "news "+key.String(), err)
	}

	// Page 1 is what the poller refreshes, so it always re-reads the feeds once
	// the snapshot has aged out; later pages reuse the snapshot page 1 built.
	items, err := n.items(ctx, page == 1)
	if err != nil {
		return nil, err
	}

	filtered := filterItems(items, key.Param("category"), key.Param("search"))
	start := (page - 1) * size
	end := min(start+size, len(filtered))
	out := []feed.Item{}
	if start < len(filtered) {
		out = filtered[start:end]
	}

	payload, err := json.Marshal(out)
	if err != nil {
		return nil, fmt.Errorf("encoding news page: %w", err)
	}
	return payload, nil
}

// LastFailures returns the per-source errors of the most recent aggregation.
func (n *NewsSource) LastFailures() []error {
	n.mu.Lock()
	defer n.mu.Unlock()
	return slices.Clone(n.lastFails)
}

func (n *NewsSource) items(ctx context.Context, head bool) ([]feed.Item, error) {
	n.mu.Lock()
	fresh := n.snapshot != nil && n.now().Sub(n.takenAt) < n.ttl
	if fresh || (!head && n.snapshot != nil) {
		items := n.snapshot
		n.mu.Unlock()
		return items, nil
	}
	n.mu.Unlock()

	ch := n.group.DoChan("all", func() (any, error) {
		// Shared by all waiting callers; detached from any one of them.
		aggCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), aggregateTimeout)
		defer cancel()
		return n.aggregate(aggCtx)
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.([]feed.Item), nil
	}
}

func (n *NewsSource) aggregate(ctx context.Context) ([]feed.Item, error) {
	var (
		mu    sync.Mutex
		all   []feed.Item
		fails []error
	)

	var g errgroup.Group
	g.SetLimit(concurrentFeeds)
	for _, src := range n.sources {
		if !src.Enabled {
			continue
		}
		g.Go(func() error {
			items, err := n.fetchSource(ctx, src)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				n.logger.Warn("news source failed", "source", src.Name, "error", err)
				fails = append(fails, err)
				return nil
			}
			all = append(all, items...)
			return nil
		})
	}
	g.Wait()

	if len(all) == 0 && len(fails) > 0 {
		return nil, errkind.New(errkind.TransientUpstream, "aggregate news", errors.Join(fails...))
	}

	all = dedupe(all)
	if all == nil {
		// An empty aggregation is still a snapshot.
		all = []feed.Item{}
	}
	slices.SortStableFunc(all, func(a, b feed.Item) int {
		return b.PublishedAt.Compare(a.PublishedAt)
	})

	n.mu.Lock()
	n.snapshot = all
	n.takenAt = n.now()
	n.lastFails = fails
	n.mu.Unlock()
	return all, nil
}

func (n *NewsSource) fetchSource(ctx context.Context, source config.Source) ([]feed.Item, error) {
	body, err := get(ctx, n.client, source.URL, "fetch "+source.Name, feedAcceptHeader)
	if err != nil {
		return nil, err
	}
	parsed, err := gofeed.NewParser().Parse(bytes.NewReader(body))
	if err != nil {
		return nil, errkind.New(errkind.TransientUpstream, "parse "+source.Name, err)
	}

	now := n.now()
	maxAge := now.Add(-n.maxAge)
	items := make([]feed.Item, 0, len(parsed.Items))
	for _, entry := range parsed.Items {
		if entry.Link == "" {
			continue
		}
		pub := now
		if entry.PublishedParsed != nil {
			pub = *entry.PublishedParsed
		} else if entry.UpdatedParsed != nil {
			pub = *entry.UpdatedParsed
		}
		if pub.Before(maxAge) {
			continue
		}

		desc := entry.Description
		if desc == "" {
			desc = entry.Content
		}
		text := truncate(htmlText(desc), maxBodyChars)
		title := htmlText(entry.Title)

		items = append(items, feed.Item{
			ID:          articleID(entry.Link),
			PublishedAt: pub.UTC(),
			Title:       title,
			Body:        text,
			URL:         entry.Link,
			ImageURL:    imageURL(entry),
			Source:      source.Name,
			Language:    source.Language,
			Category:    string(classify.Classify(title, text)),
			Tags:        slices.Clone(entry.Categories),
		})
	}
	return items, nil
}

func pageParams(key resource.Key) (page, size int, err error) {
	page, size = 1, feed.DefaultPageSize
	if v := key.Param("page"); v != "" {
		if page, err = strconv.Atoi(v); err != nil || page < 1 {
			return 0, 0, fmt.Errorf("invalid page %q", v)
		}
	}
	if v := key.Param("size"); v != "" {
		if size, err = strconv.Atoi(v); err != nil || size < 1 {
			return 0, 0, fmt.Errorf("invalid size %q", v)
		}
	}
	return page, size, nil
}

func filterItems(items []feed.Item, category, search string) []feed.Item {
	category = strings.TrimSpace(category)
	if strings.EqualFold(category, feed.AllCategories) {
		category = ""
	}
	needle := strings.ToLower(strings.TrimSpace(search))
	if category == "" && needle == "" {
		return items
	}

	var out []feed.Item
	for _, item := range items {
		if category != "" && !strings.EqualFold(item.Category, category) {
			continue
		}
		if needle != "" &&
			!strings.Contains(strings.ToLower(item.Title), needle) &&
			!strings.Contains(strings.ToLower(item.Body), needle) {
			continue
		}
		out = append(out, item)
	}
	return out
}

// dedupe keeps the first item per id; the same story syndicated under one
// link appears once.
func dedupe(items []feed.Item) []feed.Item {
	seen := make(map[string]bool, len(items))
	out := items[:0]
	for _, item := range items {
		if seen[item.ID] {
			continue
		}
		seen[item.ID] = true
		out = append(out, item)
	}
	return out
}

func articleID(link string) string {
	h := sha256.Sum256([]byte(link))
	return fmt.Sprintf("%x", h[:16])
}

func imageURL(entry *gofeed.Item) string {
	if entry.Image != nil && entry.Image.URL != "" {
		return entry.Image.URL
	}
	for _, enc := range entry.Enclosures {
		if enc != nil && strings.HasPrefix(enc.Type, "image/") {
			return enc.URL
		}
	}
	return ""
}

func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	if n <= 3 {
		return string(runes[:n])
	}
	return string(runes[:n-3]) + "..."
}

// htmlText returns the visible text of an HTML fragment with whitespace
// collapsed. Plain text passes through unchanged apart from spacing.
func htmlText(s string) string {
	if !strings.ContainsAny(s, "<&") {
		return strings.Join(strings.Fields(s), " ")
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(s))
	if err != nil {
		return strings.Join(strings.Fields(s), " ")
	}
	doc.Find("script, style").Remove()
	return strings.Join(strings.Fields(doc.Text()), " ")
}
