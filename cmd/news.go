package cmd

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/codebysope/crypto-checker/internal/browser"
	"github.com/codebysope/crypto-checker/internal/classify"
	"github.com/codebysope/crypto-checker/internal/dashboard"
	"github.com/codebysope/crypto-checker/internal/feed"
	"github.com/codebysope/crypto-checker/internal/view"
)

var (
	flagNewsCategory string
	flagNewsSearch   string
	flagNewsSources  []string
	flagNewsSort     string
	flagNewsPages    int
	flagNewsSaved    bool
	flagNewsOpen     string
)

var newsCmd = &cobra.Command{
	Use:   "news",
	Short: "List crypto news",
	Long: `Load crypto news pages from the configured feeds and print them.

--category and --search narrow what the feeds return; --source, --sort and --saved
reorder or filter what has been loaded.`,
	RunE: runNews,
}

func init() {
	newsCmd.Flags().StringVar(&flagNewsCategory, "category", "all", "category or alias (btc, eth, defi, reg, security, web3, markets)")
	newsCmd.Flags().StringVar(&flagNewsSearch, "search", "", "only items matching this text")
	newsCmd.Flags().StringSliceVar(&flagNewsSources, "source", nil, "only these sources, as name or name:language")
	newsCmd.Flags().StringVar(&flagNewsSort, "sort", "date", "order by date or popularity")
	newsCmd.Flags().IntVar(&flagNewsPages, "pages", 1, "number of pages to load")
	newsCmd.Flags().BoolVar(&flagNewsSaved, "saved", false, "only saved articles")
	newsCmd.Flags().StringVar(&flagNewsOpen, "open", "", "open the article with this id in the browser")
}

func runNews(cmd *cobra.Command, args []string) error {
	filter, err := newsFilter(flagNewsCategory, flagNewsSearch)
	if err != nil {
		return err
	}

	a, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx := cmd.Context()
	f, err := a.session.UsePaginatedFeed(ctx, filter)
	if err != nil {
		return fmt.Errorf("loading news: %w", err)
	}
	for page := 1; page < flagNewsPages && f.HasMore(); page++ {
		if _, err := f.LoadMore(ctx); err != nil {
			fmt.Fprintln(cmd.ErrOrStderr(), warnStyle.Render(fmt.Sprintf("[warn] %v", err)))
			break
		}
	}

	items := a.session.UseDerivedView(f.Items(), dashboard.ViewOptions{
		Sources:   parseSourceRefs(flagNewsSources),
		Sort:      view.ParseSortKey(flagNewsSort),
		SavedOnly: flagNewsSaved,
	})

	if flagNewsOpen != "" {
		for _, item := range items {
			if item.ID == flagNewsOpen {
				return browser.Open(item.URL)
			}
		}
		return fmt.Errorf("article %s is not in the loaded pages", flagNewsOpen)
	}

	saved := a.session.UseSavedArticles().Set()
	renderNews(cmd.OutOrStdout(), items, saved, time.Now())
	if f.HasMore() {
		fmt.Fprintln(cmd.OutOrStdout(), dimStyle.Render(fmt.Sprintf("more available: --pages %d", f.Snapshot().PageIndex+1)))
	}
	return nil
}

func newsFilter(category, search string) (feed.Filter, error) {
	filter := feed.Filter{Category: feed.AllCategories, Search: strings.TrimSpace(search)}
	if category == "" || strings.EqualFold(category, feed.AllCategories) {
		return filter, nil
	}
	cat, err := classify.ResolveAlias(category)
	if err != nil {
		return feed.Filter{}, err
	}
	filter.Category = string(cat)
	return filter, nil
}

func parseSourceRefs(values []string) []view.SourceRef {
	var refs []view.SourceRef
	for _, v := range values {
		name, lang, _ := strings.Cut(v, ":")
		if name = strings.TrimSpace(name); name == "" {
			continue
		}
		refs = append(refs, view.SourceRef{Name: name, Language: strings.TrimSpace(lang)})
	}
	return refs
}

func renderNews(w io.Writer, items []feed.Item, saved map[string]bool, now time.Time) {
	if len(items) == 0 {
		fmt.Fprintln(w, dimStyle.Render("No articles."))
		return
	}
	for _, item := range items {
		mark := " "
		if saved[item.ID] {
			mark = accentStyle.Render("*")
		}
		fmt.Fprintf(w, "%s %s\n", mark, itemTitleStyle.Render(item.Title))
		fmt.Fprintf(w, "  %s  %s  %s  %s\n",
			itemSourceStyle.Render(item.Source),
			dimStyle.Render(item.Category),
			dimStyle.Render(relativeTime(now, item.PublishedAt)),
			dimStyle.Render(item.ID),
		)
	}
}

func relativeTime(now, t time.Time) string {
	d := now.Sub(t)
	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(d.Hours()))
	default:
		return fmt.Sprintf("%dd ago", int(d.Hours()/24))
	}
}

var saveCmd = &cobra.Command{
	Use:   "save <article-id>",
	Short: "Save or unsave a news article",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		saved, err := a.session.UseSavedArticles().Toggle(args[0])
		if err != nil {
			fmt.Fprintln(cmd.ErrOrStderr(), warnStyle.Render(fmt.Sprintf("[warn] %v", err)))
		}
		if saved {
			fmt.Fprintf(cmd.OutOrStdout(), "Saved %s.\n", args[0])
		} else {
			fmt.Fprintf(cmd.OutOrStdout(), "Removed %s from saved articles.\n", args[0])
		}
		return nil
	},
}
