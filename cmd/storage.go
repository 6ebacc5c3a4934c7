package cmd

import (
	"fmt"
	"os"
	"slices"
	"time"

	"github.com/spf13/cobra"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show local storage statistics",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		path := a.cfg.StoragePath()
		namespaces, err := a.backend.Namespaces()
		if err != nil {
			return fmt.Errorf("reading stats: %w", err)
		}

		var size int64
		if info, err := os.Stat(path); err == nil {
			size = info.Size()
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Storage: %s\n", path)
		fmt.Fprintf(out, "Size: %s\n", formatBytes(size))
		fmt.Fprintf(out, "Watchlist: %d coin(s)\n", len(a.session.UseWatchlist().IDs()))
		fmt.Fprintf(out, "Saved articles: %d\n", len(a.session.UseSavedArticles().IDs()))
		fmt.Fprintf(out, "Recent views: %d\n", len(a.session.UseRecentViews().Items()))

		names := make([]string, 0, len(namespaces))
		for ns := range namespaces {
			names = append(names, ns)
		}
		slices.Sort(names)
		for _, ns := range names {
			fmt.Fprintf(out, "  %-14s updated %s ago\n", ns, formatDuration(time.Since(namespaces[ns])))
		}
		return nil
	},
}

func formatDuration(d time.Duration) string {
	switch {
	case d >= 24*time.Hour:
		return fmt.Sprintf("%dd", int(d.Hours()/24))
	case d >= time.Hour:
		return fmt.Sprintf("%dh", int(d.Hours()))
	default:
		return fmt.Sprintf("%dm", int(d.Minutes()))
	}
}

func formatBytes(b int64) string {
	switch {
	case b >= 1<<20:
		return fmt.Sprintf("%.1f MB", float64(b)/(1<<20))
	case b >= 1<<10:
		return fmt.Sprintf("%.1f KB", float64(b)/(1<<10))
	default:
		return fmt.Sprintf("%d B", b)
	}
}
