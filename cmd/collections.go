package cmd

import (
	"fmt"
	"io"
	"slices"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/codebysope/crypto-checker/internal/store"
)

var watchlistCmd = &cobra.Command{
	Use:   "watchlist",
	Short: "Manage watched coins",
}

var watchlistAddCmd = &cobra.Command{
	Use:   "add <coin-id>...",
	Short: "Add coins to the watchlist",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withWatchlist(cmd, func(w *store.IDSet) error {
			for _, id := range args {
				if err := w.Add(id); err != nil {
					return err
				}
			}
			return nil
		})
	},
}

var watchlistRemoveCmd = &cobra.Command{
	Use:     "remove <coin-id>...",
	Aliases: []string{"rm"},
	Short:   "Remove coins from the watchlist",
	Args:    cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withWatchlist(cmd, func(w *store.IDSet) error {
			for _, id := range args {
				if err := w.Remove(id); err != nil {
					return err
				}
			}
			return nil
		})
	},
}

var watchlistToggleCmd = &cobra.Command{
	Use:   "toggle <coin-id>",
	Short: "Add a coin if absent, remove it otherwise",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withWatchlist(cmd, func(w *store.IDSet) error {
			_, err := w.Toggle(args[0])
			return err
		})
	},
}

var watchlistListCmd = &cobra.Command{
	Use:   "list",
	Short: "Show the watchlist",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withWatchlist(cmd, nil)
	},
}

func init() {
	watchlistCmd.AddCommand(watchlistAddCmd, watchlistRemoveCmd, watchlistToggleCmd, watchlistListCmd)
}

// withWatchlist applies mutate and prints the resulting list. Write failures
// are reported but the command still succeeds.
func withWatchlist(cmd *cobra.Command, mutate func(*store.IDSet) error) error {
	a, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	w := a.session.UseWatchlist()
	if mutate != nil {
		if err := mutate(w); err != nil {
			fmt.Fprintln(cmd.ErrOrStderr(), warnStyle.Render(fmt.Sprintf("[warn] %v", err)))
		}
	}
	renderIDs(cmd.OutOrStdout(), "Watchlist", w.IDs())
	return nil
}

func renderIDs(w io.Writer, title string, ids []string) {
	fmt.Fprintln(w, headerStyle.Render(fmt.Sprintf("%s (%d)", title, len(ids))))
	if len(ids) == 0 {
		fmt.Fprintln(w, dimStyle.Render("  empty"))
		return
	}
	for _, id := range ids {
		fmt.Fprintf(w, "  %s\n", id)
	}
}

var recentCmd = &cobra.Command{
	Use:   "recent",
	Short: "Show recently viewed coins",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		renderRecent(cmd.OutOrStdout(), a.session.UseRecentViews().Items(), time.Now())
		return nil
	},
}

func renderRecent(w io.Writer, items []store.RecentView, now time.Time) {
	fmt.Fprintln(w, headerStyle.Render("Recently viewed"))
	if len(items) == 0 {
		fmt.Fprintln(w, dimStyle.Render("  nothing yet"))
		return
	}
	for _, v := range items {
		fmt.Fprintf(w, "  %-20s %-6s %s\n", v.Name, strings.ToUpper(v.Symbol), dimStyle.Render(v.ID+" · "+relativeTime(now, v.ViewedAt)))
	}
}

var prefsCmd = &cobra.Command{
	Use:   "prefs",
	Short: "Show or change display preferences",
}

var prefsGetCmd = &cobra.Command{
	Use:   "get [key]",
	Short: "Print one preference or all of them",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		prefs := a.session.UsePreferences()
		if len(args) == 1 {
			v, ok := prefs.Get(args[0])
			if !ok {
				return fmt.Errorf("unknown preference %q", args[0])
			}
			fmt.Fprintln(cmd.OutOrStdout(), v)
			return nil
		}
		renderPrefs(cmd.OutOrStdout(), prefs.All())
		return nil
	},
}

var prefsSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a preference",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		prefs := a.session.UsePreferences()
		if err := prefs.Update(args[0], parseScalar(args[1])); err != nil {
			fmt.Fprintln(cmd.ErrOrStderr(), warnStyle.Render(fmt.Sprintf("[warn] %v", err)))
		}
		renderPrefs(cmd.OutOrStdout(), prefs.All())
		return nil
	},
}

func init() {
	prefsCmd.AddCommand(prefsGetCmd, prefsSetCmd)
}

// parseScalar reads a command-line value as YAML so "true" and "3" keep their
// types.
func parseScalar(s string) any {
	var v any
	if err := yaml.Unmarshal([]byte(s), &v); err != nil || v == nil {
		return s
	}
	switch v.(type) {
	case bool, int, float64, string:
		return v
	default:
		return s
	}
}

func renderPrefs(w io.Writer, prefs map[string]any) {
	keys := make([]string, 0, len(prefs))
	for k := range prefs {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	for _, k := range keys {
		fmt.Fprintf(w, "%-14s %v\n", k, prefs[k])
	}
}
