package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/codebysope/crypto-checker/internal/update"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

var (
	flagConfig   string
	flagLogLevel string
)

var rootCmd = &cobra.Command{
	Use:   "crypto-checker",
	Short: "Live crypto market dashboard in the terminal",
	Long: `crypto-checker keeps market data, charts and crypto news fresh in the background
and prints what changes. Run without a subcommand to watch the market overview.`,
	SilenceUsage: true,
	RunE:         runWatch,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", "", "path to config file")
	rootCmd.PersistentFlags().StringVar(&flagLogLevel, "log-level", "", "override log level (debug, info, warn, error)")

	addWatchFlags(rootCmd)

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(newsCmd)
	rootCmd.AddCommand(saveCmd)
	rootCmd.AddCommand(watchlistCmd)
	rootCmd.AddCommand(recentCmd)
	rootCmd.AddCommand(coinCmd)
	rootCmd.AddCommand(prefsCmd)
	rootCmd.AddCommand(statsCmd)
}

var flagCheckUpdate bool

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("crypto-checker %s (commit: %s, built: %s)\n", version, commit, date)
		if !flagCheckUpdate {
			return
		}
		if res := update.Check(cmd.Context(), update.ReleasesURL, version); res != nil {
			fmt.Println(warnStyle.Render(fmt.Sprintf("A newer version is available: %s", res.LatestVersion)))
		}
	},
}

func init() {
	versionCmd.Flags().BoolVar(&flagCheckUpdate, "check", false, "check for a newer release")
}

func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}

func SetVersionInfo(v, c, d string) {
	version = v
	commit = c
	date = d
}
