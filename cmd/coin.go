package cmd

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/codebysope/crypto-checker/internal/browser"
	"github.com/codebysope/crypto-checker/internal/market"
	"github.com/codebysope/crypto-checker/internal/resource"
	"github.com/codebysope/crypto-checker/internal/store"
	"github.com/codebysope/crypto-checker/internal/upstream"
)

var (
	flagCoinWindow string
	flagCoinOpen   bool
)

var coinCmd = &cobra.Command{
	Use:     "coin <coin-id>",
	Aliases: []string{"view"},
	Short:   "Show details and a price chart for one coin",
	Long: `Fetch details and a price chart for a coin and record it in the recently
viewed list. With --open the coin page is opened in the browser as well.`,
	Args: cobra.ExactArgs(1),
	RunE: runCoin,
}

func init() {
	coinCmd.Flags().StringVar(&flagCoinWindow, "window", string(market.DefaultWindow), "chart window (1h, 24h, 7d, 30d, 1y)")
	coinCmd.Flags().BoolVar(&flagCoinOpen, "open", false, "open the coin page in the browser")
}

func runCoin(cmd *cobra.Command, args []string) error {
	id := strings.ToLower(strings.TrimSpace(args[0]))
	window := market.ParseWindow(flagCoinWindow)

	a, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	details := a.session.UseResource(resource.KindDetails, map[string]string{"id": id})
	e, err := details.Refresh(ctx)
	if err != nil && !e.HasValue() {
		return fmt.Errorf("loading %s: %w", id, err)
	}
	d, err := market.DecodeDetails(e.Value)
	if err != nil {
		return err
	}
	fmt.Fprintln(out, renderDetails(d))

	chart := a.session.UseResource(resource.KindChart, map[string]string{"id": id, "window": string(window)})
	if ce, err := chart.Refresh(ctx); err != nil && !ce.HasValue() {
		fmt.Fprintln(cmd.ErrOrStderr(), warnStyle.Render(fmt.Sprintf("[warn] chart: %v", err)))
	} else if points, err := market.DecodeChart(ce.Value); err == nil {
		fmt.Fprintln(out, renderChart(id, window, points))
	}

	recent := store.RecentView{ID: d.ID, Name: d.Name, Symbol: d.Symbol, ViewedAt: time.Now().UTC()}
	if recent.ID == "" {
		recent.ID = id
	}
	if err := a.session.UseRecentViews().Add(recent); err != nil {
		fmt.Fprintln(cmd.ErrOrStderr(), warnStyle.Render(fmt.Sprintf("[warn] %v", err)))
	}

	if flagCoinOpen {
		return browser.Open(upstream.CoinPageURL(id))
	}
	return nil
}

func renderDetails(d market.Details) string {
	var b strings.Builder
	b.WriteString(headerStyle.Render(fmt.Sprintf("%s (%s)  #%d", d.Name, strings.ToUpper(d.Symbol), d.MarketCapRank)))
	b.WriteString("\n")
	md := d.MarketData
	change := md.PriceChange24h
	fmt.Fprintf(&b, "Price        $%s  %s\n", md.CurrentPrice["usd"].StringFixed(2),
		changeStyle(change).Render(market.FormatPercentage(change)))
	fmt.Fprintf(&b, "Market cap   %s\n", market.FormatNumber(md.MarketCap["usd"]))
	fmt.Fprintf(&b, "24h volume   %s  (%s of market cap)\n",
		market.FormatNumber(md.TotalVolume["usd"]),
		d.VolumeToMarketCap().Shift(2).StringFixed(2)+"%")
	if home := d.Homepage(); home != "" {
		fmt.Fprintf(&b, "Homepage     %s\n", home)
	}
	if len(d.Categories) > 0 {
		fmt.Fprintf(&b, "Categories   %s", strings.Join(d.Categories, ", "))
	}
	return panelStyle.Render(strings.TrimRight(b.String(), "\n"))
}
