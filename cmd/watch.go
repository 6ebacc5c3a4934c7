package cmd

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/codebysope/crypto-checker/internal/cache"
	"github.com/codebysope/crypto-checker/internal/dashboard"
	"github.com/codebysope/crypto-checker/internal/market"
	"github.com/codebysope/crypto-checker/internal/resource"
	"github.com/codebysope/crypto-checker/internal/view"
)

var (
	flagCoin    string
	flagWindow  string
	flagTop     int
	flagSortBy  string
	flagSortAsc bool
	flagOnce    bool
)

func addWatchFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&flagCoin, "coin", "bitcoin", "coin id to chart")
	cmd.Flags().StringVar(&flagWindow, "window", string(market.DefaultWindow), "chart window (1h, 24h, 7d, 30d, 1y)")
	cmd.Flags().IntVar(&flagTop, "top", 20, "number of coins in the market table")
	cmd.Flags().StringVar(&flagSortBy, "sort", "rank", "market table column (rank, name, price, change, mcap, volume)")
	cmd.Flags().BoolVar(&flagSortAsc, "asc", false, "sort the market table ascending")
	cmd.Flags().BoolVar(&flagOnce, "once", false, "fetch once and exit")
}

func runWatch(cmd *cobra.Command, args []string) error {
	a, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	window := market.ParseWindow(flagWindow)
	tableSort := view.TableSort{Field: flagSortBy, Descending: !flagSortAsc}
	if (flagSortBy == "rank" || flagSortBy == "name") && !cmd.Flags().Changed("asc") {
		tableSort.Descending = false
	}

	s := a.session
	global := s.UseResource(resource.KindGlobal, nil)
	top := s.UseResource(resource.KindTop, map[string]string{"limit": strconv.Itoa(flagTop)})
	chart := s.UseResource(resource.KindChart, map[string]string{"id": flagCoin, "window": string(window)})

	render := map[resource.Kind]func(cache.Entry) (string, error){
		resource.KindGlobal: func(e cache.Entry) (string, error) {
			g, err := market.DecodeGlobal(e.Value)
			return renderGlobal(g), err
		},
		resource.KindTop: func(e cache.Entry) (string, error) {
			coins, err := market.DecodeCoins(e.Value)
			return renderCoins(coins, tableSort), err
		},
		resource.KindChart: func(e cache.Entry) (string, error) {
			points, err := market.DecodeChart(e.Value)
			return renderChart(flagCoin, window, points), err
		},
	}

	if flagOnce {
		for _, r := range []*dashboard.Resource{global, top, chart} {
			e, err := r.Refresh(cmd.Context())
			if err != nil && !e.HasValue() {
				return err
			}
			printEntry(cmd, e, render[r.Key().Kind()])
		}
		return nil
	}

	ctx := cmd.Context()
	for {
		var e cache.Entry
		select {
		case <-ctx.Done():
			return nil
		case e = <-global.Changes():
		case e = <-top.Changes():
		case e = <-chart.Changes():
		}
		printEntry(cmd, e, render[e.Key.Kind()])
	}
}

// printEntry renders settled entries; fetch-start notifications are skipped.
func printEntry(cmd *cobra.Command, e cache.Entry, render func(cache.Entry) (string, error)) {
	if e.Fetching && e.Err == nil {
		return
	}
	out := cmd.OutOrStdout()
	if e.Err != nil {
		fmt.Fprintln(out, warnStyle.Render(fmt.Sprintf("[warn] %s: %v", e.Key, e.Err)))
	}
	if !e.HasValue() {
		return
	}
	text, err := render(e)
	if err != nil {
		fmt.Fprintln(out, warnStyle.Render(fmt.Sprintf("[warn] %s: %v", e.Key, err)))
		return
	}
	fmt.Fprintln(out, text)
	fmt.Fprintln(out, dimStyle.Render(fmt.Sprintf("%s · %s · %s", e.Key.Kind(), e.Status, e.FetchedAt.Local().Format("15:04:05"))))
}

func renderGlobal(g market.GlobalSnapshot) string {
	var b strings.Builder
	b.WriteString(headerStyle.Render("Market overview"))
	b.WriteString("\n")
	fmt.Fprintf(&b, "Market cap   %s  %s\n", market.FormatNumber(g.MarketCapUSD()),
		changeStyle(g.MarketCapChange24h).Render(market.FormatPercentage(g.MarketCapChange24h)))
	fmt.Fprintf(&b, "24h volume   %s\n", market.FormatNumber(g.VolumeUSD()))
	fmt.Fprintf(&b, "Dominance    BTC %.1f%%  ETH %.1f%%\n", g.Dominance("btc"), g.Dominance("eth"))
	fmt.Fprintf(&b, "Coins        %d on %d markets", g.ActiveCryptocurrencies, g.Markets)
	return panelStyle.Render(b.String())
}

var coinFields = map[string]view.Field[market.Coin]{
	"rank":   func(c market.Coin) any { return c.MarketCapRank },
	"name":   func(c market.Coin) any { return c.Name },
	"price":  func(c market.Coin) any { return c.CurrentPrice },
	"change": func(c market.Coin) any { return c.PriceChange24h },
	"mcap":   func(c market.Coin) any { return c.MarketCap },
	"volume": func(c market.Coin) any { return c.TotalVolume },
}

func renderCoins(coins []market.Coin, sort view.TableSort) string {
	rows := view.SortTable(coins, sort, coinFields)
	var b strings.Builder
	b.WriteString(headerStyle.Render(fmt.Sprintf("%-4s %-18s %14s %9s %12s", "#", "Coin", "Price", "24h", "Market cap")))
	for _, c := range rows {
		b.WriteString("\n")
		name := clip(fmt.Sprintf("%s (%s)", c.Name, strings.ToUpper(c.Symbol)), 18)
		fmt.Fprintf(&b, "%-4d %-18s %14s %s %12s",
			c.MarketCapRank,
			name,
			"$"+c.CurrentPrice.StringFixed(2),
			changeStyle(c.PriceChange24h).Render(fmt.Sprintf("%9s", market.FormatPercentage(c.PriceChange24h))),
			market.FormatNumber(c.MarketCap),
		)
	}
	return b.String()
}

// clip shortens s to at most n characters.
func clip(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}

func renderChart(id string, window market.Window, points []market.ChartPoint) string {
	title := headerStyle.Render(fmt.Sprintf("%s · %s", id, window))
	if len(points) == 0 {
		return title + "\n" + dimStyle.Render("no price data")
	}
	first, last := points[0], points[len(points)-1]
	low, high := market.PriceRange(points)
	change := 0.0
	if first.Price != 0 {
		change = (last.Price - first.Price) / first.Price * 100
	}
	layout := window.TickLayout()
	return fmt.Sprintf("%s\n%s to %s  last $%.2f  %s\nrange $%.2f - $%.2f  volume %.0f",
		title,
		first.Time.Local().Format(layout),
		last.Time.Local().Format(layout),
		last.Price,
		changeStyle(change).Render(market.FormatPercentage(change)),
		low, high,
		last.Volume,
	)
}
