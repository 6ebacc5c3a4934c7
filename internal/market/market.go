// Package market holds the shapes the dashboard consumes for market data and
// the helpers that decode and format them.
package market

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// GlobalSnapshot is the overall market state.
type GlobalSnapshot struct {
	ActiveCryptocurrencies int                        `json:"active_cryptocurrencies"`
	Markets                int                        `json:"markets"`
	TotalMarketCap         map[string]decimal.Decimal `json:"total_market_cap"`
	TotalVolume            map[string]decimal.Decimal `json:"total_volume"`
	MarketCapPercentage    map[string]float64         `json:"market_cap_percentage"`
	MarketCapChange24h     float64                    `json:"market_cap_change_percentage_24h_usd"`
	UpdatedAt              int64                      `json:"updated_at"`
}

// MarketCapUSD returns the total market cap in USD or zero.
func (g GlobalSnapshot) MarketCapUSD() decimal.Decimal {
	return g.TotalMarketCap["usd"]
}

func (g GlobalSnapshot) VolumeUSD() decimal.Decimal {
	return g.TotalVolume["usd"]
}

// Dominance returns the market cap share of symbol in percent.
func (g GlobalSnapshot) Dominance(symbol string) float64 {
	return g.MarketCapPercentage[symbol]
}

// DecodeGlobal accepts the snapshot either bare or wrapped in a "data" envelope.
func DecodeGlobal(raw json.RawMessage) (GlobalSnapshot, error) {
	var envelope struct {
		Data *GlobalSnapshot `json:"data"`
	}
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return GlobalSnapshot{}, fmt.Errorf("decoding global snapshot: %w", err)
	}
	if envelope.Data != nil {
		return *envelope.Data, nil
	}
	var g GlobalSnapshot
	if err := json.Unmarshal(raw, &g); err != nil {
		return GlobalSnapshot{}, fmt.Errorf("decoding global snapshot: %w", err)
	}
	return g, nil
}

// Coin is one row of the top-N listing.
type Coin struct {
	ID                string          `json:"id"`
	Symbol            string          `json:"symbol"`
	Name              string          `json:"name"`
	Image             string          `json:"image,omitempty"`
	CurrentPrice      decimal.Decimal `json:"current_price"`
	MarketCap         decimal.Decimal `json:"market_cap"`
	MarketCapRank     int             `json:"market_cap_rank"`
	TotalVolume       decimal.Decimal `json:"total_volume"`
	High24h           decimal.Decimal `json:"high_24h"`
	Low24h            decimal.Decimal `json:"low_24h"`
	PriceChange24h    float64         `json:"price_change_percentage_24h"`
	CirculatingSupply decimal.Decimal `json:"circulating_supply"`
	LastUpdated       time.Time       `json:"last_updated,omitempty"`
}

func DecodeCoins(raw json.RawMessage) ([]Coin, error) {
	var coins []Coin
	if err := json.Unmarshal(raw, &coins); err != nil {
		return nil, fmt.Errorf("decoding coin listing: %w", err)
	}
	return coins, nil
}

// Details describes one coin.
type Details struct {
	ID            string            `json:"id"`
	Symbol        string            `json:"symbol"`
	Name          string            `json:"name"`
	MarketCapRank int               `json:"market_cap_rank"`
	Categories    []string          `json:"categories"`
	Description   LocalizedText     `json:"description"`
	Links         DetailsLinks      `json:"links"`
	MarketData    DetailsMarketData `json:"market_data"`
}

type LocalizedText struct {
	EN string `json:"en"`
}

type DetailsLinks struct {
	Homepage []string `json:"homepage"`
}

// DetailsMarketData maps quote currency to value.
type DetailsMarketData struct {
	CurrentPrice   map[string]decimal.Decimal `json:"current_price"`
	MarketCap      map[string]decimal.Decimal `json:"market_cap"`
	TotalVolume    map[string]decimal.Decimal `json:"total_volume"`
	PriceChange24h float64                    `json:"price_change_percentage_24h"`
}

// Homepage returns the first non-empty homepage link.
func (d Details) Homepage() string {
	for _, link := range d.Links.Homepage {
		if link != "" {
			return link
		}
	}
	return ""
}

// VolumeToMarketCap returns total volume over market cap in USD, or zero when
// the market cap is unknown.
func (d Details) VolumeToMarketCap() decimal.Decimal {
	mcap := d.MarketData.MarketCap["usd"]
	if mcap.IsZero() {
		return decimal.Zero
	}
	return d.MarketData.TotalVolume["usd"].Div(mcap)
}

func DecodeDetails(raw json.RawMessage) (Details, error) {
	var d Details
	if err := json.Unmarshal(raw, &d); err != nil {
		return Details{}, fmt.Errorf("decoding coin details: %w", err)
	}
	return d, nil
}
