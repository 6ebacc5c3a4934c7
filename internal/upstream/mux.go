package upstream

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/codebysope/crypto-checker/internal/config"
	"github.com/codebysope/crypto-checker/internal/errkind"
	"github.com/codebysope/crypto-checker/internal/fetch"
	"github.com/codebysope/crypto-checker/internal/resource"
)

// Mux routes a key to the Source registered for its kind.
type Mux map[resource.Kind]fetch.Source

var _ fetch.Source = Mux(nil)

func (m Mux) Fetch(ctx context.Context, key resource.Key) (json.RawMessage, error) {
	src, ok := m[key.Kind()]
	if !ok {
		return nil, errkind.New(errkind.ClientRequest, "route "+key.String(), fmt.Errorf("no source for kind %q", key.Kind()))
	}
	return src.Fetch(ctx, key)
}

// FromConfig wires CoinGecko for market kinds and the configured feeds for news.
func FromConfig(cfg *config.Config, logger *slog.Logger) Mux {
	client := &http.Client{}
	market := NewCoinGecko(cfg.Upstream.BaseURL, WithHTTPClient(client), WithLogger(logger))
	news := NewNewsSource(cfg.EnabledSources(), WithHTTPClient(client), WithLogger(logger))
	return Mux{
		resource.KindGlobal:  market,
		resource.KindTop:     market,
		resource.KindChart:   market,
		resource.KindDetails: market,
		resource.KindNews:    news,
	}
}
