// Package upstream adapts concrete providers to the fetch.Source capability.
package upstream

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/codebysope/crypto-checker/internal/errkind"
	"github.com/codebysope/crypto-checker/internal/fetch"
	"github.com/codebysope/crypto-checker/internal/logging"
	"github.com/codebysope/crypto-checker/internal/market"
	"github.com/codebysope/crypto-checker/internal/resource"
)

const (
	DefaultBaseURL  = "https://api.coingecko.com/api/v3"
	DefaultTopLimit = 20

	maxBodyBytes = 8 << 20
	userAgent    = "crypto-checker"
)

// CoinGecko serves the global, top, chart and details kinds.
type CoinGecko struct {
	baseURL  string
	currency string
	client   *http.Client
	logger   *slog.Logger
}

var _ fetch.Source = (*CoinGecko)(nil)

type Option func(*options)

type options struct {
	client   *http.Client
	logger   *slog.Logger
	currency string
}

func WithHTTPClient(c *http.Client) Option {
	return func(o *options) {
		if c != nil {
			o.client = c
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithCurrency sets the quote currency, "usd" by default.
func WithCurrency(currency string) Option {
	return func(o *options) {
		if currency != "" {
			o.currency = strings.ToLower(currency)
		}
	}
}

func buildOptions(opts []Option) options {
	o := options{
		client:   http.DefaultClient,
		logger:   logging.Discard(),
		currency: "usd",
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

func NewCoinGecko(baseURL string, opts ...Option) *CoinGecko {
	o := buildOptions(opts)
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &CoinGecko{
		baseURL:  strings.TrimRight(baseURL, "/"),
		currency: o.currency,
		client:   o.client,
		logger:   o.logger,
	}
}

func (c *CoinGecko) Fetch(ctx context.Context, key resource.Key) (json.RawMessage, error) {
	path, query, err := c.endpoint(key)
	if err != nil {
		return nil, err
	}
	target := c.baseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}
	c.logger.Debug("upstream request", "key", key.String(), "url", target)
	return getJSON(ctx, c.client, target, "fetch "+key.String())
}

func (c *CoinGecko) endpoint(key resource.Key) (string, url.Values, error) {
	op := "route " + key.String()
	switch key.Kind() {
	case resource.KindGlobal:
		return "/global", nil, nil

	case resource.KindTop:
		limit := key.Param("limit")
		if limit == "" {
			limit = fmt.Sprint(DefaultTopLimit)
		}
		return "/coins/markets", url.Values{
			"vs_currency": {c.currency},
			"order":       {"market_cap_desc"},
			"per_page":    {limit},
			"page":        {"1"},
			"sparkline":   {"false"},
		}, nil

	case resource.KindChart:
		id := key.Param("id")
		if id == "" {
			return "", nil, errkind.New(errkind.ClientRequest, op, errors.New("missing coin id"))
		}
		window := market.ParseWindow(key.Param("window"))
		return "/coins/" + url.PathEscape(id) + "/market_chart", url.Values{
			"vs_currency": {c.currency},
			"days":        {window.DaysParam()},
		}, nil

	case resource.KindDetails:
		id := key.Param("id")
		if id == "" {
			return "", nil, errkind.New(errkind.ClientRequest, op, errors.New("missing coin id"))
		}
		return "/coins/" + url.PathEscape(id), url.Values{
			"localization":   {"false"},
			"tickers":        {"false"},
			"community_data": {"false"},
			"developer_data": {"false"},
		}, nil

	default:
		return "", nil, errkind.New(errkind.ClientRequest, op, fmt.Errorf("unsupported kind %q", key.Kind()))
	}
}

// getJSON performs one GET and classifies the outcome for the retry policy.
func getJSON(ctx context.Context, client *http.Client, target, op string) (json.RawMessage, error) {
	body, err := get(ctx, client, target, op, "application/json")
	if err != nil {
		return nil, err
	}
	if !json.Valid(body) {
		return nil, errkind.New(errkind.TransientUpstream, op, errors.New("response is not valid JSON"))
	}
	return json.RawMessage(body), nil
}

func get(ctx context.Context, client *http.Client, target, op, accept string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, errkind.New(errkind.ClientRequest, op, err)
	}
	req.Header.Set("Accept", accept)
	req.Header.Set("User-Agent", userAgent)

	resp, err := client.Do(req)
	if err != nil {
		return nil, errkind.New(errkind.TransientUpstream, op, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, errkind.New(errkind.TransientUpstream, op, fmt.Errorf("reading body: %w", err))
	}
	if err := classifyStatus(resp.StatusCode); err != nil {
		return nil, errkind.New(kindOfStatus(resp.StatusCode), op, err)
	}
	return body, nil
}

func classifyStatus(code int) error {
	if code >= 200 && code < 300 {
		return nil
	}
	return fmt.Errorf("unexpected status %d %s", code, http.StatusText(code))
}

// kindOfStatus treats 408 and 429 as transient alongside 5xx.
func kindOfStatus(code int) errkind.Kind {
	switch {
	case code == http.StatusRequestTimeout, code == http.StatusTooManyRequests:
		return errkind.TransientUpstream
	case code >= 400 && code < 500:
		return errkind.ClientRequest
	default:
		return errkind.TransientUpstream
	}
}

// CoinPageURL is the public web page for a coin.
func CoinPageURL(id string) string {
	return "https://www.coingecko.com/en/coins/" + url.PathEscape(id)
}
