package upstream

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/codebysope/crypto-checker/internal/config"
	"github.com/codebysope/crypto-checker/internal/errkind"
	"github.com/codebysope/crypto-checker/internal/market"
	"github.com/codebysope/crypto-checker/internal/resource"
)

func TestCoinGeckoRoutes(t *testing.T) {
	urls := make(chan string, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		urls <- r.URL.String()
		if r.Header.Get("User-Agent") == "" {
			t.Error("missing user agent")
		}
		fmt.Fprint(w, `{"ok":true}`)
	}))
	defer srv.Close()

	cg := NewCoinGecko(srv.URL+"/", WithHTTPClient(srv.Client()))
	tests := []struct {
		key  resource.Key
		want string
	}{
		{resource.NewKey(resource.KindGlobal, nil), "/global"},
		{resource.NewKey(resource.KindTop, map[string]string{"limit": "10"}), "/coins/markets?order=market_cap_desc&page=1&per_page=10&sparkline=false&vs_currency=usd"},
		{resource.NewKey(resource.KindTop, nil), "/coins/markets?order=market_cap_desc&page=1&per_page=20&sparkline=false&vs_currency=usd"},
		{resource.NewKey(resource.KindChart, map[string]string{"id": "bitcoin", "window": "1h"}), "/coins/bitcoin/market_chart?days=0.042&vs_currency=usd"},
		{resource.NewKey(resource.KindChart, map[string]string{"id": "bitcoin", "window": "bogus"}), "/coins/bitcoin/market_chart?days=1&vs_currency=usd"},
		{resource.NewKey(resource.KindDetails, map[string]string{"id": "ethereum"}), "/coins/ethereum?community_data=false&developer_data=false&localization=false&tickers=false"},
	}
	for _, tt := range tests {
		raw, err := cg.Fetch(context.Background(), tt.key)
		if err != nil {
			t.Fatalf("%s: %v", tt.key, err)
		}
		if string(raw) != `{"ok":true}` {
			t.Errorf("%s: unexpected body %s", tt.key, raw)
		}
		if got := <-urls; got != tt.want {
			t.Errorf("%s: requested %s, want %s", tt.key, got, tt.want)
		}
	}
}

func TestCoinGeckoClassifiesFailures(t *testing.T) {
	tests := []struct {
		status int
		body   string
		want   error
	}{
		{http.StatusBadRequest, `{}`, errkind.ErrClientRequest},
		{http.StatusNotFound, `{}`, errkind.ErrClientRequest},
		{http.StatusRequestTimeout, `{}`, errkind.ErrTransientUpstream},
		{http.StatusTooManyRequests, `{}`, errkind.ErrTransientUpstream},
		{http.StatusBadGateway, `{}`, errkind.ErrTransientUpstream},
		{http.StatusOK, `<html>`, errkind.ErrTransientUpstream},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprint(tt.status), func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				fmt.Fprint(w, tt.body)
			}))
			defer srv.Close()

			_, err := NewCoinGecko(srv.URL, WithHTTPClient(srv.Client())).
				Fetch(context.Background(), resource.NewKey(resource.KindGlobal, nil))
			if !errors.Is(err, tt.want) {
				t.Errorf("status %d: expected %v, got %v", tt.status, tt.want, err)
			}
			if errkind.Retryable(err) != (tt.want != errkind.ErrClientRequest) {
				t.Errorf("status %d: unexpected retryability for %v", tt.status, err)
			}
		})
	}
}

func TestCoinGeckoRejectsMissingID(t *testing.T) {
	cg := NewCoinGecko("http://127.0.0.1:0")
	for _, kind := range []resource.Kind{resource.KindChart, resource.KindDetails, resource.KindNews} {
		_, err := cg.Fetch(context.Background(), resource.NewKey(kind, nil))
		if !errors.Is(err, errkind.ErrClientRequest) {
			t.Errorf("%s: expected client error, got %v", kind, err)
		}
	}
}

func TestMux(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"data":{"markets":42}}`)
	}))
	defer srv.Close()

	cfg := &config.Config{Upstream: config.UpstreamConfig{BaseURL: srv.URL}}
	mux := FromConfig(cfg, nil)

	raw, err := mux.Fetch(context.Background(), resource.NewKey(resource.KindGlobal, nil))
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	g, err := market.DecodeGlobal(raw)
	if err != nil || g.Markets != 42 {
		t.Errorf("unexpected snapshot %+v, err %v", g, err)
	}

	_, err = Mux{}.Fetch(context.Background(), resource.NewKey(resource.KindGlobal, nil))
	if !errors.Is(err, errkind.ErrClientRequest) {
		t.Errorf("expected client error for unrouted kind, got %v", err)
	}
}
