package classify

import "testing"

func TestClassify(t *testing.T) {
	tests := []struct {
		name  string
		title string
		body  string
		want  Category
	}{
		{"bitcoin", "Bitcoin miners brace for the halving", "Hashrate hits a record as BTC holds", Bitcoin},
		{"ethereum", "Ethereum rollup fees drop after blob upgrade", "Layer 2 networks like Arbitrum benefit", Ethereum},
		{"defi", "Uniswap volume surges as stablecoin liquidity deepens", "DeFi lending protocols see record TVL", DeFi},
		{"regulation", "SEC delays decision on spot ETF", "Regulators ask for more comments from the court", Regulation},
		{"security", "Bridge hacked, attacker drained $100M", "Exploit traced to a phishing campaign", Security},
		{"empty input", "", "", Markets},
		{"generic content", "Our Year in Review", "A look back", Markets},
		{"title keywords", "Solana NFT mint sells out", "", Web3},
		{"tickers match whole words", "A new method for testing", "", Markets},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Classify(tt.title, tt.body); got != tt.want {
				t.Errorf("Classify(%q, %q) = %s, want %s", tt.title, tt.body, got, tt.want)
			}
		})
	}
}

func TestResolveAlias(t *testing.T) {
	tests := []struct {
		alias    string
		expected Category
		wantErr  bool
	}{
		{"btc", Bitcoin, false},
		{"eth", Ethereum, false},
		{"defi", DeFi, false},
		{"reg", Regulation, false},
		{"security", Security, false},
		{"web3", Web3, false},
		{" Markets ", Markets, false},
		{"Ethereum", Ethereum, false}, // full name
		{"bogus", "", true},
	}

	for _, tt := range tests {
		got, err := ResolveAlias(tt.alias)
		if tt.wantErr {
			if err == nil {
				t.Errorf("ResolveAlias(%q): expected error", tt.alias)
			}
			continue
		}
		if err != nil {
			t.Errorf("ResolveAlias(%q): unexpected error: %v", tt.alias, err)
			continue
		}
		if got != tt.expected {
			t.Errorf("ResolveAlias(%q) = %q, want %q", tt.alias, got, tt.expected)
		}
	}
}

func TestAllCategories(t *testing.T) {
	cats := AllCategories()
	if len(cats) != 7 {
		t.Errorf("expected 7 categories, got %d", len(cats))
	}
	for _, cat := range cats {
		if len(categoryKeywords[cat]) == 0 {
			t.Errorf("category %s has no keywords", cat)
		}
	}
}
