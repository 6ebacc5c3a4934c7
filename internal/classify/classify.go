// Package classify assigns crypto news items to a category by keyword score.
package classify

import (
	"fmt"
	"slices"
	"strings"
	"unicode"
)

// Category represents a news classification.
type Category string

const (
	Bitcoin    Category = "Bitcoin"
	Ethereum   Category = "Ethereum"
	DeFi       Category = "DeFi"
	Regulation Category = "Regulation"
	Security   Category = "Security"
	Web3       Category = "Web3"
	Markets    Category = "Markets"
)

// AllCategories returns all valid categories in canonical order. Earlier
// categories win ties.
func AllCategories() []Category {
	return []Category{Bitcoin, Ethereum, DeFi, Regulation, Security, Web3, Markets}
}

var categoryKeywords = map[Category][]string{
	Bitcoin: {
		"bitcoin", "btc", "satoshi", "halving", "lightning network", "ordinals",
		"taproot", "miner", "mining", "hashrate", "saylor", "microstrategy",
	},
	Ethereum: {
		"ethereum", "eth", "vitalik", "buterin", "rollup", "layer 2", "l2",
		"arbitrum", "optimism", "staking", "validator", "solidity", "evm", "blob",
	},
	DeFi: {
		"defi", "decentralized finance", "dex", "uniswap", "aave", "lending",
		"liquidity", "yield", "stablecoin", "usdt", "usdc", "tvl", "amm", "curve",
	},
	Regulation: {
		"sec", "cftc", "regulation", "regulator", "lawsuit", "court", "congress",
		"senate", "bill", "compliance", "mica", "etf", "approval", "gensler", "tax",
	},
	Security: {
		"hack", "hacked", "exploit", "vulnerability", "drained", "phishing",
		"scam", "rug pull", "stolen", "attacker", "breach", "bridge exploit",
	},
	Web3: {
		"nft", "web3", "metaverse", "dao", "gaming", "airdrop", "memecoin",
		"token launch", "wallet", "solana", "social", "creator",
	},
	Markets: {
		"price", "rally", "market", "trading", "traders", "bull", "bear",
		"liquidation", "futures", "options", "volatility", "inflows", "outflows",
		"analyst", "forecast", "all-time high",
	},
}

// Aliases maps short CLI flags to full category names.
var Aliases = map[string]Category{
	"btc":        Bitcoin,
	"eth":        Ethereum,
	"defi":       DeFi,
	"reg":        Regulation,
	"regulation": Regulation,
	"security":   Security,
	"web3":       Web3,
	"markets":    Markets,
}

// ResolveAlias maps a CLI alias or category name to a Category.
func ResolveAlias(alias string) (Category, error) {
	alias = strings.ToLower(strings.TrimSpace(alias))
	if cat, ok := Aliases[alias]; ok {
		return cat, nil
	}
	for _, cat := range AllCategories() {
		if strings.EqualFold(string(cat), alias) {
			return cat, nil
		}
	}
	valid := make([]string, 0, len(Aliases))
	for k := range Aliases {
		valid = append(valid, k)
	}
	slices.Sort(valid)
	return "", fmt.Errorf("unknown category %q (valid: %s)", alias, strings.Join(valid, ", "))
}

// Classify determines the category for an item based on title and body.
// Title keywords are weighted 2x. Returns Markets as default.
func Classify(title, body string) Category {
	titleTokens := tokenize(title)
	bodyTokens := tokenize(body)
	titleLower := strings.ToLower(title)
	bodyLower := strings.ToLower(body)

	var bestCat Category
	bestScore := 0

	for _, cat := range AllCategories() {
		score := 0
		for _, kw := range categoryKeywords[cat] {
			if strings.Contains(kw, " ") {
				if strings.Contains(titleLower, kw) {
					score += 2
				}
				if strings.Contains(bodyLower, kw) {
					score++
				}
				continue
			}
			// Short tickers match whole tokens only so "eth" does not hit "method".
			exact := len(kw) <= 3
			for _, t := range titleTokens {
				if tokenMatches(t, kw, exact) {
					score += 2
				}
			}
			for _, t := range bodyTokens {
				if tokenMatches(t, kw, exact) {
					score++
				}
			}
		}
		if score > bestScore {
			bestScore = score
			bestCat = cat
		}
	}

	if bestScore == 0 {
		return Markets
	}
	return bestCat
}

func tokenMatches(token, kw string, exact bool) bool {
	if exact {
		return token == kw
	}
	return strings.Contains(token, kw)
}

func tokenize(s string) []string {
	var tokens []string
	for _, word := range strings.Fields(strings.ToLower(s)) {
		word = strings.TrimFunc(word, func(r rune) bool {
			return !unicode.IsLetter(r) && !unicode.IsDigit(r)
		})
		if word != "" {
			tokens = append(tokens, word)
		}
	}
	return tokens
}
