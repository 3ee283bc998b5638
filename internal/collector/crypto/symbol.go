package crypto

import (
	"fmt"
	"regexp"
	"strings"
)

// DefaultQuote is the quote currency appended to bare tickers
const DefaultQuote = "USDT"

var validTicker = regexp.MustCompile(`^[A-Z0-9]{1,20}$`)

// splitPair splits "BTC/USDT", "BTC-USDT" or "BTC_USDT" into base and quote.
// A bare ticker returns an empty quote.
func splitPair(s string) (base, quote string) {
	for _, sep := range []string{"/", "-", "_"} {
		if i := strings.Index(s, sep); i >= 0 {
			return s[:i], s[i+1:]
		}
	}
	return s, ""
}

// PairSymbol maps a signal ticker to an exchange pair symbol.
// Bare tickers get quote appended: "btc" -> "BTCUSDT". Tickers that carry
// their own quote keep it: "ETH/BTC" -> "ETHBTC". Bare tickers are never
// inspected for a quote suffix, so "WBTC" stays a base asset.
func PairSymbol(ticker, quote string) string {
	s := strings.ToUpper(strings.TrimSpace(ticker))
	if s == "" {
		return ""
	}
	base, q := splitPair(s)
	if q == "" {
		q = strings.ToUpper(quote)
		if q == "" {
			q = DefaultQuote
		}
	}
	return base + q
}

// ValidateTicker checks a crypto signal ticker, with or without a quote.
func ValidateTicker(ticker string) error {
	s := strings.ToUpper(strings.TrimSpace(ticker))
	if s == "" {
		return fmt.Errorf("symbol cannot be empty")
	}
	base, quote := splitPair(s)
	if !validTicker.MatchString(base) {
		return fmt.Errorf("invalid symbol format: %s", ticker)
	}
	hasSep := strings.ContainsAny(s, "/-_")
	if hasSep && !validTicker.MatchString(quote) {
		return fmt.Errorf("invalid quote in symbol: %s", ticker)
	}
	return nil
}
