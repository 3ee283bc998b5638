package binance

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/newthinker/perftrack/internal/collector/crypto"
	"github.com/newthinker/perftrack/internal/core"
)

const (
	baseURL = "https://api.binance.com"

	// klineLimit is the largest page the klines endpoint returns
	klineLimit = 1000
)

// Binance fetches daily crypto history from the Binance spot klines API
type Binance struct {
	client  *http.Client
	baseURL string
	quote   string
}

// New creates a new Binance provider pricing bare tickers in quote.
func New(quote string) *Binance {
	if quote == "" {
		quote = crypto.DefaultQuote
	}
	return &Binance{
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
		baseURL: baseURL,
		quote:   strings.ToUpper(quote),
	}
}

// NewWithBaseURL creates a Binance provider with custom base URL (for testing)
func NewWithBaseURL(url, quote string) *Binance {
	b := New(quote)
	b.baseURL = strings.TrimRight(url, "/")
	return b
}

func (b *Binance) Name() string {
	return "binance"
}

// FetchHistory fetches daily klines between start and end. Binance caps a
// page at 1000 candles, which covers the configured lookback.
func (b *Binance) FetchHistory(ctx context.Context, symbol string, start, end time.Time) ([]core.Bar, error) {
	if err := crypto.ValidateTicker(symbol); err != nil {
		return nil, err
	}

	params := url.Values{}
	params.Set("symbol", crypto.PairSymbol(symbol, b.quote))
	params.Set("interval", "1d")
	params.Set("startTime", strconv.FormatInt(start.UnixMilli(), 10))
	params.Set("endTime", strconv.FormatInt(end.UnixMilli(), 10))
	params.Set("limit", strconv.Itoa(klineLimit))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, b.baseURL+"/api/v3/klines?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := b.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching history: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var apiErr apiError
		if json.NewDecoder(resp.Body).Decode(&apiErr) == nil && apiErr.Msg != "" {
			return nil, fmt.Errorf("binance error %d: %s", apiErr.Code, apiErr.Msg)
		}
		return nil, fmt.Errorf("unexpected status: %d", resp.StatusCode)
	}

	var klines [][]any
	if err := json.NewDecoder(resp.Body).Decode(&klines); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}

	data := make([]core.Bar, 0, len(klines))
	for _, k := range klines {
		bar, ok := parseKline(k)
		if !ok {
			continue
		}
		data = append(data, bar)
	}

	return data, nil
}

// parseKline decodes [openTime, open, high, low, close, volume, ...].
func parseKline(k []any) (core.Bar, bool) {
	if len(k) < 6 {
		return core.Bar{}, false
	}

	openTime, ok := k[0].(float64)
	if !ok {
		return core.Bar{}, false
	}

	var prices [5]float64
	for i := range prices {
		s, ok := k[i+1].(string)
		if !ok {
			return core.Bar{}, false
		}
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return core.Bar{}, false
		}
		prices[i] = v
	}

	return core.Bar{
		Time:   time.UnixMilli(int64(openTime)).UTC(),
		Open:   prices[0],
		High:   prices[1],
		Low:    prices[2],
		Close:  prices[3],
		Volume: prices[4],
	}, true
}

type apiError struct {
	Code int    `json:"code"`
	Msg  string `json:"msg"`
}
