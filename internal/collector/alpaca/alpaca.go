package alpaca

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/alpacahq/alpaca-trade-api-go/v3/marketdata"

	"github.com/newthinker/perftrack/internal/core"
)

// Options configures the Alpaca market-data client
type Options struct {
	APIKey    string
	APISecret string
	BaseURL   string // optional data API override
	Feed      string // optional, e.g. "iex" on the free plan
}

// Alpaca fetches split-adjusted daily equity bars from the Alpaca
// market-data API
type Alpaca struct {
	client *marketdata.Client
	feed   string
}

// New creates a new Alpaca provider
func New(opts Options) *Alpaca {
	clientOpts := marketdata.ClientOpts{
		APIKey:    opts.APIKey,
		APISecret: opts.APISecret,
	}
	if opts.BaseURL != "" {
		clientOpts.BaseURL = strings.TrimRight(opts.BaseURL, "/")
	}
	return &Alpaca{
		client: marketdata.NewClient(clientOpts),
		feed:   opts.Feed,
	}
}

func (a *Alpaca) Name() string {
	return "alpaca"
}

// toAlpacaSymbol converts a scanner ticker to Alpaca format: BRK-B -> BRK.B
func toAlpacaSymbol(symbol string) string {
	return strings.ReplaceAll(strings.ToUpper(symbol), "-", ".")
}

// FetchHistory fetches daily bars between start and end
func (a *Alpaca) FetchHistory(ctx context.Context, symbol string, start, end time.Time) ([]core.Bar, error) {
	if symbol == "" {
		return nil, fmt.Errorf("symbol cannot be empty")
	}
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	sym := toAlpacaSymbol(symbol)
	multiBars, err := a.client.GetMultiBars([]string{sym}, marketdata.GetBarsRequest{
		TimeFrame:  marketdata.OneDay,
		Adjustment: marketdata.Split,
		Start:      start,
		End:        end,
		Feed:       a.feed,
	})
	if err != nil {
		return nil, fmt.Errorf("GetMultiBars: %w", err)
	}

	bars := make([]core.Bar, 0, len(multiBars[sym]))
	for _, ab := range multiBars[sym] {
		bars = append(bars, core.Bar{
			Time:   ab.Timestamp.UTC(),
			Open:   ab.Open,
			High:   ab.High,
			Low:    ab.Low,
			Close:  ab.Close,
			Volume: float64(ab.Volume),
		})
	}
	return bars, nil
}
