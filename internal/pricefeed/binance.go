package pricefeed

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/daszybak/interval_trader/internal/price"
	"github.com/daszybak/interval_trader/pkg/httpclient"
)

const (
	DefaultBinanceURL = "https://api.binance.com"
	DefaultSymbol     = "BTCUSDT"
)

// Binance polls the public ticker price endpoint.
type Binance struct {
	httpClient *http.Client
	baseURL    string
	symbol     string
	now        func() time.Time
}

func NewBinance(baseURL, symbol string, timeout time.Duration) *Binance {
	if baseURL == "" {
		baseURL = DefaultBinanceURL
	}
	if symbol == "" {
		symbol = DefaultSymbol
	}
	return &Binance{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    strings.TrimRight(baseURL, "/"),
		symbol:     strings.ToUpper(symbol),
		now:        time.Now,
	}
}

type tickerPrice struct {
	Symbol string      `json:"symbol"`
	Price  price.Price `json:"price"`
}

func (b *Binance) Current(ctx context.Context) (Sample, error) {
	endpoint := "/api/v3/ticker/price?symbol=" + url.QueryEscape(b.symbol)
	t, err := httpclient.GetResource[tickerPrice](ctx, b.httpClient, b.baseURL, endpoint, []int{200})
	if err != nil {
		return Sample{}, feedError("binance", err)
	}
	if t.Price <= 0 {
		return Sample{}, feedError("binance", fmt.Errorf("non-positive price %s", t.Price))
	}
	return Sample{
		Value:      t.Price.Float64(),
		ObservedAt: b.now(),
		Source:     "binance",
	}, nil
}
