// Package clob is used to call clob polymarket endpoints.
package clob

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/daszybak/interval_trader/internal/price"
	"github.com/daszybak/interval_trader/pkg/httpclient"
)

type Client struct {
	httpClient *http.Client
	baseURL    string
}

func New(baseURL string, timeout time.Duration) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    baseURL,
	}
}

type MarketToken struct {
	Outcome string      `json:"outcome"`
	Price   price.Price `json:"price"`
	TokenID string      `json:"token_id"`
	Winner  bool        `json:"winner"`
}

type Market struct {
	ConditionID     string        `json:"condition_id"`
	Description     string        `json:"description"`
	Question        string        `json:"question"`
	MarketSlug      string        `json:"market_slug"`
	EndDateISO      string        `json:"end_date_iso"`
	Active          bool          `json:"active"`
	Closed          bool          `json:"closed"`
	AcceptingOrders bool          `json:"accepting_orders"`
	Tokens          []MarketToken `json:"tokens"`
}

func (c *Client) GetMarketByConditionID(ctx context.Context, conditionID string) (*Market, error) {
	market, err := httpclient.GetResource[*Market](ctx, c.httpClient, c.baseURL, "/markets/"+conditionID, []int{200})
	if err != nil {
		return nil, fmt.Errorf("couldn't get market by condition ID %s: %w", conditionID, err)
	}
	return market, nil
}
