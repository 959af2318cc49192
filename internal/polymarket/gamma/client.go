// Package gamma consume Polymarket gamma endpoints.
package gamma

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/daszybak/interval_trader/pkg/httpclient"
)

// ErrNotFound is returned when no market or event exists for a slug.
var ErrNotFound = errors.New("not found")

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

// StringList handles arrays the API sends either as JSON arrays or as
// double-encoded JSON strings.
type StringList []string

func (l *StringList) UnmarshalJSON(data []byte) error {
	if len(data) > 0 && data[0] == '[' {
		return json.Unmarshal(data, (*[]string)(l))
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	if s == "" {
		*l = nil
		return nil
	}
	return json.Unmarshal([]byte(s), (*[]string)(l))
}

type Market struct {
	ID              string     `json:"id"`
	ConditionID     string     `json:"conditionId"`
	Question        string     `json:"question"`
	Slug            string     `json:"slug"`
	EndDate         string     `json:"endDate"`
	Active          bool       `json:"active"`
	Closed          bool       `json:"closed"`
	AcceptingOrders *bool      `json:"acceptingOrders"`
	Outcomes        StringList `json:"outcomes"`
	ClobTokenIDs    StringList `json:"clobTokenIds"`
}

// Accepting treats a missing acceptingOrders flag as accepting.
func (m *Market) Accepting() bool {
	return m.AcceptingOrders == nil || *m.AcceptingOrders
}

// EndsAt parses EndDate, returning the zero time when it is absent or malformed.
func (m *Market) EndsAt() time.Time {
	t, err := time.Parse(time.RFC3339, m.EndDate)
	if err != nil {
		return time.Time{}
	}
	return t
}

type Event struct {
	ID      string    `json:"id"`
	Slug    string    `json:"slug"`
	Markets []*Market `json:"markets"`
}

func (c *Client) GetMarketBySlug(ctx context.Context, slug string) (*Market, error) {
	m, err := httpclient.GetResource[*Market](ctx, c.httpClient, c.baseURL, "/markets/slug/"+slug, []int{200})
	if httpclient.IsStatus(err, http.StatusNotFound) {
		return nil, fmt.Errorf("market %s: %w", slug, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("couldn't get market by slug %s: %w", slug, err)
	}
	return m, nil
}

func (c *Client) GetEventBySlug(ctx context.Context, slug string) (*Event, error) {
	e, err := httpclient.GetResource[*Event](ctx, c.httpClient, c.baseURL, "/events/slug/"+slug, []int{200})
	if httpclient.IsStatus(err, http.StatusNotFound) {
		return nil, fmt.Errorf("event %s: %w", slug, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("couldn't get event by slug %s: %w", slug, err)
	}
	return e, nil
}
