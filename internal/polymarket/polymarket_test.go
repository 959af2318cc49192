package polymarket

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/daszybak/interval_trader/internal/market"
	"github.com/daszybak/interval_trader/internal/polymarket/clob"
	"github.com/daszybak/interval_trader/internal/polymarket/gamma"
)

const openMarket = `{
	"id": "512001",
	"conditionId": "0xabc",
	"question": "Bitcoin Up or Down - January 1, 10:00AM-10:15AM ET ",
	"slug": "btc-updown-15m-1704078000",
	"endDate": "2024-01-01T15:15:00Z",
	"closed": false,
	"acceptingOrders": true,
	"outcomes": "[\"Up\", \"Down\"]",
	"clobTokenIds": "[\"111\", \"222\"]"
}`

func newTestLookup(t *testing.T, handler http.HandlerFunc, withClob bool) *Lookup {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	var c *clob.Client
	if withClob {
		c = clob.New(srv.URL+"/clob", time.Second)
	}
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewLookup(gamma.New(srv.URL, time.Second), c, "", log)
}

func TestLookupFindsOpenMarket(t *testing.T) {
	l := newTestLookup(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/markets/slug/btc-updown-15m-1704078000", r.URL.Path)
		_, _ = w.Write([]byte(openMarket))
	}, false)

	got, err := l.Find(t.Context(), 1704078000)
	require.NoError(t, err)
	require.Len(t, got, 1)

	m := got[0]
	assert.Equal(t, "512001", m.ID)
	assert.Equal(t, "111", m.YesToken)
	assert.Equal(t, "222", m.NoToken)
	assert.Equal(t, "Bitcoin Up or Down - January 1, 10:00AM-10:15AM ET", m.Question)
	assert.True(t, m.EndsAt.Equal(time.Date(2024, 1, 1, 15, 15, 0, 0, time.UTC)))
	assert.True(t, m.Usable())
}

func TestLookupMissingMarketIsEmpty(t *testing.T) {
	l := newTestLookup(t, http.NotFound, false)

	got, err := l.Find(t.Context(), 1704078000)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestLookupFallsBackToEvent(t *testing.T) {
	l := newTestLookup(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/events/slug/btc-updown-15m-1704078000" {
			_, _ = w.Write([]byte(`{"id":"9","markets":[` + openMarket + `]}`))
			return
		}
		http.NotFound(w, r)
	}, false)

	got, err := l.Find(t.Context(), 1704078000)
	require.NoError(t, err)
	require.Len(t, got, 1)
}

func TestLookupSkipsClosedMarket(t *testing.T) {
	l := newTestLookup(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"id":"1","closed":true,"clobTokenIds":"[\"1\",\"2\"]"}`))
	}, false)

	got, err := l.Find(t.Context(), 1704078000)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestLookupServerErrorIsLookupError(t *testing.T) {
	l := newTestLookup(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}, false)

	_, err := l.Find(t.Context(), 1704078000)
	require.Error(t, err)
	assert.ErrorIs(t, err, market.ErrLookup)
}

func TestLookupUsesClobOutcomeOrder(t *testing.T) {
	l := newTestLookup(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/clob/markets/0xabc" {
			_, _ = w.Write([]byte(`{"condition_id":"0xabc","accepting_orders":true,"tokens":[
				{"outcome":"Down","token_id":"111","price":0.48},
				{"outcome":"Up","token_id":"222","price":0.52}]}`))
			return
		}
		_, _ = w.Write([]byte(openMarket))
	}, true)

	got, err := l.Find(t.Context(), 1704078000)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "222", got[0].YesToken)
	assert.Equal(t, "111", got[0].NoToken)
}

func TestStringListDecoding(t *testing.T) {
	var l gamma.StringList
	require.NoError(t, l.UnmarshalJSON([]byte(`"[\"a\",\"b\"]"`)))
	assert.Equal(t, gamma.StringList{"a", "b"}, l)

	require.NoError(t, l.UnmarshalJSON([]byte(`["c","d"]`)))
	assert.Equal(t, gamma.StringList{"c", "d"}, l)
}
