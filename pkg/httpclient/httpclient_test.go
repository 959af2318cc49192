package httpclient

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetResource(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/ok":
			_, _ = w.Write([]byte(`{"name":"btc"}`))
		case "/bad":
			_, _ = w.Write([]byte(`{"name":`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	type resource struct {
		Name string `json:"name"`
	}

	got, err := GetResource[resource](t.Context(), srv.Client(), srv.URL, "/ok", []int{200})
	require.NoError(t, err)
	assert.Equal(t, "btc", got.Name)

	_, err = GetResource[resource](t.Context(), srv.Client(), srv.URL, "/missing", []int{200})
	require.Error(t, err)
	assert.True(t, IsStatus(err, http.StatusNotFound))

	_, err = GetResource[resource](t.Context(), srv.Client(), srv.URL, "/bad", []int{200})
	require.Error(t, err)
	assert.False(t, IsStatus(err, http.StatusNotFound))
}
