// Package httpclient decodes JSON resources from REST endpoints.
package httpclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"slices"
)

const maxErrorBody = 512

// StatusError is returned when the response code is not one of the accepted codes.
type StatusError struct {
	URL        string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d from %s: %s", e.StatusCode, e.URL, e.Body)
}

// IsStatus reports whether err is a StatusError with the given code.
func IsStatus(err error, code int) bool {
	var se *StatusError
	return errors.As(err, &se) && se.StatusCode == code
}

// GetResource performs a GET on baseURL+endpoint and decodes the JSON body into T.
func GetResource[T any](ctx context.Context, c *http.Client, baseURL, endpoint string, okCodes []int) (T, error) {
	var zero T
	url := baseURL + endpoint

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return zero, fmt.Errorf("couldn't build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.Do(req)
	if err != nil {
		return zero, fmt.Errorf("couldn't get %s: %w", url, err)
	}
	defer resp.Body.Close()

	if !slices.Contains(okCodes, resp.StatusCode) {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return zero, &StatusError{URL: url, StatusCode: resp.StatusCode, Body: string(body)}
	}

	var res T
	if err := json.NewDecoder(resp.Body).Decode(&res); err != nil {
		return zero, fmt.Errorf("couldn't decode %s: %w", url, err)
	}
	return res, nil
}
