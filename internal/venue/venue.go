// Package venue wraps the external place-search collaborator. Results are
// opaque candidate venues for game setup; nothing here is part of the sync
// or ledger core.
package venue

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

type Venue struct {
	Name      string  `json:"name"`
	Address   string  `json:"address"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	SourceID  string  `json:"source_id"`
}

type PlaceSearch interface {
	Search(ctx context.Context, latitude, longitude float64, radiusMeters int) ([]Venue, error)
}

// HTTPClient queries a place-search HTTP endpoint returning a JSON array of
// venue records.
type HTTPClient struct {
	baseURL string
	httpc   *http.Client
}

func NewHTTPClient(baseURL string) *HTTPClient {
	return &HTTPClient{
		baseURL: baseURL,
		httpc:   &http.Client{Timeout: 10 * time.Second},
	}
}

func (c *HTTPClient) Search(ctx context.Context, latitude, longitude float64, radiusMeters int) ([]Venue, error) {
	query := url.Values{}
	query.Set("lat", strconv.FormatFloat(latitude, 'f', -1, 64))
	query.Set("lng", strconv.FormatFloat(longitude, 'f', -1, 64))
	query.Set("radius", strconv.Itoa(radiusMeters))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+query.Encode(), nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.httpc.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("place search returned status %d", resp.StatusCode)
	}
	var venues []Venue
	if err := json.NewDecoder(resp.Body).Decode(&venues); err != nil {
		return nil, fmt.Errorf("place search returned malformed body: %w", err)
	}
	return venues, nil
}
