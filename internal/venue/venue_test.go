package venue

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestHTTPClientSearch(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("lat") != "41.88" || r.URL.Query().Get("lng") != "-87.63" {
			t.Errorf("unexpected query: %s", r.URL.RawQuery)
		}
		if r.URL.Query().Get("radius") != "500" {
			t.Errorf("unexpected radius: %s", r.URL.Query().Get("radius"))
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[{"name": "The Map Room", "address": "1949 N Hoyne Ave", "latitude": 41.918, "longitude": -87.679, "source_id": "abc"}]`))
	}))
	t.Cleanup(upstream.Close)

	client := NewHTTPClient(upstream.URL)
	venues, err := client.Search(context.Background(), 41.88, -87.63, 500)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(venues) != 1 || venues[0].Name != "The Map Room" {
		t.Fatalf("unexpected venues: %+v", venues)
	}
}

func TestHTTPClientSearchUpstreamError(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "quota exceeded", http.StatusTooManyRequests)
	}))
	t.Cleanup(upstream.Close)

	client := NewHTTPClient(upstream.URL)
	if _, err := client.Search(context.Background(), 0, 0, 100); err == nil {
		t.Fatal("expected an error")
	}
}
