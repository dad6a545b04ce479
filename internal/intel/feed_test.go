package intel

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPFeedLookup(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var q feedQuery
		require.NoError(t, json.NewDecoder(r.Body).Decode(&q))
		assert.Equal(t, "search_ioc", q.Query)
		assert.Equal(t, "203.0.113.77", q.SearchTerm)

		json.NewEncoder(w).Encode(map[string]any{
			"query_status": "ok",
			"data": []map[string]any{
				{
					"ioc_type":         "ip:port",
					"threat_type":      "botnet_cc",
					"malware":          "win.cobalt_strike",
					"malware_alias":    "CobaltStrike",
					"confidence_level": 85,
					"first_seen":       "2024-01-10 08:00:00 UTC",
					"tags":             []string{"c2"},
				},
			},
		})
	}))
	defer srv.Close()

	feed := NewHTTPFeed(srv.URL, "", 5*time.Second)
	matches, err := feed.Lookup(context.Background(), "203.0.113.77")
	require.NoError(t, err)
	require.Len(t, matches, 1)

	m := matches[0]
	assert.Equal(t, "203.0.113.77", m.IP)
	assert.Equal(t, SourceFeed, m.Source)
	assert.Equal(t, "CobaltStrike", m.Malware) // alias preferred
	assert.Equal(t, 85, m.Confidence)
	assert.Equal(t, "botnet_cc", m.ThreatType)
	assert.Equal(t, []string{"c2"}, m.Tags)
}

func TestHTTPFeedNoResult(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"query_status": "no_result"})
	}))
	defer srv.Close()

	feed := NewHTTPFeed(srv.URL, "", 5*time.Second)
	matches, err := feed.Lookup(context.Background(), "8.8.8.8")
	require.NoError(t, err)
	assert.Empty(t, matches)
}

func TestHTTPFeedErrors(t *testing.T) {
	t.Run("non-2xx", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
		}))
		defer srv.Close()

		feed := NewHTTPFeed(srv.URL, "", 5*time.Second)
		_, err := feed.Lookup(context.Background(), "8.8.8.8")
		assert.Error(t, err)
	})

	t.Run("malformed body", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte("not json"))
		}))
		defer srv.Close()

		feed := NewHTTPFeed(srv.URL, "", 5*time.Second)
		_, err := feed.Lookup(context.Background(), "8.8.8.8")
		assert.Error(t, err)
	})

	t.Run("unreachable", func(t *testing.T) {
		feed := NewHTTPFeed("http://127.0.0.1:1", "", 200*time.Millisecond)
		_, err := feed.Lookup(context.Background(), "8.8.8.8")
		assert.Error(t, err)
	})
}
