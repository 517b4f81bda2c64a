package feed

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cyclegate/cyclegate/internal/domain/signal"
)

func TestHTTPFeed_Fetch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "application/json", r.Header.Get("Accept"))
		w.Write([]byte(`[
			{"symbol": "BTCUSD", "regime": "BULL", "base_entry_score": 3.1,
			 "signals": {"trend": 0.5, "momentum": 0.3}, "sector_momentum": 0.2}
		]`))
	}))
	defer srv.Close()

	f := NewHTTPFeed(srv.URL, time.Second)
	candidates, err := f.Fetch(context.Background())
	require.NoError(t, err)
	require.Len(t, candidates, 1)
	assert.Equal(t, "BTCUSD", candidates[0].Symbol)
	assert.Equal(t, signal.RegimeBull, candidates[0].Regime)
	assert.Equal(t, 0.5, candidates[0].Signals.Trend)
	assert.Equal(t, 0.0, candidates[0].Signals.Breakout, "missing components default to neutral")
}

func TestHTTPFeed_UnknownRegimeDegradesToUnknown(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`[{"symbol": "X", "regime": "SIDEWAYS-ISH", "base_entry_score": 1.0}]`))
	}))
	defer srv.Close()

	candidates, err := NewHTTPFeed(srv.URL, time.Second).Fetch(context.Background())
	require.NoError(t, err)
	require.Len(t, candidates, 1)
	assert.Equal(t, signal.RegimeUnknown, candidates[0].Regime)
}

func TestHTTPFeed_NonOKStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := NewHTTPFeed(srv.URL, time.Second).Fetch(context.Background())
	assert.Error(t, err)
}

func TestFileFeed_Fetch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "candidates.json")
	require.NoError(t, os.WriteFile(path, []byte(`[
		{"symbol": "AAPL", "regime": "RANGE", "base_entry_score": 2.0},
		{"symbol": "MSFT", "regime": "BEAR", "base_entry_score": 2.5}
	]`), 0644))

	candidates, err := NewFileFeed(path).Fetch(context.Background())
	require.NoError(t, err)
	require.Len(t, candidates, 2)
	assert.Equal(t, signal.RegimeRange, candidates[0].Regime)
	assert.Equal(t, signal.RegimeBear, candidates[1].Regime)
}

func TestFileFeed_MissingFile(t *testing.T) {
	_, err := NewFileFeed(filepath.Join(t.TempDir(), "absent.json")).Fetch(context.Background())
	assert.Error(t, err)
}
