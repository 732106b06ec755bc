package polygon

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"strathub/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestServer(handler http.Handler) (*Client, *httptest.Server) {
	server := httptest.NewServer(handler)
	client := New(Config{APIKey: "test_key", BaseURL: server.URL}, logger.Nop())
	return client, server
}

func TestDailyBars(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/v2/aggs/ticker/SPY/range/1/day/2024-01-02/2024-01-03", r.URL.Path)
			assert.Equal(t, "test_key", r.URL.Query().Get("apiKey"))
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{
				"status": "OK",
				"results": [
					{"t": 1704171600000, "o": 472.16, "h": 473.67, "l": 470.49, "c": 472.65, "v": 123456},
					{"t": 1704258000000, "o": 470.00, "h": 471.50, "l": 468.17, "c": 468.79, "v": 98765}
				]
			}`))
		})
		client, server := setupTestServer(handler)
		defer server.Close()

		from := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
		to := time.Date(2024, 1, 3, 0, 0, 0, 0, time.UTC)

		bars, err := client.DailyBars(context.Background(), "SPY", from, to)
		require.NoError(t, err)
		require.Len(t, bars, 2)
		assert.Equal(t, 472.65, bars[0].Close)
		assert.Equal(t, 468.79, bars[1].Close)
	})

	t.Run("ErrorStatus", func(t *testing.T) {
		handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"status": "ERROR", "error": "unknown ticker"}`))
		})
		client, server := setupTestServer(handler)
		defer server.Close()

		_, err := client.DailyBars(context.Background(), "NOPE", time.Now(), time.Now())
		assert.Error(t, err)
	})
}

func TestOptionContracts(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v3/reference/options/contracts", r.URL.Path)
		assert.Equal(t, "SPY", r.URL.Query().Get("underlying_ticker"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"status": "OK",
			"results": [
				{"ticker": "O:SPY240119C00470000", "contract_type": "call", "strike_price": 470, "expiration_date": "2024-01-19"},
				{"ticker": "O:SPY240119P00470000", "contract_type": "put", "strike_price": 470, "expiration_date": "2024-01-19"}
			]
		}`))
	})
	client, server := setupTestServer(handler)
	defer server.Close()

	from := time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC)
	to := time.Date(2024, 2, 5, 0, 0, 0, 0, time.UTC)

	contracts, err := client.OptionContracts(context.Background(), "SPY", from, to)
	require.NoError(t, err)
	require.Len(t, contracts, 2)
	assert.Equal(t, "call", contracts[0].Right)
	assert.Equal(t, 470.0, contracts[0].Strike)
	assert.Equal(t, "2024-01-19", contracts[1].Expiration.Format("2006-01-02"))
}
