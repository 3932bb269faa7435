package feed

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"finsync/internal/config"
	"finsync/internal/syncerr"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	logger := zerolog.New(io.Discard)
	return NewClient(config.AggregatorConfig{
		BaseURL: srv.URL,
		Timeout: config.Duration(2 * time.Second),
		RPS:     100,
		Burst:   100,
	}, &logger)
}

func TestClientAccounts(t *testing.T) {
	client := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/accounts", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"accounts":[{"id":"acc-1","external_id":"ext-1","name":"Checking","balance":120.50,"currency":"USD","active":true}]}`))
	}))

	accounts, err := client.Accounts(context.Background())
	require.NoError(t, err)
	require.Len(t, accounts, 1)
	assert.Equal(t, "acc-1", accounts[0].ID)
	assert.Equal(t, 120.50, accounts[0].Balance)
	assert.True(t, accounts[0].Active)
}

func TestClientTransactionsSinceQuery(t *testing.T) {
	var gotSince string
	client := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/accounts/acc-1/transactions", r.URL.Path)
		gotSince = r.URL.Query().Get("since")
		w.Write([]byte(`{"transactions":[]}`))
	}))

	since := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	_, err := client.Transactions(context.Background(), "acc-1", since)
	require.NoError(t, err)
	assert.Equal(t, "2026-08-01T00:00:00Z", gotSince)
}

func TestClientTransactionsRequiresAccountID(t *testing.T) {
	client := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("request should not reach the server")
	}))

	_, err := client.Transactions(context.Background(), "", time.Time{})
	require.Error(t, err)
	assert.Equal(t, syncerr.KindValidation, syncerr.KindOf(err))
}

func TestClientStatusMapping(t *testing.T) {
	tests := []struct {
		name   string
		status int
		header http.Header
		want   syncerr.Kind
	}{
		{name: "unauthorized", status: http.StatusUnauthorized, want: syncerr.KindAuth},
		{name: "forbidden", status: http.StatusForbidden, want: syncerr.KindAuth},
		{name: "rate limited", status: http.StatusTooManyRequests, want: syncerr.KindRateLimit},
		{name: "bad request", status: http.StatusBadRequest, want: syncerr.KindValidation},
		{name: "server error", status: http.StatusInternalServerError, want: syncerr.KindNetwork},
		{name: "bad gateway", status: http.StatusBadGateway, want: syncerr.KindNetwork},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
			}))

			_, err := client.Accounts(context.Background())
			require.Error(t, err)
			assert.Equal(t, tt.want, syncerr.KindOf(err))
		})
	}
}

func TestClientRateLimitRetryAfter(t *testing.T) {
	client := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "30")
		w.WriteHeader(http.StatusTooManyRequests)
	}))

	_, err := client.Accounts(context.Background())
	require.Error(t, err)

	hint, ok := syncerr.RetryAfterHint(err)
	require.True(t, ok)
	assert.Equal(t, 30*time.Second, hint)
}

func TestClientNetworkError(t *testing.T) {
	logger := zerolog.New(io.Discard)
	client := NewClient(config.AggregatorConfig{
		BaseURL: "http://127.0.0.1:1", // nothing listens here
		Timeout: config.Duration(500 * time.Millisecond),
		RPS:     100,
		Burst:   100,
	}, &logger)

	_, err := client.Accounts(context.Background())
	require.Error(t, err)
	assert.Equal(t, syncerr.KindNetwork, syncerr.KindOf(err))
}

func TestClientMalformedBody(t *testing.T) {
	client := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"accounts": [`))
	}))

	_, err := client.Accounts(context.Background())
	require.Error(t, err)
	assert.Equal(t, syncerr.KindValidation, syncerr.KindOf(err))
}

func TestParseRetryAfter(t *testing.T) {
	assert.Equal(t, 10*time.Second, parseRetryAfter("10"))
	assert.Equal(t, time.Duration(0), parseRetryAfter(""))
	assert.Equal(t, time.Duration(0), parseRetryAfter("garbage"))

	future := time.Now().Add(time.Minute).UTC().Format(http.TimeFormat)
	got := parseRetryAfter(future)
	assert.Greater(t, got, 50*time.Second)
	assert.LessOrEqual(t, got, time.Minute)
}
