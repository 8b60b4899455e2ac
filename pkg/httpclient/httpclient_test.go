package httpclient

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sony/gobreaker/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/utafrali/catalog/pkg/errors"
	"github.com/utafrali/catalog/pkg/logger"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func fastConfig(retries int) Config {
	return Config{
		Timeout:         time.Second,
		MaxRetries:      retries,
		RetryWaitMin:    time.Millisecond,
		RetryWaitMax:    5 * time.Millisecond,
		MaxConnsPerHost: 2,
	}
}

// flaky answers 503 for the first n requests and 200 afterwards.
func flaky(n int32, calls *atomic.Int32) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) <= n {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	}
}

func TestClient_RetriesIdempotentRequests(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(flaky(2, &calls))
	defer srv.Close()

	req, _ := http.NewRequest(http.MethodDelete, srv.URL+"/api/v1/media/m-1", http.NoBody)
	resp, err := New(fastConfig(2)).Do(context.Background(), req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, int32(3), calls.Load())
}

func TestClient_DoesNotRetryPost(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(flaky(1, &calls))
	defer srv.Close()

	req, _ := http.NewRequest(http.MethodPost, srv.URL, strings.NewReader(`{}`))
	resp, err := New(fastConfig(3)).Do(context.Background(), req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	assert.Equal(t, int32(1), calls.Load())
}

func TestClient_ForwardsCorrelationID(t *testing.T) {
	var got string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Get("X-Correlation-ID")
	}))
	defer srv.Close()

	ctx := logger.WithCorrelationID(context.Background(), "corr-42")
	req, _ := http.NewRequest(http.MethodGet, srv.URL, http.NoBody)
	resp, err := New(fastConfig(0)).Do(ctx, req)
	require.NoError(t, err)
	resp.Body.Close()

	assert.Equal(t, "corr-42", got)
}

func TestCircuitBreaker_OpensAndFallsBack(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	cfg := DefaultCircuitBreakerConfig("media-test")
	cfg.MinRequests = 2
	cb := NewCircuitBreakerClient(New(fastConfig(0)), cfg, quietLogger()).
		WithFallback(func(context.Context, error) (*http.Response, error) {
			return nil, apperrors.Unavailable("media down")
		})

	for i := 0; i < 2; i++ {
		req, _ := http.NewRequest(http.MethodGet, srv.URL, http.NoBody)
		_, err := cb.Do(context.Background(), req)
		assert.ErrorContains(t, err, "server error 500")
	}
	assert.Equal(t, gobreaker.StateOpen, cb.State())

	req, _ := http.NewRequest(http.MethodGet, srv.URL, http.NoBody)
	_, err := cb.Do(context.Background(), req)
	assert.ErrorIs(t, err, apperrors.ErrServiceUnavail)
}

func TestParseResponseError(t *testing.T) {
	tests := []struct {
		status   int
		body     string
		sentinel error
	}{
		{http.StatusNotFound, `{"error":{"code":"NOT_FOUND","message":"media m-1"}}`, apperrors.ErrNotFound},
		{http.StatusBadRequest, `{"error":{"code":"INVALID_INPUT","message":"bad owner"}}`, apperrors.ErrInvalidInput},
		{http.StatusConflict, `{"error":{"code":"CONFLICT","message":"locked"}}`, apperrors.ErrConflict},
		{http.StatusServiceUnavailable, `{"error":{"code":"SERVICE_UNAVAILABLE","message":"busy"}}`, apperrors.ErrServiceUnavail},
	}
	for _, tt := range tests {
		resp := &http.Response{StatusCode: tt.status, Body: io.NopCloser(strings.NewReader(tt.body))}
		assert.ErrorIs(t, ParseResponseError(resp, "media"), tt.sentinel, tt.body)
	}

	resp := &http.Response{StatusCode: http.StatusTeapot, Body: io.NopCloser(strings.NewReader("nope"))}
	assert.EqualError(t, ParseResponseError(resp, "media"), "media returned status 418: nope")
}
