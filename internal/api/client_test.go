package api

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"hostdesk/internal/metrics"

	"github.com/alicebob/miniredis/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.Handler) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	logger := zerolog.New(io.Discard)
	return NewClient(srv.URL, "secret", time.Second, &logger), srv
}

func TestListReservations(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/reservations", r.URL.Path)
		assert.Equal(t, "2025-01-15", r.URL.Query().Get("date"))
		assert.Equal(t, "secret", r.Header.Get("x-api-key"))
		assert.NotEmpty(t, r.Header.Get("X-Request-ID"))

		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"data":[
			{"reservation_id":3,"first_name":"Zed","reservation_date":"2025-01-15T00:00:00.000Z","reservation_time":"20:00:00","people":2,"status":"booked"},
			{"reservation_id":1,"first_name":"Amy","reservation_date":"2025-01-15","reservation_time":"18:00","people":4,"status":"seated"}
		]}`)
	}))

	got, err := client.ListReservations(context.Background(), "2025-01-15")
	require.NoError(t, err)
	require.Len(t, got, 2)

	// Response order is preserved, no sorting.
	assert.Equal(t, int64(3), got[0].ID)
	assert.Equal(t, int64(1), got[1].ID)
	assert.Equal(t, "2025-01-15", got[0].ReservationDate)
	assert.Equal(t, "20:00", got[0].ReservationTime)
}

func TestListReservations_EmptyData(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"data":null}`)
	}))

	got, err := client.ListReservations(context.Background(), "2025-01-15")
	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestListReservations_APIError(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = io.WriteString(w, `{"error":"date is invalid"}`)
	}))

	_, err := client.ListReservations(context.Background(), "nope")
	require.Error(t, err)

	var apiErr *Error
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusBadRequest, apiErr.Status)
	assert.Equal(t, "date is invalid", err.Error())
}

func TestAPIError_NoBody(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))

	err := client.FinishReservation(context.Background(), 99)
	require.Error(t, err)
	assert.Equal(t, "http 404", err.Error())
	assert.True(t, IsNotFound(err))
}

func TestListTables(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/tables", r.URL.Path)
		_, _ = io.WriteString(w, `{"data":[
			{"table_id":1,"table_name":"#1","capacity":6,"reservation_id":null},
			{"table_id":2,"table_name":"Bar #1","capacity":1,"reservation_id":5}
		]}`)
	}))

	got, err := client.ListTables(context.Background())
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "#1", got[0].Name)
	assert.True(t, got[1].IsOccupied())
}

func TestFinishReservation(t *testing.T) {
	var calls atomic.Int32
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		assert.Equal(t, http.MethodDelete, r.Method)
		assert.Equal(t, "/tables/7/seat", r.URL.Path)
		w.WriteHeader(http.StatusOK)
		_, _ = io.WriteString(w, `{"data":{}}`)
	}))

	require.NoError(t, client.FinishReservation(context.Background(), 7))
	assert.Equal(t, int32(1), calls.Load())
}

func TestRequestHonorsContextCancel(t *testing.T) {
	release := make(chan struct{})
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer close(release)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := client.ListTables(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRedisCache(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	var tableCalls, reservationCalls atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("GET /tables", func(w http.ResponseWriter, r *http.Request) {
		tableCalls.Add(1)
		_, _ = io.WriteString(w, `{"data":[{"table_id":1,"table_name":"#1","capacity":2,"reservation_id":4}]}`)
	})
	mux.HandleFunc("GET /reservations", func(w http.ResponseWriter, r *http.Request) {
		reservationCalls.Add(1)
		_, _ = io.WriteString(w, `{"data":[{"reservation_id":4,"first_name":"Amy","status":"seated"}]}`)
	})
	mux.HandleFunc("DELETE /tables/1/seat", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	client, _ := newTestClient(t, mux)
	m := metrics.New("test", prometheus.NewRegistry())
	client.UseMetrics(m)
	client.UseRedisCache(rdb, time.Minute, "test")
	ctx := context.Background()

	_, err := client.ListTables(ctx)
	require.NoError(t, err)
	_, err = client.ListTables(ctx)
	require.NoError(t, err)
	assert.Equal(t, int32(1), tableCalls.Load(), "second call should be served from cache")

	_, err = client.ListReservations(ctx, "2025-01-15")
	require.NoError(t, err)
	_, err = client.ListReservations(ctx, "2025-01-15")
	require.NoError(t, err)
	assert.Equal(t, int32(1), reservationCalls.Load())
	assert.True(t, mr.Exists("test:reservations:2025-01-15"))

	assert.Equal(t, 2.0, testutil.ToFloat64(m.APICacheTotal.WithLabelValues("hit")))

	// Finishing drops cached tables and reservations.
	require.NoError(t, client.FinishReservation(ctx, 1))
	assert.False(t, mr.Exists("test:tables"))
	assert.False(t, mr.Exists("test:reservations:2025-01-15"))

	_, err = client.ListTables(ctx)
	require.NoError(t, err)
	assert.Equal(t, int32(2), tableCalls.Load())
}

func TestRateLimit(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"data":[]}`)
	}))
	client.UseRateLimit(1, 1)

	ctx := context.Background()
	_, err := client.ListTables(ctx)
	require.NoError(t, err)

	// The bucket is empty; a short deadline cannot wait for the next token.
	short, cancel := context.WithTimeout(ctx, 50*time.Millisecond)
	defer cancel()
	_, err = client.ListTables(short)
	assert.Error(t, err)
}

func TestHealthCheck(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))

	err := client.HealthCheck(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "503")
}
