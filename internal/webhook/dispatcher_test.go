package webhook

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go-upwork-assistant/internal/logger"
	"go-upwork-assistant/internal/models"
)

const testDelay = 20 * time.Millisecond

func newTestDispatcher() *Dispatcher {
	return NewDispatcher(logger.Discard(), WithBaseDelay(testDelay))
}

func TestDispatchOne_AlwaysFailing(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	ok := newTestDispatcher().DispatchOne(context.Background(), srv.URL, map[string]string{"job_id": "1"})

	assert.False(t, ok)
	assert.Equal(t, int32(3), hits.Load())
}

func TestDispatchOne_SucceedsOnSecondAttempt(t *testing.T) {
	var (
		mu    sync.Mutex
		times []time.Time
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		times = append(times, time.Now())
		n := len(times)
		mu.Unlock()

		if n == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	ok := newTestDispatcher().DispatchOne(context.Background(), srv.URL, map[string]string{"job_id": "1"})

	require.True(t, ok)
	require.Len(t, times, 2)
	assert.GreaterOrEqual(t, times[1].Sub(times[0]), testDelay)
}

func TestDispatchOne_EmptyURL(t *testing.T) {
	assert.False(t, newTestDispatcher().DispatchOne(context.Background(), "", map[string]string{}))
}

func TestDispatchOne_TransportErrorIsRetried(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	url := srv.URL
	srv.Close()

	start := time.Now()
	ok := newTestDispatcher().DispatchOne(context.Background(), url, map[string]string{})

	assert.False(t, ok)
	// two waits: 1x and 2x the base delay
	assert.GreaterOrEqual(t, time.Since(start), 3*testDelay)
}

func TestDispatchBatch_SendsOneArray(t *testing.T) {
	var (
		hits atomic.Int32
		got  []map[string]any
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		body, _ := io.ReadAll(r.Body)
		assert.NoError(t, json.Unmarshal(body, &got))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	a := models.NewExternalJob()
	a.JobID = "a"
	b := models.NewExternalJob()
	b.JobID = "b"

	ok := newTestDispatcher().DispatchBatch(context.Background(), srv.URL, []models.ExternalJob{a, b})

	require.True(t, ok)
	assert.Equal(t, int32(1), hits.Load())
	require.Len(t, got, 2)
	assert.Equal(t, "a", got[0]["Job ID"])
	assert.Equal(t, "N/A", got[1]["Project Payment Type"])
}

func TestDispatchBatch_NilSendsEmptyArray(t *testing.T) {
	var body string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		body = string(b)
	}))
	defer srv.Close()

	require.True(t, newTestDispatcher().DispatchBatch(context.Background(), srv.URL, nil))
	assert.Equal(t, "[]", body)
}

func TestDispatch_ContextCancelled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	d := NewDispatcher(logger.Discard(), WithBaseDelay(time.Hour))
	assert.False(t, d.DispatchOne(ctx, srv.URL, map[string]string{}))
}
