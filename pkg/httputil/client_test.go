package httputil

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestPostJSONRetriesServerErrors(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		require.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"echo": body["value"]})
	}))
	defer srv.Close()

	client := NewClient(WithRetries(2, time.Millisecond), WithBearerToken("secret"))
	var out map[string]any
	require.NoError(t, client.PostJSON(context.Background(), srv.URL, map[string]any{"value": "x"}, &out))
	require.Equal(t, "x", out["echo"])
	require.EqualValues(t, 3, atomic.LoadInt32(&calls))
}

func TestPostJSONDoesNotRetryClientErrors(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		http.Error(w, "bad input", http.StatusBadRequest)
	}))
	defer srv.Close()

	client := NewClient(WithRetries(3, time.Millisecond))
	err := client.PostJSON(context.Background(), srv.URL, map[string]any{}, nil)
	var se *StatusError
	require.True(t, errors.As(err, &se))
	require.Equal(t, http.StatusBadRequest, se.StatusCode)
	require.EqualValues(t, 1, atomic.LoadInt32(&calls))
}
