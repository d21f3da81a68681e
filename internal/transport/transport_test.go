package transport

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bulkedge/edgeadmin/internal/ratelimit"
)

func TestNew_SendsSessionCookieAndRequestID(t *testing.T) {
	var ids []string
	mux := http.NewServeMux()
	mux.HandleFunc("POST /auth/token", func(w http.ResponseWriter, r *http.Request) {
		ids = append(ids, r.Header.Get(HeaderRequestID))
		http.SetCookie(w, &http.Cookie{Name: "session", Value: "abc", Path: "/", HttpOnly: true})
	})
	mux.HandleFunc("GET /auth/validate", func(w http.ResponseWriter, r *http.Request) {
		ids = append(ids, r.Header.Get(HeaderRequestID))
		c, err := r.Cookie("session")
		if err != nil {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		assert.Equal(t, "abc", c.Value)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	client, err := New(Options{Limiter: ratelimit.NewLimiter(ratelimit.DefaultClassRates())})
	require.NoError(t, err)

	resp, err := client.Post(srv.URL+"/auth/token", "application/x-www-form-urlencoded", nil)
	require.NoError(t, err)
	resp.Body.Close()

	resp, err = client.Get(srv.URL + "/auth/validate")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	require.Len(t, ids, 2)
	for _, id := range ids {
		_, err := uuid.Parse(id)
		assert.NoError(t, err)
	}
	assert.NotEqual(t, ids[0], ids[1])
}

func TestNew_SharedJar(t *testing.T) {
	jar, err := NewJar()
	require.NoError(t, err)

	a, err := New(Options{Jar: jar})
	require.NoError(t, err)
	b, err := New(Options{Jar: jar, Tracing: true})
	require.NoError(t, err)
	assert.Same(t, a.Jar, b.Jar)
	assert.Zero(t, b.Timeout)
}

func TestPacedTransport_CancelledWhileWaiting(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	defer srv.Close()

	client, err := New(Options{Limiter: ratelimit.NewLimiter(ratelimit.ClassRates{API: 0.001})})
	require.NoError(t, err)

	resp, err := client.Get(srv.URL + "/api/add-tags")
	require.NoError(t, err)
	resp.Body.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/api/add-tags", nil)
	require.NoError(t, err)
	_, err = client.Do(req)
	require.Error(t, err)
}
