package submit

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	c, err := New(srv.URL, defaultCatalog(t), srv.Client(),
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
	require.NoError(t, err)
	return c
}

func displayJSON(t *testing.T, r Result) string {
	t.Helper()
	b, err := json.Marshal(r.Display())
	require.NoError(t, err)
	return string(b)
}

func TestSubmit_ApplyProfileEndToEnd(t *testing.T) {
	cat := defaultCatalog(t)
	c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/apply-profile", r.URL.Path)
		assert.NoError(t, r.ParseMultipartForm(MaxFileSize))
		assert.Equal(t, "5f3c1a9e2b7d4e0012a4c002", r.FormValue(FieldProfileID))
		_, _, err := r.FormFile(FieldFile)
		assert.NoError(t, err)

		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"message":"Success","result":{"updated":2}}`)
	})

	st := state(t, cat, "apply-profile")
	st.FilePath = writeFile(t, "ids.csv", "111\n222\n")
	st.Profile = "Low Power Tracker"

	res := c.Submit(context.Background(), st)
	require.NoError(t, res.Err)
	assert.True(t, res.OK())
	assert.Equal(t, "apply-profile", res.Operation)
	assert.Equal(t, OutcomeOK, res.Outcome())
	assert.JSONEq(t, `{"updated":2}`, string(res.Value))
}

func TestSubmit_ServerError(t *testing.T) {
	cat := defaultCatalog(t)
	c := newClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = io.WriteString(w, `{"detail":"device cloud unavailable"}`)
	})

	st := state(t, cat, "undeploy")
	st.DirectInput = true
	st.Identifiers = "111"
	res := c.Submit(context.Background(), st)

	var httpErr *HTTPError
	require.True(t, errors.As(res.Err, &httpErr))
	assert.Equal(t, 500, httpErr.StatusCode)
	assert.Equal(t, "device cloud unavailable", httpErr.Detail)
	assert.Equal(t, OutcomeHTTP, res.Outcome())
	assert.JSONEq(t,
		`{"error":"Server responded with 500: Internal Server Error","detail":"device cloud unavailable"}`,
		displayJSON(t, res))
}

func TestSubmit_ErrorWithoutBody(t *testing.T) {
	cat := defaultCatalog(t)
	c := newClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})

	st := state(t, cat, "delete-things-tags")
	st.Tags = "old"
	res := c.Submit(context.Background(), st)
	assert.JSONEq(t, `{"error":"Server responded with 502: Bad Gateway"}`, displayJSON(t, res))
}

func TestSubmit_ApplicationError(t *testing.T) {
	cat := defaultCatalog(t)
	c := newClient(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, `{"error":"unknown profile"}`)
	})

	st := state(t, cat, "delete-things-tags")
	st.Tags = "old"
	res := c.Submit(context.Background(), st)

	var appErr *AppError
	require.True(t, errors.As(res.Err, &appErr))
	assert.Equal(t, OutcomeApp, res.Outcome())
	assert.JSONEq(t, `{"error":"unknown profile"}`, displayJSON(t, res))
}

func TestSubmit_BodyWithoutEnvelope(t *testing.T) {
	cat := defaultCatalog(t)
	c := newClient(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, `[{"imei":"111","status":"deleted"}]`)
	})

	st := state(t, cat, "delete-things-tags")
	st.Tags = "old"
	res := c.Submit(context.Background(), st)
	require.NoError(t, res.Err)
	assert.JSONEq(t, `[{"imei":"111","status":"deleted"}]`, displayJSON(t, res))
}

func TestSubmit_InvalidJSON(t *testing.T) {
	cat := defaultCatalog(t)
	c := newClient(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, `<html>`)
	})

	st := state(t, cat, "delete-things-tags")
	st.Tags = "old"
	res := c.Submit(context.Background(), st)
	require.Error(t, res.Err)
	assert.Contains(t, res.Err.Error(), "not valid JSON")
	var decodeErr *DecodeError
	require.ErrorAs(t, res.Err, &decodeErr)
	assert.Equal(t, http.StatusOK, decodeErr.StatusCode)
	assert.Equal(t, OutcomeDecode, res.Outcome())
}

func TestSubmit_InputErrorNeverSends(t *testing.T) {
	cat := defaultCatalog(t)
	called := false
	c := newClient(t, func(http.ResponseWriter, *http.Request) { called = true })

	res := c.Submit(context.Background(), state(t, cat, "add-settings"))
	require.ErrorIs(t, res.Err, ErrInput)
	assert.Equal(t, OutcomeInput, res.Outcome())
	assert.False(t, called)
}

func TestSubmit_NetworkError(t *testing.T) {
	cat := defaultCatalog(t)
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c, err := New(url, cat, nil, WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
	require.NoError(t, err)

	st := state(t, cat, "delete-things-tags")
	st.Tags = "old"
	res := c.Submit(context.Background(), st)
	require.Error(t, res.Err)
	assert.Contains(t, res.Err.Error(), "submit: request failed")
	assert.Equal(t, OutcomeNetwork, res.Outcome())
}
