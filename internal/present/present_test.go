package present

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bulkedge/edgeadmin/internal/catalog"
	"github.com/bulkedge/edgeadmin/internal/logstream"
	"github.com/bulkedge/edgeadmin/internal/session"
	"github.com/bulkedge/edgeadmin/internal/submit"
)

func TestCatalog_TextGolden(t *testing.T) {
	cat, err := catalog.Default()
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, New(&buf, FormatText, false).Catalog(cat))

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, "catalog", buf.Bytes())
}

func TestCatalog_JSON(t *testing.T) {
	cat, err := catalog.Default()
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, New(&buf, FormatJSON, true).Catalog(cat))

	var doc struct {
		Dispatch   string `json:"dispatch"`
		Operations []struct {
			ID       string   `json:"id"`
			Endpoint string   `json:"endpoint"`
			Fields   []string `json:"fields"`
		} `json:"operations"`
		Profiles []catalog.LookupEntry `json:"profiles"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &doc))
	assert.Equal(t, "per-operation", doc.Dispatch)
	require.Len(t, doc.Operations, 9)
	assert.Equal(t, "/api/onboarding", doc.Operations[8].Endpoint)
	assert.Len(t, doc.Profiles, 3)
}

func TestResult_Text(t *testing.T) {
	var buf bytes.Buffer
	r := New(&buf, FormatText, false)

	err := r.Result(submit.Result{
		Operation: "apply-profile",
		Err:       &submit.HTTPError{StatusCode: 500, StatusText: "Internal Server Error"},
		Duration:  1500 * time.Microsecond,
	})
	require.NoError(t, err)
	assert.Equal(t,
		"apply-profile failed 2ms\n{\n  \"error\": \"Server responded with 500: Internal Server Error\"\n}\n",
		buf.String())

	buf.Reset()
	require.NoError(t, r.Result(submit.Result{Operation: "add-tags", Value: json.RawMessage(`{"updated":2}`)}))
	assert.Equal(t, "add-tags ok 0s\n{\n  \"updated\": 2\n}\n", buf.String())
}

func TestResult_JSON(t *testing.T) {
	var buf bytes.Buffer
	err := New(&buf, FormatJSON, false).Result(submit.Result{
		Operation: "undeploy",
		Err:       &submit.AppError{Message: "unknown device"},
	})
	require.NoError(t, err)
	assert.JSONEq(t,
		`{"operation":"undeploy","ok":false,"outcome":"app_error","result":{"error":"unknown device"}}`,
		buf.String())
}

func TestEntry(t *testing.T) {
	var buf bytes.Buffer
	r := New(&buf, FormatText, false)
	require.NoError(t, r.Entry(logstream.Entry{Seq: 1, Target: "add-tags", Level: "info", Message: "2 devices updated"}))
	require.NoError(t, r.Entry(logstream.Entry{Seq: 2, Level: "error", Message: "boom"}))
	assert.Equal(t, "[info] add-tags: 2 devices updated\n[error] -: boom\n", buf.String())
}

func TestSession(t *testing.T) {
	tests := []struct {
		sess session.Session
		want string
	}{
		{session.Session{State: session.StateAuthenticated, Authenticated: true, Username: "alice"}, "logged in as alice\n"},
		{session.Session{State: session.StateMFAPending, PendingUser: "bob", LastError: "Invalid MFA code"},
			"mfa code required for bob (Invalid MFA code)\n"},
		{session.Session{State: session.StateUnauthenticated}, "not logged in\n"},
	}
	for _, tt := range tests {
		var buf bytes.Buffer
		require.NoError(t, New(&buf, FormatText, false).Session(tt.sess))
		assert.Equal(t, tt.want, buf.String())
	}
}

func TestFields(t *testing.T) {
	cat, err := catalog.Default()
	require.NoError(t, err)
	op, err := cat.Lookup("onboarding")
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, New(&buf, FormatText, false).Fields(op, op.Fields(true)))
	assert.Equal(t, "Onboarding: direct-input, tags, profile, thing-definition\n", buf.String())
}

func TestFormat_Valid(t *testing.T) {
	assert.True(t, FormatText.Valid())
	assert.True(t, FormatJSON.Valid())
	assert.False(t, Format("yaml").Valid())
}

func TestStreamError(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, New(&buf, FormatText, false).StreamError(errors.New("closed by the backend")))
	assert.Equal(t, "[log feed] closed by the backend\n", buf.String())

	buf.Reset()
	require.NoError(t, New(&buf, FormatJSON, false).StreamError(errors.New("bad event")))
	assert.JSONEq(t, `{"stream_error":"bad event"}`, buf.String())
}
