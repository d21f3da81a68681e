package logstream

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadEvents(t *testing.T) {
	stream := strings.Join([]string{
		": keepalive",
		"event: log",
		"id: 7",
		`data: {"target":"api",`,
		`data: "message":"hi"}`,
		"",
		"",
		"data:no-space\r",
		"\r",
		"event: ignored-without-data",
		"",
		"data: trailing without blank line",
	}, "\n")

	var got []event
	require.NoError(t, readEvents(strings.NewReader(stream), func(e event) { got = append(got, e) }))
	require.Len(t, got, 2)
	assert.Equal(t, event{ID: "7", Type: "log", Data: "{\"target\":\"api\",\n\"message\":\"hi\"}"}, got[0])
	assert.Equal(t, event{Data: "no-space"}, got[1])
}

func TestReadEvents_LineEndings(t *testing.T) {
	stream := "data: lf\n\n" + "data: cr\r\r" + "data: crlf\r\n\r\n" + "data: a\rdata: b\r\n\n"

	var got []string
	require.NoError(t, readEvents(strings.NewReader(stream), func(e event) { got = append(got, e.Data) }))
	assert.Equal(t, []string{"lf", "cr", "crlf", "a\nb"}, got)
}

func TestReadEvents_OversizedEventIsSkipped(t *testing.T) {
	tests := []struct {
		name  string
		frame string
	}{
		{"long line", "id: 1\ndata: " + strings.Repeat("x", maxLine+10) + "\ndata: tail\n\n"},
		{"many lines", "id: 1\n" + strings.Repeat("data: "+strings.Repeat("y", 1<<19)+"\n", 10) + "\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stream := tt.frame + "data: after\n\n"

			var got []event
			require.NoError(t, readEvents(strings.NewReader(stream), func(e event) { got = append(got, e) }))
			require.Len(t, got, 2)
			require.ErrorIs(t, got[0].Err, errOversized)
			assert.Empty(t, got[0].Data)
			assert.Equal(t, "1", got[0].ID)
			assert.Equal(t, event{Data: "after"}, got[1])
		})
	}
}
