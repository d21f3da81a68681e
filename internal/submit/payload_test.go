package submit

import (
	"bytes"
	"mime"
	"mime/multipart"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bulkedge/edgeadmin/internal/catalog"
	"github.com/bulkedge/edgeadmin/internal/form"
)

func defaultCatalog(t *testing.T) *catalog.Catalog {
	t.Helper()
	cat, err := catalog.Default()
	require.NoError(t, err)
	return cat
}

func state(t *testing.T, cat *catalog.Catalog, id string) form.State {
	t.Helper()
	op, err := cat.Lookup(id)
	require.NoError(t, err)
	return form.State{Operation: op}
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func parseBody(t *testing.T, p *Payload) *multipart.Form {
	t.Helper()
	mediaType, params, err := mime.ParseMediaType(p.ContentType)
	require.NoError(t, err)
	require.Equal(t, "multipart/form-data", mediaType)
	mf, err := multipart.NewReader(bytes.NewReader(p.Body), params["boundary"]).ReadForm(MaxFileSize)
	require.NoError(t, err)
	t.Cleanup(func() { _ = mf.RemoveAll() })
	return mf
}

func TestNormalizeTags(t *testing.T) {
	tests := []struct {
		raw  string
		want []string
	}{
		{"a, b ,b,", []string{"a", "b"}},
		{"", []string{}},
		{" , ,", []string{}},
		{"zone-1,zone-2", []string{"zone-1", "zone-2"}},
		{"B,a,B", []string{"B", "a"}},
		{"A,a", []string{"A", "a"}},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeTags(tt.raw))
		})
	}
}

func TestSplitIdentifiers(t *testing.T) {
	assert.Equal(t, []string{"356938035643809", "490154203237518"},
		SplitIdentifiers(" 356938035643809 \n\n490154203237518\r\n  "))
	assert.Empty(t, SplitIdentifiers("\n \n"))
}

func TestBuild_DirectInputSendsIdentifiers(t *testing.T) {
	cat := defaultCatalog(t)
	st := state(t, cat, "add-tags")
	st.DirectInput = true
	st.Identifiers = "111\n222\n"
	st.Tags = "a, b ,b,"

	p, err := Build(cat, st)
	require.NoError(t, err)
	assert.Equal(t, "/api/add-tags", p.Path)
	assert.Empty(t, p.FileName)

	mf := parseBody(t, p)
	assert.Equal(t, []string{"111\n222\n"}, mf.Value[FieldIdentifiers])
	assert.Equal(t, []string{`["a","b"]`}, mf.Value[FieldTags])
	assert.Equal(t, []string{"true"}, mf.Value[FieldDirectInput])
	assert.NotContains(t, mf.File, FieldFile)
	assert.NotContains(t, mf.Value, FieldOperation)
}

func TestBuild_FileSendsAttachment(t *testing.T) {
	cat := defaultCatalog(t)
	st := state(t, cat, "undeploy")
	st.FilePath = writeFile(t, "devices.csv", "imei\n111\n222\n")
	st.Identifiers = "ignored"

	p, err := Build(cat, st)
	require.NoError(t, err)
	assert.Equal(t, "devices.csv", p.FileName)

	mf := parseBody(t, p)
	require.Len(t, mf.File[FieldFile], 1)
	assert.Equal(t, "devices.csv", mf.File[FieldFile][0].Filename)
	assert.NotContains(t, mf.Value, FieldIdentifiers)
	assert.Equal(t, []string{"false"}, mf.Value[FieldDirectInput])
}

func TestBuild_ResolvesLookups(t *testing.T) {
	cat := defaultCatalog(t)

	st := state(t, cat, "apply-profile")
	st.FilePath = writeFile(t, "ids.txt", "111\n")
	st.Profile = "High Frequency Reporting"
	p, err := Build(cat, st)
	require.NoError(t, err)
	assert.Equal(t, "5f3c1a9e2b7d4e0012a4c003", p.Fields[FieldProfileID])

	st = state(t, cat, "onboarding")
	st.DirectInput = true
	st.Identifiers = "111"
	st.Tags = "fleet"
	st.Profile = "Standard LwM2M"
	st.ThingDefinition = "Smart Meter"
	p, err = Build(cat, st)
	require.NoError(t, err)
	assert.Equal(t, "smart_meter", p.Fields["thingDefinitionId"])
	assert.NotContains(t, p.Fields, "thingKey")

	st = state(t, cat, "change-def")
	st.FilePath = writeFile(t, "ids.csv", "111\n")
	st.ThingDefinition = "Cold Chain Sensor"
	p, err = Build(cat, st)
	require.NoError(t, err)
	assert.Equal(t, "cold_chain_sensor", p.Fields["thingKey"])
}

func TestBuild_SharedDispatchCarriesOperation(t *testing.T) {
	cat, err := catalog.Load(strings.NewReader(`
dispatch: shared
shared_endpoint: /api/device-management
tag_format: string
operations:
  - {id: delete-things-tags, identifiers: false, tags: true}
`))
	require.NoError(t, err)

	st := state(t, cat, "delete-things-tags")
	st.Tags = "a, b ,b,"
	p, err := Build(cat, st)
	require.NoError(t, err)
	assert.Equal(t, "/api/device-management", p.Path)
	assert.Equal(t, map[string]string{
		FieldOperation: "delete-things-tags",
		FieldTags:      "a, b ,b,",
	}, p.Fields)
}

func TestBuild_InputErrors(t *testing.T) {
	cat := defaultCatalog(t)
	big := filepath.Join(t.TempDir(), "big.csv")
	require.NoError(t, os.WriteFile(big, nil, 0o600))
	require.NoError(t, os.Truncate(big, MaxFileSize+1))

	tests := []struct {
		name   string
		id     string
		mutate func(*form.State)
		want   string
	}{
		{"missing file", "add-settings", func(*form.State) {}, "choose a file"},
		{"wrong extension", "add-settings", func(s *form.State) {
			s.FilePath = writeFile(t, "ids.xlsx", "x")
		}, "not a .csv or .txt file"},
		{"file too large", "add-settings", func(s *form.State) { s.FilePath = big }, "the limit is"},
		{"blank identifiers", "undeploy", func(s *form.State) {
			s.DirectInput = true
			s.Identifiers = " \n "
		}, "at least one identifier"},
		{"missing tags", "delete-things-tags", func(s *form.State) { s.Tags = " , " }, "at least one tag"},
		{"missing profile", "apply-profile", func(s *form.State) {
			s.FilePath = writeFile(t, "ids.csv", "1")
		}, "selection required: profile"},
		{"unmapped profile", "apply-profile", func(s *form.State) {
			s.FilePath = writeFile(t, "ids.csv", "1")
			s.Profile = "Mystery"
		}, "Mystery"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st := state(t, cat, tt.id)
			tt.mutate(&st)
			_, err := Build(cat, st)
			require.ErrorIs(t, err, ErrInput)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}
