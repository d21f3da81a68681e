package submit

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"maps"
	"mime/multipart"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"github.com/bulkedge/edgeadmin/internal/catalog"
	"github.com/bulkedge/edgeadmin/internal/form"
)

// MaxFileSize is the largest upload the client accepts. The server enforces
// its own limit.
const MaxFileSize = 10 << 20

// Wire names of the multipart form fields.
const (
	FieldFile        = "file"
	FieldIdentifiers = "imeis"
	FieldOperation   = "operation"
	FieldDirectInput = "useDirectInput"
	FieldProfileID   = "profileId"
	FieldTags        = "tags"
)

var (
	// ErrInput wraps every error caused by the entered values.
	ErrInput = errors.New("submit: invalid input")

	errMissingFile   = fmt.Errorf("%w: choose a file to upload", ErrInput)
	errNoIdentifiers = fmt.Errorf("%w: enter at least one identifier", ErrInput)
	errMissingTags   = fmt.Errorf("%w: enter at least one tag", ErrInput)
	errMissingSelect = fmt.Errorf("%w: selection required", ErrInput)
)

var allowedExtensions = map[string]bool{".csv": true, ".txt": true}

// Payload is a built multipart request body.
type Payload struct {
	Path        string
	ContentType string
	Body        []byte
	// Fields holds the text fields sent, keyed by wire name.
	Fields map[string]string
	// FileName is the base name of the attached file, empty when none.
	FileName string
}

// Build assembles the multipart body for st.Operation from the form values.
func Build(cat *catalog.Catalog, st form.State) (*Payload, error) {
	op := st.Operation
	path, shared := cat.Route(op)

	p := &Payload{Path: path, Fields: make(map[string]string)}
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	if shared {
		p.Fields[FieldOperation] = op.ID
	}

	direct := st.DirectInput && op.DirectInput
	if op.DirectInput {
		p.Fields[FieldDirectInput] = strconv.FormatBool(direct)
	}

	if op.Identifiers {
		if direct {
			if len(SplitIdentifiers(st.Identifiers)) == 0 {
				return nil, errNoIdentifiers
			}
			p.Fields[FieldIdentifiers] = st.Identifiers
		} else if err := attachFile(w, p, st.FilePath); err != nil {
			return nil, err
		}
	}

	if op.Tags {
		tags := NormalizeTags(st.Tags)
		if len(tags) == 0 {
			return nil, errMissingTags
		}
		switch cat.TagFormat() {
		case catalog.TagFormatString:
			p.Fields[FieldTags] = st.Tags
		default:
			encoded, err := json.Marshal(tags)
			if err != nil {
				return nil, fmt.Errorf("submit: encode tags: %w", err)
			}
			p.Fields[FieldTags] = string(encoded)
		}
	}

	if op.Profile {
		id, err := resolve(cat.Profiles(), "profile", st.Profile)
		if err != nil {
			return nil, err
		}
		p.Fields[FieldProfileID] = id
	}

	if op.ThingDefinition {
		id, err := resolve(cat.ThingDefinitions(), "thing definition", st.ThingDefinition)
		if err != nil {
			return nil, err
		}
		p.Fields[op.ThingDefinitionField] = id
	}

	for _, name := range slices.Sorted(maps.Keys(p.Fields)) {
		if err := w.WriteField(name, p.Fields[name]); err != nil {
			return nil, fmt.Errorf("submit: write field %s: %w", name, err)
		}
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("submit: close body: %w", err)
	}

	p.ContentType = w.FormDataContentType()
	p.Body = buf.Bytes()
	return p, nil
}

func resolve(l *catalog.Lookup, kind, name string) (string, error) {
	if strings.TrimSpace(name) == "" {
		return "", fmt.Errorf("%w: %s", errMissingSelect, kind)
	}
	id, err := l.Resolve(name)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrInput, err)
	}
	return id, nil
}

func attachFile(w *multipart.Writer, p *Payload, path string) error {
	if strings.TrimSpace(path) == "" {
		return errMissingFile
	}
	ext := strings.ToLower(filepath.Ext(path))
	if !allowedExtensions[ext] {
		return fmt.Errorf("%w: %s is not a .csv or .txt file", ErrInput, filepath.Base(path))
	}

	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInput, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("submit: stat %s: %w", path, err)
	}
	if info.Size() > MaxFileSize {
		return fmt.Errorf("%w: %s is %d bytes, the limit is %d", ErrInput, filepath.Base(path), info.Size(), MaxFileSize)
	}

	part, err := w.CreateFormFile(FieldFile, filepath.Base(path))
	if err != nil {
		return fmt.Errorf("submit: create file part: %w", err)
	}
	if _, err := io.Copy(part, f); err != nil {
		return fmt.Errorf("submit: copy %s: %w", path, err)
	}
	p.FileName = filepath.Base(path)
	return nil
}
