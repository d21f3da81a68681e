package stubapi

import (
	"bufio"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/bulkedge/edgeadmin/internal/catalog"
)

// maxUpload bounds the multipart body the stub accepts.
const maxUpload = 32 << 20

func (s *Server) handleOperation(op catalog.Operation) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(maxUpload); err != nil {
			writeError(w, http.StatusBadRequest, "invalid multipart body")
			return
		}
		s.runOperation(w, r, op)
	})
}

func (s *Server) handleShared(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUpload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid multipart body")
		return
	}
	id := r.FormValue("operation")
	op, err := s.cat.Lookup(id)
	if err != nil || op.ID != id {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("unknown operation %q", id))
		return
	}
	s.runOperation(w, r, op)
}

func (s *Server) runOperation(w http.ResponseWriter, r *http.Request, op catalog.Operation) {
	user := UserFromContext(r.Context())

	if status := int(s.failNext.Swap(0)); status != 0 {
		s.Broadcast(LogEvent{Target: op.ID, Level: "error", Message: "injected failure"})
		writeError(w, status, "injected failure")
		return
	}
	if err := s.budget.Take(user, op.ID); err != nil {
		writeError(w, http.StatusTooManyRequests, err.Error())
		return
	}

	result, err := s.checkForm(r, op)
	if err != nil {
		s.Broadcast(LogEvent{Target: op.ID, Level: "error", Message: err.Error()})
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	result["operation"] = op.ID
	result["requested_by"] = user

	msg := op.Label + " accepted"
	if n, ok := result["devices"].(int); ok {
		msg = fmt.Sprintf("%s accepted for %d devices", op.Label, n)
	}
	s.Broadcast(LogEvent{Target: op.ID, Level: "info", Message: msg + " by " + user})
	writeJSON(w, http.StatusOK, map[string]any{"message": msg, "result": result})
}

// checkForm validates the fields op declares and returns the echo of what
// would have been applied.
func (s *Server) checkForm(r *http.Request, op catalog.Operation) (map[string]any, error) {
	result := make(map[string]any)

	if op.Identifiers {
		ids, source, err := identifiers(r, op)
		if err != nil {
			return nil, err
		}
		result["devices"] = len(ids)
		result["identifiers"] = ids
		result["source"] = source
	}

	if op.Tags {
		tags, err := parseTags(r.FormValue("tags"))
		if err != nil {
			return nil, err
		}
		result["tags"] = tags
	}

	if op.Profile {
		id := r.FormValue("profileId")
		if !knownID(s.cat.Profiles(), id) {
			return nil, fmt.Errorf("unknown profileId %q", id)
		}
		result["profileId"] = id
	}

	if op.ThingDefinition {
		id := r.FormValue(op.ThingDefinitionField)
		if !knownID(s.cat.ThingDefinitions(), id) {
			return nil, fmt.Errorf("unknown %s %q", op.ThingDefinitionField, id)
		}
		result[op.ThingDefinitionField] = id
	}
	return result, nil
}

func identifiers(r *http.Request, op catalog.Operation) ([]string, string, error) {
	if op.DirectInput && r.FormValue("useDirectInput") == "true" {
		ids := lines(r.FormValue("imeis"))
		if len(ids) == 0 {
			return nil, "", fmt.Errorf("imeis is required when useDirectInput is set")
		}
		return ids, "direct", nil
	}

	f, hdr, err := r.FormFile("file")
	if err != nil {
		return nil, "", fmt.Errorf("file is required")
	}
	defer f.Close()

	var ids []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		// First CSV column; a header row is skipped.
		id, _, _ := strings.Cut(strings.TrimSpace(sc.Text()), ",")
		id = strings.TrimSpace(id)
		if id == "" || strings.EqualFold(id, "imei") {
			continue
		}
		ids = append(ids, id)
	}
	if err := sc.Err(); err != nil {
		return nil, "", fmt.Errorf("read %s: %w", hdr.Filename, err)
	}
	if len(ids) == 0 {
		return nil, "", fmt.Errorf("%s lists no devices", hdr.Filename)
	}
	return ids, hdr.Filename, nil
}

// parseTags accepts a JSON array or a comma separated string.
func parseTags(raw string) ([]string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, fmt.Errorf("tags is required")
	}
	if strings.HasPrefix(raw, "[") {
		var tags []string
		if err := json.Unmarshal([]byte(raw), &tags); err != nil {
			return nil, fmt.Errorf("tags is not a JSON string array")
		}
		if len(tags) == 0 {
			return nil, fmt.Errorf("tags is required")
		}
		return tags, nil
	}
	var tags []string
	for _, t := range strings.Split(raw, ",") {
		if t = strings.TrimSpace(t); t != "" {
			tags = append(tags, t)
		}
	}
	if len(tags) == 0 {
		return nil, fmt.Errorf("tags is required")
	}
	return tags, nil
}

func lines(text string) []string {
	var out []string
	for _, l := range strings.Split(text, "\n") {
		if l = strings.TrimSpace(l); l != "" {
			out = append(out, l)
		}
	}
	return out
}

func knownID(l *catalog.Lookup, id string) bool {
	if id == "" {
		return false
	}
	for _, e := range l.Entries() {
		if e.ID == id {
			return true
		}
	}
	return false
}
