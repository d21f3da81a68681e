package catalog

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnmapped is returned when a display name has no backend identifier.
var ErrUnmapped = errors.New("catalog: no mapping for name")

// LookupEntry pairs a display name with its backend identifier.
type LookupEntry struct {
	Name string `yaml:"name" json:"name"`
	ID   string `yaml:"id" json:"id"`
}

// Lookup translates display names offered in a selection control into
// backend identifiers. Names are the only values a control can offer, so
// every offered value has an entry.
type Lookup struct {
	kind    string
	entries []LookupEntry
	byName  map[string]string
}

// NewLookup builds a lookup table, preserving entry order.
func NewLookup(kind string, entries []LookupEntry) *Lookup {
	l := &Lookup{kind: kind, byName: make(map[string]string, len(entries))}
	for _, e := range entries {
		e.Name = strings.TrimSpace(e.Name)
		e.ID = strings.TrimSpace(e.ID)
		l.entries = append(l.entries, e)
		if _, dup := l.byName[e.Name]; !dup {
			l.byName[e.Name] = e.ID
		}
	}
	return l
}

// Resolve returns the backend id for name.
func (l *Lookup) Resolve(name string) (string, error) {
	id, ok := l.byName[strings.TrimSpace(name)]
	if !ok || id == "" {
		return "", fmt.Errorf("%w: %s %q", ErrUnmapped, l.kind, name)
	}
	return id, nil
}

// Names lists the display names in declaration order.
func (l *Lookup) Names() []string {
	names := make([]string, 0, len(l.entries))
	for _, e := range l.entries {
		names = append(names, e.Name)
	}
	return names
}

// Entries returns a copy of the table.
func (l *Lookup) Entries() []LookupEntry {
	out := make([]LookupEntry, len(l.entries))
	copy(out, l.entries)
	return out
}

// Len reports the number of entries.
func (l *Lookup) Len() int { return len(l.entries) }

func (l *Lookup) validate() []error {
	var errs []error
	seen := make(map[string]bool, len(l.entries))
	for i, e := range l.entries {
		if e.Name == "" {
			errs = append(errs, fmt.Errorf("%s entry %d has no name", l.kind, i))
			continue
		}
		if seen[e.Name] {
			errs = append(errs, fmt.Errorf("duplicate %s name %q", l.kind, e.Name))
		}
		seen[e.Name] = true
		if e.ID == "" {
			errs = append(errs, fmt.Errorf("%s %q has no id", l.kind, e.Name))
		}
	}
	return errs
}
