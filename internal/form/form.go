// Package form holds the transient state of the operation form: the active
// operation and the values the operator has entered for it.
package form

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/bulkedge/edgeadmin/internal/catalog"
)

var (
	// ErrInFlight is returned when a submission is attempted while another is running.
	ErrInFlight = errors.New("form: submission already in flight")
	// ErrDirectInputUnsupported is returned when direct input is enabled on an
	// operation that only accepts a file.
	ErrDirectInputUnsupported = errors.New("form: operation does not accept direct input")
)

// State is a copy of the form values at a point in time.
type State struct {
	Operation       catalog.Operation
	FilePath        string
	Identifiers     string
	Tags            string
	Profile         string
	ThingDefinition string
	DirectInput     bool
}

// Submitter sends a form snapshot to the backend.
type Submitter[R any] interface {
	Submit(ctx context.Context, st State) R
}

// Form is the single owned form instance. It is safe for concurrent use.
type Form struct {
	cat *catalog.Catalog

	mu    sync.RWMutex
	state State

	busy atomic.Bool
}

// New returns a form with the first catalog operation active.
func New(cat *catalog.Catalog) *Form {
	f := &Form{cat: cat}
	if ops := cat.Operations(); len(ops) > 0 {
		f.state.Operation = ops[0]
	}
	return f
}

// Catalog returns the catalog the form was built from.
func (f *Form) Catalog() *catalog.Catalog { return f.cat }

// Select makes the operation named by idOrLabel active. The direct input
// toggle is cleared when the new operation does not accept direct input.
// Other entered values are kept so switching back and forth does not lose them.
func (f *Form) Select(idOrLabel string) (catalog.Operation, error) {
	op, err := f.cat.Lookup(idOrLabel)
	if err != nil {
		return catalog.Operation{}, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.state.Operation = op
	if !op.DirectInput {
		f.state.DirectInput = false
	}
	return op, nil
}

// Active returns the active operation.
func (f *Form) Active() catalog.Operation {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.state.Operation
}

// DirectInput reports whether direct identifier input is enabled.
func (f *Form) DirectInput() bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.state.DirectInput
}

// SetDirectInput toggles direct identifier input.
func (f *Form) SetDirectInput(on bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if on && !f.state.Operation.DirectInput {
		return fmt.Errorf("%w: %s", ErrDirectInputUnsupported, f.state.Operation.ID)
	}
	f.state.DirectInput = on
	return nil
}

// VisibleFields returns the fields to render for the active operation.
func (f *Form) VisibleFields() []catalog.Field {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.state.Operation.Fields(f.state.DirectInput)
}

// SetFile records the path of the file to upload.
func (f *Form) SetFile(path string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.state.FilePath = path
}

// SetIdentifiers records the raw identifier text, one identifier per line.
func (f *Form) SetIdentifiers(text string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.state.Identifiers = text
}

// SetTags records the raw tag text.
func (f *Form) SetTags(text string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.state.Tags = text
}

// SetProfile selects a profile by display name.
func (f *Form) SetProfile(name string) error {
	if _, err := f.cat.Profiles().Resolve(name); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.state.Profile = name
	return nil
}

// SetThingDefinition selects a thing definition by display name.
func (f *Form) SetThingDefinition(name string) error {
	if _, err := f.cat.ThingDefinitions().Resolve(name); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.state.ThingDefinition = name
	return nil
}

// Snapshot returns a copy of the current values.
func (f *Form) Snapshot() State {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.state
}

// Reset clears entered values but keeps the active operation.
func (f *Form) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.state = State{Operation: f.state.Operation}
}

// Busy reports whether a submission is in flight.
func (f *Form) Busy() bool { return f.busy.Load() }

// Submit sends the current snapshot through s. Only one submission runs at a
// time per form; a concurrent call fails fast with ErrInFlight.
func Submit[R any](ctx context.Context, f *Form, s Submitter[R]) (R, error) {
	var zero R
	if !f.busy.CompareAndSwap(false, true) {
		return zero, ErrInFlight
	}
	defer f.busy.Store(false)
	return s.Submit(ctx, f.Snapshot()), nil
}
