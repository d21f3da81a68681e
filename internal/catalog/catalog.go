// Package catalog holds the operation catalog: which operations exist, which
// form fields each one needs, where it is dispatched, and the lookup tables
// that translate display names into backend identifiers.
package catalog

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed catalog.yaml
var defaultDocument []byte

// DefaultThingDefinitionField is the wire name used for the thing definition
// when an operation does not override it.
const DefaultThingDefinitionField = "thingKey"

// ErrUnknownOperation is returned when an id or label matches no operation.
var ErrUnknownOperation = errors.New("catalog: unknown operation")

// Operation describes one catalog entry.
type Operation struct {
	ID                   string
	Label                string
	Endpoint             string
	Description          string
	Identifiers          bool
	DirectInput          bool
	Tags                 bool
	Profile              bool
	ThingDefinition      bool
	ThingDefinitionField string
}

// Fields returns the visible fields for the operation. The identifier field is
// the file upload unless directInput is set and the operation accepts it.
func (o Operation) Fields(directInput bool) []Field {
	var fields []Field
	if o.Identifiers {
		if directInput && o.DirectInput {
			fields = append(fields, FieldDirectInput)
		} else {
			fields = append(fields, FieldFile)
		}
	}
	if o.Tags {
		fields = append(fields, FieldTags)
	}
	if o.Profile {
		fields = append(fields, FieldProfile)
	}
	if o.ThingDefinition {
		fields = append(fields, FieldThingDefinition)
	}
	return fields
}

// Catalog is the loaded, validated operation table.
type Catalog struct {
	dispatch       Dispatch
	sharedEndpoint string
	tagFormat      TagFormat
	operations     []Operation
	profiles       *Lookup
	thingDefs      *Lookup
}

type document struct {
	Dispatch         Dispatch      `yaml:"dispatch"`
	SharedEndpoint   string        `yaml:"shared_endpoint"`
	TagFormat        TagFormat     `yaml:"tag_format"`
	Operations       []rawOp       `yaml:"operations"`
	Profiles         []LookupEntry `yaml:"profiles"`
	ThingDefinitions []LookupEntry `yaml:"thing_definitions"`
}

type rawOp struct {
	ID                   string `yaml:"id"`
	Label                string `yaml:"label"`
	Endpoint             string `yaml:"endpoint"`
	Description          string `yaml:"description"`
	Identifiers          *bool  `yaml:"identifiers"`
	DirectInput          bool   `yaml:"direct_input"`
	Tags                 bool   `yaml:"tags"`
	Profile              bool   `yaml:"profile"`
	ThingDefinition      bool   `yaml:"thing_definition"`
	ThingDefinitionField string `yaml:"thing_definition_field"`
}

// Default returns the catalog embedded in the binary.
func Default() (*Catalog, error) {
	return Load(bytes.NewReader(defaultDocument))
}

// LoadFile reads and validates a catalog document from path.
func LoadFile(path string) (*Catalog, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("catalog: open %s: %w", path, err)
	}
	defer f.Close()
	return Load(f)
}

// Load decodes and validates a YAML catalog document.
func Load(r io.Reader) (*Catalog, error) {
	var doc document
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("catalog: decode: %w", err)
	}

	if doc.Dispatch == "" {
		doc.Dispatch = DispatchPerOperation
	}
	if doc.TagFormat == "" {
		doc.TagFormat = TagFormatList
	}

	c := &Catalog{
		dispatch:       doc.Dispatch,
		sharedEndpoint: strings.TrimSpace(doc.SharedEndpoint),
		tagFormat:      doc.TagFormat,
		profiles:       NewLookup("profile", doc.Profiles),
		thingDefs:      NewLookup("thing definition", doc.ThingDefinitions),
	}
	for _, raw := range doc.Operations {
		op := Operation{
			ID:                   strings.TrimSpace(raw.ID),
			Label:                strings.TrimSpace(raw.Label),
			Endpoint:             strings.TrimSpace(raw.Endpoint),
			Description:          strings.TrimSpace(raw.Description),
			Identifiers:          raw.Identifiers == nil || *raw.Identifiers,
			DirectInput:          raw.DirectInput,
			Tags:                 raw.Tags,
			Profile:              raw.Profile,
			ThingDefinition:      raw.ThingDefinition,
			ThingDefinitionField: strings.TrimSpace(raw.ThingDefinitionField),
		}
		if op.Label == "" {
			op.Label = op.ID
		}
		if op.ThingDefinition && op.ThingDefinitionField == "" {
			op.ThingDefinitionField = DefaultThingDefinitionField
		}
		c.operations = append(c.operations, op)
	}

	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// Validate reports catalog defects. A catalog that fails validation is never
// handed to the form layer.
func (c *Catalog) Validate() error {
	var errs []error
	if !c.dispatch.Valid() {
		errs = append(errs, fmt.Errorf("invalid dispatch %q", c.dispatch))
	}
	if !c.tagFormat.Valid() {
		errs = append(errs, fmt.Errorf("invalid tag_format %q", c.tagFormat))
	}
	if c.dispatch == DispatchShared && c.sharedEndpoint == "" {
		errs = append(errs, errors.New("shared dispatch requires shared_endpoint"))
	}
	if len(c.operations) == 0 {
		errs = append(errs, errors.New("no operations declared"))
	}

	seen := make(map[string]bool, len(c.operations))
	for _, op := range c.operations {
		switch {
		case op.ID == "":
			errs = append(errs, fmt.Errorf("operation %q has no id", op.Label))
			continue
		case seen[op.ID]:
			errs = append(errs, fmt.Errorf("duplicate operation id %q", op.ID))
		}
		seen[op.ID] = true

		if c.dispatch == DispatchPerOperation && op.Endpoint == "" {
			errs = append(errs, fmt.Errorf("operation %q has no endpoint", op.ID))
		}
		if op.Endpoint != "" && !strings.HasPrefix(op.Endpoint, "/") {
			errs = append(errs, fmt.Errorf("operation %q endpoint must start with /", op.ID))
		}
		if op.DirectInput && !op.Identifiers {
			errs = append(errs, fmt.Errorf("operation %q offers direct input without identifiers", op.ID))
		}
		if !op.Identifiers && !op.Tags && !op.Profile && !op.ThingDefinition {
			errs = append(errs, fmt.Errorf("operation %q declares no input fields", op.ID))
		}
		if op.Profile && c.profiles.Len() == 0 {
			errs = append(errs, fmt.Errorf("operation %q needs a profile but no profiles are declared", op.ID))
		}
		if op.ThingDefinition && c.thingDefs.Len() == 0 {
			errs = append(errs, fmt.Errorf("operation %q needs a thing definition but none are declared", op.ID))
		}
	}

	errs = append(errs, c.profiles.validate()...)
	errs = append(errs, c.thingDefs.validate()...)

	if len(errs) > 0 {
		return fmt.Errorf("catalog: %w", errors.Join(errs...))
	}
	return nil
}

// Operations returns the operations in declaration order.
func (c *Catalog) Operations() []Operation {
	out := make([]Operation, len(c.operations))
	copy(out, c.operations)
	return out
}

// Lookup finds an operation by id, falling back to a case-insensitive label match.
func (c *Catalog) Lookup(idOrLabel string) (Operation, error) {
	key := strings.TrimSpace(idOrLabel)
	for _, op := range c.operations {
		if op.ID == key {
			return op, nil
		}
	}
	for _, op := range c.operations {
		if strings.EqualFold(op.Label, key) {
			return op, nil
		}
	}
	return Operation{}, fmt.Errorf("%w: %q", ErrUnknownOperation, idOrLabel)
}

// Route returns the request path for op and whether the shared endpoint is used.
func (c *Catalog) Route(op Operation) (string, bool) {
	if c.dispatch == DispatchShared {
		return c.sharedEndpoint, true
	}
	return op.Endpoint, false
}

// Dispatch returns the configured dispatch mode.
func (c *Catalog) Dispatch() Dispatch { return c.dispatch }

// SharedEndpoint returns the shared endpoint path, which may be set even
// under per-operation dispatch.
func (c *Catalog) SharedEndpoint() string { return c.sharedEndpoint }

// TagFormat returns the configured tag serialization.
func (c *Catalog) TagFormat() TagFormat { return c.tagFormat }

// Profiles returns the profile lookup table.
func (c *Catalog) Profiles() *Lookup { return c.profiles }

// ThingDefinitions returns the thing definition lookup table.
func (c *Catalog) ThingDefinitions() *Lookup { return c.thingDefs }
