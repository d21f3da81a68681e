package catalog

// Field names a form control an operation can require.
type Field string

const (
	FieldFile            Field = "file"
	FieldDirectInput     Field = "direct-input"
	FieldTags            Field = "tags"
	FieldProfile         Field = "profile"
	FieldThingDefinition Field = "thing-definition"
)

func (f Field) Valid() bool {
	switch f {
	case FieldFile, FieldDirectInput, FieldTags, FieldProfile, FieldThingDefinition:
		return true
	}
	return false
}

// Dispatch selects how operations map to endpoints.
type Dispatch string

const (
	// DispatchPerOperation posts each operation to its own endpoint.
	DispatchPerOperation Dispatch = "per-operation"
	// DispatchShared posts every operation to one endpoint with an operation field.
	DispatchShared Dispatch = "shared"
)

func (d Dispatch) Valid() bool {
	switch d {
	case DispatchPerOperation, DispatchShared:
		return true
	}
	return false
}

// TagFormat selects how tags are serialized on the wire.
type TagFormat string

const (
	// TagFormatList sends the normalized tags as a JSON array.
	TagFormatList TagFormat = "list"
	// TagFormatString sends the raw comma separated text as typed.
	TagFormatString TagFormat = "string"
)

func (t TagFormat) Valid() bool {
	switch t {
	case TagFormatList, TagFormatString:
		return true
	}
	return false
}
