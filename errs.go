package mondoc

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound         = errors.New("document not found")
	ErrNonUniqueResult  = errors.New("query for a single document matched more than one")
	ErrNoEntity         = errors.New("no entity metadata for type")
	ErrKeyAlreadyExists = errors.New("key already exists")
	ErrUnboundReference = errors.New("reference has no source to resolve from")
	ErrIteratorDone     = errors.New("no more results")
)

// MappingError is raised when a property path cannot be resolved against an
// entity, or an association is traversed past its boundary.
type MappingError struct {
	Entity string
	Path   string
	Reason string
}

func (e *MappingError) Error() string {
	if e.Entity == "" {
		return fmt.Sprintf("cannot map path %q: %s", e.Path, e.Reason)
	}

	return fmt.Sprintf("cannot map path %q on entity %s: %s", e.Path, e.Entity, e.Reason)
}

func newMappingError(entity *Entity, path, reason string) *MappingError {
	name := ""
	if entity != nil {
		name = entity.Name
	}

	return &MappingError{Entity: name, Path: path, Reason: reason}
}

// ConversionError is raised when a registered converter cannot turn a source
// value into its target representation.
type ConversionError struct {
	Value  any
	Target string
	Reason string
}

func (e *ConversionError) Error() string {
	return fmt.Sprintf("cannot convert %T into %s: %s", e.Value, e.Target, e.Reason)
}
