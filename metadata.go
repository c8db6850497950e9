package mondoc

import (
	"reflect"
	"strings"
	"sync"

	"github.com/iancoleman/strcase"
	"github.com/pkg/errors"
)

const idKey = "_id"

// FieldNamingStrategy derives a storage field name from a Go struct field
// name when no bson tag is present.
type FieldNamingStrategy func(fieldName string) string

var (
	AsIsFieldNaming      FieldNamingStrategy = func(name string) string { return name }
	CamelCaseFieldNaming FieldNamingStrategy = strcase.ToLowerCamel
	SnakeCaseFieldNaming FieldNamingStrategy = strcase.ToSnake
)

// Property describes one mapped struct field of an entity.
type Property struct {
	// Name is the logical property name (the Go field name). Lookups by
	// logical name are case-insensitive.
	Name string
	// FieldName is the storage key the property maps to; "_id" for ids.
	FieldName string

	IsID          bool
	IsAssociation bool
	// UseDBRef marks an association stored as a {$ref,$id,$db} document
	// rather than a plain id pointer.
	UseDBRef bool
	// Lazy marks an association resolved on first access instead of during
	// the read that encounters it. Only Ref fields can be lazy.
	Lazy bool
	// LookupTemplate holds the pointer lookup expression for document
	// references resolved by criteria other than id equality.
	LookupTemplate string
	// Database optionally pins the referenced collection to another database.
	Database string

	// Converter overrides the registry for this property's values.
	Converter ValueConverter

	// Type is the declared field type, Target the element type after
	// unwrapping pointers, slices, maps and Ref wrappers.
	Type   reflect.Type
	Target reflect.Type

	index   int
	isSlice bool
	isMap   bool
	isRef   bool
}

// IsCollectionLike reports whether the property holds many values.
func (p *Property) IsCollectionLike() bool {
	return p.isSlice || p.isMap
}

// IsRefWrapper reports whether the field is declared as a Ref[T].
func (p *Property) IsRefWrapper() bool {
	return p.isRef
}

// Entity is the mapped metadata of one domain type, built once when the type
// is registered and immutable afterwards.
type Entity struct {
	Name       string
	Collection string
	Type       reflect.Type

	properties []*Property
	byName     map[string]*Property
	byField    map[string]*Property
	id         *Property
}

// Properties returns the mapped properties in declaration order.
func (e *Entity) Properties() []*Property {
	return e.properties
}

// IDProperty returns the entity's id property, or nil when none is declared.
func (e *Entity) IDProperty() *Property {
	return e.id
}

// Property looks a property up by logical name, case-insensitively.
// Returns nil when the entity declares no such property.
func (e *Entity) Property(name string) *Property {
	return e.byName[strings.ToLower(name)]
}

// PropertyByField looks a property up by its storage field name.
func (e *Entity) PropertyByField(field string) *Property {
	return e.byField[field]
}

// MappingContext is the registry of entity metadata. Entities are derived
// from struct tags in a single reflection pass at registration time; mapping
// operations afterwards only consult the prebuilt tables.
type MappingContext struct {
	mu     sync.RWMutex
	byType map[reflect.Type]*Entity
	byName map[string]*Entity
	naming FieldNamingStrategy
}

// ContextOption configures a MappingContext.
type ContextOption func(c *MappingContext)

// WithFieldNaming sets the naming strategy applied to untagged fields.
func WithFieldNaming(strategy FieldNamingStrategy) ContextOption {
	return func(c *MappingContext) {
		c.naming = strategy
	}
}

func NewMappingContext(options ...ContextOption) *MappingContext {
	c := &MappingContext{
		byType: make(map[reflect.Type]*Entity),
		byName: make(map[string]*Entity),
		naming: CamelCaseFieldNaming,
	}
	for _, op := range options {
		op(c)
	}

	return c
}

// EntityOption tweaks a single registration.
type EntityOption func(e *Entity)

// WithCollection overrides the derived collection name.
func WithCollection(name string) EntityOption {
	return func(e *Entity) {
		e.Collection = name
	}
}

// WithPropertyConverter attaches a custom converter to the named property.
func WithPropertyConverter(property string, conv ValueConverter) EntityOption {
	return func(e *Entity) {
		if p := e.Property(property); p != nil {
			p.Converter = conv
		}
	}
}

// Register derives entity metadata for the given model value (a struct or
// pointer to struct) and stores it in the context. Registering the same type
// twice returns the already registered entity.
func (c *MappingContext) Register(model any, options ...EntityOption) (*Entity, error) {
	typ := reflect.TypeOf(model)
	if typ == nil {
		return nil, errors.New("mondoc: cannot register nil model")
	}
	if typ.Kind() == reflect.Ptr {
		typ = typ.Elem()
	}
	if typ.Kind() != reflect.Struct {
		return nil, errors.Errorf("mondoc: model must be a struct, got %s", typ.Kind())
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if existing, ok := c.byType[typ]; ok {
		return existing, nil
	}

	entity, err := c.deriveEntity(typ)
	if err != nil {
		return nil, err
	}
	for _, op := range options {
		op(entity)
	}

	c.byType[typ] = entity
	c.byName[entity.Name] = entity

	return entity, nil
}

// EntityOf returns the entity for the given model value, deriving and
// caching metadata on demand for yet unseen struct types. Returns nil for
// non-struct values.
func (c *MappingContext) EntityOf(model any) *Entity {
	typ := reflect.TypeOf(model)
	if typ == nil {
		return nil
	}

	return c.EntityOfType(typ)
}

// EntityOfType is EntityOf for an already reflected type.
func (c *MappingContext) EntityOfType(typ reflect.Type) *Entity {
	if typ.Kind() == reflect.Ptr {
		typ = typ.Elem()
	}
	if typ.Kind() != reflect.Struct {
		return nil
	}

	c.mu.RLock()
	entity, ok := c.byType[typ]
	c.mu.RUnlock()
	if ok {
		return entity
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if entity, ok = c.byType[typ]; ok {
		return entity
	}

	entity, err := c.deriveEntity(typ)
	if err != nil {
		return nil
	}

	c.byType[typ] = entity
	c.byName[entity.Name] = entity

	return entity
}

// EntityByName returns a registered entity by name, or nil.
func (c *MappingContext) EntityByName(name string) *Entity {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return c.byName[name]
}

// CollectionOf returns the collection the given model maps to.
func (c *MappingContext) CollectionOf(model any) (string, bool) {
	entity := c.EntityOf(model)
	if entity == nil {
		return "", false
	}

	return entity.Collection, true
}

func (c *MappingContext) deriveEntity(typ reflect.Type) (*Entity, error) {
	entity := &Entity{
		Name:       typ.Name(),
		Collection: strcase.ToSnake(typ.Name()),
		Type:       typ,
		byName:     make(map[string]*Property),
		byField:    make(map[string]*Property),
	}

	for i := 0; i < typ.NumField(); i++ {
		field := typ.Field(i)
		if !field.IsExported() {
			continue
		}

		prop, skip, err := c.deriveProperty(field, i)
		if err != nil {
			return nil, errors.Wrapf(err, "field %s.%s", typ.Name(), field.Name)
		}
		if skip {
			continue
		}

		if prop.IsID {
			if entity.id != nil {
				return nil, errors.Errorf("mondoc: %s declares more than one id field", typ.Name())
			}
			entity.id = prop
		}

		entity.properties = append(entity.properties, prop)
		entity.byName[strings.ToLower(prop.Name)] = prop
		entity.byField[prop.FieldName] = prop
	}

	// conventional id detection when no field was tagged
	if entity.id == nil {
		for _, prop := range entity.properties {
			if prop.FieldName == idKey || strings.EqualFold(prop.Name, "id") {
				prop.IsID = true
				prop.FieldName = idKey
				entity.id = prop
				entity.byField[idKey] = prop
				break
			}
		}
	}

	return entity, nil
}

func (c *MappingContext) deriveProperty(field reflect.StructField, index int) (*Property, bool, error) {
	name, omit := parseBSONTag(field.Tag.Get("bson"))
	if omit {
		return nil, true, nil
	}
	if name == "" {
		name = c.naming(field.Name)
	}

	prop := &Property{
		Name:      field.Name,
		FieldName: name,
		Type:      field.Type,
		index:     index,
	}

	isID, isDBRef, isRef, lazySet, lazy, db, lookup, err := parseMondocTag(field.Tag.Get("mondoc"))
	if err != nil {
		return nil, false, err
	}

	prop.IsID = isID || name == idKey
	if prop.IsID {
		prop.FieldName = idKey
	}

	target := field.Type
	for target.Kind() == reflect.Ptr {
		target = target.Elem()
	}

	switch target.Kind() {
	case reflect.Slice, reflect.Array:
		if target.Elem().Kind() != reflect.Uint8 {
			prop.isSlice = true
			target = target.Elem()
			for target.Kind() == reflect.Ptr {
				target = target.Elem()
			}
		}
	case reflect.Map:
		prop.isMap = true
		target = target.Elem()
		for target.Kind() == reflect.Ptr {
			target = target.Elem()
		}
	}

	if isRefType(target) {
		prop.isRef = true
		prop.IsAssociation = true
		target = refElemOf(target)
	}

	prop.Target = target

	if isDBRef || isRef {
		prop.IsAssociation = true
		prop.UseDBRef = isDBRef
	}

	if prop.IsAssociation {
		// Ref fields defer by default; plain fields have nothing to hang a
		// deferred resolution on and always resolve eagerly.
		prop.Lazy = prop.isRef
		if lazySet {
			prop.Lazy = lazy && prop.isRef
		}
		prop.Database = db
		prop.LookupTemplate = lookup
	}

	if prop.IsID && prop.IsAssociation {
		return nil, false, errors.New("mondoc: a field cannot be both id and reference")
	}

	return prop, false, nil
}

func parseBSONTag(value string) (name string, omit bool) {
	if value == "-" {
		return "", true
	}

	parts := strings.Split(value, ",")
	name = strings.TrimSpace(parts[0])

	return name, false
}

// parseMondocTag parses the mondoc struct tag. Recognized options:
//
//	id                   the entity identifier
//	dbref                association stored as a {$ref,$id} document
//	ref                  association stored as an id pointer document
//	lazy / eager         defer or force association resolution
//	db=<name>            database override for the referenced collection
//	lookup={...}         pointer lookup template for ref associations
func parseMondocTag(value string) (isID, isDBRef, isRef, lazySet, lazy bool, db, lookup string, err error) {
	if value == "" {
		return
	}

	for _, part := range splitTagOptions(value) {
		part = strings.TrimSpace(part)
		switch {
		case strings.EqualFold(part, "id"):
			isID = true
		case strings.EqualFold(part, "dbref"):
			isDBRef = true
		case strings.EqualFold(part, "ref"):
			isRef = true
		case strings.EqualFold(part, "lazy"):
			lazySet, lazy = true, true
		case strings.EqualFold(part, "eager"):
			lazySet, lazy = true, false
		case strings.HasPrefix(part, "db="):
			db = strings.TrimPrefix(part, "db=")
		case strings.HasPrefix(part, "lookup="):
			lookup = strings.TrimPrefix(part, "lookup=")
		case part == "":
		default:
			err = errors.Errorf("mondoc: unknown tag option %q", part)
			return
		}
	}

	return
}

// splitTagOptions splits on commas while keeping lookup templates (which may
// contain commas inside braces) in one piece.
func splitTagOptions(value string) []string {
	var parts []string
	depth := 0
	start := 0
	for i := 0; i < len(value); i++ {
		switch value[i] {
		case '{':
			depth++
		case '}':
			depth--
		case ',':
			if depth == 0 {
				parts = append(parts, value[start:i])
				start = i + 1
			}
		}
	}

	return append(parts, value[start:])
}
