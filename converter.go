package mondoc

import (
	"context"
	"reflect"
	"sort"
	"time"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// MongoWriter writes domain values into their storage representation.
type MongoWriter interface {
	// WriteValue converts a single value into a natively storable one. The
	// optional hint directs conversion when the declared field type differs
	// from the dynamic one.
	WriteValue(v any, hint reflect.Type) (any, error)
	// ToDBRef builds the {$ref,$id[,$db]} pointer for an association value.
	ToDBRef(v any, prop *Property) (DBRef, error)
	// ToDocumentPointer builds the stored pointer for a document reference:
	// the plain id for the default lookup, a pointer document for templated
	// lookups.
	ToDocumentPointer(v any, prop *Property) (any, error)
}

// MongoConverter is the full object<->document translation contract.
type MongoConverter interface {
	MongoWriter
	Write(v any) (bson.D, error)
	Read(ctx context.Context, dest any, doc bson.D) error
}

// Converter translates between domain objects and documents using the
// metadata model and the converter registry. Safe for concurrent use; all
// state is built at construction.
type Converter struct {
	mapping     *MappingContext
	conversions *ConverterRegistry
	resolver    *Resolver
	factory     *DocumentPointerFactory
	logger      *Logger
}

// ConverterOption configures a Converter.
type ConverterOption func(c *Converter)

// WithConverterRegistry replaces the default converter registry.
func WithConverterRegistry(reg *ConverterRegistry) ConverterOption {
	return func(c *Converter) {
		c.conversions = reg
	}
}

// WithResolver wires a reference resolver; without one, reading an
// association that needs a fetch is an error.
func WithResolver(resolver *Resolver) ConverterOption {
	return func(c *Converter) {
		c.resolver = resolver
	}
}

// WithConverterLogger sets the logger.
func WithConverterLogger(logger *Logger) ConverterOption {
	return func(c *Converter) {
		c.logger = logger
	}
}

func NewConverter(mapping *MappingContext, options ...ConverterOption) *Converter {
	c := &Converter{
		mapping: mapping,
		logger:  NopLogger(),
		factory: NewDocumentPointerFactory(),
	}
	for _, op := range options {
		op(c)
	}

	if c.conversions == nil {
		c.conversions = NewConverterRegistry()
	}

	return c
}

// Mapping returns the metadata context the converter consults.
func (c *Converter) Mapping() *MappingContext {
	return c.mapping
}

// Conversions returns the converter registry.
func (c *Converter) Conversions() *ConverterRegistry {
	return c.conversions
}

// --- write path ---

// Write maps a domain object onto a document, field names and values in
// storage form, associations turned into reference pointers.
func (c *Converter) Write(v any) (bson.D, error) {
	rv := reflect.ValueOf(v)
	for rv.Kind() == reflect.Ptr {
		if rv.IsNil() {
			return nil, errors.New("mondoc: cannot write nil")
		}
		rv = rv.Elem()
	}

	entity := c.mapping.EntityOfType(rv.Type())
	if entity == nil {
		return nil, errors.Wrapf(ErrNoEntity, "%s", rv.Type())
	}

	doc := bson.D{}
	accessor := NewDocumentAccessor(&doc)
	if err := c.writeEntity(entity, rv, accessor); err != nil {
		return nil, err
	}

	return doc, nil
}

func (c *Converter) writeEntity(entity *Entity, value reflect.Value, accessor *DocumentAccessor) error {
	for _, prop := range entity.Properties() {
		field := value.Field(prop.index)

		if prop.IsAssociation {
			stored, err := c.writeAssociation(prop, field)
			if err != nil {
				return errors.Wrapf(err, "property %s of %s", prop.Name, entity.Name)
			}
			if stored != nil {
				accessor.Put(prop.FieldName, stored)
			}
			continue
		}

		if isNilValue(field) {
			continue
		}

		written, err := c.WriteValue(field.Interface(), prop.Type)
		if err != nil {
			return errors.Wrapf(err, "property %s of %s", prop.Name, entity.Name)
		}
		accessor.Put(prop.FieldName, written)
	}

	return nil
}

func (c *Converter) writeAssociation(prop *Property, field reflect.Value) (any, error) {
	if isNilValue(field) {
		return nil, nil
	}

	if prop.IsCollectionLike() && !prop.IsRefWrapper() {
		switch field.Kind() {
		case reflect.Slice, reflect.Array:
			out := make(bson.A, 0, field.Len())
			for i := 0; i < field.Len(); i++ {
				stored, err := c.writeSingleReference(prop, field.Index(i).Interface())
				if err != nil {
					return nil, err
				}
				out = append(out, stored)
			}
			return out, nil
		case reflect.Map:
			keys := field.MapKeys()
			sort.Slice(keys, func(i, j int) bool { return keys[i].String() < keys[j].String() })
			out := make(bson.D, 0, len(keys))
			for _, key := range keys {
				stored, err := c.writeSingleReference(prop, field.MapIndex(key).Interface())
				if err != nil {
					return nil, err
				}
				out = append(out, bson.E{Key: key.String(), Value: stored})
			}
			return out, nil
		}
	}

	return c.writeSingleReference(prop, field.Interface())
}

func (c *Converter) writeSingleReference(prop *Property, v any) (any, error) {
	if v == nil {
		return nil, nil
	}

	// a Ref carries either a resolved value or the stored source
	if ref, ok := refValueOf(v); ok {
		if resolved, isResolved := ref.resolvedValue(); isResolved {
			if resolved == nil {
				return ref.rawSource(), nil
			}
			v = resolved
		} else {
			return ref.rawSource(), nil
		}
	}

	// already mapped values pass through unchanged
	switch stored := v.(type) {
	case DBRef:
		return stored, nil
	case *DBRef:
		return *stored, nil
	case bson.D:
		return stored, nil
	}

	if prop.UseDBRef {
		return c.ToDBRef(v, prop)
	}

	return c.ToDocumentPointer(v, prop)
}

// ToDBRef builds the DBRef for an association value, which may be an entity
// instance or a raw id.
func (c *Converter) ToDBRef(v any, prop *Property) (DBRef, error) {
	if ref, ok := v.(DBRef); ok {
		return ref, nil
	}

	target := c.mapping.EntityOfType(prop.Target)
	if target == nil {
		return DBRef{}, errors.Wrapf(ErrNoEntity, "reference target %s", prop.Target)
	}

	rv := reflect.ValueOf(v)
	for rv.Kind() == reflect.Ptr {
		if rv.IsNil() {
			return DBRef{}, errors.New("mondoc: cannot reference nil")
		}
		rv = rv.Elem()
	}

	var id any
	if rv.Type() == target.Type {
		idProp := target.IDProperty()
		if idProp == nil {
			return DBRef{}, errors.Errorf("mondoc: referenced entity %s declares no id", target.Name)
		}
		id = rv.Field(idProp.index).Interface()
	} else {
		// a raw id stands in for the entity
		id = v
	}

	id, err := c.WriteValue(id, nil)
	if err != nil {
		return DBRef{}, err
	}

	return DBRef{Collection: target.Collection, ID: id, Database: prop.Database}, nil
}

// ToDocumentPointer builds the stored pointer value for a document
// reference.
func (c *Converter) ToDocumentPointer(v any, prop *Property) (any, error) {
	target := c.mapping.EntityOfType(prop.Target)
	if target == nil {
		return nil, errors.Wrapf(ErrNoEntity, "reference target %s", prop.Target)
	}

	rv := reflect.ValueOf(v)
	dereffed := rv
	for dereffed.Kind() == reflect.Ptr {
		if dereffed.IsNil() {
			return nil, nil
		}
		dereffed = dereffed.Elem()
	}

	if dereffed.Type() != target.Type {
		// a raw id is already a pointer value
		return c.WriteValue(v, nil)
	}

	pointer, err := c.factory.ComputePointer(prop, target, rv)
	if err != nil {
		return nil, err
	}

	return c.WriteValue(pointer, nil)
}

// WriteValue converts any value into its storage representation: custom
// conversions first, simple values pass through, documents, lists and maps
// are rebuilt element-wise, structs become nested documents.
func (c *Converter) WriteValue(v any, hint reflect.Type) (any, error) {
	if v == nil {
		return nil, nil
	}

	typ := reflect.TypeOf(v)

	if conv, _, ok := c.conversions.WriteConverter(typ); ok {
		return conv.Convert(v)
	}
	if hint != nil && hint != typ {
		if conv, _, ok := c.conversions.WriteConverter(hint); ok && typ.AssignableTo(hint) {
			return conv.Convert(v)
		}
	}

	switch d := v.(type) {
	case bson.D:
		out := make(bson.D, 0, len(d))
		for _, e := range d {
			mapped, err := c.WriteValue(e.Value, nil)
			if err != nil {
				return nil, err
			}
			out = append(out, bson.E{Key: e.Key, Value: mapped})
		}
		return out, nil
	case bson.M:
		keys := make([]string, 0, len(d))
		for k := range d {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		out := make(bson.D, 0, len(keys))
		for _, k := range keys {
			mapped, err := c.WriteValue(d[k], nil)
			if err != nil {
				return nil, err
			}
			out = append(out, bson.E{Key: k, Value: mapped})
		}
		return out, nil
	}

	if c.conversions.IsSimpleType(typ) {
		return v, nil
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Ptr:
		if rv.IsNil() {
			return nil, nil
		}
		return c.WriteValue(rv.Elem().Interface(), hint)
	case reflect.Slice, reflect.Array:
		out := make(bson.A, 0, rv.Len())
		for i := 0; i < rv.Len(); i++ {
			mapped, err := c.WriteValue(rv.Index(i).Interface(), nil)
			if err != nil {
				return nil, err
			}
			out = append(out, mapped)
		}
		return out, nil
	case reflect.Map:
		if rv.Type().Key().Kind() != reflect.String {
			return nil, errors.Errorf("mondoc: cannot store map with %s keys", rv.Type().Key())
		}
		keys := rv.MapKeys()
		sort.Slice(keys, func(i, j int) bool { return keys[i].String() < keys[j].String() })
		out := make(bson.D, 0, len(keys))
		for _, key := range keys {
			mapped, err := c.WriteValue(rv.MapIndex(key).Interface(), nil)
			if err != nil {
				return nil, err
			}
			out = append(out, bson.E{Key: key.String(), Value: mapped})
		}
		return out, nil
	case reflect.Struct:
		entity := c.mapping.EntityOfType(rv.Type())
		if entity == nil {
			return nil, errors.Wrapf(ErrNoEntity, "%s", rv.Type())
		}
		doc := bson.D{}
		accessor := NewDocumentAccessor(&doc)
		if err := c.writeEntity(entity, rv, accessor); err != nil {
			return nil, err
		}
		return doc, nil
	default:
		return v, nil
	}
}

// --- read path ---

// Read populates dest (a pointer to a registered struct) from a document.
func (c *Converter) Read(ctx context.Context, dest any, doc bson.D) error {
	rv := reflect.ValueOf(dest)
	if rv.Kind() != reflect.Ptr || rv.IsNil() {
		return errors.New("mondoc: read destination must be a non-nil pointer")
	}

	entity := c.mapping.EntityOfType(rv.Type().Elem())
	if entity == nil {
		return errors.Wrapf(ErrNoEntity, "%s", rv.Type().Elem())
	}

	return c.readEntity(ctx, entity, doc, rv, RootObjectPath)
}

// ReadEntity instantiates and populates a fresh value of the given entity.
func (c *Converter) ReadEntity(ctx context.Context, entity *Entity, doc bson.D) (any, error) {
	inst := reflect.New(entity.Type)
	if err := c.readEntity(ctx, entity, doc, inst, RootObjectPath); err != nil {
		return nil, err
	}

	return inst.Interface(), nil
}

func (c *Converter) readEntity(ctx context.Context, entity *Entity, doc bson.D, dest reflect.Value, path ObjectPath) error {
	accessor := NewDocumentAccessor(&doc)

	// push before populating so cyclic back-references find the instance
	// under construction
	rawID, _ := accessor.RawID(entity)
	path = path.Push(dest.Interface(), entity.Collection, rawID)

	structVal := dest.Elem()
	for _, prop := range entity.Properties() {
		raw, ok := accessor.Get(prop.FieldName)
		if !ok || raw == nil {
			continue
		}

		field := structVal.Field(prop.index)

		if prop.IsAssociation {
			if err := c.readAssociation(ctx, prop, raw, field, path); err != nil {
				return errors.Wrapf(err, "property %s of %s", prop.Name, entity.Name)
			}
			continue
		}

		if err := c.readValue(ctx, raw, field, path); err != nil {
			return errors.Wrapf(err, "property %s of %s", prop.Name, entity.Name)
		}
	}

	return nil
}

func (c *Converter) readValue(ctx context.Context, raw any, field reflect.Value, path ObjectPath) error {
	if raw == nil {
		return nil
	}

	target := field.Type()

	if conv, ok := c.conversions.ReadConverter(reflect.TypeOf(raw), target); ok {
		converted, err := conv.Convert(raw)
		if err != nil {
			return err
		}
		return assignValue(field, converted)
	}

	if doc, isDoc := asDocument(raw); isDoc {
		return c.readDocumentValue(ctx, doc, raw, field, path)
	}

	if list, isList := asArray(raw); isList && (target.Kind() == reflect.Slice || target == reflect.TypeOf(bson.A{})) {
		if target == reflect.TypeOf(bson.A{}) {
			return assignValue(field, list)
		}

		out := reflect.MakeSlice(target, len(list), len(list))
		for i, item := range list {
			if err := c.readValue(ctx, item, out.Index(i), path); err != nil {
				return err
			}
		}
		field.Set(out)
		return nil
	}

	return assignValue(field, coerceSimple(raw, target))
}

func (c *Converter) readDocumentValue(ctx context.Context, doc bson.D, raw any, field reflect.Value, path ObjectPath) error {
	target := field.Type()

	switch target {
	case reflect.TypeOf(bson.D{}):
		field.Set(reflect.ValueOf(doc))
		return nil
	case reflect.TypeOf(bson.M{}):
		out := make(bson.M, len(doc))
		for _, e := range doc {
			out[e.Key] = e.Value
		}
		field.Set(reflect.ValueOf(out))
		return nil
	}

	structType := target
	for structType.Kind() == reflect.Ptr {
		structType = structType.Elem()
	}

	switch structType.Kind() {
	case reflect.Struct:
		entity := c.mapping.EntityOfType(structType)
		if entity == nil {
			return errors.Wrapf(ErrNoEntity, "%s", structType)
		}

		inst := reflect.New(structType)
		if err := c.readEntity(ctx, entity, doc, inst, path); err != nil {
			return err
		}

		if target.Kind() == reflect.Ptr {
			field.Set(inst)
		} else {
			field.Set(inst.Elem())
		}
		return nil
	case reflect.Map:
		if structType.Key().Kind() != reflect.String {
			return errors.Errorf("mondoc: cannot read document into map with %s keys", structType.Key())
		}
		out := reflect.MakeMapWithSize(structType, len(doc))
		for _, e := range doc {
			elem := reflect.New(structType.Elem()).Elem()
			if err := c.readValue(ctx, e.Value, elem, path); err != nil {
				return err
			}
			out.SetMapIndex(reflect.ValueOf(e.Key), elem)
		}
		field.Set(out)
		return nil
	case reflect.Interface:
		field.Set(reflect.ValueOf(raw))
		return nil
	default:
		return errors.Errorf("mondoc: cannot read document into %s", target)
	}
}

func (c *Converter) readAssociation(ctx context.Context, prop *Property, raw any, field reflect.Value, path ObjectPath) error {
	if prop.IsRefWrapper() {
		return c.readRefField(ctx, prop, raw, field)
	}

	if prop.IsCollectionLike() {
		return c.readAssociationList(ctx, prop, raw, field, path)
	}

	source := normalizeRefSource(raw)
	target := c.mapping.EntityOfType(prop.Target)
	if target == nil {
		return errors.Wrapf(ErrNoEntity, "reference target %s", prop.Target)
	}

	// reuse an instance already on the path instead of re-fetching;
	// this is what terminates cyclic graphs
	if existing := c.pathLookup(prop, target, source, path); existing != nil {
		return assignValue(field, existing)
	}

	if c.resolver == nil {
		return errors.New("mondoc: no resolver configured for association")
	}

	doc, err := c.resolver.ResolveOne(ctx, prop, target, source)
	if err != nil {
		return err
	}
	if doc == nil {
		return nil
	}

	inst := reflect.New(target.Type)
	if err := c.readEntity(ctx, target, doc, inst, path); err != nil {
		return err
	}

	return assignValue(field, inst.Interface())
}

func (c *Converter) readAssociationList(ctx context.Context, prop *Property, raw any, field reflect.Value, path ObjectPath) error {
	sources, ok := asArray(raw)
	if !ok {
		return errors.Errorf("mondoc: association %s expects a list, got %T", prop.Name, raw)
	}

	if c.resolver == nil {
		return errors.New("mondoc: no resolver configured for association")
	}

	target := c.mapping.EntityOfType(prop.Target)
	if target == nil {
		return errors.Wrapf(ErrNoEntity, "reference target %s", prop.Target)
	}

	normalized := sliceMap(sources, func(v any) any { return normalizeRefSource(v) })
	docs, err := c.resolver.ResolveMany(ctx, prop, target, normalized)
	if err != nil {
		return err
	}

	out := reflect.MakeSlice(field.Type(), 0, len(docs))
	for _, doc := range docs {
		inst := reflect.New(target.Type)
		if err := c.readEntity(ctx, target, doc, inst, path); err != nil {
			return err
		}

		if field.Type().Elem().Kind() == reflect.Ptr {
			out = reflect.Append(out, inst)
		} else {
			out = reflect.Append(out, inst.Elem())
		}
	}
	field.Set(out)

	return nil
}

func (c *Converter) readRefField(ctx context.Context, prop *Property, raw any, field reflect.Value) error {
	source := normalizeRefSource(raw)
	handle := refHandle(field)

	if prop.Lazy {
		handle.attach(source, func(ctx context.Context) (any, error) {
			return c.fetchReference(ctx, prop, source, RootObjectPath)
		})
		return nil
	}

	value, err := c.fetchReference(ctx, prop, source, RootObjectPath)
	if err != nil {
		return err
	}
	handle.bind(source, value)

	return nil
}

// fetchReference resolves one Ref source into a *T (or *[]T for
// collection-typed refs).
func (c *Converter) fetchReference(ctx context.Context, prop *Property, source any, path ObjectPath) (any, error) {
	if source == nil {
		return nil, nil
	}
	if c.resolver == nil {
		return nil, errors.New("mondoc: no resolver configured for association")
	}

	targetType := prop.Target
	if targetType.Kind() == reflect.Slice {
		elemType := targetType.Elem()
		for elemType.Kind() == reflect.Ptr {
			elemType = elemType.Elem()
		}
		target := c.mapping.EntityOfType(elemType)
		if target == nil {
			return nil, errors.Wrapf(ErrNoEntity, "reference target %s", elemType)
		}

		sources, ok := asArray(source)
		if !ok {
			return nil, errors.Errorf("mondoc: expected a list of references, got %T", source)
		}
		normalized := sliceMap(sources, func(v any) any { return normalizeRefSource(v) })

		docs, err := c.resolver.ResolveMany(ctx, prop, target, normalized)
		if err != nil {
			return nil, err
		}

		out := reflect.MakeSlice(targetType, 0, len(docs))
		for _, doc := range docs {
			inst := reflect.New(target.Type)
			if err := c.readEntity(ctx, target, doc, inst, path); err != nil {
				return nil, err
			}
			if targetType.Elem().Kind() == reflect.Ptr {
				out = reflect.Append(out, inst)
			} else {
				out = reflect.Append(out, inst.Elem())
			}
		}

		result := reflect.New(targetType)
		result.Elem().Set(out)
		return result.Interface(), nil
	}

	target := c.mapping.EntityOfType(targetType)
	if target == nil {
		return nil, errors.Wrapf(ErrNoEntity, "reference target %s", targetType)
	}

	if existing := c.pathLookup(prop, target, source, path); existing != nil {
		return existing, nil
	}

	doc, err := c.resolver.ResolveOne(ctx, prop, target, source)
	if err != nil {
		return nil, err
	}
	if doc == nil {
		return nil, nil
	}

	inst := reflect.New(target.Type)
	if err := c.readEntity(ctx, target, doc, inst, path); err != nil {
		return nil, err
	}

	return inst.Interface(), nil
}

// pathLookup checks the ObjectPath for an already resolved instance of the
// reference target.
func (c *Converter) pathLookup(prop *Property, target *Entity, source any, path ObjectPath) any {
	if path.Len() == 0 || c.resolver == nil {
		return nil
	}

	id, coll, err := c.resolver.idAndCollection(prop, target, source)
	if err != nil || id == nil {
		return nil
	}

	collection := coll.Collection
	if collection == "" {
		collection = target.Collection
	}

	return path.PathItem(id, collection, reflect.PtrTo(target.Type))
}

// --- small reflection helpers ---

func isNilValue(v reflect.Value) bool {
	switch v.Kind() {
	case reflect.Ptr, reflect.Interface, reflect.Slice, reflect.Map, reflect.Func, reflect.Chan:
		return v.IsNil()
	default:
		return false
	}
}

// refValueOf extracts the lazyRef view from a Ref[T] or *Ref[T] value.
func refValueOf(v any) (lazyRef, bool) {
	if ref, ok := v.(lazyRef); ok {
		return ref, true
	}

	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Struct && isRefType(rv.Type()) {
		// a Ref passed by value; work on an addressable copy
		addr := reflect.New(rv.Type())
		addr.Elem().Set(rv)
		return addr.Interface().(lazyRef), true
	}

	return nil, false
}

// refHandle returns the lazyRef view of a struct field, allocating *Ref
// fields as needed.
func refHandle(field reflect.Value) lazyRef {
	if field.Kind() == reflect.Ptr {
		if field.IsNil() {
			field.Set(reflect.New(field.Type().Elem()))
		}
		return field.Interface().(lazyRef)
	}

	return field.Addr().Interface().(lazyRef)
}

// normalizeRefSource turns {$ref,$id} documents into DBRef values; other
// sources (plain ids, pointer documents) pass through.
func normalizeRefSource(raw any) any {
	if doc, ok := asDocument(raw); ok {
		if ref, isRef := dbRefFromDocument(doc); isRef {
			return ref
		}
		return doc
	}

	return raw
}

// coerceSimple adapts stored scalar representations to the declared field
// type: numeric widenings, ObjectID/hex-string bridging, primitive.DateTime
// to time.Time.
func coerceSimple(raw any, target reflect.Type) any {
	rv := reflect.ValueOf(raw)
	if rv.Type() == target || rv.Type().AssignableTo(target) {
		return raw
	}

	if oid, ok := raw.(primitive.ObjectID); ok && target.Kind() == reflect.String {
		return oid.Hex()
	}
	if s, ok := raw.(string); ok && target == reflect.TypeOf(primitive.ObjectID{}) {
		if oid, err := primitive.ObjectIDFromHex(s); err == nil {
			return oid
		}
	}
	if dt, ok := raw.(primitive.DateTime); ok && target == reflect.TypeOf(time.Time{}) {
		return dt.Time()
	}

	if isNumericKind(rv.Kind()) && isNumericKind(target.Kind()) {
		return rv.Convert(target).Interface()
	}

	return raw
}

func isNumericKind(k reflect.Kind) bool {
	switch k {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return true
	default:
		return false
	}
}

// assignValue sets a struct field from a converted value, allocating
// through pointers as needed.
func assignValue(field reflect.Value, v any) error {
	if v == nil {
		return nil
	}

	rv := reflect.ValueOf(v)
	target := field.Type()

	if rv.Type().AssignableTo(target) {
		field.Set(rv)
		return nil
	}

	if target.Kind() == reflect.Ptr {
		if rv.Type().AssignableTo(target.Elem()) {
			ptr := reflect.New(target.Elem())
			ptr.Elem().Set(rv)
			field.Set(ptr)
			return nil
		}
		if rv.Kind() == reflect.Ptr && rv.Type().Elem().AssignableTo(target.Elem()) {
			field.Set(rv)
			return nil
		}
	}

	if rv.Kind() == reflect.Ptr && rv.Type().Elem().AssignableTo(target) {
		field.Set(rv.Elem())
		return nil
	}

	if rv.Type().ConvertibleTo(target) && isNumericKind(rv.Kind()) == isNumericKind(target.Kind()) {
		field.Set(rv.Convert(target))
		return nil
	}

	return errors.Errorf("mondoc: cannot assign %T to %s", v, target)
}
