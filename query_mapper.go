package mondoc

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// typeDiscriminatorKey marks documents carrying an explicit type tag; the
// mapper passes it through untouched.
const typeDiscriminatorKey = "_t"

// keyword is a single-entry operator document ({$in: ...}, {$ne: ...}).
type keyword struct {
	key   string
	value any
}

// keywordOf recognizes a whole document that is a single operator entry.
func keywordOf(doc bson.D) (keyword, bool) {
	if len(doc) != 1 || !isOperatorKey(doc[0].Key) {
		return keyword{}, false
	}

	return keyword{key: doc[0].Key, value: doc[0].Value}, true
}

// allOperatorKeys reports whether every key of the document is an operator.
func allOperatorKeys(doc bson.D) bool {
	if len(doc) == 0 {
		return false
	}
	for _, e := range doc {
		if !isOperatorKey(e.Key) {
			return false
		}
	}

	return true
}

// isPositionalSegment recognizes the array operators ($, $[], $[ident]) and
// numeric indices that may appear inside a property path and must be kept
// verbatim.
func isPositionalSegment(segment string) bool {
	if segment == "$" {
		return true
	}
	if strings.HasPrefix(segment, "$[") && strings.HasSuffix(segment, "]") {
		return true
	}

	_, err := strconv.Atoi(segment)
	return err == nil
}

// Field is a property path resolved against an entity: the dotted storage
// key plus what the leaf addresses (identifier, association, plain
// property).
type Field struct {
	raw  string
	key  string
	prop *Property

	entity      *Entity
	assoc       *Property
	assocTarget *Entity
	idTarget    *Entity
	isID        bool
}

// MappedKey returns the dotted storage key of the path.
func (f *Field) MappedKey() string {
	return f.key
}

// IsIdentifier reports whether the path leaf addresses an id.
func (f *Field) IsIdentifier() bool {
	return f.isID
}

// IsAssociationLeaf reports whether the path leaf is the association itself
// (as opposed to the identifier behind it).
func (f *Field) IsAssociationLeaf() bool {
	return f.assoc != nil && !f.isID
}

// QueryMapper rewrites query and update documents expressed against domain
// property names into documents expressed against storage field names, with
// values converted to storage-native representations and associations turned
// into reference pointers.
type QueryMapper struct {
	converter   *Converter
	mapping     *MappingContext
	conversions *ConverterRegistry
	examples    *ExampleMapper
	schemas     *JSONSchemaMapper
	logger      *Logger
}

// QueryMapperOption configures a QueryMapper.
type QueryMapperOption func(m *QueryMapper)

// WithQueryLogger sets the logger.
func WithQueryLogger(logger *Logger) QueryMapperOption {
	return func(m *QueryMapper) {
		m.logger = logger
	}
}

func NewQueryMapper(converter *Converter, options ...QueryMapperOption) *QueryMapper {
	m := &QueryMapper{
		converter:   converter,
		mapping:     converter.Mapping(),
		conversions: converter.Conversions(),
		logger:      NopLogger(),
	}
	for _, op := range options {
		op(m)
	}

	m.examples = NewExampleMapper(converter)
	m.schemas = NewJSONSchemaMapper(converter.Mapping())

	return m
}

// GetMappedObject maps a query or update document. A nil entity maps
// operator structure and passes property keys through unchanged.
// Key iteration order is preserved.
func (m *QueryMapper) GetMappedObject(query bson.D, entity *Entity) (bson.D, error) {
	if kw, ok := keywordOf(query); ok && kw.key != "$example" && kw.key != "$jsonSchema" {
		mapped, err := m.mapTopKeyword(kw, entity)
		if err != nil {
			return nil, err
		}

		return bson.D{mapped}, nil
	}

	result := make(bson.D, 0, len(query))
	for _, entry := range query {
		switch {
		case entry.Key == typeDiscriminatorKey:
			result = append(result, entry)

		case entry.Key == "$example":
			mapped, err := m.mapExampleKeyword(entry.Value, entity)
			if err != nil {
				return nil, err
			}
			// a by-example probe expands into plain criteria
			result = append(result, mapped...)

		case entry.Key == "$jsonSchema":
			schemaDoc, ok := asDocument(entry.Value)
			if !ok {
				return nil, fmt.Errorf("mondoc: $jsonSchema expects a document, got %T", entry.Value)
			}
			mapped, err := m.schemas.MapSchema(schemaDoc, entity)
			if err != nil {
				return nil, err
			}
			result = append(result, bson.E{Key: entry.Key, Value: mapped})

		case isOperatorKey(entry.Key):
			mapped, err := m.mapTopKeyword(keyword{key: entry.Key, value: entry.Value}, entity)
			if err != nil {
				return nil, err
			}
			result = append(result, mapped)

		default:
			field, err := m.resolveField(entry.Key, entity)
			if err != nil {
				// escape hatch: user-supplied raw driver syntax passes
				// through when the value is already document shaped
				if _, isDoc := asDocument(entry.Value); isDoc {
					m.logger.Debug("passing unresolvable key through", "key", entry.Key)
					result = append(result, entry)
					continue
				}
				return nil, err
			}

			mapped, err := m.getMappedValue(field, entry.Value)
			if err != nil {
				return nil, err
			}
			result = append(result, bson.E{Key: field.MappedKey(), Value: mapped})
		}
	}

	return result, nil
}

// GetMappedSort maps the keys of a sort document; unmapped keys are kept as
// given, direction values pass through.
func (m *QueryMapper) GetMappedSort(sort bson.D, entity *Entity) bson.D {
	result := make(bson.D, 0, len(sort))
	for _, entry := range sort {
		key := entry.Key
		if field, err := m.resolveField(entry.Key, entity); err == nil {
			key = field.MappedKey()
		}
		result = append(result, bson.E{Key: key, Value: entry.Value})
	}

	return result
}

// GetMappedFields maps the keys of a projection document. $meta projections
// ({score: {$meta: "textScore"}}) keep their value untouched.
func (m *QueryMapper) GetMappedFields(fields bson.D, entity *Entity) bson.D {
	result := make(bson.D, 0, len(fields))
	for _, entry := range fields {
		key := entry.Key
		if _, isMeta := metaValueOf(entry.Value); !isMeta {
			if field, err := m.resolveField(entry.Key, entity); err == nil {
				key = field.MappedKey()
			}
		}
		result = append(result, bson.E{Key: key, Value: entry.Value})
	}

	return result
}

func metaValueOf(v any) (string, bool) {
	doc, ok := asDocument(v)
	if !ok {
		return "", false
	}

	meta, ok := docLookup(doc, "$meta")
	if !ok {
		return "", false
	}

	s, _ := meta.(string)
	return s, true
}

func (m *QueryMapper) mapExampleKeyword(value any, entity *Entity) (bson.D, error) {
	switch ex := value.(type) {
	case Example:
		return m.examples.MappedExample(ex, entity)
	case *Example:
		return m.examples.MappedExample(*ex, entity)
	default:
		return m.examples.MappedExample(Example{Probe: value}, entity)
	}
}

// mapTopKeyword maps an operator at criteria level. $or/$nor distribute over
// their branches; iterable values (except $geometry) map element-wise;
// single values map recursively.
func (m *QueryMapper) mapTopKeyword(kw keyword, entity *Entity) (bson.E, error) {
	if kw.key == "$or" || kw.key == "$nor" || kw.key == "$and" {
		branches, ok := asArray(kw.value)
		if !ok {
			return bson.E{}, fmt.Errorf("mondoc: %s expects a list of criteria documents, got %T", kw.key, kw.value)
		}

		mapped := make(bson.A, len(branches))
		for i, branch := range branches {
			doc, isDoc := asDocument(branch)
			if !isDoc {
				return bson.E{}, fmt.Errorf("mondoc: %s branch must be a document, got %T", kw.key, branch)
			}
			out, err := m.GetMappedObject(doc, entity)
			if err != nil {
				return bson.E{}, err
			}
			mapped[i] = out
		}

		return bson.E{Key: kw.key, Value: mapped}, nil
	}

	if list, ok := asArray(kw.value); ok && kw.key != "$geometry" {
		mapped := make(bson.A, len(list))
		for i, item := range list {
			if doc, isDoc := asDocument(item); isDoc {
				out, err := m.GetMappedObject(doc, entity)
				if err != nil {
					return bson.E{}, err
				}
				mapped[i] = out
				continue
			}

			out, err := m.converter.WriteValue(item, nil)
			if err != nil {
				return bson.E{}, err
			}
			mapped[i] = out
		}

		return bson.E{Key: kw.key, Value: mapped}, nil
	}

	if doc, ok := asDocument(kw.value); ok {
		mapped, err := m.GetMappedObject(doc, entity)
		if err != nil {
			return bson.E{}, err
		}

		return bson.E{Key: kw.key, Value: mapped}, nil
	}

	mapped, err := m.converter.WriteValue(kw.value, nil)
	if err != nil {
		return bson.E{}, err
	}

	return bson.E{Key: kw.key, Value: mapped}, nil
}

// resolveField resolves a raw dotted path against the entity's metadata.
func (m *QueryMapper) resolveField(raw string, entity *Entity) (*Field, error) {
	field := &Field{raw: raw, entity: entity}
	if entity == nil {
		field.key = raw
		return field, nil
	}

	segments := strings.Split(raw, ".")
	current := entity
	pastAssocID := false
	out := make([]string, 0, len(segments))

	for i, segment := range segments {
		if isPositionalSegment(segment) {
			out = append(out, segment)
			continue
		}

		if pastAssocID {
			return nil, newMappingError(entity, raw, "cannot traverse beyond the association identifier")
		}

		if field.assoc != nil {
			// past an association boundary only the identifier is reachable
			if !isIDSegment(segment, field.assocTarget) {
				return nil, newMappingError(entity, raw,
					fmt.Sprintf("cannot traverse association %q beyond its identifier", field.assoc.Name))
			}

			// DBRefs keep the id under $id; pointer references store the
			// plain id under the association field itself
			if field.assoc.UseDBRef {
				out = append(out, "$id")
			}
			field.isID = true
			field.idTarget = field.assocTarget
			pastAssocID = true
			continue
		}

		if current == nil {
			return nil, newMappingError(entity, raw, fmt.Sprintf("no metadata to resolve %q against", segment))
		}

		prop := current.Property(segment)
		if prop == nil && isIDSegment(segment, current) {
			// naming convention bridging: a path spelled _id retries the
			// declared id property
			prop = current.IDProperty()
		}
		if prop == nil {
			return nil, newMappingError(entity, raw, fmt.Sprintf("unknown property %q", segment))
		}

		out = append(out, prop.FieldName)
		field.prop = prop

		switch {
		case prop.IsAssociation:
			field.assoc = prop
			field.assocTarget = m.mapping.EntityOfType(prop.Target)
		case prop.IsID:
			field.isID = true
			field.idTarget = current
		default:
			field.isID = false
			if i < len(segments)-1 {
				current = m.nestedEntityOf(prop)
			}
		}
	}

	field.key = strings.Join(out, ".")

	return field, nil
}

// nestedEntityOf returns the entity a plain property nests, or nil when the
// property holds simple or custom-converted values.
func (m *QueryMapper) nestedEntityOf(prop *Property) *Entity {
	if prop.Target == nil || prop.Target.Kind() != reflect.Struct {
		return nil
	}
	if m.conversions.IsSimpleType(prop.Target) || m.conversions.HasCustomWriteTarget(prop.Target) {
		return nil
	}

	return m.mapping.EntityOfType(prop.Target)
}

func isIDSegment(segment string, entity *Entity) bool {
	if segment == idKey || strings.EqualFold(segment, "id") {
		return true
	}
	if entity == nil || entity.IDProperty() == nil {
		return false
	}

	return strings.EqualFold(segment, entity.IDProperty().Name)
}

// getMappedValue applies the value-mapping decision tree, in priority
// order: per-property custom converter, identifier coercion, nested keyword
// documents, association conversion, plain conversion.
func (m *QueryMapper) getMappedValue(field *Field, value any) (any, error) {
	if field.prop != nil && field.prop.Converter != nil && !field.IsAssociationLeaf() {
		return m.applyPropertyConverter(field.prop.Converter, value)
	}

	if field.isID {
		return m.getMappedIDValue(field, value)
	}

	if field.IsAssociationLeaf() {
		return m.convertAssociation(field, value)
	}

	if doc, ok := asDocument(value); ok && allOperatorKeys(doc) {
		return m.mapKeywordDocument(field, doc)
	}

	var hint reflect.Type
	if field.prop != nil {
		hint = field.prop.Type
	}

	return m.converter.WriteValue(value, hint)
}

// mapKeywordDocument maps a nested operator document against the field it
// restricts.
func (m *QueryMapper) mapKeywordDocument(field *Field, doc bson.D) (bson.D, error) {
	result := make(bson.D, 0, len(doc))
	for _, entry := range doc {
		kw := keyword{key: entry.Key, value: entry.Value}

		if list, ok := asArray(kw.value); ok && kw.key != "$geometry" {
			mapped := make(bson.A, len(list))
			for i, item := range list {
				out, err := m.getMappedValue(field, item)
				if err != nil {
					return nil, err
				}
				mapped[i] = out
			}
			result = append(result, bson.E{Key: kw.key, Value: mapped})
			continue
		}

		out, err := m.getMappedValue(field, kw.value)
		if err != nil {
			return nil, err
		}
		result = append(result, bson.E{Key: kw.key, Value: out})
	}

	return result, nil
}

func (m *QueryMapper) applyPropertyConverter(conv ValueConverter, value any) (any, error) {
	if doc, ok := asDocument(value); ok && allOperatorKeys(doc) {
		result := make(bson.D, 0, len(doc))
		for _, entry := range doc {
			if list, isList := asArray(entry.Value); isList && (entry.Key == "$in" || entry.Key == "$nin") {
				mapped := make(bson.A, len(list))
				for i, item := range list {
					out, err := conv.Convert(item)
					if err != nil {
						return nil, err
					}
					mapped[i] = out
				}
				result = append(result, bson.E{Key: entry.Key, Value: mapped})
				continue
			}

			out, err := conv.Convert(entry.Value)
			if err != nil {
				return nil, err
			}
			result = append(result, bson.E{Key: entry.Key, Value: out})
		}

		return result, nil
	}

	if list, ok := asArray(value); ok {
		mapped := make(bson.A, len(list))
		for i, item := range list {
			out, err := conv.Convert(item)
			if err != nil {
				return nil, err
			}
			mapped[i] = out
		}

		return mapped, nil
	}

	return conv.Convert(value)
}

// getMappedIDValue coerces identifier values. $in/$nin and the equality
// operators convert each id individually; other operators keep their value
// mapped generically.
func (m *QueryMapper) getMappedIDValue(field *Field, value any) (any, error) {
	if doc, ok := asDocument(value); ok && allOperatorKeys(doc) {
		result := make(bson.D, 0, len(doc))
		for _, entry := range doc {
			switch entry.Key {
			case "$in", "$nin":
				list, isList := asArray(entry.Value)
				if !isList {
					return nil, fmt.Errorf("mondoc: %s on %s expects a list, got %T", entry.Key, field.raw, entry.Value)
				}
				mapped := make(bson.A, len(list))
				for i, item := range list {
					out, err := m.ConvertID(item, field.idTarget)
					if err != nil {
						return nil, err
					}
					mapped[i] = out
				}
				result = append(result, bson.E{Key: entry.Key, Value: mapped})

			case "$ne", "$eq", "$gt", "$gte", "$lt", "$lte":
				out, err := m.ConvertID(entry.Value, field.idTarget)
				if err != nil {
					return nil, err
				}
				result = append(result, bson.E{Key: entry.Key, Value: out})

			default:
				out, err := m.converter.WriteValue(entry.Value, nil)
				if err != nil {
					return nil, err
				}
				result = append(result, bson.E{Key: entry.Key, Value: out})
			}
		}

		return result, nil
	}

	return m.ConvertID(value, field.idTarget)
}

// ConvertID attempts conversion to the driver's native identifier type
// first, falling back to generic value conversion: ids may be arbitrary
// natively storable values, not only ObjectIDs.
func (m *QueryMapper) ConvertID(value any, entity *Entity) (any, error) {
	if value == nil {
		return nil, nil
	}

	if s, ok := value.(string); ok && primitive.IsValidObjectID(s) {
		if idTypeAcceptsObjectID(entity) {
			if oid, err := primitive.ObjectIDFromHex(s); err == nil {
				return oid, nil
			}
		}
	}

	return m.converter.WriteValue(value, nil)
}

// idTypeAcceptsObjectID reports whether the entity's id property can hold a
// native ObjectID. Without metadata the native type wins.
func idTypeAcceptsObjectID(entity *Entity) bool {
	if entity == nil || entity.IDProperty() == nil {
		return true
	}

	idType := entity.IDProperty().Type
	for idType.Kind() == reflect.Ptr {
		idType = idType.Elem()
	}

	return idType == reflect.TypeOf(primitive.ObjectID{}) || idType.Kind() == reflect.Interface
}

// convertAssociation turns association values into reference pointers.
// Values already in pointer form (DBRefs, raw documents) pass through
// unchanged, so mapping is idempotent. Iterable values convert element-wise.
func (m *QueryMapper) convertAssociation(field *Field, value any) (any, error) {
	if value == nil {
		return nil, nil
	}

	prop := field.assoc

	switch v := value.(type) {
	case DBRef:
		return v, nil
	case *DBRef:
		return *v, nil
	}

	if doc, ok := asDocument(value); ok {
		if allOperatorKeys(doc) {
			result := make(bson.D, 0, len(doc))
			for _, entry := range doc {
				if list, isList := asArray(entry.Value); isList {
					mapped := make(bson.A, len(list))
					for i, item := range list {
						out, err := m.convertAssociation(field, item)
						if err != nil {
							return nil, err
						}
						mapped[i] = out
					}
					result = append(result, bson.E{Key: entry.Key, Value: mapped})
					continue
				}

				out, err := m.convertAssociation(field, entry.Value)
				if err != nil {
					return nil, err
				}
				result = append(result, bson.E{Key: entry.Key, Value: out})
			}

			return result, nil
		}

		// already a pointer document
		return value, nil
	}

	if list, ok := asArray(value); ok {
		mapped := make(bson.A, len(list))
		for i, item := range list {
			out, err := m.convertAssociation(field, item)
			if err != nil {
				return nil, err
			}
			mapped[i] = out
		}

		return mapped, nil
	}

	if prop.UseDBRef {
		return m.converter.ToDBRef(value, prop)
	}

	return m.converter.ToDocumentPointer(value, prop)
}
