package mondoc

import (
	"reflect"

	"go.mongodb.org/mongo-driver/bson"
)

// JSONSchemaMapper rewrites $jsonSchema documents so that property names in
// `required` lists and `properties` documents use storage field names. All
// other schema keywords pass through untouched.
type JSONSchemaMapper struct {
	mapping *MappingContext
}

func NewJSONSchemaMapper(mapping *MappingContext) *JSONSchemaMapper {
	return &JSONSchemaMapper{mapping: mapping}
}

// MapSchema maps one schema document against the given entity. A nil entity
// returns the schema unchanged.
func (m *JSONSchemaMapper) MapSchema(schema bson.D, entity *Entity) (bson.D, error) {
	if entity == nil {
		return schema, nil
	}

	result := make(bson.D, 0, len(schema))
	for _, entry := range schema {
		switch entry.Key {
		case "required":
			mapped, err := m.mapRequired(entry.Value, entity)
			if err != nil {
				return nil, err
			}
			result = append(result, bson.E{Key: entry.Key, Value: mapped})

		case "properties":
			props, ok := asDocument(entry.Value)
			if !ok {
				result = append(result, entry)
				continue
			}
			mapped, err := m.mapProperties(props, entity)
			if err != nil {
				return nil, err
			}
			result = append(result, bson.E{Key: entry.Key, Value: mapped})

		default:
			result = append(result, entry)
		}
	}

	return result, nil
}

func (m *JSONSchemaMapper) mapRequired(value any, entity *Entity) (any, error) {
	names, ok := asArray(value)
	if !ok {
		return value, nil
	}

	mapped := make(bson.A, len(names))
	for i, name := range names {
		s, isString := name.(string)
		if !isString {
			mapped[i] = name
			continue
		}
		mapped[i] = m.fieldNameOf(s, entity)
	}

	return mapped, nil
}

func (m *JSONSchemaMapper) mapProperties(props bson.D, entity *Entity) (bson.D, error) {
	result := make(bson.D, 0, len(props))
	for _, entry := range props {
		key := m.fieldNameOf(entry.Key, entity)

		nested, ok := asDocument(entry.Value)
		if !ok {
			result = append(result, bson.E{Key: key, Value: entry.Value})
			continue
		}

		mapped, err := m.MapSchema(nested, m.nestedEntity(entry.Key, entity))
		if err != nil {
			return nil, err
		}
		result = append(result, bson.E{Key: key, Value: mapped})
	}

	return result, nil
}

func (m *JSONSchemaMapper) fieldNameOf(name string, entity *Entity) string {
	if prop := entity.Property(name); prop != nil {
		return prop.FieldName
	}
	if name == "id" && entity.IDProperty() != nil {
		return entity.IDProperty().FieldName
	}

	return name
}

// nestedEntity returns the entity backing an object-typed schema property,
// so nested `properties` documents map against the right metadata.
func (m *JSONSchemaMapper) nestedEntity(name string, entity *Entity) *Entity {
	prop := entity.Property(name)
	if prop == nil || prop.Target == nil || prop.Target.Kind() != reflect.Struct {
		return nil
	}

	return m.mapping.EntityOfType(prop.Target)
}
