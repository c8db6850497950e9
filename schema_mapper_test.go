package mondoc

import (
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
)

func newSchemaFixture(t *testing.T) (*JSONSchemaMapper, *Entity) {
	t.Helper()

	mapping := NewMappingContext()
	entity := mapping.EntityOfType(reflect.TypeOf(exPerson{}))
	require.NotNil(t, entity)

	return NewJSONSchemaMapper(mapping), entity
}

func TestMapSchemaRenamesRequiredAndProperties(t *testing.T) {
	mapper, entity := newSchemaFixture(t)

	schema := bson.D{
		{Key: "bsonType", Value: "object"},
		{Key: "required", Value: bson.A{"first", "age"}},
		{Key: "properties", Value: bson.D{
			{Key: "first", Value: bson.D{{Key: "bsonType", Value: "string"}}},
			{Key: "age", Value: bson.D{{Key: "bsonType", Value: "int"}}},
		}},
	}

	mapped, err := mapper.MapSchema(schema, entity)
	require.NoError(t, err)

	assert.Equal(t, bson.D{
		{Key: "bsonType", Value: "object"},
		{Key: "required", Value: bson.A{"fn", "age"}},
		{Key: "properties", Value: bson.D{
			{Key: "fn", Value: bson.D{{Key: "bsonType", Value: "string"}}},
			{Key: "age", Value: bson.D{{Key: "bsonType", Value: "int"}}},
		}},
	}, mapped)
}

func TestMapSchemaRecursesIntoObjectProperties(t *testing.T) {
	mapper, entity := newSchemaFixture(t)

	schema := bson.D{
		{Key: "properties", Value: bson.D{
			{Key: "addr", Value: bson.D{
				{Key: "bsonType", Value: "object"},
				{Key: "required", Value: bson.A{"city"}},
				{Key: "properties", Value: bson.D{
					{Key: "city", Value: bson.D{{Key: "bsonType", Value: "string"}}},
				}},
			}},
		}},
	}

	mapped, err := mapper.MapSchema(schema, entity)
	require.NoError(t, err)

	props, _ := docLookup(mapped, "properties")
	addr, ok := docLookup(props.(bson.D), "ad")
	require.True(t, ok)

	required, _ := docLookup(addr.(bson.D), "required")
	assert.Equal(t, bson.A{"c"}, required)

	nested, _ := docLookup(addr.(bson.D), "properties")
	city, ok := docLookup(nested.(bson.D), "c")
	require.True(t, ok)
	assert.Equal(t, bson.D{{Key: "bsonType", Value: "string"}}, city)
}

func TestMapSchemaWithoutEntityPassesThrough(t *testing.T) {
	mapper, _ := newSchemaFixture(t)

	schema := bson.D{{Key: "required", Value: bson.A{"whatever"}}}
	mapped, err := mapper.MapSchema(schema, nil)
	require.NoError(t, err)
	assert.Equal(t, schema, mapped)
}

func TestMapSchemaMapsIDAlias(t *testing.T) {
	mapper, entity := newSchemaFixture(t)

	schema := bson.D{{Key: "required", Value: bson.A{"id"}}}
	mapped, err := mapper.MapSchema(schema, entity)
	require.NoError(t, err)

	assert.Equal(t, bson.D{{Key: "required", Value: bson.A{"_id"}}}, mapped)
}

func TestQueryMapperMapsJSONSchemaKeyword(t *testing.T) {
	mapping := NewMappingContext()
	mapper := NewQueryMapper(NewConverter(mapping))
	entity := mapping.EntityOfType(reflect.TypeOf(exPerson{}))
	require.NotNil(t, entity)

	query := bson.D{{Key: "$jsonSchema", Value: bson.D{
		{Key: "required", Value: bson.A{"first"}},
	}}}

	mapped, err := mapper.GetMappedObject(query, entity)
	require.NoError(t, err)

	assert.Equal(t, bson.D{{Key: "$jsonSchema", Value: bson.D{
		{Key: "required", Value: bson.A{"fn"}},
	}}}, mapped)
}
