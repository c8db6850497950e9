package mondoc

import (
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type qmAddress struct {
	City string `bson:"city"`
	Zip  string `bson:"zip"`
}

type qmCustomer struct {
	ID   int64  `bson:"_id"`
	Name string `bson:"n"`
}

type qmOrder struct {
	ID       primitive.ObjectID `bson:"_id"`
	Name     string             `bson:"n"`
	Shipping qmAddress          `bson:"ship"`
	Customer qmCustomer         `bson:"cust" mondoc:"dbref"`
	Seller   qmCustomer         `bson:"seller" mondoc:"ref"`
	Items    []string           `bson:"items"`
}

func newTestMapper(t *testing.T) (*QueryMapper, *Entity) {
	t.Helper()

	mapping := NewMappingContext()
	mapper := NewQueryMapper(NewConverter(mapping))

	entity := mapping.EntityOfType(reflect.TypeOf(qmOrder{}))
	require.NotNil(t, entity)

	return mapper, entity
}

func TestGetMappedObjectRenamesFields(t *testing.T) {
	mapper, entity := newTestMapper(t)

	mapped, err := mapper.GetMappedObject(bson.D{{Key: "name", Value: "Alice"}}, entity)
	require.NoError(t, err)

	assert.Equal(t, bson.D{{Key: "n", Value: "Alice"}}, mapped)
}

func TestGetMappedObjectPreservesKeyOrder(t *testing.T) {
	mapper, entity := newTestMapper(t)

	mapped, err := mapper.GetMappedObject(bson.D{
		{Key: "name", Value: "Alice"},
		{Key: "shipping.city", Value: "Berlin"},
		{Key: "shipping.zip", Value: "10117"},
	}, entity)
	require.NoError(t, err)

	assert.Equal(t, bson.D{
		{Key: "n", Value: "Alice"},
		{Key: "ship.city", Value: "Berlin"},
		{Key: "ship.zip", Value: "10117"},
	}, mapped)
}

func TestGetMappedObjectDistributesOrBranches(t *testing.T) {
	mapper, entity := newTestMapper(t)

	query := bson.D{{Key: "$or", Value: bson.A{
		bson.D{{Key: "name", Value: "Alice"}},
		bson.D{{Key: "shipping.city", Value: "Berlin"}},
	}}}

	mapped, err := mapper.GetMappedObject(query, entity)
	require.NoError(t, err)

	assert.Equal(t, bson.D{{Key: "$or", Value: bson.A{
		bson.D{{Key: "n", Value: "Alice"}},
		bson.D{{Key: "ship.city", Value: "Berlin"}},
	}}}, mapped)
}

func TestGetMappedObjectCoercesObjectIDs(t *testing.T) {
	mapper, entity := newTestMapper(t)

	hex := "507f1f77bcf86cd799439011"
	want, err := primitive.ObjectIDFromHex(hex)
	require.NoError(t, err)

	mapped, err := mapper.GetMappedObject(bson.D{{Key: "id", Value: hex}}, entity)
	require.NoError(t, err)

	assert.Equal(t, bson.D{{Key: "_id", Value: want}}, mapped)
}

func TestGetMappedObjectCoercesIDList(t *testing.T) {
	mapper, entity := newTestMapper(t)

	hex := "507f1f77bcf86cd799439011"
	want, err := primitive.ObjectIDFromHex(hex)
	require.NoError(t, err)

	query := bson.D{{Key: "_id", Value: bson.D{{Key: "$in", Value: bson.A{hex}}}}}
	mapped, err := mapper.GetMappedObject(query, entity)
	require.NoError(t, err)

	assert.Equal(t, bson.D{{Key: "_id", Value: bson.D{{Key: "$in", Value: bson.A{want}}}}}, mapped)
}

func TestGetMappedObjectKeepsDeclaredIDType(t *testing.T) {
	mapping := NewMappingContext()
	mapper := NewQueryMapper(NewConverter(mapping))
	entity := mapping.EntityOfType(reflect.TypeOf(qmCustomer{}))
	require.NotNil(t, entity)

	// a valid hex string must stay a string when the id is declared int64
	hex := "507f1f77bcf86cd799439011"
	mapped, err := mapper.GetMappedObject(bson.D{{Key: "id", Value: hex}}, entity)
	require.NoError(t, err)

	assert.Equal(t, bson.D{{Key: "_id", Value: hex}}, mapped)
}

func TestGetMappedObjectConvertsAssociationToDBRef(t *testing.T) {
	mapper, entity := newTestMapper(t)

	mapped, err := mapper.GetMappedObject(bson.D{{Key: "customer", Value: int64(42)}}, entity)
	require.NoError(t, err)

	require.Len(t, mapped, 1)
	assert.Equal(t, "cust", mapped[0].Key)
	assert.Equal(t, DBRef{Collection: "qm_customer", ID: int64(42)}, mapped[0].Value)
}

func TestGetMappedObjectConvertsAssociationInListElementWise(t *testing.T) {
	mapper, entity := newTestMapper(t)

	query := bson.D{{Key: "customer", Value: bson.D{{Key: "$in", Value: bson.A{int64(1), int64(2)}}}}}
	mapped, err := mapper.GetMappedObject(query, entity)
	require.NoError(t, err)

	assert.Equal(t, bson.D{{Key: "cust", Value: bson.D{{Key: "$in", Value: bson.A{
		DBRef{Collection: "qm_customer", ID: int64(1)},
		DBRef{Collection: "qm_customer", ID: int64(2)},
	}}}}}, mapped)
}

func TestGetMappedObjectIsIdempotentForMappedReferences(t *testing.T) {
	mapper, entity := newTestMapper(t)

	ref := DBRef{Collection: "qm_customer", ID: int64(7)}
	mapped, err := mapper.GetMappedObject(bson.D{{Key: "customer", Value: ref}}, entity)
	require.NoError(t, err)

	assert.Equal(t, bson.D{{Key: "cust", Value: ref}}, mapped)
}

func TestGetMappedObjectAddressesDBRefID(t *testing.T) {
	mapper, entity := newTestMapper(t)

	mapped, err := mapper.GetMappedObject(bson.D{{Key: "customer.id", Value: int64(7)}}, entity)
	require.NoError(t, err)

	assert.Equal(t, bson.D{{Key: "cust.$id", Value: int64(7)}}, mapped)
}

func TestGetMappedObjectAddressesPointerReferenceID(t *testing.T) {
	mapper, entity := newTestMapper(t)

	// pointer references store the plain id under the field itself
	mapped, err := mapper.GetMappedObject(bson.D{{Key: "seller.id", Value: int64(9)}}, entity)
	require.NoError(t, err)

	assert.Equal(t, bson.D{{Key: "seller", Value: int64(9)}}, mapped)
}

func TestGetMappedObjectRejectsTraversalPastAssociation(t *testing.T) {
	mapper, entity := newTestMapper(t)

	_, err := mapper.GetMappedObject(bson.D{{Key: "customer.name", Value: "Alice"}}, entity)
	require.Error(t, err)

	var mapErr *MappingError
	require.ErrorAs(t, err, &mapErr)
	assert.Equal(t, "customer.name", mapErr.Path)
}

func TestGetMappedObjectKeepsPositionalSegments(t *testing.T) {
	mapper, entity := newTestMapper(t)

	for _, raw := range []string{"items.$", "items.0", "items.$[]", "items.$[elem]"} {
		mapped, err := mapper.GetMappedObject(bson.D{{Key: raw, Value: "x"}}, entity)
		require.NoError(t, err, raw)
		assert.Equal(t, raw, mapped[0].Key)
	}
}

func TestGetMappedObjectPassesRawCriteriaThrough(t *testing.T) {
	mapper, entity := newTestMapper(t)

	// unresolvable keys with document-shaped values are user-supplied raw
	// driver syntax and survive untouched
	raw := bson.D{{Key: "stock.qty", Value: bson.D{{Key: "$exists", Value: true}}}}
	mapped, err := mapper.GetMappedObject(raw, entity)
	require.NoError(t, err)

	assert.Equal(t, raw, mapped)
}

func TestGetMappedObjectRejectsUnknownScalarField(t *testing.T) {
	mapper, entity := newTestMapper(t)

	_, err := mapper.GetMappedObject(bson.D{{Key: "bogus", Value: 1}}, entity)
	require.Error(t, err)

	var mapErr *MappingError
	assert.ErrorAs(t, err, &mapErr)
}

func TestGetMappedObjectKeepsTypeDiscriminator(t *testing.T) {
	mapper, entity := newTestMapper(t)

	mapped, err := mapper.GetMappedObject(bson.D{
		{Key: "_t", Value: "order"},
		{Key: "name", Value: "Alice"},
	}, entity)
	require.NoError(t, err)

	assert.Equal(t, bson.D{
		{Key: "_t", Value: "order"},
		{Key: "n", Value: "Alice"},
	}, mapped)
}

func TestGetMappedObjectMapsUpdateOperators(t *testing.T) {
	mapper, entity := newTestMapper(t)

	update := bson.D{
		{Key: "$set", Value: bson.D{
			{Key: "name", Value: "Bob"},
			{Key: "shipping.city", Value: "Hamburg"},
		}},
		{Key: "$push", Value: bson.D{{Key: "items", Value: "pen"}}},
	}

	mapped, err := mapper.GetMappedObject(update, entity)
	require.NoError(t, err)

	assert.Equal(t, bson.D{
		{Key: "$set", Value: bson.D{
			{Key: "n", Value: "Bob"},
			{Key: "ship.city", Value: "Hamburg"},
		}},
		{Key: "$push", Value: bson.D{{Key: "items", Value: "pen"}}},
	}, mapped)
}

func TestGetMappedObjectMapsNestedKeywords(t *testing.T) {
	mapper, entity := newTestMapper(t)

	query := bson.D{{Key: "name", Value: bson.D{{Key: "$ne", Value: "Bob"}}}}
	mapped, err := mapper.GetMappedObject(query, entity)
	require.NoError(t, err)

	assert.Equal(t, bson.D{{Key: "n", Value: bson.D{{Key: "$ne", Value: "Bob"}}}}, mapped)
}

func TestGetMappedObjectWithoutEntityKeepsKeys(t *testing.T) {
	mapper, _ := newTestMapper(t)

	query := bson.D{{Key: "whatever", Value: 1}}
	mapped, err := mapper.GetMappedObject(query, nil)
	require.NoError(t, err)

	assert.Equal(t, query, mapped)
}

func TestConvertIDWithoutMetadataPrefersObjectID(t *testing.T) {
	mapper, _ := newTestMapper(t)

	hex := "507f1f77bcf86cd799439011"
	want, err := primitive.ObjectIDFromHex(hex)
	require.NoError(t, err)

	got, err := mapper.ConvertID(hex, nil)
	require.NoError(t, err)
	assert.Equal(t, want, got)

	// malformed hex stays a plain string
	got, err = mapper.ConvertID("not-an-oid", nil)
	require.NoError(t, err)
	assert.Equal(t, "not-an-oid", got)
}

func TestGetMappedObjectAppliesPropertyConverter(t *testing.T) {
	mapping := NewMappingContext()
	doubler := ValueConverterFunc(func(v any) (any, error) {
		return v.(int) * 2, nil
	})
	_, err := mapping.Register(qmOrder{}, WithPropertyConverter("Name", doubler))
	require.NoError(t, err)

	mapper := NewQueryMapper(NewConverter(mapping))
	entity := mapping.EntityOfType(reflect.TypeOf(qmOrder{}))

	mapped, err := mapper.GetMappedObject(bson.D{{Key: "name", Value: 21}}, entity)
	require.NoError(t, err)
	assert.Equal(t, bson.D{{Key: "n", Value: 42}}, mapped)

	// $in applies the converter per element
	mapped, err = mapper.GetMappedObject(bson.D{
		{Key: "name", Value: bson.D{{Key: "$in", Value: bson.A{1, 2}}}},
	}, entity)
	require.NoError(t, err)
	assert.Equal(t, bson.D{{Key: "n", Value: bson.D{{Key: "$in", Value: bson.A{2, 4}}}}}, mapped)
}

func TestGetMappedSort(t *testing.T) {
	mapper, entity := newTestMapper(t)

	sort := bson.D{{Key: "name", Value: -1}, {Key: "unmapped", Value: 1}}
	assert.Equal(t, bson.D{{Key: "n", Value: -1}, {Key: "unmapped", Value: 1}},
		mapper.GetMappedSort(sort, entity))
}

func TestGetMappedFieldsKeepsMetaProjections(t *testing.T) {
	mapper, entity := newTestMapper(t)

	fields := bson.D{
		{Key: "name", Value: 1},
		{Key: "score", Value: bson.D{{Key: "$meta", Value: "textScore"}}},
	}

	assert.Equal(t, bson.D{
		{Key: "n", Value: 1},
		{Key: "score", Value: bson.D{{Key: "$meta", Value: "textScore"}}},
	}, mapper.GetMappedFields(fields, entity))
}
