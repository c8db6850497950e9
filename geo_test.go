package mondoc

import (
	"reflect"
	"testing"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
)

func TestGeoJSONRoundTrips(t *testing.T) {
	geometries := []orb.Geometry{
		orb.Point{13.4, 52.5},
		orb.MultiPoint{{1, 2}, {3, 4}},
		orb.LineString{{0, 0}, {1, 1}, {2, 0}},
		orb.MultiLineString{{{0, 0}, {1, 1}}, {{2, 2}, {3, 3}}},
		orb.Polygon{{{0, 0}, {4, 0}, {4, 4}, {0, 4}, {0, 0}}},
		orb.MultiPolygon{{{{0, 0}, {1, 0}, {1, 1}, {0, 0}}}},
		orb.Collection{orb.Point{1, 2}, orb.LineString{{0, 0}, {1, 1}}},
	}

	for _, g := range geometries {
		doc, err := GeoJSONDocument(g)
		require.NoError(t, err, "%T", g)

		back, err := GeometryFromGeoJSON(doc)
		require.NoError(t, err, "%T", g)
		assert.Equal(t, g, back, "%T", g)
	}
}

func TestGeoJSONTypeIsCaseInsensitive(t *testing.T) {
	doc := bson.D{
		{Key: "type", Value: "point"},
		{Key: "coordinates", Value: bson.A{13.4, 52.5}},
	}

	g, err := GeometryFromGeoJSON(doc)
	require.NoError(t, err)
	assert.Equal(t, orb.Point{13.4, 52.5}, g)
}

func TestGeoJSONUnknownTypeFails(t *testing.T) {
	doc := bson.D{
		{Key: "type", Value: "Hyperbola"},
		{Key: "coordinates", Value: bson.A{}},
	}

	_, err := GeometryFromGeoJSON(doc)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Hyperbola")
}

func TestGeoJSONRingEncodesAsPolygon(t *testing.T) {
	ring := orb.Ring{{0, 0}, {1, 0}, {1, 1}, {0, 0}}

	doc, err := GeoJSONDocument(ring)
	require.NoError(t, err)

	typeName, _ := docLookup(doc, "type")
	assert.Equal(t, "Polygon", typeName)
}

func TestLegacyPointConverters(t *testing.T) {
	reg := NewConverterRegistry()

	conv, _, ok := reg.WriteConverter(reflect.TypeOf(orb.Point{}))
	require.True(t, ok)

	stored, err := conv.Convert(orb.Point{1.5, 2.5})
	require.NoError(t, err)
	assert.Equal(t, bson.D{{Key: "x", Value: 1.5}, {Key: "y", Value: 2.5}}, stored)

	back, ok := reg.ReadConverter(reflect.TypeOf(bson.D{}), reflect.TypeOf(orb.Point{}))
	require.True(t, ok)

	value, err := back.Convert(stored)
	require.NoError(t, err)
	assert.Equal(t, orb.Point{1.5, 2.5}, value)
}

func TestGeoJSONModeStoresPointsAsGeoJSON(t *testing.T) {
	reg := NewConverterRegistry(WithGeoJSON())

	conv, _, ok := reg.WriteConverter(reflect.TypeOf(orb.Point{}))
	require.True(t, ok)

	stored, err := conv.Convert(orb.Point{13.4, 52.5})
	require.NoError(t, err)

	doc, isDoc := stored.(bson.D)
	require.True(t, isDoc)
	typeName, _ := docLookup(doc, "type")
	assert.Equal(t, "Point", typeName)
}

func TestGeoJSONSingleRingPolygonReadsIntoRing(t *testing.T) {
	reg := NewConverterRegistry(WithGeoJSON())

	ring := orb.Ring{{0, 0}, {1, 0}, {1, 1}, {0, 0}}
	doc, err := GeoJSONDocument(ring)
	require.NoError(t, err)

	back, ok := reg.ReadConverter(reflect.TypeOf(bson.D{}), reflect.TypeOf(orb.Ring{}))
	require.True(t, ok)

	value, err := back.Convert(doc)
	require.NoError(t, err)
	assert.Equal(t, ring, value)
}

func TestCircleConverterRequiresCenterAndRadius(t *testing.T) {
	reg := NewConverterRegistry()

	back, ok := reg.ReadConverter(reflect.TypeOf(bson.D{}), reflect.TypeOf(Circle{}))
	require.True(t, ok)

	_, err := back.Convert(bson.D{{Key: "center", Value: bson.A{1.0, 2.0}}})
	require.Error(t, err)

	_, err = back.Convert(bson.D{{Key: "radius", Value: 5.0}})
	require.Error(t, err)

	value, err := back.Convert(bson.D{
		{Key: "center", Value: bson.A{1.0, 2.0}},
		{Key: "radius", Value: 5.0},
	})
	require.NoError(t, err)
	assert.Equal(t, Circle{Center: orb.Point{1, 2}, Radius: 5}, value)
}

func TestSphereRoundTrip(t *testing.T) {
	reg := NewConverterRegistry()

	conv, _, ok := reg.WriteConverter(reflect.TypeOf(Sphere{}))
	require.True(t, ok)

	stored, err := conv.Convert(Sphere{Center: orb.Point{1, 2}, Radius: 3})
	require.NoError(t, err)

	back, ok := reg.ReadConverter(reflect.TypeOf(bson.D{}), reflect.TypeOf(Sphere{}))
	require.True(t, ok)

	value, err := back.Convert(stored)
	require.NoError(t, err)
	assert.Equal(t, Sphere{Center: orb.Point{1, 2}, Radius: 3}, value)
}

func TestBoundRoundTrip(t *testing.T) {
	reg := NewConverterRegistry()

	bound := orb.Bound{Min: orb.Point{0, 0}, Max: orb.Point{2, 2}}

	conv, _, ok := reg.WriteConverter(reflect.TypeOf(orb.Bound{}))
	require.True(t, ok)

	stored, err := conv.Convert(bound)
	require.NoError(t, err)
	assert.Equal(t, bson.A{bson.A{0.0, 0.0}, bson.A{2.0, 2.0}}, stored)

	back, ok := reg.ReadConverter(reflect.TypeOf(bson.A{}), reflect.TypeOf(orb.Bound{}))
	require.True(t, ok)

	value, err := back.Convert(stored)
	require.NoError(t, err)
	assert.Equal(t, bound, value)
}
