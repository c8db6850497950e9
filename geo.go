package mondoc

import (
	"strings"

	"github.com/paulmach/orb"
	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
)

// Circle is a center point with a radius, stored as {center, radius}.
type Circle struct {
	Center orb.Point
	Radius float64
}

// Sphere is the spherical variant of Circle ($centerSphere queries).
type Sphere struct {
	Center orb.Point
	Radius float64
}

// geoJSONDecoders dispatches on the GeoJSON "type" discriminator. Keys are
// lower-case; lookups go through strings.ToLower so any capitalization of
// the stored discriminator is accepted. Unknown discriminators fail fast.
var geoJSONDecoders = map[string]func(coordinates any) (orb.Geometry, error){
	"point":           decodeGeoJSONPoint,
	"multipoint":      decodeGeoJSONMultiPoint,
	"linestring":      decodeGeoJSONLineString,
	"multilinestring": decodeGeoJSONMultiLineString,
	"polygon":         decodeGeoJSONPolygon,
	"multipolygon":    decodeGeoJSONMultiPolygon,
}

// GeoJSONDocument encodes an orb geometry as a GeoJSON document.
func GeoJSONDocument(g orb.Geometry) (bson.D, error) {
	switch geom := g.(type) {
	case orb.Point:
		return geoJSONDoc("Point", pointCoords(geom)), nil
	case orb.MultiPoint:
		return geoJSONDoc("MultiPoint", pointListCoords(geom)), nil
	case orb.LineString:
		return geoJSONDoc("LineString", pointListCoords(orb.MultiPoint(geom))), nil
	case orb.MultiLineString:
		lines := make(bson.A, len(geom))
		for i, line := range geom {
			lines[i] = pointListCoords(orb.MultiPoint(line))
		}
		return geoJSONDoc("MultiLineString", lines), nil
	case orb.Ring:
		return GeoJSONDocument(orb.Polygon{geom})
	case orb.Polygon:
		return geoJSONDoc("Polygon", polygonCoords(geom)), nil
	case orb.MultiPolygon:
		polys := make(bson.A, len(geom))
		for i, poly := range geom {
			polys[i] = polygonCoords(poly)
		}
		return geoJSONDoc("MultiPolygon", polys), nil
	case orb.Collection:
		geometries := make(bson.A, len(geom))
		for i, member := range geom {
			doc, err := GeoJSONDocument(member)
			if err != nil {
				return nil, err
			}
			geometries[i] = doc
		}
		return bson.D{
			{Key: "type", Value: "GeometryCollection"},
			{Key: "geometries", Value: geometries},
		}, nil
	default:
		return nil, errors.Errorf("mondoc: no GeoJSON encoding for %T", g)
	}
}

// GeometryFromGeoJSON decodes a GeoJSON document back into an orb geometry,
// dispatching on the (case-insensitive) type discriminator.
func GeometryFromGeoJSON(doc bson.D) (orb.Geometry, error) {
	rawType, ok := docLookup(doc, "type")
	if !ok {
		return nil, errors.New("mondoc: GeoJSON document has no type")
	}

	typeName, ok := rawType.(string)
	if !ok {
		return nil, errors.Errorf("mondoc: GeoJSON type must be a string, got %T", rawType)
	}

	if strings.EqualFold(typeName, "GeometryCollection") {
		return decodeGeoJSONCollection(doc)
	}

	decode, ok := geoJSONDecoders[strings.ToLower(typeName)]
	if !ok {
		return nil, errors.Errorf("mondoc: unknown GeoJSON type %q", typeName)
	}

	coordinates, ok := docLookup(doc, "coordinates")
	if !ok {
		return nil, errors.Errorf("mondoc: GeoJSON %s has no coordinates", typeName)
	}

	return decode(coordinates)
}

func geoJSONDoc(typeName string, coordinates any) bson.D {
	return bson.D{
		{Key: "type", Value: typeName},
		{Key: "coordinates", Value: coordinates},
	}
}

func pointCoords(p orb.Point) bson.A {
	return bson.A{p[0], p[1]}
}

func pointListCoords(points orb.MultiPoint) bson.A {
	out := make(bson.A, len(points))
	for i, p := range points {
		out[i] = pointCoords(p)
	}

	return out
}

func polygonCoords(poly orb.Polygon) bson.A {
	rings := make(bson.A, len(poly))
	for i, ring := range poly {
		rings[i] = pointListCoords(orb.MultiPoint(ring))
	}

	return rings
}

func decodeGeoJSONPoint(coordinates any) (orb.Geometry, error) {
	return decodeCoordPair(coordinates)
}

func decodeGeoJSONMultiPoint(coordinates any) (orb.Geometry, error) {
	points, err := decodeCoordList(coordinates)
	if err != nil {
		return nil, err
	}

	return orb.MultiPoint(points), nil
}

func decodeGeoJSONLineString(coordinates any) (orb.Geometry, error) {
	points, err := decodeCoordList(coordinates)
	if err != nil {
		return nil, err
	}

	return orb.LineString(points), nil
}

func decodeGeoJSONMultiLineString(coordinates any) (orb.Geometry, error) {
	list, ok := asArray(coordinates)
	if !ok {
		return nil, errors.Errorf("mondoc: MultiLineString coordinates must be a list, got %T", coordinates)
	}

	out := make(orb.MultiLineString, len(list))
	for i, raw := range list {
		points, err := decodeCoordList(raw)
		if err != nil {
			return nil, err
		}
		out[i] = orb.LineString(points)
	}

	return out, nil
}

func decodeGeoJSONPolygon(coordinates any) (orb.Geometry, error) {
	list, ok := asArray(coordinates)
	if !ok {
		return nil, errors.Errorf("mondoc: Polygon coordinates must be a list, got %T", coordinates)
	}

	out := make(orb.Polygon, len(list))
	for i, raw := range list {
		points, err := decodeCoordList(raw)
		if err != nil {
			return nil, err
		}
		out[i] = orb.Ring(points)
	}

	return out, nil
}

func decodeGeoJSONMultiPolygon(coordinates any) (orb.Geometry, error) {
	list, ok := asArray(coordinates)
	if !ok {
		return nil, errors.Errorf("mondoc: MultiPolygon coordinates must be a list, got %T", coordinates)
	}

	out := make(orb.MultiPolygon, len(list))
	for i, raw := range list {
		poly, err := decodeGeoJSONPolygon(raw)
		if err != nil {
			return nil, err
		}
		out[i] = poly.(orb.Polygon)
	}

	return out, nil
}

func decodeGeoJSONCollection(doc bson.D) (orb.Geometry, error) {
	raw, ok := docLookup(doc, "geometries")
	if !ok {
		return nil, errors.New("mondoc: GeometryCollection has no geometries")
	}

	list, ok := asArray(raw)
	if !ok {
		return nil, errors.Errorf("mondoc: geometries must be a list, got %T", raw)
	}

	out := make(orb.Collection, len(list))
	for i, member := range list {
		memberDoc, ok := asDocument(member)
		if !ok {
			return nil, errors.Errorf("mondoc: geometry member must be a document, got %T", member)
		}
		g, err := GeometryFromGeoJSON(memberDoc)
		if err != nil {
			return nil, err
		}
		out[i] = g
	}

	return out, nil
}

func decodeCoordPair(raw any) (orb.Point, error) {
	list, ok := asArray(raw)
	if !ok || len(list) < 2 {
		return orb.Point{}, errors.Errorf("mondoc: coordinate pair expected, got %v", raw)
	}

	x, err := toFloat64(list[0])
	if err != nil {
		return orb.Point{}, err
	}
	y, err := toFloat64(list[1])
	if err != nil {
		return orb.Point{}, err
	}

	return orb.Point{x, y}, nil
}

func decodeCoordList(raw any) ([]orb.Point, error) {
	list, ok := asArray(raw)
	if !ok {
		return nil, errors.Errorf("mondoc: coordinate list expected, got %T", raw)
	}

	out := make([]orb.Point, len(list))
	for i, item := range list {
		p, err := decodeCoordPair(item)
		if err != nil {
			return nil, err
		}
		out[i] = p
	}

	return out, nil
}

func toFloat64(v any) (float64, error) {
	switch n := v.(type) {
	case float64:
		return n, nil
	case float32:
		return float64(n), nil
	case int:
		return float64(n), nil
	case int32:
		return float64(n), nil
	case int64:
		return float64(n), nil
	default:
		return 0, errors.Errorf("mondoc: expected a number, got %T", v)
	}
}
