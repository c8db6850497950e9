package mondoc

import (
	"reflect"

	"github.com/paulmach/orb"
	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
)

// geoConverterRegistrations builds the geo part of the default catalog.
// Legacy mode stores points as {x, y} documents and polygons as point
// lists; GeoJSON mode stores every shape as a {type, coordinates} document.
// Circle, Sphere and Box keep their legacy shape in both modes since GeoJSON
// has no equivalent.
func geoConverterRegistrations(geoJSON bool) []ConverterRegistration {
	docType := reflect.TypeOf(bson.D{})
	arrType := reflect.TypeOf(bson.A{})

	regs := []ConverterRegistration{
		{Source: reflect.TypeOf(Circle{}), Target: docType, Converter: ValueConverterFunc(circleToDocument)},
		{Source: docType, Target: reflect.TypeOf(Circle{}), Converter: ValueConverterFunc(documentToCircle)},
		{Source: reflect.TypeOf(Sphere{}), Target: docType, Converter: ValueConverterFunc(sphereToDocument)},
		{Source: docType, Target: reflect.TypeOf(Sphere{}), Converter: ValueConverterFunc(documentToSphere)},
		{Source: reflect.TypeOf(orb.Bound{}), Target: arrType, Converter: ValueConverterFunc(boundToArray)},
		{Source: arrType, Target: reflect.TypeOf(orb.Bound{}), Converter: ValueConverterFunc(arrayToBound)},
	}

	if !geoJSON {
		return append(regs,
			ConverterRegistration{Source: reflect.TypeOf(orb.Point{}), Target: docType, Converter: ValueConverterFunc(pointToDocument)},
			ConverterRegistration{Source: docType, Target: reflect.TypeOf(orb.Point{}), Converter: ValueConverterFunc(documentToPoint)},
			ConverterRegistration{Source: reflect.TypeOf(orb.Ring{}), Target: arrType, Converter: ValueConverterFunc(ringToArray)},
			ConverterRegistration{Source: arrType, Target: reflect.TypeOf(orb.Ring{}), Converter: ValueConverterFunc(arrayToRing)},
		)
	}

	geoJSONTypes := []reflect.Type{
		reflect.TypeOf(orb.Point{}),
		reflect.TypeOf(orb.MultiPoint{}),
		reflect.TypeOf(orb.LineString{}),
		reflect.TypeOf(orb.MultiLineString{}),
		reflect.TypeOf(orb.Ring{}),
		reflect.TypeOf(orb.Polygon{}),
		reflect.TypeOf(orb.MultiPolygon{}),
		reflect.TypeOf(orb.Collection{}),
	}
	for _, t := range geoJSONTypes {
		target := t
		regs = append(regs,
			ConverterRegistration{Source: t, Target: docType, Converter: ValueConverterFunc(geometryToGeoJSON)},
			ConverterRegistration{Source: docType, Target: t, Converter: ValueConverterFunc(func(v any) (any, error) {
				return geoJSONToGeometry(v, target)
			})},
		)
	}

	return regs
}

func pointToDocument(v any) (any, error) {
	p, ok := v.(orb.Point)
	if !ok {
		return nil, &ConversionError{Value: v, Target: "bson.D", Reason: "not a Point"}
	}

	return bson.D{{Key: "x", Value: p[0]}, {Key: "y", Value: p[1]}}, nil
}

func documentToPoint(v any) (any, error) {
	if list, ok := asArray(v); ok {
		return decodeCoordPair(list)
	}

	doc, ok := asDocument(v)
	if !ok {
		return nil, &ConversionError{Value: v, Target: "orb.Point", Reason: "not a document or pair"}
	}

	rawX, okX := docLookup(doc, "x")
	rawY, okY := docLookup(doc, "y")
	if !okX || !okY {
		return nil, &ConversionError{Value: v, Target: "orb.Point", Reason: "missing x or y"}
	}

	x, err := toFloat64(rawX)
	if err != nil {
		return nil, err
	}
	y, err := toFloat64(rawY)
	if err != nil {
		return nil, err
	}

	return orb.Point{x, y}, nil
}

func circleToDocument(v any) (any, error) {
	c, ok := v.(Circle)
	if !ok {
		return nil, &ConversionError{Value: v, Target: "bson.D", Reason: "not a Circle"}
	}

	return bson.D{
		{Key: "center", Value: pointCoords(c.Center)},
		{Key: "radius", Value: c.Radius},
	}, nil
}

func documentToCircle(v any) (any, error) {
	center, radius, err := centerAndRadius(v, "Circle")
	if err != nil {
		return nil, err
	}

	return Circle{Center: center, Radius: radius}, nil
}

func sphereToDocument(v any) (any, error) {
	s, ok := v.(Sphere)
	if !ok {
		return nil, &ConversionError{Value: v, Target: "bson.D", Reason: "not a Sphere"}
	}

	return bson.D{
		{Key: "center", Value: pointCoords(s.Center)},
		{Key: "radius", Value: s.Radius},
	}, nil
}

func documentToSphere(v any) (any, error) {
	center, radius, err := centerAndRadius(v, "Sphere")
	if err != nil {
		return nil, err
	}

	return Sphere{Center: center, Radius: radius}, nil
}

// centerAndRadius fails when either required sub-field is absent.
func centerAndRadius(v any, target string) (orb.Point, float64, error) {
	doc, ok := asDocument(v)
	if !ok {
		return orb.Point{}, 0, &ConversionError{Value: v, Target: target, Reason: "not a document"}
	}

	rawCenter, ok := docLookup(doc, "center")
	if !ok {
		return orb.Point{}, 0, &ConversionError{Value: v, Target: target, Reason: "missing center"}
	}
	rawRadius, ok := docLookup(doc, "radius")
	if !ok {
		return orb.Point{}, 0, &ConversionError{Value: v, Target: target, Reason: "missing radius"}
	}

	var center orb.Point
	var err error
	if list, isList := asArray(rawCenter); isList {
		center, err = decodeCoordPair(list)
	} else {
		var decoded any
		decoded, err = documentToPoint(rawCenter)
		if err == nil {
			center = decoded.(orb.Point)
		}
	}
	if err != nil {
		return orb.Point{}, 0, err
	}

	radius, err := toFloat64(rawRadius)
	if err != nil {
		return orb.Point{}, 0, err
	}

	return center, radius, nil
}

func boundToArray(v any) (any, error) {
	b, ok := v.(orb.Bound)
	if !ok {
		return nil, &ConversionError{Value: v, Target: "bson.A", Reason: "not a Bound"}
	}

	return bson.A{pointCoords(b.Min), pointCoords(b.Max)}, nil
}

func arrayToBound(v any) (any, error) {
	list, ok := asArray(v)
	if !ok || len(list) != 2 {
		return nil, &ConversionError{Value: v, Target: "orb.Bound", Reason: "expected two corner points"}
	}

	min, err := decodeCoordPair(list[0])
	if err != nil {
		return nil, err
	}
	max, err := decodeCoordPair(list[1])
	if err != nil {
		return nil, err
	}

	return orb.Bound{Min: min, Max: max}, nil
}

func ringToArray(v any) (any, error) {
	ring, ok := v.(orb.Ring)
	if !ok {
		return nil, &ConversionError{Value: v, Target: "bson.A", Reason: "not a Ring"}
	}

	return pointListCoords(orb.MultiPoint(ring)), nil
}

func arrayToRing(v any) (any, error) {
	points, err := decodeCoordList(v)
	if err != nil {
		return nil, err
	}

	return orb.Ring(points), nil
}

func geometryToGeoJSON(v any) (any, error) {
	g, ok := v.(orb.Geometry)
	if !ok {
		return nil, &ConversionError{Value: v, Target: "bson.D", Reason: "not a geometry"}
	}

	return GeoJSONDocument(g)
}

// geoJSONToGeometry decodes and then coerces the decoded shape into the
// requested target type, so a polygon with a single ring can satisfy an
// orb.Ring field.
func geoJSONToGeometry(v any, target reflect.Type) (any, error) {
	doc, ok := asDocument(v)
	if !ok {
		return nil, &ConversionError{Value: v, Target: target.String(), Reason: "not a document"}
	}

	g, err := GeometryFromGeoJSON(doc)
	if err != nil {
		return nil, err
	}

	gv := reflect.ValueOf(g)
	if gv.Type() == target {
		return g, nil
	}

	if target == reflect.TypeOf(orb.Ring{}) {
		if poly, isPoly := g.(orb.Polygon); isPoly && len(poly) == 1 {
			return poly[0], nil
		}
	}

	if gv.Type().ConvertibleTo(target) {
		return gv.Convert(target).Interface(), nil
	}

	return nil, errors.Errorf("mondoc: GeoJSON decoded to %T, want %s", g, target)
}
