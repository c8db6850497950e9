package mondoc

import (
	"reflect"
	"strings"

	"go.mongodb.org/mongo-driver/bson"
)

func sliceMap[In any, Out any](list []In, mapFn func(val In) Out) []Out {
	var newSlice = make([]Out, len(list))
	for i, val := range list {
		newSlice[i] = mapFn(val)
	}

	return newSlice
}

func sliceContains[T comparable](list []T, val T) bool {
	for _, item := range list {
		if item == val {
			return true
		}
	}

	return false
}

func sliceFilter[T any](slice []T, filterFunc func(val T) bool) []T {
	var newSlice []T
	for i, val := range slice {
		if filterFunc(val) {
			newSlice = append(newSlice, slice[i])
		}
	}

	return newSlice
}

// isOperatorKey reports whether key denotes a MongoDB operator ($in, $or, ...).
func isOperatorKey(key string) bool {
	return strings.HasPrefix(key, "$")
}

// asDocument normalizes the document-shaped values the driver may hand us.
// bson.M loses key order but is still accepted as user input.
func asDocument(v any) (bson.D, bool) {
	switch d := v.(type) {
	case bson.D:
		return d, true
	case *bson.D:
		if d == nil {
			return nil, false
		}
		return *d, true
	case bson.M:
		out := make(bson.D, 0, len(d))
		for k, val := range d {
			out = append(out, bson.E{Key: k, Value: val})
		}
		return out, true
	case map[string]any:
		out := make(bson.D, 0, len(d))
		for k, val := range d {
			out = append(out, bson.E{Key: k, Value: val})
		}
		return out, true
	default:
		return nil, false
	}
}

// asArray normalizes list-shaped values ([]any, bson.A and friends).
func asArray(v any) (bson.A, bool) {
	switch a := v.(type) {
	case bson.A:
		return a, true
	case []any:
		return bson.A(a), true
	case []bson.D:
		out := make(bson.A, len(a))
		for i := range a {
			out[i] = a[i]
		}
		return out, true
	case []string:
		out := make(bson.A, len(a))
		for i := range a {
			out[i] = a[i]
		}
		return out, true
	default:
		rv := reflect.ValueOf(v)
		if !rv.IsValid() || (rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array) {
			return nil, false
		}
		// []byte is a scalar, not a list
		if rv.Type().Elem().Kind() == reflect.Uint8 {
			return nil, false
		}

		out := make(bson.A, rv.Len())
		for i := 0; i < rv.Len(); i++ {
			out[i] = rv.Index(i).Interface()
		}
		return out, true
	}
}
