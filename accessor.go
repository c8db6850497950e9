package mondoc

import (
	"strings"

	"go.mongodb.org/mongo-driver/bson"
)

// DocumentAccessor reads and writes values in a bson.D addressed by dotted
// field-name paths, materializing intermediate nested documents on write.
// The accessor mutates its backing document in place; callers hand it a
// document they own for the duration of the conversion.
type DocumentAccessor struct {
	doc *bson.D
}

// NewDocumentAccessor wraps the given document. The document must not be nil;
// a nil backing document is a programming error and panics immediately.
func NewDocumentAccessor(doc *bson.D) *DocumentAccessor {
	if doc == nil {
		panic("mondoc: document must not be nil")
	}

	return &DocumentAccessor{doc: doc}
}

// Document returns the backing document.
func (a *DocumentAccessor) Document() bson.D {
	return *a.doc
}

// Put sets the value at the given dotted path, creating empty nested
// documents for every intermediate segment that is missing or holds a
// non-document value.
func (a *DocumentAccessor) Put(path string, value any) {
	*a.doc = putPath(*a.doc, strings.Split(path, "."), value)
}

// Get walks the dotted path and returns the value found there. It returns
// false as soon as any intermediate segment is missing or not document
// shaped; a malformed path never errors.
func (a *DocumentAccessor) Get(path string) (any, bool) {
	segments := strings.Split(path, ".")
	var current any = *a.doc

	for _, segment := range segments {
		doc, ok := asDocument(current)
		if !ok {
			return nil, false
		}

		value, found := docLookup(doc, segment)
		if !found {
			return nil, false
		}

		current = value
	}

	return current, true
}

// RawID returns the id property's stored value when the entity declares one,
// falling back to the conventional _id key.
func (a *DocumentAccessor) RawID(entity *Entity) (any, bool) {
	if entity != nil {
		if idProp := entity.IDProperty(); idProp != nil {
			return a.Get(idProp.FieldName)
		}
	}

	return a.Get(idKey)
}

func putPath(doc bson.D, segments []string, value any) bson.D {
	key := segments[0]
	if len(segments) == 1 {
		for i := range doc {
			if doc[i].Key == key {
				doc[i].Value = value
				return doc
			}
		}

		return append(doc, bson.E{Key: key, Value: value})
	}

	for i := range doc {
		if doc[i].Key != key {
			continue
		}

		nested, ok := doc[i].Value.(bson.D)
		if !ok {
			// an existing non-document value is replaced by structure
			nested = bson.D{}
		}

		doc[i].Value = putPath(nested, segments[1:], value)
		return doc
	}

	return append(doc, bson.E{Key: key, Value: putPath(bson.D{}, segments[1:], value)})
}

func docLookup(doc bson.D, key string) (any, bool) {
	for i := range doc {
		if doc[i].Key == key {
			return doc[i].Value, true
		}
	}

	return nil, false
}
