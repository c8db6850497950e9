package mondoc

import (
	"reflect"
	"regexp"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
)

// defaultLookupPattern recognizes the distinguished id-equality lookup
// `{_id: ?#{#target}}` in all its historically accepted spacing and quoting
// variants. Metadata strings written years ago must keep matching, so this
// stays a tolerant regex rather than a structural parse.
var defaultLookupPattern = regexp.MustCompile(`^\s*\{\s*['"]?_id['"]?\s*:\s*\?#\{\s*#target\s*\}\s*,?\s*\}\s*$`)

// isDefaultLookup reports whether the template is the default id-equality
// lookup, which short-circuits the general templating machinery.
func isDefaultLookup(template string) bool {
	return template == "" || defaultLookupPattern.MatchString(template)
}

// linkagePairPattern extracts `'key' : ?#{placeholder}` pairs from a lookup
// template. The placeholder is either #target (the referenced entity's id)
// or a property name of the referencing value.
var linkagePairPattern = regexp.MustCompile(`['"]?([\w$.]+)['"]?\s*:\s*\?#\{\s*(#?\w+)\s*\}`)

// linkageDocument is a compiled lookup template: an ordered list of
// (storage key, placeholder) pairs. Compiled once per distinct template
// string and replayed in both directions: building a pointer document at
// write time and rebuilding the lookup filter at resolution time.
type linkageDocument struct {
	template string
	pairs    []linkagePair
}

type linkagePair struct {
	key         string
	placeholder string
}

const targetPlaceholder = "#target"

func parseLinkage(template string) (*linkageDocument, error) {
	matches := linkagePairPattern.FindAllStringSubmatch(template, -1)
	if len(matches) == 0 {
		return nil, errors.Errorf("mondoc: lookup template %q has no ?#{...} placeholders", template)
	}

	doc := &linkageDocument{template: template}
	for _, m := range matches {
		doc.pairs = append(doc.pairs, linkagePair{key: m[1], placeholder: m[2]})
	}

	return doc, nil
}

// pointerFor builds the pointer document stored for a reference to the
// given target value, substituting current property values into the
// template's placeholders.
func (l *linkageDocument) pointerFor(target *Entity, value reflect.Value) (bson.D, error) {
	for value.Kind() == reflect.Ptr {
		value = value.Elem()
	}

	out := make(bson.D, 0, len(l.pairs))
	for _, pair := range l.pairs {
		if pair.placeholder == targetPlaceholder {
			idProp := target.IDProperty()
			if idProp == nil {
				return nil, errors.Errorf("mondoc: entity %s has no id for #target lookup", target.Name)
			}
			out = append(out, bson.E{Key: pair.key, Value: value.Field(idProp.index).Interface()})
			continue
		}

		prop := target.Property(pair.placeholder)
		if prop == nil {
			return nil, errors.Errorf("mondoc: lookup placeholder %q is not a property of %s", pair.placeholder, target.Name)
		}
		out = append(out, bson.E{Key: pair.key, Value: value.Field(prop.index).Interface()})
	}

	return out, nil
}

// filterFor replays the template against a stored pointer, producing the
// lookup filter. A scalar pointer satisfies a single-pair template; a
// pointer document supplies one value per template key.
func (l *linkageDocument) filterFor(pointer any) (bson.D, error) {
	doc, isDoc := asDocument(pointer)
	if !isDoc {
		if len(l.pairs) != 1 {
			return nil, errors.Errorf("mondoc: scalar pointer %v cannot satisfy template %q", pointer, l.template)
		}

		return bson.D{{Key: l.pairs[0].key, Value: pointer}}, nil
	}

	out := make(bson.D, 0, len(l.pairs))
	for _, pair := range l.pairs {
		value, ok := docLookup(doc, pair.key)
		if !ok {
			return nil, errors.Errorf("mondoc: stored pointer %v is missing key %q of template %q", pointer, pair.key, l.template)
		}
		out = append(out, bson.E{Key: pair.key, Value: value})
	}

	return out, nil
}

const defaultLinkageCacheSize = 256

// DocumentPointerFactory compiles lookup templates and builds pointer
// values for document references. Compiled templates are kept in a bounded
// LRU keyed by the template string, so dynamically constructed lookups
// cannot grow the cache without bound.
type DocumentPointerFactory struct {
	cache *lru.Cache[string, *linkageDocument]
}

func NewDocumentPointerFactory() *DocumentPointerFactory {
	cache, err := lru.New[string, *linkageDocument](defaultLinkageCacheSize)
	if err != nil {
		// the size is a positive constant; New cannot fail
		panic(err)
	}

	return &DocumentPointerFactory{cache: cache}
}

func (f *DocumentPointerFactory) linkageFor(template string) (*linkageDocument, error) {
	if doc, ok := f.cache.Get(template); ok {
		return doc, nil
	}

	doc, err := parseLinkage(template)
	if err != nil {
		return nil, err
	}

	f.cache.Add(template, doc)

	return doc, nil
}

// ComputePointer builds the stored pointer for a reference from the given
// property to the given target value. The default lookup stores the plain
// id; templated lookups store a pointer document.
func (f *DocumentPointerFactory) ComputePointer(prop *Property, target *Entity, value reflect.Value) (any, error) {
	for value.Kind() == reflect.Ptr {
		if value.IsNil() {
			return nil, nil
		}
		value = value.Elem()
	}

	if isDefaultLookup(prop.LookupTemplate) {
		idProp := target.IDProperty()
		if idProp == nil {
			return nil, errors.Errorf("mondoc: referenced entity %s declares no id", target.Name)
		}

		return value.Field(idProp.index).Interface(), nil
	}

	linkage, err := f.linkageFor(prop.LookupTemplate)
	if err != nil {
		return nil, err
	}

	return linkage.pointerFor(target, value)
}
