package mondoc

import (
	"fmt"
	"reflect"
	"strings"
)

// ObjectPath tracks the (object, id, collection) triples visited while one
// document graph is being read. It is the mechanism that makes mutually
// referencing documents resolve to identical object instances instead of
// recursing forever.
//
// A path is never mutated in place. Push copies the backing arena, so a path
// handed down a conversion call tree cannot be affected by pushes performed
// in sibling branches.
type ObjectPath struct {
	items []pathItem
}

type pathItem struct {
	object     any
	id         any
	collection string
}

// RootObjectPath is the empty path every top-level conversion starts from.
var RootObjectPath = ObjectPath{}

// Push returns a new path extended with one more entry. The copy is O(path
// length), which is fine since document graphs are shallow in practice.
func (p ObjectPath) Push(object any, collection string, id any) ObjectPath {
	items := make([]pathItem, len(p.items)+1)
	copy(items, p.items)
	items[len(p.items)] = pathItem{object: object, id: id, collection: collection}

	return ObjectPath{items: items}
}

// PathItem scans the path most-recent-first for an already resolved object
// stored under the given collection and id that is assignable to typ.
// A nil typ matches any object. Entries with nil object or id are skipped;
// they belong to items still under construction.
func (p ObjectPath) PathItem(id any, collection string, typ reflect.Type) any {
	for i := len(p.items) - 1; i >= 0; i-- {
		item := p.items[i]
		if item.object == nil || item.id == nil {
			continue
		}

		if item.collection != collection || !idEqual(item.id, id) {
			continue
		}

		if typ != nil && !reflect.TypeOf(item.object).AssignableTo(typ) {
			continue
		}

		return item.object
	}

	return nil
}

// Len returns the number of entries on the path.
func (p ObjectPath) Len() int {
	return len(p.items)
}

func (p ObjectPath) String() string {
	if len(p.items) == 0 {
		return "[empty]"
	}

	parts := sliceMap(p.items, func(it pathItem) string {
		return fmt.Sprintf("%s/%v", it.collection, it.id)
	})

	return strings.Join(parts, " -> ")
}

// idEqual compares raw id values without panicking on non-comparable types.
func idEqual(a, b any) bool {
	if a == nil || b == nil {
		return false
	}

	ta, tb := reflect.TypeOf(a), reflect.TypeOf(b)
	if ta != tb {
		return false
	}

	if !ta.Comparable() {
		return reflect.DeepEqual(a, b)
	}

	return a == b
}
