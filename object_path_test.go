package mondoc

import (
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
)

type opDoc struct {
	Name string
}

func TestObjectPathPushIsImmutable(t *testing.T) {
	root := RootObjectPath

	a := &opDoc{Name: "a"}
	b := &opDoc{Name: "b"}

	withA := root.Push(a, "docs", int64(1))
	withB := root.Push(b, "docs", int64(2))

	// sibling pushes share no state
	assert.Equal(t, 0, root.Len())
	assert.Nil(t, withA.PathItem(int64(2), "docs", nil))
	assert.Nil(t, withB.PathItem(int64(1), "docs", nil))

	assert.Same(t, a, withA.PathItem(int64(1), "docs", nil))
}

func TestObjectPathFindsMostRecentFirst(t *testing.T) {
	older := &opDoc{Name: "older"}
	newer := &opDoc{Name: "newer"}

	path := RootObjectPath.
		Push(older, "docs", int64(1)).
		Push(newer, "docs", int64(1))

	assert.Same(t, newer, path.PathItem(int64(1), "docs", nil))
}

func TestObjectPathMatchesCollectionAndType(t *testing.T) {
	doc := &opDoc{Name: "a"}
	path := RootObjectPath.Push(doc, "docs", int64(1))

	assert.Nil(t, path.PathItem(int64(1), "other", nil))
	assert.Nil(t, path.PathItem(int64(2), "docs", nil))

	assert.Same(t, doc, path.PathItem(int64(1), "docs", reflect.TypeOf(&opDoc{})))
	assert.Nil(t, path.PathItem(int64(1), "docs", reflect.TypeOf("")))
}

func TestObjectPathSkipsIncompleteEntries(t *testing.T) {
	path := RootObjectPath.Push(&opDoc{}, "docs", nil)

	assert.Nil(t, path.PathItem(int64(1), "docs", nil))
}

func TestObjectPathIDComparison(t *testing.T) {
	assert.True(t, idEqual(int64(1), int64(1)))
	assert.False(t, idEqual(int64(1), int32(1)))
	assert.False(t, idEqual(nil, int64(1)))
	assert.True(t, idEqual([]byte{1, 2}, []byte{1, 2}))
}

func TestObjectPathString(t *testing.T) {
	assert.Equal(t, "[empty]", RootObjectPath.String())

	path := RootObjectPath.Push(&opDoc{}, "docs", int64(1)).Push(&opDoc{}, "users", "u1")
	assert.Equal(t, "docs/1 -> users/u1", path.String())
}
