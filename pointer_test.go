package mondoc

import (
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
)

func TestIsDefaultLookup(t *testing.T) {
	defaults := []string{
		"",
		"{_id:?#{#target}}",
		"{ '_id' : ?#{#target} }",
		`{"_id": ?#{ #target }}`,
		"{_id:?#{#target},}",
	}
	for _, template := range defaults {
		assert.True(t, isDefaultLookup(template), "%q", template)
	}

	custom := []string{
		"{'pk':?#{#target}}",
		"{'_id':?#{#target},'tenant':?#{tenant}}",
		"{'_id':?#{ownerId}}",
	}
	for _, template := range custom {
		assert.False(t, isDefaultLookup(template), "%q", template)
	}
}

func TestParseLinkageExtractsPairs(t *testing.T) {
	doc, err := parseLinkage("{'refKey':?#{#target},'tenant':?#{tenant}}")
	require.NoError(t, err)

	require.Len(t, doc.pairs, 2)
	assert.Equal(t, linkagePair{key: "refKey", placeholder: "#target"}, doc.pairs[0])
	assert.Equal(t, linkagePair{key: "tenant", placeholder: "tenant"}, doc.pairs[1])

	_, err = parseLinkage("no placeholders here")
	assert.Error(t, err)
}

type ptAccount struct {
	ID     int64  `bson:"_id"`
	Tenant string `bson:"tenant"`
}

func TestComputePointerDefaultLookupStoresPlainID(t *testing.T) {
	ctx := NewMappingContext()
	entity, err := ctx.Register(ptAccount{})
	require.NoError(t, err)

	factory := NewDocumentPointerFactory()
	prop := &Property{Name: "Account", LookupTemplate: ""}

	pointer, err := factory.ComputePointer(prop, entity, reflect.ValueOf(ptAccount{ID: 7, Tenant: "x"}))
	require.NoError(t, err)
	assert.Equal(t, int64(7), pointer)
}

func TestComputePointerTemplatedLookupStoresDocument(t *testing.T) {
	ctx := NewMappingContext()
	entity, err := ctx.Register(ptAccount{})
	require.NoError(t, err)

	factory := NewDocumentPointerFactory()
	prop := &Property{
		Name:           "Account",
		LookupTemplate: "{'acc':?#{#target},'tenant':?#{Tenant}}",
	}

	pointer, err := factory.ComputePointer(prop, entity, reflect.ValueOf(ptAccount{ID: 7, Tenant: "blue"}))
	require.NoError(t, err)

	assert.Equal(t, bson.D{
		{Key: "acc", Value: int64(7)},
		{Key: "tenant", Value: "blue"},
	}, pointer)
}

func TestComputePointerNilValue(t *testing.T) {
	ctx := NewMappingContext()
	entity, err := ctx.Register(ptAccount{})
	require.NoError(t, err)

	factory := NewDocumentPointerFactory()

	pointer, err := factory.ComputePointer(&Property{Name: "Account"}, entity, reflect.ValueOf((*ptAccount)(nil)))
	require.NoError(t, err)
	assert.Nil(t, pointer)
}

func TestFilterForReplaysTemplate(t *testing.T) {
	linkage, err := parseLinkage("{'acc':?#{#target},'tenant':?#{Tenant}}")
	require.NoError(t, err)

	stored := bson.D{{Key: "acc", Value: int64(7)}, {Key: "tenant", Value: "blue"}}
	filter, err := linkage.filterFor(stored)
	require.NoError(t, err)
	assert.Equal(t, stored, filter)

	// a stored pointer missing a template key cannot be resolved
	_, err = linkage.filterFor(bson.D{{Key: "acc", Value: int64(7)}})
	assert.Error(t, err)

	// scalar pointers only satisfy single-pair templates
	_, err = linkage.filterFor(int64(7))
	assert.Error(t, err)

	single, err := parseLinkage("{'pk':?#{#target}}")
	require.NoError(t, err)

	filter, err = single.filterFor(int64(7))
	require.NoError(t, err)
	assert.Equal(t, bson.D{{Key: "pk", Value: int64(7)}}, filter)
}

func TestLinkageCacheReturnsCompiledTemplate(t *testing.T) {
	factory := NewDocumentPointerFactory()

	first, err := factory.linkageFor("{'pk':?#{#target}}")
	require.NoError(t, err)

	second, err := factory.linkageFor("{'pk':?#{#target}}")
	require.NoError(t, err)

	assert.Same(t, first, second)
}
