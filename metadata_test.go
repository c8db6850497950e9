package mondoc

import (
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mdTagged struct {
	Key     string    `bson:"_id"`
	Display string    `bson:"display_name"`
	Plain   string
	Skipped string    `bson:"-"`
	Owner   *mdOwner  `mondoc:"dbref,db=accounts"`
	Peer    *mdTagged `mondoc:"ref,lookup={'pk':?#{#target}},eager"`
}

type mdOwner struct {
	ID int64 `bson:"_id"`
}

type mdConventional struct {
	ID   string
	Name string
}

func TestRegisterDerivesTaggedMetadata(t *testing.T) {
	ctx := NewMappingContext()

	entity, err := ctx.Register(mdTagged{})
	require.NoError(t, err)

	assert.Equal(t, "mdTagged", entity.Name)
	assert.Equal(t, "md_tagged", entity.Collection)

	id := entity.IDProperty()
	require.NotNil(t, id)
	assert.Equal(t, "Key", id.Name)
	assert.Equal(t, "_id", id.FieldName)

	display := entity.Property("display")
	require.NotNil(t, display)
	assert.Equal(t, "display_name", display.FieldName)

	// untagged fields fall back to the naming strategy
	plain := entity.Property("plain")
	require.NotNil(t, plain)
	assert.Equal(t, "plain", plain.FieldName)

	assert.Nil(t, entity.Property("skipped"))

	owner := entity.Property("owner")
	require.NotNil(t, owner)
	assert.True(t, owner.IsAssociation)
	assert.True(t, owner.UseDBRef)
	assert.Equal(t, "accounts", owner.Database)
	assert.Equal(t, reflect.TypeOf(mdOwner{}), owner.Target)

	peer := entity.Property("peer")
	require.NotNil(t, peer)
	assert.True(t, peer.IsAssociation)
	assert.False(t, peer.UseDBRef)
	assert.False(t, peer.Lazy)
	assert.Equal(t, "{'pk':?#{#target}}", peer.LookupTemplate)
}

func TestRegisterDetectsConventionalID(t *testing.T) {
	ctx := NewMappingContext()

	entity, err := ctx.Register(mdConventional{})
	require.NoError(t, err)

	id := entity.IDProperty()
	require.NotNil(t, id)
	assert.Equal(t, "ID", id.Name)
	assert.Equal(t, "_id", id.FieldName)
}

func TestPropertyLookupIsCaseInsensitive(t *testing.T) {
	ctx := NewMappingContext()
	entity, err := ctx.Register(mdConventional{})
	require.NoError(t, err)

	assert.NotNil(t, entity.Property("name"))
	assert.NotNil(t, entity.Property("Name"))
	assert.NotNil(t, entity.Property("NAME"))
	assert.Nil(t, entity.Property("missing"))
}

func TestEntityOfTypeDerivesOnDemand(t *testing.T) {
	ctx := NewMappingContext()

	entity := ctx.EntityOfType(reflect.TypeOf(mdConventional{}))
	require.NotNil(t, entity)

	// same instance on repeat lookups
	assert.Same(t, entity, ctx.EntityOfType(reflect.TypeOf(&mdConventional{})))
	assert.Nil(t, ctx.EntityOfType(reflect.TypeOf("not a struct")))
}

func TestRegisterOptions(t *testing.T) {
	ctx := NewMappingContext(WithFieldNaming(SnakeCaseFieldNaming))

	conv := ValueConverterFunc(func(v any) (any, error) { return v, nil })
	entity, err := ctx.Register(mdConventional{}, WithCollection("people"), WithPropertyConverter("Name", conv))
	require.NoError(t, err)

	assert.Equal(t, "people", entity.Collection)
	assert.NotNil(t, entity.Property("name").Converter)
}

func TestRegisterRejectsNonStructs(t *testing.T) {
	ctx := NewMappingContext()

	_, err := ctx.Register(42)
	assert.Error(t, err)

	_, err = ctx.Register(nil)
	assert.Error(t, err)
}

func TestSplitTagOptionsKeepsBracedTemplatesIntact(t *testing.T) {
	parts := splitTagOptions("ref,lookup={'a':?#{x},'b':?#{y}},lazy")

	assert.Equal(t, []string{"ref", "lookup={'a':?#{x},'b':?#{y}}", "lazy"}, parts)
}

func TestParseMondocTagRejectsUnknownOptions(t *testing.T) {
	_, _, _, _, _, _, _, err := parseMondocTag("bogus")
	assert.Error(t, err)
}
