package schema

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultRegistry(t *testing.T) {
	reg, err := Default()
	require.NoError(t, err)

	assert.True(t, reg.HasType("Patient"))
	assert.True(t, reg.HasType("Observation"))
	assert.False(t, reg.HasType("Spaceship"))
	assert.Greater(t, reg.PropertyCount(), 50)

	// Default is built once and shared.
	again, err := Default()
	require.NoError(t, err)
	assert.Same(t, reg, again)
}

func TestCardinality(t *testing.T) {
	reg, err := Default()
	require.NoError(t, err)

	cases := []struct {
		typeName string
		property string
		want     Cardinality
	}{
		{"Patient", "name", CardinalityArray},
		{"Patient", "birthDate", CardinalityScalar},
		{"HumanName", "given", CardinalityArray},
		{"HumanName", "family", CardinalityScalar},
		{"Patient", "frobnicate", CardinalityUnknown},
		{"Spaceship", "hull", CardinalityUnknown},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, reg.Cardinality(tc.typeName, tc.property),
			"%s.%s", tc.typeName, tc.property)
	}

	assert.True(t, reg.IsArray("Patient", "name"))
	assert.False(t, reg.IsArray("Patient", "birthDate"))
	assert.False(t, reg.IsArray("Patient", "frobnicate"))
}

func TestElementTypeFollowsChain(t *testing.T) {
	reg, err := Default()
	require.NoError(t, err)

	assert.Equal(t, "HumanName", reg.ElementType("Patient", "name"))
	assert.Equal(t, "string", reg.ElementType("HumanName", "given"))
	assert.Equal(t, "", reg.ElementType("Patient", "frobnicate"))
}

func TestPolymorphicVariantsPreserveOrder(t *testing.T) {
	reg, err := Default()
	require.NoError(t, err)

	got := reg.PolymorphicVariants("Observation", "value")
	require.NotEmpty(t, got)
	// Declaration order decides COALESCE resolution order.
	assert.Equal(t, "valueQuantity", got[0])
	assert.Equal(t, "valueString", got[1])

	variants := reg.Variants("Observation", "value")
	require.Len(t, variants, 7)
	assert.Equal(t, "Quantity", variants[0].Type)

	assert.Nil(t, reg.PolymorphicVariants("Patient", "birthDate"))
	assert.Nil(t, reg.PolymorphicVariants("Patient", "frobnicate"))
}

func TestCompileMinimalSchema(t *testing.T) {
	src := []byte(`
type: Widget: property: {
	label: {type: "string"}
	parts: {type: "string", array: true}
	size: {variants: [
		{property: "sizeQuantity", type: "Quantity"},
		{property: "sizeString", type: "string"},
	]}
}
`)
	reg, err := Compile(src, "widget.cue")
	require.NoError(t, err)

	assert.Equal(t, []string{"Widget"}, reg.TypeNames())
	assert.Equal(t, CardinalityArray, reg.Cardinality("Widget", "parts"))
	assert.Equal(t, []string{"sizeQuantity", "sizeString"}, reg.PolymorphicVariants("Widget", "size"))
}

func TestCompileRejectsBadDocuments(t *testing.T) {
	cases := []struct {
		name string
		src  string
		code string
	}{
		{"no type section", `other: {}`, ErrCodeEmpty},
		{"no types", `type: {}`, ErrCodeEmpty},
		{"property without type", `type: W: property: {x: {array: true}}`, ErrCodeBadProperty},
		{"empty variants", `type: W: property: {x: {variants: []}}`, ErrCodeBadVariant},
		{"variant without property", `type: W: property: {x: {variants: [{type: "string"}]}}`, ErrCodeBadVariant},
		{"not cue", `type: {{{`, ErrCodeBuildFailed},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Compile([]byte(tc.src), "bad.cue")
			require.Error(t, err)
			var lerr *LoadError
			require.True(t, errors.As(err, &lerr))
			assert.Equal(t, tc.code, lerr.Code)
		})
	}
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "schema.cue")
	require.NoError(t, os.WriteFile(path, []byte(`type: W: property: {x: {type: "string"}}`), 0o644))

	reg, err := LoadFile(path)
	require.NoError(t, err)
	assert.True(t, reg.HasType("W"))

	_, err = LoadFile(filepath.Join(dir, "missing.cue"))
	require.Error(t, err)
	var lerr *LoadError
	require.True(t, errors.As(err, &lerr))
	assert.Equal(t, ErrCodeNotFound, lerr.Code)
}
