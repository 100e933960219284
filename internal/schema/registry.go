package schema

import (
	"sort"
)

// Cardinality describes how many values a property may hold.
type Cardinality int

const (
	// CardinalityUnknown means the registry has no entry for the property.
	// Operations that must decide whether to flatten treat this as a hard
	// translation error rather than guessing.
	CardinalityUnknown Cardinality = iota

	// CardinalityScalar means at most one value.
	CardinalityScalar

	// CardinalityArray means zero or more values.
	CardinalityArray
)

func (c Cardinality) String() string {
	switch c {
	case CardinalityScalar:
		return "scalar"
	case CardinalityArray:
		return "array"
	default:
		return "unknown"
	}
}

// Variant is one concretely-typed candidate of a polymorphic property.
// For a choice property "value" a variant might be {Property: "valueQuantity",
// Type: "Quantity"}.
type Variant struct {
	Property string
	Type     string
}

// Property describes one property of a complex type.
type Property struct {
	Name     string
	Type     string // element type name ("HumanName", "string", ...)
	Array    bool
	Variants []Variant // non-empty iff the property is polymorphic
}

// Polymorphic reports whether the property is a choice type.
func (p Property) Polymorphic() bool {
	return len(p.Variants) > 0
}

// Registry is the immutable schema lookup table.
// Construct with Compile, LoadFile, or Default; never mutate after construction.
type Registry struct {
	types map[string]map[string]Property
}

// Lookup returns the property definition for (typeName, property).
func (r *Registry) Lookup(typeName, property string) (Property, bool) {
	props, ok := r.types[typeName]
	if !ok {
		return Property{}, false
	}
	p, ok := props[property]
	return p, ok
}

// Cardinality returns the cardinality of (typeName, property).
// Returns CardinalityUnknown when the registry has no entry.
func (r *Registry) Cardinality(typeName, property string) Cardinality {
	p, ok := r.Lookup(typeName, property)
	if !ok {
		return CardinalityUnknown
	}
	if p.Array {
		return CardinalityArray
	}
	return CardinalityScalar
}

// IsArray reports whether (typeName, property) is array-valued.
// Unknown properties report false; use Cardinality to distinguish.
func (r *Registry) IsArray(typeName, property string) bool {
	return r.Cardinality(typeName, property) == CardinalityArray
}

// ElementType returns the element type name of (typeName, property),
// or "" when unknown.
func (r *Registry) ElementType(typeName, property string) string {
	p, ok := r.Lookup(typeName, property)
	if !ok {
		return ""
	}
	return p.Type
}

// PolymorphicVariants returns the ordered variant property names of a choice
// property, or nil when the property is not polymorphic (or unknown).
// Order matches declaration order and determines COALESCE resolution order.
func (r *Registry) PolymorphicVariants(typeName, property string) []string {
	p, ok := r.Lookup(typeName, property)
	if !ok || !p.Polymorphic() {
		return nil
	}
	names := make([]string, len(p.Variants))
	for i, v := range p.Variants {
		names[i] = v.Property
	}
	return names
}

// Variants returns the full variant metadata of a choice property.
func (r *Registry) Variants(typeName, property string) []Variant {
	p, ok := r.Lookup(typeName, property)
	if !ok {
		return nil
	}
	return p.Variants
}

// HasType reports whether typeName is defined in the registry.
func (r *Registry) HasType(typeName string) bool {
	_, ok := r.types[typeName]
	return ok
}

// TypeNames returns all defined type names in sorted order.
func (r *Registry) TypeNames() []string {
	names := make([]string, 0, len(r.types))
	for name := range r.types {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// PropertyCount returns the total number of property definitions.
func (r *Registry) PropertyCount() int {
	n := 0
	for _, props := range r.types {
		n += len(props)
	}
	return n
}
