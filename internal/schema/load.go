package schema

import (
	_ "embed"
	"fmt"
	"os"
	"sync"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
)

//go:embed fhir_r4.cue
var defaultSchemaCUE []byte

var (
	defaultOnce sync.Once
	defaultReg  *Registry
	defaultErr  error
)

// Default returns the registry built from the embedded FHIR R4 subset.
// The registry is built once and shared; it is immutable.
func Default() (*Registry, error) {
	defaultOnce.Do(func() {
		defaultReg, defaultErr = Compile(defaultSchemaCUE, "fhir_r4.cue")
	})
	return defaultReg, defaultErr
}

// LoadFile builds a registry from a CUE schema document on disk.
func LoadFile(path string) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("schema file not found: %s", path)}
		}
		return nil, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("reading schema file: %v", err)}
	}
	return Compile(data, path)
}

// Compile builds a registry from CUE source. The document shape is:
//
//	type: Patient: property: {
//	    name:      {type: "HumanName", array: true}
//	    birthDate: {type: "date"}
//	    deceased:  {variants: [
//	        {property: "deceasedBoolean", type: "boolean"},
//	        {property: "deceasedDateTime", type: "dateTime"},
//	    ]}
//	}
//
// Variant order in the document determines COALESCE resolution order and is
// preserved.
func Compile(src []byte, filename string) (*Registry, error) {
	ctx := cuecontext.New()
	value := ctx.CompileBytes(src, cue.Filename(filename))
	if err := value.Err(); err != nil {
		return nil, &LoadError{Code: ErrCodeBuildFailed, Message: fmt.Sprintf("compiling schema: %v", err)}
	}
	return decode(value)
}

func decode(value cue.Value) (*Registry, error) {
	typesVal := value.LookupPath(cue.ParsePath("type"))
	if !typesVal.Exists() {
		return nil, &LoadError{Code: ErrCodeEmpty, Message: "schema document has no 'type' section", Pos: value.Pos()}
	}

	reg := &Registry{types: map[string]map[string]Property{}}

	typeIter, err := typesVal.Fields()
	if err != nil {
		return nil, &LoadError{Code: ErrCodeBuildFailed, Message: fmt.Sprintf("iterating types: %v", err)}
	}
	for typeIter.Next() {
		typeName := typeIter.Label()
		props, err := decodeProperties(typeName, typeIter.Value())
		if err != nil {
			return nil, err
		}
		reg.types[typeName] = props
	}

	if len(reg.types) == 0 {
		return nil, &LoadError{Code: ErrCodeEmpty, Message: "schema document defines no types"}
	}
	return reg, nil
}

func decodeProperties(typeName string, typeVal cue.Value) (map[string]Property, error) {
	props := map[string]Property{}

	propsVal := typeVal.LookupPath(cue.ParsePath("property"))
	if !propsVal.Exists() {
		// A type with no properties is legal (opaque primitive wrapper).
		return props, nil
	}

	propIter, err := propsVal.Fields()
	if err != nil {
		return nil, &LoadError{Code: ErrCodeBadProperty, Message: fmt.Sprintf("%s: iterating properties: %v", typeName, err), Pos: propsVal.Pos()}
	}
	for propIter.Next() {
		name := propIter.Label()
		prop, err := decodeProperty(typeName, name, propIter.Value())
		if err != nil {
			return nil, err
		}
		props[name] = prop
	}
	return props, nil
}

func decodeProperty(typeName, name string, v cue.Value) (Property, error) {
	prop := Property{Name: name}

	if tv := v.LookupPath(cue.ParsePath("type")); tv.Exists() {
		s, err := tv.String()
		if err != nil {
			return prop, &LoadError{Code: ErrCodeBadProperty, Message: fmt.Sprintf("%s.%s: type must be a string: %v", typeName, name, err), Pos: tv.Pos()}
		}
		prop.Type = s
	}

	if av := v.LookupPath(cue.ParsePath("array")); av.Exists() {
		b, err := av.Bool()
		if err != nil {
			return prop, &LoadError{Code: ErrCodeBadProperty, Message: fmt.Sprintf("%s.%s: array must be a bool: %v", typeName, name, err), Pos: av.Pos()}
		}
		prop.Array = b
	}

	if vv := v.LookupPath(cue.ParsePath("variants")); vv.Exists() {
		list, err := vv.List()
		if err != nil {
			return prop, &LoadError{Code: ErrCodeBadVariant, Message: fmt.Sprintf("%s.%s: variants must be a list: %v", typeName, name, err), Pos: vv.Pos()}
		}
		for list.Next() {
			variant, err := decodeVariant(typeName, name, list.Value())
			if err != nil {
				return prop, err
			}
			prop.Variants = append(prop.Variants, variant)
		}
		if len(prop.Variants) == 0 {
			return prop, &LoadError{Code: ErrCodeBadVariant, Message: fmt.Sprintf("%s.%s: variants list is empty", typeName, name), Pos: vv.Pos()}
		}
	}

	if prop.Type == "" && !prop.Polymorphic() {
		return prop, &LoadError{Code: ErrCodeBadProperty, Message: fmt.Sprintf("%s.%s: property needs a type or variants", typeName, name), Pos: v.Pos()}
	}
	return prop, nil
}

func decodeVariant(typeName, propName string, v cue.Value) (Variant, error) {
	var variant Variant

	pv := v.LookupPath(cue.ParsePath("property"))
	if !pv.Exists() {
		return variant, &LoadError{Code: ErrCodeBadVariant, Message: fmt.Sprintf("%s.%s: variant missing property name", typeName, propName), Pos: v.Pos()}
	}
	p, err := pv.String()
	if err != nil {
		return variant, &LoadError{Code: ErrCodeBadVariant, Message: fmt.Sprintf("%s.%s: variant property must be a string: %v", typeName, propName, err), Pos: pv.Pos()}
	}
	variant.Property = p

	if tv := v.LookupPath(cue.ParsePath("type")); tv.Exists() {
		t, err := tv.String()
		if err != nil {
			return variant, &LoadError{Code: ErrCodeBadVariant, Message: fmt.Sprintf("%s.%s: variant type must be a string: %v", typeName, propName, err), Pos: tv.Pos()}
		}
		variant.Type = t
	}
	return variant, nil
}
