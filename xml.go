// Copyright 2024 The avalanche-tools authors. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package adf

import (
	"encoding/xml"
	"fmt"
	"sort"
	"strconv"
)

// XMLFile is the reversible XML projection of a reflected value tree
// (component I). Extension records which type library set re-import
// should load. EmbeddedTypes is set when the source file carried its own
// type table. The document itself holds only type names and hashes;
// when the flag is set, ToFile copies every named type other than
// Scalar, String and Deferred from its ReflectionContext into the
// rebuilt file, with member defaults cleared.
type XMLFile struct {
	XMLName       xml.Name   `xml:"adf"`
	Extension     string     `xml:"extension,attr"`
	EmbeddedTypes bool       `xml:"embedded-types,attr,omitempty"`
	Types         []xmlType  `xml:"type"`
	Instances     []xmlValue `xml:"instance"`
}

// xmlType is one `<type name="...">hash</type>` entry: a structural or
// declared display name paired with the type hash it resolves to.
type xmlType struct {
	Name string `xml:"name,attr"`
	Hash uint32 `xml:",chardata"`
}

// xmlValue is one node of the projected value tree: a scalar carries its
// text in Text, a structure carries named Members, a pointer/array/
// inline-array carries unnamed Values.
type xmlValue struct {
	Name     string     `xml:"name,attr,omitempty"`
	TypeName string     `xml:"type,attr"`
	Members  []xmlValue `xml:"member,omitempty"`
	Values   []xmlValue `xml:"value,omitempty"`
	Text     string     `xml:",chardata"`
}

// NewXMLFile projects file's instances into an XML document, assigning
// every referenced type a stable display name (spec.md §4.I). extension
// is recorded so a later ToFile call knows which type libraries to load.
func NewXMLFile(file *File, ctx *ReflectionContext, extension string) (*XMLFile, error) {
	type named struct {
		name  string
		value ReflectedValue
	}

	namedValues := make([]named, 0, len(file.Instances))
	for _, inst := range file.Instances {
		typeDef, err := ctx.GetType(inst.TypeHash)
		if err != nil {
			continue
		}
		val, err := ctx.ReadValue(inst.Buffer, 0, 0, typeDef)
		if err != nil {
			continue
		}
		namedValues = append(namedValues, named{name: inst.Name, value: val})
	}

	hashes := make(map[uint32]struct{})
	for i := range namedValues {
		foldTypeHashes(&namedValues[i].value, hashes)
	}

	names := make(map[uint32]string, len(hashes))
	for hash := range hashes {
		name, err := typeDisplayName(hash, ctx)
		if err != nil {
			continue
		}
		names[hash] = name
	}

	types := make([]xmlType, 0, len(names))
	for hash, name := range names {
		types = append(types, xmlType{Name: name, Hash: hash})
	}
	sort.Slice(types, func(i, j int) bool { return types[i].Name < types[j].Name })

	instances := make([]xmlValue, 0, len(namedValues))
	for _, nv := range namedValues {
		xv, err := valueToXML(nv.value, nv.name, ctx, names)
		if err != nil {
			return nil, err
		}
		instances = append(instances, xv)
	}

	return &XMLFile{
		Extension:     extension,
		EmbeddedTypes: len(file.Types) > 0,
		Types:         types,
		Instances:     instances,
	}, nil
}

// Marshal renders doc as an indented XML document, "adf" as its root
// element, matching the original tool's quick_xml::se::Serializer
// configuration (root name "adf", tab indentation).
func (doc *XMLFile) Marshal() ([]byte, error) {
	body, err := xml.MarshalIndent(doc, "", "\t")
	if err != nil {
		return nil, fmt.Errorf("adf: marshaling xml: %w", err)
	}
	return append([]byte(xml.Header), body...), nil
}

// ParseXMLFile parses an XML document previously produced by
// (*XMLFile).Marshal (or a hand-authored equivalent).
func ParseXMLFile(data []byte) (*XMLFile, error) {
	var doc XMLFile
	if err := xml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("adf: parsing xml: %w", err)
	}
	return &doc, nil
}

// ToFile reconstructs an ADF file from doc's projected value tree,
// resolving type names against ctx (spec.md §4.I reverse pass). Any
// name that fails to resolve is a hard error: unlike the container
// codec's default-instance fallback, duck-typed XML has no quirk to
// tolerate.
func (doc *XMLFile) ToFile(ctx *ReflectionContext) (*File, error) {
	types := make(map[string]uint32, len(doc.Types))
	for _, t := range doc.Types {
		types[t.Name] = t.Hash
	}

	result := New()

	if doc.EmbeddedTypes {
		for _, t := range doc.Types {
			typeDef, err := ctx.GetType(t.Hash)
			if err != nil {
				return nil, fmt.Errorf("adf: embedded type %q: %w", t.Name, err)
			}
			// Scalar/String/Deferred types only ever exist in a
			// built-in library; there is nothing instance-specific
			// about them worth re-embedding.
			if typeDef.Primitive == PrimitiveScalar || typeDef.Primitive == PrimitiveString || typeDef.Primitive == PrimitiveDeferred {
				continue
			}
			clone := *typeDef
			clone.Members = append([]Member(nil), typeDef.Members...)
			for i := range clone.Members {
				clone.Members[i].Default = MemberDefault{}
			}
			result.Types = append(result.Types, &clone)
		}
	}

	for _, iv := range doc.Instances {
		if iv.Name == "" {
			return nil, fmt.Errorf("adf: top-level instance is missing its name attribute")
		}
		typeHash, ok := types[iv.TypeName]
		if !ok {
			return nil, fmt.Errorf("%w: type %q", ErrUnknownType, iv.TypeName)
		}
		typeDef, err := ctx.GetType(typeHash)
		if err != nil {
			return nil, err
		}
		val, err := xmlToValue(iv, types, ctx)
		if err != nil {
			return nil, err
		}

		buffer := make([]byte, typeDef.Size)
		buffer, err = ctx.WriteValue(buffer, 0, 0, typeDef, val)
		if err != nil {
			return nil, err
		}

		result.Instances = append(result.Instances, &Instance{
			Name:     iv.Name,
			TypeHash: typeHash,
			Buffer:   buffer,
		})
	}

	return result, nil
}

// foldTypeHashes collects val's type hash, and every type hash reachable
// through it, into hashes.
func foldTypeHashes(val *ReflectedValue, hashes map[uint32]struct{}) {
	switch val.Kind {
	case PrimitiveStructure:
		for i := range val.Members {
			foldTypeHashes(&val.Members[i].Value, hashes)
		}
	case PrimitivePointer:
		if val.Pointee != nil {
			foldTypeHashes(val.Pointee, hashes)
		}
	case PrimitiveArray, PrimitiveInlineArray:
		for i := range val.Elements {
			foldTypeHashes(&val.Elements[i], hashes)
		}
	}
	hashes[val.TypeHash] = struct{}{}
}

// typeDisplayName assigns the duck-typed display name spec.md §4.I
// describes: structural for most kinds; a Structure uses its declared
// name, and an Enumeration its declared name followed by its scalar
// spelling ("Name: u32").
func typeDisplayName(typeHash uint32, ctx *ReflectionContext) (string, error) {
	t, err := ctx.GetType(typeHash)
	if err != nil {
		return "", err
	}
	switch t.Primitive {
	case PrimitiveScalar:
		return scalarName(t)
	case PrimitiveStructure:
		return t.Name, nil
	case PrimitivePointer:
		inner, err := typeDisplayName(t.ElementHash, ctx)
		if err != nil {
			return "", err
		}
		return "Pointer[" + inner + "]", nil
	case PrimitiveArray:
		inner, err := typeDisplayName(t.ElementHash, ctx)
		if err != nil {
			return "", err
		}
		return "[" + inner + "]", nil
	case PrimitiveInlineArray:
		inner, err := typeDisplayName(t.ElementHash, ctx)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("[%s; %d]", inner, t.ElementLen), nil
	case PrimitiveString:
		return "String", nil
	case PrimitiveRecursive:
		inner, err := typeDisplayName(t.ElementHash, ctx)
		if err != nil {
			return "", err
		}
		return "Recursive[" + inner + "]", nil
	case PrimitiveBitfield:
		name, err := scalarName(t)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("%s: %d", name, t.ElementLen), nil
	case PrimitiveEnumeration:
		name, err := scalarName(t)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("%s: %s", t.Name, name), nil
	case PrimitiveStringHash:
		name, err := scalarName(t)
		if err != nil {
			return "", err
		}
		return "Hash[" + name + "]", nil
	case PrimitiveDeferred:
		return "Any", nil
	default:
		return "", fmt.Errorf("%w: %s", ErrUnsupportedPrimitive, t.Primitive)
	}
}

// scalarName is the short scalar spelling ("u32", "f64", ...) used to
// build structural display names.
func scalarName(t *Type) (string, error) {
	switch t.ScalarKind {
	case ScalarSigned:
		switch t.Size {
		case 1:
			return "i8", nil
		case 2:
			return "i16", nil
		case 4:
			return "i32", nil
		case 8:
			return "i64", nil
		}
	case ScalarUnsigned:
		switch t.Size {
		case 1:
			return "u8", nil
		case 2:
			return "u16", nil
		case 4:
			return "u32", nil
		case 8:
			return "u64", nil
		}
	case ScalarFloat:
		switch t.Size {
		case 4:
			return "f32", nil
		case 8:
			return "f64", nil
		}
	}
	return "", fmt.Errorf("%w: %s/%d", ErrUnsupportedScalar, t.ScalarKind, t.Size)
}

// valueToXML converts one reflected value (optionally named, for
// struct members and top-level instances) into its XML node.
func valueToXML(val ReflectedValue, name string, ctx *ReflectionContext, names map[uint32]string) (xmlValue, error) {
	typeName, ok := names[val.TypeHash]
	if !ok {
		return xmlValue{}, fmt.Errorf("%w: %#x", ErrUnknownType, val.TypeHash)
	}
	result := xmlValue{TypeName: typeName}
	if name != "" {
		result.Name = name
	}

	switch val.Kind {
	case PrimitiveScalar, PrimitiveBitfield, PrimitiveEnumeration, PrimitiveStringHash:
		s, err := scalarString(ctx, val)
		if err != nil {
			return xmlValue{}, err
		}
		result.Text = s
	case PrimitiveStructure:
		result.Members = make([]xmlValue, 0, len(val.Members))
		for _, m := range val.Members {
			mv, err := valueToXML(m.Value, m.Name, ctx, names)
			if err != nil {
				return xmlValue{}, err
			}
			result.Members = append(result.Members, mv)
		}
	case PrimitivePointer:
		if val.Pointee != nil {
			pv, err := valueToXML(*val.Pointee, "", ctx, names)
			if err != nil {
				return xmlValue{}, err
			}
			result.Values = append(result.Values, pv)
		}
	case PrimitiveArray, PrimitiveInlineArray:
		result.Values = make([]xmlValue, 0, len(val.Elements))
		for _, e := range val.Elements {
			ev, err := valueToXML(e, "", ctx, names)
			if err != nil {
				return xmlValue{}, err
			}
			result.Values = append(result.Values, ev)
		}
	case PrimitiveString:
		result.Text = val.Str
	default:
		return xmlValue{}, fmt.Errorf("%w: %s", ErrUnsupportedPrimitive, val.Kind)
	}
	return result, nil
}

// scalarString formats a scalar/bitfield/enumeration/string-hash value
// as decimal text, matching the precision its declared width implies.
func scalarString(ctx *ReflectionContext, val ReflectedValue) (string, error) {
	t, err := ctx.GetType(val.TypeHash)
	if err != nil {
		return "", err
	}
	switch t.ScalarKind {
	case ScalarSigned:
		return strconv.FormatInt(val.Int, 10), nil
	case ScalarUnsigned:
		return strconv.FormatUint(val.Uint, 10), nil
	case ScalarFloat:
		bitSize := 64
		if t.Size == 4 {
			bitSize = 32
		}
		return strconv.FormatFloat(val.Float, 'g', -1, bitSize), nil
	default:
		return "", fmt.Errorf("%w: %s", ErrUnsupportedScalar, t.ScalarKind)
	}
}

// xmlToValue converts one XML node back into a reflected value
// (spec.md §4.I reverse pass), resolving its declared type name against
// types and recursing into members/values per the type's primitive.
func xmlToValue(v xmlValue, types map[string]uint32, ctx *ReflectionContext) (ReflectedValue, error) {
	typeHash, ok := types[v.TypeName]
	if !ok {
		return ReflectedValue{}, fmt.Errorf("%w: type %q", ErrUnknownType, v.TypeName)
	}
	typeDef, err := ctx.GetType(typeHash)
	if err != nil {
		return ReflectedValue{}, err
	}

	val := ReflectedValue{TypeHash: typeHash, Kind: typeDef.Primitive}
	switch typeDef.Primitive {
	case PrimitiveScalar, PrimitiveBitfield, PrimitiveEnumeration, PrimitiveStringHash:
		val.ScalarKind = typeDef.ScalarKind
		if err := parseScalarInto(&val, typeDef, v.Text); err != nil {
			return ReflectedValue{}, err
		}
	case PrimitiveStructure:
		val.Members = make([]ReflectedMember, 0, len(v.Members))
		for _, m := range v.Members {
			mv, err := xmlToValue(m, types, ctx)
			if err != nil {
				return ReflectedValue{}, err
			}
			val.Members = append(val.Members, ReflectedMember{Name: m.Name, Value: mv})
		}
	case PrimitivePointer:
		switch len(v.Values) {
		case 0:
			// Absent (zero-offset) pointer; val.Pointee stays nil.
		case 1:
			pv, err := xmlToValue(v.Values[0], types, ctx)
			if err != nil {
				return ReflectedValue{}, err
			}
			val.Pointee = &pv
		default:
			return ReflectedValue{}, fmt.Errorf("adf: pointer xml value %q must have at most one <value>", v.TypeName)
		}
	case PrimitiveArray, PrimitiveInlineArray:
		val.Elements = make([]ReflectedValue, 0, len(v.Values))
		for _, e := range v.Values {
			ev, err := xmlToValue(e, types, ctx)
			if err != nil {
				return ReflectedValue{}, err
			}
			val.Elements = append(val.Elements, ev)
		}
	case PrimitiveString:
		val.Str = v.Text
	default:
		return ReflectedValue{}, fmt.Errorf("%w: %s", ErrUnsupportedPrimitive, typeDef.Primitive)
	}
	return val, nil
}

// parseScalarInto parses text as typeDef's scalar kind/size into val.
func parseScalarInto(val *ReflectedValue, typeDef *Type, text string) error {
	switch typeDef.ScalarKind {
	case ScalarSigned:
		n, err := strconv.ParseInt(text, 10, 64)
		if err != nil {
			return fmt.Errorf("adf: parsing %q as signed scalar: %w", text, err)
		}
		val.Int = n
	case ScalarUnsigned:
		n, err := strconv.ParseUint(text, 10, 64)
		if err != nil {
			return fmt.Errorf("adf: parsing %q as unsigned scalar: %w", text, err)
		}
		val.Uint = n
	case ScalarFloat:
		bitSize := 64
		if typeDef.Size == 4 {
			bitSize = 32
		}
		f, err := strconv.ParseFloat(text, bitSize)
		if err != nil {
			return fmt.Errorf("adf: parsing %q as float scalar: %w", text, err)
		}
		val.Float = f
	default:
		return fmt.Errorf("%w: scalar kind %s", ErrUnsupportedScalar, typeDef.ScalarKind)
	}
	return nil
}
