// Copyright 2024 The avalanche-tools authors. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package adf

import "fmt"

// Primitive is the kind tag of an ADF type. It is the axis both the
// reflective engine (component F) and the type model switch on.
type Primitive uint32

// Primitive kinds, in on-disk enum order. Recursive and Deferred are
// defined by the format but have no known reference decoding; see
// ReflectionContext.ReadValue.
const (
	PrimitiveScalar Primitive = iota
	PrimitiveStructure
	PrimitivePointer
	PrimitiveArray
	PrimitiveInlineArray
	PrimitiveString
	PrimitiveRecursive
	PrimitiveBitfield
	PrimitiveEnumeration
	PrimitiveStringHash
	PrimitiveDeferred
)

func (p Primitive) String() string {
	switch p {
	case PrimitiveScalar:
		return "Scalar"
	case PrimitiveStructure:
		return "Structure"
	case PrimitivePointer:
		return "Pointer"
	case PrimitiveArray:
		return "Array"
	case PrimitiveInlineArray:
		return "InlineArray"
	case PrimitiveString:
		return "String"
	case PrimitiveRecursive:
		return "Recursive"
	case PrimitiveBitfield:
		return "Bitfield"
	case PrimitiveEnumeration:
		return "Enumeration"
	case PrimitiveStringHash:
		return "StringHash"
	case PrimitiveDeferred:
		return "Deferred"
	default:
		return fmt.Sprintf("Primitive(%d)", uint32(p))
	}
}

// ScalarKind selects how a Scalar/Bitfield/Enumeration/StringHash type's
// raw bytes are interpreted.
type ScalarKind uint16

const (
	ScalarSigned ScalarKind = iota
	ScalarUnsigned
	ScalarFloat
)

func (s ScalarKind) String() string {
	switch s {
	case ScalarSigned:
		return "Signed"
	case ScalarUnsigned:
		return "Unsigned"
	case ScalarFloat:
		return "Float"
	default:
		return fmt.Sprintf("ScalarKind(%d)", uint16(s))
	}
}

// TypeFlags is the bitset carried by every AdfType record.
type TypeFlags uint16

const (
	FlagNone     TypeFlags = 0
	FlagPodRead  TypeFlags = 1 << 0
	FlagPodWrite TypeFlags = 1 << 1
	FlagFinalize TypeFlags = 1 << 15
)

// Type is the in-memory representation of one ADF type definition
// (component E). It carries no behavior beyond what the reflective
// engine and typed codec need to traverse it.
type Type struct {
	Primitive   Primitive
	Size        uint32
	Alignment   uint32
	TypeHash    uint32
	Name        string
	Flags       TypeFlags
	ScalarKind  ScalarKind
	ElementHash uint32 // element_type_hash: Pointer/Array/InlineArray/Recursive/StringHash element, Bitfield's underlying scalar's own hash is not stored here
	ElementLen  uint32 // element_length: Array/InlineArray count, Bitfield bit width

	// Members is populated only when Primitive == PrimitiveStructure.
	Members []Member

	// Enums is populated only when Primitive == PrimitiveEnumeration.
	Enums []EnumEntry
}

// Member is one field of a Structure-kind Type.
type Member struct {
	Name      string
	TypeHash  uint32
	Alignment uint32

	// ByteOffset and BitOffset together are the on-disk packed
	// "offsets" field: 24 bits of byte offset, 8 bits of bit offset.
	// BitOffset is only meaningful when the member's type is a
	// Bitfield.
	ByteOffset uint32
	BitOffset  uint8

	Default MemberDefault
}

// packOffsets packs ByteOffset/BitOffset into the on-disk 32-bit field.
func packOffsets(byteOffset uint32, bitOffset uint8) uint32 {
	return (byteOffset & 0x00FFFFFF) | uint32(bitOffset)<<24
}

func unpackOffsets(packed uint32) (byteOffset uint32, bitOffset uint8) {
	return packed & 0x00FFFFFF, uint8(packed >> 24)
}

// MemberDefaultKind discriminates a Member's default value union.
type MemberDefaultKind uint32

const (
	DefaultUninitialized MemberDefaultKind = iota
	DefaultInline
	DefaultInstanceRef
)

// MemberDefault is the tagged union a Member's default value is stored
// as on disk: either no default, a 64-bit literal, or a reference to
// another instance in the same file (by name).
type MemberDefault struct {
	Kind MemberDefaultKind

	// Inline holds the literal when Kind == DefaultInline.
	Inline uint64

	// Instance holds the referenced instance when Kind ==
	// DefaultInstanceRef. It is resolved at read time (see §9: the
	// string/instance pools are fully read before types, specifically
	// so member defaults can resolve instance references immediately).
	Instance *Instance
}

// EnumEntry is one named value of an Enumeration-kind Type.
type EnumEntry struct {
	Name  string
	Value int32
}
