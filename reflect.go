// Copyright 2024 The avalanche-tools authors. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package adf

import (
	"encoding/binary"
	"fmt"
	"math"
)

// ReflectedValue is a structured in-memory tree produced by interpreting
// an instance buffer against its type table, without any compile-time
// knowledge of the type (component F). It is a plain tagged union: the
// Kind field selects which of the payload fields is meaningful.
type ReflectedValue struct {
	TypeHash uint32
	Kind     Primitive

	// Scalar, Bitfield, Enumeration, StringHash payload.
	ScalarKind ScalarKind
	Int        int64
	Uint       uint64
	Float      float64

	// Structure payload: one entry per member, in declared order.
	Members []ReflectedMember

	// Pointer payload: nil means an absent (zero-offset) pointer.
	Pointee *ReflectedValue

	// Array / InlineArray payload.
	Elements []ReflectedValue

	// String payload.
	Str string
}

// ReflectedMember pairs a Structure member's name with its decoded value.
type ReflectedMember struct {
	Name  string
	Value ReflectedValue
}

// ReadValue interprets buffer at the given byte offset and bit shift as
// a value of typeDef, returning the reflected tree (spec.md §4.F).
func (ctx *ReflectionContext) ReadValue(buffer []byte, offset uint64, shift uint8, typeDef *Type) (ReflectedValue, error) {
	if err := checkBounds(buffer, offset, uint64(typeDef.Size)); err != nil {
		return ReflectedValue{}, err
	}
	val := ReflectedValue{TypeHash: typeDef.TypeHash, Kind: typeDef.Primitive}

	switch typeDef.Primitive {
	case PrimitiveScalar, PrimitiveEnumeration, PrimitiveStringHash:
		v, err := readScalarBits(buffer[offset:offset+uint64(typeDef.Size)], typeDef.ScalarKind, typeDef.Size)
		if err != nil {
			return ReflectedValue{}, err
		}
		val.ScalarKind = typeDef.ScalarKind
		val.Int, val.Uint, val.Float = v.i, v.u, v.f

	case PrimitiveStructure:
		members := make([]ReflectedMember, len(typeDef.Members))
		for i, m := range typeDef.Members {
			memberType, err := ctx.GetType(m.TypeHash)
			if err != nil {
				return ReflectedValue{}, fmt.Errorf("member %q: %w", m.Name, err)
			}
			mv, err := ctx.ReadValue(buffer, offset+uint64(m.ByteOffset), m.BitOffset, memberType)
			if err != nil {
				return ReflectedValue{}, fmt.Errorf("member %q: %w", m.Name, err)
			}
			members[i] = ReflectedMember{Name: m.Name, Value: mv}
		}
		val.Members = members

	case PrimitivePointer:
		elemType, err := ctx.GetType(typeDef.ElementHash)
		if err != nil {
			return ReflectedValue{}, err
		}
		ptr, err := readU64At(buffer, offset)
		if err != nil {
			return ReflectedValue{}, err
		}
		if ptr != 0 {
			pointee, err := ctx.ReadValue(buffer, ptr, 0, elemType)
			if err != nil {
				return ReflectedValue{}, err
			}
			val.Pointee = &pointee
		}

	case PrimitiveArray:
		elemType, err := ctx.GetType(typeDef.ElementHash)
		if err != nil {
			return ReflectedValue{}, err
		}
		arrOffset, err := readU64At(buffer, offset)
		if err != nil {
			return ReflectedValue{}, err
		}
		count, err := readU64At(buffer, offset+8)
		if err != nil {
			return ReflectedValue{}, err
		}
		elems := make([]ReflectedValue, count)
		for i := range elems {
			ev, err := ctx.ReadValue(buffer, arrOffset+uint64(i)*uint64(elemType.Size), 0, elemType)
			if err != nil {
				return ReflectedValue{}, err
			}
			elems[i] = ev
		}
		val.Elements = elems

	case PrimitiveInlineArray:
		elemType, err := ctx.GetType(typeDef.ElementHash)
		if err != nil {
			return ReflectedValue{}, err
		}
		elems := make([]ReflectedValue, typeDef.ElementLen)
		for i := range elems {
			ev, err := ctx.ReadValue(buffer, offset+uint64(i)*uint64(elemType.Size), 0, elemType)
			if err != nil {
				return ReflectedValue{}, err
			}
			elems[i] = ev
		}
		val.Elements = elems

	case PrimitiveString:
		strOffset, err := readU64At(buffer, offset)
		if err != nil {
			return ReflectedValue{}, err
		}
		s, err := readBufferNullString(buffer, strOffset)
		if err != nil {
			return ReflectedValue{}, err
		}
		val.Str = s

	case PrimitiveBitfield:
		if typeDef.ScalarKind == ScalarFloat {
			return ReflectedValue{}, fmt.Errorf("%w: float bitfield", ErrTypeMismatch)
		}
		raw, err := readUnsignedBits(buffer[offset:offset+uint64(typeDef.Size)], typeDef.Size)
		if err != nil {
			return ReflectedValue{}, err
		}
		width := typeDef.ElementLen
		mask := (uint64(1)<<width - 1) << shift
		val.Uint = (raw & mask) >> shift
		val.ScalarKind = typeDef.ScalarKind

	case PrimitiveRecursive, PrimitiveDeferred:
		return ReflectedValue{}, fmt.Errorf("%w: %s", ErrUnsupportedPrimitive, typeDef.Primitive)

	default:
		return ReflectedValue{}, fmt.Errorf("%w: %s", ErrUnsupportedPrimitive, typeDef.Primitive)
	}

	return val, nil
}

// WriteValue serializes val into buffer at the given offset/shift
// against typeDef, the structural inverse of ReadValue. Indirect kinds
// (Pointer, Array, String) grow buffer by appending their payload,
// aligned to the element type's alignment, and return the (possibly
// reallocated) buffer.
func (ctx *ReflectionContext) WriteValue(buffer []byte, offset uint64, shift uint8, typeDef *Type, val ReflectedValue) ([]byte, error) {
	if val.TypeHash != typeDef.TypeHash {
		return nil, fmt.Errorf("%w: value is %#x, site expects %#x", ErrTypeMismatch, val.TypeHash, typeDef.TypeHash)
	}
	if err := checkBounds(buffer, offset, uint64(typeDef.Size)); err != nil {
		return nil, err
	}
	if err := checkAlignment(buffer, offset, uint64(typeDef.Alignment)); err != nil {
		return nil, err
	}

	switch typeDef.Primitive {
	case PrimitiveScalar, PrimitiveEnumeration, PrimitiveStringHash:
		if err := writeScalarBits(buffer[offset:offset+uint64(typeDef.Size)], typeDef.ScalarKind, typeDef.Size, val); err != nil {
			return nil, err
		}
		return buffer, nil

	case PrimitiveStructure:
		if len(val.Members) != len(typeDef.Members) {
			return nil, fmt.Errorf("%w: structure %q has %d members, value has %d",
				ErrTypeMismatch, typeDef.Name, len(typeDef.Members), len(val.Members))
		}
		for i, m := range typeDef.Members {
			memberType, err := ctx.GetType(m.TypeHash)
			if err != nil {
				return nil, fmt.Errorf("member %q: %w", m.Name, err)
			}
			var err2 error
			buffer, err2 = ctx.WriteValue(buffer, offset+uint64(m.ByteOffset), m.BitOffset, memberType, val.Members[i].Value)
			if err2 != nil {
				return nil, fmt.Errorf("member %q: %w", m.Name, err2)
			}
		}
		return buffer, nil

	case PrimitivePointer:
		elemType, err := ctx.GetType(typeDef.ElementHash)
		if err != nil {
			return nil, err
		}
		if val.Pointee == nil {
			return writeU64At(buffer, offset, 0)
		}
		var ptrOffset uint64
		buffer, ptrOffset, err = appendAligned(buffer, uint64(elemType.Alignment), uint64(elemType.Size))
		if err != nil {
			return nil, err
		}
		buffer, err = writeU64At(buffer, offset, ptrOffset)
		if err != nil {
			return nil, err
		}
		return ctx.WriteValue(buffer, ptrOffset, 0, elemType, *val.Pointee)

	case PrimitiveArray:
		elemType, err := ctx.GetType(typeDef.ElementHash)
		if err != nil {
			return nil, err
		}
		count := uint64(len(val.Elements))
		var arrOffset uint64
		if count > 0 {
			buffer, arrOffset, err = appendAligned(buffer, uint64(elemType.Alignment), uint64(elemType.Size)*count)
			if err != nil {
				return nil, err
			}
		}
		buffer, err = writeU64At(buffer, offset, arrOffset)
		if err != nil {
			return nil, err
		}
		buffer, err = writeU64At(buffer, offset+8, count)
		if err != nil {
			return nil, err
		}
		for i, ev := range val.Elements {
			buffer, err = ctx.WriteValue(buffer, arrOffset+uint64(i)*uint64(elemType.Size), 0, elemType, ev)
			if err != nil {
				return nil, err
			}
		}
		return buffer, nil

	case PrimitiveInlineArray:
		elemType, err := ctx.GetType(typeDef.ElementHash)
		if err != nil {
			return nil, err
		}
		if uint32(len(val.Elements)) != typeDef.ElementLen {
			return nil, fmt.Errorf("%w: inline array %q wants %d elements, value has %d",
				ErrTypeMismatch, typeDef.Name, typeDef.ElementLen, len(val.Elements))
		}
		for i, ev := range val.Elements {
			var err2 error
			buffer, err2 = ctx.WriteValue(buffer, offset+uint64(i)*uint64(elemType.Size), 0, elemType, ev)
			if err2 != nil {
				return nil, err2
			}
		}
		return buffer, nil

	case PrimitiveString:
		payload := append([]byte(val.Str), 0)
		var strOffset uint64
		var err error
		buffer, strOffset, err = appendAligned(buffer, 1, uint64(len(payload)))
		if err != nil {
			return nil, err
		}
		copy(buffer[strOffset:], payload)
		return writeU64At(buffer, offset, strOffset)

	case PrimitiveBitfield:
		if typeDef.ScalarKind == ScalarFloat {
			return nil, fmt.Errorf("%w: float bitfield", ErrTypeMismatch)
		}
		width := typeDef.ElementLen
		mask := (uint64(1)<<width - 1) << shift
		raw, err := readUnsignedBits(buffer[offset:offset+uint64(typeDef.Size)], typeDef.Size)
		if err != nil {
			return nil, err
		}
		raw = (raw &^ mask) | ((val.Uint << shift) & mask)
		if err := writeUnsignedBits(buffer[offset:offset+uint64(typeDef.Size)], typeDef.Size, raw); err != nil {
			return nil, err
		}
		return buffer, nil

	case PrimitiveRecursive, PrimitiveDeferred:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedPrimitive, typeDef.Primitive)

	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedPrimitive, typeDef.Primitive)
	}
}

type scalarBits struct {
	i int64
	u uint64
	f float64
}

func readScalarBits(b []byte, kind ScalarKind, size uint32) (scalarBits, error) {
	switch {
	case kind == ScalarSigned && size == 1:
		return scalarBits{i: int64(int8(b[0]))}, nil
	case kind == ScalarSigned && size == 2:
		return scalarBits{i: int64(int16(binary.LittleEndian.Uint16(b)))}, nil
	case kind == ScalarSigned && size == 4:
		return scalarBits{i: int64(int32(binary.LittleEndian.Uint32(b)))}, nil
	case kind == ScalarSigned && size == 8:
		return scalarBits{i: int64(binary.LittleEndian.Uint64(b))}, nil
	case kind == ScalarUnsigned && size == 1:
		return scalarBits{u: uint64(b[0])}, nil
	case kind == ScalarUnsigned && size == 2:
		return scalarBits{u: uint64(binary.LittleEndian.Uint16(b))}, nil
	case kind == ScalarUnsigned && size == 4:
		return scalarBits{u: uint64(binary.LittleEndian.Uint32(b))}, nil
	case kind == ScalarUnsigned && size == 8:
		return scalarBits{u: binary.LittleEndian.Uint64(b)}, nil
	case kind == ScalarFloat && size == 4:
		return scalarBits{f: float64(math.Float32frombits(binary.LittleEndian.Uint32(b)))}, nil
	case kind == ScalarFloat && size == 8:
		return scalarBits{f: math.Float64frombits(binary.LittleEndian.Uint64(b))}, nil
	default:
		return scalarBits{}, fmt.Errorf("%w: %s/%d", ErrUnsupportedScalar, kind, size)
	}
}

func writeScalarBits(b []byte, kind ScalarKind, size uint32, val ReflectedValue) error {
	switch {
	case kind == ScalarSigned && size == 1:
		b[0] = byte(int8(val.Int))
	case kind == ScalarSigned && size == 2:
		binary.LittleEndian.PutUint16(b, uint16(int16(val.Int)))
	case kind == ScalarSigned && size == 4:
		binary.LittleEndian.PutUint32(b, uint32(int32(val.Int)))
	case kind == ScalarSigned && size == 8:
		binary.LittleEndian.PutUint64(b, uint64(val.Int))
	case kind == ScalarUnsigned && size == 1:
		b[0] = byte(val.Uint)
	case kind == ScalarUnsigned && size == 2:
		binary.LittleEndian.PutUint16(b, uint16(val.Uint))
	case kind == ScalarUnsigned && size == 4:
		binary.LittleEndian.PutUint32(b, uint32(val.Uint))
	case kind == ScalarUnsigned && size == 8:
		binary.LittleEndian.PutUint64(b, val.Uint)
	case kind == ScalarFloat && size == 4:
		binary.LittleEndian.PutUint32(b, math.Float32bits(float32(val.Float)))
	case kind == ScalarFloat && size == 8:
		binary.LittleEndian.PutUint64(b, math.Float64bits(val.Float))
	default:
		return fmt.Errorf("%w: %s/%d", ErrUnsupportedScalar, kind, size)
	}
	return nil
}

func readUnsignedBits(b []byte, size uint32) (uint64, error) {
	switch size {
	case 1:
		return uint64(b[0]), nil
	case 2:
		return uint64(binary.LittleEndian.Uint16(b)), nil
	case 4:
		return uint64(binary.LittleEndian.Uint32(b)), nil
	case 8:
		return binary.LittleEndian.Uint64(b), nil
	default:
		return 0, fmt.Errorf("%w: bitfield width %d", ErrUnsupportedScalar, size)
	}
}

func writeUnsignedBits(b []byte, size uint32, v uint64) error {
	switch size {
	case 1:
		b[0] = byte(v)
	case 2:
		binary.LittleEndian.PutUint16(b, uint16(v))
	case 4:
		binary.LittleEndian.PutUint32(b, uint32(v))
	case 8:
		binary.LittleEndian.PutUint64(b, v)
	default:
		return fmt.Errorf("%w: bitfield width %d", ErrUnsupportedScalar, size)
	}
	return nil
}

func checkBounds(buffer []byte, offset, size uint64) error {
	if offset+size > uint64(len(buffer)) || offset+size < offset {
		return fmt.Errorf("%w: [%d, %d) outside buffer of length %d", ErrSliceOutsideBuffer, offset, offset+size, len(buffer))
	}
	return nil
}

func checkAlignment(buffer []byte, offset, alignment uint64) error {
	if alignment <= 1 {
		return nil
	}
	if offset%alignment != 0 {
		return fmt.Errorf("%w: offset %d not aligned to %d", ErrAlignment, offset, alignment)
	}
	return nil
}

func readU64At(buffer []byte, offset uint64) (uint64, error) {
	if err := checkBounds(buffer, offset, 8); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(buffer[offset : offset+8]), nil
}

func writeU64At(buffer []byte, offset, v uint64) ([]byte, error) {
	if err := checkBounds(buffer, offset, 8); err != nil {
		return nil, err
	}
	binary.LittleEndian.PutUint64(buffer[offset:offset+8], v)
	return buffer, nil
}

// appendAligned grows buffer so that a region of size bytes, aligned to
// alignment, exists at its tail, and returns the grown buffer plus the
// aligned offset the region starts at.
func appendAligned(buffer []byte, alignment, size uint64) ([]byte, uint64, error) {
	if alignment == 0 {
		alignment = 1
	}
	tail := alignUp(uint64(len(buffer)), alignment)
	grown := make([]byte, tail+size)
	copy(grown, buffer)
	return grown, tail, nil
}

func readBufferNullString(buffer []byte, offset uint64) (string, error) {
	if offset > uint64(len(buffer)) {
		return "", fmt.Errorf("%w: string offset %d outside buffer of length %d", ErrSliceOutsideBuffer, offset, len(buffer))
	}
	end := offset
	for end < uint64(len(buffer)) && buffer[end] != 0 {
		end++
	}
	if end >= uint64(len(buffer)) {
		return "", fmt.Errorf("%w: unterminated string at offset %d", ErrSliceOutsideBuffer, offset)
	}
	return string(buffer[offset:end]), nil
}
