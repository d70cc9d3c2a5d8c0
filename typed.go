// Copyright 2024 The avalanche-tools authors. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package adf

import (
	"fmt"
	"io"
	"math"
	"reflect"
	"strconv"
	"unsafe"
)

// TypeInfo is the typed codec's per-type metadata (component H): a
// name, a structural hash, and a size/alignment pair. Go has no
// const-generic trait constants the way the format's origin toolchain
// does, so TypeInfo values are computed once (by ScalarInfo, or by
// composing PointerInfo/ArrayInfo/InlineArrayInfo over an element's own
// TypeInfo) rather than declared as per-type constants; the derivation
// rules themselves are preserved bit-exact.
type TypeInfo struct {
	Name  string
	Hash  uint32
	Size  uint64
	Align uint64
}

// Numeric is the set of Go kinds the typed codec knows how to read and
// write directly as scalars.
type Numeric interface {
	~uint8 | ~int8 | ~uint16 | ~int16 | ~uint32 | ~int32 | ~uint64 | ~int64 | ~float32 | ~float64
}

// scalarHash implements the CommonHash rule of §4.H: hash_little32 of
// the ASCII concatenation of the name, primitive tag, size, and
// alignment, each as a decimal integer with no separators. This exact
// scheme (not a binary encoding) is required to reproduce the four
// bit-exact hash laws; see typed_test.go.
func scalarHash(name string, tag Primitive, size, align uint64) uint32 {
	s := name + strconv.FormatUint(uint64(tag), 10) + strconv.FormatUint(size, 10) + strconv.FormatUint(align, 10)
	return HashLittle32([]byte(s))
}

// ScalarInfo returns T's TypeInfo. T must be one of the built-in
// numeric kinds; anything else panics, since Go generics have no way
// to express "any concrete numeric type" more narrowly than Numeric.
func ScalarInfo[T Numeric]() TypeInfo {
	var zero T
	switch any(zero).(type) {
	case uint8:
		return TypeInfo{Name: "uint8", Hash: scalarHash("uint8", PrimitiveScalar, 1, 1), Size: 1, Align: 1}
	case int8:
		return TypeInfo{Name: "int8", Hash: scalarHash("int8", PrimitiveScalar, 1, 1), Size: 1, Align: 1}
	case uint16:
		return TypeInfo{Name: "uint16", Hash: scalarHash("uint16", PrimitiveScalar, 2, 2), Size: 2, Align: 2}
	case int16:
		return TypeInfo{Name: "int16", Hash: scalarHash("int16", PrimitiveScalar, 2, 2), Size: 2, Align: 2}
	case uint32:
		return TypeInfo{Name: "uint32", Hash: scalarHash("uint32", PrimitiveScalar, 4, 4), Size: 4, Align: 4}
	case int32:
		return TypeInfo{Name: "int32", Hash: scalarHash("int32", PrimitiveScalar, 4, 4), Size: 4, Align: 4}
	case float32:
		return TypeInfo{Name: "float", Hash: scalarHash("float", PrimitiveScalar, 4, 4), Size: 4, Align: 4}
	case uint64:
		return TypeInfo{Name: "uint64", Hash: scalarHash("uint64", PrimitiveScalar, 8, 8), Size: 8, Align: 8}
	case int64:
		return TypeInfo{Name: "int64", Hash: scalarHash("int64", PrimitiveScalar, 8, 8), Size: 8, Align: 8}
	case float64:
		return TypeInfo{Name: "double", Hash: scalarHash("double", PrimitiveScalar, 8, 8), Size: 8, Align: 8}
	default:
		panic(fmt.Sprintf("adf: %T is not a supported scalar kind", zero))
	}
}

// StringInfo is the Arc<String>-equivalent TypeInfo: an indirect,
// identity-shared, NUL-terminated byte run.
func StringInfo() TypeInfo {
	return TypeInfo{Name: "String", Hash: scalarHash("String", PrimitiveString, 8, 8), Size: 8, Align: 8}
}

// PointerInfo derives the TypeInfo for an optional single reference to
// a value of the given element TypeInfo (the Option<Arc<T>> rule).
func PointerInfo(elem TypeInfo) TypeInfo {
	name := elem.Name + "*288"
	h1 := HashLittle32([]byte(name))
	hash := HashLittle32([]byte(strconv.FormatUint(uint64(h1), 10) + strconv.FormatUint(uint64(elem.Hash), 10)))
	return TypeInfo{Name: name, Hash: hash, Size: 8, Align: 8}
}

// ArrayInfo derives the TypeInfo for an unbounded, identity-shared
// array of the given element TypeInfo (the Arc<Vec<T>> rule).
func ArrayInfo(elem TypeInfo) TypeInfo {
	name := "A[" + elem.Name + "]3168"
	h1 := HashLittle32([]byte(name))
	hash := HashLittle32([]byte(strconv.FormatUint(uint64(h1), 10) + strconv.FormatUint(uint64(elem.Hash), 10)))
	return TypeInfo{Name: name, Hash: hash, Size: 16, Align: 8}
}

// InlineArrayInfo derives the TypeInfo for a fixed-length, inline
// (non-indirect) array of n elements of the given element TypeInfo.
func InlineArrayInfo(elem TypeInfo, n uint64) TypeInfo {
	name := "IA[" + elem.Name + "]4" + strconv.FormatUint(elem.Size*n, 10) + strconv.FormatUint(elem.Align, 10)
	h1 := HashLittle32([]byte(name))
	hash := HashLittle32([]byte(
		strconv.FormatUint(uint64(h1), 10) + strconv.FormatUint(uint64(elem.Hash), 10) + strconv.FormatUint(n, 10)))
	return TypeInfo{Name: name, Hash: hash, Size: elem.Size * n, Align: elem.Align}
}

// TypedReader drives the typed codec's read side against a seekable
// stream, maintaining the reader identity table §4.H describes: file
// offsets already decoded into an object are returned again rather
// than re-read, preserving aliasing.
type TypedReader struct {
	r    *reader
	seen map[uint64]typedRef
}

type typedRef struct {
	typ   reflect.Type
	value any
}

// NewTypedReader wraps r for typed-codec reads.
func NewTypedReader(r io.ReadSeeker) *TypedReader {
	return &TypedReader{r: newReader(r), seen: make(map[uint64]typedRef)}
}

// TypedWriter drives the typed codec's write side, maintaining the
// writer tail-offset and identity table §4.H describes: the next free
// position for indirect payloads, and a map from an object's identity
// (its address) to where it was already recorded.
type TypedWriter struct {
	w          *writer
	tailOffset uint64
	seen       map[uintptr]typedSlot
}

type typedSlot struct {
	offset uint64
	typ    reflect.Type
}

// NewTypedWriter wraps w for typed-codec writes. tailOffset is the
// absolute position indirect payloads are first appended at; callers
// that have already written a fixed-size header region pass its end.
func NewTypedWriter(w io.WriteSeeker, tailOffset uint64) *TypedWriter {
	return &TypedWriter{w: newWriter(w), tailOffset: tailOffset, seen: make(map[uintptr]typedSlot)}
}

// ReadScalar reads one T, honoring T's own alignment.
func ReadScalar[T Numeric](tr *TypedReader) (T, error) {
	var zero T
	info := ScalarInfo[T]()
	if err := tr.r.seekAbsolute(alignUpPos(mustPos(tr.r), info.Align)); err != nil {
		return zero, err
	}
	return readScalar[T](tr.r)
}

// WriteScalar writes one T, honoring T's own alignment.
func WriteScalar[T Numeric](tw *TypedWriter, v T) error {
	info := ScalarInfo[T]()
	if err := tw.w.seekAbsolute(alignUpPos(mustWPos(tw.w), info.Align)); err != nil {
		return err
	}
	return writeScalar(tw.w, v)
}

// ReadRef reads an Option<Arc<T>>-equivalent optional shared reference:
// a u64 offset, 0 meaning absent, any other value an already-seen or
// freshly-decoded *T.
func ReadRef[T Numeric](tr *TypedReader) (*T, error) {
	offset, err := tr.r.readU64()
	if err != nil {
		return nil, err
	}
	if offset == 0 {
		return nil, nil
	}
	wantType := reflect.TypeOf((*T)(nil))
	if ref, ok := tr.seen[offset]; ok {
		if ref.typ != wantType {
			return nil, &ReferenceTypeError{Offset: offset, Want: ref.typ.String(), Got: wantType.String()}
		}
		return ref.value.(*T), nil
	}

	resumeAt := mustPos(tr.r)
	if err := tr.r.seekAbsolute(offset); err != nil {
		return nil, err
	}
	v, err := ReadScalar[T](tr)
	if err != nil {
		return nil, err
	}
	if err := tr.r.seekAbsolute(resumeAt); err != nil {
		return nil, err
	}
	tr.seen[offset] = typedRef{typ: wantType, value: &v}
	return &v, nil
}

// WriteRef writes an optional shared reference to *v, deduplicating by
// pointer identity: the second write of the same *T records only its
// already-assigned offset.
func WriteRef[T Numeric](tw *TypedWriter, v *T) error {
	if v == nil {
		return tw.w.writeU64(0)
	}
	info := ScalarInfo[T]()
	key := uintptr(unsafe.Pointer(v))
	typ := reflect.TypeOf(v)
	if slot, ok := tw.seen[key]; ok {
		if slot.typ != typ {
			return &ReferenceTypeError{Offset: slot.offset, Want: slot.typ.String(), Got: typ.String()}
		}
		return tw.w.writeU64(slot.offset)
	}

	position := mustWPos(tw.w)
	if err := tw.w.seekAbsolute(tw.tailOffset); err != nil {
		return err
	}
	offset, err := tw.w.align(max64(info.Align, 16))
	if err != nil {
		return err
	}
	if err := tw.w.pad(info.Size); err != nil {
		return err
	}
	tw.seen[key] = typedSlot{offset: offset, typ: typ}
	tw.tailOffset = mustWPos(tw.w)

	if err := tw.w.seekAbsolute(offset); err != nil {
		return err
	}
	if err := writeScalar(tw.w, *v); err != nil {
		return err
	}

	if err := tw.w.seekAbsolute(position); err != nil {
		return err
	}
	return tw.w.writeU64(offset)
}

// ReadSlice reads an Arc<Vec<T>>-equivalent shared slice: a u64 offset
// and u64 count, both zero meaning empty.
func ReadSlice[T Numeric](tr *TypedReader) ([]T, error) {
	offset, err := tr.r.readU64()
	if err != nil {
		return nil, err
	}
	count, err := tr.r.readU64()
	if err != nil {
		return nil, err
	}
	if offset == 0 {
		return []T{}, nil
	}
	wantType := reflect.TypeOf([]T(nil))
	if ref, ok := tr.seen[offset]; ok {
		if ref.typ != wantType {
			return nil, &ReferenceTypeError{Offset: offset, Want: ref.typ.String(), Got: wantType.String()}
		}
		return ref.value.([]T), nil
	}

	resumeAt := mustPos(tr.r)
	if err := tr.r.seekAbsolute(offset); err != nil {
		return nil, err
	}
	out := make([]T, count)
	for i := range out {
		v, err := ReadScalar[T](tr)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	if err := tr.r.seekAbsolute(resumeAt); err != nil {
		return nil, err
	}
	tr.seen[offset] = typedRef{typ: wantType, value: out}
	return out, nil
}

// WriteSlice writes a shared slice, deduplicating by the slice's
// backing array identity the way Arc<Vec<T>> dedups by Arc::as_ptr.
func WriteSlice[T Numeric](tw *TypedWriter, v []T) error {
	if len(v) == 0 {
		if err := tw.w.writeU64(0); err != nil {
			return err
		}
		return tw.w.writeU64(0)
	}

	info := ScalarInfo[T]()
	key := uintptr(unsafe.Pointer(&v[0]))
	typ := reflect.TypeOf(v)
	if slot, ok := tw.seen[key]; ok {
		if slot.typ != typ {
			return &ReferenceTypeError{Offset: slot.offset, Want: slot.typ.String(), Got: typ.String()}
		}
		if err := tw.w.writeU64(slot.offset); err != nil {
			return err
		}
		return tw.w.writeU64(uint64(len(v)))
	}

	position := mustWPos(tw.w)
	if err := tw.w.seekAbsolute(tw.tailOffset); err != nil {
		return err
	}
	offset, err := tw.w.align(max64(info.Align, 16))
	if err != nil {
		return err
	}
	if err := tw.w.pad(info.Size * uint64(len(v))); err != nil {
		return err
	}
	tw.seen[key] = typedSlot{offset: offset, typ: typ}
	tw.tailOffset = mustWPos(tw.w)

	if err := tw.w.seekAbsolute(offset); err != nil {
		return err
	}
	for _, elem := range v {
		if err := writeScalar(tw.w, elem); err != nil {
			return err
		}
	}

	if err := tw.w.seekAbsolute(position); err != nil {
		return err
	}
	if err := tw.w.writeU64(offset); err != nil {
		return err
	}
	return tw.w.writeU64(uint64(len(v)))
}

func readScalar[T Numeric](r *reader) (T, error) {
	var zero T
	switch any(zero).(type) {
	case uint8:
		v, err := r.readU8()
		return any(v).(T), err
	case int8:
		v, err := r.readU8()
		return any(int8(v)).(T), err
	case uint16:
		v, err := r.readU16()
		return any(v).(T), err
	case int16:
		v, err := r.readU16()
		return any(int16(v)).(T), err
	case uint32:
		v, err := r.readU32()
		return any(v).(T), err
	case int32:
		v, err := r.readI32()
		return any(v).(T), err
	case float32:
		v, err := r.readU32()
		return any(math.Float32frombits(v)).(T), err
	case uint64:
		v, err := r.readU64()
		return any(v).(T), err
	case int64:
		v, err := r.readU64()
		return any(int64(v)).(T), err
	case float64:
		v, err := r.readU64()
		return any(math.Float64frombits(v)).(T), err
	default:
		return zero, fmt.Errorf("%w: %T", ErrUnsupportedScalar, zero)
	}
}

func writeScalar[T Numeric](w *writer, v T) error {
	switch val := any(v).(type) {
	case uint8:
		return w.writeU8(val)
	case int8:
		return w.writeU8(uint8(val))
	case uint16:
		return w.writeU16(val)
	case int16:
		return w.writeU16(uint16(val))
	case uint32:
		return w.writeU32(val)
	case int32:
		return w.writeI32(val)
	case float32:
		return w.writeU32(math.Float32bits(val))
	case uint64:
		return w.writeU64(val)
	case int64:
		return w.writeU64(uint64(val))
	case float64:
		return w.writeU64(math.Float64bits(val))
	default:
		return fmt.Errorf("%w: %T", ErrUnsupportedScalar, v)
	}
}

func alignUpPos(pos, alignment uint64) uint64 {
	if alignment <= 1 {
		return pos
	}
	return alignUp(pos, alignment)
}

func mustPos(r *reader) uint64 {
	p, _ := r.pos()
	return p
}

func mustWPos(w *writer) uint64 {
	p, _ := w.pos()
	return p
}

func max64(a, b uint64) uint64 {
	if a > b {
		return a
	}
	return b
}
