// Copyright 2024 The avalanche-tools authors. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package adf

import (
	"errors"
	"fmt"
)

// Sentinel errors for the container codec and reflective engine. Most
// call sites that can fail return one of these directly, or wrap it with
// the failing file position via fmt.Errorf and %w.
var (
	// ErrBadMagic is returned when the header's magic bytes do not
	// match " FDA".
	ErrBadMagic = errors.New("adf: magic bytes do not match \" FDA\"")

	// ErrUnsupportedVersion is returned when the header's version field
	// is not a version this package understands. Only V4 is defined.
	ErrUnsupportedVersion = errors.New("adf: unsupported version")

	// ErrUnresolvedReference is returned when a string-pool index or an
	// instance name hash does not resolve during read or write.
	ErrUnresolvedReference = errors.New("adf: unresolved reference")

	// ErrTypeMismatch is returned when a reflected value's type hash
	// disagrees with the expected site, or a stored primitive doesn't
	// match the value variant being written.
	ErrTypeMismatch = errors.New("adf: type mismatch")

	// ErrUnsupportedScalar is returned when a (scalar type, size) pair
	// has no defined scalar representation.
	ErrUnsupportedScalar = errors.New("adf: unsupported scalar type/size combination")

	// ErrAlignment is returned when a buffer slice does not satisfy the
	// declared alignment of the type being read or written there.
	ErrAlignment = errors.New("adf: misaligned access")

	// ErrSliceOutsideBuffer is returned when a read or write would
	// touch bytes outside the instance buffer.
	ErrSliceOutsideBuffer = errors.New("adf: slice outside of buffer")

	// ErrLengthOverflow is returned when a string is longer than 255
	// bytes (the string pool's length prefix is one byte), or when a
	// length-prefixed vector's element count exceeds its prefix type.
	ErrLengthOverflow = errors.New("adf: length exceeds prefix range")

	// ErrGateFailure is returned when an instance's buffer gate could
	// not be acquired for the duration of a read or write.
	ErrGateFailure = errors.New("adf: failed to lock buffer")

	// ErrUnsupportedPrimitive is returned by the reflective engine for
	// the Recursive and Deferred primitives, neither of which has a
	// known reference decoding.
	ErrUnsupportedPrimitive = errors.New("adf: unsupported primitive")

	// ErrUnknownType is returned when a type hash does not resolve in
	// the active ReflectionContext.
	ErrUnknownType = errors.New("adf: unknown type hash")

	// ErrDuplicateInstance is returned by File.NewInstance when an
	// instance with the same name and type already exists; callers that
	// want get-or-create semantics should use File.GetOrCreateInstance.
	ErrDuplicateInstance = errors.New("adf: instance already exists")
)

// InvalidNameHashError reports that an instance record's stored name
// hash does not equal hash_little32 of its name bytes.
type InvalidNameHashError struct {
	Name string
	Got  uint32
	Want uint32
}

func (e *InvalidNameHashError) Error() string {
	return fmt.Sprintf("adf: invalid name hash for %q: got %#x, want %#x", e.Name, e.Got, e.Want)
}

// ReferenceTypeError reports that an already-registered typed-codec
// reference was written/read with a Go type different from the one it
// was first recorded with.
type ReferenceTypeError struct {
	Offset uint64
	Want   string
	Got    string
}

func (e *ReferenceTypeError) Error() string {
	return fmt.Sprintf("adf: reference at offset %d was recorded as %s, not %s", e.Offset, e.Want, e.Got)
}
