// Copyright 2024 The avalanche-tools authors. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package adf

import (
	"testing"
	"unsafe"

	"github.com/stretchr/testify/require"
)

func TestInstanceReadWriteValueRoundTrip(t *testing.T) {
	info := ScalarInfo[uint32]()
	typeDef := &Type{
		Primitive:  PrimitiveScalar,
		Size:       uint32(info.Size),
		Alignment:  uint32(info.Align),
		TypeHash:   info.Hash,
		Name:       info.Name,
		ScalarKind: ScalarUnsigned,
	}
	ctx := NewReflectionContext()
	ctx.types[typeDef.TypeHash] = typeDef

	inst := NewInstance("x", typeDef)
	err := inst.WriteValue(ctx, typeDef, ReflectedValue{
		TypeHash: typeDef.TypeHash, Kind: PrimitiveScalar, ScalarKind: ScalarUnsigned, Uint: 123,
	})
	require.NoError(t, err)

	got, err := inst.ReadValue(ctx, typeDef)
	require.NoError(t, err)
	require.Equal(t, uint64(123), got.Uint)
}

func TestInstanceLockRejectsReentrantAccess(t *testing.T) {
	inst := &Instance{}
	require.NoError(t, inst.lock())
	require.ErrorIs(t, inst.lock(), ErrGateFailure)
	inst.unlock()
	require.NoError(t, inst.lock())
	inst.unlock()
}

func TestAlignedAllocIsAligned(t *testing.T) {
	buf := alignedAlloc(37, 128)
	require.Len(t, buf, 37)
	addr := uintptr(unsafe.Pointer(&buf[0]))
	require.Zero(t, addr%128)
}

func TestAlignedAllocZeroSize(t *testing.T) {
	require.Nil(t, alignedAlloc(0, 128))
}
