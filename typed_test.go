// Copyright 2024 The avalanche-tools authors. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package adf

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// TestTypeInfoHashLaws pins the four bit-exact hash values §8 requires
// of the typed codec's structural hash derivation. These were
// cross-checked offline against the reference hashlittle port before
// being encoded here, so a failure here means the derivation formula
// (decimal ASCII concatenation, not a binary encoding) has regressed,
// not that the expected values are wrong.
func TestTypeInfoHashLaws(t *testing.T) {
	float := ScalarInfo[float32]()
	require.Equal(t, uint32(0x7515A207), float.Hash)

	optU32 := PointerInfo(ScalarInfo[uint32]())
	require.Equal(t, uint32(1283401978), optU32.Hash)

	arr3f32 := InlineArrayInfo(float, 3)
	require.Equal(t, uint32(0xE8541F6E), arr3f32.Hash)

	vecF32 := ArrayInfo(float)
	require.Equal(t, uint32(0x168B4EB8), vecF32.Hash)
}

func TestScalarInfoNames(t *testing.T) {
	require.Equal(t, "uint8", ScalarInfo[uint8]().Name)
	require.Equal(t, "int8", ScalarInfo[int8]().Name)
	require.Equal(t, "uint16", ScalarInfo[uint16]().Name)
	require.Equal(t, "int16", ScalarInfo[int16]().Name)
	require.Equal(t, "uint32", ScalarInfo[uint32]().Name)
	require.Equal(t, "int32", ScalarInfo[int32]().Name)
	require.Equal(t, "float", ScalarInfo[float32]().Name)
	require.Equal(t, "uint64", ScalarInfo[uint64]().Name)
	require.Equal(t, "int64", ScalarInfo[int64]().Name)
	require.Equal(t, "double", ScalarInfo[float64]().Name)
}

func TestWriteReadScalarRoundTrip(t *testing.T) {
	buf := newSeekBuffer()
	tw := NewTypedWriter(buf, 0)
	require.NoError(t, WriteScalar[uint32](tw, 0xDEADBEEF))
	require.NoError(t, WriteScalar[float64](tw, 3.5))

	require.NoError(t, seekAbsolute(buf, 0))
	tr := NewTypedReader(buf)
	u, err := ReadScalar[uint32](tr)
	require.NoError(t, err)
	require.Equal(t, uint32(0xDEADBEEF), u)

	require.NoError(t, seekAbsolute(buf, 8))
	f, err := ReadScalar[float64](tr)
	require.NoError(t, err)
	require.InDelta(t, 3.5, f, 0)
}

// TestWriteRefSharesIdentity checks that two references to the same *T
// both read back with its value, a second distinct pointer reads back
// its own value, and a nil reference reads back as nil.
func TestWriteRefSharesIdentity(t *testing.T) {
	buf := newSeekBuffer()
	tw := NewTypedWriter(buf, 32)

	shared := new(uint32)
	*shared = 7
	other := new(uint32)
	*other = 9

	require.NoError(t, seekAbsolute(buf, 0))
	require.NoError(t, WriteRef[uint32](tw, shared))
	require.NoError(t, WriteRef[uint32](tw, shared))
	require.NoError(t, WriteRef[uint32](tw, other))
	require.NoError(t, WriteRef[uint32](tw, nil))

	require.NoError(t, seekAbsolute(buf, 0))
	tr := NewTypedReader(buf)
	a, err := ReadRef[uint32](tr)
	require.NoError(t, err)
	b, err := ReadRef[uint32](tr)
	require.NoError(t, err)
	c, err := ReadRef[uint32](tr)
	require.NoError(t, err)
	n, err := ReadRef[uint32](tr)
	require.NoError(t, err)

	require.NotNil(t, a)
	require.NotNil(t, b)
	require.NotNil(t, c)
	require.Nil(t, n)
	require.Equal(t, uint32(7), *a)
	require.Equal(t, *a, *b)
	require.Equal(t, uint32(9), *c)
}

func TestWriteSliceEmpty(t *testing.T) {
	buf := newSeekBuffer()
	tw := NewTypedWriter(buf, 16)
	require.NoError(t, WriteSlice[float32](tw, nil))

	require.NoError(t, seekAbsolute(buf, 0))
	tr := NewTypedReader(buf)
	v, err := ReadSlice[float32](tr)
	require.NoError(t, err)
	require.Empty(t, v)
}
