// Copyright 2024 The avalanche-tools authors. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package adf

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEmptyFileRoundTrip(t *testing.T) {
	f := New()
	f.Description = "empty"

	data, err := f.Marshal(nil)
	require.NoError(t, err)
	require.Len(t, data, headerFixedSize+len("empty")+1)

	got, err := Parse(data, nil)
	require.NoError(t, err)
	require.Equal(t, f.Version, got.Version)
	require.Equal(t, "empty", got.Description)
	require.Empty(t, got.Types)
	require.Empty(t, got.Instances)
}

func TestFileRoundTripWithScalarInstance(t *testing.T) {
	info := ScalarInfo[uint32]()
	typeDef := &Type{
		Primitive:  PrimitiveScalar,
		Size:       uint32(info.Size),
		Alignment:  uint32(info.Align),
		TypeHash:   info.Hash,
		Name:       info.Name,
		ScalarKind: ScalarUnsigned,
	}

	f := New()
	f.Types = append(f.Types, typeDef)
	inst, err := f.NewInstance("answer", typeDef)
	require.NoError(t, err)
	inst.Buffer[0], inst.Buffer[1], inst.Buffer[2], inst.Buffer[3] = 42, 0, 0, 0

	data, err := f.Marshal(nil)
	require.NoError(t, err)

	got, err := Parse(data, nil)
	require.NoError(t, err)
	require.Len(t, got.Types, 1)
	require.Len(t, got.Instances, 1)
	require.Equal(t, "answer", got.Instances[0].Name)
	require.Equal(t, typeDef.TypeHash, got.Instances[0].TypeHash)
	require.Equal(t, inst.Buffer, got.Instances[0].Buffer)
}

func TestFileRoundTripIsIdempotentUnderReparse(t *testing.T) {
	info := ScalarInfo[float32]()
	typeDef := &Type{
		Primitive:  PrimitiveScalar,
		Size:       uint32(info.Size),
		Alignment:  uint32(info.Align),
		TypeHash:   info.Hash,
		Name:       info.Name,
		ScalarKind: ScalarFloat,
	}
	f := New()
	f.Types = append(f.Types, typeDef)
	inst, err := f.NewInstance("pi", typeDef)
	require.NoError(t, err)
	copy(inst.Buffer, []byte{0xDB, 0x0F, 0x49, 0x40}) // 3.14159 as little-endian f32

	data1, err := f.Marshal(nil)
	require.NoError(t, err)
	reparsed, err := Parse(data1, nil)
	require.NoError(t, err)
	data2, err := reparsed.Marshal(nil)
	require.NoError(t, err)

	reparsedAgain, err := Parse(data2, nil)
	require.NoError(t, err)
	require.Equal(t, reparsed.Instances[0].Buffer, reparsedAgain.Instances[0].Buffer)
	require.Equal(t, reparsed.Instances[0].Name, reparsedAgain.Instances[0].Name)
}

func TestFileRoundTripMultipleInstancesShareStringPool(t *testing.T) {
	info := ScalarInfo[uint8]()
	typeDef := &Type{
		Primitive:  PrimitiveScalar,
		Size:       uint32(info.Size),
		Alignment:  uint32(info.Align),
		TypeHash:   info.Hash,
		Name:       info.Name,
		ScalarKind: ScalarUnsigned,
	}
	f := New()
	f.Types = append(f.Types, typeDef)
	a, err := f.NewInstance("same_name", typeDef)
	require.NoError(t, err)
	a.Buffer[0] = 1
	_, err = f.NewInstance("same_name_2", typeDef)
	require.NoError(t, err)

	data, err := f.Marshal(nil)
	require.NoError(t, err)
	got, err := Parse(data, nil)
	require.NoError(t, err)
	require.Len(t, got.Instances, 2)
}

func TestFileSizeMatchesBytesWritten(t *testing.T) {
	info := ScalarInfo[uint64]()
	typeDef := &Type{
		Primitive:  PrimitiveScalar,
		Size:       uint32(info.Size),
		Alignment:  uint32(info.Align),
		TypeHash:   info.Hash,
		Name:       info.Name,
		ScalarKind: ScalarUnsigned,
	}
	f := New()
	f.Types = append(f.Types, typeDef)
	_, err := f.NewInstance("x", typeDef)
	require.NoError(t, err)

	data, err := f.Marshal(nil)
	require.NoError(t, err)

	rd := newReader(sliceReader(data))
	hdr, err := readHeader(rd)
	require.NoError(t, err)
	require.EqualValues(t, len(data), hdr.fileSize)
}

func TestParseRejectsBadMagic(t *testing.T) {
	_, err := Parse(make([]byte, headerFixedSize), nil)
	require.ErrorIs(t, err, ErrBadMagic)
}

func TestNewInstanceRejectsDuplicateName(t *testing.T) {
	info := ScalarInfo[uint32]()
	typeDef := &Type{Primitive: PrimitiveScalar, Size: uint32(info.Size), Alignment: uint32(info.Align), TypeHash: info.Hash, Name: info.Name, ScalarKind: ScalarUnsigned}
	f := New()
	_, err := f.NewInstance("dup", typeDef)
	require.NoError(t, err)
	_, err = f.NewInstance("dup", typeDef)
	require.ErrorIs(t, err, ErrDuplicateInstance)
}
