// Copyright 2024 The avalanche-tools authors. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package adf

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func u32Type() *Type {
	info := ScalarInfo[uint32]()
	return &Type{
		Primitive:  PrimitiveScalar,
		Size:       uint32(info.Size),
		Alignment:  uint32(info.Align),
		TypeHash:   info.Hash,
		Name:       info.Name,
		ScalarKind: ScalarUnsigned,
	}
}

func TestXMLRoundTripScalarInstance(t *testing.T) {
	typeDef := u32Type()

	file := New()
	file.Types = append(file.Types, typeDef)
	file.Instances = append(file.Instances, &Instance{
		Name:     "x",
		TypeHash: typeDef.TypeHash,
		Buffer:   []byte{0xEF, 0xBE, 0xAD, 0xDE},
	})

	ctx := NewReflectionContext()
	ctx.LoadTypesFromFile(file)

	doc, err := NewXMLFile(file, ctx, "adf")
	require.NoError(t, err)
	require.Len(t, doc.Instances, 1)
	require.Equal(t, "x", doc.Instances[0].Name)
	require.Equal(t, "u32", doc.Instances[0].TypeName)
	require.Equal(t, "3735928559", doc.Instances[0].Text)

	encoded, err := doc.Marshal()
	require.NoError(t, err)

	reparsed, err := ParseXMLFile(encoded)
	require.NoError(t, err)
	require.Equal(t, doc.Extension, reparsed.Extension)
	require.Equal(t, doc.Instances, reparsed.Instances)

	rebuilt, err := reparsed.ToFile(ctx)
	require.NoError(t, err)
	require.Len(t, rebuilt.Instances, 1)
	require.Equal(t, file.Instances[0].Name, rebuilt.Instances[0].Name)
	require.Equal(t, file.Instances[0].Buffer, rebuilt.Instances[0].Buffer)
}

func TestXMLRoundTripStructureWithPointer(t *testing.T) {
	u32 := u32Type()
	ptr := &Type{
		Primitive:   PrimitivePointer,
		Size:        8,
		Alignment:   8,
		TypeHash:    PointerInfo(ScalarInfo[uint32]()).Hash,
		Name:        PointerInfo(ScalarInfo[uint32]()).Name,
		ElementHash: u32.TypeHash,
	}
	strukt := &Type{
		Primitive: PrimitiveStructure,
		Size:      16,
		Alignment: 8,
		TypeHash:  HashLittle32([]byte("Point")),
		Name:      "Point",
		Members: []Member{
			{Name: "x", TypeHash: u32.TypeHash, Alignment: 4, ByteOffset: 0},
			{Name: "next", TypeHash: ptr.TypeHash, Alignment: 8, ByteOffset: 8},
		},
	}

	file := New()
	file.Types = append(file.Types, u32, ptr, strukt)

	buffer := make([]byte, 16)
	buffer[0], buffer[1], buffer[2], buffer[3] = 1, 0, 0, 0
	file.Instances = append(file.Instances, &Instance{
		Name:     "origin",
		TypeHash: strukt.TypeHash,
		Buffer:   buffer,
	})

	ctx := NewReflectionContext()
	ctx.LoadTypesFromFile(file)

	doc, err := NewXMLFile(file, ctx, "adf")
	require.NoError(t, err)
	require.Len(t, doc.Instances, 1)
	require.Equal(t, "Point", doc.Instances[0].TypeName)
	require.Len(t, doc.Instances[0].Members, 2)
	require.Equal(t, "x", doc.Instances[0].Members[0].Name)
	require.Equal(t, "1", doc.Instances[0].Members[0].Text)
	require.Equal(t, "next", doc.Instances[0].Members[1].Name)
	require.Equal(t, "Pointer[u32]", doc.Instances[0].Members[1].TypeName)
	require.Empty(t, doc.Instances[0].Members[1].Values)

	rebuilt, err := doc.ToFile(ctx)
	require.NoError(t, err)
	require.Len(t, rebuilt.Instances, 1)
	require.Equal(t, uint8(1), rebuilt.Instances[0].Buffer[0])
}
