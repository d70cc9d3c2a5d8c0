// Copyright 2024 The avalanche-tools authors. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package adf

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPrimitiveString(t *testing.T) {
	require.Equal(t, "Scalar", PrimitiveScalar.String())
	require.Equal(t, "Deferred", PrimitiveDeferred.String())
	require.Contains(t, Primitive(999).String(), "999")
}

func TestScalarKindString(t *testing.T) {
	require.Equal(t, "Signed", ScalarSigned.String())
	require.Equal(t, "Unsigned", ScalarUnsigned.String())
	require.Equal(t, "Float", ScalarFloat.String())
	require.Contains(t, ScalarKind(7).String(), "7")
}

func TestPackUnpackOffsets(t *testing.T) {
	packed := packOffsets(0x00ABCDEF, 5)
	byteOffset, bitOffset := unpackOffsets(packed)
	require.Equal(t, uint32(0x00ABCDEF), byteOffset)
	require.Equal(t, uint8(5), bitOffset)
}

func TestPackOffsetsMasksByteOffsetTo24Bits(t *testing.T) {
	packed := packOffsets(0xFFFFFFFF, 0xFF)
	byteOffset, bitOffset := unpackOffsets(packed)
	require.Equal(t, uint32(0x00FFFFFF), byteOffset)
	require.Equal(t, uint8(0xFF), bitOffset)
}
