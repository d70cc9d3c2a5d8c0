// Copyright 2024 The avalanche-tools authors. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package adf

import (
	"io"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAlignUp(t *testing.T) {
	require.Equal(t, uint64(0), alignUp(0, 16))
	require.Equal(t, uint64(16), alignUp(1, 16))
	require.Equal(t, uint64(16), alignUp(16, 16))
	require.Equal(t, uint64(32), alignUp(17, 16))
}

func TestSeekBufferWriteSeekReadAt(t *testing.T) {
	buf := newSeekBuffer()
	_, err := buf.Write([]byte("hello"))
	require.NoError(t, err)

	pos, err := buf.Seek(0, io.SeekCurrent)
	require.NoError(t, err)
	require.EqualValues(t, 5, pos)

	pos, err = buf.Seek(2, io.SeekStart)
	require.NoError(t, err)
	require.EqualValues(t, 2, pos)

	_, err = buf.Write([]byte("XY"))
	require.NoError(t, err)
	require.Equal(t, []byte("heXYo"), buf.Bytes())

	out := make([]byte, 3)
	n, err := buf.ReadAt(out, 0)
	require.NoError(t, err)
	require.Equal(t, 3, n)
	require.Equal(t, []byte("heX"), out)
}

func TestSeekBufferGrowsOnWritePastEnd(t *testing.T) {
	buf := newSeekBuffer()
	require.NoError(t, seekAbsolute(buf, 4))
	_, err := buf.Write([]byte("Z"))
	require.NoError(t, err)
	require.Equal(t, []byte{0, 0, 0, 0, 'Z'}, buf.Bytes())
}

func TestSeekBufferNegativeSeekFails(t *testing.T) {
	buf := newSeekBuffer()
	_, err := buf.Seek(-1, io.SeekStart)
	require.Error(t, err)
}

func TestReaderWriterScalarRoundTrip(t *testing.T) {
	buf := newSeekBuffer()
	w := newWriter(buf)
	require.NoError(t, w.writeU8(0xAB))
	require.NoError(t, w.writeU16(0x1234))
	require.NoError(t, w.writeU32(0xDEADBEEF))
	require.NoError(t, w.writeU64(0x0102030405060708))
	require.NoError(t, w.writeNullString("hi"))

	require.NoError(t, seekAbsolute(buf, 0))
	r := newReader(buf)
	u8, err := r.readU8()
	require.NoError(t, err)
	require.Equal(t, uint8(0xAB), u8)

	u16, err := r.readU16()
	require.NoError(t, err)
	require.Equal(t, uint16(0x1234), u16)

	u32, err := r.readU32()
	require.NoError(t, err)
	require.Equal(t, uint32(0xDEADBEEF), u32)

	u64, err := r.readU64()
	require.NoError(t, err)
	require.Equal(t, uint64(0x0102030405060708), u64)

	s, err := r.readNullString()
	require.NoError(t, err)
	require.Equal(t, "hi", s)
}

func TestWriterAlign(t *testing.T) {
	buf := newSeekBuffer()
	w := newWriter(buf)
	require.NoError(t, w.writeU8(1))
	pos, err := w.align(8)
	require.NoError(t, err)
	require.EqualValues(t, 8, pos)
	require.Len(t, buf.Bytes(), 8)
}

func TestLengthPrefixRoundTrip(t *testing.T) {
	buf := newSeekBuffer()
	w := newWriter(buf)
	require.NoError(t, writeLengthPrefix(w, lengthPrefixU8, 200))
	require.NoError(t, writeLengthPrefix(w, lengthPrefixU32, 70000))

	require.NoError(t, seekAbsolute(buf, 0))
	r := newReader(buf)
	v8, err := readLengthPrefix(r, lengthPrefixU8)
	require.NoError(t, err)
	require.EqualValues(t, 200, v8)

	v32, err := readLengthPrefix(r, lengthPrefixU32)
	require.NoError(t, err)
	require.EqualValues(t, 70000, v32)
}

func TestWriteLengthPrefixOverflow(t *testing.T) {
	buf := newSeekBuffer()
	w := newWriter(buf)
	err := writeLengthPrefix(w, lengthPrefixU8, 256)
	require.ErrorIs(t, err, ErrLengthOverflow)
}
