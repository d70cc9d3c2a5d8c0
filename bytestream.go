// Copyright 2024 The avalanche-tools authors. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package adf

import (
	"bytes"
	"fmt"
	"io"
)

// alignUp rounds position up to the nearest multiple of alignment.
// alignment must be a power of two.
func alignUp(position, alignment uint64) uint64 {
	a := alignment - 1
	return (position + a) & ^a
}

// pad writes n zero bytes to w.
func pad(w io.Writer, n uint64) error {
	if n == 0 {
		return nil
	}
	zeroes := make([]byte, n)
	_, err := w.Write(zeroes)
	return err
}

// align advances w to the next multiple of alignment by writing zero
// bytes, and returns the resulting absolute position. Mirrors the
// WriterExt::align helper in the Rust source.
func align(w io.WriteSeeker, alignment uint64) (uint64, error) {
	pos, err := w.Seek(0, io.SeekCurrent)
	if err != nil {
		return 0, err
	}
	target := alignUp(uint64(pos), alignment)
	if err := pad(w, target-uint64(pos)); err != nil {
		return 0, err
	}
	return target, nil
}

// seekAbsolute moves s to the absolute offset pos.
func seekAbsolute(s io.Seeker, pos uint64) error {
	_, err := s.Seek(int64(pos), io.SeekStart)
	return err
}

// readNullString reads bytes up to (not including) a terminating 0x00
// byte.
func readNullString(r io.Reader) (string, error) {
	var buf []byte
	one := make([]byte, 1)
	for {
		if _, err := io.ReadFull(r, one); err != nil {
			return "", err
		}
		if one[0] == 0 {
			break
		}
		buf = append(buf, one[0])
	}
	return string(buf), nil
}

// writeNullString writes s followed by a single 0x00 terminator.
func writeNullString(w io.Writer, s string) error {
	if _, err := w.Write([]byte(s)); err != nil {
		return err
	}
	_, err := w.Write([]byte{0})
	return err
}

// seekBuffer is a growable, seekable in-memory byte sink implementing
// io.Reader, io.Writer, io.Seeker, and io.ReaderAt. The container codec's two-pass
// write (reserve header, emit tables, seek back and fill in offsets)
// needs a seekable writer; neither bytes.Buffer nor bytes.Reader alone
// provide that, and no example in this module's lineage ships a
// seekable growable-buffer writer (the only candidate,
// github.com/orcaman/writerseeker, appears solely as a transitive
// dependency of an unrelated tool in the example corpus and its API
// cannot be verified offline), so this is a small hand-rolled type
// following the same Cursor<Vec<u8>> shape the Rust original uses for
// its in-memory write paths.
type seekBuffer struct {
	data []byte
	pos  int
}

func newSeekBuffer() *seekBuffer { return &seekBuffer{} }

func (b *seekBuffer) Write(p []byte) (int, error) {
	end := b.pos + len(p)
	if end > len(b.data) {
		grown := make([]byte, end)
		copy(grown, b.data)
		b.data = grown
	}
	copy(b.data[b.pos:end], p)
	b.pos = end
	return len(p), nil
}

func (b *seekBuffer) Seek(offset int64, whence int) (int64, error) {
	var newPos int64
	switch whence {
	case io.SeekStart:
		newPos = offset
	case io.SeekCurrent:
		newPos = int64(b.pos) + offset
	case io.SeekEnd:
		newPos = int64(len(b.data)) + offset
	default:
		return 0, fmt.Errorf("adf: invalid whence %d", whence)
	}
	if newPos < 0 {
		return 0, fmt.Errorf("adf: negative seek position %d", newPos)
	}
	b.pos = int(newPos)
	return newPos, nil
}

// Read reads from the current position, advancing it.
func (b *seekBuffer) Read(p []byte) (int, error) {
	if b.pos >= len(b.data) {
		return 0, io.EOF
	}
	n := copy(p, b.data[b.pos:])
	b.pos += n
	return n, nil
}

func (b *seekBuffer) ReadAt(p []byte, off int64) (int, error) {
	if off < 0 || int(off) > len(b.data) {
		return 0, io.EOF
	}
	n := copy(p, b.data[off:])
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

// Bytes returns the buffer's full backing slice.
func (b *seekBuffer) Bytes() []byte { return b.data }

// lengthPrefixKind identifies the width of a length-prefixed vector's
// count field. The ADF type table and enum lists always use u32le, but
// the primitive is kept general since §4.A describes 8/16/32/64-bit
// prefixes as one family.
type lengthPrefixKind int

const (
	lengthPrefixU8 lengthPrefixKind = iota
	lengthPrefixU16
	lengthPrefixU32
	lengthPrefixU64
)

func (k lengthPrefixKind) max() uint64 {
	switch k {
	case lengthPrefixU8:
		return 1<<8 - 1
	case lengthPrefixU16:
		return 1<<16 - 1
	case lengthPrefixU32:
		return 1<<32 - 1
	default:
		return ^uint64(0)
	}
}

func (k lengthPrefixKind) size() int {
	switch k {
	case lengthPrefixU8:
		return 1
	case lengthPrefixU16:
		return 2
	case lengthPrefixU32:
		return 4
	default:
		return 8
	}
}

func readLengthPrefix(r *reader, kind lengthPrefixKind) (uint64, error) {
	switch kind {
	case lengthPrefixU8:
		v, err := r.readU8()
		return uint64(v), err
	case lengthPrefixU16:
		v, err := r.readU16()
		return uint64(v), err
	case lengthPrefixU32:
		v, err := r.readU32()
		return uint64(v), err
	default:
		return r.readU64()
	}
}

func writeLengthPrefix(w *writer, kind lengthPrefixKind, count uint64) error {
	if count > kind.max() {
		return fmt.Errorf("%w: %d exceeds %d-byte prefix", ErrLengthOverflow, count, kind.size())
	}
	switch kind {
	case lengthPrefixU8:
		return w.writeU8(uint8(count))
	case lengthPrefixU16:
		return w.writeU16(uint16(count))
	case lengthPrefixU32:
		return w.writeU32(uint32(count))
	default:
		return w.writeU64(count)
	}
}

// reader is a thin little-endian cursor over an in-memory buffer,
// mirroring the style of saferwall/pe's ReadUint32/ReadUint16 helpers
// but built around a running position so the container codec can
// express "seek, read record, seek back" sequences directly.
type reader struct {
	r   io.ReadSeeker
	buf [8]byte
}

func newReader(r io.ReadSeeker) *reader { return &reader{r: r} }

func (rd *reader) pos() (uint64, error) {
	p, err := rd.r.Seek(0, io.SeekCurrent)
	return uint64(p), err
}

func (rd *reader) seekAbsolute(pos uint64) error { return seekAbsolute(rd.r, pos) }

func (rd *reader) readFull(n int) ([]byte, error) {
	b := make([]byte, n)
	if _, err := io.ReadFull(rd.r, b); err != nil {
		return nil, err
	}
	return b, nil
}

func (rd *reader) readU8() (uint8, error) {
	if _, err := io.ReadFull(rd.r, rd.buf[:1]); err != nil {
		return 0, err
	}
	return rd.buf[0], nil
}

func (rd *reader) readU16() (uint16, error) {
	if _, err := io.ReadFull(rd.r, rd.buf[:2]); err != nil {
		return 0, err
	}
	return uint16(rd.buf[0]) | uint16(rd.buf[1])<<8, nil
}

func (rd *reader) readU32() (uint32, error) {
	if _, err := io.ReadFull(rd.r, rd.buf[:4]); err != nil {
		return 0, err
	}
	return le32(rd.buf[:4]), nil
}

func (rd *reader) readI32() (int32, error) {
	v, err := rd.readU32()
	return int32(v), err
}

func (rd *reader) readU64() (uint64, error) {
	if _, err := io.ReadFull(rd.r, rd.buf[:8]); err != nil {
		return 0, err
	}
	lo := le32(rd.buf[:4])
	hi := le32(rd.buf[4:8])
	return uint64(lo) | uint64(hi)<<32, nil
}

func (rd *reader) readNullString() (string, error) { return readNullString(rd.r) }

// writer is the write-side counterpart of reader, operating over any
// io.WriteSeeker (an *os.File, or a *seekBuffer for in-memory writes).
type writer struct {
	w   io.WriteSeeker
	buf [8]byte
}

func newWriter(w io.WriteSeeker) *writer { return &writer{w: w} }

func (wr *writer) pos() (uint64, error) {
	p, err := wr.w.Seek(0, io.SeekCurrent)
	return uint64(p), err
}

func (wr *writer) seekAbsolute(pos uint64) error { return seekAbsolute(wr.w, pos) }

func (wr *writer) align(alignment uint64) (uint64, error) { return align(wr.w, alignment) }

func (wr *writer) pad(n uint64) error { return pad(wr.w, n) }

func (wr *writer) write(b []byte) error {
	_, err := wr.w.Write(b)
	return err
}

func (wr *writer) writeU8(v uint8) error {
	wr.buf[0] = v
	_, err := wr.w.Write(wr.buf[:1])
	return err
}

func (wr *writer) writeU16(v uint16) error {
	wr.buf[0] = byte(v)
	wr.buf[1] = byte(v >> 8)
	_, err := wr.w.Write(wr.buf[:2])
	return err
}

func (wr *writer) writeU32(v uint32) error {
	wr.buf[0] = byte(v)
	wr.buf[1] = byte(v >> 8)
	wr.buf[2] = byte(v >> 16)
	wr.buf[3] = byte(v >> 24)
	_, err := wr.w.Write(wr.buf[:4])
	return err
}

func (wr *writer) writeI32(v int32) error { return wr.writeU32(uint32(v)) }

func (wr *writer) writeU64(v uint64) error {
	if err := wr.writeU32(uint32(v)); err != nil {
		return err
	}
	return wr.writeU32(uint32(v >> 32))
}

func (wr *writer) writeNullString(s string) error { return writeNullString(wr.w, s) }

// sliceReader adapts a plain byte slice (e.g. an mmap'd file, or an
// instance buffer) to io.ReadSeeker without copying, for callers that
// already have the whole payload in memory.
func sliceReader(b []byte) io.ReadSeeker { return bytes.NewReader(b) }
