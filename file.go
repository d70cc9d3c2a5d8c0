// Copyright 2024 The avalanche-tools authors. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package adf

import (
	"bytes"
	"fmt"
	"io"
	"os"

	mmap "github.com/edsrzf/mmap-go"

	"github.com/avalanche-tools/adf/log"
)

// Version identifies the on-disk ADF container revision. Only V4 is
// defined; endian swapping and any other version are out of scope.
type Version uint32

const (
	// VersionV4 is the only version this package understands.
	VersionV4 Version = 4
)

const (
	headerMagic     = " FDA"
	headerFixedSize = 64 // magic + 10 u32 fields + 20 reserved bytes
)

// ReadOptions configures File parsing, mirroring pe.Options in shape.
type ReadOptions struct {
	// StrictReferences turns the default-instance fallback on an
	// unresolved instance reference into a hard error instead of a
	// tolerated quirk.
	StrictReferences bool

	// Logger receives non-fatal parse diagnostics. Defaults to a
	// stderr logger filtered to Warn and above.
	Logger log.Logger
}

// WriteOptions configures File serialization.
type WriteOptions struct {
	// BufferAlign overrides the on-disk instance buffer alignment,
	// which defaults to 128 bytes.
	BufferAlign uint32
}

func (o *WriteOptions) bufferAlign() uint64 {
	if o == nil || o.BufferAlign == 0 {
		return instanceBufferAlignment
	}
	return uint64(o.BufferAlign)
}

// File is the in-memory representation of one ADF container: an ordered
// type table, an ordered set of shared instances, an opaque hash list,
// and a description string.
type File struct {
	Version     Version
	Types       []*Type
	Instances   []*Instance
	Hashes      []uint32
	Description string

	// Anomalies records tolerated quirks encountered while parsing
	// (e.g. a default-instance fallback), mirroring pe.File.Anomalies.
	Anomalies []string

	logger *log.Helper
}

// New returns an empty File, ready to have types and instances appended.
func New() *File {
	return &File{
		Version: VersionV4,
		logger:  defaultHelper(nil),
	}
}

func defaultHelper(l log.Logger) *log.Helper {
	if l == nil {
		l = log.NewFilter(log.NewStdLogger(os.Stderr), log.FilterLevel(log.LevelWarn))
	}
	return log.NewHelper(l)
}

// Open memory-maps path read-only and parses it as an ADF file, the way
// pe.New does for PE binaries. The mapping is released before Open
// returns; File.Instances own independently-allocated buffers.
func Open(path string, opts *ReadOptions) (*File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	data, err := mmap.Map(f, mmap.RDONLY, 0)
	if err != nil {
		return nil, err
	}
	defer data.Unmap()

	return Parse(data, opts)
}

// Parse parses an in-memory ADF buffer, the way pe.NewBytes does.
func Parse(data []byte, opts *ReadOptions) (*File, error) {
	return ReadFrom(bytes.NewReader(data), opts)
}

// ReadFrom parses an ADF container from any io.ReadSeeker.
func ReadFrom(r io.ReadSeeker, opts *ReadOptions) (*File, error) {
	rd := newReader(r)

	hdr, err := readHeader(rd)
	if err != nil {
		return nil, err
	}

	file := &File{
		Version:     Version(hdr.version),
		Description: hdr.description,
	}
	strict := opts != nil && opts.StrictReferences
	var logger log.Logger
	if opts != nil {
		logger = opts.Logger
	}
	file.logger = defaultHelper(logger)

	// String and instance pools must be fully populated before types
	// are read: member default values and member names reference them
	// by pool index or name hash.
	strings, err := readStringPool(rd, hdr)
	if err != nil {
		return nil, fmt.Errorf("adf: reading string pool: %w", err)
	}

	instances, err := readInstances(rd, hdr, strings)
	if err != nil {
		return nil, fmt.Errorf("adf: reading instances: %w", err)
	}
	instPool := &instancePool{instances: instances}

	hashes, err := readHashes(rd, hdr)
	if err != nil {
		return nil, fmt.Errorf("adf: reading hash list: %w", err)
	}

	types, anomalies, err := readTypes(rd, hdr, strings, instPool, strict)
	if err != nil {
		return nil, fmt.Errorf("adf: reading type table: %w", err)
	}
	for _, a := range anomalies {
		file.logger.Warnf("%s", a)
	}

	file.Types = types
	file.Instances = instances
	file.Hashes = hashes
	file.Anomalies = anomalies
	return file, nil
}

// WriteFile serializes f to path, truncating/creating it as needed.
// *os.File already satisfies io.WriteSeeker, so no buffering wrapper is
// required for the two-pass write this format needs.
func (f *File) WriteFile(path string, opts *WriteOptions) error {
	out, err := os.Create(path)
	if err != nil {
		return err
	}
	defer out.Close()
	return f.WriteTo(out, opts)
}

// Marshal serializes f to an in-memory byte slice.
func (f *File) Marshal(opts *WriteOptions) ([]byte, error) {
	buf := newSeekBuffer()
	if err := f.WriteTo(buf, opts); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// WriteTo performs the container codec's two-pass write against any
// io.WriteSeeker: reserve the header, emit the type table (which may
// grow the string and instance pools), emit the instance table and
// buffers, emit the string pool, then seek back and fill in the
// header's offsets/counts/size.
func (f *File) WriteTo(w io.WriteSeeker, opts *WriteOptions) error {
	wr := newWriter(w)

	headerPos, err := wr.pos()
	if err != nil {
		return err
	}
	hdr := header{version: uint32(f.Version), description: f.Description}
	if err := writeHeader(wr, hdr); err != nil {
		return err
	}

	strings := &stringPool{}
	instances := &instancePool{instances: append([]*Instance(nil), f.Instances...)}

	// Write types; this may lazily grow both pools.
	if len(f.Types) > 0 {
		off, err := wr.align(16)
		if err != nil {
			return err
		}
		hdr.typeOffset = uint32(off)
		for _, t := range f.Types {
			if err := writeType(wr, t, strings, instances); err != nil {
				return fmt.Errorf("adf: writing type %q: %w", t.Name, err)
			}
		}
		hdr.typeCount = uint32(len(f.Types))
	}

	// Write instance table: placeholders first, then buffers, then
	// back-patch each placeholder once its buffer_offset is known.
	hdr.instanceCount = uint32(len(instances.instances))
	if hdr.instanceCount > 0 {
		off, err := wr.align(16)
		if err != nil {
			return err
		}
		hdr.instanceOffset = uint32(off)
		for range instances.instances {
			if err := wr.write(make([]byte, 24)); err != nil {
				return err
			}
		}

		tail, err := wr.pos()
		if err != nil {
			return err
		}
		align := opts.bufferAlign()
		for i, inst := range instances.instances {
			if err := wr.seekAbsolute(tail); err != nil {
				return err
			}
			bufOffset, err := wr.align(align)
			if err != nil {
				return err
			}
			if err := wr.write(inst.Buffer); err != nil {
				return err
			}
			tail, err = wr.pos()
			if err != nil {
				return err
			}

			recordPos := uint64(hdr.instanceOffset) + uint64(i)*24
			if err := wr.seekAbsolute(recordPos); err != nil {
				return err
			}
			nameIdx, err := strings.intern(inst.Name)
			if err != nil {
				return err
			}
			nameHash := HashLittle32([]byte(inst.Name))
			if err := wr.writeU32(nameHash); err != nil {
				return err
			}
			if err := wr.writeU32(inst.TypeHash); err != nil {
				return err
			}
			if err := wr.writeU32(uint32(bufOffset)); err != nil {
				return err
			}
			if err := wr.writeU32(uint32(len(inst.Buffer))); err != nil {
				return err
			}
			if err := wr.writeU64(nameIdx); err != nil {
				return err
			}
		}
		if err := wr.seekAbsolute(tail); err != nil {
			return err
		}
	}

	// Write the string pool.
	hdr.stringCount = uint32(len(strings.strings))
	if hdr.stringCount > 0 {
		off, err := wr.align(16)
		if err != nil {
			return err
		}
		hdr.stringOffset = uint32(off)
		for _, s := range strings.strings {
			if err := wr.writeU8(uint8(len(s))); err != nil {
				return err
			}
		}
		for _, s := range strings.strings {
			if err := wr.writeNullString(s); err != nil {
				return err
			}
		}
	}

	// Hash list emission is reserved for a future revision; writers
	// omit it unconditionally.
	hdr.hashCount = 0
	hdr.hashOffset = 0

	finalPos, err := wr.pos()
	if err != nil {
		return err
	}
	hdr.fileSize = uint32(finalPos)

	if err := wr.seekAbsolute(headerPos); err != nil {
		return err
	}
	return writeHeader(wr, hdr)
}

// header is the fixed-layout file header.
type header struct {
	version        uint32
	instanceCount  uint32
	instanceOffset uint32
	typeCount      uint32
	typeOffset     uint32
	hashCount      uint32
	hashOffset     uint32
	stringCount    uint32
	stringOffset   uint32
	fileSize       uint32
	description    string
}

func readHeader(rd *reader) (header, error) {
	var hdr header
	magic, err := rd.readFull(4)
	if err != nil {
		return hdr, err
	}
	if string(magic) != headerMagic {
		return hdr, ErrBadMagic
	}
	fields := []*uint32{
		&hdr.version,
		&hdr.instanceCount, &hdr.instanceOffset,
		&hdr.typeCount, &hdr.typeOffset,
		&hdr.hashCount, &hdr.hashOffset,
		&hdr.stringCount, &hdr.stringOffset,
		&hdr.fileSize,
	}
	for _, f := range fields {
		v, err := rd.readU32()
		if err != nil {
			return hdr, err
		}
		*f = v
	}
	if hdr.version != uint32(VersionV4) {
		return hdr, fmt.Errorf("%w: %d", ErrUnsupportedVersion, hdr.version)
	}
	if _, err := rd.readFull(20); err != nil { // reserved
		return hdr, err
	}
	desc, err := rd.readNullString()
	if err != nil {
		return hdr, err
	}
	hdr.description = desc
	return hdr, nil
}

func writeHeader(wr *writer, hdr header) error {
	if err := wr.write([]byte(headerMagic)); err != nil {
		return err
	}
	values := []uint32{
		hdr.version, hdr.instanceCount, hdr.instanceOffset,
		hdr.typeCount, hdr.typeOffset,
		hdr.hashCount, hdr.hashOffset,
		hdr.stringCount, hdr.stringOffset,
		hdr.fileSize,
	}
	for _, v := range values {
		if err := wr.writeU32(v); err != nil {
			return err
		}
	}
	if err := wr.pad(20); err != nil {
		return err
	}
	return wr.writeNullString(hdr.description)
}

func readStringPool(rd *reader, hdr header) ([]string, error) {
	if hdr.stringOffset == 0 || hdr.stringCount == 0 {
		return nil, nil
	}
	if err := rd.seekAbsolute(uint64(hdr.stringOffset)); err != nil {
		return nil, err
	}
	lengths, err := rd.readFull(int(hdr.stringCount))
	if err != nil {
		return nil, err
	}
	strs := make([]string, hdr.stringCount)
	for i, length := range lengths {
		s, err := rd.readNullString()
		if err != nil {
			return nil, err
		}
		if len(s) != int(length) {
			return nil, fmt.Errorf("adf: string %d: expected %d bytes, got %d", i, length, len(s))
		}
		strs[i] = s
	}
	return strs, nil
}

func readInstances(rd *reader, hdr header, strs []string) ([]*Instance, error) {
	if hdr.instanceOffset == 0 || hdr.instanceCount == 0 {
		return nil, nil
	}
	if err := rd.seekAbsolute(uint64(hdr.instanceOffset)); err != nil {
		return nil, err
	}
	out := make([]*Instance, hdr.instanceCount)
	for i := range out {
		nameHash, err := rd.readU32()
		if err != nil {
			return nil, err
		}
		typeHash, err := rd.readU32()
		if err != nil {
			return nil, err
		}
		bufOffset, err := rd.readU32()
		if err != nil {
			return nil, err
		}
		bufSize, err := rd.readU32()
		if err != nil {
			return nil, err
		}
		nameIdx, err := rd.readU64()
		if err != nil {
			return nil, err
		}
		if nameIdx >= uint64(len(strs)) {
			return nil, fmt.Errorf("%w: instance %d name index %d", ErrUnresolvedReference, i, nameIdx)
		}
		name := strs[nameIdx]
		if got := HashLittle32([]byte(name)); got != nameHash {
			return nil, &InvalidNameHashError{Name: name, Got: nameHash, Want: got}
		}

		resumeAt, err := rd.pos()
		if err != nil {
			return nil, err
		}
		if err := rd.seekAbsolute(uint64(bufOffset)); err != nil {
			return nil, err
		}
		buffer := alignedAlloc(int(bufSize), instanceBufferAlignment)
		if bufSize > 0 {
			if _, err := io.ReadFull(rd.r, buffer); err != nil {
				return nil, err
			}
		}
		if err := rd.seekAbsolute(resumeAt); err != nil {
			return nil, err
		}

		out[i] = &Instance{Name: name, TypeHash: typeHash, Buffer: buffer}
	}
	return out, nil
}

func readHashes(rd *reader, hdr header) ([]uint32, error) {
	if hdr.hashOffset == 0 || hdr.hashCount == 0 {
		return nil, nil
	}
	if err := rd.seekAbsolute(uint64(hdr.hashOffset)); err != nil {
		return nil, err
	}
	out := make([]uint32, hdr.hashCount)
	for i := range out {
		v, err := rd.readU32()
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func readTypes(rd *reader, hdr header, strs []string, instances *instancePool, strict bool) ([]*Type, []string, error) {
	if hdr.typeOffset == 0 || hdr.typeCount == 0 {
		return nil, nil, nil
	}
	if err := rd.seekAbsolute(uint64(hdr.typeOffset)); err != nil {
		return nil, nil, err
	}
	var anomalies []string
	out := make([]*Type, hdr.typeCount)
	for i := range out {
		t, anoms, err := readType(rd, strs, instances, strict)
		if err != nil {
			return nil, nil, err
		}
		out[i] = t
		anomalies = append(anomalies, anoms...)
	}
	return out, anomalies, nil
}

func readType(rd *reader, strs []string, instances *instancePool, strict bool) (*Type, []string, error) {
	primitive, err := rd.readU32()
	if err != nil {
		return nil, nil, err
	}
	size, err := rd.readU32()
	if err != nil {
		return nil, nil, err
	}
	alignment, err := rd.readU32()
	if err != nil {
		return nil, nil, err
	}
	typeHash, err := rd.readU32()
	if err != nil {
		return nil, nil, err
	}
	nameIdx, err := rd.readU64()
	if err != nil {
		return nil, nil, err
	}
	name, err := resolveStringIndex(strs, nameIdx)
	if err != nil {
		return nil, nil, err
	}
	flags, err := rd.readU16()
	if err != nil {
		return nil, nil, err
	}
	scalarKind, err := rd.readU16()
	if err != nil {
		return nil, nil, err
	}
	elementHash, err := rd.readU32()
	if err != nil {
		return nil, nil, err
	}
	elementLen, err := rd.readU32()
	if err != nil {
		return nil, nil, err
	}

	t := &Type{
		Primitive:   Primitive(primitive),
		Size:        size,
		Alignment:   alignment,
		TypeHash:    typeHash,
		Name:        name,
		Flags:       TypeFlags(flags),
		ScalarKind:  ScalarKind(scalarKind),
		ElementHash: elementHash,
		ElementLen:  elementLen,
	}

	var anomalies []string
	switch t.Primitive {
	case PrimitiveStructure:
		count, err := readLengthPrefix(rd, lengthPrefixU32)
		if err != nil {
			return nil, nil, err
		}
		members := make([]Member, count)
		for i := range members {
			m, anoms, err := readMember(rd, strs, instances, strict)
			if err != nil {
				return nil, nil, err
			}
			members[i] = m
			anomalies = append(anomalies, anoms...)
		}
		t.Members = members
	case PrimitiveEnumeration:
		count, err := readLengthPrefix(rd, lengthPrefixU32)
		if err != nil {
			return nil, nil, err
		}
		entries := make([]EnumEntry, count)
		for i := range entries {
			e, err := readEnumEntry(rd, strs)
			if err != nil {
				return nil, nil, err
			}
			entries[i] = e
		}
		t.Enums = entries
	default:
		if _, err := rd.readFull(4); err != nil { // trailing padding
			return nil, nil, err
		}
	}
	return t, anomalies, nil
}

func readMember(rd *reader, strs []string, instances *instancePool, strict bool) (Member, []string, error) {
	var m Member
	nameIdx, err := rd.readU64()
	if err != nil {
		return m, nil, err
	}
	name, err := resolveStringIndex(strs, nameIdx)
	if err != nil {
		return m, nil, err
	}
	typeHash, err := rd.readU32()
	if err != nil {
		return m, nil, err
	}
	alignment, err := rd.readU32()
	if err != nil {
		return m, nil, err
	}
	packed, err := rd.readU32()
	if err != nil {
		return m, nil, err
	}
	byteOffset, bitOffset := unpackOffsets(packed)

	kind, err := rd.readU32()
	if err != nil {
		return m, nil, err
	}
	def := MemberDefault{Kind: MemberDefaultKind(kind)}
	var anomalies []string
	switch def.Kind {
	case DefaultUninitialized:
		if _, err := rd.readU64(); err != nil {
			return m, nil, err
		}
	case DefaultInline:
		v, err := rd.readU64()
		if err != nil {
			return m, nil, err
		}
		def.Inline = v
	case DefaultInstanceRef:
		v, err := rd.readU64()
		if err != nil {
			return m, nil, err
		}
		before := len(instances.instances)
		inst, err := instances.resolve(uint32(v), strict)
		if err != nil {
			return m, nil, err
		}
		if len(instances.instances) == before && instanceIsDefault(inst) {
			anomalies = append(anomalies, fmt.Sprintf(
				"member %q: unresolved instance reference %#x, substituted default instance", name, v))
		}
		def.Instance = inst
	default:
		return m, nil, fmt.Errorf("adf: unknown member default discriminator %d", kind)
	}

	m = Member{
		Name:       name,
		TypeHash:   typeHash,
		Alignment:  alignment,
		ByteOffset: byteOffset,
		BitOffset:  bitOffset,
		Default:    def,
	}
	return m, anomalies, nil
}

func instanceIsDefault(inst *Instance) bool {
	return inst != nil && inst.Name == "" && inst.TypeHash == 0 && inst.Buffer == nil
}

func readEnumEntry(rd *reader, strs []string) (EnumEntry, error) {
	nameIdx, err := rd.readU64()
	if err != nil {
		return EnumEntry{}, err
	}
	name, err := resolveStringIndex(strs, nameIdx)
	if err != nil {
		return EnumEntry{}, err
	}
	value, err := rd.readI32()
	if err != nil {
		return EnumEntry{}, err
	}
	return EnumEntry{Name: name, Value: value}, nil
}

func resolveStringIndex(strs []string, idx uint64) (string, error) {
	if idx >= uint64(len(strs)) {
		return "", fmt.Errorf("%w: string pool index %d", ErrUnresolvedReference, idx)
	}
	return strs[idx], nil
}

func writeType(wr *writer, t *Type, strings *stringPool, instances *instancePool) error {
	if err := wr.writeU32(uint32(t.Primitive)); err != nil {
		return err
	}
	if err := wr.writeU32(t.Size); err != nil {
		return err
	}
	if err := wr.writeU32(t.Alignment); err != nil {
		return err
	}
	if err := wr.writeU32(t.TypeHash); err != nil {
		return err
	}
	nameIdx, err := strings.intern(t.Name)
	if err != nil {
		return err
	}
	if err := wr.writeU64(nameIdx); err != nil {
		return err
	}
	if err := wr.writeU16(uint16(t.Flags)); err != nil {
		return err
	}
	if err := wr.writeU16(uint16(t.ScalarKind)); err != nil {
		return err
	}
	if err := wr.writeU32(t.ElementHash); err != nil {
		return err
	}
	if err := wr.writeU32(t.ElementLen); err != nil {
		return err
	}

	switch t.Primitive {
	case PrimitiveStructure:
		if err := writeLengthPrefix(wr, lengthPrefixU32, uint64(len(t.Members))); err != nil {
			return err
		}
		for _, m := range t.Members {
			if err := writeMember(wr, m, strings, instances); err != nil {
				return err
			}
		}
	case PrimitiveEnumeration:
		if err := writeLengthPrefix(wr, lengthPrefixU32, uint64(len(t.Enums))); err != nil {
			return err
		}
		for _, e := range t.Enums {
			if err := writeEnumEntry(wr, e, strings); err != nil {
				return err
			}
		}
	default:
		if err := wr.write(make([]byte, 4)); err != nil {
			return err
		}
	}
	return nil
}

func writeMember(wr *writer, m Member, strings *stringPool, instances *instancePool) error {
	nameIdx, err := strings.intern(m.Name)
	if err != nil {
		return err
	}
	if err := wr.writeU64(nameIdx); err != nil {
		return err
	}
	if err := wr.writeU32(m.TypeHash); err != nil {
		return err
	}
	if err := wr.writeU32(m.Alignment); err != nil {
		return err
	}
	if err := wr.writeU32(packOffsets(m.ByteOffset, m.BitOffset)); err != nil {
		return err
	}
	if err := wr.writeU32(uint32(m.Default.Kind)); err != nil {
		return err
	}
	switch m.Default.Kind {
	case DefaultUninitialized:
		return wr.writeU64(0)
	case DefaultInline:
		return wr.writeU64(m.Default.Inline)
	case DefaultInstanceRef:
		if m.Default.Instance == nil {
			return fmt.Errorf("adf: member %q has InstanceRef default with no instance", m.Name)
		}
		instances.register(m.Default.Instance)
		return wr.writeU64(uint64(HashLittle32([]byte(m.Default.Instance.Name))))
	default:
		return fmt.Errorf("adf: member %q has unknown default kind %d", m.Name, m.Default.Kind)
	}
}

func writeEnumEntry(wr *writer, e EnumEntry, strings *stringPool) error {
	nameIdx, err := strings.intern(e.Name)
	if err != nil {
		return err
	}
	if err := wr.writeU64(nameIdx); err != nil {
		return err
	}
	return wr.writeI32(e.Value)
}

// GetTypeByHash returns the type with the given hash, or nil.
func (f *File) GetTypeByHash(typeHash uint32) *Type {
	for _, t := range f.Types {
		if t.TypeHash == typeHash {
			return t
		}
	}
	return nil
}

// GetTypeByName returns the type with the given name, or nil.
func (f *File) GetTypeByName(name string) *Type {
	for _, t := range f.Types {
		if t.Name == name {
			return t
		}
	}
	return nil
}

// GetInstance returns the instance named name of the given type, or nil.
func (f *File) GetInstance(name string, typeDef *Type) *Instance {
	for _, inst := range f.Instances {
		if inst.TypeHash == typeDef.TypeHash && inst.Name == name {
			return inst
		}
	}
	return nil
}

// NewInstance allocates and appends a new zeroed instance named name of
// typeDef, failing if one with that name and type already exists.
func (f *File) NewInstance(name string, typeDef *Type) (*Instance, error) {
	if f.GetInstance(name, typeDef) != nil {
		return nil, fmt.Errorf("%w: %q", ErrDuplicateInstance, name)
	}
	inst := NewInstance(name, typeDef)
	f.Instances = append(f.Instances, inst)
	return inst, nil
}

// GetOrCreateInstance returns the existing instance named name of
// typeDef, or allocates and appends a new zeroed one.
func (f *File) GetOrCreateInstance(name string, typeDef *Type) *Instance {
	if inst := f.GetInstance(name, typeDef); inst != nil {
		return inst
	}
	inst := NewInstance(name, typeDef)
	f.Instances = append(f.Instances, inst)
	return inst
}

// RemoveInstance removes inst from f, returning whether it was found.
// Identity is by pointer: two instances are the same iff they share the
// same buffer object.
func (f *File) RemoveInstance(inst *Instance) bool {
	for i, existing := range f.Instances {
		if existing == inst {
			f.Instances = append(f.Instances[:i], f.Instances[i+1:]...)
			return true
		}
	}
	return false
}
