// Copyright 2024 The avalanche-tools authors. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package adf

import (
	"sync"
	"unsafe"
)

// instanceBufferAlignment is the alignment ADF's on-disk layout always
// gives instance buffers (spec.md §3/§6), independent of the type's own
// declared alignment.
const instanceBufferAlignment = 128

// Instance is a named, aligned byte buffer realizing one value of a
// declared type (spec.md §3). Two instances are the same instance iff
// they share the same *Instance pointer; a File may hold several
// references to one Instance (its own Instances slice, and other
// instances' default-value references), so Instance is always handled
// through a pointer, mirroring the Rust original's Arc<AdfInstance>.
type Instance struct {
	Name     string
	TypeHash uint32

	// Buffer is the instance's payload. NewInstance and the container
	// reader size it to type.Size for the type TypeHash resolves to.
	// Mutations happen in place; the buffer is only replaced by a
	// reflective WriteValue, which may grow it to append indirect
	// payloads.
	Buffer []byte

	// gate serializes ReadValue/WriteValue against this
	// instance's buffer (spec.md §5): one reflective read or write may
	// be in flight on a given instance at a time. It is not held across
	// calls and never nested across instances.
	gate sync.Mutex
}

// NewInstance allocates an instance buffer sized and named for typeDef.
// The buffer is zeroed; ADF does not define a "default payload" beyond
// zero bytes.
func NewInstance(name string, typeDef *Type) *Instance {
	return &Instance{
		Name:     name,
		TypeHash: typeDef.TypeHash,
		Buffer:   make([]byte, typeDef.Size),
	}
}

// defaultInstance is the placeholder synthesized by the instance pool
// when an on-disk reference fails to resolve (spec.md §4.C, §9): a
// recognized quirk of real files that omit referenced defaults, not an
// error, unless ReadOptions.StrictReferences is set.
func defaultInstance() *Instance {
	return &Instance{}
}

// lock acquires the instance's gate, returning ErrGateFailure if it is
// already held for recursive (same-instance) reflective access. Go's
// sync.Mutex has no non-blocking failure mode beyond TryLock, which is
// exactly what's needed here: a single read or write at a time, no
// retry, no blocking wait per spec.md §5.
func (inst *Instance) lock() error {
	if !inst.gate.TryLock() {
		return ErrGateFailure
	}
	return nil
}

func (inst *Instance) unlock() { inst.gate.Unlock() }

// ReadValue interprets inst's buffer against typeDef under the
// instance's gate, the entry point spec.md §5 describes as one
// reflective read in flight per instance at a time.
func (inst *Instance) ReadValue(ctx *ReflectionContext, typeDef *Type) (ReflectedValue, error) {
	if err := inst.lock(); err != nil {
		return ReflectedValue{}, err
	}
	defer inst.unlock()
	return ctx.ReadValue(inst.Buffer, 0, 0, typeDef)
}

// WriteValue serializes val into inst's buffer against typeDef under
// the instance's gate, replacing Buffer with whatever WriteValue
// returns (indirect payloads may have grown it).
func (inst *Instance) WriteValue(ctx *ReflectionContext, typeDef *Type, val ReflectedValue) error {
	if err := inst.lock(); err != nil {
		return err
	}
	defer inst.unlock()
	buffer, err := ctx.WriteValue(inst.Buffer, 0, 0, typeDef, val)
	if err != nil {
		return err
	}
	inst.Buffer = buffer
	return nil
}

// alignedAlloc returns a size-byte slice whose address is a multiple of
// alignment. Go's allocator gives no alignment guarantee beyond the
// platform word size, so this over-allocates and returns a sub-slice at
// the first aligned address, the same technique used by
// alignment-sensitive buffer pools elsewhere in the ecosystem; it's safe
// here because Go's garbage collector does not move heap objects. The
// reflective engine does not check buffer addresses: WriteValue checks
// only that each offset it writes at is a multiple of the type's
// alignment, and ReadValue performs no alignment check.
func alignedAlloc(size int, alignment uintptr) []byte {
	if size == 0 {
		return nil
	}
	buf := make([]byte, size+int(alignment))
	addr := uintptr(unsafe.Pointer(&buf[0]))
	offset := (alignment - addr%alignment) % alignment
	return buf[offset : offset+uintptr(size) : offset+uintptr(size)]
}
