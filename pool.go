// Copyright 2024 The avalanche-tools authors. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package adf

import "fmt"

// stringPool is the value-keyed reference pool (spec.md §3/§4.C): on
// write, interning a string returns its pool position (deduplicated by
// equality); on read, the pool is simply the ordered strings table and
// lookups are by position. It exists only for the duration of one read
// or one write (spec.md §5) and is rebuilt from scratch every write.
type stringPool struct {
	strings []string
}

// intern returns s's position in the pool, appending it if this is the
// first occurrence. Fails if s is longer than 255 bytes: the pool's
// on-disk length prefix is one byte per string (spec.md §4.C).
func (p *stringPool) intern(s string) (uint64, error) {
	for i, existing := range p.strings {
		if existing == s {
			return uint64(i), nil
		}
	}
	if len(s) > 255 {
		return 0, fmt.Errorf("%w: string %q is %d bytes", ErrLengthOverflow, s, len(s))
	}
	p.strings = append(p.strings, s)
	return uint64(len(p.strings) - 1), nil
}

// get returns the string at the given pool position.
func (p *stringPool) get(index uint64) (string, error) {
	if index >= uint64(len(p.strings)) {
		return "", fmt.Errorf("%w: string pool index %d", ErrUnresolvedReference, index)
	}
	return p.strings[index], nil
}

// instancePool is the identity-keyed reference pool for instances
// (spec.md §3/§4.C). On write it is seeded with the File's own
// Instances (in order) and grows only if a member default references an
// instance not already present; instances are deduplicated by pointer
// identity, never by value. On read it is simply the ordered instance
// table, and lookup is by hash_little32(name) with a documented
// fallback quirk (see defaultInstance).
type instancePool struct {
	instances []*Instance
}

// register returns the pool identity (hash_little32 of the instance's
// name) for inst, adding it to the pool on first encounter. Mirrors
// AdfReferenceIdentity<Arc<AdfInstance>>::identity in the Rust original:
// lookup is by pointer identity, but the wire identity written is
// always the name hash.
func (p *instancePool) register(inst *Instance) uint32 {
	for _, existing := range p.instances {
		if existing == inst {
			return HashLittle32([]byte(existing.Name))
		}
	}
	p.instances = append(p.instances, inst)
	return HashLittle32([]byte(inst.Name))
}

// resolve looks up an instance by its on-disk identity (hash_little32 of
// its name). If strict is false and no instance matches, a default
// placeholder instance is synthesized instead of failing, matching real
// files that omit referenced defaults (spec.md §4.C, §9).
func (p *instancePool) resolve(identity uint32, strict bool) (*Instance, error) {
	for _, inst := range p.instances {
		if HashLittle32([]byte(inst.Name)) == identity {
			return inst, nil
		}
	}
	if strict {
		return nil, fmt.Errorf("%w: instance hash %#x", ErrUnresolvedReference, identity)
	}
	return defaultInstance(), nil
}
