// Copyright 2024 The avalanche-tools authors. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package adf

import "fmt"

// ReflectionContext is a type registry indexed by type hash (component
// G). It is built by loading the built-in library first and then any
// number of extension-keyed libraries that match a file suffix (e.g.
// "effc", "xlsc"); loading a library means parsing it as an ordinary
// ADF file and copying its type list into the registry, last write
// wins on hash collision. A *ReflectionContext may be shared
// read-only between goroutines once built; nothing here mutates it
// concurrently with lookups in normal use.
type ReflectionContext struct {
	types map[uint32]*Type
}

// NewReflectionContext returns an empty context.
func NewReflectionContext() *ReflectionContext {
	return &ReflectionContext{types: make(map[uint32]*Type)}
}

// GetType looks up a type by hash.
func (ctx *ReflectionContext) GetType(typeHash uint32) (*Type, error) {
	t, ok := ctx.types[typeHash]
	if !ok {
		return nil, fmt.Errorf("%w: %#x", ErrUnknownType, typeHash)
	}
	return t, nil
}

// GetTypeByName looks up a type by its declared name, for tooling (the
// code generator) that addresses types the way a person would rather
// than by hash. Linear in the number of registered types; not used on
// any hot path.
func (ctx *ReflectionContext) GetTypeByName(name string) (*Type, error) {
	for _, t := range ctx.types {
		if t.Name == name {
			return t, nil
		}
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownType, name)
}

// LoadTypesFromFile merges every type declared in file into the
// context, overwriting any existing entry with the same hash.
func (ctx *ReflectionContext) LoadTypesFromFile(file *File) {
	for _, t := range file.Types {
		ctx.types[t.TypeHash] = t
	}
}

// LoadTypesFromLibrary parses data as an ADF file and merges its types,
// the way loading a type library (itself an ordinary ADF file) works.
func (ctx *ReflectionContext) LoadTypesFromLibrary(data []byte, opts *ReadOptions) error {
	lib, err := Parse(data, opts)
	if err != nil {
		return fmt.Errorf("adf: loading type library: %w", err)
	}
	ctx.LoadTypesFromFile(lib)
	return nil
}

// TypeLibrary is a named, lazily-loaded ADF file contributing types to
// a ReflectionContext. Extension is the file suffix (without the dot)
// that selects this library, e.g. "xlsc" or "effc"; the actual library
// contents are out of scope here (see DESIGN.md) — Load supplies them.
type TypeLibrary struct {
	Extension string
	Load      func() (*File, error)
}

var registeredLibraries []TypeLibrary

// RegisterTypeLibrary adds lib to the set FromExtension consults. It is
// meant to be called from package init in a consumer that embeds actual
// library data; this module ships no built-in library contents.
func RegisterTypeLibrary(lib TypeLibrary) {
	registeredLibraries = append(registeredLibraries, lib)
}

// FromExtension builds a ReflectionContext from the built-in library
// (if one has been registered under the "" extension) plus every
// registered library whose Extension matches extension. The built-in
// library is loaded first, so extension types win on hash collision.
func FromExtension(extension string, base *ReflectionContext) (*ReflectionContext, error) {
	ctx := NewReflectionContext()
	if base != nil {
		for hash, t := range base.types {
			ctx.types[hash] = t
		}
	}
	for _, builtin := range []bool{true, false} {
		for _, lib := range registeredLibraries {
			if (lib.Extension == "") != builtin || (!builtin && lib.Extension != extension) {
				continue
			}
			file, err := lib.Load()
			if err != nil {
				return nil, fmt.Errorf("adf: loading type library for extension %q: %w", extension, err)
			}
			ctx.LoadTypesFromFile(file)
		}
	}
	return ctx, nil
}
