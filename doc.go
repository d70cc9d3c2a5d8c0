// Copyright 2024 The avalanche-tools authors. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

// Package adf reads, writes, and transforms the Avalanche Data Format
// (ADF v4) container used by a family of game data files.
//
// An ADF file packages one or more named instances of statically-typed
// data together with a self-describing type table, a string pool, and
// auxiliary hash lists. Interpreting an instance's raw payload requires
// the type table that describes it, which may live in the same file or
// in an external type library (itself an ordinary ADF file).
//
// The package is organized around three layers:
//
//   - the container codec ([File], [Open], [Parse], [File.WriteTo]) that
//     handles the outer file layout: header, type table, instance
//     table, string pool and hash list;
//   - the reflective value engine ([ReflectionContext], [ReflectedValue])
//     that interprets an instance buffer against a type table without
//     any compile-time knowledge of the type;
//   - the typed codec ([TypeInfo], [ReadScalar], [WriteScalar],
//     [ReadRef], [WriteRef], [ReadSlice], [WriteSlice]) that
//     (de)serializes concrete Go types directly against a stream,
//     driven by per-type metadata.
package adf
