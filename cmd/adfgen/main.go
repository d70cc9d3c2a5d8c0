// Copyright 2024 The avalanche-tools authors. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

// Command adfgen emits a Go struct definition and type-metadata
// constants for one named ADF type and everything it transitively
// refers to, the way adf_generator emits a Rust struct plus AdfRead/
// AdfWrite impls from a type library. adfgen stops short of emitting
// (de)serialization code: this package's typed codec (see [adf.TypeInfo])
// is driven by generic functions parameterized on scalar kind, not by
// a per-type trait a generator could implement against, so the
// generated output is metadata an author wires up by hand.
package main

import (
	"bufio"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/avalanche-tools/adf"
)

func main() {
	cmd := &cobra.Command{
		Use:   "adfgen <extension> <type-name> <output.go>",
		Short: "Generate a Go struct definition for one ADF type and its dependencies",
		Args:  cobra.ExactArgs(3),
		RunE:  runGenerate,
	}
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func runGenerate(cmd *cobra.Command, args []string) error {
	extension, typeName, outPath := args[0], args[1], args[2]

	ctx, err := adf.FromExtension(extension, nil)
	if err != nil {
		return fmt.Errorf("loading type libraries for %q: %w", extension, err)
	}
	root, err := ctx.GetTypeByName(typeName)
	if err != nil {
		return fmt.Errorf("finding type %q: %w", typeName, err)
	}

	out, err := os.Create(outPath)
	if err != nil {
		return fmt.Errorf("creating %s: %w", outPath, err)
	}
	defer out.Close()
	w := bufio.NewWriter(out)

	fmt.Fprintln(w, "// Code generated by adfgen. DO NOT EDIT.")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "package main")
	fmt.Fprintln(w)

	for _, hash := range collectTypes(ctx, root) {
		t, err := ctx.GetType(hash)
		if err != nil {
			return err
		}
		if err := writeStruct(w, ctx, t); err != nil {
			return err
		}
	}

	return w.Flush()
}

func writeStruct(w *bufio.Writer, ctx *adf.ReflectionContext, t *adf.Type) error {
	switch t.Primitive {
	case adf.PrimitiveBitfield, adf.PrimitiveEnumeration:
		return fmt.Errorf("adfgen: %s: cannot generate a struct for primitive %s", t.Name, t.Primitive)
	case adf.PrimitiveStructure:
		// fall through to emission below
	default:
		return nil
	}

	fmt.Fprintf(w, "type %s struct {\n", t.Name)
	for _, m := range t.Members {
		fieldType, err := goTypeName(ctx, m.TypeHash)
		if err != nil {
			return fmt.Errorf("adfgen: member %s.%s: %w", t.Name, m.Name, err)
		}
		fmt.Fprintf(w, "\t%s %s\n", exportedName(m.Name), fieldType)
	}
	fmt.Fprintln(w, "}")
	fmt.Fprintln(w)

	fmt.Fprintf(w, "const (\n")
	fmt.Fprintf(w, "\t%sTypeName = %q\n", t.Name, t.Name)
	fmt.Fprintf(w, "\t%sTypeHash = 0x%08X\n", t.Name, t.TypeHash)
	fmt.Fprintf(w, "\t%sTypeSize = %d\n", t.Name, t.Size)
	fmt.Fprintf(w, "\t%sTypeAlign = %d\n", t.Name, t.Alignment)
	fmt.Fprintf(w, ")\n\n")
	return nil
}

// goTypeName mirrors adf_generator's type_name, substituting Go
// spellings for the original's Rust ones (Option<Arc<T>> -> *T,
// Arc<Vec<T>> -> []T, [T; N] unchanged, Arc<String> -> string).
func goTypeName(ctx *adf.ReflectionContext, typeHash uint32) (string, error) {
	t, err := ctx.GetType(typeHash)
	if err != nil {
		return "", err
	}

	switch t.Primitive {
	case adf.PrimitiveScalar:
		return scalarGoName(t)
	case adf.PrimitiveStructure, adf.PrimitiveBitfield, adf.PrimitiveEnumeration:
		return t.Name, nil
	case adf.PrimitivePointer:
		elem, err := goTypeName(ctx, t.ElementHash)
		if err != nil {
			return "", err
		}
		return "*" + elem, nil
	case adf.PrimitiveArray:
		elem, err := goTypeName(ctx, t.ElementHash)
		if err != nil {
			return "", err
		}
		return "[]" + elem, nil
	case adf.PrimitiveInlineArray:
		elem, err := goTypeName(ctx, t.ElementHash)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("[%d]%s", t.ElementLen, elem), nil
	case adf.PrimitiveString:
		return "string", nil
	case adf.PrimitiveRecursive:
		return "", fmt.Errorf("adfgen: recursive types are not supported")
	case adf.PrimitiveStringHash:
		return "uint32", nil
	case adf.PrimitiveDeferred:
		return "any", nil
	default:
		return "", fmt.Errorf("adfgen: unknown primitive %d", t.Primitive)
	}
}

func scalarGoName(t *adf.Type) (string, error) {
	switch t.Size {
	case 1:
		switch t.ScalarKind {
		case adf.ScalarSigned:
			return "int8", nil
		case adf.ScalarUnsigned:
			return "uint8", nil
		}
	case 2:
		switch t.ScalarKind {
		case adf.ScalarSigned:
			return "int16", nil
		case adf.ScalarUnsigned:
			return "uint16", nil
		}
	case 4:
		switch t.ScalarKind {
		case adf.ScalarSigned:
			return "int32", nil
		case adf.ScalarUnsigned:
			return "uint32", nil
		case adf.ScalarFloat:
			return "float32", nil
		}
	case 8:
		switch t.ScalarKind {
		case adf.ScalarSigned:
			return "int64", nil
		case adf.ScalarUnsigned:
			return "uint64", nil
		case adf.ScalarFloat:
			return "float64", nil
		}
	}
	return "", fmt.Errorf("adfgen: invalid scalar kind %d for size %d", t.ScalarKind, t.Size)
}

// exportedName capitalizes name's first rune so generated struct
// fields are exported, without pulling in a casing library for one
// byte of work.
func exportedName(name string) string {
	if name == "" {
		return name
	}
	r := []rune(name)
	if r[0] >= 'a' && r[0] <= 'z' {
		r[0] -= 'a' - 'A'
	}
	return string(r)
}

// collectTypes returns the pre-order closure of every type root
// transitively refers to (itself included), mirroring adf_generator's
// collect_types/insert_value traversal: a type is appended the first
// time it's reached, before its members/elements are visited.
func collectTypes(ctx *adf.ReflectionContext, root *adf.Type) []uint32 {
	seen := make(map[uint32]struct{})
	var order []uint32
	var visit func(t *adf.Type)
	visitByHash := func(hash uint32) {
		if t, err := ctx.GetType(hash); err == nil {
			visit(t)
		}
	}
	visit = func(t *adf.Type) {
		if _, ok := seen[t.TypeHash]; ok {
			return
		}
		seen[t.TypeHash] = struct{}{}
		order = append(order, t.TypeHash)

		switch t.Primitive {
		case adf.PrimitiveStructure:
			for _, m := range t.Members {
				visitByHash(m.TypeHash)
			}
		case adf.PrimitivePointer, adf.PrimitiveArray, adf.PrimitiveInlineArray,
			adf.PrimitiveBitfield, adf.PrimitiveEnumeration, adf.PrimitiveStringHash:
			visitByHash(t.ElementHash)
		}
	}
	visit(root)
	return order
}
