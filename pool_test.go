// Copyright 2024 The avalanche-tools authors. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package adf

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestStringPoolInternDedupes(t *testing.T) {
	var p stringPool
	a, err := p.intern("hello")
	require.NoError(t, err)
	b, err := p.intern("world")
	require.NoError(t, err)
	c, err := p.intern("hello")
	require.NoError(t, err)

	require.Equal(t, a, c)
	require.NotEqual(t, a, b)
	require.Len(t, p.strings, 2)

	got, err := p.get(a)
	require.NoError(t, err)
	require.Equal(t, "hello", got)
}

func TestStringPoolGetOutOfRange(t *testing.T) {
	var p stringPool
	_, err := p.get(0)
	require.ErrorIs(t, err, ErrUnresolvedReference)
}

func TestStringPoolRejectsOversizeString(t *testing.T) {
	var p stringPool
	_, err := p.intern(strings.Repeat("x", 256))
	require.ErrorIs(t, err, ErrLengthOverflow)
}

func TestInstancePoolRegisterDedupesByIdentity(t *testing.T) {
	var p instancePool
	a := &Instance{Name: "a"}
	b := &Instance{Name: "b"}

	h1 := p.register(a)
	h2 := p.register(a)
	h3 := p.register(b)

	require.Equal(t, h1, h2)
	require.NotEqual(t, h1, h3)
	require.Len(t, p.instances, 2)
}

func TestInstancePoolResolve(t *testing.T) {
	var p instancePool
	inst := &Instance{Name: "origin"}
	hash := p.register(inst)

	resolved, err := p.resolve(hash, false)
	require.NoError(t, err)
	require.Same(t, inst, resolved)
}

func TestInstancePoolResolveUnknownLenient(t *testing.T) {
	var p instancePool
	resolved, err := p.resolve(0xdeadbeef, false)
	require.NoError(t, err)
	require.Equal(t, &Instance{}, resolved)
}

func TestInstancePoolResolveUnknownStrict(t *testing.T) {
	var p instancePool
	_, err := p.resolve(0xdeadbeef, true)
	require.ErrorIs(t, err, ErrUnresolvedReference)
}
