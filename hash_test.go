// Copyright 2024 The avalanche-tools authors. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package adf

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// TestHashLittle32Empty pins lookup3's well-known test vector for the
// empty string: hashlittle("", 0) == 0xdeadbeef, independent of this
// port's internal structure.
func TestHashLittle32Empty(t *testing.T) {
	require.Equal(t, uint32(0xdeadbeef), HashLittle32(nil))
	require.Equal(t, uint32(0xdeadbeef), HashLittle32([]byte{}))
}

func TestHashLittle32Deterministic(t *testing.T) {
	data := []byte("Four score and seven years ago")
	require.Equal(t, HashLittle32(data), HashLittle32(data))
}

func TestHashLittle32DiffersOnInput(t *testing.T) {
	require.NotEqual(t, HashLittle32([]byte("a")), HashLittle32([]byte("b")))
}

func TestHashLittle32SeedChangesResult(t *testing.T) {
	data := []byte("adf")
	require.NotEqual(t, HashLittle32Seed(data, 0), HashLittle32Seed(data, 1))
	require.Equal(t, HashLittle32(data), HashLittle32Seed(data, 0))
}

// TestHashLittle32LengthBoundaries exercises every tail-length branch
// (0 through 12+) of the lookup3 mixing loop.
func TestHashLittle32LengthBoundaries(t *testing.T) {
	seen := make(map[uint32]bool)
	for n := 0; n <= 30; n++ {
		data := make([]byte, n)
		for i := range data {
			data[i] = byte(i + 1)
		}
		h := HashLittle32(data)
		// Not a strict uniqueness guarantee, just a smoke check that
		// wildly different lengths don't collapse onto one bucket.
		seen[h] = true
	}
	require.Greater(t, len(seen), 20)
}
