// Copyright 2024 The avalanche-tools authors. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package adf

import "testing"

// FuzzParseADF exercises Parse against arbitrary input, replacing the
// go-fuzz entrypoint (go-fuzz's exported Fuzz(data []byte) int API
// predates and has been superseded by the standard library's
// testing/fuzz support).
func FuzzParseADF(f *testing.F) {
	valid, err := New().Marshal(nil)
	if err != nil {
		f.Fatalf("building seed corpus: %v", err)
	}
	f.Add(valid)
	f.Add([]byte(""))
	f.Add([]byte("not an adf file"))

	f.Fuzz(func(t *testing.T, data []byte) {
		file, err := Parse(data, nil)
		if err != nil {
			return
		}
		if _, err := file.Marshal(nil); err != nil {
			t.Fatalf("re-marshaling a successfully parsed file failed: %v", err)
		}
	})
}
