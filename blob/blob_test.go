// Copyright 2026 The Coffer Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package blob_test

import (
	"bytes"
	"math"
	"testing"

	"coffer.io/blob"
	"coffer.io/coffer"
	"coffer.io/config"
	"coffer.io/errors"
	"coffer.io/keyring"

	_ "coffer.io/blob/inprocess"
)

func testConfig(t *testing.T) coffer.Config {
	t.Helper()
	kr, err := keyring.Generate()
	if err != nil {
		t.Fatal(err)
	}
	return config.SetKeyring(config.New(), kr)
}

func TestWriteClose(t *testing.T) {
	cfg := testConfig(t)
	w, err := blob.Create(cfg)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := w.Write([]byte("hello, ")); err != nil {
		t.Fatal(err)
	}
	if _, err := w.Write([]byte("world")); err != nil {
		t.Fatal(err)
	}
	if w.Len() != 12 {
		t.Errorf("Len = %d, want 12", w.Len())
	}

	ref, err := w.Close(coffer.Plain, nil)
	if err != nil {
		t.Fatal(err)
	}
	r, err := blob.Fetch(cfg, ref, nil)
	if err != nil {
		t.Fatal(err)
	}
	if got := r.ReadAll(); !bytes.Equal(got, []byte("hello, world")) {
		t.Errorf("ReadAll = %q", got)
	}
	if r.Size() != 12 {
		t.Errorf("Size = %d, want 12", r.Size())
	}
}

func TestWriterSpentAfterClose(t *testing.T) {
	cfg := testConfig(t)
	w, err := blob.Create(cfg)
	if err != nil {
		t.Fatal(err)
	}
	w.Write([]byte("x"))
	if _, err := w.Close(coffer.Plain, nil); err != nil {
		t.Fatal(err)
	}
	if _, err := w.Write([]byte("more")); !errors.Is(errors.Invalid, err) {
		t.Errorf("write after close: %v, want Invalid", err)
	}
	if _, err := w.Close(coffer.Plain, nil); !errors.Is(errors.Invalid, err) {
		t.Errorf("double close: %v, want Invalid", err)
	}
}

func TestAbandonedWriterLeavesNoTrace(t *testing.T) {
	cfg := testConfig(t)
	w, err := blob.Create(cfg)
	if err != nil {
		t.Fatal(err)
	}
	w.Write([]byte("never committed"))

	// The content address the writer would have produced is not servable.
	ref := blob.RefOf([]byte{byte(coffer.Plain), 'n', 'e', 'v', 'e', 'r'})
	if _, err := blob.Fetch(cfg, ref, nil); !errors.Is(errors.NotExist, err) {
		t.Errorf("fetch of uncommitted blob: %v, want NotExist", err)
	}
}

func TestSealedRoundTrip(t *testing.T) {
	cfg := testConfig(t)
	for _, c := range []coffer.Cipher{coffer.Symm, coffer.Sealed} {
		w, err := blob.Create(cfg)
		if err != nil {
			t.Fatal(err)
		}
		content := []byte("secret payload")
		w.Write(content)
		ref, err := w.Close(c, nil)
		if err != nil {
			t.Fatalf("%v: %v", c, err)
		}
		r, err := blob.Fetch(cfg, ref, nil)
		if err != nil {
			t.Fatalf("%v: %v", c, err)
		}
		if got := r.ReadAll(); !bytes.Equal(got, content) {
			t.Errorf("%v: ReadAll = %q, want %q", c, got, content)
		}
	}
}

func TestReadRange(t *testing.T) {
	cfg := testConfig(t)
	w, err := blob.Create(cfg)
	if err != nil {
		t.Fatal(err)
	}
	w.Write([]byte("0123456789"))
	ref, err := w.Close(coffer.Plain, nil)
	if err != nil {
		t.Fatal(err)
	}
	r, err := blob.Fetch(cfg, ref, nil)
	if err != nil {
		t.Fatal(err)
	}

	got, err := r.ReadRange(2, 3)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got, []byte("234")) {
		t.Errorf("ReadRange(2, 3) = %q", got)
	}
	if got, err := r.ReadRange(0, 10); err != nil || len(got) != 10 {
		t.Errorf("full range: %q, %v", got, err)
	}
	if got, err := r.ReadRange(10, 0); err != nil || len(got) != 0 {
		t.Errorf("empty range at end: %q, %v", got, err)
	}
	for _, bad := range [][2]int64{{8, 3}, {11, 0}, {-1, 2}, {0, -1}} {
		if _, err := r.ReadRange(bad[0], bad[1]); !errors.Is(errors.Range, err) {
			t.Errorf("ReadRange(%d, %d): %v, want Range", bad[0], bad[1], err)
		}
	}

	// Operands whose sum wraps around int64 must fail the bounds check,
	// not slice.
	huge := []int64{1 << 62, math.MaxInt64}
	for _, offset := range huge {
		for _, length := range huge {
			if _, err := r.ReadRange(offset, length); !errors.Is(errors.Range, err) {
				t.Errorf("ReadRange(%d, %d): %v, want Range", offset, length, err)
			}
		}
	}
	if _, err := r.ReadRange(1, math.MaxInt64); !errors.Is(errors.Range, err) {
		t.Errorf("ReadRange(1, MaxInt64): %v, want Range", err)
	}
}

func TestDeduplication(t *testing.T) {
	cfg := testConfig(t)
	refs := make([]coffer.BlobRef, 2)
	for i := range refs {
		w, err := blob.Create(cfg)
		if err != nil {
			t.Fatal(err)
		}
		w.Write([]byte("same bytes"))
		refs[i], err = w.Close(coffer.Plain, nil)
		if err != nil {
			t.Fatal(err)
		}
	}
	if refs[0] != refs[1] {
		t.Errorf("identical content produced distinct references %q and %q", refs[0], refs[1])
	}
}
