// Copyright 2026 The Coffer Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package cipher_test

import (
	"bytes"
	"testing"

	"coffer.io/cipher"
	"coffer.io/coffer"
	"coffer.io/config"
	"coffer.io/errors"
	"coffer.io/keyring"

	_ "coffer.io/cipher/plain"
	_ "coffer.io/cipher/sealed"
	_ "coffer.io/cipher/symm"
)

func TestSealOpenAllSchemes(t *testing.T) {
	kr, err := keyring.Generate()
	if err != nil {
		t.Fatal(err)
	}
	cfg := config.SetKeyring(config.New(), kr)
	text := []byte("self-describing sealed bytes")

	for _, c := range []coffer.Cipher{coffer.Plain, coffer.Symm, coffer.Sealed} {
		sealed, err := cipher.Seal(cfg, c, nil, text)
		if err != nil {
			t.Fatalf("%v: Seal: %v", c, err)
		}
		if sealed[0] != byte(c) {
			t.Errorf("%v: scheme byte = %d, want %d", c, sealed[0], c)
		}
		if got, want := len(sealed), 1+len(text)+cipher.Lookup(c).Overhead(); got != want {
			t.Errorf("%v: sealed length = %d, want %d", c, got, want)
		}
		// Open needs no cipher argument; the prefix selects the scheme.
		clear, err := cipher.Open(cfg, nil, sealed)
		if err != nil {
			t.Fatalf("%v: Open: %v", c, err)
		}
		if !bytes.Equal(clear, text) {
			t.Errorf("%v: clear = %q, want %q", c, clear, text)
		}
	}
}

func TestUnregistered(t *testing.T) {
	const bogus = coffer.Cipher(200)
	if _, err := cipher.Seal(nil, bogus, nil, []byte("x")); !errors.Is(errors.Invalid, err) {
		t.Errorf("Seal with unregistered cipher: %v, want Invalid", err)
	}
	if _, err := cipher.Open(nil, nil, []byte{byte(bogus), 'x'}); !errors.Is(errors.Invalid, err) {
		t.Errorf("Open with unregistered prefix: %v, want Invalid", err)
	}
	if _, err := cipher.Open(nil, nil, nil); !errors.Is(errors.Invalid, err) {
		t.Errorf("Open with empty data: %v, want Invalid", err)
	}
}
