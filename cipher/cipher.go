// Copyright 2026 The Coffer Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package cipher provides the registry for implementations of the cipher
// schemes that transform payload bytes before they are placed in a blob or
// container entry. The plain, symm and sealed subpackages register the
// production schemes in their init functions; importing one is enough to
// make its scheme available.
package cipher

import (
	"fmt"
	"sync"

	"coffer.io/coffer"
	"coffer.io/errors"
)

// Scheme is the implementation of one coffer.Cipher.
type Scheme interface {
	// Cipher returns the identifier this scheme is registered under.
	Cipher() coffer.Cipher

	// String returns the name of this scheme.
	String() string

	// Seal transforms cleartext for storage. The meaning of key depends
	// on the scheme: ignored for plain, a 32-byte symmetric key for symm
	// (nil selects the config's session secret), a recipient public
	// encryption key for sealed (nil selects the config's own key).
	Seal(cfg coffer.Config, key, cleartext []byte) ([]byte, error)

	// Open reverses Seal. For symm the same key must be supplied; for
	// sealed the config's keyring must hold the recipient private key.
	Open(cfg coffer.Config, key, sealed []byte) ([]byte, error)

	// Overhead returns the number of bytes Seal adds to the cleartext.
	Overhead() int
}

var (
	mu      sync.RWMutex
	schemes = make(map[coffer.Cipher]Scheme)
)

// Register binds a Cipher code to the implementation of its scheme.
// It must be called in the init function of a Scheme implementation.
// If multiple calls have the same Cipher, Register panics.
func Register(s Scheme) {
	mu.Lock()
	defer mu.Unlock()
	if prev, present := schemes[s.Cipher()]; present {
		panic(fmt.Sprintf("cipher: Register(%d) already installed as %q", s.Cipher(), prev))
	}
	schemes[s.Cipher()] = s
}

// Lookup returns the implementation of the specified Cipher, or nil if none
// is registered.
func Lookup(c coffer.Cipher) Scheme {
	mu.RLock()
	defer mu.RUnlock()
	return schemes[c]
}

// Seal runs the named scheme over cleartext and prefixes the result with
// the scheme's identifying byte, so the stored bytes are self-describing.
func Seal(cfg coffer.Config, c coffer.Cipher, key, cleartext []byte) ([]byte, error) {
	const op errors.Op = "cipher.Seal"
	s := Lookup(c)
	if s == nil {
		return nil, errors.E(op, errors.Invalid, errors.Errorf("unregistered cipher %d", c))
	}
	payload, err := s.Seal(cfg, key, cleartext)
	if err != nil {
		return nil, errors.E(op, err)
	}
	out := make([]byte, 0, 1+len(payload))
	out = append(out, byte(c))
	return append(out, payload...), nil
}

// Open inspects the scheme byte prefixed by Seal, looks up the scheme and
// reverses the transformation.
func Open(cfg coffer.Config, key, sealed []byte) ([]byte, error) {
	const op errors.Op = "cipher.Open"
	if len(sealed) == 0 {
		return nil, errors.E(op, errors.Invalid, "empty sealed data")
	}
	c := coffer.Cipher(sealed[0])
	s := Lookup(c)
	if s == nil {
		return nil, errors.E(op, errors.Invalid, errors.Errorf("unregistered cipher %d", c))
	}
	clear, err := s.Open(cfg, key, sealed[1:])
	if err != nil {
		return nil, errors.E(op, err)
	}
	return clear, nil
}
