// Copyright 2026 The Coffer Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package sealed implements the asymmetric cipher scheme: a NaCl anonymous
// sealed box addressed to a recipient's encryption key. Anyone holding the
// recipient's public key can seal; only the recipient's keyring can open.
package sealed

import (
	"coffer.io/cipher"
	"coffer.io/coffer"
	"coffer.io/errors"
)

// Overhead of an anonymous sealed box: an ephemeral 32-byte public key
// plus the 16-byte authenticator.
const sealOverhead = 48

type sealed struct{}

var _ cipher.Scheme = sealed{}

func init() {
	cipher.Register(sealed{})
}

func (sealed) Cipher() coffer.Cipher {
	return coffer.Sealed
}

func (sealed) String() string {
	return "sealed"
}

func (sealed) Overhead() int {
	return sealOverhead
}

// Seal seals cleartext to the recipient's public encryption key. A nil key
// seals to the config's own keyring, making the data private to its writer.
func (sealed) Seal(cfg coffer.Config, key, cleartext []byte) ([]byte, error) {
	const op errors.Op = "cipher/sealed.Seal"
	kr, err := keyringFor(cfg)
	if err != nil {
		return nil, errors.E(op, err)
	}
	recipient := coffer.PublicKey(key)
	if key == nil {
		recipient = kr.BoxPublicKey()
	}
	out, err := kr.SealTo(recipient, cleartext)
	if err != nil {
		return nil, errors.E(op, err)
	}
	return out, nil
}

// Open opens a sealed box addressed to the config's keyring. The key
// argument is unused; the recipient is implied by the box itself.
func (sealed) Open(cfg coffer.Config, key, sealedData []byte) ([]byte, error) {
	const op errors.Op = "cipher/sealed.Open"
	kr, err := keyringFor(cfg)
	if err != nil {
		return nil, errors.E(op, err)
	}
	clear, err := kr.OpenSealed(sealedData)
	if err != nil {
		return nil, errors.E(op, err)
	}
	return clear, nil
}

func keyringFor(cfg coffer.Config) (coffer.Keyring, error) {
	if cfg == nil || cfg.Keyring() == nil {
		return nil, errors.E(errors.Setup, "sealed cipher requires a keyring")
	}
	return cfg.Keyring(), nil
}
