// Copyright 2026 The Coffer Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package symm implements the symmetric cipher scheme: XSalsa20-Poly1305
// under a 32-byte key, with the nonce derived from the key and cleartext by
// keyed BLAKE3. The derived nonce makes sealing deterministic: the same
// (key, cleartext) pair always produces byte-identical output, which lets
// encrypted entry keys be used for lookups against an encrypted index. The
// usual nonce-reuse concern does not arise because a repeated nonce implies
// a repeated message, which produces the identical ciphertext.
package symm

import (
	"github.com/zeebo/blake3"
	"golang.org/x/crypto/nacl/secretbox"

	"coffer.io/cipher"
	"coffer.io/coffer"
	"coffer.io/errors"
)

const (
	keyLen   = 32
	nonceLen = 24
	boxTag   = secretbox.Overhead
)

// nonceDomain separates nonce derivation from any other keyed-BLAKE3 use of
// the same secret. ASCII, zero-padded to the 32 bytes keyed mode requires.
var nonceDomain = [32]byte{
	'c', 'o', 'f', 'f', 'e', 'r', '.', 's', 'y', 'm', 'm', '.', 'n', 'o', 'n', 'c', 'e',
}

type symm struct{}

var _ cipher.Scheme = symm{}

func init() {
	cipher.Register(symm{})
}

func (symm) Cipher() coffer.Cipher {
	return coffer.Symm
}

func (symm) String() string {
	return "symm"
}

func (symm) Overhead() int {
	return nonceLen + boxTag
}

func (symm) Seal(cfg coffer.Config, key, cleartext []byte) ([]byte, error) {
	const op errors.Op = "cipher/symm.Seal"
	secret, err := secretFor(cfg, key)
	if err != nil {
		return nil, errors.E(op, err)
	}
	nonce := deriveNonce(secret, cleartext)
	out := make([]byte, nonceLen, nonceLen+len(cleartext)+boxTag)
	copy(out, nonce[:])
	return secretbox.Seal(out, cleartext, &nonce, &secret), nil
}

func (symm) Open(cfg coffer.Config, key, sealed []byte) ([]byte, error) {
	const op errors.Op = "cipher/symm.Open"
	secret, err := secretFor(cfg, key)
	if err != nil {
		return nil, errors.E(op, err)
	}
	if len(sealed) < nonceLen+boxTag {
		return nil, errors.E(op, errors.Invalid, "sealed data too short")
	}
	var nonce [nonceLen]byte
	copy(nonce[:], sealed)
	clear, ok := secretbox.Open(nil, sealed[nonceLen:], &nonce, &secret)
	if !ok {
		return nil, errors.E(op, errors.Permission, "wrong key or corrupt data")
	}
	return clear, nil
}

// secretFor resolves the symmetric key: the explicit key if given, else the
// session secret from the config's keyring.
func secretFor(cfg coffer.Config, key []byte) ([keyLen]byte, error) {
	var secret [keyLen]byte
	if key == nil {
		if cfg == nil || cfg.Keyring() == nil {
			return secret, errors.E(errors.Setup, "no key supplied and no keyring configured")
		}
		session, err := cfg.Keyring().SessionSecret()
		if err != nil {
			return secret, err
		}
		key = session
	}
	if len(key) != keyLen {
		return secret, errors.E(errors.Invalid, errors.Errorf("symmetric key must be %d bytes", keyLen))
	}
	copy(secret[:], key)
	return secret, nil
}

// deriveNonce computes the deterministic nonce for cleartext under secret:
// the leading bytes of a keyed BLAKE3 hash whose key is the secret XORed
// with the nonce domain constant.
func deriveNonce(secret [keyLen]byte, cleartext []byte) [nonceLen]byte {
	var hkey [32]byte
	for i := range hkey {
		hkey[i] = secret[i] ^ nonceDomain[i]
	}
	h, err := blake3.NewKeyed(hkey[:])
	if err != nil {
		// NewKeyed fails only on a bad key length, which cannot happen.
		panic("cipher/symm: " + err.Error())
	}
	h.Write(cleartext)
	var nonce [nonceLen]byte
	copy(nonce[:], h.Sum(nil))
	return nonce
}
