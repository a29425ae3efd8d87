// Copyright 2026 The Coffer Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package keyring encapsulates crypto operations on the client's
// public/private keys. The cryptographic primitives themselves (ed25519
// signing, NaCl sealed boxes) are consumed as opaque operations; nothing
// here interprets key bytes beyond length checks.
package keyring

import (
	"bytes"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/hex"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/crypto/curve25519"
	"golang.org/x/crypto/nacl/box"

	"coffer.io/coffer"
	"coffer.io/errors"
)

// Key file names within a key directory. Each file holds one hex-encoded
// 32-byte secret on a single line.
const (
	signingFile = "signing.cofferkey"
	boxFile     = "box.cofferkey"
	sessionFile = "session.cofferkey"
)

const secretLen = 32

// Material is the raw-bytes export of a keyring, for out-of-band transport
// of a client identity. Callers own the copies and should zero them when
// done.
type Material struct {
	SigningSeed []byte // ed25519 seed
	BoxSecret   []byte // curve25519 private scalar
	Session     []byte // symmetric session secret
}

// Keyring holds the private keys of one client identity.
type Keyring struct {
	signPub  ed25519.PublicKey
	signPriv ed25519.PrivateKey
	boxPub   [32]byte
	boxPriv  [32]byte
	session  []byte
}

var _ coffer.Keyring = (*Keyring)(nil)

// New returns a Keyring loading keys from dir/*.cofferkey.
func New(dir string) (*Keyring, error) {
	const op errors.Op = "keyring.New"
	signing, err := readSecret(filepath.Join(dir, signingFile))
	if err != nil {
		return nil, errors.E(op, err)
	}
	boxSecret, err := readSecret(filepath.Join(dir, boxFile))
	if err != nil {
		return nil, errors.E(op, err)
	}
	session, err := readSecret(filepath.Join(dir, sessionFile))
	if err != nil {
		return nil, errors.E(op, err)
	}
	return NewFromKeys(Material{SigningSeed: signing, BoxSecret: boxSecret, Session: session})
}

// NewFromKeys returns a Keyring built from raw imported key material.
func NewFromKeys(m Material) (*Keyring, error) {
	const op errors.Op = "keyring.NewFromKeys"
	if len(m.SigningSeed) != secretLen || len(m.BoxSecret) != secretLen || len(m.Session) != secretLen {
		return nil, errors.E(op, errors.Invalid, errors.Errorf("keys must be %d bytes", secretLen))
	}
	k := &Keyring{
		signPriv: ed25519.NewKeyFromSeed(m.SigningSeed),
		session:  append([]byte(nil), m.Session...),
	}
	k.signPub = k.signPriv.Public().(ed25519.PublicKey)
	copy(k.boxPriv[:], m.BoxSecret)
	curve25519.ScalarBaseMult(&k.boxPub, &k.boxPriv)
	return k, nil
}

// Generate returns a Keyring with fresh random keys. It is intended for
// tests and for first-run identity creation; WriteTo persists the result.
func Generate() (*Keyring, error) {
	const op errors.Op = "keyring.Generate"
	var m Material
	for _, p := range []*[]byte{&m.SigningSeed, &m.BoxSecret, &m.Session} {
		*p = make([]byte, secretLen)
		if _, err := rand.Read(*p); err != nil {
			return nil, errors.E(op, errors.IO, err)
		}
	}
	return NewFromKeys(m)
}

// Export returns copies of the raw key material.
func (k *Keyring) Export() Material {
	return Material{
		SigningSeed: append([]byte(nil), k.signPriv.Seed()...),
		BoxSecret:   append([]byte(nil), k.boxPriv[:]...),
		Session:     append([]byte(nil), k.session...),
	}
}

// WriteTo writes the key files into dir, which must already exist.
// The files are created readable only by the owner.
func (k *Keyring) WriteTo(dir string) error {
	const op errors.Op = "keyring.WriteTo"
	m := k.Export()
	for _, f := range []struct {
		name   string
		secret []byte
	}{
		{signingFile, m.SigningSeed},
		{boxFile, m.BoxSecret},
		{sessionFile, m.Session},
	} {
		data := hex.EncodeToString(f.secret) + "\n"
		if err := os.WriteFile(filepath.Join(dir, f.name), []byte(data), 0600); err != nil {
			return errors.E(op, errors.IO, err)
		}
	}
	return nil
}

// SigningPublicKey implements coffer.Keyring.
func (k *Keyring) SigningPublicKey() coffer.PublicKey {
	return coffer.PublicKey(append([]byte(nil), k.signPub...))
}

// BoxPublicKey implements coffer.Keyring.
func (k *Keyring) BoxPublicKey() coffer.PublicKey {
	return coffer.PublicKey(append([]byte(nil), k.boxPub[:]...))
}

// Identity returns the keyring's signing identity for permission purposes.
func (k *Keyring) Identity() coffer.Identity {
	return coffer.Specific(k.SigningPublicKey())
}

// Sign implements coffer.Keyring.
func (k *Keyring) Sign(data []byte) (coffer.Signature, error) {
	return coffer.Signature(ed25519.Sign(k.signPriv, data)), nil
}

// Verify implements coffer.Keyring.
func (k *Keyring) Verify(key coffer.PublicKey, data []byte, sig coffer.Signature) bool {
	if len(key) != ed25519.PublicKeySize {
		return false
	}
	return ed25519.Verify(ed25519.PublicKey(key), data, sig)
}

// SessionSecret implements coffer.Keyring.
func (k *Keyring) SessionSecret() ([]byte, error) {
	return append([]byte(nil), k.session...), nil
}

// SealTo implements coffer.Keyring. The recipient is a curve25519 public
// encryption key as returned by BoxPublicKey.
func (k *Keyring) SealTo(recipient coffer.PublicKey, cleartext []byte) ([]byte, error) {
	const op errors.Op = "keyring.SealTo"
	if len(recipient) != secretLen {
		return nil, errors.E(op, errors.Invalid, errors.Errorf("recipient key must be %d bytes", secretLen))
	}
	var pub [32]byte
	copy(pub[:], recipient)
	sealed, err := box.SealAnonymous(nil, cleartext, &pub, rand.Reader)
	if err != nil {
		return nil, errors.E(op, errors.IO, err)
	}
	return sealed, nil
}

// OpenSealed implements coffer.Keyring.
func (k *Keyring) OpenSealed(ciphertext []byte) ([]byte, error) {
	const op errors.Op = "keyring.OpenSealed"
	clear, ok := box.OpenAnonymous(nil, ciphertext, &k.boxPub, &k.boxPriv)
	if !ok {
		return nil, errors.E(op, errors.Permission, "sealed box not addressed to this keyring")
	}
	return clear, nil
}

// Equal reports whether two keyrings hold the same key material.
func (k *Keyring) Equal(other *Keyring) bool {
	return bytes.Equal(k.signPriv, other.signPriv) &&
		k.boxPriv == other.boxPriv &&
		bytes.Equal(k.session, other.session)
}

func readSecret(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, errors.E(errors.NotExist, err)
	}
	if err != nil {
		return nil, errors.E(errors.IO, err)
	}
	secret, err := hex.DecodeString(strings.TrimSpace(string(data)))
	if err != nil {
		return nil, errors.E(errors.Invalid, errors.Errorf("malformed key file %s: %v", filepath.Base(path), err))
	}
	return secret, nil
}
