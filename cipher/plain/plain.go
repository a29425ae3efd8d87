// Copyright 2026 The Coffer Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package plain is the trivial, no-op cipher scheme. Bytes are stored
// untouched. It is the default for public data.
package plain

import (
	"coffer.io/cipher"
	"coffer.io/coffer"
)

type plain struct{}

var _ cipher.Scheme = plain{}

func init() {
	cipher.Register(plain{})
}

func (plain) Cipher() coffer.Cipher {
	return coffer.Plain
}

func (plain) String() string {
	return "plain"
}

func (plain) Overhead() int {
	return 0
}

// Seal copies the cleartext so the caller's buffer is never aliased by
// stored data.
func (plain) Seal(cfg coffer.Config, key, cleartext []byte) ([]byte, error) {
	return append([]byte(nil), cleartext...), nil
}

func (plain) Open(cfg coffer.Config, key, sealed []byte) ([]byte, error) {
	return append([]byte(nil), sealed...), nil
}
