// Copyright 2026 The Coffer Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package sealed

import (
	"bytes"
	"testing"

	"coffer.io/cipher"
	"coffer.io/coffer"
	"coffer.io/config"
	"coffer.io/errors"
	"coffer.io/keyring"
)

func testConfig(t *testing.T) (coffer.Config, *keyring.Keyring) {
	t.Helper()
	kr, err := keyring.Generate()
	if err != nil {
		t.Fatal(err)
	}
	return config.SetKeyring(config.New(), kr), kr
}

func TestRegister(t *testing.T) {
	s := cipher.Lookup(coffer.Sealed)
	if s == nil {
		t.Fatal("Lookup failed")
	}
	if s.String() != "sealed" {
		t.Fatalf("expected sealed, got %q", s)
	}
}

func TestSealToSelf(t *testing.T) {
	cfg, _ := testConfig(t)
	text := []byte("for my eyes only")

	out, err := sealed{}.Seal(cfg, nil, text)
	if err != nil {
		t.Fatal("Seal:", err)
	}
	if len(out) != len(text)+sealOverhead {
		t.Errorf("sealed length = %d, want %d", len(out), len(text)+sealOverhead)
	}
	clear, err := sealed{}.Open(cfg, nil, out)
	if err != nil {
		t.Fatal("Open:", err)
	}
	if !bytes.Equal(clear, text) {
		t.Errorf("clear = %q, want %q", clear, text)
	}
}

func TestSealToRecipient(t *testing.T) {
	senderCfg, _ := testConfig(t)
	recipientCfg, recipient := testConfig(t)
	text := []byte("addressed elsewhere")

	out, err := sealed{}.Seal(senderCfg, recipient.BoxPublicKey(), text)
	if err != nil {
		t.Fatal("Seal:", err)
	}

	// The recipient can open it; the sender cannot.
	clear, err := sealed{}.Open(recipientCfg, nil, out)
	if err != nil {
		t.Fatal("Open by recipient:", err)
	}
	if !bytes.Equal(clear, text) {
		t.Errorf("clear = %q, want %q", clear, text)
	}
	if _, err := (sealed{}).Open(senderCfg, nil, out); !errors.Is(errors.Permission, err) {
		t.Errorf("Open by sender: %v, want Permission", err)
	}
}

func TestNoKeyring(t *testing.T) {
	if _, err := (sealed{}).Seal(config.New(), nil, []byte("x")); !errors.Is(errors.Setup, err) {
		t.Errorf("Seal without keyring: %v, want Setup", err)
	}
	if _, err := (sealed{}).Open(nil, nil, []byte("x")); !errors.Is(errors.Setup, err) {
		t.Errorf("Open without config: %v, want Setup", err)
	}
}
