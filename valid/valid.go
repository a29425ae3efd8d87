// Copyright 2026 The Coffer Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package valid does validation of various data types.
package valid

import (
	"unicode/utf8"

	"coffer.io/coffer"
	"coffer.io/errors"
)

// Address verifies that the address is not the zero address, which is never
// a legitimate container identity.
func Address(a coffer.Address) error {
	const op errors.Op = "valid.Address"
	if a == (coffer.Address{}) {
		return errors.E(op, errors.Invalid, "zero address")
	}
	return nil
}

// Identity verifies that the identity is either the wildcard or names a
// non-empty public key.
func Identity(id coffer.Identity) error {
	const op errors.Op = "valid.Identity"
	if id.IsZero() {
		return errors.E(op, errors.Invalid, "empty identity")
	}
	return nil
}

// Owner verifies that the key can own a container. Ownership always names
// a concrete public signing key; there is no wildcard owner.
func Owner(key coffer.PublicKey) error {
	const op errors.Op = "valid.Owner"
	if len(key) == 0 {
		return errors.E(op, errors.Invalid, "container has no owner")
	}
	return nil
}

// Endpoint verifies that the endpoint looks valid.
func Endpoint(endpoint coffer.Endpoint) error {
	const op errors.Op = "valid.Endpoint"
	switch endpoint.Transport {
	case coffer.InProcess, coffer.Unassigned:
		if endpoint.NetAddr != "" {
			return errors.E(op, errors.Invalid, errors.Errorf("%q: extraneous network address", endpoint))
		}
	case coffer.Local, coffer.Remote:
		if endpoint.NetAddr == "" {
			return errors.E(op, errors.Invalid, errors.Errorf("%q: missing network address", endpoint))
		}
	default:
		return errors.E(op, errors.Invalid, errors.Errorf("%d unrecognized transport", endpoint.Transport))
	}
	return nil
}

// EntryKey verifies that the key is non-empty. Keys that carry encrypted
// bytes need not be valid UTF-8, but a cleartext key must be.
func EntryKey(key coffer.EntryKey, encrypted bool) error {
	const op errors.Op = "valid.EntryKey"
	if key == "" {
		return errors.E(op, errors.Invalid, "empty entry key")
	}
	if !encrypted && !utf8.ValidString(string(key)) {
		return errors.E(op, key, errors.Invalid, "entry key is not valid UTF-8")
	}
	return nil
}

// PermissionSet verifies that no unknown permission bits are set.
func PermissionSet(s coffer.PermissionSet) error {
	const op errors.Op = "valid.PermissionSet"
	if s&^coffer.AllPermissions != 0 {
		return errors.E(op, errors.Invalid, errors.Errorf("unknown permission bits in %#x", uint8(s)))
	}
	return nil
}

// EntryMutation verifies that a single mutation is well formed. An insert
// carries no prior version; updates and deletes must name the version they
// supersede; a delete carries no value.
func EntryMutation(m coffer.EntryMutation) error {
	const op errors.Op = "valid.EntryMutation"
	if err := EntryKey(m.Key, true); err != nil {
		return errors.E(op, err)
	}
	switch m.Op {
	case coffer.InsertOp:
		if m.Prev != 0 {
			return errors.E(op, m.Key, errors.Invalid, "insert cannot name a prior version")
		}
	case coffer.UpdateOp, coffer.DeleteOp:
		if m.Prev == 0 {
			return errors.E(op, m.Key, errors.Invalid, "mutation of an entry that was never written")
		}
	default:
		return errors.E(op, m.Key, errors.Invalid, errors.Errorf("unknown mutation op %d", m.Op))
	}
	if m.Op == coffer.DeleteOp && m.Value != nil {
		return errors.E(op, m.Key, errors.Invalid, "delete cannot carry a value")
	}
	return nil
}

// Mutations verifies a transaction's mutation list: each element valid and
// no key mutated twice, so the batch applies atomically without internal
// ordering effects.
func Mutations(muts []coffer.EntryMutation) error {
	const op errors.Op = "valid.Mutations"
	if len(muts) == 0 {
		return errors.E(op, errors.Invalid, "empty transaction")
	}
	seen := make(map[coffer.EntryKey]bool, len(muts))
	for _, m := range muts {
		if err := EntryMutation(m); err != nil {
			return errors.E(op, err)
		}
		if seen[m.Key] {
			return errors.E(op, m.Key, errors.Invalid, "key mutated twice in one transaction")
		}
		seen[m.Key] = true
	}
	return nil
}

// Snapshot verifies that a container snapshot has a plausible structure:
// a real address, a concrete owner, and consistent entry and permission
// records.
func Snapshot(s *coffer.Snapshot) error {
	const op errors.Op = "valid.Snapshot"
	if err := Address(s.Address); err != nil {
		return errors.E(op, err)
	}
	if err := Owner(s.Owner); err != nil {
		return errors.E(op, err)
	}
	for _, e := range s.Entries {
		if err := EntryKey(e.Key, true); err != nil {
			return errors.E(op, err)
		}
		if e.Version == 0 {
			return errors.E(op, e.Key, errors.Invalid, "entry with version zero")
		}
		if e.Deleted && e.Value != nil {
			return errors.E(op, e.Key, errors.Invalid, "tombstone carries a value")
		}
	}
	for _, p := range s.Permissions {
		if err := Identity(p.Identity); err != nil {
			return errors.E(op, err)
		}
		if err := PermissionSet(p.Set); err != nil {
			return errors.E(op, err)
		}
	}
	return nil
}
