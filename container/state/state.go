// Copyright 2026 The Coffer Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package state implements the authoritative state transitions shared by the
// container server implementations. A server locks or transacts around a
// snapshot, calls one transition, and persists the result; the transitions
// themselves are storage-agnostic.
//
// Every transition validates fully before mutating, so a returned error
// means the snapshot is unchanged.
package state

import (
	"coffer.io/coffer"
	"coffer.io/errors"
	"coffer.io/valid"
)

// IsOwner reports whether the identity is the container's owner.
func IsOwner(snap *coffer.Snapshot, id coffer.Identity) bool {
	key, ok := id.PublicKey()
	return ok && string(key) == string(snap.Owner)
}

// Allowed reports whether the identity may perform the action: the owner
// always may; others need their specific record, falling back to Anyone.
func Allowed(snap *coffer.Snapshot, id coffer.Identity, p coffer.Permission) bool {
	if IsOwner(snap, id) {
		return true
	}
	var anyone coffer.PermissionSet
	haveAnyone := false
	for _, r := range snap.Permissions {
		if r.Identity == id {
			return r.Set.Grants(p)
		}
		if r.Identity.IsAnyone() {
			anyone, haveAnyone = r.Set, true
		}
	}
	return haveAnyone && anyone.Grants(p)
}

// ApplyEntries validates the mutation batch in full against the snapshot
// and, only if every action clears, applies all of them and advances the
// container version. The first failing action rejects the whole batch.
func ApplyEntries(snap *coffer.Snapshot, id coffer.Identity, muts []coffer.EntryMutation) error {
	if err := valid.Mutations(muts); err != nil {
		return err
	}

	// Validation pass. Nothing is written until every action clears.
	for _, m := range muts {
		if !Allowed(snap, id, m.Op.Permission()) {
			return errors.E(m.Key, id, errors.Permission,
				errors.Errorf("%s requires the %s permission", m.Op, m.Op.Permission()))
		}
		cur, found := findEntry(snap, m.Key)
		switch m.Op {
		case coffer.InsertOp:
			if found && !cur.Deleted {
				return errors.E(m.Key, errors.Exist)
			}
		case coffer.UpdateOp, coffer.DeleteOp:
			if !found || cur.Deleted {
				return errors.E(m.Key, errors.NotExist)
			}
			if m.Prev != cur.Version {
				return errors.E(m.Key, errors.Versions{Expected: m.Prev, Actual: cur.Version})
			}
		}
	}

	// Apply pass.
	for _, m := range muts {
		i := entryIndex(snap, m.Key)
		switch m.Op {
		case coffer.InsertOp:
			if i < 0 {
				snap.Entries = append(snap.Entries, coffer.Entry{
					Key:     m.Key,
					Value:   append([]byte(nil), m.Value...),
					Version: 1,
				})
				continue
			}
			// Over a tombstone; the version chain continues.
			snap.Entries[i].Value = append([]byte(nil), m.Value...)
			snap.Entries[i].Version++
			snap.Entries[i].Deleted = false
		case coffer.UpdateOp:
			snap.Entries[i].Value = append([]byte(nil), m.Value...)
			snap.Entries[i].Version = m.Prev + 1
		case coffer.DeleteOp:
			snap.Entries[i].Value = nil
			snap.Entries[i].Version = m.Prev + 1
			snap.Entries[i].Deleted = true
		}
	}
	snap.Version++
	return nil
}

// InsertPermission adds a grant for an identity not yet in the table and
// advances the table and container versions.
func InsertPermission(snap *coffer.Snapshot, actor, grantee coffer.Identity, set coffer.PermissionSet) error {
	return mutateTable(snap, actor, grantee, func(i int) error {
		if i >= 0 {
			return errors.E(errors.Exist, "identity already has a record")
		}
		snap.Permissions = append(snap.Permissions, coffer.PermissionRecord{Identity: grantee, Set: set})
		return nil
	})
}

// SetPermission replaces the grant for an identity already in the table.
// Prev must match the current table version.
func SetPermission(snap *coffer.Snapshot, actor, grantee coffer.Identity, set coffer.PermissionSet, prev coffer.Version) error {
	return mutateTable(snap, actor, grantee, func(i int) error {
		if i < 0 {
			return errors.E(errors.NotExist, "identity has no record")
		}
		if prev != snap.PermVersion {
			return errors.E(errors.Versions{Expected: prev, Actual: snap.PermVersion})
		}
		snap.Permissions[i].Set = set
		return nil
	})
}

// DeletePermission removes an identity from the table. Prev must match the
// current table version.
func DeletePermission(snap *coffer.Snapshot, actor, grantee coffer.Identity, prev coffer.Version) error {
	return mutateTable(snap, actor, grantee, func(i int) error {
		if i < 0 {
			return errors.E(errors.NotExist, "identity has no record")
		}
		if prev != snap.PermVersion {
			return errors.E(errors.Versions{Expected: prev, Actual: snap.PermVersion})
		}
		snap.Permissions = append(snap.Permissions[:i], snap.Permissions[i+1:]...)
		return nil
	})
}

func mutateTable(snap *coffer.Snapshot, actor, grantee coffer.Identity, f func(int) error) error {
	if err := valid.Identity(grantee); err != nil {
		return err
	}
	if !Allowed(snap, actor, coffer.ManagePermissions) {
		return errors.E(actor, errors.Permission,
			"managing permissions requires the manage-permissions grant")
	}
	i := -1
	for j, r := range snap.Permissions {
		if r.Identity == grantee {
			i = j
			break
		}
	}
	if err := f(i); err != nil {
		return err
	}
	snap.PermVersion++
	snap.Version++
	return nil
}

func findEntry(snap *coffer.Snapshot, key coffer.EntryKey) (coffer.Entry, bool) {
	if i := entryIndex(snap, key); i >= 0 {
		return snap.Entries[i], true
	}
	return coffer.Entry{}, false
}

func entryIndex(snap *coffer.Snapshot, key coffer.EntryKey) int {
	for i := range snap.Entries {
		if snap.Entries[i].Key == key {
			return i
		}
	}
	return -1
}
