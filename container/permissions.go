// Copyright 2026 The Coffer Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package container

import (
	"coffer.io/coffer"
	"coffer.io/errors"
	"coffer.io/valid"
)

// Permissions is the permission table of one container. Reads observe the
// handle's most recent fetch or commit; mutations commit to the server under
// the table's own optimistic version discipline and require the acting
// identity to hold ManagePermissions, unless it is the owner.
type Permissions struct {
	c *Container
}

// Get returns the grants for the identity: its specific record if present,
// else the Anyone record, else a Permission error. The owner bypass applies
// to enforcement, not lookup; an owner without a record still gets the
// fallback behaviour here.
func (p *Permissions) Get(id coffer.Identity) (coffer.PermissionSet, error) {
	const op errors.Op = "container.Permissions.Get"
	if err := valid.Identity(id); err != nil {
		return 0, errors.E(op, err)
	}
	var anyone coffer.PermissionSet
	haveAnyone := false
	for _, r := range p.c.snap.Permissions {
		if r.Identity == id {
			return r.Set, nil
		}
		if r.Identity.IsAnyone() {
			anyone, haveAnyone = r.Set, true
		}
	}
	if haveAnyone && !id.IsAnyone() {
		return anyone, nil
	}
	return 0, errors.E(op, id, errors.Permission, "identity has no grants")
}

// List returns every permission record in the table.
func (p *Permissions) List() []coffer.PermissionRecord {
	return append([]coffer.PermissionRecord(nil), p.c.snap.Permissions...)
}

// Version returns the permission-table version as of the most recent fetch
// or commit. It advances independently of entry versions.
func (p *Permissions) Version() coffer.Version {
	return p.c.snap.PermVersion
}

// Insert adds a grant for an identity not yet in the table. It fails with
// Exist if the identity already has a record.
func (p *Permissions) Insert(id coffer.Identity, set coffer.PermissionSet) error {
	const op errors.Op = "container.Permissions.Insert"
	if err := p.check(op, id, set); err != nil {
		return err
	}
	if err := p.c.server.InsertPermission(p.c.snap.Address, p.c.snap.Tag, id, set); err != nil {
		return errors.E(op, err)
	}
	p.c.snap.Permissions = append(p.c.snap.Permissions, coffer.PermissionRecord{Identity: id, Set: set})
	p.bumped()
	return nil
}

// Set replaces the grant for an identity already in the table. Prev is the
// table version being superseded; a mismatch fails with Conflict.
func (p *Permissions) Set(id coffer.Identity, set coffer.PermissionSet, prev coffer.Version) error {
	const op errors.Op = "container.Permissions.Set"
	if err := p.check(op, id, set); err != nil {
		return err
	}
	if err := p.c.server.SetPermission(p.c.snap.Address, p.c.snap.Tag, id, set, prev); err != nil {
		return errors.E(op, err)
	}
	for i, r := range p.c.snap.Permissions {
		if r.Identity == id {
			p.c.snap.Permissions[i].Set = set
			break
		}
	}
	p.bumped()
	return nil
}

// Delete removes an identity from the table. Prev is the table version
// being superseded.
func (p *Permissions) Delete(id coffer.Identity, prev coffer.Version) error {
	const op errors.Op = "container.Permissions.Delete"
	if err := p.check(op, id, 0); err != nil {
		return err
	}
	if err := p.c.server.DeletePermission(p.c.snap.Address, p.c.snap.Tag, id, prev); err != nil {
		return errors.E(op, err)
	}
	records := p.c.snap.Permissions
	for i, r := range records {
		if r.Identity == id {
			p.c.snap.Permissions = append(records[:i], records[i+1:]...)
			break
		}
	}
	p.bumped()
	return nil
}

// check runs the local pre-flight for a table mutation: the container must
// be committed, the arguments well formed, and the acting identity must be
// the owner or hold ManagePermissions. The server re-checks regardless.
func (p *Permissions) check(op errors.Op, id coffer.Identity, set coffer.PermissionSet) error {
	if !p.c.committed {
		return errors.E(op, errors.NotExist, "container is not committed")
	}
	if err := valid.Identity(id); err != nil {
		return errors.E(op, err)
	}
	if err := valid.PermissionSet(set); err != nil {
		return errors.E(op, err)
	}
	if !p.c.allows(coffer.ManagePermissions) {
		return errors.E(op, p.c.identity(), errors.Permission,
			"managing permissions requires the manage-permissions grant")
	}
	return nil
}

func (p *Permissions) bumped() {
	p.c.snap.PermVersion++
	p.c.snap.Version++
}
