// Copyright 2026 The Coffer Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package container implements the client-side handle for mutable,
// permissioned, versioned key-value containers.
//
// A Container is constructed locally, committed to its server with QuickSetup
// or Put, and thereafter mutated through atomic transaction batches under
// optimistic concurrency: every update and delete names the version it
// expects to supersede, and the server rejects the whole batch on the first
// mismatch. The handle also carries the container's cipher policy: a public
// container stores bytes as given, a private one seals keys and values
// deterministically under the container secret so encrypted keys remain
// usable for lookups.
//
// A Container is a point-in-time view. Entries and Permissions return
// snapshots as of the most recent fetch or commit; call Sync to observe
// concurrent remote changes. One mutation in flight per handle is the
// supported discipline; a handle is not safe for concurrent use.
package container

import (
	"crypto/rand"

	"coffer.io/bind"
	"coffer.io/cipher"
	"coffer.io/coffer"
	"coffer.io/errors"
	"coffer.io/valid"

	_ "coffer.io/cipher/plain"
	_ "coffer.io/cipher/symm"
)

// secretLen is the length of a container secret, sized for the symmetric
// cipher scheme.
const secretLen = 32

// Container is a client-side handle on one mutable container.
type Container struct {
	cfg    coffer.Config
	server coffer.ContainerServer

	secret    []byte // nil for a public container
	committed bool
	snap      *coffer.Snapshot
}

// New returns a handle on a fresh, public, locally constructed container
// with a random address. Nothing is sent to the server until QuickSetup or
// Put commits it; until then the address is not resolvable.
func New(cfg coffer.Config, tag coffer.TypeTag) (*Container, error) {
	const op errors.Op = "container.New"
	c, err := newContainer(op, cfg, tag)
	if err != nil {
		return nil, err
	}
	return c, nil
}

// Private is New for a private container: it also generates the container
// secret under which keys and values are sealed. Share the secret out of
// band with anyone who must read the container.
func Private(cfg coffer.Config, tag coffer.TypeTag) (*Container, error) {
	const op errors.Op = "container.Private"
	c, err := newContainer(op, cfg, tag)
	if err != nil {
		return nil, err
	}
	c.secret = make([]byte, secretLen)
	if _, err := rand.Read(c.secret); err != nil {
		return nil, errors.E(op, errors.IO, err)
	}
	return c, nil
}

func newContainer(op errors.Op, cfg coffer.Config, tag coffer.TypeTag) (*Container, error) {
	if cfg == nil || cfg.Keyring() == nil {
		return nil, errors.E(op, errors.Setup, "a keyring is required to own a container")
	}
	server, err := bind.ContainerServer(cfg, cfg.ContainerEndpoint())
	if err != nil {
		return nil, errors.E(op, err)
	}
	return &Container{
		cfg:    cfg,
		server: server,
		snap: &coffer.Snapshot{
			Address: coffer.RandomAddress(),
			Tag:     tag,
			Owner:   cfg.Keyring().SigningPublicKey(),
		},
	}, nil
}

// Fetch returns a handle bound to a committed public container.
func Fetch(cfg coffer.Config, addr coffer.Address, tag coffer.TypeTag) (*Container, error) {
	const op errors.Op = "container.Fetch"
	return fetch(op, cfg, addr, tag, nil)
}

// FetchPrivate is Fetch for a private container; the secret must be the one
// generated by Private on the handle that committed it.
func FetchPrivate(cfg coffer.Config, addr coffer.Address, tag coffer.TypeTag, secret []byte) (*Container, error) {
	const op errors.Op = "container.FetchPrivate"
	if len(secret) != secretLen {
		return nil, errors.E(op, errors.Invalid, errors.Errorf("container secret must be %d bytes", secretLen))
	}
	return fetch(op, cfg, addr, tag, append([]byte(nil), secret...))
}

func fetch(op errors.Op, cfg coffer.Config, addr coffer.Address, tag coffer.TypeTag, secret []byte) (*Container, error) {
	if cfg == nil {
		return nil, errors.E(op, errors.Setup, "no config")
	}
	if err := valid.Address(addr); err != nil {
		return nil, errors.E(op, err)
	}
	server, err := bind.ContainerServer(cfg, cfg.ContainerEndpoint())
	if err != nil {
		return nil, errors.E(op, err)
	}
	snap, err := server.Fetch(addr, tag)
	if err != nil {
		return nil, errors.E(op, err)
	}
	return &Container{
		cfg:       cfg,
		server:    server,
		secret:    secret,
		committed: true,
		snap:      snap,
	}, nil
}

// QuickSetup commits the container with the given initial entries, a name
// and a description, granting the owner all permissions and nobody else
// anything. Entries pass through the container's cipher policy. It fails
// with Exist if the address is already committed.
func (c *Container) QuickSetup(entries map[coffer.EntryKey][]byte, name, description string) error {
	const op errors.Op = "container.QuickSetup"
	if c.committed {
		return errors.E(op, errors.Exist, "container is already committed")
	}
	c.snap.Name = name
	c.snap.Description = description
	if err := c.put(op, nil, entries); err != nil {
		return err
	}
	return nil
}

// Put commits the container with the given permission records and initial
// entries, either of which may be empty. Empty permissions default to
// owner-only full permissions. Entries pass through the container's cipher
// policy. It fails with Exist on a re-commit of a live address.
func (c *Container) Put(perms []coffer.PermissionRecord, entries map[coffer.EntryKey][]byte) error {
	const op errors.Op = "container.Put"
	return c.put(op, perms, entries)
}

func (c *Container) put(op errors.Op, perms []coffer.PermissionRecord, entries map[coffer.EntryKey][]byte) error {
	if c.committed {
		return errors.E(op, errors.Exist, "container is already committed")
	}
	if perms == nil {
		perms = []coffer.PermissionRecord{{
			Identity: coffer.Specific(c.snap.Owner),
			Set:      coffer.AllPermissions,
		}}
	}
	snap := c.snap.Clone()
	snap.Version = 1
	snap.PermVersion = 1
	snap.Permissions = append([]coffer.PermissionRecord(nil), perms...)
	snap.Entries = snap.Entries[:0]
	for key, value := range entries {
		sealedKey, err := c.EncryptKey(key)
		if err != nil {
			return errors.E(op, key, err)
		}
		sealedValue, err := c.EncryptValue(value)
		if err != nil {
			return errors.E(op, key, err)
		}
		snap.Entries = append(snap.Entries, coffer.Entry{
			Key:     sealedKey,
			Value:   sealedValue,
			Version: 1,
		})
	}
	if err := valid.Snapshot(snap); err != nil {
		return errors.E(op, err)
	}
	if err := c.server.Create(snap); err != nil {
		return errors.E(op, err)
	}
	c.snap = snap
	c.committed = true
	return nil
}

// Sync re-fetches the container state from the server, so that Entries,
// Permissions and Version observe concurrent remote changes.
func (c *Container) Sync() error {
	const op errors.Op = "container.Sync"
	if !c.committed {
		return errors.E(op, errors.NotExist, "container is not committed")
	}
	snap, err := c.server.Fetch(c.snap.Address, c.snap.Tag)
	if err != nil {
		return errors.E(op, err)
	}
	c.snap = snap
	return nil
}

// Entries returns the entry store as of the most recent fetch or commit.
func (c *Container) Entries() *Entries {
	return newEntries(c.snap.Entries)
}

// Permissions returns the permission table bound to this handle. Reads see
// the most recent fetch or commit; mutations go to the server.
func (c *Container) Permissions() *Permissions {
	return &Permissions{c: c}
}

// ApplyEntriesMutation commits the transaction's actions as one atomic
// batch. The acting identity's permissions are checked locally first to
// save a wasted round trip; the server's own check remains authoritative.
// On success the local view is advanced to the committed state.
func (c *Container) ApplyEntriesMutation(t *Transaction) error {
	const op errors.Op = "container.ApplyEntriesMutation"
	if !c.committed {
		return errors.E(op, errors.NotExist, "container is not committed")
	}
	if err := valid.Mutations(t.muts); err != nil {
		return errors.E(op, err)
	}
	for _, m := range t.muts {
		if !c.allows(m.Op.Permission()) {
			return errors.E(op, m.Key, c.identity(), errors.Permission,
				errors.Errorf("%s requires the %s permission", m.Op, m.Op.Permission()))
		}
	}
	if err := c.server.ApplyEntries(c.snap.Address, c.snap.Tag, t.muts); err != nil {
		return errors.E(op, err)
	}
	for _, m := range t.muts {
		c.applyLocal(m)
	}
	c.snap.Version++
	return nil
}

// applyLocal folds one committed mutation into the local snapshot.
func (c *Container) applyLocal(m coffer.EntryMutation) {
	entries := c.snap.Entries
	for i := range entries {
		if entries[i].Key != m.Key {
			continue
		}
		switch m.Op {
		case coffer.InsertOp:
			// Insert over a tombstone continues the version chain.
			entries[i].Value = append([]byte(nil), m.Value...)
			entries[i].Version++
			entries[i].Deleted = false
		case coffer.UpdateOp:
			entries[i].Value = append([]byte(nil), m.Value...)
			entries[i].Version = m.Prev + 1
		case coffer.DeleteOp:
			entries[i].Value = nil
			entries[i].Version = m.Prev + 1
			entries[i].Deleted = true
		}
		return
	}
	c.snap.Entries = append(entries, coffer.Entry{
		Key:     m.Key,
		Value:   append([]byte(nil), m.Value...),
		Version: 1,
	})
}

// identity returns the acting identity derived from the config's keyring,
// or the zero identity for an anonymous config.
func (c *Container) identity() coffer.Identity {
	if c.cfg.Keyring() == nil {
		return coffer.Identity{}
	}
	return coffer.Specific(c.cfg.Keyring().SigningPublicKey())
}

// allows reports whether the acting identity may perform the action on this
// container, per the locally known table. The owner bypasses the table.
func (c *Container) allows(p coffer.Permission) bool {
	id := c.identity()
	if key, ok := id.PublicKey(); ok && string(key) == string(c.snap.Owner) {
		return true
	}
	var anyone coffer.PermissionSet
	haveAnyone := false
	for _, r := range c.snap.Permissions {
		if r.Identity == id {
			return r.Set.Grants(p)
		}
		if r.Identity.IsAnyone() {
			anyone, haveAnyone = r.Set, true
		}
	}
	return haveAnyone && anyone.Grants(p)
}

// EncryptKey seals an entry key per the container's cipher policy: the
// identity function for a public container, the deterministic symmetric
// scheme under the container secret for a private one, so that repeated
// calls give byte-identical sealed keys.
func (c *Container) EncryptKey(key coffer.EntryKey) (coffer.EntryKey, error) {
	const op errors.Op = "container.EncryptKey"
	if c.secret == nil {
		return key, nil
	}
	sealed, err := cipher.Seal(c.cfg, coffer.Symm, c.secret, []byte(key))
	if err != nil {
		return "", errors.E(op, key, err)
	}
	return coffer.EntryKey(sealed), nil
}

// EncryptValue is EncryptKey for entry values.
func (c *Container) EncryptValue(value []byte) ([]byte, error) {
	const op errors.Op = "container.EncryptValue"
	if c.secret == nil {
		return append([]byte(nil), value...), nil
	}
	sealed, err := cipher.Seal(c.cfg, coffer.Symm, c.secret, value)
	if err != nil {
		return nil, errors.E(op, err)
	}
	return sealed, nil
}

// Decrypt reverses EncryptKey and EncryptValue.
func (c *Container) Decrypt(data []byte) ([]byte, error) {
	const op errors.Op = "container.Decrypt"
	if c.secret == nil {
		return append([]byte(nil), data...), nil
	}
	clear, err := cipher.Open(c.cfg, c.secret, data)
	if err != nil {
		return nil, errors.E(op, err)
	}
	return clear, nil
}

// DecryptKey is Decrypt typed for entry keys.
func (c *Container) DecryptKey(key coffer.EntryKey) (coffer.EntryKey, error) {
	clear, err := c.Decrypt([]byte(key))
	if err != nil {
		return "", err
	}
	return coffer.EntryKey(clear), nil
}

// Private reports whether the container seals its keys and values.
func (c *Container) Private() bool {
	return c.secret != nil
}

// Secret returns a copy of the container secret, or nil for a public
// container. The owner shares it out of band with intended readers.
func (c *Container) Secret() []byte {
	if c.secret == nil {
		return nil
	}
	return append([]byte(nil), c.secret...)
}

// NameAndTag returns the network identity of the container. The pair is
// assigned at construction and never reassigned; it resolves only once the
// container is committed.
func (c *Container) NameAndTag() coffer.NameAndTag {
	return coffer.NameAndTag{Address: c.snap.Address, Tag: c.snap.Tag}
}

// Version returns the container version as of the most recent fetch or
// commit. It counts structural commits, distinct from entry versions.
func (c *Container) Version() coffer.Version {
	return c.snap.Version
}

// Name returns the container's name.
func (c *Container) Name() string {
	return c.snap.Name
}

// Description returns the container's description.
func (c *Container) Description() string {
	return c.snap.Description
}

// Owner returns the public signing key of the container's owner.
func (c *Container) Owner() coffer.PublicKey {
	return append(coffer.PublicKey(nil), c.snap.Owner...)
}

// Serialise flattens the container state as of the most recent fetch or
// commit for out-of-band transport. coffer.Snapshot.Unmarshal reverses it.
func (c *Container) Serialise() ([]byte, error) {
	return c.snap.Marshal()
}

// SerialisedSize returns the exact length Serialise would produce.
func (c *Container) SerialisedSize() int {
	return c.snap.Size()
}
