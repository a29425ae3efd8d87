// Copyright 2026 The Coffer Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package badgerdb implements a persistent container server backed by a
// local BadgerDB store. It serves the Local transport: the endpoint's
// network address is the database directory. Each container snapshot is one
// value, read, transitioned and written back inside a single Badger update
// transaction, which gives the same all-or-nothing semantics as the
// in-process server's lock.
package badgerdb

import (
	"fmt"
	"sync"

	"github.com/dgraph-io/badger/v4"

	"coffer.io/bind"
	"coffer.io/coffer"
	"coffer.io/container/state"
	"coffer.io/errors"
	"coffer.io/log"
	"coffer.io/valid"
)

// Service implements coffer.ContainerServer over one Badger database.
type Service struct {
	identity coffer.Identity
	dir      string
	db       *badger.DB
}

var _ coffer.ContainerServer = (*Service)(nil)

// Databases are shared by directory: every handle dialed for the same
// endpoint uses the same open Badger instance, since Badger itself locks
// the directory against a second open.
var (
	dbMu sync.Mutex
	dbs  = make(map[string]*badger.DB)
)

func open(dir string) (*badger.DB, error) {
	dbMu.Lock()
	defer dbMu.Unlock()
	if db, ok := dbs[dir]; ok {
		return db, nil
	}
	opts := badger.DefaultOptions(dir)
	opts.Logger = nil
	db, err := badger.Open(opts)
	if err != nil {
		return nil, err
	}
	dbs[dir] = db
	return db, nil
}

// New returns a Service over the Badger database in dir, creating it if
// needed. The returned instance is anonymous; Dial binds an identity.
func New(dir string) (*Service, error) {
	const op errors.Op = "container/badgerdb.New"
	if dir == "" {
		return nil, errors.E(op, errors.Invalid, "no database directory")
	}
	db, err := open(dir)
	if err != nil {
		return nil, errors.E(op, errors.IO, err)
	}
	return &Service{dir: dir, db: db}, nil
}

// Dial implements coffer.Dialer.
func (s *Service) Dial(cfg coffer.Config, e coffer.Endpoint) (coffer.Service, error) {
	const op errors.Op = "container/badgerdb.Dial"
	if e.Transport != coffer.Local {
		return nil, errors.E(op, errors.Invalid, "unrecognized transport")
	}
	this, err := New(e.NetAddr)
	if err != nil {
		return nil, errors.E(op, err)
	}
	if cfg != nil && cfg.Keyring() != nil {
		this.identity = coffer.Specific(cfg.Keyring().SigningPublicKey())
	}
	return this, nil
}

// containerKey is the Badger key of one container snapshot.
func containerKey(addr coffer.Address, tag coffer.TypeTag) []byte {
	return []byte(fmt.Sprintf("container/%s/%d", addr, tag))
}

// load reads and decodes the snapshot for the key within txn.
func load(txn *badger.Txn, key []byte) (*coffer.Snapshot, error) {
	item, err := txn.Get(key)
	if err == badger.ErrKeyNotFound {
		return nil, errors.E(errors.NotExist, "no container at address")
	}
	if err != nil {
		return nil, errors.E(errors.IO, err)
	}
	data, err := item.ValueCopy(nil)
	if err != nil {
		return nil, errors.E(errors.IO, err)
	}
	snap := new(coffer.Snapshot)
	if err := snap.Unmarshal(data); err != nil {
		return nil, errors.E(errors.Serialisation, err)
	}
	return snap, nil
}

// store encodes and writes the snapshot within txn.
func store(txn *badger.Txn, key []byte, snap *coffer.Snapshot) error {
	data, err := snap.Marshal()
	if err != nil {
		return errors.E(errors.Serialisation, err)
	}
	if err := txn.Set(key, data); err != nil {
		return errors.E(errors.IO, err)
	}
	return nil
}

// Create implements coffer.ContainerServer.
func (s *Service) Create(snap *coffer.Snapshot) error {
	const op errors.Op = "container/badgerdb.Create"
	if err := valid.Snapshot(snap); err != nil {
		return errors.E(op, err)
	}
	if !state.IsOwner(snap, s.identity) {
		return errors.E(op, s.identity, errors.Permission, "only the owner can commit a container")
	}
	key := containerKey(snap.Address, snap.Tag)
	err := s.update(func(txn *badger.Txn) error {
		if _, err := txn.Get(key); err == nil {
			return errors.E(errors.Exist, "address is already committed")
		} else if err != badger.ErrKeyNotFound {
			return errors.E(errors.IO, err)
		}
		return store(txn, key, snap)
	})
	if err != nil {
		return errors.E(op, err)
	}
	return nil
}

// Fetch implements coffer.ContainerServer.
func (s *Service) Fetch(addr coffer.Address, tag coffer.TypeTag) (*coffer.Snapshot, error) {
	const op errors.Op = "container/badgerdb.Fetch"
	var snap *coffer.Snapshot
	err := s.db.View(func(txn *badger.Txn) error {
		var err error
		snap, err = load(txn, containerKey(addr, tag))
		return err
	})
	if err != nil {
		return nil, errors.E(op, err)
	}
	return snap, nil
}

// Version implements coffer.ContainerServer.
func (s *Service) Version(addr coffer.Address, tag coffer.TypeTag) (coffer.Version, error) {
	const op errors.Op = "container/badgerdb.Version"
	snap, err := s.Fetch(addr, tag)
	if err != nil {
		return 0, errors.E(op, err)
	}
	return snap.Version, nil
}

// ApplyEntries implements coffer.ContainerServer.
func (s *Service) ApplyEntries(addr coffer.Address, tag coffer.TypeTag, muts []coffer.EntryMutation) error {
	const op errors.Op = "container/badgerdb.ApplyEntries"
	return s.mutate(op, addr, tag, func(snap *coffer.Snapshot) error {
		return state.ApplyEntries(snap, s.identity, muts)
	})
}

// InsertPermission implements coffer.ContainerServer.
func (s *Service) InsertPermission(addr coffer.Address, tag coffer.TypeTag, id coffer.Identity, set coffer.PermissionSet) error {
	const op errors.Op = "container/badgerdb.InsertPermission"
	return s.mutate(op, addr, tag, func(snap *coffer.Snapshot) error {
		return state.InsertPermission(snap, s.identity, id, set)
	})
}

// SetPermission implements coffer.ContainerServer.
func (s *Service) SetPermission(addr coffer.Address, tag coffer.TypeTag, id coffer.Identity, set coffer.PermissionSet, prev coffer.Version) error {
	const op errors.Op = "container/badgerdb.SetPermission"
	return s.mutate(op, addr, tag, func(snap *coffer.Snapshot) error {
		return state.SetPermission(snap, s.identity, id, set, prev)
	})
}

// DeletePermission implements coffer.ContainerServer.
func (s *Service) DeletePermission(addr coffer.Address, tag coffer.TypeTag, id coffer.Identity, prev coffer.Version) error {
	const op errors.Op = "container/badgerdb.DeletePermission"
	return s.mutate(op, addr, tag, func(snap *coffer.Snapshot) error {
		return state.DeletePermission(snap, s.identity, id, prev)
	})
}

// mutate loads the snapshot, runs one state transition and writes the
// result back, all within a single Badger update transaction.
func (s *Service) mutate(op errors.Op, addr coffer.Address, tag coffer.TypeTag, f func(*coffer.Snapshot) error) error {
	key := containerKey(addr, tag)
	err := s.update(func(txn *badger.Txn) error {
		snap, err := load(txn, key)
		if err != nil {
			return err
		}
		if err := f(snap); err != nil {
			return err
		}
		return store(txn, key, snap)
	})
	if err != nil {
		return errors.E(op, err)
	}
	return nil
}

// conflictRetries bounds the retries of a Badger transaction aborted by a
// concurrent writer.
const conflictRetries = 10

// update runs fn in a Badger update transaction, retrying when Badger
// aborts it for overlapping with a concurrent writer. Each retry reloads
// state inside the new transaction, so the entry and permission version
// checks still decide the outcome. A transaction still aborting after the
// retries surfaces as Conflict, never unclassified.
func (s *Service) update(fn func(txn *badger.Txn) error) error {
	var err error
	for i := 0; i < conflictRetries; i++ {
		if err = s.db.Update(fn); err != badger.ErrConflict {
			return err
		}
	}
	return errors.E(errors.Conflict, err)
}

// Endpoint implements coffer.Service.
func (s *Service) Endpoint() coffer.Endpoint {
	return coffer.Endpoint{Transport: coffer.Local, NetAddr: s.dir}
}

// Ping implements coffer.Service.
func (s *Service) Ping() bool {
	return s.db != nil && !s.db.IsClosed()
}

// Close implements coffer.Service. The underlying database is shared by
// every handle on the same directory and stays open for the process.
func (s *Service) Close() {
}

func init() {
	if err := bind.RegisterContainerServer(coffer.Local, &Service{}); err != nil {
		log.Error.Printf("container/badgerdb: %v", err)
	}
}
