// Copyright 2026 The Coffer Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package inprocess implements a simple, non-persistent, in-memory container
// server. It is the authoritative side of the optimistic-concurrency
// protocol: all version and permission checks here are definitive, whatever
// the client pre-checked locally.
package inprocess

import (
	"sync"

	"coffer.io/bind"
	"coffer.io/coffer"
	"coffer.io/container/state"
	"coffer.io/errors"
	"coffer.io/log"
	"coffer.io/valid"
)

// Service implements coffer.ContainerServer. It is multiplexed by caller
// identity onto a shared database.
type Service struct {
	identity coffer.Identity // identity of the dialed caller; zero when anonymous
	db       *database
}

// database is the shared state of all containers held by one server.
type database struct {
	endpoint coffer.Endpoint

	// mu serializes all access to the containers map and the snapshots
	// within. Simple but slow safety.
	mu         sync.RWMutex
	containers map[coffer.NameAndTag]*coffer.Snapshot
}

var _ coffer.ContainerServer = (*Service)(nil)

// New returns a Service with no containers, backed by fresh storage.
func New() *Service {
	return &Service{
		db: &database{
			endpoint:   coffer.Endpoint{Transport: coffer.InProcess},
			containers: make(map[coffer.NameAndTag]*coffer.Snapshot),
		},
	}
}

// Dial implements coffer.Dialer. The returned instance is bound to the
// signing identity of the config's keyring; permission checks on every
// mutating call use that identity.
func (s *Service) Dial(cfg coffer.Config, e coffer.Endpoint) (coffer.Service, error) {
	const op errors.Op = "container/inprocess.Dial"
	if e.Transport != coffer.InProcess {
		return nil, errors.E(op, errors.Invalid, "unrecognized transport")
	}
	this := *s // Make a copy.
	this.identity = coffer.Identity{}
	if cfg != nil && cfg.Keyring() != nil {
		this.identity = coffer.Specific(cfg.Keyring().SigningPublicKey())
	}
	return &this, nil
}

// Create implements coffer.ContainerServer. Only the owner named in the
// snapshot may commit it.
func (s *Service) Create(snap *coffer.Snapshot) error {
	const op errors.Op = "container/inprocess.Create"
	if err := valid.Snapshot(snap); err != nil {
		return errors.E(op, err)
	}
	if !state.IsOwner(snap, s.identity) {
		return errors.E(op, s.identity, errors.Permission, "only the owner can commit a container")
	}
	name := coffer.NameAndTag{Address: snap.Address, Tag: snap.Tag}
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	if _, ok := s.db.containers[name]; ok {
		return errors.E(op, errors.Exist, "address is already committed")
	}
	s.db.containers[name] = snap.Clone()
	return nil
}

// Fetch implements coffer.ContainerServer.
func (s *Service) Fetch(addr coffer.Address, tag coffer.TypeTag) (*coffer.Snapshot, error) {
	const op errors.Op = "container/inprocess.Fetch"
	s.db.mu.RLock()
	defer s.db.mu.RUnlock()
	snap, ok := s.db.containers[coffer.NameAndTag{Address: addr, Tag: tag}]
	if !ok {
		return nil, errors.E(op, errors.NotExist, "no container at address")
	}
	return snap.Clone(), nil
}

// Version implements coffer.ContainerServer.
func (s *Service) Version(addr coffer.Address, tag coffer.TypeTag) (coffer.Version, error) {
	const op errors.Op = "container/inprocess.Version"
	s.db.mu.RLock()
	defer s.db.mu.RUnlock()
	snap, ok := s.db.containers[coffer.NameAndTag{Address: addr, Tag: tag}]
	if !ok {
		return 0, errors.E(op, errors.NotExist, "no container at address")
	}
	return snap.Version, nil
}

// ApplyEntries implements coffer.ContainerServer. The batch is validated
// against live state in full before any action is applied; the first
// failure rejects the whole batch and the store is left unchanged.
func (s *Service) ApplyEntries(addr coffer.Address, tag coffer.TypeTag, muts []coffer.EntryMutation) error {
	const op errors.Op = "container/inprocess.ApplyEntries"
	return s.mutate(op, addr, tag, func(snap *coffer.Snapshot) error {
		return state.ApplyEntries(snap, s.identity, muts)
	})
}

// InsertPermission implements coffer.ContainerServer.
func (s *Service) InsertPermission(addr coffer.Address, tag coffer.TypeTag, id coffer.Identity, set coffer.PermissionSet) error {
	const op errors.Op = "container/inprocess.InsertPermission"
	return s.mutate(op, addr, tag, func(snap *coffer.Snapshot) error {
		return state.InsertPermission(snap, s.identity, id, set)
	})
}

// SetPermission implements coffer.ContainerServer.
func (s *Service) SetPermission(addr coffer.Address, tag coffer.TypeTag, id coffer.Identity, set coffer.PermissionSet, prev coffer.Version) error {
	const op errors.Op = "container/inprocess.SetPermission"
	return s.mutate(op, addr, tag, func(snap *coffer.Snapshot) error {
		return state.SetPermission(snap, s.identity, id, set, prev)
	})
}

// DeletePermission implements coffer.ContainerServer.
func (s *Service) DeletePermission(addr coffer.Address, tag coffer.TypeTag, id coffer.Identity, prev coffer.Version) error {
	const op errors.Op = "container/inprocess.DeletePermission"
	return s.mutate(op, addr, tag, func(snap *coffer.Snapshot) error {
		return state.DeletePermission(snap, s.identity, id, prev)
	})
}

// mutate runs one state transition under the write lock. Transitions leave
// the snapshot untouched on error, so no rollback is needed.
func (s *Service) mutate(op errors.Op, addr coffer.Address, tag coffer.TypeTag, f func(*coffer.Snapshot) error) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	snap, ok := s.db.containers[coffer.NameAndTag{Address: addr, Tag: tag}]
	if !ok {
		return errors.E(op, errors.NotExist, "no container at address")
	}
	if err := f(snap); err != nil {
		return errors.E(op, err)
	}
	return nil
}

// Endpoint implements coffer.Service.
func (s *Service) Endpoint() coffer.Endpoint {
	return s.db.endpoint
}

// Ping implements coffer.Service.
func (s *Service) Ping() bool {
	return true
}

// Close implements coffer.Service.
func (s *Service) Close() {
}

func init() {
	if err := bind.RegisterContainerServer(coffer.InProcess, New()); err != nil {
		log.Error.Printf("container/inprocess: %v", err)
	}
}
