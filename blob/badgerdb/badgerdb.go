// Copyright 2026 The Coffer Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package badgerdb implements a persistent blob server backed by a local
// BadgerDB store, serving the Local transport. The content address doubles
// as the storage key, so writes are naturally idempotent.
package badgerdb

import (
	"sync"

	"github.com/dgraph-io/badger/v4"

	"coffer.io/bind"
	"coffer.io/blob"
	"coffer.io/coffer"
	"coffer.io/errors"
	"coffer.io/log"
)

// Service implements coffer.BlobServer over one Badger database.
type Service struct {
	dir string
	db  *badger.DB
}

var _ coffer.BlobServer = (*Service)(nil)

// Databases are shared by directory, as Badger locks the directory against
// a second open.
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
// needed.
func New(dir string) (*Service, error) {
	const op errors.Op = "blob/badgerdb.New"
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
	const op errors.Op = "blob/badgerdb.Dial"
	if e.Transport != coffer.Local {
		return nil, errors.E(op, errors.Invalid, "unrecognized transport")
	}
	this, err := New(e.NetAddr)
	if err != nil {
		return nil, errors.E(op, err)
	}
	return this, nil
}

func blobKey(ref coffer.BlobRef) []byte {
	return []byte("blob/" + ref)
}

// Put implements coffer.BlobServer.
func (s *Service) Put(data []byte) (coffer.BlobRef, error) {
	const op errors.Op = "blob/badgerdb.Put"
	ref := blob.RefOf(data)
	err := s.db.Update(func(txn *badger.Txn) error {
		key := blobKey(ref)
		if _, err := txn.Get(key); err == nil {
			return nil // already stored; the address guarantees equality
		} else if err != badger.ErrKeyNotFound {
			return err
		}
		return txn.Set(key, data)
	})
	if err != nil {
		return "", errors.E(op, errors.IO, err)
	}
	return ref, nil
}

// Get implements coffer.BlobServer.
func (s *Service) Get(ref coffer.BlobRef) ([]byte, error) {
	const op errors.Op = "blob/badgerdb.Get"
	var data []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(blobKey(ref))
		if err != nil {
			return err
		}
		data, err = item.ValueCopy(nil)
		return err
	})
	if err == badger.ErrKeyNotFound {
		return nil, errors.E(op, errors.NotExist, "no blob with reference")
	}
	if err != nil {
		return nil, errors.E(op, errors.IO, err)
	}
	return data, nil
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
	if err := bind.RegisterBlobServer(coffer.Local, &Service{}); err != nil {
		log.Error.Printf("blob/badgerdb: %v", err)
	}
}
