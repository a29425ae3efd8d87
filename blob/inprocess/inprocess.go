// Copyright 2026 The Coffer Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package inprocess implements a simple, non-persistent, in-memory blob
// server. It holds a bounded number of blobs, evicting the least recently
// used when full, which makes it a cache rather than durable storage; the
// badgerdb sibling is the persistent variant.
package inprocess

import (
	"sync"

	"coffer.io/bind"
	"coffer.io/blob"
	"coffer.io/cache"
	"coffer.io/coffer"
	"coffer.io/errors"
	"coffer.io/log"
)

// maxBlobs bounds the number of blobs held at once.
const maxBlobs = 1000

// Service implements coffer.BlobServer.
type Service struct {
	db *database
}

type database struct {
	endpoint coffer.Endpoint

	mu    sync.Mutex // serializes Put so duplicate stores stay idempotent
	blobs *cache.LRU // coffer.BlobRef -> []byte
}

var _ coffer.BlobServer = (*Service)(nil)

// New returns a Service holding no blobs.
func New() *Service {
	return &Service{
		db: &database{
			endpoint: coffer.Endpoint{Transport: coffer.InProcess},
			blobs:    cache.NewLRU(maxBlobs),
		},
	}
}

// Dial implements coffer.Dialer. Blob access carries no identity; every
// caller gets an equivalent handle.
func (s *Service) Dial(cfg coffer.Config, e coffer.Endpoint) (coffer.Service, error) {
	const op errors.Op = "blob/inprocess.Dial"
	if e.Transport != coffer.InProcess {
		return nil, errors.E(op, errors.Invalid, "unrecognized transport")
	}
	this := *s // Make a copy.
	return &this, nil
}

// Put implements coffer.BlobServer. The same bytes always yield the same
// reference, so storing twice is a no-op beyond refreshing recency.
func (s *Service) Put(data []byte) (coffer.BlobRef, error) {
	ref := blob.RefOf(data)
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	if _, ok := s.db.blobs.Get(ref); ok {
		return ref, nil
	}
	s.db.blobs.Add(ref, append([]byte(nil), data...))
	return ref, nil
}

// Get implements coffer.BlobServer.
func (s *Service) Get(ref coffer.BlobRef) ([]byte, error) {
	const op errors.Op = "blob/inprocess.Get"
	data, ok := s.db.blobs.Get(ref)
	if !ok {
		return nil, errors.E(op, errors.NotExist, "no blob with reference")
	}
	return append([]byte(nil), data.([]byte)...), nil
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
	if err := bind.RegisterBlobServer(coffer.InProcess, New()); err != nil {
		log.Error.Printf("blob/inprocess: %v", err)
	}
}
