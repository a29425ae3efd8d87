// Copyright 2026 The Coffer Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package bind contains the global binding switch and its methods.
//
// Server implementations register themselves per transport in their init
// functions; clients then obtain a dialed instance for an endpoint with
// ContainerServer or BlobServer. Dialed instances are cached per
// (identity, endpoint) and re-pinged when the cached connection grows stale.
package bind

import (
	"sync"
	"time"

	"coffer.io/coffer"
	"coffer.io/errors"
)

// dialKey is the key to the caches that store dialed services. The identity
// stands in for the whole config: two configs with the same keys dial the
// same authenticated connection.
type dialKey struct {
	identity string
	endpoint coffer.Endpoint
}

// dialedService holds a dialed service and its last ping time.
type dialedService struct {
	service coffer.Service

	mu       sync.Mutex // protects lastPing and the Ping call itself
	lastPing time.Time
}

type dialCache map[dialKey]*dialedService

var (
	pingFreshnessDuration = time.Minute * 15 // a var so it can be tweaked for testing

	mu sync.Mutex // protects all fields below

	containerMap = make(map[coffer.Transport]coffer.ContainerServer)
	blobMap      = make(map[coffer.Transport]coffer.BlobServer)

	containerDialCache = make(dialCache)
	blobDialCache      = make(dialCache)
	reverseLookup      = make(map[coffer.Service]dialKey)
)

// RegisterContainerServer registers a ContainerServer for the transport.
func RegisterContainerServer(transport coffer.Transport, s coffer.ContainerServer) error {
	const op errors.Op = "bind.RegisterContainerServer"
	mu.Lock()
	defer mu.Unlock()
	if _, ok := containerMap[transport]; ok {
		return errors.E(op, errors.Invalid, errors.Errorf("server already registered for transport %d", transport))
	}
	containerMap[transport] = s
	return nil
}

// RegisterBlobServer registers a BlobServer for the transport.
func RegisterBlobServer(transport coffer.Transport, s coffer.BlobServer) error {
	const op errors.Op = "bind.RegisterBlobServer"
	mu.Lock()
	defer mu.Unlock()
	if _, ok := blobMap[transport]; ok {
		return errors.E(op, errors.Invalid, errors.Errorf("server already registered for transport %d", transport))
	}
	blobMap[transport] = s
	return nil
}

// ContainerServer returns a ContainerServer bound to the endpoint, dialed
// with the identity in the config.
func ContainerServer(cfg coffer.Config, e coffer.Endpoint) (coffer.ContainerServer, error) {
	const op errors.Op = "bind.ContainerServer"
	mu.Lock()
	s, ok := containerMap[e.Transport]
	mu.Unlock()
	if !ok {
		return nil, errors.E(op, errors.Setup, errors.Errorf("no container server registered for transport %d", e.Transport))
	}
	x, err := reachableService(cfg, e, containerDialCache, s)
	if err != nil {
		return nil, errors.E(op, err)
	}
	return x.(coffer.ContainerServer), nil
}

// BlobServer returns a BlobServer bound to the endpoint, dialed with the
// identity in the config.
func BlobServer(cfg coffer.Config, e coffer.Endpoint) (coffer.BlobServer, error) {
	const op errors.Op = "bind.BlobServer"
	mu.Lock()
	s, ok := blobMap[e.Transport]
	mu.Unlock()
	if !ok {
		return nil, errors.E(op, errors.Setup, errors.Errorf("no blob server registered for transport %d", e.Transport))
	}
	x, err := reachableService(cfg, e, blobDialCache, s)
	if err != nil {
		return nil, errors.E(op, err)
	}
	return x.(coffer.BlobServer), nil
}

// Release closes the service and evicts it from the dial cache, so the next
// bind for its endpoint dials afresh.
func Release(service coffer.Service) error {
	const op errors.Op = "bind.Release"
	mu.Lock()
	defer mu.Unlock()

	key, ok := reverseLookup[service]
	if !ok {
		return errors.E(op, errors.NotExist, "service not found")
	}
	switch service.(type) {
	case coffer.ContainerServer:
		delete(containerDialCache, key)
	case coffer.BlobServer:
		delete(blobDialCache, key)
	default:
		return errors.E(op, errors.Invalid, "invalid service type")
	}
	service.Close()
	delete(reverseLookup, service)
	return nil
}

// keyFor derives the dial-cache key for a config and endpoint. A config
// without a keyring dials anonymously; all anonymous configs share a
// connection.
func keyFor(cfg coffer.Config, e coffer.Endpoint) dialKey {
	key := dialKey{endpoint: e}
	if cfg != nil && cfg.Keyring() != nil {
		key.identity = string(cfg.Keyring().SigningPublicKey())
	}
	return key
}

// reachableService finds a bound and reachable service in the cache or dials
// a fresh one and saves it in the cache.
func reachableService(cfg coffer.Config, e coffer.Endpoint, cache dialCache, dialer coffer.Dialer) (coffer.Service, error) {
	key := keyFor(cfg, e)

	mu.Lock()
	ds, found := cache[key]
	if !found {
		service, err := dialer.Dial(cfg, e)
		if err != nil {
			mu.Unlock()
			return nil, err
		}
		ds = &dialedService{service: service, lastPing: time.Now()}
		cache[key] = ds
		reverseLookup[service] = key
		mu.Unlock()
		return service, nil
	}
	mu.Unlock()

	ds.mu.Lock()
	defer ds.mu.Unlock()
	if time.Since(ds.lastPing) < pingFreshnessDuration {
		return ds.service, nil
	}
	if !ds.service.Ping() {
		mu.Lock()
		delete(cache, key)
		delete(reverseLookup, ds.service)
		mu.Unlock()
		return nil, errors.E(errors.Disconnected, "ping failed")
	}
	ds.lastPing = time.Now()
	return ds.service, nil
}
