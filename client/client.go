// Copyright 2026 The Coffer Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package client provides the session-facing surface of the system: one
// Client per config, owning an explicit, clearable cache of container
// handles. The cache trades freshness for round trips; a cached handle is a
// point-in-time snapshot until Sync or eviction, and the optimistic version
// checks keep stale writes from doing damage.
package client

import (
	"sync"

	"coffer.io/cache"
	"coffer.io/coffer"
	"coffer.io/container"
	"coffer.io/errors"
	"coffer.io/fs"
	"coffer.io/graph"
)

// maxHandles bounds the handle cache. Old handles fall out in LRU order.
const maxHandles = 100

// Client is a session against the servers named by its config.
type Client struct {
	cfg coffer.Config

	mu      sync.Mutex
	handles *cache.LRU // coffer.NameAndTag -> *container.Container
}

// New returns a Client for the config.
func New(cfg coffer.Config) *Client {
	return &Client{
		cfg:     cfg,
		handles: cache.NewLRU(maxHandles),
	}
}

// Config returns the client's config.
func (cl *Client) Config() coffer.Config {
	return cl.cfg
}

// Create returns a fresh uncommitted public container under the tag.
func (cl *Client) Create(tag coffer.TypeTag) (*container.Container, error) {
	const op errors.Op = "client.Create"
	c, err := container.New(cl.cfg, tag)
	if err != nil {
		return nil, errors.E(op, err)
	}
	return c, nil
}

// CreatePrivate returns a fresh uncommitted private container under the
// tag, with a newly drawn container secret.
func (cl *Client) CreatePrivate(tag coffer.TypeTag) (*container.Container, error) {
	const op errors.Op = "client.CreatePrivate"
	c, err := container.Private(cl.cfg, tag)
	if err != nil {
		return nil, errors.E(op, err)
	}
	return c, nil
}

// QuickSetup creates and commits a public container in one step and caches
// its handle.
func (cl *Client) QuickSetup(tag coffer.TypeTag, entries map[coffer.EntryKey][]byte, name, description string) (*container.Container, error) {
	const op errors.Op = "client.QuickSetup"
	c, err := container.New(cl.cfg, tag)
	if err != nil {
		return nil, errors.E(op, err)
	}
	if err := c.QuickSetup(entries, name, description); err != nil {
		return nil, errors.E(op, err)
	}
	cl.mu.Lock()
	cl.handles.Add(c.NameAndTag(), c)
	cl.mu.Unlock()
	return c, nil
}

// Fetch returns a handle to the committed container at the address and tag,
// serving from the handle cache when possible. A cached handle reflects the
// container as of its last fetch or commit; call Sync on it, or Evict here,
// to observe later remote changes.
func (cl *Client) Fetch(addr coffer.Address, tag coffer.TypeTag) (*container.Container, error) {
	const op errors.Op = "client.Fetch"
	nt := coffer.NameAndTag{Address: addr, Tag: tag}
	cl.mu.Lock()
	if cached, ok := cl.handles.Get(nt); ok {
		cl.mu.Unlock()
		return cached.(*container.Container), nil
	}
	cl.mu.Unlock()

	c, err := container.Fetch(cl.cfg, addr, tag)
	if err != nil {
		return nil, errors.E(op, err)
	}
	cl.mu.Lock()
	cl.handles.Add(nt, c)
	cl.mu.Unlock()
	return c, nil
}

// FetchPrivate is Fetch for a private container under its shared secret.
// Private handles are not cached; the secret stays with the caller.
func (cl *Client) FetchPrivate(addr coffer.Address, tag coffer.TypeTag, secret []byte) (*container.Container, error) {
	const op errors.Op = "client.FetchPrivate"
	c, err := container.FetchPrivate(cl.cfg, addr, tag, secret)
	if err != nil {
		return nil, errors.E(op, err)
	}
	return c, nil
}

// Evict drops the cached handle for the container, if any. The next Fetch
// reads fresh state from the server.
func (cl *Client) Evict(addr coffer.Address, tag coffer.TypeTag) {
	cl.mu.Lock()
	cl.handles.Remove(coffer.NameAndTag{Address: addr, Tag: tag})
	cl.mu.Unlock()
}

// ResetCache drops every cached handle.
func (cl *Client) ResetCache() {
	cl.mu.Lock()
	cl.handles = cache.NewLRU(maxHandles)
	cl.mu.Unlock()
}

// CachedHandles returns the number of handles currently cached.
func (cl *Client) CachedHandles() int {
	cl.mu.Lock()
	defer cl.mu.Unlock()
	return cl.handles.Len()
}

// FS returns a filesystem view over the container.
func (cl *Client) FS(c *container.Container) *fs.FS {
	return fs.New(cl.cfg, c)
}

// Graph returns a graph view over the container.
func (cl *Client) Graph(c *container.Container) *graph.Graph {
	return graph.New(cl.cfg, c)
}
