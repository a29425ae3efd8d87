// Copyright 2026 The Coffer Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package bind

import (
	"testing"

	"coffer.io/coffer"
	"coffer.io/config"
)

// dummyBlob counts dials and pings.
type dummyBlob struct {
	endpoint  coffer.Endpoint
	dialed    int
	pinged    int
	pingValue bool
}

func (d *dummyBlob) Dial(cfg coffer.Config, e coffer.Endpoint) (coffer.Service, error) {
	d.dialed++
	d.endpoint = e
	return d, nil
}

func (d *dummyBlob) Endpoint() coffer.Endpoint { return d.endpoint }
func (d *dummyBlob) Close()                    {}

func (d *dummyBlob) Ping() bool {
	d.pinged++
	return d.pingValue
}

func (d *dummyBlob) Put(data []byte) (coffer.BlobRef, error) { return "", nil }
func (d *dummyBlob) Get(ref coffer.BlobRef) ([]byte, error)  { return nil, nil }

func TestDialCaching(t *testing.T) {
	dummy := &dummyBlob{pingValue: true}
	if err := RegisterBlobServer(coffer.Remote, dummy); err != nil {
		t.Fatal(err)
	}
	defer func() {
		mu.Lock()
		delete(blobMap, coffer.Remote)
		mu.Unlock()
	}()

	cfg := config.New()
	e := coffer.Endpoint{Transport: coffer.Remote, NetAddr: "here:443"}
	s1, err := BlobServer(cfg, e)
	if err != nil {
		t.Fatal(err)
	}
	s2, err := BlobServer(cfg, e)
	if err != nil {
		t.Fatal(err)
	}
	if s1 != s2 {
		t.Error("second bind did not reuse the cached service")
	}
	if dummy.dialed != 1 {
		t.Errorf("dialed %d times, want 1", dummy.dialed)
	}
	if dummy.pinged != 0 {
		t.Errorf("pinged %d times while fresh, want 0", dummy.pinged)
	}

	// Once the cached connection is stale it is pinged again.
	saved := pingFreshnessDuration
	pingFreshnessDuration = 0
	defer func() { pingFreshnessDuration = saved }()
	if _, err := BlobServer(cfg, e); err != nil {
		t.Fatal(err)
	}
	if dummy.pinged != 1 {
		t.Errorf("pinged %d times when stale, want 1", dummy.pinged)
	}

	// A failing ping evicts the entry so the next bind dials afresh.
	dummy.pingValue = false
	if _, err := BlobServer(cfg, e); err == nil {
		t.Error("bind succeeded over a dead connection")
	}
	dummy.pingValue = true
	pingFreshnessDuration = saved
	if _, err := BlobServer(cfg, e); err != nil {
		t.Fatal(err)
	}
	if dummy.dialed != 2 {
		t.Errorf("dialed %d times after eviction, want 2", dummy.dialed)
	}
}

func TestRelease(t *testing.T) {
	dummy := &dummyBlob{pingValue: true}
	if err := RegisterBlobServer(coffer.Local, dummy); err != nil {
		t.Fatal(err)
	}
	defer func() {
		mu.Lock()
		delete(blobMap, coffer.Local)
		mu.Unlock()
	}()

	cfg := config.New()
	e := coffer.Endpoint{Transport: coffer.Local, NetAddr: "/data"}
	s, err := BlobServer(cfg, e)
	if err != nil {
		t.Fatal(err)
	}
	if err := Release(s); err != nil {
		t.Fatal(err)
	}
	if err := Release(s); err == nil {
		t.Error("second Release succeeded")
	}
	if _, err := BlobServer(cfg, e); err != nil {
		t.Fatal(err)
	}
	if dummy.dialed != 2 {
		t.Errorf("dialed %d times after release, want 2", dummy.dialed)
	}
}

func TestRegisterTwice(t *testing.T) {
	dummy := &dummyBlob{}
	if err := RegisterBlobServer(coffer.InProcess, dummy); err != nil {
		t.Fatal(err)
	}
	defer func() {
		mu.Lock()
		delete(blobMap, coffer.InProcess)
		mu.Unlock()
	}()
	if err := RegisterBlobServer(coffer.InProcess, dummy); err == nil {
		t.Error("second registration succeeded")
	}
}

func TestUnregisteredTransport(t *testing.T) {
	if _, err := BlobServer(config.New(), coffer.Endpoint{Transport: coffer.Transport(77)}); err == nil {
		t.Error("bind to unregistered transport succeeded")
	}
}
