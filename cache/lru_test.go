// Copyright 2026 The Coffer Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package cache

import "testing"

func TestAddGet(t *testing.T) {
	c := NewLRU(3)
	c.Add("a", 1)
	c.Add("b", 2)
	if got := c.Len(); got != 2 {
		t.Fatalf("Len = %d, want 2", got)
	}
	v, ok := c.Get("a")
	if !ok || v.(int) != 1 {
		t.Errorf("Get(a) = %v, %t", v, ok)
	}
	if _, ok := c.Get("missing"); ok {
		t.Error("Get(missing) succeeded")
	}
}

func TestEvictionOrder(t *testing.T) {
	c := NewLRU(2)
	c.Add("a", 1)
	c.Add("b", 2)
	c.Get("a") // Touch a so b is now the oldest.
	c.Add("c", 3)
	if _, ok := c.Get("b"); ok {
		t.Error("b survived eviction")
	}
	if _, ok := c.Get("a"); !ok {
		t.Error("a was evicted")
	}
}

type notified struct {
	key interface{}
}

func (n *notified) OnEviction(key interface{}) {
	n.key = key
}

func TestEvictionNotifier(t *testing.T) {
	c := NewLRU(1)
	n := &notified{}
	c.Add("a", n)
	c.Add("b", 2)
	if n.key != "a" {
		t.Errorf("OnEviction key = %v, want a", n.key)
	}
}

func TestRemove(t *testing.T) {
	c := NewLRU(2)
	c.Add("a", 1)
	if v := c.Remove("a"); v.(int) != 1 {
		t.Errorf("Remove(a) = %v, want 1", v)
	}
	if v := c.Remove("a"); v != nil {
		t.Errorf("second Remove(a) = %v, want nil", v)
	}
	if got := c.Len(); got != 0 {
		t.Errorf("Len = %d, want 0", got)
	}
}

func TestRemoveOldest(t *testing.T) {
	c := NewLRU(3)
	c.Add("a", 1)
	c.Add("b", 2)
	key, value := c.RemoveOldest()
	if key != "a" || value.(int) != 1 {
		t.Errorf("RemoveOldest = %v, %v, want a, 1", key, value)
	}
}
