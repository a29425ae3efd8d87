// Copyright 2026 The Coffer Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package container

import (
	"sort"

	"coffer.io/coffer"
	"coffer.io/errors"
)

// Entries is a point-in-time view of a container's entry store. It never
// reflects remote changes made after the fetch or commit that produced it.
type Entries struct {
	byKey map[coffer.EntryKey]coffer.Entry
}

func newEntries(entries []coffer.Entry) *Entries {
	e := &Entries{byKey: make(map[coffer.EntryKey]coffer.Entry, len(entries))}
	for _, entry := range entries {
		e.byKey[entry.Key] = entry
	}
	return e
}

// Get returns the value and version of the entry for key. It fails with
// NotExist if the key was never inserted or is a tombstone.
func (e *Entries) Get(key coffer.EntryKey) ([]byte, coffer.Version, error) {
	const op errors.Op = "container.Entries.Get"
	entry, ok := e.byKey[key]
	if !ok || entry.Deleted {
		return nil, 0, errors.E(op, key, errors.NotExist)
	}
	return append([]byte(nil), entry.Value...), entry.Version, nil
}

// Version returns the version of the entry for key, tombstones included,
// or zero if the key was never written.
func (e *Entries) Version(key coffer.EntryKey) coffer.Version {
	return e.byKey[key].Version
}

// List returns the live entries sorted by key. The order is stable but
// carries no meaning; insertion order is not preserved.
func (e *Entries) List() []coffer.Entry {
	list := make([]coffer.Entry, 0, len(e.byKey))
	for _, entry := range e.byKey {
		if entry.Deleted {
			continue
		}
		entry.Value = append([]byte(nil), entry.Value...)
		list = append(list, entry)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].Key < list[j].Key })
	return list
}

// Len returns the number of live entries.
func (e *Entries) Len() int {
	n := 0
	for _, entry := range e.byKey {
		if !entry.Deleted {
			n++
		}
	}
	return n
}

// A Transaction is an ordered batch of pending entry mutations. Nothing is
// sent until the batch is passed to Container.ApplyEntriesMutation, which
// commits it atomically; an abandoned transaction leaves no trace anywhere.
type Transaction struct {
	muts []coffer.EntryMutation
}

// NewTransaction returns an empty mutation batch.
func NewTransaction() *Transaction {
	return &Transaction{}
}

// Insert adds an insert action. It will fail the commit with Exist if the
// key is live at commit time; over a tombstone it continues the version
// chain.
func (t *Transaction) Insert(key coffer.EntryKey, value []byte) *Transaction {
	t.muts = append(t.muts, coffer.EntryMutation{
		Op:    coffer.InsertOp,
		Key:   key,
		Value: append([]byte(nil), value...),
	})
	return t
}

// Update adds an update action superseding version prev, the live version
// the caller observed. A mismatch at commit time fails the whole batch with
// Conflict.
func (t *Transaction) Update(key coffer.EntryKey, value []byte, prev coffer.Version) *Transaction {
	t.muts = append(t.muts, coffer.EntryMutation{
		Op:    coffer.UpdateOp,
		Key:   key,
		Value: append([]byte(nil), value...),
		Prev:  prev,
	})
	return t
}

// Delete adds a delete action superseding version prev. The entry becomes a
// tombstone; its version chain survives for later re-insertion.
func (t *Transaction) Delete(key coffer.EntryKey, prev coffer.Version) *Transaction {
	t.muts = append(t.muts, coffer.EntryMutation{
		Op:   coffer.DeleteOp,
		Key:  key,
		Prev: prev,
	})
	return t
}

// Len returns the number of pending actions.
func (t *Transaction) Len() int {
	return len(t.muts)
}
