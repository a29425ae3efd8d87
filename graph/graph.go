// Copyright 2026 The Coffer Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package graph emulates an RDF-like statement store over one mutable
// container. Statements are subject-predicate-object triples with optional
// provenance, held in memory; nothing touches the network until Commit or
// Append serialises them into container entries, one entry per subject
// holding the canonically encoded statement list. Entry versions follow the
// container's optimistic-concurrency rules, so two handles committing
// overlapping subjects resolve the same way two entry writers do.
package graph

import (
	"encoding/json"
	"sort"

	"github.com/fxamacker/cbor/v2"

	"coffer.io/coffer"
	"coffer.io/container"
	"coffer.io/errors"
)

var encMode cbor.EncMode

func init() {
	var err error
	encMode, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic("graph: CBOR encoder initialization failed: " + err.Error())
	}
}

// A Statement is one subject-predicate-object triple with optional
// provenance. Statements are compared by value; the zero provenance means
// "stated directly".
type Statement struct {
	Subject    string `cbor:"s" json:"subject"`
	Predicate  string `cbor:"p" json:"predicate"`
	Object     string `cbor:"o" json:"object"`
	Provenance string `cbor:"g,omitempty" json:"provenance,omitempty"`
}

// The serialization formats Parse accepts.
const (
	MimeJSON = "application/json"
	MimeCBOR = "application/cbor"
)

// Graph is the in-memory statement store of one container.
type Graph struct {
	cfg coffer.Config
	c   *container.Container

	statements map[Statement]bool
	pending    map[Statement]bool

	// committed maps subjects this handle has serialised to their entry
	// keys, so a later Commit can delete entries for subjects that no
	// longer hold statements.
	committed map[string]coffer.EntryKey
}

// New returns an empty graph view over the container.
func New(cfg coffer.Config, c *container.Container) *Graph {
	return &Graph{
		cfg:        cfg,
		c:          c,
		statements: make(map[Statement]bool),
		pending:    make(map[Statement]bool),
		committed:  make(map[string]coffer.EntryKey),
	}
}

// Container returns the underlying container handle.
func (g *Graph) Container() *container.Container {
	return g.c
}

// NameAndTag returns the network identity of the underlying container.
func (g *Graph) NameAndTag() coffer.NameAndTag {
	return g.c.NameAndTag()
}

// Add records the statement in memory. It has no network effect; the
// statement is serialised by the next Commit or Append.
func (g *Graph) Add(st Statement) {
	if g.statements[st] {
		return
	}
	g.statements[st] = true
	g.pending[st] = true
}

// Remove drops the statement from memory. A removal of an already
// serialised statement takes effect at the next Commit; Append never
// removes.
func (g *Graph) Remove(st Statement) {
	delete(g.statements, st)
	delete(g.pending, st)
}

// RemoveMany drops every statement matched by the given fields; an empty
// field matches anything.
func (g *Graph) RemoveMany(subject, predicate, object string) {
	for st := range g.statements {
		if subject != "" && st.Subject != subject {
			continue
		}
		if predicate != "" && st.Predicate != predicate {
			continue
		}
		if object != "" && st.Object != object {
			continue
		}
		g.Remove(st)
	}
}

// Has reports whether the statement is in the store.
func (g *Graph) Has(st Statement) bool {
	return g.statements[st]
}

// Len returns the number of statements in the store.
func (g *Graph) Len() int {
	return len(g.statements)
}

// Statements returns every statement, sorted by subject, predicate, object
// and provenance.
func (g *Graph) Statements() []Statement {
	list := make([]Statement, 0, len(g.statements))
	for st := range g.statements {
		list = append(list, st)
	}
	sortStatements(list)
	return list
}

// Subjects returns every distinct subject, sorted.
func (g *Graph) Subjects() []string {
	seen := make(map[string]bool)
	for st := range g.statements {
		seen[st.Subject] = true
	}
	list := make([]string, 0, len(seen))
	for s := range seen {
		list = append(list, s)
	}
	sort.Strings(list)
	return list
}

// About returns the statements with the given subject, sorted.
func (g *Graph) About(subject string) []Statement {
	var list []Statement
	for st := range g.statements {
		if st.Subject == subject {
			list = append(list, st)
		}
	}
	sortStatements(list)
	return list
}

func sortStatements(list []Statement) {
	sort.Slice(list, func(i, j int) bool {
		a, b := list[i], list[j]
		if a.Subject != b.Subject {
			return a.Subject < b.Subject
		}
		if a.Predicate != b.Predicate {
			return a.Predicate < b.Predicate
		}
		if a.Object != b.Object {
			return a.Object < b.Object
		}
		return a.Provenance < b.Provenance
	})
}

// Parse hydrates the store from an externally serialised statement set in
// the given format, without network effect. Parsed statements count as
// added, so a following Append serialises them.
func (g *Graph) Parse(data []byte, mimeType string) error {
	const op errors.Op = "graph.Parse"
	var list []Statement
	switch mimeType {
	case MimeJSON:
		if err := json.Unmarshal(data, &list); err != nil {
			return errors.E(op, errors.Serialisation, err)
		}
	case MimeCBOR:
		if err := cbor.Unmarshal(data, &list); err != nil {
			return errors.E(op, errors.Serialisation, err)
		}
	default:
		return errors.E(op, errors.Invalid, "unsupported serialization format "+mimeType)
	}
	for _, st := range list {
		if st.Subject == "" || st.Predicate == "" {
			return errors.E(op, errors.Invalid, "statement without subject or predicate")
		}
		g.Add(st)
	}
	return nil
}

// Serialise returns the statement set in the given format, suitable for
// Parse on another handle.
func (g *Graph) Serialise(mimeType string) ([]byte, error) {
	const op errors.Op = "graph.Serialise"
	list := g.Statements()
	switch mimeType {
	case MimeJSON:
		data, err := json.Marshal(list)
		if err != nil {
			return nil, errors.E(op, errors.Serialisation, err)
		}
		return data, nil
	case MimeCBOR:
		data, err := encMode.Marshal(list)
		if err != nil {
			return nil, errors.E(op, errors.Serialisation, err)
		}
		return data, nil
	}
	return nil, errors.E(op, errors.Invalid, "unsupported serialization format "+mimeType)
}

// Commit serialises the full statement store into the container, one entry
// per subject, and returns the container's network identity. When encrypt
// is set, values are sealed per the container's cipher policy; entry keys
// always follow the policy so lookups work either way. Entries written by
// an earlier Commit whose subjects no longer hold statements are deleted.
//
// Entry versions are taken from the handle's current snapshot; a writer
// that committed an overlapping subject since the last Sync or Load
// surfaces as Conflict.
func (g *Graph) Commit(encrypt bool) (coffer.NameAndTag, error) {
	const op errors.Op = "graph.Commit"
	entries := g.c.Entries()
	tx := container.NewTransaction()
	written := make(map[string]coffer.EntryKey)
	for _, subject := range g.Subjects() {
		key, value, err := g.encode(subject, g.About(subject), encrypt)
		if err != nil {
			return coffer.NameAndTag{}, errors.E(op, err)
		}
		written[subject] = key
		if _, version, err := entries.Get(key); err == nil {
			tx.Update(key, value, version)
		} else {
			tx.Insert(key, value)
		}
	}
	for subject, key := range g.committed {
		if _, ok := written[subject]; ok {
			continue
		}
		if _, version, err := entries.Get(key); err == nil {
			tx.Delete(key, version)
		}
	}
	if tx.Len() > 0 {
		if err := g.c.ApplyEntriesMutation(tx); err != nil {
			return coffer.NameAndTag{}, errors.E(op, err)
		}
	}
	g.committed = written
	g.pending = make(map[Statement]bool)
	return g.c.NameAndTag(), nil
}

// Append serialises only the statements added since the last Commit or
// Append, merging them into the existing entries of their subjects instead
// of replacing the container's statement set. Untouched subjects keep their
// entries; as with Commit, versions come from the handle's snapshot and a
// concurrent writer of an appended subject surfaces as Conflict.
func (g *Graph) Append(encrypt bool) (coffer.NameAndTag, error) {
	const op errors.Op = "graph.Append"
	if len(g.pending) == 0 {
		return g.c.NameAndTag(), nil
	}
	entries := g.c.Entries()

	bySubject := make(map[string][]Statement)
	for st := range g.pending {
		bySubject[st.Subject] = append(bySubject[st.Subject], st)
	}
	subjects := make([]string, 0, len(bySubject))
	for s := range bySubject {
		subjects = append(subjects, s)
	}
	sort.Strings(subjects)

	tx := container.NewTransaction()
	written := make(map[string]coffer.EntryKey)
	for _, subject := range subjects {
		key, err := g.c.EncryptKey(coffer.EntryKey(subject))
		if err != nil {
			return coffer.NameAndTag{}, errors.E(op, err)
		}
		merged := bySubject[subject]
		sealed, version, err := entries.Get(key)
		if err == nil {
			existing, err := g.decode(sealed)
			if err != nil {
				return coffer.NameAndTag{}, errors.E(op, err)
			}
			merged = mergeStatements(existing, merged)
			_, value, err := g.encode(subject, merged, encrypt)
			if err != nil {
				return coffer.NameAndTag{}, errors.E(op, err)
			}
			tx.Update(key, value, version)
		} else {
			sortStatements(merged)
			_, value, err := g.encode(subject, merged, encrypt)
			if err != nil {
				return coffer.NameAndTag{}, errors.E(op, err)
			}
			tx.Insert(key, value)
		}
		written[subject] = key
	}
	if err := g.c.ApplyEntriesMutation(tx); err != nil {
		return coffer.NameAndTag{}, errors.E(op, err)
	}
	for subject, key := range written {
		g.committed[subject] = key
	}
	g.pending = make(map[Statement]bool)
	return g.c.NameAndTag(), nil
}

// Load hydrates the store from the container's current entries, replacing
// the in-memory statement set. Loaded statements count as serialised, not
// pending.
func (g *Graph) Load() error {
	const op errors.Op = "graph.Load"
	if err := g.c.Sync(); err != nil {
		return errors.E(op, err)
	}
	statements := make(map[Statement]bool)
	committed := make(map[string]coffer.EntryKey)
	for _, entry := range g.c.Entries().List() {
		list, err := g.decode(entry.Value)
		if err != nil {
			return errors.E(op, err)
		}
		for _, st := range list {
			statements[st] = true
			committed[st.Subject] = entry.Key
		}
	}
	g.statements = statements
	g.pending = make(map[Statement]bool)
	g.committed = committed
	return nil
}

// mergeStatements unions the two lists, preserving canonical order.
func mergeStatements(existing, added []Statement) []Statement {
	seen := make(map[Statement]bool, len(existing))
	merged := make([]Statement, 0, len(existing)+len(added))
	for _, st := range existing {
		if !seen[st] {
			seen[st] = true
			merged = append(merged, st)
		}
	}
	for _, st := range added {
		if !seen[st] {
			seen[st] = true
			merged = append(merged, st)
		}
	}
	sortStatements(merged)
	return merged
}

// encode seals the entry key for subject per the container's cipher policy
// and the canonically encoded statement list, sealed too when encrypt is
// set.
func (g *Graph) encode(subject string, list []Statement, encrypt bool) (coffer.EntryKey, []byte, error) {
	key, err := g.c.EncryptKey(coffer.EntryKey(subject))
	if err != nil {
		return "", nil, err
	}
	value, err := encMode.Marshal(list)
	if err != nil {
		return "", nil, errors.E(errors.Serialisation, err)
	}
	if encrypt {
		value, err = g.c.EncryptValue(value)
		if err != nil {
			return "", nil, err
		}
	}
	return key, value, nil
}

// decode recovers a statement list from an entry value that may or may not
// have been sealed; a cleartext commit into a private container is legal,
// so the sealed interpretation is tried first and the raw bytes second.
func (g *Graph) decode(sealed []byte) ([]Statement, error) {
	var list []Statement
	if clear, err := g.c.Decrypt(sealed); err == nil {
		if err := cbor.Unmarshal(clear, &list); err == nil {
			return list, nil
		}
	}
	if err := cbor.Unmarshal(sealed, &list); err != nil {
		return nil, errors.E(errors.Serialisation, "entry value is not a statement list", err)
	}
	return list, nil
}
