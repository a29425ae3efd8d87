// Copyright 2026 The Coffer Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package graph_test

import (
	"reflect"
	"testing"

	"coffer.io/coffer"
	"coffer.io/config"
	"coffer.io/container"
	"coffer.io/errors"
	"coffer.io/graph"
	"coffer.io/keyring"

	_ "coffer.io/container/inprocess"
)

const testTag = coffer.TypeTag(15003)

func testConfig(t *testing.T) coffer.Config {
	t.Helper()
	kr, err := keyring.Generate()
	if err != nil {
		t.Fatal(err)
	}
	return config.SetKeyring(config.New(), kr)
}

// setup commits a fresh public container and returns a graph view of it.
func setup(t *testing.T, cfg coffer.Config) *graph.Graph {
	t.Helper()
	c, err := container.New(cfg, testTag)
	if err != nil {
		t.Fatal(err)
	}
	if err := c.QuickSetup(nil, "graph", "statement store"); err != nil {
		t.Fatal(err)
	}
	return graph.New(cfg, c)
}

func st(s, p, o string) graph.Statement {
	return graph.Statement{Subject: s, Predicate: p, Object: o}
}

func TestAddRemoveInMemory(t *testing.T) {
	g := setup(t, testConfig(t))
	g.Add(st("alice", "knows", "bob"))
	g.Add(st("alice", "knows", "bob")) // duplicate is a no-op
	g.Add(st("alice", "name", "Alice"))
	if g.Len() != 2 {
		t.Fatalf("Len = %d, want 2", g.Len())
	}
	g.Remove(st("alice", "knows", "bob"))
	if g.Has(st("alice", "knows", "bob")) {
		t.Error("removed statement still present")
	}

	// Nothing has reached the container.
	if err := g.Container().Sync(); err != nil {
		t.Fatal(err)
	}
	if g.Container().Entries().Len() != 0 {
		t.Error("in-memory mutation touched the container")
	}
}

func TestRemoveMany(t *testing.T) {
	g := setup(t, testConfig(t))
	g.Add(st("alice", "knows", "bob"))
	g.Add(st("alice", "knows", "carol"))
	g.Add(st("bob", "knows", "carol"))
	g.RemoveMany("alice", "knows", "")
	want := []graph.Statement{st("bob", "knows", "carol")}
	if got := g.Statements(); !reflect.DeepEqual(got, want) {
		t.Errorf("Statements = %v, want %v", got, want)
	}
}

func TestCommitRoundTrip(t *testing.T) {
	cfg := testConfig(t)
	g := setup(t, cfg)
	g.Add(st("alice", "knows", "bob"))
	g.Add(st("alice", "name", "Alice"))
	g.Add(st("bob", "name", "Bob"))

	nt, err := g.Commit(true)
	if err != nil {
		t.Fatal(err)
	}
	if nt != g.Container().NameAndTag() {
		t.Errorf("Commit returned %v, want the container identity", nt)
	}

	// A fresh handle to the same container reproduces the statement set.
	c, err := container.Fetch(cfg, nt.Address, nt.Tag)
	if err != nil {
		t.Fatal(err)
	}
	other := graph.New(cfg, c)
	if err := other.Load(); err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(other.Statements(), g.Statements()) {
		t.Errorf("round trip: got %v, want %v", other.Statements(), g.Statements())
	}
}

func TestCommitReplacesRemovedSubjects(t *testing.T) {
	cfg := testConfig(t)
	g := setup(t, cfg)
	g.Add(st("alice", "name", "Alice"))
	g.Add(st("bob", "name", "Bob"))
	if _, err := g.Commit(true); err != nil {
		t.Fatal(err)
	}

	g.RemoveMany("bob", "", "")
	if _, err := g.Commit(true); err != nil {
		t.Fatal(err)
	}

	other := graph.New(cfg, g.Container())
	if err := other.Load(); err != nil {
		t.Fatal(err)
	}
	if other.Has(st("bob", "name", "Bob")) {
		t.Error("statement of removed subject survived recommit")
	}
	if !other.Has(st("alice", "name", "Alice")) {
		t.Error("untouched subject lost its statements")
	}
}

func TestAppendMerges(t *testing.T) {
	cfg := testConfig(t)
	g := setup(t, cfg)
	g.Add(st("alice", "knows", "bob"))
	if _, err := g.Commit(true); err != nil {
		t.Fatal(err)
	}

	// A second handle appends to the same subject without replacing it.
	nt := g.NameAndTag()
	c, err := container.Fetch(cfg, nt.Address, nt.Tag)
	if err != nil {
		t.Fatal(err)
	}
	other := graph.New(cfg, c)
	other.Add(st("alice", "knows", "carol"))
	other.Add(st("dave", "name", "Dave"))
	if _, err := other.Append(true); err != nil {
		t.Fatal(err)
	}

	check := graph.New(cfg, c)
	if err := check.Load(); err != nil {
		t.Fatal(err)
	}
	for _, want := range []graph.Statement{
		st("alice", "knows", "bob"),
		st("alice", "knows", "carol"),
		st("dave", "name", "Dave"),
	} {
		if !check.Has(want) {
			t.Errorf("missing %v after append", want)
		}
	}
}

func TestAppendOnlyPending(t *testing.T) {
	g := setup(t, testConfig(t))
	g.Add(st("alice", "name", "Alice"))
	if _, err := g.Commit(true); err != nil {
		t.Fatal(err)
	}

	// With nothing pending, Append commits nothing.
	version := g.Container().Version()
	if _, err := g.Append(true); err != nil {
		t.Fatal(err)
	}
	if err := g.Container().Sync(); err != nil {
		t.Fatal(err)
	}
	if got := g.Container().Version(); got != version {
		t.Errorf("empty append moved container version %d -> %d", version, got)
	}
}

func TestConcurrentCommitConflict(t *testing.T) {
	cfg := testConfig(t)
	g := setup(t, cfg)
	g.Add(st("alice", "status", "first"))
	if _, err := g.Commit(true); err != nil {
		t.Fatal(err)
	}

	nt := g.NameAndTag()
	c1, err := container.Fetch(cfg, nt.Address, nt.Tag)
	if err != nil {
		t.Fatal(err)
	}
	c2, err := container.Fetch(cfg, nt.Address, nt.Tag)
	if err != nil {
		t.Fatal(err)
	}
	g1 := graph.New(cfg, c1)
	g2 := graph.New(cfg, c2)
	if err := g1.Load(); err != nil {
		t.Fatal(err)
	}
	if err := g2.Load(); err != nil {
		t.Fatal(err)
	}

	// Both handles observed the same entry version for alice, so exactly
	// one commit of the overlapping subject wins.
	g1.Add(st("alice", "status", "second"))
	if _, err := g1.Commit(true); err != nil {
		t.Fatal(err)
	}
	g2.Add(st("alice", "status", "third"))
	if _, err := g2.Commit(true); !errors.Is(errors.Conflict, err) {
		t.Errorf("overlapping commit: %v, want Conflict", err)
	}
}

func TestParseSerialise(t *testing.T) {
	cfg := testConfig(t)
	for _, mime := range []string{graph.MimeJSON, graph.MimeCBOR} {
		g := setup(t, cfg)
		g.Add(st("alice", "knows", "bob"))
		g.Add(graph.Statement{Subject: "alice", Predicate: "said", Object: "hi", Provenance: "bob"})
		data, err := g.Serialise(mime)
		if err != nil {
			t.Fatalf("%s: %v", mime, err)
		}

		other := setup(t, cfg)
		if err := other.Parse(data, mime); err != nil {
			t.Fatalf("%s: %v", mime, err)
		}
		if !reflect.DeepEqual(other.Statements(), g.Statements()) {
			t.Errorf("%s: got %v, want %v", mime, other.Statements(), g.Statements())
		}
	}
}

func TestParseRejectsUnknownFormat(t *testing.T) {
	g := setup(t, testConfig(t))
	if err := g.Parse([]byte("x"), "text/turtle"); !errors.Is(errors.Invalid, err) {
		t.Errorf("Parse of unsupported format: %v, want Invalid", err)
	}
}

func TestPrivateGraph(t *testing.T) {
	cfg := testConfig(t)
	c, err := container.Private(cfg, testTag)
	if err != nil {
		t.Fatal(err)
	}
	if err := c.QuickSetup(nil, "private graph", ""); err != nil {
		t.Fatal(err)
	}
	g := graph.New(cfg, c)
	g.Add(st("alice", "secret", "yes"))
	nt, err := g.Commit(true)
	if err != nil {
		t.Fatal(err)
	}

	// The statement set survives a fresh fetch under the shared secret.
	other, err := container.FetchPrivate(cfg, nt.Address, nt.Tag, c.Secret())
	if err != nil {
		t.Fatal(err)
	}
	og := graph.New(cfg, other)
	if err := og.Load(); err != nil {
		t.Fatal(err)
	}
	if !og.Has(st("alice", "secret", "yes")) {
		t.Errorf("statements after private round trip: %v", og.Statements())
	}
}
