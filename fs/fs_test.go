// Copyright 2026 The Coffer Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package fs_test

import (
	"bytes"
	"testing"

	"coffer.io/coffer"
	"coffer.io/config"
	"coffer.io/container"
	"coffer.io/errors"
	"coffer.io/fs"
	"coffer.io/keyring"

	_ "coffer.io/blob/inprocess"
	_ "coffer.io/container/inprocess"
)

const testTag = coffer.TypeTag(15002)

func testConfig(t *testing.T) coffer.Config {
	t.Helper()
	kr, err := keyring.Generate()
	if err != nil {
		t.Fatal(err)
	}
	return config.SetKeyring(config.New(), kr)
}

// setup commits a fresh public container and returns a filesystem view of it.
func setup(t *testing.T, cfg coffer.Config) *fs.FS {
	t.Helper()
	c, err := container.New(cfg, testTag)
	if err != nil {
		t.Fatal(err)
	}
	if err := c.QuickSetup(nil, "site", "desc"); err != nil {
		t.Fatal(err)
	}
	return fs.New(cfg, c)
}

func TestInsertFetchContent(t *testing.T) {
	v := setup(t, testConfig(t))
	content := []byte("<h1>hi</h1>")

	f, err := v.Create(content)
	if err != nil {
		t.Fatal(err)
	}
	if err := v.Insert("index.html", f); err != nil {
		t.Fatal(err)
	}

	got, err := v.Fetch("index.html")
	if err != nil {
		t.Fatal(err)
	}
	if got.Size != 11 {
		t.Errorf("Size = %d, want 11", got.Size)
	}
	if got.Version != 1 {
		t.Errorf("Version = %d, want 1", got.Version)
	}
	data, err := v.Content(got)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(data, content) {
		t.Errorf("Content = %q, want %q", data, content)
	}
}

func TestInsertExisting(t *testing.T) {
	v := setup(t, testConfig(t))
	f, err := v.Create([]byte("first"))
	if err != nil {
		t.Fatal(err)
	}
	if err := v.Insert("a.txt", f); err != nil {
		t.Fatal(err)
	}
	if err := v.Insert("a.txt", f); !errors.Is(errors.Exist, err) {
		t.Errorf("double insert: %v, want Exist", err)
	}
}

func TestEmptyName(t *testing.T) {
	v := setup(t, testConfig(t))
	f, err := v.Create(nil)
	if err != nil {
		t.Fatal(err)
	}
	if err := v.Insert("", f); !errors.Is(errors.Invalid, err) {
		t.Errorf("insert with empty name: %v, want Invalid", err)
	}
}

func TestUpdateVersioning(t *testing.T) {
	v := setup(t, testConfig(t))
	f, err := v.Create([]byte("one"))
	if err != nil {
		t.Fatal(err)
	}
	if err := v.Insert("notes.txt", f); err != nil {
		t.Fatal(err)
	}

	cur, err := v.Fetch("notes.txt")
	if err != nil {
		t.Fatal(err)
	}
	next, err := v.Create([]byte("two"))
	if err != nil {
		t.Fatal(err)
	}
	if err := v.Update("notes.txt", next, cur.Version); err != nil {
		t.Fatal(err)
	}

	got, err := v.Fetch("notes.txt")
	if err != nil {
		t.Fatal(err)
	}
	if got.Version != cur.Version+1 {
		t.Errorf("version after update = %d, want %d", got.Version, cur.Version+1)
	}
	data, err := v.Content(got)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(data, []byte("two")) {
		t.Errorf("Content = %q, want %q", data, "two")
	}

	// The version superseded by the first update is spent.
	if err := v.Update("notes.txt", next, cur.Version); !errors.Is(errors.Conflict, err) {
		t.Errorf("stale update: %v, want Conflict", err)
	}
}

func TestUpdateLatest(t *testing.T) {
	v := setup(t, testConfig(t))
	f, err := v.Create([]byte("draft"))
	if err != nil {
		t.Fatal(err)
	}
	if err := v.Insert("doc", f); err != nil {
		t.Fatal(err)
	}
	final, err := v.Create([]byte("final"))
	if err != nil {
		t.Fatal(err)
	}
	if err := v.UpdateLatest("doc", final); err != nil {
		t.Fatal(err)
	}
	got, err := v.Fetch("doc")
	if err != nil {
		t.Fatal(err)
	}
	if got.Version != 2 {
		t.Errorf("version = %d, want 2", got.Version)
	}

	if err := v.UpdateLatest("absent", final); !errors.Is(errors.NotExist, err) {
		t.Errorf("UpdateLatest of absent file: %v, want NotExist", err)
	}
}

func TestDeleteAndReinsert(t *testing.T) {
	v := setup(t, testConfig(t))
	f, err := v.Create([]byte("ephemeral"))
	if err != nil {
		t.Fatal(err)
	}
	if err := v.Insert("tmp", f); err != nil {
		t.Fatal(err)
	}
	if err := v.DeleteLatest("tmp"); err != nil {
		t.Fatal(err)
	}
	if _, err := v.Fetch("tmp"); !errors.Is(errors.NotExist, err) {
		t.Errorf("fetch of deleted file: %v, want NotExist", err)
	}

	// Re-insertion continues the entry's version chain past the tombstone.
	if err := v.Insert("tmp", f); err != nil {
		t.Fatal(err)
	}
	got, err := v.Fetch("tmp")
	if err != nil {
		t.Fatal(err)
	}
	if got.Version != 3 {
		t.Errorf("version after re-insert = %d, want 3", got.Version)
	}
}

func TestDeleteLatestMissing(t *testing.T) {
	v := setup(t, testConfig(t))
	if err := v.DeleteLatest("never"); !errors.Is(errors.NotExist, err) {
		t.Errorf("DeleteLatest of absent file: %v, want NotExist", err)
	}
}

func TestMetadata(t *testing.T) {
	v := setup(t, testConfig(t))
	f, err := v.Create([]byte("body"))
	if err != nil {
		t.Fatal(err)
	}
	f.Metadata = map[string]string{"content-type": "text/plain"}
	if err := v.Insert("page", f); err != nil {
		t.Fatal(err)
	}
	got, err := v.Fetch("page")
	if err != nil {
		t.Fatal(err)
	}
	if got.Metadata["content-type"] != "text/plain" {
		t.Errorf("Metadata = %v", got.Metadata)
	}
}

func TestPrivateFiles(t *testing.T) {
	cfg := testConfig(t)
	c, err := container.Private(cfg, testTag)
	if err != nil {
		t.Fatal(err)
	}
	if err := c.QuickSetup(nil, "vault", "private files"); err != nil {
		t.Fatal(err)
	}
	v := fs.New(cfg, c)

	content := []byte("for my eyes only")
	f, err := v.Create(content)
	if err != nil {
		t.Fatal(err)
	}
	if err := v.Insert("secret.txt", f); err != nil {
		t.Fatal(err)
	}
	got, err := v.Fetch("secret.txt")
	if err != nil {
		t.Fatal(err)
	}
	data, err := v.Content(got)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(data, content) {
		t.Errorf("Content = %q, want %q", data, content)
	}

	// A second fetch of the container under its secret sees the same file.
	other, err := container.FetchPrivate(cfg, c.NameAndTag().Address, testTag, c.Secret())
	if err != nil {
		t.Fatal(err)
	}
	got2, err := fs.New(cfg, other).Fetch("secret.txt")
	if err != nil {
		t.Fatal(err)
	}
	if got2.Ref != got.Ref {
		t.Errorf("refs differ across handles: %q vs %q", got2.Ref, got.Ref)
	}
}
