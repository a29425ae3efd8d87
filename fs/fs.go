// Copyright 2026 The Coffer Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package fs emulates a flat filesystem over one mutable container. Each
// file is one container entry: the entry key is the file name, the entry
// value a deterministically encoded record pointing at an immutable blob
// holding the content, plus size, timestamps and free-form user metadata.
// A file's version is the owning entry's version, so all the container's
// optimistic-concurrency rules apply unchanged.
//
// The adapter holds a non-owning reference to the container handle and
// never mutates it outside the container's transaction API.
package fs

import (
	"github.com/fxamacker/cbor/v2"

	"coffer.io/blob"
	"coffer.io/coffer"
	"coffer.io/container"
	"coffer.io/errors"
)

// encMode is the CBOR encoder configured with Core Deterministic Encoding:
// sorted map keys, smallest integer encoding, no indefinite-length items.
// The same record always produces identical bytes, which keeps encrypted
// entry values stable.
var encMode cbor.EncMode

func init() {
	var err error
	encMode, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic("fs: CBOR encoder initialization failed: " + err.Error())
	}
}

// A File is the record stored for one file. Content lives in an immutable
// blob; the record holds its address and the file metadata.
type File struct {
	Ref      coffer.BlobRef    `cbor:"ref"`
	Size     int64             `cbor:"size"`
	Created  coffer.Time       `cbor:"created"`
	Modified coffer.Time       `cbor:"modified"`
	Metadata map[string]string `cbor:"meta,omitempty"`

	// Version is the owning entry's version. It is not part of the
	// record encoding; Fetch fills it in.
	Version coffer.Version `cbor:"-"`
}

// FS is the filesystem view of one container.
type FS struct {
	cfg coffer.Config
	c   *container.Container
}

// New returns a filesystem view over the container.
func New(cfg coffer.Config, c *container.Container) *FS {
	return &FS{cfg: cfg, c: c}
}

// Container returns the underlying container handle.
func (fs *FS) Container() *container.Container {
	return fs.c
}

// cipherFor returns the scheme and key under which file content blobs are
// sealed: the deterministic symmetric scheme under the container secret for
// a private container, plain storage for a public one.
func (fs *FS) cipherFor() (coffer.Cipher, []byte) {
	if fs.c.Private() {
		return coffer.Symm, fs.c.Secret()
	}
	return coffer.Plain, nil
}

// Create builds a new file record with the given content, sealing the
// content into a fresh blob. Nothing is committed to the container; follow
// with Insert or Update.
func (fs *FS) Create(content []byte) (*File, error) {
	const op errors.Op = "fs.Create"
	w, err := blob.Create(fs.cfg)
	if err != nil {
		return nil, errors.E(op, err)
	}
	if _, err := w.Write(content); err != nil {
		return nil, errors.E(op, err)
	}
	scheme, key := fs.cipherFor()
	ref, err := w.Close(scheme, key)
	if err != nil {
		return nil, errors.E(op, err)
	}
	now := coffer.Now()
	return &File{
		Ref:      ref,
		Size:     int64(len(content)),
		Created:  now,
		Modified: now,
	}, nil
}

// Insert commits f as a new file named name. It fails with Exist if the
// name is live.
func (fs *FS) Insert(name string, f *File) error {
	const op errors.Op = "fs.Insert"
	key, value, err := fs.encode(name, f)
	if err != nil {
		return errors.E(op, err)
	}
	tx := container.NewTransaction().Insert(key, value)
	if err := fs.c.ApplyEntriesMutation(tx); err != nil {
		return errors.E(op, err)
	}
	return nil
}

// Update commits f over the existing file named name, superseding entry
// version prev. A mismatch fails with Conflict.
func (fs *FS) Update(name string, f *File, prev coffer.Version) error {
	const op errors.Op = "fs.Update"
	f.Modified = coffer.Now()
	key, value, err := fs.encode(name, f)
	if err != nil {
		return errors.E(op, err)
	}
	tx := container.NewTransaction().Update(key, value, prev)
	if err := fs.c.ApplyEntriesMutation(tx); err != nil {
		return errors.E(op, err)
	}
	return nil
}

// UpdateLatest is Update against the current version of the file, read
// fresh from the server first. It fails with NotExist if the file is
// absent; a concurrent writer can still produce a Conflict.
func (fs *FS) UpdateLatest(name string, f *File) error {
	const op errors.Op = "fs.UpdateLatest"
	cur, err := fs.Fetch(name)
	if err != nil {
		return errors.E(op, err)
	}
	if err := fs.Update(name, f, cur.Version); err != nil {
		return errors.E(op, err)
	}
	return nil
}

// Delete removes the file named name, superseding entry version prev. The
// entry becomes a tombstone.
func (fs *FS) Delete(name string, prev coffer.Version) error {
	const op errors.Op = "fs.Delete"
	key, err := fs.c.EncryptKey(coffer.EntryKey(name))
	if err != nil {
		return errors.E(op, err)
	}
	tx := container.NewTransaction().Delete(key, prev)
	if err := fs.c.ApplyEntriesMutation(tx); err != nil {
		return errors.E(op, err)
	}
	return nil
}

// DeleteLatest is Delete against the current version of the file, read
// fresh from the server first. It fails with NotExist if the file is
// absent.
func (fs *FS) DeleteLatest(name string) error {
	const op errors.Op = "fs.DeleteLatest"
	cur, err := fs.Fetch(name)
	if err != nil {
		return errors.E(op, err)
	}
	if err := fs.Delete(name, cur.Version); err != nil {
		return errors.E(op, err)
	}
	return nil
}

// Fetch returns the current record of the file named name, syncing the
// container first so the version is fresh. It fails with NotExist if the
// name is absent or deleted.
func (fs *FS) Fetch(name string) (*File, error) {
	const op errors.Op = "fs.Fetch"
	if err := fs.c.Sync(); err != nil {
		return nil, errors.E(op, err)
	}
	key, err := fs.c.EncryptKey(coffer.EntryKey(name))
	if err != nil {
		return nil, errors.E(op, err)
	}
	sealed, version, err := fs.c.Entries().Get(key)
	if err != nil {
		return nil, errors.E(op, coffer.EntryKey(name), err)
	}
	value, err := fs.c.Decrypt(sealed)
	if err != nil {
		return nil, errors.E(op, err)
	}
	f := new(File)
	if err := cbor.Unmarshal(value, f); err != nil {
		return nil, errors.E(op, errors.Serialisation, err)
	}
	f.Version = version
	return f, nil
}

// Content returns the file's content, fetched from the blob store and
// opened under the container's cipher policy.
func (fs *FS) Content(f *File) ([]byte, error) {
	const op errors.Op = "fs.Content"
	_, key := fs.cipherFor()
	r, err := blob.Fetch(fs.cfg, f.Ref, key)
	if err != nil {
		return nil, errors.E(op, err)
	}
	return r.ReadAll(), nil
}

// encode seals the entry key and record value for name per the container's
// cipher policy.
func (fs *FS) encode(name string, f *File) (coffer.EntryKey, []byte, error) {
	if name == "" {
		return "", nil, errors.E(errors.Invalid, "empty file name")
	}
	key, err := fs.c.EncryptKey(coffer.EntryKey(name))
	if err != nil {
		return "", nil, err
	}
	record, err := encMode.Marshal(f)
	if err != nil {
		return "", nil, errors.E(errors.Serialisation, err)
	}
	value, err := fs.c.EncryptValue(record)
	if err != nil {
		return "", nil, err
	}
	return key, value, nil
}
