// Copyright 2026 The Coffer Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package fs

import (
	"bytes"
	"io"

	"coffer.io/errors"
)

// A Mode selects what a Handle may do with its file.
type Mode uint8

const (
	// Read opens the file's current content for reading. The handle
	// never writes.
	Read Mode = iota

	// Overwrite opens an empty buffer; Close replaces the file's content
	// with whatever was written.
	Overwrite

	// Append opens a buffer preloaded with the file's current content;
	// Close commits the extended content.
	Append
)

// String returns the name of the mode.
func (m Mode) String() string {
	switch m {
	case Read:
		return "read"
	case Overwrite:
		return "overwrite"
	case Append:
		return "append"
	}
	return "invalid-mode"
}

// A Handle is an open file. A Read handle serves the content as of Open; a
// writing handle buffers locally and commits nothing until Close, which
// seals the buffer into a blob and commits the record superseding the
// version observed at Open. A writer that Opened version v and Closes after
// another writer committed fails with Conflict, leaving the file untouched.
type Handle struct {
	fs     *FS
	name   string
	mode   Mode
	closed bool

	// Read state.
	data   []byte
	offset int64

	// Write state. prior is the record observed at Open, nil when the
	// file did not exist; Close turns nil into an insert.
	buf   bytes.Buffer
	prior *File
}

// Open opens the file named name in the given mode. In Read mode the file
// must exist; in Overwrite and Append modes an absent file is created at
// Close.
func (fs *FS) Open(name string, mode Mode) (*Handle, error) {
	const op errors.Op = "fs.Open"
	if name == "" {
		return nil, errors.E(op, errors.Invalid, "empty file name")
	}
	h := &Handle{fs: fs, name: name, mode: mode}
	f, err := fs.Fetch(name)
	switch {
	case err == nil:
		// Live file.
	case errors.Is(errors.NotExist, err) && mode != Read:
		return h, nil
	default:
		return nil, errors.E(op, err)
	}
	switch mode {
	case Read:
		h.data, err = fs.Content(f)
		if err != nil {
			return nil, errors.E(op, err)
		}
	case Overwrite:
		h.prior = f
	case Append:
		h.prior = f
		content, err := fs.Content(f)
		if err != nil {
			return nil, errors.E(op, err)
		}
		h.buf.Write(content)
	default:
		return nil, errors.E(op, errors.Invalid, "unrecognized open mode")
	}
	return h, nil
}

// Name returns the file name the handle was opened with.
func (h *Handle) Name() string {
	return h.name
}

// Mode returns the mode the handle was opened with.
func (h *Handle) Mode() Mode {
	return h.mode
}

// Size returns the handle's current logical size: the content size for a
// Read handle, the buffered size for a writing one.
func (h *Handle) Size() int64 {
	if h.mode == Read {
		return int64(len(h.data))
	}
	return int64(h.buf.Len())
}

// Read implements io.Reader for a Read handle. Reading from a writing or
// closed handle fails with Invalid.
func (h *Handle) Read(p []byte) (int, error) {
	const op errors.Op = "fs.Handle.Read"
	if h.closed {
		return 0, errors.E(op, errors.Invalid, "handle is closed")
	}
	if h.mode != Read {
		return 0, errors.E(op, errors.Invalid, "handle not open for reading")
	}
	if h.offset >= int64(len(h.data)) {
		return 0, io.EOF
	}
	n := copy(p, h.data[h.offset:])
	h.offset += int64(n)
	return n, nil
}

// Write implements io.Writer for an Overwrite or Append handle. Writing to
// a Read or closed handle fails with Invalid.
func (h *Handle) Write(p []byte) (int, error) {
	const op errors.Op = "fs.Handle.Write"
	if h.closed {
		return 0, errors.E(op, errors.Invalid, "handle is closed")
	}
	if h.mode == Read {
		return 0, errors.E(op, errors.Invalid, "handle not open for writing")
	}
	return h.buf.Write(p)
}

// Close spends the handle. For a Read handle it only releases the content.
// For a writing handle it seals the buffer into a blob and commits the
// record, inserting when the file was absent at Open and otherwise updating
// past the version observed then. Close after Close fails with Invalid.
func (h *Handle) Close() error {
	const op errors.Op = "fs.Handle.Close"
	if h.closed {
		return errors.E(op, errors.Invalid, "handle is closed")
	}
	h.closed = true
	if h.mode == Read {
		h.data = nil
		return nil
	}
	f, err := h.fs.Create(h.buf.Bytes())
	if err != nil {
		return errors.E(op, err)
	}
	if h.prior == nil {
		if err := h.fs.Insert(h.name, f); err != nil {
			return errors.E(op, err)
		}
		return nil
	}
	f.Created = h.prior.Created
	f.Metadata = h.prior.Metadata
	if err := h.fs.Update(h.name, f, h.prior.Version); err != nil {
		return errors.E(op, err)
	}
	return nil
}
