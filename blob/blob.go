// Copyright 2026 The Coffer Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package blob implements the client side of immutable content-addressed
// blobs: an append-then-seal writer and a ranged reader.
//
// A Writer buffers locally; nothing reaches the server until Close, which
// seals the bytes under a cipher scheme, uploads them and returns their
// content address, the hex BLAKE3 digest of the sealed bytes as stored. An
// abandoned writer leaves no server-side trace. Blobs are write-once: after
// Close the writer is spent.
package blob

import (
	"bytes"
	"encoding/hex"

	"github.com/zeebo/blake3"

	"coffer.io/bind"
	"coffer.io/cipher"
	"coffer.io/coffer"
	"coffer.io/errors"

	_ "coffer.io/cipher/plain"
	_ "coffer.io/cipher/sealed"
	_ "coffer.io/cipher/symm"
)

// RefOf returns the content address of sealed blob bytes.
func RefOf(sealed []byte) coffer.BlobRef {
	sum := blake3.Sum256(sealed)
	return coffer.BlobRef(hex.EncodeToString(sum[:]))
}

// A Writer accumulates blob content. It implements io.Writer until Close
// seals and commits the content.
type Writer struct {
	cfg    coffer.Config
	server coffer.BlobServer
	buf    bytes.Buffer
	closed bool
}

// Create returns a Writer that will commit to the config's blob server.
func Create(cfg coffer.Config) (*Writer, error) {
	const op errors.Op = "blob.Create"
	if cfg == nil {
		return nil, errors.E(op, errors.Setup, "no config")
	}
	server, err := bind.BlobServer(cfg, cfg.BlobEndpoint())
	if err != nil {
		return nil, errors.E(op, err)
	}
	return &Writer{cfg: cfg, server: server}, nil
}

// Write buffers p locally. It has no network effect.
func (w *Writer) Write(p []byte) (int, error) {
	const op errors.Op = "blob.Writer.Write"
	if w.closed {
		return 0, errors.E(op, errors.Invalid, "write on closed blob writer")
	}
	return w.buf.Write(p)
}

// Len returns the number of buffered content bytes.
func (w *Writer) Len() int {
	return w.buf.Len()
}

// Close seals the buffered content under the scheme, uploads the sealed
// bytes and returns their content address. The key argument follows the
// scheme's convention (see cipher.Scheme.Seal). Closing is irreversible;
// any further Write or Close fails with Invalid.
func (w *Writer) Close(c coffer.Cipher, key []byte) (coffer.BlobRef, error) {
	const op errors.Op = "blob.Writer.Close"
	if w.closed {
		return "", errors.E(op, errors.Invalid, "blob writer is already closed")
	}
	w.closed = true
	sealed, err := cipher.Seal(w.cfg, c, key, w.buf.Bytes())
	if err != nil {
		return "", errors.E(op, err)
	}
	ref := RefOf(sealed)
	got, err := w.server.Put(sealed)
	if err != nil {
		return "", errors.E(op, err)
	}
	// The server's address must agree with ours; a disagreement means the
	// server stored something other than what we sent.
	if got != ref {
		return "", errors.E(op, errors.IO, errors.Errorf("server returned content address %q, want %q", got, ref))
	}
	return ref, nil
}

// A Reader holds the opened cleartext of one blob and serves ranged reads
// from it.
type Reader struct {
	clear []byte
}

// Fetch retrieves the sealed blob, verifies its content address and opens
// it with the key, which follows the sealing scheme's convention. The
// scheme itself is identified by the sealed bytes.
func Fetch(cfg coffer.Config, ref coffer.BlobRef, key []byte) (*Reader, error) {
	const op errors.Op = "blob.Fetch"
	if cfg == nil {
		return nil, errors.E(op, errors.Setup, "no config")
	}
	server, err := bind.BlobServer(cfg, cfg.BlobEndpoint())
	if err != nil {
		return nil, errors.E(op, err)
	}
	sealed, err := server.Get(ref)
	if err != nil {
		return nil, errors.E(op, err)
	}
	// Never trust the transport: the bytes must hash to the address we
	// asked for.
	if got := RefOf(sealed); got != ref {
		return nil, errors.E(op, errors.IO, errors.Errorf("blob bytes hash to %q, want %q", got, ref))
	}
	clear, err := cipher.Open(cfg, key, sealed)
	if err != nil {
		return nil, errors.E(op, err)
	}
	return &Reader{clear: clear}, nil
}

// Size returns the length of the blob's cleartext content.
func (r *Reader) Size() int64 {
	return int64(len(r.clear))
}

// ReadAll returns the whole content.
func (r *Reader) ReadAll() []byte {
	return append([]byte(nil), r.clear...)
}

// ReadRange returns length bytes starting at offset. It fails with a Range
// error when the requested window exceeds the blob's bounds. The operands
// are checked independently so that offset+length cannot overflow.
func (r *Reader) ReadRange(offset, length int64) ([]byte, error) {
	const op errors.Op = "blob.Reader.ReadRange"
	if offset < 0 || length < 0 || offset > r.Size() || length > r.Size()-offset {
		return nil, errors.E(op, errors.Range,
			errors.Errorf("range of %d bytes at offset %d outside blob of %d bytes", length, offset, r.Size()))
	}
	return append([]byte(nil), r.clear[offset:offset+length]...), nil
}
