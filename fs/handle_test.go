// Copyright 2026 The Coffer Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package fs_test

import (
	"bytes"
	"io"
	"testing"

	"coffer.io/errors"
	"coffer.io/fs"
)

func TestOpenReadMissing(t *testing.T) {
	v := setup(t, testConfig(t))
	if _, err := v.Open("missing", fs.Read); !errors.Is(errors.NotExist, err) {
		t.Errorf("Open(Read) of absent file: %v, want NotExist", err)
	}
}

func TestOverwriteCreatesAndReplaces(t *testing.T) {
	v := setup(t, testConfig(t))

	// An absent file opened for overwrite is created at Close.
	h, err := v.Open("log", fs.Overwrite)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := h.Write([]byte("first version")); err != nil {
		t.Fatal(err)
	}
	if err := h.Close(); err != nil {
		t.Fatal(err)
	}

	// A second overwrite replaces the content entirely.
	h, err = v.Open("log", fs.Overwrite)
	if err != nil {
		t.Fatal(err)
	}
	if h.Size() != 0 {
		t.Errorf("overwrite handle starts at size %d, want 0", h.Size())
	}
	h.Write([]byte("second"))
	if err := h.Close(); err != nil {
		t.Fatal(err)
	}

	f, err := v.Fetch("log")
	if err != nil {
		t.Fatal(err)
	}
	if f.Version != 2 {
		t.Errorf("version = %d, want 2", f.Version)
	}
	data, err := v.Content(f)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(data, []byte("second")) {
		t.Errorf("Content = %q, want %q", data, "second")
	}
}

func TestAppendExtends(t *testing.T) {
	v := setup(t, testConfig(t))
	h, err := v.Open("journal", fs.Append)
	if err != nil {
		t.Fatal(err)
	}
	h.Write([]byte("day one\n"))
	if err := h.Close(); err != nil {
		t.Fatal(err)
	}

	h, err = v.Open("journal", fs.Append)
	if err != nil {
		t.Fatal(err)
	}
	if h.Size() != 8 {
		t.Errorf("append handle preloaded size %d, want 8", h.Size())
	}
	h.Write([]byte("day two\n"))
	if err := h.Close(); err != nil {
		t.Fatal(err)
	}

	f, err := v.Fetch("journal")
	if err != nil {
		t.Fatal(err)
	}
	data, err := v.Content(f)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(data, []byte("day one\nday two\n")) {
		t.Errorf("Content = %q", data)
	}
}

func TestReadHandle(t *testing.T) {
	v := setup(t, testConfig(t))
	f, err := v.Create([]byte("0123456789"))
	if err != nil {
		t.Fatal(err)
	}
	if err := v.Insert("digits", f); err != nil {
		t.Fatal(err)
	}

	h, err := v.Open("digits", fs.Read)
	if err != nil {
		t.Fatal(err)
	}
	if h.Size() != 10 {
		t.Errorf("Size = %d, want 10", h.Size())
	}
	buf := make([]byte, 4)
	n, err := h.Read(buf)
	if err != nil || n != 4 || !bytes.Equal(buf, []byte("0123")) {
		t.Errorf("first Read = %q (%d, %v)", buf[:n], n, err)
	}
	rest, err := io.ReadAll(h)
	if err != nil || !bytes.Equal(rest, []byte("456789")) {
		t.Errorf("rest = %q, %v", rest, err)
	}
	if _, err := h.Read(buf); err != io.EOF {
		t.Errorf("Read at end: %v, want EOF", err)
	}

	// A read handle never writes.
	if _, err := h.Write([]byte("x")); !errors.Is(errors.Invalid, err) {
		t.Errorf("Write on read handle: %v, want Invalid", err)
	}
	if err := h.Close(); err != nil {
		t.Fatal(err)
	}
	if _, err := h.Read(buf); !errors.Is(errors.Invalid, err) {
		t.Errorf("Read after Close: %v, want Invalid", err)
	}
}

func TestHandleSpentAfterClose(t *testing.T) {
	v := setup(t, testConfig(t))
	h, err := v.Open("once", fs.Overwrite)
	if err != nil {
		t.Fatal(err)
	}
	h.Write([]byte("payload"))
	if err := h.Close(); err != nil {
		t.Fatal(err)
	}
	if _, err := h.Write([]byte("more")); !errors.Is(errors.Invalid, err) {
		t.Errorf("Write after Close: %v, want Invalid", err)
	}
	if err := h.Close(); !errors.Is(errors.Invalid, err) {
		t.Errorf("double Close: %v, want Invalid", err)
	}
}

func TestConcurrentWritersConflict(t *testing.T) {
	v := setup(t, testConfig(t))
	f, err := v.Create([]byte("base"))
	if err != nil {
		t.Fatal(err)
	}
	if err := v.Insert("shared", f); err != nil {
		t.Fatal(err)
	}

	// Both handles observe version 1 at Open.
	h1, err := v.Open("shared", fs.Overwrite)
	if err != nil {
		t.Fatal(err)
	}
	h2, err := v.Open("shared", fs.Overwrite)
	if err != nil {
		t.Fatal(err)
	}
	h1.Write([]byte("winner"))
	if err := h1.Close(); err != nil {
		t.Fatal(err)
	}
	h2.Write([]byte("loser"))
	if err := h2.Close(); !errors.Is(errors.Conflict, err) {
		t.Errorf("second writer: %v, want Conflict", err)
	}

	got, err := v.Fetch("shared")
	if err != nil {
		t.Fatal(err)
	}
	data, err := v.Content(got)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(data, []byte("winner")) {
		t.Errorf("Content = %q, want the first writer's", data)
	}
}

func TestAppendCarriesMetadata(t *testing.T) {
	v := setup(t, testConfig(t))
	f, err := v.Create([]byte("entry"))
	if err != nil {
		t.Fatal(err)
	}
	f.Metadata = map[string]string{"lang": "en"}
	if err := v.Insert("tagged", f); err != nil {
		t.Fatal(err)
	}

	h, err := v.Open("tagged", fs.Append)
	if err != nil {
		t.Fatal(err)
	}
	h.Write([]byte(" more"))
	if err := h.Close(); err != nil {
		t.Fatal(err)
	}
	got, err := v.Fetch("tagged")
	if err != nil {
		t.Fatal(err)
	}
	if got.Metadata["lang"] != "en" {
		t.Errorf("Metadata = %v, want lang carried over", got.Metadata)
	}
}
