// Copyright 2026 The Coffer Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package log

import (
	"bytes"
	"os"
	"strings"
	"testing"
)

func TestSetLevel(t *testing.T) {
	defer restore()

	var buf bytes.Buffer
	SetOutput(&buf)

	if err := SetLevel("error"); err != nil {
		t.Fatal(err)
	}
	Debug.Printf("debug msg")
	Info.Printf("info msg")
	Error.Printf("error msg")

	out := buf.String()
	if strings.Contains(out, "debug msg") || strings.Contains(out, "info msg") {
		t.Errorf("low-level messages logged at error level: %q", out)
	}
	if !strings.Contains(out, "error msg") {
		t.Errorf("error message missing: %q", out)
	}
}

func TestAt(t *testing.T) {
	defer restore()

	for _, test := range []struct {
		current, query string
		want           bool
	}{
		{"info", "info", true},
		{"info", "debug", false},
		{"info", "error", true},
		{"debug", "debug", true},
		{"error", "info", false},
		{"info", "bogus", false},
	} {
		if err := SetLevel(test.current); err != nil {
			t.Fatal(err)
		}
		if got := At(test.query); got != test.want {
			t.Errorf("at level %q, At(%q) = %t, want %t", test.current, test.query, got, test.want)
		}
	}
}

func TestBadLevel(t *testing.T) {
	if err := SetLevel("verbose"); err == nil {
		t.Error("SetLevel accepted a bad level")
	}
}

func restore() {
	SetOutput(os.Stderr)
	SetLevel("info")
}
