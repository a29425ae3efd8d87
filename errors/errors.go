// Copyright 2026 The Coffer Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package errors defines the error handling used by all Coffer software.
package errors

import (
	"bytes"
	"encoding"
	"encoding/binary"
	"fmt"
	"runtime"

	"coffer.io/coffer"
	"coffer.io/log"
)

// Error is the type that implements the error interface.
// It contains a number of fields, each of different type.
// An Error value may leave some values unset.
type Error struct {
	// Key is the container entry key of the item being accessed.
	Key coffer.EntryKey
	// Identity is the identity attempting the operation.
	Identity coffer.Identity
	// Op is the operation being performed, usually the name of the method
	// being invoked (Get, Commit, etc.).
	Op Op
	// Kind is the class of error, such as permission failure,
	// or "Other" if its class is unknown or irrelevant.
	Kind Kind
	// Expected and Actual report the version pair of an optimistic-
	// concurrency mismatch. They are meaningful only when Kind is
	// Conflict.
	Expected, Actual coffer.Version
	// The underlying error that triggered this one, if any.
	Err error
}

// Op describes an operation, usually as the package and method,
// such as "container.ApplyEntriesMutation".
type Op string

// Versions is the expected/actual pair of a Conflict error, for use as an
// argument to E.
type Versions struct {
	Expected, Actual coffer.Version
}

var (
	_ error                      = (*Error)(nil)
	_ encoding.BinaryUnmarshaler = (*Error)(nil)
	_ encoding.BinaryMarshaler   = (*Error)(nil)
)

// Separator is the string used to separate nested errors. By
// default, to make errors easier on the eye, nested errors are
// indented on a new line. A server may instead choose to keep each
// error on a single line by modifying the separator string, perhaps
// to ":: ".
var Separator = ":\n\t"

// Kind defines the kind of error this is, mostly for use by callers
// that must act differently depending on the error, such as retry loops.
type Kind uint8

// Kinds of errors.
//
// Do not reorder this list or remove any items since that will change
// their values. New items must be added only to the end.
const (
	Other         Kind = iota // Unclassified error. This value is not printed in the error message.
	Invalid                   // Invalid operation for this type of item.
	Permission                // The identity lacks a required grant.
	Exist                     // Item or address already exists.
	NotExist                  // Item, entry or address does not exist.
	Conflict                  // Optimistic-concurrency version mismatch.
	Range                     // Byte range outside blob bounds.
	IO                        // External I/O error such as network failure.
	Serialisation             // Data could not be encoded or decoded.
	Setup                     // Client or session not fully configured.
	Disconnected              // Transport-layer connection lost.
)

func (k Kind) String() string {
	switch k {
	case Other:
		return "other error"
	case Invalid:
		return "invalid operation"
	case Permission:
		return "permission denied"
	case Exist:
		return "item already exists"
	case NotExist:
		return "item does not exist"
	case Conflict:
		return "version conflict"
	case Range:
		return "byte range out of bounds"
	case IO:
		return "I/O error"
	case Serialisation:
		return "serialisation failed"
	case Setup:
		return "setup incomplete"
	case Disconnected:
		return "network disconnected"
	}
	return "unknown error kind"
}

// E builds an error value from its arguments.
// There must be at least one argument or E panics.
// The type of each argument determines its meaning.
// If more than one argument of a given type is presented,
// only the last one is recorded.
//
// The types are:
//
//	coffer.EntryKey
//		The container entry key of the item being accessed.
//	coffer.Identity
//		The identity attempting the operation.
//	errors.Op
//		The operation being performed, usually the method
//		being invoked (Get, Commit, etc.).
//	errors.Kind
//		The class of error, such as permission failure.
//	errors.Versions
//		The expected/actual version pair of a conflict. Supplying
//		one sets the Kind to Conflict unless a Kind is given.
//	string
//		Treated as an error message and assigned to the
//		Err field after a call to errors.Str.
//	error
//		The underlying error that triggered this one.
//
// If the error is printed, only those items that have been
// set to non-zero values will appear in the result.
//
// If Kind is not specified or Other, we set it to the Kind of
// the underlying error.
func E(args ...interface{}) error {
	if len(args) == 0 {
		panic("call to errors.E with no arguments")
	}
	e := &Error{}
	versioned := false
	for _, arg := range args {
		switch arg := arg.(type) {
		case coffer.EntryKey:
			e.Key = arg
		case coffer.Identity:
			e.Identity = arg
		case Op:
			e.Op = arg
		case string:
			e.Err = Str(arg)
		case Kind:
			e.Kind = arg
		case Versions:
			e.Expected, e.Actual = arg.Expected, arg.Actual
			versioned = true
		case *Error:
			// Make a copy
			inner := *arg
			e.Err = &inner
		case error:
			e.Err = arg
		default:
			_, file, line, _ := runtime.Caller(1)
			log.Printf("errors.E: bad call from %s:%d: %v", file, line, args)
			return Errorf("unknown type %T, value %v in error call", arg, arg)
		}
	}
	if versioned && e.Kind == Other {
		e.Kind = Conflict
	}

	prev, ok := e.Err.(*Error)
	if !ok {
		return e
	}

	// The previous error was also one of ours. Suppress duplications
	// so the message won't contain the same kind, key or identity twice.
	if prev.Key == e.Key {
		prev.Key = ""
	}
	if prev.Identity == e.Identity {
		prev.Identity = coffer.Identity{}
	}
	if prev.Kind == e.Kind {
		prev.Kind = Other
	}
	// If this error has Kind unset or Other, pull up the inner one.
	if e.Kind == Other {
		e.Kind = prev.Kind
		prev.Kind = Other
	}
	if e.Kind == Conflict && e.Expected == 0 && e.Actual == 0 {
		e.Expected, e.Actual = prev.Expected, prev.Actual
		prev.Expected, prev.Actual = 0, 0
	}
	return e
}

// pad appends str to the buffer if the buffer already has some data.
func pad(b *bytes.Buffer, str string) {
	if b.Len() == 0 {
		return
	}
	b.WriteString(str)
}

func (e *Error) isZero() bool {
	return e.Key == "" && e.Identity.IsZero() && e.Op == "" && e.Kind == 0 &&
		e.Expected == 0 && e.Actual == 0 && e.Err == nil
}

func (e *Error) Error() string {
	b := new(bytes.Buffer)
	if e.Op != "" {
		b.WriteString(string(e.Op))
	}
	if e.Key != "" {
		pad(b, ": ")
		fmt.Fprintf(b, "entry %q", string(e.Key))
	}
	if !e.Identity.IsZero() {
		pad(b, ", ")
		b.WriteString("identity ")
		b.WriteString(e.Identity.String())
	}
	if e.Kind != 0 {
		pad(b, ": ")
		b.WriteString(e.Kind.String())
	}
	if e.Kind == Conflict && (e.Expected != 0 || e.Actual != 0) {
		fmt.Fprintf(b, " (expected version %d, actual %d)", e.Expected, e.Actual)
	}
	if e.Err != nil {
		// Indent on new line if we are cascading non-empty Coffer errors.
		if prevErr, ok := e.Err.(*Error); ok {
			if !prevErr.isZero() {
				pad(b, Separator)
				b.WriteString(e.Err.Error())
			}
		} else {
			pad(b, ": ")
			b.WriteString(e.Err.Error())
		}
	}
	if b.Len() == 0 {
		return "no error"
	}
	return b.String()
}

// Unwrap returns the underlying error, making Error work with the standard
// library's errors.Is and errors.As.
func (e *Error) Unwrap() error {
	return e.Err
}

// Recreate the errors.New functionality of the standard Go errors package
// so we can create simple text errors when needed.

// Str returns an error that formats as the given text. It is intended to
// be used as the error-typed argument to the E function.
func Str(text string) error {
	return &errorString{text}
}

// errorString is a trivial implementation of error.
type errorString struct {
	s string
}

func (e *errorString) Error() string {
	return e.s
}

// Errorf is equivalent to fmt.Errorf, but allows clients to import only this
// package for all error handling.
func Errorf(format string, args ...interface{}) error {
	return &errorString{fmt.Sprintf(format, args...)}
}

// Match compares its two error arguments. It can be used to check
// for expected errors in tests. Both arguments must have underlying
// type *Error or Match will return false. Otherwise it returns true
// iff every non-zero element of the first error is equal to the
// corresponding element of the second.
// If the Err field is a *Error, Match recurs on that field;
// otherwise it compares the strings returned by the Error methods.
// Elements that are in the second argument but not present in
// the first are ignored.
func Match(err1, err2 error) bool {
	e1, ok := err1.(*Error)
	if !ok {
		return false
	}
	e2, ok := err2.(*Error)
	if !ok {
		return false
	}
	if e1.Key != "" && e2.Key != e1.Key {
		return false
	}
	if !e1.Identity.IsZero() && e2.Identity != e1.Identity {
		return false
	}
	if e1.Op != "" && e2.Op != e1.Op {
		return false
	}
	if e1.Kind != Other && e2.Kind != e1.Kind {
		return false
	}
	if e1.Expected != 0 && e2.Expected != e1.Expected {
		return false
	}
	if e1.Actual != 0 && e2.Actual != e1.Actual {
		return false
	}
	if e1.Err != nil {
		if _, ok := e1.Err.(*Error); ok {
			return Match(e1.Err, e2.Err)
		}
		if e2.Err == nil || e2.Err.Error() != e1.Err.Error() {
			return false
		}
	}
	return true
}

// Is reports whether err is an *Error of the given Kind.
// If err is nil then Is returns false.
// If err's Kind is Other, Is recurs on the wrapped error.
func Is(kind Kind, err error) bool {
	e, ok := err.(*Error)
	if !ok {
		return false
	}
	if e.Kind != Other {
		return e.Kind == kind
	}
	if e.Err != nil {
		return Is(kind, e.Err)
	}
	return false
}

// MarshalAppend marshals err into a byte slice. The result is appended to b,
// which may be nil.
// It returns the argument slice unchanged if the error is nil.
func (e *Error) MarshalAppend(b []byte) []byte {
	if e == nil {
		return b
	}
	b = appendString(b, string(e.Key))
	if e.Identity.IsAnyone() {
		b = append(b, 1)
		b = appendString(b, "")
	} else {
		b = append(b, 0)
		key, _ := e.Identity.PublicKey()
		b = appendString(b, string(key))
	}
	b = appendString(b, string(e.Op))
	var tmp [16]byte // For use by PutVarint and PutUvarint.
	n := binary.PutVarint(tmp[:], int64(e.Kind))
	b = append(b, tmp[:n]...)
	n = binary.PutUvarint(tmp[:], uint64(e.Expected))
	b = append(b, tmp[:n]...)
	n = binary.PutUvarint(tmp[:], uint64(e.Actual))
	b = append(b, tmp[:n]...)
	b = MarshalErrorAppend(e.Err, b)
	return b
}

// MarshalBinary marshals its receiver into a byte slice, which it returns.
// It returns nil if the error is nil. The returned error is always nil.
func (e *Error) MarshalBinary() ([]byte, error) {
	return e.MarshalAppend(nil), nil
}

// MarshalErrorAppend marshals an arbitrary error into a byte slice.
// The result is appended to b, which may be nil.
// It returns the argument slice unchanged if the error is nil.
// If the error is not an *Error, it just records the result of err.Error().
// Otherwise it encodes the full Error struct.
func MarshalErrorAppend(err error, b []byte) []byte {
	if err == nil {
		return b
	}
	if e, ok := err.(*Error); ok {
		// This is an errors.Error. Mark it as such.
		b = append(b, 'E')
		return e.MarshalAppend(b)
	}
	// Ordinary error.
	b = append(b, 'e')
	b = appendString(b, err.Error())
	return b
}

// MarshalError marshals an arbitrary error and returns the byte slice.
// If the error is nil, it returns nil.
// If the error is not an *Error, it just records the result of err.Error().
// Otherwise it encodes the full Error struct.
func MarshalError(err error) []byte {
	return MarshalErrorAppend(err, nil)
}

// UnmarshalBinary unmarshals the byte slice into the receiver, which must be non-nil.
// The returned error is always nil.
func (e *Error) UnmarshalBinary(b []byte) error {
	if len(b) == 0 {
		return nil
	}
	data, b := getBytes(b)
	if data != nil {
		e.Key = coffer.EntryKey(data)
	}
	if len(b) > 0 {
		anyone := b[0] != 0
		b = b[1:]
		data, b = getBytes(b)
		switch {
		case anyone:
			e.Identity = coffer.Anyone
		case len(data) > 0:
			e.Identity = coffer.Specific(coffer.PublicKey(data))
		}
	}
	data, b = getBytes(b)
	if data != nil {
		e.Op = Op(data)
	}
	k, n := binary.Varint(b)
	e.Kind = Kind(k)
	b = b[n:]
	exp, n := binary.Uvarint(b)
	e.Expected = coffer.Version(exp)
	b = b[n:]
	act, n := binary.Uvarint(b)
	e.Actual = coffer.Version(act)
	b = b[n:]
	e.Err = UnmarshalError(b)
	return nil
}

// UnmarshalError unmarshals the byte slice into an error value.
// The byte slice must have been created by MarshalError or
// MarshalErrorAppend.
// If the encoded error was of type *Error, the returned error value
// will have that underlying type. Otherwise it will be just a simple
// value that implements the error interface.
func UnmarshalError(b []byte) error {
	if len(b) == 0 {
		return nil
	}
	code := b[0]
	b = b[1:]
	switch code {
	case 'e':
		// Plain error.
		var data []byte
		data, b = getBytes(b)
		if len(b) != 0 {
			log.Printf("Unmarshal error: trailing bytes")
		}
		return Str(string(data))
	case 'E':
		// Error value.
		var err Error
		err.UnmarshalBinary(b)
		return &err
	default:
		log.Printf("Unmarshal error: corrupt data %q", b)
		return Str(string(b))
	}
}

func appendString(b []byte, str string) []byte {
	var tmp [16]byte // For use by PutUvarint.
	n := binary.PutUvarint(tmp[:], uint64(len(str)))
	b = append(b, tmp[:n]...)
	b = append(b, str...)
	return b
}

// getBytes unmarshals the byte slice at b (uvarint count followed by bytes)
// and returns the slice followed by the remaining bytes.
// If there is insufficient data, both return values will be nil.
func getBytes(b []byte) (data, remaining []byte) {
	u, n := binary.Uvarint(b)
	if n == 0 {
		log.Printf("Unmarshal error: bad encoding")
		return nil, b
	}
	if len(b) < n+int(u) {
		log.Printf("Unmarshal error: bad encoding")
		return nil, nil
	}
	return b[n : n+int(u)], b[n+int(u):]
}
