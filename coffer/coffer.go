// Copyright 2026 The Coffer Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package coffer contains global interface and other definitions for the
// components of the system.
package coffer // import "coffer.io/coffer"

import (
	"crypto/rand"
	"encoding/hex"
	"time"
)

// An Address is the network name of a mutable container: 32 opaque bytes,
// assigned at creation and never reassigned. An Address is only resolvable
// once the container has been committed.
type Address [32]byte

// A TypeTag partitions the container namespace. The same Address under two
// different tags names two different containers.
type TypeTag uint64

// NameAndTag is the sole network-resolvable identity of a container.
type NameAndTag struct {
	Address Address
	Tag     TypeTag
}

// RandomAddress returns a fresh Address drawn from crypto/rand.
// It panics if the system source of randomness fails.
func RandomAddress() Address {
	var a Address
	if _, err := rand.Read(a[:]); err != nil {
		panic("coffer: random source failed: " + err.Error())
	}
	return a
}

// String returns the hex form of the address.
func (a Address) String() string {
	return hex.EncodeToString(a[:])
}

// ParseAddress is the inverse of Address.String.
func ParseAddress(s string) (Address, bool) {
	var a Address
	b, err := hex.DecodeString(s)
	if err != nil || len(b) != len(a) {
		return a, false
	}
	copy(a[:], b)
	return a, true
}

// A BlobRef is the content address of a sealed immutable blob: the hex
// BLAKE3 digest of the sealed bytes as stored.
type BlobRef string

// A PublicKey is a raw public signing or encryption key. Keys are compared
// by raw-byte equality and never interpreted by this package.
type PublicKey []byte

// A Signature is a raw detached signature produced by a Keyring.
type Signature []byte

// Time is a timestamp in seconds since the Unix epoch.
type Time int64

// Now returns the current time.
func Now() Time {
	return Time(time.Now().Unix())
}

// An EntryKey names an entry within a container. Keys are opaque byte
// strings; the string type is used so keys may index maps.
type EntryKey string

// A Version counts successful mutations of an entry, a permission table or
// a whole container. Zero means "never written"; every successful mutation
// sets version to exactly one more than before. A delete consumes a version
// slot (the tombstone keeps the chain intact for later re-insertion).
type Version uint64

// An Identity is a permission-table index: a specific public signing key,
// or the wildcard Anyone. The zero Identity is invalid.
type Identity struct {
	anyone bool
	key    string // raw public key bytes; empty iff anyone
}

// Anyone is the wildcard identity. A grant to Anyone applies to every
// caller without a specific entry of its own.
var Anyone = Identity{anyone: true}

// Specific returns the identity of the given public signing key.
func Specific(key PublicKey) Identity {
	return Identity{key: string(key)}
}

// IsAnyone reports whether id is the wildcard identity.
func (id Identity) IsAnyone() bool {
	return id.anyone
}

// IsZero reports whether id is the invalid zero identity.
func (id Identity) IsZero() bool {
	return !id.anyone && id.key == ""
}

// PublicKey returns the raw key for a specific identity and ok=false for
// Anyone or the zero identity.
func (id Identity) PublicKey() (PublicKey, bool) {
	if id.anyone || id.key == "" {
		return nil, false
	}
	return PublicKey(id.key), true
}

// String returns "anyone" for the wildcard and the hex key otherwise.
func (id Identity) String() string {
	if id.anyone {
		return "anyone"
	}
	if id.key == "" {
		return "<zero identity>"
	}
	return hex.EncodeToString([]byte(id.key))
}

// A Permission is one action a grantee may perform on a container.
type Permission uint8

// The actions a PermissionSet may grant.
const (
	Insert Permission = iota
	Update
	Delete
	ManagePermissions
	numPermissions
)

// String returns the name of the permission.
func (p Permission) String() string {
	switch p {
	case Insert:
		return "insert"
	case Update:
		return "update"
	case Delete:
		return "delete"
	case ManagePermissions:
		return "manage-permissions"
	}
	return "invalid-permission"
}

// A PermissionSet is a set of granted actions, held as a bitmask.
// The zero PermissionSet grants nothing.
type PermissionSet uint8

// AllPermissions grants every action, including ManagePermissions.
const AllPermissions = PermissionSet(1<<numPermissions - 1)

// NewPermissionSet returns a set granting exactly the listed actions.
func NewPermissionSet(perms ...Permission) PermissionSet {
	var s PermissionSet
	for _, p := range perms {
		s = s.With(p)
	}
	return s
}

// Grants reports whether the set grants the action.
func (s PermissionSet) Grants(p Permission) bool {
	return p < numPermissions && s&(1<<p) != 0
}

// With returns the set with the action added.
func (s PermissionSet) With(p Permission) PermissionSet {
	if p >= numPermissions {
		return s
	}
	return s | 1<<p
}

// Without returns the set with the action removed.
func (s PermissionSet) Without(p Permission) PermissionSet {
	if p >= numPermissions {
		return s
	}
	return s &^ (1 << p)
}

// String lists the granted actions, comma-separated.
func (s PermissionSet) String() string {
	if s == 0 {
		return "none"
	}
	out := ""
	for p := Permission(0); p < numPermissions; p++ {
		if !s.Grants(p) {
			continue
		}
		if out != "" {
			out += ","
		}
		out += p.String()
	}
	return out
}

// A PermissionRecord pairs a grantee with its granted actions.
type PermissionRecord struct {
	Identity Identity
	Set      PermissionSet
}

// An Entry is one keyed value within a container. Deleted marks a
// tombstone: the value is gone but the version chain survives, so a later
// insert of the same key continues at Version+1.
type Entry struct {
	Key     EntryKey
	Value   []byte
	Version Version
	Deleted bool
}

// An EntryOp is the kind of one action inside a mutation batch.
type EntryOp uint8

// The kinds of entry mutation.
const (
	InsertOp EntryOp = iota
	UpdateOp
	DeleteOp
)

// String returns the name of the operation.
func (op EntryOp) String() string {
	switch op {
	case InsertOp:
		return "insert"
	case UpdateOp:
		return "update"
	case DeleteOp:
		return "delete"
	}
	return "invalid-op"
}

// Permission returns the action a caller must hold to apply the operation.
func (op EntryOp) Permission() Permission {
	switch op {
	case InsertOp:
		return Insert
	case UpdateOp:
		return Update
	}
	return Delete
}

// An EntryMutation is the wire form of one action in a mutation batch.
// Prev is the version the caller expects to supersede (the live version it
// observed). It is ignored for InsertOp, which requires the key to be
// absent or tombstoned. Value is ignored for DeleteOp.
type EntryMutation struct {
	Op    EntryOp
	Key   EntryKey
	Value []byte
	Prev  Version
}

// A Snapshot is the complete client-observable state of a container at one
// container version. Fetch returns one; Serialise flattens one for
// out-of-band transport. Entries includes tombstones so that a client can
// compute insert-over-tombstone versions without another round trip.
type Snapshot struct {
	Address     Address
	Tag         TypeTag
	Owner       PublicKey
	Name        string
	Description string
	Version     Version // container version; bumps on every structural commit
	Entries     []Entry
	Permissions []PermissionRecord
	PermVersion Version // permission-table version
}

// A Cipher selects how payload bytes are transformed before storage.
type Cipher uint8

const (
	// Plain stores bytes untouched.
	Plain Cipher = iota

	// Symm seals bytes under a 32-byte symmetric key with a nonce derived
	// deterministically from key and cleartext, so equal inputs give
	// byte-identical sealed output.
	Symm

	// Sealed seals bytes to a recipient's encryption key; only the
	// holder of the matching private key can open them.
	Sealed
)

// String returns the name of the cipher scheme.
func (c Cipher) String() string {
	switch c {
	case Plain:
		return "plain"
	case Symm:
		return "symm"
	case Sealed:
		return "sealed"
	}
	return "invalid-cipher"
}

// Transport identifies how the network address in an Endpoint is to be
// interpreted.
type Transport uint8

const (
	// Unassigned denotes an endpoint with no service attached.
	Unassigned Transport = iota

	// InProcess denotes a service in this address space, typically a
	// non-persistent map held in memory.
	InProcess

	// Local denotes a persistent service in this address space backed by
	// an on-disk store; NetAddr is the store directory.
	Local

	// Remote denotes a service reached over the network. The RPC stack
	// is an external collaborator; this module defines only the constant.
	Remote
)

// An Endpoint identifies an instance of a service.
type Endpoint struct {
	Transport Transport
	NetAddr   string
}

// ConnectionState reports the lifecycle state of a dialed service.
type ConnectionState int

// The connection states a Service may report.
const (
	Init ConnectionState = iota
	Connected
	Disconnected
)

// Service is the part of every server interface concerned with connection
// lifecycle rather than data.
type Service interface {
	// Endpoint returns the network endpoint of the server.
	Endpoint() Endpoint

	// Ping reports whether the service is reachable.
	Ping() bool

	// Close releases resources associated with the dialed instance.
	// Calls after the first do nothing.
	Close()
}

// Dialer defines how to connect and authenticate to a server. The returned
// Service is bound to the identity in the Config; servers derive the acting
// identity for permission checks from it.
type Dialer interface {
	Dial(Config, Endpoint) (Service, error)
}

// ContainerServer is the authoritative holder of mutable containers. It is
// the network-side collaborator of the container package; the inprocess and
// badgerdb implementations stand in for the real network.
//
// All mutating calls are checked against the permission table of the target
// container using the identity bound at Dial time; the server's verdict is
// authoritative even when a client has pre-checked locally.
type ContainerServer interface {
	Dialer
	Service

	// Create commits a locally constructed container. It fails with an
	// Exist error if the address/tag pair is already live.
	Create(*Snapshot) error

	// Fetch returns the current state of the container, tombstones
	// included. It fails with NotExist if the address is not committed.
	Fetch(Address, TypeTag) (*Snapshot, error)

	// Version returns the current container version without transferring
	// the entries.
	Version(Address, TypeTag) (Version, error)

	// ApplyEntries applies an ordered mutation batch atomically: every
	// action is validated against live state before any is applied, and
	// the first failure rejects the whole batch.
	ApplyEntries(Address, TypeTag, []EntryMutation) error

	// InsertPermission adds a grant for an identity not yet in the table.
	InsertPermission(Address, TypeTag, Identity, PermissionSet) error

	// SetPermission replaces the grant for an identity already in the
	// table. Prev is the permission-table version being superseded.
	SetPermission(addr Address, tag TypeTag, id Identity, set PermissionSet, prev Version) error

	// DeletePermission removes an identity from the table. Prev is the
	// permission-table version being superseded.
	DeletePermission(addr Address, tag TypeTag, id Identity, prev Version) error
}

// BlobServer stores immutable content-addressed blobs. Blobs are sealed by
// the client before Put; the server never sees cleartext for encrypted
// schemes.
type BlobServer interface {
	Dialer
	Service

	// Put stores the sealed bytes and returns their content address.
	// Storing the same bytes twice returns the same reference.
	Put([]byte) (BlobRef, error)

	// Get returns the sealed bytes for the reference, failing with
	// NotExist if the server does not hold them.
	Get(BlobRef) ([]byte, error)
}

// Keyring provides the private-key operations of the client's identity
// without exposing private key material. Implementations live in the
// keyring package; the cryptographic primitives themselves are external.
type Keyring interface {
	// SigningPublicKey returns the raw public signing key. This is the
	// caller's identity for permission purposes.
	SigningPublicKey() PublicKey

	// BoxPublicKey returns the raw public encryption key used as the
	// recipient key of the Sealed cipher scheme.
	BoxPublicKey() PublicKey

	// Sign returns a detached signature over data.
	Sign(data []byte) (Signature, error)

	// Verify reports whether sig is a valid signature over data by the
	// holder of key.
	Verify(key PublicKey, data []byte, sig Signature) bool

	// SessionSecret returns the 32-byte symmetric secret of this session,
	// used by the Symm cipher scheme when no explicit key is supplied.
	SessionSecret() ([]byte, error)

	// SealTo seals cleartext to the recipient's public encryption key.
	SealTo(recipient PublicKey, cleartext []byte) ([]byte, error)

	// OpenSealed opens bytes sealed to this keyring's encryption key.
	OpenSealed(ciphertext []byte) ([]byte, error)
}

// Config binds together the state a client needs to reach and use the
// system: its keys, its servers and its defaults. Configs are immutable;
// the config package provides functional derivation.
type Config interface {
	// Keyring returns the client's key operations. It may be nil in a
	// config used only for public, unauthenticated reads.
	Keyring() Keyring

	// ContainerEndpoint identifies the ContainerServer to use.
	ContainerEndpoint() Endpoint

	// BlobEndpoint identifies the BlobServer to use.
	BlobEndpoint() Endpoint

	// Cipher is the default cipher scheme for newly sealed data.
	Cipher() Cipher

	// Value returns the value of a free-form config key, or "".
	Value(key string) string
}
