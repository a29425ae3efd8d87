// Copyright 2026 The Coffer Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package coffer

import (
	"encoding/binary"
	"errors"
)

// Binary layout of a marshaled Snapshot. Every byte slice and string is
// framed by a uvarint count; integers are plain uvarints. The single-byte
// format version leads so the layout can evolve.
//
//	format byte (currently 1)
//	address (32 bytes, unframed)
//	tag, owner, name, description, container version
//	entry count, then per entry: key, value, version, deleted byte
//	permission count, then per record: anyone byte, key, set byte
//	permission-table version

const snapshotFormat = 1

var errMalformedSnapshot = errors.New("malformed snapshot encoding")

// MarshalAppend appends the binary form of the snapshot to b and returns
// the extended slice.
func (s *Snapshot) MarshalAppend(b []byte) []byte {
	b = append(b, snapshotFormat)
	b = append(b, s.Address[:]...)
	b = appendUvarint(b, uint64(s.Tag))
	b = appendBytes(b, s.Owner)
	b = appendBytes(b, []byte(s.Name))
	b = appendBytes(b, []byte(s.Description))
	b = appendUvarint(b, uint64(s.Version))
	b = appendUvarint(b, uint64(len(s.Entries)))
	for i := range s.Entries {
		e := &s.Entries[i]
		b = appendBytes(b, []byte(e.Key))
		b = appendBytes(b, e.Value)
		b = appendUvarint(b, uint64(e.Version))
		b = append(b, boolByte(e.Deleted))
	}
	b = appendUvarint(b, uint64(len(s.Permissions)))
	for _, r := range s.Permissions {
		b = append(b, boolByte(r.Identity.anyone))
		b = appendBytes(b, []byte(r.Identity.key))
		b = append(b, byte(r.Set))
	}
	b = appendUvarint(b, uint64(s.PermVersion))
	return b
}

// Marshal returns the binary form of the snapshot.
func (s *Snapshot) Marshal() ([]byte, error) {
	return s.MarshalAppend(nil), nil
}

// Size returns the exact length Marshal would produce, without allocating
// the full encoding.
func (s *Snapshot) Size() int {
	n := 1 + len(s.Address)
	n += uvarintLen(uint64(s.Tag))
	n += bytesLen(len(s.Owner)) + bytesLen(len(s.Name)) + bytesLen(len(s.Description))
	n += uvarintLen(uint64(s.Version))
	n += uvarintLen(uint64(len(s.Entries)))
	for i := range s.Entries {
		e := &s.Entries[i]
		n += bytesLen(len(e.Key)) + bytesLen(len(e.Value)) + uvarintLen(uint64(e.Version)) + 1
	}
	n += uvarintLen(uint64(len(s.Permissions)))
	for _, r := range s.Permissions {
		n += 1 + bytesLen(len(r.Identity.key)) + 1
	}
	n += uvarintLen(uint64(s.PermVersion))
	return n
}

// Unmarshal parses the binary form produced by Marshal into the receiver,
// which must be non-nil. It returns an error on truncated or corrupt input.
func (s *Snapshot) Unmarshal(b []byte) error {
	if len(b) < 1+len(s.Address) || b[0] != snapshotFormat {
		return errMalformedSnapshot
	}
	b = b[1:]
	copy(s.Address[:], b)
	b = b[len(s.Address):]

	var u uint64
	var data []byte
	var ok bool
	if u, b, ok = getUvarint(b); !ok {
		return errMalformedSnapshot
	}
	s.Tag = TypeTag(u)
	if data, b, ok = getBytes(b); !ok {
		return errMalformedSnapshot
	}
	s.Owner = append([]byte(nil), data...)
	if data, b, ok = getBytes(b); !ok {
		return errMalformedSnapshot
	}
	s.Name = string(data)
	if data, b, ok = getBytes(b); !ok {
		return errMalformedSnapshot
	}
	s.Description = string(data)
	if u, b, ok = getUvarint(b); !ok {
		return errMalformedSnapshot
	}
	s.Version = Version(u)

	if u, b, ok = getUvarint(b); !ok {
		return errMalformedSnapshot
	}
	// A corrupt count must not force a huge allocation up front: initial
	// capacity is bounded by what the remaining bytes could hold, an entry
	// encoding at least four bytes.
	s.Entries = make([]Entry, 0, decodeCap(u, len(b), 4))
	for i := uint64(0); i < u; i++ {
		var e Entry
		if data, b, ok = getBytes(b); !ok {
			return errMalformedSnapshot
		}
		e.Key = EntryKey(data)
		if data, b, ok = getBytes(b); !ok {
			return errMalformedSnapshot
		}
		if len(data) > 0 {
			e.Value = append([]byte(nil), data...)
		}
		var v uint64
		if v, b, ok = getUvarint(b); !ok {
			return errMalformedSnapshot
		}
		e.Version = Version(v)
		if len(b) == 0 {
			return errMalformedSnapshot
		}
		e.Deleted = b[0] != 0
		b = b[1:]
		s.Entries = append(s.Entries, e)
	}

	if u, b, ok = getUvarint(b); !ok {
		return errMalformedSnapshot
	}
	s.Permissions = make([]PermissionRecord, 0, decodeCap(u, len(b), 3))
	for i := uint64(0); i < u; i++ {
		if len(b) == 0 {
			return errMalformedSnapshot
		}
		anyone := b[0] != 0
		b = b[1:]
		if data, b, ok = getBytes(b); !ok {
			return errMalformedSnapshot
		}
		var id Identity
		if anyone {
			id = Anyone
		} else {
			id = Specific(PublicKey(data))
		}
		if len(b) == 0 {
			return errMalformedSnapshot
		}
		set := PermissionSet(b[0])
		b = b[1:]
		s.Permissions = append(s.Permissions, PermissionRecord{Identity: id, Set: set})
	}

	if u, b, ok = getUvarint(b); !ok {
		return errMalformedSnapshot
	}
	s.PermVersion = Version(u)
	if len(b) != 0 {
		return errMalformedSnapshot
	}
	return nil
}

// decodeCap bounds a decoded element count by the number of elements of
// minimum encoded size the remaining input could hold.
func decodeCap(count uint64, remaining, minSize int) int {
	if most := uint64(remaining / minSize); count > most {
		return int(most)
	}
	return int(count)
}

// Clone returns a deep copy of the snapshot. Servers hand out clones so a
// caller can never alias authoritative state.
func (s *Snapshot) Clone() *Snapshot {
	c := *s
	c.Owner = append(PublicKey(nil), s.Owner...)
	c.Entries = make([]Entry, len(s.Entries))
	for i, e := range s.Entries {
		e.Value = append([]byte(nil), e.Value...)
		c.Entries[i] = e
	}
	c.Permissions = append([]PermissionRecord(nil), s.Permissions...)
	return &c
}

func boolByte(v bool) byte {
	if v {
		return 1
	}
	return 0
}

func appendUvarint(b []byte, u uint64) []byte {
	var tmp [binary.MaxVarintLen64]byte
	n := binary.PutUvarint(tmp[:], u)
	return append(b, tmp[:n]...)
}

func appendBytes(b, data []byte) []byte {
	b = appendUvarint(b, uint64(len(data)))
	return append(b, data...)
}

func uvarintLen(u uint64) int {
	n := 1
	for u >= 0x80 {
		u >>= 7
		n++
	}
	return n
}

func bytesLen(n int) int {
	return uvarintLen(uint64(n)) + n
}

// getUvarint decodes a uvarint from b and returns it with the remainder.
func getUvarint(b []byte) (u uint64, remaining []byte, ok bool) {
	u, n := binary.Uvarint(b)
	if n <= 0 {
		return 0, nil, false
	}
	return u, b[n:], true
}

// getBytes decodes a framed byte slice from b and returns it with the
// remainder. The returned slice aliases b.
func getBytes(b []byte) (data, remaining []byte, ok bool) {
	u, b, ok := getUvarint(b)
	if !ok || uint64(len(b)) < u {
		return nil, nil, false
	}
	return b[:u], b[u:], true
}
