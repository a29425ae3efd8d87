// Copyright 2026 The Coffer Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package webid layers an identity-document convention over the graph
// emulation: a profile is a fixed vocabulary of statements about one
// subject derived from the container's address. The package introduces no
// persistence of its own; everything goes through graph commits.
package webid

import (
	"encoding/hex"

	"coffer.io/coffer"
	"coffer.io/container"
	"coffer.io/errors"
	"coffer.io/graph"
)

// The profile vocabulary. Objects are literal strings; the public key is
// carried hex-encoded.
const (
	PredType    = "rdf:type"
	PredName    = "foaf:name"
	PredNick    = "foaf:nick"
	PredWebsite = "foaf:homepage"
	PredKey     = "cert:key"

	ObjPerson = "foaf:Person"
)

// A Profile is the content of an identity document.
type Profile struct {
	Name      string
	Nickname  string
	Website   string
	PublicKey coffer.PublicKey
}

// A Document is the identity-document view of one container.
type Document struct {
	g       *graph.Graph
	subject string
}

// Subject returns the document subject for a container address.
func Subject(addr coffer.Address) string {
	return "coffer://" + addr.String() + "/profile#me"
}

// New returns an identity-document view over the container.
func New(cfg coffer.Config, c *container.Container) *Document {
	return &Document{
		g:       graph.New(cfg, c),
		subject: Subject(c.NameAndTag().Address),
	}
}

// Graph returns the underlying graph view.
func (d *Document) Graph() *graph.Graph {
	return d.g
}

// Subject returns the subject the document's statements are about.
func (d *Document) Subject() string {
	return d.subject
}

// Create commits the profile as a fresh document. It fails with Exist if
// the container already holds one.
func (d *Document) Create(p Profile) error {
	const op errors.Op = "webid.Create"
	if err := d.g.Load(); err != nil {
		return errors.E(op, err)
	}
	if len(d.g.About(d.subject)) > 0 {
		return errors.E(op, errors.Exist, "container already holds an identity document")
	}
	d.add(p)
	if _, err := d.g.Commit(true); err != nil {
		return errors.E(op, err)
	}
	return nil
}

// Update replaces the document's profile statements with those of p,
// leaving statements about other subjects untouched. It fails with
// NotExist if no document has been created.
func (d *Document) Update(p Profile) error {
	const op errors.Op = "webid.Update"
	if err := d.g.Load(); err != nil {
		return errors.E(op, err)
	}
	if len(d.g.About(d.subject)) == 0 {
		return errors.E(op, errors.NotExist, "container holds no identity document")
	}
	d.g.RemoveMany(d.subject, "", "")
	d.add(p)
	if _, err := d.g.Commit(true); err != nil {
		return errors.E(op, err)
	}
	return nil
}

// FetchContent returns the current profile, read fresh from the container.
// It fails with NotExist if no document has been created.
func (d *Document) FetchContent() (Profile, error) {
	const op errors.Op = "webid.FetchContent"
	if err := d.g.Load(); err != nil {
		return Profile{}, errors.E(op, err)
	}
	statements := d.g.About(d.subject)
	if len(statements) == 0 {
		return Profile{}, errors.E(op, errors.NotExist, "container holds no identity document")
	}
	var p Profile
	for _, st := range statements {
		switch st.Predicate {
		case PredName:
			p.Name = st.Object
		case PredNick:
			p.Nickname = st.Object
		case PredWebsite:
			p.Website = st.Object
		case PredKey:
			key, err := hex.DecodeString(st.Object)
			if err != nil {
				return Profile{}, errors.E(op, errors.Serialisation, "malformed public key statement")
			}
			p.PublicKey = key
		}
	}
	return p, nil
}

func (d *Document) add(p Profile) {
	d.g.Add(graph.Statement{Subject: d.subject, Predicate: PredType, Object: ObjPerson})
	if p.Name != "" {
		d.g.Add(graph.Statement{Subject: d.subject, Predicate: PredName, Object: p.Name})
	}
	if p.Nickname != "" {
		d.g.Add(graph.Statement{Subject: d.subject, Predicate: PredNick, Object: p.Nickname})
	}
	if p.Website != "" {
		d.g.Add(graph.Statement{Subject: d.subject, Predicate: PredWebsite, Object: p.Website})
	}
	if len(p.PublicKey) > 0 {
		d.g.Add(graph.Statement{Subject: d.subject, Predicate: PredKey, Object: hex.EncodeToString(p.PublicKey)})
	}
}
