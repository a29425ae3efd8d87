// Copyright 2026 The Coffer Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package config creates a client configuration from various sources.
//
// A config file is YAML, with these recognized keys:
//
//	keydir: /path/to/keys           # directory of *.cofferkey files
//	containerserver: inprocess      # endpoint of the container server
//	blobserver: local,/path/to/db   # endpoint of the blob server
//	cipher: symm                    # default cipher: plain, symm, sealed
//	loglevel: info
//
// Unrecognized keys are retained and available through Config.Value.
// Configs are immutable; the SetX functions derive new ones.
package config

import (
	"io"
	"os"
	"path/filepath"
	"strings"

	yaml "gopkg.in/yaml.v2"

	"coffer.io/coffer"
	"coffer.io/errors"
	"coffer.io/keyring"
	"coffer.io/log"
)

// Recognized config file keys.
const (
	keyDir          = "keydir"
	containerserver = "containerserver"
	blobserver      = "blobserver"
	cipherKey       = "cipher"
	logLevel        = "loglevel"
)

// base implements coffer.Config, returning default values for all operations.
type base struct{}

func (base) Keyring() coffer.Keyring             { return nil }
func (base) ContainerEndpoint() coffer.Endpoint  { return coffer.Endpoint{Transport: coffer.InProcess} }
func (base) BlobEndpoint() coffer.Endpoint       { return coffer.Endpoint{Transport: coffer.InProcess} }
func (base) Cipher() coffer.Cipher               { return coffer.Plain }
func (base) Value(string) string                 { return "" }

// New returns a config with all fields set as defaults: in-process servers,
// plain cipher, no keyring.
func New() coffer.Config {
	return base{}
}

// FromFile initializes a config from the named YAML file.
func FromFile(name string) (coffer.Config, error) {
	const op errors.Op = "config.FromFile"
	f, err := os.Open(name)
	if os.IsNotExist(err) {
		return nil, errors.E(op, errors.NotExist, err)
	}
	if err != nil {
		return nil, errors.E(op, errors.IO, err)
	}
	defer f.Close()
	cfg, err := InitConfig(f)
	if err != nil {
		return nil, errors.E(op, err)
	}
	return cfg, nil
}

// InitConfig returns a config generated from the YAML data read from r.
func InitConfig(r io.Reader) (coffer.Config, error) {
	const op errors.Op = "config.InitConfig"

	vals := map[string]string{}
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, errors.E(op, errors.IO, err)
	}
	if err := yaml.Unmarshal(data, &vals); err != nil {
		return nil, errors.E(op, errors.Serialisation, err)
	}

	cfg := New()
	for k, v := range vals {
		switch k {
		case keyDir, containerserver, blobserver, cipherKey, logLevel:
			// Handled below, in a fixed order.
		default:
			cfg = SetValue(cfg, k, v)
		}
	}

	if v, ok := vals[logLevel]; ok {
		if err := log.SetLevel(v); err != nil {
			return nil, errors.E(op, errors.Invalid, err)
		}
	}
	if v, ok := vals[cipherKey]; ok {
		c, err := parseCipher(v)
		if err != nil {
			return nil, errors.E(op, errors.Invalid, err)
		}
		cfg = SetCipher(cfg, c)
	}
	if v, ok := vals[containerserver]; ok {
		e, err := coffer.ParseEndpoint(v)
		if err != nil {
			return nil, errors.E(op, errors.Invalid, err)
		}
		cfg = SetContainerEndpoint(cfg, e)
	}
	if v, ok := vals[blobserver]; ok {
		e, err := coffer.ParseEndpoint(v)
		if err != nil {
			return nil, errors.E(op, errors.Invalid, err)
		}
		cfg = SetBlobEndpoint(cfg, e)
	}
	if v, ok := vals[keyDir]; ok {
		kr, err := keyring.New(filepath.Clean(v))
		if err != nil {
			return nil, errors.E(op, err)
		}
		cfg = SetKeyring(cfg, kr)
	}
	return cfg, nil
}

func parseCipher(name string) (coffer.Cipher, error) {
	switch strings.TrimSpace(name) {
	case "plain":
		return coffer.Plain, nil
	case "symm":
		return coffer.Symm, nil
	case "sealed":
		return coffer.Sealed, nil
	}
	return 0, errors.Errorf("unknown cipher %q", name)
}

// cfgKeyring derives a config with a different keyring.
type cfgKeyring struct {
	coffer.Config
	keyring coffer.Keyring
}

func (c cfgKeyring) Keyring() coffer.Keyring { return c.keyring }

// SetKeyring returns a config derived from the given config with the given
// keyring.
func SetKeyring(cfg coffer.Config, kr coffer.Keyring) coffer.Config {
	return cfgKeyring{cfg, kr}
}

type cfgContainerEndpoint struct {
	coffer.Config
	endpoint coffer.Endpoint
}

func (c cfgContainerEndpoint) ContainerEndpoint() coffer.Endpoint { return c.endpoint }

// SetContainerEndpoint returns a config derived from the given config with
// the given container server endpoint.
func SetContainerEndpoint(cfg coffer.Config, e coffer.Endpoint) coffer.Config {
	return cfgContainerEndpoint{cfg, e}
}

type cfgBlobEndpoint struct {
	coffer.Config
	endpoint coffer.Endpoint
}

func (c cfgBlobEndpoint) BlobEndpoint() coffer.Endpoint { return c.endpoint }

// SetBlobEndpoint returns a config derived from the given config with the
// given blob server endpoint.
func SetBlobEndpoint(cfg coffer.Config, e coffer.Endpoint) coffer.Config {
	return cfgBlobEndpoint{cfg, e}
}

type cfgCipher struct {
	coffer.Config
	cipher coffer.Cipher
}

func (c cfgCipher) Cipher() coffer.Cipher { return c.cipher }

// SetCipher returns a config derived from the given config with the given
// default cipher scheme.
func SetCipher(cfg coffer.Config, cipher coffer.Cipher) coffer.Config {
	return cfgCipher{cfg, cipher}
}

type cfgValue struct {
	coffer.Config
	key, val string
}

func (c cfgValue) Value(key string) string {
	if key == c.key {
		return c.val
	}
	return c.Config.Value(key)
}

// SetValue returns a config derived from the given config in which Value
// returns val for the given key.
func SetValue(cfg coffer.Config, key, val string) coffer.Config {
	return cfgValue{cfg, key, val}
}
