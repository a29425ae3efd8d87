// Copyright 2026 The Coffer Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package coffer

import (
	"fmt"
	"strings"
)

// String returns the endpoint in the form accepted by ParseEndpoint.
func (e Endpoint) String() string {
	switch e.Transport {
	case InProcess:
		return "inprocess"
	case Local:
		return "local," + e.NetAddr
	case Remote:
		return "remote," + e.NetAddr
	}
	return "unassigned"
}

// ParseEndpoint parses a string of the form "transport,address" into an
// Endpoint. The inprocess and unassigned transports take no address.
func ParseEndpoint(s string) (Endpoint, error) {
	name, addr, _ := strings.Cut(s, ",")
	switch name {
	case "inprocess":
		if addr != "" {
			return Endpoint{}, fmt.Errorf("endpoint %q: inprocess takes no address", s)
		}
		return Endpoint{Transport: InProcess}, nil
	case "local":
		if addr == "" {
			return Endpoint{}, fmt.Errorf("endpoint %q: local requires a directory", s)
		}
		return Endpoint{Transport: Local, NetAddr: addr}, nil
	case "remote":
		if addr == "" {
			return Endpoint{}, fmt.Errorf("endpoint %q: remote requires an address", s)
		}
		return Endpoint{Transport: Remote, NetAddr: addr}, nil
	case "unassigned", "":
		return Endpoint{}, nil
	}
	return Endpoint{}, fmt.Errorf("unknown transport in endpoint %q", s)
}
