// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

//go:build !linux

package inject

import (
	"grimm.is/snifrag/internal/errors"
	"grimm.is/snifrag/internal/packet"
)

// RawSocket is a stub for non-Linux systems.
type RawSocket struct{}

// Open returns an error on non-Linux systems.
func Open() (*RawSocket, error) {
	return nil, errors.New(errors.KindUnsupported, "inject: raw socket injection is only supported on Linux")
}

// Send is unreachable on non-Linux.
func (s *RawSocket) Send(p *packet.Packet) error {
	return errors.New(errors.KindUnsupported, "inject: raw socket injection is only supported on Linux")
}

// Close is a no-op on non-Linux.
func (s *RawSocket) Close() error { return nil }
