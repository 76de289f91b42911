// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

//go:build linux

package inject

import (
	"golang.org/x/sys/unix"

	"grimm.is/snifrag/internal/errors"
	"grimm.is/snifrag/internal/packet"
)

// RawSocket is an AF_INET raw socket configured for caller-supplied IP
// headers (IP_HDRINCL) and tagged with Mark.
type RawSocket struct {
	fd int
}

// Open creates and configures the raw socket.
func Open() (*RawSocket, error) {
	fd, err := unix.Socket(unix.AF_INET, unix.SOCK_RAW|unix.SOCK_CLOEXEC, unix.IPPROTO_RAW)
	if err != nil {
		return nil, errors.Wrap(err, errors.KindUnavailable, "inject: create raw socket")
	}
	if err := unix.SetsockoptInt(fd, unix.IPPROTO_IP, unix.IP_HDRINCL, 1); err != nil {
		unix.Close(fd)
		return nil, errors.Wrap(err, errors.KindUnavailable, "inject: setsockopt IP_HDRINCL")
	}
	if err := unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_MARK, int(Mark)); err != nil {
		unix.Close(fd)
		return nil, errors.Wrap(err, errors.KindUnavailable, "inject: setsockopt SO_MARK")
	}
	return &RawSocket{fd: fd}, nil
}

// Send transmits one datagram. Errors are returned for the caller to log;
// an injection failure loses the packet but TCP retransmission recovers it.
func (s *RawSocket) Send(p *packet.Packet) error {
	addr, port, err := destination(p)
	if err != nil {
		return err
	}
	sa := &unix.SockaddrInet4{Port: int(port), Addr: addr}
	if err := unix.Sendto(s.fd, p.Data(), 0, sa); err != nil {
		return errors.Wrap(err, errors.KindInternal, "inject: sendto")
	}
	return nil
}

// Close releases the socket.
func (s *RawSocket) Close() error {
	if s.fd < 0 {
		return nil
	}
	err := unix.Close(s.fd)
	s.fd = -1
	if err != nil {
		return errors.Wrap(err, errors.KindInternal, "inject: close raw socket")
	}
	return nil
}
