// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package inject sends fully-formed IPv4 datagrams through a raw socket.
// The socket carries a fixed mark so the firewall ruleset that diverts
// traffic into the queue can exclude reinjected packets; without that
// exclusion every injected fragment would loop back into the daemon.
package inject

import (
	"grimm.is/snifrag/internal/errors"
	"grimm.is/snifrag/internal/packet"
)

// Mark is the socket mark stamped on every injected packet. The diverting
// ruleset and the pipeline's own mark check both key on this value.
const Mark uint32 = 0xfc70

// destination extracts the sockaddr fields for an outgoing datagram. The
// kernel routes on the embedded IP header; the address is still required on
// the sendto call and the port is taken from the TCP/UDP header.
func destination(p *packet.Packet) ([4]byte, uint16, error) {
	port, err := p.DstPort()
	if err != nil {
		return [4]byte{}, 0, errors.Wrap(err, errors.KindValidation, "inject: no destination port")
	}
	return p.DstAddr(), port, nil
}
