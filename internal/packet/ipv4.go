// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package packet provides a mutable view over raw IPv4 datagrams, the
// bounds-checked byte reader used by all wire parsing, and the two-way
// fragment split.
package packet

import (
	"encoding/binary"

	"grimm.is/snifrag/internal/errors"
)

// IP protocol numbers.
const (
	ProtoTCP = 6
	ProtoUDP = 17
)

const (
	minHeaderLen = 20
	minTCPHeader = 20

	// Fragment-offset field layout: 3 flag bits, 13 offset bits.
	flagDF  uint16 = 0x4000
	flagMF  uint16 = 0x2000
	offMask uint16 = 0x1fff
)

// Packet is an owned, mutable IPv4 datagram. The header view (lengths,
// offsets) is validated once at parse time; mutating methods keep the
// total-length and checksum fields consistent with the buffer.
type Packet struct {
	data    []byte
	hdrLen  int
	mangled bool
}

// ParseIPv4 validates data as an IPv4 datagram and takes ownership of a copy
// of it, up to its total length; bytes past the total length are not kept.
// The invariant established here is ihl*4 in [20, len(data)] and the
// total-length field not exceeding the buffer.
func ParseIPv4(data []byte) (*Packet, error) {
	if len(data) < minHeaderLen {
		return nil, errors.Errorf(errors.KindShortRead, "ipv4: datagram too short (%d bytes)", len(data))
	}
	if v := data[0] >> 4; v != 4 {
		return nil, errors.Errorf(errors.KindValidation, "ipv4: version %d", v)
	}
	hdrLen := int(data[0]&0x0f) * 4
	if hdrLen < minHeaderLen || hdrLen > len(data) {
		return nil, errors.Errorf(errors.KindValidation, "ipv4: header length %d exceeds datagram", hdrLen)
	}
	tot := int(binary.BigEndian.Uint16(data[2:4]))
	if tot < hdrLen || tot > len(data) {
		return nil, errors.Errorf(errors.KindValidation, "ipv4: total length %d inconsistent with %d-byte datagram", tot, len(data))
	}
	owned := make([]byte, tot)
	copy(owned, data[:tot])
	return &Packet{data: owned, hdrLen: hdrLen}, nil
}

// Data returns the underlying datagram bytes.
func (p *Packet) Data() []byte { return p.data }

// Len returns the datagram length in bytes.
func (p *Packet) Len() int { return len(p.data) }

// HeaderLen returns the IP header length (ihl*4).
func (p *Packet) HeaderLen() int { return p.hdrLen }

// TotalLen returns the header's total-length field.
func (p *Packet) TotalLen() uint16 { return binary.BigEndian.Uint16(p.data[2:4]) }

// Protocol returns the IP protocol number.
func (p *Packet) Protocol() uint8 { return p.data[9] }

// FragmentField returns the raw flags+fragment-offset field.
func (p *Packet) FragmentField() uint16 { return binary.BigEndian.Uint16(p.data[6:8]) }

// FragmentOffset returns the fragment offset in 8-byte units.
func (p *Packet) FragmentOffset() uint16 { return p.FragmentField() & offMask }

// MoreFragments reports whether the MF bit is set.
func (p *Packet) MoreFragments() bool { return p.FragmentField()&flagMF != 0 }

// IsFragment reports whether the datagram is part of a fragment train.
func (p *Packet) IsFragment() bool {
	return p.FragmentOffset() != 0 || p.MoreFragments()
}

// DstAddr returns the destination IPv4 address.
func (p *Packet) DstAddr() [4]byte {
	var a [4]byte
	copy(a[:], p.data[16:20])
	return a
}

// PayloadLen returns the IP payload length (total length minus header).
func (p *Packet) PayloadLen() int { return len(p.data) - p.hdrLen }

// Payload returns the IP payload (the transport header and everything after).
func (p *Packet) Payload() []byte { return p.data[p.hdrLen:] }

// TransportHeaderLen returns the TCP header length (doff*4) for TCP packets.
func (p *Packet) TransportHeaderLen() (int, error) {
	if p.Protocol() != ProtoTCP {
		return 0, errors.Errorf(errors.KindValidation, "ipv4: protocol %d is not TCP", p.Protocol())
	}
	pl := p.Payload()
	if len(pl) < minTCPHeader {
		return 0, errors.New(errors.KindShortRead, "tcp: truncated header")
	}
	n := int(pl[12]>>4) * 4
	if n < minTCPHeader || n > len(pl) {
		return 0, errors.Errorf(errors.KindValidation, "tcp: header length %d exceeds payload", n)
	}
	return n, nil
}

// TransportPayload returns the TCP payload for TCP packets.
func (p *Packet) TransportPayload() ([]byte, error) {
	n, err := p.TransportHeaderLen()
	if err != nil {
		return nil, err
	}
	return p.Payload()[n:], nil
}

// DstPort returns the transport destination port for TCP and UDP packets.
func (p *Packet) DstPort() (uint16, error) {
	proto := p.Protocol()
	if proto != ProtoTCP && proto != ProtoUDP {
		return 0, errors.Errorf(errors.KindValidation, "ipv4: protocol %d has no port", proto)
	}
	pl := p.Payload()
	if len(pl) < 4 {
		return 0, errors.New(errors.KindShortRead, "transport: truncated header")
	}
	return binary.BigEndian.Uint16(pl[2:4]), nil
}

// MarkMangled records that the buffer no longer matches the bytes received
// from the queue and the verdict must carry the replacement payload.
func (p *Packet) MarkMangled() { p.mangled = true }

// Mangled reports whether the buffer was modified.
func (p *Packet) Mangled() bool { return p.mangled }

func (p *Packet) setTotalLen(n uint16) {
	binary.BigEndian.PutUint16(p.data[2:4], n)
}

func (p *Packet) setFragmentField(v uint16) {
	binary.BigEndian.PutUint16(p.data[6:8], v)
}

// RecomputeChecksum zeroes and recomputes the IP header checksum.
func (p *Packet) RecomputeChecksum() {
	p.data[10], p.data[11] = 0, 0
	binary.BigEndian.PutUint16(p.data[10:12], Checksum(p.data[:p.hdrLen]))
}

// ValidChecksum reports whether the IP header checksum verifies.
func (p *Packet) ValidChecksum() bool {
	sum := Checksum(p.data[:p.hdrLen])
	return sum == 0 || sum == 0xffff
}
