// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package packet

import (
	"bytes"
	"encoding/binary"
	"net"
	"testing"

	"github.com/gopacket/gopacket"
	"github.com/gopacket/gopacket/layers"
	"github.com/stretchr/testify/require"

	"grimm.is/snifrag/internal/errors"
)

// buildTCPPacket serializes an IPv4/TCP datagram with the given TCP payload.
// DF is set, as it is on real egress TLS traffic.
func buildTCPPacket(t *testing.T, payload []byte) *Packet {
	t.Helper()

	ip := &layers.IPv4{
		Version:  4,
		IHL:      5,
		TTL:      64,
		Id:       0x3c41,
		Flags:    layers.IPv4DontFragment,
		Protocol: layers.IPProtocolTCP,
		SrcIP:    net.IP{192, 168, 1, 10},
		DstIP:    net.IP{203, 0, 113, 7},
	}
	tcp := &layers.TCP{
		SrcPort: 40312,
		DstPort: 443,
		Seq:     0x1000,
		ACK:     true,
		PSH:     true,
		Window:  64240,
	}
	require.NoError(t, tcp.SetNetworkLayerForChecksum(ip))

	buf := gopacket.NewSerializeBuffer()
	opts := gopacket.SerializeOptions{FixLengths: true, ComputeChecksums: true}
	require.NoError(t, gopacket.SerializeLayers(buf, opts, ip, tcp, gopacket.Payload(payload)))

	p, err := ParseIPv4(buf.Bytes())
	require.NoError(t, err)
	return p
}

func decodeIPv4(t *testing.T, data []byte) *layers.IPv4 {
	t.Helper()
	pkt := gopacket.NewPacket(data, layers.LayerTypeIPv4, gopacket.Lazy)
	layer := pkt.Layer(layers.LayerTypeIPv4)
	require.NotNil(t, layer, "fragment does not decode as IPv4")
	return layer.(*layers.IPv4)
}

func TestSplitConservation(t *testing.T) {
	payload := make([]byte, 600)
	for i := range payload {
		payload[i] = byte(i)
	}
	p := buildTCPPacket(t, payload)
	orig := append([]byte(nil), p.Payload()...)

	const off = 96
	f1, f2, err := Split(p, off)
	require.NoError(t, err)

	// Concatenated fragment payloads reproduce the original IP payload.
	require.True(t, bytes.Equal(append(append([]byte(nil), f1.Payload()...), f2.Payload()...), orig))
	require.Equal(t, p.PayloadLen(), f1.PayloadLen()+f2.PayloadLen())

	// The original TCP checksum survives byte-for-byte in the first
	// fragment's copy of the TCP header.
	require.Equal(t, p.Payload()[16:18], f1.Payload()[16:18])
}

func TestSplitFragmentFields(t *testing.T) {
	p := buildTCPPacket(t, make([]byte, 400))

	const off = 64
	f1, f2, err := Split(p, off)
	require.NoError(t, err)

	ip1 := decodeIPv4(t, f1.Data())
	ip2 := decodeIPv4(t, f2.Data())

	require.NotZero(t, ip1.Flags&layers.IPv4MoreFragments, "first fragment must carry MF")
	require.Zero(t, ip1.FragOffset)
	require.Zero(t, ip2.Flags&layers.IPv4MoreFragments, "second fragment MF must copy the original's clear bit")
	require.Equal(t, uint16(off/8), ip2.FragOffset)

	// DF cannot survive on either fragment.
	require.Zero(t, ip1.Flags&layers.IPv4DontFragment)
	require.Zero(t, ip2.Flags&layers.IPv4DontFragment)

	// Total-length fields equal header plus payload slice; checksums verify.
	for _, f := range []*Packet{f1, f2} {
		require.Equal(t, f.Len(), int(f.TotalLen()))
		require.Equal(t, f.HeaderLen()+f.PayloadLen(), int(f.TotalLen()))
		require.True(t, f.ValidChecksum())
	}

	// Everything else in the headers is shared with the original.
	require.Equal(t, p.Data()[12:20], f1.Data()[12:20])
	require.Equal(t, p.Data()[12:20], f2.Data()[12:20])
	require.Equal(t, binary.BigEndian.Uint16(p.Data()[4:6]), binary.BigEndian.Uint16(f2.Data()[4:6]))
}

func TestSplitPreconditions(t *testing.T) {
	p := buildTCPPacket(t, make([]byte, 200))

	tests := []struct {
		name string
		off  int
	}{
		{"zero", 0},
		{"negative", -8},
		{"unaligned", 37},
		{"at payload end", p.PayloadLen()},
		{"past payload end", p.PayloadLen() + 8},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f1, f2, err := Split(p, tt.off)
			require.Error(t, err)
			require.Equal(t, errors.KindValidation, errors.GetKind(err))
			require.Nil(t, f1)
			require.Nil(t, f2)
		})
	}
}

func TestSplitRejectsFragmentInput(t *testing.T) {
	p := buildTCPPacket(t, make([]byte, 200))

	// Forge a mid-train fragment: offset 8 units, MF set.
	binary.BigEndian.PutUint16(p.Data()[6:8], 0x2000|8)
	p.RecomputeChecksum()
	require.True(t, p.IsFragment())

	_, _, err := Split(p, 64)
	require.Error(t, err)
	require.Equal(t, errors.KindValidation, errors.GetKind(err))
}

func TestSplitDoesNotAliasInput(t *testing.T) {
	p := buildTCPPacket(t, make([]byte, 160))
	f1, f2, err := Split(p, 64)
	require.NoError(t, err)

	p.Data()[8] ^= 0xff // TTL, inside the header both fragments copied
	sum := Checksum(f1.Data()[:f1.HeaderLen()])
	require.True(t, sum == 0 || sum == 0xffff, "fragment shares storage with input")
	require.True(t, f2.ValidChecksum())
}
