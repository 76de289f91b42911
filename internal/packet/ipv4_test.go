// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package packet

import (
	"encoding/hex"
	"testing"

	"grimm.is/snifrag/internal/errors"
)

// A widely used sample IPv4 header: checksum field holds b861.
const sampleHeaderHex = "45000073000040004011b861c0a80001c0a800c7"

func sampleHeader(t *testing.T) []byte {
	t.Helper()
	b, err := hex.DecodeString(sampleHeaderHex)
	if err != nil {
		t.Fatal(err)
	}
	return b
}

func TestChecksumKnownVector(t *testing.T) {
	hdr := sampleHeader(t)

	// Over the full header the sum verifies.
	if sum := Checksum(hdr); sum != 0 && sum != 0xffff {
		t.Errorf("Checksum over valid header = %#x", sum)
	}

	// With the checksum field zeroed it reproduces the stored value.
	hdr[10], hdr[11] = 0, 0
	if sum := Checksum(hdr); sum != 0xb861 {
		t.Errorf("Checksum = %#x, want 0xb861", sum)
	}
}

func TestChecksumOddLength(t *testing.T) {
	// Odd tail byte is padded with zero on the right.
	if Checksum([]byte{0x01, 0x02, 0x03}) != Checksum([]byte{0x01, 0x02, 0x03, 0x00}) {
		t.Error("odd-length checksum does not match zero-padded equivalent")
	}
}

func TestParseIPv4(t *testing.T) {
	hdr := sampleHeader(t)
	// The sample header claims total length 0x73; give it that much data.
	data := make([]byte, 0x73)
	copy(data, hdr)

	p, err := ParseIPv4(data)
	if err != nil {
		t.Fatal(err)
	}
	if p.HeaderLen() != 20 {
		t.Errorf("HeaderLen = %d", p.HeaderLen())
	}
	if p.Protocol() != ProtoUDP {
		t.Errorf("Protocol = %d, want %d", p.Protocol(), ProtoUDP)
	}
	if p.TotalLen() != 0x73 {
		t.Errorf("TotalLen = %d", p.TotalLen())
	}
	if p.PayloadLen() != 0x73-20 {
		t.Errorf("PayloadLen = %d", p.PayloadLen())
	}
	if p.IsFragment() {
		t.Error("DF-only packet reported as fragment")
	}
	if got := p.DstAddr(); got != [4]byte{192, 168, 0, 199} {
		t.Errorf("DstAddr = %v", got)
	}
	if !p.ValidChecksum() {
		t.Error("valid header failed checksum")
	}

	// Ownership: the parse copies.
	data[16] = 9
	if p.DstAddr() == [4]byte{9, 168, 0, 199} {
		t.Error("parsed packet aliases caller buffer")
	}
}

func TestParseIPv4Rejects(t *testing.T) {
	valid := make([]byte, 0x73)
	copy(valid, sampleHeader(t))

	tests := []struct {
		name   string
		mangle func([]byte) []byte
		kind   errors.Kind
	}{
		{"too short", func(b []byte) []byte { return b[:12] }, errors.KindShortRead},
		{"bad version", func(b []byte) []byte { b[0] = 0x65; return b }, errors.KindValidation},
		{"ihl past end", func(b []byte) []byte { b[0] = 0x4f; return b[:40] }, errors.KindValidation},
		{"total length past end", func(b []byte) []byte { b[3] = 0xff; return b }, errors.KindValidation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := make([]byte, len(valid))
			copy(b, valid)
			_, err := ParseIPv4(tt.mangle(b))
			if err == nil {
				t.Fatal("expected error")
			}
			if errors.GetKind(err) != tt.kind {
				t.Errorf("kind = %v, want %v", errors.GetKind(err), tt.kind)
			}
		})
	}
}

func TestTransportAccessors(t *testing.T) {
	hdr := sampleHeader(t)
	data := make([]byte, 0x73)
	copy(data, hdr)
	data[9] = ProtoTCP
	payload := data[20:]
	payload[2], payload[3] = 0x01, 0xbb // dst port 443
	payload[12] = 0x50                  // doff 5

	p, err := ParseIPv4(data)
	if err != nil {
		t.Fatal(err)
	}
	n, err := p.TransportHeaderLen()
	if err != nil || n != 20 {
		t.Fatalf("TransportHeaderLen = %d, %v", n, err)
	}
	port, err := p.DstPort()
	if err != nil || port != 443 {
		t.Fatalf("DstPort = %d, %v", port, err)
	}
	tp, err := p.TransportPayload()
	if err != nil {
		t.Fatal(err)
	}
	if len(tp) != p.PayloadLen()-20 {
		t.Errorf("TransportPayload length = %d", len(tp))
	}

	// Bogus data offset.
	data[20+12] = 0xf0
	p2, err := ParseIPv4(data)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := p2.TransportHeaderLen(); errors.GetKind(err) != errors.KindValidation {
		t.Errorf("oversized doff: kind = %v", errors.GetKind(err))
	}
}
