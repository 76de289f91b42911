// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package inspect walks TLS records inside a TCP payload looking for a
// ClientHello whose SNI names the throttled video service. It is a single
// forward pass over untrusted bytes: every read is bounds-checked and any
// malformed structure yields the zero (no-action) verdict.
package inspect

import (
	"bytes"

	"grimm.is/snifrag/internal/packet"
)

// TargetSuffix is the DNS suffix whose ClientHellos get fragmented.
const TargetSuffix = "googlevideo.com"

const (
	contentTypeHandshake = 0x16
	handshakeClientHello = 0x01
	extensionServerName  = 0x0000

	// SNI names at or past this length are never matched. Hostnames this
	// long do not occur for the target service; treat them as noise.
	maxSNILen = 128
)

// Verdict reports what the inspector found in one TCP payload. The zero
// value means no action: either no ClientHello, no SNI, or a parse failure.
type Verdict struct {
	// TargetedHello is set when the SNI ends with TargetSuffix.
	TargetedHello bool
	// SNIOffset is the byte offset of the SNI name from the start of the
	// TCP payload; SNILen its length. Valid whenever an SNI was found,
	// targeted or not.
	SNIOffset int
	SNILen    int
}

// Inspect scans the TCP payload for a ClientHello and extracts its SNI.
func Inspect(data []byte) Verdict {
	pos := 0
	for pos+5 <= len(data) {
		hdr := packet.NewReader(data)
		if hdr.Skip(pos) != nil {
			break
		}
		contentType, _ := hdr.U8()
		if _, err := hdr.U16(); err != nil { // legacy record version
			break
		}
		recordLen, err := hdr.U16()
		if err != nil {
			break
		}
		next := pos + 5 + int(recordLen)
		if next > len(data) {
			break
		}
		if contentType != contentTypeHandshake {
			pos = next
			continue
		}

		v, found, err := inspectHandshake(data, pos+5)
		if err != nil {
			// Short read inside a handshake: abandon the whole payload.
			return Verdict{}
		}
		if found {
			return v
		}
		pos = next
	}
	return Verdict{}
}

// inspectHandshake walks one handshake record starting at body and returns
// the SNI verdict if the record is a ClientHello carrying one. Bounds are
// checked against the full payload, matching the record layer's own check
// that the record does not extend past it.
func inspectHandshake(data []byte, body int) (Verdict, bool, error) {
	r := packet.NewReader(data)
	if err := r.Skip(body); err != nil {
		return Verdict{}, false, err
	}

	handshakeType, err := r.U8()
	if err != nil {
		return Verdict{}, false, err
	}
	if handshakeType != handshakeClientHello {
		return Verdict{}, false, nil
	}
	if _, err := r.U24(); err != nil { // handshake length
		return Verdict{}, false, err
	}

	// legacy_version + random
	if err := r.Skip(2 + 32); err != nil {
		return Verdict{}, false, err
	}
	sessionIDLen, err := r.U8()
	if err != nil {
		return Verdict{}, false, err
	}
	if err := r.Skip(int(sessionIDLen)); err != nil {
		return Verdict{}, false, err
	}
	cipherSuitesLen, err := r.U16()
	if err != nil {
		return Verdict{}, false, err
	}
	if err := r.Skip(int(cipherSuitesLen)); err != nil {
		return Verdict{}, false, err
	}
	compMethodsLen, err := r.U8()
	if err != nil {
		return Verdict{}, false, err
	}
	if err := r.Skip(int(compMethodsLen)); err != nil {
		return Verdict{}, false, err
	}

	extensionsLen, err := r.U16()
	if err != nil {
		return Verdict{}, false, err
	}
	extEnd := r.Pos() + int(extensionsLen)
	if extEnd > len(data) {
		return Verdict{}, false, packet.ErrShortRead
	}

	for r.Pos() < extEnd {
		if extEnd-r.Pos() < 4 {
			break
		}
		extType, _ := r.U16()
		extLen, _ := r.U16()
		if r.Pos()+int(extLen) > extEnd {
			break
		}
		if extType != extensionServerName {
			if err := r.Skip(int(extLen)); err != nil {
				return Verdict{}, false, err
			}
			continue
		}
		return parseServerName(r, r.Pos()+int(extLen))
	}
	return Verdict{}, false, nil
}

// parseServerName reads the first entry of a server_name_list ending at end.
func parseServerName(r *packet.Reader, end int) (Verdict, bool, error) {
	if r.Pos()+2 > end {
		return Verdict{}, false, nil
	}
	if _, err := r.U16(); err != nil { // server_name_list length
		return Verdict{}, false, err
	}
	if r.Pos()+3 > end {
		return Verdict{}, false, nil
	}
	if _, err := r.U8(); err != nil { // name_type
		return Verdict{}, false, err
	}
	nameLen, err := r.U16()
	if err != nil {
		return Verdict{}, false, err
	}
	if r.Pos()+int(nameLen) > end {
		return Verdict{}, false, nil
	}

	v := Verdict{SNIOffset: r.Pos(), SNILen: int(nameLen)}
	name, err := r.Bytes(int(nameLen))
	if err != nil {
		return Verdict{}, false, err
	}
	if v.SNILen >= len(TargetSuffix) && v.SNILen < maxSNILen &&
		bytes.HasSuffix(name, []byte(TargetSuffix)) {
		v.TargetedHello = true
	}
	return v, true, nil
}
