// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package packet

import (
	"grimm.is/snifrag/internal/errors"
)

// Split divides p into two fresh IPv4 fragments at off bytes into the IP
// payload. Both fragments carry a copy of p's header; only the total-length,
// fragment-offset/flags and header-checksum fields differ. The TCP checksum
// inside the first fragment's payload is left untouched: reassembly restores
// the original segment and the end-to-end checksum still verifies.
//
// Preconditions: off is a positive multiple of 8 strictly inside the payload,
// and p is not itself a fragment. Fragmenting a fragment train member would
// need the caller's offset folded into both headers and is rejected instead.
func Split(p *Packet, off int) (*Packet, *Packet, error) {
	plen := p.PayloadLen()
	if off <= 0 || off >= plen {
		return nil, nil, errors.Errorf(errors.KindValidation, "split: offset %d outside payload of %d bytes", off, plen)
	}
	if off%8 != 0 {
		return nil, nil, errors.Errorf(errors.KindValidation, "split: offset %d is not a multiple of 8", off)
	}
	if p.IsFragment() {
		return nil, nil, errors.New(errors.KindValidation, "split: input is already a fragment")
	}

	hdrLen := p.HeaderLen()
	payload := p.Payload()

	f1 := assemble(p.data[:hdrLen], payload[:off])
	f2 := assemble(p.data[:hdrLen], payload[off:])

	// Input offset bits are zero (checked above); the first fragment keeps
	// offset 0 with MF forced on, the second starts at off/8 with MF clear.
	// DF cannot survive on a fragment.
	f1.setFragmentField(flagMF)
	f2.setFragmentField(uint16(off / 8))

	f1.setTotalLen(uint16(hdrLen + off))
	f2.setTotalLen(uint16(hdrLen + plen - off))

	f1.RecomputeChecksum()
	f2.RecomputeChecksum()

	return f1, f2, nil
}

func assemble(hdr, payload []byte) *Packet {
	data := make([]byte, len(hdr)+len(payload))
	copy(data, hdr)
	copy(data[len(hdr):], payload)
	return &Packet{data: data, hdrLen: len(hdr)}
}
