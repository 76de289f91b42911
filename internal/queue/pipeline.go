// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package queue binds a netfilter queue, runs the per-packet decision
// pipeline and emits exactly one verdict per received packet.
package queue

import (
	"grimm.is/snifrag/internal/inject"
	"grimm.is/snifrag/internal/inspect"
	"grimm.is/snifrag/internal/logging"
	"grimm.is/snifrag/internal/packet"
)

const (
	etherTypeIPv4 = 0x0800

	// Targeted hellos with a TCP payload above this are passed through;
	// splitting near the MTU risks producing an oversized first fragment.
	maxSplitPayload = 1480

	// NFQA_SKB_* flag bits from the kernel's nfnetlink_queue ABI.
	skbCSumNotReady = 1 << 0
	skbGSO          = 1 << 1
)

// Packet is the per-received-packet descriptor assembled from the queue
// message attributes. Optional attributes that were absent stay zero, with
// HasMark recording whether a mark attribute was present at all.
type Packet struct {
	ID      uint32
	HwProto uint16
	Hook    uint8
	Payload []byte
	Mark    uint32
	HasMark bool
	SkbInfo uint32
}

// Injector sends a fully-formed IPv4 datagram out the raw socket.
type Injector interface {
	Send(*packet.Packet) error
}

type action int

const (
	actionAccept action = iota
	actionAcceptMangled
	actionDropAndInject
)

// outcome is the pipeline's decision for one packet. Every branch of decide
// returns one, and the caller turns it into exactly one verdict.
type outcome struct {
	action  action
	payload []byte // replacement bytes when actionAcceptMangled
	frag1   *packet.Packet
	frag2   *packet.Packet
}

type pipeline struct {
	log *logging.Logger
}

// decide inspects one received packet and picks its outcome. It performs no
// I/O; fragment buffers in the result are owned by the caller. Any parse or
// precondition failure degrades to a plain accept so the packet is never
// left without a verdict.
func (pl *pipeline) decide(pkt Packet) outcome {
	if pkt.HwProto != etherTypeIPv4 {
		return outcome{action: actionAccept}
	}
	if pkt.SkbInfo&(skbGSO|skbCSumNotReady) != 0 {
		// GSO superpackets and unmaterialized checksums cannot be
		// safely refragmented.
		pl.log.Debug("offloaded packet passed through", "id", pkt.ID, "skbinfo", pkt.SkbInfo)
		return outcome{action: actionAccept}
	}
	if pkt.HasMark && pkt.Mark == inject.Mark {
		// Our own reinjected packet.
		return outcome{action: actionAccept}
	}

	p, err := packet.ParseIPv4(pkt.Payload)
	if err != nil {
		pl.log.Debug("unparseable datagram passed through", "id", pkt.ID, "error", err)
		return outcome{action: actionAccept}
	}
	if p.Protocol() != packet.ProtoTCP {
		return outcome{action: actionAccept}
	}
	payload, err := p.TransportPayload()
	if err != nil {
		pl.log.Debug("tcp header parse failed", "id", pkt.ID, "error", err)
		return outcome{action: actionAccept}
	}

	vrd := inspect.Inspect(payload)
	if vrd.TargetedHello {
		if len(payload) > maxSplitPayload {
			pl.log.Warn("targeted hello too large to split, passed through", "id", pkt.ID, "payload_len", len(payload))
			return outcome{action: actionAccept}
		}
		tcpHdrLen, err := p.TransportHeaderLen()
		if err != nil {
			return outcome{action: actionAccept}
		}

		// Split inside the SNI, rounded up to fragment alignment.
		off := tcpHdrLen + vrd.SNIOffset + vrd.SNILen/2
		off = (off + 7) &^ 7

		f1, f2, err := packet.Split(p, off)
		if err != nil {
			pl.log.Warn("fragment split failed, passed through", "id", pkt.ID, "offset", off, "error", err)
			return outcome{action: actionAccept}
		}
		pl.log.Debug("splitting targeted hello", "id", pkt.ID, "sni_len", vrd.SNILen, "offset", off)
		return outcome{action: actionDropAndInject, frag1: f1, frag2: f2}
	}

	if p.Mangled() {
		return outcome{action: actionAcceptMangled, payload: p.Data()}
	}
	return outcome{action: actionAccept}
}
