// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

//go:build linux

package queue

import (
	"context"
	"time"

	nfqueue "github.com/florianl/go-nfqueue/v2"

	"grimm.is/snifrag/internal/errors"
	"grimm.is/snifrag/internal/logging"
	"grimm.is/snifrag/internal/packet"
)

const (
	// copyRange requests full-packet copies from the kernel.
	copyRange   = 0xffff
	maxQueueLen = 1024
)

// Config controls Reader construction.
type Config struct {
	// QueueNum is the netfilter queue to bind. The nfnetlink wire format
	// carries 16 bits; higher bits are truncated as they always have been.
	QueueNum uint32
	Logger   *logging.Logger
}

// Reader owns the control socket to the kernel's queue subsystem and runs
// the receive loop. One packet is fully processed, verdict included, before
// the next is read.
type Reader struct {
	nf       *nfqueue.Nfqueue
	queueNum uint32
	injector Injector
	log      *logging.Logger
	pl       pipeline
	ctrs     counters
}

// Open binds the queue in copy-packet mode with a full-size copy range.
// The library issues the bind and params commands and suppresses kernel
// buffer-overflow notifications on the control socket.
func Open(cfg Config, inj Injector) (*Reader, error) {
	lg := cfg.Logger
	if lg == nil {
		lg = logging.Default()
	}
	lg = lg.WithComponent("nfq")

	nf, err := nfqueue.Open(&nfqueue.Config{
		NfQueue:      uint16(cfg.QueueNum),
		MaxPacketLen: copyRange,
		MaxQueueLen:  maxQueueLen,
		Copymode:     nfqueue.NfQnlCopyPacket,
		WriteTimeout: 10 * time.Millisecond,
	})
	if err != nil {
		return nil, errors.Wrapf(err, errors.KindUnavailable, "queue: bind queue %d", cfg.QueueNum)
	}

	return &Reader{
		nf:       nf,
		queueNum: cfg.QueueNum,
		injector: inj,
		log:      lg,
		pl:       pipeline{log: lg},
	}, nil
}

// Run registers the per-packet callback and blocks until ctx is cancelled
// or the receive loop fails. Per-packet errors are logged and the loop
// continues; a read failure on the control socket is fatal.
func (r *Reader) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	fatal := make(chan error, 1)

	fn := func(a nfqueue.Attribute) int {
		r.handle(a)
		return 0
	}
	errFn := func(err error) int {
		if ctx.Err() != nil {
			return 1
		}
		select {
		case fatal <- err:
		default:
		}
		return 1
	}

	if err := r.nf.RegisterWithErrorFunc(ctx, fn, errFn); err != nil {
		return errors.Wrap(err, errors.KindUnavailable, "queue: register callback")
	}
	r.log.Info("listening", "queue", r.queueNum)

	select {
	case <-ctx.Done():
		return nil
	case err := <-fatal:
		return errors.Wrap(err, errors.KindInternal, "queue: receive loop")
	}
}

// handle processes one queue message: build the descriptor, run the
// pipeline, emit the verdict and inject fragments on the drop path.
func (r *Reader) handle(a nfqueue.Attribute) {
	if a.PacketID == nil {
		// Nothing to verdict against; the kernel re-queues or drops it.
		r.log.Warn("queue message without packet id")
		return
	}

	pkt := Packet{ID: *a.PacketID}
	if a.HwProtocol != nil {
		pkt.HwProto = *a.HwProtocol
	}
	if a.Hook != nil {
		pkt.Hook = *a.Hook
	}
	if a.Payload != nil {
		pkt.Payload = *a.Payload
	}
	if a.Mark != nil {
		pkt.Mark, pkt.HasMark = *a.Mark, true
	}
	if a.SkbInfo != nil {
		pkt.SkbInfo = *a.SkbInfo
	}

	r.ctrs.processed.Add(1)
	out := r.pl.decide(pkt)

	switch out.action {
	case actionDropAndInject:
		if err := r.verdict(pkt.ID, nfqueue.NfDrop, nil); err != nil {
			return
		}
		r.ctrs.dropped.Add(1)
		for _, f := range []*packet.Packet{out.frag1, out.frag2} {
			if err := r.injector.Send(f); err != nil {
				r.ctrs.injectErrs.Add(1)
				r.log.Error("fragment send failed", "id", pkt.ID, "error", err)
				continue
			}
			r.ctrs.fragments.Add(1)
		}
	case actionAcceptMangled:
		if err := r.verdict(pkt.ID, nfqueue.NfAccept, out.payload); err != nil {
			return
		}
		r.ctrs.accepted.Add(1)
	default:
		if err := r.verdict(pkt.ID, nfqueue.NfAccept, nil); err != nil {
			return
		}
		r.ctrs.accepted.Add(1)
	}
}

// verdict sends one verdict message, with replacement payload when given.
// A send failure is an error for this packet only, not for the loop.
func (r *Reader) verdict(id uint32, v int, payload []byte) error {
	var err error
	if payload != nil {
		err = r.nf.SetVerdictModPacket(id, v, payload)
	} else {
		err = r.nf.SetVerdict(id, v)
	}
	if err != nil {
		r.ctrs.verdictErrs.Add(1)
		r.log.Error("verdict send failed", "id", id, "error", err)
	}
	return err
}

// Stats returns a snapshot of the reader's counters.
func (r *Reader) Stats() Stats {
	return r.ctrs.snapshot()
}

// Close releases the control socket.
func (r *Reader) Close() error {
	if r.nf == nil {
		return nil
	}
	err := r.nf.Close()
	r.nf = nil
	if err != nil {
		return errors.Wrap(err, errors.KindInternal, "queue: close control socket")
	}
	return nil
}
