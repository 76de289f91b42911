// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package queue

import "sync/atomic"

// Stats holds statistics for the queue reader.
type Stats struct {
	PacketsProcessed uint64 `json:"packets_processed"`
	PacketsAccepted  uint64 `json:"packets_accepted"`
	PacketsDropped   uint64 `json:"packets_dropped"`
	FragmentsSent    uint64 `json:"fragments_sent"`
	InjectErrors     uint64 `json:"inject_errors"`
	VerdictErrors    uint64 `json:"verdict_errors"`
}

// counters backs Stats. The callback runs on a single goroutine; atomics
// make the snapshot safe to read from anywhere.
type counters struct {
	processed   atomic.Uint64
	accepted    atomic.Uint64
	dropped     atomic.Uint64
	fragments   atomic.Uint64
	injectErrs  atomic.Uint64
	verdictErrs atomic.Uint64
}

func (c *counters) snapshot() Stats {
	return Stats{
		PacketsProcessed: c.processed.Load(),
		PacketsAccepted:  c.accepted.Load(),
		PacketsDropped:   c.dropped.Load(),
		FragmentsSent:    c.fragments.Load(),
		InjectErrors:     c.injectErrs.Load(),
		VerdictErrors:    c.verdictErrs.Load(),
	}
}
