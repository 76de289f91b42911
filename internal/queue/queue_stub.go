// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

//go:build !linux

package queue

import (
	"context"

	"grimm.is/snifrag/internal/errors"
	"grimm.is/snifrag/internal/logging"
)

// Config controls Reader construction.
type Config struct {
	QueueNum uint32
	Logger   *logging.Logger
}

// Reader is a stub for non-Linux systems.
type Reader struct{}

// Open returns an error on non-Linux systems.
func Open(cfg Config, inj Injector) (*Reader, error) {
	return nil, errors.New(errors.KindUnsupported, "queue: netfilter queues are only supported on Linux")
}

// Run is unreachable on non-Linux.
func (r *Reader) Run(ctx context.Context) error {
	return errors.New(errors.KindUnsupported, "queue: netfilter queues are only supported on Linux")
}

// Stats returns empty stats on non-Linux.
func (r *Reader) Stats() Stats { return Stats{} }

// Close is a no-op on non-Linux.
func (r *Reader) Close() error { return nil }
