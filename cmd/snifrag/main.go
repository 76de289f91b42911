// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// snifrag receives diverted egress packets from a netfilter queue, finds
// TLS ClientHellos addressed to the throttled video service, and replaces
// each with two IPv4 fragments split inside the SNI so middlebox DPI loses
// its pattern match.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/spf13/cobra"

	"grimm.is/snifrag/internal/inject"
	"grimm.is/snifrag/internal/logging"
	"grimm.is/snifrag/internal/queue"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "snifrag <queue-num>",
		Short: "Split throttled TLS ClientHellos across IPv4 fragments",
		Long: `snifrag binds the given netfilter queue, inspects diverted egress packets
for TLS ClientHellos whose SNI ends in ` + "`googlevideo.com`" + `, and reinjects
each as two IPv4 fragments split inside the server name. The diverting
ruleset must exclude packets marked 0xfc70 (see snifrag-nft).`,
		Args:         cobra.ExactArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(args[0])
		},
	}
}

func run(arg string) error {
	queueNum, err := strconv.ParseUint(arg, 10, 32)
	if err != nil {
		return fmt.Errorf("usage: snifrag <queue-num>: invalid queue number %q", arg)
	}

	lg := logging.New(logging.Config{
		Level:      logging.LevelInfo,
		Component:  "snifrag",
		Timestamps: true,
	})

	// Acquisition order matters: the raw socket must exist before the
	// first packet can reach the drop-and-inject path.
	raw, err := inject.Open()
	if err != nil {
		return err
	}
	defer raw.Close()

	reader, err := queue.Open(queue.Config{QueueNum: uint32(queueNum), Logger: lg}, raw)
	if err != nil {
		return err
	}
	defer reader.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err = reader.Run(ctx)

	st := reader.Stats()
	lg.Info("shutting down",
		"processed", st.PacketsProcessed,
		"accepted", st.PacketsAccepted,
		"dropped", st.PacketsDropped,
		"fragments_sent", st.FragmentsSent)
	return err
}
