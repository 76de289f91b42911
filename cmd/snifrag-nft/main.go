// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// snifrag-nft manages the nftables ruleset that diverts TLS egress into the
// snifrag queue. It is a deployment convenience; the daemon itself never
// modifies firewall state.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"grimm.is/snifrag/internal/firewall"
	"grimm.is/snifrag/internal/inject"
)

var (
	flagQueue uint32
	flagMark  uint32
	flagOif   string
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "snifrag-nft: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "snifrag-nft",
		Short:         "Manage the nftables ruleset that feeds snifrag",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().Uint32Var(&flagQueue, "queue", 0, "netfilter queue number the daemon is bound to")
	root.PersistentFlags().Uint32Var(&flagMark, "mark", inject.Mark, "packet mark excluded from diversion")
	root.PersistentFlags().StringVar(&flagOif, "oif", "", "restrict diversion to this output interface")

	root.AddCommand(
		&cobra.Command{
			Use:   "show",
			Short: "Print the rendered ruleset",
			RunE: func(cmd *cobra.Command, args []string) error {
				rs, err := buildRuleset()
				if err != nil {
					return err
				}
				fmt.Print(rs.Render())
				return nil
			},
		},
		&cobra.Command{
			Use:   "apply",
			Short: "Apply the ruleset via nft -f",
			RunE: func(cmd *cobra.Command, args []string) error {
				rs, err := buildRuleset()
				if err != nil {
					return err
				}
				return rs.Apply()
			},
		},
		&cobra.Command{
			Use:   "delete",
			Short: "Delete the snifrag table",
			RunE: func(cmd *cobra.Command, args []string) error {
				return firewall.Ruleset{Table: firewall.DefaultTable}.Delete()
			},
		},
	)
	return root
}

func buildRuleset() (firewall.Ruleset, error) {
	if flagOif != "" {
		if err := checkLink(flagOif); err != nil {
			return firewall.Ruleset{}, err
		}
	}
	rs := firewall.DefaultRuleset(flagQueue)
	rs.Mark = flagMark
	rs.OutIface = flagOif
	return rs, nil
}
