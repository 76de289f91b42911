// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package firewall renders and applies the nftables ruleset that feeds the
// snifrag queue. The daemon never touches this; it exists so deployments
// don't hand-write the divert rule and, critically, its mark exclusion.
package firewall

import (
	"fmt"
	"os/exec"
	"strings"

	"grimm.is/snifrag/internal/errors"
	"grimm.is/snifrag/internal/inject"
)

// DefaultTable is the nftables table owned by snifrag.
const DefaultTable = "snifrag"

// Ruleset describes the egress divert rules. Packets carrying Mark are
// accepted before the queue rule; everything else on TCP/443 is handed to
// the queue with bypass so traffic keeps flowing if the daemon is down.
type Ruleset struct {
	Table    string
	Queue    uint32
	Mark     uint32
	OutIface string // optional oifname match
}

// DefaultRuleset returns the ruleset for a queue number with the inject
// mark exclusion wired in.
func DefaultRuleset(queue uint32) Ruleset {
	return Ruleset{
		Table: DefaultTable,
		Queue: queue,
		Mark:  inject.Mark,
	}
}

// Render produces an idempotent `nft -f` script: the table is created if
// missing, flushed, and repopulated, so repeated applies converge.
func (r Ruleset) Render() string {
	table := r.Table
	if table == "" {
		table = DefaultTable
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "add table ip %s\n", table)
	fmt.Fprintf(&sb, "flush table ip %s\n", table)
	fmt.Fprintf(&sb, "add chain ip %s output { type filter hook output priority mangle ; policy accept ; }\n", table)
	fmt.Fprintf(&sb, "add rule ip %s output meta mark 0x%x accept comment \"snifrag reinjected fragments\"\n", table, r.Mark)

	match := ""
	if r.OutIface != "" {
		match = fmt.Sprintf("oifname \"%s\" ", r.OutIface)
	}
	fmt.Fprintf(&sb, "add rule ip %s output %stcp dport 443 counter queue num %d bypass comment \"divert tls egress to snifrag\"\n",
		table, match, r.Queue)
	return sb.String()
}

// Apply pipes the rendered script through `nft -f -`.
func (r Ruleset) Apply() error {
	cmd := exec.Command("nft", "-f", "-")
	cmd.Stdin = strings.NewReader(r.Render())
	if out, err := cmd.CombinedOutput(); err != nil {
		return errors.Wrapf(err, errors.KindUnavailable, "firewall: nft -f failed: %s", strings.TrimSpace(string(out)))
	}
	return nil
}

// Delete removes the table and every rule in it.
func (r Ruleset) Delete() error {
	table := r.Table
	if table == "" {
		table = DefaultTable
	}
	cmd := exec.Command("nft", "delete", "table", "ip", table)
	if out, err := cmd.CombinedOutput(); err != nil {
		return errors.Wrapf(err, errors.KindUnavailable, "firewall: nft delete table failed: %s", strings.TrimSpace(string(out)))
	}
	return nil
}
