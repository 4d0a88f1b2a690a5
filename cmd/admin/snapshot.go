package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	persistlog "econcraft.ai/internal/persistence/log"
	"econcraft.ai/internal/persistence/snapshot"
	"econcraft.ai/internal/sim/world"
)

func newSnapshotCmd(g *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "snapshot",
		Short: "Inspect snapshot files",
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List snapshot files with their headers",
		RunE: func(cmd *cobra.Command, args []string) error {
			return listSnapshots(cmd.OutOrStdout(), filepath.Join(g.worldDir(), "snapshots"))
		},
	}

	inspect := &cobra.Command{
		Use:   "inspect [path]",
		Short: "Print a snapshot's players (default: latest)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := ""
			if len(args) == 1 {
				path = args[0]
			} else {
				path = snapshot.Latest(filepath.Join(g.worldDir(), "snapshots"))
			}
			if path == "" {
				return fmt.Errorf("no snapshot found under %s", g.worldDir())
			}
			snap, err := snapshot.ReadSnapshot(path)
			if err != nil {
				return err
			}
			printSnapshot(cmd.OutOrStdout(), filepath.Base(path), snap)
			return nil
		},
	}

	cmd.AddCommand(list, inspect)
	return cmd
}

func listSnapshots(out io.Writer, dir string) error {
	ents, err := os.ReadDir(dir)
	if err != nil {
		return err
	}
	table := tablewriter.NewTable(out, tablewriter.WithHeader([]string{"File", "World", "Tick", "Players"}))
	var names []string
	for _, e := range ents {
		if !e.IsDir() && strings.HasSuffix(e.Name(), snapshot.Ext) {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	for _, name := range names {
		h, err := snapshot.ReadHeader(filepath.Join(dir, name))
		if err != nil {
			warnColor.Fprintf(out, "%s: %v\n", name, err)
			continue
		}
		table.Append([]string{name, h.WorldID, fmt.Sprintf("%d", h.Tick), fmt.Sprintf("%d", h.Players)})
	}
	table.Render()
	return nil
}

func printSnapshot(out io.Writer, name string, snap snapshot.SnapshotV1) {
	titleColor.Fprintf(out, "%s: world=%s tick=%d seed=%d rate=%d/s paused=%v\n",
		name, snap.Header.WorldID, snap.Header.Tick, snap.Seed, snap.TickRateHz, snap.Paused)

	table := tablewriter.NewTable(out,
		tablewriter.WithHeader([]string{"Player", "Name", "Population", "Buildings", "Stock", "Lands", "Offers in/out"}),
	)
	for _, p := range snap.Players {
		var buildings, stock uint64
		for _, b := range p.Buildings {
			buildings += uint64(b.Count)
		}
		for _, s := range p.Stockpiles {
			stock += uint64(s.Current)
		}
		table.Append([]string{
			p.ID,
			p.Name,
			fmt.Sprintf("%d/%d/%d", p.Population.Idle, p.Population.Total, p.Population.Maximum),
			fmt.Sprintf("%d", buildings),
			fmt.Sprintf("%d", stock),
			fmt.Sprintf("%d", len(p.Lands)),
			fmt.Sprintf("%d/%d", len(p.Inbound), len(p.Outbound)),
		})
	}
	table.Render()
	fmt.Fprintf(out, "tiles in use: %d\n", len(snap.Tiles))
}

func newLogsCmd(g *globalFlags) *cobra.Command {
	var limit int
	var player string
	ticks := &cobra.Command{
		Use:   "ticks",
		Short: "Print the tail of the compressed tick log",
		RunE: func(cmd *cobra.Command, args []string) error {
			entries, err := persistlog.ReadTicks(g.worldDir())
			if err != nil {
				return err
			}
			printTickLog(cmd.OutOrStdout(), entries, player, limit)
			return nil
		},
	}
	ticks.Flags().IntVar(&limit, "limit", 20, "number of entries")
	ticks.Flags().StringVar(&player, "player", "", "only commands from this player")

	cmd := &cobra.Command{Use: "logs", Short: "Read the JSONL logs"}
	cmd.AddCommand(ticks)
	return cmd
}

func printTickLog(out io.Writer, entries []world.TickLogEntry, player string, limit int) {
	if limit > 0 && len(entries) > limit {
		entries = entries[len(entries)-limit:]
	}
	table := tablewriter.NewTable(out, tablewriter.WithHeader([]string{"Tick", "Paused", "Joins", "Leaves", "Commands", "Digest"}))
	for _, e := range entries {
		var cmds []string
		for _, c := range e.Commands {
			if player != "" && c.PlayerID != player {
				continue
			}
			s := c.PlayerID + ":" + c.Cmd.Cmd
			if c.Code != "" {
				s += "!" + c.Code
			}
			cmds = append(cmds, s)
		}
		table.Append([]string{
			fmt.Sprintf("%d", e.Tick),
			fmt.Sprintf("%v", e.Paused),
			fmt.Sprintf("%d", len(e.Joins)),
			fmt.Sprintf("%d", len(e.Leaves)),
			strings.Join(cmds, " "),
			short(e.Digest),
		})
	}
	table.Render()
}
