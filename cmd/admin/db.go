package main

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"econcraft.ai/internal/persistence/indexdb"
)

func newDBCmd(g *globalFlags) *cobra.Command {
	var dbPath string
	var limit int

	open := func() (*indexdb.Reader, error) {
		path := strings.TrimSpace(dbPath)
		if path == "" {
			path = filepath.Join(g.worldDir(), "index", "world.sqlite")
		}
		return indexdb.OpenReader(path)
	}

	cmd := &cobra.Command{
		Use:   "db",
		Short: "Query the sqlite index",
	}
	cmd.PersistentFlags().StringVar(&dbPath, "db", "", "sqlite db path (default: <data>/worlds/<world>/index/world.sqlite)")
	cmd.PersistentFlags().IntVar(&limit, "limit", 20, "result limit")

	ticks := &cobra.Command{
		Use:   "ticks",
		Short: "Most recent tick rows",
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := open()
			if err != nil {
				return err
			}
			defer r.Close()
			rows, err := r.RecentTicks(context.Background(), limit)
			if err != nil {
				return err
			}
			table := tablewriter.NewTable(cmd.OutOrStdout(),
				tablewriter.WithHeader([]string{"Tick", "Paused", "Joins", "Leaves", "Commands", "Rejected", "Digest"}))
			for _, t := range rows {
				table.Append([]string{
					fmt.Sprintf("%d", t.Tick), fmt.Sprintf("%v", t.Paused),
					fmt.Sprintf("%d", t.Joins), fmt.Sprintf("%d", t.Leaves),
					fmt.Sprintf("%d", t.Commands), fmt.Sprintf("%d", t.Rejected), short(t.Digest),
				})
			}
			table.Render()
			return nil
		},
	}

	commands := &cobra.Command{
		Use:   "commands <player-id>",
		Short: "A player's most recent commands",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := open()
			if err != nil {
				return err
			}
			defer r.Close()
			ctx := context.Background()
			if at, ok, err := r.JoinTick(ctx, args[0]); err == nil && ok {
				titleColor.Fprintf(cmd.OutOrStdout(), "%s joined at tick %d\n", args[0], at)
			}
			rows, err := r.CommandsByPlayer(ctx, args[0], limit)
			if err != nil {
				return err
			}
			table := tablewriter.NewTable(cmd.OutOrStdout(),
				tablewriter.WithHeader([]string{"Tick", "Req", "Cmd", "Result", "Body"}))
			for _, c := range rows {
				result := "ok"
				if c.Code != "" {
					result = c.Code
				}
				table.Append([]string{fmt.Sprintf("%d", c.Tick), c.ReqID, c.Cmd, result, c.CmdJSON})
			}
			table.Render()
			return nil
		},
	}

	audits := &cobra.Command{
		Use:   "audits",
		Short: "Most recent audit rows",
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := open()
			if err != nil {
				return err
			}
			defer r.Close()
			rows, err := r.Audits(context.Background(), limit)
			if err != nil {
				return err
			}
			table := tablewriter.NewTable(cmd.OutOrStdout(),
				tablewriter.WithHeader([]string{"Tick", "Actor", "Action", "Details"}))
			for _, a := range rows {
				table.Append([]string{fmt.Sprintf("%d", a.Tick), a.Actor, a.Action, a.Details})
			}
			table.Render()
			return nil
		},
	}

	snapshots := &cobra.Command{
		Use:   "snapshots",
		Short: "Snapshots recorded by the server",
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := open()
			if err != nil {
				return err
			}
			defer r.Close()
			rows, err := r.Snapshots(context.Background())
			if err != nil {
				return err
			}
			table := tablewriter.NewTable(cmd.OutOrStdout(),
				tablewriter.WithHeader([]string{"Tick", "Players", "Tiles", "Seed", "Path", "Recorded"}))
			for _, s := range rows {
				table.Append([]string{
					fmt.Sprintf("%d", s.Tick), fmt.Sprintf("%d", s.Players), fmt.Sprintf("%d", s.Tiles),
					fmt.Sprintf("%d", s.Seed), s.Path, s.RecordedAt,
				})
			}
			table.Render()
			return nil
		},
	}

	cats := &cobra.Command{
		Use:   "catalogs",
		Short: "Catalog digests stored at server start",
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := open()
			if err != nil {
				return err
			}
			defer r.Close()
			rows, err := r.Catalogs(context.Background())
			if err != nil {
				return err
			}
			table := tablewriter.NewTable(cmd.OutOrStdout(),
				tablewriter.WithHeader([]string{"Name", "Digest", "Bytes", "Updated"}))
			for _, c := range rows {
				table.Append([]string{c.Name, short(c.Digest), fmt.Sprintf("%d", len(c.JSON)), c.UpdatedAt})
			}
			table.Render()
			return nil
		},
	}

	cmd.AddCommand(ticks, commands, audits, snapshots, cats)
	return cmd
}
