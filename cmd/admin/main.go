package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"econcraft.ai/internal/sim/catalogs"
	"econcraft.ai/internal/sim/tuning"
)

var (
	titleColor   = color.New(color.FgCyan, color.Bold)
	successColor = color.New(color.FgGreen, color.Bold)
	warnColor    = color.New(color.FgYellow)
)

type globalFlags struct {
	dataDir string
	worldID string
	url     string
}

func (g *globalFlags) worldDir() string {
	return filepath.Join(g.dataDir, "worlds", g.worldID)
}

func main() {
	if err := newRootCmd(os.Stdout).Execute(); err != nil {
		color.Red("%v", err)
		os.Exit(1)
	}
}

func newRootCmd(out io.Writer) *cobra.Command {
	g := &globalFlags{}
	root := &cobra.Command{
		Use:           "admin",
		Short:         "Operator tools for an econcraft world",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(out)
	root.PersistentFlags().StringVar(&g.dataDir, "data", "./data", "runtime data directory")
	root.PersistentFlags().StringVar(&g.worldID, "world", "world_1", "world id")
	root.PersistentFlags().StringVar(&g.url, "url", "http://127.0.0.1:8080", "server base url")

	root.AddCommand(
		newCatalogCmd(),
		newSnapshotCmd(g),
		newDBCmd(g),
		newLogsCmd(g),
		newServerCmd(g),
	)
	return root
}

func newCatalogCmd() *cobra.Command {
	var configDir, tuningPath string
	cmd := &cobra.Command{
		Use:   "catalog",
		Short: "Validate and print the building and resource catalogs",
		RunE: func(cmd *cobra.Command, args []string) error {
			cat, deps, err := catalogs.Load(configDir)
			if err != nil {
				return fmt.Errorf("catalogs: %w", err)
			}
			tp := tuningPath
			if tp == "" {
				tp = filepath.Join(configDir, "tuning.yaml")
			}
			tune, err := tuning.Load(tp)
			if err != nil {
				return fmt.Errorf("tuning: %w", err)
			}
			for _, sb := range tune.StarterBuildings {
				if _, ok := cat.Building(catalogs.BuildingID(sb.Building)); !ok {
					return fmt.Errorf("tuning: starter building %d not in catalog", sb.Building)
				}
			}

			out := cmd.OutOrStdout()
			titleColor.Fprintln(out, "Resources")
			printResources(out, cat)
			titleColor.Fprintln(out, "Buildings")
			printBuildings(out, cat)
			if len(deps.Free) > 0 {
				fmt.Fprintf(out, "consume nothing: %s\n", buildingNames(cat, deps.Free))
			}
			successColor.Fprintf(out, "ok: %d buildings, %d resources (buildings %s, resources %s)\n",
				len(cat.Buildings), len(cat.Resources), short(cat.BuildingsDigest), short(cat.ResourcesDigest))
			return nil
		},
	}
	cmd.Flags().StringVar(&configDir, "configs", "./configs", "config directory")
	cmd.Flags().StringVar(&tuningPath, "tuning", "", "path to tuning.yaml (default: <configs>/tuning.yaml)")
	return cmd
}

func printResources(out io.Writer, cat *catalogs.Catalog) {
	table := tablewriter.NewTable(out, tablewriter.WithHeader([]string{"ID", "Name"}))
	for _, id := range cat.ResourceIDs() {
		r, _ := cat.Resource(id)
		table.Append([]string{fmt.Sprintf("%d", id), r.Name})
	}
	table.Render()
}

func printBuildings(out io.Writer, cat *catalogs.Catalog) {
	table := tablewriter.NewTable(out,
		tablewriter.WithHeader([]string{"ID", "Name", "Extractor", "Workers", "Produces", "Consumes", "Cost", "Requires"}),
	)
	for _, id := range cat.BuildingIDs() {
		b, _ := cat.Building(id)
		table.Append([]string{
			fmt.Sprintf("%d", id),
			b.Name,
			fmt.Sprintf("%v", b.Extractor),
			fmt.Sprintf("%d", b.MaxWorkers),
			amounts(cat, b.Produced),
			amounts(cat, b.Consumed),
			amounts(cat, b.ConstructionCost),
			buildingNames(cat, b.Prerequisites),
		})
	}
	table.Render()
}

func amounts(cat *catalogs.Catalog, m map[catalogs.ResourceID]uint32) string {
	ids := make([]catalogs.ResourceID, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	parts := make([]string, 0, len(ids))
	for _, id := range ids {
		name := fmt.Sprintf("#%d", id)
		if r, ok := cat.Resource(id); ok {
			name = r.Name
		}
		parts = append(parts, fmt.Sprintf("%s x%d", name, m[id]))
	}
	return strings.Join(parts, ", ")
}

func buildingNames(cat *catalogs.Catalog, ids []catalogs.BuildingID) string {
	parts := make([]string, 0, len(ids))
	for _, id := range ids {
		name := fmt.Sprintf("#%d", id)
		if b, ok := cat.Building(id); ok {
			name = b.Name
		}
		parts = append(parts, name)
	}
	return strings.Join(parts, ", ")
}

func short(digest string) string {
	if len(digest) > 12 {
		return digest[:12]
	}
	return digest
}
