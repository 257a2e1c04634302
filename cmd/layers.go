package main

import (
	"os"
	"os/signal"
	"sort"
	"syscall"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/upzone-cli/internal/arcgis"
	"github.com/sells-group/upzone-cli/internal/cache"
)

var layersCmd = &cobra.Command{
	Use:   "layers",
	Short: "Inspect and prefetch input layers",
}

var layersFetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "Fetch all input layers into the on-disk cache",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		client := arcgis.NewClient(cfg.Fetch)
		layerCache := cache.New(cfg.Cache)
		fetcher := arcgis.NewFetcher(client, layerCache, cfg.Layers, cfg.Fetch.Concurrency)

		layers, err := fetcher.FetchAll(ctx)
		if err != nil {
			return err
		}

		zap.L().Info("layers fetched",
			zap.Int("parcels", len(layers.Parcels.Features)),
			zap.Int("zoning", len(layers.Zoning.Features)),
			zap.Int("tiers", len(layers.Tiers.Features)),
			zap.Int("historic_layers", len(layers.Historic)),
		)
		return nil
	},
}

var layersStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show cached layers",
	RunE: func(cmd *cobra.Command, args []string) error {
		layerCache := cache.New(cfg.Cache)
		entries, err := layerCache.Entries()
		if err != nil {
			return err
		}

		t := table.NewWriter()
		t.SetOutputMirror(os.Stdout)
		t.SetStyle(table.StyleLight)
		t.AppendHeader(table.Row{"Layer", "Size (bytes)"})
		names := make([]string, 0, len(entries))
		for name := range entries {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			t.AppendRow(table.Row{name, entries[name]})
		}
		t.Render()
		return nil
	},
}

func init() {
	layersCmd.AddCommand(layersFetchCmd)
	layersCmd.AddCommand(layersStatusCmd)
	rootCmd.AddCommand(layersCmd)
}
