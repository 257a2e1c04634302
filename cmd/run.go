package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/upzone-cli/internal/arcgis"
	"github.com/sells-group/upzone-cli/internal/cache"
	"github.com/sells-group/upzone-cli/internal/export"
	"github.com/sells-group/upzone-cli/internal/pipeline"
	"github.com/sells-group/upzone-cli/internal/report"
	"github.com/sells-group/upzone-cli/internal/store"
)

var (
	runGeoJSONPath string
	runXLSXPath    string
	runNoStore     bool
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the full capacity analysis",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		var st store.Store
		var run *store.Run
		if !runNoStore {
			s, err := store.NewSQLite(cfg.Store.SQLitePath)
			if err != nil {
				return err
			}
			defer s.Close()
			if err := s.Migrate(ctx); err != nil {
				return err
			}
			st = s
			run, err = st.CreateRun(ctx)
			if err != nil {
				return err
			}
			zap.L().Info("run created", zap.String("run_id", run.ID))
		}

		res, err := executeAnalysis(ctx)
		if err != nil {
			if run != nil {
				if ferr := st.FailRun(ctx, run.ID, err.Error()); ferr != nil {
					zap.L().Warn("failed to record run failure", zap.Error(ferr))
				}
			}
			return err
		}

		if run != nil {
			if err := st.SaveParcels(ctx, run.ID, res.Parcels); err != nil {
				return eris.Wrap(err, "save parcels")
			}
			if err := st.CompleteRun(ctx, run.ID, res.Stats); err != nil {
				return eris.Wrap(err, "complete run")
			}
		}

		summary := report.Summarize(res)
		summary.Render(os.Stdout)

		if runGeoJSONPath != "" {
			if err := export.WriteGeoJSON(runGeoJSONPath, res.Parcels, cfg.CRS.WorkingSRID); err != nil {
				return err
			}
		}
		if runXLSXPath != "" {
			if err := export.WriteWorkbook(runXLSXPath, summary); err != nil {
				return err
			}
		}
		return nil
	},
}

// executeAnalysis fetches every input layer and runs the pipeline over it.
func executeAnalysis(ctx context.Context) (*pipeline.Result, error) {
	client := arcgis.NewClient(cfg.Fetch)
	layerCache := cache.New(cfg.Cache)
	fetcher := arcgis.NewFetcher(client, layerCache, cfg.Layers, cfg.Fetch.Concurrency)

	layers, err := fetcher.FetchAll(ctx)
	if err != nil {
		return nil, err
	}

	pl := pipeline.New(cfg.Policy, cfg.CRS.WorkingSRID)
	return pl.Run(layers)
}

func init() {
	runCmd.Flags().StringVar(&runGeoJSONPath, "geojson", "", "write the parcel dataset to this GeoJSON path")
	runCmd.Flags().StringVar(&runXLSXPath, "xlsx", "", "write the summary workbook to this path")
	runCmd.Flags().BoolVar(&runNoStore, "no-store", false, "skip run persistence")
	rootCmd.AddCommand(runCmd)
}
