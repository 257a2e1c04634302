package main

import (
	"os/signal"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/upzone-cli/internal/export"
	"github.com/sells-group/upzone-cli/internal/report"
	"github.com/sells-group/upzone-cli/internal/store"
)

var exportOutPath string

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Run the analysis and export the dataset",
}

var exportGeoJSONCmd = &cobra.Command{
	Use:   "geojson",
	Short: "Export the parcel dataset as GeoJSON",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		res, err := executeAnalysis(ctx)
		if err != nil {
			return err
		}

		path := exportOutPath
		if path == "" {
			path = cfg.Export.GeoJSONPath
		}
		return export.WriteGeoJSON(path, res.Parcels, cfg.CRS.WorkingSRID)
	},
}

var exportXLSXCmd = &cobra.Command{
	Use:   "xlsx",
	Short: "Export the run summary as an XLSX workbook",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		res, err := executeAnalysis(ctx)
		if err != nil {
			return err
		}

		path := exportOutPath
		if path == "" {
			path = cfg.Export.XLSXPath
		}
		if path == "" {
			return eris.New("no output path: set --out or export.xlsx_path")
		}
		return export.WriteWorkbook(path, report.Summarize(res))
	},
}

var exportPostGISCmd = &cobra.Command{
	Use:   "postgis",
	Short: "Load the parcel dataset into a PostGIS table",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if cfg.Store.DatabaseURL == "" {
			return eris.New("no database URL: set store.database_url or UPZONE_STORE_DATABASE_URL")
		}

		res, err := executeAnalysis(ctx)
		if err != nil {
			return err
		}

		// Export in the geographic reference so downstream tools see lon/lat.
		parcels, err := export.ToGeographic(res.Parcels, cfg.CRS.WorkingSRID)
		if err != nil {
			return err
		}

		pool, err := pgxpool.New(ctx, cfg.Store.DatabaseURL)
		if err != nil {
			return eris.Wrap(err, "connect postgis")
		}
		defer pool.Close()

		exporter := store.NewPostGISExporter(pool)
		if err := exporter.Migrate(ctx); err != nil {
			return err
		}

		st, err := store.NewSQLite(cfg.Store.SQLitePath)
		if err != nil {
			return err
		}
		defer st.Close()
		if err := st.Migrate(ctx); err != nil {
			return err
		}
		run, err := st.CreateRun(ctx)
		if err != nil {
			return err
		}

		n, err := exporter.Export(ctx, run.ID, parcels)
		if err != nil {
			return err
		}
		if err := st.CompleteRun(ctx, run.ID, res.Stats); err != nil {
			return err
		}

		zap.L().Info("postgis export complete",
			zap.String("run_id", run.ID),
			zap.Int64("rows", n),
		)
		return nil
	},
}

func init() {
	exportCmd.PersistentFlags().StringVar(&exportOutPath, "out", "", "output path (defaults to the configured export path)")
	exportCmd.AddCommand(exportGeoJSONCmd)
	exportCmd.AddCommand(exportXLSXCmd)
	exportCmd.AddCommand(exportPostGISCmd)
	rootCmd.AddCommand(exportCmd)
}
