package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/upzone-cli/internal/config"
)

var (
	cfg        *config.Config
	policyPath string
)

var rootCmd = &cobra.Command{
	Use:   "upzone",
	Short: "Transit-upzoning housing capacity estimator",
	Long:  "Fetches parcels, zoning, and transit-tier layers, joins them in a planar reference, and estimates the housing units an upzoning overlay adds per parcel.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return fmt.Errorf("init logger: %w", err)
		}

		if policyPath != "" {
			p, err := config.LoadPolicyFile(policyPath, cfg.Policy)
			if err != nil {
				return fmt.Errorf("load policy file: %w", err)
			}
			cfg.Policy = p
		}
		if err := config.ValidatePolicy(cfg.Policy); err != nil {
			return fmt.Errorf("validate policy: %w", err)
		}

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&policyPath, "policy", "", "policy file overriding the built-in zoning and feasibility tables")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
