package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/xlink/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "xlink",
	Short: "Scored KLD to CRSP link tables",
	Long:  "Links ratings history companies to CRSP securities by CUSIP and ticker with an explicit confidence score, then merges Compustat fundamentals and CRSP monthly records onto the linked observations.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return fmt.Errorf("init logger: %w", err)
		}

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
