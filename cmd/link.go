package main

import (
	"context"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/xlink/internal/config"
	"github.com/sells-group/xlink/internal/export"
	"github.com/sells-group/xlink/internal/source"
	"github.com/sells-group/xlink/internal/store"
)

var (
	linkOutput string
	linkFormat string
)

var linkCmd = &cobra.Command{
	Use:   "link",
	Short: "Build the scored KLD to CRSP link table",
	Long:  "Fetches the ratings history and CRSP name history, repairs CUSIPs, matches by CUSIP then ticker, and writes the scored link table.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		src, closeSrc, err := initSource(ctx, cfg)
		if err != nil {
			return err
		}
		defer closeSrc()

		st, err := initStore(ctx, cfg)
		if err != nil {
			return err
		}
		if st != nil {
			defer st.Close() //nolint:errcheck
		}

		out := resolveOutput(cfg.Output, linkOutput, linkFormat, "kld_crsp_link")
		return runLink(ctx, cfg, src, st, out)
	},
}

func runLink(ctx context.Context, c *config.Config, src source.Source, st store.Store, out outputSpec) error {
	params := sourceParams(c)
	params["output"] = out.Path

	return tracked(ctx, st, "link", params, func(run *store.Run) (*store.RunResult, error) {
		res, _, err := fetchLinkInputs(ctx, src, linkerConfig(c.Link))
		if err != nil {
			return nil, eris.Wrap(err, "link")
		}
		table := res.Table

		if err := out.write(export.LinkColumns, export.LinkRows(table)); err != nil {
			return nil, err
		}
		if run != nil {
			if err := st.SaveLinkTable(ctx, run.ID, table); err != nil {
				return nil, err
			}
		}

		zap.L().Info("link table complete",
			zap.Int("source_entities", table.Stats.SourceEntities),
			zap.Int("primary_links", table.Stats.PrimaryLinks),
			zap.Int("secondary_links", table.Stats.SecondaryLinks),
			zap.Int("unmatched", table.Stats.Unmatched),
			zap.Float64("primary_threshold", table.Stats.PrimaryThreshold),
			zap.Float64("secondary_threshold", table.Stats.SecondaryThreshold),
			zap.Duration("elapsed", res.Elapsed),
		)

		result := store.NewRunResult(res)
		result.RowsWritten = len(table.Links)
		return result, nil
	})
}

func init() {
	linkCmd.Flags().StringVarP(&linkOutput, "output", "o", "", "output path, - for stdout (default from config)")
	linkCmd.Flags().StringVar(&linkFormat, "format", "", "output format: csv or xlsx (default from path)")
	rootCmd.AddCommand(linkCmd)
}
