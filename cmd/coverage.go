package main

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/xlink/internal/config"
	"github.com/sells-group/xlink/internal/export"
	"github.com/sells-group/xlink/internal/merge"
	"github.com/sells-group/xlink/internal/source"
	"github.com/sells-group/xlink/internal/store"
)

var (
	coverageOutput string
	coverageAsOf   string
)

var coverageCmd = &cobra.Command{
	Use:   "coverage",
	Short: "Compare CUSIP and CCM PERMNO to GVKEY coverage per year",
	Long:  "Counts, per fiscal year, the distinct GVKEYs with fundamentals reachable from crsp.msf through CUSIP matching against comp.security and through the CCM link table.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		asOf, err := parseAsOf(coverageAsOf)
		if err != nil {
			return err
		}

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

		out := resolveOutput(cfg.Output, coverageOutput, "", "permno_gvkey_coverage")
		return runCoverage(ctx, cfg, src, st, out, asOf)
	},
}

func runCoverage(ctx context.Context, c *config.Config, src source.Source, st store.Store, out outputSpec, asOf time.Time) error {
	params := sourceParams(c)
	params["output"] = out.Path
	params["as_of"] = asOf.Format("2006-01-02")

	return tracked(ctx, st, "coverage", params, func(_ *store.Run) (*store.RunResult, error) {
		fundaQuery := source.CoverageFundamentalsQuery()
		tables, err := source.FetchAll(ctx, src,
			source.MonthlyQuery(), source.MSENamesQuery(), source.SecurityQuery(), source.BridgeQuery(), fundaQuery)
		if err != nil {
			return nil, eris.Wrap(err, "coverage")
		}

		var in merge.CoverageInput
		if in.Monthly, err = source.DecodeMonthly(tables[source.TableMonthly]); err != nil {
			return nil, err
		}
		if in.NameSpells, err = source.DecodeNames(tables[source.TableMSENames]); err != nil {
			return nil, err
		}
		if in.Securities, err = source.DecodeSecurities(tables[source.TableSecurity]); err != nil {
			return nil, err
		}
		if in.Bridge, err = source.DecodeBridge(tables[source.TableBridge]); err != nil {
			return nil, err
		}
		if in.Fundamentals, err = source.DecodeFundamentals(tables[fundaQuery.Key()]); err != nil {
			return nil, err
		}

		rows := merge.Coverage(in, asOf)
		if err := out.write(merge.CoverageColumns, export.Records(rows)); err != nil {
			return nil, err
		}

		zap.L().Info("coverage complete", zap.Int("years", len(rows)))
		return &store.RunResult{RowsWritten: len(rows)}, nil
	})
}

func init() {
	coverageCmd.Flags().StringVarP(&coverageOutput, "output", "o", "", "output path, - for stdout")
	coverageCmd.Flags().StringVar(&coverageAsOf, "as-of", "", "date open link spells end on, YYYY-MM-DD (default today)")
	rootCmd.AddCommand(coverageCmd)
}
