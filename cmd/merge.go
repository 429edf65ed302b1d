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
	mergeOutput string
	mergeFormat string
	mergeAsOf   string
)

var mergeCmd = &cobra.Command{
	Use:   "merge",
	Short: "Merge firm or security facts onto linked observations",
}

var mergeCompustatCmd = &cobra.Command{
	Use:   "compustat",
	Short: "Merge Compustat annual fundamentals by firm-year",
	Long:  "Links the ratings history, chains each observation to a GVKEY through the CCM link table and joins comp.funda on (gvkey, fyear).",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withMergeEnv(cmd.Context(), "kld_compustat_merge", runMergeCompustat)
	},
}

var mergeCRSPCmd = &cobra.Command{
	Use:   "crsp",
	Short: "Merge CRSP monthly records by month-end business day",
	Long:  "Links the ratings history, moves each observation to the last business day of its month and joins crsp.msf on (permno, date).",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withMergeEnv(cmd.Context(), "kld_crsp_monthly", func(ctx context.Context, c *config.Config, src source.Source, st store.Store, out outputSpec, _ time.Time) error {
			return runMergeCRSP(ctx, c, src, st, out)
		})
	},
}

type mergeFunc func(ctx context.Context, c *config.Config, src source.Source, st store.Store, out outputSpec, asOf time.Time) error

func withMergeEnv(ctx context.Context, defaultName string, fn mergeFunc) error {
	asOf, err := parseAsOf(mergeAsOf)
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

	return fn(ctx, cfg, src, st, resolveOutput(cfg.Output, mergeOutput, mergeFormat, defaultName), asOf)
}

// parseAsOf returns the date open link spells run to; empty means today.
func parseAsOf(s string) (time.Time, error) {
	if s == "" {
		now := time.Now().UTC()
		return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC), nil
	}
	t, err := source.ParseDate(s)
	if err != nil {
		return time.Time{}, eris.Wrap(err, "as-of")
	}
	if t.IsZero() {
		return time.Time{}, eris.Errorf("as-of: %q is not a date", s)
	}
	return t, nil
}

func runMergeCompustat(ctx context.Context, c *config.Config, src source.Source, st store.Store, out outputSpec, asOf time.Time) error {
	params := sourceParams(c)
	params["output"] = out.Path
	params["as_of"] = asOf.Format("2006-01-02")

	return tracked(ctx, st, "merge compustat", params, func(_ *store.Run) (*store.RunResult, error) {
		res, tables, err := fetchLinkInputs(ctx, src, linkerConfig(c.Link),
			source.BridgeQuery(), source.FundamentalsQuery())
		if err != nil {
			return nil, eris.Wrap(err, "merge compustat")
		}
		bridge, err := source.DecodeBridge(tables[source.TableBridge])
		if err != nil {
			return nil, err
		}
		funda, err := source.DecodeFundamentals(tables[source.TableFundamentals])
		if err != nil {
			return nil, err
		}

		yearLinks := merge.ChainToFirm(res.Prepared.Rows, res.Table.Links, bridge, asOf)
		firmYears := merge.Fundamentals(yearLinks, funda)
		if err := out.write(merge.FirmYearColumns, export.Records(firmYears)); err != nil {
			return nil, err
		}

		zap.L().Info("compustat merge complete",
			zap.Int("year_links", len(yearLinks)),
			zap.Int("firm_years", len(firmYears)),
		)
		result := store.NewRunResult(res)
		result.RowsWritten = len(firmYears)
		return result, nil
	})
}

func runMergeCRSP(ctx context.Context, c *config.Config, src source.Source, st store.Store, out outputSpec) error {
	params := sourceParams(c)
	params["output"] = out.Path

	return tracked(ctx, st, "merge crsp", params, func(_ *store.Run) (*store.RunResult, error) {
		res, tables, err := fetchLinkInputs(ctx, src, linkerConfig(c.Link), source.MonthlyQuery())
		if err != nil {
			return nil, eris.Wrap(err, "merge crsp")
		}
		msf, err := source.DecodeMonthly(tables[source.TableMonthly])
		if err != nil {
			return nil, err
		}

		monthly := merge.Monthly(res.Prepared.Rows, res.Table.Links, msf)
		if err := out.write(merge.MonthlyColumns, export.Records(monthly)); err != nil {
			return nil, err
		}

		zap.L().Info("crsp merge complete", zap.Int("observations", len(monthly)))
		result := store.NewRunResult(res)
		result.RowsWritten = len(monthly)
		return result, nil
	})
}

func init() {
	mergeCmd.PersistentFlags().StringVarP(&mergeOutput, "output", "o", "", "output path, - for stdout")
	mergeCmd.PersistentFlags().StringVar(&mergeFormat, "format", "", "output format: csv or xlsx (default from path)")
	mergeCompustatCmd.Flags().StringVar(&mergeAsOf, "as-of", "", "date open link spells end on, YYYY-MM-DD (default today)")

	mergeCmd.AddCommand(mergeCompustatCmd)
	mergeCmd.AddCommand(mergeCRSPCmd)
	rootCmd.AddCommand(mergeCmd)
}
