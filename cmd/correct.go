package main

import (
	"context"
	"sort"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/xlink/internal/config"
	"github.com/sells-group/xlink/internal/linkage"
	"github.com/sells-group/xlink/internal/source"
	"github.com/sells-group/xlink/internal/store"
)

var (
	correctOutput string
	correctAll    bool
)

// correctionColumns is the header of the correction report.
var correctionColumns = []string{"raw_cusip", "outcome", "cusip", "level"}

var correctCmd = &cobra.Command{
	Use:   "correct",
	Short: "Report CUSIP repairs of the ratings history",
	Long:  "Runs the identifier corrector over the ratings history CUSIPs and writes one row per repaired or ambiguous identifier.",
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

		out := resolveOutput(cfg.Output, correctOutput, "", "kld_cusip_corrections")
		return runCorrect(ctx, cfg, src, st, out, correctAll)
	},
}

func runCorrect(ctx context.Context, c *config.Config, src source.Source, st store.Store, out outputSpec, all bool) error {
	params := sourceParams(c)
	params["output"] = out.Path

	return tracked(ctx, st, "correct", params, func(_ *store.Run) (*store.RunResult, error) {
		t, err := src.Fetch(ctx, source.HistoryQuery())
		if err != nil {
			return nil, eris.Wrap(err, "correct")
		}
		history, err := source.DecodeHistory(t)
		if err != nil {
			return nil, err
		}

		ids := make([]string, len(history))
		for i, h := range history {
			ids[i] = h.CUSIP
		}
		_, report := linkage.NewCorrector(linkerConfig(c.Link).Corrector).Correct(ids)

		rows := correctionRows(report, all)
		if err := out.write(correctionColumns, rows); err != nil {
			return nil, err
		}

		zap.L().Info("correction complete",
			zap.Int("distinct_identifiers", len(report.Outcomes)),
			zap.Int("corrected", report.Distinct),
			zap.Int("observations_rewritten", report.Observations),
			zap.Int("ambiguous", report.Ambiguous),
			zap.Int("passes", report.Passes),
		)
		return &store.RunResult{
			CorrectedIdentifiers:  report.Distinct,
			CorrectedObservations: report.Observations,
			AmbiguousIdentifiers:  report.Ambiguous,
			RowsWritten:           len(rows),
		}, nil
	})
}

// correctionRows lists outcomes sorted by raw identifier. Unchanged
// identifiers are included only when all is set.
func correctionRows(report *linkage.CorrectionReport, all bool) [][]string {
	raws := make([]string, 0, len(report.Outcomes))
	for raw, o := range report.Outcomes {
		if all || o.Kind != linkage.Unchanged {
			raws = append(raws, raw)
		}
	}
	sort.Strings(raws)

	rows := make([][]string, len(raws))
	for i, raw := range raws {
		o := report.Outcomes[raw]
		target := raw
		if o.Kind == linkage.Corrected {
			target = o.Target
		}
		rows[i] = []string{raw, o.Kind.String(), target, o.Level.String()}
	}
	return rows
}

func init() {
	correctCmd.Flags().StringVarP(&correctOutput, "output", "o", "", "output path, - for stdout")
	correctCmd.Flags().BoolVar(&correctAll, "all", false, "include unchanged identifiers")
	rootCmd.AddCommand(correctCmd)
}
