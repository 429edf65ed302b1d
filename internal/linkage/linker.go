package linkage

import (
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// ThresholdPool selects the candidate pool the secondary cutoff is taken from.
type ThresholdPool string

// Threshold pools.
const (
	// PoolStage computes the secondary cutoff from the ticker candidates.
	PoolStage ThresholdPool = "stage"
	// PoolPrimary reuses the CUSIP candidates' cutoff for the ticker stage.
	PoolPrimary ThresholdPool = "primary"
)

// Config configures a Linker.
type Config struct {
	Corrector      CorrectorConfig
	Prepare        PrepareConfig
	NamePercentile float64
	SecondaryPool  ThresholdPool
}

// DefaultConfig returns the default linkage settings.
func DefaultConfig() Config {
	return Config{
		Prepare:        DefaultPrepareConfig(),
		NamePercentile: DefaultNamePercentile,
		SecondaryPool:  PoolStage,
	}
}

// Linker runs the full history-to-security linkage.
type Linker struct {
	cfg       Config
	corrector *Corrector
}

// NewLinker creates a Linker.
func NewLinker(cfg Config) *Linker {
	if cfg.SecondaryPool == "" {
		cfg.SecondaryPool = PoolStage
	}
	return &Linker{cfg: cfg, corrector: NewCorrector(cfg.Corrector)}
}

// Result bundles the prepared history with its link table.
type Result struct {
	Prepared *Prepared
	Table    *LinkTable
	Elapsed  time.Duration
}

// Link prepares history and links it to names in two stages: CUSIP first,
// then ticker for the companies the CUSIP stage missed.
func (l *Linker) Link(history []HistoryRow, names []NameRow) (*Result, error) {
	log := zap.L().With(zap.String("component", "linker"))
	start := time.Now()

	prep := Prepare(history, l.corrector, l.cfg.Prepare)

	log.Info("primary stage: CUSIP join")
	pc := PrimaryCandidates(prep.Rows, names)
	pThreshold, err := SimilarityThreshold(pc, l.cfg.NamePercentile)
	if err != nil {
		return nil, eris.Wrap(err, "linkage: primary threshold")
	}
	primary := ScorePrimary(pc, pThreshold)
	log.Info("primary stage complete",
		zap.Int("candidates", len(pc)),
		zap.Float64("threshold", pThreshold),
	)

	matched := make(map[string]struct{})
	for _, c := range pc {
		matched[c.Source.CompanyName] = struct{}{}
	}
	var companies []string
	remaining := make(map[string]struct{})
	for _, r := range prep.Rows {
		if r.CompanyName == "" {
			continue
		}
		companies = append(companies, r.CompanyName)
		if _, ok := matched[r.CompanyName]; !ok {
			remaining[r.CompanyName] = struct{}{}
		}
	}

	log.Info("secondary stage: ticker join", zap.Int("companies", len(remaining)))
	sc := SecondaryCandidates(prep.Rows, names, remaining)
	var secondary []Link
	var sThreshold float64
	switch {
	case l.cfg.SecondaryPool == PoolPrimary:
		sThreshold = pThreshold
		secondary = ScoreSecondary(sc, sThreshold)
	case len(sc) > 0:
		sThreshold, err = SimilarityThreshold(sc, l.cfg.NamePercentile)
		if err != nil {
			return nil, eris.Wrap(err, "linkage: secondary threshold")
		}
		secondary = ScoreSecondary(sc, sThreshold)
	}
	log.Info("secondary stage complete",
		zap.Int("candidates", len(sc)),
		zap.Float64("threshold", sThreshold),
	)

	table := Assemble(companies, primary, secondary)
	table.Stats.PrimaryCandidates = len(pc)
	table.Stats.SecondaryCandidates = len(sc)
	table.Stats.PrimaryThreshold = pThreshold
	table.Stats.SecondaryThreshold = sThreshold

	res := &Result{Prepared: prep, Table: table, Elapsed: time.Since(start)}
	log.Info("link table assembled",
		zap.Int("links", len(table.Links)),
		zap.Int("primary_links", table.Stats.PrimaryLinks),
		zap.Int("secondary_links", table.Stats.SecondaryLinks),
		zap.Int("unmatched", table.Stats.Unmatched),
		zap.Duration("elapsed", res.Elapsed),
	)
	return res, nil
}
