// Package linkage builds scored link tables between a ratings history and a
// security name history: identifier repair, name similarity, validity windows,
// two matching stages and the final assembly.
package linkage

import (
	"sort"
	"strings"

	"go.uber.org/zap"
)

// IdentifierLength is the length of a full-form CUSIP.
const IdentifierLength = 8

// CorrectionLevel records which layer of the corrector produced a mapping.
type CorrectionLevel int

// Correction levels in layering order.
const (
	LevelNone CorrectionLevel = iota
	LevelOneZero
	LevelTwoZeros
	LevelThreeZeros
	LevelManual
)

func (l CorrectionLevel) String() string {
	switch l {
	case LevelOneZero:
		return "one_zero"
	case LevelTwoZeros:
		return "two_zeros"
	case LevelThreeZeros:
		return "three_zeros"
	case LevelManual:
		return "manual"
	default:
		return "none"
	}
}

// OutcomeKind tags what happened to a distinct identifier.
type OutcomeKind int

// Outcome kinds.
const (
	Unchanged OutcomeKind = iota
	Corrected
	SkippedAmbiguous
)

func (k OutcomeKind) String() string {
	switch k {
	case Corrected:
		return "corrected"
	case SkippedAmbiguous:
		return "skipped_ambiguous"
	default:
		return "unchanged"
	}
}

// Outcome is the per-identifier result of a correction run.
type Outcome struct {
	Kind   OutcomeKind
	Target string
	Level  CorrectionLevel
}

// DefaultExcludedTargets lists repaired identifiers known to collide with
// unrelated securities. They are removed before the two- and three-zero maps
// are built.
var DefaultExcludedTargets = []string{"00030710"}

// DefaultManualCorrections returns the hand-verified corrections applied on
// top of the derived maps.
func DefaultManualCorrections() map[string]string {
	return map[string]string{
		"18772103": "01877210",
		"01877230": "01877210",
		"886309":   "00088630",
	}
}

// CorrectorConfig configures a Corrector. Nil fields fall back to defaults.
type CorrectorConfig struct {
	ExcludedTargets []string          `yaml:"excluded_targets" mapstructure:"excluded_targets"`
	Manual          map[string]string `yaml:"manual_corrections" mapstructure:"manual_corrections"`
}

// Corrector repairs identifiers that lost one to three leading zeros.
type Corrector struct {
	excluded map[string]struct{}
	manual   map[string]string
}

// NewCorrector creates a Corrector from cfg.
func NewCorrector(cfg CorrectorConfig) *Corrector {
	excluded := cfg.ExcludedTargets
	if excluded == nil {
		excluded = DefaultExcludedTargets
	}
	manual := cfg.Manual
	if manual == nil {
		manual = DefaultManualCorrections()
	}

	c := &Corrector{
		excluded: make(map[string]struct{}, len(excluded)),
		manual:   make(map[string]string, len(manual)),
	}
	for _, e := range excluded {
		c.excluded[e] = struct{}{}
	}
	for k, v := range manual {
		if k != v {
			c.manual[k] = v
		}
	}
	return c
}

// CorrectionReport summarizes a correction run.
type CorrectionReport struct {
	// Map sends each corrected raw identifier to its final value.
	Map map[string]string
	// Outcomes holds one entry per distinct non-empty raw identifier.
	Outcomes map[string]Outcome
	// Distinct is the number of distinct raw identifiers corrected.
	Distinct int
	// Observations is the number of input values rewritten.
	Observations int
	// Ambiguous is the number of distinct identifiers left alone because
	// several identifiers produced the same repaired form.
	Ambiguous int
	// Passes counts the build-and-apply passes run until the fixpoint.
	Passes int
}

// Correct returns ids with every repairable identifier replaced. Passes are
// repeated until the derived map is empty, so Correct is idempotent.
func (c *Corrector) Correct(ids []string) ([]string, *CorrectionReport) {
	log := zap.L().With(zap.String("component", "cusip_corrector"))

	out := make([]string, len(ids))
	copy(out, ids)

	current := make(map[string]string)
	levels := make(map[string]CorrectionLevel)
	everAmbiguous := make(map[string]bool)
	for _, id := range ids {
		if id != "" {
			current[id] = id
		}
	}

	report := &CorrectionReport{
		Map:      make(map[string]string),
		Outcomes: make(map[string]Outcome, len(current)),
	}

	// Every non-empty pass merges at least one identifier into another or
	// retires a manual key, so the distinct count bounds the pass count.
	maxPasses := len(current) + 2
	for report.Passes < maxPasses {
		m, lv, ambiguous := c.BuildMap(distinct(out))
		for id := range ambiguous {
			everAmbiguous[id] = true
		}
		if len(m) == 0 {
			break
		}
		report.Passes++
		log.Debug("correction pass",
			zap.Int("pass", report.Passes),
			zap.Int("mappings", len(m)),
			zap.Int("ambiguous", len(ambiguous)),
		)

		for i, id := range out {
			if to, ok := m[id]; ok {
				out[i] = to
			}
		}
		for orig, cur := range current {
			if to, ok := m[cur]; ok {
				current[orig] = to
				levels[orig] = lv[cur]
			}
		}
	}

	for orig, cur := range current {
		switch {
		case cur != orig:
			report.Map[orig] = cur
			report.Outcomes[orig] = Outcome{Kind: Corrected, Target: cur, Level: levels[orig]}
			report.Distinct++
		case everAmbiguous[orig]:
			report.Outcomes[orig] = Outcome{Kind: SkippedAmbiguous}
			report.Ambiguous++
		default:
			report.Outcomes[orig] = Outcome{Kind: Unchanged}
		}
	}
	for i, id := range ids {
		if out[i] != id {
			report.Observations++
		}
	}

	log.Info("cusip correction complete",
		zap.Int("distinct_corrected", report.Distinct),
		zap.Int("observations_corrected", report.Observations),
		zap.Int("ambiguous_skipped", report.Ambiguous),
		zap.Int("passes", report.Passes),
	)

	return out, report
}

// BuildMap derives a single layered correction map from the observed
// identifiers. It returns the map, the level that produced each entry and the
// identifiers skipped because their repaired form was shared.
func (c *Corrector) BuildMap(observed []string) (map[string]string, map[string]CorrectionLevel, map[string]struct{}) {
	seen := make(map[string]struct{}, len(observed))
	for _, id := range observed {
		seen[id] = struct{}{}
	}

	layered := make(map[string]string)
	levels := make(map[string]CorrectionLevel)
	ambiguous := make(map[string]struct{})

	for n := 1; n <= 3; n++ {
		level := CorrectionLevel(n)
		sources := make(map[string][]string)
		for _, id := range observed {
			t, ok := Pad(id, n)
			if !ok || t == id {
				continue
			}
			if _, ok := seen[t]; !ok {
				continue
			}
			if n >= 2 {
				if _, skip := c.excluded[t]; skip {
					continue
				}
			}
			sources[t] = append(sources[t], id)
		}

		for t, srcs := range sources {
			if len(srcs) != 1 {
				for _, s := range srcs {
					ambiguous[s] = struct{}{}
				}
				continue
			}
			layered[srcs[0]] = t
			levels[srcs[0]] = level
		}
	}

	for k, v := range c.manual {
		if _, ok := seen[k]; !ok {
			continue
		}
		layered[k] = v
		levels[k] = LevelManual
	}

	for k := range layered {
		delete(ambiguous, k)
	}

	return resolveChains(layered), levels, ambiguous
}

// Pad returns the repaired form of id assuming n leading zeros were dropped.
// Only full-length identifiers can be repaired.
func Pad(id string, n int) (string, bool) {
	if len(id) != IdentifierLength || n < 1 || n >= IdentifierLength {
		return "", false
	}
	return strings.Repeat("0", n) + id[:IdentifierLength-n], true
}

// resolveChains rewrites a→b, b→c into a→c, b→c. Keys on a cycle are dropped.
func resolveChains(m map[string]string) map[string]string {
	out := make(map[string]string, len(m))
	for k := range m {
		visited := map[string]bool{k: true}
		cur := m[k]
		cyclic := false
		for {
			next, ok := m[cur]
			if !ok {
				break
			}
			if visited[cur] {
				cyclic = true
				break
			}
			visited[cur] = true
			cur = next
		}
		if cyclic || cur == k {
			continue
		}
		out[k] = cur
	}
	return out
}

// distinct returns the sorted distinct non-empty values of ids.
func distinct(ids []string) []string {
	set := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if id != "" {
			set[id] = struct{}{}
		}
	}
	out := make([]string, 0, len(set))
	for id := range set {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}
