package linkage

import (
	"math"
	"sort"
	"strings"
	"unicode"

	lev "github.com/texttheater/golang-levenshtein/levenshtein"
)

// Ratio returns the plain Levenshtein ratio of a and b scaled to [0, 100].
// Substitutions cost two, so the ratio is (len(a)+len(b)-dist)/(len(a)+len(b)).
func Ratio(a, b string) int {
	if a == b {
		return 100
	}
	r := lev.RatioForStrings([]rune(a), []rune(b), lev.DefaultOptions)
	return int(math.RoundToEven(100 * r))
}

// TokenSetRatio scores two names by comparing their token sets. The sorted
// intersection is compared against the intersection extended with each side's
// remaining tokens, and the best of the three pairwise ratios wins.
// No case folding is done here; callers upper-case names first.
func TokenSetRatio(a, b string) int {
	if a == b {
		return 100
	}

	ta, tb := tokenSet(a), tokenSet(b)
	if len(ta) == 0 || len(tb) == 0 {
		return 0
	}

	var sect, diffAB, diffBA []string
	for tok := range ta {
		if _, ok := tb[tok]; ok {
			sect = append(sect, tok)
		} else {
			diffAB = append(diffAB, tok)
		}
	}
	for tok := range tb {
		if _, ok := ta[tok]; !ok {
			diffBA = append(diffBA, tok)
		}
	}
	sort.Strings(sect)
	sort.Strings(diffAB)
	sort.Strings(diffBA)

	sorted := strings.Join(sect, " ")
	combinedAB := strings.TrimSpace(sorted + " " + strings.Join(diffAB, " "))
	combinedBA := strings.TrimSpace(sorted + " " + strings.Join(diffBA, " "))

	best := Ratio(combinedAB, combinedBA)
	if sorted != "" {
		best = max(best, Ratio(sorted, combinedAB), Ratio(sorted, combinedBA))
	}
	return best
}

// Tokens splits s on every rune that is neither a letter nor a digit.
func Tokens(s string) []string {
	return strings.FieldsFunc(s, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

func tokenSet(s string) map[string]struct{} {
	toks := Tokens(s)
	set := make(map[string]struct{}, len(toks))
	for _, t := range toks {
		set[t] = struct{}{}
	}
	return set
}
