package linkage

import "github.com/rotisserie/eris"

var (
	// ErrDegenerateThreshold is returned when the primary candidate pool is
	// empty and no similarity threshold can be derived from it.
	ErrDegenerateThreshold = eris.New("linkage: empty candidate pool, similarity threshold undefined")

	// ErrInvalidPercentile is returned for a percentile outside [0, 1].
	ErrInvalidPercentile = eris.New("linkage: percentile must be within [0, 1]")
)
