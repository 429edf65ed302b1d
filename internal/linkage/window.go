package linkage

import "time"

// Window is the validity range of one key: the earliest start and the latest
// end observed for it.
type Window[K comparable] struct {
	Key   K
	First time.Time
	Last  time.Time
}

// Overlaps reports whether the window intersects [start, end].
func (w Window[K]) Overlaps(start, end time.Time) bool {
	return Overlap(w.First, w.Last, start, end)
}

// Overlap reports whether [aFirst, aLast] intersects [bStart, bEnd].
func Overlap(aFirst, aLast, bStart, bEnd time.Time) bool {
	return !aFirst.After(bEnd) && !aLast.Before(bStart)
}

// Windows groups rows by key and returns one window per key, ordered by the
// key's first appearance in rows.
func Windows[T any, K comparable](rows []T, key func(T) K, start, end func(T) time.Time) []Window[K] {
	idx := make(map[K]int)
	var out []Window[K]
	for _, r := range rows {
		k := key(r)
		s, e := start(r), end(r)
		i, ok := idx[k]
		if !ok {
			idx[k] = len(out)
			out = append(out, Window[K]{Key: k, First: s, Last: e})
			continue
		}
		if s.Before(out[i].First) {
			out[i].First = s
		}
		if e.After(out[i].Last) {
			out[i].Last = e
		}
	}
	return out
}

// WindowIndex maps each window's key to the window.
func WindowIndex[K comparable](ws []Window[K]) map[K]Window[K] {
	m := make(map[K]Window[K], len(ws))
	for _, w := range ws {
		m[w.Key] = w
	}
	return m
}

// KeepCurrent returns the rows whose end equals the latest end of their key,
// preserving input order. Several rows survive when they tie.
func KeepCurrent[T any, K comparable](rows []T, key func(T) K, end func(T) time.Time) []T {
	latest := make(map[K]time.Time)
	for _, r := range rows {
		k := key(r)
		if e, ok := latest[k]; !ok || end(r).After(e) {
			latest[k] = end(r)
		}
	}
	var out []T
	for _, r := range rows {
		if end(r).Equal(latest[key(r)]) {
			out = append(out, r)
		}
	}
	return out
}

// Windowed pairs a row with the window of its key.
type Windowed[T any, K comparable] struct {
	Row    T
	Window Window[K]
}

// CurrentWindowed computes the windows of rows by key and keeps each key's
// current rows, attaching the key's window to every surviving row.
func CurrentWindowed[T any, K comparable](rows []T, key func(T) K, start, end func(T) time.Time) []Windowed[T, K] {
	idx := WindowIndex(Windows(rows, key, start, end))
	current := KeepCurrent(rows, key, end)
	out := make([]Windowed[T, K], 0, len(current))
	for _, r := range current {
		out = append(out, Windowed[T, K]{Row: r, Window: idx[key(r)]})
	}
	return out
}
