package supervisor

import "sort"

// Delta is the net membership change between two consecutive snapshots.
// Added and Removed are disjoint.
type Delta[S comparable] struct {
	// Added maps each new key to its state in the current snapshot.
	Added map[string]S
	// Removed lists keys present before and absent now, sorted.
	Removed []string
}

// Empty reports whether the delta carries no membership change.
func (d Delta[S]) Empty() bool { return len(d.Added) == 0 && len(d.Removed) == 0 }

// AddedKeys returns the added keys sorted.
func (d Delta[S]) AddedKeys() []string {
	keys := make([]string, 0, len(d.Added))
	for k := range d.Added {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Diff compares two snapshots. A key removed and re-added between prev and
// curr is invisible: only the net change is reported.
func Diff[S comparable](prev, curr Snapshot[S]) Delta[S] {
	d := Delta[S]{Added: make(map[string]S)}
	for k, v := range curr {
		if _, ok := prev[k]; !ok {
			d.Added[k] = v
		}
	}
	for k := range prev {
		if _, ok := curr[k]; !ok {
			d.Removed = append(d.Removed, k)
		}
	}
	sort.Strings(d.Removed)
	return d
}

// Differ diffs a stream of snapshots pairwise. The first snapshot is compared
// against the empty snapshot.
type Differ[S comparable] struct {
	prev Snapshot[S]
}

// Next returns the delta between the previous snapshot and curr, and makes
// curr the new baseline.
func (d *Differ[S]) Next(curr Snapshot[S]) Delta[S] {
	delta := Diff(d.prev, curr)
	d.prev = curr
	return delta
}

// Prev returns the current baseline snapshot (nil before the first call).
func (d *Differ[S]) Prev() Snapshot[S] { return d.prev }
