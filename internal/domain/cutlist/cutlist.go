package cutlist

import (
	"sort"

	"github.com/forPelevin/cutlist/internal/types"
)

const (
	// DegenerateEpsilon is the minimum length, in seconds, a cut must exceed to survive.
	DegenerateEpsilon = 0.001
	// MergeTolerance merges cuts separated by a gap this small (seconds). Tiny gaps
	// would otherwise become near-zero kept segments the encoder trips over.
	MergeTolerance = 0.005
)

// Normalize canonicalizes cuts against duration: inverted pairs are swapped,
// endpoints clamped into [0, duration], degenerate pairs dropped, and the rest
// sorted and merged. The input slice is not modified.
func Normalize(cuts []types.Cut, duration float64) []types.Cut {
	if duration <= 0 {
		return nil
	}

	out := make([]types.Cut, 0, len(cuts))
	for _, c := range cuts {
		if c.End < c.Start {
			c.Start, c.End = c.End, c.Start
		}
		c.Start = clamp(c.Start, 0, duration)
		c.End = clamp(c.End, 0, duration)
		if c.End <= c.Start+DegenerateEpsilon {
			continue
		}
		out = append(out, c)
	}
	if len(out) == 0 {
		return nil
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].Start < out[j].Start })

	merged := out[:1]
	for _, c := range out[1:] {
		last := &merged[len(merged)-1]
		if c.Start <= last.End+MergeTolerance {
			if c.End > last.End {
				last.End = c.End
			}
			continue
		}
		merged = append(merged, c)
	}
	return merged
}

// KeptSegments returns the complement of normalized cuts over [0, duration].
// An empty result for a positive duration means everything was cut.
func KeptSegments(cuts []types.Cut, duration float64) []types.Segment {
	if duration <= 0 {
		return nil
	}
	if len(cuts) == 0 {
		return []types.Segment{{Start: 0, End: duration}}
	}

	kept := make([]types.Segment, 0, len(cuts)+1)
	cursor := 0.0
	for _, c := range cuts {
		if c.Start > cursor {
			kept = append(kept, types.Segment{Start: cursor, End: c.Start})
		}
		cursor = c.End
	}
	if cursor < duration {
		kept = append(kept, types.Segment{Start: cursor, End: duration})
	}
	return kept
}

// TotalLength sums the lengths of cuts.
func TotalLength(cuts []types.Cut) float64 {
	var total float64
	for _, c := range cuts {
		total += c.End - c.Start
	}
	return total
}

// KeptLength sums the lengths of segments.
func KeptLength(segs []types.Segment) float64 {
	var total float64
	for _, s := range segs {
		total += s.Duration()
	}
	return total
}

func clamp(x, a, b float64) float64 {
	if x < a {
		return a
	}
	if x > b {
		return b
	}
	return x
}
