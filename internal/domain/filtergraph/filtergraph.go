// Package filtergraph synthesizes trim+concat filter_complex programs.
//
// A program binds every segment to a video trim (timestamps reset) and an
// audio trim (timestamps reset, resampled), then concatenates all pairs in
// index order into exactly one video stream and one audio stream.
package filtergraph

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/forPelevin/cutlist/internal/types"
)

const (
	OutVideo = "outv"
	OutAudio = "outa"
)

type Options struct {
	// AudioOnly omits video trims; the concat then yields only [outa].
	AudioOnly bool
	// ScaleWidth, when positive, scales each timeline clip to this width
	// (height follows the aspect ratio, rounded to an even number).
	ScaleWidth int
}

// Program is a synthesized graph together with the input files it reads, in
// input-index order.
type Program struct {
	Text   string
	Inputs []string
}

// Build emits the program for kept segments of a single source (input 0).
// Segment order is preserved as given.
func Build(kept []types.Segment, opts Options) string {
	var b strings.Builder
	for i, s := range kept {
		writeTrims(&b, 0, i, s.Start, s.End, opts.AudioOnly, 0)
	}
	writeConcat(&b, len(kept), opts.AudioOnly)
	return b.String()
}

// BuildTimeline emits the program for clips drawn from several sources. Clips
// are ordered by timeline offset first; each distinct source path becomes one
// input, indexed by first appearance in that order.
func BuildTimeline(clips []types.TimelineClip, opts Options) (Program, error) {
	if err := ValidateClips(clips); err != nil {
		return Program{}, err
	}

	ordered := SortByOffset(clips)

	var (
		b      strings.Builder
		inputs []string
		index  = map[string]int{}
	)
	for i, c := range ordered {
		in, ok := index[c.SourcePath]
		if !ok {
			in = len(inputs)
			index[c.SourcePath] = in
			inputs = append(inputs, c.SourcePath)
		}
		writeTrims(&b, in, i, c.Start, c.End, opts.AudioOnly, opts.ScaleWidth)
	}
	writeConcat(&b, len(ordered), opts.AudioOnly)

	return Program{Text: b.String(), Inputs: inputs}, nil
}

// ValidateClips rejects an empty list, clips without a source and clips whose
// end is not after their start.
func ValidateClips(clips []types.TimelineClip) error {
	if len(clips) == 0 {
		return types.ErrNoSegments
	}
	for i, c := range clips {
		if c.SourcePath == "" {
			return fmt.Errorf("%w: clip %d has no source path", types.ErrInvalidClip, i)
		}
		if c.End <= c.Start {
			return fmt.Errorf("%w: clip %d end %s <= start %s", types.ErrInvalidClip, i, Seconds(c.End), Seconds(c.Start))
		}
	}
	return nil
}

// SortByOffset returns a copy of clips ordered by timeline offset. Clips with
// equal offsets keep their relative order.
func SortByOffset(clips []types.TimelineClip) []types.TimelineClip {
	out := make([]types.TimelineClip, len(clips))
	copy(out, clips)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Offset < out[j].Offset })
	return out
}

// ScaleFilter returns a -vf program capping width at maxWidth while keeping
// the aspect ratio.
func ScaleFilter(maxWidth int) string {
	return fmt.Sprintf("scale='min(%d,iw)':-2", maxWidth)
}

// Seconds formats a timestamp the way the filter parser accepts it, with the
// shortest exact representation.
func Seconds(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func writeTrims(b *strings.Builder, input, idx int, start, end float64, audioOnly bool, scaleWidth int) {
	s, e := Seconds(start), Seconds(end)
	if !audioOnly {
		fmt.Fprintf(b, "[%d:v]trim=start=%s:end=%s,", input, s, e)
		if scaleWidth > 0 {
			fmt.Fprintf(b, "scale=%d:-2,", scaleWidth)
		}
		fmt.Fprintf(b, "setpts=PTS-STARTPTS[v%d];", idx)
	}
	fmt.Fprintf(b, "[%d:a]atrim=start=%s:end=%s,asetpts=PTS-STARTPTS,aresample=async=1:first_pts=0[a%d];", input, s, e, idx)
}

// concat consumes its inputs segment by segment, so labels are interleaved.
func writeConcat(b *strings.Builder, n int, audioOnly bool) {
	for i := 0; i < n; i++ {
		if !audioOnly {
			fmt.Fprintf(b, "[v%d]", i)
		}
		fmt.Fprintf(b, "[a%d]", i)
	}
	if audioOnly {
		fmt.Fprintf(b, "concat=n=%d:v=0:a=1[%s]", n, OutAudio)
		return
	}
	fmt.Fprintf(b, "concat=n=%d:v=1:a=1[%s][%s]", n, OutVideo, OutAudio)
}
