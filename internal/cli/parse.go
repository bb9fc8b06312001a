package cli

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/forPelevin/cutlist/internal/types"
)

// parseSeconds accepts plain seconds ("12.5"), "mm:ss" or "hh:mm:ss".
func parseSeconds(raw string) (float64, error) {
	value := strings.TrimSpace(raw)
	if value == "" {
		return 0, fmt.Errorf("empty time value")
	}
	if !strings.Contains(value, ":") {
		v, err := strconv.ParseFloat(value, 64)
		if err != nil || v < 0 {
			return 0, fmt.Errorf("invalid time %q", raw)
		}
		return v, nil
	}

	parts := strings.Split(value, ":")
	if len(parts) > 3 {
		return 0, fmt.Errorf("invalid time %q", raw)
	}
	var total float64
	for i, part := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(part), 64)
		if err != nil || v < 0 {
			return 0, fmt.Errorf("invalid time %q", raw)
		}
		if i > 0 && v >= 60 {
			return 0, fmt.Errorf("invalid time %q: minutes and seconds must be < 60", raw)
		}
		total = total*60 + v
	}
	return total, nil
}

// parseCut parses "start-end". The pair may be inverted; normalization fixes it.
func parseCut(raw string) (types.Cut, error) {
	a, b, ok := strings.Cut(strings.TrimSpace(raw), "-")
	if !ok {
		return types.Cut{}, fmt.Errorf("cut %q: want start-end", raw)
	}
	start, err := parseSeconds(a)
	if err != nil {
		return types.Cut{}, fmt.Errorf("cut %q: %w", raw, err)
	}
	end, err := parseSeconds(b)
	if err != nil {
		return types.Cut{}, fmt.Errorf("cut %q: %w", raw, err)
	}
	return types.Cut{Start: start, End: end}, nil
}

// parseCuts collects --cut values, each of which may hold a comma separated list.
func parseCuts(values []string) ([]types.Cut, error) {
	var cuts []types.Cut
	for _, v := range values {
		for _, item := range strings.Split(v, ",") {
			if strings.TrimSpace(item) == "" {
				continue
			}
			c, err := parseCut(item)
			if err != nil {
				return nil, err
			}
			cuts = append(cuts, c)
		}
	}
	return cuts, nil
}

// parseClip parses "path#start-end" or "path#start-end@offset". Without an
// offset the clip is placed right after the previous one.
func parseClip(raw string, cursor float64) (types.TimelineClip, error) {
	i := strings.LastIndex(raw, "#")
	if i <= 0 {
		return types.TimelineClip{}, fmt.Errorf("clip %q: want path#start-end[@offset]", raw)
	}
	path, rest := raw[:i], raw[i+1:]

	rangePart, offsetPart, hasOffset := strings.Cut(rest, "@")
	cut, err := parseCut(rangePart)
	if err != nil {
		return types.TimelineClip{}, fmt.Errorf("clip %q: %w", raw, err)
	}
	clip := types.TimelineClip{SourcePath: path, Start: cut.Start, End: cut.End, Offset: cursor}
	if hasOffset {
		if clip.Offset, err = parseSeconds(offsetPart); err != nil {
			return types.TimelineClip{}, fmt.Errorf("clip %q: %w", raw, err)
		}
	}
	return clip, nil
}

func parseClips(values []string) ([]types.TimelineClip, error) {
	clips := make([]types.TimelineClip, 0, len(values))
	var cursor float64
	for _, v := range values {
		c, err := parseClip(v, cursor)
		if err != nil {
			return nil, err
		}
		clips = append(clips, c)
		cursor = c.Offset + c.Duration()
	}
	return clips, nil
}

func formatSeconds(sec float64) string {
	if sec < 0 {
		sec = 0
	}
	h := int(sec / 3600)
	m := int(sec/60) % 60
	s := sec - float64(h*3600+m*60)
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%06.3f", h, m, s)
	}
	return fmt.Sprintf("%02d:%06.3f", m, s)
}
