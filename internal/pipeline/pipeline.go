package pipeline

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"
	"unicode"

	"github.com/forPelevin/cutlist/internal/config"
	"github.com/forPelevin/cutlist/internal/ports"
	"github.com/forPelevin/cutlist/internal/ports/adapters/execrun"
	"github.com/forPelevin/cutlist/internal/ports/adapters/ffmpeg"
	"github.com/forPelevin/cutlist/internal/types"
	"github.com/forPelevin/cutlist/internal/usecase"
)

type Config struct {
	FFmpegPath  string
	FFprobePath string

	Profiles     types.Profiles
	ChunkSize    int
	PreviewWidth int
	// StderrLines is how many stderr lines of a streaming encoder are kept.
	StderrLines int

	Logger  *slog.Logger
	Metrics usecase.Metrics
}

// FromFile maps a loaded configuration file onto the wiring config.
func FromFile(c *config.Config) Config {
	return Config{
		FFmpegPath:   c.Tools.FFmpeg,
		FFprobePath:  c.Tools.FFprobe,
		Profiles:     c.Profiles,
		ChunkSize:    c.Stream.ChunkSize,
		PreviewWidth: c.Stream.PreviewWidth,
		StderrLines:  c.Tools.StderrLines,
	}
}

func (c Config) Validate() error {
	if c.ChunkSize < 0 {
		return errors.New("chunk size must be >= 0")
	}
	if c.PreviewWidth < 0 {
		return errors.New("preview width must be >= 0")
	}
	if c.PreviewWidth%2 != 0 {
		return fmt.Errorf("preview width must be even, got %d", c.PreviewWidth)
	}
	for name, p := range map[string]types.EncodeProfile{
		"export": c.Profiles.Export,
		"proxy":  c.Profiles.Proxy,
		"stream": c.Profiles.Stream,
	} {
		if p == (types.EncodeProfile{}) {
			continue
		}
		if p.AudioCodec == "" {
			return fmt.Errorf("%s profile: audio codec is required", name)
		}
		if p.CRF < 0 || p.CRF > 51 {
			return fmt.Errorf("%s profile: crf must be within 0..51", name)
		}
	}
	return nil
}

// Build wires the real adapters into a Usecase.
func Build(cfg Config) (usecase.Usecase, error) {
	if err := cfg.Validate(); err != nil {
		return usecase.Usecase{}, fmt.Errorf("config: %w", err)
	}
	runner := execrun.New(cfg.StderrLines)
	media := ffmpeg.New(runner, cfg.FFmpegPath, cfg.FFprobePath)

	return usecase.New(usecase.Deps{
		Media:        media,
		Profiles:     cfg.Profiles,
		Logger:       cfg.Logger,
		Metrics:      cfg.Metrics,
		ChunkSize:    cfg.ChunkSize,
		PreviewWidth: cfg.PreviewWidth,
	}), nil
}

// DefaultOutputPath names the output of kind ("cut", "proxy", "timeline")
// next to input when outDir is empty. The name carries a UTC timestamp and a
// short hash so repeated runs never collide.
func DefaultOutputPath(outDir, input, kind string, now time.Time) string {
	ext := filepath.Ext(input)
	if ext == "" {
		ext = ".mp4"
	}
	name := normalizePathSegment(strings.TrimSuffix(filepath.Base(input), filepath.Ext(input)))
	if name == "" {
		name = "input"
	}
	if outDir == "" {
		outDir = filepath.Dir(input)
	}
	ts := now.UTC().Format("20060102-150405Z")
	suffix := hash(fmt.Sprintf("%s|%d", input, now.UTC().UnixNano()))[:6]
	return filepath.Join(outDir, fmt.Sprintf("%s-%s-%s-%s%s", name, kind, ts, suffix, ext))
}

func normalizePathSegment(s string) string {
	var b strings.Builder
	prevDash := false
	for _, r := range strings.ToLower(strings.TrimSpace(s)) {
		switch {
		case unicode.IsLetter(r), unicode.IsDigit(r):
			b.WriteRune(r)
			prevDash = false
		default:
			if !prevDash {
				b.WriteByte('-')
				prevDash = true
			}
		}
	}
	return strings.Trim(b.String(), "-")
}

func hash(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])[:12]
}

// ensure adapters implement ports
var _ ports.MediaTool = (*ffmpeg.Adapter)(nil)
var _ ports.Runner = (*execrun.Runner)(nil)
