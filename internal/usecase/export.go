package usecase

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/lithammer/shortuuid/v4"

	"github.com/forPelevin/cutlist/internal/domain/cutlist"
	"github.com/forPelevin/cutlist/internal/domain/filtergraph"
	"github.com/forPelevin/cutlist/internal/logging"
	"github.com/forPelevin/cutlist/internal/types"
)

type ExportInput struct {
	Source      string
	Destination string
	Cuts        []types.Cut
}

type ExportResult struct {
	Destination string `json:"destination"`
	// Copied is set when the source was copied unchanged.
	Copied bool            `json:"copied"`
	Cuts   []types.Cut     `json:"cuts,omitempty"`
	Kept   []types.Segment `json:"kept,omitempty"`
	// Duration is the length of the written media, 0 when unknown.
	Duration float64 `json:"duration"`
}

// Export writes Source minus Cuts to Destination. The destination is replaced
// atomically; on failure any previous destination is left untouched.
func (u Usecase) Export(ctx context.Context, in ExportInput) (ExportResult, error) {
	log := logging.WithOperation(u.log, "export", shortuuid.New()).With(
		slog.String("source", in.Source),
		slog.String("destination", in.Destination),
	)
	log.Info("export started", slog.Int("cuts", len(in.Cuts)))

	start := time.Now()
	res, err := u.export(ctx, log, in)
	elapsed := time.Since(start)

	switch {
	case err != nil:
		u.d.Metrics.ExportFinished("error", elapsed)
		log.Error("export failed", slog.Any("err", err), slog.Int64("elapsed_ms", elapsed.Milliseconds()))
		return ExportResult{}, err
	case res.Copied:
		u.d.Metrics.ExportFinished("copied", elapsed)
	default:
		u.d.Metrics.ExportFinished("ok", elapsed)
	}
	log.Info("export finished",
		slog.Bool("copied", res.Copied),
		slog.Int("cuts", len(res.Cuts)),
		slog.Int("segments", len(res.Kept)),
		slog.Int64("elapsed_ms", elapsed.Milliseconds()),
	)
	return res, nil
}

func (u Usecase) export(ctx context.Context, log *slog.Logger, in ExportInput) (ExportResult, error) {
	if in.Source == "" || in.Destination == "" {
		return ExportResult{}, errors.New("export: source and destination are required")
	}
	if err := u.d.Media.CheckTools(ctx); err != nil {
		return ExportResult{}, err
	}

	res := ExportResult{Destination: in.Destination}
	if len(in.Cuts) == 0 {
		log.Debug("no cuts, copying source")
		res.Copied = true
		return res, CopyAtomic(in.Source, in.Destination)
	}

	probe, err := u.d.Media.Probe(ctx, in.Source)
	if err != nil {
		return ExportResult{}, err
	}
	res.Duration = probe.Duration

	cuts := cutlist.Normalize(in.Cuts, probe.Duration)
	if len(cuts) == 0 {
		log.Debug("cuts normalized away, copying source", slog.Int("requested", len(in.Cuts)))
		res.Copied = true
		return res, CopyAtomic(in.Source, in.Destination)
	}

	kept := cutlist.KeptSegments(cuts, probe.Duration)
	if len(kept) == 0 {
		return ExportResult{}, types.ErrAllContentCut
	}
	res.Cuts = cuts
	res.Kept = kept
	res.Duration = cutlist.KeptLength(kept)

	job := types.EncodeJob{
		Inputs:    []types.EncodeInput{{Path: in.Source}},
		Graph:     filtergraph.Build(kept, filtergraph.Options{AudioOnly: probe.AudioOnly()}),
		AudioOnly: probe.AudioOnly(),
		Profile:   u.d.Profiles.Export,
	}
	log.Debug("encoding",
		slog.Float64("source_duration", probe.Duration),
		slog.Float64("removed", cutlist.TotalLength(cuts)),
		slog.Bool("audio_only", job.AudioOnly),
	)
	if err := u.encodeAtomic(ctx, job, in.Destination); err != nil {
		return ExportResult{}, err
	}
	return res, nil
}

// Probe inspects source without touching it.
func (u Usecase) Probe(ctx context.Context, source string) (types.Probe, error) {
	return u.d.Media.Probe(ctx, source)
}

type PlanResult struct {
	Probe types.Probe     `json:"probe"`
	Cuts  []types.Cut     `json:"cuts"`
	Kept  []types.Segment `json:"kept"`
	// Removed and Remaining are in seconds.
	Removed   float64 `json:"removed"`
	Remaining float64 `json:"remaining"`
	// Copy reports that an export would copy the source unchanged.
	Copy  bool   `json:"copy"`
	Graph string `json:"graph,omitempty"`
}

// Plan reports what Export would do for cuts without encoding anything. When
// every second would be cut it returns the populated result together with
// types.ErrAllContentCut.
func (u Usecase) Plan(ctx context.Context, source string, cuts []types.Cut) (PlanResult, error) {
	probe, err := u.d.Media.Probe(ctx, source)
	if err != nil {
		return PlanResult{}, err
	}

	res := PlanResult{Probe: probe}
	res.Cuts = cutlist.Normalize(cuts, probe.Duration)
	res.Kept = cutlist.KeptSegments(res.Cuts, probe.Duration)
	res.Removed = cutlist.TotalLength(res.Cuts)
	res.Remaining = cutlist.KeptLength(res.Kept)

	if len(res.Cuts) == 0 {
		res.Copy = true
		return res, nil
	}
	if len(res.Kept) == 0 {
		return res, types.ErrAllContentCut
	}
	res.Graph = filtergraph.Build(res.Kept, filtergraph.Options{AudioOnly: probe.AudioOnly()})
	return res, nil
}

type ComposeInput struct {
	Clips       []types.TimelineClip
	Destination string
	// Width caps the output width; 0 keeps the sources' size.
	Width int
}

// Compose renders clips from several sources, ordered by timeline offset,
// into one file.
func (u Usecase) Compose(ctx context.Context, in ComposeInput) (ExportResult, error) {
	log := logging.WithOperation(u.log, "compose", shortuuid.New()).With(
		slog.String("destination", in.Destination),
	)
	start := time.Now()

	prog, err := filtergraph.BuildTimeline(in.Clips, filtergraph.Options{ScaleWidth: in.Width})
	if err != nil {
		return ExportResult{}, err
	}
	if in.Destination == "" {
		return ExportResult{}, errors.New("compose: destination is required")
	}
	if err := u.d.Media.CheckTools(ctx); err != nil {
		return ExportResult{}, err
	}

	job := types.EncodeJob{Graph: prog.Text, Profile: u.d.Profiles.Export}
	for _, p := range prog.Inputs {
		job.Inputs = append(job.Inputs, types.EncodeInput{Path: p})
	}

	log.Info("compose started", slog.Int("clips", len(in.Clips)), slog.Int("inputs", len(prog.Inputs)))
	if err := u.encodeAtomic(ctx, job, in.Destination); err != nil {
		u.d.Metrics.ExportFinished("error", time.Since(start))
		log.Error("compose failed", slog.Any("err", err))
		return ExportResult{}, err
	}
	u.d.Metrics.ExportFinished("ok", time.Since(start))

	var total float64
	for _, c := range in.Clips {
		total += c.Duration()
	}
	log.Info("compose finished", slog.Int64("elapsed_ms", time.Since(start).Milliseconds()))
	return ExportResult{Destination: in.Destination, Duration: total}, nil
}

// Proxy renders a small, fast-seeking copy of source for preview playback.
// maxWidth 0 uses the configured preview width.
func (u Usecase) Proxy(ctx context.Context, source, destination string, maxWidth int) (ExportResult, error) {
	log := logging.WithOperation(u.log, "proxy", shortuuid.New()).With(
		slog.String("source", source),
		slog.String("destination", destination),
	)
	if maxWidth <= 0 {
		maxWidth = u.d.PreviewWidth
	}
	if err := u.d.Media.CheckTools(ctx); err != nil {
		return ExportResult{}, err
	}
	probe, err := u.d.Media.Probe(ctx, source)
	if err != nil {
		return ExportResult{}, err
	}

	job := types.EncodeJob{
		Inputs:    []types.EncodeInput{{Path: source}},
		AudioOnly: probe.AudioOnly(),
		Profile:   u.d.Profiles.Proxy,
	}
	if !job.AudioOnly {
		job.VideoFilter = filtergraph.ScaleFilter(maxWidth)
	}
	if err := u.encodeAtomic(ctx, job, destination); err != nil {
		log.Error("proxy failed", slog.Any("err", err))
		return ExportResult{}, err
	}
	log.Info("proxy written", slog.Int("max_width", maxWidth))
	return ExportResult{Destination: destination, Duration: probe.Duration}, nil
}

// encodeAtomic encodes into the temporary sibling of dest and renames it over
// dest on success. The temporary file never outlives a failure.
func (u Usecase) encodeAtomic(ctx context.Context, job types.EncodeJob, dest string) error {
	tmp := TempPath(dest)
	job.Output = tmp
	if err := u.d.Media.Encode(ctx, job); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	if err := os.Rename(tmp, dest); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("%w: rename %s: %v", types.ErrIO, tmp, err)
	}
	return nil
}

// TempPath returns "<stem>.tmp.<ext>" next to dest. The extension is kept last
// so the encoder still infers the container from it.
func TempPath(dest string) string {
	dir, base := filepath.Split(dest)
	ext := filepath.Ext(base)
	stem := strings.TrimSuffix(base, ext)
	if ext == "" {
		ext = ".mp4"
	}
	if stem == "" {
		stem = "out"
	}
	return filepath.Join(dir, stem+".tmp"+ext)
}

// CopyAtomic copies src to dest byte for byte through the temporary sibling.
func CopyAtomic(src, dest string) (err error) {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("%w: open source: %v", types.ErrIO, err)
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return fmt.Errorf("%w: stat source: %v", types.ErrIO, err)
	}

	tmp := TempPath(dest)
	out, err := os.OpenFile(tmp, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, info.Mode().Perm())
	if err != nil {
		return fmt.Errorf("%w: create %s: %v", types.ErrIO, tmp, err)
	}
	defer func() {
		if err != nil {
			_ = os.Remove(tmp)
		}
	}()

	if _, err = io.Copy(out, in); err != nil {
		_ = out.Close()
		return fmt.Errorf("%w: copy: %v", types.ErrIO, err)
	}
	if err = out.Sync(); err != nil {
		_ = out.Close()
		return fmt.Errorf("%w: sync %s: %v", types.ErrIO, tmp, err)
	}
	if err = out.Close(); err != nil {
		return fmt.Errorf("%w: close %s: %v", types.ErrIO, tmp, err)
	}
	if err = os.Rename(tmp, dest); err != nil {
		return fmt.Errorf("%w: rename %s: %v", types.ErrIO, tmp, err)
	}
	return nil
}
