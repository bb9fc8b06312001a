package ffmpeg

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/forPelevin/cutlist/internal/domain/filtergraph"
	"github.com/forPelevin/cutlist/internal/ports"
	"github.com/forPelevin/cutlist/internal/types"
)

type Adapter struct {
	run     ports.Runner
	ffmpeg  string
	ffprobe string
}

func New(r ports.Runner, ffmpegPath, ffprobePath string) *Adapter {
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	if ffprobePath == "" {
		ffprobePath = "ffprobe"
	}
	return &Adapter{run: r, ffmpeg: ffmpegPath, ffprobe: ffprobePath}
}

// CheckTools fails with types.ErrToolNotFound when either binary is missing.
func (a *Adapter) CheckTools(_ context.Context) error {
	for _, bin := range []string{a.ffmpeg, a.ffprobe} {
		if _, err := a.run.LookPath(bin); err != nil {
			return err
		}
	}
	return nil
}

func (a *Adapter) Encode(ctx context.Context, job types.EncodeJob) error {
	if job.Output == "" {
		return fmt.Errorf("ffmpeg encode: output path is empty")
	}
	out, err := a.run.Run(ctx, a.ffmpeg, EncodeArgs(job, job.Output))
	if err != nil {
		return fmt.Errorf("ffmpeg encode: %w", err)
	}
	if out.ExitCode != 0 {
		return &types.EncodeError{ExitCode: out.ExitCode, Diagnostics: string(out.Stderr)}
	}
	return nil
}

func (a *Adapter) StartStream(ctx context.Context, job types.EncodeJob) (ports.Process, error) {
	p, err := a.run.Start(ctx, a.ffmpeg, EncodeArgs(job, "pipe:1"))
	if err != nil {
		return nil, fmt.Errorf("ffmpeg stream: %w", err)
	}
	return p, nil
}

// EncodeArgs renders the full ffmpeg argument list for job writing to output.
func EncodeArgs(job types.EncodeJob, output string) []string {
	args := []string{"-v", "error"}
	for _, in := range job.Inputs {
		if in.Seek > 0 {
			args = append(args, "-ss", fmtSeconds(in.Seek))
		}
		if in.Length > 0 {
			args = append(args, "-t", fmtSeconds(in.Length))
		}
		args = append(args, "-i", in.Path)
	}

	switch {
	case job.Graph != "":
		args = append(args, "-filter_complex", job.Graph)
		if !job.AudioOnly {
			args = append(args, "-map", "["+filtergraph.OutVideo+"]")
		}
		args = append(args, "-map", "["+filtergraph.OutAudio+"]")
	case job.VideoFilter != "" && !job.AudioOnly:
		args = append(args, "-vf", job.VideoFilter)
	}

	p := job.Profile
	if job.AudioOnly {
		args = append(args, "-vn")
	} else {
		args = appendOpt(args, "-c:v", p.VideoCodec)
		args = appendOpt(args, "-preset", p.Preset)
		args = appendOpt(args, "-tune", p.Tune)
		if p.CRF > 0 {
			args = append(args, "-crf", strconv.Itoa(p.CRF))
		}
		if p.GOP > 0 {
			args = append(args, "-g", strconv.Itoa(p.GOP))
		}
		args = appendOpt(args, "-pix_fmt", p.PixFmt)
	}
	args = appendOpt(args, "-c:a", p.AudioCodec)
	args = appendOpt(args, "-b:a", p.AudioBitrate)
	args = appendOpt(args, "-movflags", p.MovFlags)
	if p.FragDuration > 0 {
		args = append(args, "-frag_duration", strconv.Itoa(p.FragDuration))
	}
	args = appendOpt(args, "-f", p.Format)

	return append(args, "-y", output)
}

func appendOpt(args []string, flag, value string) []string {
	if strings.TrimSpace(value) == "" {
		return args
	}
	return append(args, flag, value)
}

func fmtSeconds(sec float64) string {
	return filtergraph.Seconds(sec)
}
