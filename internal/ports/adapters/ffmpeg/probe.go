package ffmpeg

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/forPelevin/cutlist/internal/types"
)

const (
	defaultFPS           = 30.0
	defaultAudioRate     = 48000
	defaultAudioChannels = 2
)

type probeOutput struct {
	Format struct {
		Duration   string `json:"duration"`
		FormatName string `json:"format_name"`
	} `json:"format"`
	Streams []probeStream `json:"streams"`
}

type probeStream struct {
	CodecType   string `json:"codec_type"`
	CodecName   string `json:"codec_name"`
	Width       int    `json:"width"`
	Height      int    `json:"height"`
	RFrameRate  string `json:"r_frame_rate"`
	SampleRate  string `json:"sample_rate"`
	Channels    int    `json:"channels"`
	Disposition struct {
		AttachedPic int `json:"attached_pic"`
	} `json:"disposition"`
}

func (a *Adapter) Probe(ctx context.Context, path string) (types.Probe, error) {
	out, err := a.run.Run(ctx, a.ffprobe, []string{
		"-v", "error",
		"-print_format", "json",
		"-show_streams",
		"-show_format",
		path,
	})
	if err != nil {
		return types.Probe{}, fmt.Errorf("ffprobe: %w", err)
	}
	if out.ExitCode != 0 {
		return types.Probe{}, fmt.Errorf("%w: ffprobe exit status %d\n%s", types.ErrProbeFailed, out.ExitCode, string(out.Stderr))
	}
	return ParseProbe(out.Stdout)
}

// ParseProbe turns ffprobe JSON (-show_streams -show_format) into a Probe.
// A duration and at least one audio stream are required; video is optional.
func ParseProbe(b []byte) (types.Probe, error) {
	var res probeOutput
	if err := json.Unmarshal(b, &res); err != nil {
		return types.Probe{}, fmt.Errorf("%w: invalid ffprobe JSON: %v", types.ErrProbeFailed, err)
	}

	dur, err := strconv.ParseFloat(strings.TrimSpace(res.Format.Duration), 64)
	if err != nil || dur < 0 {
		return types.Probe{}, fmt.Errorf("%w: unusable duration %q", types.ErrProbeFailed, res.Format.Duration)
	}

	var video, audio *probeStream
	for i := range res.Streams {
		s := &res.Streams[i]
		switch s.CodecType {
		case "video":
			// cover art is not a video stream
			if video == nil && s.Disposition.AttachedPic == 0 {
				video = s
			}
		case "audio":
			if audio == nil {
				audio = s
			}
		}
	}
	if audio == nil {
		return types.Probe{}, fmt.Errorf("%w: no audio stream", types.ErrProbeFailed)
	}

	p := types.Probe{
		Duration:      dur,
		Container:     res.Format.FormatName,
		AudioRate:     defaultAudioRate,
		AudioChannels: defaultAudioChannels,
		AudioCodec:    orDefault(audio.CodecName, "aac"),
		VideoCodec:    "none",
	}
	if sr, err := strconv.ParseUint(strings.TrimSpace(audio.SampleRate), 10, 32); err == nil && sr > 0 {
		p.AudioRate = uint32(sr)
	}
	if audio.Channels > 0 && audio.Channels <= 255 {
		p.AudioChannels = uint8(audio.Channels)
	}

	if video != nil && video.Width > 0 && video.Height > 0 {
		p.Width = uint32(video.Width)
		p.Height = uint32(video.Height)
		p.FPS = parseFrameRate(video.RFrameRate)
		p.VideoCodec = orDefault(video.CodecName, "h264")
	}
	return p, nil
}

// parseFrameRate parses "num/den", falling back to 30 when malformed.
func parseFrameRate(rate string) float64 {
	parts := strings.SplitN(strings.TrimSpace(rate), "/", 2)
	if len(parts) != 2 {
		return defaultFPS
	}
	num, err1 := strconv.ParseFloat(parts[0], 64)
	den, err2 := strconv.ParseFloat(parts[1], 64)
	if err1 != nil || err2 != nil || den <= 0 || num <= 0 {
		return defaultFPS
	}
	return num / den
}

func orDefault(s, def string) string {
	if strings.TrimSpace(s) == "" {
		return def
	}
	return s
}
