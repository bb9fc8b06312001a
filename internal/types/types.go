package types

// Probe is a one-shot snapshot of a media file's metadata.
// Width and Height are both zero for audio-only media.
type Probe struct {
	Duration      float64 `json:"duration"`
	Width         uint32  `json:"width"`
	Height        uint32  `json:"height"`
	FPS           float64 `json:"fps"`
	AudioRate     uint32  `json:"audio_rate"`
	AudioChannels uint8   `json:"audio_channels"`
	VideoCodec    string  `json:"v_codec"`
	AudioCodec    string  `json:"a_codec"`
	Container     string  `json:"container"`
}

func (p Probe) AudioOnly() bool { return p.Width == 0 && p.Height == 0 }

// Cut is a caller-supplied range, in seconds, to remove from the output.
type Cut struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

// Segment is a range of the source, in seconds, retained in the output.
type Segment struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

func (s Segment) Duration() float64 { return s.End - s.Start }

// TimelineClip references a range of one source file placed on a timeline.
// Offset orders clips in a composition; streamed sequences play in slice order.
type TimelineClip struct {
	SourcePath string  `json:"source_path"`
	Start      float64 `json:"start_time"`
	End        float64 `json:"end_time"`
	Offset     float64 `json:"timeline_offset"`
}

func (c TimelineClip) Duration() float64 { return c.End - c.Start }

type EncodeInput struct {
	Path string
	// Seek and Length are applied before the input (-ss/-t); zero means unset.
	Seek   float64
	Length float64
}

// EncodeJob is everything an encoder invocation needs besides codec settings.
// Graph, when set, must produce [outv] (unless AudioOnly) and [outa].
type EncodeJob struct {
	Inputs      []EncodeInput
	Graph       string
	VideoFilter string
	AudioOnly   bool
	Profile     EncodeProfile
	// Output is a file path. Streaming jobs ignore it and write to stdout.
	Output string
}

// EncodeProfile holds the fixed codec and container parameters of one kind of output.
type EncodeProfile struct {
	VideoCodec   string `yaml:"video_codec" json:"video_codec"`
	Preset       string `yaml:"preset" json:"preset"`
	Tune         string `yaml:"tune,omitempty" json:"tune,omitempty"`
	CRF          int    `yaml:"crf" json:"crf"`
	GOP          int    `yaml:"gop,omitempty" json:"gop,omitempty"`
	PixFmt       string `yaml:"pix_fmt" json:"pix_fmt"`
	AudioCodec   string `yaml:"audio_codec" json:"audio_codec"`
	AudioBitrate string `yaml:"audio_bitrate" json:"audio_bitrate"`
	MovFlags     string `yaml:"movflags" json:"movflags"`
	// FragDuration is in microseconds, as the muxer expects it.
	FragDuration int    `yaml:"frag_duration_us,omitempty" json:"frag_duration_us,omitempty"`
	Format       string `yaml:"format,omitempty" json:"format,omitempty"`
}

type Profiles struct {
	Export EncodeProfile `yaml:"export"`
	Proxy  EncodeProfile `yaml:"proxy"`
	Stream EncodeProfile `yaml:"stream"`
}

func DefaultProfiles() Profiles {
	return Profiles{
		Export: EncodeProfile{
			VideoCodec:   "libx264",
			Preset:       "medium",
			CRF:          20,
			PixFmt:       "yuv420p",
			AudioCodec:   "aac",
			AudioBitrate: "192k",
			MovFlags:     "+faststart",
		},
		Proxy: EncodeProfile{
			VideoCodec:   "libx264",
			Preset:       "ultrafast",
			CRF:          28,
			PixFmt:       "yuv420p",
			AudioCodec:   "aac",
			AudioBitrate: "96k",
			MovFlags:     "+faststart",
		},
		Stream: EncodeProfile{
			VideoCodec:   "libx264",
			Preset:       "ultrafast",
			Tune:         "zerolatency",
			CRF:          26,
			GOP:          15,
			PixFmt:       "yuv420p",
			AudioCodec:   "aac",
			AudioBitrate: "128k",
			MovFlags:     "frag_keyframe+empty_moov+default_base_moof",
			FragDuration: 500000,
			Format:       "mp4",
		},
	}
}
