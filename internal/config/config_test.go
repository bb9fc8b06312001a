package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/forPelevin/cutlist/internal/types"
)

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	def := Default()
	if cfg.Tools != def.Tools || cfg.Server != def.Server || cfg.Stream != def.Stream || cfg.Log != def.Log {
		t.Fatalf("cfg = %+v, want defaults", cfg)
	}
	if cfg.Profiles != types.DefaultProfiles() {
		t.Fatalf("profiles = %+v", cfg.Profiles)
	}
}

func TestLoad_PartialFileKeepsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cutlist.yaml")
	data := `
tools:
  ffmpeg: /opt/ffmpeg/bin/ffmpeg
profiles:
  export:
    video_codec: libx265
    preset: slow
    crf: 24
    pix_fmt: yuv420p
    audio_codec: aac
    audio_bitrate: 160k
    movflags: +faststart
stream:
  preview_width: 640
server:
  shutdown_timeout: 3s
`
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Tools.FFmpeg != "/opt/ffmpeg/bin/ffmpeg" || cfg.Tools.FFprobe != "ffprobe" {
		t.Fatalf("tools = %+v", cfg.Tools)
	}
	if cfg.Profiles.Export.VideoCodec != "libx265" || cfg.Profiles.Export.CRF != 24 {
		t.Fatalf("export profile = %+v", cfg.Profiles.Export)
	}
	if cfg.Profiles.Stream != types.DefaultProfiles().Stream {
		t.Fatalf("stream profile should keep defaults, got %+v", cfg.Profiles.Stream)
	}
	if cfg.Stream.PreviewWidth != 640 || cfg.Stream.ChunkSize != 64*1024 {
		t.Fatalf("stream = %+v", cfg.Stream)
	}
	if cfg.Server.ShutdownTimeout != 3*time.Second || cfg.Server.Bind != ":8080" {
		t.Fatalf("server = %+v", cfg.Server)
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(path, []byte("tools: [unterminated"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Fatalf("expected parse error")
	}
}

func TestApplyEnv(t *testing.T) {
	t.Setenv(EnvFFmpeg, "/usr/local/bin/ffmpeg")
	t.Setenv(EnvLogLevel, "debug")
	t.Setenv(EnvBind, "127.0.0.1:9000")
	t.Setenv(EnvPreviewWidth, "not-a-number")

	cfg := Default()
	cfg.ApplyEnv()
	if cfg.Tools.FFmpeg != "/usr/local/bin/ffmpeg" || cfg.Tools.FFprobe != "ffprobe" {
		t.Fatalf("tools = %+v", cfg.Tools)
	}
	if cfg.Log.Level != "debug" || cfg.Log.Format != "json" {
		t.Fatalf("log = %+v", cfg.Log)
	}
	if cfg.Server.Bind != "127.0.0.1:9000" {
		t.Fatalf("bind = %q", cfg.Server.Bind)
	}
	if cfg.Stream.PreviewWidth != 960 {
		t.Fatalf("invalid int override must be ignored, got %d", cfg.Stream.PreviewWidth)
	}
}

func TestLoadEnv_UsesConfigVariable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "custom.yaml")
	if err := os.WriteFile(path, []byte("log:\n  format: text\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	t.Setenv(EnvConfig, path)

	cfg, err := LoadEnv("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Log.Format != "text" || cfg.Log.Level != "info" {
		t.Fatalf("log = %+v", cfg.Log)
	}
}
