package usecase

import (
	"log/slog"
	"time"

	"github.com/forPelevin/cutlist/internal/logging"
	"github.com/forPelevin/cutlist/internal/ports"
	"github.com/forPelevin/cutlist/internal/types"
)

const (
	DefaultChunkSize    = 64 * 1024
	DefaultPreviewWidth = 960
)

// Metrics receives operation outcomes. *metrics.Metrics satisfies it.
type Metrics interface {
	ExportFinished(result string, elapsed time.Duration)
	StreamStarted()
	StreamFinished(state string)
	StreamBytes(n int)
}

type Deps struct {
	Media    ports.MediaTool
	Profiles types.Profiles
	Logger   *slog.Logger
	Metrics  Metrics

	// ChunkSize is the size of each read from a streaming encoder.
	ChunkSize int
	// PreviewWidth caps proxy and stream width when the caller passes 0.
	PreviewWidth int
}

type Usecase struct {
	d   Deps
	log *slog.Logger
}

func New(d Deps) Usecase {
	def := types.DefaultProfiles()
	if d.Profiles.Export == (types.EncodeProfile{}) {
		d.Profiles.Export = def.Export
	}
	if d.Profiles.Proxy == (types.EncodeProfile{}) {
		d.Profiles.Proxy = def.Proxy
	}
	if d.Profiles.Stream == (types.EncodeProfile{}) {
		d.Profiles.Stream = def.Stream
	}
	if d.Metrics == nil {
		d.Metrics = nopMetrics{}
	}
	if d.ChunkSize <= 0 {
		d.ChunkSize = DefaultChunkSize
	}
	if d.PreviewWidth <= 0 {
		d.PreviewWidth = DefaultPreviewWidth
	}
	return Usecase{d: d, log: logging.OrDiscard(d.Logger)}
}

type nopMetrics struct{}

func (nopMetrics) ExportFinished(string, time.Duration) {}
func (nopMetrics) StreamStarted()                       {}
func (nopMetrics) StreamFinished(string)                {}
func (nopMetrics) StreamBytes(int)                      {}
