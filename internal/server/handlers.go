package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/forPelevin/cutlist/internal/pipeline"
	"github.com/forPelevin/cutlist/internal/types"
	"github.com/forPelevin/cutlist/internal/usecase"
)

const (
	maxBodyBytes     = 1 << 20
	videoContentType = "video/mp4"
)

var (
	errOutsideRoot = errors.New("path outside the served root")
	errEmptyPath   = errors.New("path is required")
)

type probeRequest struct {
	Path string `json:"path"`
}

type planRequest struct {
	Source string      `json:"source"`
	Cuts   []types.Cut `json:"cuts"`
}

type exportRequest struct {
	Source      string      `json:"source"`
	Destination string      `json:"destination"`
	Cuts        []types.Cut `json:"cuts"`
}

type previewRequest struct {
	Clips []types.TimelineClip `json:"clips"`
	Width int                  `json:"width"`
	// Mode is "segments" (default, one encoder per clip in order) or
	// "timeline" (one encoder, clips ordered by offset).
	Mode string `json:"mode"`
}

type errorResponse struct {
	Error string `json:"error"`
	// Plan is attached when a plan request would cut everything.
	Plan *usecase.PlanResult `json:"plan,omitempty"`
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// probe handles POST /v1/probe. Body: {"path": "/media/in.mp4"}.
func (s *Server) probe(w http.ResponseWriter, r *http.Request) {
	var req probeRequest
	if !s.decode(w, r, &req) {
		return
	}
	path, err := s.resolve(req.Path)
	if err != nil {
		s.fail(w, err)
		return
	}
	p, err := s.uc.Probe(r.Context(), path)
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// plan handles POST /v1/plan. Body: {"source": "...", "cuts": [{"start": 1, "end": 2}]}.
func (s *Server) plan(w http.ResponseWriter, r *http.Request) {
	var req planRequest
	if !s.decode(w, r, &req) {
		return
	}
	src, err := s.resolve(req.Source)
	if err != nil {
		s.fail(w, err)
		return
	}
	res, err := s.uc.Plan(r.Context(), src, req.Cuts)
	if errors.Is(err, types.ErrAllContentCut) {
		writeJSON(w, http.StatusUnprocessableEntity, errorResponse{Error: err.Error(), Plan: &res})
		return
	}
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// export handles POST /v1/export. Without a destination the output is named
// after the source.
func (s *Server) export(w http.ResponseWriter, r *http.Request) {
	var req exportRequest
	if !s.decode(w, r, &req) {
		return
	}
	src, err := s.resolve(req.Source)
	if err != nil {
		s.fail(w, err)
		return
	}
	dst := req.Destination
	if dst == "" {
		dst = pipeline.DefaultOutputPath(s.opts.OutDir, src, "cut", s.now())
	}
	if dst, err = s.resolve(dst); err != nil {
		s.fail(w, err)
		return
	}

	res, err := s.uc.Export(r.Context(), usecase.ExportInput{Source: src, Destination: dst, Cuts: req.Cuts})
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// preview handles POST /v1/preview and streams fragmented MP4 as it is
// encoded. A client disconnect detaches the stream and kills the encoder.
func (s *Server) preview(w http.ResponseWriter, r *http.Request) {
	var req previewRequest
	if !s.decode(w, r, &req) {
		return
	}
	for i := range req.Clips {
		p, err := s.resolve(req.Clips[i].SourcePath)
		if err != nil {
			s.fail(w, err)
			return
		}
		req.Clips[i].SourcePath = p
	}

	var (
		stream *usecase.Stream
		err    error
	)
	switch strings.ToLower(req.Mode) {
	case "", "segments":
		stream, err = s.uc.StreamSegments(r.Context(), req.Clips, req.Width)
	case "timeline":
		stream, err = s.uc.StreamTimeline(r.Context(), req.Clips, req.Width)
	default:
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: fmt.Sprintf("unknown mode %q", req.Mode)})
		return
	}
	if err != nil {
		s.fail(w, err)
		return
	}

	w.Header().Set("Content-Type", videoContentType)
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("X-Stream-Id", stream.ID)
	w.WriteHeader(http.StatusOK)

	n, err := stream.WriteTo(&flushWriter{w: w, rc: http.NewResponseController(w)})
	if err != nil {
		// Headers are gone; the truncated body is all the client gets.
		s.log.Warn("preview ended early",
			slog.String("stream_id", stream.ID),
			slog.String("state", stream.State().String()),
			slog.Int64("bytes", n),
			slog.Any("err", err),
		)
		return
	}
	s.log.Debug("preview finished",
		slog.String("stream_id", stream.ID),
		slog.String("state", stream.State().String()),
		slog.Int64("bytes", n),
	)
}

// flushWriter pushes every chunk to the client immediately.
type flushWriter struct {
	w  http.ResponseWriter
	rc *http.ResponseController
}

func (f *flushWriter) Write(p []byte) (int, error) {
	n, err := f.w.Write(p)
	if err != nil {
		return n, err
	}
	if err := f.rc.Flush(); err != nil && !errors.Is(err, http.ErrNotSupported) {
		return n, err
	}
	return n, nil
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		s.log.Debug("invalid request body", slog.String("path", r.URL.Path), slog.String("error", err.Error()))
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body: " + err.Error()})
		return false
	}
	return true
}

// resolve cleans p and, when a root is configured, joins relative paths to it
// and rejects anything that escapes it.
func (s *Server) resolve(p string) (string, error) {
	if strings.TrimSpace(p) == "" {
		return "", errEmptyPath
	}
	if s.opts.Root == "" {
		return filepath.Clean(p), nil
	}
	root := filepath.Clean(s.opts.Root)
	if !filepath.IsAbs(p) {
		p = filepath.Join(root, p)
	}
	p = filepath.Clean(p)
	rel, err := filepath.Rel(root, p)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %s", errOutsideRoot, p)
	}
	return p, nil
}

func (s *Server) fail(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		s.log.Error("request failed", slog.Int("status", status), slog.String("error", err.Error()))
	}
	writeJSON(w, status, errorResponse{Error: err.Error()})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, errOutsideRoot):
		return http.StatusForbidden
	case errors.Is(err, errEmptyPath), errors.Is(err, types.ErrNoSegments), errors.Is(err, types.ErrInvalidClip):
		return http.StatusBadRequest
	case errors.Is(err, types.ErrProbeFailed), errors.Is(err, types.ErrAllContentCut):
		return http.StatusUnprocessableEntity
	case errors.Is(err, types.ErrEncodeFailed):
		return http.StatusBadGateway
	case errors.Is(err, types.ErrToolNotFound):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
