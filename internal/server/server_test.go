package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/forPelevin/cutlist/internal/metrics"
	"github.com/forPelevin/cutlist/internal/ports"
	"github.com/forPelevin/cutlist/internal/types"
	"github.com/forPelevin/cutlist/internal/usecase"
)

type fakeMedia struct {
	probe    types.Probe
	probeErr error
	encodeFn func(job types.EncodeJob) error
	stdout   string
}

func (f *fakeMedia) CheckTools(context.Context) error { return nil }

func (f *fakeMedia) Probe(context.Context, string) (types.Probe, error) {
	return f.probe, f.probeErr
}

func (f *fakeMedia) Encode(_ context.Context, job types.EncodeJob) error {
	if f.encodeFn != nil {
		return f.encodeFn(job)
	}
	return os.WriteFile(job.Output, []byte("encoded"), 0o644)
}

func (f *fakeMedia) StartStream(context.Context, types.EncodeJob) (ports.Process, error) {
	return &doneProcess{r: strings.NewReader(f.stdout)}, nil
}

// doneProcess is an encoder that already wrote all of its output.
type doneProcess struct{ r io.Reader }

func (p *doneProcess) Stdout() io.Reader        { return p.r }
func (p *doneProcess) Wait() (int, error)       { return 0, nil }
func (p *doneProcess) Kill() error              { return nil }
func (p *doneProcess) Pid() int                 { return 42 }
func (p *doneProcess) Running() bool            { return false }
func (p *doneProcess) Usage() (float64, uint64) { return 0, 0 }
func (p *doneProcess) Diagnostics() string      { return "" }

func newTestServer(t *testing.T, media *fakeMedia, opts Options) (*Server, http.Handler) {
	t.Helper()
	log := slog.New(slog.NewJSONHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
	uc := usecase.New(usecase.Deps{Media: media, Logger: log})
	s := New(uc, log, metrics.New(), opts)
	s.now = func() time.Time { return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC) }
	return s, s.Routes()
}

func do(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		r = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, r)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHealthz(t *testing.T) {
	_, h := newTestServer(t, &fakeMedia{}, Options{})
	rec := do(t, h, http.MethodGet, "/healthz", nil)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"ok"`) {
		t.Fatalf("got %d %s", rec.Code, rec.Body.String())
	}
}

func TestProbe(t *testing.T) {
	media := &fakeMedia{probe: types.Probe{Duration: 12, Width: 640, Height: 360, VideoCodec: "h264", AudioCodec: "aac"}}
	_, h := newTestServer(t, media, Options{})

	rec := do(t, h, http.MethodPost, "/v1/probe", probeRequest{Path: "/media/in.mp4"})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var p types.Probe
	if err := json.NewDecoder(rec.Body).Decode(&p); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if p.Duration != 12 || p.Width != 640 {
		t.Fatalf("probe = %+v", p)
	}

	media.probeErr = types.ErrProbeFailed
	if rec := do(t, h, http.MethodPost, "/v1/probe", probeRequest{Path: "/media/in.mp4"}); rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", rec.Code)
	}
	if rec := do(t, h, http.MethodPost, "/v1/probe", probeRequest{}); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for empty path, got %d", rec.Code)
	}
}

func TestBadBody(t *testing.T) {
	_, h := newTestServer(t, &fakeMedia{}, Options{})
	req := httptest.NewRequest(http.MethodPost, "/v1/export", strings.NewReader("not json"))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestRootConfinement(t *testing.T) {
	root := t.TempDir()
	_, h := newTestServer(t, &fakeMedia{probe: types.Probe{Duration: 1}}, Options{Root: root})

	if rec := do(t, h, http.MethodPost, "/v1/probe", probeRequest{Path: "../etc/passwd"}); rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rec.Code)
	}
	if rec := do(t, h, http.MethodPost, "/v1/probe", probeRequest{Path: "/etc/passwd"}); rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rec.Code)
	}
	if rec := do(t, h, http.MethodPost, "/v1/probe", probeRequest{Path: "clips/in.mp4"}); rec.Code != http.StatusOK {
		t.Fatalf("expected 200 for a path inside root, got %d", rec.Code)
	}
}

func TestPlan_AllContentCut(t *testing.T) {
	_, h := newTestServer(t, &fakeMedia{probe: types.Probe{Duration: 10}}, Options{})
	rec := do(t, h, http.MethodPost, "/v1/plan", planRequest{Source: "/in.mp4", Cuts: []types.Cut{{Start: 0, End: 10}}})
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", rec.Code)
	}
	var resp errorResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Plan == nil || resp.Plan.Removed != 10 || !strings.Contains(resp.Error, "all content") {
		t.Fatalf("unexpected response: %+v", resp)
	}
}

func TestExport(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "talk.mp4")
	if err := os.WriteFile(src, []byte("source"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	outDir := filepath.Join(dir, "out")
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	_, h := newTestServer(t, &fakeMedia{probe: types.Probe{Duration: 30, Width: 2, Height: 2}}, Options{OutDir: outDir})

	rec := do(t, h, http.MethodPost, "/v1/export", exportRequest{Source: src, Cuts: []types.Cut{{Start: 3, End: 5}}})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var res usecase.ExportResult
	if err := json.NewDecoder(rec.Body).Decode(&res); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if filepath.Dir(res.Destination) != outDir || !strings.HasPrefix(filepath.Base(res.Destination), "talk-cut-20260301-120000Z-") {
		t.Fatalf("unexpected destination %s", res.Destination)
	}
	b, err := os.ReadFile(res.Destination)
	if err != nil || string(b) != "encoded" {
		t.Fatalf("destination content = %q err=%v", b, err)
	}
}

func TestExport_EncodeFailure(t *testing.T) {
	dir := t.TempDir()
	media := &fakeMedia{
		probe:    types.Probe{Duration: 30, Width: 2, Height: 2},
		encodeFn: func(types.EncodeJob) error { return &types.EncodeError{ExitCode: 1, Diagnostics: "boom"} },
	}
	_, h := newTestServer(t, media, Options{})
	rec := do(t, h, http.MethodPost, "/v1/export", exportRequest{
		Source:      filepath.Join(dir, "in.mp4"),
		Destination: filepath.Join(dir, "out.mp4"),
		Cuts:        []types.Cut{{Start: 1, End: 2}},
	})
	if rec.Code != http.StatusBadGateway {
		t.Fatalf("expected 502, got %d", rec.Code)
	}
}

func TestPreview(t *testing.T) {
	payload := strings.Repeat("moof", 1000)
	_, h := newTestServer(t, &fakeMedia{stdout: payload}, Options{})

	rec := do(t, h, http.MethodPost, "/v1/preview", previewRequest{
		Clips: []types.TimelineClip{{SourcePath: "/a.mp4", Start: 0, End: 2}},
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if rec.Header().Get("Content-Type") != videoContentType || rec.Header().Get("X-Stream-Id") == "" {
		t.Fatalf("unexpected headers: %v", rec.Header())
	}
	if rec.Body.String() != payload {
		t.Fatalf("body length %d, want %d", rec.Body.Len(), len(payload))
	}
	if !rec.Flushed {
		t.Fatalf("expected the preview to be flushed")
	}
}

func TestPreview_Rejections(t *testing.T) {
	_, h := newTestServer(t, &fakeMedia{}, Options{})

	if rec := do(t, h, http.MethodPost, "/v1/preview", previewRequest{}); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for no clips, got %d", rec.Code)
	}
	rec := do(t, h, http.MethodPost, "/v1/preview", previewRequest{
		Clips: []types.TimelineClip{{SourcePath: "/a.mp4", Start: 0, End: 2}},
		Mode:  "loop",
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown mode, got %d", rec.Code)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	_, h := newTestServer(t, &fakeMedia{}, Options{})
	do(t, h, http.MethodGet, "/healthz", nil)
	rec := do(t, h, http.MethodGet, "/metrics", nil)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "cutlist_http_requests_total") {
		t.Fatalf("unexpected metrics response %d", rec.Code)
	}
}

func TestListenAndServe_StopsOnCancel(t *testing.T) {
	s, _ := newTestServer(t, &fakeMedia{}, Options{ShutdownTimeout: time.Second})
	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- s.ListenAndServe(ctx, "127.0.0.1:0") }()
	time.Sleep(50 * time.Millisecond)
	cancel()
	select {
	case err := <-errCh:
		if err != nil {
			t.Fatalf("listen: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("server did not stop")
	}
}
