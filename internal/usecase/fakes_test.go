package usecase

import (
	"context"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/forPelevin/cutlist/internal/ports"
	"github.com/forPelevin/cutlist/internal/types"
)

type fakeMedia struct {
	mu sync.Mutex

	toolsErr error
	probe    types.Probe
	probeErr error
	encode   func(job types.EncodeJob) error
	start    func(i int, job types.EncodeJob) (ports.Process, error)

	probed  []string
	encoded []types.EncodeJob
	started []types.EncodeJob
}

func (f *fakeMedia) CheckTools(context.Context) error { return f.toolsErr }

func (f *fakeMedia) Probe(_ context.Context, path string) (types.Probe, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.probed = append(f.probed, path)
	return f.probe, f.probeErr
}

func (f *fakeMedia) Encode(_ context.Context, job types.EncodeJob) error {
	f.mu.Lock()
	f.encoded = append(f.encoded, job)
	f.mu.Unlock()
	if f.encode == nil {
		return nil
	}
	return f.encode(job)
}

func (f *fakeMedia) StartStream(_ context.Context, job types.EncodeJob) (ports.Process, error) {
	f.mu.Lock()
	i := len(f.started)
	f.started = append(f.started, job)
	f.mu.Unlock()
	return f.start(i, job)
}

func (f *fakeMedia) startedJobs() []types.EncodeJob {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]types.EncodeJob(nil), f.started...)
}

// fakeProcess is an encoder whose stdout is an in-memory pipe fed by produce.
// Kill closes the pipe, which ends produce with io.ErrClosedPipe.
type fakeProcess struct {
	pid  int
	exit int
	diag string

	r        *io.PipeReader
	w        *io.PipeWriter
	finished chan struct{}

	mu     sync.Mutex
	killed bool
	reaped atomic.Bool
}

func newFakeProcess(pid, exit int, produce func(w io.Writer) error) *fakeProcess {
	r, w := io.Pipe()
	p := &fakeProcess{pid: pid, exit: exit, r: r, w: w, finished: make(chan struct{})}
	go func() {
		defer close(p.finished)
		if err := produce(w); err == nil {
			_ = w.Close()
		}
	}()
	return p
}

func writeAll(data string) func(w io.Writer) error {
	return func(w io.Writer) error {
		_, err := io.WriteString(w, data)
		return err
	}
}

func writeForever(w io.Writer) error {
	block := make([]byte, 1024)
	for {
		if _, err := w.Write(block); err != nil {
			return err
		}
	}
}

func (p *fakeProcess) Stdout() io.Reader { return p.r }

func (p *fakeProcess) Wait() (int, error) {
	<-p.finished
	p.reaped.Store(true)
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.killed {
		return -1, nil
	}
	return p.exit, nil
}

func (p *fakeProcess) Kill() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	select {
	case <-p.finished:
		return nil
	default:
	}
	p.killed = true
	_ = p.w.Close()
	return nil
}

func (p *fakeProcess) wasKilled() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.killed
}

func (p *fakeProcess) Pid() int                 { return p.pid }
func (p *fakeProcess) Running() bool            { return !p.reaped.Load() }
func (p *fakeProcess) Usage() (float64, uint64) { return 0, 0 }
func (p *fakeProcess) Diagnostics() string      { return p.diag }

type recordingMetrics struct {
	mu       sync.Mutex
	exports  []string
	started  int
	finished []string
	bytes    int
}

func (m *recordingMetrics) ExportFinished(result string, _ time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.exports = append(m.exports, result)
}

func (m *recordingMetrics) StreamStarted() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.started++
}

func (m *recordingMetrics) StreamFinished(state string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.finished = append(m.finished, state)
}

func (m *recordingMetrics) StreamBytes(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.bytes += n
}
