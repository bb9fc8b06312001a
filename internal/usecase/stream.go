package usecase

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/lithammer/shortuuid/v4"

	"github.com/forPelevin/cutlist/internal/domain/filtergraph"
	"github.com/forPelevin/cutlist/internal/logging"
	"github.com/forPelevin/cutlist/internal/ports"
	"github.com/forPelevin/cutlist/internal/types"
)

// streamBuffer is the capacity of a stream's chunk channel. The worker blocks
// once it is full.
const streamBuffer = 2

// usageEvery is how many chunks pass between encoder usage samples.
const usageEvery = 32

type State int32

const (
	StateIdle State = iota
	StateSpawning
	StateStreaming
	StateCompleted
	StateFailed
	StateCancelled
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateSpawning:
		return "spawning"
	case StateStreaming:
		return "streaming"
	case StateCompleted:
		return "completed"
	case StateFailed:
		return "failed"
	case StateCancelled:
		return "cancelled"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

func (s State) Terminal() bool {
	return s == StateCompleted || s == StateFailed || s == StateCancelled
}

// Stream is a running preview encode. Encoded bytes arrive on Chunks in the
// order the encoder wrote them; the channel is closed when the stream ends.
// A consumer that wants no more data calls Detach, which kills the encoder.
type Stream struct {
	ID string

	chunks     chan []byte
	detach     chan struct{}
	detachOnce sync.Once
	done       chan struct{}

	state     atomic.Int32
	err       error
	bytes     int64
	chunkSize int

	log     *slog.Logger
	metrics Metrics
}

func (s *Stream) Chunks() <-chan []byte { return s.chunks }

// Done is closed once the stream reached a terminal state and its encoder
// process has been reaped.
func (s *Stream) Done() <-chan struct{} { return s.done }

func (s *Stream) State() State { return State(s.state.Load()) }

// Detach tells the stream the consumer accepts no more data. It is safe to
// call more than once and after the stream ended.
func (s *Stream) Detach() {
	s.detachOnce.Do(func() { close(s.detach) })
}

// Wait blocks until the stream ends. It returns nil for Completed and
// Cancelled and the failure for Failed.
func (s *Stream) Wait() error {
	<-s.done
	return s.err
}

// WriteTo forwards every chunk to w. A write error detaches the stream, waits
// for the encoder to be torn down and is returned.
func (s *Stream) WriteTo(w io.Writer) (int64, error) {
	var total int64
	for chunk := range s.chunks {
		n, err := w.Write(chunk)
		total += int64(n)
		if err != nil {
			s.Detach()
			<-s.done
			return total, err
		}
	}
	return total, s.Wait()
}

func (s *Stream) detached() bool {
	select {
	case <-s.detach:
		return true
	default:
		return false
	}
}

func (s *Stream) setState(st State) {
	prev := State(s.state.Swap(int32(st)))
	s.log.Debug("stream state", slog.String("from", prev.String()), slog.String("to", st.String()))
}

// StreamSegments streams clips one after another, in slice order, each from
// its own encoder process. width caps the video width (0 uses the preview
// width). A failed or cancelled segment ends the whole sequence.
func (u Usecase) StreamSegments(ctx context.Context, clips []types.TimelineClip, width int) (*Stream, error) {
	if err := filtergraph.ValidateClips(clips); err != nil {
		return nil, err
	}
	if width <= 0 {
		width = u.d.PreviewWidth
	}

	jobs := make([]types.EncodeJob, 0, len(clips))
	for _, c := range clips {
		jobs = append(jobs, types.EncodeJob{
			Inputs:      []types.EncodeInput{{Path: c.SourcePath, Seek: c.Start, Length: c.Duration()}},
			VideoFilter: filtergraph.ScaleFilter(width),
			Profile:     u.d.Profiles.Stream,
		})
	}
	return u.startStream(ctx, "stream_segments", jobs)
}

// StreamTimeline streams the timeline composition of clips from a single
// encoder process.
func (u Usecase) StreamTimeline(ctx context.Context, clips []types.TimelineClip, width int) (*Stream, error) {
	if width <= 0 {
		width = u.d.PreviewWidth
	}
	prog, err := filtergraph.BuildTimeline(clips, filtergraph.Options{ScaleWidth: width})
	if err != nil {
		return nil, err
	}
	job := types.EncodeJob{Graph: prog.Text, Profile: u.d.Profiles.Stream}
	for _, p := range prog.Inputs {
		job.Inputs = append(job.Inputs, types.EncodeInput{Path: p})
	}
	return u.startStream(ctx, "stream_timeline", []types.EncodeJob{job})
}

func (u Usecase) startStream(ctx context.Context, op string, jobs []types.EncodeJob) (*Stream, error) {
	if err := u.d.Media.CheckTools(ctx); err != nil {
		return nil, err
	}

	id := shortuuid.New()
	s := &Stream{
		ID:        id,
		chunks:    make(chan []byte, streamBuffer),
		detach:    make(chan struct{}),
		done:      make(chan struct{}),
		chunkSize: u.d.ChunkSize,
		log:       logging.WithOperation(u.log, op, id),
		metrics:   u.d.Metrics,
	}
	s.metrics.StreamStarted()
	s.log.Info("stream started", slog.Int("segments", len(jobs)))

	go s.run(ctx, u.d.Media, jobs)
	return s, nil
}

// run owns every encoder process of the stream. It is the only writer to
// chunks and closes it on exit.
func (s *Stream) run(ctx context.Context, media ports.MediaTool, jobs []types.EncodeJob) {
	state, err := StateCompleted, error(nil)
	for i, job := range jobs {
		if s.detached() || ctx.Err() != nil {
			state = StateCancelled
			break
		}
		s.setState(StateSpawning)
		proc, startErr := media.StartStream(ctx, job)
		if startErr != nil {
			state, err = StateFailed, fmt.Errorf("segment %d: %w", i, startErr)
			break
		}
		s.setState(StateStreaming)
		s.log.Debug("segment started", slog.Int("segment", i), slog.Int("pid", proc.Pid()))

		segState, segErr := s.pump(ctx, proc)
		if segState != StateCompleted {
			state, err = segState, segErr
			if segErr != nil {
				err = fmt.Errorf("segment %d: %w", i, segErr)
			}
			break
		}
	}
	s.finish(state, err)
}

// pump forwards the encoder's stdout until EOF or a detach, then reaps the
// process. It returns StateCompleted for a clean zero exit.
func (s *Stream) pump(ctx context.Context, proc ports.Process) (State, error) {
	// Reads block; a detach must still reach the process.
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-s.detach:
		case <-ctx.Done():
		case <-stop:
			return
		}
		_ = proc.Kill()
	}()

	r := proc.Stdout()
	buf := make([]byte, s.chunkSize)
	var sent int
	for {
		n, readErr := r.Read(buf)
		if n > 0 {
			chunk := make([]byte, n)
			copy(chunk, buf[:n])
			select {
			case s.chunks <- chunk:
				s.bytes += int64(n)
				s.metrics.StreamBytes(n)
			case <-s.detach:
				return s.cancel(proc)
			case <-ctx.Done():
				return s.cancel(proc)
			}
			if sent++; sent%usageEvery == 0 {
				cpu, rss := proc.Usage()
				s.log.Debug("encoder usage", slog.Float64("cpu_percent", cpu), slog.Uint64("rss_bytes", rss), slog.Int64("bytes", s.bytes))
			}
		}
		if errors.Is(readErr, io.EOF) {
			break
		}
		if readErr != nil {
			if s.detached() || ctx.Err() != nil {
				return s.cancel(proc)
			}
			_ = proc.Kill()
			_, _ = proc.Wait()
			return StateFailed, fmt.Errorf("%w: reading encoder output: %v", types.ErrIO, readErr)
		}
	}

	code, waitErr := proc.Wait()
	if code == 0 && waitErr == nil {
		return StateCompleted, nil
	}
	if s.detached() || ctx.Err() != nil {
		return s.cancel(proc)
	}
	if waitErr != nil {
		return StateFailed, fmt.Errorf("waiting for encoder: %w", waitErr)
	}
	return StateFailed, &types.EncodeError{ExitCode: code, Diagnostics: proc.Diagnostics()}
}

// cancel kills and reaps proc. The process is gone when it returns.
func (s *Stream) cancel(proc ports.Process) (State, error) {
	if err := proc.Kill(); err != nil {
		s.log.Warn("killing encoder", slog.Int("pid", proc.Pid()), slog.Any("err", err))
	}
	_, _ = proc.Wait()
	if proc.Running() {
		s.log.Warn("encoder still alive after kill", slog.Int("pid", proc.Pid()))
	}
	return StateCancelled, nil
}

func (s *Stream) finish(state State, err error) {
	if state == StateFailed {
		s.err = err
		s.log.Error("stream failed", slog.Any("err", err), slog.Int64("bytes", s.bytes))
	} else {
		s.log.Info("stream ended", slog.String("state", state.String()), slog.Int64("bytes", s.bytes))
	}
	s.setState(state)
	s.metrics.StreamFinished(state.String())
	close(s.chunks)
	close(s.done)
}
