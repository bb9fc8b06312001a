// Package execrun runs external commands with os/exec.
package execrun

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"
	"time"

	"github.com/forPelevin/cutlist/internal/ports"
	"github.com/forPelevin/cutlist/internal/types"
)

const defaultLogLines = 100

type Runner struct {
	logLines  int
	waitDelay time.Duration
}

// New returns a Runner keeping the last logLines stderr lines of started
// processes (100 if logLines <= 0).
func New(logLines int) *Runner {
	if logLines <= 0 {
		logLines = defaultLogLines
	}
	return &Runner{logLines: logLines, waitDelay: 2 * time.Second}
}

func (r *Runner) LookPath(name string) (string, error) {
	p, err := exec.LookPath(name)
	if err != nil {
		return "", fmt.Errorf("%w: %s: %v", types.ErrToolNotFound, name, err)
	}
	return p, nil
}

func (r *Runner) Run(ctx context.Context, name string, args []string) (ports.Output, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	cmd.WaitDelay = r.waitDelay

	err := cmd.Run()
	out := ports.Output{Stdout: stdout.Bytes(), Stderr: stderr.Bytes()}
	if err == nil {
		return out, nil
	}
	if ctx.Err() != nil {
		return out, ctx.Err()
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		out.ExitCode = exitErr.ExitCode()
		return out, nil
	}
	if errors.Is(err, exec.ErrNotFound) {
		return out, fmt.Errorf("%w: %s", types.ErrToolNotFound, name)
	}
	return out, fmt.Errorf("run %s: %w", name, err)
}

func (r *Runner) Start(ctx context.Context, name string, args []string) (ports.Process, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.WaitDelay = r.waitDelay

	tail := newTailBuffer(r.logLines)
	cmd.Stderr = tail

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("creating stdout pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		if errors.Is(err, exec.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", types.ErrToolNotFound, name)
		}
		return nil, fmt.Errorf("starting %s: %w", name, err)
	}

	return &process{cmd: cmd, stdout: stdout, stderr: tail, sampler: newSampler(cmd.Process.Pid)}, nil
}

type process struct {
	cmd     *exec.Cmd
	stdout  io.Reader
	stderr  *tailBuffer
	sampler *sampler

	waitOnce sync.Once
	exitCode int
	waitErr  error
}

func (p *process) Stdout() io.Reader { return p.stdout }

func (p *process) Pid() int { return p.cmd.Process.Pid }

func (p *process) Kill() error {
	err := p.cmd.Process.Kill()
	if err != nil && !errors.Is(err, os.ErrProcessDone) {
		return err
	}
	return nil
}

func (p *process) Wait() (int, error) {
	p.waitOnce.Do(func() {
		err := p.cmd.Wait()
		if err == nil {
			return
		}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			p.exitCode = exitErr.ExitCode()
			return
		}
		p.exitCode = -1
		p.waitErr = err
	})
	return p.exitCode, p.waitErr
}

func (p *process) Running() bool { return alive(p.Pid()) }

func (p *process) Usage() (float64, uint64) { return p.sampler.current() }

func (p *process) Diagnostics() string { return p.stderr.String() }
