package ports

import (
	"context"
	"io"

	"github.com/forPelevin/cutlist/internal/types"
)

// Output is the result of a command that ran to completion.
type Output struct {
	Stdout   []byte
	Stderr   []byte
	ExitCode int
}

// Runner launches external commands. Run and Start return an error only when
// the command could not be launched; a non-zero exit is reported in the result.
type Runner interface {
	LookPath(name string) (string, error)
	Run(ctx context.Context, name string, args []string) (Output, error)
	Start(ctx context.Context, name string, args []string) (Process, error)
}

// Process is a started child whose standard output is read incrementally.
type Process interface {
	Stdout() io.Reader
	// Wait reaps the child. It must be called once stdout has been drained or
	// the child killed.
	Wait() (exitCode int, err error)
	Kill() error
	Pid() int
	// Running reports whether the OS still has a live process with this pid.
	Running() bool
	Usage() (cpuPercent float64, rssBytes uint64)
	// Diagnostics returns the most recent stderr lines.
	Diagnostics() string
}

type MediaTool interface {
	CheckTools(ctx context.Context) error
	Probe(ctx context.Context, path string) (types.Probe, error)
	Encode(ctx context.Context, job types.EncodeJob) error
	StartStream(ctx context.Context, job types.EncodeJob) (Process, error)
}
