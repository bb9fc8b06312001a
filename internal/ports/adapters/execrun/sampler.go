package execrun

import (
	"slices"
	"sync"

	gopsutilprocess "github.com/shirou/gopsutil/v3/process"
)

// sampler reads CPU and RSS of a child process through gopsutil.
type sampler struct {
	mu   sync.Mutex
	pid  int32
	proc *gopsutilprocess.Process
}

func newSampler(pid int) *sampler {
	return &sampler{pid: int32(pid)}
}

func (s *sampler) current() (cpu float64, rss uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.proc == nil {
		proc, err := gopsutilprocess.NewProcess(s.pid)
		if err != nil {
			return 0, 0
		}
		s.proc = proc
	}
	if pct, err := s.proc.CPUPercent(); err == nil {
		cpu = pct
	}
	if mem, err := s.proc.MemoryInfo(); err == nil && mem != nil {
		rss = mem.RSS
	}
	return cpu, rss
}

// alive reports whether pid names a live process. Zombies (exited, not yet
// reaped) count as gone.
func alive(pid int) bool {
	ok, err := gopsutilprocess.PidExists(int32(pid))
	if err != nil || !ok {
		return false
	}
	proc, err := gopsutilprocess.NewProcess(int32(pid))
	if err != nil {
		return false
	}
	status, err := proc.Status()
	if err != nil {
		return true
	}
	return !slices.Contains(status, gopsutilprocess.Zombie)
}
