package execrun

import (
	"container/ring"
	"strings"
	"sync"
)

// tailBuffer is an io.Writer that keeps the last n complete lines written to it,
// plus whatever partial line is pending. Progress lines ending in \r count as
// lines too.
type tailBuffer struct {
	mu      sync.Mutex
	lines   *ring.Ring
	partial strings.Builder
}

func newTailBuffer(n int) *tailBuffer {
	return &tailBuffer{lines: ring.New(n)}
}

func (t *tailBuffer) Write(p []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	for _, c := range p {
		if c == '\n' || c == '\r' {
			t.flush()
			continue
		}
		t.partial.WriteByte(c)
	}
	return len(p), nil
}

func (t *tailBuffer) flush() {
	line := strings.TrimSpace(t.partial.String())
	t.partial.Reset()
	if line == "" {
		return
	}
	t.lines.Value = line
	t.lines = t.lines.Next()
}

func (t *tailBuffer) Lines() []string {
	t.mu.Lock()
	defer t.mu.Unlock()

	var out []string
	t.lines.Do(func(v any) {
		if v != nil {
			out = append(out, v.(string))
		}
	})
	if s := strings.TrimSpace(t.partial.String()); s != "" {
		out = append(out, s)
	}
	return out
}

func (t *tailBuffer) String() string {
	return strings.Join(t.Lines(), "\n")
}
