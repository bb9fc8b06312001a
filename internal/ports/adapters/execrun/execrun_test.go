package execrun

import (
	"context"
	"errors"
	"io"
	"os/exec"
	"strings"
	"testing"
	"time"

	"github.com/forPelevin/cutlist/internal/types"
)

func requireShell(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}
}

func TestTailBuffer_KeepsLastLines(t *testing.T) {
	tb := newTailBuffer(3)
	_, _ = tb.Write([]byte("one\ntwo\nthr"))
	_, _ = tb.Write([]byte("ee\r\nfour\nfive"))

	got := tb.Lines()
	want := []string{"three", "four", "five"}
	if len(got) != 4 {
		t.Fatalf("lines = %q", got)
	}
	if got[0] != "two" || got[1] != want[0] || got[2] != want[1] || got[3] != want[2] {
		t.Fatalf("lines = %q", got)
	}
	if !strings.HasSuffix(tb.String(), "four\nfive") {
		t.Fatalf("string = %q", tb.String())
	}
}

func TestRunner_LookPathMissing(t *testing.T) {
	r := New(0)
	_, err := r.LookPath("definitely-not-a-real-binary-cutlist")
	if !errors.Is(err, types.ErrToolNotFound) {
		t.Fatalf("err = %v, want ErrToolNotFound", err)
	}
}

func TestRunner_RunReportsExitCode(t *testing.T) {
	requireShell(t)
	r := New(0)
	out, err := r.Run(context.Background(), "sh", []string{"-c", "echo hi; echo oops >&2; exit 3"})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if out.ExitCode != 3 {
		t.Fatalf("exit = %d, want 3", out.ExitCode)
	}
	if strings.TrimSpace(string(out.Stdout)) != "hi" || strings.TrimSpace(string(out.Stderr)) != "oops" {
		t.Fatalf("unexpected output: %+v", out)
	}
}

func TestRunner_RunMissingBinary(t *testing.T) {
	r := New(0)
	_, err := r.Run(context.Background(), "definitely-not-a-real-binary-cutlist", nil)
	if !errors.Is(err, types.ErrToolNotFound) {
		t.Fatalf("err = %v, want ErrToolNotFound", err)
	}
}

func TestRunner_StartStreamsAndWaits(t *testing.T) {
	requireShell(t)
	r := New(10)
	p, err := r.Start(context.Background(), "sh", []string{"-c", "printf abc; echo bad >&2; exit 2"})
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	b, err := io.ReadAll(p.Stdout())
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(b) != "abc" {
		t.Fatalf("stdout = %q", b)
	}
	code, err := p.Wait()
	if err != nil {
		t.Fatalf("wait: %v", err)
	}
	if code != 2 {
		t.Fatalf("exit = %d, want 2", code)
	}
	if p.Diagnostics() != "bad" {
		t.Fatalf("diagnostics = %q", p.Diagnostics())
	}
}

func TestRunner_KillLeavesNoProcess(t *testing.T) {
	requireShell(t)
	r := New(0)
	p, err := r.Start(context.Background(), "sh", []string{"-c", "exec sleep 30"})
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if !p.Running() {
		t.Fatalf("expected process %d to be running", p.Pid())
	}
	if err := p.Kill(); err != nil {
		t.Fatalf("kill: %v", err)
	}

	done := make(chan struct{})
	go func() {
		_, _ = p.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatalf("wait did not return after kill")
	}
	if p.Running() {
		t.Fatalf("process %d still running after kill+wait", p.Pid())
	}
	// Kill after exit is a no-op.
	if err := p.Kill(); err != nil {
		t.Fatalf("second kill: %v", err)
	}
}
