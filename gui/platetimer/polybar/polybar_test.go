package polybar

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	platetimer "github.com/d093w1z/platetimer/api"
)

// Test helpers

// syncBuffer is a bytes.Buffer safe for the Run goroutine and the test.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func newTestBridge(t *testing.T) (*Bridge, *platetimer.Engine, *syncBuffer) {
	t.Helper()
	engine := platetimer.New(platetimer.WithInterval(10 * time.Millisecond))
	t.Cleanup(engine.Close)
	out := &syncBuffer{}
	return New(engine, out), engine, out
}

func writeToFifo(t *testing.T, path, data string) {
	t.Helper()
	file, err := os.OpenFile(path, os.O_WRONLY, 0)
	if err != nil {
		t.Fatalf("Failed to open FIFO for writing: %v", err)
	}
	defer file.Close()

	if _, err := io.WriteString(file, data); err != nil {
		t.Fatalf("Failed to write to FIFO: %v", err)
	}
}

func waitUntil(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("condition not met within %v", timeout)
}

// ================= Setup Tests =================

func TestInit(t *testing.T) {
	b, _, _ := newTestBridge(t)
	base := filepath.Join(t.TempDir(), "test.pipe")

	path, err := b.Init(base)
	if err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	defer os.Remove(path)

	expectedPrefix := fmt.Sprintf("%s.%d", base, os.Getpid())
	if !strings.HasPrefix(path, expectedPrefix) {
		t.Errorf("Expected FIFO path to start with %s, got %s", expectedPrefix, path)
	}
	if b.FifoPath() != path {
		t.Errorf("Expected FifoPath %q, got %q", path, b.FifoPath())
	}

	fi, err := os.Stat(path)
	if err != nil {
		t.Fatalf("Failed to stat FIFO: %v", err)
	}
	if fi.Mode()&os.ModeNamedPipe == 0 {
		t.Error("Created file is not a named pipe")
	}
}

func TestMkfifoUnique_ReusesIdleFifo(t *testing.T) {
	base := filepath.Join(t.TempDir(), "unique.pipe")

	path1, err := mkfifoUnique(base, 0666)
	if err != nil {
		t.Fatalf("First mkfifoUnique call failed: %v", err)
	}
	defer os.Remove(path1)

	// Nobody reads path1, so it is handed out again.
	path2, err := mkfifoUnique(base, 0666)
	if err != nil {
		t.Fatalf("Second mkfifoUnique call failed: %v", err)
	}
	if path1 != path2 {
		t.Errorf("Expected idle FIFO %q to be reused, got %q", path1, path2)
	}
}

func TestMkfifoUnique_SkipsFifoWithReader(t *testing.T) {
	base := filepath.Join(t.TempDir(), "busy.pipe")

	path1, err := mkfifoUnique(base, 0666)
	if err != nil {
		t.Fatal(err)
	}
	defer os.Remove(path1)

	reader, err := os.OpenFile(path1, os.O_RDWR, os.ModeNamedPipe)
	if err != nil {
		t.Fatal(err)
	}
	defer reader.Close()

	path2, err := mkfifoUnique(base, 0666)
	if err != nil {
		t.Fatal(err)
	}
	defer os.Remove(path2)
	if path1 == path2 {
		t.Errorf("Expected a new FIFO while %q has a reader", path1)
	}
}

func TestMkfifoUnique_MissingDirectory(t *testing.T) {
	_, err := mkfifoUnique(filepath.Join(t.TempDir(), "missing", "test.pipe"), 0666)
	if err == nil {
		t.Error("Expected error when the directory does not exist")
	}
}

func TestFifoHasReader(t *testing.T) {
	path, err := mkfifoUnique(filepath.Join(t.TempDir(), "test.pipe"), 0666)
	if err != nil {
		t.Fatalf("Failed to create FIFO: %v", err)
	}
	defer os.Remove(path)

	if fifoHasReader(path) {
		t.Error("Expected no reader on a fresh FIFO")
	}
}

// ================= Command Tests =================

func TestExecute(t *testing.T) {
	b, engine, _ := newTestBridge(t)

	if err := b.Execute("arm 30"); err != nil {
		t.Fatalf("arm: %v", err)
	}
	if got := engine.State(); got.Total != 30 || got.Phase != platetimer.Idle {
		t.Fatalf("Expected armed idle state, got %+v", got)
	}

	if err := b.Execute("start"); err != nil {
		t.Fatalf("start: %v", err)
	}
	if got := engine.State().Phase; got != platetimer.Running {
		t.Errorf("Expected running, got %s", got)
	}

	if err := b.Execute("toggle"); err != nil {
		t.Fatalf("toggle: %v", err)
	}
	if got := engine.State().Phase; got != platetimer.Paused {
		t.Errorf("Expected toggle to pause, got %s", got)
	}

	if err := b.Execute("toggle"); err != nil {
		t.Fatalf("toggle: %v", err)
	}
	if got := engine.State().Phase; got != platetimer.Running {
		t.Errorf("Expected toggle to resume, got %s", got)
	}

	b.Execute("pause")
	b.Execute("reset")
	if got := engine.State(); got != (platetimer.TimerState{Total: 30, Remaining: 30, Phase: platetimer.Idle}) {
		t.Errorf("Expected reset state, got %+v", got)
	}

	if err := b.Execute("   "); err != nil {
		t.Errorf("Expected blank line to be ignored, got %v", err)
	}
}

func TestExecute_Errors(t *testing.T) {
	b, _, _ := newTestBridge(t)

	tests := []struct {
		line string
		want error
	}{
		{"start", platetimer.ErrEmptyDuration},
		{"arm -4", platetimer.ErrInvalidDuration},
		{"inc", ErrUnknownCommand},
	}
	for _, tt := range tests {
		if err := b.Execute(tt.line); !errors.Is(err, tt.want) {
			t.Errorf("Execute(%q) = %v, want %v", tt.line, err, tt.want)
		}
	}

	for _, line := range []string{"arm", "arm ten", "arm 1 2"} {
		if err := b.Execute(line); err == nil {
			t.Errorf("Execute(%q): expected error", line)
		}
	}
}

func TestExecute_Gui(t *testing.T) {
	b, _, _ := newTestBridge(t)

	if err := b.Execute("gui"); err != nil {
		t.Errorf("Expected gui without handler to be a no-op, got %v", err)
	}

	called := 0
	b.AddHandler(func() { called++ })
	b.Execute("gui")
	if called != 1 {
		t.Errorf("Expected handler to be called once, got %d", called)
	}
}

// ================= Output Tests =================

func TestPolybarActionButton(t *testing.T) {
	if got, want := polybarActionButton("Test Button\n", "test_action"), "%{A:test_action:} Test Button %{A}"; got != want {
		t.Errorf("Expected %q, got %q", want, got)
	}
}

func TestOutput(t *testing.T) {
	b, engine, _ := newTestBridge(t)
	b.pipePath = "/tmp/test.pipe"

	engine.Arm(300)
	result := b.Output(engine.Snapshot())

	for _, want := range []string{
		"%{A:echo 'toggle' > /tmp/test.pipe:} [>] %{A}",
		"%{A:echo 'gui' > /tmp/test.pipe:} 00:05:00 0% %{A}",
		"%{A:echo 'reset' > /tmp/test.pipe:} [R] %{A}",
	} {
		if !strings.Contains(result, want) {
			t.Errorf("Expected output to contain %q, got %q", want, result)
		}
	}

	running := b.Output(platetimer.Snapshot{Total: 10, Remaining: 7, Clock: "00:00:07", Percent: 30, Phase: platetimer.Running})
	if !strings.Contains(running, "[||]") || !strings.Contains(running, "00:00:07 30%") {
		t.Errorf("Unexpected running output %q", running)
	}

	done := b.Output(platetimer.Snapshot{Total: 10, Clock: "00:00:00", Percent: 100, Phase: platetimer.Completed})
	if !strings.Contains(done, "00:00:00 100% done") {
		t.Errorf("Unexpected completed output %q", done)
	}
}

// ================= Integration Tests =================

func TestRun_RequiresInit(t *testing.T) {
	b, _, _ := newTestBridge(t)
	if err := b.Run(); err == nil {
		t.Error("Expected Run to fail before Init")
	}
}

func TestRun_CommandsAndOutput(t *testing.T) {
	b, engine, out := newTestBridge(t)
	path, err := b.Init(filepath.Join(t.TempDir(), "run.pipe"))
	if err != nil {
		t.Fatal(err)
	}

	runErr := make(chan error, 1)
	go func() { runErr <- b.Run() }()

	waitUntil(t, time.Second, func() bool { return strings.Contains(out.String(), "00:00:00 0%") })

	writeToFifo(t, path, "arm 3\nstart\n")
	select {
	case <-engine.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("countdown armed through the FIFO did not complete")
	}
	waitUntil(t, time.Second, func() bool { return strings.Contains(out.String(), "00:00:00 100% done") })

	for _, want := range []string{"00:00:03 0%", "00:00:02 33%", "00:00:01 67%"} {
		if !strings.Contains(out.String(), want) {
			t.Errorf("Expected output line with %q, got:\n%s", want, out.String())
		}
	}

	b.Shutdown()
	select {
	case err := <-runErr:
		if err != nil {
			t.Errorf("Run returned %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after Shutdown")
	}

	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Errorf("Expected FIFO to be removed, stat error: %v", err)
	}

	// The bridge no longer follows the engine once Run has returned.
	before := out.String()
	engine.Arm(42)
	time.Sleep(20 * time.Millisecond)
	if after := out.String(); after != before {
		t.Errorf("Expected no output after Run returned, got %q", strings.TrimPrefix(after, before))
	}
}

func TestShutdown_MultipleCall(t *testing.T) {
	b, _, _ := newTestBridge(t)
	if _, err := b.Init(filepath.Join(t.TempDir(), "twice.pipe")); err != nil {
		t.Fatal(err)
	}

	b.Shutdown()
	b.Shutdown() // Should not panic
}

// ================= Benchmark Tests =================

func BenchmarkOutput(b *testing.B) {
	bridge := New(platetimer.New(), io.Discard)
	bridge.pipePath = "/tmp/bench.pipe"
	s := platetimer.Snapshot{Total: 600, Remaining: 123, Clock: "00:02:03", Percent: 79.5, Phase: platetimer.Running}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		bridge.Output(s)
	}
}
