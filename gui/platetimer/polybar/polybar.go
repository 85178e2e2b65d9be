// Package polybar drives a countdown from a polybar module: commands arrive
// on a named pipe and a status line is printed for every snapshot.
package polybar

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"syscall"

	platetimer "github.com/d093w1z/platetimer/api"
	"github.com/d093w1z/platetimer/internal/logger"
)

// ErrUnknownCommand is returned by Execute for unrecognised input.
var ErrUnknownCommand = errors.New("unknown command")

// Bridge connects one Engine to a FIFO and a status output.
type Bridge struct {
	engine   *platetimer.Engine
	out      io.Writer
	pipePath string

	mu                sync.RWMutex
	guiToggleCallback func()
	fifo              *os.File

	stopOnce sync.Once
	stopping chan struct{}
	wg       sync.WaitGroup
}

func New(engine *platetimer.Engine, out io.Writer) *Bridge {
	return &Bridge{
		engine:   engine,
		out:      out,
		stopping: make(chan struct{}),
	}
}

// --- FIFO setup ---

// Init creates the command FIFO. Relative bases are placed in os.TempDir().
func (b *Bridge) Init(base string) (string, error) {
	abs := base
	if !filepath.IsAbs(abs) {
		abs = filepath.Join(os.TempDir(), base)
	}

	path, err := mkfifoUnique(abs, 0666)
	if err != nil {
		return "", err
	}
	b.pipePath = path
	logger.Infof("FIFO created at %q", path)
	return path, nil
}

func (b *Bridge) FifoPath() string { return b.pipePath }

func mkfifoUnique(base string, mode os.FileMode) (string, error) {
	pid := os.Getpid()

	for i := 0; i < 1000; i++ {
		path := fmt.Sprintf("%s.%d", base, pid)
		if i > 0 {
			path = fmt.Sprintf("%s.%d.%d", base, pid, i)
		}

		err := syscall.Mkfifo(path, uint32(mode.Perm()))
		if err == nil {
			return path, nil
		}
		if !errors.Is(err, os.ErrExist) {
			return "", fmt.Errorf("mkfifo %q: %w", path, err)
		}
		// A leftover FIFO from an earlier run is reused when nobody reads it.
		if fi, statErr := os.Lstat(path); statErr == nil && fi.Mode()&os.ModeNamedPipe != 0 && !fifoHasReader(path) {
			return path, nil
		}
	}
	return "", fmt.Errorf("unable to allocate unique FIFO for base %q after many attempts", base)
}

// fifoHasReader reports whether another process holds path open for reading.
// A non-blocking write open fails with ENXIO when there is no reader.
func fifoHasReader(path string) bool {
	file, err := os.OpenFile(path, os.O_WRONLY|syscall.O_NONBLOCK, 0)
	if err != nil {
		return false
	}
	file.Close()
	return true
}

// --- Handlers ---

// AddHandler sets the callback for the "gui" command.
func (b *Bridge) AddHandler(f func()) {
	b.mu.Lock()
	b.guiToggleCallback = f
	b.mu.Unlock()
}

// Execute runs one command line: start, pause, toggle, reset, arm <seconds> or gui.
func (b *Bridge) Execute(line string) error {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return nil
	}

	switch cmd := fields[0]; cmd {
	case "start":
		return b.engine.Start()
	case "pause":
		b.engine.Pause()
	case "toggle":
		if b.engine.State().Phase == platetimer.Running {
			b.engine.Pause()
			return nil
		}
		return b.engine.Start()
	case "reset":
		b.engine.Reset()
	case "arm":
		if len(fields) != 2 {
			return fmt.Errorf("arm: expected one argument, got %d", len(fields)-1)
		}
		seconds, err := strconv.Atoi(fields[1])
		if err != nil {
			return fmt.Errorf("arm: %w", err)
		}
		return b.engine.Arm(seconds)
	case "gui":
		b.mu.RLock()
		cb := b.guiToggleCallback
		b.mu.RUnlock()
		if cb != nil {
			cb()
		}
	default:
		return fmt.Errorf("%w: %q", ErrUnknownCommand, cmd)
	}
	return nil
}

// --- Main loop ---

// Run prints a status line for every snapshot and executes FIFO commands
// until Shutdown is called or the process receives SIGINT/SIGTERM.
func (b *Bridge) Run() error {
	if b.pipePath == "" {
		return errors.New("polybar: Init must be called before Run")
	}

	// O_RDWR keeps the open from blocking until a writer shows up and
	// keeps the pipe from reporting EOF between writers.
	file, err := os.OpenFile(b.pipePath, os.O_RDWR, os.ModeNamedPipe)
	if err != nil {
		return fmt.Errorf("open FIFO %q: %w", b.pipePath, err)
	}
	b.mu.Lock()
	b.fifo = file
	b.mu.Unlock()

	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		b.handleCmds(file)
	}()

	sigc := make(chan os.Signal, 2)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigc)

	updates := b.engine.Subscribe()
	defer b.engine.Unsubscribe(updates)
	b.print(b.engine.Snapshot())

	for {
		select {
		case s := <-updates:
			b.print(s)
		case sig := <-sigc:
			logger.Infof("polybar: received signal %v, shutting down", sig)
			b.Shutdown()
			return nil
		case <-b.stopping:
			return nil
		}
	}
}

// Shutdown stops the command reader and removes the FIFO. Safe to call more than once.
func (b *Bridge) Shutdown() {
	b.stopOnce.Do(func() {
		close(b.stopping)

		b.mu.Lock()
		if b.fifo != nil {
			_ = b.fifo.Close() // unblocks the reader
		}
		b.mu.Unlock()

		if b.pipePath != "" {
			if err := os.Remove(b.pipePath); err != nil && !errors.Is(err, os.ErrNotExist) {
				logger.Warnf("removing FIFO %q: %v", b.pipePath, err)
			}
		}
	})
	b.wg.Wait()
}

func (b *Bridge) handleCmds(r io.Reader) {
	logger.Debugf("polybar: command handler started")
	defer logger.Debugf("polybar: command handler stopped")

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := scanner.Text()
		logger.Debugf("polybar: received command %q", line)
		if err := b.Execute(line); err != nil {
			logger.Warnf("polybar: %v", err)
		}
	}

	select {
	case <-b.stopping:
	default:
		if err := scanner.Err(); err != nil {
			logger.Errorf("polybar: reading FIFO: %v", err)
		}
	}
}

// --- Output helpers ---

func (b *Bridge) print(s platetimer.Snapshot) {
	fmt.Fprintln(b.out, b.Output(s))
}

// Output renders the polybar line for a snapshot.
func (b *Bridge) Output(s platetimer.Snapshot) string {
	toggle := "[>]"
	if s.Phase == platetimer.Running {
		toggle = "[||]"
	}
	status := fmt.Sprintf("%s %.0f%%", s.Clock, s.Percent)
	if s.Phase == platetimer.Completed && s.Total > 0 {
		status += " done"
	}

	return polybarActionButton(toggle, b.pipeCommand("toggle")) +
		polybarActionButton(status, b.pipeCommand("gui")) +
		polybarActionButton("[R]", b.pipeCommand("reset"))
}

func polybarActionButton(button string, action string) string {
	return fmt.Sprintf("%%{A:%s:} %s %%{A}", action, strings.TrimSuffix(button, "\n"))
}

func (b *Bridge) pipeCommand(cmd string) string {
	return fmt.Sprintf("echo '%s' > %s", cmd, b.pipePath)
}
