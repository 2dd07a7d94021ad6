package buildlog

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"runtime"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/milkyapps/llvmgr/internal/progress"
)

var (
	// ErrCMakeNotFound is returned when no cmake executable can be located.
	ErrCMakeNotFound = errors.New("buildlog: cmake not found")

	// ErrNoGenerator is returned when cmake lists no default generator.
	ErrNoGenerator = errors.New("buildlog: cmake has no default generator")
)

const windowsCMake = `C:\Program Files\CMake\bin\cmake.exe`

// waitDelay bounds how long Wait waits for output pipes after the process
// has been killed.
const waitDelay = 5 * time.Second

// stderrTail bounds how much of a failed command's stderr is kept.
const stderrTail = 4 * 1024

// ExitError is returned when a build command fails.
type ExitError struct {
	Command string
	Args    []string
	Stderr  string
	Err     error
}

func (e *ExitError) Error() string {
	msg := fmt.Sprintf("%s %s: %v", e.Command, strings.Join(e.Args, " "), e.Err)
	if e.Stderr != "" {
		msg += "\n" + e.Stderr
	}
	return msg
}

func (e *ExitError) Unwrap() error { return e.Err }

// LookCMake returns the path of the cmake executable.
func LookCMake() (string, error) {
	if p, err := exec.LookPath("cmake"); err == nil {
		return p, nil
	}
	if runtime.GOOS == "windows" {
		if _, err := os.Stat(windowsCMake); err == nil {
			return windowsCMake, nil
		}
	}
	return "", ErrCMakeNotFound
}

// InstallHint suggests how to get cmake on the current platform.
func InstallHint() string {
	switch runtime.GOOS {
	case "windows":
		return "If chocolatey is installed, one can install cmake with `choco install cmake`"
	case "darwin":
		return "Install cmake with `brew install cmake`"
	default:
		return "Install cmake with your package manager, e.g. `apt install cmake ninja-build`"
	}
}

// DefaultGenerator asks cmake which generator it uses by default.
func DefaultGenerator(ctx context.Context, exe string) (string, error) {
	out, err := exec.CommandContext(ctx, exe, "--help").Output()
	if err != nil {
		return "", fmt.Errorf("cmake --help: %w", err)
	}
	return parseDefaultGenerator(out)
}

// parseDefaultGenerator finds the generator line cmake marks with "* ".
func parseDefaultGenerator(help []byte) (string, error) {
	sc := bufio.NewScanner(bytes.NewReader(help))
	for sc.Scan() {
		rest, ok := strings.CutPrefix(sc.Text(), "* ")
		if !ok {
			continue
		}
		name, _, _ := strings.Cut(rest, "=")
		if name = strings.TrimSpace(name); name != "" {
			return name, nil
		}
	}
	return "", ErrNoGenerator
}

// Runner spawns cmake and streams its stdout into a progress row.
type Runner struct {
	// Exe is the cmake executable.
	Exe string

	// Dir is the working directory.
	Dir string

	// Logger receives the command lines that are run. Default: no-op.
	Logger *zap.Logger
}

// Run executes Exe with args, reporting every stdout line through rep.
func (r *Runner) Run(ctx context.Context, rep progress.Reporter, args ...string) error {
	log := r.Logger
	if log == nil {
		log = zap.NewNop()
	}

	cmd := exec.CommandContext(ctx, r.Exe, args...)
	cmd.Dir = r.Dir
	// Grandchildren can keep stderr open after a cancelled child is killed.
	cmd.WaitDelay = waitDelay

	var stderr tailBuffer
	cmd.Stderr = &stderr

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("stdout pipe: %w", err)
	}

	log.Info("running build command", zap.String("exe", r.Exe), zap.Strings("args", args), zap.String("dir", r.Dir))
	if err := cmd.Start(); err != nil {
		return &ExitError{Command: r.Exe, Args: args, Err: err}
	}

	// Cancellation closes the read end so a grandchild holding stdout
	// cannot block the reads below.
	stop := context.AfterFunc(ctx, func() { _ = stdout.Close() })
	streamErr := Stream(stdout, rep)
	if streamErr != nil {
		// Keep the pipe drained so the process can run to exit.
		_, _ = io.Copy(io.Discard, stdout)
	}
	stop()

	if err := cmd.Wait(); err != nil {
		return &ExitError{Command: r.Exe, Args: args, Stderr: stderr.String(), Err: err}
	}
	return streamErr
}

// tailBuffer keeps only the last stderrTail bytes written to it.
type tailBuffer struct {
	buf []byte
}

func (t *tailBuffer) Write(p []byte) (int, error) {
	t.buf = append(t.buf, p...)
	if over := len(t.buf) - stderrTail; over > 0 {
		t.buf = t.buf[over:]
	}
	return len(p), nil
}

func (t *tailBuffer) String() string {
	return strings.TrimSpace(string(t.buf))
}
