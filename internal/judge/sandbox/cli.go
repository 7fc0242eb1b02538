package sandbox

import (
	"bytes"
	"context"
	"errors"
	"os"
	"os/exec"
	"time"

	apperrors "codearena/pkg/errors"
)

const (
	// DefaultCLITimeout caps the wall time of a CLI execution.
	DefaultCLITimeout = 30 * time.Second
	// DefaultMaxOutput caps combined captured output.
	DefaultMaxOutput = 10 << 20
)

// CLIConfig holds the settings for the local execution CLI fallback.
type CLIConfig struct {
	Path      string        `yaml:"path"`
	Timeout   time.Duration `yaml:"timeout"`
	MaxOutput int64         `yaml:"max_output"`
}

// CLIRunner shells out to the execution CLI: <cli> run <language> <path> -l <version>.
type CLIRunner struct {
	cfg CLIConfig
}

func NewCLIRunner(cfg CLIConfig) *CLIRunner {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultCLITimeout
	}
	if cfg.MaxOutput <= 0 {
		cfg.MaxOutput = DefaultMaxOutput
	}
	return &CLIRunner{cfg: cfg}
}

type cappedBuffer struct {
	buf bytes.Buffer
	max int64
}

var errOutputLimit = errors.New("output limit reached")

func (b *cappedBuffer) Write(p []byte) (int, error) {
	if int64(b.buf.Len())+int64(len(p)) > b.max {
		return 0, errOutputLimit
	}
	return b.buf.Write(p)
}

// Run executes the file through the CLI. A deadline overrun maps to
// ExecutionTimeout and a missing binary to SandboxCLIMissing, both of which
// the caller should treat as terminal.
func (r *CLIRunner) Run(ctx context.Context, language, path, version string) (*RunOutput, error) {
	ctx, cancel := context.WithTimeout(ctx, r.cfg.Timeout)
	defer cancel()

	stdout := &cappedBuffer{max: r.cfg.MaxOutput}
	stderr := &cappedBuffer{max: r.cfg.MaxOutput}

	cmd := exec.CommandContext(ctx, r.cfg.Path, "run", language, path, "-l", version)
	cmd.Stdout = stdout
	cmd.Stderr = stderr

	start := time.Now()
	err := cmd.Run()
	elapsed := time.Since(start)

	out := &RunOutput{
		Stdout:     stdout.buf.String(),
		Stderr:     stderr.buf.String(),
		WallTimeMS: elapsed.Milliseconds(),
		CompileOK:  true,
		Method:     "cli",
	}
	if ps := cmd.ProcessState; ps != nil {
		out.CPUTimeMS = (ps.UserTime() + ps.SystemTime()).Milliseconds()
	}

	if err != nil {
		switch {
		case ctx.Err() == context.DeadlineExceeded:
			return nil, apperrors.Wrapf(err, apperrors.ExecutionTimeout, "cli run exceeded %s", r.cfg.Timeout)
		case errors.Is(err, exec.ErrNotFound), errors.Is(err, os.ErrNotExist):
			return nil, apperrors.Wrapf(err, apperrors.SandboxCLIMissing, "cli path %q", r.cfg.Path)
		case errors.Is(err, errOutputLimit):
			return nil, apperrors.Wrapf(err, apperrors.OutputLimitReached, "cli output exceeded %d bytes", r.cfg.MaxOutput)
		}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			out.ExitCode = exitErr.ExitCode()
			return out, nil
		}
		return nil, apperrors.Wrapf(err, apperrors.ExecutionFailed, "cli run")
	}
	return out, nil
}
