package local

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/aescanero/scenegen/pkg/domain"
	"go.uber.org/zap"
)

// diagnosticLimit caps the command output kept in a failure diagnostic
const diagnosticLimit = 4000

var identifier = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Config holds executor settings.
//
// Command arguments may contain the placeholders {file}, {name}, {dir} and
// {media_dir}, replaced per run. PublicBaseURL is the public address of
// MediaDir itself; videos are expected under videos/<name>/<quality>/.
type Config struct {
	Command        []string
	WorkRoot       string
	MediaDir       string
	PublicBaseURL  string
	Quality        string
	DefaultTimeout time.Duration
	KeepWorkDirs   bool
}

// Executor implements ports.Executor by running a local command
type Executor struct {
	cfg    Config
	logger *zap.Logger
}

// NewExecutor creates a new local executor
func NewExecutor(cfg Config, logger *zap.Logger) (*Executor, error) {
	if len(cfg.Command) == 0 {
		return nil, errors.New("sandbox command is required")
	}
	if cfg.WorkRoot == "" {
		cfg.WorkRoot = os.TempDir()
	}
	if err := os.MkdirAll(cfg.WorkRoot, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create work root: %w", err)
	}
	return &Executor{cfg: cfg, logger: logger}, nil
}

// Execute writes the artifact to a scratch directory and runs the command.
// Invalid names, non-zero exits and timeouts are Failure outcomes; an error
// means the sandbox could not be used at all.
func (e *Executor) Execute(ctx context.Context, artifact domain.Artifact, timeout time.Duration) (domain.ExecutionOutcome, error) {
	if !identifier.MatchString(artifact.Name) {
		return domain.Failure(fmt.Sprintf(
			"invalid scene name %q: the scene class name must be a valid Python identifier", artifact.Name)), nil
	}
	if timeout <= 0 {
		timeout = e.cfg.DefaultTimeout
	}

	dir, err := os.MkdirTemp(e.cfg.WorkRoot, "run-")
	if err != nil {
		return domain.ExecutionOutcome{}, fmt.Errorf("failed to create run directory: %w", err)
	}
	if !e.cfg.KeepWorkDirs {
		defer os.RemoveAll(dir)
	}

	file := filepath.Join(dir, artifact.Name+".py")
	if err := os.WriteFile(file, []byte(artifact.Source), 0o644); err != nil {
		return domain.ExecutionOutcome{}, fmt.Errorf("failed to write artifact: %w", err)
	}

	runCtx := ctx
	if timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	args := e.expand(file, artifact.Name, dir)
	cmd := exec.CommandContext(runCtx, args[0], args[1:]...)
	cmd.Dir = dir
	cmd.WaitDelay = time.Second
	var output bytes.Buffer
	cmd.Stdout = &output
	cmd.Stderr = &output

	logger := e.logger.With(zap.String("scene", artifact.Name), zap.String("dir", dir))
	logger.Debug("running sandbox command", zap.Strings("args", args))

	err = cmd.Run()
	switch {
	case err == nil:
		locator := e.locator(artifact.Name)
		logger.Info("sandbox run succeeded", zap.String("locator", locator))
		return domain.Success(locator), nil

	case errors.Is(runCtx.Err(), context.DeadlineExceeded):
		logger.Warn("sandbox run timed out", zap.Duration("timeout", timeout))
		return domain.Failure(fmt.Sprintf("execution timed out after %s\n%s", timeout, tail(output.String()))), nil

	case ctx.Err() != nil:
		return domain.ExecutionOutcome{}, ctx.Err()
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		logger.Info("sandbox run failed", zap.Int("exit_code", exitErr.ExitCode()))
		return domain.Failure(tail(output.String())), nil
	}

	return domain.ExecutionOutcome{}, fmt.Errorf("failed to run sandbox command: %w", err)
}

func (e *Executor) expand(file, name, dir string) []string {
	r := strings.NewReplacer(
		"{file}", file,
		"{name}", name,
		"{dir}", dir,
		"{media_dir}", e.cfg.MediaDir,
	)
	args := make([]string, len(e.cfg.Command))
	for i, a := range e.cfg.Command {
		args[i] = r.Replace(a)
	}
	return args
}

// locator is where the rendered video is published
func (e *Executor) locator(name string) string {
	base := strings.TrimRight(e.cfg.PublicBaseURL, "/")
	return fmt.Sprintf("%s/videos/%s/%s/%s.mp4", base, name, e.cfg.Quality, name)
}

// tail keeps the end of the output, where tracebacks put the error
func tail(s string) string {
	s = strings.TrimSpace(s)
	if len(s) <= diagnosticLimit {
		return s
	}
	return "..." + s[len(s)-diagnosticLimit:]
}
