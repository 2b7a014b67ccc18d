package runner

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/fluxfuzzer/corefuzz/internal/harness"
	"github.com/fluxfuzzer/corefuzz/internal/memory"
	"github.com/fluxfuzzer/corefuzz/pkg/types"
)

// killGrace is the pause between SIGTERM and SIGKILL on timeout, per
// spec.md §4.C ("TERM, 0.5 s grace, then KILL").
const killGrace = 500 * time.Millisecond

// maxCapture bounds stdout/stderr capture per run. The capture buffers
// themselves draw their backing arrays from internal/memory's global
// byte-slice pool and are released back to it once copied out, so repeated
// runs don't accumulate GC pressure.
const maxCapture = 1 << 20 // 1MB

// Runner launches the target binary once per candidate/variant and
// normalizes the outcome, including AFL-protocol shared-memory coverage.
type Runner struct {
	TargetPath string
	Args       []string
	Mode       types.Mode
	Timeout    time.Duration
	WorkDir    string
	ArtifactDir string

	mu          sync.Mutex
	artifactSeq int64
}

// New constructs a Runner. workDir and artifactDir are created if absent.
func New(targetPath string, args []string, mode types.Mode, timeout time.Duration, workDir, artifactDir string) (*Runner, error) {
	if err := os.MkdirAll(workDir, 0o755); err != nil {
		return nil, fmt.Errorf("runner: workdir: %w", err)
	}
	if err := os.MkdirAll(artifactDir, 0o755); err != nil {
		return nil, fmt.Errorf("runner: artifactdir: %w", err)
	}
	return &Runner{
		TargetPath:  targetPath,
		Args:        args,
		Mode:        mode,
		Timeout:     timeout,
		WorkDir:     workDir,
		ArtifactDir: artifactDir,
	}, nil
}

// Run launches the target once against input, enforcing the timeout and
// process-group teardown, and returns a normalized Result.
func (r *Runner) Run(ctx context.Context, input []byte) Result {
	region, shmErr := harness.Alloc()
	defer func() {
		if region != nil {
			_ = region.Close()
		}
	}()

	runCtx, cancel := context.WithTimeout(ctx, r.Timeout)
	defer cancel()

	args := append([]string(nil), r.Args...)
	var tempPath string
	if r.Mode == types.ModeFile {
		var err error
		tempPath, err = r.writeTempInput(input)
		if err != nil {
			return Result{Status: types.StatusError, Err: err}
		}
		defer os.Remove(tempPath)
		substituted := false
		for i, a := range args {
			if strings.Contains(a, "@@") {
				args[i] = strings.ReplaceAll(a, "@@", tempPath)
				substituted = true
			}
		}
		if !substituted {
			args = append(args, tempPath)
		}
	}

	cmd := exec.CommandContext(runCtx, r.TargetPath, args...)
	cmd.Dir = r.WorkDir
	cmd.Env = os.Environ()
	if region != nil {
		cmd.Env = append(cmd.Env, region.EnvPair())
	}
	cmd.SysProcAttr = processGroupAttr()

	if r.Mode == types.ModeStdin {
		cmd.Stdin = bytes.NewReader(input)
	}

	stdout := memory.NewLimitedBuffer(maxCapture)
	stderr := memory.NewLimitedBuffer(maxCapture)
	cmd.Stdout = stdout
	cmd.Stderr = stderr

	start := time.Now()
	launchErr := cmd.Start()
	if launchErr != nil {
		return Result{Status: types.StatusError, Err: launchErr, Duration: time.Since(start)}
	}

	done := make(chan error, 1)
	go func() { done <- cmd.Wait() }()

	var waitErr error
	timedOut := false
	select {
	case waitErr = <-done:
	case <-runCtx.Done():
		timedOut = true
		r.terminateGroup(cmd)
		waitErr = <-done
	}
	duration := time.Since(start)

	exitCode, launchFailed := exitCodeFromErr(waitErr)
	status := classify(timedOut, launchFailed, exitCode)

	var coverage []byte
	if region != nil && shmErr == nil {
		covPath := filepath.Join(r.WorkDir, "coverage.bin")
		if data, err := region.Read(covPath); err == nil {
			coverage = data
		}
	}

	res := Result{
		Status:   status,
		ExitCode: exitCode,
		TimedOut: timedOut,
		Stdout:   append([]byte(nil), stdout.Bytes()...),
		Stderr:   append([]byte(nil), stderr.Bytes()...),
		Coverage: coverage,
		Duration: duration,
	}
	stdout.Release()
	stderr.Release()

	if status == types.StatusCrash {
		if path, err := r.saveArtifact(input, res.Stdout, res.Stderr); err == nil {
			res.ArtifactPath = path
		}
	}

	return res
}

func (r *Runner) writeTempInput(input []byte) (string, error) {
	name := filepath.Join(r.WorkDir, "in-"+uuid.NewString())
	if err := os.WriteFile(name, input, 0o644); err != nil {
		return "", err
	}
	return name, nil
}

func (r *Runner) terminateGroup(cmd *exec.Cmd) {
	if cmd.Process == nil {
		return
	}
	pid := cmd.Process.Pid
	_ = syscall.Kill(-pid, syscall.SIGTERM)
	time.Sleep(killGrace)
	_ = killProcessGroup(pid)
}

func (r *Runner) saveArtifact(input, stdout, stderr []byte) (string, error) {
	r.mu.Lock()
	r.artifactSeq++
	seq := r.artifactSeq
	r.mu.Unlock()

	name := filepath.Join(r.ArtifactDir, fmt.Sprintf("crash-%06d", seq))
	if err := os.WriteFile(name, input, 0o644); err != nil {
		return "", err
	}
	combined := append(append([]byte{}, stdout...), stderr...)
	_ = os.WriteFile(name+".output", combined, 0o644)
	return name, nil
}

func exitCodeFromErr(err error) (code int, launchFailed bool) {
	if err == nil {
		return 0, false
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode(), false
	}
	return -1, true
}
