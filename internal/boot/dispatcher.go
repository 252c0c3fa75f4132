// SPDX-License-Identifier: MPL-2.0

package boot

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/mlforge/mlforge/internal/container"
	"github.com/mlforge/mlforge/internal/issue"
	"github.com/mlforge/mlforge/pkg/types"
)

const (
	// maxRunAttempts bounds re-runs after transient container engine failures
	// (exit codes 125/126, rootless Podman races). The entrypoint script is
	// never re-run once it has started: any other exit code is final.
	maxRunAttempts = 3

	// baseRunBackoff is the delay before the second attempt. It doubles on
	// each subsequent attempt.
	baseRunBackoff = 500 * time.Millisecond
)

// ErrImageNotBuilt is the sentinel error wrapped by the Run preflight when
// the requested image is absent from the engine's local storage.
var ErrImageNotBuilt = errors.New("image not found in local storage")

// dispatchRunMu serializes container runs within this process when the
// cross-process flock is unavailable (non-Linux builds, lock file failure).
var dispatchRunMu sync.Mutex

type (
	// Dispatcher launches a built project image and relays the container
	// outcome to the caller. Arguments are handed to the engine verbatim so
	// they reach the registered entrypoint untouched, and the container's
	// exit status is reported as-is: a failing script is a result, not an
	// error.
	Dispatcher struct {
		engine      container.Engine
		stdin       io.Reader
		stdout      io.Writer
		stderr      io.Writer
		maxAttempts int
		baseBackoff time.Duration
	}

	// DispatcherOption configures a Dispatcher.
	DispatcherOption func(*Dispatcher)
)

// WithStdout routes container stdout to w instead of the process stdout.
func WithStdout(w io.Writer) DispatcherOption {
	return func(d *Dispatcher) { d.stdout = w }
}

// WithStderr routes container stderr to w instead of the process stderr.
func WithStderr(w io.Writer) DispatcherOption {
	return func(d *Dispatcher) { d.stderr = w }
}

// WithStdin wires r as the container stdin and enables interactive mode on
// the engine. The default is no stdin: dispatched runs are batch jobs, and
// the docker-api engine rejects interactive sessions.
func WithStdin(r io.Reader) DispatcherOption {
	return func(d *Dispatcher) { d.stdin = r }
}

// WithMaxAttempts overrides the transient-failure attempt budget.
func WithMaxAttempts(n int) DispatcherOption {
	return func(d *Dispatcher) {
		if n > 0 {
			d.maxAttempts = n
		}
	}
}

// WithBaseBackoff overrides the delay before the second attempt.
func WithBaseBackoff(delay time.Duration) DispatcherOption {
	return func(d *Dispatcher) {
		if delay > 0 {
			d.baseBackoff = delay
		}
	}
}

// NewDispatcher returns a Dispatcher that runs images through engine.
// Container output goes to the process stdout/stderr unless overridden.
func NewDispatcher(engine container.Engine, opts ...DispatcherOption) *Dispatcher {
	d := &Dispatcher{
		engine:      engine,
		stdout:      os.Stdout,
		stderr:      os.Stderr,
		maxAttempts: maxRunAttempts,
		baseBackoff: baseRunBackoff,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Run starts a container from image, appends args verbatim after the image
// reference, waits for exit, and returns the container's exit code. A nil
// or empty args runs the bare entrypoint.
//
// The returned error is non-nil only when the run could not happen at all:
// invalid image tag, image absent from local storage, or an engine failure
// that survived the transient retry budget. The entrypoint script exiting
// non-zero is reported through the exit code with a nil error.
func (d *Dispatcher) Run(ctx context.Context, image container.ImageTag, args []string) (types.ExitCode, error) {
	if err := image.Validate(); err != nil {
		return 1, err
	}

	exists, err := d.engine.ImageExists(ctx, image)
	if err != nil {
		return 1, fmt.Errorf("failed to check local images for %s: %w", image, err)
	}
	if !exists {
		return 1, missingImageError(image, d.engine.Name())
	}

	runOpts := container.RunOptions{
		Image:       image,
		Command:     args,
		Remove:      true,
		Stdin:       d.stdin,
		Stdout:      d.stdout,
		Stderr:      d.stderr,
		Interactive: d.stdin != nil,
	}

	result, err := d.runWithRetry(ctx, runOpts)
	if err != nil {
		return 1, fmt.Errorf("failed to run container: %w", err)
	}
	if result.Error != nil {
		return result.ExitCode, result.Error
	}
	return result.ExitCode, nil
}

// runWithRetry wraps engine.Run with retry logic for transient container
// engine errors (rootless Podman ping_group_range race, exit code 125,
// overlay mount races). The caller's context deadline naturally bounds
// total retry time.
//
// engine.Run() absorbs exit statuses into result.ExitCode and returns nil
// for the error return, so transient OCI failures (e.g., the crun
// ping_group_range race surfacing as exit code 126) appear as
// result.ExitCode != 0 with err == nil. The retry logic checks both the
// error return and the result exit code.
//
// Stderr is buffered per-attempt so that transient error messages from the
// container engine (written to the inherited stderr fd before this process
// can decide to retry) never leak to the user's terminal. On success or
// non-transient failure the buffer is flushed to the caller's stderr.
func (d *Dispatcher) runWithRetry(ctx context.Context, runOpts container.RunOptions) (*container.RunResult, error) {
	// The ping_group_range race only affects rootless Podman. Serialize runs
	// when the engine implements SysctlOverrideChecker but the override isn't
	// active (podman-remote, non-Linux, temp file failure). Engines that don't
	// implement the checker (Docker) don't suffer from this race and skip
	// serialization entirely.
	//
	// On Linux, acquireRunLock() provides cross-process serialization via
	// flock so that concurrent mlforge processes don't race. On non-Linux,
	// flock is unavailable and we fall back to sync.Mutex for intra-process
	// protection only.
	if checker, ok := d.engine.(container.SysctlOverrideChecker); ok && !checker.SysctlOverrideActive() {
		lock, lockErr := acquireRunLock()
		if lockErr != nil {
			if errors.Is(lockErr, errFlockUnavailable) {
				slog.Debug("flock unavailable, falling back to in-process mutex", "error", lockErr)
			} else {
				slog.Warn("flock acquisition failed, falling back to in-process mutex", "error", lockErr)
			}
			dispatchRunMu.Lock()
			defer dispatchRunMu.Unlock()
		} else {
			defer lock.Release()
		}
	}

	originalStderr := runOpts.Stderr

	var lastErr error
	var lastResult *container.RunResult
	var lastStderrBuf *bytes.Buffer
	for attempt := range d.maxAttempts {
		if attempt > 0 {
			if err := ctx.Err(); err != nil {
				return nil, fmt.Errorf("context cancelled during run retry: %w", err)
			}
			time.Sleep(d.baseBackoff * time.Duration(1<<(attempt-1)))
		}

		var stderrBuf bytes.Buffer
		runOpts.Stderr = &stderrBuf

		result, err := d.engine.Run(ctx, runOpts)
		if err != nil {
			if !container.IsTransientError(err) {
				flushStderr(originalStderr, &stderrBuf)
				return nil, err
			}
			slog.Debug("transient container error, retrying",
				"attempt", attempt+1, "maxAttempts", d.maxAttempts, "error", err)
			lastErr = err
			lastStderrBuf = &stderrBuf
			continue
		}

		// engine.Run() returns exit-code failures in result rather than err.
		// Check for transient engine exit codes (125 = generic engine error,
		// 126 = OCI runtime failure e.g., crun ping_group_range race).
		if result.ExitCode == 0 || !isTransientExitCode(result.ExitCode) {
			flushStderr(originalStderr, &stderrBuf)
			return result, nil
		}

		slog.Debug("transient container exit code, retrying",
			"attempt", attempt+1, "maxAttempts", d.maxAttempts, "exitCode", result.ExitCode)
		lastResult = result
		lastStderrBuf = &stderrBuf
	}

	// Flush stderr from the final attempt so the user gets diagnostic output
	// even after all retries are exhausted.
	if lastStderrBuf != nil {
		flushStderr(originalStderr, lastStderrBuf)
	}

	if lastErr != nil {
		return nil, lastErr
	}
	return lastResult, nil
}

// flushStderr writes buffered stderr content to the original writer.
// If dst is nil (e.g., caller didn't provide stderr), the buffer is silently
// discarded. Write failures are non-fatal (stderr may be a closed pipe) and
// logged at debug level.
func flushStderr(dst io.Writer, src *bytes.Buffer) {
	if dst == nil || src.Len() == 0 {
		return
	}
	if _, err := io.Copy(dst, src); err != nil {
		slog.Debug("failed to flush stderr buffer", "error", err)
	}
}

// isTransientExitCode reports whether a container exit code indicates a
// transient engine error that may succeed on retry. These codes come from
// the container engine, not from the entrypoint script inside the container.
//
//   - 125: generic container engine error (Docker/Podman convention)
//   - 126: OCI runtime error (e.g., crun ping_group_range race on rootless Podman)
func isTransientExitCode(code types.ExitCode) bool {
	return code == 125 || code == 126
}

// missingImageError reports a run attempted against an image that has not
// been built by this engine yet.
func missingImageError(image container.ImageTag, engine string) error {
	cause := fmt.Errorf("%w: %s", ErrImageNotBuilt, image)
	return issue.NewErrorContext().
		WithOperation("run container").
		WithResource(string(image)).
		WithSuggestion("Build the image first (try: mlforge build)").
		WithSuggestion("List local images to check the tag (try: " + engine + " images)").
		Wrap(cause).
		BuildError()
}
