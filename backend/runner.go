// Copyright (c) 2026 TTBT Enterprises LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package backend

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"sync"
	"time"
)

const (
	// DefaultRunTimeout bounds one driver run.
	DefaultRunTimeout = 180 * time.Second

	// Time allowed for output pipes to drain after the driver is killed.
	runWaitDelay = 2 * time.Second
)

// Runner executes the booking driver as a subprocess.
type Runner struct {
	Path    string
	Args    []string
	Timeout time.Duration
	// Dir is the working directory of the driver. Empty means the
	// server's working directory.
	Dir string
}

// RunResult is the outcome of one driver execution.
type RunResult struct {
	// Output is the combined stdout and stderr of the driver.
	Output   string
	ExitCode int
	TimedOut bool
	// Err is set when the driver could not be run to completion. A non-zero
	// exit status is not an error.
	Err      error
	Started  time.Time
	Duration time.Duration
}

// Run starts the driver and waits for it to exit or for the timeout to
// expire. Output is copied to sink as it is produced when sink is not nil.
func (r *Runner) Run(ctx context.Context, sink io.Writer) RunResult {
	timeout := r.Timeout
	if timeout <= 0 {
		timeout = DefaultRunTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	out := &outputWriter{sink: sink}

	cmd := exec.CommandContext(ctx, r.Path, r.Args...)
	cmd.Dir = r.Dir
	cmd.Stdout = out
	cmd.Stderr = out
	cmd.WaitDelay = runWaitDelay

	res := RunResult{ExitCode: -1, Started: time.Now()}
	err := cmd.Run()
	res.Duration = time.Since(res.Started)
	res.Output = out.String()

	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		res.TimedOut = true
		res.Err = fmt.Errorf("driver did not finish within %v", timeout)
		return res
	}

	var exitErr *exec.ExitError
	switch {
	case err == nil:
		res.ExitCode = 0
	case errors.As(err, &exitErr) && exitErr.Exited():
		res.ExitCode = exitErr.ExitCode()
	default:
		res.Err = fmt.Errorf("running %s: %w", r.Path, err)
	}
	return res
}

// outputWriter records everything and forwards to sink until sink fails.
// A broken sink never stops the driver.
type outputWriter struct {
	mu       sync.Mutex
	buf      bytes.Buffer
	sink     io.Writer
	sinkDead bool
}

func (w *outputWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.buf.Write(p)
	if w.sink != nil && !w.sinkDead {
		if _, err := w.sink.Write(p); err != nil {
			w.sinkDead = true
		}
	}
	return len(p), nil
}

func (w *outputWriter) String() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.buf.String()
}
