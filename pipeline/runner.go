package pipeline

import (
	"bufio"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"syscall"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/JayyDeveloper/lofimix/errors"
	"github.com/JayyDeveloper/lofimix/log"
)

// CanceledExitCode is returned when the process was killed before the
// external tool could report its own exit code.
const CanceledExitCode = -1

const DefaultKillGracePeriod = 5 * time.Second

// LineSink receives each output line of the supervised process, in order,
// before the cancellation flag is checked for that line.
type LineSink func(line string)

// Runner launches one external command with merged stdout/stderr captured as
// a line stream. It is the only component that holds a live process handle
// for the render pipeline.
type Runner struct {
	Program         string
	KillGracePeriod time.Duration
	Clock           clock.Clock
}

func NewRunner(program string) *Runner {
	return &Runner{
		Program:         program,
		KillGracePeriod: DefaultKillGracePeriod,
		Clock:           clock.New(),
	}
}

// Run executes the command and streams its combined output to sink. When the
// canceled flag becomes true mid-run the process is asked to terminate, the
// remaining output keeps draining, and the process is force-killed after the
// grace period if it has not exited.
//
// A non-zero exit code is not an error at this layer; only a failure to
// spawn is. The attach callback receives the live process handle right after
// a successful spawn so the caller can expose it while the stage runs.
func (r *Runner) Run(jobID string, args []string, sink LineSink, canceled func() bool, attach func(*os.Process)) (int, error) {
	cmd := exec.Command(r.Program, args...)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return 0, fmt.Errorf("%w: failed to open stdout pipe: %s", errors.ErrProcessSpawn, err)
	}
	cmd.Stderr = cmd.Stdout

	if err := cmd.Start(); err != nil {
		return 0, fmt.Errorf("%w: failed to start %s: %s", errors.ErrProcessSpawn, r.Program, err)
	}
	if attach != nil {
		attach(cmd.Process)
	}
	log.Log(jobID, "spawned external process", "program", r.Program, "pid", cmd.Process.Pid)

	var killTimer *clock.Timer
	terminated := false

	scanner := bufio.NewScanner(stdout)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r")
		// Forward the line before checking cancellation so the caller
		// always sees the final output even when the flag fires
		// concurrently.
		sink(line)
		if !terminated && canceled() {
			terminated = true
			if err := cmd.Process.Signal(syscall.SIGTERM); err != nil {
				log.LogError(jobID, "failed to signal process, killing", err, "pid", cmd.Process.Pid)
				_ = cmd.Process.Kill()
			}
			proc := cmd.Process
			killTimer = r.Clock.AfterFunc(r.KillGracePeriod, func() {
				_ = proc.Kill()
			})
		}
	}
	if err := scanner.Err(); err != nil {
		log.LogError(jobID, "error draining process output", err)
	}

	waitErr := cmd.Wait()
	if killTimer != nil {
		killTimer.Stop()
	}

	code := cmd.ProcessState.ExitCode()
	if code < 0 {
		// Killed by a signal before reporting an exit code.
		code = CanceledExitCode
	}
	if waitErr != nil {
		log.Log(jobID, "external process exited", "program", r.Program, "exit_code", code, "err", waitErr.Error())
	} else {
		log.Log(jobID, "external process exited", "program", r.Program, "exit_code", code)
	}
	return code, nil
}
