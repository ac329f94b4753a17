package stream

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/JayyDeveloper/lofimix/cache"
	"github.com/JayyDeveloper/lofimix/errors"
	"github.com/JayyDeveloper/lofimix/log"
	"github.com/JayyDeveloper/lofimix/metrics"
)

type Status string

const (
	StatusStarting  Status = "starting"
	StatusStreaming Status = "streaming"
	StatusStopped   Status = "stopped"
)

const DefaultStopGracePeriod = 5 * time.Second

// Handle is the state of one live push, keyed by the catalog video ID being
// streamed. At most one live process per handle.
type Handle struct {
	VideoID     string
	Destination Destination
	StartedAt   time.Time

	mu         sync.Mutex
	status     Status
	lastOutput string
	proc       *os.Process
	done       chan struct{}
}

func (h *Handle) active() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.proc != nil
}

func (h *Handle) observeLine(line string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.lastOutput = line
}

func (h *Handle) markStopped() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.proc != nil {
		h.proc = nil
		metrics.Metrics.ActiveStreams.Dec()
	}
	h.status = StatusStopped
}

// StatusInfo is the supervisor's answer to a status query.
type StatusInfo struct {
	Active      bool   `json:"active"`
	Status      Status `json:"status,omitempty"`
	WatchURL    string `json:"watch_url,omitempty"`
	BroadcastID string `json:"broadcast_id,omitempty"`
	StartedAt   *int64 `json:"started_at,omitempty"`
	LastOutput  string `json:"last_output,omitempty"`
}

// Supervisor owns zero-or-one continuous push process per stream key.
// Streams for different keys are fully independent; starting the same key
// twice while active is rejected, never queued.
type Supervisor struct {
	FFmpegPath      string
	StopGracePeriod time.Duration
	Clock           clock.Clock

	mu      sync.Mutex
	handles *cache.Cache[*Handle]
}

func NewSupervisor(ffmpegPath string) *Supervisor {
	return &Supervisor{
		FFmpegPath:      ffmpegPath,
		StopGracePeriod: DefaultStopGracePeriod,
		Clock:           clock.New(),
		handles:         cache.New[*Handle](),
	}
}

// Start spawns the continuous push process for videoPath: read at native
// rate, loop indefinitely, push to the ingest destination. A detached
// monitor drains output into the handle and flips it to stopped when the
// process exits for any reason.
func (s *Supervisor) Start(videoID, videoPath string, dest Destination) (*Handle, error) {
	if err := dest.Validate(); err != nil {
		metrics.Metrics.StreamStartResults.WithLabelValues("destination_error").Inc()
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if existing := s.handles.Get(videoID); existing != nil && existing.active() {
		metrics.Metrics.StreamStartResults.WithLabelValues("already_active").Inc()
		return nil, fmt.Errorf("%w: video %s", errors.ErrStreamActive, videoID)
	}

	cmd := exec.Command(s.FFmpegPath, pushArgs(videoPath, dest)...)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		metrics.Metrics.StreamStartResults.WithLabelValues("spawn_error").Inc()
		return nil, fmt.Errorf("%w: failed to open stdout pipe: %s", errors.ErrProcessSpawn, err)
	}
	cmd.Stderr = cmd.Stdout

	if err := cmd.Start(); err != nil {
		metrics.Metrics.StreamStartResults.WithLabelValues("spawn_error").Inc()
		return nil, fmt.Errorf("%w: failed to start push process: %s", errors.ErrProcessSpawn, err)
	}

	handle := &Handle{
		VideoID:     videoID,
		Destination: dest,
		StartedAt:   time.Now(),
		status:      StatusStreaming,
		proc:        cmd.Process,
		done:        make(chan struct{}),
	}
	s.handles.Store(videoID, handle)
	metrics.Metrics.ActiveStreams.Inc()
	metrics.Metrics.StreamStartResults.WithLabelValues("started").Inc()
	log.Log(videoID, "started live push", "pid", cmd.Process.Pid, "watch_url", dest.WatchURL)

	go s.monitor(handle, cmd, stdout)
	return handle, nil
}

// monitor drains the push process's output and records the exit. Process
// exit for any reason (operator stop, crash, ingest endpoint closing the
// connection) is treated uniformly as stopped; no auto-restart.
func (s *Supervisor) monitor(h *Handle, cmd *exec.Cmd, output io.Reader) {
	defer close(h.done)

	scanner := bufio.NewScanner(output)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		h.observeLine(strings.TrimRight(scanner.Text(), "\r"))
	}
	err := cmd.Wait()
	h.markStopped()

	if err != nil {
		log.Log(h.VideoID, "live push exited", "err", err.Error(), "last_output", h.lastLine())
	} else {
		log.Log(h.VideoID, "live push exited cleanly", "last_output", h.lastLine())
	}
}

func (h *Handle) lastLine() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.lastOutput
}

// Stop requests graceful termination, waits the grace period, then force
// kills. Reports not-found when no process is attached for the key.
func (s *Supervisor) Stop(videoID string) error {
	handle := s.handles.Get(videoID)
	if handle == nil {
		return fmt.Errorf("%w: no active stream for video %s", errors.ErrNotFound, videoID)
	}

	handle.mu.Lock()
	proc := handle.proc
	handle.mu.Unlock()
	if proc == nil {
		return fmt.Errorf("%w: no active stream for video %s", errors.ErrNotFound, videoID)
	}

	log.Log(videoID, "stopping live push", "pid", proc.Pid)
	if err := proc.Signal(syscall.SIGTERM); err != nil {
		_ = proc.Kill()
	}

	select {
	case <-handle.done:
	case <-s.Clock.After(s.StopGracePeriod):
		_ = proc.Kill()
		<-handle.done
	}
	return nil
}

// Status reports the stream state for a key. An absent key is "not active",
// not an error.
func (s *Supervisor) Status(videoID string) StatusInfo {
	handle := s.handles.Get(videoID)
	if handle == nil {
		return StatusInfo{Active: false}
	}
	handle.mu.Lock()
	defer handle.mu.Unlock()
	started := handle.StartedAt.Unix()
	return StatusInfo{
		Active:      handle.proc != nil,
		Status:      handle.status,
		WatchURL:    handle.Destination.WatchURL,
		BroadcastID: handle.Destination.BroadcastID,
		StartedAt:   &started,
		LastOutput:  handle.lastOutput,
	}
}
