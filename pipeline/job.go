package pipeline

import (
	"fmt"
	"os"
	"regexp"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/JayyDeveloper/lofimix/errors"
)

// Stage labels surfaced to status queries.
const (
	StageQueued      = "Queued..."
	StageStarting    = "Starting..."
	StageMixing      = "Step 1: Crossfading tracks..."
	StageLooping     = "Step 2: Looping playlist..."
	StageCompositing = "Step 3: Rendering video..."
	StageDone        = "Done"
	StageCanceled    = "Canceled"
	StageFailed      = "Failed"
)

// Log buffer cap: once maxLogLines is exceeded only the newest
// trimmedLogLines are retained.
const (
	maxLogLines     = 2000
	trimmedLogLines = 1000
)

type LogoPosition string

const (
	LogoTopLeft     LogoPosition = "top-left"
	LogoTopRight    LogoPosition = "top-right"
	LogoBottomLeft  LogoPosition = "bottom-left"
	LogoBottomRight LogoPosition = "bottom-right"
)

func (p LogoPosition) IsValid() bool {
	switch p {
	case LogoTopLeft, LogoTopRight, LogoBottomLeft, LogoBottomRight:
		return true
	default:
		return false
	}
}

var resolutionRegex = regexp.MustCompile(`^\d{2,5}x\d{2,5}$`)

// RenderConfig is the declarative description of one render, resolved from
// user input before admission. All paths point at files the caller has
// already placed on disk.
type RenderConfig struct {
	SourceAudio     []string `json:"source_audio"`
	ImageBackground string   `json:"image_bg,omitempty"`
	VideoBackground string   `json:"video_bg,omitempty"`
	CrossfadeSec    int      `json:"crossfade"`
	TargetMinutes   int      `json:"target_minutes"`
	Resolution      string   `json:"resolution"`
	AudioBitrate    string   `json:"abitrate"`
	Preset          string   `json:"preset"`
	Basename        string   `json:"basename"`

	LogoPath       string       `json:"logo_png,omitempty"`
	LogoPosition   LogoPosition `json:"logo_pos,omitempty"`
	LogoScalePct   int          `json:"logo_scale,omitempty"`
	LogoOpacityPct int          `json:"logo_opacity,omitempty"`
}

func (c RenderConfig) UsesVideoBackground() bool {
	return c.VideoBackground != ""
}

func (c RenderConfig) Validate() error {
	if len(c.SourceAudio) < 2 {
		return errors.Validation("at least 2 source audio files are required, got %d", len(c.SourceAudio))
	}
	for _, p := range c.SourceAudio {
		if strings.TrimSpace(p) == "" {
			return errors.Validation("source audio paths must be non-empty")
		}
	}
	if (c.ImageBackground == "") == (c.VideoBackground == "") {
		return errors.Validation("exactly one of image_bg or video_bg must be set")
	}
	if c.CrossfadeSec < 0 {
		return errors.Validation("crossfade must be >= 0, got %d", c.CrossfadeSec)
	}
	if c.TargetMinutes < 5 {
		return errors.Validation("target_minutes must be >= 5, got %d", c.TargetMinutes)
	}
	if !resolutionRegex.MatchString(c.Resolution) {
		return errors.Validation("resolution must be WIDTHxHEIGHT, got %q", c.Resolution)
	}
	if c.AudioBitrate == "" {
		return errors.Validation("abitrate is required")
	}
	if c.Preset == "" {
		return errors.Validation("preset is required")
	}
	if strings.TrimSpace(c.Basename) == "" {
		return errors.Validation("basename is required")
	}
	if c.LogoPath != "" {
		if !c.LogoPosition.IsValid() {
			return errors.Validation("logo_pos must be one of the four corners, got %q", c.LogoPosition)
		}
		if c.LogoScalePct < 5 || c.LogoScalePct > 60 {
			return errors.Validation("logo_scale must be within [5,60], got %d", c.LogoScalePct)
		}
		if c.LogoOpacityPct < 10 || c.LogoOpacityPct > 100 {
			return errors.Validation("logo_opacity must be within [10,100], got %d", c.LogoOpacityPct)
		}
	}
	return nil
}

// Job is the mutable state of one render request. The scheduler mutates the
// queue bookkeeping; the single worker goroutine owning the running job
// mutates everything else. Status readers take the record lock only long
// enough to snapshot.
type Job struct {
	ID        string
	Config    RenderConfig
	WorkDir   string
	CreatedAt time.Time

	canceled atomic.Bool

	mu         sync.Mutex
	stage      string
	progress   string
	logLines   []string
	targetSec  int
	done       bool
	errMsg     string
	outputPath string
	proc       *os.Process
}

// JobStatus is a point-in-time snapshot of a Job for status queries.
type JobStatus struct {
	ID          string   `json:"id"`
	Stage       string   `json:"stage"`
	Progress    string   `json:"progress"`
	Done        bool     `json:"done"`
	Error       *string  `json:"error"`
	OutputReady bool     `json:"outfile"`
	TargetSec   *int     `json:"target"`
	Canceled    bool     `json:"canceled"`
	Log         []string `json:"log,omitempty"`
	QueuePos    *int     `json:"queue_pos"`
}

func newJob(id string, cfg RenderConfig, workDir string) *Job {
	return &Job{
		ID:        id,
		Config:    cfg,
		WorkDir:   workDir,
		CreatedAt: time.Now(),
		stage:     StageQueued,
	}
}

// Cancel flips the cooperative cancellation flag. Takes effect at the next
// process-output poll or stage boundary.
func (j *Job) Cancel() {
	j.canceled.Store(true)
}

func (j *Job) IsCanceled() bool {
	return j.canceled.Load()
}

func (j *Job) setStage(stage string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.stage = stage
}

func (j *Job) setTarget(seconds int) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.targetSec = seconds
}

// ObserveLine is the runner's output sink: tracks the last progress line and
// appends to the bounded log buffer.
func (j *Job) ObserveLine(line string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.progress = line
	j.logLines = append(j.logLines, line)
	if len(j.logLines) > maxLogLines {
		kept := make([]string, trimmedLogLines)
		copy(kept, j.logLines[len(j.logLines)-trimmedLogLines:])
		j.logLines = kept
	}
}

func (j *Job) attachProcess(p *os.Process) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.proc = p
}

func (j *Job) detachProcess() {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.proc = nil
}

func (j *Job) hasProcess() bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.proc != nil
}

func (j *Job) finishDone(outputPath string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.stage = StageDone
	j.outputPath = outputPath
	j.done = true
	j.proc = nil
}

func (j *Job) finishFailed(msg string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.stage = StageFailed
	j.errMsg = msg
	j.done = true
	j.proc = nil
}

func (j *Job) finishCanceled() {
	j.canceled.Store(true)
	j.mu.Lock()
	defer j.mu.Unlock()
	j.stage = StageCanceled
	j.done = true
	j.proc = nil
}

func (j *Job) OutputPath() string {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.outputPath
}

// Status snapshots the job. The queue position is owned by the scheduler and
// filled in by the caller.
func (j *Job) Status(includeLog bool) JobStatus {
	j.mu.Lock()
	defer j.mu.Unlock()
	s := JobStatus{
		ID:          j.ID,
		Stage:       j.stage,
		Progress:    j.progress,
		Done:        j.done,
		OutputReady: j.outputPath != "",
		Canceled:    j.canceled.Load(),
	}
	if j.errMsg != "" {
		msg := j.errMsg
		s.Error = &msg
	}
	if j.targetSec > 0 {
		target := j.targetSec
		s.TargetSec = &target
	}
	if includeLog {
		s.Log = make([]string, len(j.logLines))
		copy(s.Log, j.logLines)
	}
	return s
}

func (j *Job) lastOutputLine() string {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.progress
}

func stageError(stage string, exitCode int, lastLine string) error {
	if lastLine != "" {
		return fmt.Errorf("%w: %s exited with code %d: %s", errors.ErrPipelineStage, stage, exitCode, lastLine)
	}
	return fmt.Errorf("%w: %s exited with code %d", errors.ErrPipelineStage, stage, exitCode)
}
