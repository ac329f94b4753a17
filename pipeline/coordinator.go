package pipeline

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/JayyDeveloper/lofimix/cache"
	"github.com/JayyDeveloper/lofimix/catalog"
	"github.com/JayyDeveloper/lofimix/config"
	"github.com/JayyDeveloper/lofimix/errors"
	"github.com/JayyDeveloper/lofimix/log"
	"github.com/JayyDeveloper/lofimix/metrics"
	"github.com/JayyDeveloper/lofimix/video"
)

// QueuePosRunning is the sentinel queue position reported for the currently
// running job. Pending jobs report their 1-based index.
const QueuePosRunning = 0

// Coordinator owns the FIFO of pending job IDs and the single running slot.
// It admits jobs, promotes the head of the queue when the slot frees, and
// guarantees at most one render worker goroutine system-wide. It never
// blocks on execution; the actual work happens in a per-job goroutine.
type Coordinator struct {
	Jobs *cache.Cache[*Job]

	runner  *Runner
	prober  video.Prober
	catalog *catalog.Catalog

	scratchDir string

	mu      sync.Mutex
	pending []string
	running string
}

func NewCoordinator(runner *Runner, prober video.Prober, cat *catalog.Catalog, scratchDir string) *Coordinator {
	return &Coordinator{
		Jobs:       cache.New[*Job](),
		runner:     runner,
		prober:     prober,
		catalog:    cat,
		scratchDir: scratchDir,
	}
}

// Admit validates the configuration, creates the job record in queued state
// and attempts promotion. Returns immediately; the render proceeds
// asynchronously. Validation failures create no job record.
func (c *Coordinator) Admit(cfg RenderConfig) (*Job, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	id := uuid.New().String()
	workDir, err := config.NewJobWorkDir(c.scratchDir, id)
	if err != nil {
		return nil, err
	}

	job := newJob(id, cfg, workDir)
	c.Jobs.Store(id, job)
	log.AddContext(id, "basename", cfg.Basename)
	log.Log(id, "admitted render job", "sources", len(cfg.SourceAudio), "target_minutes", cfg.TargetMinutes)

	c.mu.Lock()
	c.pending = append(c.pending, id)
	metrics.Metrics.QueueLength.Set(float64(len(c.pending)))
	c.promoteIfIdle()
	c.mu.Unlock()

	return job, nil
}

// promoteIfIdle pops queued IDs until it finds one that is not already
// canceled and starts its worker. Callers must hold c.mu.
func (c *Coordinator) promoteIfIdle() {
	if c.running != "" {
		return
	}
	for len(c.pending) > 0 {
		id := c.pending[0]
		c.pending = c.pending[1:]
		metrics.Metrics.QueueLength.Set(float64(len(c.pending)))

		job := c.Jobs.Get(id)
		if job == nil {
			continue
		}
		if job.IsCanceled() {
			job.finishCanceled()
			metrics.Metrics.RenderJobResults.WithLabelValues("canceled").Inc()
			continue
		}

		c.running = id
		job.setStage(StageStarting)
		go func() {
			if err := recovered(func() error {
				c.runRender(job)
				return nil
			}); err != nil {
				job.finishFailed(err.Error())
				c.release(job.ID)
			}
		}()
		return
	}
}

// release frees the running slot if it belongs to jobID and promotes the
// next pending job. Called by the worker on every terminal path.
func (c *Coordinator) release(jobID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.running == jobID {
		c.running = ""
	}
	c.promoteIfIdle()
}

// Cancel flags the job for cooperative cancellation. A still-pending job is
// dropped from the queue directly; a running one is terminated at the next
// runner poll or stage boundary. Idempotent: canceling a finished or already
// canceled job succeeds.
func (c *Coordinator) Cancel(jobID string) error {
	job := c.Jobs.Get(jobID)
	if job == nil {
		return fmt.Errorf("%w: job %s", errors.ErrNotFound, jobID)
	}
	job.Cancel()

	c.mu.Lock()
	for i, id := range c.pending {
		if id == jobID {
			c.pending = append(c.pending[:i], c.pending[i+1:]...)
			metrics.Metrics.QueueLength.Set(float64(len(c.pending)))
			job.finishCanceled()
			metrics.Metrics.RenderJobResults.WithLabelValues("canceled").Inc()
			break
		}
	}
	c.mu.Unlock()

	log.Log(jobID, "cancellation requested")
	return nil
}

// QueuePosition reports the job's place in line: 1-based index for pending
// jobs, QueuePosRunning for the running one, nil for finished or unknown.
func (c *Coordinator) QueuePosition(jobID string) *int {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i, id := range c.pending {
		if id == jobID {
			pos := i + 1
			return &pos
		}
	}
	if c.running == jobID {
		pos := QueuePosRunning
		return &pos
	}
	return nil
}

// Status returns the job snapshot with the queue position filled in, or an
// error for unknown IDs.
func (c *Coordinator) Status(jobID string, includeLog bool) (JobStatus, error) {
	job := c.Jobs.Get(jobID)
	if job == nil {
		return JobStatus{}, fmt.Errorf("%w: job %s", errors.ErrNotFound, jobID)
	}
	s := job.Status(includeLog)
	s.QueuePos = c.QueuePosition(jobID)
	return s, nil
}

// List snapshots every known job without logs, ordered for operator display:
// the running job first, then pending jobs by queue position, then finished
// ones newest first.
func (c *Coordinator) List() []JobStatus {
	jobs := c.Jobs.GetAll()
	type row struct {
		status  JobStatus
		created time.Time
	}
	rows := make([]row, 0, len(jobs))
	for _, job := range jobs {
		s := job.Status(false)
		s.QueuePos = c.QueuePosition(job.ID)
		rows = append(rows, row{status: s, created: job.CreatedAt})
	}
	sort.Slice(rows, func(i, j int) bool {
		a, b := rows[i], rows[j]
		ra, rb := listRank(a.status), listRank(b.status)
		if ra != rb {
			return ra < rb
		}
		if ra == 1 {
			return *a.status.QueuePos < *b.status.QueuePos
		}
		return a.created.After(b.created)
	})
	out := make([]JobStatus, len(rows))
	for i, r := range rows {
		out[i] = r.status
	}
	return out
}

func listRank(s JobStatus) int {
	switch {
	case s.QueuePos != nil && *s.QueuePos == QueuePosRunning:
		return 0
	case s.QueuePos != nil:
		return 1
	default:
		return 2
	}
}

// RunningJobID returns the ID in the running slot, or "" when idle.
func (c *Coordinator) RunningJobID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.running
}

func recovered(f func() error) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			log.LogNoJobID("panic in render worker goroutine, recovering", "err", rec)
			err = fmt.Errorf("panic in render worker: %v", rec)
		}
	}()
	return f()
}
