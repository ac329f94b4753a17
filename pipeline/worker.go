package pipeline

import (
	stderrors "errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/JayyDeveloper/lofimix/catalog"
	"github.com/JayyDeveloper/lofimix/errors"
	"github.com/JayyDeveloper/lofimix/log"
	"github.com/JayyDeveloper/lofimix/metrics"
)

// runRender executes the full pipeline for one job: mix, loop, composite.
// Terminal on first failure, no retries. Every exit path releases the
// scheduler slot so the queue keeps moving.
func (c *Coordinator) runRender(job *Job) {
	defer c.release(job.ID)

	err := c.renderStages(job)
	switch {
	case err == nil:
		metrics.Metrics.RenderJobResults.WithLabelValues("done").Inc()
		log.Log(job.ID, "render finished", "output", job.OutputPath())
	case errors.IsCanceled(err):
		job.finishCanceled()
		metrics.Metrics.RenderJobResults.WithLabelValues("canceled").Inc()
		log.Log(job.ID, "render canceled")
	default:
		job.finishFailed(err.Error())
		metrics.Metrics.RenderJobResults.WithLabelValues("failed").Inc()
		log.LogError(job.ID, "render failed", err)
	}
}

func (c *Coordinator) renderStages(job *Job) error {
	cfg := job.Config

	// Step 1: crossfade the tracks into one continuous playlist.
	mix := MixInvocation(cfg, job.WorkDir)
	if err := c.runStage(job, mix, "FFmpeg crossfade failed"); err != nil {
		return err
	}

	// Step 2: measure and loop to the target length.
	job.setStage(StageLooping)
	trackSec, err := c.prober.Duration(job.ID, mix.OutputPath)
	if err != nil {
		return err
	}
	targetSec := cfg.TargetMinutes * 60
	if targetSec < 60 {
		targetSec = 60
	}
	job.setTarget(targetSec)

	audioPath := mix.OutputPath
	if loops := AdditionalLoops(targetSec, trackSec); loops > 0 {
		loop := LoopInvocation(mix.OutputPath, job.WorkDir, loops)
		if err := c.runStage(job, loop, "FFmpeg audio loop failed"); err != nil {
			return err
		}
		audioPath = loop.OutputPath
	} else {
		log.Log(job.ID, "mixed track already covers target duration", "track_sec", trackSec, "target_sec", targetSec)
		if job.IsCanceled() {
			return errors.ErrCanceled
		}
	}

	// Step 3: render the video.
	composite := CompositeInvocation(cfg, audioPath, job.WorkDir)
	if err := c.runStage(job, composite, "FFmpeg video render failed"); err != nil {
		return err
	}

	job.finishDone(composite.OutputPath)
	_, err = c.catalog.Register(job.ID, composite.OutputPath, filepath.Base(composite.OutputPath), catalog.ProvenanceRendered)
	if err != nil {
		// The render itself succeeded; a catalog miss only affects streaming.
		log.LogError(job.ID, "failed to register output in catalog", err)
	}
	return nil
}

// runStage executes one invocation through the process runner. The
// cancellation flag is checked before spawning and again after a clean exit,
// so a cancel that lands at any point still wins over a zero exit code.
func (c *Coordinator) runStage(job *Job, inv Invocation, failureMsg string) error {
	if job.IsCanceled() {
		return errors.ErrCanceled
	}
	job.setStage(inv.Stage)
	log.Log(job.ID, "starting pipeline stage", "stage", inv.Stage, "output", inv.OutputPath)

	start := time.Now()
	code, err := c.runner.Run(job.ID, inv.Args, job.ObserveLine, job.IsCanceled, job.attachProcess)
	job.detachProcess()
	metrics.Metrics.RenderStageDurationSec.
		WithLabelValues(inv.Stage, fmt.Sprint(err == nil && code == 0)).
		Observe(time.Since(start).Seconds())

	if err != nil {
		// Spawn failure: reported the same way as a stage failure but kept
		// distinguishable in logs and by errors.Is.
		if stderrors.Is(err, errors.ErrProcessSpawn) {
			log.LogError(job.ID, "could not launch external tool", err, "stage", inv.Stage)
		}
		return err
	}
	if job.IsCanceled() {
		return errors.ErrCanceled
	}
	if code != 0 {
		return fmt.Errorf("%s: %w", failureMsg, stageError(inv.Stage, code, job.lastOutputLine()))
	}
	return nil
}
