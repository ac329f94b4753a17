package pipeline

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/JayyDeveloper/lofimix/catalog"
)

type fakeProber struct {
	duration float64
	err      error
}

func (p fakeProber) Duration(jobID, path string) (float64, error) {
	return p.duration, p.err
}

func writeFakeTool(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "fake-ffmpeg.sh")
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+body+"\n"), 0o755))
	return path
}

func newTestCoordinator(t *testing.T, toolBody string) *Coordinator {
	t.Helper()
	runner := NewRunner(writeFakeTool(t, toolBody))
	// long mixed track so the loop stage is skipped
	return NewCoordinator(runner, fakeProber{duration: 7200}, catalog.New(), t.TempDir())
}

func waitForDone(t *testing.T, c *Coordinator, jobID string) JobStatus {
	t.Helper()
	require.Eventually(t, func() bool {
		s, err := c.Status(jobID, false)
		return err == nil && s.Done
	}, 10*time.Second, 20*time.Millisecond)
	s, err := c.Status(jobID, false)
	require.NoError(t, err)
	return s
}

func TestCoordinatorRunsJobsFIFO(t *testing.T) {
	c := newTestCoordinator(t, "sleep 1")

	first, err := c.Admit(baseConfig())
	require.NoError(t, err)
	second, err := c.Admit(baseConfig())
	require.NoError(t, err)
	third, err := c.Admit(baseConfig())
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return c.RunningJobID() == first.ID
	}, 5*time.Second, 10*time.Millisecond)

	secondStatus, err := c.Status(second.ID, false)
	require.NoError(t, err)
	require.NotNil(t, secondStatus.QueuePos)
	require.Equal(t, 1, *secondStatus.QueuePos)

	thirdStatus, err := c.Status(third.ID, false)
	require.NoError(t, err)
	require.NotNil(t, thirdStatus.QueuePos)
	require.Equal(t, 2, *thirdStatus.QueuePos)

	firstStatus, err := c.Status(first.ID, false)
	require.NoError(t, err)
	require.NotNil(t, firstStatus.QueuePos)
	require.Equal(t, QueuePosRunning, *firstStatus.QueuePos)

	for _, id := range []string{first.ID, second.ID, third.ID} {
		s := waitForDone(t, c, id)
		require.Equal(t, StageDone, s.Stage)
		require.Nil(t, s.QueuePos)
	}
}

func TestCoordinatorAdmitRejectsInvalidConfig(t *testing.T) {
	c := newTestCoordinator(t, "exit 0")

	cfg := baseConfig()
	cfg.SourceAudio = cfg.SourceAudio[:1]
	_, err := c.Admit(cfg)
	require.Error(t, err)
	require.Zero(t, c.Jobs.Count())
}

func TestCoordinatorCancelPendingJob(t *testing.T) {
	c := newTestCoordinator(t, "sleep 1")

	first, err := c.Admit(baseConfig())
	require.NoError(t, err)
	second, err := c.Admit(baseConfig())
	require.NoError(t, err)

	require.NoError(t, c.Cancel(second.ID))

	s, err := c.Status(second.ID, false)
	require.NoError(t, err)
	require.True(t, s.Done)
	require.True(t, s.Canceled)
	require.Equal(t, StageCanceled, s.Stage)
	require.Nil(t, s.QueuePos)

	// cancel is idempotent
	require.NoError(t, c.Cancel(second.ID))

	firstStatus := waitForDone(t, c, first.ID)
	require.Equal(t, StageDone, firstStatus.Stage)
}

func TestCoordinatorCancelRunningJob(t *testing.T) {
	c := newTestCoordinator(t, "i=0; while [ $i -lt 30 ]; do echo tick; sleep 1; i=$((i+1)); done")

	job, err := c.Admit(baseConfig())
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		s, err := c.Status(job.ID, false)
		return err == nil && s.Progress == "tick"
	}, 5*time.Second, 10*time.Millisecond)

	require.NoError(t, c.Cancel(job.ID))

	s := waitForDone(t, c, job.ID)
	require.True(t, s.Canceled)
	require.Equal(t, StageCanceled, s.Stage)
	require.Empty(t, c.RunningJobID())
}

func TestCoordinatorFailedJobPromotesNext(t *testing.T) {
	c := newTestCoordinator(t, "echo kaboom; exit 7")

	first, err := c.Admit(baseConfig())
	require.NoError(t, err)
	second, err := c.Admit(baseConfig())
	require.NoError(t, err)

	firstStatus := waitForDone(t, c, first.ID)
	require.Equal(t, StageFailed, firstStatus.Stage)
	require.NotNil(t, firstStatus.Error)
	require.Contains(t, *firstStatus.Error, "FFmpeg crossfade failed")
	require.Contains(t, *firstStatus.Error, "kaboom")

	secondStatus := waitForDone(t, c, second.ID)
	require.Equal(t, StageFailed, secondStatus.Stage)
}

func TestCoordinatorUnknownJob(t *testing.T) {
	c := newTestCoordinator(t, "exit 0")

	_, err := c.Status("no-such-job", false)
	require.Error(t, err)
	require.Error(t, c.Cancel("no-such-job"))
}

func TestCoordinatorListOrdersRunningThenPendingThenFinished(t *testing.T) {
	c := newTestCoordinator(t, "sleep 1")

	first, err := c.Admit(baseConfig())
	require.NoError(t, err)
	second, err := c.Admit(baseConfig())
	require.NoError(t, err)
	third, err := c.Admit(baseConfig())
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return c.RunningJobID() == first.ID
	}, 5*time.Second, 10*time.Millisecond)

	list := c.List()
	require.Len(t, list, 3)
	require.Equal(t, first.ID, list[0].ID)
	require.Equal(t, second.ID, list[1].ID)
	require.Equal(t, third.ID, list[2].ID)

	for _, id := range []string{first.ID, second.ID, third.ID} {
		waitForDone(t, c, id)
	}
	require.Len(t, c.List(), 3)
}
