package pipeline

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRenderConfigValidate(t *testing.T) {
	require.NoError(t, baseConfig().Validate())

	testCases := map[string]func(*RenderConfig){
		"one source track":     func(c *RenderConfig) { c.SourceAudio = c.SourceAudio[:1] },
		"blank source track":   func(c *RenderConfig) { c.SourceAudio = []string{"/in/a.mp3", " "} },
		"both backgrounds":     func(c *RenderConfig) { c.VideoBackground = "/in/bg.mp4" },
		"no background":        func(c *RenderConfig) { c.ImageBackground = "" },
		"negative crossfade":   func(c *RenderConfig) { c.CrossfadeSec = -1 },
		"target too short":     func(c *RenderConfig) { c.TargetMinutes = 4 },
		"bad resolution":       func(c *RenderConfig) { c.Resolution = "widescreen" },
		"missing abitrate":     func(c *RenderConfig) { c.AudioBitrate = "" },
		"missing preset":       func(c *RenderConfig) { c.Preset = "" },
		"missing basename":     func(c *RenderConfig) { c.Basename = "  " },
		"logo without corner":  func(c *RenderConfig) { c.LogoPath = "/in/logo.png" },
		"logo scale too big":   func(c *RenderConfig) { c.LogoPath = "/in/logo.png"; c.LogoPosition = LogoTopLeft; c.LogoScalePct = 61; c.LogoOpacityPct = 50 },
		"logo opacity too low": func(c *RenderConfig) { c.LogoPath = "/in/logo.png"; c.LogoPosition = LogoTopLeft; c.LogoScalePct = 20; c.LogoOpacityPct = 9 },
	}
	for name, mutate := range testCases {
		t.Run(name, func(t *testing.T) {
			cfg := baseConfig()
			mutate(&cfg)
			require.Error(t, cfg.Validate())
		})
	}
}

func TestJobLogBufferTrimsToNewest(t *testing.T) {
	job := newJob("job-1", baseConfig(), "/tmp/work")
	for i := 0; i < maxLogLines+1; i++ {
		job.ObserveLine(fmt.Sprintf("line %d", i))
	}

	status := job.Status(true)
	require.Len(t, status.Log, trimmedLogLines)
	require.Equal(t, fmt.Sprintf("line %d", maxLogLines+1-trimmedLogLines), status.Log[0])
	require.Equal(t, fmt.Sprintf("line %d", maxLogLines), status.Log[len(status.Log)-1])
	require.Equal(t, fmt.Sprintf("line %d", maxLogLines), status.Progress)
}

func TestJobStatusLifecycle(t *testing.T) {
	job := newJob("job-1", baseConfig(), "/tmp/work")

	status := job.Status(false)
	require.Equal(t, StageQueued, status.Stage)
	require.False(t, status.Done)
	require.Nil(t, status.Error)
	require.Nil(t, status.TargetSec)
	require.False(t, status.OutputReady)
	require.Empty(t, status.Log)

	job.setStage(StageMixing)
	job.setTarget(3600)
	status = job.Status(false)
	require.Equal(t, StageMixing, status.Stage)
	require.NotNil(t, status.TargetSec)
	require.Equal(t, 3600, *status.TargetSec)

	job.finishDone("/tmp/work/lofi_mix.mp4")
	status = job.Status(false)
	require.True(t, status.Done)
	require.True(t, status.OutputReady)
	require.Equal(t, StageDone, status.Stage)
}

func TestJobStatusFailed(t *testing.T) {
	job := newJob("job-1", baseConfig(), "/tmp/work")
	job.finishFailed("FFmpeg crossfade failed")

	status := job.Status(false)
	require.True(t, status.Done)
	require.NotNil(t, status.Error)
	require.Equal(t, "FFmpeg crossfade failed", *status.Error)
	require.Equal(t, StageFailed, status.Stage)
	require.False(t, status.OutputReady)
}

func TestJobStatusCanceled(t *testing.T) {
	job := newJob("job-1", baseConfig(), "/tmp/work")
	job.finishCanceled()

	status := job.Status(false)
	require.True(t, status.Done)
	require.True(t, status.Canceled)
	require.Equal(t, StageCanceled, status.Stage)
}
