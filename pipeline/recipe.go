package pipeline

import (
	"fmt"
	"path/filepath"
	"strings"

	ffmpeg "github.com/u2takey/ffmpeg-go"
)

// Invocation is one external-tool command within a render pipeline, already
// resolved to an argument list. The program is always the one media tool;
// sequencing and error propagation belong to the worker, not to the recipes.
type Invocation struct {
	Stage      string
	Args       []string
	OutputPath string
}

const (
	mixOutputName  = "playlist.mp3"
	loopOutputName = "long_playlist.mp3"
)

// MixInvocation builds the crossfade stage: normalize every input to
// fltp/44100/stereo, then fold the inputs pairwise left-to-right with an
// equal-power (triangular) crossfade. N inputs produce exactly N-1 merges.
func MixInvocation(cfg RenderConfig, workDir string) Invocation {
	out := filepath.Join(workDir, mixOutputName)

	var parts []string
	labels := make([]string, len(cfg.SourceAudio))
	for i := range cfg.SourceAudio {
		labels[i] = fmt.Sprintf("s%d", i)
		parts = append(parts, fmt.Sprintf("[%d:a]aformat=sample_fmts=fltp:sample_rates=44100:channel_layouts=stereo[%s]", i, labels[i]))
	}
	prev := labels[0]
	for i := 1; i < len(labels); i++ {
		merged := fmt.Sprintf("f%d", i)
		parts = append(parts, fmt.Sprintf("[%s][%s]acrossfade=d=%d:c1=tri:c2=tri[%s]", prev, labels[i], cfg.CrossfadeSec, merged))
		prev = merged
	}
	parts = append(parts, fmt.Sprintf("[%s]anull[aout]", prev))

	inputs := make([]*ffmpeg.Stream, len(cfg.SourceAudio))
	for i, p := range cfg.SourceAudio {
		inputs[i] = ffmpeg.Input(p)
	}
	args := ffmpeg.Output(inputs, out, ffmpeg.KwArgs{
		"filter_complex": strings.Join(parts, "; "),
		"map":            "[aout]",
		"ar":             44100,
		"ac":             2,
		"c:a":            "libmp3lame",
		"b:a":            cfg.AudioBitrate,
	}).OverWriteOutput().GetArgs()

	return Invocation{Stage: StageMixing, Args: args, OutputPath: out}
}

// LoopInvocation builds the duration stage for loops > 0: repeat the whole
// mixed track `loops` additional times with a stream copy, no re-encoding.
// When zero additional loops are needed the worker skips this invocation and
// passes the mixed track through unchanged.
func LoopInvocation(mixPath, workDir string, loops int) Invocation {
	out := filepath.Join(workDir, loopOutputName)
	args := ffmpeg.Input(mixPath, ffmpeg.KwArgs{"stream_loop": loops}).
		Output(out, ffmpeg.KwArgs{"c": "copy"}).
		OverWriteOutput().GetArgs()
	return Invocation{Stage: StageLooping, Args: args, OutputPath: out}
}

// AdditionalLoops computes how many extra repeats of a track of length
// trackSec are needed to reach targetSec: ceil(target/track)-1, never
// negative.
func AdditionalLoops(targetSec int, trackSec float64) int {
	if trackSec <= 0 {
		return 0
	}
	repeats := int(float64(targetSec) / trackSec)
	if float64(repeats)*trackSec < float64(targetSec) {
		repeats++
	}
	if repeats <= 1 {
		return 0
	}
	return repeats - 1
}

// CompositeInvocation builds the final render: the looped background (still
// image held for the whole duration, or video looped indefinitely) combined
// with the audio track, with an optional corner logo overlay. Length is
// governed by the shorter of the looped visual and the audio.
func CompositeInvocation(cfg RenderConfig, audioPath, workDir string) Invocation {
	out := filepath.Join(workDir, cfg.Basename+".mp4")

	outputArgs := ffmpeg.KwArgs{
		"c:v":      "libx264",
		"preset":   cfg.Preset,
		"c:a":      "aac",
		"b:a":      cfg.AudioBitrate,
		"shortest": "",
		"pix_fmt":  "yuv420p",
	}

	var background *ffmpeg.Stream
	if cfg.UsesVideoBackground() {
		background = ffmpeg.Input(cfg.VideoBackground, ffmpeg.KwArgs{"stream_loop": -1})
	} else {
		background = ffmpeg.Input(cfg.ImageBackground, ffmpeg.KwArgs{"loop": 1})
		outputArgs["tune"] = "stillimage"
	}

	var args []string
	if cfg.LogoPath != "" {
		outputArgs["filter_complex"] = overlayFilter(cfg.LogoPosition, cfg.LogoScalePct, cfg.LogoOpacityPct, cfg.Resolution)
		outputArgs["map"] = []string{"[vout]", "2:a"}
		inputs := []*ffmpeg.Stream{background, ffmpeg.Input(cfg.LogoPath), ffmpeg.Input(audioPath)}
		args = ffmpeg.Output(inputs, out, outputArgs).OverWriteOutput().GetArgs()
	} else {
		outputArgs["vf"] = fmt.Sprintf("scale=%s", strings.Replace(cfg.Resolution, "x", ":", 1))
		inputs := []*ffmpeg.Stream{background, ffmpeg.Input(audioPath)}
		args = ffmpeg.Output(inputs, out, outputArgs).OverWriteOutput().GetArgs()
	}

	return Invocation{Stage: StageCompositing, Args: args, OutputPath: out}
}

// overlayFilter scales the logo to a percentage of its own width, multiplies
// its alpha by the clamped opacity, anchors it at one of the four corners
// with a fixed margin, and scales the composed frame to the target
// resolution inside the same graph to avoid -vf conflicts.
func overlayFilter(pos LogoPosition, scalePct, opacityPct int, resolution string) string {
	width, height := "1920", "1080"
	if parts := strings.SplitN(resolution, "x", 2); len(parts) == 2 {
		width, height = parts[0], parts[1]
	}

	xExpr, yExpr := "10", "10"
	switch pos {
	case LogoTopRight:
		xExpr, yExpr = "W-w-10", "10"
	case LogoBottomLeft:
		xExpr, yExpr = "10", "H-h-10"
	case LogoBottomRight:
		xExpr, yExpr = "W-w-10", "H-h-10"
	}

	alpha := float64(opacityPct) / 100.0
	if alpha < 0.1 {
		alpha = 0.1
	}
	if alpha > 1.0 {
		alpha = 1.0
	}

	return fmt.Sprintf(
		"[1:v]format=rgba,scale=w=iw*%d/100:h=-1,colorchannelmixer=aa=%.2f[l2];"+
			"[0:v][l2]overlay=x=%s:y=%s:format=auto,scale=%s:%s,setsar=1[vout]",
		scalePct, alpha, xExpr, yExpr, width, height)
}
