package stream

import "strings"

// pushArgs builds the continuous re-encode/push invocation: read the source
// at native playback rate, loop it indefinitely, and push to the ingest
// destination as FLV. Encoding parameters are fixed for ingest
// compatibility (keyframe every 2s at 30fps, constrained bitrate).
func pushArgs(videoPath string, dest Destination) []string {
	return []string{
		"-re",
		"-stream_loop", "-1",
		"-i", videoPath,
		"-c:v", "libx264",
		"-preset", "veryfast",
		"-b:v", "3000k",
		"-maxrate", "3000k",
		"-bufsize", "6000k",
		"-pix_fmt", "yuv420p",
		"-g", "60",
		"-c:a", "aac",
		"-b:a", "192k",
		"-ar", "44100",
		"-f", "flv",
		dest.fullIngestURL(),
	}
}

func (d Destination) fullIngestURL() string {
	return strings.TrimRight(d.IngestURL, "/") + "/" + d.IngestKey
}
