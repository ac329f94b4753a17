package video

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"gopkg.in/vansante/go-ffprobe.v2"

	"github.com/JayyDeveloper/lofimix/errors"
)

type Prober interface {
	Duration(jobID, path string) (float64, error)
}

// SetFFprobePath points the probe at a specific ffprobe binary instead of
// whatever is on PATH.
func SetFFprobePath(path string) {
	ffprobe.SetFFProbeBinPath(path)
}

type Probe struct{}

// Duration measures the container duration of a media file in seconds.
// Returns ErrMeasurement when ffprobe yields no usable value, which the
// render worker treats as a stage failure.
func (p Probe) Duration(jobID string, path string) (float64, error) {
	var data *ffprobe.ProbeData
	operation := func() error {
		probeCtx, probeCancel := context.WithTimeout(context.Background(), 60*time.Second)
		defer probeCancel()
		var err error
		data, err = ffprobe.ProbeURL(probeCtx, path, "-loglevel", "error")
		return err
	}

	backOff := backoff.NewExponentialBackOff()
	backOff.InitialInterval = 500 * time.Millisecond
	backOff.MaxInterval = 2 * time.Second
	backOff.MaxElapsedTime = 0 // don't impose a timeout as part of the retries
	if err := backoff.Retry(operation, backoff.WithMaxRetries(backOff, 3)); err != nil {
		return 0, fmt.Errorf("%w: error probing %s: %s", errors.ErrMeasurement, path, err)
	}

	if data.Format == nil {
		return 0, fmt.Errorf("%w: format information missing for %s", errors.ErrMeasurement, path)
	}
	duration := data.Format.DurationSeconds
	if duration <= 0 {
		return 0, fmt.Errorf("%w: no usable duration for %s", errors.ErrMeasurement, path)
	}
	return duration, nil
}
