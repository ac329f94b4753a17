package config

import (
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/JayyDeveloper/lofimix/log"
)

// Prefix used for per-job working directories under the scratch root. Lets
// the startup sweep tell our directories apart from anything else in a
// shared temp location.
const ScratchPrefix = "lofi_"

const DefaultScratchRetention = 48 * time.Hour

var r = rand.New(rand.NewSource(time.Now().UnixNano()))

func RandomTrailer(length int) string {
	const charset = "abcdefghijklmnopqrstuvwxyz0123456789"

	res := make([]byte, length)
	for i := 0; i < length; i++ {
		res[i] = charset[r.Intn(len(charset))]
	}
	return string(res)
}

// NewJobWorkDir creates the exclusive working directory for one render job.
func NewJobWorkDir(scratchRoot, jobID string) (string, error) {
	dir := filepath.Join(scratchRoot, fmt.Sprintf("%s%s_%s", ScratchPrefix, jobID, RandomTrailer(6)))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create job work dir: %w", err)
	}
	return dir, nil
}

// CleanUpScratchDirs removes leftover per-job directories older than maxAge.
// Run once at startup; jobs do not survive a restart so anything old enough
// is garbage from an interrupted run.
func CleanUpScratchDirs(scratchRoot string, maxAge time.Duration) error {
	entries, err := os.ReadDir(scratchRoot)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("error reading scratch root %s: %w", scratchRoot, err)
	}
	for _, entry := range entries {
		if !entry.IsDir() || !strings.HasPrefix(entry.Name(), ScratchPrefix) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if time.Since(info.ModTime()) > maxAge {
			path := filepath.Join(scratchRoot, entry.Name())
			if err := os.RemoveAll(path); err != nil {
				log.LogNoJobID("error removing stale scratch dir", "path", path, "err", err)
				continue
			}
			log.LogNoJobID("Cleaned up stale scratch dir", "path", path, "age", info.ModTime())
		}
	}
	return nil
}
