package catalog

import (
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/JayyDeveloper/lofimix/cache"
	"github.com/JayyDeveloper/lofimix/errors"
	"github.com/JayyDeveloper/lofimix/log"
)

type Provenance string

const (
	ProvenanceRendered Provenance = "rendered"
	ProvenanceUploaded Provenance = "uploaded"
)

// Entry is one video file eligible for live streaming. Entries are never
// mutated after registration, only added or removed.
type Entry struct {
	ID         string     `json:"id"`
	Path       string     `json:"-"`
	Name       string     `json:"name"`
	SizeBytes  int64      `json:"size"`
	Provenance Provenance `json:"type"`
	CreatedAt  time.Time  `json:"created_at"`
}

// Catalog is the registry of stream-eligible video files, both rendered job
// outputs and separately uploaded files.
type Catalog struct {
	entries *cache.Cache[*Entry]
}

func New() *Catalog {
	return &Catalog{entries: cache.New[*Entry]()}
}

// Register adds a file to the catalog. The backing file must exist.
func (c *Catalog) Register(id, path, name string, provenance Provenance) (*Entry, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("cannot register %s: %w", path, err)
	}
	entry := &Entry{
		ID:         id,
		Path:       path,
		Name:       name,
		SizeBytes:  info.Size(),
		Provenance: provenance,
		CreatedAt:  time.Now(),
	}
	c.entries.Store(id, entry)
	log.Log(id, "registered video in catalog", "name", name, "provenance", provenance, "size", info.Size())
	return entry, nil
}

// Get returns the entry only if its backing file still exists.
func (c *Catalog) Get(id string) (*Entry, bool) {
	entry := c.entries.Get(id)
	if entry == nil {
		return nil, false
	}
	if _, err := os.Stat(entry.Path); err != nil {
		return nil, false
	}
	return entry, true
}

// List returns entries whose backing file currently exists, newest first.
func (c *Catalog) List() []*Entry {
	all := c.entries.GetAll()
	listed := make([]*Entry, 0, len(all))
	for _, entry := range all {
		if _, err := os.Stat(entry.Path); err != nil {
			continue
		}
		listed = append(listed, entry)
	}
	sort.Slice(listed, func(i, j int) bool {
		return listed[i].CreatedAt.After(listed[j].CreatedAt)
	})
	return listed
}

// Remove deletes an uploaded entry and its backing file. Rendered outputs
// are durable job artifacts: removing one is a rejected operation, not a
// silent no-op.
func (c *Catalog) Remove(id string) error {
	entry := c.entries.Get(id)
	if entry == nil {
		return fmt.Errorf("%w: video %s", errors.ErrNotFound, id)
	}
	if entry.Provenance != ProvenanceUploaded {
		return fmt.Errorf("%w: %s video %s", errors.ErrNotRemovable, entry.Provenance, id)
	}
	if err := os.Remove(entry.Path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove %s: %w", entry.Path, err)
	}
	c.entries.Remove(id)
	log.Log(id, "removed uploaded video from catalog", "name", entry.Name)
	return nil
}
