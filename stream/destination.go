package stream

import (
	"fmt"
	"time"

	"github.com/JayyDeveloper/lofimix/errors"
)

// Destination is an already-resolved ingest target. How the tuple was
// obtained (broadcast creation, authorization flow) is the collaborator's
// business; the supervisor only pushes to it.
type Destination struct {
	IngestURL   string `json:"ingest_url"`
	IngestKey   string `json:"ingest_key"`
	WatchURL    string `json:"watch_url,omitempty"`
	BroadcastID string `json:"broadcast_id,omitempty"`
}

func (d Destination) Validate() error {
	if d.IngestURL == "" || d.IngestKey == "" {
		return fmt.Errorf("%w: ingest url and key are required", errors.ErrStreamDestination)
	}
	return nil
}

// Resolver supplies a Destination for a video when the start request does
// not carry one. A nil Resolver means the capability is absent and explicit
// tuples are required.
type Resolver interface {
	Resolve(videoID string) (Destination, error)
}

// StaticResolver hands out one fixed destination, optionally gated on a
// fresh credential. Covers the common operator setup of a single persistent
// ingest endpoint configured at startup.
type StaticResolver struct {
	Destination Destination

	// Optional credential gate. When Refresh is set, Resolve refuses to
	// hand out the destination unless the stored credential is (or can be
	// refreshed to be) valid, and persists the refreshed copy.
	Credential Credential
	Refresh    RefreshFunc
	Persist    func(Credential) error
}

func (r *StaticResolver) Resolve(videoID string) (Destination, error) {
	if r.Refresh != nil {
		fresh, updated, err := EnsureFreshCredential(r.Credential, time.Now(), r.Refresh)
		if err != nil {
			return Destination{}, fmt.Errorf("%w: %s", errors.ErrStreamDestination, err)
		}
		if updated != nil {
			r.Credential = fresh
			if r.Persist != nil {
				if err := r.Persist(fresh); err != nil {
					return Destination{}, fmt.Errorf("%w: failed to persist refreshed credential: %s", errors.ErrStreamDestination, err)
				}
			}
		}
	}
	if err := r.Destination.Validate(); err != nil {
		return Destination{}, err
	}
	return r.Destination, nil
}
