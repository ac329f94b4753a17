package config

import (
	"flag"
	"net/url"
	"time"
)

// Version is overridden at build time with ldflags.
var Version = "unknown"

type Cli struct {
	HTTPAddress      string
	PromAddress      string
	APIToken         string
	ScratchDir       string
	ScratchRetention time.Duration
	UploadDir        string

	FFmpegPath  string
	FFprobePath string

	// Default ingest destination used when a stream-start request does not
	// carry its own resolved tuple. Empty means no destination is
	// configured and explicit tuples are required.
	IngestURL   *url.URL
	IngestKey   string
	WatchURL    string
	BroadcastID string
}

// HasDefaultIngest reports whether the CLI carries a usable default ingest
// destination.
func (c *Cli) HasDefaultIngest() bool {
	return c.IngestURL != nil && c.IngestURL.String() != "" && c.IngestKey != ""
}

func parseURL(s string, dest **url.URL) error {
	if s == "" {
		*dest = nil
		return nil
	}
	u, err := url.Parse(s)
	if err != nil {
		return err
	}
	if _, err = url.ParseQuery(u.RawQuery); err != nil {
		return err
	}
	*dest = u
	return nil
}

func URLVarFlag(fs *flag.FlagSet, dest **url.URL, name, value, usage string) {
	if err := parseURL(value, dest); err != nil {
		panic(err)
	}
	fs.Func(name, usage, func(s string) error {
		return parseURL(s, dest)
	})
}
