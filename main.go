package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/peterbourgon/ff/v3"
	"golang.org/x/sync/errgroup"

	"github.com/JayyDeveloper/lofimix/api"
	"github.com/JayyDeveloper/lofimix/catalog"
	"github.com/JayyDeveloper/lofimix/config"
	"github.com/JayyDeveloper/lofimix/log"
	"github.com/JayyDeveloper/lofimix/metrics"
	"github.com/JayyDeveloper/lofimix/pipeline"
	"github.com/JayyDeveloper/lofimix/pprof"
	"github.com/JayyDeveloper/lofimix/stream"
	"github.com/JayyDeveloper/lofimix/video"
)

func main() {
	fs := flag.NewFlagSet("lofimix", flag.ExitOnError)
	cli := config.Cli{}

	version := fs.Bool("version", false, "print application version")

	// listen addresses
	fs.StringVar(&cli.HTTPAddress, "http-addr", "0.0.0.0:8787", "Address to bind for the render and stream HTTP API")
	fs.StringVar(&cli.PromAddress, "prom-addr", "127.0.0.1:2112", "Address to bind for Prometheus metrics")

	// lofimix parameters
	fs.StringVar(&cli.APIToken, "api-token", "IAmAuthorized", "Auth header value for API access")
	fs.StringVar(&cli.ScratchDir, "scratch-dir", os.TempDir(), "Directory for per-job render work dirs")
	fs.DurationVar(&cli.ScratchRetention, "scratch-retention", config.DefaultScratchRetention, "Max age of abandoned render work dirs before startup cleanup removes them")
	fs.StringVar(&cli.UploadDir, "upload-dir", "", "Directory where separately uploaded videos are expected to land")
	fs.StringVar(&cli.FFmpegPath, "ffmpeg-path", "ffmpeg", "Path to the ffmpeg binary")
	fs.StringVar(&cli.FFprobePath, "ffprobe-path", "ffprobe", "Path to the ffprobe binary")

	// default stream destination, optional
	config.URLVarFlag(fs, &cli.IngestURL, "ingest-url", "", "Default RTMP ingest URL for live pushes")
	fs.StringVar(&cli.IngestKey, "ingest-key", "", "Default RTMP stream key for live pushes")
	fs.StringVar(&cli.WatchURL, "watch-url", "", "Public watch page URL reported in stream status")
	fs.StringVar(&cli.BroadcastID, "broadcast-id", "", "Broadcast identifier reported in stream status")

	pprofPort := fs.Int("pprof-port", 6061, "Pprof listen port")

	_ = fs.String("config", "", "config file (optional)")

	err := ff.Parse(fs, os.Args[1:],
		ff.WithConfigFileFlag("config"),
		ff.WithConfigFileParser(ff.PlainParser),
		ff.WithEnvVarPrefix("LOFIMIX"),
	)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error parsing cli: %s\n", err)
		os.Exit(1)
	}
	if len(fs.Args()) > 0 {
		fmt.Fprintf(os.Stderr, "unexpected extra arguments on command line: %v\n", fs.Args())
		os.Exit(1)
	}

	if *version {
		fmt.Printf("lofimix version: %s\n", config.Version)
		return
	}

	go func() {
		log.LogNoJobID("pprof stopped", "err", pprof.ListenAndServe(*pprofPort))
	}()

	if err := config.CleanUpScratchDirs(cli.ScratchDir, cli.ScratchRetention); err != nil {
		log.LogNoJobID("failed to clean up scratch dirs", "err", err)
	}

	video.SetFFprobePath(cli.FFprobePath)

	cat := catalog.New()
	runner := pipeline.NewRunner(cli.FFmpegPath)
	engine := pipeline.NewCoordinator(runner, video.Probe{}, cat, cli.ScratchDir)
	supervisor := stream.NewSupervisor(cli.FFmpegPath)

	var resolver stream.Resolver
	if cli.HasDefaultIngest() {
		resolver = &stream.StaticResolver{
			Destination: stream.Destination{
				IngestURL:   cli.IngestURL.String(),
				IngestKey:   cli.IngestKey,
				WatchURL:    cli.WatchURL,
				BroadcastID: cli.BroadcastID,
			},
		}
	} else {
		log.LogNoJobID("no default ingest destination configured, stream starts must carry their own")
	}

	group, ctx := errgroup.WithContext(context.Background())

	group.Go(func() error {
		return handleSignals(ctx)
	})

	group.Go(func() error {
		return api.ListenAndServe(ctx, cli, engine, cat, supervisor, resolver)
	})

	group.Go(func() error {
		return metrics.ListenAndServe(cli.PromAddress)
	})

	err = group.Wait()
	log.LogNoJobID("shutting down", "err", err)
}

func handleSignals(ctx context.Context) error {
	c := make(chan os.Signal, 1)
	signal.Notify(c, syscall.SIGQUIT, syscall.SIGTERM, syscall.SIGINT)
	for {
		select {
		case s := <-c:
			log.LogNoJobID("caught signal, attempting clean shutdown", "signal", s.String())
			return fmt.Errorf("caught signal=%v", s)
		case <-ctx.Done():
			return nil
		}
	}
}
