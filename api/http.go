package api

import (
	"context"
	"net/http"
	"time"

	"github.com/julienschmidt/httprouter"

	"github.com/JayyDeveloper/lofimix/catalog"
	"github.com/JayyDeveloper/lofimix/config"
	"github.com/JayyDeveloper/lofimix/handlers"
	"github.com/JayyDeveloper/lofimix/log"
	"github.com/JayyDeveloper/lofimix/middleware"
	"github.com/JayyDeveloper/lofimix/pipeline"
	"github.com/JayyDeveloper/lofimix/stream"
)

func ListenAndServe(ctx context.Context, cli config.Cli, engine *pipeline.Coordinator, cat *catalog.Catalog, supervisor *stream.Supervisor, resolver stream.Resolver) error {
	router := NewLofimixAPIRouter(cli, engine, cat, supervisor, resolver)
	server := http.Server{Addr: cli.HTTPAddress, Handler: router}
	ctx, cancel := context.WithCancel(ctx)

	log.LogNoJobID(
		"Starting Lofimix API!",
		"version", config.Version,
		"host", cli.HTTPAddress,
	)

	var err error
	go func() {
		err = server.ListenAndServe()
		cancel()
	}()

	<-ctx.Done()
	if err != nil {
		return err
	}

	ctx, cancel = context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(ctx)
}

func NewLofimixAPIRouter(cli config.Cli, engine *pipeline.Coordinator, cat *catalog.Catalog, supervisor *stream.Supervisor, resolver stream.Resolver) *httprouter.Router {
	router := httprouter.New()
	withLogging := middleware.LogRequest(log.NewLogger())
	withAuth := middleware.IsAuthorized
	apiToken := cli.APIToken

	apiHandlers := &handlers.LofimixAPIHandlersCollection{Engine: engine}
	catalogHandlers := &handlers.CatalogHandlersCollection{Catalog: cat, UploadDir: cli.UploadDir}
	streamHandlers := &handlers.StreamHandlersCollection{Supervisor: supervisor, Catalog: cat, Resolver: resolver}

	// Simple endpoint for healthchecks
	router.GET("/ok", withLogging(apiHandlers.Ok()))

	// Render pipeline
	router.POST("/api/render", withLogging(withAuth(apiToken, apiHandlers.SubmitRender())))
	router.GET("/api/render", withLogging(withAuth(apiToken, apiHandlers.ListRenders())))
	router.GET("/api/render/:id/status", withLogging(withAuth(apiToken, apiHandlers.RenderStatus())))
	router.POST("/api/render/:id/cancel", withLogging(withAuth(apiToken, apiHandlers.CancelRender())))
	router.GET("/api/render/:id/download", withLogging(withAuth(apiToken, apiHandlers.DownloadRender())))

	// Video catalog
	router.GET("/api/videos", withLogging(withAuth(apiToken, catalogHandlers.ListVideos())))
	router.POST("/api/videos", withLogging(withAuth(apiToken, catalogHandlers.RegisterVideo())))
	router.DELETE("/api/videos/:id", withLogging(withAuth(apiToken, catalogHandlers.DeleteVideo())))

	// Live stream control
	router.POST("/api/stream/:videoID/start", withLogging(withAuth(apiToken, streamHandlers.StartStream())))
	router.POST("/api/stream/:videoID/stop", withLogging(withAuth(apiToken, streamHandlers.StopStream())))
	router.GET("/api/stream/:videoID/status", withLogging(withAuth(apiToken, streamHandlers.StreamStatus())))

	return router
}
