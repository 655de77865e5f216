// internal/api/router.go
package api

import (
	"fmt"
	"time"

	"github.com/Corphon/BookRunner/internal/config"
	"github.com/Corphon/BookRunner/internal/di"
	"github.com/Corphon/BookRunner/internal/services"
	"github.com/Corphon/BookRunner/internal/utils"
	"github.com/gin-gonic/gin"
)

// Container names of the services the router needs.
const (
	ServiceWorkspace   = "workspace"
	ServiceEdits       = "edits"
	ServiceRuns        = "runs"
	ServiceAPIMetrics  = "api_metrics"
	ServiceEditMetrics = "edit_metrics"
	ServiceStreams     = "streams"
	ServiceRateLimiter = "rate_limiter"
	ServiceBookLister  = "book_lister"
)

const (
	requestsPerWindow = 300
	rateWindow        = time.Minute
)

// SetupRouter builds the HTTP routes from the services registered in
// container.
//
// Chapter paths may contain slashes; clients escape them (%2F) inside the
// :chapter segment.
func SetupRouter(container *di.Container) (*gin.Engine, error) {
	handler, err := newHandlerFromContainer(container)
	if err != nil {
		return nil, err
	}

	limiter, err := di.Resolve[*RateLimiter](container, ServiceRateLimiter)
	if err != nil {
		limiter = NewRateLimiter()
	}

	if cfg := config.GetCurrentConfig(); cfg != nil && !cfg.DebugMode {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.UseRawPath = true
	r.UnescapePathValues = true

	r.Use(gin.Recovery())
	r.Use(RequestIDMiddleware())
	r.Use(AccessLogMiddleware(handler.APIMetrics))
	r.Use(corsMiddleware())

	api := r.Group("/api")
	api.Use(RateLimitByIP(limiter, requestsPerWindow, rateWindow))
	{
		api.GET("/health", handler.Health)
		api.GET("/metrics", handler.Metrics)
		api.GET("/ws/status", handler.WebSocketStatus)

		api.GET("/books", handler.ListBooks)
		api.GET("/book", handler.GetBook)
		api.POST("/book/open", handler.OpenBook)

		chapters := api.Group("/chapters/:chapter")
		{
			chapters.GET("", handler.GetChapter)
			chapters.POST("/variables", handler.BindVariable)

			entries := chapters.Group("/entries/:entry")
			entries.POST("/edit", handler.StartEdit)
			entries.POST("/cancel", handler.CancelEdit)
			entries.POST("/save", handler.SaveEntry)
			entries.POST("/run", handler.RunEntry)
		}
	}

	r.GET("/ws/chapters/:chapter", handler.Streams.ServeChapter)

	return r, nil
}

func newHandlerFromContainer(container *di.Container) (*Handler, error) {
	workspace, err := di.Resolve[*services.Workspace](container, ServiceWorkspace)
	if err != nil {
		return nil, fmt.Errorf("workspace is not initialised: %w", err)
	}
	edits, err := di.Resolve[*services.EditService](container, ServiceEdits)
	if err != nil {
		return nil, fmt.Errorf("edit service is not initialised: %w", err)
	}
	runs, err := di.Resolve[*services.RunService](container, ServiceRuns)
	if err != nil {
		return nil, fmt.Errorf("run service is not initialised: %w", err)
	}
	apiMetrics, err := di.Resolve[*utils.APIMetrics](container, ServiceAPIMetrics)
	if err != nil {
		return nil, fmt.Errorf("API metrics are not initialised: %w", err)
	}
	editMetrics, err := di.Resolve[*services.EditMetrics](container, ServiceEditMetrics)
	if err != nil {
		return nil, fmt.Errorf("edit metrics are not initialised: %w", err)
	}
	streams, err := di.Resolve[*WebSocketManager](container, ServiceStreams)
	if err != nil {
		return nil, fmt.Errorf("WebSocket manager is not initialised: %w", err)
	}

	// optional: only the local book source can list books
	var books BookLister
	if container.Has(ServiceBookLister) {
		lister, err := di.Resolve[BookLister](container, ServiceBookLister)
		if err != nil {
			return nil, fmt.Errorf("book lister is invalid: %w", err)
		}
		books = lister
	}

	return NewHandler(workspace, edits, runs, apiMetrics, editMetrics, streams, books), nil
}
