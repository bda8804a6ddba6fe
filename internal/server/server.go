// Package server exposes the marketplace negotiation API over HTTP.
package server

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/cors"
	"gorm.io/gorm"

	"github.com/econexus/parley/internal/auth"
	"github.com/econexus/parley/internal/engine"
)

// StartOpts holds configuration for the API server.
type StartOpts struct {
	DB     *gorm.DB
	Engine *engine.Engine
	Tokens *auth.Tokens
	Port   int
	Out    io.Writer
}

// Start launches the API server. It blocks until ctx is cancelled, then
// shuts down gracefully.
func Start(ctx context.Context, opts StartOpts) error {
	handler, err := NewHandler(opts)
	if err != nil {
		return err
	}
	if opts.Port <= 0 {
		opts.Port = 8080
	}

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", opts.Port),
		Handler: handler,
	}

	// Graceful shutdown on context cancellation.
	go func() {
		<-ctx.Done()
		srv.Shutdown(context.Background())
	}()

	if opts.Out != nil {
		fmt.Fprintf(opts.Out, "Parley API listening on http://localhost:%d\n", opts.Port)
	}

	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server: %w", err)
	}
	return nil
}

// NewHandler builds the full HTTP handler: gin router wrapped in CORS.
func NewHandler(opts StartOpts) (http.Handler, error) {
	if opts.DB == nil {
		return nil, fmt.Errorf("server: db is required")
	}
	if opts.Engine == nil {
		return nil, fmt.Errorf("server: engine is required")
	}
	if opts.Tokens == nil {
		return nil, fmt.Errorf("server: tokens are required")
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())

	h := &handlers{db: opts.DB, engine: opts.Engine, tokens: opts.Tokens}

	api := router.Group("/api")
	api.POST("/auth/register", h.register)
	api.POST("/auth/login", h.login)

	threads := api.Group("/negotiation/threads", auth.Middleware(opts.Tokens))
	threads.POST("", h.createThread)
	threads.GET("", h.listThreads)
	threads.GET("/:id", h.getThread)
	threads.PUT("/:id/guidelines", h.updateGuidelines)
	threads.POST("/:id/messages", h.postMessage)
	threads.POST("/:id/rounds", h.runRound)
	threads.GET("/:id/terms", h.getTerms)

	c := cors.New(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete},
		AllowedHeaders: []string{"Authorization", "Content-Type"},
	})
	return c.Handler(router), nil
}

// handlers carries the shared dependencies of all endpoints.
type handlers struct {
	db     *gorm.DB
	engine *engine.Engine
	tokens *auth.Tokens
}
