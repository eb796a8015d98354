// Package server wires the gin engines for the blog and analytics services.
package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-contrib/secure"
	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/RobertMJr/my-blog/internal/analytics"
	"github.com/RobertMJr/my-blog/internal/config"
	"github.com/RobertMJr/my-blog/internal/logging"
	"github.com/RobertMJr/my-blog/internal/store"
)

type Server struct {
	Router          *gin.Engine
	httpServer      *http.Server
	shutdownTimeout time.Duration
}

func newServer(cfg *config.Config) *Server {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()
	router.Use(
		gin.Recovery(),
		requestID(),
		logging.Middleware(),
		metrics(),
		secure.New(secure.Config{
			FrameDeny:          true,
			ContentTypeNosniff: true,
			BrowserXssFilter:   true,
			ReferrerPolicy:     "strict-origin-when-cross-origin",
		}),
	)
	router.GET("/metrics", metricsHandler())

	return &Server{
		Router: router,
		httpServer: &http.Server{
			Addr:    cfg.Server.Addr,
			Handler: router,
		},
		shutdownTimeout: cfg.Server.ShutdownTimeout,
	}
}

// NewBlog serves the article API and the front-end bundle. publisher may be
// nil, in which case views are not counted.
func NewBlog(cfg *config.Config, scope store.Scope, articles *store.Articles, publisher Publisher) *Server {
	s := newServer(cfg)

	h := &articleHandler{
		scope:          scope,
		articles:       articles,
		publisher:      publisher,
		publishTimeout: cfg.Redis.PublishTimeout,
	}
	api := s.Router.Group("/api")
	api.GET("/health", healthHandler(scope))
	api.GET("/articles/:name", h.get)
	api.POST("/articles/:name/upvote", h.upvote)
	api.POST("/articles/:name/add-comment", h.addComment)

	s.Router.NoRoute(frontend(cfg.Server.StaticDir, cfg.Server.IndexFile))
	return s
}

// NewViews serves the counters written by the analytics worker.
func NewViews(cfg *config.Config, scope store.Scope, views *analytics.Views) *Server {
	s := newServer(cfg)

	h := &viewHandler{scope: scope, views: views}
	api := s.Router.Group("/api")
	api.GET("/health", healthHandler(scope))
	api.GET("/views", h.list)
	api.GET("/views/:name", h.get)

	s.Router.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"message": "Not found"})
	})
	return s
}

// Run serves until ctx is done, then shuts down within the configured timeout.
func (s *Server) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Info().Str("addr", s.httpServer.Addr).Msg("listening")
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return errors.Wrap(err, "serve http")
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		log.Info().Msg("shutting down server")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
		defer cancel()
		return errors.Wrap(s.httpServer.Shutdown(shutdownCtx), "shutdown http")
	})

	return g.Wait()
}
