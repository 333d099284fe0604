package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"

	"polyfit/pkg/polyfit"
)

const shutdownTimeout = 5 * time.Second

type Config struct {
	Client *polyfit.Client
	Logger *slog.Logger
	// RateLimit is configure and evolve requests per second, drawn from one
	// bucket; 0 disables limiting.
	RateLimit float64
	RateBurst int
}

// Server exposes run handles over HTTP. Every route except /health and
// /metrics lives under /v1.
type Server struct {
	client  *polyfit.Client
	logger  *slog.Logger
	limiter *rate.Limiter
	engine  *gin.Engine
}

func New(cfg Config) (*Server, error) {
	if cfg.Client == nil {
		return nil, errors.New("server: client is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	s := &Server{client: cfg.Client, logger: logger}
	if cfg.RateLimit > 0 {
		burst := cfg.RateBurst
		if burst <= 0 {
			burst = 1
		}
		s.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), burst)
	}

	engine := gin.New()
	engine.Use(gin.Recovery(), observe(logger))
	s.routes(engine)
	s.engine = engine
	return s, nil
}

// routes registers:
//
//	GET    /health
//	GET    /metrics
//	POST   /v1/encode
//	GET    /v1/runs
//	POST   /v1/runs                   (rate limited)
//	GET    /v1/runs/:id
//	DELETE /v1/runs/:id
//	POST   /v1/runs/:id/seed
//	POST   /v1/runs/:id/evolve        (rate limited)
//	GET    /v1/runs/:id/best?floor=
//	GET    /v1/runs/:id/history
//	GET    /v1/runs/:id/average-error
//	GET    /v1/runs/:id/mesh?steps=
func (s *Server) routes(engine *gin.Engine) {
	engine.GET("/health", s.health)
	engine.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := engine.Group("/v1")
	v1.POST("/encode", s.encode)

	runs := v1.Group("/runs")
	runs.GET("", s.listRuns)
	runs.POST("", limit(s.limiter), s.configure)
	runs.GET("/:id", s.getRun)
	runs.DELETE("/:id", s.deleteRun)
	runs.POST("/:id/seed", s.seed)
	runs.POST("/:id/evolve", limit(s.limiter), s.evolve)
	runs.GET("/:id/best", s.best)
	runs.GET("/:id/history", s.history)
	runs.GET("/:id/average-error", s.averageError)
	runs.GET("/:id/mesh", s.mesh)
}

func (s *Server) Handler() http.Handler {
	return s.engine
}

// ListenAndServe serves on addr until ctx is cancelled, then drains
// in-flight requests.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("http server listening", slog.String("addr", addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	s.logger.Info("http server shutting down")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
