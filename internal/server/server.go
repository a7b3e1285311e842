package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/basel-ax/news2toon/internal/handler"
)

// Options configures the HTTP server
type Options struct {
	Addr string
	// Metrics is mounted on /metrics when set
	Metrics http.Handler
	// RatePerSecond limits the generation endpoints per client IP. Zero disables it.
	RatePerSecond float64
	RateBurst     int
}

type Server struct {
	httpServer *http.Server
	router     *gin.Engine
	log        *zap.Logger
}

// New wires the routes. ctx bounds the background work of the middleware.
func New(ctx context.Context, opts Options, h *handler.Handler, log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery(), requestLogger(log))

	router.GET("/health", h.HealthCheck)
	if opts.Metrics != nil {
		router.GET("/metrics", gin.WrapH(opts.Metrics))
	}

	generate := []gin.HandlerFunc{}
	if opts.RatePerSecond > 0 {
		burst := opts.RateBurst
		if burst < 1 {
			burst = 1
		}
		generate = append(generate, RateLimiter(ctx, opts.RatePerSecond, burst, log))
	}

	api := router.Group("/api")
	{
		api.POST("/images", append(generate, h.GenerateImage)...)
		api.POST("/images/relay", append(generate, h.RelayImage)...)

		api.POST("/generations", append(generate, h.CreateGeneration)...)
		api.GET("/generations/:id", h.GetGeneration)

		api.POST("/titles", append(generate, h.GenerateTitle)...)

		api.POST("/cartoons", append(generate, h.CreateCartoon)...)
		api.GET("/cartoons/daily", h.DailyCartoons)
		api.GET("/cartoons/recent", h.RecentCartoons)
		api.GET("/cartoons/:id", h.GetCartoon)
		api.GET("/cartoons/:id/share", h.ShareCartoon)
	}

	return &Server{
		httpServer: &http.Server{
			Addr:              opts.Addr,
			Handler:           router,
			ReadHeaderTimeout: 10 * time.Second,
			// generation can take several provider attempts with backoff
			WriteTimeout:   3 * time.Minute,
			MaxHeaderBytes: 1 << 20, // 1 MB
		},
		router: router,
		log:    log,
	}
}

// Handler exposes the router, mainly for tests
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run serves until Shutdown is called
func (s *Server) Run() error {
	s.log.Info("Server is running", zap.String("address", s.httpServer.Addr))

	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info("Shutting down server")
	return s.httpServer.Shutdown(ctx)
}

func requestLogger(log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.Debug("request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)))
	}
}
