// Package admin serves the optional HTTP surface: health, readiness, service
// status, the operation catalog, and Prometheus metrics.
package admin

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/danmuck/edgelink/internal/auth"
	"github.com/danmuck/edgelink/internal/bridge"
	"github.com/danmuck/edgelink/internal/catalog"
	logs "github.com/danmuck/edgelink/internal/logging"
	"github.com/danmuck/edgelink/internal/observability"
)

const version = "0.1.0"

// Source is the service the admin surface reports on.
type Source interface {
	Status() bridge.Status
	Ready() bool
	Catalog() []catalog.Entry
}

type Server struct {
	ID       string
	Addr     string
	Appeared time.Time

	src    Source
	guard  auth.Validator
	router *gin.Engine
}

// New builds the router. A nil guard leaves every route open; otherwise all
// routes but /health require a bearer token.
func New(id, addr string, corsOrigins []string, guard auth.Validator, src Source) *Server {
	observability.RegisterMetrics()
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(observability.AccessLog(id, observability.ComponentLogger(id, "admin")))
	r.Use(cors.New(cors.Config{
		AllowOrigins:  normalizeOrigins(corsOrigins),
		AllowMethods:  []string{"GET"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Authorization", observability.RequestIDHeader},
		ExposeHeaders: []string{observability.RequestIDHeader},
		MaxAge:        12 * time.Hour,
	}))
	_ = r.SetTrustedProxies([]string{"127.0.0.1", "::1"})

	s := &Server{
		ID:       id,
		Addr:     addr,
		Appeared: time.Now(),
		src:      src,
		guard:    guard,
		router:   r,
	}
	s.registerRoutes()
	return s
}

func (s *Server) Router() *gin.Engine {
	return s.router
}

func (s *Server) registerRoutes() {
	s.router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "ok",
			"uptime":  time.Since(s.Appeared).String(),
			"service": s.ID,
			"version": version,
		})
	})

	g := s.router.Group("/", auth.Middleware(s.guard))

	g.GET("/ready", func(c *gin.Context) {
		ready := s.src.Ready()
		status := http.StatusOK
		if !ready {
			status = http.StatusServiceUnavailable
		}
		c.JSON(status, gin.H{
			"ready":   ready,
			"uptime":  time.Since(s.Appeared).String(),
			"service": s.ID,
			"version": version,
		})
	})

	g.GET("/status", func(c *gin.Context) {
		c.JSON(http.StatusOK, s.src.Status())
	})

	g.GET("/catalog", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"operations": s.src.Catalog()})
	})

	g.GET("/metrics", gin.WrapH(promhttp.Handler()))
}

// Serve listens on Addr until ctx ends.
func (s *Server) Serve(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.Addr,
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		logs.Infof("admin.Server.Serve listening addr=%q", s.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logs.Warnf("admin.Server.Serve shutdown err=%v", err)
		}
		return nil
	}
}

func normalizeOrigins(origins []string) []string {
	if len(origins) == 0 {
		return []string{"http://localhost:3000"}
	}
	return origins
}
