// Package server exposes the reasoning service over HTTP.
//
// The API is read-heavy: definition listings and checks are GETs, anything
// that mutates the graph (apply, run, clear) is a POST or DELETE. All
// responses are JSON. Prometheus metrics are served on /metrics and a
// liveness probe on /health, both outside the authenticated group.
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/orneryd/huginn/pkg/analytics"
	"github.com/orneryd/huginn/pkg/config"
	"github.com/orneryd/huginn/pkg/graph"
	"github.com/orneryd/huginn/pkg/reason"
)

// Server wires the reasoning service and analytics into a gin engine.
type Server struct {
	cfg      *config.Config
	store    graph.Store
	svc      *reason.Service
	analyzer *analytics.Analyzer
	log      *logrus.Logger
	engine   *gin.Engine
	http     *http.Server
}

// New builds a fully routed server. It does not start listening; call Run.
func New(cfg *config.Config, store graph.Store, svc *reason.Service, analyzer *analytics.Analyzer, log *logrus.Logger) *Server {
	if log == nil {
		log = logrus.StandardLogger()
	}
	if cfg.Server.ReleaseMode {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()
	engine.Use(gin.Recovery())

	s := &Server{
		cfg:      cfg,
		store:    store,
		svc:      svc,
		analyzer: analyzer,
		log:      log,
		engine:   engine,
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.engine.GET("/health", s.handleHealth)
	s.engine.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := s.engine.Group("/api")
	api.Use(requestLogger(s.log))
	if s.cfg.Auth.Enabled {
		api.Use(basicAuth(s.cfg.Auth.Username, s.cfg.Auth.Password))
	}

	api.GET("/rules", s.handleListRules)
	api.GET("/rules/:id/check", s.handleCheckRule)
	api.POST("/rules/:id/apply", s.handleApplyRule)
	api.POST("/rules/:id/trace", s.handleApplyRuleWithTrace)
	api.POST("/rules/run", s.handleRunAllRules)
	api.GET("/traces/:id", s.handleGetTrace)

	api.GET("/axioms", s.handleListAxioms)
	api.GET("/axioms/check", s.handleCheckAllAxioms)
	api.GET("/axioms/:id/check", s.handleCheckAxiom)

	api.GET("/constraints", s.handleListConstraints)
	api.GET("/constraints/check", s.handleCheckAllConstraints)
	api.GET("/constraints/:id/check", s.handleCheckConstraint)

	api.POST("/validate-and-run", s.handleValidateAndRun)

	api.GET("/inferred", s.handleListInferred)
	api.DELETE("/inferred", s.handleClearInferred)
	api.GET("/statistics", s.handleStatistics)

	api.GET("/analytics/health/:id", s.handleEquipmentHealth)
	api.GET("/analytics/anomalies", s.handleAnomalyScan)
	api.GET("/analytics/energy/forecast", s.handleEnergyForecast)
}

// Handler returns the routed engine, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Run serves until ctx is cancelled, then drains in-flight requests.
func (s *Server) Run(ctx context.Context) error {
	s.http = &http.Server{
		Addr:         s.cfg.Server.Addr(),
		Handler:      s.engine,
		ReadTimeout:  s.cfg.Server.ReadTimeout,
		WriteTimeout: s.cfg.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.WithField("addr", s.http.Addr).Info("http server listening")
		if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	s.log.Info("http server shutting down")
	return s.http.Shutdown(shutdownCtx)
}
