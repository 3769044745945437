package server

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/orneryd/huginn/pkg/graph"
	"github.com/orneryd/huginn/pkg/reason"
)

func (s *Server) handleHealth(c *gin.Context) {
	nodes, err := s.store.NodeCount(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "error": err.Error()})
		return
	}
	edges, err := s.store.EdgeCount(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok", "nodes": nodes, "edges": edges})
}

func (s *Server) handleListRules(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"rules": s.svc.Rules()})
}

func (s *Server) handleCheckRule(c *gin.Context) {
	preview, err := s.svc.CheckRule(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, preview)
}

func (s *Server) handleApplyRule(c *gin.Context) {
	result, err := s.svc.ApplyRule(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (s *Server) handleApplyRuleWithTrace(c *gin.Context) {
	result, trace, err := s.svc.ApplyRuleWithTrace(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"result": result, "trace": trace})
}

func (s *Server) handleRunAllRules(c *gin.Context) {
	summary, err := s.svc.RunAllRules(c.Request.Context())
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, summary)
}

func (s *Server) handleGetTrace(c *gin.Context) {
	trace, ok := s.svc.Trace(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "trace not found"})
		return
	}
	c.JSON(http.StatusOK, trace)
}

func (s *Server) handleListAxioms(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"axioms": s.svc.Axioms()})
}

func (s *Server) handleCheckAxiom(c *gin.Context) {
	result, err := s.svc.CheckAxiom(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (s *Server) handleCheckAllAxioms(c *gin.Context) {
	summary, err := s.svc.CheckAllAxioms(c.Request.Context())
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, summary)
}

func (s *Server) handleListConstraints(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"constraints": s.svc.Constraints()})
}

func (s *Server) handleCheckConstraint(c *gin.Context) {
	result, err := s.svc.CheckConstraint(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (s *Server) handleCheckAllConstraints(c *gin.Context) {
	summary, err := s.svc.CheckAllConstraints(c.Request.Context())
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, summary)
}

func (s *Server) handleValidateAndRun(c *gin.Context) {
	includeConstraints := c.DefaultQuery("constraints", "true") != "false"
	result, err := s.svc.ValidateAndRun(c.Request.Context(), includeConstraints)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (s *Server) handleListInferred(c *gin.Context) {
	limit := 0
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a non-negative integer"})
			return
		}
		limit = n
	}
	facts, err := s.svc.InferredFacts(c.Request.Context(), limit)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"facts": facts, "count": len(facts)})
}

func (s *Server) handleClearInferred(c *gin.Context) {
	removed, err := s.svc.ClearInferred(c.Request.Context())
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"removed": removed})
}

func (s *Server) handleStatistics(c *gin.Context) {
	stats, err := s.svc.Statistics(c.Request.Context())
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

func (s *Server) handleEquipmentHealth(c *gin.Context) {
	report, err := s.analyzer.EquipmentHealth(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}

func (s *Server) handleAnomalyScan(c *gin.Context) {
	findings, err := s.analyzer.Scan(c.Request.Context())
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"findings": findings, "count": len(findings)})
}

func (s *Server) handleEnergyForecast(c *gin.Context) {
	target := time.Now().UTC().AddDate(0, 0, 1)
	if raw := c.Query("date"); raw != "" {
		parsed, err := time.Parse("2006-01-02", raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "date must be YYYY-MM-DD"})
			return
		}
		target = parsed
	}
	points, err := s.analyzer.ForecastEnergy(c.Request.Context(), target)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"date":      target.Format("2006-01-02"),
		"intervals": points,
		"count":     len(points),
	})
}

// fail maps service errors to HTTP status codes.
func (s *Server) fail(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, reason.ErrDefinitionNotFound), errors.Is(err, graph.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, graph.ErrInvalidID), errors.Is(err, graph.ErrInvalidData):
		status = http.StatusBadRequest
	}
	_ = c.Error(err)
	c.JSON(status, gin.H{"error": err.Error()})
}
