package reason

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ruleApplications = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "huginn_rule_applications_total",
		Help: "Completed rule applications, by rule.",
	}, []string{"rule"})

	ruleErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "huginn_rule_errors_total",
		Help: "Rule applications that failed before any candidate ran.",
	}, []string{"rule"})

	inferredFacts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "huginn_inferred_facts_total",
		Help: "Derived facts created, by rule.",
	}, []string{"rule"})

	checksRun = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "huginn_checks_total",
		Help: "Validation checks executed, by definition.",
	}, []string{"definition"})

	violationsFound = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "huginn_violations_total",
		Help: "Violations reported by validation checks, by definition.",
	}, []string{"definition"})
)
