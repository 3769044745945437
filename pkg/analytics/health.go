// Package analytics computes operational analytics over the plant graph:
// equipment health scores, threshold anomaly scans, and a statistical
// energy forecast. Everything here is a pure read; derived facts are the
// inference engine's job.
package analytics

import (
	"context"
	"fmt"
	"math"

	"github.com/sirupsen/logrus"

	"github.com/orneryd/huginn/pkg/graph"
)

// Component weights of the overall health score.
const (
	weightSensorHealth = 0.40
	weightAnomalies    = 0.30
	weightAge          = 0.15
	weightMaintenance  = 0.15
)

// defaultLifetimeHours is assumed when equipment does not declare an
// expected lifetime.
const defaultLifetimeHours = 20000.0

// maxAnomalyHistory bounds how many recent anomalies weigh on the score.
const maxAnomalyHistory = 30

// Health statuses derived from the overall score.
const (
	StatusNormal   = "Normal"
	StatusWarning  = "Warning"
	StatusCritical = "Critical"
)

// HealthComponent is one weighted part of the overall score.
type HealthComponent struct {
	Score  float64 `json:"score"`
	Weight float64 `json:"weight"`
}

// HealthReport is the scored health assessment of one equipment unit.
type HealthReport struct {
	EquipmentID     string                     `json:"equipmentId"`
	OverallScore    float64                    `json:"overallScore"`
	Status          string                     `json:"status"`
	Components      map[string]HealthComponent `json:"components"`
	Recommendations []string                   `json:"recommendations"`
}

// Analyzer computes analytics from graph snapshots.
type Analyzer struct {
	store graph.Store
	log   *logrus.Logger
}

// NewAnalyzer returns an analyzer reading from store.
func NewAnalyzer(store graph.Store, log *logrus.Logger) *Analyzer {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Analyzer{store: store, log: log}
}

// EquipmentHealth scores one equipment unit from its sensors' current
// readings, its anomaly history, operating age, and maintenance recency.
// The score is a weighted average of the four components on a 0-100
// scale.
func (a *Analyzer) EquipmentHealth(ctx context.Context, equipmentID string) (*HealthReport, error) {
	var (
		node      *graph.Node
		sensors   []*graph.Node
		anomalies []*graph.Node
	)
	err := a.store.Read(ctx, func(v graph.View) error {
		n, ok := v.Node(graph.NodeID(equipmentID))
		if !ok {
			return fmt.Errorf("equipment %s: %w", equipmentID, graph.ErrNotFound)
		}
		node = n
		for _, e := range v.Outgoing(n.ID) {
			target, ok := v.Node(e.To)
			if !ok {
				continue
			}
			switch e.Type {
			case "HAS_SENSOR":
				sensors = append(sensors, target)
			case "HAS_ANOMALY":
				anomalies = append(anomalies, target)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	sensorScore := sensorHealthScore(sensors)
	anomalyScore := anomalyHistoryScore(anomalies)

	hours, _ := toFloat(node.Properties["operatingHours"])
	lifetime, ok := toFloat(node.Properties["expectedLifetimeHours"])
	if !ok || lifetime <= 0 {
		lifetime = defaultLifetimeHours
	}
	ageScore := ageHealthScore(hours, lifetime)

	days, _ := toFloat(node.Properties["lastMaintenanceDays"])
	maintScore := maintenanceHealthScore(days)

	overall := sensorScore*weightSensorHealth +
		anomalyScore*weightAnomalies +
		ageScore*weightAge +
		maintScore*weightMaintenance

	report := &HealthReport{
		EquipmentID:  equipmentID,
		OverallScore: round1(overall),
		Status:       healthStatus(overall),
		Components: map[string]HealthComponent{
			"sensorHealth":      {Score: round1(sensorScore), Weight: weightSensorHealth},
			"anomalyHistory":    {Score: round1(anomalyScore), Weight: weightAnomalies},
			"operatingAge":      {Score: round1(ageScore), Weight: weightAge},
			"maintenanceStatus": {Score: round1(maintScore), Weight: weightMaintenance},
		},
	}
	report.Recommendations = recommendations(report)
	return report, nil
}

func healthStatus(score float64) string {
	switch {
	case score >= 85:
		return StatusNormal
	case score >= 70:
		return StatusWarning
	default:
		return StatusCritical
	}
}

// sensorHealthScore scores sensors by how far their current reading sits
// outside the declared normal range. In-range sensors score 100; the
// score decays exponentially with the relative deviation. Sensors without
// a declared range are skipped.
func sensorHealthScore(sensors []*graph.Node) float64 {
	var sum float64
	var n int
	for _, s := range sensors {
		value, ok := toFloat(s.Properties["lastValue"])
		if !ok {
			continue
		}
		min, okMin := toFloat(s.Properties["normalMin"])
		max, okMax := toFloat(s.Properties["normalMax"])
		if !okMin || !okMax || max <= min {
			continue
		}

		var score float64
		if value >= min && value <= max {
			score = 100
		} else {
			span := max - min
			var deviation float64
			if value < min {
				deviation = (min - value) / span
			} else {
				deviation = (value - max) / span
			}
			score = math.Max(0, 100*math.Exp(-deviation))
		}
		sum += score
		n++
	}
	if n == 0 {
		return 100
	}
	return sum / float64(n)
}

// anomalyHistoryScore weighs recent anomalies by severity and recency:
// the i-th most recent anomaly contributes severity/(i+1), normalized
// against the worst case of all-severity-one.
func anomalyHistoryScore(anomalies []*graph.Node) float64 {
	if len(anomalies) == 0 {
		return 100
	}
	if len(anomalies) > maxAnomalyHistory {
		anomalies = anomalies[:maxAnomalyHistory]
	}

	var impact, maxImpact float64
	for i, anomaly := range anomalies {
		severity, ok := toFloat(anomaly.Properties["severityScore"])
		if !ok {
			severity = 0.5
		}
		recency := 1 / float64(i+1)
		impact += severity * recency
		maxImpact += recency
	}
	if maxImpact == 0 {
		return 100
	}
	return math.Max(0, 100*(1-impact/maxImpact))
}

// ageHealthScore is a piecewise curve over the consumed share of the
// expected lifetime: flat to 50%, then two steepening linear segments.
func ageHealthScore(operatingHours, expectedLifetime float64) float64 {
	if expectedLifetime <= 0 {
		return 100
	}
	ratio := operatingHours / expectedLifetime
	switch {
	case ratio <= 0.5:
		return 100
	case ratio <= 0.8:
		return 100 - (ratio-0.5)*100
	case ratio <= 1.0:
		return 70 - (ratio-0.8)*200
	default:
		return math.Max(0, 30-(ratio-1.0)*50)
	}
}

// maintenanceHealthScore steps down with days since the last service.
func maintenanceHealthScore(days float64) float64 {
	switch {
	case days <= 30:
		return 100
	case days <= 60:
		return 90
	case days <= 90:
		return 80
	case days <= 180:
		return 60
	default:
		return math.Max(30, 60-(days-180)/10)
	}
}

func recommendations(report *HealthReport) []string {
	var recs []string
	low := func(name string) bool {
		c, ok := report.Components[name]
		return ok && c.Score < 70
	}
	if low("sensorHealth") {
		recs = append(recs, "Sensor readings indicate potential equipment degradation. Inspect equipment parameters.")
	}
	if low("anomalyHistory") {
		recs = append(recs, "Frequent anomalies detected. Schedule diagnostic inspection.")
	}
	if low("operatingAge") {
		recs = append(recs, "Equipment approaching end of expected lifetime. Plan for replacement.")
	}
	if low("maintenanceStatus") {
		recs = append(recs, "Overdue for scheduled maintenance. Schedule service appointment.")
	}
	if report.OverallScore < 50 {
		recs = append([]string{"URGENT: Equipment health is critical. Immediate attention required."}, recs...)
	}
	if len(recs) == 0 {
		recs = append(recs, "Equipment health is good. Continue regular monitoring.")
	}
	return recs
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}

func toFloat(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case float32:
		return float64(x), true
	case int:
		return float64(x), true
	case int64:
		return float64(x), true
	case int32:
		return float64(x), true
	default:
		return 0, false
	}
}
