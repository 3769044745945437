package analytics

import (
	"context"
	"math"
	"sort"

	"github.com/orneryd/huginn/pkg/graph"
)

// zscoreThreshold flags sensors whose recent readings drift this many
// standard deviations from their history.
const zscoreThreshold = 3.0

// minStatisticalSamples is the observation count below which the
// statistical detector stays quiet.
const minStatisticalSamples = 10

// Finding kinds reported by the anomaly scan.
const (
	FindingRange       = "RangeAnomaly"
	FindingStatistical = "StatisticalAnomaly"
)

// Finding is one anomalous sensor flagged by Scan.
type Finding struct {
	Kind        string  `json:"kind"`
	EquipmentID string  `json:"equipmentId"`
	SensorID    string  `json:"sensorId"`
	SensorType  string  `json:"sensorType"`
	Value       float64 `json:"value"`
	Threshold   float64 `json:"threshold"`
	Severity    float64 `json:"severity"`
	Description string  `json:"description"`
}

// Scan inspects every sensor in the graph and reports two kinds of
// anomalies: readings outside the sensor's declared normal range, and
// readings whose recent z-score against the sensor's own observation
// history exceeds the statistical threshold. Findings are ordered by
// severity, worst first; ties break on sensor id.
func (a *Analyzer) Scan(ctx context.Context) ([]Finding, error) {
	var findings []Finding
	err := a.store.Read(ctx, func(v graph.View) error {
		for _, s := range v.NodesByLabel("Sensor") {
			equipmentID := attachedEquipment(v, s)
			sensorID, _ := s.Properties["sensorId"].(string)
			sensorType, _ := s.Properties["type"].(string)

			if f, ok := rangeFinding(s, equipmentID, sensorID, sensorType); ok {
				findings = append(findings, f)
			}
			if f, ok := statisticalFinding(v, s, equipmentID, sensorID, sensorType); ok {
				findings = append(findings, f)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(findings, func(i, j int) bool {
		if findings[i].Severity != findings[j].Severity {
			return findings[i].Severity > findings[j].Severity
		}
		return findings[i].SensorID < findings[j].SensorID
	})
	return findings, nil
}

// rangeFinding checks the sensor's current reading against its declared
// normal range. Severity scales with the deviation relative to the range
// width, capped at 1.
func rangeFinding(s *graph.Node, equipmentID, sensorID, sensorType string) (Finding, bool) {
	value, ok := toFloat(s.Properties["lastValue"])
	if !ok {
		return Finding{}, false
	}
	min, okMin := toFloat(s.Properties["normalMin"])
	max, okMax := toFloat(s.Properties["normalMax"])
	if !okMin || !okMax || max <= min {
		return Finding{}, false
	}
	if value >= min && value <= max {
		return Finding{}, false
	}

	span := max - min
	var deviation, threshold float64
	if value < min {
		deviation = (min - value) / span
		threshold = min
	} else {
		deviation = (value - max) / span
		threshold = max
	}
	return Finding{
		Kind:        FindingRange,
		EquipmentID: equipmentID,
		SensorID:    sensorID,
		SensorType:  sensorType,
		Value:       value,
		Threshold:   threshold,
		Severity:    math.Min(1, deviation),
		Description: "reading outside normal operating range",
	}, true
}

// statisticalFinding computes the mean absolute z-score of the sensor's
// five most recent observations against its full history. Sensors with a
// flat history or too few observations never fire.
func statisticalFinding(v graph.View, s *graph.Node, equipmentID, sensorID, sensorType string) (Finding, bool) {
	values := observationValues(v, s)
	if len(values) < minStatisticalSamples {
		return Finding{}, false
	}

	mean, std := meanStd(values)
	if std == 0 {
		return Finding{}, false
	}

	recent := values
	if len(recent) > 5 {
		recent = recent[len(recent)-5:]
	}
	var zsum float64
	for _, r := range recent {
		zsum += math.Abs((r - mean) / std)
	}
	z := zsum / float64(len(recent))
	if z <= zscoreThreshold {
		return Finding{}, false
	}
	return Finding{
		Kind:        FindingStatistical,
		EquipmentID: equipmentID,
		SensorID:    sensorID,
		SensorType:  sensorType,
		Value:       recent[len(recent)-1],
		Threshold:   zscoreThreshold,
		Severity:    math.Min(1, (z-zscoreThreshold)/3),
		Description: "recent readings drift from historical distribution",
	}, true
}

// observationValues returns the sensor's observation values in timestamp
// order.
func observationValues(v graph.View, s *graph.Node) []float64 {
	type obs struct {
		ts    string
		value float64
	}
	var all []obs
	for _, e := range v.Outgoing(s.ID) {
		if e.Type != "HAS_OBSERVATION" {
			continue
		}
		o, ok := v.Node(e.To)
		if !ok {
			continue
		}
		value, ok := toFloat(o.Properties["value"])
		if !ok {
			continue
		}
		ts, _ := o.Properties["timestamp"].(string)
		all = append(all, obs{ts: ts, value: value})
	}
	sort.Slice(all, func(i, j int) bool { return all[i].ts < all[j].ts })

	values := make([]float64, len(all))
	for i, o := range all {
		values[i] = o.value
	}
	return values
}

func attachedEquipment(v graph.View, s *graph.Node) string {
	for _, e := range v.Outgoing(s.ID) {
		if e.Type == "IS_ATTACHED_TO" {
			return string(e.To)
		}
	}
	return ""
}

func meanStd(values []float64) (mean, std float64) {
	for _, x := range values {
		mean += x
	}
	mean /= float64(len(values))
	for _, x := range values {
		std += (x - mean) * (x - mean)
	}
	std = math.Sqrt(std / float64(len(values)))
	return mean, std
}
