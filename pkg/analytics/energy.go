package analytics

import (
	"context"
	"math"
	"time"

	"github.com/orneryd/huginn/pkg/graph"
)

// Forecast geometry: 15-minute intervals, 96 per day, looking back over
// at most 10 days of history.
const (
	forecastIntervals = 96
	intervalMinutes   = 15
	lookbackDays      = 10
)

// EnergyPoint is one forecast interval.
type EnergyPoint struct {
	Interval   int       `json:"interval"`
	Time       time.Time `json:"time"`
	Value      float64   `json:"value"`
	Confidence float64   `json:"confidence"`
	Unit       string    `json:"unit"`
}

// ForecastEnergy predicts the next 24 hours of energy consumption in
// 15-minute intervals from the observation history of all Power sensors.
// The forecast combines the average daily pattern with a least-squares
// linear trend across the full history; a weekend target day is scaled
// down to reflect reduced load.
//
// With no power observations at all, the forecast is empty rather than
// synthetic: callers can tell "no data" from "flat usage".
func (a *Analyzer) ForecastEnergy(ctx context.Context, targetDate time.Time) ([]EnergyPoint, error) {
	var history []float64
	err := a.store.Read(ctx, func(v graph.View) error {
		for _, s := range v.NodesByLabel("Sensor") {
			if t, _ := s.Properties["type"].(string); t != "Power" {
				continue
			}
			history = append(history, observationValues(v, s)...)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if len(history) == 0 {
		return nil, nil
	}

	if len(history) > lookbackDays*forecastIntervals {
		history = history[len(history)-lookbackDays*forecastIntervals:]
	}
	pattern, spread := dailyPattern(history)
	slope := trendSlope(history)

	dayStart := time.Date(targetDate.Year(), targetDate.Month(), targetDate.Day(), 0, 0, 0, 0, targetDate.Location())
	dowFactor := 1.0
	if wd := targetDate.Weekday(); wd == time.Saturday || wd == time.Sunday {
		dowFactor = 0.85
	}

	points := make([]EnergyPoint, forecastIntervals)
	for i := 0; i < forecastIntervals; i++ {
		base := pattern[i]
		value := (base + slope*float64(len(history)+i)) * dowFactor
		if value < 0 {
			value = 0
		}
		confidence := 1 - spread[i]/(base+1)
		confidence = math.Max(0.5, math.Min(0.99, confidence))

		points[i] = EnergyPoint{
			Interval:   i,
			Time:       dayStart.Add(time.Duration(i*intervalMinutes) * time.Minute),
			Value:      math.Round(value*100) / 100,
			Confidence: math.Round(confidence*1000) / 1000,
			Unit:       "kWh",
		}
	}
	return points, nil
}

// dailyPattern folds the history into per-interval mean and standard
// deviation. Histories shorter than one day repeat cyclically.
func dailyPattern(history []float64) (mean, std [forecastIntervals]float64) {
	var sums, counts [forecastIntervals]float64
	for i, v := range history {
		slot := i % forecastIntervals
		sums[slot] += v
		counts[slot]++
	}
	for slot := range sums {
		if counts[slot] > 0 {
			mean[slot] = sums[slot] / counts[slot]
		}
	}
	var sq [forecastIntervals]float64
	for i, v := range history {
		slot := i % forecastIntervals
		d := v - mean[slot]
		sq[slot] += d * d
	}
	for slot := range sq {
		if counts[slot] > 0 {
			std[slot] = math.Sqrt(sq[slot] / counts[slot])
		}
	}

	// Fill slots the history never reached so short histories still
	// produce a full day.
	var fallbackMean, n float64
	for slot := range mean {
		if counts[slot] > 0 {
			fallbackMean += mean[slot]
			n++
		}
	}
	if n > 0 {
		fallbackMean /= n
	}
	for slot := range mean {
		if counts[slot] == 0 {
			mean[slot] = fallbackMean
		}
	}
	return mean, std
}

// trendSlope is the least-squares slope of value against sample index.
func trendSlope(history []float64) float64 {
	n := float64(len(history))
	if n < 2 {
		return 0
	}
	var sumX, sumY, sumXY, sumXX float64
	for i, y := range history {
		x := float64(i)
		sumX += x
		sumY += y
		sumXY += x * y
		sumXX += x * x
	}
	den := n*sumXX - sumX*sumX
	if den == 0 {
		return 0
	}
	return (n*sumXY - sumX*sumY) / den
}
