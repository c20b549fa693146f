package model

import "github.com/aarondl/opt/null"

// RaceResult is one row of the static race-results export.
type RaceResult struct {
	Position        int     `json:"position"`
	CarNumber       string  `json:"carNumber"`
	Status          string  `json:"status"`
	Laps            int     `json:"laps"`
	TotalTime       string  `json:"totalTime"`
	GapFirst        string  `json:"gapFirst"`
	GapPrevious     string  `json:"gapPrevious"`
	FastestLapNum   int     `json:"fastestLapNum"`
	FastestLapTime  string  `json:"fastestLapTime"`
	FastestLapKph   float64 `json:"fastestLapKph"`
	Team            string  `json:"team"`
	DriverFirstName string  `json:"driverFirstName"`
	DriverLastName  string  `json:"driverLastName"`
	DriverCountry   string  `json:"driverCountry"`
	Class           string  `json:"class,omitempty"`
	Vehicle         string  `json:"vehicle,omitempty"`
}

// DriverName returns "first last" as used for display and driver ids.
func (r *RaceResult) DriverName() string {
	switch {
	case r.DriverFirstName == "":
		return r.DriverLastName
	case r.DriverLastName == "":
		return r.DriverFirstName
	default:
		return r.DriverFirstName + " " + r.DriverLastName
	}
}

// CarSnapshot is the simulated telemetry state of one car at one lap tick.
// Gap values are null when they could not be parsed.
type CarSnapshot struct {
	CarNumber string `json:"carNumber"`
	Driver    string `json:"driver"`
	Team      string `json:"team"`
	Class     string `json:"class"`
	Vehicle   string `json:"vehicle"`

	Position      int    `json:"position"`
	LapsCompleted int    `json:"lapsCompleted"`
	CurrentLap    int    `json:"currentLap"`
	TotalTime     string `json:"totalTime"`
	Progress      int    `json:"progress"` // percent of total laps

	GapToFirstSec null.Val[float64] `json:"gapToFirstSec"`
	GapToPrevSec  null.Val[float64] `json:"gapToPrevSec"`
	GapToLeader   string            `json:"gapToLeader"` // raw value from results

	BestLapTimeSec float64 `json:"bestLapTimeSec"`
	LastLapTimeSec float64 `json:"lastLapTimeSec"`
	AvgLapTimeSec  float64 `json:"avgLapTimeSec"`
	LastLapTime    string  `json:"lastLapTime"` // formatted m:ss.sss
	SpeedKphBest   float64 `json:"speedKphBest"`
	Speed          float64 `json:"speed"`

	RegressionMeanSec float64 `json:"regressionMeanSec"`
	RegressionZScore  float64 `json:"regressionZScore"`
	HeroLapFlag       bool    `json:"heroLapFlag"`
	FallingBackFlag   bool    `json:"fallingBackFlag"`
}

// IsLeader reports whether the car currently leads the race.
func (c *CarSnapshot) IsLeader() bool {
	return c.Position == 1
}
