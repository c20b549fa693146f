package model

import (
	"fmt"
	"strings"
)

type Condition string

const (
	ConditionSunny  Condition = "Sunny"
	ConditionCloudy Condition = "Cloudy"
	ConditionWet    Condition = "Wet"
	ConditionMixed  Condition = "Mixed"
)

// ParseCondition accepts the condition names case-insensitive.
func ParseCondition(s string) (Condition, error) {
	for _, c := range []Condition{
		ConditionSunny, ConditionCloudy, ConditionWet, ConditionMixed,
	} {
		if strings.EqualFold(string(c), strings.TrimSpace(s)) {
			return c, nil
		}
	}
	return "", fmt.Errorf("unknown weather condition %q", s)
}

// WeatherSnapshot describes ambient and track conditions for one lap tick.
// It is shared read-only by all cars.
type WeatherSnapshot struct {
	AirTempC         float64   `json:"airTempC" yaml:"airTempC"`
	TrackTempC       float64   `json:"trackTempC" yaml:"trackTempC"`
	HumidityPct      float64   `json:"humidityPct" yaml:"humidityPct"`
	WindSpeedKph     float64   `json:"windSpeedKph" yaml:"windSpeedKph"`
	WindDirectionDeg float64   `json:"windDirectionDeg" yaml:"windDirectionDeg"`
	Conditions       Condition `json:"conditions" yaml:"conditions"`
}
