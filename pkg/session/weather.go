package session

import (
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"slices"

	"gopkg.in/yaml.v3"

	"github.com/mpapenbr/crewchief/pkg/model"
)

// DefaultWeather is used when no weather schedule is configured.
var DefaultWeather = model.WeatherSnapshot{
	AirTempC:         24.5,
	TrackTempC:       32.1,
	HumidityPct:      55,
	WindSpeedKph:     8,
	WindDirectionDeg: 180,
	Conditions:       model.ConditionSunny,
}

// WeatherEntry is valid from FromLap until the next entry starts.
type WeatherEntry struct {
	FromLap               int `yaml:"fromLap"`
	model.WeatherSnapshot `yaml:",inline"`
}

// WeatherSchedule is sorted by FromLap.
type WeatherSchedule []WeatherEntry

var ErrEmptySchedule = errors.New("weather schedule has no entries")

func LoadWeatherSchedule(path string) (WeatherSchedule, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ParseWeatherSchedule(f)
}

func ParseWeatherSchedule(r io.Reader) (WeatherSchedule, error) {
	var ret WeatherSchedule
	if err := yaml.NewDecoder(r).Decode(&ret); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, ErrEmptySchedule
		}
		return nil, err
	}
	if len(ret) == 0 {
		return nil, ErrEmptySchedule
	}
	for i := range ret {
		c, err := model.ParseCondition(string(ret[i].Conditions))
		if err != nil {
			return nil, fmt.Errorf("entry %d: %w", i, err)
		}
		ret[i].Conditions = c
		if err := checkFinite(&ret[i].WeatherSnapshot); err != nil {
			return nil, fmt.Errorf("entry %d: %w", i, err)
		}
	}
	slices.SortStableFunc(ret, func(a, b WeatherEntry) int {
		return a.FromLap - b.FromLap
	})
	return ret, nil
}

var ErrNonFinite = errors.New("non-finite weather value")

func checkFinite(w *model.WeatherSnapshot) error {
	for name, v := range map[string]float64{
		"airTempC":         w.AirTempC,
		"trackTempC":       w.TrackTempC,
		"humidityPct":      w.HumidityPct,
		"windSpeedKph":     w.WindSpeedKph,
		"windDirectionDeg": w.WindDirectionDeg,
	} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%s: %w", name, ErrNonFinite)
		}
	}
	return nil
}

// At returns the weather for lap. Laps before the first entry use the first
// entry, an empty schedule yields DefaultWeather.
func (s WeatherSchedule) At(lap int) model.WeatherSnapshot {
	if len(s) == 0 {
		return DefaultWeather
	}
	ret := s[0].WeatherSnapshot
	for _, e := range s {
		if e.FromLap > lap {
			break
		}
		ret = e.WeatherSnapshot
	}
	return ret
}

// LoadZones reads the overtaking zones of a track from a YAML list.
func LoadZones(path string) ([]model.OvertakingZone, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var ret []model.OvertakingZone
	if err := yaml.Unmarshal(data, &ret); err != nil {
		return nil, err
	}
	return ret, nil
}
