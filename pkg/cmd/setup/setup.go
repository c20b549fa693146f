// Package setup builds the race session from the resolved configuration.
package setup

import (
	"fmt"
	"time"

	"github.com/mpapenbr/crewchief/log"
	"github.com/mpapenbr/crewchief/pkg/config"
	"github.com/mpapenbr/crewchief/pkg/processing"
	"github.com/mpapenbr/crewchief/pkg/raceresults"
	"github.com/mpapenbr/crewchief/pkg/session"
)

// ProcessorConfig maps the CLI values onto the processing config.
func ProcessorConfig() processing.Config {
	cfg := processing.DefaultConfig()
	if config.RaceLaps > 0 {
		cfg.RaceLaps = config.RaceLaps
	}
	if config.HistoryWindow >= 0 {
		cfg.HistoryWindow = config.HistoryWindow
	}
	cfg.Seed = config.Seed
	if cfg.Seed == 0 {
		cfg.Seed = time.Now().UnixNano()
	}
	return cfg
}

// NewSession loads results, weather and zones files and creates the session.
// Additional options are applied last.
func NewSession(extra ...session.Option) (*session.Session, error) {
	results, err := raceresults.LoadFile(config.ResultsFile)
	if err != nil {
		return nil, fmt.Errorf("load results %s: %w", config.ResultsFile, err)
	}
	log.Info("race results loaded",
		log.String("file", config.ResultsFile),
		log.Int("rows", len(results)))

	procCfg := ProcessorConfig()
	log.Debug("processing config",
		log.Int("raceLaps", procCfg.RaceLaps),
		log.Int("historyWindow", procCfg.HistoryWindow),
		log.Int64("seed", procCfg.Seed))
	procOpts := []processing.ProcessorOption{
		processing.WithConfig(procCfg),
	}
	if config.ZonesFile != "" {
		zones, err := session.LoadZones(config.ZonesFile)
		if err != nil {
			return nil, fmt.Errorf("load zones %s: %w", config.ZonesFile, err)
		}
		procOpts = append(procOpts, processing.WithZones(zones))
	}
	var weather session.WeatherSchedule
	if config.WeatherFile != "" {
		if weather, err = session.LoadWeatherSchedule(config.WeatherFile); err != nil {
			return nil, fmt.Errorf("load weather %s: %w", config.WeatherFile, err)
		}
	}

	opts := []session.Option{
		session.WithResults(results),
		session.WithWeather(weather),
		session.WithProcessor(processing.NewProcessor(procOpts...)),
		session.WithTotalLaps(config.TotalLaps),
		session.WithMaxCars(config.MaxCars),
	}
	return session.NewSession(append(opts, extra...)...)
}
