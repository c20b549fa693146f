// Package processing runs the analysis agents for every car of a lap tick.
package processing

import (
	"cmp"
	"context"
	"math"
	"slices"
	"sync"
	"time"

	"github.com/samber/lo"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/mpapenbr/crewchief/log"
	"github.com/mpapenbr/crewchief/pkg/model"
	"github.com/mpapenbr/crewchief/pkg/processing/chase"
	"github.com/mpapenbr/crewchief/pkg/processing/driver"
	"github.com/mpapenbr/crewchief/pkg/processing/enginetire"
	"github.com/mpapenbr/crewchief/pkg/processing/pace"
	"github.com/mpapenbr/crewchief/pkg/processing/rng"
	"github.com/mpapenbr/crewchief/pkg/processing/synth"
	"github.com/mpapenbr/crewchief/pkg/processing/weather"
)

var meter = otel.Meter("processing")

type Config struct {
	// RaceLaps is the race distance assumed for driver stress.
	RaceLaps int
	// HistoryWindow is the number of lap times kept per car (0 = unbounded).
	HistoryWindow int
	Seed          int64
}

func DefaultConfig() Config {
	return Config{
		RaceLaps:      driver.DefaultRaceLaps,
		HistoryWindow: pace.DefaultWindow,
	}
}

type Processor struct {
	mu         sync.Mutex
	cfg        Config
	rng        *rng.PartitionedRNG
	synth      *synth.Synthesizer
	pace       *pace.Agent
	engineTire *enginetire.Agent
	driver     *driver.Agent
	chase      *chase.Agent
	// latest laps completed per car key
	lapsCompleted map[string]int
	logger        *log.Logger
	tracer        trace.Tracer
	tickRecorder  metric.Float64Histogram
	tickCounter   metric.Int64Counter
}

type ProcessorOption func(proc *Processor)

func WithConfig(cfg Config) ProcessorOption {
	return func(proc *Processor) {
		proc.cfg = cfg
	}
}

func WithZones(zones []model.OvertakingZone) ProcessorOption {
	return func(proc *Processor) {
		proc.chase = chase.NewAgent(chase.WithZones(zones))
	}
}

func WithTracer(tracer trace.Tracer) ProcessorOption {
	return func(proc *Processor) {
		proc.tracer = tracer
	}
}

func NewProcessor(opts ...ProcessorOption) *Processor {
	ret := &Processor{
		cfg:           DefaultConfig(),
		lapsCompleted: make(map[string]int),
		logger:        log.Default().Named("processing"),
	}
	for _, opt := range opts {
		opt(ret)
	}
	if ret.tracer == nil {
		ret.tracer = otel.Tracer("crewchief")
	}
	ret.rng = rng.NewPartitionedRNG(ret.cfg.Seed)
	ret.synth = synth.NewSynthesizer(
		synth.WithSource(ret.rng.ForSubsystem(rng.SubsystemSynth)))
	ret.pace = pace.NewAgent(pace.WithHistory(
		pace.NewHistory(pace.WithWindow(ret.cfg.HistoryWindow))))
	ret.engineTire = enginetire.NewAgent(
		enginetire.WithSource(ret.rng.ForSubsystem(rng.SubsystemComponents)))
	ret.driver = driver.NewAgent(
		driver.WithSource(ret.rng.ForSubsystem(rng.SubsystemBiometrics)),
		driver.WithRaceLaps(ret.cfg.RaceLaps))
	if ret.chase == nil {
		ret.chase = chase.NewAgent()
	}
	ret.tickRecorder, _ = meter.Float64Histogram("tick_processing",
		metric.WithDescription("processing of a lap tick"),
		metric.WithUnit("s"))
	ret.tickCounter, _ = meter.Int64Counter("ticks",
		metric.WithDescription("number of processed lap ticks"))
	return ret
}

func (p *Processor) Config() Config {
	return p.cfg
}

// Reset drops the pace history and lap bookkeeping of all cars.
func (p *Processor) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.pace.History().Reset()
	p.lapsCompleted = make(map[string]int)
}

// ProcessTick synthesizes the snapshots for currentLap and runs all agents.
// Cars without a usable fastest lap are skipped.
//
//nolint:whitespace,funlen // editor/linter issue
func (p *Processor) ProcessTick(
	ctx context.Context,
	results []model.RaceResult,
	w *model.WeatherSnapshot,
	currentLap, totalLaps int,
) (*model.TickResult, error) {
	if totalLaps <= 0 {
		return nil, synth.ErrInvalidLapWindow
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	start := time.Now()
	ctx, span := p.tracer.Start(ctx, "process tick")
	defer span.End()
	span.SetAttributes(
		attribute.Int("currentLap", currentLap),
		attribute.Int("totalLaps", totalLaps),
		attribute.Int("cars", len(results)),
	)

	snapshots := p.synthesize(results, currentLap, totalLaps)
	ret := &model.TickResult{
		CurrentLap: max(0, min(currentLap, totalLaps)),
		TotalLaps:  totalLaps,
		Weather:    weather.AnalyzeWeather(w),
		Cars:       make([]model.CarAnalysis, 0, len(snapshots)),
	}
	if len(snapshots) == 0 {
		p.record(ctx, start)
		return ret, nil
	}

	leader := &snapshots[0]
	lapsRemaining := totalLaps - ret.CurrentLap
	for i := range snapshots {
		s := &snapshots[i]
		paceResult := p.pace.AnalyzePace(s)
		ret.Cars = append(ret.Cars, model.CarAnalysis{
			Car:         *s,
			Pace:        paceResult,
			Weather:     &ret.Weather,
			EngineTire:  p.engineTire.EstimateHealth(s, w),
			DriverState: p.driver.AnalyzeDriverState(s, &paceResult),
			LeadChase:   p.chase.CalculateCatchUp(s, leader, lapsRemaining),
		})
	}
	p.record(ctx, start)
	p.logger.Debug("tick processed",
		log.Int("lap", ret.CurrentLap),
		log.Int("cars", len(ret.Cars)),
		log.Duration("duration", time.Since(start)))
	return ret, nil
}

func (p *Processor) record(ctx context.Context, start time.Time) {
	p.tickRecorder.Record(ctx, time.Since(start).Seconds())
	p.tickCounter.Add(ctx, 1)
}

// synthesize returns the snapshots in race order with dense positions 1..N.
//
//nolint:whitespace // editor/linter issue
func (p *Processor) synthesize(
	results []model.RaceResult, currentLap, totalLaps int,
) []model.CarSnapshot {
	byCar := make(map[string]model.CarSnapshot, len(results))
	for i := range results {
		s, err := p.synth.Snapshot(&results[i], currentLap, totalLaps)
		if err != nil {
			p.logger.Warn("skipping car", log.ErrorField(err))
			continue
		}
		key := pace.CarKey(s.CarNumber)
		if _, dup := byCar[key]; dup {
			p.logger.Warn("duplicate car number", log.String("carNum", s.CarNumber))
			continue
		}
		// laps completed never decrease for a car
		s.LapsCompleted = max(s.LapsCompleted, p.lapsCompleted[key])
		p.lapsCompleted[key] = s.LapsCompleted
		byCar[key] = s
	}
	order := RaceOrder(byCar)
	ret := flattenByReference(byCar, order)
	for i := range ret {
		ret[i].Position = i + 1
	}
	return ret
}

// RaceOrder sorts the car keys by result position, unclassified positions
// (<= 0) last, ties broken by car number.
func RaceOrder(cars map[string]model.CarSnapshot) []string {
	keys := lo.Keys(cars)
	rank := func(pos int) int {
		if pos <= 0 {
			return math.MaxInt
		}
		return pos
	}
	slices.SortFunc(keys, func(a, b string) int {
		if c := cmp.Compare(rank(cars[a].Position), rank(cars[b].Position)); c != 0 {
			return c
		}
		return compareCarNum(a, b)
	})
	return keys
}

// numeric car numbers compare by value
func compareCarNum(a, b string) int {
	if len(a) != len(b) && isDigits(a) && isDigits(b) {
		return cmp.Compare(len(a), len(b))
	}
	return cmp.Compare(a, b)
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func flattenByReference[E any](data map[string]E, sortReference []string) []E {
	arr := make([]E, 0, len(data))
	for _, k := range sortReference {
		if v, ok := data[k]; ok {
			arr = append(arr, v)
		}
	}
	return arr
}
