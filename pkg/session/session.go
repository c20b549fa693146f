// Package session drives the simulated race: one lap tick per interval,
// fanned out to all subscribers.
package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mpapenbr/crewchief/log"
	"github.com/mpapenbr/crewchief/pkg/model"
	"github.com/mpapenbr/crewchief/pkg/processing"
	"github.com/mpapenbr/crewchief/pkg/utils/broadcast"
)

const (
	DefaultInterval  = 3 * time.Second
	DefaultTotalLaps = 26
	DefaultMaxCars   = 10
)

var ErrNoResults = errors.New("session has no race results")

// Publisher forwards processed ticks to external consumers.
type Publisher interface {
	Publish(ctx context.Context, tick *model.TickResult) error
}

// ResetHook is called on restart, before the new session is started.
type ResetHook func(ctx context.Context)

type Status struct {
	SessionKey string `json:"sessionKey"`
	CurrentLap int    `json:"currentLap"`
	TotalLaps  int    `json:"totalLaps"`
	Running    bool   `json:"running"`
	Finished   bool   `json:"finished"`
	Cars       int    `json:"cars"`
}

type Session struct {
	mu         sync.RWMutex
	key        string
	results    []model.RaceResult
	weather    WeatherSchedule
	proc       *processing.Processor
	interval   time.Duration
	totalLaps  int
	maxCars    int
	currentLap int
	running    bool
	current    *model.TickResult
	publisher  Publisher
	resetHooks []ResetHook
	out        chan *model.TickResult
	bc         broadcast.BroadcastServer[*model.TickResult]
	logger     *log.Logger
}

type Option func(*Session)

func WithResults(results []model.RaceResult) Option {
	return func(s *Session) {
		s.results = results
	}
}

func WithWeather(schedule WeatherSchedule) Option {
	return func(s *Session) {
		s.weather = schedule
	}
}

func WithProcessor(p *processing.Processor) Option {
	return func(s *Session) {
		s.proc = p
	}
}

func WithInterval(d time.Duration) Option {
	return func(s *Session) {
		s.interval = d
	}
}

func WithTotalLaps(laps int) Option {
	return func(s *Session) {
		s.totalLaps = laps
	}
}

// WithMaxCars limits the roster to the first n result rows. 0 means all.
func WithMaxCars(n int) Option {
	return func(s *Session) {
		s.maxCars = n
	}
}

func WithPublisher(p Publisher) Option {
	return func(s *Session) {
		s.publisher = p
	}
}

func WithResetHook(h ResetHook) Option {
	return func(s *Session) {
		s.resetHooks = append(s.resetHooks, h)
	}
}

// WithRunning sets whether laps advance right after Run was called.
func WithRunning(running bool) Option {
	return func(s *Session) {
		s.running = running
	}
}

func NewSession(opts ...Option) (*Session, error) {
	ret := &Session{
		key:       uuid.New().String(),
		interval:  DefaultInterval,
		totalLaps: DefaultTotalLaps,
		maxCars:   DefaultMaxCars,
		running:   true,
		logger:    log.Default().Named("session"),
	}
	for _, opt := range opts {
		opt(ret)
	}
	if len(ret.results) == 0 {
		return nil, ErrNoResults
	}
	if ret.totalLaps <= 0 {
		ret.totalLaps = DefaultTotalLaps
	}
	if ret.interval <= 0 {
		ret.interval = DefaultInterval
	}
	if ret.proc == nil {
		ret.proc = processing.NewProcessor()
	}
	ret.out = make(chan *model.TickResult, 1)
	ret.bc = broadcast.NewBroadcastServer("ticks", ret.out,
		broadcast.WithSessionKey[*model.TickResult](ret.key))
	return ret, nil
}

// Run processes the first lap and advances one lap per interval until ctx
// is done. Advancing stops at the last lap or while paused.
func (s *Session) Run(ctx context.Context) error {
	defer s.bc.Close()
	if s.Current() == nil {
		if _, err := s.Advance(ctx); err != nil {
			return err
		}
	}
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("session stopped", log.String("session", s.Key()))
			return nil
		case <-ticker.C:
			if !s.shouldAdvance() {
				continue
			}
			if _, err := s.Advance(ctx); err != nil {
				s.logger.Error("could not advance lap", log.ErrorField(err))
			}
		}
	}
}

func (s *Session) shouldAdvance() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.running && s.currentLap < s.totalLaps
}

// Advance processes the next lap regardless of the running state.
// At the last lap the session stops running.
func (s *Session) Advance(ctx context.Context) (*model.TickResult, error) {
	s.mu.Lock()
	tick, err := s.advanceLocked(ctx)
	s.mu.Unlock()
	if err != nil {
		return nil, err
	}
	s.emit(ctx, tick)
	return tick, nil
}

// advanceLocked must be called with mu held.
func (s *Session) advanceLocked(ctx context.Context) (*model.TickResult, error) {
	lap := min(s.currentLap+1, s.totalLaps)
	tick, err := s.proc.ProcessTick(ctx, s.roster(), s.weatherAt(lap), lap, s.totalLaps)
	if err != nil {
		return nil, err
	}
	tick.SessionKey = s.key
	s.currentLap = lap
	s.current = tick
	if lap >= s.totalLaps {
		s.running = false
	}
	return tick, nil
}

// emit hands tick to the publisher and the subscribers.
func (s *Session) emit(ctx context.Context, tick *model.TickResult) {
	s.logger.Debug("lap processed",
		log.String("session", tick.SessionKey),
		log.Int("lap", tick.CurrentLap),
		log.Int("cars", len(tick.Cars)))
	s.publish(ctx, tick)
	select {
	case s.out <- tick:
	default:
		s.logger.Warn("subscribers lagging, tick dropped", log.Int("lap", tick.CurrentLap))
	}
}

func (s *Session) publish(ctx context.Context, tick *model.TickResult) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(ctx, tick); err != nil {
		s.logger.Warn("could not publish tick", log.ErrorField(err))
	}
}

func (s *Session) roster() []model.RaceResult {
	if s.maxCars > 0 && len(s.results) > s.maxCars {
		return s.results[:s.maxCars]
	}
	return s.results
}

func (s *Session) weatherAt(lap int) *model.WeatherSnapshot {
	w := s.weather.At(lap)
	return &w
}

// Restart begins a new session at lap 1. The running state is kept.
// Reset hooks run before the new session becomes visible.
func (s *Session) Restart(ctx context.Context) (*model.TickResult, error) {
	for _, h := range s.resetHooks {
		h(ctx)
	}
	s.mu.Lock()
	s.key = uuid.New().String()
	s.currentLap = 0
	s.current = nil
	s.proc.Reset()
	tick, err := s.advanceLocked(ctx)
	s.mu.Unlock()
	if err != nil {
		return nil, err
	}
	s.logger.Info("session restarted", log.String("session", tick.SessionKey))
	s.emit(ctx, tick)
	return tick, nil
}

// ReplaceResults exchanges the roster. It is used from the next lap on.
func (s *Session) ReplaceResults(results []model.RaceResult) error {
	if len(results) == 0 {
		return ErrNoResults
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.results = results
	s.logger.Info("race results replaced", log.Int("rows", len(results)))
	return nil
}

func (s *Session) Pause() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.running = false
}

func (s *Session) Resume() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.running = true
}

func (s *Session) Current() *model.TickResult {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

func (s *Session) Key() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.key
}

func (s *Session) Status() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cars := 0
	if s.current != nil {
		cars = len(s.current.Cars)
	}
	return Status{
		SessionKey: s.key,
		CurrentLap: s.currentLap,
		TotalLaps:  s.totalLaps,
		Running:    s.running,
		Finished:   s.currentLap >= s.totalLaps,
		Cars:       cars,
	}
}

// Subscribe returns a channel receiving every processed tick.
func (s *Session) Subscribe() <-chan *model.TickResult {
	return s.bc.Subscribe()
}

func (s *Session) CancelSubscription(ch <-chan *model.TickResult) {
	s.bc.CancelSubscription(ch)
}
