package crewchief

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/mpapenbr/crewchief/log"
	"github.com/mpapenbr/crewchief/pkg/crewchief/llm"
	"github.com/mpapenbr/crewchief/pkg/model"
	"github.com/mpapenbr/crewchief/pkg/utils/cache"
	"github.com/mpapenbr/crewchief/pkg/utils/cache/loadercache"
)

const (
	Temperature      = 0.7
	InsightMaxTokens = 150
	AnswerMaxTokens  = 200
)

var (
	ErrNotConfigured    = errors.New("crew chief is not configured")
	ErrNoState          = errors.New("no race state available")
	ErrUnknownCar       = errors.New("unknown car")
	ErrStaleLap         = errors.New("race state advanced while generating insight")
	ErrQuestionRequired = errors.New("question is required")
)

type Insight struct {
	CarNumber  string `json:"carNumber"`
	LapCurrent int    `json:"lapCurrent"`
	Insight    string `json:"insight"`
	Priority   string `json:"priority"`
	Scenario   string `json:"scenario"`
}

type Answer struct {
	Answer string `json:"answer"`
}

// StateProvider returns the latest processed lap tick or nil.
type StateProvider interface {
	Current() *model.TickResult
}

type insightKey struct {
	session string
	carNum  string
	lap     int
}

type Service struct {
	completer llm.Completer
	state     StateProvider
	insights  cache.Cache[insightKey, Insight]
	logger    *log.Logger
	cacheTTL  time.Duration
}

type Option func(*Service)

func WithCompleter(c llm.Completer) Option {
	return func(s *Service) {
		s.completer = c
	}
}

func WithStateProvider(p StateProvider) Option {
	return func(s *Service) {
		s.state = p
	}
}

func WithCacheTTL(d time.Duration) Option {
	return func(s *Service) {
		s.cacheTTL = d
	}
}

func NewService(opts ...Option) *Service {
	ret := &Service{
		logger:   log.Default().Named("crewchief"),
		cacheTTL: 10 * time.Minute,
	}
	for _, opt := range opts {
		opt(ret)
	}
	ret.insights = loadercache.New(
		loadercache.WithLoader[insightKey, Insight](ret.loadInsight),
		loadercache.WithExpiration[insightKey, Insight](ret.cacheTTL),
		loadercache.WithMaxItems[insightKey, Insight](500),
		loadercache.WithLogger[insightKey, Insight](ret.logger.Named("cache")),
	)
	return ret
}

// Insight returns the coaching advice for the car at the current lap.
// Advice is generated once per car and lap.
func (s *Service) Insight(ctx context.Context, carNum string) (*Insight, error) {
	if s.completer == nil {
		return nil, ErrNotConfigured
	}
	tick, ca, err := s.lookup(carNum)
	if err != nil {
		return nil, err
	}
	return s.insights.Get(ctx, insightKey{
		session: tick.SessionKey,
		carNum:  ca.Car.CarNumber,
		lap:     tick.CurrentLap,
	})
}

func (s *Service) loadInsight(ctx context.Context, key insightKey) (*Insight, error) {
	tick, ca, err := s.lookup(key.carNum)
	if err != nil {
		return nil, err
	}
	if tick.SessionKey != key.session || tick.CurrentLap != key.lap {
		return nil, ErrStaleLap
	}
	return s.Generate(ctx, ca, tick.TotalLaps)
}

// Generate asks the model for advice on ca without caching.
//
//nolint:whitespace // editor/linter issue
func (s *Service) Generate(
	ctx context.Context, ca *model.CarAnalysis, totalLaps int,
) (*Insight, error) {
	if s.completer == nil {
		return nil, ErrNotConfigured
	}
	scenario := DetermineScenario(ca.Car.Position, ca.LeadChase)
	prompt := BuildPrompt(scenario, ca.Car.Position, BuildContextSummary(ca, totalLaps))
	s.logger.Debug("requesting insight",
		log.String("carNum", ca.Car.CarNumber),
		log.String("scenario", scenario),
		log.String("prompt", prompt))

	text, err := s.completer.Complete(ctx, llm.Request{
		Messages: []llm.Message{
			{Role: "system", Content: InsightSystemPrompt},
			{Role: "user", Content: prompt},
		},
		Temperature: Temperature,
		MaxTokens:   InsightMaxTokens,
	})
	if err != nil {
		return nil, err
	}
	return &Insight{
		CarNumber:  ca.Car.CarNumber,
		LapCurrent: ca.Car.CurrentLap,
		Insight:    text,
		Priority:   DeterminePriority(ca),
		Scenario:   scenario,
	}, nil
}

// Ask answers a free form question. If carNum is not empty the current
// state of that car is added to the system prompt.
func (s *Service) Ask(ctx context.Context, question, carNum string) (*Answer, error) {
	if s.completer == nil {
		return nil, ErrNotConfigured
	}
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, ErrQuestionRequired
	}
	system := QASystemPrompt
	if carNum != "" {
		tick, ca, err := s.lookup(carNum)
		if err != nil {
			return nil, err
		}
		system += QAContext(ca, tick.TotalLaps)
	}
	text, err := s.completer.Complete(ctx, llm.Request{
		Messages: []llm.Message{
			{Role: "system", Content: system},
			{Role: "user", Content: question},
		},
		Temperature: Temperature,
		MaxTokens:   AnswerMaxTokens,
	})
	if err != nil {
		return nil, err
	}
	return &Answer{Answer: text}, nil
}

// Reset drops all cached insights.
func (s *Service) Reset(ctx context.Context) {
	s.insights.InvalidateAll(ctx)
}

func (s *Service) lookup(carNum string) (*model.TickResult, *model.CarAnalysis, error) {
	if s.state == nil {
		return nil, nil, ErrNoState
	}
	tick := s.state.Current()
	if tick == nil {
		return nil, nil, ErrNoState
	}
	ca := tick.CarByNumber(carNum)
	if ca == nil {
		return nil, nil, ErrUnknownCar
	}
	return tick, ca, nil
}
