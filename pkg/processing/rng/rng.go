package rng

import (
	"hash/fnv"
	"math/rand"
	"sync"
)

// Source provides uniformly distributed values in [0,1).
type Source interface {
	Float64() float64
}

const (
	SubsystemSynth      = "synth"
	SubsystemBiometrics = "biometrics"
	SubsystemComponents = "components"
)

// PartitionedRNG hands out isolated, deterministically seeded sources per
// subsystem. Derived seed: seed XOR fnv1a64(subsystem).
type PartitionedRNG struct {
	seed       int64
	mu         sync.Mutex
	subsystems map[string]*lockedRand
}

func NewPartitionedRNG(seed int64) *PartitionedRNG {
	return &PartitionedRNG{
		seed:       seed,
		subsystems: make(map[string]*lockedRand),
	}
}

// ForSubsystem returns the cached source for name. Never returns nil.
func (p *PartitionedRNG) ForSubsystem(name string) Source {
	p.mu.Lock()
	defer p.mu.Unlock()
	if r, ok := p.subsystems[name]; ok {
		return r
	}
	//nolint:gosec // simulation only
	r := &lockedRand{r: rand.New(rand.NewSource(p.seed ^ fnv1a64(name)))}
	p.subsystems[name] = r
	return r
}

func (p *PartitionedRNG) Seed() int64 {
	return p.seed
}

type lockedRand struct {
	mu sync.Mutex
	r  *rand.Rand
}

func (l *lockedRand) Float64() float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.r.Float64()
}

// Sequence replays fixed values in a loop. Used to pin down jitter in tests.
type Sequence struct {
	values []float64
	idx    int
}

func NewSequence(values ...float64) *Sequence {
	if len(values) == 0 {
		values = []float64{0.5}
	}
	return &Sequence{values: values}
}

func (s *Sequence) Float64() float64 {
	v := s.values[s.idx%len(s.values)]
	s.idx++
	return v
}

// Between maps a draw from src into [lo,hi).
func Between(src Source, lo, hi float64) float64 {
	return lo + src.Float64()*(hi-lo)
}

func fnv1a64(s string) int64 {
	h := fnv.New64a()
	h.Write([]byte(s))
	return int64(h.Sum64())
}
