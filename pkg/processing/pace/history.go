package pace

import (
	"strconv"
	"strings"
	"sync"
	"unicode"
)

// DefaultWindow is the number of lap times kept per car.
const DefaultWindow = 50

// History stores the observed lap times per car. Entries are kept in
// insertion order; once a window is configured the oldest entries are dropped.
type History struct {
	mu     sync.Mutex
	window int
	laps   map[string][]float64
}

type HistoryOption func(h *History)

// WithWindow limits the entries kept per car. 0 means unbounded.
func WithWindow(n int) HistoryOption {
	return func(h *History) {
		h.window = max(0, n)
	}
}

func NewHistory(opts ...HistoryOption) *History {
	ret := &History{
		window: DefaultWindow,
		laps:   make(map[string][]float64),
	}
	for _, opt := range opts {
		opt(ret)
	}
	return ret
}

// Append adds lapTime for the car and returns a copy of the car's laps
// including the new one.
func (h *History) Append(carKey string, lapTime float64) []float64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	laps := append(h.laps[carKey], lapTime)
	if h.window > 0 && len(laps) > h.window {
		laps = append(laps[:0:0], laps[len(laps)-h.window:]...)
	}
	h.laps[carKey] = laps
	ret := make([]float64, len(laps))
	copy(ret, laps)
	return ret
}

// Laps returns a copy of the laps recorded for the car.
func (h *History) Laps(carKey string) []float64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	ret := make([]float64, len(h.laps[carKey]))
	copy(ret, h.laps[carKey])
	return ret
}

func (h *History) Cars() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.laps)
}

func (h *History) Reset() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.laps = make(map[string][]float64)
}

// CarKey normalizes a car number the way integer parsing would: leading
// digits are used ("07" and "7" share a key). Identifiers without leading
// digits keep their trimmed raw value.
func CarKey(carNumber string) string {
	s := strings.TrimSpace(carNumber)
	end := 0
	if end < len(s) && (s[end] == '+' || s[end] == '-') {
		end++
	}
	digitsStart := end
	for end < len(s) && unicode.IsDigit(rune(s[end])) {
		end++
	}
	if end == digitsStart {
		return s
	}
	n, err := strconv.Atoi(s[:end])
	if err != nil {
		return s
	}
	return strconv.Itoa(n)
}
