package procedural

import "sync"

// DefaultFlourishInterval is the idle flourish period in seconds.
const DefaultFlourishInterval = 3.0

// Flourish is the idle-only periodic timer. It fires every interval while started
// and cycles through its variants so consecutive flourishes differ.
type Flourish struct {
	mu sync.Mutex

	interval float64
	variants []string

	active  bool
	elapsed float64
	fired   int
}

func NewFlourish(interval float64, variants ...string) *Flourish {
	if interval <= 0 {
		interval = DefaultFlourishInterval
	}
	return &Flourish{interval: interval, variants: append([]string(nil), variants...)}
}

// Start arms the timer from zero. Starting an active timer restarts its period.
func (f *Flourish) Start() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.active = true
	f.elapsed = 0
}

func (f *Flourish) Stop() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.active = false
	f.elapsed = 0
}

func (f *Flourish) Active() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.active
}

func (f *Flourish) Interval() float64 { return f.interval }

// Fired returns how many times the timer has fired since creation.
func (f *Flourish) Fired() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.fired
}

// Update advances the timer. When a period elapses it returns the next variant and true.
// With no variants the returned name is empty.
func (f *Flourish) Update(dt float64) (string, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if !f.active || dt <= 0 {
		return "", false
	}
	f.elapsed += dt
	if f.elapsed < f.interval {
		return "", false
	}
	f.elapsed -= f.interval

	var name string
	if len(f.variants) > 0 {
		name = f.variants[f.fired%len(f.variants)]
	}
	f.fired++
	return name, true
}
