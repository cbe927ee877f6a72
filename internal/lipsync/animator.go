package lipsync

import "math"

// Tau is the smoothing time constant in seconds.
const Tau = 0.06

// SpeedFor returns the easing speed for an utterance of length characters; shorter is faster.
func SpeedFor(length int) float64 {
	return 0.7 + 0.7*math.Exp(-float64(length)/40)
}

// Animator eases every viseme shape toward 1 while its phoneme is active and toward 0 otherwise.
type Animator struct {
	id      string
	timings []Timing
	visemes []Viseme
	speed   float64
	elapsed float64
	weights map[Viseme]float64
	done    bool
}

func NewAnimator(u *Utterance) *Animator {
	a := &Animator{
		id:      u.ID,
		timings: append([]Timing(nil), u.Timings...),
		visemes: make([]Viseme, len(u.Timings)),
		speed:   SpeedFor(u.Length),
		weights: make(map[Viseme]float64, len(Visemes)),
	}
	for i, t := range a.timings {
		a.visemes[i] = PhonemeToViseme(t.Phoneme)
	}
	return a
}

func (a *Animator) UtteranceID() string { return a.id }

func (a *Animator) Elapsed() float64 { return a.elapsed }

func (a *Animator) Done() bool { return a.done }

// Patch replaces a phoneme once its lookup resolves. Stale indexes are ignored.
func (a *Animator) Patch(r Resolution) bool {
	if r.UtteranceID != a.id || r.Index < 0 || r.Index >= len(a.timings) {
		return false
	}
	a.timings[r.Index].Phoneme = r.Symbol
	a.visemes[r.Index] = PhonemeToViseme(r.Symbol)
	return true
}

// End is when the last phoneme's window closes.
func (a *Animator) End() float64 {
	if len(a.timings) == 0 {
		return 0
	}
	return a.timings[len(a.timings)-1].End()
}

// Active returns the viseme whose window contains t, or neutral.
func (a *Animator) Active(t float64) Viseme {
	for i, tm := range a.timings {
		if t >= tm.Start && t < tm.End() {
			return a.visemes[i]
		}
	}
	return VisemeNeutral
}

// Step eases toward the viseme active at the current time, then advances by dt.
// Past the end every mouth shape is zeroed and done is reported.
func (a *Animator) Step(dt float64) (map[string]float32, bool) {
	out := make(map[string]float32, len(Visemes))
	if a.done || a.elapsed > a.End() || len(a.timings) == 0 {
		a.done = true
		for _, v := range Visemes {
			a.weights[v] = 0
			out[v.Shape()] = 0
		}
		return out, true
	}

	active := a.Active(a.elapsed)
	alpha := 1 - math.Exp(-a.speed*dt/Tau)
	for _, v := range Visemes {
		target := 0.0
		if v == active {
			target = 1
		}
		w := a.weights[v] + (target-a.weights[v])*alpha
		a.weights[v] = w
		out[v.Shape()] = float32(w)
	}
	a.elapsed += dt
	return out, false
}

// Weight returns the current eased weight of v.
func (a *Animator) Weight(v Viseme) float64 {
	return a.weights[v]
}
