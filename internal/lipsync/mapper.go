package lipsync

import (
	"context"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// SecondsPerCharacter is the coarse speech-rate estimate used for timing.
const SecondsPerCharacter = 0.1

type Timing struct {
	Phoneme  string
	Start    float64
	Duration float64
}

func (t Timing) End() float64 { return t.Start + t.Duration }

// ComputeTimings spreads length*SecondsPerCharacter evenly over the phonemes.
func ComputeTimings(phonemes []string, length int) []Timing {
	n := len(phonemes)
	if n == 0 {
		return nil
	}
	d := float64(length) * SecondsPerCharacter / float64(n)
	out := make([]Timing, n)
	for i, p := range phonemes {
		out[i] = Timing{Phoneme: p, Start: float64(i) * d, Duration: d}
	}
	return out
}

// Utterance is text prepared for animation. Pending indexes phonemes still awaiting a lookup.
type Utterance struct {
	ID       string
	Text     string
	Script   Script
	Length   int
	Phonemes []Phoneme
	Timings  []Timing
	Pending  []int
}

// Resolution patches one pending phoneme of an utterance.
type Resolution struct {
	UtteranceID string
	Index       int
	Symbol      string
	Fallback    bool
}

type Mapper struct {
	lookup  Lookup
	timeout time.Duration
	log     zerolog.Logger
}

func NewMapper(lookup Lookup, timeout time.Duration, log zerolog.Logger) *Mapper {
	if lookup == nil {
		lookup = NewPinyinLookup()
	}
	if timeout <= 0 {
		timeout = DefaultLookupTimeout
	}
	return &Mapper{lookup: lookup, timeout: timeout, log: log.With().Str("component", "lipsync").Logger()}
}

// Prepare extracts phonemes and timings without waiting on lookups.
func (m *Mapper) Prepare(text string) *Utterance {
	script, phonemes := Extract(text)
	u := &Utterance{
		ID:       uuid.NewString(),
		Text:     text,
		Script:   script,
		Length:   utf8.RuneCountInString(text),
		Phonemes: phonemes,
	}
	symbols := make([]string, len(phonemes))
	for i, p := range phonemes {
		symbols[i] = p.Symbol
		if p.Pending {
			u.Pending = append(u.Pending, i)
		}
	}
	u.Timings = ComputeTimings(symbols, u.Length)

	m.log.Debug().
		Str("utterance", u.ID).
		Str("script", script.String()).
		Int("phonemes", len(phonemes)).
		Int("pending", len(u.Pending)).
		Msg("Utterance prepared")
	return u
}

// ResolvePending looks up every pending phoneme off the caller's goroutine and hands
// each result to deliver. It returns immediately; deliver may run concurrently.
func (m *Mapper) ResolvePending(ctx context.Context, u *Utterance, deliver func(Resolution)) {
	for _, idx := range u.Pending {
		idx, r := idx, u.Phonemes[idx].Source
		go func() {
			sym, ok := resolveWithTimeout(ctx, m.lookup, r, m.timeout)
			if !ok {
				m.log.Debug().Str("char", string(r)).Msg("Ideograph lookup fell back to neutral vowel")
			}
			deliver(Resolution{UtteranceID: u.ID, Index: idx, Symbol: sym, Fallback: !ok})
		}()
	}
}

// TextToPhonemes is the blocking form: every lookup is resolved (or falls back) before returning.
func (m *Mapper) TextToPhonemes(ctx context.Context, text string) []string {
	_, phonemes := Extract(text)
	out := make([]string, len(phonemes))

	var wg sync.WaitGroup
	for i, p := range phonemes {
		out[i] = p.Symbol
		if !p.Pending {
			continue
		}
		wg.Add(1)
		go func(i int, r rune) {
			defer wg.Done()
			out[i], _ = resolveWithTimeout(ctx, m.lookup, r, m.timeout)
		}(i, p.Source)
	}
	wg.Wait()
	return out
}
