package lipsync

import (
	"context"
	"errors"
	"time"

	gopinyin "github.com/mozillazg/go-pinyin"

	"github.com/normanking/cortexmotion/internal/metrics"
)

// DefaultLookupTimeout bounds one ideograph lookup.
const DefaultLookupTimeout = 150 * time.Millisecond

var ErrNoReading = errors.New("no reading for character")

// Lookup resolves one ideograph to its most likely vowel nucleus. It may be slow.
type Lookup interface {
	Vowel(ctx context.Context, r rune) (string, error)
}

// PinyinLookup reads Mandarin finals from the go-pinyin dictionary.
type PinyinLookup struct {
	args gopinyin.Args
}

func NewPinyinLookup() *PinyinLookup {
	args := gopinyin.NewArgs()
	args.Style = gopinyin.Finals
	return &PinyinLookup{args: args}
}

func (p *PinyinLookup) Vowel(ctx context.Context, r rune) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	readings := gopinyin.Pinyin(string(r), p.args)
	if len(readings) == 0 || len(readings[0]) == 0 || readings[0][0] == "" {
		return "", ErrNoReading
	}
	return Nucleus(readings[0][0]), nil
}

// LookupFunc adapts a function to Lookup.
type LookupFunc func(ctx context.Context, r rune) (string, error)

func (f LookupFunc) Vowel(ctx context.Context, r rune) (string, error) { return f(ctx, r) }

// resolveWithTimeout never blocks longer than timeout and falls back to NeutralVowel.
func resolveWithTimeout(ctx context.Context, l Lookup, r rune, timeout time.Duration) (string, bool) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type result struct {
		vowel string
		err   error
	}
	ch := make(chan result, 1)
	go func() {
		v, err := l.Vowel(ctx, r)
		ch <- result{v, err}
	}()

	select {
	case res := <-ch:
		if res.err != nil || res.vowel == "" {
			metrics.LookupFallbacks.Inc()
			return NeutralVowel, false
		}
		return res.vowel, true
	case <-ctx.Done():
		metrics.LookupFallbacks.Inc()
		return NeutralVowel, false
	}
}
