package character

import (
	"context"

	"github.com/normanking/cortexmotion/internal/bus"
	"github.com/normanking/cortexmotion/internal/lipsync"
)

// Speak starts lip-sync for text, replacing any utterance in progress. Ideograph
// lookups run in the background; until they land the mouth uses the neutral vowel.
func (r *Runtime) Speak(text string) *lipsync.Utterance {
	u := r.mapper.Prepare(text)
	anim := lipsync.NewAnimator(u)
	id := "speech:" + u.ID

	r.mu.Lock()
	r.speech = anim
	r.speechID = id
	if r.hold == "" {
		r.setStateLocked(StateSpeaking)
	}
	r.mu.Unlock()

	if len(u.Pending) > 0 {
		r.mapper.ResolvePending(r.ctx, u, r.deliver)
	}
	r.sched.Start(newTrack(id, &speech{anim: anim}), func(completed bool) { r.speechDone(id, completed) })

	e := bus.NewEvent(bus.EventSpeechStarted)
	e.Text = text
	e.Details = map[string]any{"utterance": u.ID, "phonemes": len(u.Phonemes), "pending": len(u.Pending)}
	r.publish(e)
	return u
}

// StopLipSync cancels the current utterance; the mouth shapes reset on the next tick.
// Safe to call when nothing is being spoken.
func (r *Runtime) StopLipSync() bool {
	r.mu.Lock()
	id := r.speechID
	r.mu.Unlock()
	if id == "" {
		return false
	}
	return r.sched.Stop(id)
}

// Speaking reports whether an utterance is animating.
func (r *Runtime) Speaking() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.speechID != ""
}

func (r *Runtime) speechDone(id string, completed bool) {
	r.mu.Lock()
	current := r.speechID == id
	if current {
		r.speech = nil
		r.speechID = ""
		if r.hold == "" && r.state == StateSpeaking {
			r.setStateLocked(StateIdle)
		}
	}
	r.mu.Unlock()

	if !current {
		return
	}
	e := bus.NewEvent(bus.EventSpeechFinished)
	e.Details = map[string]any{"completed": completed}
	r.publish(e)
}

// deliver runs on lookup goroutines. Results are queued for the next tick.
func (r *Runtime) deliver(res lipsync.Resolution) {
	select {
	case r.resolutions <- res:
	default:
		r.log.Warn().Str("utterance", res.UtteranceID).Int("index", res.Index).Msg("Lookup result dropped, queue full")
	}
}

func (r *Runtime) drainResolutions() {
	for {
		select {
		case res := <-r.resolutions:
			r.mu.Lock()
			if r.speech != nil {
				r.speech.Patch(res)
			}
			r.mu.Unlock()
		default:
			return
		}
	}
}

// Warm loads persisted motions into the library.
func (r *Runtime) Warm(ctx context.Context) (int, error) {
	return r.library.Warm(ctx)
}
