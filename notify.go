package main

import (
	"math"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/faiface/beep"
	"github.com/faiface/beep/speaker"
)

const (
	bellSampleRate = beep.SampleRate(44100)
	bellFrequency  = 880.0
	bellDuration   = 150 * time.Millisecond
	bellCooldown   = 500 * time.Millisecond
)

// Bell plays a short tone on incoming messages and new peers.
type Bell struct {
	mu       sync.Mutex
	play     func(...beep.Streamer) // nil when audio is unavailable
	lastRing time.Time
}

// NewBell initialises the speaker. Without an audio device the bell stays
// silent.
func NewBell(logger *log.Logger) *Bell {
	if err := speaker.Init(bellSampleRate, bellSampleRate.N(time.Second/20)); err != nil {
		logger.Warn("Audio unavailable, bell disabled", "err", err)
		return &Bell{}
	}
	return &Bell{play: speaker.Play}
}

// Attach rings the bell for every entry that should get the user's attention.
func (b *Bell) Attach(state *State) {
	state.OnAppend(func(e HistoryEntry) {
		if e.Kind == EntryMessage || e.Kind == EntryDiscovery {
			b.Ring()
		}
	})
}

// Ring starts the tone without blocking. Rings closer together than
// bellCooldown are collapsed.
func (b *Bell) Ring() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.play == nil || time.Since(b.lastRing) < bellCooldown {
		return
	}
	b.lastRing = time.Now()
	b.play(tone(bellSampleRate, bellFrequency, bellDuration))
}

// tone returns a sine wave of freq Hz lasting d, with a linear fade out.
func tone(sr beep.SampleRate, freq float64, d time.Duration) beep.Streamer {
	total := sr.N(d)
	pos := 0
	return beep.StreamerFunc(func(samples [][2]float64) (n int, ok bool) {
		for i := range samples {
			if pos >= total {
				return i, i > 0
			}
			fade := 1 - float64(pos)/float64(total)
			v := 0.25 * fade * math.Sin(2*math.Pi*freq*float64(pos)/float64(sr))
			samples[i][0], samples[i][1] = v, v
			pos++
		}
		return len(samples), true
	})
}
