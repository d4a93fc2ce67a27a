// Package scramble morphs one string into another through progressive,
// phase-weighted random substitution, one frame at a time.
//
// A session moves through three stages of its duration:
//
//   - settling-in (first 20%): source characters give way to random ones,
//     the chance of randomness rising linearly from 0 to 1;
//   - reveal sweep (20%–80%): target characters are revealed left to right,
//     everything not yet revealed shows fresh random characters;
//   - lock-in (last 20%): each position shows its target character with a
//     probability rising linearly to 1.
//
// Positions where source and target agree never change.
package scramble

import (
	"math/rand"
	"time"
)

// DefaultAlphabet is the pool random characters are drawn from.
const DefaultAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789!@#$%^&*()_+-=[]{}|;:,./<>?"

// Placeholder pads the shorter string. It renders blank and is never drawn
// from the alphabet.
const Placeholder = ' '

const (
	settleEnd = 0.2
	revealEnd = 0.8
)

// Stage identifies which part of the morph a progress value falls in.
type Stage int

const (
	StageSettle Stage = iota
	StageReveal
	StageLockIn
	StageDone
)

func (s Stage) String() string {
	switch s {
	case StageSettle:
		return "settle"
	case StageReveal:
		return "reveal"
	case StageLockIn:
		return "lock-in"
	case StageDone:
		return "done"
	}
	return "unknown"
}

// StageAt maps progress p in [0, 1] to its stage.
func StageAt(p float64) Stage {
	switch {
	case p >= 1:
		return StageDone
	case p >= revealEnd:
		return StageLockIn
	case p >= settleEnd:
		return StageReveal
	default:
		return StageSettle
	}
}

// Option configures a Session.
type Option func(*Session)

// WithRand sets the random source. Sessions default to a time-seeded source.
func WithRand(rng *rand.Rand) Option {
	return func(s *Session) { s.rng = rng }
}

// WithAlphabet replaces the pool of random characters. The placeholder is
// removed from it; an alphabet left empty is ignored.
func WithAlphabet(alphabet string) Option {
	return func(s *Session) {
		pool := make([]rune, 0, len(alphabet))
		for _, r := range alphabet {
			if r != Placeholder {
				pool = append(pool, r)
			}
		}
		if len(pool) > 0 {
			s.alphabet = pool
		}
	}
}

// Session is one source → target morph.
type Session struct {
	source   []rune
	target   []rune
	final    string
	fixed    []bool
	duration time.Duration
	alphabet []rune
	rng      *rand.Rand

	started bool
	start   time.Time
	frame   int
	done    bool
	out     []rune
}

// New creates a session morphing source into target over duration.
func New(source, target string, duration time.Duration, opts ...Option) *Session {
	src := []rune(source)
	dst := []rune(target)
	n := len(src)
	if len(dst) > n {
		n = len(dst)
	}
	s := &Session{
		source:   pad(src, n),
		target:   pad(dst, n),
		final:    target,
		fixed:    make([]bool, n),
		duration: duration,
		alphabet: []rune(DefaultAlphabet),
		out:      make([]rune, n),
	}
	for i := 0; i < n; i++ {
		s.fixed[i] = s.source[i] == s.target[i]
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.rng == nil {
		s.rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return s
}

// Width is the padded length every intermediate tick has.
func (s *Session) Width() int {
	return len(s.target)
}

// Target returns the text the session converges to.
func (s *Session) Target() string {
	return s.final
}

// Done reports whether the final text has been produced.
func (s *Session) Done() bool {
	return s.done
}

// Progress returns the elapsed fraction at now, clamped to [0, 1]. Before the
// first frame it is 0.
func (s *Session) Progress(now time.Time) float64 {
	if !s.started {
		return 0
	}
	if s.duration <= 0 {
		return 1
	}
	p := float64(now.Sub(s.start)) / float64(s.duration)
	if p < 0 {
		return 0
	}
	if p > 1 {
		return 1
	}
	return p
}

// Frame advances the session by one animation frame stamped now. The first
// frame fixes the start time. emit reports whether text is a new tick; done
// reports whether text is the final, unpadded target. Frames after done
// return ("", false, true).
func (s *Session) Frame(now time.Time) (text string, emit bool, done bool) {
	if s.done {
		return "", false, true
	}
	if !s.started {
		s.started = true
		s.start = now
	}
	frame := s.frame
	s.frame++

	if len(s.target) == 0 {
		s.done = true
		return "", false, true
	}
	if s.allFixed() {
		s.done = true
		return s.final, true, true
	}

	p := s.Progress(now)
	stage := StageAt(p)
	if stage == StageDone {
		s.done = true
		return s.final, true, true
	}
	// The reveal sweep only re-randomizes on even frames.
	if stage == StageReveal && frame%2 != 0 {
		return "", false, false
	}
	s.compose(p, stage)
	return string(s.out), true, false
}

func (s *Session) compose(p float64, stage Stage) {
	n := len(s.target)
	revealed := 0
	if stage == StageReveal {
		revealed = revealedCount(p, n)
	}
	for i := 0; i < n; i++ {
		if s.fixed[i] {
			s.out[i] = s.target[i]
			continue
		}
		switch stage {
		case StageSettle:
			if s.rng.Float64() < 1-p/settleEnd {
				s.out[i] = s.source[i]
			} else {
				s.out[i] = s.randomRune(Placeholder)
			}
		case StageReveal:
			if i < revealed {
				s.out[i] = s.target[i]
			} else {
				s.out[i] = s.randomRune(s.target[i])
			}
		case StageLockIn:
			if s.rng.Float64() < (p-revealEnd)/(1-revealEnd) {
				s.out[i] = s.target[i]
			} else {
				s.out[i] = s.randomRune(Placeholder)
			}
		}
	}
}

// revealedCount is the number of leading positions shown as target during the
// reveal sweep: index i is revealed once i < (p-0.2)*n/0.6.
func revealedCount(p float64, n int) int {
	limit := (p - settleEnd) * float64(n) / (revealEnd - settleEnd)
	count := 0
	for count < n && float64(count) < limit {
		count++
	}
	return count
}

// randomRune draws from the alphabet, avoiding except when the alphabet
// allows it.
func (s *Session) randomRune(except rune) rune {
	for attempt := 0; attempt < 8; attempt++ {
		r := s.alphabet[s.rng.Intn(len(s.alphabet))]
		if r != except {
			return r
		}
	}
	for _, r := range s.alphabet {
		if r != except {
			return r
		}
	}
	return s.alphabet[0]
}

func (s *Session) allFixed() bool {
	for _, f := range s.fixed {
		if !f {
			return false
		}
	}
	return true
}

func pad(rs []rune, n int) []rune {
	out := make([]rune, n)
	copy(out, rs)
	for i := len(rs); i < n; i++ {
		out[i] = Placeholder
	}
	return out
}
