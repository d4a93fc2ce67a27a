// Package sequence holds the immutable timeline of the intro: which phase
// starts when, and how long the scramble, glow pulse and bullet sweep last.
package sequence

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Version is the current file format version.
const Version = 1

// Step names one phase and its offset in milliseconds.
type Step struct {
	Phase string `yaml:"phase"`
	AtMs  int    `yaml:"at_ms"`
}

// Offset converts AtMs to a duration.
func (s Step) Offset() time.Duration {
	return time.Duration(s.AtMs) * time.Millisecond
}

// Timeline is a sequence definition. Intro offsets count from the start of
// the run; Outro offsets count from the moment the label settles.
type Timeline struct {
	Version    int    `yaml:"version"`
	Intro      []Step `yaml:"intro"`
	Outro      []Step `yaml:"outro"`
	ScrambleMs int    `yaml:"scramble_ms"`
	PulseMs    int    `yaml:"pulse_ms"`
	BulletMs   int    `yaml:"bullet_ms"`
}

// Default returns the stock intro timings.
func Default() Timeline {
	return Timeline{
		Version: Version,
		Intro: []Step{
			{Phase: "name_visible", AtMs: 500},
			{Phase: "retracting", AtMs: 2500},
			{Phase: "logo_formed", AtMs: 4000},
			{Phase: "scrambling", AtMs: 4300},
		},
		Outro: []Step{
			{Phase: "header_transition", AtMs: 1500},
			{Phase: "interactive", AtMs: 2500},
		},
		ScrambleMs: 1500,
		PulseMs:    600,
		BulletMs:   800,
	}
}

// Scramble is the label scramble duration.
func (t Timeline) Scramble() time.Duration { return ms(t.ScrambleMs) }

// Pulse is the glow pulse duration.
func (t Timeline) Pulse() time.Duration { return ms(t.PulseMs) }

// Bullet is the header bullet sweep duration.
func (t Timeline) Bullet() time.Duration { return ms(t.BulletMs) }

func ms(n int) time.Duration { return time.Duration(n) * time.Millisecond }

// Validate checks the version, that every step names a phase, and that
// offsets and durations are non-negative with offsets non-decreasing.
func (t Timeline) Validate() error {
	if t.Version != Version {
		return fmt.Errorf("unsupported timeline version %d", t.Version)
	}
	if err := validateSteps("intro", t.Intro); err != nil {
		return err
	}
	if err := validateSteps("outro", t.Outro); err != nil {
		return err
	}
	if t.ScrambleMs < 0 || t.PulseMs < 0 || t.BulletMs < 0 {
		return errors.New("durations must not be negative")
	}
	return nil
}

func validateSteps(batch string, steps []Step) error {
	prev := 0
	for i, s := range steps {
		if s.Phase == "" {
			return fmt.Errorf("%s step %d: missing phase", batch, i)
		}
		if s.AtMs < 0 {
			return fmt.Errorf("%s step %q: negative offset", batch, s.Phase)
		}
		if s.AtMs < prev {
			return fmt.Errorf("%s step %q: offset %dms before %dms", batch, s.Phase, s.AtMs, prev)
		}
		prev = s.AtMs
	}
	return nil
}

// Parse decodes and validates a YAML timeline. Missing durations fall back to
// the defaults.
func Parse(data []byte) (Timeline, error) {
	def := Default()
	t := Timeline{
		Version:    Version,
		ScrambleMs: def.ScrambleMs,
		PulseMs:    def.PulseMs,
		BulletMs:   def.BulletMs,
	}
	if err := yaml.Unmarshal(data, &t); err != nil {
		return Timeline{}, fmt.Errorf("decode timeline: %w", err)
	}
	if err := t.Validate(); err != nil {
		return Timeline{}, err
	}
	return t, nil
}

// Read loads a timeline from a YAML file.
func Read(path string) (Timeline, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Timeline{}, err
	}
	return Parse(data)
}

// Write stores a timeline as YAML.
func Write(t Timeline, path string) error {
	data, err := yaml.Marshal(t)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}
