// Package settings stores player preferences next to progress.
package settings

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/verte-zerg/factopia/internal/kv"
	"github.com/verte-zerg/factopia/internal/logger"
)

// Storage keys.
const (
	KeySoundEnabled = "factopia_sound_enabled"
	KeyTheme        = "factopia_theme"
)

// Theme names a UI style.
type Theme string

// Known themes, in toggle order.
const (
	ThemePixel  Theme = "pixel"
	ThemeModern Theme = "modern"
	ThemeClay   Theme = "clay"
)

// Themes lists every accepted theme in cycle order.
var Themes = []Theme{ThemePixel, ThemeModern, ThemeClay}

// ErrUnknownTheme is returned for names outside Themes.
var ErrUnknownTheme = errors.New("unknown theme")

// ParseTheme validates a theme name.
func ParseTheme(name string) (Theme, error) {
	for _, t := range Themes {
		if string(t) == name {
			return t, nil
		}
	}
	return "", fmt.Errorf("%w %q (available: pixel, modern, clay)", ErrUnknownTheme, name)
}

// Settings holds the sound toggle and theme preference.
type Settings struct {
	store kv.Store
	log   *logger.Logger

	mu       sync.Mutex
	sound    bool
	theme    Theme
	degraded error
}

// Load reads preferences from store, falling back to defaults for missing
// or invalid values.
func Load(ctx context.Context, store kv.Store, log *logger.Logger) *Settings {
	if log == nil {
		log = logger.Nop()
	}
	s := &Settings{store: store, log: log, sound: true, theme: ThemePixel}

	var sound bool
	if ok, err := kv.GetJSON(ctx, store, KeySoundEnabled, &sound); err != nil {
		s.degrade(err)
	} else if ok {
		s.sound = sound
	}

	var name string
	if ok, err := kv.GetJSON(ctx, store, KeyTheme, &name); err != nil {
		s.degrade(err)
	} else if ok {
		if t, err := ParseTheme(name); err == nil {
			s.theme = t
		} else {
			log.Warn("ignoring stored theme", "theme", name)
		}
	}
	return s
}

// SoundEnabled reports whether answer feedback sounds are on.
func (s *Settings) SoundEnabled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sound
}

// ToggleSound flips the sound preference and returns the new value.
func (s *Settings) ToggleSound(ctx context.Context) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sound = !s.sound
	s.saveLocked(ctx, KeySoundEnabled, s.sound)
	return s.sound
}

// Theme returns the current theme.
func (s *Settings) Theme() Theme {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.theme
}

// SwitchTheme selects a theme by name.
func (s *Settings) SwitchTheme(ctx context.Context, name string) error {
	t, err := ParseTheme(name)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.theme = t
	s.saveLocked(ctx, KeyTheme, string(t))
	return nil
}

// ToggleTheme advances to the next theme in Themes and returns it.
func (s *Settings) ToggleTheme(ctx context.Context) Theme {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx := 0
	for i, t := range Themes {
		if t == s.theme {
			idx = i
			break
		}
	}
	s.theme = Themes[(idx+1)%len(Themes)]
	s.saveLocked(ctx, KeyTheme, string(s.theme))
	return s.theme
}

// Degraded returns the storage error that made settings memory-only.
func (s *Settings) Degraded() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.degraded
}

func (s *Settings) saveLocked(ctx context.Context, key string, v any) {
	if s.degraded != nil {
		return
	}
	if err := kv.SetJSON(ctx, s.store, key, v); err != nil {
		s.degrade(err)
	}
}

func (s *Settings) degrade(err error) {
	if s.degraded != nil {
		return
	}
	s.degraded = err
	s.log.Warn("settings storage unavailable; changes will not be saved", "error", err)
}
