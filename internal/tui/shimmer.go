package tui

import (
	"fmt"
	"math"
	"os"
	"strings"
	"time"
)

// ShimmerConfig holds configuration for the champion banner sweep
type ShimmerConfig struct {
	Enabled    bool          // animations: on|off
	Speed      time.Duration // tick interval (default 100ms)
	WidthRatio float64       // highlight width relative to the text (default 0.25)
	Cycle      time.Duration // time for one sweep across the text (default 1.8s)
	Pause      time.Duration // rest between sweeps (default 1.2s)
}

// DefaultShimmerConfig returns default shimmer configuration
func DefaultShimmerConfig() ShimmerConfig {
	return ShimmerConfig{
		Enabled:    os.Getenv("CHAMP_REDUCE_MOTION") == "",
		Speed:      100 * time.Millisecond,
		WidthRatio: 0.25,
		Cycle:      1800 * time.Millisecond,
		Pause:      1200 * time.Millisecond,
	}
}

// Shimmer sweeps a light highlight across a line of text. Positions are in
// runes so emoji and accented names sweep evenly.
type Shimmer struct {
	config    ShimmerConfig
	trueColor bool

	center     float64
	paused     bool
	pauseStart time.Time
}

// NewShimmer creates a shimmer
func NewShimmer(config ShimmerConfig) *Shimmer {
	return &Shimmer{
		config:    config,
		trueColor: os.Getenv("COLORTERM") == "truecolor",
	}
}

// Active reports whether the shimmer animates at all
func (s *Shimmer) Active() bool {
	return s.config.Enabled && s.config.Speed > 0
}

// Interval returns the interval for tea.Tick commands
func (s *Shimmer) Interval() time.Duration {
	return s.config.Speed
}

// Advance moves the highlight one tick along a text of n runes
func (s *Shimmer) Advance(now time.Time, n int) {
	if !s.Active() || n <= 0 {
		return
	}

	spread := float64(n) * s.config.WidthRatio
	if s.paused {
		if now.Sub(s.pauseStart) >= s.config.Pause {
			s.paused = false
			s.center = -spread // Start before the beginning
		}
		return
	}

	ticksPerCycle := float64(s.config.Cycle) / float64(s.config.Speed)
	s.center += (float64(n) + 2*spread) / ticksPerCycle

	if s.center >= float64(n)+spread {
		s.paused = true
		s.pauseStart = now
	}
}

// Render renders text with the highlight at its current position, in the
// given base color
func (s *Shimmer) Render(text string, base, highlight [3]int) string {
	runes := []rune(text)
	if len(runes) == 0 {
		return ""
	}
	if !s.Active() || s.paused {
		return paint(text, base, s.trueColor)
	}

	sigma := math.Max(1, s.config.WidthRatio*float64(len(runes))/2)

	var b strings.Builder
	for i, r := range runes {
		dx := float64(i) - s.center
		w := math.Exp(-(dx * dx) / (2 * sigma * sigma))

		var c [3]int
		for k := range c {
			c[k] = int(float64(base[k])*(1-w) + float64(highlight[k])*w)
		}
		b.WriteString(paint(string(r), c, s.trueColor))
	}
	return b.String()
}

// paint colors text with rgb, falling back to the nearest 256-color cube
// entry when the terminal lacks truecolor
func paint(text string, rgb [3]int, trueColor bool) string {
	if trueColor {
		return fmt.Sprintf("\033[38;2;%d;%d;%dm%s\033[0m", rgb[0], rgb[1], rgb[2], text)
	}
	cube := func(v int) int { return int(math.Round(float64(v) / 255 * 5)) }
	code := 16 + 36*cube(rgb[0]) + 6*cube(rgb[1]) + cube(rgb[2])
	return fmt.Sprintf("\033[38;5;%dm%s\033[0m", code, text)
}

// Gold and its highlight as rgb, matching ColorGold and ColorGoldLight
var (
	rgbGold      = [3]int{245, 179, 1}
	rgbGoldLight = [3]int{255, 232, 163}
)
