package content

import (
	"context"
	"fmt"
	"math/rand"
	"strconv"
	"strings"
)

// Settings keys shared with the admin API and the original channel state.
const (
	SettingWeeklyTheme            = "weekly_theme"
	SettingWeeklyThemeDescription = "weekly_theme_description"
	SettingLastThemeIndices       = "last_theme_indices"
)

// Theme is the week's editorial focus.
type Theme struct {
	Title       string
	Description string
}

// Rotator selects and persists the weekly theme, biased against the themes
// chosen in the last few rotations.
type Rotator struct {
	settings    SettingsRepository
	catalog     []Theme
	historySize int
	intn        func(n int) int
}

// NewRotator builds a Rotator over the given catalog. historySize is the
// number of recent choices to avoid repeating (pass 0 for the default of 3).
func NewRotator(settings SettingsRepository, catalog []Theme, historySize int) *Rotator {
	if historySize <= 0 {
		historySize = 3
	}
	return &Rotator{
		settings:    settings,
		catalog:     catalog,
		historySize: historySize,
		intn:        rand.Intn,
	}
}

// Current returns the persisted weekly theme, or nil when none was ever set.
func (r *Rotator) Current(ctx context.Context) (*Theme, error) {
	title, err := r.settings.GetSetting(ctx, SettingWeeklyTheme)
	if err != nil {
		return nil, fmt.Errorf("reading current theme: %w", err)
	}
	if title == "" {
		return nil, nil
	}
	desc, err := r.settings.GetSetting(ctx, SettingWeeklyThemeDescription)
	if err != nil {
		return nil, fmt.Errorf("reading theme description: %w", err)
	}
	return &Theme{Title: title, Description: desc}, nil
}

// Rotate picks a new theme from the catalog, skipping the indices used in
// the last historySize rotations, persists it as current and returns it.
// The theme is written before the history, so a crash in between leaves a
// valid theme with stale history; the next rotation heals it. On any
// persistence error the previous current theme stays untouched.
func (r *Rotator) Rotate(ctx context.Context) (Theme, error) {
	if len(r.catalog) == 0 {
		return Theme{}, fmt.Errorf("theme catalog is empty")
	}

	history, err := r.loadHistory(ctx)
	if err != nil {
		return Theme{}, err
	}

	recent := make(map[int]struct{}, len(history))
	for _, idx := range history {
		recent[idx] = struct{}{}
	}
	candidates := make([]int, 0, len(r.catalog))
	for i := range r.catalog {
		if _, used := recent[i]; !used {
			candidates = append(candidates, i)
		}
	}
	if len(candidates) == 0 {
		// Catalog smaller than the history window: start over.
		history = nil
		for i := range r.catalog {
			candidates = append(candidates, i)
		}
	}

	chosen := candidates[r.intn(len(candidates))]
	theme := r.catalog[chosen]

	if err := r.settings.SetSetting(ctx, SettingWeeklyTheme, theme.Title); err != nil {
		return Theme{}, fmt.Errorf("persisting theme: %w", err)
	}
	if err := r.settings.SetSetting(ctx, SettingWeeklyThemeDescription, theme.Description); err != nil {
		return Theme{}, fmt.Errorf("persisting theme description: %w", err)
	}

	history = append(history, chosen)
	if len(history) > r.historySize {
		history = history[len(history)-r.historySize:]
	}
	if err := r.settings.SetSetting(ctx, SettingLastThemeIndices, encodeIndices(history)); err != nil {
		return Theme{}, fmt.Errorf("persisting theme history: %w", err)
	}
	return theme, nil
}

func (r *Rotator) loadHistory(ctx context.Context) ([]int, error) {
	raw, err := r.settings.GetSetting(ctx, SettingLastThemeIndices)
	if err != nil {
		return nil, fmt.Errorf("reading theme history: %w", err)
	}
	if raw == "" {
		return nil, nil
	}
	parts := strings.Split(raw, ",")
	out := make([]int, 0, len(parts))
	for _, p := range parts {
		idx, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil || idx < 0 || idx >= len(r.catalog) {
			// Stale or corrupt history entries are dropped, not fatal:
			// the catalog may have shrunk since they were written.
			continue
		}
		out = append(out, idx)
	}
	return out, nil
}

func encodeIndices(indices []int) string {
	parts := make([]string, len(indices))
	for i, idx := range indices {
		parts[i] = strconv.Itoa(idx)
	}
	return strings.Join(parts, ",")
}
