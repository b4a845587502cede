package config

import (
	"context"
	"fmt"
)

// Keys of the persisted settings table.
const (
	KeyTrackingEnabled      = "trackingEnabled"
	KeyAutoStartJourney     = "autoStartJourney"
	KeyExcludedDomains      = "excludedDomains"
	KeyAutoExcludeSensitive = "autoExcludeSensitive"
	KeyScreenshotsEnabled   = "screenshotsEnabled"
	KeyScreenshotQuality    = "screenshotQuality"
	KeyMaxScreenshotAge     = "maxScreenshotAge"
	KeyMaxJourneyAge        = "maxJourneyAge"
	KeyDefaultJourneyName   = "defaultJourneyName"
	KeyCurrentJourneyID     = "currentJourneyId"
)

// SettingsStore is the subset of the record store used for settings.
type SettingsStore interface {
	GetSetting(ctx context.Context, key string, dst any) (bool, error)
	SetSetting(ctx context.Context, key string, value any) error
}

// Settings returns the config values that back the persisted settings.
func (c *Config) Settings() map[string]any {
	return map[string]any{
		KeyTrackingEnabled:      c.Tracking.Enabled,
		KeyAutoStartJourney:     c.Tracking.AutoStartJourney,
		KeyExcludedDomains:      NormalizeDomains(c.Privacy.ExcludedDomains),
		KeyAutoExcludeSensitive: c.Privacy.AutoExcludeSensitive,
		KeyScreenshotsEnabled:   c.Screenshots.Enabled,
		KeyScreenshotQuality:    c.Screenshots.Quality,
		KeyMaxScreenshotAge:     c.Screenshots.MaxAgeDays,
		KeyMaxJourneyAge:        c.Retention.MaxJourneyAgeDays,
		KeyDefaultJourneyName:   c.Tracking.DefaultJourneyName,
	}
}

// SeedSettings writes config values for every setting key that has never
// been stored. Existing values are left alone. It returns the keys written.
func SeedSettings(ctx context.Context, store SettingsStore, cfg *Config) ([]string, error) {
	var written []string
	// Stable order keeps the result deterministic.
	keys := []string{
		KeyTrackingEnabled, KeyAutoStartJourney, KeyExcludedDomains, KeyAutoExcludeSensitive,
		KeyScreenshotsEnabled, KeyScreenshotQuality, KeyMaxScreenshotAge, KeyMaxJourneyAge,
		KeyDefaultJourneyName,
	}
	values := cfg.Settings()

	for _, key := range keys {
		var existing any
		ok, err := store.GetSetting(ctx, key, &existing)
		if err != nil {
			return written, fmt.Errorf("read setting %s: %w", key, err)
		}
		if ok {
			continue
		}
		if err := store.SetSetting(ctx, key, values[key]); err != nil {
			return written, fmt.Errorf("seed setting %s: %w", key, err)
		}
		written = append(written, key)
	}
	return written, nil
}

// EffectiveExcludedDomains returns the stored excluded domains, extended
// with SensitiveDomains unless autoExcludeSensitive is stored as false.
// The stored list holds only the user's own entries, so flipping the flag
// takes effect on the next read.
func EffectiveExcludedDomains(ctx context.Context, store SettingsStore) ([]string, error) {
	var domains []string
	if _, err := store.GetSetting(ctx, KeyExcludedDomains, &domains); err != nil {
		return nil, fmt.Errorf("read excluded domains: %w", err)
	}
	auto := true
	if _, err := store.GetSetting(ctx, KeyAutoExcludeSensitive, &auto); err != nil {
		return nil, fmt.Errorf("read %s: %w", KeyAutoExcludeSensitive, err)
	}
	if auto {
		return NormalizeDomains(domains, SensitiveDomains()), nil
	}
	return NormalizeDomains(domains), nil
}
