package config

// DefaultConfig returns a Config populated with all default values.
func DefaultConfig() *Config {
	return &Config{
		Tracking: TrackingConfig{
			Enabled:            true,
			AutoStartJourney:   true,
			DefaultJourneyName: "Journey {date}",
		},
		Privacy: PrivacyConfig{
			ExcludedDomains:      []string{"banking.com", "mail.google.com"},
			AutoExcludeSensitive: true,
		},
		Screenshots: ScreenshotsConfig{
			Enabled:    true,
			Quality:    50,
			MaxAgeDays: 30,
		},
		Retention: RetentionConfig{
			MaxJourneyAgeDays:  90,
			PruneIntervalHours: 24,
		},
		Storage: StorageConfig{
			Path:       "~/.config/burrow",
			SQLiteFile: "burrow.db",
		},
		Daemon: DaemonConfig{
			Host:           "127.0.0.1",
			Port:           8722,
			AuthToken:      "",
			MaxRequestSize: 10485760,
			AllowedOrigins: []string{"chrome-extension://*", "moz-extension://*"},
		},
		Logging: LoggingConfig{
			Level: "info",
			File:  "",
		},
	}
}
