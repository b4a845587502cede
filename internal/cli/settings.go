package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/runnerr0/burrow/internal/config"
)

// settingKinds lists the user-editable settings and the value type each
// one holds.
var settingKinds = []struct {
	key  string
	kind string
}{
	{config.KeyTrackingEnabled, "bool"},
	{config.KeyAutoStartJourney, "bool"},
	{config.KeyExcludedDomains, "list"},
	{config.KeyAutoExcludeSensitive, "bool"},
	{config.KeyScreenshotsEnabled, "bool"},
	{config.KeyScreenshotQuality, "percent"},
	{config.KeyMaxScreenshotAge, "int"},
	{config.KeyMaxJourneyAge, "int"},
	{config.KeyDefaultJourneyName, "string"},
}

func settingKind(key string) (string, bool) {
	for _, s := range settingKinds {
		if s.key == key {
			return s.kind, true
		}
	}
	return "", false
}

// parseSettingValue decodes raw as YAML and checks it against kind, so
// "false", "30" and "[a.com, b.com]" all work from a shell. Lists are
// domain lists and come back normalized.
func parseSettingValue(kind, raw string) (any, error) {
	switch kind {
	case "bool":
		var v bool
		if err := yaml.Unmarshal([]byte(raw), &v); err != nil {
			return nil, fmt.Errorf("expected true or false, got %q", raw)
		}
		return v, nil
	case "int":
		var v int
		if err := yaml.Unmarshal([]byte(raw), &v); err != nil || v < 0 {
			return nil, fmt.Errorf("expected a non-negative number, got %q", raw)
		}
		return v, nil
	case "percent":
		var v int
		if err := yaml.Unmarshal([]byte(raw), &v); err != nil || v < 1 || v > 100 {
			return nil, fmt.Errorf("expected a number from 1 to 100, got %q", raw)
		}
		return v, nil
	case "list":
		var v []string
		if err := yaml.Unmarshal([]byte(raw), &v); err != nil {
			return nil, fmt.Errorf("expected a list like [a.com, b.com], got %q", raw)
		}
		return config.NormalizeDomains(v), nil
	default:
		return raw, nil
	}
}

// Execute implements the go-flags Commander interface for SettingsCommand.
func (c *SettingsCommand) Execute(args []string) error {
	return withEnv(c.globals, c.run)
}

func (c *SettingsCommand) run(ctx context.Context, e *env) error {
	for _, assignment := range c.Set {
		key, raw, ok := strings.Cut(assignment, "=")
		if !ok {
			return fmt.Errorf("invalid --set %q: expected key=value", assignment)
		}
		kind, known := settingKind(key)
		if !known {
			return fmt.Errorf("unknown setting %q", key)
		}
		value, err := parseSettingValue(kind, raw)
		if err != nil {
			return fmt.Errorf("setting %s: %w", key, err)
		}
		if err := e.store.SetSetting(ctx, key, value); err != nil {
			return err
		}
	}

	values := make(map[string]any, len(settingKinds))
	for _, s := range settingKinds {
		var v any
		if _, err := e.store.GetSetting(ctx, s.key, &v); err != nil {
			return err
		}
		values[s.key] = v
	}

	if c.globals.JSON {
		return printJSON(values)
	}
	for _, s := range settingKinds {
		raw, err := json.Marshal(values[s.key])
		if err != nil {
			return err
		}
		fmt.Printf("%-22s %s\n", s.key, raw)
	}
	return nil
}
