package scraper

import (
	"embed"
	"log/slog"
)

//go:embed selectors.json
var embeddedSelectors embed.FS

// LoadConfig resolves selectors in order: the file at overridePath (when
// set), the embedded selectors.json, then hardcoded defaults.
func LoadConfig(overridePath string) SelectorConfig {
	if overridePath != "" {
		sel, err := LoadSelectors(overridePath)
		if err == nil {
			slog.Info("Loaded selectors from external file", "path", overridePath)
			return sel
		}
		slog.Warn("Failed to load external selectors, trying embedded config", "path", overridePath, "error", err)
	}

	data, err := embeddedSelectors.ReadFile("selectors.json")
	if err == nil {
		sel, parseErr := LoadSelectorsFromBytes(data)
		if parseErr == nil {
			slog.Debug("Loaded selectors from embedded config")
			return sel
		}
		slog.Warn("Embedded selectors failed to parse, using defaults", "error", parseErr)
	}

	slog.Info("Using hardcoded default selectors")
	return DefaultSelectors()
}
