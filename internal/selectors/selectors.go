// Package selectors provides the play-button click targets and network
// block patterns the extraction pipeline uses, with optional hot-reload
// from an external file.
package selectors

import (
	"embed"
	"sync"

	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"
)

//go:embed selectors.yaml
var defaultSelectorsFS embed.FS

// Selectors holds the pattern tables consumed by the extraction pipeline's
// play-button coaxing step and route interceptor.
type Selectors struct {
	// PlayButtons is the ordered list of CSS selectors tried, in order,
	// against the main frame and then each sub-frame.
	PlayButtons []string `yaml:"play_buttons"`

	// BlockPatterns are case-insensitive URL regexes aborted outright:
	// analytics/ads CDNs and inline video preview files.
	BlockPatterns []string `yaml:"block_patterns"`

	// TelemetryPattern is matched against xhr/fetch request URLs.
	TelemetryPattern string `yaml:"telemetry_pattern"`

	// PlayerAllowlistPattern exempts script requests whose URL looks like
	// player code from the block-pattern check.
	PlayerAllowlistPattern string `yaml:"player_allowlist_pattern"`
}

var (
	instance *Selectors
	once     sync.Once
	loadErr  error
)

// Get returns the singleton Selectors instance loaded from the embedded
// selectors.yaml file.
func Get() *Selectors {
	once.Do(func() {
		instance, loadErr = load()
		if loadErr != nil {
			log.Error().Err(loadErr).Msg("failed to load selectors, using defaults")
			instance = defaultSelectors()
		}
	})
	return instance
}

func load() (*Selectors, error) {
	data, err := defaultSelectorsFS.ReadFile("selectors.yaml")
	if err != nil {
		return nil, err
	}

	var s Selectors
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, err
	}

	log.Debug().
		Int("play_button_selectors", len(s.PlayButtons)).
		Int("block_patterns", len(s.BlockPatterns)).
		Msg("selectors loaded")

	return &s, nil
}

// defaultSelectors returns the hardcoded fallback patterns, used if the
// embedded YAML fails to parse.
func defaultSelectors() *Selectors {
	return &Selectors{
		PlayButtons: []string{
			".jw-icon-playback",
			".jw-display-icon-container",
			".vjs-big-play-button",
			`[aria-label="Play"]`,
			".play-button",
			".plyr__control--overlaid",
			"video",
			`[class*="play"]`,
		},
		BlockPatterns: []string{
			`google-analytics\.com`,
			`googletagmanager\.com`,
			`facebook\.(com|net)`,
			`doubleclick\.net`,
			`analytics\.`,
			`hotjar\.com`,
			`clarity\.ms`,
			`sentry\.io`,
			`segment\.(com|io)`,
			`mixpanel\.com`,
			`amplitude\.com`,
			`newrelic\.com`,
			`bugsnag\.com`,
			`datadog`,
			`ads\.`,
			`adserver\.`,
			`pagead`,
			`prebid`,
			`adsystem`,
			`adservice`,
			`\.(mp4|webm)(\?|$)`,
		},
		TelemetryPattern:       `analytics|tracking|beacon|metrics|telemetry|collect|log|event`,
		PlayerAllowlistPattern: `player|jwplayer|plyr|video|embed|hls|dash|stream`,
	}
}
