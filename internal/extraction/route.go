package extraction

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/lumenstream/extractor/internal/driver"
	"github.com/lumenstream/extractor/internal/selectors"
)

// isManifestRequest reports whether url is the target HLS manifest rather
// than a per-segment sub-playlist.
func isManifestRequest(url string) bool {
	return strings.Contains(url, ".m3u8") && !strings.Contains(url, ".ts.m3u8")
}

// Matcher classifies intercepted requests against the block/telemetry/
// player-allowlist pattern tables. It is cheap to build, so a fresh one is
// compiled per extraction from whatever selectors.Manager currently holds,
// which makes pattern hot-reload take effect immediately.
type Matcher struct {
	block           []*regexp.Regexp
	telemetry       *regexp.Regexp
	playerAllowlist *regexp.Regexp
}

// NewMatcher compiles sel's pattern tables. Patterns are matched case
// insensitively, mirroring the source selectors.yaml content verbatim.
func NewMatcher(sel *selectors.Selectors) (*Matcher, error) {
	block := make([]*regexp.Regexp, 0, len(sel.BlockPatterns))
	for _, p := range sel.BlockPatterns {
		re, err := regexp.Compile("(?i)" + p)
		if err != nil {
			return nil, fmt.Errorf("compiling block pattern %q: %w", p, err)
		}
		block = append(block, re)
	}

	telemetry, err := regexp.Compile("(?i)" + sel.TelemetryPattern)
	if err != nil {
		return nil, fmt.Errorf("compiling telemetry pattern: %w", err)
	}

	allowlist, err := regexp.Compile("(?i)" + sel.PlayerAllowlistPattern)
	if err != nil {
		return nil, fmt.Errorf("compiling player allowlist pattern: %w", err)
	}

	return &Matcher{block: block, telemetry: telemetry, playerAllowlist: allowlist}, nil
}

func (m *Matcher) matchesBlock(url string) bool {
	for _, re := range m.block {
		if re.MatchString(url) {
			return true
		}
	}
	return false
}

// ShouldAbort applies the non-manifest branch of the interceptor's
// decision tree: image/font/stylesheet requests are always dropped,
// scripts are checked against the player-domain allowlist before the
// block list, xhr/fetch requests are checked against the telemetry
// pattern before the block list, and every other type falls back to the
// block list alone.
func (m *Matcher) ShouldAbort(route driver.Route) bool {
	url := route.URL()

	switch route.ResourceType() {
	case driver.ResourceImage, driver.ResourceFont, driver.ResourceStylesheet:
		return true
	case driver.ResourceScript:
		if m.playerAllowlist.MatchString(url) {
			return false
		}
		return m.matchesBlock(url)
	case driver.ResourceXHR, driver.ResourceFetch:
		if m.telemetry.MatchString(url) {
			return true
		}
		return m.matchesBlock(url)
	default:
		return m.matchesBlock(url)
	}
}
