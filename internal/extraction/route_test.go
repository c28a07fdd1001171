package extraction

import (
	"testing"

	"github.com/lumenstream/extractor/internal/driver"
	"github.com/lumenstream/extractor/internal/driver/drivertest"
	"github.com/lumenstream/extractor/internal/selectors"
)

func TestIsManifestRequest(t *testing.T) {
	cases := []struct {
		url  string
		want bool
	}{
		{"https://cdn.example.com/master.m3u8", true},
		{"https://cdn.example.com/index.m3u8?token=abc", true},
		{"https://cdn.example.com/seg-000.ts.m3u8", false},
		{"https://cdn.example.com/video.mp4", false},
	}
	for _, c := range cases {
		if got := isManifestRequest(c.url); got != c.want {
			t.Errorf("isManifestRequest(%q) = %v, want %v", c.url, got, c.want)
		}
	}
}

func testMatcher(t *testing.T) *Matcher {
	t.Helper()
	m, err := NewMatcher(selectors.Get())
	if err != nil {
		t.Fatalf("NewMatcher: %v", err)
	}
	return m
}

func TestMatcherShouldAbortAlwaysBlocksMediaTypes(t *testing.T) {
	m := testMatcher(t)
	for _, rt := range []driver.ResourceType{driver.ResourceImage, driver.ResourceFont, driver.ResourceStylesheet} {
		route := &drivertest.Route{RouteURL: "https://example.com/anything", Type: rt}
		if !m.ShouldAbort(route) {
			t.Errorf("resource type %v should always be aborted", rt)
		}
	}
}

func TestMatcherShouldAbortScriptAllowlistOverridesBlockList(t *testing.T) {
	m := testMatcher(t)
	// A player script served from a domain containing "doubleclick.net"
	// would be blocked on URL alone, but the allowlist term "player" wins.
	route := &drivertest.Route{
		RouteURL: "https://player.doubleclick.net/jwplayer.js",
		Type:     driver.ResourceScript,
	}
	if m.ShouldAbort(route) {
		t.Error("script matching the player allowlist must not be aborted, even if it also matches a block pattern")
	}
}

func TestMatcherShouldAbortScriptFallsBackToBlockList(t *testing.T) {
	m := testMatcher(t)
	route := &drivertest.Route{
		RouteURL: "https://www.google-analytics.com/ga.js",
		Type:     driver.ResourceScript,
	}
	if !m.ShouldAbort(route) {
		t.Error("non-allowlisted script matching a block pattern should be aborted")
	}
}

func TestMatcherShouldAbortScriptNeitherAllowlistedNorBlocked(t *testing.T) {
	m := testMatcher(t)
	route := &drivertest.Route{
		RouteURL: "https://cdn.example.com/app.js",
		Type:     driver.ResourceScript,
	}
	if m.ShouldAbort(route) {
		t.Error("script matching neither list should be allowed through")
	}
}

func TestMatcherShouldAbortXHRTelemetryOverridesAllowThrough(t *testing.T) {
	m := testMatcher(t)
	route := &drivertest.Route{
		RouteURL: "https://cdn.example.com/collect-beacon",
		Type:     driver.ResourceXHR,
	}
	if !m.ShouldAbort(route) {
		t.Error("xhr matching the telemetry pattern should be aborted")
	}
}

func TestMatcherShouldAbortFetchFallsBackToBlockList(t *testing.T) {
	m := testMatcher(t)
	route := &drivertest.Route{
		RouteURL: "https://pagead.example.com/ads.json",
		Type:     driver.ResourceFetch,
	}
	if !m.ShouldAbort(route) {
		t.Error("fetch matching a block pattern (not telemetry) should still be aborted")
	}
}

func TestMatcherShouldAbortDefaultTypeUsesBlockListOnly(t *testing.T) {
	m := testMatcher(t)
	allowed := &drivertest.Route{RouteURL: "https://cdn.example.com/stream.ts", Type: driver.ResourceMedia}
	if m.ShouldAbort(allowed) {
		t.Error("media segment not matching any block pattern should be allowed")
	}

	blocked := &drivertest.Route{RouteURL: "https://doubleclick.net/track.ts", Type: driver.ResourceMedia}
	if !m.ShouldAbort(blocked) {
		t.Error("media segment matching a block pattern should be aborted")
	}
}
