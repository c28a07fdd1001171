// Package extraction implements the manifest extraction pipeline: it
// drives a single browser context through navigation, popup suppression,
// request interception, and play-button coaxing until either the target
// HLS manifest is observed or the per-request timeout elapses.
package extraction

import (
	"context"
	"net/url"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/lumenstream/extractor/internal/browser"
	"github.com/lumenstream/extractor/internal/driver"
	"github.com/lumenstream/extractor/internal/metrics"
	"github.com/lumenstream/extractor/internal/selectors"
	"github.com/lumenstream/extractor/internal/types"
)

const (
	// stealthUserAgent is presented to the embed page and echoed back in a
	// successful response's headers.
	stealthUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36"

	navigationTimeout = 15 * time.Second
	settleDelay       = 500 * time.Millisecond
)

type outcome string

const (
	outcomeSuccess outcome = "success"
	outcomeTimeout outcome = "timeout"
)

// pipelineOutcome is the internal resolution of a single extraction
// attempt, produced either by the route interceptor or the timeout timer.
type pipelineOutcome struct {
	Outcome outcome
	URL     string
	M3U8URL string
	Headers map[string]string
	Cookies []driver.Cookie
}

func (r pipelineOutcome) toResponse() types.ExtractResponse {
	if r.Outcome == outcomeSuccess {
		return types.ExtractResponse{
			Success: true,
			URL:     r.URL,
			M3U8URL: r.M3U8URL,
			Headers: r.Headers,
			Cookies: convertCookies(r.Cookies),
		}
	}
	return types.ExtractResponse{
		Success: false,
		Error:   "m3u8 extraction failed",
	}
}

func convertCookies(cookies []driver.Cookie) []types.Cookie {
	if len(cookies) == 0 {
		return nil
	}
	out := make([]types.Cookie, 0, len(cookies))
	for _, c := range cookies {
		out = append(out, types.Cookie{
			Name:     c.Name,
			Value:    c.Value,
			Domain:   c.Domain,
			Path:     c.Path,
			HTTPOnly: c.HTTPOnly,
			Secure:   c.Secure,
			SameSite: c.SameSite,
		})
	}
	return out
}

// Pipeline runs extractions against a browser.Pool, reading play-button
// and block-pattern tables from a selectors.Manager so hot-reloaded
// patterns take effect on the very next extraction.
type Pipeline struct {
	pool         *browser.Pool
	selectorsMgr *selectors.Manager
}

// New builds a Pipeline bound to pool and selectorsMgr.
func New(pool *browser.Pool, selectorsMgr *selectors.Manager) *Pipeline {
	return &Pipeline{pool: pool, selectorsMgr: selectorsMgr}
}

// Extract runs the full extraction protocol for embedURL at the given
// priority, blocking until the manifest is found, the timeout elapses, or
// the pool rejects the attempt outright (circuit open, launch failure,
// context cancellation). A non-nil error always means no pipeline ran to
// completion; timeout and manifest-not-found are reported as a
// success:false ExtractResponse, not an error.
func (p *Pipeline) Extract(ctx context.Context, embedURL string, timeoutMs int, priority string) (types.ExtractResponse, error) {
	enqueueTime := time.Now()

	weight := types.PriorityWeightNormal
	if priority == types.PriorityHigh {
		weight = types.PriorityWeightHigh
	}

	task := func(taskCtx context.Context, acquire browser.AcquireContextFunc) (any, error) {
		return p.run(taskCtx, acquire, embedURL, timeoutMs)
	}

	raw, err := p.pool.Submit(ctx, weight, task)
	if err != nil {
		errType := "browser_error"
		if extErr, ok := err.(*types.ExtractionError); ok {
			errType = extErr.Category
		}
		metrics.RecordExtraction("failure", errType, time.Since(enqueueTime))
		return types.ExtractResponse{}, err
	}

	res := raw.(pipelineOutcome)
	switch res.Outcome {
	case outcomeSuccess:
		metrics.RecordExtraction("success", "none", time.Since(enqueueTime))
	case outcomeTimeout:
		metrics.RecordExtraction("failure", "timeout", time.Since(enqueueTime))
	}

	return res.toResponse(), nil
}

// run executes steps 2-10 of the protocol against a freshly acquired
// context: context acquisition, popup suppression, route interception,
// the timeout timer, navigation, and play-button coaxing of the main
// frame and then every sub-frame.
func (p *Pipeline) run(taskCtx context.Context, acquire browser.AcquireContextFunc, embedURL string, timeoutMs int) (pipelineOutcome, error) {
	dctx, err := acquire(taskCtx, driver.ContextOptions{
		UserAgent:           stealthUserAgent,
		BypassCSP:           true,
		IgnoreHTTPSErrors:   true,
		ViewportWidth:       800,
		ViewportHeight:      600,
		DeviceScaleFactor:   1,
		IsMobile:            false,
		HasTouch:            false,
		ReducedMotion:       true,
		BlockServiceWorkers: true,
	})
	if err != nil {
		return pipelineOutcome{}, err
	}
	defer func() {
		if cerr := dctx.Close(); cerr != nil {
			log.Debug().Err(cerr).Msg("error closing extraction context")
		}
	}()

	sel := p.selectorsMgr.Get()
	matcher, err := NewMatcher(sel)
	if err != nil {
		return pipelineOutcome{}, types.NewBrowserError("pattern compile failed", err)
	}

	var resolved atomic.Bool
	resultCh := make(chan pipelineOutcome, 1)
	admitTime := time.Now()

	dctx.OnPage(func(popup driver.Page) {
		_ = popup.Close()
	})

	dctx.Route(func(route driver.Route) {
		reqURL := route.URL()

		if isManifestRequest(reqURL) {
			if !resolved.CompareAndSwap(false, true) {
				route.Abort()
				return
			}

			cookies, _ := dctx.Cookies()
			route.Abort()

			origin, referer := refererOrigin(route.Header("Referer"), embedURL)
			metrics.RecordManifestDetection(time.Since(admitTime))

			resultCh <- pipelineOutcome{
				Outcome: outcomeSuccess,
				URL:     reqURL,
				M3U8URL: reqURL,
				Headers: map[string]string{
					"Referer":    referer,
					"Origin":     origin,
					"User-Agent": stealthUserAgent,
				},
				Cookies: cookies,
			}
			return
		}

		if matcher.ShouldAbort(route) {
			route.Abort()
			return
		}
		route.Continue()
	})
	defer dctx.Unroute()

	timer := time.AfterFunc(time.Duration(timeoutMs)*time.Millisecond, func() {
		if resolved.CompareAndSwap(false, true) {
			resultCh <- pipelineOutcome{Outcome: outcomeTimeout}
		}
	})
	defer timer.Stop()

	page, err := dctx.NewPage(taskCtx)
	if err != nil {
		resolved.Store(true)
		timer.Stop()
		return pipelineOutcome{}, types.NewBrowserError("new page failed", err)
	}
	defer func() {
		if cerr := page.Close(); cerr != nil {
			log.Debug().Err(cerr).Msg("error closing page")
		}
	}()

	_ = page.Goto(taskCtx, embedURL, navigationTimeout)

	page.WaitTimeout(settleDelay)
	if !resolved.Load() {
		coaxFrame(page.MainFrame(), sel.PlayButtons)
	}

	page.WaitTimeout(settleDelay)
	if !resolved.Load() {
		coaxFramesParallel(page.Frames(), sel.PlayButtons)
	}

	return <-resultCh, nil
}

// refererOrigin derives the Origin/Referer pair a successful extraction
// reports: the origin of the manifest request's own Referer header when
// parseable, falling back to the embed URL's origin.
func refererOrigin(refererHeader, embedURL string) (origin, referer string) {
	if o := originOf(refererHeader); o != "" {
		return o, o + "/"
	}
	if o := originOf(embedURL); o != "" {
		return o, o + "/"
	}
	return "", ""
}

func originOf(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return ""
	}
	return u.Scheme + "://" + u.Host
}
