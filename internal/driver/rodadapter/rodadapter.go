// Package rodadapter implements internal/driver against go-rod, the
// Chrome DevTools Protocol library the rest of this module's browser
// automation is built on.
package rodadapter

import (
	"context"
	"fmt"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	rodstealth "github.com/go-rod/stealth"
	"github.com/rs/zerolog/log"

	"github.com/lumenstream/extractor/internal/browser/stealth"
	"github.com/lumenstream/extractor/internal/driver"
)

// Launcher launches real Chrome/Chromium processes via go-rod.
type Launcher struct{}

// New returns a go-rod backed Launcher.
func New() *Launcher { return &Launcher{} }

// Launch starts a browser process with the fixed, anti-detection-tuned
// flag set and connects to it over CDP.
func (Launcher) Launch(ctx context.Context, opts driver.LaunchOptions) (driver.Handle, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	l := launcher.New()
	if opts.BinPath != "" {
		l = l.Bin(opts.BinPath)
	}
	if opts.Headless {
		l = l.Set("headless", "new")
	} else {
		l = l.Headless(false)
	}

	l = l.Set("no-sandbox").
		Set("disable-setuid-sandbox").
		Set("disable-dev-shm-usage").
		Set("disable-gpu").
		Set("disable-webgl").
		Set("disable-2d-canvas-clip-aa").
		Set("disable-accelerated-2d-canvas").
		Set("disable-blink-features", "AutomationControlled").
		Set("disable-extensions").
		Set("disable-background-networking").
		Set("disable-sync").
		Set("disable-translate").
		Set("disable-default-apps").
		Set("no-first-run").
		Set("no-zygote").
		Set("disable-component-update").
		Set("disable-domain-reliability").
		Set("safebrowsing-disable-auto-update").
		Set("mute-audio").
		Set("renderer-process-limit", "1").
		Set("disable-site-isolation-trials").
		Set("disable-background-timer-throttling").
		Set("disable-backgrounding-occluded-windows").
		Set("disable-renderer-backgrounding").
		Set("js-flags", "--max-old-space-size=128")

	url, err := l.Context(ctx).Launch()
	if err != nil {
		return nil, fmt.Errorf("launch browser: %w", err)
	}

	browser := rod.New().ControlURL(url).Context(ctx)
	if err := browser.Connect(); err != nil {
		return nil, fmt.Errorf("connect to browser: %w", err)
	}

	return &Handle{browser: browser, launcher: l}, nil
}

// Handle wraps a connected *rod.Browser.
type Handle struct {
	browser  *rod.Browser
	launcher *launcher.Launcher
}

// OnDisconnected registers callback to fire when the CDP connection drops.
func (h *Handle) OnDisconnected(callback func()) {
	go h.browser.EachEvent(func(e *proto.InspectorDetached) {
		callback()
	})()
}

// Close terminates the browser process and its launcher.
func (h *Handle) Close() error {
	err := h.browser.Close()
	h.launcher.Kill()
	return err
}

// IsConnected reports whether the CDP connection is still live.
func (h *Handle) IsConnected() bool {
	return h.browser.Connected()
}

// NewContext creates an isolated browsing context (go-rod's Incognito
// browser context, which shares the process but not cookies/storage)
// and configures it per opts.
func (h *Handle) NewContext(ctx context.Context, opts driver.ContextOptions) (driver.Context, error) {
	incognito, err := h.browser.Incognito()
	if err != nil {
		return nil, fmt.Errorf("create incognito context: %w", err)
	}
	incognito = incognito.Context(ctx)

	return &Context{browser: incognito, opts: opts}, nil
}

// Context wraps an incognito *rod.Browser standing in for a Playwright-style
// browsing context: isolated storage, shared process.
type Context struct {
	browser *rod.Browser
	opts    driver.ContextOptions
	router  *rod.HijackRouter
	pages   []*rod.Page
}

// Route installs a single request interceptor spanning every page opened
// in this context, matching §4.2's "one route interceptor per context".
func (c *Context) Route(handler func(driver.Route)) {
	router := c.browser.HijackRequests()
	_ = router.Add("*", "", func(hj *rod.Hijack) {
		handler(&hijackRoute{hj: hj})
	})
	c.router = router
	go router.Run()
}

// Unroute stops the hijack router.
func (c *Context) Unroute() {
	if c.router != nil {
		c.router.Stop()
	}
}

// OnPage registers a callback fired whenever a new page/target opens in
// this context (used to close popups on sight).
func (c *Context) OnPage(callback func(driver.Page)) {
	go c.browser.EachEvent(func(e *proto.TargetTargetCreated) {
		if e.TargetInfo.Type != proto.TargetTargetInfoTypePage {
			return
		}
		page, err := c.browser.PageFromTarget(e.TargetInfo.TargetID)
		if err != nil {
			return
		}
		callback(&Page{page: page})
	})()
}

// Cookies snapshots the context's current cookies.
func (c *Context) Cookies() ([]driver.Cookie, error) {
	cookies, err := c.browser.GetCookies()
	if err != nil {
		return nil, err
	}
	out := make([]driver.Cookie, 0, len(cookies))
	for _, ck := range cookies {
		out = append(out, driver.Cookie{
			Name:     ck.Name,
			Value:    ck.Value,
			Domain:   ck.Domain,
			Path:     ck.Path,
			HTTPOnly: ck.HTTPOnly,
			Secure:   ck.Secure,
			SameSite: string(ck.SameSite),
		})
	}
	return out, nil
}

// NewPage opens a fresh tab configured with the context's stealth settings.
func (c *Context) NewPage(ctx context.Context) (driver.Page, error) {
	page, err := rodstealth.Page(c.browser.Context(ctx))
	if err != nil {
		return nil, fmt.Errorf("open page: %w", err)
	}

	if c.opts.UserAgent != "" {
		if err := page.SetUserAgent(&proto.NetworkSetUserAgentOverride{UserAgent: c.opts.UserAgent}); err != nil {
			log.Warn().Err(err).Msg("failed to set user agent")
		}
	}
	if c.opts.ViewportWidth > 0 && c.opts.ViewportHeight > 0 {
		if err := page.SetViewport(&proto.EmulationSetDeviceMetricsOverride{
			Width:             c.opts.ViewportWidth,
			Height:            c.opts.ViewportHeight,
			DeviceScaleFactor: c.opts.DeviceScaleFactor,
			Mobile:            c.opts.IsMobile,
		}); err != nil {
			log.Warn().Err(err).Msg("failed to set viewport")
		}
	}
	if c.opts.IgnoreHTTPSErrors {
		if err := c.browser.IgnoreCertErrors(true); err != nil {
			log.Warn().Err(err).Msg("failed to set ignore cert errors")
		}
	}
	if c.opts.BypassCSP {
		if err := proto.PageSetBypassCSP{Enabled: true}.Call(page); err != nil {
			log.Warn().Err(err).Msg("failed to bypass CSP")
		}
	}
	if c.opts.ReducedMotion {
		if err := proto.EmulationSetEmulatedMedia{
			Features: []*proto.EmulationMediaFeature{{Name: "prefers-reduced-motion", Value: "reduce"}},
		}.Call(page); err != nil {
			log.Warn().Err(err).Msg("failed to set reduced motion")
		}
	}
	if c.opts.BlockServiceWorkers {
		if err := proto.ServiceWorkerDisable{}.Call(page); err != nil {
			log.Debug().Err(err).Msg("failed to disable service workers")
		}
	}

	if err := stealth.Apply(page); err != nil {
		log.Warn().Err(err).Msg("failed to apply stealth patches")
	}

	c.pages = append(c.pages, page)
	return &Page{page: page}, nil
}

// Close closes every page opened in this context and the context itself.
func (c *Context) Close() error {
	for _, p := range c.pages {
		_ = p.Close()
	}
	return c.browser.Close()
}

// hijackRoute adapts *rod.Hijack to driver.Route.
type hijackRoute struct {
	hj *rod.Hijack
}

func (r *hijackRoute) URL() string { return r.hj.Request.URL().String() }

func (r *hijackRoute) Header(name string) string {
	return r.hj.Request.Header(name)
}

func (r *hijackRoute) ResourceType() driver.ResourceType {
	switch r.hj.Request.Type() {
	case proto.NetworkResourceTypeDocument:
		return driver.ResourceDocument
	case proto.NetworkResourceTypeScript:
		return driver.ResourceScript
	case proto.NetworkResourceTypeStylesheet:
		return driver.ResourceStylesheet
	case proto.NetworkResourceTypeImage:
		return driver.ResourceImage
	case proto.NetworkResourceTypeFont:
		return driver.ResourceFont
	case proto.NetworkResourceTypeXHR:
		return driver.ResourceXHR
	case proto.NetworkResourceTypeFetch:
		return driver.ResourceFetch
	case proto.NetworkResourceTypeMedia:
		return driver.ResourceMedia
	default:
		return driver.ResourceOther
	}
}

func (r *hijackRoute) Abort() {
	r.hj.Response.Fail(proto.NetworkErrorReasonBlockedByClient)
}

func (r *hijackRoute) Continue() {
	r.hj.ContinueRequest(&proto.FetchContinueRequest{})
}

// Page wraps a *rod.Page.
type Page struct {
	page *rod.Page
}

func (p *Page) Goto(ctx context.Context, url string, timeout time.Duration) error {
	navCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	page := p.page.Context(navCtx)
	wait := page.WaitNavigation(proto.PageLifecycleEventNameDOMContentLoaded)
	if err := page.Navigate(url); err != nil {
		return err
	}
	wait()
	return nil
}

func (p *Page) WaitTimeout(d time.Duration) {
	p.page.WaitIdle(d)
}

func (p *Page) MainFrame() driver.Frame {
	return &Frame{page: p.page}
}

func (p *Page) Frames() []driver.Frame {
	out := []driver.Frame{}
	iframes, err := p.page.Elements("iframe")
	if err != nil {
		return out
	}
	for _, el := range iframes {
		frame, err := el.Frame()
		if err != nil {
			continue
		}
		out = append(out, &Frame{page: frame})
	}
	return out
}

func (p *Page) Close() error {
	return p.page.Close()
}

// Frame wraps a *rod.Page representing either the main document or an
// iframe's document (go-rod models frames as Page values scoped by FrameID).
type Frame struct {
	page *rod.Page
}

func (f *Frame) Find(selector string) (driver.Element, bool) {
	el, err := f.page.Timeout(500 * time.Millisecond).Element(selector)
	if err != nil || el == nil {
		return nil, false
	}
	return &Element{el: el}, true
}

// Element wraps a *rod.Element.
type Element struct {
	el *rod.Element
}

func (e *Element) BoundingBox() (w, h float64, ok bool) {
	shape, err := e.el.Shape()
	if err != nil || shape == nil || len(shape.Quads) == 0 {
		return 0, 0, false
	}
	box := shape.Box()
	if box == nil {
		return 0, 0, false
	}
	return box.Width, box.Height, box.Width > 0 && box.Height > 0
}

func (e *Element) Click(timeout time.Duration) error {
	return e.el.Timeout(timeout).Click(proto.InputMouseButtonLeft, 1)
}
