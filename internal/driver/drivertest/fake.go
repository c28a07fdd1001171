// Package drivertest provides an in-memory fake implementation of
// internal/driver for exercising the pool, circuit breaker, and
// extraction pipeline without a real browser.
package drivertest

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/lumenstream/extractor/internal/driver"
)

// Launcher is a scriptable fake driver.Launcher.
type Launcher struct {
	mu sync.Mutex

	// LaunchErr, when set, is returned by every Launch call.
	LaunchErr error

	// LaunchFunc, when set, overrides the default handle construction.
	LaunchFunc func(ctx context.Context, opts driver.LaunchOptions) (driver.Handle, error)

	launches atomic.Int64
}

// Launches returns the number of Launch calls made so far.
func (l *Launcher) Launches() int64 { return l.launches.Load() }

func (l *Launcher) Launch(ctx context.Context, opts driver.LaunchOptions) (driver.Handle, error) {
	l.launches.Add(1)

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.LaunchFunc != nil {
		return l.LaunchFunc(ctx, opts)
	}
	if l.LaunchErr != nil {
		return nil, l.LaunchErr
	}
	return NewHandle(), nil
}

// Handle is a fake driver.Handle.
type Handle struct {
	mu          sync.Mutex
	connected   bool
	disconnects []func()
	closed      bool

	// NewContextFunc, when set, overrides context construction.
	NewContextFunc func(ctx context.Context, opts driver.ContextOptions) (driver.Context, error)
}

// NewHandle returns a connected fake handle.
func NewHandle() *Handle {
	return &Handle{connected: true}
}

func (h *Handle) NewContext(ctx context.Context, opts driver.ContextOptions) (driver.Context, error) {
	h.mu.Lock()
	fn := h.NewContextFunc
	h.mu.Unlock()
	if fn != nil {
		return fn(ctx, opts)
	}
	return NewContext(), nil
}

func (h *Handle) OnDisconnected(callback func()) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.disconnects = append(h.disconnects, callback)
}

// Disconnect simulates an unexpected CDP disconnect, firing every
// registered OnDisconnected callback.
func (h *Handle) Disconnect() {
	h.mu.Lock()
	h.connected = false
	callbacks := append([]func(){}, h.disconnects...)
	h.mu.Unlock()
	for _, cb := range callbacks {
		cb()
	}
}

func (h *Handle) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	h.connected = false
	return nil
}

func (h *Handle) IsConnected() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.connected
}

// Closed reports whether Close was called.
func (h *Handle) Closed() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.closed
}

// Context is a fake driver.Context that lets tests drive the route
// handler and popup callback directly.
type Context struct {
	mu          sync.Mutex
	routeFn     func(driver.Route)
	pageFn      func(driver.Page)
	cookies     []driver.Cookie
	closed      bool
	NewPageFunc func(ctx context.Context) (driver.Page, error)
}

// NewContext returns an empty fake context.
func NewContext() *Context { return &Context{} }

func (c *Context) Route(handler func(driver.Route)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.routeFn = handler
}

func (c *Context) Unroute() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.routeFn = nil
}

func (c *Context) OnPage(callback func(driver.Page)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pageFn = callback
}

// Dispatch feeds a request to the installed route handler, if any.
func (c *Context) Dispatch(r driver.Route) {
	c.mu.Lock()
	fn := c.routeFn
	c.mu.Unlock()
	if fn != nil {
		fn(r)
	}
}

// SimulatePopup invokes the registered page-open callback, if any.
func (c *Context) SimulatePopup(p driver.Page) {
	c.mu.Lock()
	fn := c.pageFn
	c.mu.Unlock()
	if fn != nil {
		fn(p)
	}
}

// SetCookies configures the cookies Cookies() returns.
func (c *Context) SetCookies(cookies []driver.Cookie) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cookies = cookies
}

func (c *Context) Cookies() ([]driver.Cookie, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cookies, nil
}

func (c *Context) NewPage(ctx context.Context) (driver.Page, error) {
	c.mu.Lock()
	fn := c.NewPageFunc
	c.mu.Unlock()
	if fn != nil {
		return fn(ctx)
	}
	return NewPage(), nil
}

func (c *Context) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

// Closed reports whether Close was called.
func (c *Context) Closed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// Page is a fake driver.Page.
type Page struct {
	mu        sync.Mutex
	GotoErr   error
	GotoDelay time.Duration
	frames    []driver.Frame
	closed    bool
}

// NewPage returns a fake page with no sub-frames.
func NewPage() *Page { return &Page{} }

// SetFrames configures the sub-frames Frames() returns.
func (p *Page) SetFrames(frames []driver.Frame) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.frames = frames
}

func (p *Page) Goto(ctx context.Context, url string, timeout time.Duration) error {
	if p.GotoDelay > 0 {
		select {
		case <-time.After(p.GotoDelay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return p.GotoErr
}

func (p *Page) WaitTimeout(d time.Duration) { time.Sleep(d) }

func (p *Page) MainFrame() driver.Frame { return NewFrame() }

func (p *Page) Frames() []driver.Frame {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.frames
}

func (p *Page) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	return nil
}

// Closed reports whether Close was called.
func (p *Page) Closed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}

// Frame is a fake driver.Frame with a fixed element registry.
type Frame struct {
	mu       sync.Mutex
	elements map[string]*Element
}

// NewFrame returns a frame with no clickable elements.
func NewFrame() *Frame { return &Frame{elements: map[string]*Element{}} }

// SetElement registers a findable element for the given selector.
func (f *Frame) SetElement(selector string, el *Element) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.elements[selector] = el
}

func (f *Frame) Find(selector string) (driver.Element, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	el, ok := f.elements[selector]
	if !ok {
		return nil, false
	}
	return el, true
}

// Element is a fake driver.Element.
type Element struct {
	W, H      float64
	ClickErr  error
	clicked   atomic.Bool
}

func (e *Element) BoundingBox() (w, h float64, ok bool) {
	return e.W, e.H, e.W > 0 && e.H > 0
}

func (e *Element) Click(timeout time.Duration) error {
	e.clicked.Store(true)
	return e.ClickErr
}

// Clicked reports whether Click was called.
func (e *Element) Clicked() bool { return e.clicked.Load() }

// Route is a fake driver.Route for feeding synthetic requests through a
// pipeline's interceptor in tests.
type Route struct {
	RouteURL  string
	Headers   map[string]string
	Type      driver.ResourceType
	aborted   atomic.Bool
	continued atomic.Bool
}

func (r *Route) URL() string { return r.RouteURL }

func (r *Route) Header(name string) string {
	if r.Headers == nil {
		return ""
	}
	return r.Headers[name]
}

func (r *Route) ResourceType() driver.ResourceType { return r.Type }

func (r *Route) Abort() { r.aborted.Store(true) }

func (r *Route) Continue() { r.continued.Store(true) }

// Aborted reports whether Abort was called.
func (r *Route) Aborted() bool { return r.aborted.Load() }

// Continued reports whether Continue was called.
func (r *Route) Continued() bool { return r.continued.Load() }
