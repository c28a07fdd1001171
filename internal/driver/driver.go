// Package driver defines the narrow browser-automation capability surface
// the extraction pipeline depends on. The pool and pipeline are written
// against this interface, not against go-rod directly, so the engine
// behind a Handle can be swapped or faked in tests without touching
// pool, circuit, or pipeline logic.
package driver

import (
	"context"
	"time"
)

// LaunchOptions configures a new browser process.
type LaunchOptions struct {
	BinPath  string
	Headless bool
}

// ContextOptions configures an isolated browsing context.
type ContextOptions struct {
	UserAgent        string
	BypassCSP        bool
	IgnoreHTTPSErrors bool
	ViewportWidth    int
	ViewportHeight   int
	DeviceScaleFactor float64
	IsMobile         bool
	HasTouch         bool
	ReducedMotion    bool
	BlockServiceWorkers bool
}

// ResourceType mirrors the CDP resource type of an intercepted request.
type ResourceType string

const (
	ResourceDocument   ResourceType = "document"
	ResourceScript     ResourceType = "script"
	ResourceStylesheet ResourceType = "stylesheet"
	ResourceImage      ResourceType = "image"
	ResourceFont       ResourceType = "font"
	ResourceXHR        ResourceType = "xhr"
	ResourceFetch      ResourceType = "fetch"
	ResourceMedia      ResourceType = "media"
	ResourceOther      ResourceType = "other"
)

// Cookie is a single cookie captured from a context.
type Cookie struct {
	Name     string
	Value    string
	Domain   string
	Path     string
	HTTPOnly bool
	Secure   bool
	SameSite string
}

// Launcher launches browser processes.
type Launcher interface {
	Launch(ctx context.Context, opts LaunchOptions) (Handle, error)
}

// Handle is a live connection to a browser process.
type Handle interface {
	NewContext(ctx context.Context, opts ContextOptions) (Context, error)
	OnDisconnected(callback func())
	Close() error
	IsConnected() bool
}

// Route represents one intercepted network request.
type Route interface {
	URL() string
	Header(name string) string
	ResourceType() ResourceType
	Abort()
	Continue()
}

// Context is an isolated browsing context (an incognito-like tab group).
type Context interface {
	Route(handler func(Route))
	Unroute()
	OnPage(callback func(Page))
	Cookies() ([]Cookie, error)
	NewPage(ctx context.Context) (Page, error)
	Close() error
}

// Page is a single tab within a Context.
type Page interface {
	Goto(ctx context.Context, url string, timeout time.Duration) error
	WaitTimeout(d time.Duration)
	MainFrame() Frame
	Frames() []Frame
	Close() error
}

// Frame is a document frame (main frame or an iframe) within a Page.
type Frame interface {
	Find(selector string) (Element, bool)
}

// Element is a DOM element located within a Frame.
type Element interface {
	BoundingBox() (w, h float64, ok bool)
	Click(timeout time.Duration) error
}
