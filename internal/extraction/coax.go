package extraction

import (
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/lumenstream/extractor/internal/driver"
)

// clickTimeout bounds a single play-button click attempt.
const clickTimeout = 500 * time.Millisecond

// coaxFrame walks selectorList in order and clicks the first element with
// a non-zero bounding box. It returns true once it has attempted a click;
// click failures are swallowed since this is best-effort coaxing.
func coaxFrame(frame driver.Frame, selectorList []string) bool {
	for _, sel := range selectorList {
		el, ok := frame.Find(sel)
		if !ok {
			continue
		}
		w, h, ok := el.BoundingBox()
		if !ok || w <= 0 || h <= 0 {
			continue
		}
		_ = el.Click(clickTimeout)
		return true
	}
	return false
}

// coaxFramesParallel fans coaxFrame out across frames concurrently. No
// single unresponsive frame can block or fail the others.
func coaxFramesParallel(frames []driver.Frame, selectorList []string) {
	var g errgroup.Group
	for _, f := range frames {
		f := f
		g.Go(func() error {
			coaxFrame(f, selectorList)
			return nil
		})
	}
	_ = g.Wait()
}
