package extraction

import (
	"errors"
	"testing"

	"github.com/lumenstream/extractor/internal/driver"
	"github.com/lumenstream/extractor/internal/driver/drivertest"
)

var errClickFailed = errors.New("click failed")

func TestCoaxFrameClicksFirstVisibleSelector(t *testing.T) {
	frame := drivertest.NewFrame()
	hidden := &drivertest.Element{W: 0, H: 0}
	visible := &drivertest.Element{W: 40, H: 40}
	frame.SetElement(".jw-icon-playback", hidden)
	frame.SetElement(".vjs-big-play-button", visible)

	ok := coaxFrame(frame, []string{".jw-icon-playback", ".vjs-big-play-button"})
	if !ok {
		t.Fatal("expected coaxFrame to report a click attempt")
	}
	if hidden.Clicked() {
		t.Error("hidden element (zero bounding box) should never be clicked")
	}
	if !visible.Clicked() {
		t.Error("first visible element in selector order should be clicked")
	}
}

func TestCoaxFrameNoMatchingSelector(t *testing.T) {
	frame := drivertest.NewFrame()
	ok := coaxFrame(frame, []string{".does-not-exist"})
	if ok {
		t.Error("expected no click attempt when no selector matches")
	}
}

func TestCoaxFrameSwallowsClickError(t *testing.T) {
	frame := drivertest.NewFrame()
	el := &drivertest.Element{W: 10, H: 10, ClickErr: errClickFailed}
	frame.SetElement("video", el)

	ok := coaxFrame(frame, []string{"video"})
	if !ok {
		t.Fatal("expected a click attempt even though Click returns an error")
	}
	if !el.Clicked() {
		t.Error("element should have been clicked despite the returned error")
	}
}

func TestCoaxFramesParallelCoaxesEveryFrameIndependently(t *testing.T) {
	f1 := drivertest.NewFrame()
	e1 := &drivertest.Element{W: 10, H: 10}
	f1.SetElement("video", e1)

	f2 := drivertest.NewFrame()
	e2 := &drivertest.Element{W: 10, H: 10, ClickErr: errClickFailed}
	f2.SetElement("video", e2)

	f3 := drivertest.NewFrame()

	coaxFramesParallel([]driver.Frame{f1, f2, f3}, []string{"video"})

	if !e1.Clicked() {
		t.Error("frame 1's element should be clicked")
	}
	if !e2.Clicked() {
		t.Error("frame 2's element should be clicked despite its click error")
	}
}
