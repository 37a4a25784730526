package decor

import (
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/BurntSushi/xgb/xproto"

	"github.com/1broseidon/tessera/internal/config"
	"github.com/1broseidon/tessera/internal/geom"
	"github.com/1broseidon/tessera/internal/model"
	"github.com/1broseidon/tessera/internal/theme"
)

type fakeSurface struct {
	applied   []geom.Rect
	cleared   int
	rendered  int
	notified  int
	maximized map[xproto.Window]bool
	workArea  geom.Rect
	failApply bool
	cursor    Edge
}

func (s *fakeSurface) ApplyGeometry(f *model.Frame) error {
	if s.failApply {
		return errors.New("bad value")
	}
	s.applied = append(s.applied, f.Rect)
	return nil
}
func (s *fakeSurface) ClearTitlebar(*model.Frame) { s.cleared++ }
func (s *fakeSurface) RenderTitlebar(*model.Frame) error { s.rendered++; return nil }
func (s *fakeSurface) NotifyConfigure(*model.Frame) { s.notified++ }
func (s *fakeSurface) WorkArea(*model.Frame) (geom.Rect, error) { return s.workArea, nil }
func (s *fakeSurface) SetResizeCursor(e Edge) { s.cursor = e }
func (s *fakeSurface) SetMaximizedState(f *model.Frame, on bool) error {
	if s.maximized == nil {
		s.maximized = map[xproto.Window]bool{}
	}
	s.maximized[f.ID] = on
	return nil
}

type fakeActions struct {
	closed, miniaturized int
}

func (a *fakeActions) Close(*model.Frame) { a.closed++ }
func (a *fakeActions) Miniaturize(*model.Frame) { a.miniaturized++ }

type fakeScheduler struct {
	delays []time.Duration
	fns    []func()
}

func (s *fakeScheduler) After(d time.Duration, fn func()) {
	s.delays = append(s.delays, d)
	s.fns = append(s.fns, fn)
}

// runAll fires and clears every scheduled callback.
func (s *fakeScheduler) runAll() {
	fns := s.fns
	s.fns, s.delays = nil, nil
	for _, fn := range fns {
		fn()
	}
}

type testRig struct {
	m       *Machine
	surface *fakeSurface
	actions *fakeActions
	sched   *fakeScheduler
	reg     *model.Registry
	frame   *model.Frame
	clock   time.Time
}

func newRig(t *testing.T, client geom.Rect) *testRig {
	t.Helper()
	reg := model.NewRegistry()
	c := model.NewWindow(3, client)
	tb := &model.Titlebar{Window: model.Window{ID: 2}}
	f := model.NewFrame(1, c, tb, 24)
	reg.AddFrame(f)

	rig := &testRig{
		surface: &fakeSurface{workArea: geom.R(0, 0, 1920, 1056)},
		actions: &fakeActions{},
		sched:   &fakeScheduler{},
		reg:     reg,
		frame:   f,
		clock:   time.Unix(1000, 0),
	}
	settings := SettingsFromConfig(config.DefaultConfig())
	rig.m = NewMachine(settings, reg, rig.surface, rig.actions, rig.sched, slog.New(slog.NewTextHandler(io.Discard, nil)))
	rig.m.now = func() time.Time { return rig.clock }
	return rig
}

func (r *testRig) tick() { r.clock = r.clock.Add(time.Second) }

func TestEdgeAt(t *testing.T) {
	r := geom.R(100, 100, 400, 300)
	tests := []struct {
		p    geom.Point
		want Edge
	}{
		{geom.Point{X: 300, Y: 250}, EdgeNone},
		{geom.Point{X: 300, Y: 101}, EdgeTop},
		{geom.Point{X: 300, Y: 395}, EdgeBottom},
		{geom.Point{X: 102, Y: 250}, EdgeLeft},
		{geom.Point{X: 495, Y: 250}, EdgeRight},
		{geom.Point{X: 101, Y: 101}, EdgeTopLeft},
		{geom.Point{X: 499, Y: 100}, EdgeTopRight},
		{geom.Point{X: 100, Y: 399}, EdgeBottomLeft},
		{geom.Point{X: 499, Y: 399}, EdgeBottomRight},
		{geom.Point{X: 600, Y: 250}, EdgeNone},
	}
	for _, tt := range tests {
		if got := EdgeAt(r, tt.p, 10); got != tt.want {
			t.Fatalf("EdgeAt(%v) = %v, want %v", tt.p, got, tt.want)
		}
	}
}

func TestResizePreservesOppositeEdge(t *testing.T) {
	start := geom.R(200, 150, 400, 300)
	minSize := geom.Size{Width: 100, Height: 60}
	deltas := []geom.Point{{X: 37, Y: -21}, {X: -55, Y: 80}, {X: -500, Y: -500}, {X: 900, Y: 900}}

	for _, edge := range AllEdges {
		for _, d := range deltas {
			got := ResizeRect(start, edge, d, minSize)

			if got.Width < minSize.Width || got.Height < minSize.Height {
				t.Fatalf("%v %v: %v below minimum", edge, d, got)
			}
			switch {
			case edge&EdgeLeft != 0:
				if got.Right() != start.Right() {
					t.Fatalf("%v %v: right edge moved %d -> %d", edge, d, start.Right(), got.Right())
				}
			case edge&EdgeRight != 0:
				if got.X != start.X {
					t.Fatalf("%v %v: left edge moved %d -> %d", edge, d, start.X, got.X)
				}
			default:
				if got.X != start.X || got.Width != start.Width {
					t.Fatalf("%v %v: horizontal geometry changed: %v", edge, d, got)
				}
			}
			switch {
			case edge&EdgeTop != 0:
				if got.Bottom() != start.Bottom() {
					t.Fatalf("%v %v: bottom edge moved %d -> %d", edge, d, start.Bottom(), got.Bottom())
				}
			case edge&EdgeBottom != 0:
				if got.Y != start.Y {
					t.Fatalf("%v %v: top edge moved %d -> %d", edge, d, start.Y, got.Y)
				}
			default:
				if got.Y != start.Y || got.Height != start.Height {
					t.Fatalf("%v %v: vertical geometry changed: %v", edge, d, got)
				}
			}
		}
	}
}

func TestResizeRightChangesWidthOnly(t *testing.T) {
	start := geom.R(10, 20, 300, 200)
	got := ResizeRect(start, EdgeRight, geom.Point{X: 50, Y: 33}, geom.Size{Width: 1, Height: 1})
	if got != geom.R(10, 20, 350, 200) {
		t.Fatalf("right resize = %v, want 350x200+10+20", got)
	}
	got = ResizeRect(start, EdgeBottomRight, geom.Point{X: 50, Y: 30}, geom.Size{Width: 1, Height: 1})
	if got != geom.R(10, 20, 350, 230) {
		t.Fatalf("bottom-right resize = %v, want 350x230+10+20", got)
	}
}

func TestButtonAtFixedSizeOnlyClose(t *testing.T) {
	buttons := theme.ResolveButtons(config.DefaultConfig().Titlebar.Buttons, 400)
	for b, r := range buttons {
		for y := r.Y; y < r.Bottom(); y++ {
			for x := r.X; x < r.Right(); x++ {
				p := geom.Point{X: x, Y: y}
				got := ButtonAt(buttons, p, true)
				if b == theme.ButtonClose && got != theme.ButtonClose {
					t.Fatalf("fixed-size close at %v = %v", p, got)
				}
				if b != theme.ButtonClose && got != theme.ButtonNone {
					t.Fatalf("fixed-size %v at %v exposed %v", b, p, got)
				}
				if free := ButtonAt(buttons, p, false); free != b {
					t.Fatalf("resizable %v at %v = %v", b, p, free)
				}
			}
		}
	}
}

func TestDragMovesFrameAndClearsFirst(t *testing.T) {
	rig := newRig(t, geom.R(100, 124, 400, 300))
	f := rig.frame
	start := f.Rect

	// Titlebar body, away from buttons and the resize border.
	press := geom.Point{X: 300, Y: 115}
	if !rig.m.ButtonPress(2, press) {
		t.Fatal("titlebar press was not consumed")
	}
	if rig.m.State().Phase != PhaseDragging {
		t.Fatalf("phase = %v, want dragging", rig.m.State().Phase)
	}

	rig.m.Motion(geom.Point{X: 340, Y: 135})
	if rig.surface.cleared != 1 {
		t.Fatalf("cleared = %d, want 1 before the move", rig.surface.cleared)
	}
	if f.Rect != start.Translate(geom.Point{X: 40, Y: 20}) {
		t.Fatalf("rect = %v after drag", f.Rect)
	}

	rig.m.ButtonRelease(geom.Point{X: 340, Y: 135})
	if rig.m.State().Phase != PhaseIdle {
		t.Fatal("expected idle after release")
	}
	if rig.surface.notified != 1 || rig.surface.rendered != 1 {
		t.Fatalf("release notified=%d rendered=%d, want 1/1", rig.surface.notified, rig.surface.rendered)
	}
	if f.Client().Rect != f.ClientRect() {
		t.Fatal("client rect out of sync with frame")
	}
}

func TestMotionIsThrottledButReleaseIsAuthoritative(t *testing.T) {
	rig := newRig(t, geom.R(100, 124, 400, 300))
	f := rig.frame
	start := f.Rect

	rig.m.ButtonPress(2, geom.Point{X: 300, Y: 115})
	rig.m.Motion(geom.Point{X: 310, Y: 115})
	for i := 1; i <= 5; i++ {
		rig.m.Motion(geom.Point{X: 310 + i, Y: 115})
	}
	if len(rig.surface.applied) != 1 {
		t.Fatalf("applied %d configures within one interval, want 1", len(rig.surface.applied))
	}

	rig.m.ButtonRelease(geom.Point{X: 400, Y: 400})
	if f.Rect != start.Translate(geom.Point{X: 15, Y: 0}) {
		t.Fatalf("final rect = %v, want last motion position", f.Rect)
	}
}

func TestThrottledMotionIsFlushedWhenPointerStops(t *testing.T) {
	rig := newRig(t, geom.R(100, 124, 400, 300))
	f := rig.frame
	start := f.Rect

	rig.m.ButtonPress(2, geom.Point{X: 300, Y: 115})
	rig.m.Motion(geom.Point{X: 310, Y: 115})
	rig.m.Motion(geom.Point{X: 320, Y: 115})
	rig.m.Motion(geom.Point{X: 330, Y: 125})
	if len(rig.sched.fns) != 1 {
		t.Fatalf("scheduled %d trailing steps, want 1", len(rig.sched.fns))
	}
	if d := rig.sched.delays[0]; d <= 0 || d > config.DefaultMotionInterval {
		t.Fatalf("trailing step delay = %v", d)
	}
	if f.Rect != start.Translate(geom.Point{X: 10, Y: 0}) {
		t.Fatalf("rect = %v before the trailing step", f.Rect)
	}

	rig.sched.runAll()
	if f.Rect != start.Translate(geom.Point{X: 30, Y: 10}) {
		t.Fatalf("rect = %v after the trailing step, want last pointer position", f.Rect)
	}
	if !rig.m.State().Active() {
		t.Fatal("trailing step ended the session")
	}
}

func TestStaleTrailingStepIsIgnored(t *testing.T) {
	rig := newRig(t, geom.R(100, 124, 400, 300))
	f := rig.frame

	rig.m.ButtonPress(2, geom.Point{X: 300, Y: 115})
	rig.m.Motion(geom.Point{X: 310, Y: 115})
	rig.m.Motion(geom.Point{X: 320, Y: 115})
	rig.m.ButtonRelease(geom.Point{X: 320, Y: 115})
	final := f.Rect
	applied := len(rig.surface.applied)

	rig.sched.runAll()
	if f.Rect != final || len(rig.surface.applied) != applied {
		t.Fatalf("trailing step after release moved the frame to %v", f.Rect)
	}
}

func TestResizeFromLeftEdgeKeepsRightEdge(t *testing.T) {
	rig := newRig(t, geom.R(100, 124, 400, 300))
	f := rig.frame
	right := f.Rect.Right()

	if !rig.m.ButtonPress(3, geom.Point{X: 103, Y: 250}) {
		t.Fatal("left-edge press was not consumed")
	}
	if rig.m.State().Phase != PhaseResizing || rig.surface.cursor != EdgeLeft {
		t.Fatalf("phase = %v cursor = %v, want resizing/left", rig.m.State().Phase, rig.surface.cursor)
	}
	rig.m.Motion(geom.Point{X: 63, Y: 250})
	rig.tick()
	rig.m.ButtonRelease(geom.Point{X: 63, Y: 250})

	if f.Rect.X != 60 || f.Rect.Right() != right {
		t.Fatalf("rect = %v, want x=60 and right edge %d", f.Rect, right)
	}
	if f.Titlebar().Rect.Width != f.Rect.Width || f.Client().Rect.Width != f.Rect.Width {
		t.Fatal("children not re-laid out")
	}
}

func TestInteriorClientPressIsNotConsumed(t *testing.T) {
	rig := newRig(t, geom.R(100, 124, 400, 300))
	if rig.m.ButtonPress(3, geom.Point{X: 300, Y: 300}) {
		t.Fatal("client interior press should pass through")
	}
	if rig.m.State().Active() {
		t.Fatal("no session should start")
	}
}

func TestFixedSizeSuppressesResize(t *testing.T) {
	rig := newRig(t, geom.R(100, 124, 400, 300))
	rig.frame.Client().SetFlag(model.FlagFixedSize, true)
	if rig.m.ButtonPress(3, geom.Point{X: 103, Y: 250}) {
		t.Fatal("fixed-size frame should not start a resize")
	}
}

func TestCancelRestoresPreSessionRect(t *testing.T) {
	rig := newRig(t, geom.R(100, 124, 400, 300))
	f := rig.frame
	start := f.Rect

	rig.m.ButtonPress(3, geom.Point{X: 498, Y: 422})
	rig.m.Motion(geom.Point{X: 600, Y: 500})
	if f.Rect == start {
		t.Fatal("expected resize to change the rect")
	}
	rig.m.Cancel()
	if f.Rect != start {
		t.Fatalf("rect after cancel = %v, want %v", f.Rect, start)
	}
	if rig.m.State().Active() {
		t.Fatal("expected idle after cancel")
	}
}

func TestCancelRestoresMaximizedState(t *testing.T) {
	rig := newRig(t, geom.R(100, 124, 400, 300))
	f := rig.frame
	before := f.Rect
	if err := rig.m.Maximize(f); err != nil {
		t.Fatalf("Maximize error: %v", err)
	}

	rig.m.ButtonPress(2, geom.Point{X: 960, Y: 15})
	rig.m.Motion(geom.Point{X: 1000, Y: 60})
	if f.Maximized || rig.surface.maximized[f.ID] {
		t.Fatal("moving a maximized frame should leave the maximized state")
	}
	rig.m.Cancel()

	if f.Rect != rig.surface.workArea || !f.Maximized || !rig.surface.maximized[f.ID] {
		t.Fatalf("after cancel maximized=%v rect=%v, want pre-session maximized=true rect=%v",
			f.Maximized, f.Rect, rig.surface.workArea)
	}
	if err := rig.m.Restore(f); err != nil {
		t.Fatalf("Restore error: %v", err)
	}
	if f.Rect != before {
		t.Fatalf("restore after cancel = %v, want %v", f.Rect, before)
	}
}

func TestPressWithoutMotionKeepsMaximized(t *testing.T) {
	rig := newRig(t, geom.R(100, 124, 400, 300))
	f := rig.frame
	if err := rig.m.Maximize(f); err != nil {
		t.Fatalf("Maximize error: %v", err)
	}
	rig.m.ButtonPress(2, geom.Point{X: 960, Y: 15})
	rig.m.ButtonRelease(geom.Point{X: 960, Y: 15})
	if !f.Maximized || f.Rect != rig.surface.workArea {
		t.Fatalf("click on a maximized titlebar changed it: maximized=%v rect=%v", f.Maximized, f.Rect)
	}
}

func TestRejectedConfigureLeavesModelUnchanged(t *testing.T) {
	rig := newRig(t, geom.R(100, 124, 400, 300))
	f := rig.frame
	start := f.Rect
	rig.m.ButtonPress(2, geom.Point{X: 300, Y: 115})
	rig.surface.failApply = true
	rig.m.Motion(geom.Point{X: 350, Y: 150})
	if f.Rect != start {
		t.Fatalf("rect = %v after rejected configure, want %v", f.Rect, start)
	}
}

func TestMaximizeRestoreRoundTrip(t *testing.T) {
	rects := []geom.Rect{
		geom.R(0, 24, 100, 100),
		geom.R(-50, 300, 640, 480),
		geom.R(1500, 900, 800, 600),
		geom.R(13, 57, 211, 97),
	}
	for _, c := range rects {
		rig := newRig(t, c)
		f := rig.frame
		before := f.Rect

		if err := rig.m.Maximize(f); err != nil {
			t.Fatalf("Maximize error: %v", err)
		}
		if f.Rect != rig.surface.workArea || !f.Maximized || !rig.surface.maximized[f.ID] {
			t.Fatalf("after maximize rect=%v maximized=%v", f.Rect, f.Maximized)
		}
		// A second maximize must not overwrite the saved rect.
		if err := rig.m.Maximize(f); err != nil {
			t.Fatalf("second Maximize error: %v", err)
		}
		if err := rig.m.Restore(f); err != nil {
			t.Fatalf("Restore error: %v", err)
		}
		if f.Rect != before || f.Maximized || rig.surface.maximized[f.ID] {
			t.Fatalf("after restore rect=%v, want %v", f.Rect, before)
		}
	}
}

func TestZoomButtonTogglesMaximize(t *testing.T) {
	rig := newRig(t, geom.R(100, 124, 400, 300))
	f := rig.frame
	zoom := rig.m.Buttons(f.Titlebar().Rect.Width)[theme.ButtonZoom]
	p := f.Titlebar().Rect.Origin().Add(geom.Point{X: zoom.X + 4, Y: zoom.Y + 4})

	rig.m.ButtonPress(2, p)
	rig.m.ButtonRelease(p)
	if !f.Maximized {
		t.Fatal("zoom should maximize")
	}
}

func TestButtonReleasedElsewhereDoesNothing(t *testing.T) {
	rig := newRig(t, geom.R(100, 124, 400, 300))
	f := rig.frame
	cl := rig.m.Buttons(f.Titlebar().Rect.Width)[theme.ButtonClose]
	p := f.Titlebar().Rect.Origin().Add(geom.Point{X: cl.X + 4, Y: cl.Y + 4})

	rig.m.ButtonPress(2, p)
	rig.m.ButtonRelease(geom.Point{X: 300, Y: 300})
	if rig.actions.closed != 0 {
		t.Fatal("close fired although released off the button")
	}
	rig.m.ButtonPress(2, p)
	rig.m.ButtonRelease(p)
	if rig.actions.closed != 1 {
		t.Fatalf("closed = %d, want 1", rig.actions.closed)
	}
}

func TestSessionOnDestroyedFrameResets(t *testing.T) {
	rig := newRig(t, geom.R(100, 124, 400, 300))
	rig.m.ButtonPress(2, geom.Point{X: 300, Y: 115})
	rig.reg.Remove(3)
	rig.m.Motion(geom.Point{X: 350, Y: 150})
	if rig.m.State().Active() {
		t.Fatal("session should reset when its frame disappears")
	}
	rig.m.ButtonRelease(geom.Point{X: 350, Y: 150})
}
