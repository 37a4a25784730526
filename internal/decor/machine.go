// Package decor drives frame interaction: dragging, edge and corner
// resizing, titlebar buttons and maximize/restore.
package decor

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/BurntSushi/xgb/xproto"

	"github.com/1broseidon/tessera/internal/config"
	"github.com/1broseidon/tessera/internal/geom"
	"github.com/1broseidon/tessera/internal/model"
	"github.com/1broseidon/tessera/internal/theme"
)

const doubleClickInterval = 400 * time.Millisecond

// Surface is the display side of the machine: it pushes geometry and
// decoration changes to the X server.
type Surface interface {
	// ApplyGeometry configures the frame, titlebar and client to match the model.
	ApplyGeometry(f *model.Frame) error
	// ClearTitlebar clears the titlebar background ahead of a move.
	ClearTitlebar(f *model.Frame)
	// RenderTitlebar redraws the decoration at its current size.
	RenderTitlebar(f *model.Frame) error
	// NotifyConfigure tells the client its final geometry.
	NotifyConfigure(f *model.Frame)
	// SetMaximizedState writes the EWMH maximized state for the client.
	SetMaximizedState(f *model.Frame, maximized bool) error
	// WorkArea is the usable screen area for f.
	WorkArea(f *model.Frame) (geom.Rect, error)
	// SetResizeCursor shows the cursor for e while a session holds the pointer.
	SetResizeCursor(e Edge)
}

// Actions performs the window operations behind titlebar buttons.
type Actions interface {
	Close(f *model.Frame)
	Miniaturize(f *model.Frame)
}

// Scheduler runs fn on the event loop once, after d.
type Scheduler interface {
	After(d time.Duration, fn func())
}

// FrameLookup resolves any frame, titlebar or client id to its frame.
type FrameLookup interface {
	FrameFor(id xproto.Window) (*model.Frame, bool)
}

// Settings are the tunables of the interaction machine.
type Settings struct {
	Buttons        config.ButtonsConfig
	ResizeBorder   int
	MinSize        geom.Size
	MotionInterval time.Duration
}

// SettingsFromConfig extracts machine settings from cfg.
func SettingsFromConfig(cfg *config.Config) Settings {
	return Settings{
		Buttons:        cfg.Titlebar.Buttons,
		ResizeBorder:   cfg.Interaction.ResizeBorder,
		MinSize:        geom.Size{Width: cfg.Interaction.MinWidth, Height: cfg.Interaction.MinHeight},
		MotionInterval: cfg.Interaction.MotionInterval,
	}
}

// Machine is the single pointer interaction state machine. Only one frame
// can be dragged or resized at a time.
type Machine struct {
	settings Settings
	frames   FrameLookup
	surface  Surface
	actions  Actions
	sched    Scheduler
	logger   *slog.Logger
	now      func() time.Time

	state      State
	lastMotion time.Time
	lastClick  time.Time
	lastClickF xproto.Window
}

// NewMachine returns an idle machine. sched may be nil, in which case a
// throttled motion waits for the next event or the release.
func NewMachine(settings Settings, frames FrameLookup, surface Surface, actions Actions, sched Scheduler, logger *slog.Logger) *Machine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Machine{
		settings: settings,
		frames:   frames,
		surface:  surface,
		actions:  actions,
		sched:    sched,
		logger:   logger,
		now:      time.Now,
	}
}

// SetSettings replaces the tunables, typically after a config reload.
func (m *Machine) SetSettings(s Settings) { m.settings = s }

// State returns a copy of the current state.
func (m *Machine) State() State { return m.state }

// Buttons resolves the button rects for a titlebar of the given width.
func (m *Machine) Buttons(width int) map[theme.Button]geom.Rect {
	return theme.ResolveButtons(m.settings.Buttons, width)
}

// ButtonPress handles a primary-button press on a frame, titlebar or client
// at root position p. It reports whether the press was consumed by the
// decoration; an unconsumed press belongs to the client.
func (m *Machine) ButtonPress(win xproto.Window, p geom.Point) bool {
	f, ok := m.frames.FrameFor(win)
	if !ok {
		return false
	}
	if m.state.Active() {
		// A second press during a session is ignored.
		return true
	}

	tb := f.Titlebar().Rect
	if tb.Contains(p) {
		local := p.Sub(tb.Origin())
		if b := ButtonAt(m.Buttons(tb.Width), local, f.Client().FixedSize()); b != theme.ButtonNone {
			m.state.armed = b
			m.state.armedFrame = f.ID
			return true
		}
	}

	if !f.Client().FixedSize() {
		if edge := EdgeAt(f.Rect, p, m.settings.ResizeBorder); edge != EdgeNone {
			m.begin(f, PhaseResizing, p, edge)
			m.surface.SetResizeCursor(edge)
			return true
		}
	}

	if !tb.Contains(p) {
		return false
	}

	now := m.now()
	if f.ID == m.lastClickF && now.Sub(m.lastClick) < doubleClickInterval {
		m.lastClickF = 0
		if err := m.ToggleMaximize(f); err != nil {
			m.logger.Warn("maximize toggle failed", "frame", f.ID, "error", err)
		}
		return true
	}
	m.lastClick, m.lastClickF = now, f.ID

	m.begin(f, PhaseDragging, p, EdgeNone)
	return true
}

func (m *Machine) begin(f *model.Frame, phase Phase, p geom.Point, edge Edge) {
	f.Session = model.Session{StartPointer: p, StartRect: f.Rect, Edge: int(edge), WasMaximized: f.Maximized}
	m.state.Phase = phase
	m.state.Frame = f.ID
	m.state.seq++
	m.lastMotion = time.Time{}
	m.logger.Debug("interaction started", "frame", f.ID, "phase", phase.String(), "edge", edge.String())
}

// Motion handles pointer motion at root position p.
func (m *Machine) Motion(p geom.Point) {
	if !m.state.Active() {
		return
	}
	f, ok := m.frames.FrameFor(m.state.Frame)
	if !ok {
		m.state.Reset()
		return
	}

	now := m.now()
	if m.settings.MotionInterval > 0 && !m.lastMotion.IsZero() && now.Sub(m.lastMotion) < m.settings.MotionInterval {
		m.state.pending = p
		m.state.hasPending = true
		m.armFlush(m.settings.MotionInterval - now.Sub(m.lastMotion))
		return
	}
	m.lastMotion = now
	m.state.hasPending = false
	m.step(f, p)
}

// armFlush schedules the trailing step for a throttled motion so the frame
// catches up with a pointer that stopped moving.
func (m *Machine) armFlush(d time.Duration) {
	if m.sched == nil || m.state.flushArmed {
		return
	}
	m.state.flushArmed = true
	seq := m.state.seq
	m.sched.After(d, func() { m.flush(seq) })
}

func (m *Machine) flush(seq uint64) {
	if seq != m.state.seq || !m.state.flushArmed {
		return
	}
	m.state.flushArmed = false
	if !m.state.Active() || !m.state.hasPending {
		return
	}
	f, ok := m.frames.FrameFor(m.state.Frame)
	if !ok {
		m.state.Reset()
		return
	}
	m.lastMotion = m.now()
	m.state.hasPending = false
	m.step(f, m.state.pending)
}

func (m *Machine) step(f *model.Frame, p geom.Point) {
	target := m.target(f, p)
	if target == f.Rect {
		return
	}
	if m.state.Phase == PhaseDragging {
		m.surface.ClearTitlebar(f)
	}
	m.move(f, target)
}

// move applies a session rect. The first change to a maximized frame leaves
// the maximized state; the saved rect is kept for a later restore.
func (m *Machine) move(f *model.Frame, r geom.Rect) {
	if r == f.Rect || !m.apply(f, r) {
		return
	}
	if f.Maximized {
		f.Maximized = false
		if err := m.surface.SetMaximizedState(f, false); err != nil {
			m.logger.Warn("failed to clear maximized state", "frame", f.ID, "error", err)
		}
	}
}

func (m *Machine) target(f *model.Frame, p geom.Point) geom.Rect {
	s := f.Session
	delta := p.Sub(s.StartPointer)
	switch m.state.Phase {
	case PhaseDragging:
		return s.StartRect.Translate(delta)
	case PhaseResizing:
		minSize := m.settings.MinSize
		minSize.Height += f.TitlebarHeight()
		return ResizeRect(s.StartRect, Edge(s.Edge), delta, minSize)
	default:
		return f.Rect
	}
}

// apply moves the model to r and pushes it to the display. A rejected
// request rolls the model back.
func (m *Machine) apply(f *model.Frame, r geom.Rect) bool {
	prev := f.Rect
	f.SetRect(r)
	if err := m.surface.ApplyGeometry(f); err != nil {
		f.SetRect(prev)
		m.logger.Warn("configure rejected", "frame", f.ID, "rect", r.String(), "error", err)
		return false
	}
	return true
}

// ButtonRelease ends the current session at root position p, or fires an
// armed titlebar button when released over it.
func (m *Machine) ButtonRelease(p geom.Point) {
	if m.state.armed != theme.ButtonNone {
		m.releaseButton(p)
		return
	}
	if !m.state.Active() {
		return
	}
	f, ok := m.frames.FrameFor(m.state.Frame)
	if !ok {
		m.state.Reset()
		return
	}
	if m.state.hasPending {
		p = m.state.pending
	}
	m.move(f, m.target(f, p))
	m.finish(f)
}

func (m *Machine) releaseButton(p geom.Point) {
	b, fid := m.state.armed, m.state.armedFrame
	m.state.Reset()
	f, ok := m.frames.FrameFor(fid)
	if !ok {
		return
	}
	tb := f.Titlebar().Rect
	if !tb.Contains(p) || ButtonAt(m.Buttons(tb.Width), p.Sub(tb.Origin()), f.Client().FixedSize()) != b {
		return
	}
	switch b {
	case theme.ButtonClose:
		m.actions.Close(f)
	case theme.ButtonMiniaturize:
		m.actions.Miniaturize(f)
	case theme.ButtonZoom:
		if err := m.ToggleMaximize(f); err != nil {
			m.logger.Warn("zoom failed", "frame", f.ID, "error", err)
		}
	}
}

// finish sends the authoritative configure, re-renders and returns to idle.
func (m *Machine) finish(f *model.Frame) {
	m.surface.NotifyConfigure(f)
	if err := m.surface.RenderTitlebar(f); err != nil {
		m.logger.Warn("titlebar render failed", "frame", f.ID, "error", err)
	}
	m.logger.Debug("interaction finished", "frame", f.ID, "rect", f.Rect.String())
	f.Session = model.Session{}
	m.state.Reset()
}

// Cancel abandons the current session and restores the exact pre-session
// geometry and maximized state.
func (m *Machine) Cancel() {
	if !m.state.Active() {
		m.state.Reset()
		return
	}
	f, ok := m.frames.FrameFor(m.state.Frame)
	if !ok {
		m.state.Reset()
		return
	}
	s := f.Session
	f.SetRect(s.StartRect)
	if err := m.surface.ApplyGeometry(f); err != nil {
		m.logger.Warn("failed to restore geometry on cancel", "frame", f.ID, "error", err)
	}
	if s.WasMaximized && !f.Maximized {
		f.Maximized = true
		if err := m.surface.SetMaximizedState(f, true); err != nil {
			m.logger.Warn("failed to restore maximized state", "frame", f.ID, "error", err)
		}
	}
	m.finish(f)
}

// Forget drops any session referencing frame id. It is called when the frame
// is destroyed mid-session.
func (m *Machine) Forget(id xproto.Window) {
	if m.state.Frame == id || m.state.armedFrame == id {
		m.state.Reset()
	}
	if m.lastClickF == id {
		m.lastClickF = 0
	}
}

// Maximize saves the current rect and fills the work area.
func (m *Machine) Maximize(f *model.Frame) error {
	if f.Maximized {
		return nil
	}
	area, err := m.surface.WorkArea(f)
	if err != nil {
		return fmt.Errorf("failed to get work area: %w", err)
	}
	saved := f.Rect
	if !m.apply(f, area) {
		return fmt.Errorf("failed to configure frame %d", f.ID)
	}
	f.SavedRect = saved
	f.Maximized = true
	return m.settle(f, true)
}

// Restore reapplies the rect saved by Maximize.
func (m *Machine) Restore(f *model.Frame) error {
	if !f.Maximized {
		return nil
	}
	if !m.apply(f, f.SavedRect) {
		return fmt.Errorf("failed to configure frame %d", f.ID)
	}
	f.Maximized = false
	return m.settle(f, false)
}

// ToggleMaximize maximizes or restores f.
func (m *Machine) ToggleMaximize(f *model.Frame) error {
	if f.Maximized {
		return m.Restore(f)
	}
	return m.Maximize(f)
}

func (m *Machine) settle(f *model.Frame, maximized bool) error {
	m.surface.NotifyConfigure(f)
	if err := m.surface.RenderTitlebar(f); err != nil {
		m.logger.Warn("titlebar render failed", "frame", f.ID, "error", err)
	}
	if err := m.surface.SetMaximizedState(f, maximized); err != nil {
		return fmt.Errorf("failed to set maximized state: %w", err)
	}
	return nil
}
