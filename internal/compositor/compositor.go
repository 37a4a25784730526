// Package compositor keeps a composite image of tracked frames, redrawing
// damaged regions with a drop shadow under each frame and rounded corners
// clipping its content.
package compositor

import (
	"errors"
	"log/slog"
	"time"

	"github.com/BurntSushi/xgb/xproto"

	"github.com/1broseidon/tessera/internal/config"
	"github.com/1broseidon/tessera/internal/geom"
)

// ErrInactive is returned by operations that need an active compositor.
var ErrInactive = errors.New("compositor inactive")

// Capabilities is the outcome of the startup probe.
type Capabilities struct {
	Composite bool
	Damage    bool
	Render    bool
	// ARGBVisual is the 32-bit TrueColor visual, 0 when none exists.
	ARGBVisual xproto.Visualid
}

// Usable reports whether compositing can run.
func (c Capabilities) Usable() bool {
	return c.Composite && c.Damage && c.Render && c.ARGBVisual != 0
}

// Backend draws on the display. Rects are in root coordinates.
type Backend interface {
	Probe() (Capabilities, error)
	Start() error
	Stop()
	Track(id xproto.Window) error
	Untrack(id xproto.Window)
	// Stacking returns top-level windows bottom to top.
	Stacking() ([]xproto.Window, error)
	// BeginFrame prepares the off-screen buffer, clipped to clips.
	BeginFrame(clips []geom.Rect) error
	DrawShadow(id xproto.Window, frame geom.Rect) error
	DrawWindow(id xproto.Window, frame geom.Rect, rounded bool) error
	// Present copies the clipped buffer to the screen.
	Present(clips []geom.Rect) error
}

// Invalidator is implemented by backends that cache per-window contents
// which go stale when the window is remapped.
type Invalidator interface {
	Invalidate(id xproto.Window)
}

// Reconfigurer is implemented by backends that derive cached state from the
// settings.
type Reconfigurer interface {
	SetSettings(s Settings)
}

// Observer receives pass statistics. It may be nil.
type Observer interface {
	CompositePass(d time.Duration, regions int)
	CompositeSkipped(reason string)
}

// Effects selects the decoration applied to a tracked window.
type Effects struct {
	Shadow  bool
	Rounded bool
}

// Settings are the compositor tunables.
type Settings struct {
	ShadowRadius  int
	ShadowOffset  geom.Point
	ShadowOpacity float64
	CornerRadius  int
	MinInterval   time.Duration
}

// SettingsFromConfig extracts compositor settings from cfg.
func SettingsFromConfig(cfg config.CompositorConfig) Settings {
	return Settings{
		ShadowRadius:  cfg.ShadowRadius,
		ShadowOffset:  geom.Point{X: cfg.ShadowOffsetX, Y: cfg.ShadowOffsetY},
		ShadowOpacity: cfg.ShadowOpacity,
		CornerRadius:  cfg.CornerRadius,
		MinInterval:   cfg.MinInterval,
	}
}

type tracked struct {
	rect    geom.Rect
	effects Effects
	mapped  bool
	damage  geom.Rect
}

// Compositor owns the tracked-window set and its pending damage.
type Compositor struct {
	backend  Backend
	settings Settings
	logger   *slog.Logger
	observer Observer
	now      func() time.Time

	active      bool
	compositing bool
	last        time.Time

	windows map[xproto.Window]*tracked
	order   []xproto.Window // insertion order, used when stacking is unknown
	// vacated is screen area left behind by untracked or unmapped windows.
	vacated geom.Rect
}

// New returns an inactive compositor. Call Start to probe and activate it.
func New(backend Backend, settings Settings, logger *slog.Logger, observer Observer) *Compositor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Compositor{
		backend:  backend,
		settings: settings,
		logger:   logger,
		observer: observer,
		now:      time.Now,
		windows:  make(map[xproto.Window]*tracked),
	}
}

// Start probes the display and activates compositing when every capability
// is present. Missing capabilities leave the compositor inert; that is not
// an error.
func (c *Compositor) Start() error {
	caps, err := c.backend.Probe()
	if err != nil {
		c.logger.Warn("compositor probe failed", "error", err)
		return nil
	}
	if !caps.Usable() {
		c.logger.Info("compositing disabled",
			"composite", caps.Composite,
			"damage", caps.Damage,
			"render", caps.Render,
			"argb_visual", caps.ARGBVisual != 0)
		return nil
	}
	if err := c.backend.Start(); err != nil {
		c.logger.Warn("compositor start failed", "error", err)
		return nil
	}
	c.active = true
	c.logger.Info("compositing enabled", "argb_visual", caps.ARGBVisual)
	return nil
}

// Stop releases display resources.
func (c *Compositor) Stop() {
	if !c.active {
		return
	}
	for id := range c.windows {
		c.backend.Untrack(id)
	}
	c.backend.Stop()
	c.active = false
}

// Active reports whether compositing is running.
func (c *Compositor) Active() bool { return c.active }

// Tracked reports whether id is in the tracked set.
func (c *Compositor) Tracked(id xproto.Window) bool {
	_, ok := c.windows[id]
	return ok
}

// Pending returns the accumulated damage for id.
func (c *Compositor) Pending(id xproto.Window) geom.Rect {
	if t, ok := c.windows[id]; ok {
		return t.damage
	}
	return geom.Rect{}
}

// Track opts id into compositing with frame rect r. Tracking an already
// tracked window only updates its effects.
func (c *Compositor) Track(id xproto.Window, r geom.Rect, effects Effects) error {
	if !c.active {
		return ErrInactive
	}
	if t, ok := c.windows[id]; ok {
		t.effects = effects
		return nil
	}
	if err := c.backend.Track(id); err != nil {
		return err
	}
	t := &tracked{rect: r, effects: effects, mapped: true}
	t.damage = c.extent(t)
	c.windows[id] = t
	c.order = append(c.order, id)
	return nil
}

// Untrack removes id. Untracking an unknown id is a no-op.
func (c *Compositor) Untrack(id xproto.Window) {
	t, ok := c.windows[id]
	if !ok {
		return
	}
	if t.mapped {
		c.vacated = c.vacated.Union(c.extent(t))
	}
	delete(c.windows, id)
	for i, oid := range c.order {
		if oid == id {
			c.order = append(c.order[:i], c.order[i+1:]...)
			break
		}
	}
	c.backend.Untrack(id)
}

// SetMapped records map state changes; unmapped windows are not drawn.
func (c *Compositor) SetMapped(id xproto.Window, mapped bool) {
	t, ok := c.windows[id]
	if !ok || t.mapped == mapped {
		return
	}
	t.mapped = mapped
	if inv, ok := c.backend.(Invalidator); ok {
		inv.Invalidate(id)
	}
	if mapped {
		t.damage = t.damage.Union(c.extent(t))
	} else {
		c.vacated = c.vacated.Union(c.extent(t))
	}
}

// HandleDamage accumulates a window-relative damage rect. It never draws.
func (c *Compositor) HandleDamage(id xproto.Window, r geom.Rect) {
	t, ok := c.windows[id]
	if !ok || r.Empty() {
		return
	}
	t.damage = t.damage.Union(r.Translate(t.rect.Origin()))
}

// HandleConfigure records a new frame rect, damaging both the old and the
// new extent.
func (c *Compositor) HandleConfigure(id xproto.Window, r geom.Rect) {
	t, ok := c.windows[id]
	if !ok || t.rect == r {
		return
	}
	old := c.extent(t)
	t.rect = r
	if t.mapped {
		c.vacated = c.vacated.Union(old)
		t.damage = t.damage.Union(c.extent(t))
	}
}

// SetSettings replaces the tunables. The area painted under the old
// settings and the area under the new ones are both redrawn.
func (c *Compositor) SetSettings(s Settings) {
	for _, t := range c.windows {
		c.vacated = c.vacated.Union(c.extent(t))
	}
	c.settings = s
	if r, ok := c.backend.(Reconfigurer); ok {
		r.SetSettings(s)
	}
	c.DamageAll()
}

// DamageAll marks every tracked window for redraw.
func (c *Compositor) DamageAll() {
	for _, t := range c.windows {
		t.damage = c.extent(t)
	}
}

// extent is the screen area t paints, shadow included.
func (c *Compositor) extent(t *tracked) geom.Rect {
	if !t.effects.Shadow {
		return t.rect
	}
	return t.rect.Union(ShadowExtent(t.rect, c.settings.ShadowRadius, c.settings.ShadowOffset))
}

// CompositeScreen redraws damaged regions back to front and presents them.
// Calls made while a pass is running, or sooner than the minimum interval
// after the last pass, are dropped. It reports whether a pass ran.
func (c *Compositor) CompositeScreen() bool {
	if !c.active {
		return false
	}
	if c.compositing {
		c.skipped("reentrant")
		return false
	}
	now := c.now()
	if c.settings.MinInterval > 0 && !c.last.IsZero() && now.Sub(c.last) < c.settings.MinInterval {
		c.skipped("throttled")
		return false
	}

	var clips []geom.Rect
	for _, t := range c.windows {
		if !t.damage.Empty() {
			clips = append(clips, t.damage)
		}
	}
	if !c.vacated.Empty() {
		clips = append(clips, c.vacated)
	}
	if len(clips) == 0 {
		return false
	}
	clips = mergeRects(clips)

	c.compositing = true
	defer func() { c.compositing = false }()

	if err := c.backend.BeginFrame(clips); err != nil {
		c.logger.Warn("composite pass aborted", "stage", "begin", "error", err)
		return false
	}

	failed := make(map[xproto.Window]bool)
	for _, id := range c.stacking() {
		t := c.windows[id]
		if t == nil || !t.mapped || !overlapsAny(c.extent(t), clips) {
			continue
		}
		if t.effects.Shadow {
			if err := c.backend.DrawShadow(id, t.rect); err != nil {
				c.logger.Debug("shadow draw failed", "window", id, "error", err)
				failed[id] = true
			}
		}
		if err := c.backend.DrawWindow(id, t.rect, t.effects.Rounded); err != nil {
			c.logger.Debug("window draw failed", "window", id, "error", err)
			failed[id] = true
		}
	}

	if err := c.backend.Present(clips); err != nil {
		c.logger.Warn("composite pass aborted", "stage", "present", "error", err)
		return false
	}

	for id, t := range c.windows {
		if !failed[id] {
			t.damage = geom.Rect{}
		}
	}
	c.vacated = geom.Rect{}
	c.last = now
	if c.observer != nil {
		c.observer.CompositePass(c.now().Sub(now), len(clips))
	}
	return true
}

func (c *Compositor) skipped(reason string) {
	if c.observer != nil {
		c.observer.CompositeSkipped(reason)
	}
}

// stacking returns tracked ids bottom to top. The server's order wins;
// windows it does not report keep their insertion order underneath.
func (c *Compositor) stacking() []xproto.Window {
	ids, err := c.backend.Stacking()
	if err != nil {
		c.logger.Debug("stacking query failed", "error", err)
		return c.order
	}
	seen := make(map[xproto.Window]bool, len(ids))
	out := make([]xproto.Window, 0, len(c.windows))
	for _, id := range ids {
		if _, ok := c.windows[id]; ok && !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	var missing []xproto.Window
	for _, id := range c.order {
		if !seen[id] {
			missing = append(missing, id)
		}
	}
	return append(missing, out...)
}

func overlapsAny(r geom.Rect, clips []geom.Rect) bool {
	for _, c := range clips {
		if r.Overlaps(c) {
			return true
		}
	}
	return false
}

// mergeRects unions overlapping rects until none overlap.
func mergeRects(rects []geom.Rect) []geom.Rect {
	out := append([]geom.Rect(nil), rects...)
	for merged := true; merged; {
		merged = false
		for i := 0; i < len(out) && !merged; i++ {
			for j := i + 1; j < len(out); j++ {
				if out[i].Overlaps(out[j]) {
					out[i] = out[i].Union(out[j])
					out = append(out[:j], out[j+1:]...)
					merged = true
					break
				}
			}
		}
	}
	return out
}
