// Package hotkeys binds the switcher keys: the cycle binding on the root,
// then a keyboard grab for the rest of the session so the modifier release
// and the cancel key are seen. The same grab carries the cancel key during
// pointer drags and resizes.
package hotkeys

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/BurntSushi/xgb/xproto"
	"github.com/BurntSushi/xgbutil"
	"github.com/BurntSushi/xgbutil/keybind"
	"github.com/BurntSushi/xgbutil/xevent"

	"github.com/1broseidon/tessera/internal/config"
)

// Switcher is the part of the window switcher the keyboard drives.
type Switcher interface {
	Switching() bool
	Start() bool
	CycleForward()
	CycleBackward()
	Complete()
	Cancel()
}

// Action is what a key event means to a switch session.
type Action int

const (
	ActionNone Action = iota
	ActionForward
	ActionBackward
	ActionComplete
	ActionCancel
)

func (a Action) String() string {
	switch a {
	case ActionForward:
		return "forward"
	case ActionBackward:
		return "backward"
	case ActionComplete:
		return "complete"
	case ActionCancel:
		return "cancel"
	default:
		return "none"
	}
}

// Keys holds the resolved keycodes of a switcher binding.
type Keys struct {
	Modifier uint16
	Cycle    []xproto.Keycode
	Cancel   []xproto.Keycode
}

// Classify maps a key event seen during a session to an action. isModifier
// reports whether the key carries the binding's modifier.
func (k Keys) Classify(press bool, code xproto.Keycode, state uint16, isModifier bool) Action {
	if !press {
		if isModifier {
			return ActionComplete
		}
		return ActionNone
	}
	if contains(k.Cancel, code) {
		return ActionCancel
	}
	if contains(k.Cycle, code) {
		if state&xproto.ModMaskShift != 0 {
			return ActionBackward
		}
		return ActionForward
	}
	return ActionNone
}

func contains(codes []xproto.Keycode, c xproto.Keycode) bool {
	for _, k := range codes {
		if k == c {
			return true
		}
	}
	return false
}

// Handler owns the switcher key bindings.
type Handler struct {
	xu      *xgbutil.XUtil
	root    xproto.Window
	sw      Switcher
	cfg     config.SwitcherConfig
	keys    Keys
	logger  *slog.Logger
	grabWin xproto.Window
	grabbed bool
	// onCancel is set while a pointer session holds the keyboard.
	onCancel func()
}

var ignoreModsOnce sync.Once

// NewHandler returns a handler driving sw.
func NewHandler(xu *xgbutil.XUtil, sw Switcher, cfg config.SwitcherConfig, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	ignoreModsOnce.Do(func() {
		configureIgnoreMods(xu)
	})
	return &Handler{xu: xu, root: xu.RootWin(), sw: sw, cfg: cfg, logger: logger}
}

// Register grabs the cycle binding, with and without Shift, on the root.
func (h *Handler) Register() error {
	mods, cycle, err := keybind.ParseString(h.xu, h.cfg.Binding())
	if err != nil {
		return fmt.Errorf("invalid switcher binding %q: %w", h.cfg.Binding(), err)
	}
	h.keys = Keys{Modifier: mods, Cycle: cycle}
	if h.cfg.CancelKey != "" {
		_, cancel, err := keybind.ParseString(h.xu, h.cfg.CancelKey)
		if err != nil {
			return fmt.Errorf("invalid cancel key %q: %w", h.cfg.CancelKey, err)
		}
		h.keys.Cancel = cancel
	}

	if err := h.registerFunc(h.cfg.Binding(), h.forward); err != nil {
		return fmt.Errorf("failed to register switcher hotkey: %w", err)
	}
	backward := h.cfg.Modifier + "-Shift-" + h.cfg.Key
	if err := h.registerFunc(backward, h.backward); err != nil {
		return fmt.Errorf("failed to register reverse switcher hotkey: %w", err)
	}
	h.logger.Debug("switcher keys registered", "binding", h.cfg.Binding(), "cancel", h.cfg.CancelKey)
	return nil
}

func (h *Handler) registerFunc(seq string, fn func()) error {
	return keybind.KeyPressFun(func(*xgbutil.XUtil, xevent.KeyPressEvent) {
		fn()
	}).Connect(h.xu, h.root, seq, true)
}

func (h *Handler) forward()  { h.begin(h.sw.CycleForward) }
func (h *Handler) backward() { h.begin(h.sw.CycleBackward) }

func (h *Handler) begin(step func()) {
	if !h.sw.Switching() {
		if !h.sw.Start() {
			return
		}
		if err := h.grabKeyboard(); err != nil {
			// Without the grab the modifier release is never seen.
			h.logger.Warn("switcher keyboard grab failed", "error", err)
			h.sw.Cancel()
			return
		}
	}
	step()
}

// Apply performs a for the running session.
func (h *Handler) Apply(a Action) {
	switch a {
	case ActionForward:
		h.sw.CycleForward()
	case ActionBackward:
		h.sw.CycleBackward()
	case ActionComplete:
		h.sw.Complete()
		h.ungrabKeyboard()
	case ActionCancel:
		h.sw.Cancel()
		h.ungrabKeyboard()
	}
}

// Abort cancels a running session and drops the grab.
func (h *Handler) Abort() {
	if h.sw.Switching() {
		h.sw.Cancel()
	}
	h.onCancel = nil
	h.ungrabKeyboard()
}

// HoldCancel grabs the keyboard for a pointer session. The cancel key then
// calls onCancel once. It is a no-op without a cancel key or while the
// switcher owns the keyboard.
func (h *Handler) HoldCancel(onCancel func()) error {
	if len(h.keys.Cancel) == 0 || h.sw.Switching() {
		return nil
	}
	if err := h.grabKeyboard(); err != nil {
		return err
	}
	h.onCancel = onCancel
	return nil
}

// ReleaseCancel ends a HoldCancel.
func (h *Handler) ReleaseCancel() {
	if h.onCancel == nil {
		return
	}
	h.onCancel = nil
	h.ungrabKeyboard()
}

// Holding reports whether a pointer session holds the keyboard.
func (h *Handler) Holding() bool { return h.onCancel != nil }

func (h *Handler) onKeyPress(xu *xgbutil.XUtil, ev xevent.KeyPressEvent) {
	h.keyPressed(ev.Detail, ev.State)
}

func (h *Handler) keyPressed(code xproto.Keycode, state uint16) {
	a := h.keys.Classify(true, code, state, false)
	if h.onCancel != nil {
		if a == ActionCancel {
			fn := h.onCancel
			h.ReleaseCancel()
			fn()
		}
		return
	}
	h.Apply(a)
}

func (h *Handler) onKeyRelease(xu *xgbutil.XUtil, ev xevent.KeyReleaseEvent) {
	if h.onCancel != nil {
		return
	}
	isMod := keybind.ModGet(xu, ev.Detail)&h.keys.Modifier != 0
	h.Apply(h.keys.Classify(false, ev.Detail, ev.State, isMod))
}

func (h *Handler) grabKeyboard() error {
	if h.grabbed {
		return nil
	}
	if err := h.ensureGrabWindow(); err != nil {
		return err
	}
	conn := h.xu.Conn()
	grab := func() (*xproto.GrabKeyboardReply, error) {
		return xproto.GrabKeyboard(conn, false, h.root, xproto.TimeCurrentTime,
			xproto.GrabModeAsync, xproto.GrabModeAsync).Reply()
	}
	reply, err := grab()
	if err != nil {
		return err
	}
	// The passive grab of the hotkey may still hold the keyboard.
	if reply.Status == xproto.GrabStatusAlreadyGrabbed {
		xproto.UngrabKeyboard(conn, xproto.TimeCurrentTime)
		if reply, err = grab(); err != nil {
			return err
		}
	}
	if reply.Status != xproto.GrabStatusSuccess {
		return fmt.Errorf("keyboard grab failed with status %d", reply.Status)
	}

	xevent.RedirectKeyEvents(h.xu, h.grabWin)
	xevent.KeyPressFun(h.onKeyPress).Connect(h.xu, h.grabWin)
	xevent.KeyReleaseFun(h.onKeyRelease).Connect(h.xu, h.grabWin)
	h.grabbed = true
	return nil
}

func (h *Handler) ungrabKeyboard() {
	if !h.grabbed {
		return
	}
	xproto.UngrabKeyboard(h.xu.Conn(), xproto.TimeCurrentTime)
	xevent.RedirectKeyEvents(h.xu, 0)
	xevent.Detach(h.xu, h.grabWin)
	h.grabbed = false
}

// ensureGrabWindow creates the InputOnly window key callbacks hang off
// while the keyboard is grabbed.
func (h *Handler) ensureGrabWindow() error {
	if h.grabWin != 0 {
		return nil
	}
	conn := h.xu.Conn()
	wid, err := xproto.NewWindowId(conn)
	if err != nil {
		return err
	}
	err = xproto.CreateWindowChecked(conn, 0, wid, h.root, -1, -1, 1, 1, 0,
		xproto.WindowClassInputOnly, 0,
		xproto.CwOverrideRedirect|xproto.CwEventMask,
		[]uint32{1, uint32(xproto.EventMaskKeyPress | xproto.EventMaskKeyRelease)}).Check()
	if err != nil {
		return err
	}
	xproto.MapWindow(conn, wid)
	h.grabWin = wid
	return nil
}

// GrabWindow is the helper window used during sessions, zero before the
// first one.
func (h *Handler) GrabWindow() xproto.Window { return h.grabWin }

func configureIgnoreMods(xu *xgbutil.XUtil) {
	// Always ignore CapsLock.
	caps := uint16(xproto.ModMaskLock)

	numLock := modMaskForKeysym(xu, "Num_Lock")
	scrollLock := modMaskForKeysym(xu, "Scroll_Lock")

	unique := make(map[uint16]struct{})
	unique[0] = struct{}{}
	base := []uint16{caps}
	if numLock != 0 && numLock != caps {
		base = append(base, numLock)
	}
	if scrollLock != 0 && scrollLock != caps && scrollLock != numLock {
		base = append(base, scrollLock)
	}
	for subset := 1; subset < (1 << len(base)); subset++ {
		var mask uint16
		for bit := range base {
			if subset&(1<<bit) != 0 {
				mask |= base[bit]
			}
		}
		unique[mask] = struct{}{}
	}

	ignore := make([]uint16, 0, len(unique))
	for mask := range unique {
		ignore = append(ignore, mask)
	}
	xevent.IgnoreMods = ignore
}

func modMaskForKeysym(xu *xgbutil.XUtil, keysym string) uint16 {
	for _, keycode := range keybind.StrToKeycodes(xu, keysym) {
		if mask := keybind.ModGet(xu, keycode); mask != 0 {
			return mask
		}
	}
	return 0
}
