package x11

import (
	"fmt"
	"log/slog"

	"github.com/BurntSushi/xgb/xproto"
	"github.com/BurntSushi/xgbutil"
	"github.com/BurntSushi/xgbutil/keybind"
	"github.com/BurntSushi/xgbutil/mousebind"
	"github.com/BurntSushi/xgbutil/xevent"

	"github.com/1broseidon/tessera/internal/geom"
	"github.com/1broseidon/tessera/internal/model"
)

// Connection manages the X11 connection, the window registry and the
// single-threaded event loop.
type Connection struct {
	XUtil  *xgbutil.XUtil
	Root   xproto.Window
	Screen int

	logger     *slog.Logger
	registry   *model.Registry
	dispatcher *Dispatcher
	dirty      bool

	tasks chan func()
	sched *scheduler

	selectionWin  xproto.Window
	selectionAtom xproto.Atom

	// shapeState is 0 until probed, 1 without SHAPE and 2 with it.
	shapeState int
	cursors    map[uint16]xproto.Cursor
}

// NewConnection connects to the display named by $DISPLAY.
func NewConnection(logger *slog.Logger, observer Observer) (*Connection, error) {
	if logger == nil {
		logger = slog.Default()
	}
	xu, err := xgbutil.NewConn()
	if err != nil {
		return nil, fmt.Errorf("failed to connect to X server: %w", err)
	}

	keybind.Initialize(xu)
	mousebind.Initialize(xu)

	registry := model.NewRegistry()
	c := &Connection{
		XUtil:      xu,
		Root:       xu.RootWin(),
		Screen:     xu.Conn().DefaultScreen,
		logger:     logger,
		registry:   registry,
		dispatcher: NewDispatcher(registry, logger, observer),
		tasks:      make(chan func(), 64),
		sched:      newScheduler(),
		cursors:    make(map[uint16]xproto.Cursor),
	}
	xevent.HookFun(func(_ *xgbutil.XUtil, ev interface{}) bool {
		c.dispatcher.Dispatch(ev)
		return true
	}).Connect(xu)
	return c, nil
}

// Registry returns the window registry shared with the model.
func (c *Connection) Registry() *model.Registry { return c.registry }

// AddListener registers l with the dispatcher.
func (c *Connection) AddListener(l any) bool { return c.dispatcher.AddListener(l) }

// RegisterWindow adds w to the registry.
func (c *Connection) RegisterWindow(w *model.Window) { c.registry.Register(w) }

// WindowForID returns the registered window with id.
func (c *Connection) WindowForID(id xproto.Window) (*model.Window, bool) {
	return c.registry.Lookup(id)
}

// CreateOptions are the optional attributes of CreateWindow.
type CreateOptions struct {
	// InputOnly creates a window that takes input but draws nothing.
	InputOnly        bool
	OverrideRedirect bool
	EventMask        uint32
	// Colormap is required when the visual differs from the parent's.
	Colormap    xproto.Colormap
	BackPixel   uint32
	BorderPixel uint32
	Register    bool
}

// CreateWindow creates a window owned by the manager. depth and visual of
// zero copy them from the parent.
func (c *Connection) CreateWindow(parent xproto.Window, r geom.Rect, depth byte, visual xproto.Visualid, opts CreateOptions) (*model.Window, error) {
	conn := c.XUtil.Conn()
	id, err := xproto.NewWindowId(conn)
	if err != nil {
		return nil, fmt.Errorf("failed to allocate window id: %w", err)
	}

	class := uint16(xproto.WindowClassInputOutput)
	var mask uint32
	var values []uint32
	if opts.InputOnly {
		class = xproto.WindowClassInputOnly
		depth, visual = 0, 0
	} else {
		mask |= xproto.CwBackPixel | xproto.CwBorderPixel
		values = append(values, opts.BackPixel, opts.BorderPixel)
	}
	if opts.OverrideRedirect {
		mask |= xproto.CwOverrideRedirect
		values = append(values, 1)
	}
	if opts.EventMask != 0 {
		mask |= xproto.CwEventMask
		values = append(values, opts.EventMask)
	}
	if opts.Colormap != 0 {
		mask |= xproto.CwColormap
		values = append(values, uint32(opts.Colormap))
	}

	xr := r.XRect()
	err = xproto.CreateWindowChecked(conn, depth, id, parent,
		xr.X, xr.Y, max(xr.Width, 1), max(xr.Height, 1), 0,
		class, visual, mask, values).Check()
	if err != nil {
		return nil, fmt.Errorf("failed to create window: %w", err)
	}

	w := model.NewWindow(id, r)
	w.Parent = parent
	w.SetFlag(model.FlagHelper, true)
	if opts.Register {
		c.registry.Register(w)
	}
	return w, nil
}

// MarkDirty records that requests were issued and need a round trip.
func (c *Connection) MarkDirty() { c.dirty = true }

// Flush syncs with the server once if anything was marked dirty.
func (c *Connection) Flush() {
	if !c.dirty {
		return
	}
	c.dirty = false
	c.XUtil.Sync()
}

// Close cleanly disconnects from the X11 server.
func (c *Connection) Close() {
	c.XUtil.Conn().Close()
}
