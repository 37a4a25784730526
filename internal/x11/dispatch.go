package x11

import (
	"log/slog"
	"runtime/debug"

	"github.com/BurntSushi/xgb/damage"
	"github.com/BurntSushi/xgb/xproto"

	"github.com/1broseidon/tessera/internal/model"
)

// PointerListener receives button, motion and crossing events.
type PointerListener interface {
	ButtonPress(ev xproto.ButtonPressEvent)
	ButtonRelease(ev xproto.ButtonReleaseEvent)
	MotionNotify(ev xproto.MotionNotifyEvent)
	EnterNotify(ev xproto.EnterNotifyEvent)
	LeaveNotify(ev xproto.LeaveNotifyEvent)
}

// StructureListener receives window lifecycle and geometry events.
type StructureListener interface {
	CreateNotify(ev xproto.CreateNotifyEvent)
	MapRequest(ev xproto.MapRequestEvent)
	MapNotify(ev xproto.MapNotifyEvent)
	UnmapNotify(ev xproto.UnmapNotifyEvent)
	DestroyNotify(ev xproto.DestroyNotifyEvent)
	ReparentNotify(ev xproto.ReparentNotifyEvent)
	ConfigureRequest(ev xproto.ConfigureRequestEvent)
	ConfigureNotify(ev xproto.ConfigureNotifyEvent)
}

type FocusListener interface {
	FocusIn(ev xproto.FocusInEvent)
	FocusOut(ev xproto.FocusOutEvent)
}

type ExposeListener interface {
	Expose(ev xproto.ExposeEvent)
	VisibilityNotify(ev xproto.VisibilityNotifyEvent)
}

type PropertyListener interface {
	PropertyNotify(ev xproto.PropertyNotifyEvent)
}

type ClientMessageListener interface {
	ClientMessage(ev xproto.ClientMessageEvent)
}

type DamageListener interface {
	DamageNotify(ev damage.NotifyEvent)
}

type SelectionListener interface {
	SelectionClear(ev xproto.SelectionClearEvent)
}

// Observer counts dispatched events. It may be nil.
type Observer interface {
	Event(kind string)
	ListenerPanic()
}

// Dispatcher routes raw events to registered listeners in registration
// order. It purges destroyed windows from the registry once every listener
// has seen the DestroyNotify.
type Dispatcher struct {
	registry *model.Registry
	logger   *slog.Logger
	observer Observer

	pointer   []PointerListener
	structure []StructureListener
	focus     []FocusListener
	expose    []ExposeListener
	property  []PropertyListener
	message   []ClientMessageListener
	damage    []DamageListener
	selection []SelectionListener
}

// NewDispatcher returns a dispatcher that purges from registry.
func NewDispatcher(registry *model.Registry, logger *slog.Logger, observer Observer) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{registry: registry, logger: logger, observer: observer}
}

// AddListener registers l for every listener interface it implements and
// reports whether it implements any.
func (d *Dispatcher) AddListener(l any) bool {
	added := false
	if v, ok := l.(PointerListener); ok {
		d.pointer = append(d.pointer, v)
		added = true
	}
	if v, ok := l.(StructureListener); ok {
		d.structure = append(d.structure, v)
		added = true
	}
	if v, ok := l.(FocusListener); ok {
		d.focus = append(d.focus, v)
		added = true
	}
	if v, ok := l.(ExposeListener); ok {
		d.expose = append(d.expose, v)
		added = true
	}
	if v, ok := l.(PropertyListener); ok {
		d.property = append(d.property, v)
		added = true
	}
	if v, ok := l.(ClientMessageListener); ok {
		d.message = append(d.message, v)
		added = true
	}
	if v, ok := l.(DamageListener); ok {
		d.damage = append(d.damage, v)
		added = true
	}
	if v, ok := l.(SelectionListener); ok {
		d.selection = append(d.selection, v)
		added = true
	}
	return added
}

// Dispatch delivers one event. Unknown event types are ignored.
func (d *Dispatcher) Dispatch(ev interface{}) {
	switch e := ev.(type) {
	case xproto.ButtonPressEvent:
		d.count("button_press")
		for _, l := range d.pointer {
			d.safely("button_press", func() { l.ButtonPress(e) })
		}
	case xproto.ButtonReleaseEvent:
		d.count("button_release")
		for _, l := range d.pointer {
			d.safely("button_release", func() { l.ButtonRelease(e) })
		}
	case xproto.MotionNotifyEvent:
		d.count("motion_notify")
		for _, l := range d.pointer {
			d.safely("motion_notify", func() { l.MotionNotify(e) })
		}
	case xproto.EnterNotifyEvent:
		d.count("enter_notify")
		for _, l := range d.pointer {
			d.safely("enter_notify", func() { l.EnterNotify(e) })
		}
	case xproto.LeaveNotifyEvent:
		d.count("leave_notify")
		for _, l := range d.pointer {
			d.safely("leave_notify", func() { l.LeaveNotify(e) })
		}
	case xproto.CreateNotifyEvent:
		d.count("create_notify")
		for _, l := range d.structure {
			d.safely("create_notify", func() { l.CreateNotify(e) })
		}
	case xproto.MapRequestEvent:
		d.count("map_request")
		for _, l := range d.structure {
			d.safely("map_request", func() { l.MapRequest(e) })
		}
	case xproto.MapNotifyEvent:
		d.count("map_notify")
		for _, l := range d.structure {
			d.safely("map_notify", func() { l.MapNotify(e) })
		}
	case xproto.UnmapNotifyEvent:
		d.count("unmap_notify")
		for _, l := range d.structure {
			d.safely("unmap_notify", func() { l.UnmapNotify(e) })
		}
	case xproto.DestroyNotifyEvent:
		d.count("destroy_notify")
		for _, l := range d.structure {
			d.safely("destroy_notify", func() { l.DestroyNotify(e) })
		}
		d.registry.Remove(e.Window)
	case xproto.ReparentNotifyEvent:
		d.count("reparent_notify")
		for _, l := range d.structure {
			d.safely("reparent_notify", func() { l.ReparentNotify(e) })
		}
	case xproto.ConfigureRequestEvent:
		d.count("configure_request")
		for _, l := range d.structure {
			d.safely("configure_request", func() { l.ConfigureRequest(e) })
		}
	case xproto.ConfigureNotifyEvent:
		d.count("configure_notify")
		for _, l := range d.structure {
			d.safely("configure_notify", func() { l.ConfigureNotify(e) })
		}
	case xproto.FocusInEvent:
		d.count("focus_in")
		for _, l := range d.focus {
			d.safely("focus_in", func() { l.FocusIn(e) })
		}
	case xproto.FocusOutEvent:
		d.count("focus_out")
		for _, l := range d.focus {
			d.safely("focus_out", func() { l.FocusOut(e) })
		}
	case xproto.ExposeEvent:
		d.count("expose")
		for _, l := range d.expose {
			d.safely("expose", func() { l.Expose(e) })
		}
	case xproto.VisibilityNotifyEvent:
		d.count("visibility_notify")
		for _, l := range d.expose {
			d.safely("visibility_notify", func() { l.VisibilityNotify(e) })
		}
	case xproto.PropertyNotifyEvent:
		d.count("property_notify")
		for _, l := range d.property {
			d.safely("property_notify", func() { l.PropertyNotify(e) })
		}
	case xproto.ClientMessageEvent:
		d.count("client_message")
		for _, l := range d.message {
			d.safely("client_message", func() { l.ClientMessage(e) })
		}
	case xproto.SelectionClearEvent:
		d.count("selection_clear")
		for _, l := range d.selection {
			d.safely("selection_clear", func() { l.SelectionClear(e) })
		}
	case damage.NotifyEvent:
		d.count("damage_notify")
		for _, l := range d.damage {
			d.safely("damage_notify", func() { l.DamageNotify(e) })
		}
	}
}

func (d *Dispatcher) count(kind string) {
	if d.observer != nil {
		d.observer.Event(kind)
	}
}

// safely runs fn, logging and swallowing a panic so one faulty listener
// cannot stop the loop.
func (d *Dispatcher) safely(kind string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("listener panic", "event", kind, "panic", r, "stack", string(debug.Stack()))
			if d.observer != nil {
				d.observer.ListenerPanic()
			}
		}
	}()
	fn()
}
