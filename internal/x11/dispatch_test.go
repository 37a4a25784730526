package x11

import (
	"io"
	"log/slog"
	"reflect"
	"testing"

	"github.com/BurntSushi/xgb/damage"
	"github.com/BurntSushi/xgb/xproto"

	"github.com/1broseidon/tessera/internal/geom"
	"github.com/1broseidon/tessera/internal/model"
)

type structureRecorder struct {
	name  string
	log   *[]string
	panic bool
}

func (r *structureRecorder) note(ev string) {
	*r.log = append(*r.log, r.name+":"+ev)
	if r.panic {
		panic("listener failure")
	}
}

func (r *structureRecorder) CreateNotify(xproto.CreateNotifyEvent)         { r.note("create") }
func (r *structureRecorder) MapRequest(xproto.MapRequestEvent)             { r.note("map_request") }
func (r *structureRecorder) MapNotify(xproto.MapNotifyEvent)               { r.note("map") }
func (r *structureRecorder) UnmapNotify(xproto.UnmapNotifyEvent)           { r.note("unmap") }
func (r *structureRecorder) DestroyNotify(xproto.DestroyNotifyEvent)       { r.note("destroy") }
func (r *structureRecorder) ReparentNotify(xproto.ReparentNotifyEvent)     { r.note("reparent") }
func (r *structureRecorder) ConfigureRequest(xproto.ConfigureRequestEvent) { r.note("configure_request") }
func (r *structureRecorder) ConfigureNotify(xproto.ConfigureNotifyEvent)   { r.note("configure") }

type damageRecorder struct{ got []xproto.Drawable }

func (r *damageRecorder) DamageNotify(ev damage.NotifyEvent) { r.got = append(r.got, ev.Drawable) }

type countingObserver struct {
	events map[string]int
	panics int
}

func (o *countingObserver) Event(kind string) { o.events[kind]++ }
func (o *countingObserver) ListenerPanic()    { o.panics++ }

func quietLogger() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func TestDispatcherAddListener(t *testing.T) {
	d := NewDispatcher(model.NewRegistry(), quietLogger(), nil)
	if d.AddListener(struct{}{}) {
		t.Fatal("AddListener accepted a value implementing no listener interface")
	}
	var log []string
	if !d.AddListener(&structureRecorder{log: &log}) {
		t.Fatal("AddListener rejected a structure listener")
	}
}

func TestDispatcherOrderAndPanicRecovery(t *testing.T) {
	obs := &countingObserver{events: map[string]int{}}
	d := NewDispatcher(model.NewRegistry(), quietLogger(), obs)

	var log []string
	d.AddListener(&structureRecorder{name: "a", log: &log})
	d.AddListener(&structureRecorder{name: "b", log: &log, panic: true})
	d.AddListener(&structureRecorder{name: "c", log: &log})

	d.Dispatch(xproto.MapRequestEvent{Window: 5})
	d.Dispatch(xproto.UnmapNotifyEvent{Window: 5})

	want := []string{
		"a:map_request", "b:map_request", "c:map_request",
		"a:unmap", "b:unmap", "c:unmap",
	}
	if !reflect.DeepEqual(log, want) {
		t.Fatalf("delivery order = %v, want %v", log, want)
	}
	if obs.panics != 2 {
		t.Fatalf("panics = %d, want 2", obs.panics)
	}
	if obs.events["map_request"] != 1 || obs.events["unmap_notify"] != 1 {
		t.Fatalf("event counts = %v", obs.events)
	}
}

func TestDispatcherPurgesAfterDestroy(t *testing.T) {
	reg := model.NewRegistry()
	reg.Register(model.NewWindow(42, geom.R(0, 0, 10, 10)))
	d := NewDispatcher(reg, quietLogger(), nil)

	seen := false
	var log []string
	d.AddListener(&structureRecorder{name: "a", log: &log})
	d.AddListener(destroyProbe(func() {
		_, seen = reg.Lookup(42)
	}))

	d.Dispatch(xproto.DestroyNotifyEvent{Window: 42})
	if !seen {
		t.Fatal("window was purged before listeners ran")
	}
	if _, ok := reg.Lookup(42); ok {
		t.Fatal("window still registered after DestroyNotify")
	}
}

type destroyProbe func()

func (p destroyProbe) CreateNotify(xproto.CreateNotifyEvent)         {}
func (p destroyProbe) MapRequest(xproto.MapRequestEvent)             {}
func (p destroyProbe) MapNotify(xproto.MapNotifyEvent)               {}
func (p destroyProbe) UnmapNotify(xproto.UnmapNotifyEvent)           {}
func (p destroyProbe) DestroyNotify(xproto.DestroyNotifyEvent)       { p() }
func (p destroyProbe) ReparentNotify(xproto.ReparentNotifyEvent)     {}
func (p destroyProbe) ConfigureRequest(xproto.ConfigureRequestEvent) {}
func (p destroyProbe) ConfigureNotify(xproto.ConfigureNotifyEvent)   {}

func TestDispatcherRoutesByInterface(t *testing.T) {
	d := NewDispatcher(model.NewRegistry(), quietLogger(), nil)
	var log []string
	dr := &damageRecorder{}
	d.AddListener(&structureRecorder{name: "s", log: &log})
	d.AddListener(dr)

	d.Dispatch(damage.NotifyEvent{Drawable: 7})
	d.Dispatch(xproto.KeymapNotifyEvent{})
	d.Dispatch("not an event")

	if len(log) != 0 {
		t.Fatalf("structure listener got %v", log)
	}
	if !reflect.DeepEqual(dr.got, []xproto.Drawable{7}) {
		t.Fatalf("damage listener got %v", dr.got)
	}
}
