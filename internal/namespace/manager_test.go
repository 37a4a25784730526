package namespace

import (
	"errors"
	"io"
	"log/slog"
	"os/exec"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	"github.com/BurntSushi/xgb/xproto"

	"github.com/1broseidon/tessera/internal/config"
)

type fakeProber struct{ present bool }

func (p fakeProber) Probe(string) (bool, error) { return p.present, nil }

type fakeReader struct {
	atoms map[xproto.Atom]string
	props map[xproto.Window]string
}

func (r *fakeReader) AtomName(a xproto.Atom) (string, error) {
	name, ok := r.atoms[a]
	if !ok {
		return "", errors.New("bad atom")
	}
	return name, nil
}

func (r *fakeReader) NamespaceProperty(win xproto.Window) (string, error) {
	v, ok := r.props[win]
	if !ok {
		return "", errors.New("no property")
	}
	return v, nil
}

type fakeResolver map[xproto.Window]xproto.Window

func (r fakeResolver) ClientFor(win xproto.Window) xproto.Window {
	if c, ok := r[win]; ok {
		return c
	}
	return win
}

type fakeWarner struct{ bodies []string }

func (w *fakeWarner) Warn(_, body string) { w.bodies = append(w.bodies, body) }

type fakeSink struct{ got []Violation }

func (s *fakeSink) Append(v Violation) { s.got = append(s.got, v) }

type recorder struct {
	changed  []string
	assigned []xproto.Window
	denied   int
}

func (r *recorder) NamespaceChanged(ns *Namespace) { r.changed = append(r.changed, ns.ID) }
func (r *recorder) WindowAssigned(win xproto.Window, _ *Namespace) { r.assigned = append(r.assigned, win) }
func (r *recorder) SecurityViolation(Violation) { r.denied++ }

const (
	atomNamespaceID xproto.Atom = 100 + iota
	atomSwitch
	atomWork
	atomOther
)

type rig struct {
	m      *Manager
	reader *fakeReader
	warner *fakeWarner
	sink   *fakeSink
}

func newRig(t *testing.T, present bool, store Persister) *rig {
	t.Helper()
	cfg := config.DefaultConfig().Namespace
	r := &rig{
		reader: &fakeReader{
			atoms: map[xproto.Atom]string{
				atomNamespaceID: PropNamespaceID,
				atomSwitch:      MsgNamespaceSwitch,
				atomWork:        "work",
				atomOther:       "other",
			},
			props: map[xproto.Window]string{},
		},
		warner: &fakeWarner{},
		sink:   &fakeSink{},
	}
	r.m = NewManager(Options{
		Config:   cfg,
		Prober:   fakeProber{present: present},
		Reader:   r.reader,
		Resolver: fakeResolver{10: 11, 12: 11},
		Store:    store,
		Sink:     r.sink,
		Warner:   r.warner,
		Logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	if err := r.m.Init(); err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	return r
}

// twoNamespaces puts window 1 in "a" and window 2 in "b".
func (r *rig) twoNamespaces(t *testing.T) {
	t.Helper()
	for _, id := range []string{"a", "b"} {
		if _, err := r.m.Create(id, ""); err != nil {
			t.Fatalf("Create(%q) error = %v", id, err)
		}
	}
	r.m.AssignWindow(1, "a")
	r.m.AssignWindow(2, "b")
}

func TestExtensionAbsentAllowsEverything(t *testing.T) {
	r := newRig(t, false, nil)
	r.twoNamespaces(t)
	r.m.SetCrossNamespaceBlocking(true)

	if got := r.m.NamespaceForWindow(1); got != r.m.DefaultForNewClients() {
		t.Errorf("NamespaceForWindow(1) = %s, want default", got.ID)
	}
	if !r.m.ValidateOperation(OpFocus, 1, 2) {
		t.Error("operation denied without the extension")
	}
	if len(r.m.Violations()) != 0 {
		t.Error("violation recorded without the extension")
	}
}

func TestIsolationToggle(t *testing.T) {
	r := newRig(t, true, nil)
	r.twoNamespaces(t)

	steps := []struct {
		blocking bool
		want     bool
	}{
		{false, true},
		{true, false},
		{false, true},
		{true, false},
	}
	for i, s := range steps {
		r.m.SetCrossNamespaceBlocking(s.blocking)
		if got := r.m.IsOperationAllowed(OpReparent, 1, 2); got != s.want {
			t.Errorf("step %d: IsOperationAllowed() = %v, want %v", i, got, s.want)
		}
		if got := r.m.ValidateOperation(OpReparent, 1, 2); got != s.want {
			t.Errorf("step %d: ValidateOperation() = %v, want %v", i, got, s.want)
		}
		if got := r.m.ShouldBlockReparenting(1, 2); got == s.want {
			t.Errorf("step %d: ShouldBlockReparenting() = %v, want %v", i, got, !s.want)
		}
	}
	if got, want := len(r.m.Violations()), 4; got != want {
		t.Errorf("violations = %d, want %d", got, want)
	}
	if len(r.sink.got) != 4 {
		t.Errorf("sink received %d, want 4", len(r.sink.got))
	}
	if len(r.warner.bodies) != 4 {
		t.Errorf("warnings = %d, want 4", len(r.warner.bodies))
	}
	v := r.m.Violations()[0]
	if v.SourceNamespace != "a" || v.TargetNamespace != "b" || v.Operation != OpReparent {
		t.Errorf("violation = %+v", v)
	}
}

func TestWarningsCanBeDisabled(t *testing.T) {
	r := newRig(t, true, nil)
	r.twoNamespaces(t)
	r.m.SetCrossNamespaceBlocking(true)
	r.m.SetSecurityWarnings(false)

	r.m.ValidateOperation(OpFocus, 1, 2)
	if len(r.warner.bodies) != 0 {
		t.Errorf("warned %d times with warnings off", len(r.warner.bodies))
	}
	if len(r.m.Violations()) != 1 {
		t.Error("violation not recorded with warnings off")
	}
}

func TestCrossingRules(t *testing.T) {
	r := newRig(t, true, nil)
	r.twoNamespaces(t)
	r.m.SetCrossNamespaceBlocking(true)
	r.m.AssignWindow(3, "a")
	r.m.SetPermission("a", OpSelection, true)
	r.m.SetPermission("b", OpSelection, true)

	if !r.m.IsOperationAllowed(OpFocus, 1, 3) {
		t.Error("same-namespace operation denied")
	}
	if !r.m.IsOperationAllowed(OpFocus, 98, 99) {
		t.Error("operation between two default-namespace windows denied")
	}

	tests := []struct {
		name     string
		src, dst xproto.Window
	}{
		{"a to default", 1, 99},
		{"default to a", 99, 1},
		{"a to b", 1, 2},
		{"b to a", 2, 1},
	}
	for _, tt := range tests {
		for _, op := range []string{OpFocus, OpSelection, OpInput, OpReparent} {
			if r.m.IsOperationAllowed(op, tt.src, tt.dst) {
				t.Errorf("%s: IsOperationAllowed(%s) = true, want false", tt.name, op)
			}
		}
	}
}

func TestNamespaceForWindowResolvesFrames(t *testing.T) {
	r := newRig(t, true, nil)
	r.m.Create("work", "Work")
	r.m.AssignWindow(11, "work")

	for _, win := range []xproto.Window{10, 11, 12} {
		if got := r.m.NamespaceForWindow(win).ID; got != "work" {
			t.Errorf("NamespaceForWindow(%d) = %s, want work", win, got)
		}
	}
	if got := r.m.NamespaceForClient(10).ID; got != "default" {
		t.Errorf("NamespaceForClient(frame) = %s, want default", got)
	}
	if !r.m.SameNamespace(10, 12) {
		t.Error("frame and titlebar not in the same namespace")
	}
}

func TestPropertyNotifyAssigns(t *testing.T) {
	r := newRig(t, true, nil)
	rec := &recorder{}
	r.m.AddListener(rec)
	r.reader.props[5] = "work"

	r.m.PropertyNotify(xproto.PropertyNotifyEvent{Window: 5, Atom: atomNamespaceID, State: xproto.PropertyNewValue})
	if got := r.m.NamespaceForClient(5).ID; got != "work" {
		t.Fatalf("namespace = %s, want work", got)
	}
	if !slices.Equal(rec.assigned, []xproto.Window{5}) {
		t.Errorf("assigned = %v, want [5]", rec.assigned)
	}
	if !slices.Equal(r.m.WindowsIn("work"), []xproto.Window{5}) {
		t.Errorf("WindowsIn(work) = %v", r.m.WindowsIn("work"))
	}

	r.m.PropertyNotify(xproto.PropertyNotifyEvent{Window: 5, Atom: atomNamespaceID, State: xproto.PropertyDelete})
	if got := r.m.NamespaceForClient(5).ID; got != "default" {
		t.Errorf("namespace after delete = %s, want default", got)
	}

	// Other properties are ignored.
	r.m.PropertyNotify(xproto.PropertyNotifyEvent{Window: 5, Atom: atomWork, State: xproto.PropertyNewValue})
	if len(rec.assigned) != 1 {
		t.Errorf("unrelated property assigned a window")
	}
}

func switchMessage(win xproto.Window, target xproto.Atom) xproto.ClientMessageEvent {
	return xproto.ClientMessageEvent{
		Format: 32,
		Window: 1,
		Type:   atomSwitch,
		Data:   xproto.ClientMessageDataUnionData32New([]uint32{uint32(win), uint32(target), 0, 0, 0}),
	}
}

func TestClientMessageSwitch(t *testing.T) {
	r := newRig(t, true, nil)
	rec := &recorder{}
	r.m.AddListener(rec)

	r.m.ClientMessage(switchMessage(0, atomWork))
	if got := r.m.Current().ID; got != "work" {
		t.Fatalf("Current() = %s, want work", got)
	}
	if !slices.Equal(rec.changed, []string{"work"}) {
		t.Errorf("changed = %v", rec.changed)
	}
	if r.m.DefaultForNewClients().Active {
		t.Error("default still active after switch")
	}

	r.m.ClientMessage(switchMessage(7, atomOther))
	if got := r.m.NamespaceForClient(7).ID; got != "other" {
		t.Errorf("window 7 namespace = %s, want other", got)
	}
	if r.m.Current().ID != "work" {
		t.Error("window assignment changed the current namespace")
	}
}

func TestRemoveMovesWindowsToDefault(t *testing.T) {
	r := newRig(t, true, nil)
	r.twoNamespaces(t)
	r.m.RequestSwitch("a")

	if err := r.m.Remove("a"); err != nil {
		t.Fatalf("Remove() error = %v", err)
	}
	if got := r.m.NamespaceForClient(1).ID; got != "default" {
		t.Errorf("window 1 namespace = %s, want default", got)
	}
	if r.m.Current().ID != "default" {
		t.Errorf("Current() = %s, want default", r.m.Current().ID)
	}
	if err := r.m.Remove("default"); !errors.Is(err, ErrDefaultNamespace) {
		t.Errorf("Remove(default) error = %v, want ErrDefaultNamespace", err)
	}
	if err := r.m.Remove("missing"); !errors.Is(err, ErrUnknownNamespace) {
		t.Errorf("Remove(missing) error = %v, want ErrUnknownNamespace", err)
	}
}

func TestCreateRejectsDuplicates(t *testing.T) {
	r := newRig(t, true, nil)
	if _, err := r.m.Create("a", ""); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if _, err := r.m.Create("a", ""); !errors.Is(err, ErrDuplicate) {
		t.Errorf("second Create() error = %v, want ErrDuplicate", err)
	}
	if _, err := r.m.Create("  ", ""); err == nil {
		t.Error("Create(blank) succeeded")
	}
}

func TestTokens(t *testing.T) {
	r := newRig(t, true, nil)
	a, _ := r.m.Create("a", "")
	b, _ := r.m.Create("b", "")
	if a.Token == "" || a.Token == b.Token {
		t.Fatalf("tokens not unique: %q %q", a.Token, b.Token)
	}
	if got, ok := r.m.NamespaceForToken(b.Token); !ok || got != b {
		t.Errorf("NamespaceForToken() = %v, %v", got, ok)
	}
	if _, ok := r.m.NamespaceForToken(""); ok {
		t.Error("empty token resolved")
	}
	if _, ok := r.m.NamespaceForToken("bogus"); ok {
		t.Error("unknown token resolved")
	}
}

func TestPersistAndReload(t *testing.T) {
	store := NewStore(filepath.Join(t.TempDir(), "namespaces.yaml"))
	r := newRig(t, true, store)
	r.m.Create("work", "Work")
	if err := r.m.SetColor("work", "#ff0000"); err != nil {
		t.Fatalf("SetColor() error = %v", err)
	}
	r.m.SetRules("work", Rules{"autostart": "firefox"})
	r.m.SetPermission("work", OpFocus, true)
	r.m.SetDefaultForNewClients("work")

	reloaded := newRig(t, true, store)
	ns, ok := reloaded.m.Lookup("work")
	if !ok {
		t.Fatal("work not reloaded")
	}
	if ns.Name != "Work" || ns.Color.Hex() != "#ff0000" {
		t.Errorf("reloaded = %s %s", ns.Name, ns.Color.Hex())
	}
	if got := reloaded.m.RulesFor("work")["autostart"]; got != "firefox" {
		t.Errorf("rule = %q, want firefox", got)
	}
	if !ns.Permissions[OpFocus] {
		t.Error("permission not reloaded")
	}
	if reloaded.m.DefaultForNewClients() != ns {
		t.Error("default not reloaded")
	}
}

func TestSetColorRejectsBadHex(t *testing.T) {
	r := newRig(t, true, nil)
	if err := r.m.SetColor("default", "red"); err == nil {
		t.Error("SetColor(red) succeeded")
	}
}

func TestViolationRing(t *testing.T) {
	r := newRig(t, true, nil)
	for i := 0; i < violationRing+10; i++ {
		r.m.RecordSecurityViolation(Violation{Operation: OpFocus, Source: xproto.Window(i)})
	}
	vs := r.m.Violations()
	if len(vs) != violationRing {
		t.Fatalf("len = %d, want %d", len(vs), violationRing)
	}
	if vs[0].Source != 10 {
		t.Errorf("oldest = %d, want 10", vs[0].Source)
	}
	if vs[0].Time.IsZero() {
		t.Error("violation time not set")
	}
	if n := r.m.MarkViolationsReviewed(); n != violationRing {
		t.Errorf("MarkViolationsReviewed() = %d", n)
	}
	if n := r.m.MarkViolationsReviewed(); n != 0 {
		t.Errorf("second MarkViolationsReviewed() = %d, want 0", n)
	}
}

func TestTooltip(t *testing.T) {
	r := newRig(t, true, nil)
	ns, _ := r.m.Create("work", "Work")
	r.m.AssignWindow(1, "work")
	tip := r.m.TooltipForNamespace(ns)
	for _, want := range []string{"Work", "(work)", "1 window"} {
		if !strings.Contains(tip, want) {
			t.Errorf("tooltip %q missing %q", tip, want)
		}
	}
	if tip := r.m.TooltipForNamespace(nil); !strings.Contains(tip, "root") {
		t.Errorf("default tooltip %q missing root", tip)
	}
}

func TestSpawnInNamespace(t *testing.T) {
	path, err := exec.LookPath("true")
	if err != nil {
		t.Skip("true not available")
	}
	r := newRig(t, true, nil)
	ns, _ := r.m.Create("work", "")
	cmd, err := r.m.SpawnInNamespace(path, nil, "work")
	if err != nil {
		t.Fatalf("SpawnInNamespace() error = %v", err)
	}
	if !slices.Contains(cmd.Env, EnvToken+"="+ns.Token) || !slices.Contains(cmd.Env, EnvID+"=work") {
		t.Errorf("env missing namespace variables")
	}
	if _, err := r.m.SpawnInNamespace(path, nil, "missing"); !errors.Is(err, ErrUnknownNamespace) {
		t.Errorf("spawn into missing namespace error = %v", err)
	}
}
