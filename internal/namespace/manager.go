package namespace

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"sort"
	"strings"
	"time"

	"github.com/BurntSushi/xgb/xproto"
	"github.com/google/uuid"
	"github.com/lucasb-eyer/go-colorful"

	"github.com/1broseidon/tessera/internal/config"
)

// violationRing is the number of violations kept in memory.
const violationRing = 256

var (
	ErrUnknownNamespace = errors.New("unknown namespace")
	ErrDuplicate        = errors.New("namespace already exists")
	ErrDefaultNamespace = errors.New("cannot remove the default namespace")
)

// Options configures a Manager. Only Config is required.
type Options struct {
	Config   config.NamespaceConfig
	Prober   Prober
	Reader   PropertyReader
	Resolver Resolver
	Store    Persister
	Sink     ViolationSink
	Warner   Warner
	Logger   *slog.Logger
}

// Manager owns every namespace and the window assignments. It is not safe
// for concurrent use; the event loop owns it.
type Manager struct {
	cfg      config.NamespaceConfig
	prober   Prober
	reader   PropertyReader
	resolver Resolver
	store    Persister
	sink     ViolationSink
	warner   Warner
	logger   *slog.Logger
	now      func() time.Time

	available  bool
	namespaces map[string]*Namespace
	byWindow   map[xproto.Window]*Namespace
	def        *Namespace
	current    *Namespace
	violations []Violation

	changeListeners    []ChangeListener
	assignListeners    []AssignListener
	violationListeners []ViolationListener
}

// NewManager returns a manager holding only the default namespace. Call
// Init to probe the server and load persisted namespaces.
func NewManager(opts Options) *Manager {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	m := &Manager{
		cfg:        opts.Config,
		prober:     opts.Prober,
		reader:     opts.Reader,
		resolver:   opts.Resolver,
		store:      opts.Store,
		sink:       opts.Sink,
		warner:     opts.Warner,
		logger:     logger,
		now:        time.Now,
		namespaces: map[string]*Namespace{},
		byWindow:   map[xproto.Window]*Namespace{},
	}
	id := m.cfg.Default
	if id == "" {
		id = "default"
	}
	m.def = newNamespace(id, id)
	m.def.Root = true
	m.def.Active = true
	m.def.Token = uuid.NewString()
	m.namespaces[id] = m.def
	m.current = m.def
	return m
}

// Init probes for the namespace extension and loads the store. A missing
// extension is not an error.
func (m *Manager) Init() error {
	if m.prober != nil {
		ok, err := m.prober.Probe(m.cfg.ExtensionName)
		if err != nil {
			m.logger.Warn("namespace extension probe failed", "extension", m.cfg.ExtensionName, "error", err)
		}
		m.available = ok
	}
	if !m.available {
		m.logger.Info("namespace extension not available; every operation is allowed", "extension", m.cfg.ExtensionName)
	}
	if m.store == nil {
		return nil
	}
	records, err := m.store.Load()
	if err != nil {
		return fmt.Errorf("failed to load namespaces: %w", err)
	}
	for _, r := range records {
		ns, ok := m.namespaces[r.ID]
		if !ok {
			ns = newNamespace(r.ID, r.Name)
			ns.Token = uuid.NewString()
			m.namespaces[r.ID] = ns
		}
		if r.Name != "" {
			ns.Name = r.Name
		}
		if c, err := colorful.Hex(r.Color); err == nil {
			ns.Color = c
		}
		for k, v := range r.Rules {
			ns.Rules[k] = v
		}
		for _, op := range r.Permissions {
			ns.Permissions[op] = true
		}
		if r.Default {
			m.def = ns
		}
	}
	m.logger.Debug("namespaces loaded", "count", len(records), "default", m.def.ID)
	return nil
}

// Available reports whether the extension was found.
func (m *Manager) Available() bool { return m.available }

// AddListener registers l for every listener interface it implements.
func (m *Manager) AddListener(l any) {
	if c, ok := l.(ChangeListener); ok {
		m.changeListeners = append(m.changeListeners, c)
	}
	if a, ok := l.(AssignListener); ok {
		m.assignListeners = append(m.assignListeners, a)
	}
	if v, ok := l.(ViolationListener); ok {
		m.violationListeners = append(m.violationListeners, v)
	}
}

// Lookup returns the namespace with id.
func (m *Manager) Lookup(id string) (*Namespace, bool) {
	ns, ok := m.namespaces[id]
	return ns, ok
}

// Namespaces returns every namespace ordered by id.
func (m *Manager) Namespaces() []*Namespace {
	out := make([]*Namespace, 0, len(m.namespaces))
	for _, ns := range m.namespaces {
		out = append(out, ns)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Current is the namespace the manager itself acts in.
func (m *Manager) Current() *Namespace { return m.current }

// NamespaceForClient returns the namespace of the client window, or the
// default.
func (m *Manager) NamespaceForClient(client xproto.Window) *Namespace {
	if !m.available {
		return m.def
	}
	if ns, ok := m.byWindow[client]; ok {
		return ns
	}
	return m.def
}

// NamespaceForWindow resolves frame and titlebar ids to their client before
// looking up the namespace.
func (m *Manager) NamespaceForWindow(win xproto.Window) *Namespace {
	if !m.available {
		return m.def
	}
	if ns, ok := m.byWindow[win]; ok {
		return ns
	}
	if m.resolver != nil {
		if c := m.resolver.ClientFor(win); c != win {
			return m.NamespaceForClient(c)
		}
	}
	return m.def
}

// NamespaceForToken returns the namespace token authorizes.
func (m *Manager) NamespaceForToken(token string) (*Namespace, bool) {
	if token == "" {
		return nil, false
	}
	for _, ns := range m.namespaces {
		if ns.Token == token {
			return ns, true
		}
	}
	return nil, false
}

// SameNamespace reports whether a and b resolve to the same namespace.
func (m *Manager) SameNamespace(a, b xproto.Window) bool {
	return m.NamespaceForWindow(a) == m.NamespaceForWindow(b)
}

// WindowsIn returns the windows assigned to id.
func (m *Manager) WindowsIn(id string) []xproto.Window {
	ns, ok := m.namespaces[id]
	if !ok {
		return nil
	}
	return ns.Windows()
}

// IsOperationAllowed reports whether op from src to dst may proceed. With
// blocking on, any operation between two namespaces is denied, the default
// namespace included.
func (m *Manager) IsOperationAllowed(op string, src, dst xproto.Window) bool {
	if !m.available || !m.cfg.CrossNamespaceBlocking {
		return true
	}
	return m.NamespaceForWindow(src) == m.NamespaceForWindow(dst)
}

// ShouldBlockReparenting reports whether win must not be reparented into
// parent.
func (m *Manager) ShouldBlockReparenting(win, parent xproto.Window) bool {
	return !m.ValidateOperation(OpReparent, win, parent)
}

// ValidateOperation is IsOperationAllowed that also records a denial.
func (m *Manager) ValidateOperation(op string, src, dst xproto.Window) bool {
	if m.IsOperationAllowed(op, src, dst) {
		return true
	}
	v := Violation{
		Time:            m.now(),
		Operation:       op,
		Source:          src,
		Target:          dst,
		SourceNamespace: m.NamespaceForWindow(src).ID,
		TargetNamespace: m.NamespaceForWindow(dst).ID,
	}
	m.RecordSecurityViolation(v)
	if m.cfg.SecurityWarnings && m.warner != nil {
		m.warner.Warn("Namespace isolation", v.String())
	}
	return false
}

// RecordSecurityViolation stores v in memory and hands it to the sink. It
// never blocks.
func (m *Manager) RecordSecurityViolation(v Violation) {
	if v.Time.IsZero() {
		v.Time = m.now()
	}
	m.logger.Warn("namespace operation denied",
		"operation", v.Operation,
		"source", v.Source,
		"target", v.Target,
		"source_namespace", v.SourceNamespace,
		"target_namespace", v.TargetNamespace)
	m.violations = append(m.violations, v)
	if n := len(m.violations); n > violationRing {
		m.violations = append([]Violation(nil), m.violations[n-violationRing:]...)
	}
	if m.sink != nil {
		m.sink.Append(v)
	}
	for _, l := range m.violationListeners {
		l.SecurityViolation(v)
	}
}

// Violations returns the recorded violations, oldest first.
func (m *Manager) Violations() []Violation {
	return append([]Violation(nil), m.violations...)
}

// MarkViolationsReviewed flags every stored violation as reviewed and
// returns how many were newly marked.
func (m *Manager) MarkViolationsReviewed() int {
	n := 0
	for i := range m.violations {
		if !m.violations[i].Reviewed {
			m.violations[i].Reviewed = true
			n++
		}
	}
	return n
}

// Create adds a namespace and persists it.
func (m *Manager) Create(id, name string) (*Namespace, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, fmt.Errorf("namespace id must not be empty")
	}
	if _, ok := m.namespaces[id]; ok {
		return nil, fmt.Errorf("%w: %s", ErrDuplicate, id)
	}
	ns := newNamespace(id, name)
	ns.Token = uuid.NewString()
	m.namespaces[id] = ns
	m.persist()
	return ns, nil
}

// Remove deletes a namespace. Its windows move to the default namespace.
func (m *Manager) Remove(id string) error {
	ns, ok := m.namespaces[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownNamespace, id)
	}
	if ns == m.def {
		return ErrDefaultNamespace
	}
	for _, win := range ns.Windows() {
		m.assign(win, m.def)
	}
	if m.current == ns {
		m.switchTo(m.def)
	}
	delete(m.namespaces, id)
	m.persist()
	return nil
}

// SetColor sets the accent color from a hex string.
func (m *Manager) SetColor(id, hex string) error {
	ns, ok := m.namespaces[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownNamespace, id)
	}
	c, err := colorful.Hex(hex)
	if err != nil {
		return fmt.Errorf("invalid color %q: %w", hex, err)
	}
	ns.Color = c
	m.persist()
	return nil
}

// ColorFor returns the accent color of ns.
func (m *Manager) ColorFor(ns *Namespace) colorful.Color {
	if ns == nil {
		return m.def.Color
	}
	return ns.Color
}

// SetRules replaces the rules of id.
func (m *Manager) SetRules(id string, rules Rules) error {
	ns, ok := m.namespaces[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownNamespace, id)
	}
	ns.Rules = Rules{}
	for k, v := range rules {
		ns.Rules[k] = v
	}
	m.persist()
	return nil
}

// RulesFor returns a copy of the rules of id.
func (m *Manager) RulesFor(id string) Rules {
	ns, ok := m.namespaces[id]
	if !ok {
		return nil
	}
	out := Rules{}
	for k, v := range ns.Rules {
		out[k] = v
	}
	return out
}

// SetPermission adds or removes op from the recorded permission set of id.
func (m *Manager) SetPermission(id, op string, allowed bool) error {
	ns, ok := m.namespaces[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownNamespace, id)
	}
	if allowed {
		ns.Permissions[op] = true
	} else {
		delete(ns.Permissions, op)
	}
	m.persist()
	return nil
}

// DefaultForNewClients is the namespace unassigned windows resolve to.
func (m *Manager) DefaultForNewClients() *Namespace { return m.def }

// SetDefaultForNewClients changes the fallback namespace.
func (m *Manager) SetDefaultForNewClients(id string) error {
	ns, ok := m.namespaces[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownNamespace, id)
	}
	m.def = ns
	m.persist()
	return nil
}

// AssignWindow moves win into namespace id.
func (m *Manager) AssignWindow(win xproto.Window, id string) error {
	ns, ok := m.namespaces[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownNamespace, id)
	}
	m.assign(win, ns)
	return nil
}

func (m *Manager) assign(win xproto.Window, ns *Namespace) {
	if old, ok := m.byWindow[win]; ok {
		if old == ns {
			return
		}
		delete(old.windows, win)
	}
	m.byWindow[win] = ns
	ns.windows[win] = struct{}{}
	m.logger.Debug("window assigned", "window", win, "namespace", ns.ID)
	for _, l := range m.assignListeners {
		l.WindowAssigned(win, ns)
	}
}

// UnassignWindow forgets win. Unknown windows are ignored.
func (m *Manager) UnassignWindow(win xproto.Window) {
	ns, ok := m.byWindow[win]
	if !ok {
		return
	}
	delete(ns.windows, win)
	delete(m.byWindow, win)
}

// RequestSwitch makes id the current namespace.
func (m *Manager) RequestSwitch(id string) error {
	ns, ok := m.namespaces[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownNamespace, id)
	}
	m.switchTo(ns)
	return nil
}

func (m *Manager) switchTo(ns *Namespace) {
	if m.current == ns {
		return
	}
	m.current.Active = false
	ns.Active = true
	m.current = ns
	m.logger.Info("namespace switched", "namespace", ns.ID)
	for _, l := range m.changeListeners {
		l.NamespaceChanged(ns)
	}
}

// Settings returns the effective toggles.
func (m *Manager) Settings() config.NamespaceConfig { return m.cfg }

func (m *Manager) SetVisualIndicators(on bool)       { m.cfg.VisualIndicators = on }
func (m *Manager) SetSecurityWarnings(on bool)       { m.cfg.SecurityWarnings = on }
func (m *Manager) SetCrossNamespaceBlocking(on bool) { m.cfg.CrossNamespaceBlocking = on }

// TooltipForNamespace describes ns in one line.
func (m *Manager) TooltipForNamespace(ns *Namespace) string {
	if ns == nil {
		ns = m.def
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Namespace: %s", ns.Name)
	if ns.Name != ns.ID {
		fmt.Fprintf(&b, " (%s)", ns.ID)
	}
	n := len(ns.windows)
	if n == 1 {
		b.WriteString(", 1 window")
	} else {
		fmt.Fprintf(&b, ", %d windows", n)
	}
	if ns.Root {
		b.WriteString(", root")
	}
	if ns.Active {
		b.WriteString(", active")
	}
	return b.String()
}

// SpawnInNamespace starts path with the namespace token and id in its
// environment. It returns once the process has started and reaps it in the
// background.
func (m *Manager) SpawnInNamespace(path string, args []string, id string) (*exec.Cmd, error) {
	ns, ok := m.namespaces[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownNamespace, id)
	}
	cmd := exec.Command(path, args...)
	cmd.Env = append(os.Environ(), EnvToken+"="+ns.Token, EnvID+"="+ns.ID)
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to spawn %s in namespace %s: %w", path, ns.ID, err)
	}
	m.logger.Info("process spawned", "path", path, "pid", cmd.Process.Pid, "namespace", ns.ID)
	go cmd.Wait()
	return cmd, nil
}

// PropertyNotify applies a change to the namespace property of a window.
func (m *Manager) PropertyNotify(ev xproto.PropertyNotifyEvent) {
	if !m.available || m.reader == nil {
		return
	}
	name, err := m.reader.AtomName(ev.Atom)
	if err != nil || name != PropNamespaceID {
		return
	}
	if ev.State == xproto.PropertyDelete {
		m.UnassignWindow(ev.Window)
		return
	}
	id, err := m.reader.NamespaceProperty(ev.Window)
	if err != nil {
		m.logger.Debug("namespace property unreadable", "window", ev.Window, "error", err)
		return
	}
	m.assign(ev.Window, m.ensure(id))
}

// ClientMessage handles namespace switch requests. data32[0] is the target
// window, or 0 for the manager itself; data32[1] is an atom naming the
// namespace.
func (m *Manager) ClientMessage(ev xproto.ClientMessageEvent) {
	if !m.available || m.reader == nil || ev.Format != 32 {
		return
	}
	name, err := m.reader.AtomName(ev.Type)
	if err != nil || name != MsgNamespaceSwitch {
		return
	}
	data := ev.Data.Data32
	if len(data) < 2 {
		return
	}
	target, err := m.reader.AtomName(xproto.Atom(data[1]))
	if err != nil || target == "" {
		m.logger.Debug("namespace switch without a target", "error", err)
		return
	}
	ns := m.ensure(target)
	if win := xproto.Window(data[0]); win != 0 {
		m.assign(win, ns)
		return
	}
	m.switchTo(ns)
}

// ensure returns namespace id, creating it for the session when unknown.
func (m *Manager) ensure(id string) *Namespace {
	id = strings.TrimSpace(id)
	if id == "" {
		return m.def
	}
	if ns, ok := m.namespaces[id]; ok {
		return ns
	}
	ns := newNamespace(id, id)
	ns.Token = uuid.NewString()
	m.namespaces[id] = ns
	m.logger.Info("namespace discovered", "namespace", id)
	return ns
}

func (m *Manager) persist() {
	if m.store == nil {
		return
	}
	records := make([]Record, 0, len(m.namespaces))
	for _, ns := range m.Namespaces() {
		records = append(records, recordFor(ns, ns == m.def))
	}
	if err := m.store.Save(records); err != nil {
		m.logger.Warn("failed to save namespaces", "error", err)
	}
}
