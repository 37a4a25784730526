// Package namespace partitions clients into isolation namespaces and polices
// operations that cross them.
package namespace

import (
	"fmt"
	"hash/fnv"
	"sort"
	"time"

	"github.com/BurntSushi/xgb/xproto"
	"github.com/lucasb-eyer/go-colorful"
)

// Operation names checked between windows.
const (
	OpReparent  = "reparent"
	OpFocus     = "focus"
	OpSelection = "selection"
	OpInput     = "input"
)

// Property and message names used for namespace assignment.
const (
	PropNamespaceID    = "_XNAMESPACE_ID"
	MsgNamespaceSwitch = "_XNAMESPACE_SWITCH"
)

// Environment variables handed to processes spawned into a namespace.
const (
	EnvToken = "XNAMESPACE_TOKEN"
	EnvID    = "XNAMESPACE_ID"
)

// Rules are free-form per-namespace settings persisted with the namespace.
type Rules map[string]string

// Namespace is one isolation domain.
type Namespace struct {
	ID     string
	Name   string
	Color  colorful.Color
	Active bool
	// Root marks the default namespace. It gets no decorations and no
	// exemption from isolation.
	Root bool
	// Token authorizes processes spawned into this namespace. It is
	// regenerated every session.
	Token string
	// Permissions is the operation set recorded for this namespace. It is
	// persisted and reported; isolation checks do not consult it.
	Permissions map[string]bool
	Rules       Rules

	windows map[xproto.Window]struct{}
}

func newNamespace(id, name string) *Namespace {
	if name == "" {
		name = id
	}
	return &Namespace{
		ID:          id,
		Name:        name,
		Color:       colorForID(id),
		Permissions: map[string]bool{},
		Rules:       Rules{},
		windows:     map[xproto.Window]struct{}{},
	}
}

// Windows returns the ids assigned to ns in ascending order.
func (ns *Namespace) Windows() []xproto.Window {
	out := make([]xproto.Window, 0, len(ns.windows))
	for id := range ns.windows {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// colorForID derives a stable accent color from the namespace id.
func colorForID(id string) colorful.Color {
	h := fnv.New32a()
	h.Write([]byte(id))
	return colorful.Hsv(float64(h.Sum32()%360), 0.55, 0.85)
}

// Violation records a denied cross-namespace operation.
type Violation struct {
	Time            time.Time     `json:"time"`
	Operation       string        `json:"operation"`
	Source          xproto.Window `json:"source"`
	Target          xproto.Window `json:"target"`
	SourceNamespace string        `json:"source_namespace"`
	TargetNamespace string        `json:"target_namespace"`
	Reviewed        bool          `json:"reviewed"`
}

func (v Violation) String() string {
	return fmt.Sprintf("%s denied: window %d (%s) -> window %d (%s)",
		v.Operation, v.Source, v.SourceNamespace, v.Target, v.TargetNamespace)
}

// ChangeListener is notified when the active namespace changes.
type ChangeListener interface {
	NamespaceChanged(ns *Namespace)
}

// AssignListener is notified when a window moves to a namespace.
type AssignListener interface {
	WindowAssigned(win xproto.Window, ns *Namespace)
}

// ViolationListener is notified of every recorded violation.
type ViolationListener interface {
	SecurityViolation(v Violation)
}

// Prober reports whether a named server extension is present.
type Prober interface {
	Probe(name string) (bool, error)
}

// PropertyReader resolves atoms and reads the namespace property.
type PropertyReader interface {
	AtomName(a xproto.Atom) (string, error)
	NamespaceProperty(win xproto.Window) (string, error)
}

// Resolver maps decoration windows to the client they frame. It returns
// win unchanged for windows it does not know.
type Resolver interface {
	ClientFor(win xproto.Window) xproto.Window
}

// Warner shows a user-visible warning.
type Warner interface {
	Warn(summary, body string)
}

// ViolationSink persists violations. Append must not block.
type ViolationSink interface {
	Append(v Violation)
}
