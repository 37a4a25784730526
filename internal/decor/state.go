package decor

import (
	"github.com/BurntSushi/xgb/xproto"

	"github.com/1broseidon/tessera/internal/geom"
	"github.com/1broseidon/tessera/internal/theme"
)

// Phase is the interaction phase of the pointer.
type Phase int

const (
	// PhaseIdle means no drag or resize is in progress
	PhaseIdle Phase = iota
	// PhaseDragging means a frame follows the pointer
	PhaseDragging
	// PhaseResizing means one or two frame edges follow the pointer
	PhaseResizing
)

// String returns the string representation of the phase
func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseDragging:
		return "dragging"
	case PhaseResizing:
		return "resizing"
	default:
		return "unknown"
	}
}

// Edge is a resize zone. Corners combine two edges.
type Edge int

const (
	EdgeNone   Edge = 0
	EdgeTop    Edge = 1 << 0
	EdgeBottom Edge = 1 << 1
	EdgeLeft   Edge = 1 << 2
	EdgeRight  Edge = 1 << 3

	EdgeTopLeft     = EdgeTop | EdgeLeft
	EdgeTopRight    = EdgeTop | EdgeRight
	EdgeBottomLeft  = EdgeBottom | EdgeLeft
	EdgeBottomRight = EdgeBottom | EdgeRight
)

// AllEdges lists the eight resize zones.
var AllEdges = []Edge{
	EdgeTop, EdgeBottom, EdgeLeft, EdgeRight,
	EdgeTopLeft, EdgeTopRight, EdgeBottomLeft, EdgeBottomRight,
}

func (e Edge) String() string {
	switch e {
	case EdgeNone:
		return "none"
	case EdgeTop:
		return "top"
	case EdgeBottom:
		return "bottom"
	case EdgeLeft:
		return "left"
	case EdgeRight:
		return "right"
	case EdgeTopLeft:
		return "top-left"
	case EdgeTopRight:
		return "top-right"
	case EdgeBottomLeft:
		return "bottom-left"
	case EdgeBottomRight:
		return "bottom-right"
	default:
		return "invalid"
	}
}

// State is the machine's view of the current session.
type State struct {
	Phase Phase
	Frame xproto.Window // frame id, 0 when idle

	// armed is the titlebar button pressed but not yet released.
	armed      theme.Button
	armedFrame xproto.Window

	pending    geom.Point // latest pointer seen while throttled
	hasPending bool
	// flushArmed is set while a trailing step for pending is scheduled.
	flushArmed bool
	seq        uint64 // bumped per session
}

// Reset returns the state to idle.
func (s *State) Reset() {
	s.Phase = PhaseIdle
	s.Frame = 0
	s.armed = theme.ButtonNone
	s.armedFrame = 0
	s.hasPending = false
	s.flushArmed = false
}

// Active reports whether a drag or resize is in progress.
func (s State) Active() bool { return s.Phase != PhaseIdle }
