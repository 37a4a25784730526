package model

import (
	"github.com/BurntSushi/xgb/xproto"
)

// Registry maps protocol ids to the windows and frames the manager knows.
// A removed id is purged from every index; lookups never resurrect it.
type Registry struct {
	windows map[xproto.Window]*Window
	frames  map[xproto.Window]*Frame
	// owner maps any frame, titlebar or client id to its frame id.
	owner map[xproto.Window]xproto.Window
	// stack holds frame ids bottom to top.
	stack []xproto.Window
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		windows: make(map[xproto.Window]*Window),
		frames:  make(map[xproto.Window]*Frame),
		owner:   make(map[xproto.Window]xproto.Window),
	}
}

// Register adds or replaces w.
func (r *Registry) Register(w *Window) {
	if w == nil || w.ID == 0 {
		return
	}
	r.windows[w.ID] = w
}

// Lookup returns the window registered under id.
func (r *Registry) Lookup(id xproto.Window) (*Window, bool) {
	w, ok := r.windows[id]
	return w, ok
}

// Len is the number of registered windows, helpers included.
func (r *Registry) Len() int { return len(r.windows) }

// AddFrame registers f together with its client and titlebar and places it on
// top of the stack.
func (r *Registry) AddFrame(f *Frame) {
	r.windows[f.ID] = &f.Window
	r.frames[f.ID] = f
	r.owner[f.ID] = f.ID
	if c := f.Client(); c != nil {
		r.windows[c.ID] = c
		r.owner[c.ID] = f.ID
	}
	if tb := f.Titlebar(); tb != nil {
		r.windows[tb.ID] = &tb.Window
		r.owner[tb.ID] = f.ID
	}
	r.removeFromStack(f.ID)
	r.stack = append(r.stack, f.ID)
}

// FrameFor returns the frame that id belongs to. id may be the frame itself,
// its titlebar or its client.
func (r *Registry) FrameFor(id xproto.Window) (*Frame, bool) {
	fid, ok := r.owner[id]
	if !ok {
		return nil, false
	}
	f, ok := r.frames[fid]
	return f, ok
}

// FrameByID returns the frame whose own id is id.
func (r *Registry) FrameByID(id xproto.Window) (*Frame, bool) {
	f, ok := r.frames[id]
	return f, ok
}

// Frames returns the managed frames bottom to top.
func (r *Registry) Frames() []*Frame {
	out := make([]*Frame, 0, len(r.stack))
	for _, id := range r.stack {
		if f, ok := r.frames[id]; ok {
			out = append(out, f)
		}
	}
	return out
}

// Raise moves the frame owning id to the top of the stack.
func (r *Registry) Raise(id xproto.Window) bool {
	f, ok := r.FrameFor(id)
	if !ok {
		return false
	}
	r.removeFromStack(f.ID)
	r.stack = append(r.stack, f.ID)
	return true
}

// Remove purges id. Removing a frame, or the client a frame wraps, removes
// the frame with all of its children. It returns the frame that went away,
// if any.
func (r *Registry) Remove(id xproto.Window) *Frame {
	fid, owned := r.owner[id]
	if !owned {
		delete(r.windows, id)
		return nil
	}
	f := r.frames[fid]
	if f == nil {
		delete(r.windows, id)
		delete(r.owner, id)
		return nil
	}
	if tb := f.Titlebar(); tb != nil && id == tb.ID {
		// A titlebar can die on its own during teardown; the frame stays.
		delete(r.windows, id)
		delete(r.owner, id)
		return nil
	}
	for _, child := range []*Window{f.Client(), f.Child(RoleTitlebar), &f.Window} {
		if child == nil {
			continue
		}
		delete(r.windows, child.ID)
		delete(r.owner, child.ID)
	}
	delete(r.frames, f.ID)
	r.removeFromStack(f.ID)
	return f
}

func (r *Registry) removeFromStack(id xproto.Window) {
	for i, sid := range r.stack {
		if sid == id {
			r.stack = append(r.stack[:i], r.stack[i+1:]...)
			return
		}
	}
}
