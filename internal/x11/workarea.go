package x11

import (
	"fmt"

	"github.com/BurntSushi/xgb/randr"
	"github.com/BurntSushi/xgb/xproto"
	"github.com/BurntSushi/xgbutil/ewmh"
	"github.com/BurntSushi/xgbutil/xinerama"

	"github.com/1broseidon/tessera/internal/geom"
)

// Monitor is one physical output.
type Monitor struct {
	Name string
	Rect geom.Rect
}

// Struts are the reserved edges of a monitor.
type Struts struct {
	Left   int
	Right  int
	Top    int
	Bottom int
}

func (s Struts) empty() bool { return s == Struts{} }

// Monitors lists active outputs through RandR, falling back to Xinerama and
// finally to the whole root window.
func (c *Connection) Monitors() ([]Monitor, error) {
	if mons, err := c.randrMonitors(); err == nil && len(mons) > 0 {
		return mons, nil
	}
	if heads, err := xinerama.PhysicalHeads(c.XUtil); err == nil && len(heads) > 0 {
		mons := make([]Monitor, 0, len(heads))
		for i, h := range heads {
			mons = append(mons, Monitor{
				Name: fmt.Sprintf("Head%d", i),
				Rect: geom.R(h.X(), h.Y(), h.Width(), h.Height()),
			})
		}
		return mons, nil
	}
	root, err := c.rootRect()
	if err != nil {
		return nil, err
	}
	return []Monitor{{Name: "root", Rect: root}}, nil
}

func (c *Connection) randrMonitors() ([]Monitor, error) {
	conn := c.XUtil.Conn()
	if err := randr.Init(conn); err != nil {
		return nil, fmt.Errorf("randr init failed: %w", err)
	}
	resources, err := randr.GetScreenResources(conn, c.Root).Reply()
	if err != nil {
		return nil, fmt.Errorf("failed to get screen resources: %w", err)
	}

	var mons []Monitor
	for i, crtc := range resources.Crtcs {
		info, err := randr.GetCrtcInfo(conn, crtc, resources.ConfigTimestamp).Reply()
		if err != nil || info.Width == 0 || info.Height == 0 || len(info.Outputs) == 0 {
			continue
		}
		name := fmt.Sprintf("Monitor%d", i)
		if out, err := randr.GetOutputInfo(conn, info.Outputs[0], resources.ConfigTimestamp).Reply(); err == nil {
			name = string(out.Name)
		}
		mons = append(mons, Monitor{
			Name: name,
			Rect: geom.R(int(info.X), int(info.Y), int(info.Width), int(info.Height)),
		})
	}
	return mons, nil
}

func (c *Connection) rootRect() (geom.Rect, error) {
	g, err := xproto.GetGeometry(c.XUtil.Conn(), xproto.Drawable(c.Root)).Reply()
	if err != nil {
		return geom.Rect{}, fmt.Errorf("failed to get root geometry: %w", err)
	}
	return geom.R(0, 0, int(g.Width), int(g.Height)), nil
}

// WorkArea returns the usable area of the monitor holding the center of r,
// minus the struts published by docks.
func (c *Connection) WorkArea(r geom.Rect, docks []xproto.Window) (geom.Rect, error) {
	mons, err := c.Monitors()
	if err != nil {
		return geom.Rect{}, err
	}
	root, err := c.rootRect()
	if err != nil {
		return geom.Rect{}, err
	}
	mon := MonitorFor(mons, r)

	var partials []ewmh.WmStrutPartial
	for _, id := range docks {
		if sp, err := ewmh.WmStrutPartialGet(c.XUtil, id); err == nil {
			partials = append(partials, *sp)
			continue
		}
		// Some docks only set _NET_WM_STRUT.
		if s, err := ewmh.WmStrutGet(c.XUtil, id); err == nil {
			partials = append(partials, FullStrut(s, root.Size()))
		}
	}
	return ApplyStruts(mon, MonitorStruts(mon, root.Size(), partials)), nil
}

// MonitorFor picks the monitor containing the center of r, or the first.
func MonitorFor(mons []Monitor, r geom.Rect) geom.Rect {
	center := geom.Point{X: r.X + r.Width/2, Y: r.Y + r.Height/2}
	for _, m := range mons {
		if m.Rect.Contains(center) {
			return m.Rect
		}
	}
	if len(mons) == 0 {
		return geom.Rect{}
	}
	return mons[0].Rect
}

// FullStrut widens a plain strut to span the whole root edge.
func FullStrut(s *ewmh.WmStrut, root geom.Size) ewmh.WmStrutPartial {
	w, h := uint(max(root.Width-1, 0)), uint(max(root.Height-1, 0))
	return ewmh.WmStrutPartial{
		Left: s.Left, Right: s.Right, Top: s.Top, Bottom: s.Bottom,
		LeftEndY: h, RightEndY: h, TopEndX: w, BottomEndX: w,
	}
}

// MonitorStruts computes how far each strut reaches into mon.
func MonitorStruts(mon geom.Rect, root geom.Size, partials []ewmh.WmStrutPartial) Struts {
	var acc Struts
	for _, sp := range partials {
		if sp.Top > 0 {
			band := spanRect(int(sp.TopStartX), int(sp.TopEndX), 0, int(sp.Top))
			acc.Top = max(acc.Top, mon.Intersect(band).Height)
		}
		if sp.Bottom > 0 {
			band := spanRect(int(sp.BottomStartX), int(sp.BottomEndX), root.Height-int(sp.Bottom), root.Height)
			acc.Bottom = max(acc.Bottom, mon.Intersect(band).Height)
		}
		if sp.Left > 0 {
			band := spanRect(0, int(sp.Left)-1, int(sp.LeftStartY), int(sp.LeftEndY)+1)
			acc.Left = max(acc.Left, mon.Intersect(band).Width)
		}
		if sp.Right > 0 {
			band := spanRect(root.Width-int(sp.Right), root.Width-1, int(sp.RightStartY), int(sp.RightEndY)+1)
			acc.Right = max(acc.Right, mon.Intersect(band).Width)
		}
	}
	return acc
}

// spanRect builds a rect from an inclusive x range and a half-open y range.
func spanRect(x0, x1, y0, y1 int) geom.Rect {
	return geom.R(x0, y0, x1-x0+1, y1-y0)
}

// ApplyStruts shrinks mon by s, keeping at least one pixel.
func ApplyStruts(mon geom.Rect, s Struts) geom.Rect {
	if s.empty() {
		return mon
	}
	return geom.R(
		mon.X+s.Left,
		mon.Y+s.Top,
		max(mon.Width-s.Left-s.Right, 1),
		max(mon.Height-s.Top-s.Bottom, 1),
	)
}

// PublishWorkArea writes _NET_WORKAREA for the single desktop.
func (c *Connection) PublishWorkArea(r geom.Rect) {
	wa := []ewmh.Workarea{{X: r.X, Y: r.Y, Width: uint(max(r.Width, 0)), Height: uint(max(r.Height, 0))}}
	if err := ewmh.WorkareaSet(c.XUtil, wa); err != nil {
		c.logger.Warn("failed to set _NET_WORKAREA", "error", err)
	}
}
