package wm

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/BurntSushi/xgb/xproto"

	"github.com/1broseidon/tessera/internal/config"
	"github.com/1broseidon/tessera/internal/ipc"
	"github.com/1broseidon/tessera/internal/model"
	"github.com/1broseidon/tessera/internal/namespace"
	"github.com/1broseidon/tessera/internal/x11"
)

// IPC returns the control socket handler for m. Its methods may be called
// from any goroutine.
func (m *Manager) IPC() ipc.Handler { return ipcHandler{m: m} }

type ipcHandler struct{ m *Manager }

// onLoop runs fn on the event loop and returns its result.
func onLoop[T any](ctx context.Context, conn *x11.Connection, fn func() (T, error)) (T, error) {
	type result struct {
		v   T
		err error
	}
	// Buffered so a late task does not block the loop after ctx expires.
	ch := make(chan result, 1)
	if err := conn.Call(ctx, func() {
		v, err := fn()
		ch <- result{v, err}
	}); err != nil {
		var zero T
		return zero, err
	}
	r := <-ch
	return r.v, r.err
}

func (h ipcHandler) Status(ctx context.Context) (ipc.StatusData, error) {
	return onLoop(ctx, h.m.conn, func() (ipc.StatusData, error) { return h.m.status(), nil })
}

func (h ipcHandler) Windows(ctx context.Context) (ipc.WindowsData, error) {
	return onLoop(ctx, h.m.conn, func() (ipc.WindowsData, error) { return h.m.windows(), nil })
}

func (h ipcHandler) Namespaces(ctx context.Context) (ipc.NamespacesData, error) {
	return onLoop(ctx, h.m.conn, func() (ipc.NamespacesData, error) { return h.m.namespaces(), nil })
}

func (h ipcHandler) Violations(ctx context.Context, req ipc.ListViolationsPayload) (ipc.ViolationsData, error) {
	return onLoop(ctx, h.m.conn, func() (ipc.ViolationsData, error) { return h.m.violations(req), nil })
}

func (h ipcHandler) SetPolicy(ctx context.Context, req ipc.SetPolicyPayload) (ipc.PolicyData, error) {
	return onLoop(ctx, h.m.conn, func() (ipc.PolicyData, error) { return h.m.setPolicy(req), nil })
}

func (h ipcHandler) AssignWindow(ctx context.Context, req ipc.AssignWindowPayload) error {
	_, err := onLoop(ctx, h.m.conn, func() (struct{}, error) {
		return struct{}{}, h.m.assignWindow(req)
	})
	return err
}

func (h ipcHandler) Reload(ctx context.Context) error {
	_, err := onLoop(ctx, h.m.conn, func() (struct{}, error) {
		return struct{}{}, h.m.Reload()
	})
	return err
}

func (m *Manager) status() ipc.StatusData {
	var focused uint32
	if f, ok := m.conn.Registry().FrameByID(m.focused); ok {
		focused = uint32(f.Client().ID)
	}
	return ipc.StatusData{
		UptimeSeconds:      int64(time.Since(m.started).Seconds()),
		ManagedWindows:     len(m.clients),
		FocusedWindow:      focused,
		CompositorActive:   m.comp.Active(),
		NamespaceExtension: m.ns.Available(),
		CurrentNamespace:   m.ns.Current().ID,
		Namespaces:         len(m.ns.Namespaces()),
		Detection:          string(m.detection),
		Policy:             policyData(m.ns.Settings()),
	}
}

// windows lists frames in switcher order, then the ones the switcher skips.
func (m *Manager) windows() ipc.WindowsData {
	registry := m.conn.Registry()
	seen := make(map[xproto.Window]bool)
	out := ipc.WindowsData{Windows: []ipc.WindowInfo{}}
	add := func(f *model.Frame) {
		if seen[f.ID] {
			return
		}
		seen[f.ID] = true
		ns := m.ns.NamespaceForWindow(f.Client().ID)
		out.Windows = append(out.Windows, windowInfo(f, f.ID == m.focused, ns.ID))
	}
	for _, id := range m.switcher.Stack() {
		if f, ok := registry.FrameByID(id); ok {
			add(f)
		}
	}
	for _, f := range registry.Frames() {
		add(f)
	}
	return out
}

func (m *Manager) namespaces() ipc.NamespacesData {
	all := m.ns.Namespaces()
	counts := make(map[string]int, len(all))
	for _, client := range m.clients {
		counts[m.ns.NamespaceForClient(client).ID]++
	}
	def := m.ns.DefaultForNewClients()
	out := ipc.NamespacesData{
		Available:  m.ns.Available(),
		Current:    m.ns.Current().ID,
		Namespaces: make([]ipc.NamespaceInfo, 0, len(all)),
	}
	for _, ns := range all {
		out.Namespaces = append(out.Namespaces, ipc.NamespaceInfo{
			ID:          ns.ID,
			Name:        ns.Name,
			Color:       m.ns.ColorFor(ns).Hex(),
			Root:        ns.Root,
			Active:      ns.Active,
			Default:     def != nil && ns.ID == def.ID,
			Windows:     counts[ns.ID],
			Permissions: permissionList(ns.Permissions),
			Rules:       ns.Rules,
			Tooltip:     m.ns.TooltipForNamespace(ns),
		})
	}
	return out
}

func (m *Manager) violations(req ipc.ListViolationsPayload) ipc.ViolationsData {
	all := m.ns.Violations()
	out := ipc.ViolationsData{
		Total:      len(all),
		Violations: tailViolations(all, req.Limit),
	}
	if req.MarkReviewed {
		m.ns.MarkViolationsReviewed()
	}
	return out
}

func (m *Manager) setPolicy(req ipc.SetPolicyPayload) ipc.PolicyData {
	if req.VisualIndicators != nil {
		m.ns.SetVisualIndicators(*req.VisualIndicators)
	}
	if req.SecurityWarnings != nil {
		m.ns.SetSecurityWarnings(*req.SecurityWarnings)
	}
	if req.CrossNamespaceBlocking != nil {
		m.ns.SetCrossNamespaceBlocking(*req.CrossNamespaceBlocking)
	}
	if !req.Empty() {
		m.invalidateAll()
		m.resyncTheme()
		m.logger.Info("namespace policy changed", "policy", fmt.Sprintf("%+v", policyData(m.ns.Settings())))
	}
	return policyData(m.ns.Settings())
}

func (m *Manager) assignWindow(req ipc.AssignWindowPayload) error {
	client := m.ClientFor(xproto.Window(req.Window))
	if _, ok := m.frameOf(client); !ok {
		return fmt.Errorf("window %d is not managed", req.Window)
	}
	return m.ns.AssignWindow(client, req.Namespace)
}

func policyData(cfg config.NamespaceConfig) ipc.PolicyData {
	return ipc.PolicyData{
		VisualIndicators:       cfg.VisualIndicators,
		SecurityWarnings:       cfg.SecurityWarnings,
		CrossNamespaceBlocking: cfg.CrossNamespaceBlocking,
	}
}

func windowInfo(f *model.Frame, focused bool, nsID string) ipc.WindowInfo {
	client := f.Client()
	r := f.ClientRect()
	return ipc.WindowInfo{
		Frame:       uint32(f.ID),
		Client:      uint32(client.ID),
		Title:       client.Title,
		Type:        client.Type.String(),
		X:           r.X,
		Y:           r.Y,
		Width:       r.Width,
		Height:      r.Height,
		Focused:     focused,
		Maximized:   f.Maximized,
		FixedSize:   client.FixedSize(),
		SkipTaskbar: client.Flags.Has(model.FlagSkipTaskbar),
		Namespace:   nsID,
	}
}

// tailViolations keeps the newest limit entries. A limit of zero or less
// keeps all of them.
func tailViolations(vs []namespace.Violation, limit int) []namespace.Violation {
	start := 0
	if limit > 0 && limit < len(vs) {
		start = len(vs) - limit
	}
	return append([]namespace.Violation{}, vs[start:]...)
}

func permissionList(perms map[string]bool) []string {
	var out []string
	for op, allowed := range perms {
		if allowed {
			out = append(out, op)
		}
	}
	slices.Sort(out)
	return out
}
