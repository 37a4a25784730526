package mcp

import (
	"context"
	"fmt"
	"time"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/1broseidon/tessera/internal/ipc"
)

const (
	defaultViolationLimit = 20
	maxViolationLimit     = 200
)

func (s *Server) handleListWindows(_ context.Context, _ *mcpsdk.CallToolRequest, args ListWindowsInput) (*mcpsdk.CallToolResult, ListWindowsOutput, error) {
	data, err := s.backend.ListWindows()
	if err != nil {
		return nil, ListWindowsOutput{}, fmt.Errorf("failed to list windows: %w", err)
	}
	out := ListWindowsOutput{Windows: make([]WindowInfo, 0, len(data.Windows))}
	for _, w := range data.Windows {
		if args.Namespace != "" && w.Namespace != args.Namespace {
			continue
		}
		out.Windows = append(out.Windows, WindowInfo{
			Frame:     w.Frame,
			Client:    w.Client,
			Title:     w.Title,
			Type:      w.Type,
			X:         w.X,
			Y:         w.Y,
			Width:     w.Width,
			Height:    w.Height,
			Focused:   w.Focused,
			Maximized: w.Maximized,
			Namespace: w.Namespace,
		})
	}
	return nil, out, nil
}

func (s *Server) handleListNamespaces(_ context.Context, _ *mcpsdk.CallToolRequest, _ ListNamespacesInput) (*mcpsdk.CallToolResult, ListNamespacesOutput, error) {
	data, err := s.backend.ListNamespaces()
	if err != nil {
		return nil, ListNamespacesOutput{}, fmt.Errorf("failed to list namespaces: %w", err)
	}
	out := ListNamespacesOutput{
		Available:  data.Available,
		Current:    data.Current,
		Namespaces: make([]NamespaceInfo, 0, len(data.Namespaces)),
	}
	for _, ns := range data.Namespaces {
		perms := ns.Permissions
		if perms == nil {
			perms = []string{}
		}
		out.Namespaces = append(out.Namespaces, NamespaceInfo{
			ID:          ns.ID,
			Name:        ns.Name,
			Color:       ns.Color,
			Root:        ns.Root,
			Active:      ns.Active,
			Default:     ns.Default,
			Windows:     ns.Windows,
			Permissions: perms,
			Tooltip:     ns.Tooltip,
		})
	}
	return nil, out, nil
}

func (s *Server) handleListViolations(_ context.Context, _ *mcpsdk.CallToolRequest, args ListViolationsInput) (*mcpsdk.CallToolResult, ListViolationsOutput, error) {
	limit, err := clampLimit(args.Limit)
	if err != nil {
		return nil, ListViolationsOutput{}, err
	}
	data, err := s.backend.ListViolations(limit, args.MarkReviewed)
	if err != nil {
		return nil, ListViolationsOutput{}, fmt.Errorf("failed to list violations: %w", err)
	}
	out := ListViolationsOutput{
		Total:      data.Total,
		Violations: make([]ViolationInfo, 0, len(data.Violations)),
	}
	for _, v := range data.Violations {
		out.Violations = append(out.Violations, ViolationInfo{
			Time:            v.Time.UTC().Format(time.RFC3339),
			Operation:       v.Operation,
			Source:          uint32(v.Source),
			Target:          uint32(v.Target),
			SourceNamespace: v.SourceNamespace,
			TargetNamespace: v.TargetNamespace,
			Reviewed:        v.Reviewed,
		})
	}
	if args.MarkReviewed {
		s.logger.Info("violations marked reviewed", "total", data.Total)
	}
	return nil, out, nil
}

func (s *Server) handleSetNamespacePolicy(_ context.Context, _ *mcpsdk.CallToolRequest, args SetNamespacePolicyInput) (*mcpsdk.CallToolResult, PolicyOutput, error) {
	req := ipc.SetPolicyPayload{
		VisualIndicators:       args.VisualIndicators,
		SecurityWarnings:       args.SecurityWarnings,
		CrossNamespaceBlocking: args.CrossNamespaceBlocking,
	}
	if req.Empty() {
		return nil, PolicyOutput{}, fmt.Errorf("set_namespace_policy requires at least one of visual_indicators, security_warnings, cross_namespace_blocking")
	}
	p, err := s.backend.SetPolicy(req)
	if err != nil {
		return nil, PolicyOutput{}, fmt.Errorf("failed to set policy: %w", err)
	}
	return nil, PolicyOutput{
		VisualIndicators:       p.VisualIndicators,
		SecurityWarnings:       p.SecurityWarnings,
		CrossNamespaceBlocking: p.CrossNamespaceBlocking,
	}, nil
}

// clampLimit applies the default and rejects out of range limits.
func clampLimit(n int) (int, error) {
	switch {
	case n == 0:
		return defaultViolationLimit, nil
	case n < 0:
		return 0, fmt.Errorf("limit must be positive, got %d", n)
	case n > maxViolationLimit:
		return maxViolationLimit, nil
	default:
		return n, nil
	}
}
