package mcp

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sort"
	"strings"
	"testing"
	"time"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/1broseidon/tessera/internal/ipc"
	"github.com/1broseidon/tessera/internal/namespace"
)

type fakeBackend struct {
	windows    ipc.WindowsData
	namespaces ipc.NamespacesData
	violations ipc.ViolationsData
	policy     ipc.PolicyData
	err        error

	gotLimit  int
	gotMark   bool
	gotPolicy ipc.SetPolicyPayload
}

func (f *fakeBackend) ListWindows() (*ipc.WindowsData, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &f.windows, nil
}

func (f *fakeBackend) ListNamespaces() (*ipc.NamespacesData, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &f.namespaces, nil
}

func (f *fakeBackend) ListViolations(limit int, mark bool) (*ipc.ViolationsData, error) {
	f.gotLimit, f.gotMark = limit, mark
	if f.err != nil {
		return nil, f.err
	}
	return &f.violations, nil
}

func (f *fakeBackend) SetPolicy(p ipc.SetPolicyPayload) (*ipc.PolicyData, error) {
	f.gotPolicy = p
	if f.err != nil {
		return nil, f.err
	}
	if p.VisualIndicators != nil {
		f.policy.VisualIndicators = *p.VisualIndicators
	}
	if p.SecurityWarnings != nil {
		f.policy.SecurityWarnings = *p.SecurityWarnings
	}
	if p.CrossNamespaceBlocking != nil {
		f.policy.CrossNamespaceBlocking = *p.CrossNamespaceBlocking
	}
	return &f.policy, nil
}

func boolPtr(b bool) *bool { return &b }

func newTestServer(b Backend) *Server {
	return NewServer(b, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestClampLimit(t *testing.T) {
	tests := []struct {
		in      int
		want    int
		wantErr bool
	}{
		{0, defaultViolationLimit, false},
		{5, 5, false},
		{maxViolationLimit, maxViolationLimit, false},
		{maxViolationLimit + 1, maxViolationLimit, false},
		{-1, 0, true},
	}
	for _, tt := range tests {
		got, err := clampLimit(tt.in)
		if (err != nil) != tt.wantErr {
			t.Fatalf("clampLimit(%d) error = %v, wantErr %v", tt.in, err, tt.wantErr)
		}
		if got != tt.want {
			t.Errorf("clampLimit(%d) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestListWindowsFiltersByNamespace(t *testing.T) {
	b := &fakeBackend{windows: ipc.WindowsData{Windows: []ipc.WindowInfo{
		{Frame: 1, Client: 2, Title: "term", Namespace: "default", Focused: true},
		{Frame: 3, Client: 4, Title: "browser", Namespace: "web"},
	}}}
	s := newTestServer(b)

	_, out, err := s.handleListWindows(context.Background(), nil, ListWindowsInput{})
	if err != nil {
		t.Fatalf("handleListWindows: %v", err)
	}
	if len(out.Windows) != 2 || !out.Windows[0].Focused {
		t.Fatalf("windows = %+v, want both with the first focused", out.Windows)
	}

	_, out, err = s.handleListWindows(context.Background(), nil, ListWindowsInput{Namespace: "web"})
	if err != nil {
		t.Fatalf("handleListWindows(web): %v", err)
	}
	if len(out.Windows) != 1 || out.Windows[0].Title != "browser" {
		t.Fatalf("windows(web) = %+v, want only browser", out.Windows)
	}
}

func TestListNamespacesNeverReturnsNilPermissions(t *testing.T) {
	b := &fakeBackend{namespaces: ipc.NamespacesData{
		Available: true,
		Current:   "default",
		Namespaces: []ipc.NamespaceInfo{
			{ID: "default", Root: true, Default: true, Windows: 2},
			{ID: "web", Color: "#ff0000", Permissions: []string{"focus"}},
		},
	}}
	_, out, err := newTestServer(b).handleListNamespaces(context.Background(), nil, ListNamespacesInput{})
	if err != nil {
		t.Fatalf("handleListNamespaces: %v", err)
	}
	if !out.Available || out.Current != "default" || len(out.Namespaces) != 2 {
		t.Fatalf("out = %+v", out)
	}
	for _, ns := range out.Namespaces {
		if ns.Permissions == nil {
			t.Errorf("namespace %s permissions are nil", ns.ID)
		}
	}
}

func TestListViolations(t *testing.T) {
	at := time.Date(2024, 3, 1, 12, 0, 0, 0, time.FixedZone("x", 3600))
	b := &fakeBackend{violations: ipc.ViolationsData{
		Total: 7,
		Violations: []namespace.Violation{{
			Time:            at,
			Operation:       namespace.OpFocus,
			Source:          10,
			Target:          20,
			SourceNamespace: "web",
			TargetNamespace: "default",
		}},
	}}
	_, out, err := newTestServer(b).handleListViolations(context.Background(), nil, ListViolationsInput{MarkReviewed: true})
	if err != nil {
		t.Fatalf("handleListViolations: %v", err)
	}
	if b.gotLimit != defaultViolationLimit || !b.gotMark {
		t.Fatalf("backend got limit=%d mark=%v, want %d true", b.gotLimit, b.gotMark, defaultViolationLimit)
	}
	if out.Total != 7 || len(out.Violations) != 1 {
		t.Fatalf("out = %+v", out)
	}
	if got := out.Violations[0].Time; got != "2024-03-01T11:00:00Z" {
		t.Errorf("time = %q, want UTC RFC3339", got)
	}
	if out.Violations[0].Source != 10 || out.Violations[0].Operation != namespace.OpFocus {
		t.Errorf("violation = %+v", out.Violations[0])
	}
}

func TestSetNamespacePolicy(t *testing.T) {
	b := &fakeBackend{policy: ipc.PolicyData{VisualIndicators: true, SecurityWarnings: true}}
	s := newTestServer(b)

	if _, _, err := s.handleSetNamespacePolicy(context.Background(), nil, SetNamespacePolicyInput{}); err == nil {
		t.Fatal("empty policy change succeeded")
	}

	_, out, err := s.handleSetNamespacePolicy(context.Background(), nil, SetNamespacePolicyInput{
		CrossNamespaceBlocking: boolPtr(true),
	})
	if err != nil {
		t.Fatalf("handleSetNamespacePolicy: %v", err)
	}
	if b.gotPolicy.VisualIndicators != nil || b.gotPolicy.CrossNamespaceBlocking == nil {
		t.Fatalf("backend payload = %+v, want only cross_namespace_blocking", b.gotPolicy)
	}
	want := PolicyOutput{VisualIndicators: true, SecurityWarnings: true, CrossNamespaceBlocking: true}
	if out != want {
		t.Errorf("policy = %+v, want %+v", out, want)
	}
}

func TestBackendErrorsAreWrapped(t *testing.T) {
	b := &fakeBackend{err: errors.New("tessera error: boom")}
	_, _, err := newTestServer(b).handleListWindows(context.Background(), nil, ListWindowsInput{})
	if err == nil || !strings.Contains(err.Error(), "failed to list windows") || !errors.Is(err, b.err) {
		t.Fatalf("err = %v, want wrapped backend error", err)
	}
}

func TestToolsOverInMemoryTransport(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	b := &fakeBackend{windows: ipc.WindowsData{Windows: []ipc.WindowInfo{{Frame: 1, Client: 2, Namespace: "default"}}}}
	s := newTestServer(b)

	serverT, clientT := mcpsdk.NewInMemoryTransports()
	ss, err := s.mcpServer.Connect(ctx, serverT, nil)
	if err != nil {
		t.Fatalf("server connect: %v", err)
	}
	defer ss.Close()

	client := mcpsdk.NewClient(&mcpsdk.Implementation{Name: "test", Version: "v0"}, nil)
	cs, err := client.Connect(ctx, clientT, nil)
	if err != nil {
		t.Fatalf("client connect: %v", err)
	}
	defer cs.Close()

	tools, err := cs.ListTools(ctx, nil)
	if err != nil {
		t.Fatalf("ListTools: %v", err)
	}
	var names []string
	for _, tool := range tools.Tools {
		names = append(names, tool.Name)
	}
	sort.Strings(names)
	want := []string{"list_namespaces", "list_violations", "list_windows", "set_namespace_policy"}
	if strings.Join(names, ",") != strings.Join(want, ",") {
		t.Fatalf("tools = %v, want %v", names, want)
	}

	res, err := cs.CallTool(ctx, &mcpsdk.CallToolParams{Name: "list_windows", Arguments: map[string]any{}})
	if err != nil {
		t.Fatalf("CallTool: %v", err)
	}
	if res.IsError {
		t.Fatalf("list_windows returned a tool error: %+v", res.Content)
	}
}
