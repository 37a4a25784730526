// Package mcp exposes the running window manager to MCP clients. Every tool
// is a thin wrapper over the IPC socket.
package mcp

import (
	"context"
	"log/slog"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/1broseidon/tessera/internal/ipc"
)

const (
	ServerName    = "tessera"
	ServerVersion = "0.1.0"
)

// Backend is the part of the IPC client the tools use.
type Backend interface {
	ListWindows() (*ipc.WindowsData, error)
	ListNamespaces() (*ipc.NamespacesData, error)
	ListViolations(limit int, markReviewed bool) (*ipc.ViolationsData, error)
	SetPolicy(p ipc.SetPolicyPayload) (*ipc.PolicyData, error)
}

// Server is the MCP server for tessera.
type Server struct {
	mcpServer *mcpsdk.Server
	backend   Backend
	logger    *slog.Logger
}

// NewServer creates an MCP server that talks to the window manager through
// backend.
func NewServer(backend Backend, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{backend: backend, logger: logger}
	s.mcpServer = mcpsdk.NewServer(
		&mcpsdk.Implementation{
			Name:    ServerName,
			Version: ServerVersion,
		},
		nil,
	)
	s.registerTools()
	return s
}

// Run starts the MCP server on stdio transport, blocking until done.
func (s *Server) Run(ctx context.Context) error {
	return s.mcpServer.Run(ctx, &mcpsdk.StdioTransport{})
}

func (s *Server) registerTools() {
	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "list_windows",
		Description: "List the windows tessera manages, most recently focused first, with geometry, state and namespace. Optionally filter by namespace id.",
	}, s.handleListWindows)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "list_namespaces",
		Description: "List the isolation namespaces with their color, permissions, window count and whether the X server namespace extension is present.",
	}, s.handleListNamespaces)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "list_violations",
		Description: "List the most recent denied cross-namespace operations (default 20). Pass mark_reviewed to acknowledge them.",
	}, s.handleListViolations)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "set_namespace_policy",
		Description: "Change the namespace policy toggles. Omitted fields keep their value. Returns the resulting policy.",
	}, s.handleSetNamespacePolicy)
}
