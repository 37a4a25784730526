package ipc

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"sync"
	"time"
)

// Handler answers IPC commands. Implementations hop onto the window
// manager's event loop; ctx bounds the wait.
type Handler interface {
	Status(ctx context.Context) (StatusData, error)
	Windows(ctx context.Context) (WindowsData, error)
	Namespaces(ctx context.Context) (NamespacesData, error)
	Violations(ctx context.Context, req ListViolationsPayload) (ViolationsData, error)
	SetPolicy(ctx context.Context, req SetPolicyPayload) (PolicyData, error)
	AssignWindow(ctx context.Context, req AssignWindowPayload) error
	Reload(ctx context.Context) error
}

// DefaultRequestTimeout bounds how long a request may wait on the loop.
const DefaultRequestTimeout = 5 * time.Second

// Server handles IPC requests from clients
type Server struct {
	socketPath   string
	listener     net.Listener
	handler      Handler
	logger       *slog.Logger
	timeout      time.Duration
	shuttingDown bool
	shutdownMu   sync.Mutex
	wg           sync.WaitGroup
}

// NewServer creates a server for socketPath. A stale socket file is removed.
func NewServer(socketPath string, handler Handler, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	os.Remove(socketPath)
	return &Server{
		socketPath: socketPath,
		handler:    handler,
		logger:     logger,
		timeout:    DefaultRequestTimeout,
	}
}

// SocketPath is the path the server listens on.
func (s *Server) SocketPath() string { return s.socketPath }

// Start begins listening for IPC connections
func (s *Server) Start() error {
	listener, err := net.Listen("unix", s.socketPath)
	if err != nil {
		return fmt.Errorf("failed to create IPC socket: %w", err)
	}
	s.listener = listener

	if err := os.Chmod(s.socketPath, 0600); err != nil {
		listener.Close()
		return fmt.Errorf("failed to set socket permissions: %w", err)
	}

	s.logger.Info("IPC server listening", "socket", s.socketPath)

	s.wg.Add(1)
	go s.acceptLoop()
	return nil
}

func (s *Server) acceptLoop() {
	defer s.wg.Done()
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			s.shutdownMu.Lock()
			down := s.shuttingDown
			s.shutdownMu.Unlock()
			if down {
				return
			}
			s.logger.Warn("IPC accept error", "error", err)
			continue
		}
		go s.handleConnection(conn)
	}
}

// handleConnection handles a single request line and its response.
func (s *Server) handleConnection(conn net.Conn) {
	defer conn.Close()
	conn.SetDeadline(time.Now().Add(s.timeout + time.Second))

	reader := bufio.NewReader(conn)
	data, err := reader.ReadBytes('\n')
	if err != nil && err != io.EOF {
		s.logger.Debug("IPC read error", "error", err)
		return
	}

	req, err := ParseRequest(data)
	if err != nil {
		s.writeResponse(conn, NewErrorResponse(fmt.Sprintf("Invalid request: %v", err)))
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()
	s.writeResponse(conn, s.handleCommand(ctx, req))
}

// handleCommand processes an IPC command and returns a response
func (s *Server) handleCommand(ctx context.Context, req *Request) *Response {
	s.logger.Debug("IPC request", "command", req.Command)
	switch req.Command {
	case CommandReload:
		if err := s.handler.Reload(ctx); err != nil {
			return NewErrorResponse(fmt.Sprintf("Failed to reload config: %v", err))
		}
		return ok(nil)
	case CommandGetStatus:
		return reply(s.handler.Status(ctx))
	case CommandListWindows:
		return reply(s.handler.Windows(ctx))
	case CommandListNamespaces:
		return reply(s.handler.Namespaces(ctx))
	case CommandListViolations:
		var p ListViolationsPayload
		if err := decodePayload(req.Payload, &p); err != nil {
			return NewErrorResponse(fmt.Sprintf("Invalid violations payload: %v", err))
		}
		return reply(s.handler.Violations(ctx, p))
	case CommandSetPolicy:
		var p SetPolicyPayload
		if err := decodePayload(req.Payload, &p); err != nil {
			return NewErrorResponse(fmt.Sprintf("Invalid policy payload: %v", err))
		}
		return reply(s.handler.SetPolicy(ctx, p))
	case CommandAssignWindow:
		var p AssignWindowPayload
		if err := decodePayload(req.Payload, &p); err != nil {
			return NewErrorResponse(fmt.Sprintf("Invalid assign payload: %v", err))
		}
		if p.Window == 0 || p.Namespace == "" {
			return NewErrorResponse("window and namespace are required")
		}
		if err := s.handler.AssignWindow(ctx, p); err != nil {
			return NewErrorResponse(fmt.Sprintf("Failed to assign window: %v", err))
		}
		return ok(nil)
	default:
		return NewErrorResponse(fmt.Sprintf("Unknown command: %s", req.Command))
	}
}

func decodePayload(raw json.RawMessage, out any) error {
	if len(raw) == 0 {
		return nil
	}
	return json.Unmarshal(raw, out)
}

func reply[T any](data T, err error) *Response {
	if err != nil {
		return NewErrorResponse(err.Error())
	}
	return ok(data)
}

func ok(data any) *Response {
	resp, err := NewOKResponse(data)
	if err != nil {
		return NewErrorResponse(err.Error())
	}
	return resp
}

func (s *Server) writeResponse(conn net.Conn, resp *Response) {
	data, err := resp.Marshal()
	if err != nil {
		s.logger.Warn("failed to marshal IPC response", "error", err)
		return
	}
	data = append(data, '\n')
	if _, err := conn.Write(data); err != nil {
		s.logger.Debug("failed to send IPC response", "error", err)
	}
}

// Stop gracefully shuts down the IPC server
func (s *Server) Stop() {
	s.shutdownMu.Lock()
	s.shuttingDown = true
	s.shutdownMu.Unlock()

	if s.listener != nil {
		s.listener.Close()
		s.wg.Wait()
	}
	os.Remove(s.socketPath)
}
