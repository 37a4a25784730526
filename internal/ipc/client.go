package ipc

import (
	"bufio"
	"encoding/json"
	"fmt"
	"net"
	"time"

	"github.com/1broseidon/tessera/internal/runtimepath"
)

// Client handles IPC communication with the running window manager
type Client struct {
	socketPath string
	timeout    time.Duration
}

// NewClient creates a client for the default socket.
func NewClient() *Client {
	socketPath, err := runtimepath.SocketPath()
	if err != nil {
		// Keep constructor non-failing; sendRequest surfaces connection errors.
		socketPath = ""
	}
	return NewClientForSocket(socketPath)
}

// NewClientForSocket creates a client for socketPath.
func NewClientForSocket(socketPath string) *Client {
	return &Client{
		socketPath: socketPath,
		timeout:    DefaultRequestTimeout + time.Second,
	}
}

// RemoteError is an ERROR response from the window manager.
type RemoteError struct {
	Command CommandType
	Message string
}

func (e *RemoteError) Error() string { return "tessera error: " + e.Message }

// roundTrip writes one request line and decodes one response line.
func (c *Client) roundTrip(req *Request) (*Response, error) {
	conn, err := net.DialTimeout("unix", c.socketPath, c.timeout)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to tessera: %w (is the window manager running?)", err)
	}
	defer conn.Close()
	if err := conn.SetDeadline(time.Now().Add(c.timeout)); err != nil {
		return nil, fmt.Errorf("failed to set deadline: %w", err)
	}

	// Encode terminates the line the server reads.
	if err := json.NewEncoder(conn).Encode(req); err != nil {
		return nil, fmt.Errorf("failed to send %s: %w", req.Command, err)
	}
	var resp Response
	if err := json.NewDecoder(bufio.NewReader(conn)).Decode(&resp); err != nil {
		return nil, fmt.Errorf("failed to read %s response: %w", req.Command, err)
	}
	if resp.Status != StatusOK {
		return nil, &RemoteError{Command: req.Command, Message: resp.Error}
	}
	return &resp, nil
}

func (c *Client) call(cmd CommandType, payload any, out any) error {
	req := &Request{Command: cmd}
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("failed to marshal %s payload: %w", cmd, err)
		}
		req.Payload = raw
	}
	resp, err := c.roundTrip(req)
	if err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(resp.Data, out); err != nil {
		return fmt.Errorf("failed to parse %s data: %w", cmd, err)
	}
	return nil
}

// Reload asks the window manager to reread its config.
func (c *Client) Reload() error {
	return c.call(CommandReload, nil, nil)
}

// GetStatus retrieves the window manager status.
func (c *Client) GetStatus() (*StatusData, error) {
	var status StatusData
	if err := c.call(CommandGetStatus, nil, &status); err != nil {
		return nil, err
	}
	return &status, nil
}

// ListWindows retrieves the managed windows.
func (c *Client) ListWindows() (*WindowsData, error) {
	var data WindowsData
	if err := c.call(CommandListWindows, nil, &data); err != nil {
		return nil, err
	}
	return &data, nil
}

// ListNamespaces retrieves the namespaces.
func (c *Client) ListNamespaces() (*NamespacesData, error) {
	var data NamespacesData
	if err := c.call(CommandListNamespaces, nil, &data); err != nil {
		return nil, err
	}
	return &data, nil
}

// ListViolations retrieves recorded namespace violations.
func (c *Client) ListViolations(limit int, markReviewed bool) (*ViolationsData, error) {
	var data ViolationsData
	p := ListViolationsPayload{Limit: limit, MarkReviewed: markReviewed}
	if err := c.call(CommandListViolations, p, &data); err != nil {
		return nil, err
	}
	return &data, nil
}

// SetPolicy changes namespace policy toggles and returns the result.
func (c *Client) SetPolicy(p SetPolicyPayload) (*PolicyData, error) {
	var data PolicyData
	if err := c.call(CommandSetPolicy, p, &data); err != nil {
		return nil, err
	}
	return &data, nil
}

// AssignWindow moves a window into a namespace.
func (c *Client) AssignWindow(window uint32, namespace string) error {
	return c.call(CommandAssignWindow, AssignWindowPayload{Window: window, Namespace: namespace}, nil)
}

// Ping checks if the window manager is responding
func (c *Client) Ping() error {
	_, err := c.GetStatus()
	return err
}
