package ipc

import (
	"encoding/json"
	"fmt"

	"github.com/1broseidon/tessera/internal/namespace"
)

// CommandType represents different IPC command types
type CommandType string

const (
	CommandReload         CommandType = "RELOAD"
	CommandGetStatus      CommandType = "GET_STATUS"
	CommandListWindows    CommandType = "LIST_WINDOWS"
	CommandListNamespaces CommandType = "LIST_NAMESPACES"
	CommandListViolations CommandType = "LIST_VIOLATIONS"
	CommandSetPolicy      CommandType = "SET_POLICY"
	CommandAssignWindow   CommandType = "ASSIGN_WINDOW"
)

// Response status values.
const (
	StatusOK    = "OK"
	StatusError = "ERROR"
)

// Request represents an IPC request from client to server
type Request struct {
	Command CommandType     `json:"command"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Response represents an IPC response from server to client
type Response struct {
	Status string          `json:"status"`
	Data   json.RawMessage `json:"data,omitempty"`
	Error  string          `json:"error,omitempty"`
}

// PolicyData holds the namespace policy toggles.
type PolicyData struct {
	VisualIndicators       bool `json:"visual_indicators"`
	SecurityWarnings       bool `json:"security_warnings"`
	CrossNamespaceBlocking bool `json:"cross_namespace_blocking"`
}

// StatusData represents the data returned by GET_STATUS
type StatusData struct {
	UptimeSeconds      int64      `json:"uptime_seconds"`
	ManagedWindows     int        `json:"managed_windows"`
	FocusedWindow      uint32     `json:"focused_window,omitempty"`
	CompositorActive   bool       `json:"compositor_active"`
	NamespaceExtension bool       `json:"namespace_extension"`
	CurrentNamespace   string     `json:"current_namespace"`
	Namespaces         int        `json:"namespaces"`
	Detection          string     `json:"detection"`
	Policy             PolicyData `json:"policy"`
}

// WindowInfo describes one managed window.
type WindowInfo struct {
	Frame       uint32 `json:"frame"`
	Client      uint32 `json:"client"`
	Title       string `json:"title"`
	Type        string `json:"type"`
	X           int    `json:"x"`
	Y           int    `json:"y"`
	Width       int    `json:"width"`
	Height      int    `json:"height"`
	Focused     bool   `json:"focused,omitempty"`
	Maximized   bool   `json:"maximized,omitempty"`
	FixedSize   bool   `json:"fixed_size,omitempty"`
	SkipTaskbar bool   `json:"skip_taskbar,omitempty"`
	Namespace   string `json:"namespace"`
}

// WindowsData represents the data returned by LIST_WINDOWS, in switcher
// order.
type WindowsData struct {
	Windows []WindowInfo `json:"windows"`
}

// NamespaceInfo describes one namespace.
type NamespaceInfo struct {
	ID          string            `json:"id"`
	Name        string            `json:"name"`
	Color       string            `json:"color"`
	Root        bool              `json:"root,omitempty"`
	Active      bool              `json:"active,omitempty"`
	Default     bool              `json:"default,omitempty"`
	Windows     int               `json:"windows"`
	Permissions []string          `json:"permissions,omitempty"`
	Rules       map[string]string `json:"rules,omitempty"`
	Tooltip     string            `json:"tooltip"`
}

// NamespacesData represents the data returned by LIST_NAMESPACES
type NamespacesData struct {
	Available  bool            `json:"available"`
	Current    string          `json:"current"`
	Namespaces []NamespaceInfo `json:"namespaces"`
}

// ListViolationsPayload represents the payload for LIST_VIOLATIONS
type ListViolationsPayload struct {
	// Limit keeps only the newest entries; zero returns all.
	Limit        int  `json:"limit,omitempty"`
	MarkReviewed bool `json:"mark_reviewed,omitempty"`
}

// ViolationsData represents the data returned by LIST_VIOLATIONS
type ViolationsData struct {
	Total      int                   `json:"total"`
	Violations []namespace.Violation `json:"violations"`
}

// SetPolicyPayload changes the toggles that are set and leaves the rest.
type SetPolicyPayload struct {
	VisualIndicators       *bool `json:"visual_indicators,omitempty"`
	SecurityWarnings       *bool `json:"security_warnings,omitempty"`
	CrossNamespaceBlocking *bool `json:"cross_namespace_blocking,omitempty"`
}

// Empty reports whether the payload changes nothing.
func (p SetPolicyPayload) Empty() bool {
	return p.VisualIndicators == nil && p.SecurityWarnings == nil && p.CrossNamespaceBlocking == nil
}

// AssignWindowPayload represents the payload for ASSIGN_WINDOW. Window may
// be a client or frame id.
type AssignWindowPayload struct {
	Window    uint32 `json:"window"`
	Namespace string `json:"namespace"`
}

// NewOKResponse creates a successful response with optional data
func NewOKResponse(data interface{}) (*Response, error) {
	var dataBytes json.RawMessage
	if data != nil {
		bytes, err := json.Marshal(data)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal response data: %w", err)
		}
		dataBytes = bytes
	}

	return &Response{
		Status: StatusOK,
		Data:   dataBytes,
	}, nil
}

// NewErrorResponse creates an error response with a message
func NewErrorResponse(errMsg string) *Response {
	return &Response{
		Status: StatusError,
		Error:  errMsg,
	}
}

// ParseRequest parses a request from JSON bytes
func ParseRequest(data []byte) (*Request, error) {
	var req Request
	if err := json.Unmarshal(data, &req); err != nil {
		return nil, fmt.Errorf("failed to parse request: %w", err)
	}
	return &req, nil
}

// Marshal converts a response to JSON bytes
func (r *Response) Marshal() ([]byte, error) {
	return json.Marshal(r)
}
