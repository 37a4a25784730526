package mcp

// ListWindowsInput is the input for the list_windows tool.
type ListWindowsInput struct {
	Namespace string `json:"namespace,omitempty" jsonschema:"Only list windows assigned to this namespace id"`
}

// WindowInfo describes one managed window.
type WindowInfo struct {
	Frame     uint32 `json:"frame"`
	Client    uint32 `json:"client"`
	Title     string `json:"title"`
	Type      string `json:"type"`
	X         int    `json:"x"`
	Y         int    `json:"y"`
	Width     int    `json:"width"`
	Height    int    `json:"height"`
	Focused   bool   `json:"focused"`
	Maximized bool   `json:"maximized"`
	Namespace string `json:"namespace"`
}

// ListWindowsOutput is the output for the list_windows tool.
type ListWindowsOutput struct {
	Windows []WindowInfo `json:"windows"`
}

// ListNamespacesInput is the input for the list_namespaces tool.
type ListNamespacesInput struct{}

// NamespaceInfo describes one namespace.
type NamespaceInfo struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Color       string   `json:"color"`
	Root        bool     `json:"root"`
	Active      bool     `json:"active"`
	Default     bool     `json:"default"`
	Windows     int      `json:"windows"`
	Permissions []string `json:"permissions"`
	Tooltip     string   `json:"tooltip"`
}

// ListNamespacesOutput is the output for the list_namespaces tool.
type ListNamespacesOutput struct {
	Available  bool            `json:"available"`
	Current    string          `json:"current"`
	Namespaces []NamespaceInfo `json:"namespaces"`
}

// ListViolationsInput is the input for the list_violations tool.
type ListViolationsInput struct {
	Limit        int  `json:"limit,omitempty" jsonschema:"Maximum number of most recent violations to return (default: 20, max: 200)"`
	MarkReviewed bool `json:"mark_reviewed,omitempty" jsonschema:"When true, mark every recorded violation as reviewed after listing"`
}

// ViolationInfo describes one denied cross-namespace operation.
type ViolationInfo struct {
	Time            string `json:"time"`
	Operation       string `json:"operation"`
	Source          uint32 `json:"source"`
	Target          uint32 `json:"target"`
	SourceNamespace string `json:"source_namespace"`
	TargetNamespace string `json:"target_namespace"`
	Reviewed        bool   `json:"reviewed"`
}

// ListViolationsOutput is the output for the list_violations tool.
type ListViolationsOutput struct {
	Total      int             `json:"total"`
	Violations []ViolationInfo `json:"violations"`
}

// SetNamespacePolicyInput is the input for the set_namespace_policy tool.
type SetNamespacePolicyInput struct {
	VisualIndicators       *bool `json:"visual_indicators,omitempty" jsonschema:"Draw namespace accents on titlebars and frame borders"`
	SecurityWarnings       *bool `json:"security_warnings,omitempty" jsonschema:"Show a desktop notification when an operation is denied"`
	CrossNamespaceBlocking *bool `json:"cross_namespace_blocking,omitempty" jsonschema:"Deny focus, selection, input and reparenting across namespaces"`
}

// PolicyOutput is the output for the set_namespace_policy tool.
type PolicyOutput struct {
	VisualIndicators       bool `json:"visual_indicators"`
	SecurityWarnings       bool `json:"security_warnings"`
	CrossNamespaceBlocking bool `json:"cross_namespace_blocking"`
}
