package errors

import (
	stderrors "errors"
	"fmt"
)

// ErrorCode represents stable error codes for all failure modes
type ErrorCode string

const (
	// TraceNotFound indicates no stored trace exists for a label or identifier
	TraceNotFound ErrorCode = "TRACE_NOT_FOUND"
	// TracerActive indicates another tracing session already holds the hook
	TracerActive ErrorCode = "TRACER_ACTIVE"
	// TracerState indicates an illegal tracer state transition
	TracerState ErrorCode = "TRACER_STATE"
	// InvalidLabel indicates a trace label that cannot be used as a file name
	InvalidLabel ErrorCode = "INVALID_LABEL"
	// ConfigInvalid indicates an unusable configuration value
	ConfigInvalid ErrorCode = "CONFIG_INVALID"
	// IndexMissing indicates no tag source could be found
	IndexMissing ErrorCode = "INDEX_MISSING"
	// StoreLocked indicates another process is writing to the trace store
	StoreLocked ErrorCode = "STORE_LOCKED"
	// ToolUnavailable indicates an external tool is not installed
	ToolUnavailable ErrorCode = "TOOL_UNAVAILABLE"
	// InternalError indicates unexpected error
	InternalError ErrorCode = "INTERNAL_ERROR"
)

// FixActionType represents the type of fix action
type FixActionType string

const (
	// RunCommand suggests running a command
	RunCommand FixActionType = "run-command"
	// InstallTool suggests installing a tool
	InstallTool FixActionType = "install-tool"
)

// FixAction represents a suggested fix for an error
type FixAction struct {
	Type        FixActionType `json:"type"`
	Command     string        `json:"command,omitempty"`
	Safe        bool          `json:"safe,omitempty"`
	Description string        `json:"description,omitempty"`
	Tool        string        `json:"tool,omitempty"`
}

// CodeIntelError carries a stable code, a message and optional suggestions.
type CodeIntelError struct {
	Code           ErrorCode   `json:"code"`
	Message        string      `json:"message"`
	Details        interface{} `json:"details,omitempty"`
	SuggestedFixes []FixAction `json:"suggestedFixes,omitempty"`
	cause          error       // Underlying error (not exported to JSON)
}

// New creates a CodeIntelError with the default suggestions for its code.
func New(code ErrorCode, message string, cause error) *CodeIntelError {
	return &CodeIntelError{
		Code:           code,
		Message:        message,
		cause:          cause,
		SuggestedFixes: GetSuggestedFixes(code),
	}
}

// Error implements the error interface
func (e *CodeIntelError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error
func (e *CodeIntelError) Unwrap() error {
	return e.cause
}

// Is matches any CodeIntelError carrying the same code.
func (e *CodeIntelError) Is(target error) bool {
	t, ok := target.(*CodeIntelError)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// WithDetails adds details to the error
func (e *CodeIntelError) WithDetails(details interface{}) *CodeIntelError {
	e.Details = details
	return e
}

// NotFound reports a missing trace label or identifier, naming it.
func NotFound(label string) *CodeIntelError {
	return New(TraceNotFound, fmt.Sprintf("no stored trace for %q", label), nil).
		WithDetails(map[string]string{"label": label})
}

// IsCode reports whether err (or anything it wraps) carries the given code.
func IsCode(err error, code ErrorCode) bool {
	var ce *CodeIntelError
	if stderrors.As(err, &ce) {
		return ce.Code == code
	}
	return false
}

// ErrorActions maps error codes to suggested fix actions
var ErrorActions = map[ErrorCode][]FixAction{
	TraceNotFound: {
		{
			Type:        RunCommand,
			Command:     "codeintel trace list",
			Safe:        true,
			Description: "List stored traces and their labels",
		},
	},
	TracerActive: {
		{
			Type:        RunCommand,
			Command:     "stop the running tracing session before starting another",
			Description: "Only one tracer may hold the instrumentation hook",
		},
	},
	StoreLocked: {
		{
			Type:        RunCommand,
			Command:     "codeintel trace rebuild",
			Safe:        true,
			Description: "If no other codeintel process is running, rebuild the catalog",
		},
	},
	IndexMissing: {
		{
			Type:        RunCommand,
			Command:     "ctags --output-format=json --fields=+neKSl -R -f .codeintel/tags.jsonl .",
			Safe:        true,
			Description: "Generate a tag stream with Universal Ctags",
		},
	},
	ToolUnavailable: {
		{
			Type:        InstallTool,
			Tool:        "universal-ctags / @mermaid-js/mermaid-cli / graphviz",
			Description: "Install the external tool named in the message",
		},
	},
}

// GetSuggestedFixes returns suggested fixes for an error code
func GetSuggestedFixes(code ErrorCode) []FixAction {
	if fixes, ok := ErrorActions[code]; ok {
		return fixes
	}
	return nil
}
