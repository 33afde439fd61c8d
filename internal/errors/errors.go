// Package errors defines stable error codes for oag failure modes.
package errors

import (
	"fmt"
)

// ErrorCode represents stable error codes for all failure modes
type ErrorCode string

const (
	// CacheCorrupt indicates the persisted cache snapshot could not be parsed
	CacheCorrupt ErrorCode = "CACHE_CORRUPT"
	// CacheVersionMismatch indicates the snapshot was written by a different schema version
	CacheVersionMismatch ErrorCode = "CACHE_VERSION_MISMATCH"
	// CacheExpired indicates the snapshot is older than the configured TTL
	CacheExpired ErrorCode = "CACHE_EXPIRED"
	// AnalyzeFailed indicates the per-file analyzer failed on a single file
	AnalyzeFailed ErrorCode = "ANALYZE_FAILED"
	// IOFailure indicates a file could not be read or statted
	IOFailure ErrorCode = "IO_FAILURE"
	// FingerprintCollision indicates two different contents produced the same hash
	FingerprintCollision ErrorCode = "FINGERPRINT_COLLISION"
	// ProjectNotFound indicates the project root does not exist
	ProjectNotFound ErrorCode = "PROJECT_NOT_FOUND"
	// InternalError indicates unexpected error
	InternalError ErrorCode = "INTERNAL_ERROR"
)

// FixActionType represents the type of fix action
type FixActionType string

const (
	// RunCommand suggests running a command
	RunCommand FixActionType = "run-command"
	// OpenDocs suggests opening documentation
	OpenDocs FixActionType = "open-docs"
)

// FixAction represents a suggested fix for an error
type FixAction struct {
	Type        FixActionType `json:"type"`
	Command     string        `json:"command,omitempty"`
	Safe        bool          `json:"safe,omitempty"`
	Description string        `json:"description,omitempty"`
	URL         string        `json:"url,omitempty"`
}

// OagError represents an oag error with code, message, and suggestions
type OagError struct {
	Code           ErrorCode   `json:"code"`
	Message        string      `json:"message"`
	Path           string      `json:"path,omitempty"`
	Details        interface{} `json:"details,omitempty"`
	SuggestedFixes []FixAction `json:"suggestedFixes,omitempty"`
	cause          error       // Underlying error (not exported to JSON)
}

// New creates a new OagError
func New(code ErrorCode, message string, cause error) *OagError {
	return &OagError{
		Code:           code,
		Message:        message,
		cause:          cause,
		SuggestedFixes: GetSuggestedFixes(code),
	}
}

// Error implements the error interface
func (e *OagError) Error() string {
	switch {
	case e.cause != nil && e.Path != "":
		return fmt.Sprintf("[%s] %s (%s): %v", e.Code, e.Message, e.Path, e.cause)
	case e.cause != nil:
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.cause)
	case e.Path != "":
		return fmt.Sprintf("[%s] %s (%s)", e.Code, e.Message, e.Path)
	default:
		return fmt.Sprintf("[%s] %s", e.Code, e.Message)
	}
}

// Unwrap returns the underlying error
func (e *OagError) Unwrap() error {
	return e.cause
}

// WithPath attaches the file path the error relates to
func (e *OagError) WithPath(path string) *OagError {
	e.Path = path
	return e
}

// WithDetails adds details to the error
func (e *OagError) WithDetails(details interface{}) *OagError {
	e.Details = details
	return e
}

// ErrorActions maps error codes to suggested fix actions
var ErrorActions = map[ErrorCode][]FixAction{
	CacheCorrupt: {
		{
			Type:        RunCommand,
			Command:     "oag invalidate",
			Safe:        true,
			Description: "Discard the cache and rebuild it with a full scan",
		},
	},
	CacheVersionMismatch: {
		{
			Type:        RunCommand,
			Command:     "oag scan",
			Safe:        true,
			Description: "Run a full scan to rebuild the cache with the current schema",
		},
	},
	CacheExpired: {
		{
			Type:        RunCommand,
			Command:     "oag scan",
			Safe:        true,
			Description: "Refresh the cache with a full scan",
		},
	},
	FingerprintCollision: {
		{
			Type:        RunCommand,
			Command:     "oag scan --algorithm=strong",
			Safe:        true,
			Description: "Switch to the collision-resistant fingerprint algorithm",
		},
	},
	ProjectNotFound: {
		{
			Type:        RunCommand,
			Command:     "oag init <path>",
			Safe:        false,
			Description: "Initialize oag in an existing project directory",
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
