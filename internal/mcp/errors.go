// Package mcp implements the Model Context Protocol (MCP) server for CodeScout.
package mcp

import (
	"errors"
	"fmt"

	scouterrors "github.com/codescout-dev/codescout/internal/errors"
)

// Custom MCP error codes for CodeScout.
const (
	// ErrCodeEmbeddingFailed indicates embedding generation failed.
	ErrCodeEmbeddingFailed = -32002

	// ErrCodeTimeout indicates the request timed out.
	ErrCodeTimeout = -32003

	// Standard JSON-RPC error codes.
	ErrCodeInvalidParams = -32602
	ErrCodeInternalError = -32603
)

// MCPError represents an MCP protocol error with code and message.
type MCPError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// Error implements the error interface.
func (e *MCPError) Error() string {
	return fmt.Sprintf("MCP error %d: %s", e.Code, e.Message)
}

// NewInvalidParamsError creates an invalid-params protocol error.
func NewInvalidParamsError(msg string) *MCPError {
	return &MCPError{Code: ErrCodeInvalidParams, Message: msg}
}

// MapError converts internal errors to MCP errors.
func MapError(err error) *MCPError {
	if err == nil {
		return nil
	}

	var scoutErr *scouterrors.ScoutError
	if errors.As(err, &scoutErr) {
		switch scoutErr.Code {
		case scouterrors.ErrCodeInvalidInput, scouterrors.ErrCodeUnknownCategory:
			return &MCPError{Code: ErrCodeInvalidParams, Message: scoutErr.Error()}
		case scouterrors.ErrCodeEmbedFailed:
			return &MCPError{Code: ErrCodeEmbeddingFailed, Message: scoutErr.Error()}
		case scouterrors.ErrCodeNetworkTimeout:
			return &MCPError{Code: ErrCodeTimeout, Message: scoutErr.Error()}
		default:
			return &MCPError{Code: ErrCodeInternalError, Message: scoutErr.Error()}
		}
	}

	return &MCPError{Code: ErrCodeInternalError, Message: err.Error()}
}
