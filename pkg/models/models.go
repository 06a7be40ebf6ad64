// Package models defines the data contracts shared by the n8n client, the
// MCP tool layer and the HTTP transport.
package models

import "time"

// HealthStatus represents service health
type HealthStatus struct {
	Status    string            `json:"status"`
	Service   string            `json:"service"`
	Version   string            `json:"version"`
	Timestamp time.Time         `json:"timestamp"`
	Checks    map[string]string `json:"checks,omitempty"`
}

// ProblemDetails represents RFC 7807 Problem Details
type ProblemDetails struct {
	Type     string `json:"type"`
	Title    string `json:"title"`
	Status   int    `json:"status"`
	Detail   string `json:"detail,omitempty"`
	Instance string `json:"instance,omitempty"`
}

// ExecutionRequest is the body of POST /executions.
type ExecutionRequest struct {
	WorkflowData struct {
		ID string `json:"id"`
	} `json:"workflowData"`
	Input map[string]any `json:"input,omitempty"`
}
