package models

import (
	"encoding/json"
	"time"
)

// Workflow represents an n8n workflow definition.
//
// Opaque structures (nodes, connections, tags and the settings blobs) are
// kept as raw JSON so they round-trip untouched. A nil field is never
// serialized, which keeps n8n's own defaulting in charge of anything the
// caller did not set explicitly.
type Workflow struct {
	ID          string          `json:"id,omitempty"`
	Name        string          `json:"name"`
	Nodes       json.RawMessage `json:"nodes,omitempty"`
	Connections json.RawMessage `json:"connections,omitempty"`
	Active      *bool           `json:"active,omitempty"`
	Settings    json.RawMessage `json:"settings,omitempty"`
	StaticData  json.RawMessage `json:"staticData,omitempty"`
	Tags        json.RawMessage `json:"tags,omitempty"`
	PinData     json.RawMessage `json:"pinData,omitempty"`
	VersionID   string          `json:"versionId,omitempty"`
	CreatedAt   *time.Time      `json:"createdAt,omitempty"`
	UpdatedAt   *time.Time      `json:"updatedAt,omitempty"`
}

// WorkflowSummary is the compact form returned by the list style tools.
type WorkflowSummary struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Active     bool   `json:"active"`
	NodesCount int    `json:"nodes_count"`
}

// Tag is the part of an n8n tag record used for matching.
type Tag struct {
	ID   string `json:"id,omitempty"`
	Name string `json:"name"`
}

// IsActive reports the active flag, treating an absent value as false.
func (w *Workflow) IsActive() bool {
	return w.Active != nil && *w.Active
}

// NodeCount returns the number of nodes, or 0 when nodes are absent or not an array.
func (w *Workflow) NodeCount() int {
	if len(w.Nodes) == 0 {
		return 0
	}
	var nodes []json.RawMessage
	if err := json.Unmarshal(w.Nodes, &nodes); err != nil {
		return 0
	}
	return len(nodes)
}

// TagNames returns the name of every tag record, in order. Records without a
// name contribute an empty string.
func (w *Workflow) TagNames() []string {
	if len(w.Tags) == 0 {
		return nil
	}
	var tags []Tag
	if err := json.Unmarshal(w.Tags, &tags); err != nil {
		return nil
	}
	names := make([]string, 0, len(tags))
	for _, t := range tags {
		names = append(names, t.Name)
	}
	return names
}

// Summary builds the compact representation of w.
func (w *Workflow) Summary() WorkflowSummary {
	return WorkflowSummary{
		ID:         w.ID,
		Name:       w.Name,
		Active:     w.IsActive(),
		NodesCount: w.NodeCount(),
	}
}

// Bool returns a pointer to b, for populating optional flags.
func Bool(b bool) *bool {
	return &b
}
