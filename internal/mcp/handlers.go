package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	"n8n-mcp/internal/services"
	"n8n-mcp/pkg/models"
)

var (
	emptyArray  = json.RawMessage(`[]`)
	emptyObject = json.RawMessage(`{}`)
)

func summaries(wfs []*models.Workflow) []models.WorkflowSummary {
	out := make([]models.WorkflowSummary, 0, len(wfs))
	for _, wf := range wfs {
		out = append(out, wf.Summary())
	}
	return out
}

// applyArgs copies the supplied workflow fields from args onto wf.
func applyArgs(wf *models.Workflow, args arguments) error {
	if args.has("name") {
		wf.Name = args.getString("name")
	}
	if args.has("active") {
		wf.Active = args.optionalBool("active")
	}
	for key, dst := range map[string]*json.RawMessage{
		"nodes":       &wf.Nodes,
		"connections": &wf.Connections,
		"tags":        &wf.Tags,
		"settings":    &wf.Settings,
	} {
		v, err := args.raw(key, *dst)
		if err != nil {
			return fmt.Errorf("%w: %s: %v", services.ErrInvalidArgument, key, err)
		}
		*dst = v
	}
	return nil
}

func (s *Server) handleCreateWorkflow(ctx context.Context, args arguments) (map[string]any, error) {
	wf := &models.Workflow{
		Nodes:       emptyArray,
		Connections: emptyObject,
		Settings:    emptyObject,
	}
	if err := applyArgs(wf, args); err != nil {
		return nil, err
	}

	created, err := s.workflows.CreateWorkflow(ctx, wf)
	if err != nil {
		return nil, err
	}
	return map[string]any{
		"message":  fmt.Sprintf("Workflow '%s' created successfully", created.Name),
		"workflow": created.Summary(),
	}, nil
}

func (s *Server) handleGetWorkflow(ctx context.Context, args arguments) (map[string]any, error) {
	id := args.getString("workflow_id")
	wf, err := s.workflows.GetWorkflow(ctx, id, args.getBool("use_cache", true))
	if err != nil {
		return nil, err
	}
	if wf == nil {
		return nil, &notFoundError{id: id}
	}
	return map[string]any{"workflow": wf}, nil
}

func (s *Server) handleListWorkflows(ctx context.Context, args arguments) (map[string]any, error) {
	wfs, err := s.workflows.ListWorkflows(ctx, services.ListOptions{
		Active:   args.optionalBool("active"),
		Tags:     args.getStrings("tags"),
		Limit:    args.getInt("limit", defaultLimit),
		UseCache: true,
	})
	if err != nil {
		return nil, err
	}
	return map[string]any{
		"count":     len(wfs),
		"workflows": summaries(wfs),
	}, nil
}

func (s *Server) handleSearchWorkflows(ctx context.Context, args arguments) (map[string]any, error) {
	query := args.getString("query")
	wfs, err := s.workflows.SearchWorkflows(ctx, query, args.getInt("limit", defaultLimit))
	if err != nil {
		return nil, err
	}
	return map[string]any{
		"query":     query,
		"found":     len(wfs),
		"workflows": summaries(wfs),
	}, nil
}

// handleUpdateWorkflow merges the supplied fields onto the current state of
// the workflow and sends the result as a full replacement.
func (s *Server) handleUpdateWorkflow(ctx context.Context, args arguments) (map[string]any, error) {
	id := args.getString("workflow_id")
	current, err := s.workflows.GetWorkflow(ctx, id, false)
	if err != nil {
		return nil, err
	}
	if current == nil {
		return nil, &notFoundError{id: id}
	}

	merged := &models.Workflow{
		Name:        current.Name,
		Nodes:       current.Nodes,
		Connections: current.Connections,
		Active:      current.Active,
		Tags:        current.Tags,
		Settings:    current.Settings,
	}
	if merged.Settings == nil {
		merged.Settings = emptyObject
	}
	if err := applyArgs(merged, args); err != nil {
		return nil, err
	}

	updated, err := s.workflows.UpdateWorkflow(ctx, id, merged)
	if services.IsNotFound(err) {
		return nil, &notFoundError{id: id}
	}
	if err != nil {
		return nil, err
	}
	return map[string]any{
		"message":  fmt.Sprintf("Workflow '%s' updated successfully", updated.Name),
		"workflow": updated.Summary(),
	}, nil
}

func (s *Server) handleDeleteWorkflow(ctx context.Context, args arguments) (map[string]any, error) {
	id := args.getString("workflow_id")
	ok, err := s.workflows.DeleteWorkflow(ctx, id)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, &notFoundError{id: id}
	}
	return map[string]any{
		"message":     fmt.Sprintf("Workflow '%s' deleted successfully", id),
		"workflow_id": id,
	}, nil
}

func (s *Server) handleActivateWorkflow(ctx context.Context, args arguments) (map[string]any, error) {
	return s.setActive(ctx, args, true)
}

func (s *Server) handleDeactivateWorkflow(ctx context.Context, args arguments) (map[string]any, error) {
	return s.setActive(ctx, args, false)
}

func (s *Server) setActive(ctx context.Context, args arguments, active bool) (map[string]any, error) {
	id := args.getString("workflow_id")
	op, verb := s.workflows.ActivateWorkflow, "activated"
	if !active {
		op, verb = s.workflows.DeactivateWorkflow, "deactivated"
	}

	ok, err := op(ctx, id)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, &notFoundError{id: id}
	}
	return map[string]any{
		"message":     fmt.Sprintf("Workflow '%s' %s successfully", id, verb),
		"workflow_id": id,
		"active":      active,
	}, nil
}

// handleHealthCheck never fails; an unreachable API is reported as healthy=false.
func (s *Server) handleHealthCheck(ctx context.Context, _ arguments) (map[string]any, error) {
	healthy := s.workflows.HealthCheck(ctx)
	message := "n8n API is accessible"
	if !healthy {
		message = "n8n API is not accessible"
	}
	return map[string]any{
		"healthy":  healthy,
		"message":  message,
		"endpoint": s.workflows.BaseURL(),
	}, nil
}
