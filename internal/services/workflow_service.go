package services

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"n8n-mcp/pkg/models"
)

const (
	// DefaultListLimit is used when ListOptions.Limit is not positive.
	DefaultListLimit = 20
	// searchFetchLimit bounds how many workflows a search inspects.
	searchFetchLimit = 100
)

// ListOptions filters ListWorkflows.
type ListOptions struct {
	Active   *bool
	Tags     []string
	Limit    int
	UseCache bool
}

// WorkflowService is a service for managing n8n workflows.
type WorkflowService struct {
	*Client
}

// NewWorkflowService creates a new WorkflowService on top of client.
func NewWorkflowService(client *Client) *WorkflowService {
	return &WorkflowService{Client: client}
}

type listResponse struct {
	Data []*models.Workflow `json:"data"`
}

func workflowPath(id string) string {
	return "/workflows/" + url.PathEscape(id)
}

func (s *WorkflowService) decode(ctx context.Context, req request, out any) error {
	payload, err := s.do(ctx, req)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(payload, out); err != nil {
		return &TransportError{Kind: ErrUnexpected, Err: fmt.Errorf("decode %s %s: %w", req.method, req.path, err)}
	}
	return nil
}

// CreateWorkflow creates a workflow and returns it with its server assigned id.
func (s *WorkflowService) CreateWorkflow(ctx context.Context, wf *models.Workflow) (*models.Workflow, error) {
	if wf == nil || wf.Name == "" {
		return nil, fmt.Errorf("%w: workflow name is required", ErrInvalidArgument)
	}

	var created models.Workflow
	if err := s.decode(ctx, request{method: http.MethodPost, path: "/workflows", body: wf}, &created); err != nil {
		return nil, err
	}
	s.logger.Info("Created workflow", "workflow_id", created.ID, "name", created.Name)
	return &created, nil
}

// GetWorkflow fetches a workflow by id. A missing workflow yields nil, nil.
func (s *WorkflowService) GetWorkflow(ctx context.Context, id string, useCache bool) (*models.Workflow, error) {
	if id == "" {
		return nil, fmt.Errorf("%w: workflow id is required", ErrInvalidArgument)
	}

	var wf models.Workflow
	err := s.decode(ctx, request{method: http.MethodGet, path: workflowPath(id), useCache: useCache}, &wf)
	if IsNotFound(err) {
		s.logger.Warn("Workflow not found", "workflow_id", id)
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &wf, nil
}

// UpdateWorkflow replaces the workflow with id. Not found is an error here.
func (s *WorkflowService) UpdateWorkflow(ctx context.Context, id string, wf *models.Workflow) (*models.Workflow, error) {
	if id == "" {
		return nil, fmt.Errorf("%w: workflow id is required", ErrInvalidArgument)
	}
	if wf == nil {
		return nil, fmt.Errorf("%w: workflow is required", ErrInvalidArgument)
	}

	var updated models.Workflow
	if err := s.decode(ctx, request{method: http.MethodPut, path: workflowPath(id), body: wf}, &updated); err != nil {
		return nil, err
	}
	s.logger.Info("Updated workflow", "workflow_id", id)
	return &updated, nil
}

// DeleteWorkflow deletes a workflow. It reports false when it did not exist.
func (s *WorkflowService) DeleteWorkflow(ctx context.Context, id string) (bool, error) {
	return s.mutate(ctx, http.MethodDelete, id, "", "Deleted workflow")
}

// ActivateWorkflow activates a workflow. It reports false when it did not exist.
func (s *WorkflowService) ActivateWorkflow(ctx context.Context, id string) (bool, error) {
	return s.mutate(ctx, http.MethodPost, id, "/activate", "Activated workflow")
}

// DeactivateWorkflow deactivates a workflow. It reports false when it did not exist.
func (s *WorkflowService) DeactivateWorkflow(ctx context.Context, id string) (bool, error) {
	return s.mutate(ctx, http.MethodPost, id, "/deactivate", "Deactivated workflow")
}

func (s *WorkflowService) mutate(ctx context.Context, method, id, suffix, msg string) (bool, error) {
	if id == "" {
		return false, fmt.Errorf("%w: workflow id is required", ErrInvalidArgument)
	}

	_, err := s.do(ctx, request{method: method, path: workflowPath(id) + suffix})
	if IsNotFound(err) {
		s.logger.Warn("Workflow not found", "workflow_id", id)
		return false, nil
	}
	if err != nil {
		return false, err
	}
	s.logger.Info(msg, "workflow_id", id)
	return true, nil
}

// ListWorkflows lists workflows in server order.
func (s *WorkflowService) ListWorkflows(ctx context.Context, opts ListOptions) ([]*models.Workflow, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = DefaultListLimit
	}

	query := url.Values{}
	query.Set("limit", strconv.Itoa(limit))
	if opts.Active != nil {
		query.Set("active", strconv.FormatBool(*opts.Active))
	}
	if len(opts.Tags) > 0 {
		query.Set("tags", strings.Join(opts.Tags, ","))
	}

	var resp listResponse
	if err := s.decode(ctx, request{method: http.MethodGet, path: "/workflows", query: query, useCache: opts.UseCache}, &resp); err != nil {
		return nil, err
	}
	if resp.Data == nil {
		resp.Data = []*models.Workflow{}
	}
	return resp.Data, nil
}

// SearchWorkflows returns, in list order, up to limit workflows whose name or
// any tag name contains query, ignoring case. Only the first hundred
// workflows are inspected.
func (s *WorkflowService) SearchWorkflows(ctx context.Context, query string, limit int) ([]*models.Workflow, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}

	all, err := s.ListWorkflows(ctx, ListOptions{Limit: searchFetchLimit, UseCache: true})
	if err != nil {
		return nil, err
	}

	needle := strings.ToLower(query)
	matches := make([]*models.Workflow, 0, limit)
	for _, wf := range all {
		if len(matches) >= limit {
			break
		}
		if matchesQuery(wf, needle) {
			matches = append(matches, wf)
		}
	}

	s.logger.Info("Search completed", "query", query, "found", len(matches))
	return matches, nil
}

func matchesQuery(wf *models.Workflow, needle string) bool {
	if strings.Contains(strings.ToLower(wf.Name), needle) {
		return true
	}
	for _, tag := range wf.TagNames() {
		if strings.Contains(strings.ToLower(tag), needle) {
			return true
		}
	}
	return false
}

// ExecuteWorkflow starts an execution and returns n8n's raw response.
func (s *WorkflowService) ExecuteWorkflow(ctx context.Context, id string, input map[string]any) (map[string]any, error) {
	if id == "" {
		return nil, fmt.Errorf("%w: workflow id is required", ErrInvalidArgument)
	}

	body := models.ExecutionRequest{Input: input}
	body.WorkflowData.ID = id

	var result map[string]any
	if err := s.decode(ctx, request{method: http.MethodPost, path: "/executions", body: body}, &result); err != nil {
		return nil, err
	}
	s.logger.Info("Executed workflow", "workflow_id", id)
	return result, nil
}

// HealthCheck reports whether the n8n API answers. It never fails.
func (s *WorkflowService) HealthCheck(ctx context.Context) bool {
	query := url.Values{}
	query.Set("limit", "1")
	if _, err := s.do(ctx, request{method: http.MethodGet, path: "/workflows", query: query}); err != nil {
		s.logger.Error("Health check failed", "error", err)
		return false
	}
	return true
}
