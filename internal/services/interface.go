package services

import (
	"context"

	"n8n-mcp/pkg/models"
)

// WorkflowAPI is the set of workflow operations the tool layer depends on.
type WorkflowAPI interface {
	CreateWorkflow(ctx context.Context, wf *models.Workflow) (*models.Workflow, error)
	// GetWorkflow returns nil and no error when the workflow does not exist.
	GetWorkflow(ctx context.Context, id string, useCache bool) (*models.Workflow, error)
	UpdateWorkflow(ctx context.Context, id string, wf *models.Workflow) (*models.Workflow, error)
	DeleteWorkflow(ctx context.Context, id string) (bool, error)
	ListWorkflows(ctx context.Context, opts ListOptions) ([]*models.Workflow, error)
	SearchWorkflows(ctx context.Context, query string, limit int) ([]*models.Workflow, error)
	ActivateWorkflow(ctx context.Context, id string) (bool, error)
	DeactivateWorkflow(ctx context.Context, id string) (bool, error)
	ExecuteWorkflow(ctx context.Context, id string, input map[string]any) (map[string]any, error)
	HealthCheck(ctx context.Context) bool
	BaseURL() string
}

var _ WorkflowAPI = (*WorkflowService)(nil)
