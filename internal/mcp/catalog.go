package mcp

import "github.com/mark3labs/mcp-go/mcp"

// ToolName identifies one tool exposed by the server.
type ToolName string

const (
	ToolCreateWorkflow     ToolName = "create_workflow"
	ToolGetWorkflow        ToolName = "get_workflow"
	ToolListWorkflows      ToolName = "list_workflows"
	ToolSearchWorkflows    ToolName = "search_workflows"
	ToolUpdateWorkflow     ToolName = "update_workflow"
	ToolDeleteWorkflow     ToolName = "delete_workflow"
	ToolActivateWorkflow   ToolName = "activate_workflow"
	ToolDeactivateWorkflow ToolName = "deactivate_workflow"
	ToolHealthCheck        ToolName = "health_check"
)

const (
	defaultLimit = 20
	maxLimit     = 100
)

var objectItems = map[string]any{"type": "object"}

// whole narrows a number property to integers.
func whole() mcp.PropertyOption {
	return func(schema map[string]any) {
		schema["type"] = "integer"
	}
}

// Catalog returns the definitions of every tool, in presentation order.
func Catalog() []mcp.Tool {
	return []mcp.Tool{
		mcp.NewTool(string(ToolCreateWorkflow),
			mcp.WithDescription("Create a new n8n workflow"),
			mcp.WithString("name", mcp.Required(), mcp.Description("Name of the workflow")),
			mcp.WithArray("nodes", mcp.Description("Workflow nodes configuration"), mcp.Items(objectItems)),
			mcp.WithObject("connections", mcp.Description("Node connections configuration")),
			mcp.WithBoolean("active", mcp.Description("Whether the workflow should be active")),
			mcp.WithArray("tags", mcp.Description("Workflow tags"), mcp.Items(objectItems)),
			mcp.WithObject("settings", mcp.Description("Workflow settings")),
			mcp.WithDestructiveHintAnnotation(false),
		),
		mcp.NewTool(string(ToolGetWorkflow),
			mcp.WithDescription("Get a specific workflow by ID"),
			mcp.WithString("workflow_id", mcp.Required(), mcp.Description("ID of the workflow to retrieve")),
			mcp.WithBoolean("use_cache", mcp.Description("Whether to use cached data"), mcp.DefaultBool(true)),
			mcp.WithReadOnlyHintAnnotation(true),
		),
		mcp.NewTool(string(ToolListWorkflows),
			mcp.WithDescription("List workflows with optional filters"),
			mcp.WithBoolean("active", mcp.Description("Filter by active status (optional)")),
			mcp.WithArray("tags", mcp.Description("Filter by tags (optional)"), mcp.WithStringItems()),
			mcp.WithNumber("limit",
				mcp.Description("Maximum number of workflows to return"),
				whole(), mcp.DefaultNumber(defaultLimit), mcp.Min(1), mcp.Max(maxLimit),
			),
			mcp.WithReadOnlyHintAnnotation(true),
		),
		mcp.NewTool(string(ToolSearchWorkflows),
			mcp.WithDescription("Search workflows by name or tags"),
			mcp.WithString("query", mcp.Required(), mcp.Description("Search query (searches in name and tags)")),
			mcp.WithNumber("limit",
				mcp.Description("Maximum number of results"),
				whole(), mcp.DefaultNumber(defaultLimit), mcp.Min(1), mcp.Max(maxLimit),
			),
			mcp.WithReadOnlyHintAnnotation(true),
		),
		mcp.NewTool(string(ToolUpdateWorkflow),
			mcp.WithDescription("Update an existing workflow"),
			mcp.WithString("workflow_id", mcp.Required(), mcp.Description("ID of the workflow to update")),
			mcp.WithString("name", mcp.Description("New name for the workflow (optional)")),
			mcp.WithArray("nodes", mcp.Description("Updated nodes configuration (optional)"), mcp.Items(objectItems)),
			mcp.WithObject("connections", mcp.Description("Updated connections configuration (optional)")),
			mcp.WithBoolean("active", mcp.Description("Whether the workflow should be active (optional)")),
			mcp.WithArray("tags", mcp.Description("Updated tags (optional)"), mcp.Items(objectItems)),
			mcp.WithObject("settings", mcp.Description("Updated workflow settings (optional)")),
			mcp.WithDestructiveHintAnnotation(true),
		),
		mcp.NewTool(string(ToolDeleteWorkflow),
			mcp.WithDescription("Delete a workflow"),
			mcp.WithString("workflow_id", mcp.Required(), mcp.Description("ID of the workflow to delete")),
			mcp.WithDestructiveHintAnnotation(true),
		),
		mcp.NewTool(string(ToolActivateWorkflow),
			mcp.WithDescription("Activate a workflow to make it run automatically"),
			mcp.WithString("workflow_id", mcp.Required(), mcp.Description("ID of the workflow to activate")),
			mcp.WithIdempotentHintAnnotation(true),
		),
		mcp.NewTool(string(ToolDeactivateWorkflow),
			mcp.WithDescription("Deactivate a workflow to stop it from running automatically"),
			mcp.WithString("workflow_id", mcp.Required(), mcp.Description("ID of the workflow to deactivate")),
			mcp.WithIdempotentHintAnnotation(true),
		),
		mcp.NewTool(string(ToolHealthCheck),
			mcp.WithDescription("Check n8n API connection health"),
			mcp.WithReadOnlyHintAnnotation(true),
		),
	}
}
