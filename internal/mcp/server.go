// Package mcp exposes the n8n workflow operations as Model Context Protocol tools.
package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/kaptinlin/jsonschema"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"n8n-mcp/internal/logging"
	"n8n-mcp/internal/observability"
	"n8n-mcp/internal/services"
)

// Options configures NewServer.
type Options struct {
	Name    string
	Version string
	Logger  *logging.Logger
	Metrics *observability.Metrics
	// SlowCallThreshold logs a warning for tool calls that take longer. Zero disables it.
	SlowCallThreshold time.Duration
}

type handlerFunc func(ctx context.Context, args arguments) (map[string]any, error)

// tool binds a catalog entry to its compiled input schema and handler.
type tool struct {
	def    mcp.Tool
	schema *jsonschema.Schema
	action string
	handle handlerFunc
}

// Server dispatches tool calls to the workflow service.
type Server struct {
	mcpServer *server.MCPServer
	workflows services.WorkflowAPI
	logger    *logging.Logger
	metrics   *observability.Metrics
	slowCall  time.Duration
	tools     map[ToolName]*tool
}

// NewServer builds the tool table and registers it on a new MCP server.
func NewServer(workflows services.WorkflowAPI, opts Options) (*Server, error) {
	if opts.Name == "" {
		opts.Name = "n8n-workflow-manager"
	}
	if opts.Version == "" {
		opts.Version = "1.0.0"
	}
	if opts.Logger == nil {
		opts.Logger = logging.Nop()
	}

	s := &Server{
		mcpServer: server.NewMCPServer(
			opts.Name,
			opts.Version,
			server.WithToolCapabilities(true),
			server.WithToolFilter(hideUnknownTool),
			server.WithRecovery(),
		),
		workflows: workflows,
		logger:    opts.Logger,
		metrics:   opts.Metrics,
		slowCall:  opts.SlowCallThreshold,
	}

	if err := s.registerTools(); err != nil {
		return nil, err
	}
	s.logger.Info("n8n MCP Server initialized", "server_name", opts.Name, "version", opts.Version)
	return s, nil
}

// MCPServer returns the underlying protocol server.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcpServer
}

type binding struct {
	action string
	handle handlerFunc
}

func (s *Server) handlers() map[ToolName]binding {
	return map[ToolName]binding{
		ToolCreateWorkflow:     {"creating workflow", s.handleCreateWorkflow},
		ToolGetWorkflow:        {"getting workflow", s.handleGetWorkflow},
		ToolListWorkflows:      {"listing workflows", s.handleListWorkflows},
		ToolSearchWorkflows:    {"searching workflows", s.handleSearchWorkflows},
		ToolUpdateWorkflow:     {"updating workflow", s.handleUpdateWorkflow},
		ToolDeleteWorkflow:     {"deleting workflow", s.handleDeleteWorkflow},
		ToolActivateWorkflow:   {"activating workflow", s.handleActivateWorkflow},
		ToolDeactivateWorkflow: {"deactivating workflow", s.handleDeactivateWorkflow},
		ToolHealthCheck:        {"checking health", s.handleHealthCheck},
	}
}

func (s *Server) registerTools() error {
	handlers := s.handlers()
	s.tools = make(map[ToolName]*tool, len(handlers))

	for _, def := range Catalog() {
		name := ToolName(def.Name)
		h, ok := handlers[name]
		if !ok {
			return fmt.Errorf("no handler for tool %q", def.Name)
		}
		schema, err := compileSchema(def)
		if err != nil {
			return fmt.Errorf("compile schema for tool %q: %w", def.Name, err)
		}
		s.tools[name] = &tool{def: def, schema: schema, action: h.action, handle: h.handle}

		s.mcpServer.AddTool(def, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			return s.Dispatch(ctx, req.Params.Name, req.GetArguments()), nil
		})
	}
	s.mcpServer.AddTool(mcp.NewTool(unknownTool, mcp.WithString("tool")), s.handleUnknownTool)
	return nil
}

func compileSchema(def mcp.Tool) (*jsonschema.Schema, error) {
	raw, err := json.Marshal(def.InputSchema)
	if err != nil {
		return nil, err
	}
	return jsonschema.NewCompiler().Compile(raw)
}

// Dispatch runs the named tool and always returns exactly one text content
// item holding a JSON envelope. Failures are reported in the envelope, never
// as a Go error.
func (s *Server) Dispatch(ctx context.Context, name string, args map[string]any) *mcp.CallToolResult {
	start := time.Now()
	logger := s.logger.With("request_id", uuid.NewString(), "tool", name)
	logger.Info("Tool called", "arguments", args)

	payload, err := s.invoke(ctx, ToolName(name), arguments(args))

	elapsed := time.Since(start)
	s.metrics.RecordToolCall(ctx, name, err == nil, elapsed)
	if s.slowCall > 0 && elapsed > s.slowCall {
		logger.Warn("Slow tool call", "elapsed", elapsed, "threshold", s.slowCall)
	}

	if err != nil {
		logger.Error("Tool execution error", "error", err)
		return errorResult(err.Error())
	}
	payload["success"] = true
	return textResult(payload)
}

func (s *Server) invoke(ctx context.Context, name ToolName, args arguments) (map[string]any, error) {
	t, ok := s.tools[name]
	if !ok {
		return nil, fmt.Errorf("Unknown tool: %s", name)
	}
	if args == nil {
		args = arguments{}
	}
	if err := t.validate(args); err != nil {
		return nil, err
	}

	payload, err := t.handle(ctx, args)
	if err == nil {
		return payload, nil
	}

	var nf *notFoundError
	if errors.As(err, &nf) {
		return nil, nf
	}
	return nil, fmt.Errorf("Error %s: %w", t.action, err)
}

// validate checks required fields in declaration order, then the full schema.
func (t *tool) validate(args arguments) error {
	for _, field := range t.def.InputSchema.Required {
		if !args.has(field) {
			return fmt.Errorf("Missing required field: %s", field)
		}
	}
	if t.schema == nil {
		return nil
	}

	// normalise Go numeric types to their JSON form before validating
	raw, err := json.Marshal(args)
	if err != nil {
		return fmt.Errorf("Invalid arguments: %w", err)
	}
	var instance map[string]any
	if err := json.Unmarshal(raw, &instance); err != nil {
		return fmt.Errorf("Invalid arguments: %w", err)
	}

	result := t.schema.Validate(instance)
	if result.Valid {
		return nil
	}
	problems := make([]string, 0, len(result.Errors))
	for _, e := range result.Errors {
		problems = append(problems, e.Error())
	}
	sort.Strings(problems)
	return fmt.Errorf("Invalid arguments: %s", strings.Join(problems, "; "))
}

// notFoundError reports a workflow that does not exist.
type notFoundError struct {
	id string
}

func (e *notFoundError) Error() string {
	return "Workflow not found: " + e.id
}

func textResult(payload map[string]any) *mcp.CallToolResult {
	data, err := json.Marshal(payload)
	if err != nil {
		return errorResult(fmt.Sprintf("encode result: %v", err))
	}
	return mcp.NewToolResultText(string(data))
}

func errorResult(message string) *mcp.CallToolResult {
	data, _ := json.Marshal(map[string]any{"success": false, "error": message})
	return mcp.NewToolResultError(string(data))
}
