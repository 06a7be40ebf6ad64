// Package api contains the plain HTTP surface served next to the MCP transport.
package api

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"n8n-mcp/internal/services"
	"n8n-mcp/pkg/models"
)

// Server exposes read-only workflow endpoints backed by the n8n client.
type Server struct {
	Workflows services.WorkflowAPI
}

// NewServer creates a new Server.
func NewServer(workflows services.WorkflowAPI) *Server {
	return &Server{Workflows: workflows}
}

// RegisterHandlers mounts the workflow endpoints on g.
func RegisterHandlers(g *echo.Group, s *Server) {
	g.GET("/workflows", s.ListWorkflows)
	g.GET("/workflows/:id", s.GetWorkflow)
}

// ListWorkflows returns workflow summaries
// (GET /api/v1/workflows?active=&tags=&limit=)
func (s *Server) ListWorkflows(c echo.Context) error {
	opts := services.ListOptions{UseCache: true}

	if v := c.QueryParam("active"); v != "" {
		active, err := strconv.ParseBool(v)
		if err != nil {
			writeError(c.Response(), http.StatusBadRequest, "Bad Request", "active must be true or false")
			return nil
		}
		opts.Active = &active
	}
	if v := c.QueryParam("tags"); v != "" {
		opts.Tags = strings.Split(v, ",")
	}
	if v := c.QueryParam("limit"); v != "" {
		limit, err := strconv.Atoi(v)
		if err != nil || limit < 1 || limit > 100 {
			writeError(c.Response(), http.StatusBadRequest, "Bad Request", "limit must be between 1 and 100")
			return nil
		}
		opts.Limit = limit
	}

	workflows, err := s.Workflows.ListWorkflows(c.Request().Context(), opts)
	if err != nil {
		writeUpstreamError(c, err)
		return nil
	}

	summaries := make([]models.WorkflowSummary, 0, len(workflows))
	for _, wf := range workflows {
		summaries = append(summaries, wf.Summary())
	}
	writeJSON(c.Response(), http.StatusOK, summaries)
	return nil
}

// GetWorkflow returns one workflow
// (GET /api/v1/workflows/{id})
func (s *Server) GetWorkflow(c echo.Context) error {
	id := c.Param("id")
	wf, err := s.Workflows.GetWorkflow(c.Request().Context(), id, true)
	if err != nil {
		writeUpstreamError(c, err)
		return nil
	}
	if wf == nil {
		writeError(c.Response(), http.StatusNotFound, "Not Found", "Workflow not found: "+id)
		return nil
	}
	writeJSON(c.Response(), http.StatusOK, wf)
	return nil
}

func writeUpstreamError(c echo.Context, err error) {
	status := http.StatusBadGateway
	var apiErr *services.APIError
	if errors.As(err, &apiErr) && apiErr.StatusCode < 500 {
		status = apiErr.StatusCode
	}
	if errors.Is(err, services.ErrTimeout) {
		status = http.StatusGatewayTimeout
	}
	writeError(c.Response(), status, http.StatusText(status), err.Error())
}
