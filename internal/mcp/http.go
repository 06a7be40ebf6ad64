package mcp

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"os"

	"github.com/labstack/echo/v4"
	"github.com/mark3labs/mcp-go/server"
)

const basePath = "/mcp"

// MountHTTPHandlers exposes the server on g: streamable HTTP at /mcp and the
// legacy SSE transport at /mcp/sse with messages posted to /mcp/message.
func MountHTTPHandlers(g *echo.Group, s *Server) {
	streamable := server.NewStreamableHTTPServer(s.mcpServer, server.WithEndpointPath(basePath))
	sse := server.NewSSEServer(s.mcpServer, server.WithStaticBasePath(basePath))

	g.Any(basePath, echo.WrapHandler(streamable), s.rerouteBody)
	g.GET(basePath+"/sse", echo.WrapHandler(sse))
	g.POST(basePath+"/message", echo.WrapHandler(sse), s.rerouteBody)
}

// rerouteBody applies reroute to POSTed JSON-RPC messages.
func (s *Server) rerouteBody(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		req := c.Request()
		if req.Method != http.MethodPost || req.Body == nil {
			return next(c)
		}
		body, err := io.ReadAll(req.Body)
		req.Body.Close()
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "failed to read request body")
		}
		body = s.reroute(body)
		req.Body = io.NopCloser(bytes.NewReader(body))
		req.ContentLength = int64(len(body))
		return next(c)
	}
}

// ServeStdio serves the tool set over stdin and stdout until the input
// closes or ctx is done.
func (s *Server) ServeStdio(ctx context.Context) error {
	s.logger.Info("n8n MCP Server started and ready for connections", "transport", "stdio")
	return s.serveStdio(ctx, os.Stdin, os.Stdout)
}

func (s *Server) serveStdio(ctx context.Context, in io.Reader, out io.Writer) error {
	stdio := server.NewStdioServer(s.mcpServer)
	stdio.SetErrorLogger(s.logger.StandardLog())
	return stdio.Listen(ctx, newReroutingReader(in, s.reroute), out)
}
