package mcp

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"io"

	"github.com/mark3labs/mcp-go/mcp"
)

// unknownTool receives tools/call requests naming a tool that is not in the
// catalog, so they are answered with the usual failure envelope instead of a
// JSON-RPC error. It is registered but never listed.
const unknownTool = "_unknown_tool"

func (s *Server) known(name string) bool {
	_, ok := s.tools[ToolName(name)]
	return ok
}

// reroute rewrites a tools/call message for an uncatalogued tool so that it
// targets unknownTool, carrying the requested name as the "tool" argument.
// Any other message is returned unchanged.
func (s *Server) reroute(raw []byte) []byte {
	var msg map[string]json.RawMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		return raw
	}
	var method string
	if err := json.Unmarshal(msg["method"], &method); err != nil || method != string(mcp.MethodToolsCall) {
		return raw
	}
	var params map[string]json.RawMessage
	if err := json.Unmarshal(msg["params"], &params); err != nil {
		return raw
	}
	var name string
	if err := json.Unmarshal(params["name"], &name); err != nil || s.known(name) {
		return raw
	}

	params["name"], _ = json.Marshal(unknownTool)
	params["arguments"], _ = json.Marshal(map[string]string{"tool": name})
	rewritten, err := json.Marshal(params)
	if err != nil {
		return raw
	}
	msg["params"] = rewritten
	out, err := json.Marshal(msg)
	if err != nil {
		return raw
	}
	return out
}

func (s *Server) handleUnknownTool(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return s.Dispatch(ctx, req.GetString("tool", ""), nil), nil
}

func hideUnknownTool(_ context.Context, tools []mcp.Tool) []mcp.Tool {
	listed := make([]mcp.Tool, 0, len(tools))
	for _, t := range tools {
		if t.Name != unknownTool {
			listed = append(listed, t)
		}
	}
	return listed
}

// HandleMessage processes one JSON-RPC message the way the transports do.
func (s *Server) HandleMessage(ctx context.Context, raw json.RawMessage) mcp.JSONRPCMessage {
	return s.mcpServer.HandleMessage(ctx, s.reroute(raw))
}

// reroutingReader applies reroute to each newline-delimited message read
// from src.
type reroutingReader struct {
	src     *bufio.Reader
	reroute func([]byte) []byte
	pending []byte
	err     error
}

func newReroutingReader(src io.Reader, reroute func([]byte) []byte) *reroutingReader {
	return &reroutingReader{src: bufio.NewReader(src), reroute: reroute}
}

func (r *reroutingReader) Read(p []byte) (int, error) {
	for len(r.pending) == 0 {
		if r.err != nil {
			return 0, r.err
		}
		line, err := r.src.ReadBytes('\n')
		r.err = err
		if trimmed := bytes.TrimSpace(line); len(trimmed) > 0 {
			r.pending = append(r.reroute(trimmed), '\n')
		}
	}
	n := copy(p, r.pending)
	r.pending = r.pending[n:]
	return n, nil
}
