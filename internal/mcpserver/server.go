// Package mcpserver exposes the capability registry over the Model Context
// Protocol, so MCP-speaking clients (editors, agent shells) can call the same
// tools the chat loop dispatches, with the same schema validation in front.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/sirupsen/logrus"

	"github.com/jaykumar-cb/buster/internal/domain/tool"
	"github.com/jaykumar-cb/buster/internal/version"
)

const serverName = "buster"

// Server bridges a sealed capability registry to an MCP server.
type Server struct {
	registry *tool.Registry
	ec       *tool.ExecContext
	log      *logrus.Entry
	impl     *mcp.Server
}

// New builds an MCP server exposing every capability in registry. All calls
// execute under ec, since MCP clients carry no workspace identity of their own.
func New(registry *tool.Registry, ec *tool.ExecContext, log *logrus.Entry) *Server {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	s := &Server{
		registry: registry,
		ec:       ec,
		log:      log.WithField("component", "mcp"),
	}

	s.impl = mcp.NewServer(&mcp.Implementation{Name: serverName, Version: version.Version}, nil)
	for _, desc := range registry.Descriptors() {
		s.impl.AddTool(&mcp.Tool{
			Name:        desc.Name,
			Description: desc.Description,
			InputSchema: toolSchema(desc),
		}, s.handlerFor(desc.Name))
	}
	return s
}

// Run serves MCP over stdin/stdout until ctx is cancelled or the client
// disconnects.
func (s *Server) Run(ctx context.Context) error {
	s.log.WithField("tools", s.registry.Len()).Info("mcp server starting on stdio")
	return s.impl.Run(ctx, &mcp.StdioTransport{})
}

// Impl returns the underlying MCP server, for wiring custom transports.
func (s *Server) Impl() *mcp.Server { return s.impl }

func (s *Server) handlerFor(name string) mcp.ToolHandler {
	return func(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		args := json.RawMessage(req.Params.Arguments)

		if err := s.registry.ValidateArgs(name, args); err != nil {
			return errorResult(fmt.Sprintf("invalid arguments for %s: %v", name, err)), nil
		}

		capability, err := s.registry.Lookup(name)
		if err != nil {
			return errorResult(err.Error()), nil
		}

		payload, err := capability.Execute(ctx, args, s.ec)
		if err != nil {
			s.log.WithError(err).WithField("capability", name).Warn("mcp call failed")
			return errorResult(err.Error()), nil
		}
		if len(payload) == 0 {
			payload = json.RawMessage(`{}`)
		}
		return &mcp.CallToolResult{
			Content: []mcp.Content{&mcp.TextContent{Text: string(payload)}},
		}, nil
	}
}

func errorResult(msg string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		IsError: true,
		Content: []mcp.Content{&mcp.TextContent{Text: msg}},
	}
}

func toolSchema(desc tool.Descriptor) any {
	if len(desc.InputSchema) == 0 {
		return json.RawMessage(`{"type":"object"}`)
	}
	return desc.InputSchema
}
