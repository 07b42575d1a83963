package server

import (
	"context"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/lingua-lens/lens/pkg/protocol"
)

// TranslateInput is the translate tool's argument object.
type TranslateInput struct {
	Text       string `json:"text" jsonschema:"the subtitle line to translate"`
	SourceLang string `json:"source_lang,omitempty" jsonschema:"source language name, or auto; defaults to the user setting"`
	TargetLang string `json:"target_lang,omitempty" jsonschema:"target language name; defaults to the user setting"`
}

// InitInput is the init_engine tool's argument object.
type InitInput struct {
	ModelID string `json:"model_id,omitempty" jsonschema:"model to load; defaults to the hardware recommendation"`
}

// ClearCacheOutput is the clear_cache tool's result.
type ClearCacheOutput struct {
	Cleared bool `json:"cleared"`
}

// NewMCPServer exposes the host's operations as MCP tools.
func NewMCPServer(host *Host, version string) *mcp.Server {
	server := mcp.NewServer(&mcp.Implementation{Name: "lens", Version: version}, nil)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "translate",
		Description: "Translate one subtitle line and explain its meaning, key phrase, pronunciation and usage.",
	}, func(ctx context.Context, _ *mcp.CallToolRequest, in TranslateInput) (*mcp.CallToolResult, protocol.TranslateResponse, error) {
		reply := host.Handle(ctx, protocol.TranslateRequest{
			Text:       in.Text,
			SourceLang: in.SourceLang,
			TargetLang: in.TargetLang,
		})
		switch r := reply.(type) {
		case protocol.TranslateResponse:
			return nil, r, nil
		case protocol.Error:
			return nil, protocol.TranslateResponse{}, fmt.Errorf("%s", r.Error)
		default:
			return nil, protocol.TranslateResponse{}, fmt.Errorf("unexpected reply %s", reply.Type())
		}
	})

	mcp.AddTool(server, &mcp.Tool{
		Name:        "status",
		Description: "Report whether a local model is loaded and what the hardware can run.",
	}, func(ctx context.Context, _ *mcp.CallToolRequest, _ struct{}) (*mcp.CallToolResult, protocol.StatusResponse, error) {
		reply := host.Handle(ctx, protocol.GetStatus{})
		status, ok := reply.(protocol.StatusResponse)
		if !ok {
			return nil, protocol.StatusResponse{}, fmt.Errorf("unexpected reply %s", reply.Type())
		}
		return nil, status, nil
	})

	mcp.AddTool(server, &mcp.Tool{
		Name:        "init_engine",
		Description: "Download and load a local model. Returns immediately if it is already loaded or loading.",
	}, func(ctx context.Context, _ *mcp.CallToolRequest, in InitInput) (*mcp.CallToolResult, protocol.InitResult, error) {
		reply := host.Handle(ctx, protocol.InitEngine{ModelID: in.ModelID})
		res, ok := reply.(protocol.InitResult)
		if !ok {
			return nil, protocol.InitResult{}, fmt.Errorf("unexpected reply %s", reply.Type())
		}
		if !res.Success {
			return nil, res, fmt.Errorf("%s", res.Error)
		}
		return nil, res, nil
	})

	mcp.AddTool(server, &mcp.Tool{
		Name:        "clear_cache",
		Description: "Drop every cached translation.",
	}, func(ctx context.Context, _ *mcp.CallToolRequest, _ struct{}) (*mcp.CallToolResult, ClearCacheOutput, error) {
		reply := host.Handle(ctx, protocol.ClearCache{})
		if _, ok := reply.(protocol.Ack); !ok {
			return nil, ClearCacheOutput{}, fmt.Errorf("unexpected reply %s", reply.Type())
		}
		return nil, ClearCacheOutput{Cleared: true}, nil
	})

	return server
}

// ServeStdio runs the MCP server on stdin/stdout until ctx ends or the
// client disconnects.
func ServeStdio(ctx context.Context, server *mcp.Server) error {
	return server.Run(ctx, &mcp.StdioTransport{})
}
