package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"

	"github.com/papercomputeco/membench/pkg/archive"
)

var (
	listRunsToolName    = "list_runs"
	listRunsDescription = "List archived benchmark runs, newest first, with their outcome counts and timings. Use this to discover run ids before fetching details."

	getRunToolName    = "get_run"
	getRunDescription = "Fetch one archived benchmark run by run id, including its configuration snapshot and headline metrics."
)

// ListRunsInput represents the input arguments for the list_runs tool.
type ListRunsInput struct {
	Limit int `json:"limit,omitempty" jsonschema:"maximum number of runs to return (default: all)"`
}

// ListRunsOutput represents the output of the list_runs tool.
type ListRunsOutput struct {
	Runs  []*archive.Record `json:"runs"`
	Count int               `json:"count"`
}

// handleListRuns processes a list_runs request.
func (s *Server) handleListRuns(ctx context.Context, _ *mcp.CallToolRequest, input ListRunsInput) (*mcp.CallToolResult, ListRunsOutput, error) {
	logger := s.config.Logger

	logger.Debug("MCP list_runs request",
		zap.Int("limit", input.Limit),
	)

	records, err := s.config.Store.List(ctx)
	if err != nil {
		logger.Error("failed to list runs", zap.Error(err))
		return &mcp.CallToolResult{
			IsError: true,
			Content: []mcp.Content{
				&mcp.TextContent{Text: fmt.Sprintf("Failed to list runs: %v", err)},
			},
		}, ListRunsOutput{}, nil
	}

	if input.Limit > 0 && len(records) > input.Limit {
		records = records[:input.Limit]
	}
	if records == nil {
		records = []*archive.Record{}
	}

	output := ListRunsOutput{
		Runs:  records,
		Count: len(records),
	}

	// Serialize the structured output as JSON for the text field
	// Per MCP spec: tools returning structured content should also return
	// serialized JSON in a TextContent block for backwards compatibility
	jsonBytes, err := json.Marshal(output)
	if err != nil {
		logger.Error("failed to marshal runs output", zap.Error(err))
		return &mcp.CallToolResult{
			IsError: true,
			Content: []mcp.Content{
				&mcp.TextContent{Text: fmt.Sprintf("Failed to serialize results: %v", err)},
			},
		}, ListRunsOutput{}, nil
	}

	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: string(jsonBytes)},
		},
	}, output, nil
}

// GetRunInput represents the input arguments for the get_run tool.
type GetRunInput struct {
	RunID string `json:"run_id" jsonschema:"the run id of the archived run to fetch"`
}

// GetRunOutput represents the output of the get_run tool.
type GetRunOutput struct {
	Run *archive.Record `json:"run"`
}

// handleGetRun processes a get_run request.
func (s *Server) handleGetRun(ctx context.Context, _ *mcp.CallToolRequest, input GetRunInput) (*mcp.CallToolResult, GetRunOutput, error) {
	if input.RunID == "" {
		return &mcp.CallToolResult{
			IsError: true,
			Content: []mcp.Content{
				&mcp.TextContent{Text: "run_id is required"},
			},
		}, GetRunOutput{}, nil
	}

	record, err := s.config.Store.Get(ctx, input.RunID)
	if err != nil {
		return &mcp.CallToolResult{
			IsError: true,
			Content: []mcp.Content{
				&mcp.TextContent{Text: fmt.Sprintf("Run lookup failed: %v", err)},
			},
		}, GetRunOutput{}, nil
	}

	output := GetRunOutput{Run: record}

	jsonBytes, err := json.Marshal(output)
	if err != nil {
		return &mcp.CallToolResult{
			IsError: true,
			Content: []mcp.Content{
				&mcp.TextContent{Text: fmt.Sprintf("Failed to serialize results: %v", err)},
			},
		}, GetRunOutput{}, nil
	}

	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: string(jsonBytes)},
		},
	}, output, nil
}
