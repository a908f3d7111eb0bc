package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"go.uber.org/zap"

	"github.com/dshills/caresearch/internal/indexer"
	"github.com/dshills/caresearch/internal/searcher"
	"github.com/dshills/caresearch/pkg/types"
)

// MCP error codes
const (
	ErrorCodeInvalidParams     = -32602 // Invalid method parameters
	ErrorCodeInternalError     = -32603 // Internal JSON-RPC error
	ErrorCodeNotFound          = -32001 // Record does not exist or is inactive
	ErrorCodeRebuildInProgress = -32002 // Another rebuild of the same kind is running
	ErrorCodeIndexUnavailable  = -32003 // Index storage could not be read or written
	ErrorCodeSearchUnavailable = -32004 // A storage layer failed during search
)

// handleSearchRecords handles the search_records tool invocation
func (s *Server) handleSearchRecords(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, err := arguments(request)
	if err != nil {
		return nil, err
	}

	kind, err := kindParam(args)
	if err != nil {
		return nil, err
	}
	sortFields, err := getStrings(args, "sort")
	if err != nil {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid sort", map[string]interface{}{
			"param":  "sort",
			"reason": err.Error(),
		})
	}

	pageNumber, err := intParam(args, "page", 1)
	if err != nil {
		return nil, err
	}
	pageSize, err := intParam(args, "page_size", s.defaultPageSize)
	if err != nil {
		return nil, err
	}

	req := searcher.Request{
		Kind:       kind,
		Text:       getStringDefault(args, "query", ""),
		PageNumber: pageNumber,
		PageSize:   pageSize,
		Sort:       sortFields,
		Order:      getStringDefault(args, "order", ""),
	}

	page, err := s.searcher.Search(ctx, req)
	if err != nil {
		return nil, s.toMCPError("search failed", err)
	}

	return mcp.NewToolResultText(formatJSON(page)), nil
}

// handleReindexRecord handles the reindex_record tool invocation
func (s *Server) handleReindexRecord(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, err := arguments(request)
	if err != nil {
		return nil, err
	}

	kind, err := kindParam(args)
	if err != nil {
		return nil, err
	}
	n, err := intParam(args, "id", 0)
	if err != nil {
		return nil, err
	}
	id := int64(n)
	if id <= 0 {
		return nil, newMCPError(ErrorCodeInvalidParams, "id parameter is required", map[string]interface{}{
			"param":  "id",
			"reason": "missing or not a positive integer",
		})
	}

	if err := s.records.Reindex(ctx, kind, id); err != nil {
		return nil, s.toMCPError("reindex failed", err)
	}

	return mcp.NewToolResultText(formatJSON(map[string]interface{}{
		"success":    true,
		"kind":       kind,
		"id":         id,
		"generation": s.index.Generation(),
	})), nil
}

// handleRebuildIndex handles the rebuild_index tool invocation
func (s *Server) handleRebuildIndex(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, err := arguments(request)
	if err != nil {
		return nil, err
	}

	var stats []indexer.RebuildStats
	if name := getStringDefault(args, "kind", ""); name == "" || strings.EqualFold(name, "all") {
		stats, err = s.records.RebuildAll(ctx)
	} else {
		kind, kerr := kindParam(args)
		if kerr != nil {
			return nil, kerr
		}
		var st indexer.RebuildStats
		st, err = s.records.RebuildIndex(ctx, kind)
		if err == nil {
			stats = []indexer.RebuildStats{st}
		}
	}
	if err != nil {
		return nil, s.toMCPError("rebuild failed", err)
	}

	rebuilt := make([]map[string]interface{}, 0, len(stats))
	for _, st := range stats {
		rebuilt = append(rebuilt, map[string]interface{}{
			"kind":             st.Kind,
			"documents":        st.Documents,
			"duration_seconds": st.Duration.Seconds(),
		})
	}

	return mcp.NewToolResultText(formatJSON(map[string]interface{}{
		"success": true,
		"rebuilt": rebuilt,
	})), nil
}

// handleIndexStatus handles the index_status tool invocation
func (s *Server) handleIndexStatus(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	status, err := s.index.Status(ctx)
	if err != nil {
		return nil, s.toMCPError("failed to get status", err)
	}

	return mcp.NewToolResultText(formatJSON(map[string]interface{}{
		"indexes":       status,
		"generation":    s.index.Generation(),
		"cache_entries": s.searcher.CacheLen(),
	})), nil
}

// Helper functions

// newMCPError creates a properly formatted MCP error
func newMCPError(code int, message string, data interface{}) error {
	// MCP errors are returned as regular errors, the framework handles encoding
	return &MCPError{
		Code:    code,
		Message: message,
		Data:    data,
	}
}

// MCPError represents an MCP protocol error
type MCPError struct {
	Code    int
	Message string
	Data    interface{}
}

func (e *MCPError) Error() string {
	return fmt.Sprintf("MCP error %d: %s", e.Code, e.Message)
}

// toMCPError maps a service error onto its MCP error code.
func (s *Server) toMCPError(message string, err error) error {
	code := ErrorCodeInternalError
	switch {
	case errors.Is(err, types.ErrInvalidArgument):
		code = ErrorCodeInvalidParams
	case errors.Is(err, types.ErrNotFound):
		code = ErrorCodeNotFound
	case errors.Is(err, indexer.ErrRebuildInProgress):
		code = ErrorCodeRebuildInProgress
	case errors.Is(err, types.ErrIndexUnavailable):
		code = ErrorCodeIndexUnavailable
	case errors.Is(err, types.ErrSearchUnavailable):
		code = ErrorCodeSearchUnavailable
	}
	if code == ErrorCodeInternalError || code == ErrorCodeIndexUnavailable || code == ErrorCodeSearchUnavailable {
		s.logger.Error(message, zap.Error(err))
	}
	return newMCPError(code, message, map[string]interface{}{
		"error": err.Error(),
	})
}

// arguments returns the tool arguments; a call without arguments yields an empty map
func arguments(request mcp.CallToolRequest) (map[string]interface{}, error) {
	if request.Params.Arguments == nil {
		return map[string]interface{}{}, nil
	}
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}
	return args, nil
}

// kindParam extracts and parses the kind parameter
func kindParam(args map[string]interface{}) (types.EntityKind, error) {
	name, ok := args["kind"].(string)
	if !ok || name == "" {
		return "", newMCPError(ErrorCodeInvalidParams, "kind parameter is required", map[string]interface{}{
			"param":  "kind",
			"reason": "missing or empty",
		})
	}
	kind, err := types.ParseKind(name)
	if err != nil {
		return "", newMCPError(ErrorCodeInvalidParams, "invalid kind", map[string]interface{}{
			"param":  "kind",
			"reason": err.Error(),
		})
	}
	return kind, nil
}

// formatJSON formats a value as indented JSON
func formatJSON(data interface{}) string {
	bytes, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Sprintf("%v", data)
	}
	return string(bytes)
}

// intParam is getInt with a failure reported as invalid params.
func intParam(args map[string]interface{}, key string, defaultValue int) (int, error) {
	n, err := getInt(args, key, defaultValue)
	if err != nil {
		return 0, newMCPError(ErrorCodeInvalidParams, "invalid "+key, map[string]interface{}{
			"param":  key,
			"reason": err.Error(),
		})
	}
	return n, nil
}

// getInt extracts an integer parameter with a default value. JSON numbers
// arrive as float64; one with a fraction or outside the range of int is
// rejected rather than truncated.
func getInt(args map[string]interface{}, key string, defaultValue int) (int, error) {
	switch val := args[key].(type) {
	case nil:
		return defaultValue, nil
	case int:
		return val, nil
	case float64:
		if math.IsNaN(val) || math.IsInf(val, 0) || val != math.Trunc(val) {
			return 0, fmt.Errorf("%v is not an integer", val)
		}
		// float64(math.MaxInt) rounds up to 2^63
		if val < float64(math.MinInt) || val >= float64(math.MaxInt) {
			return 0, fmt.Errorf("%v is out of range", val)
		}
		return int(val), nil
	default:
		return 0, fmt.Errorf("expected an integer, got %T", val)
	}
}

// getStringDefault extracts a string parameter with a default value
func getStringDefault(args map[string]interface{}, key string, defaultValue string) string {
	if val, ok := args[key].(string); ok {
		return val
	}
	return defaultValue
}

// getStrings extracts a list of strings. A single comma-separated string is
// accepted as well.
func getStrings(args map[string]interface{}, key string) ([]string, error) {
	switch val := args[key].(type) {
	case nil:
		return nil, nil
	case string:
		var out []string
		for _, part := range strings.Split(val, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
		return out, nil
	case []string:
		return val, nil
	case []interface{}:
		out := make([]string, 0, len(val))
		for _, item := range val {
			str, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("expected strings, got %T", item)
			}
			out = append(out, str)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("expected an array of strings, got %T", val)
	}
}
