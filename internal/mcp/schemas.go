package mcp

import (
	"github.com/mark3labs/mcp-go/mcp"
)

var kindEnum = []string{"doctor", "patient", "appointment"}

// searchRecordsTool returns the tool definition for search_records
func searchRecordsTool() mcp.Tool {
	return mcp.Tool{
		Name:        "search_records",
		Description: "Search doctors, patients or appointments. With a query the full-text index ranks matches; without one the record store filters and sorts.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"kind": map[string]interface{}{
					"type":        "string",
					"description": "Entity kind to search",
					"enum":        kindEnum,
				},
				"query": map[string]interface{}{
					"type":        "string",
					"description": "Free text; every term must match some text field, the last term as a prefix",
				},
				"page": map[string]interface{}{
					"type":        "integer",
					"description": "1-based page number",
					"default":     1,
					"minimum":     1,
				},
				"page_size": map[string]interface{}{
					"type":        "integer",
					"description": "Results per page",
					"minimum":     1,
				},
				"sort": map[string]interface{}{
					"type":        "array",
					"description": "Sort fields, e.g. [\"lastName\", \"firstName\"]. Full-text searches order by the first field only.",
					"items": map[string]interface{}{
						"type": "string",
					},
				},
				"order": map[string]interface{}{
					"type":        "string",
					"description": "Sort direction",
					"enum":        []string{"asc", "desc"},
					"default":     "asc",
				},
			},
			Required: []string{"kind"},
		},
	}
}

// reindexRecordTool returns the tool definition for reindex_record
func reindexRecordTool() mcp.Tool {
	return mcp.Tool{
		Name:        "reindex_record",
		Description: "Re-project one record from the record store into its index; an inactive or missing record is removed from the index",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"kind": map[string]interface{}{
					"type":        "string",
					"description": "Entity kind of the record",
					"enum":        kindEnum,
				},
				"id": map[string]interface{}{
					"type":        "integer",
					"description": "Record id",
					"minimum":     1,
				},
			},
			Required: []string{"kind", "id"},
		},
	}
}

// rebuildIndexTool returns the tool definition for rebuild_index
func rebuildIndexTool() mcp.Tool {
	return mcp.Tool{
		Name:        "rebuild_index",
		Description: "Rebuild a kind's index (or every index) from the active records in the record store",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"kind": map[string]interface{}{
					"type":        "string",
					"description": "Entity kind to rebuild; omit or use \"all\" for every kind",
					"enum":        append(append([]string{}, kindEnum...), "all"),
				},
			},
		},
	}
}

// indexStatusTool returns the tool definition for index_status
func indexStatusTool() mcp.Tool {
	return mcp.Tool{
		Name:        "index_status",
		Description: "Report document counts and rebuild state of every index",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}
}
