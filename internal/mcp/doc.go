// Package mcp implements the Model Context Protocol (MCP) server for caresearch.
//
// The server exposes four tools:
//   - search_records: search doctors, patients or appointments
//   - reindex_record: re-project one record into its index
//   - rebuild_index: rebuild one or every index from the record store
//   - index_status: document counts and rebuild state per index
//
// # Tool: search_records
//
//	Request:
//	{
//	  "name": "search_records",
//	  "arguments": {
//	    "kind": "patient",
//	    "query": "jo",
//	    "page": 1,
//	    "page_size": 20,
//	    "sort": ["lastName"],
//	    "order": "asc"
//	  }
//	}
//
//	Response:
//	{
//	  "data": [{"patientId": 1, "firstName": "John", "lastName": "Doe", ...}],
//	  "totalCount": 1,
//	  "pageNumber": 1,
//	  "pageSize": 20,
//	  "totalPages": 1
//	}
//
// The response has the same shape whether the query ran against the
// full-text index or the record store.
//
// # Error Handling
//
// Handlers return *MCPError values:
//   - -32602: invalid params (kind, page, page_size, sort, order)
//   - -32603: internal error
//   - -32001: record not found
//   - -32002: rebuild already in progress for the kind
//   - -32003: index unavailable
//   - -32004: search unavailable
//
// The server communicates over stdio; logs go to stderr.
package mcp
