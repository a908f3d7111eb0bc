package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/dshills/caresearch/internal/indexer"
	"github.com/dshills/caresearch/internal/planner"
	"github.com/dshills/caresearch/internal/records"
	"github.com/dshills/caresearch/internal/searcher"
	"github.com/dshills/caresearch/internal/storage"
	"github.com/dshills/caresearch/pkg/types"
)

type fixture struct {
	server  *Server
	records *records.Service
	store   *storage.SQLStore
	index   *indexer.Coordinator
}

func setupServer(t *testing.T) *fixture {
	t.Helper()
	log := zaptest.NewLogger(t)

	store, err := storage.NewSQLiteStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	idx, err := indexer.Open(context.Background(), "", log)
	require.NoError(t, err)
	t.Cleanup(func() { _ = idx.Close() })

	rec := records.New(store, idx, log)
	srch := searcher.New(store, planner.New(idx, 50), searcher.Options{
		MaxPageSize: 50,
		CacheSize:   16,
		CacheTTL:    time.Minute,
		Generation:  idx.Generation,
		Logger:      log,
	})

	server, err := NewServer(srch, rec, idx, Options{Logger: log})
	require.NoError(t, err)
	return &fixture{server: server, records: rec, store: store, index: idx}
}

func (f *fixture) seed(t *testing.T) {
	t.Helper()
	ctx := context.Background()
	for _, p := range []*types.Patient{
		{UserID: 1, FirstName: "John", LastName: "Doe", IsActive: true},
		{UserID: 2, FirstName: "Joan", LastName: "Jett", IsActive: true},
		{UserID: 3, FirstName: "Mary", LastName: "Major", IsActive: true},
	} {
		require.NoError(t, f.records.CreatePatient(ctx, p))
	}
}

func callRequest(name string, args map[string]interface{}) mcp.CallToolRequest {
	var req mcp.CallToolRequest
	req.Params.Name = name
	if args != nil {
		req.Params.Arguments = args
	}
	return req
}

func decode(t *testing.T, res *mcp.CallToolResult, v interface{}) {
	t.Helper()
	require.NotNil(t, res)
	require.Len(t, res.Content, 1)
	text, ok := res.Content[0].(mcp.TextContent)
	require.True(t, ok, "expected text content, got %T", res.Content[0])
	require.NoError(t, json.Unmarshal([]byte(text.Text), v))
}

func requireCode(t *testing.T, err error, code int) *MCPError {
	t.Helper()
	require.Error(t, err)
	var mcpErr *MCPError
	require.True(t, errors.As(err, &mcpErr), "expected *MCPError, got %T", err)
	assert.Equal(t, code, mcpErr.Code, mcpErr.Message)
	return mcpErr
}

type searchResponse struct {
	Data       []map[string]interface{} `json:"data"`
	TotalCount int                      `json:"totalCount"`
	PageNumber int                      `json:"pageNumber"`
	PageSize   int                      `json:"pageSize"`
	TotalPages int                      `json:"totalPages"`
}

func TestNewServer(t *testing.T) {
	f := setupServer(t)
	assert.NotNil(t, f.server.mcp, "MCP server should be initialized")
	assert.Equal(t, DefaultPageSize, f.server.defaultPageSize)

	_, err := NewServer(nil, nil, nil, Options{})
	assert.Error(t, err)
}

func TestSearchRecords(t *testing.T) {
	f := setupServer(t)
	f.seed(t)
	ctx := context.Background()

	t.Run("full-text prefix query", func(t *testing.T) {
		res, err := f.server.handleSearchRecords(ctx, callRequest("search_records", map[string]interface{}{
			"kind":  "patient",
			"query": "jo",
			"sort":  []interface{}{"firstName"},
		}))
		require.NoError(t, err)

		var page searchResponse
		decode(t, res, &page)
		assert.Equal(t, 2, page.TotalCount)
		assert.Equal(t, 1, page.PageNumber)
		assert.Equal(t, DefaultPageSize, page.PageSize)
		require.Len(t, page.Data, 2)
		assert.Equal(t, "Joan", page.Data[0]["firstName"])
		assert.Equal(t, "John", page.Data[1]["firstName"])
	})

	t.Run("structured query with paging", func(t *testing.T) {
		res, err := f.server.handleSearchRecords(ctx, callRequest("search_records", map[string]interface{}{
			"kind":      "patients",
			"page":      float64(2),
			"page_size": float64(2),
			"sort":      "lastName",
			"order":     "desc",
		}))
		require.NoError(t, err)

		var page searchResponse
		decode(t, res, &page)
		assert.Equal(t, 3, page.TotalCount)
		assert.Equal(t, 2, page.TotalPages)
		require.Len(t, page.Data, 1)
		assert.Equal(t, "Doe", page.Data[0]["lastName"])
	})

	t.Run("page far past the end", func(t *testing.T) {
		res, err := f.server.handleSearchRecords(ctx, callRequest("search_records", map[string]interface{}{
			"kind":      "patient",
			"query":     "jo",
			"page":      4.611686018427389e18,
			"page_size": float64(2),
		}))
		require.NoError(t, err)

		var page searchResponse
		decode(t, res, &page)
		assert.Equal(t, 2, page.TotalCount)
		assert.Empty(t, page.Data)
	})

	t.Run("invalid params", func(t *testing.T) {
		cases := map[string]map[string]interface{}{
			"missing kind":  {"query": "jo"},
			"unknown kind":  {"kind": "nurse"},
			"bad page":      {"kind": "patient", "page": float64(0)},
			"fractional":    {"kind": "patient", "page": 2.7},
			"page overflow": {"kind": "patient", "page": 1e300},
			"page string":   {"kind": "patient", "page": "2"},
			"bad order":     {"kind": "patient", "order": "sideways"},
			"bad sort":      {"kind": "patient", "query": "jo", "sort": []interface{}{"shoeSize"}},
			"sort type":     {"kind": "patient", "sort": []interface{}{float64(1)}},
			"oversized":     {"kind": "patient", "page_size": float64(51)},
		}
		for name, args := range cases {
			t.Run(name, func(t *testing.T) {
				_, err := f.server.handleSearchRecords(ctx, callRequest("search_records", args))
				requireCode(t, err, ErrorCodeInvalidParams)
			})
		}
	})

	t.Run("arguments of the wrong type", func(t *testing.T) {
		req := callRequest("search_records", nil)
		req.Params.Arguments = "patient"
		_, err := f.server.handleSearchRecords(ctx, req)
		requireCode(t, err, ErrorCodeInvalidParams)
	})
}

func TestReindexRecord(t *testing.T) {
	f := setupServer(t)
	f.seed(t)
	ctx := context.Background()

	// change a record behind the index
	p, err := f.store.GetPatient(ctx, 3)
	require.NoError(t, err)
	p.FirstName = "Johanna"
	require.NoError(t, f.store.UpdatePatient(ctx, p))

	res, err := f.server.handleReindexRecord(ctx, callRequest("reindex_record", map[string]interface{}{
		"kind": "patient",
		"id":   float64(3),
	}))
	require.NoError(t, err)

	var body map[string]interface{}
	decode(t, res, &body)
	assert.Equal(t, true, body["success"])

	res, err = f.server.handleSearchRecords(ctx, callRequest("search_records", map[string]interface{}{
		"kind":  "patient",
		"query": "johanna",
	}))
	require.NoError(t, err)
	var page searchResponse
	decode(t, res, &page)
	assert.Equal(t, 1, page.TotalCount)

	_, err = f.server.handleReindexRecord(ctx, callRequest("reindex_record", map[string]interface{}{
		"kind": "patient",
	}))
	requireCode(t, err, ErrorCodeInvalidParams)

	_, err = f.server.handleReindexRecord(ctx, callRequest("reindex_record", map[string]interface{}{
		"kind": "patient",
		"id":   3.5,
	}))
	requireCode(t, err, ErrorCodeInvalidParams)
}

func TestRebuildIndex(t *testing.T) {
	f := setupServer(t)
	f.seed(t)
	ctx := context.Background()

	t.Run("all kinds", func(t *testing.T) {
		res, err := f.server.handleRebuildIndex(ctx, callRequest("rebuild_index", nil))
		require.NoError(t, err)

		var body struct {
			Success bool `json:"success"`
			Rebuilt []struct {
				Kind      string `json:"kind"`
				Documents int    `json:"documents"`
			} `json:"rebuilt"`
		}
		decode(t, res, &body)
		assert.True(t, body.Success)
		require.Len(t, body.Rebuilt, 3)
		assert.Equal(t, "patient", body.Rebuilt[1].Kind)
		assert.Equal(t, 3, body.Rebuilt[1].Documents)
	})

	t.Run("single kind", func(t *testing.T) {
		res, err := f.server.handleRebuildIndex(ctx, callRequest("rebuild_index", map[string]interface{}{
			"kind": "doctor",
		}))
		require.NoError(t, err)

		var body map[string]interface{}
		decode(t, res, &body)
		assert.Len(t, body["rebuilt"], 1)
	})

	t.Run("unknown kind", func(t *testing.T) {
		_, err := f.server.handleRebuildIndex(ctx, callRequest("rebuild_index", map[string]interface{}{
			"kind": "nurse",
		}))
		requireCode(t, err, ErrorCodeInvalidParams)
	})
}

func TestIndexStatus(t *testing.T) {
	f := setupServer(t)
	f.seed(t)

	res, err := f.server.handleIndexStatus(context.Background(), callRequest("index_status", nil))
	require.NoError(t, err)

	var body struct {
		Indexes []indexer.KindStatus `json:"indexes"`
	}
	decode(t, res, &body)
	require.Len(t, body.Indexes, 3)
	assert.Equal(t, types.KindPatient, body.Indexes[1].Kind)
	assert.Equal(t, 3, body.Indexes[1].Documents)
}

func TestToMCPError(t *testing.T) {
	s := &Server{logger: zaptest.NewLogger(t)}
	tests := []struct {
		err  error
		code int
	}{
		{types.ErrInvalidArgument, ErrorCodeInvalidParams},
		{types.ErrUnknownKind, ErrorCodeInvalidParams},
		{types.ErrNotFound, ErrorCodeNotFound},
		{indexer.ErrRebuildInProgress, ErrorCodeRebuildInProgress},
		{types.ErrIndexUnavailable, ErrorCodeIndexUnavailable},
		{types.ErrSearchUnavailable, ErrorCodeSearchUnavailable},
		{errors.New("boom"), ErrorCodeInternalError},
	}
	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			err := s.toMCPError("failed", tt.err)
			mcpErr := requireCode(t, err, tt.code)
			assert.Contains(t, mcpErr.Error(), "failed")
		})
	}
}

func TestGetInt(t *testing.T) {
	tests := []struct {
		name    string
		val     interface{}
		want    int
		wantErr bool
	}{
		{"absent", nil, 7, false},
		{"whole float", float64(3), 3, false},
		{"int", 4, 4, false},
		{"negative", float64(-2), -2, false},
		{"fraction", 2.7, 0, true},
		{"too large", 1e19, 0, true},
		{"max int rounds up", float64(math.MaxInt), 0, true},
		{"too small", -1e19, 0, true},
		{"nan", math.NaN(), 0, true},
		{"infinity", math.Inf(1), 0, true},
		{"string", "3", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			args := map[string]interface{}{}
			if tt.val != nil {
				args["page"] = tt.val
			}
			got, err := getInt(args, "page", 7)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestGetStrings(t *testing.T) {
	got, err := getStrings(map[string]interface{}{"sort": "lastName, firstName,"}, "sort")
	require.NoError(t, err)
	assert.Equal(t, []string{"lastName", "firstName"}, got)

	got, err = getStrings(map[string]interface{}{}, "sort")
	require.NoError(t, err)
	assert.Nil(t, got)

	_, err = getStrings(map[string]interface{}{"sort": 3}, "sort")
	assert.Error(t, err)
}
