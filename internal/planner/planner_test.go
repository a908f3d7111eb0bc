package planner

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/caresearch/internal/document"
	"github.com/dshills/caresearch/internal/fts"
	"github.com/dshills/caresearch/internal/indexer"
	"github.com/dshills/caresearch/pkg/types"
)

func setupPlanner(t *testing.T, patients ...*types.Patient) *Planner {
	t.Helper()
	coord, err := indexer.Open(context.Background(), "", nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = coord.Close() })

	for _, p := range patients {
		require.NoError(t, coord.Reindex(context.Background(), document.ProjectPatient(p)))
	}
	return New(coord, 100)
}

func patient(id int64, first, last string) *types.Patient {
	return &types.Patient{ID: id, UserID: 100 + id, FirstName: first, LastName: last, IsActive: true}
}

func ids(hits []fts.Hit) []int64 {
	out := make([]int64, len(hits))
	for i, h := range hits {
		out[i] = h.Doc.ID()
	}
	return out
}

func TestTokenize(t *testing.T) {
	assert.Equal(t, []string{"john", "o", "doe"}, Tokenize("  John O'Doe "))
	assert.Equal(t, []string{"a1c", "2025"}, Tokenize("A1C-2025"))
	assert.Empty(t, Tokenize(`"*(){}:^`))
}

func TestBuildMatch(t *testing.T) {
	fields := []string{"first_name", "last_name"}

	assert.Equal(t, `{first_name last_name} : "jo"*`, BuildMatch(fields, "jo"))
	assert.Equal(t,
		`{first_name last_name} : "john" AND {first_name last_name} : "do"*`,
		BuildMatch(fields, "John Do"))
	assert.Equal(t, `"x"*`, BuildMatch(nil, "x"))
	assert.Equal(t, "", BuildMatch(fields, "  -- "))
}

func TestBuildMatchEscapesSyntax(t *testing.T) {
	// operators and column filters in user text become plain terms
	got := BuildMatch([]string{"notes"}, `reason: NEAR(a b) OR "x`)
	assert.Equal(t,
		`{notes} : "reason" AND {notes} : "near" AND {notes} : "a" AND {notes} : "b" AND {notes} : "or" AND {notes} : "x"*`,
		got)
}

func TestSearchPrefixExample(t *testing.T) {
	p := setupPlanner(t,
		patient(1, "John", "Doe"),
		patient(2, "Jane", "Roe"),
		patient(3, "Jon", "Ray"),
	)

	page, err := p.Search(context.Background(), Request{
		Kind: types.KindPatient, Text: "jo", PageNumber: 1, PageSize: 10,
	})
	require.NoError(t, err)
	assert.Equal(t, 2, page.TotalCount)
	assert.Equal(t, 1, page.TotalPages)
	assert.ElementsMatch(t, []int64{1, 3}, ids(page.Data))
}

func TestSearchAllTermsRequired(t *testing.T) {
	p := setupPlanner(t,
		patient(1, "John", "Doe"),
		patient(2, "John", "Smith"),
		patient(3, "Jane", "Doe"),
	)

	page, err := p.Search(context.Background(), Request{
		Kind: types.KindPatient, Text: "john doe", PageNumber: 1, PageSize: 10,
	})
	require.NoError(t, err)
	assert.Equal(t, []int64{1}, ids(page.Data))
}

func TestSearchPagination(t *testing.T) {
	var ps []*types.Patient
	for i := int64(1); i <= 7; i++ {
		ps = append(ps, patient(i, "Maria", "Lopez"))
	}
	p := setupPlanner(t, ps...)
	ctx := context.Background()

	var all []int64
	for page := 1; page <= 3; page++ {
		res, err := p.Search(ctx, Request{
			Kind: types.KindPatient, Text: "maria", PageNumber: page, PageSize: 3,
			SortField: "id",
		})
		require.NoError(t, err)
		assert.Equal(t, 7, res.TotalCount)
		assert.Equal(t, 3, res.TotalPages)
		all = append(all, ids(res.Data)...)
	}
	assert.Equal(t, []int64{1, 2, 3, 4, 5, 6, 7}, all)

	res, err := p.Search(ctx, Request{Kind: types.KindPatient, Text: "maria", PageNumber: 9, PageSize: 3})
	require.NoError(t, err)
	assert.Empty(t, res.Data)
	assert.NotNil(t, res.Data)
	assert.Equal(t, 7, res.TotalCount)
}

func TestSearchPageFarPastTheEnd(t *testing.T) {
	p := setupPlanner(t, patient(1, "John", "Doe"), patient(2, "Joan", "Jett"))

	for _, text := range []string{"jo", ""} {
		res, err := p.Search(context.Background(), Request{
			Kind: types.KindPatient, Text: text, PageNumber: math.MaxInt64/2 + 2, PageSize: 2,
		})
		require.NoError(t, err, text)
		assert.Empty(t, res.Data)
		assert.Equal(t, 2, res.TotalCount)
		assert.Equal(t, math.MaxInt64/2+2, res.PageNumber)
	}
}

func TestSearchSortField(t *testing.T) {
	p := setupPlanner(t,
		patient(1, "John", "Doe"),
		patient(2, "Jane", "Roe"),
		patient(3, "Jon", "Ray"),
	)

	res, err := p.Search(context.Background(), Request{
		Kind: types.KindPatient, Text: "j", PageNumber: 1, PageSize: 10,
		SortField: "lastName", Order: types.OrderDesc,
	})
	require.NoError(t, err)
	assert.Equal(t, []int64{2, 3, 1}, ids(res.Data))
}

func TestSearchMatchAll(t *testing.T) {
	p := setupPlanner(t, patient(2, "Jane", "Roe"), patient(1, "John", "Doe"))

	res, err := p.Search(context.Background(), Request{Kind: types.KindPatient, Text: "  ", PageNumber: 1, PageSize: 10})
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 2}, ids(res.Data))
}

func TestSearchSeparatorsOnly(t *testing.T) {
	p := setupPlanner(t, patient(1, "John", "Doe"))

	res, err := p.Search(context.Background(), Request{Kind: types.KindPatient, Text: "?!", PageNumber: 1, PageSize: 10})
	require.NoError(t, err)
	assert.Zero(t, res.TotalCount)
	assert.Empty(t, res.Data)
}

func TestSearchValidation(t *testing.T) {
	p := setupPlanner(t)
	ctx := context.Background()

	tests := []struct {
		name string
		req  Request
	}{
		{"page zero", Request{Kind: types.KindPatient, Text: "x", PageNumber: 0, PageSize: 10}},
		{"size zero", Request{Kind: types.KindPatient, Text: "x", PageNumber: 1, PageSize: 0}},
		{"size over max", Request{Kind: types.KindPatient, Text: "x", PageNumber: 1, PageSize: 101}},
		{"unknown sort", Request{Kind: types.KindPatient, Text: "x", PageNumber: 1, PageSize: 10, SortField: "salary"}},
		{"unknown kind", Request{Kind: "nurse", Text: "x", PageNumber: 1, PageSize: 10}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := p.Search(ctx, tt.req)
			assert.ErrorIs(t, err, types.ErrInvalidArgument)
		})
	}
}

func TestSearchExcludesUnmatchedFields(t *testing.T) {
	p := setupPlanner(t, &types.Patient{ID: 1, UserID: 777, FirstName: "Ann", IsActive: true})

	// user_id is an identifier and never matches free text
	res, err := p.Search(context.Background(), Request{Kind: types.KindPatient, Text: "777", PageNumber: 1, PageSize: 10})
	require.NoError(t, err)
	assert.Zero(t, res.TotalCount)
}
