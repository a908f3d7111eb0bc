// Package planner turns a free-text request into an FTS5 query and pages
// its ranked hits.
package planner

import (
	"context"
	"strings"
	"unicode"

	"github.com/dshills/caresearch/internal/document"
	"github.com/dshills/caresearch/internal/fts"
	"github.com/dshills/caresearch/internal/pager"
	"github.com/dshills/caresearch/pkg/types"
)

// Index is the read side of the index coordinator.
type Index interface {
	Schema(kind types.EntityKind) (*document.Schema, error)
	Read(ctx context.Context, kind types.EntityKind, fn func(*fts.Snapshot) error) error
}

// Request is one full-text search. SortField is optional; without it hits
// are ordered by relevance.
type Request struct {
	Kind       types.EntityKind
	Text       string
	PageNumber int
	PageSize   int
	SortField  string
	Order      types.SortOrder
}

// Planner runs requests against the index
type Planner struct {
	index       Index
	maxPageSize int
}

// New creates a planner. maxPageSize <= 0 leaves the page size unbounded.
func New(index Index, maxPageSize int) *Planner {
	return &Planner{index: index, maxPageSize: maxPageSize}
}

// Search returns one page of hits and the exact number of matching documents.
// The count and the page come from the same snapshot.
func (p *Planner) Search(ctx context.Context, req Request) (pager.Page[fts.Hit], error) {
	if err := pager.Validate(req.PageNumber, req.PageSize, p.maxPageSize); err != nil {
		return pager.Page[fts.Hit]{}, err
	}
	schema, err := p.index.Schema(req.Kind)
	if err != nil {
		return pager.Page[fts.Hit]{}, err
	}

	q := fts.Query{Desc: req.Order.Desc()}
	if req.SortField != "" {
		if q.SortField, err = schema.SortField(req.SortField); err != nil {
			return pager.Page[fts.Hit]{}, err
		}
	}

	if strings.TrimSpace(req.Text) != "" {
		q.Match = BuildMatch(schema.TextFields(), req.Text)
		if q.Match == "" {
			// only separators: nothing can match
			return pager.New[fts.Hit](nil, 0, req.PageNumber, req.PageSize), nil
		}
	}

	var total int
	var hits []fts.Hit
	err = p.index.Read(ctx, req.Kind, func(snap *fts.Snapshot) error {
		var err error
		if total, err = snap.Count(ctx, q.Match); err != nil {
			return err
		}
		offset := pager.Offset(req.PageNumber, req.PageSize)
		if offset >= total {
			return nil
		}
		// top page*size hits; offset < total keeps this in range
		q.Limit = offset + req.PageSize
		hits, err = snap.Top(ctx, q)
		return err
	})
	if err != nil {
		return pager.Page[fts.Hit]{}, err
	}

	start, end := pager.Window(len(hits), req.PageNumber, req.PageSize)
	return pager.New(hits[start:end], total, req.PageNumber, req.PageSize), nil
}

// BuildMatch builds an FTS5 match expression requiring every term of text
// in at least one of fields. The last term matches as a prefix. Returns ""
// when text has no terms.
func BuildMatch(fields []string, text string) string {
	terms := Tokenize(text)
	if len(terms) == 0 {
		return ""
	}

	scope := ""
	if len(fields) > 0 {
		scope = "{" + strings.Join(fields, " ") + "} : "
	}

	parts := make([]string, len(terms))
	for i, term := range terms {
		phrase := quote(term)
		if i == len(terms)-1 {
			phrase += "*"
		}
		parts[i] = scope + phrase
	}
	return strings.Join(parts, " AND ")
}

// Tokenize splits text the way the index tokenizer does: runs of letters
// and digits, lowercased. Everything else separates terms.
func Tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r) && !unicode.Is(unicode.Mn, r)
	})
}

func quote(term string) string {
	return `"` + strings.ReplaceAll(term, `"`, `""`) + `"`
}
