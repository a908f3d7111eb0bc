package fts

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/dshills/caresearch/internal/document"
	"github.com/dshills/caresearch/internal/sqlitedb"
)

const table = "documents"

// Index is the full-text index of one entity kind, backed by an FTS5 table
// whose rowid is the record id.
type Index struct {
	db     *sql.DB
	schema *document.Schema
	path   string

	insertSQL string
	selectSQL string
}

// Hit is one ranked document. Score is the negated bm25 value, so larger is
// better; it is zero when the query had no match expression.
type Hit struct {
	Doc   *document.Document
	Score float64
}

// Query selects the top documents of a snapshot.
type Query struct {
	// Match is an FTS5 match expression; empty matches every document.
	Match string
	// SortField orders by a schema field instead of relevance.
	SortField string
	Desc      bool
	// Limit caps the returned hits; zero or less means no cap.
	Limit int
}

// Open opens or creates the index database at path (sqlitedb.MemoryPath for
// an in-memory index) and applies its schema.
func Open(ctx context.Context, path string, schema *document.Schema) (*Index, error) {
	db, err := sqlitedb.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s index: %w", schema.Kind, err)
	}

	ix := New(db, schema)
	ix.path = path
	if err := sqlitedb.ApplyMigrations(ctx, db, Migrations(schema)); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate %s index: %w", schema.Kind, err)
	}
	return ix, nil
}

// New wraps an already migrated database.
func New(db *sql.DB, schema *document.Schema) *Index {
	cols := columns(schema)
	placeholders := strings.Repeat(", ?", len(cols))
	return &Index{
		db:        db,
		schema:    schema,
		insertSQL: fmt.Sprintf("INSERT INTO %s (rowid, %s) VALUES (?%s)", table, strings.Join(cols, ", "), placeholders),
		selectSQL: fmt.Sprintf("SELECT rowid, %s", strings.Join(cols, ", ")),
	}
}

// Migrations returns the versioned schema of an index for kind.
func Migrations(schema *document.Schema) []sqlitedb.Migration {
	defs := make([]string, 0, len(schema.Fields))
	for _, f := range schema.StoredFields() {
		if f.Kind == document.Text {
			defs = append(defs, f.Name)
		} else {
			defs = append(defs, f.Name+" UNINDEXED")
		}
	}
	return []sqlitedb.Migration{
		{
			Version: "1.0.0",
			Up: fmt.Sprintf("CREATE VIRTUAL TABLE IF NOT EXISTS %s USING fts5(%s, tokenize = 'unicode61 remove_diacritics 2')",
				table, strings.Join(defs, ", ")),
			Down: "DROP TABLE IF EXISTS " + table,
		},
	}
}

func columns(schema *document.Schema) []string {
	stored := schema.StoredFields()
	cols := make([]string, len(stored))
	for i, f := range stored {
		cols[i] = f.Name
	}
	return cols
}

// Schema returns the schema the index was built for.
func (ix *Index) Schema() *document.Schema {
	return ix.schema
}

// Path returns the database path, or "" when the index was built with New.
func (ix *Index) Path() string {
	return ix.path
}

// Count returns the number of indexed documents.
func (ix *Index) Count(ctx context.Context) (int, error) {
	var n int
	if err := ix.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+table).Scan(&n); err != nil {
		return 0, fmt.Errorf("count %s documents: %w", ix.schema.Kind, err)
	}
	return n, nil
}

// Close closes the underlying database.
func (ix *Index) Close() error {
	return ix.db.Close()
}

// Begin starts a write transaction. Either every change in it becomes
// visible at Commit or none does.
func (ix *Index) Begin(ctx context.Context) (*Tx, error) {
	tx, err := ix.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin %s index transaction: %w", ix.schema.Kind, err)
	}
	return &Tx{tx: tx, ix: ix}, nil
}

// Tx is a write transaction on an index.
type Tx struct {
	tx *sql.Tx
	ix *Index
}

// Delete removes the document with id. Deleting an absent id is not an error.
func (t *Tx) Delete(ctx context.Context, id int64) error {
	if _, err := t.tx.ExecContext(ctx, "DELETE FROM "+table+" WHERE rowid = ?", id); err != nil {
		return fmt.Errorf("delete %s document %d: %w", t.ix.schema.Kind, id, err)
	}
	return nil
}

// Insert adds doc. The caller deletes any previous document with the same id first.
func (t *Tx) Insert(ctx context.Context, doc *document.Document) error {
	if doc.Kind != t.ix.schema.Kind {
		return fmt.Errorf("insert %s document into %s index", doc.Kind, t.ix.schema.Kind)
	}
	args := make([]any, 0, len(t.ix.schema.Fields))
	args = append(args, doc.ID())
	for _, f := range t.ix.schema.StoredFields() {
		args = append(args, doc.Get(f.Name))
	}
	if _, err := t.tx.ExecContext(ctx, t.ix.insertSQL, args...); err != nil {
		return fmt.Errorf("insert %s document %d: %w", t.ix.schema.Kind, doc.ID(), err)
	}
	return nil
}

// Clear removes every document.
func (t *Tx) Clear(ctx context.Context) error {
	if _, err := t.tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
		return fmt.Errorf("clear %s index: %w", t.ix.schema.Kind, err)
	}
	return nil
}

// Commit publishes the transaction.
func (t *Tx) Commit() error {
	return t.tx.Commit()
}

// Rollback discards the transaction. It is safe after Commit.
func (t *Tx) Rollback() error {
	err := t.tx.Rollback()
	if errors.Is(err, sql.ErrTxDone) {
		return nil
	}
	return err
}

// Snapshot opens a consistent read view. Count and Top on the same snapshot
// observe the same committed state.
func (ix *Index) Snapshot(ctx context.Context) (*Snapshot, error) {
	tx, err := ix.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("open %s snapshot: %w", ix.schema.Kind, err)
	}
	return &Snapshot{tx: tx, ix: ix}, nil
}

// Snapshot is a read view of an index.
type Snapshot struct {
	tx *sql.Tx
	ix *Index
}

// Close releases the snapshot.
func (s *Snapshot) Close() error {
	err := s.tx.Rollback()
	if errors.Is(err, sql.ErrTxDone) {
		return nil
	}
	return err
}

// Count returns the exact number of documents matching match.
func (s *Snapshot) Count(ctx context.Context, match string) (int, error) {
	query := "SELECT COUNT(*) FROM " + table
	var args []any
	if match != "" {
		query += " WHERE " + table + " MATCH ?"
		args = append(args, match)
	}

	var n int
	if err := s.tx.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("count %s matches: %w", s.ix.schema.Kind, err)
	}
	return n, nil
}

// Top returns the first q.Limit documents in q's order.
func (s *Snapshot) Top(ctx context.Context, q Query) ([]Hit, error) {
	order, err := s.ix.orderBy(q)
	if err != nil {
		return nil, err
	}

	var sb strings.Builder
	var args []any
	sb.WriteString(s.ix.selectSQL)
	if q.Match != "" {
		sb.WriteString(", -bm25(" + table + ") FROM " + table + " WHERE " + table + " MATCH ?")
		args = append(args, q.Match)
	} else {
		sb.WriteString(", 0.0 FROM " + table)
	}
	sb.WriteString(order)
	limit := q.Limit
	if limit <= 0 {
		limit = -1
	}
	sb.WriteString(" LIMIT ?")
	args = append(args, limit)

	rows, err := s.tx.QueryContext(ctx, sb.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("query %s index: %w", s.ix.schema.Kind, err)
	}
	defer func() { _ = rows.Close() }()

	stored := s.ix.schema.StoredFields()
	var hits []Hit
	for rows.Next() {
		var id int64
		var score float64
		values := make([]sql.NullString, len(stored))
		dest := make([]any, 0, len(stored)+2)
		dest = append(dest, &id)
		for i := range values {
			dest = append(dest, &values[i])
		}
		dest = append(dest, &score)
		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("scan %s document: %w", s.ix.schema.Kind, err)
		}

		doc := &document.Document{Kind: s.ix.schema.Kind, Fields: make(map[string]string, len(stored)+1)}
		doc.Fields[document.FieldID] = strconv.FormatInt(id, 10)
		for i, f := range stored {
			doc.Fields[f.Name] = values[i].String
		}
		hits = append(hits, Hit{Doc: doc, Score: score})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read %s index: %w", s.ix.schema.Kind, err)
	}
	return hits, nil
}

func (ix *Index) orderBy(q Query) (string, error) {
	dir := " ASC"
	if q.Desc {
		dir = " DESC"
	}

	if q.SortField == "" {
		if q.Match != "" {
			return " ORDER BY rank, rowid", nil
		}
		return " ORDER BY rowid", nil
	}

	if q.SortField == document.FieldID {
		return " ORDER BY rowid" + dir, nil
	}
	f, ok := ix.schema.Field(q.SortField)
	if !ok {
		return "", fmt.Errorf("unknown %s sort field %q", ix.schema.Kind, q.SortField)
	}
	expr := f.Name
	if f.Kind == document.Identifier {
		expr = "CAST(" + f.Name + " AS INTEGER)"
	}
	return " ORDER BY " + expr + dir + ", rowid", nil
}
