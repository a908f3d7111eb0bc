package document

import (
	"strconv"
	"time"

	"github.com/dshills/caresearch/pkg/types"
)

// TimestampLayout is the fixed-width ISO-8601 UTC layout of appointment dates.
const TimestampLayout = "2006-01-02T15:04:05Z"

// Document is the flat searchable form of one active record. Every schema
// field is present; missing values are "".
type Document struct {
	Kind   types.EntityKind
	Fields map[string]string
}

// ID returns the record primary key.
func (d *Document) ID() int64 {
	return d.Int(FieldID)
}

// Get returns the value of a field, or "" when absent.
func (d *Document) Get(name string) string {
	return d.Fields[name]
}

// Int parses an Identifier field, returning 0 when empty or malformed.
func (d *Document) Int(name string) int64 {
	n, err := strconv.ParseInt(d.Fields[name], 10, 64)
	if err != nil {
		return 0
	}
	return n
}

// Time parses a SortableDate field written with TimestampLayout.
func (d *Document) Time(name string) time.Time {
	t, err := time.Parse(TimestampLayout, d.Fields[name])
	if err != nil {
		return time.Time{}
	}
	return t
}

func newDocument(kind types.EntityKind, id int64) *Document {
	doc := &Document{Kind: kind, Fields: make(map[string]string)}
	for _, f := range MustSchema(kind).Fields {
		doc.Fields[f.Name] = ""
	}
	doc.Fields[FieldID] = formatID(id)
	return doc
}

func formatID(id int64) string {
	return strconv.FormatInt(id, 10)
}

func formatTimestamp(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(TimestampLayout)
}

func formatDate(t *time.Time) string {
	if t == nil || t.IsZero() {
		return ""
	}
	return t.Format(types.DateLayout)
}
