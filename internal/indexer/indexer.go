package indexer

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/dshills/caresearch/internal/document"
	"github.com/dshills/caresearch/internal/fts"
	"github.com/dshills/caresearch/internal/logger"
	"github.com/dshills/caresearch/internal/metrics"
	"github.com/dshills/caresearch/internal/sqlitedb"
	"github.com/dshills/caresearch/pkg/types"
)

// ErrRebuildInProgress is returned by Rebuild when the same kind is already
// being rebuilt.
var ErrRebuildInProgress = errors.New("rebuild already in progress")

var tracer = otel.Tracer("caresearch/indexer")

// Coordinator owns the single writer of every kind's index. Writes to one
// kind are serialized; different kinds proceed in parallel.
type Coordinator struct {
	writers map[types.EntityKind]*writer
	logger  *zap.Logger

	generation atomic.Uint64
}

type writer struct {
	mu         sync.Mutex
	rebuilding IndexLock
	index      *fts.Index
}

// Source streams every active document of one kind to emit.
type Source func(ctx context.Context, emit func(*document.Document) error) error

// RebuildStats describes a completed rebuild
type RebuildStats struct {
	Kind      types.EntityKind `json:"kind"`
	Documents int              `json:"documents"`
	Duration  time.Duration    `json:"duration"`
}

// KindStatus is the size of one kind's index
type KindStatus struct {
	Kind       types.EntityKind `json:"kind"`
	Documents  int              `json:"documents"`
	Path       string           `json:"path,omitempty"`
	Rebuilding bool             `json:"rebuilding"`
}

// New builds a coordinator over already opened indexes. Every kind must be present.
func New(indexes map[types.EntityKind]*fts.Index, log *zap.Logger) (*Coordinator, error) {
	c := &Coordinator{
		writers: make(map[types.EntityKind]*writer, len(types.AllKinds)),
		logger:  logger.OrNop(log).Named("indexer"),
	}
	for _, kind := range types.AllKinds {
		ix, ok := indexes[kind]
		if !ok || ix == nil {
			return nil, fmt.Errorf("missing %s index", kind)
		}
		if ix.Schema().Kind != kind {
			return nil, fmt.Errorf("index for %s has %s schema", kind, ix.Schema().Kind)
		}
		c.writers[kind] = &writer{index: ix}
	}
	return c, nil
}

// Open opens one index per kind under dir, as <dir>/<kind>.fts.db. An empty
// dir keeps every index in memory.
func Open(ctx context.Context, dir string, log *zap.Logger) (*Coordinator, error) {
	if dir != "" {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, fmt.Errorf("create index dir: %w", err)
		}
	}

	indexes := make(map[types.EntityKind]*fts.Index, len(types.AllKinds))
	closeAll := func() {
		for _, ix := range indexes {
			_ = ix.Close()
		}
	}
	for _, kind := range types.AllKinds {
		path := sqlitedb.MemoryPath
		if dir != "" {
			path = filepath.Join(dir, string(kind)+".fts.db")
		}
		ix, err := fts.Open(ctx, path, document.MustSchema(kind))
		if err != nil {
			closeAll()
			return nil, fmt.Errorf("%w: %w", types.ErrIndexUnavailable, err)
		}
		indexes[kind] = ix
	}

	c, err := New(indexes, log)
	if err != nil {
		closeAll()
		return nil, err
	}
	return c, nil
}

func (c *Coordinator) writer(kind types.EntityKind) (*writer, error) {
	w, ok := c.writers[kind]
	if !ok {
		return nil, fmt.Errorf("%w: %q", types.ErrUnknownKind, kind)
	}
	return w, nil
}

// Upsert replaces the document with id: any existing document is deleted
// and doc, when non-nil, is inserted, in one transaction. Once Upsert
// returns, every new reader observes the change.
func (c *Coordinator) Upsert(ctx context.Context, kind types.EntityKind, id int64, doc *document.Document) (err error) {
	w, err := c.writer(kind)
	if err != nil {
		return err
	}
	if doc != nil && (doc.Kind != kind || doc.ID() != id) {
		return fmt.Errorf("%w: document %s/%d does not match %s/%d",
			types.ErrInvalidArgument, doc.Kind, doc.ID(), kind, id)
	}

	op := "upsert"
	if doc == nil {
		op = "delete"
	}

	ctx, span := tracer.Start(ctx, "indexer."+op, trace.WithAttributes(
		attribute.String("kind", string(kind)),
		attribute.Int64("id", id),
	))
	start := time.Now()
	defer func() {
		c.observe(span, kind, op, start, err)
	}()

	w.mu.Lock()
	defer w.mu.Unlock()

	if err := replace(ctx, w.index, id, doc); err != nil {
		return fmt.Errorf("%w: %s %s %d: %w", types.ErrIndexUnavailable, op, kind, id, err)
	}
	c.generation.Add(1)

	c.logger.Debug("index write",
		zap.String("kind", string(kind)),
		zap.String("op", op),
		zap.Int64("id", id))
	return nil
}

func replace(ctx context.Context, ix *fts.Index, id int64, doc *document.Document) error {
	tx, err := ix.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if err := tx.Delete(ctx, id); err != nil {
		return err
	}
	if doc != nil {
		if err := tx.Insert(ctx, doc); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// Reindex writes doc, replacing any previous version.
func (c *Coordinator) Reindex(ctx context.Context, doc *document.Document) error {
	if doc == nil {
		return fmt.Errorf("%w: nil document", types.ErrInvalidArgument)
	}
	return c.Upsert(ctx, doc.Kind, doc.ID(), doc)
}

// Deindex removes the document with id. Removing an absent document succeeds.
func (c *Coordinator) Deindex(ctx context.Context, kind types.EntityKind, id int64) error {
	return c.Upsert(ctx, kind, id, nil)
}

// Rebuild clears kind's index and refills it from src in one transaction.
// Readers see the old index until the new one commits. A second Rebuild of
// the same kind while one runs fails with ErrRebuildInProgress.
func (c *Coordinator) Rebuild(ctx context.Context, kind types.EntityKind, src Source) (stats RebuildStats, err error) {
	w, err := c.writer(kind)
	if err != nil {
		return RebuildStats{}, err
	}
	if !w.rebuilding.TryAcquire() {
		return RebuildStats{}, fmt.Errorf("%s: %w", kind, ErrRebuildInProgress)
	}
	defer w.rebuilding.Release()

	ctx, span := tracer.Start(ctx, "indexer.rebuild", trace.WithAttributes(
		attribute.String("kind", string(kind)),
	))
	start := time.Now()
	defer func() {
		c.observe(span, kind, "rebuild", start, err)
	}()

	w.mu.Lock()
	defer w.mu.Unlock()

	c.logger.Info("rebuilding index", zap.String("kind", string(kind)))

	n, err := refill(ctx, w.index, kind, src)
	if err != nil {
		return RebuildStats{}, fmt.Errorf("%w: rebuild %s: %w", types.ErrIndexUnavailable, kind, err)
	}
	c.generation.Add(1)

	stats = RebuildStats{Kind: kind, Documents: n, Duration: time.Since(start)}
	metrics.IndexDocuments.WithLabelValues(string(kind)).Set(float64(n))
	span.SetAttributes(attribute.Int("documents", n))
	c.logger.Info("index rebuilt",
		zap.String("kind", string(kind)),
		zap.Int("documents", n),
		zap.Duration("duration", stats.Duration))
	return stats, nil
}

func refill(ctx context.Context, ix *fts.Index, kind types.EntityKind, src Source) (int, error) {
	tx, err := ix.Begin(ctx)
	if err != nil {
		return 0, err
	}
	defer func() { _ = tx.Rollback() }()

	if err := tx.Clear(ctx); err != nil {
		return 0, err
	}

	n := 0
	err = src(ctx, func(doc *document.Document) error {
		if doc == nil {
			return nil
		}
		if doc.Kind != kind {
			return fmt.Errorf("source yielded %s document for %s index", doc.Kind, kind)
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := tx.Insert(ctx, doc); err != nil {
			return err
		}
		n++
		return nil
	})
	if err != nil {
		return 0, err
	}
	return n, tx.Commit()
}

// RebuildAll rebuilds every kind in sources concurrently.
func (c *Coordinator) RebuildAll(ctx context.Context, sources map[types.EntityKind]Source) ([]RebuildStats, error) {
	results := make([]RebuildStats, len(types.AllKinds))
	g, gctx := errgroup.WithContext(ctx)
	for i, kind := range types.AllKinds {
		src, ok := sources[kind]
		if !ok {
			continue
		}
		g.Go(func() error {
			stats, err := c.Rebuild(gctx, kind, src)
			if err != nil {
				return err
			}
			results[i] = stats
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := results[:0]
	for _, r := range results {
		if r.Kind != "" {
			out = append(out, r)
		}
	}
	return out, nil
}

// Read runs fn against a fresh snapshot of kind's index. Writes committed
// before Read is called are visible to fn.
func (c *Coordinator) Read(ctx context.Context, kind types.EntityKind, fn func(*fts.Snapshot) error) error {
	w, err := c.writer(kind)
	if err != nil {
		return err
	}
	snap, err := w.index.Snapshot(ctx)
	if err != nil {
		return fmt.Errorf("%w: %w", types.ErrIndexUnavailable, err)
	}
	defer func() { _ = snap.Close() }()
	return fn(snap)
}

// Schema returns the document schema of kind.
func (c *Coordinator) Schema(kind types.EntityKind) (*document.Schema, error) {
	w, err := c.writer(kind)
	if err != nil {
		return nil, err
	}
	return w.index.Schema(), nil
}

// Generation increases after every committed write or rebuild.
func (c *Coordinator) Generation() uint64 {
	return c.generation.Load()
}

// Count returns the number of documents in kind's index.
func (c *Coordinator) Count(ctx context.Context, kind types.EntityKind) (int, error) {
	w, err := c.writer(kind)
	if err != nil {
		return 0, err
	}
	n, err := w.index.Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", types.ErrIndexUnavailable, err)
	}
	return n, nil
}

// Status reports the size of every kind's index
func (c *Coordinator) Status(ctx context.Context) ([]KindStatus, error) {
	out := make([]KindStatus, 0, len(types.AllKinds))
	for _, kind := range types.AllKinds {
		n, err := c.Count(ctx, kind)
		if err != nil {
			return nil, err
		}
		w := c.writers[kind]
		out = append(out, KindStatus{
			Kind:       kind,
			Documents:  n,
			Path:       w.index.Path(),
			Rebuilding: w.rebuilding.Held(),
		})
	}
	return out, nil
}

// Close closes every index, waiting for in-flight writes.
func (c *Coordinator) Close() error {
	var errs []error
	for _, kind := range types.AllKinds {
		w := c.writers[kind]
		w.mu.Lock()
		errs = append(errs, w.index.Close())
		w.mu.Unlock()
	}
	return errors.Join(errs...)
}

func (c *Coordinator) observe(span trace.Span, kind types.EntityKind, op string, start time.Time, err error) {
	metrics.IndexWritesTotal.WithLabelValues(string(kind), op, metrics.Status(err)).Inc()
	metrics.IndexWriteDuration.WithLabelValues(string(kind), op).Observe(time.Since(start).Seconds())
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		c.logger.Error("index write failed",
			zap.String("kind", string(kind)),
			zap.String("op", op),
			zap.Error(err))
	}
	span.End()
}
