package indexer

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/dshills/caresearch/internal/document"
	"github.com/dshills/caresearch/internal/fts"
	"github.com/dshills/caresearch/pkg/types"
)

func setupCoordinator(t *testing.T) *Coordinator {
	t.Helper()
	c, err := Open(context.Background(), "", zaptest.NewLogger(t))
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func doctorDoc(id int64, first, last string) *document.Document {
	return document.ProjectDoctor(&types.Doctor{ID: id, FirstName: first, LastName: last, IsActive: true})
}

func sourceOf(docs ...*document.Document) Source {
	return func(ctx context.Context, emit func(*document.Document) error) error {
		for _, d := range docs {
			if err := emit(d); err != nil {
				return err
			}
		}
		return nil
	}
}

func count(t *testing.T, c *Coordinator, kind types.EntityKind) int {
	t.Helper()
	n, err := c.Count(context.Background(), kind)
	require.NoError(t, err)
	return n
}

func firstNames(t *testing.T, c *Coordinator, kind types.EntityKind) []string {
	t.Helper()
	var names []string
	err := c.Read(context.Background(), kind, func(s *fts.Snapshot) error {
		hits, err := s.Top(context.Background(), fts.Query{})
		if err != nil {
			return err
		}
		for _, h := range hits {
			names = append(names, h.Doc.Get(document.FieldFirstName))
		}
		return nil
	})
	require.NoError(t, err)
	return names
}

func TestUpsertIsIdempotent(t *testing.T) {
	c := setupCoordinator(t)
	ctx := context.Background()

	doc := doctorDoc(1, "Gregory", "House")
	require.NoError(t, c.Reindex(ctx, doc))
	require.NoError(t, c.Reindex(ctx, doc))
	require.NoError(t, c.Upsert(ctx, types.KindDoctor, 1, doctorDoc(1, "Greg", "House")))

	assert.Equal(t, 1, count(t, c, types.KindDoctor))
	assert.Equal(t, []string{"Greg"}, firstNames(t, c, types.KindDoctor))
}

func TestDeindex(t *testing.T) {
	c := setupCoordinator(t)
	ctx := context.Background()

	require.NoError(t, c.Reindex(ctx, doctorDoc(1, "Gregory", "House")))
	require.NoError(t, c.Deindex(ctx, types.KindDoctor, 1))
	assert.Zero(t, count(t, c, types.KindDoctor))

	// absent id
	require.NoError(t, c.Deindex(ctx, types.KindDoctor, 42))
}

func TestUpsertValidation(t *testing.T) {
	c := setupCoordinator(t)
	ctx := context.Background()

	err := c.Upsert(ctx, types.KindPatient, 1, doctorDoc(1, "Gregory", "House"))
	assert.ErrorIs(t, err, types.ErrInvalidArgument)

	err = c.Upsert(ctx, types.KindDoctor, 2, doctorDoc(1, "Gregory", "House"))
	assert.ErrorIs(t, err, types.ErrInvalidArgument)

	err = c.Deindex(ctx, "nurse", 1)
	assert.ErrorIs(t, err, types.ErrUnknownKind)

	err = c.Reindex(ctx, nil)
	assert.ErrorIs(t, err, types.ErrInvalidArgument)
}

func TestKindsAreIsolated(t *testing.T) {
	c := setupCoordinator(t)
	ctx := context.Background()

	require.NoError(t, c.Reindex(ctx, doctorDoc(1, "Gregory", "House")))
	require.NoError(t, c.Reindex(ctx, document.ProjectPatient(&types.Patient{ID: 1, FirstName: "John", IsActive: true})))

	assert.Equal(t, 1, count(t, c, types.KindDoctor))
	assert.Equal(t, 1, count(t, c, types.KindPatient))
	assert.Zero(t, count(t, c, types.KindAppointment))
}

func TestGenerationAdvances(t *testing.T) {
	c := setupCoordinator(t)
	ctx := context.Background()

	g0 := c.Generation()
	require.NoError(t, c.Reindex(ctx, doctorDoc(1, "Gregory", "House")))
	g1 := c.Generation()
	assert.Greater(t, g1, g0)

	_, err := c.Rebuild(ctx, types.KindDoctor, sourceOf())
	require.NoError(t, err)
	assert.Greater(t, c.Generation(), g1)
}

func TestConcurrentUpserts(t *testing.T) {
	c := setupCoordinator(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := int64(1); i <= 40; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, c.Reindex(ctx, doctorDoc(i%20+1, "Doc", "Tor")))
		}()
	}
	wg.Wait()

	assert.Equal(t, 20, count(t, c, types.KindDoctor))
}

func TestRebuildReplacesContents(t *testing.T) {
	c := setupCoordinator(t)
	ctx := context.Background()

	require.NoError(t, c.Reindex(ctx, doctorDoc(9, "Stale", "Entry")))

	stats, err := c.Rebuild(ctx, types.KindDoctor, sourceOf(
		doctorDoc(1, "Gregory", "House"),
		nil,
		doctorDoc(2, "Lisa", "Cuddy"),
	))
	require.NoError(t, err)
	assert.Equal(t, types.KindDoctor, stats.Kind)
	assert.Equal(t, 2, stats.Documents)
	assert.ElementsMatch(t, []string{"Gregory", "Lisa"}, firstNames(t, c, types.KindDoctor))
}

func TestRebuildFailureKeepsOldIndex(t *testing.T) {
	c := setupCoordinator(t)
	ctx := context.Background()

	require.NoError(t, c.Reindex(ctx, doctorDoc(1, "Gregory", "House")))

	boom := errors.New("record store down")
	_, err := c.Rebuild(ctx, types.KindDoctor, func(ctx context.Context, emit func(*document.Document) error) error {
		if err := emit(doctorDoc(2, "Lisa", "Cuddy")); err != nil {
			return err
		}
		return boom
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.ErrorIs(t, err, types.ErrIndexUnavailable)

	assert.Equal(t, []string{"Gregory"}, firstNames(t, c, types.KindDoctor))
}

func TestRebuildRejectsForeignDocuments(t *testing.T) {
	c := setupCoordinator(t)
	_, err := c.Rebuild(context.Background(), types.KindPatient, sourceOf(doctorDoc(1, "Gregory", "House")))
	assert.Error(t, err)
	assert.Zero(t, count(t, c, types.KindPatient))
}

func TestRebuildInProgress(t *testing.T) {
	c := setupCoordinator(t)
	ctx := context.Background()

	started := make(chan struct{})
	release := make(chan struct{})
	done := make(chan error, 1)
	go func() {
		_, err := c.Rebuild(ctx, types.KindDoctor, func(ctx context.Context, emit func(*document.Document) error) error {
			close(started)
			<-release
			return emit(doctorDoc(1, "Gregory", "House"))
		})
		done <- err
	}()

	<-started
	_, err := c.Rebuild(ctx, types.KindDoctor, sourceOf())
	assert.ErrorIs(t, err, ErrRebuildInProgress)

	// other kinds are unaffected
	_, err = c.Rebuild(ctx, types.KindPatient, sourceOf())
	assert.NoError(t, err)

	close(release)
	require.NoError(t, <-done)
	assert.Equal(t, 1, count(t, c, types.KindDoctor))
}

func TestRebuildAll(t *testing.T) {
	c := setupCoordinator(t)

	stats, err := c.RebuildAll(context.Background(), map[types.EntityKind]Source{
		types.KindDoctor:  sourceOf(doctorDoc(1, "Gregory", "House")),
		types.KindPatient: sourceOf(),
	})
	require.NoError(t, err)
	require.Len(t, stats, 2)
	assert.Equal(t, types.KindDoctor, stats[0].Kind)
	assert.Equal(t, 1, stats[0].Documents)
	assert.Equal(t, types.KindPatient, stats[1].Kind)
}

func TestCancelledUpsertLeavesPreviousDocument(t *testing.T) {
	c := setupCoordinator(t)
	require.NoError(t, c.Reindex(context.Background(), doctorDoc(1, "Gregory", "House")))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := c.Deindex(ctx, types.KindDoctor, 1)
	require.Error(t, err)
	assert.ErrorIs(t, err, types.ErrIndexUnavailable)

	assert.Equal(t, 1, count(t, c, types.KindDoctor))
}

func TestStatus(t *testing.T) {
	c := setupCoordinator(t)
	require.NoError(t, c.Reindex(context.Background(), doctorDoc(1, "Gregory", "House")))

	status, err := c.Status(context.Background())
	require.NoError(t, err)
	require.Len(t, status, 3)
	assert.Equal(t, types.KindDoctor, status[0].Kind)
	assert.Equal(t, 1, status[0].Documents)
	assert.False(t, status[0].Rebuilding)
}

func TestOpenOnDisk(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "index")
	c, err := Open(context.Background(), dir, nil)
	require.NoError(t, err)
	require.NoError(t, c.Reindex(context.Background(), doctorDoc(1, "Gregory", "House")))
	require.NoError(t, c.Close())

	for _, kind := range types.AllKinds {
		_, err := os.Stat(filepath.Join(dir, string(kind)+".fts.db"))
		assert.NoError(t, err, kind)
	}

	reopened, err := Open(context.Background(), dir, nil)
	require.NoError(t, err)
	defer func() { _ = reopened.Close() }()
	assert.Equal(t, 1, count(t, reopened, types.KindDoctor))
}

func TestNewRequiresEveryKind(t *testing.T) {
	_, err := New(map[types.EntityKind]*fts.Index{}, nil)
	assert.Error(t, err)
}

func TestUpsertStorageFailure(t *testing.T) {
	indexes := make(map[types.EntityKind]*fts.Index)
	var doctorMock sqlmock.Sqlmock
	for _, kind := range types.AllKinds {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		t.Cleanup(func() { _ = db.Close() })
		indexes[kind] = fts.New(db, document.MustSchema(kind))
		if kind == types.KindDoctor {
			doctorMock = mock
		}
	}
	c, err := New(indexes, zaptest.NewLogger(t))
	require.NoError(t, err)

	doctorMock.ExpectBegin()
	doctorMock.ExpectExec("DELETE FROM documents").WillReturnError(errors.New("database is locked"))
	doctorMock.ExpectRollback()

	err = c.Reindex(context.Background(), doctorDoc(1, "Gregory", "House"))
	require.Error(t, err)
	assert.ErrorIs(t, err, types.ErrIndexUnavailable)
	assert.Contains(t, err.Error(), "database is locked")
	assert.Zero(t, c.Generation())
	assert.NoError(t, doctorMock.ExpectationsWereMet())
}

func TestReadSeesCommittedWrite(t *testing.T) {
	c := setupCoordinator(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	require.NoError(t, c.Reindex(ctx, doctorDoc(3, "James", "Wilson")))
	err := c.Read(ctx, types.KindDoctor, func(s *fts.Snapshot) error {
		n, err := s.Count(ctx, `"wil"*`)
		if err != nil {
			return err
		}
		assert.Equal(t, 1, n)
		return nil
	})
	require.NoError(t, err)
}
