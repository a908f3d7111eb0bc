// Package records is the write path: every record change is committed to the
// record store and then reflected in the full-text index before returning.
package records

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/dshills/caresearch/internal/document"
	"github.com/dshills/caresearch/internal/indexer"
	"github.com/dshills/caresearch/internal/logger"
	"github.com/dshills/caresearch/internal/storage"
	"github.com/dshills/caresearch/pkg/types"
)

// Index is the write side of the index coordinator.
type Index interface {
	Upsert(ctx context.Context, kind types.EntityKind, id int64, doc *document.Document) error
	Rebuild(ctx context.Context, kind types.EntityKind, src indexer.Source) (indexer.RebuildStats, error)
	RebuildAll(ctx context.Context, sources map[types.EntityKind]indexer.Source) ([]indexer.RebuildStats, error)
}

// Service writes records and keeps their index documents current. When a
// store write succeeds but the index write fails, the returned error wraps
// types.ErrIndexUnavailable and the record change stays committed.
type Service struct {
	store  storage.Store
	index  Index
	logger *zap.Logger

	// held from the store read to the index write of one reindex
	reindexMu map[types.EntityKind]*sync.Mutex
}

// New creates a Service.
func New(store storage.Store, index Index, log *zap.Logger) *Service {
	s := &Service{
		store:     store,
		index:     index,
		logger:    logger.OrNop(log).Named("records"),
		reindexMu: make(map[types.EntityKind]*sync.Mutex, len(types.AllKinds)),
	}
	for _, kind := range types.AllKinds {
		s.reindexMu[kind] = &sync.Mutex{}
	}
	return s
}

// CreateDoctor inserts d and indexes it.
func (s *Service) CreateDoctor(ctx context.Context, d *types.Doctor) error {
	if err := s.store.CreateDoctor(ctx, d); err != nil {
		return err
	}
	return s.Reindex(ctx, types.KindDoctor, d.ID)
}

// UpdateDoctor saves d, reindexes it and the appointments showing its name.
func (s *Service) UpdateDoctor(ctx context.Context, d *types.Doctor) error {
	if err := s.store.UpdateDoctor(ctx, d); err != nil {
		return err
	}
	err := s.Reindex(ctx, types.KindDoctor, d.ID)
	return errors.Join(err, s.cascade(ctx, types.KindDoctor, d.ID))
}

// SoftDeleteDoctor marks the doctor inactive and removes it from the index.
func (s *Service) SoftDeleteDoctor(ctx context.Context, id int64) error {
	d, err := s.store.GetDoctor(ctx, id)
	if err != nil {
		return err
	}
	d.IsActive = false
	return s.UpdateDoctor(ctx, d)
}

// CreatePatient inserts p and indexes it.
func (s *Service) CreatePatient(ctx context.Context, p *types.Patient) error {
	if err := s.store.CreatePatient(ctx, p); err != nil {
		return err
	}
	return s.Reindex(ctx, types.KindPatient, p.ID)
}

// UpdatePatient saves p, reindexes it and the appointments showing its name.
func (s *Service) UpdatePatient(ctx context.Context, p *types.Patient) error {
	if err := s.store.UpdatePatient(ctx, p); err != nil {
		return err
	}
	err := s.Reindex(ctx, types.KindPatient, p.ID)
	return errors.Join(err, s.cascade(ctx, types.KindPatient, p.ID))
}

// SoftDeletePatient marks the patient inactive and removes it from the index.
func (s *Service) SoftDeletePatient(ctx context.Context, id int64) error {
	p, err := s.store.GetPatient(ctx, id)
	if err != nil {
		return err
	}
	p.IsActive = false
	return s.UpdatePatient(ctx, p)
}

// CreateAppointment inserts a and indexes it with its participants' names.
func (s *Service) CreateAppointment(ctx context.Context, a *types.Appointment) error {
	if err := s.store.CreateAppointment(ctx, a); err != nil {
		return err
	}
	return s.Reindex(ctx, types.KindAppointment, a.ID)
}

// UpdateAppointment saves a and reindexes it.
func (s *Service) UpdateAppointment(ctx context.Context, a *types.Appointment) error {
	if err := s.store.UpdateAppointment(ctx, a); err != nil {
		return err
	}
	return s.Reindex(ctx, types.KindAppointment, a.ID)
}

// SoftDeleteAppointment marks the appointment inactive and removes it from the index.
func (s *Service) SoftDeleteAppointment(ctx context.Context, id int64) error {
	a, err := s.store.GetAppointment(ctx, id)
	if err != nil {
		return err
	}
	a.IsActive = false
	if err := s.store.UpdateAppointment(ctx, a); err != nil {
		return err
	}
	return s.Reindex(ctx, types.KindAppointment, id)
}

// Reindex reloads the record with id and writes its current document. A
// record that is absent or inactive is removed from the index instead.
// Every record write ends here. Reindexes of one kind run one at a time
// from store read to index write, so the last one reads the newest row.
func (s *Service) Reindex(ctx context.Context, kind types.EntityKind, id int64) error {
	unlock, err := s.lock(kind)
	if err != nil {
		return err
	}
	defer unlock()

	var doc *document.Document
	switch kind {
	case types.KindDoctor:
		var d *types.Doctor
		if d, err = s.store.GetDoctor(ctx, id); err == nil {
			doc = document.ProjectDoctor(d)
		}
	case types.KindPatient:
		var p *types.Patient
		if p, err = s.store.GetPatient(ctx, id); err == nil {
			doc = document.ProjectPatient(p)
		}
	case types.KindAppointment:
		var a *types.AppointmentDetail
		if a, err = s.store.GetAppointmentDetail(ctx, id); err == nil {
			doc = document.ProjectAppointment(a)
		}
	default:
		return fmt.Errorf("%w: %q", types.ErrUnknownKind, kind)
	}
	if err != nil && !storage.IsNotFound(err) {
		return err
	}
	return s.index.Upsert(ctx, kind, id, doc)
}

// ReindexRecord writes the document of an already loaded record: a
// *types.Doctor, *types.Patient or *types.AppointmentDetail. An inactive
// record is removed from the index.
func (s *Service) ReindexRecord(ctx context.Context, record any) error {
	kind, id, doc, err := document.Project(record)
	if err != nil {
		return err
	}
	unlock, err := s.lock(kind)
	if err != nil {
		return err
	}
	defer unlock()
	return s.index.Upsert(ctx, kind, id, doc)
}

// Deindex removes the document with id from kind's index.
func (s *Service) Deindex(ctx context.Context, kind types.EntityKind, id int64) error {
	unlock, err := s.lock(kind)
	if err != nil {
		return err
	}
	defer unlock()
	return s.index.Upsert(ctx, kind, id, nil)
}

func (s *Service) lock(kind types.EntityKind) (func(), error) {
	mu, ok := s.reindexMu[kind]
	if !ok {
		return nil, fmt.Errorf("%w: %q", types.ErrUnknownKind, kind)
	}
	mu.Lock()
	return mu.Unlock, nil
}

// cascade reindexes the active appointments of a patient or doctor, whose
// documents embed the participant's name.
func (s *Service) cascade(ctx context.Context, kind types.EntityKind, id int64) error {
	var ids []int64
	var err error
	if kind == types.KindPatient {
		ids, err = s.store.AppointmentIDsForPatient(ctx, id)
	} else {
		ids, err = s.store.AppointmentIDsForDoctor(ctx, id)
	}
	if err != nil {
		return fmt.Errorf("%w: list appointments of %s %d: %w", types.ErrIndexUnavailable, kind, id, err)
	}

	var errs []error
	for _, apptID := range ids {
		if err := s.Reindex(ctx, types.KindAppointment, apptID); err != nil {
			errs = append(errs, err)
		}
	}
	if len(ids) > 0 {
		s.logger.Debug("reindexed appointments",
			zap.String("kind", string(kind)),
			zap.Int64("id", id),
			zap.Int("appointments", len(ids)),
			zap.Int("failed", len(errs)))
	}
	return errors.Join(errs...)
}

// Source streams the documents of every active record of kind.
func (s *Service) Source(kind types.EntityKind) (indexer.Source, error) {
	switch kind {
	case types.KindDoctor:
		return func(ctx context.Context, emit func(*document.Document) error) error {
			return s.store.EachActiveDoctor(ctx, func(d *types.Doctor) error {
				return emit(document.ProjectDoctor(d))
			})
		}, nil
	case types.KindPatient:
		return func(ctx context.Context, emit func(*document.Document) error) error {
			return s.store.EachActivePatient(ctx, func(p *types.Patient) error {
				return emit(document.ProjectPatient(p))
			})
		}, nil
	case types.KindAppointment:
		return func(ctx context.Context, emit func(*document.Document) error) error {
			return s.store.EachActiveAppointment(ctx, func(a *types.AppointmentDetail) error {
				return emit(document.ProjectAppointment(a))
			})
		}, nil
	}
	return nil, fmt.Errorf("%w: %q", types.ErrUnknownKind, kind)
}

// Sources returns the rebuild source of every kind.
func (s *Service) Sources() map[types.EntityKind]indexer.Source {
	out := make(map[types.EntityKind]indexer.Source, len(types.AllKinds))
	for _, kind := range types.AllKinds {
		src, _ := s.Source(kind)
		out[kind] = src
	}
	return out
}

// RebuildIndex replaces kind's index with the documents of its active records.
func (s *Service) RebuildIndex(ctx context.Context, kind types.EntityKind) (indexer.RebuildStats, error) {
	src, err := s.Source(kind)
	if err != nil {
		return indexer.RebuildStats{}, err
	}
	return s.index.Rebuild(ctx, kind, src)
}

// RebuildAll rebuilds every kind's index concurrently.
func (s *Service) RebuildAll(ctx context.Context) ([]indexer.RebuildStats, error) {
	return s.index.RebuildAll(ctx, s.Sources())
}
