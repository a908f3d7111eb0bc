package searcher

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/dshills/caresearch/internal/document"
	"github.com/dshills/caresearch/internal/fts"
	"github.com/dshills/caresearch/internal/logger"
	"github.com/dshills/caresearch/internal/metrics"
	"github.com/dshills/caresearch/internal/pager"
	"github.com/dshills/caresearch/internal/planner"
	"github.com/dshills/caresearch/pkg/types"
)

var tracer = otel.Tracer("caresearch/searcher")

const (
	pathStructured = "structured"
	pathFullText   = "fulltext"
)

// RecordReader is the part of the record store the search paths read from.
type RecordReader interface {
	ListDoctors(ctx context.Context, q types.DoctorQuery) (pager.Page[types.Doctor], error)
	ListPatients(ctx context.Context, q types.PatientQuery) (pager.Page[types.Patient], error)
	ListAppointments(ctx context.Context, q types.AppointmentQuery) (pager.Page[types.AppointmentResult], error)
	GetDoctorsByIDs(ctx context.Context, ids []int64) (map[int64]*types.Doctor, error)
	GetPatientsByIDs(ctx context.Context, ids []int64) (map[int64]*types.Patient, error)
}

// TextSearcher runs full-text requests; *planner.Planner implements it.
type TextSearcher interface {
	Search(ctx context.Context, req planner.Request) (pager.Page[fts.Hit], error)
}

// Options tunes a Searcher. Zero values disable the limit or the cache.
type Options struct {
	MaxPageSize int
	CacheSize   int
	CacheTTL    time.Duration
	// Generation reports the index write generation; cached pages from an
	// older generation are discarded. Required when CacheSize > 0.
	Generation func() uint64
	Logger     *zap.Logger
}

// cacheEntry is a full-text page cached for one index generation
type cacheEntry struct {
	page       any
	generation uint64
	expiresAt  time.Time
}

// Searcher answers searches for every entity kind. A request without text
// is answered by the record store; a request with text by the index.
type Searcher struct {
	records RecordReader
	text    TextSearcher
	opts    Options
	logger  *zap.Logger

	cache   *lru.Cache[[32]byte, *cacheEntry]
	cacheMu sync.RWMutex
}

// New creates a Searcher.
func New(records RecordReader, text TextSearcher, opts Options) *Searcher {
	s := &Searcher{
		records: records,
		text:    text,
		opts:    opts,
		logger:  logger.OrNop(opts.Logger).Named("searcher"),
	}
	if opts.CacheSize > 0 && opts.Generation != nil {
		cache, err := lru.New[[32]byte, *cacheEntry](opts.CacheSize)
		if err != nil {
			// only fails for a non-positive size
			panic(fmt.Sprintf("failed to create LRU cache: %v", err))
		}
		s.cache = cache
	}
	return s
}

// SearchDoctors answers a doctor query.
func (s *Searcher) SearchDoctors(ctx context.Context, q types.DoctorQuery) (page pager.Page[types.DoctorResult], err error) {
	ctx, done := s.begin(ctx, types.KindDoctor, q.SearchParams)
	defer func() { done(err) }()

	if err := s.validate(types.KindDoctor, &q.SearchParams); err != nil {
		return page, err
	}

	if !q.HasText() {
		res, err := s.records.ListDoctors(ctx, q)
		if err != nil {
			return page, unavailable(err)
		}
		return pager.Map(res, func(d types.Doctor) types.DoctorResult {
			return types.NewDoctorResult(&d)
		}), nil
	}

	return fullText(ctx, s, types.KindDoctor, q.SearchParams,
		func(ctx context.Context, hits pager.Page[fts.Hit]) (pager.Page[types.DoctorResult], bool) {
			return pager.Map(hits, func(h fts.Hit) types.DoctorResult { return doctorFromDoc(h.Doc) }), true
		})
}

// SearchPatients answers a patient query.
func (s *Searcher) SearchPatients(ctx context.Context, q types.PatientQuery) (page pager.Page[types.PatientResult], err error) {
	ctx, done := s.begin(ctx, types.KindPatient, q.SearchParams)
	defer func() { done(err) }()

	if err := s.validate(types.KindPatient, &q.SearchParams); err != nil {
		return page, err
	}

	if !q.HasText() {
		res, err := s.records.ListPatients(ctx, q)
		if err != nil {
			return page, unavailable(err)
		}
		return pager.Map(res, func(p types.Patient) types.PatientResult {
			return types.NewPatientResult(&p)
		}), nil
	}

	return fullText(ctx, s, types.KindPatient, q.SearchParams,
		func(ctx context.Context, hits pager.Page[fts.Hit]) (pager.Page[types.PatientResult], bool) {
			return pager.Map(hits, func(h fts.Hit) types.PatientResult { return patientFromDoc(h.Doc) }), true
		})
}

// SearchAppointments answers an appointment query. On the full-text path
// the participant names of the returned page are looked up in the record
// store; a failed lookup leaves the names empty instead of failing the page.
func (s *Searcher) SearchAppointments(ctx context.Context, q types.AppointmentQuery) (page pager.Page[types.AppointmentResult], err error) {
	ctx, done := s.begin(ctx, types.KindAppointment, q.SearchParams)
	defer func() { done(err) }()

	if err := s.validate(types.KindAppointment, &q.SearchParams); err != nil {
		return page, err
	}

	if !q.HasText() {
		res, err := s.records.ListAppointments(ctx, q)
		if err != nil {
			return page, unavailable(err)
		}
		return res, nil
	}

	return fullText(ctx, s, types.KindAppointment, q.SearchParams, s.hydrateAppointments)
}

// Request is the kind-agnostic search boundary used by the tool server and CLI.
type Request struct {
	Kind       types.EntityKind
	Text       string
	PageNumber int
	PageSize   int
	Sort       []string
	Order      string
}

// Search dispatches req to the search of its kind. The result is a
// pager.Page of DoctorResult, PatientResult or AppointmentResult.
func (s *Searcher) Search(ctx context.Context, req Request) (any, error) {
	order, err := types.ParseOrder(req.Order)
	if err != nil {
		return nil, err
	}
	params := types.SearchParams{
		Text:       req.Text,
		Sort:       req.Sort,
		Order:      order,
		PageNumber: req.PageNumber,
		PageSize:   req.PageSize,
	}

	switch req.Kind {
	case types.KindDoctor:
		return s.SearchDoctors(ctx, types.DoctorQuery{SearchParams: params})
	case types.KindPatient:
		return s.SearchPatients(ctx, types.PatientQuery{SearchParams: params})
	case types.KindAppointment:
		return s.SearchAppointments(ctx, types.AppointmentQuery{SearchParams: params})
	}
	return nil, fmt.Errorf("%w: %q", types.ErrUnknownKind, req.Kind)
}

// validate runs the checks shared by both paths. The full-text path orders
// by the first sort key only, but every key must be known.
func (s *Searcher) validate(kind types.EntityKind, p *types.SearchParams) error {
	if err := pager.Validate(p.PageNumber, p.PageSize, s.opts.MaxPageSize); err != nil {
		return err
	}
	order, err := types.ParseOrder(string(p.Order))
	if err != nil {
		return err
	}
	p.Order = order

	if p.HasText() {
		schema := document.MustSchema(kind)
		for _, key := range p.Sort {
			if _, err := schema.SortField(key); err != nil {
				return err
			}
		}
	}
	return nil
}

// fullText runs the planner and converts its hits. convert reports whether
// the converted page is complete and may be cached.
func fullText[T any](ctx context.Context, s *Searcher, kind types.EntityKind, p types.SearchParams,
	convert func(context.Context, pager.Page[fts.Hit]) (pager.Page[T], bool)) (pager.Page[T], error) {

	req := planner.Request{
		Kind:       kind,
		Text:       p.Text,
		PageNumber: p.PageNumber,
		PageSize:   p.PageSize,
		Order:      p.Order,
	}
	if len(p.Sort) > 0 {
		req.SortField = p.Sort[0]
	}

	key := cacheKey(req)
	if cached, ok := s.cached(key); ok {
		if page, ok := cached.(pager.Page[T]); ok {
			return clonePage(page), nil
		}
	}

	gen := s.generation()
	hits, err := s.text.Search(ctx, req)
	if err != nil {
		if errors.Is(err, types.ErrInvalidArgument) {
			return pager.Page[T]{}, err
		}
		return pager.Page[T]{}, unavailable(err)
	}

	page, complete := convert(ctx, hits)
	if complete {
		s.store(key, gen, clonePage(page))
	}
	return page, nil
}

func (s *Searcher) hydrateAppointments(ctx context.Context, hits pager.Page[fts.Hit]) (pager.Page[types.AppointmentResult], bool) {
	page := pager.Map(hits, func(h fts.Hit) types.AppointmentResult { return appointmentFromDoc(h.Doc) })
	if len(page.Data) == 0 {
		return page, true
	}

	patientIDs := make([]int64, 0, len(page.Data))
	doctorIDs := make([]int64, 0, len(page.Data))
	seenP := make(map[int64]bool)
	seenD := make(map[int64]bool)
	for _, a := range page.Data {
		if a.PatientID > 0 && !seenP[a.PatientID] {
			seenP[a.PatientID] = true
			patientIDs = append(patientIDs, a.PatientID)
		}
		if a.DoctorID > 0 && !seenD[a.DoctorID] {
			seenD[a.DoctorID] = true
			doctorIDs = append(doctorIDs, a.DoctorID)
		}
	}

	var (
		patients   map[int64]*types.Patient
		doctors    map[int64]*types.Doctor
		patientErr error
		doctorErr  error
		wg         sync.WaitGroup
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		patients, patientErr = s.records.GetPatientsByIDs(ctx, patientIDs)
	}()
	go func() {
		defer wg.Done()
		doctors, doctorErr = s.records.GetDoctorsByIDs(ctx, doctorIDs)
	}()
	wg.Wait()

	if patientErr != nil {
		s.hydrationFailed("patient", patientIDs, patientErr)
	}
	if doctorErr != nil {
		s.hydrationFailed("doctor", doctorIDs, doctorErr)
	}

	for i := range page.Data {
		a := &page.Data[i]
		if p, ok := patients[a.PatientID]; ok {
			a.PatientName = p.FullName()
		}
		if d, ok := doctors[a.DoctorID]; ok {
			a.DoctorName = d.FullName()
		}
	}
	return page, patientErr == nil && doctorErr == nil
}

func (s *Searcher) hydrationFailed(relation string, ids []int64, err error) {
	metrics.HydrationFailuresTotal.WithLabelValues(relation).Inc()
	s.logger.Warn("name lookup failed, leaving names empty",
		zap.String("relation", relation),
		zap.Int64s("ids", ids),
		zap.Error(err))
}

func doctorFromDoc(d *document.Document) types.DoctorResult {
	return types.DoctorResult{
		ID:             d.ID(),
		UserID:         d.Int(document.FieldUserID),
		FirstName:      d.Get(document.FieldFirstName),
		LastName:       d.Get(document.FieldLastName),
		Specialization: d.Get(document.FieldSpecialization),
		ContactNumber:  d.Get(document.FieldContactNumber),
		Email:          d.Get(document.FieldEmail),
		Schedule:       d.Get(document.FieldSchedule),
	}
}

func patientFromDoc(d *document.Document) types.PatientResult {
	return types.PatientResult{
		ID:                 d.ID(),
		UserID:             d.Int(document.FieldUserID),
		FirstName:          d.Get(document.FieldFirstName),
		LastName:           d.Get(document.FieldLastName),
		DateOfBirth:        d.Get(document.FieldDateOfBirth),
		Gender:             d.Get(document.FieldGender),
		ContactNumber:      d.Get(document.FieldContactNumber),
		Address:            d.Get(document.FieldAddress),
		MedicalHistory:     d.Get(document.FieldMedicalHistory),
		Allergies:          d.Get(document.FieldAllergies),
		CurrentMedications: d.Get(document.FieldCurrentMedications),
	}
}

// appointmentFromDoc leaves the names empty; they are filled by hydration.
func appointmentFromDoc(d *document.Document) types.AppointmentResult {
	return types.AppointmentResult{
		ID:              d.ID(),
		PatientID:       d.Int(document.FieldPatientID),
		DoctorID:        d.Int(document.FieldDoctorID),
		AppointmentDate: d.Time(document.FieldAppointmentDate),
		Reason:          d.Get(document.FieldReason),
		Status:          d.Get(document.FieldStatus),
		Notes:           d.Get(document.FieldNotes),
	}
}

func unavailable(err error) error {
	if errors.Is(err, types.ErrInvalidArgument) {
		return err
	}
	return fmt.Errorf("%w: %w", types.ErrSearchUnavailable, err)
}

// begin starts the span and returns the function that records the outcome.
func (s *Searcher) begin(ctx context.Context, kind types.EntityKind, p types.SearchParams) (context.Context, func(error)) {
	path := pathStructured
	if p.HasText() {
		path = pathFullText
	}
	ctx, span := tracer.Start(ctx, "searcher.search", trace.WithAttributes(
		attribute.String("kind", string(kind)),
		attribute.String("path", path),
		attribute.Int("page", p.PageNumber),
		attribute.Int("page_size", p.PageSize),
	))
	start := time.Now()

	return ctx, func(err error) {
		metrics.SearchRequestsTotal.WithLabelValues(string(kind), path, metrics.Status(err)).Inc()
		metrics.SearchDuration.WithLabelValues(string(kind), path).Observe(time.Since(start).Seconds())
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			if !errors.Is(err, types.ErrInvalidArgument) {
				s.logger.Error("search failed",
					zap.String("kind", string(kind)),
					zap.String("path", path),
					zap.Error(err))
			}
		}
		span.End()
	}
}

// cached returns the page stored under key if it is from the current
// index generation and has not expired.
func (s *Searcher) cached(key [32]byte) (any, bool) {
	if s.cache == nil {
		return nil, false
	}

	s.cacheMu.RLock()
	entry, found := s.cache.Get(key)
	s.cacheMu.RUnlock()

	if !found {
		metrics.SearchCacheTotal.WithLabelValues("miss").Inc()
		return nil, false
	}
	if entry.generation != s.generation() || (!entry.expiresAt.IsZero() && time.Now().After(entry.expiresAt)) {
		s.cacheMu.Lock()
		s.cache.Remove(key)
		s.cacheMu.Unlock()
		metrics.SearchCacheTotal.WithLabelValues("miss").Inc()
		return nil, false
	}

	metrics.SearchCacheTotal.WithLabelValues("hit").Inc()
	return entry.page, true
}

// store caches page as the result of generation gen, read before the search ran.
func (s *Searcher) store(key [32]byte, gen uint64, page any) {
	if s.cache == nil {
		return
	}
	entry := &cacheEntry{page: page, generation: gen}
	if s.opts.CacheTTL > 0 {
		entry.expiresAt = time.Now().Add(s.opts.CacheTTL)
	}

	s.cacheMu.Lock()
	s.cache.Add(key, entry)
	s.cacheMu.Unlock()
}

func (s *Searcher) generation() uint64 {
	if s.opts.Generation == nil {
		return 0
	}
	return s.opts.Generation()
}

// InvalidateCache drops every cached page.
func (s *Searcher) InvalidateCache() {
	if s.cache == nil {
		return
	}
	s.cacheMu.Lock()
	s.cache.Purge()
	s.cacheMu.Unlock()
}

// CacheLen returns the number of cached pages.
func (s *Searcher) CacheLen() int {
	if s.cache == nil {
		return 0
	}
	s.cacheMu.RLock()
	defer s.cacheMu.RUnlock()
	return s.cache.Len()
}

// cacheKey computes a stable hash of a full-text request.
func cacheKey(req planner.Request) [32]byte {
	var data strings.Builder
	data.WriteString(string(req.Kind))
	data.WriteString("|")
	data.WriteString(strings.Join(planner.Tokenize(req.Text), " "))
	data.WriteString("|")
	data.WriteString(fmt.Sprintf("%d|%d", req.PageNumber, req.PageSize))
	data.WriteString("|")
	data.WriteString(strings.ToLower(req.SortField))
	data.WriteString("|")
	data.WriteString(string(req.Order))
	return sha256.Sum256([]byte(data.String()))
}

func clonePage[T any](p pager.Page[T]) pager.Page[T] {
	p.Data = append(make([]T, 0, len(p.Data)), p.Data...)
	return p
}
