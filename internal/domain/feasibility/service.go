package feasibility

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/alexanderkiel/flare/internal/domain/sq"
	"github.com/alexanderkiel/flare/internal/platform/fhir"
	"github.com/alexanderkiel/flare/pkg/patientset"
)

// DataStore executes a single search query. *datastore.Client implements it.
type DataStore interface {
	Execute(ctx context.Context, q fhir.Query) (*patientset.Set, error)
}

type Service struct {
	translator     *Translator
	store          DataStore
	maxConcurrency int64
	logger         zerolog.Logger
}

// NewService creates a Service running at most maxConcurrency distinct queries
// of one request at the same time.
func NewService(translator *Translator, store DataStore, maxConcurrency int64, logger zerolog.Logger) *Service {
	if maxConcurrency <= 0 {
		maxConcurrency = 16
	}
	return &Service{
		translator:     translator,
		store:          store,
		maxConcurrency: maxConcurrency,
		logger:         logger.With().Str("component", "feasibility").Logger(),
	}
}

// Translate returns the queries the structured query expands to without
// executing them.
func (s *Service) Translate(ctx context.Context, q sq.StructuredQuery) (*Translation, error) {
	t, err := s.translator.translateQuery(q)
	if err != nil {
		return nil, err
	}
	logger := s.log(ctx)
	for _, query := range t.Queries {
		logger.Debug().Str("query", query.String()).Msg("generated query")
	}
	return t, nil
}

// Execute returns the number of patients matching the structured query.
// Criteria of a group are combined by union, groups by intersection. Any
// failure aborts the whole evaluation.
func (s *Service) Execute(ctx context.Context, q sq.StructuredQuery) (int, error) {
	start := time.Now()
	t, err := s.Translate(ctx, q)
	if err != nil {
		return 0, err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, gctx := errgroup.WithContext(ctx)
	results := &executions{
		ctx:   gctx,
		group: g,
		store: s.store,
		slots: semaphore.NewWeighted(s.maxConcurrency),
		byKey: make(map[string]*execution, len(t.Queries)),
	}
	for _, query := range t.Queries {
		results.start(query)
	}

	ids, err := combine(gctx, results, t)
	cancel()
	werr := g.Wait()
	if ferr := results.failure(); ferr != nil {
		// a failed execution wins over an empty intersection found at the same time
		return 0, ferr
	}
	if err != nil {
		// the first failed execution is the cause of any cancellation seen by combine
		if werr != nil {
			err = werr
		}
		return 0, err
	}

	s.log(ctx).Info().
		Int("count", ids.Len()).
		Int("queries", len(t.Queries)).
		Dur("duration", time.Since(start)).
		Msg("query executed")
	return ids.Len(), nil
}

func (s *Service) log(ctx context.Context) *zerolog.Logger {
	if l := zerolog.Ctx(ctx); l.GetLevel() != zerolog.Disabled {
		return l
	}
	return &s.logger
}

// combine evaluates the groups in order and stops as soon as the intersection
// is empty.
func combine(ctx context.Context, results *executions, t *Translation) (*patientset.Set, error) {
	var acc *patientset.Set
	for _, group := range t.InclusionCriteria {
		var criteria []*patientset.Set
		for _, c := range group {
			alternatives := make([]*patientset.Set, 0, len(c.Queries))
			for _, query := range c.Queries {
				ids, err := results.start(query).await(ctx)
				if err != nil {
					return nil, err
				}
				alternatives = append(alternatives, ids)
			}
			criteria = append(criteria, patientset.Union(alternatives...))
		}
		groupIDs := patientset.Union(criteria...)
		if acc == nil {
			acc = groupIDs
		} else {
			acc = patientset.Intersect(acc, groupIDs)
		}
		if acc.IsEmpty() {
			return acc, nil
		}
	}
	return acc, nil
}

// executions runs every distinct query of one request at most once. Later
// requesters of the same query share the running execution.
type executions struct {
	ctx   context.Context
	group *errgroup.Group
	store DataStore
	slots *semaphore.Weighted

	mu     sync.Mutex
	byKey  map[string]*execution
	failed error
}

type execution struct {
	done chan struct{}
	ids  *patientset.Set
	err  error
}

func (e *executions) start(q fhir.Query) *execution {
	e.mu.Lock()
	defer e.mu.Unlock()
	if ex, ok := e.byKey[q.Key()]; ok {
		return ex
	}
	ex := &execution{done: make(chan struct{})}
	e.byKey[q.Key()] = ex
	e.group.Go(func() error {
		defer close(ex.done)
		if err := e.slots.Acquire(e.ctx, 1); err != nil {
			ex.err = err
			return err
		}
		defer e.slots.Release(1)
		ex.ids, ex.err = e.store.Execute(e.ctx, q)
		if ex.err != nil && !e.cancelled(ex.err) {
			e.mu.Lock()
			if e.failed == nil {
				e.failed = ex.err
			}
			e.mu.Unlock()
		}
		return ex.err
	})
	return ex
}

// cancelled reports whether err only reflects the request context being done.
func (e *executions) cancelled(err error) bool {
	return e.ctx.Err() != nil && (errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded))
}

// failure returns the first execution error that was not caused by
// cancellation.
func (e *executions) failure() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.failed
}

func (ex *execution) await(ctx context.Context) (*patientset.Set, error) {
	select {
	case <-ex.done:
		return ex.ids, ex.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
