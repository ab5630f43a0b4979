package confirm

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"showroom/internal/catalog"
	"showroom/internal/metrics"
	"showroom/internal/selection"
)

// ErrNothingSelected is returned when no unit has a positive quantity.
var ErrNothingSelected = errors.New("confirm: nothing selected")

// Fetcher fetches a fresh catalog snapshot.
type Fetcher interface {
	Fetch(ctx context.Context) (catalog.Snapshot, error)
}

type Service struct {
	store   *selection.Store
	fetcher Fetcher
	log     *zap.Logger
	metrics *metrics.Registry
}

// NewService builds a confirmation service. The fetcher should not be the one
// feeding the store's reconcile loop, or previews would supersede it.
func NewService(store *selection.Store, fetcher Fetcher, log *zap.Logger, m *metrics.Registry) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{store: store, fetcher: fetcher, log: log, metrics: m}
}

// freshGroups fetches the catalog. A failed fetch yields no groups, so every
// line resolves as an orphan instead of failing the confirmation.
func (s *Service) freshGroups(ctx context.Context) []catalog.Group {
	start := time.Now()
	snap, err := s.fetcher.Fetch(ctx)
	if s.metrics != nil {
		s.metrics.FetchLatency.Observe(time.Since(start).Seconds())
	}
	if err != nil {
		s.log.Warn("catalog fetch for confirmation failed", zap.Error(err))
		return nil
	}
	return snap.Groups
}

// Preview resolves the current selection without changing it.
func (s *Service) Preview(ctx context.Context) (Confirmation, error) {
	sel := s.store.Selection()
	if sel.Total() == 0 {
		return Confirmation{}, ErrNothingSelected
	}
	return Resolve(sel, s.freshGroups(ctx)), nil
}

// Confirm resolves the selection and clears it. The selection is taken and
// reset atomically, so no adjustment made meanwhile is lost or half applied.
func (s *Service) Confirm(ctx context.Context) (Confirmation, error) {
	if s.store.Selection().Total() == 0 {
		return Confirmation{}, ErrNothingSelected
	}
	groups := s.freshGroups(ctx)
	sel, ok := s.store.Drain()
	if !ok {
		return Confirmation{}, ErrNothingSelected
	}
	c := Resolve(sel, groups)
	if s.metrics != nil {
		s.metrics.Confirmations.Inc()
		s.metrics.OrphanLines.Add(float64(c.Orphans))
	}
	s.log.Info("order confirmed",
		zap.Int("lines", len(c.Lines)),
		zap.Int("quantity", c.Quantity),
		zap.String("grand_total", c.GrandTotal.String()),
		zap.Int("orphans", c.Orphans))
	return c, nil
}
