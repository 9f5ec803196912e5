// README: Bidding service wraps the optimizer with result cache, decision audit and metrics.
package bidding

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"farebid/internal/metrics"
	"farebid/internal/modules/feature"
	"farebid/internal/types"
)

type Service struct {
	optimizer    *Optimizer
	modelVersion string
	cache        Cache
	store        DecisionStore
	metrics      *metrics.Registry
	now          func() time.Time
}

// NewService accepts nil cache, store and metrics; each is then skipped.
func NewService(optimizer *Optimizer, modelVersion string, cache Cache, store DecisionStore, m *metrics.Registry) *Service {
	return &Service{
		optimizer:    optimizer,
		modelVersion: modelVersion,
		cache:        cache,
		store:        store,
		metrics:      m,
		now:          time.Now,
	}
}

func (s *Service) Optimize(ctx context.Context, order feature.OrderRecord, params Params) (Result, error) {
	start := s.now()
	params = params.WithDefaults(s.optimizer.defaults)

	key := s.cacheKey(order, params)
	if res, ok := s.lookup(ctx, key); ok {
		s.metrics.ObserveOptimize("cached", s.now().Sub(start))
		return res, nil
	}

	res, err := s.optimizer.Optimize(ctx, order, params)
	s.metrics.ObserveOptimize(resultLabel(err), s.now().Sub(start))
	if err != nil {
		return Result{}, err
	}

	if key != "" && s.cache != nil {
		if err := s.cache.Set(ctx, key, res); err != nil {
			log.Warn().Err(err).Msg("optimize cache set failed")
		}
	}
	if s.store != nil {
		d := &Decision{
			ID:           uuid.New(),
			OrderID:      order.OrderID,
			ModelVersion: s.modelVersion,
			Params:       params,
			Result:       res,
			CreatedAt:    s.now().UTC(),
		}
		if err := s.store.Save(ctx, d); err != nil {
			s.metrics.ObserveStoreError()
			log.Warn().Err(err).Str("order_id", order.OrderID.String()).Msg("decision save failed")
		}
	}
	return res, nil
}

// History returns recent decisions for an order, newest first.
func (s *Service) History(ctx context.Context, orderID types.ID, limit int) ([]Decision, error) {
	if s.store == nil {
		return nil, ErrStoreDisabled
	}
	return s.store.ListByOrder(ctx, orderID, limit)
}

func (s *Service) cacheKey(order feature.OrderRecord, params Params) string {
	if s.cache == nil {
		return ""
	}
	key, err := CacheKey(s.modelVersion, order, params)
	if err != nil {
		log.Debug().Err(err).Msg("optimize cache key")
		return ""
	}
	return key
}

func (s *Service) lookup(ctx context.Context, key string) (Result, bool) {
	if key == "" {
		return Result{}, false
	}
	res, ok, err := s.cache.Get(ctx, key)
	switch {
	case err != nil:
		s.metrics.ObserveCache("error")
		log.Warn().Err(err).Msg("optimize cache get failed")
		return Result{}, false
	case ok:
		s.metrics.ObserveCache("hit")
		return res, true
	default:
		s.metrics.ObserveCache("miss")
		return Result{}, false
	}
}

func resultLabel(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrNoFeasibleBid):
		return "no_feasible_bid"
	case errors.Is(err, ErrInvalidParams):
		return "invalid_params"
	default:
		return "error"
	}
}
