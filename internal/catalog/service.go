package catalog

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Service is the variant type catalog. Reads may be served from an optional cache;
// registration always goes to the repository, whose unique constraint decides duplicates.
type Service struct {
	repo   Repository
	cache  Cache
	logger zerolog.Logger
	now    func() time.Time

	// generation counts registrations. A list read from the repository is only
	// written to the cache if no registration happened while it was read.
	generation atomic.Uint64
}

// NewService builds the catalog. A nil cache disables caching.
func NewService(repo Repository, cache Cache, logger zerolog.Logger) *Service {
	return &Service{
		repo:   repo,
		cache:  cache,
		logger: logger.With().Str("component", "variant-type-catalog").Logger(),
		now:    func() time.Time { return time.Now().UTC() },
	}
}

func (s *Service) Register(ctx context.Context, name string, sortOrder int) (VariantType, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return VariantType{}, fmt.Errorf("%w: name is required", ErrInvalidType)
	}

	vt := VariantType{
		ID:        uuid.NewString(),
		Name:      name,
		SortOrder: sortOrder,
		CreatedAt: s.now(),
	}
	if err := s.repo.Insert(ctx, vt); err != nil {
		return VariantType{}, err
	}
	s.generation.Add(1)

	if s.cache != nil {
		if err := s.cache.Invalidate(ctx); err != nil {
			s.logger.Warn().Err(err).Msg("invalidate variant type cache")
		}
	}

	s.logger.Info().Str("type_id", vt.ID).Str("name", vt.Name).Int("sort_order", vt.SortOrder).Msg("variant type registered")
	return vt, nil
}

func (s *Service) List(ctx context.Context) ([]VariantType, error) {
	if s.cache != nil {
		types, ok, err := s.cache.Load(ctx)
		if err != nil {
			s.logger.Warn().Err(err).Msg("load variant type cache")
		}
		if ok {
			SortTypes(types)
			return types, nil
		}
	}
	return s.Refresh(ctx)
}

// Refresh reads the types from the repository, bypassing the cache, and
// repopulates the cache with the result.
func (s *Service) Refresh(ctx context.Context) ([]VariantType, error) {
	gen := s.generation.Load()

	types, err := s.repo.List(ctx)
	if err != nil {
		return nil, err
	}
	SortTypes(types)

	if s.cache == nil {
		return types, nil
	}
	if s.generation.Load() != gen {
		s.logger.Debug().Msg("variant type registered during read, cache not stored")
		return types, nil
	}
	if err := s.cache.Store(ctx, types); err != nil {
		s.logger.Warn().Err(err).Msg("store variant type cache")
	}
	return types, nil
}

func (s *Service) Get(ctx context.Context, name string) (VariantType, error) {
	return s.repo.GetByName(ctx, strings.TrimSpace(name))
}
