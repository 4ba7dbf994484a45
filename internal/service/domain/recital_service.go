package domain

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/sswpa/box-office/internal/cache"
	"github.com/sswpa/box-office/internal/model"
	"github.com/sswpa/box-office/internal/repository"
	"github.com/sswpa/box-office/internal/service"
)

type RecitalService interface {
	CreateRecital(ctx context.Context, recital *model.Recital) error
	UpdateRecital(ctx context.Context, recital *model.Recital) error
	GetVisibleBySlug(ctx context.Context, slug string) (*model.Recital, error)
	GetByID(ctx context.Context, id uint) (*model.Recital, error)
	ListVisible(ctx context.Context) ([]model.Recital, error)
	ListAll(ctx context.Context) ([]model.Recital, error)
	ChangeStatus(ctx context.Context, id uint, next model.RecitalStatus) (*model.Recital, error)
}

type recitalService struct {
	db    *gorm.DB
	repo  repository.RecitalRepo
	cache *cache.RedisCache
	log   *zap.Logger
}

var _ RecitalService = (*recitalService)(nil)

func NewRecitalService(db *gorm.DB, repo repository.RecitalRepo, cache *cache.RedisCache, log *zap.Logger) *recitalService {
	return &recitalService{
		db:    db,
		repo:  repo,
		cache: cache,
		log:   log,
	}
}

func (s *recitalService) CreateRecital(ctx context.Context, recital *model.Recital) error {
	if recital.Slug == "" || recital.Title == "" {
		return fmt.Errorf("%w: slug and title are required", service.ErrValidation)
	}
	if recital.Status == "" {
		recital.Status = model.RecitalStatusUpcoming
	}
	if err := s.repo.Create(ctx, recital); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return fmt.Errorf("%w: slug %q already exists", service.ErrConflict, recital.Slug)
		}
		return err
	}
	s.invalidate(ctx, recital.Slug)
	return nil
}

func (s *recitalService) UpdateRecital(ctx context.Context, recital *model.Recital) error {
	if err := s.repo.Update(ctx, recital); err != nil {
		return err
	}
	s.invalidate(ctx, recital.Slug)
	return nil
}

// GetVisibleBySlug resolves a slug for buyers. Recitals that are past
// or cancelled do not exist as far as the public surface is concerned.
func (s *recitalService) GetVisibleBySlug(ctx context.Context, slug string) (*model.Recital, error) {
	recital, err := s.repo.GetBySlug(ctx, slug)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, service.ErrNotFound
		}
		return nil, err
	}
	if !recital.Status.Visible() {
		return nil, service.ErrNotFound
	}
	return recital, nil
}

func (s *recitalService) GetByID(ctx context.Context, id uint) (*model.Recital, error) {
	recital, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, service.ErrNotFound
		}
		return nil, err
	}
	return recital, nil
}

func (s *recitalService) ListVisible(ctx context.Context) ([]model.Recital, error) {
	if s.cache != nil {
		recitals, hit, err := s.cache.GetRecitalList(ctx)
		if err != nil {
			s.log.Warn("catalog cache read failed", zap.Error(err))
		} else if hit {
			return recitals, nil
		}
	}

	recitals, err := s.repo.ListByStatuses(ctx, []model.RecitalStatus{
		model.RecitalStatusUpcoming,
		model.RecitalStatusOnSale,
	})
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		if err := s.cache.SetRecitalList(ctx, recitals); err != nil {
			s.log.Warn("catalog cache write failed", zap.Error(err))
		}
	}
	return recitals, nil
}

func (s *recitalService) ListAll(ctx context.Context) ([]model.Recital, error) {
	return s.repo.ListAll(ctx)
}

// ChangeStatus applies a lifecycle transition after checking it against
// the one-directional state machine.
func (s *recitalService) ChangeStatus(ctx context.Context, id uint, next model.RecitalStatus) (*model.Recital, error) {
	recital, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !recital.Status.CanTransitionTo(next) {
		return nil, fmt.Errorf("%w: recital status %s cannot become %s",
			service.ErrConflict, recital.Status, next)
	}
	if err := s.repo.UpdateStatus(ctx, id, next); err != nil {
		return nil, err
	}
	recital.Status = next
	s.invalidate(ctx, recital.Slug)
	s.log.Info("recital status changed",
		zap.Uint("recital_id", id),
		zap.String("status", string(next)))
	return recital, nil
}

func (s *recitalService) invalidate(ctx context.Context, slug string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.InvalidateRecital(ctx, slug); err != nil {
		s.log.Warn("catalog cache invalidation failed", zap.Error(err))
	}
}
