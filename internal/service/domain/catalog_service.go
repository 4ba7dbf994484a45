package domain

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/sswpa/box-office/internal/cache"
	"github.com/sswpa/box-office/internal/model"
	"github.com/sswpa/box-office/internal/repository"
	"github.com/sswpa/box-office/internal/service"
)

// CatalogService is the pricing/inventory model: which ticket types a
// buyer can purchase for a recital, at what price, and how many remain.
type CatalogService interface {
	ListPurchasableTicketTypes(ctx context.Context, slug string) (*model.Recital, []model.TicketType, error)
	CheckAvailability(ctx context.Context, ticketTypeID uint, requestedQty int) (remaining *int64, ok bool, err error)
	GetTicketType(ctx context.Context, id uint) (*model.TicketType, error)
	CreateTicketType(ctx context.Context, tt *model.TicketType) error
	UpdateTicketType(ctx context.Context, tt *model.TicketType) error
	ListByRecitalID(ctx context.Context, recitalID uint) ([]model.TicketType, error)
}

type catalogService struct {
	db          *gorm.DB
	repo        repository.TicketTypeRepo
	recitals    RecitalService
	cache       *cache.RedisCache
	orderExpiry time.Duration
	log         *zap.Logger
}

var _ CatalogService = (*catalogService)(nil)

func NewCatalogService(db *gorm.DB, repo repository.TicketTypeRepo, recitals RecitalService,
	cache *cache.RedisCache, orderExpiry time.Duration, log *zap.Logger) *catalogService {
	return &catalogService{
		db:          db,
		repo:        repo,
		recitals:    recitals,
		cache:       cache,
		orderExpiry: orderExpiry,
		log:         log,
	}
}

// ListPurchasableTicketTypes returns active ticket types for an on-sale
// recital, sorted by sort order. A slug that resolves to anything else
// is NotFound for buyers.
func (s *catalogService) ListPurchasableTicketTypes(ctx context.Context, slug string) (*model.Recital, []model.TicketType, error) {
	if s.cache != nil {
		listing, hit, err := s.cache.GetTicketTypes(ctx, slug)
		if err != nil {
			s.log.Warn("catalog cache read failed", zap.Error(err))
		} else if hit {
			return &listing.Recital, listing.TicketTypes, nil
		}
	}

	recital, err := s.recitals.GetVisibleBySlug(ctx, slug)
	if err != nil {
		return nil, nil, err
	}
	if !recital.Status.Purchasable() {
		return nil, nil, fmt.Errorf("%w: recital %q is not on sale", service.ErrValidation, slug)
	}

	ticketTypes, err := s.repo.ListActiveByRecitalID(ctx, recital.ID)
	if err != nil {
		return nil, nil, err
	}

	if s.cache != nil {
		listing := &cache.TicketTypeListing{Recital: *recital, TicketTypes: ticketTypes}
		if err := s.cache.SetTicketTypes(ctx, slug, listing); err != nil {
			s.log.Warn("catalog cache write failed", zap.Error(err))
		}
	}
	return recital, ticketTypes, nil
}

// CheckAvailability compares the requested quantity against what is
// left after completed and live pending orders. Unlimited types always
// succeed with a nil remaining count. This is advisory for display; the
// authoritative check runs inside the checkout transaction.
func (s *catalogService) CheckAvailability(ctx context.Context, ticketTypeID uint, requestedQty int) (*int64, bool, error) {
	tt, err := s.repo.GetByID(ctx, ticketTypeID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, false, service.ErrNotFound
		}
		return nil, false, err
	}
	if tt.TotalAvailable == nil {
		return nil, true, nil
	}

	sold, err := s.repo.SoldQuantity(ctx, ticketTypeID, time.Now().Add(-s.orderExpiry))
	if err != nil {
		return nil, false, err
	}
	remaining := int64(*tt.TotalAvailable) - sold
	if remaining < 0 {
		remaining = 0
	}
	return &remaining, int64(requestedQty) <= remaining, nil
}

func (s *catalogService) GetTicketType(ctx context.Context, id uint) (*model.TicketType, error) {
	tt, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, service.ErrNotFound
		}
		return nil, err
	}
	return tt, nil
}

func (s *catalogService) CreateTicketType(ctx context.Context, tt *model.TicketType) error {
	if tt.Name == "" || tt.PriceCents < 0 {
		return fmt.Errorf("%w: ticket type needs a name and a non-negative price", service.ErrValidation)
	}
	if tt.MaxPerOrder <= 0 {
		tt.MaxPerOrder = 10
	}
	recital, err := s.recitals.GetByID(ctx, tt.RecitalID)
	if err != nil {
		return err
	}
	if err := s.repo.Create(ctx, tt); err != nil {
		return err
	}
	s.invalidate(ctx, recital.Slug)
	return nil
}

// UpdateTicketType rejects price edits once any order item references
// the type. Historical orders carry price snapshots, but keeping the
// live price stable after first sale removes a whole class of admin
// surprises; raise prices by adding a new type and deactivating the old.
func (s *catalogService) UpdateTicketType(ctx context.Context, tt *model.TicketType) error {
	existing, err := s.repo.GetByID(ctx, tt.ID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return service.ErrNotFound
		}
		return err
	}
	if tt.PriceCents != existing.PriceCents {
		referenced, err := s.repo.HasOrderItems(ctx, tt.ID)
		if err != nil {
			return err
		}
		if referenced {
			return fmt.Errorf("%w: price is immutable once the ticket type has been sold", service.ErrConflict)
		}
	}
	tt.RecitalID = existing.RecitalID
	if tt.MaxPerOrder <= 0 {
		tt.MaxPerOrder = existing.MaxPerOrder
	}
	if err := s.repo.Update(ctx, tt); err != nil {
		return err
	}
	if recital, err := s.recitals.GetByID(ctx, existing.RecitalID); err == nil {
		s.invalidate(ctx, recital.Slug)
	}
	return nil
}

func (s *catalogService) ListByRecitalID(ctx context.Context, recitalID uint) ([]model.TicketType, error) {
	return s.repo.ListByRecitalID(ctx, recitalID)
}

func (s *catalogService) invalidate(ctx context.Context, slug string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.InvalidateRecital(ctx, slug); err != nil {
		s.log.Warn("catalog cache invalidation failed", zap.Error(err))
	}
}
