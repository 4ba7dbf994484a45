package domain

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/sswpa/box-office/internal/model"
	"github.com/sswpa/box-office/internal/repository"
	"github.com/sswpa/box-office/internal/service"
)

// FailureReasonExpired marks orders resolved by the expiry sweep rather
// than by a gateway decline.
const FailureReasonExpired = "expired"

type Buyer struct {
	Name  string
	Email string
	Phone string
}

type LineItem struct {
	TicketTypeID uint
	Quantity     int
}

type OrderService interface {
	CreatePendingOrder(ctx context.Context, recitalID uint, buyer Buyer, lines []LineItem) (*model.Order, error)
	MarkCompleted(ctx context.Context, orderID uint, gatewayRef string) error
	MarkFailed(ctx context.Context, orderID uint, reason string) error
	MarkRefunded(ctx context.Context, orderID uint) error
	GetByReference(ctx context.Context, reference string) (*model.Order, []model.OrderItem, error)
	GetByID(ctx context.Context, orderID uint) (*model.Order, []model.OrderItem, error)
	ListByRecitalID(ctx context.Context, recitalID uint) ([]model.Order, error)
	ExpireIfPending(ctx context.Context, orderID uint) (bool, error)
	ExpireStalePending(ctx context.Context) (int, error)
}

type orderService struct {
	db          *gorm.DB
	orders      repository.OrderRepo
	ticketTypes repository.TicketTypeRepo
	orderExpiry time.Duration
	log         *zap.Logger
}

var _ OrderService = (*orderService)(nil)

func NewOrderService(db *gorm.DB, orders repository.OrderRepo, ticketTypes repository.TicketTypeRepo,
	orderExpiry time.Duration, log *zap.Logger) *orderService {
	return &orderService{
		db:          db,
		orders:      orders,
		ticketTypes: ticketTypes,
		orderExpiry: orderExpiry,
		log:         log,
	}
}

// CreatePendingOrder validates the cart and persists the order with its
// items in one transaction. Ticket-type rows are read under FOR UPDATE
// in ascending id order, so two concurrent checkouts for the last unit
// serialize on the same lock and cannot both pass the availability
// check. Prices are snapshotted from the ticket types at this moment;
// nothing later re-reads them.
func (s *orderService) CreatePendingOrder(ctx context.Context, recitalID uint, buyer Buyer, lines []LineItem) (*model.Order, error) {
	if buyer.Email == "" || buyer.Name == "" {
		return nil, fmt.Errorf("%w: buyer name and email are required", service.ErrValidation)
	}
	if len(lines) == 0 {
		return nil, fmt.Errorf("%w: order has no line items", service.ErrValidation)
	}

	merged, err := mergeLines(lines)
	if err != nil {
		return nil, err
	}

	var order *model.Order
	err = s.db.Transaction(func(tx *gorm.DB) error {
		ttRepo := s.ticketTypes.WithTx(tx)
		pendingSince := time.Now().Add(-s.orderExpiry)

		var (
			items []model.OrderItem
			total int64
		)
		for _, line := range merged {
			tt, err := ttRepo.GetByIDForUpdate(ctx, line.TicketTypeID)
			if err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return fmt.Errorf("%w: unknown ticket type %d", service.ErrValidation, line.TicketTypeID)
				}
				return err
			}
			if tt.RecitalID != recitalID {
				return fmt.Errorf("%w: ticket type %d does not belong to this recital", service.ErrValidation, tt.ID)
			}
			if !tt.Active {
				return fmt.Errorf("%w: ticket type %q is not available", service.ErrValidation, tt.Name)
			}
			if line.Quantity > tt.MaxPerOrder {
				return fmt.Errorf("%w: at most %d of %q per order", service.ErrValidation, tt.MaxPerOrder, tt.Name)
			}
			if tt.TotalAvailable != nil {
				sold, err := ttRepo.SoldQuantity(ctx, tt.ID, pendingSince)
				if err != nil {
					return err
				}
				if sold+int64(line.Quantity) > int64(*tt.TotalAvailable) {
					return fmt.Errorf("%w: %q", service.ErrSoldOut, tt.Name)
				}
			}

			items = append(items, model.OrderItem{
				TicketTypeID:        tt.ID,
				Quantity:            line.Quantity,
				PricePerTicketCents: tt.PriceCents,
			})
			total += tt.PriceCents * int64(line.Quantity)
		}

		order = &model.Order{
			Reference:        uuid.NewString(),
			RecitalID:        recitalID,
			BuyerName:        buyer.Name,
			BuyerEmail:       buyer.Email,
			BuyerPhone:       buyer.Phone,
			TotalAmountCents: total,
			PaymentStatus:    model.PaymentStatusPending,
		}
		orderRepo := s.orders.WithTx(tx)
		if err := orderRepo.Create(ctx, order); err != nil {
			return err
		}
		for i := range items {
			items[i].OrderID = order.ID
		}
		return orderRepo.CreateItems(ctx, items)
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("pending order created",
		zap.String("reference", order.Reference),
		zap.Uint("recital_id", recitalID),
		zap.Int64("total_cents", order.TotalAmountCents))
	return order, nil
}

// mergeLines collapses duplicate ticket types and fixes the lock order.
// Locking in ascending ticket-type id keeps concurrent multi-line
// checkouts deadlock-free.
func mergeLines(lines []LineItem) ([]LineItem, error) {
	byType := make(map[uint]int, len(lines))
	for _, line := range lines {
		if line.Quantity <= 0 {
			return nil, fmt.Errorf("%w: quantity must be positive", service.ErrValidation)
		}
		byType[line.TicketTypeID] += line.Quantity
	}
	merged := make([]LineItem, 0, len(byType))
	for id, qty := range byType {
		merged = append(merged, LineItem{TicketTypeID: id, Quantity: qty})
	}
	sort.Slice(merged, func(i, j int) bool { return merged[i].TicketTypeID < merged[j].TicketTypeID })
	return merged, nil
}

// MarkCompleted moves pending -> completed. Repeating the call with the
// same gateway reference is a no-op so a retried finalize cannot fail;
// any other starting state is a conflict.
func (s *orderService) MarkCompleted(ctx context.Context, orderID uint, gatewayRef string) error {
	return s.transition(ctx, orderID, func(order *model.Order) (model.PaymentStatus, string, string, error) {
		if order.PaymentStatus == model.PaymentStatusCompleted && order.PaymentRef == gatewayRef {
			return "", "", "", errAlreadyApplied
		}
		if order.PaymentStatus != model.PaymentStatusPending {
			return "", "", "", fmt.Errorf("%w: cannot complete order in status %s",
				service.ErrConflict, order.PaymentStatus)
		}
		return model.PaymentStatusCompleted, gatewayRef, "", nil
	})
}

// MarkFailed moves pending -> failed. Failure transitions are only
// valid from pending; every terminal state conflicts.
func (s *orderService) MarkFailed(ctx context.Context, orderID uint, reason string) error {
	return s.transition(ctx, orderID, func(order *model.Order) (model.PaymentStatus, string, string, error) {
		if order.PaymentStatus != model.PaymentStatusPending {
			return "", "", "", fmt.Errorf("%w: cannot fail order in status %s",
				service.ErrConflict, order.PaymentStatus)
		}
		return model.PaymentStatusFailed, "", reason, nil
	})
}

// MarkRefunded is administrative: completed -> refunded only.
func (s *orderService) MarkRefunded(ctx context.Context, orderID uint) error {
	return s.transition(ctx, orderID, func(order *model.Order) (model.PaymentStatus, string, string, error) {
		if !order.PaymentStatus.CanTransitionTo(model.PaymentStatusRefunded) {
			return "", "", "", fmt.Errorf("%w: cannot refund order in status %s",
				service.ErrConflict, order.PaymentStatus)
		}
		return model.PaymentStatusRefunded, "", "", nil
	})
}

// errAlreadyApplied short-circuits an idempotent repeat inside
// transition; it never escapes this package.
var errAlreadyApplied = errors.New("transition already applied")

func (s *orderService) transition(ctx context.Context, orderID uint,
	decide func(*model.Order) (model.PaymentStatus, string, string, error)) error {
	err := s.db.Transaction(func(tx *gorm.DB) error {
		repo := s.orders.WithTx(tx)
		order, err := repo.GetByIDForUpdate(ctx, orderID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return service.ErrNotFound
			}
			return err
		}
		next, paymentRef, reason, err := decide(order)
		if err != nil {
			return err
		}
		return repo.UpdatePaymentStatus(ctx, orderID, next, paymentRef, reason)
	})
	if errors.Is(err, errAlreadyApplied) {
		return nil
	}
	return err
}

func (s *orderService) GetByReference(ctx context.Context, reference string) (*model.Order, []model.OrderItem, error) {
	order, err := s.orders.GetByReference(ctx, reference)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, service.ErrNotFound
		}
		return nil, nil, err
	}
	items, err := s.orders.GetItems(ctx, order.ID)
	if err != nil {
		return nil, nil, err
	}
	return order, items, nil
}

func (s *orderService) GetByID(ctx context.Context, orderID uint) (*model.Order, []model.OrderItem, error) {
	order, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, service.ErrNotFound
		}
		return nil, nil, err
	}
	items, err := s.orders.GetItems(ctx, order.ID)
	if err != nil {
		return nil, nil, err
	}
	return order, items, nil
}

func (s *orderService) ListByRecitalID(ctx context.Context, recitalID uint) ([]model.Order, error) {
	return s.orders.ListByRecitalID(ctx, recitalID)
}

// ExpireIfPending resolves one order from the sweep. Orders that
// already reached a terminal state are left untouched; that is the
// normal case when the buyer completed payment before the expiry
// message fired.
func (s *orderService) ExpireIfPending(ctx context.Context, orderID uint) (bool, error) {
	expired := false
	err := s.db.Transaction(func(tx *gorm.DB) error {
		repo := s.orders.WithTx(tx)
		order, err := repo.GetByIDForUpdate(ctx, orderID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return service.ErrNotFound
			}
			return err
		}
		if order.PaymentStatus != model.PaymentStatusPending {
			return nil
		}
		expired = true
		return repo.UpdatePaymentStatus(ctx, orderID, model.PaymentStatusFailed, "", FailureReasonExpired)
	})
	if err != nil {
		return false, err
	}
	if expired {
		s.log.Info("pending order expired", zap.Uint("order_id", orderID))
	}
	return expired, nil
}

// ExpireStalePending is the ticker backstop behind the delayed expiry
// messages: it sweeps every pending order older than the expiry window,
// releasing the inventory those orders were holding.
func (s *orderService) ExpireStalePending(ctx context.Context) (int, error) {
	stale, err := s.orders.ListPendingOlderThan(ctx, time.Now().Add(-s.orderExpiry))
	if err != nil {
		return 0, err
	}
	expired := 0
	for _, order := range stale {
		ok, err := s.ExpireIfPending(ctx, order.ID)
		if err != nil {
			s.log.Warn("failed to expire stale order",
				zap.Uint("order_id", order.ID), zap.Error(err))
			continue
		}
		if ok {
			expired++
		}
	}
	return expired, nil
}
