package repository

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/sswpa/box-office/internal/model"
)

type TicketTypeRepo interface {
	WithTx(tx *gorm.DB) TicketTypeRepo
	Create(ctx context.Context, tt *model.TicketType) error
	GetByID(ctx context.Context, id uint) (*model.TicketType, error)
	GetByIDForUpdate(ctx context.Context, id uint) (*model.TicketType, error)
	ListActiveByRecitalID(ctx context.Context, recitalID uint) ([]model.TicketType, error)
	ListByRecitalID(ctx context.Context, recitalID uint) ([]model.TicketType, error)
	Update(ctx context.Context, tt *model.TicketType) error
	SoldQuantity(ctx context.Context, ticketTypeID uint, pendingSince time.Time) (int64, error)
	HasOrderItems(ctx context.Context, ticketTypeID uint) (bool, error)
}

type ticketTypeRepoGorm struct {
	db *gorm.DB
}

var _ TicketTypeRepo = (*ticketTypeRepoGorm)(nil)

func NewTicketTypeRepoGorm(db *gorm.DB) *ticketTypeRepoGorm {
	return &ticketTypeRepoGorm{
		db: db,
	}
}

func (r *ticketTypeRepoGorm) WithTx(tx *gorm.DB) TicketTypeRepo {
	return &ticketTypeRepoGorm{
		db: tx,
	}
}

func (r *ticketTypeRepoGorm) Create(ctx context.Context, tt *model.TicketType) error {
	return gorm.G[model.TicketType](r.db).Create(ctx, tt)
}

func (r *ticketTypeRepoGorm) GetByID(ctx context.Context, id uint) (*model.TicketType, error) {
	tt, err := gorm.G[model.TicketType](r.db).Where("id = ?", id).First(ctx)
	if err != nil {
		return nil, err
	}
	return &tt, nil
}

// GetByIDForUpdate reads the ticket type under a row lock so that the
// availability check and the order insert form one atomic unit. SQLite
// (used in tests) has no FOR UPDATE; its single-writer transactions
// serialize the check-and-reserve step on their own.
func (r *ticketTypeRepoGorm) GetByIDForUpdate(ctx context.Context, id uint) (*model.TicketType, error) {
	db := r.db
	if db.Dialector.Name() == "postgres" {
		db = db.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	var tt model.TicketType
	if err := db.WithContext(ctx).Where("id = ?", id).First(&tt).Error; err != nil {
		return nil, err
	}
	return &tt, nil
}

func (r *ticketTypeRepoGorm) ListActiveByRecitalID(ctx context.Context, recitalID uint) ([]model.TicketType, error) {
	return gorm.G[model.TicketType](r.db).
		Where("recital_id = ? AND active = ?", recitalID, true).
		Order("sort_order ASC").
		Find(ctx)
}

func (r *ticketTypeRepoGorm) ListByRecitalID(ctx context.Context, recitalID uint) ([]model.TicketType, error) {
	return gorm.G[model.TicketType](r.db).
		Where("recital_id = ?", recitalID).
		Order("sort_order ASC").
		Find(ctx)
}

// Update writes the editable columns only; recital_id and created_at
// never change after creation.
func (r *ticketTypeRepoGorm) Update(ctx context.Context, tt *model.TicketType) error {
	return r.db.WithContext(ctx).
		Model(tt).
		Select("name", "price_cents", "total_available", "max_per_order", "sort_order", "active").
		Updates(tt).Error
}

// SoldQuantity counts tickets held against availability: items of
// completed orders plus items of pending orders created after
// pendingSince. Older pending orders are left to the expiry sweep and
// no longer reserve inventory.
func (r *ticketTypeRepoGorm) SoldQuantity(ctx context.Context, ticketTypeID uint, pendingSince time.Time) (int64, error) {
	var sold int64
	err := r.db.WithContext(ctx).
		Model(&model.OrderItem{}).
		Joins("JOIN orders ON orders.id = order_items.order_id").
		Where("order_items.ticket_type_id = ?", ticketTypeID).
		Where("orders.payment_status = ? OR (orders.payment_status = ? AND orders.created_at > ?)",
			model.PaymentStatusCompleted, model.PaymentStatusPending, pendingSince).
		Select("COALESCE(SUM(order_items.quantity), 0)").
		Scan(&sold).Error
	if err != nil {
		return 0, err
	}
	return sold, nil
}

func (r *ticketTypeRepoGorm) HasOrderItems(ctx context.Context, ticketTypeID uint) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&model.OrderItem{}).
		Where("ticket_type_id = ?", ticketTypeID).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}
