package repository

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/sswpa/box-office/internal/model"
)

type OrderRepo interface {
	WithTx(tx *gorm.DB) OrderRepo
	Create(ctx context.Context, order *model.Order) error
	CreateItems(ctx context.Context, items []model.OrderItem) error
	GetByID(ctx context.Context, id uint) (*model.Order, error)
	GetByIDForUpdate(ctx context.Context, id uint) (*model.Order, error)
	GetByReference(ctx context.Context, reference string) (*model.Order, error)
	GetItems(ctx context.Context, orderID uint) ([]model.OrderItem, error)
	UpdatePaymentStatus(ctx context.Context, orderID uint, status model.PaymentStatus, paymentRef, failureReason string) error
	ListPendingOlderThan(ctx context.Context, cutoff time.Time) ([]model.Order, error)
	ListByRecitalID(ctx context.Context, recitalID uint) ([]model.Order, error)
}

type orderRepoGorm struct {
	db *gorm.DB
}

var _ OrderRepo = (*orderRepoGorm)(nil)

func NewOrderRepoGorm(db *gorm.DB) *orderRepoGorm {
	return &orderRepoGorm{
		db: db,
	}
}

func (r *orderRepoGorm) WithTx(tx *gorm.DB) OrderRepo {
	return &orderRepoGorm{
		db: tx,
	}
}

func (r *orderRepoGorm) Create(ctx context.Context, order *model.Order) error {
	return gorm.G[model.Order](r.db).Create(ctx, order)
}

func (r *orderRepoGorm) CreateItems(ctx context.Context, items []model.OrderItem) error {
	if len(items) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Create(&items).Error
}

func (r *orderRepoGorm) GetByID(ctx context.Context, id uint) (*model.Order, error) {
	order, err := gorm.G[model.Order](r.db).Where("id = ?", id).First(ctx)
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// GetByIDForUpdate locks the order row for a status transition so two
// concurrent finalizers cannot both observe the pending state.
func (r *orderRepoGorm) GetByIDForUpdate(ctx context.Context, id uint) (*model.Order, error) {
	db := r.db
	if db.Dialector.Name() == "postgres" {
		db = db.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	var order model.Order
	if err := db.WithContext(ctx).Where("id = ?", id).First(&order).Error; err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *orderRepoGorm) GetByReference(ctx context.Context, reference string) (*model.Order, error) {
	order, err := gorm.G[model.Order](r.db).Where("reference = ?", reference).First(ctx)
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *orderRepoGorm) GetItems(ctx context.Context, orderID uint) ([]model.OrderItem, error) {
	return gorm.G[model.OrderItem](r.db).Where("order_id = ?", orderID).Find(ctx)
}

func (r *orderRepoGorm) UpdatePaymentStatus(ctx context.Context, orderID uint, status model.PaymentStatus, paymentRef, failureReason string) error {
	updates := map[string]any{
		"payment_status": status,
	}
	if paymentRef != "" {
		updates["payment_ref"] = paymentRef
	}
	if failureReason != "" {
		updates["failure_reason"] = failureReason
	}
	return r.db.WithContext(ctx).
		Model(&model.Order{}).
		Where("id = ?", orderID).
		Updates(updates).Error
}

func (r *orderRepoGorm) ListPendingOlderThan(ctx context.Context, cutoff time.Time) ([]model.Order, error) {
	return gorm.G[model.Order](r.db).
		Where("payment_status = ? AND created_at < ?", model.PaymentStatusPending, cutoff).
		Order("created_at ASC").
		Find(ctx)
}

func (r *orderRepoGorm) ListByRecitalID(ctx context.Context, recitalID uint) ([]model.Order, error) {
	return gorm.G[model.Order](r.db).
		Where("recital_id = ?", recitalID).
		Order("created_at DESC").
		Find(ctx)
}
