package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/sswpa/box-office/internal/model"
)

type RecitalRepo interface {
	WithTx(tx *gorm.DB) RecitalRepo
	Create(ctx context.Context, recital *model.Recital) error
	GetByID(ctx context.Context, id uint) (*model.Recital, error)
	GetBySlug(ctx context.Context, slug string) (*model.Recital, error)
	ListByStatuses(ctx context.Context, statuses []model.RecitalStatus) ([]model.Recital, error)
	ListAll(ctx context.Context) ([]model.Recital, error)
	Update(ctx context.Context, recital *model.Recital) error
	UpdateStatus(ctx context.Context, id uint, status model.RecitalStatus) error
}

type recitalRepoGorm struct {
	db *gorm.DB
}

var _ RecitalRepo = (*recitalRepoGorm)(nil)

func NewRecitalRepoGorm(db *gorm.DB) *recitalRepoGorm {
	return &recitalRepoGorm{
		db: db,
	}
}

func (r *recitalRepoGorm) WithTx(tx *gorm.DB) RecitalRepo {
	return &recitalRepoGorm{
		db: tx,
	}
}

func (r *recitalRepoGorm) Create(ctx context.Context, recital *model.Recital) error {
	return gorm.G[model.Recital](r.db).Create(ctx, recital)
}

func (r *recitalRepoGorm) GetByID(ctx context.Context, id uint) (*model.Recital, error) {
	recital, err := gorm.G[model.Recital](r.db).Where("id = ?", id).First(ctx)
	if err != nil {
		return nil, err
	}
	return &recital, nil
}

func (r *recitalRepoGorm) GetBySlug(ctx context.Context, slug string) (*model.Recital, error) {
	recital, err := gorm.G[model.Recital](r.db).Where("slug = ?", slug).First(ctx)
	if err != nil {
		return nil, err
	}
	return &recital, nil
}

func (r *recitalRepoGorm) ListByStatuses(ctx context.Context, statuses []model.RecitalStatus) ([]model.Recital, error) {
	return gorm.G[model.Recital](r.db).
		Where("status IN ?", statuses).
		Order("starts_at ASC").
		Find(ctx)
}

func (r *recitalRepoGorm) ListAll(ctx context.Context) ([]model.Recital, error) {
	return gorm.G[model.Recital](r.db).Order("starts_at ASC").Find(ctx)
}

func (r *recitalRepoGorm) Update(ctx context.Context, recital *model.Recital) error {
	return r.db.WithContext(ctx).Save(recital).Error
}

func (r *recitalRepoGorm) UpdateStatus(ctx context.Context, id uint, status model.RecitalStatus) error {
	_, err := gorm.G[model.Recital](r.db).
		Where("id = ?", id).
		Update(ctx, "status", status)
	return err
}
