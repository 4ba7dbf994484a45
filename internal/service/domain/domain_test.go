package domain

import (
	"fmt"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/sswpa/box-office/internal/model"
	"github.com/sswpa/box-office/internal/repository"
)

const testExpiry = time.Hour

// Each test gets its own named shared-memory database so fixtures never
// leak between tests.
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	name := strings.ReplaceAll(t.Name(), "/", "_")
	return openTestDB(t, fmt.Sprintf("file:%s?mode=memory&cache=shared", name))
}

// newFileTestDB backs the database with a real file and makes every
// transaction take the write lock up front. Concurrent checkouts then
// queue on the lock instead of failing with a busy error, which is what
// the concurrency tests need.
func newFileTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	path := filepath.Join(t.TempDir(), "box-office.db")
	return openTestDB(t, fmt.Sprintf("file:%s?_busy_timeout=10000&_txlock=immediate", path))
}

func openTestDB(t *testing.T, dsn string) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{TranslateError: true})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&model.Recital{},
		&model.TicketType{},
		&model.Order{},
		&model.OrderItem{},
	))
	return db
}

type fixture struct {
	db       *gorm.DB
	recitals RecitalService
	catalog  CatalogService
	orders   OrderService
}

func newFixture(t *testing.T) *fixture {
	return fixtureFor(t, newTestDB(t))
}

func fixtureFor(t *testing.T, db *gorm.DB) *fixture {
	t.Helper()
	log := zap.NewNop()
	recitalRepo := repository.NewRecitalRepoGorm(db)
	ttRepo := repository.NewTicketTypeRepoGorm(db)
	orderRepo := repository.NewOrderRepoGorm(db)

	recitals := NewRecitalService(db, recitalRepo, nil, log)
	return &fixture{
		db:       db,
		recitals: recitals,
		catalog:  NewCatalogService(db, ttRepo, recitals, nil, testExpiry, log),
		orders:   NewOrderService(db, orderRepo, ttRepo, testExpiry, log),
	}
}

func (f *fixture) seedRecital(t *testing.T, slug string, status model.RecitalStatus) *model.Recital {
	t.Helper()
	recital := &model.Recital{
		Slug:     slug,
		Title:    "Evening Recital",
		Artist:   "Yefim Bronfman",
		Venue:    "Carnegie Music Hall",
		StartsAt: time.Now().Add(30 * 24 * time.Hour),
		Status:   status,
	}
	require.NoError(t, f.db.Create(recital).Error)
	return recital
}

func (f *fixture) seedTicketType(t *testing.T, recitalID uint, name string, priceCents int64, totalAvailable *int) *model.TicketType {
	t.Helper()
	tt := &model.TicketType{
		RecitalID:      recitalID,
		Name:           name,
		PriceCents:     priceCents,
		TotalAvailable: totalAvailable,
		MaxPerOrder:    10,
		Active:         true,
	}
	require.NoError(t, f.db.Create(tt).Error)
	return tt
}

func intPtr(n int) *int { return &n }

func testBuyer() Buyer {
	return Buyer{Name: "Clara Wieck", Email: "clara@example.org"}
}
