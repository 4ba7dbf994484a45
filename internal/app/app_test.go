package app

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/sswpa/box-office/config"
	"github.com/sswpa/box-office/internal/model"
)

// The broker is optional: without it the publisher stays nil, expiry
// falls back to the ticker sweep, and startup must still succeed.
func TestInitAndCloseWithoutMessageQueue(t *testing.T) {
	db, err := gorm.Open(sqlite.Open("file:app_no_mq?mode=memory&cache=shared"),
		&gorm.Config{TranslateError: true})
	require.NoError(t, err)

	cfg := &config.Config{
		Currency:      "USD",
		OrderExpiry:   time.Hour,
		SweepInterval: time.Minute,
		Square: config.SquareConfig{
			BaseURL:     "https://connect.squareupsandbox.com",
			AccessToken: "test-token",
			Timeout:     time.Second,
		},
	}

	application := New(cfg, db, nil, nil, zap.NewNop())
	require.NoError(t, application.Init())

	// The store is migrated and usable.
	seeded := &model.Recital{
		Slug:     "wired-up",
		Title:    "Season Opener",
		Artist:   "Igor Levit",
		StartsAt: time.Now().Add(24 * time.Hour),
		Status:   model.RecitalStatusUpcoming,
	}
	require.NoError(t, db.Create(seeded).Error)
	recital, err := application.RecitalService.GetByID(context.Background(), seeded.ID)
	require.NoError(t, err)
	assert.Equal(t, "wired-up", recital.Slug)

	require.NoError(t, application.Close())
}
