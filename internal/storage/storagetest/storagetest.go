// Package storagetest opens throwaway stores for tests on an in-memory SQLite database.
package storagetest

import (
	"context"
	"fmt"
	"testing"

	"friendchat/backend/internal/models"
	"friendchat/backend/internal/storage"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// New returns a migrated store backed by a private in-memory database. A single
// connection serializes transactions the way a serializable isolation level would.
func New(t testing.TB) *storage.Service {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_busy_timeout=5000", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), storage.GormConfig())
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	s := storage.NewStorageService(db)
	require.NoError(t, s.Migrate())
	return s
}

// SeedUser inserts a user named after its email's local part.
func SeedUser(t testing.TB, s storage.Storage, name string) *models.User {
	t.Helper()

	user := &models.User{Name: name, Email: name + "@example.com"}
	require.NoError(t, s.SaveUser(context.Background(), user))
	return user
}
