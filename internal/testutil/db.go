// Package testutil holds fixtures shared by package tests.
package testutil

import (
	"path/filepath"
	"testing"
	"time"

	"support-chat/internal/domain/user"
	"support-chat/internal/repository"

	gormsqlite "github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// OpenDB returns a migrated in-memory sqlite database private to t. A single
// pooled connection keeps the memory database alive and serializes writers.
func OpenDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:" + uuid.NewString() + "?mode=memory&cache=shared&_pragma=busy_timeout(5000)"
	return open(t, dsn, 1)
}

// OpenFileDB returns a migrated WAL sqlite database in t's temp dir with conns
// pooled connections, so concurrent transactions really contend.
func OpenFileDB(t *testing.T, conns int) *gorm.DB {
	t.Helper()
	path := filepath.Join(t.TempDir(), "chat.db")
	dsn := "file:" + path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
	return open(t, dsn, conns)
}

func open(t *testing.T, dsn string, conns int) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(gormsqlite.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(conns)
	t.Cleanup(func() { _ = sqlDB.Close() })

	if err := repository.InitSchema(db); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return db
}

// CreateUser inserts a principal with the given roles and password "Passw0rd!".
func CreateUser(t *testing.T, db *gorm.DB, name string, roles ...user.Role) user.User {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(Password), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	now := time.Now()
	u := user.User{
		ID:           uuid.New(),
		Name:         name,
		DisplayName:  name + " display",
		Email:        name + "@example.com",
		PasswordHash: string(hash),
		LastSeen:     now,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	u.SetRoles(roles...)
	if err := db.Create(&u).Error; err != nil {
		t.Fatalf("create user %s: %v", name, err)
	}
	return u
}

const Password = "Passw0rd!"
