package database

import (
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"support-chat/internal/domain/user"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// SeedAccount describes one principal to create if missing.
type SeedAccount struct {
	Name        string
	DisplayName string
	Email       string
	Password    string
	Roles       []user.Role
}

// SeedResult holds the principals that exist after seeding.
type SeedResult struct {
	AdminUser *user.User
	TestUsers []*user.User
}

// SeedProduction makes sure one admin account exists.
func SeedProduction(db *gorm.DB, adminEmail, adminPassword string) (*user.User, error) {
	return seedAccount(db, SeedAccount{
		Name:        "admin",
		DisplayName: "Support Admin",
		Email:       adminEmail,
		Password:    adminPassword,
		Roles:       []user.Role{user.RoleAdmin},
	})
}

// SeedDevelopment creates an admin and a handful of plain users.
func SeedDevelopment(db *gorm.DB, userCount int) (*SeedResult, error) {
	admin, err := SeedProduction(db, "admin@support.chat", "Admin@123!")
	if err != nil {
		return nil, fmt.Errorf("failed to seed admin user: %w", err)
	}

	result := &SeedResult{AdminUser: admin}
	for i := 1; i <= userCount; i++ {
		u, err := seedAccount(db, SeedAccount{
			Name:        fmt.Sprintf("customer%d", i),
			DisplayName: fmt.Sprintf("Customer %d", i),
			Email:       fmt.Sprintf("customer%d@support.chat", i),
			Password:    "Customer@123!",
		})
		if err != nil {
			return nil, fmt.Errorf("failed to seed test user %d: %w", i, err)
		}
		result.TestUsers = append(result.TestUsers, u)
	}
	return result, nil
}

func seedAccount(db *gorm.DB, acc SeedAccount) (*user.User, error) {
	email := strings.ToLower(strings.TrimSpace(acc.Email))

	var existing user.User
	err := db.Where("email = ?", email).First(&existing).Error
	if err == nil {
		log.Printf("Seed: %s already exists", email)
		return &existing, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(acc.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	u := &user.User{
		ID:           uuid.New(),
		Name:         strings.ToLower(strings.TrimSpace(acc.Name)),
		DisplayName:  acc.DisplayName,
		Email:        email,
		PasswordHash: string(hash),
		LastSeen:     now,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	u.SetRoles(acc.Roles...)

	if err := db.Create(u).Error; err != nil {
		return nil, err
	}
	log.Printf("Seed: created %s (%s)", u.Email, u.ID)
	return u, nil
}
