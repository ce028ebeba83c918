// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/olegiv/eventboard/internal/auth"
	"github.com/olegiv/eventboard/internal/model"
)

// Default admin identity used when the configuration leaves it empty.
const (
	DefaultAdminEmail = "admin@example.com"
	DefaultAdminName  = "Administrator"
)

// AdminSeed describes the pre-provisioned administrator account.
type AdminSeed struct {
	Name     string
	Email    string
	Password string
}

// Seed creates the administrator account if it does not exist yet.
// Admins are never self-registered, so this is the only way one appears.
func Seed(ctx context.Context, db *sql.DB, admin AdminSeed) error {
	if admin.Email == "" {
		admin.Email = DefaultAdminEmail
	}
	if admin.Name == "" {
		admin.Name = DefaultAdminName
	}
	if admin.Password == "" {
		return errors.New("admin password is required for seeding")
	}

	queries := New(db)

	_, err := queries.GetUserByEmail(ctx, admin.Email)
	if err == nil {
		slog.Info("admin user already exists, skipping seed", "email", admin.Email)
		return nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("checking for admin user: %w", err)
	}

	passwordHash, err := auth.HashPassword(admin.Password)
	if err != nil {
		return fmt.Errorf("hashing password: %w", err)
	}

	user, err := queries.CreateUser(ctx, CreateUserParams{
		Name:         admin.Name,
		Email:        admin.Email,
		PasswordHash: passwordHash,
		Role:         model.RoleAdmin,
		Approved:     true,
		CreatedAt:    time.Now(),
	})
	if err != nil {
		return fmt.Errorf("creating admin user: %w", err)
	}

	slog.Info("created admin user", "id", user.ID, "email", user.Email)
	return nil
}
