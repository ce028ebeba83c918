// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/olegiv/eventboard/internal/model"
	"github.com/olegiv/eventboard/internal/store"
)

// CountryLocator maps a client IP to a country code.
type CountryLocator interface {
	Country(ip string) string
}

// AuditService records security and workflow events in the audit log.
type AuditService struct {
	queries *store.Queries
	now     func() time.Time
	locator CountryLocator
}

// NewAuditService creates a new AuditService.
func NewAuditService(db *sql.DB) *AuditService {
	return &AuditService{
		queries: store.New(db),
		now:     time.Now,
	}
}

// SetLocator adds the client's country to the metadata of entries that
// carry an IP address.
func (s *AuditService) SetLocator(l CountryLocator) {
	s.locator = l
}

// Log creates a new audit log entry.
// A nil service discards the entry.
func (s *AuditService) Log(ctx context.Context, level, category, message string, userID *int64, ipAddress string, metadata map[string]any) error {
	if s == nil {
		return nil
	}
	var nullUserID sql.NullInt64
	if userID != nil && *userID > 0 {
		nullUserID = sql.NullInt64{Int64: *userID, Valid: true}
	}

	if s.locator != nil && ipAddress != "" {
		if country := s.locator.Country(ipAddress); country != "" {
			withCountry := make(map[string]any, len(metadata)+1)
			for k, v := range metadata {
				withCountry[k] = v
			}
			withCountry["country"] = country
			metadata = withCountry
		}
	}

	metadataJSON := "{}"
	if metadata != nil {
		if b, err := json.Marshal(metadata); err == nil {
			metadataJSON = string(b)
		}
	}

	err := s.queries.CreateAuditEntry(ctx, store.CreateAuditEntryParams{
		Level:     level,
		Category:  category,
		Message:   message,
		UserID:    nullUserID,
		IPAddress: ipAddress,
		Metadata:  metadataJSON,
		CreatedAt: s.now(),
	})
	if err != nil {
		slog.Error("failed to write audit entry", "error", err, "category", category, "message", message)
		return err
	}
	return nil
}

// LogAuth logs an authentication event.
func (s *AuditService) LogAuth(ctx context.Context, level, message string, userID *int64, ip string, metadata map[string]any) error {
	return s.Log(ctx, level, model.AuditCategoryAuth, message, userID, ip, metadata)
}

// LogAccount logs an account workflow event.
func (s *AuditService) LogAccount(ctx context.Context, level, message string, userID *int64, ip string, metadata map[string]any) error {
	return s.Log(ctx, level, model.AuditCategoryAccount, message, userID, ip, metadata)
}

// LogEvent logs a content moderation event.
func (s *AuditService) LogEvent(ctx context.Context, level, message string, userID *int64, ip string, metadata map[string]any) error {
	return s.Log(ctx, level, model.AuditCategoryEvent, message, userID, ip, metadata)
}

// LogSecurity logs a rejected request (CSRF, rate limit, permission).
func (s *AuditService) LogSecurity(ctx context.Context, message string, userID *int64, ip string, metadata map[string]any) error {
	return s.Log(ctx, model.AuditLevelWarning, model.AuditCategorySecurity, message, userID, ip, metadata)
}

// List returns audit entries, newest first. An empty category lists all.
func (s *AuditService) List(ctx context.Context, category string, limit, offset int) ([]model.AuditEntry, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	return s.queries.ListAuditEntries(ctx, category, int64(limit), int64(max(offset, 0)))
}

// DeleteOlderThan removes entries older than the given age.
func (s *AuditService) DeleteOlderThan(ctx context.Context, age time.Duration) (int64, error) {
	return s.queries.DeleteAuditEntriesBefore(ctx, s.now().Add(-age))
}
