// Package logging provides a slog handler that mirrors warnings and errors
// into the audit log table.
package logging

import (
	"context"
	"database/sql"
	"encoding/json"
	"log/slog"
	"strings"

	"github.com/olegiv/eventboard/internal/model"
	"github.com/olegiv/eventboard/internal/store"
)

// AuditLogHandler is a slog.Handler that wraps another handler and also writes
// records at or above its level to the audit log.
type AuditLogHandler struct {
	inner   slog.Handler
	queries *store.Queries
	level   slog.Level // Minimum level to mirror (default: WARN)
	attrs   []slog.Attr
}

// NewAuditLogHandler wraps inner. Records at WARN and above are also stored.
func NewAuditLogHandler(inner slog.Handler, db *sql.DB) *AuditLogHandler {
	return NewAuditLogHandlerWithLevel(inner, db, slog.LevelWarn)
}

// NewAuditLogHandlerWithLevel wraps inner with a custom mirroring threshold.
func NewAuditLogHandlerWithLevel(inner slog.Handler, db *sql.DB, level slog.Level) *AuditLogHandler {
	return &AuditLogHandler{
		inner:   inner,
		queries: store.New(db),
		level:   level,
	}
}

// Enabled implements slog.Handler.
func (h *AuditLogHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.inner.Enabled(ctx, level)
}

// Handle implements slog.Handler.
func (h *AuditLogHandler) Handle(ctx context.Context, r slog.Record) error {
	if err := h.inner.Handle(ctx, r); err != nil {
		return err
	}
	if r.Level >= h.level {
		h.write(r)
	}
	return nil
}

// WithAttrs implements slog.Handler.
func (h *AuditLogHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &AuditLogHandler{
		inner:   h.inner.WithAttrs(attrs),
		queries: h.queries,
		level:   h.level,
		attrs:   append(append([]slog.Attr(nil), h.attrs...), attrs...),
	}
}

// WithGroup implements slog.Handler. Grouped attributes are stored flat.
func (h *AuditLogHandler) WithGroup(name string) slog.Handler {
	return &AuditLogHandler{
		inner:   h.inner.WithGroup(name),
		queries: h.queries,
		level:   h.level,
		attrs:   h.attrs,
	}
}

// write stores the record. Failures are dropped: logging them would recurse.
func (h *AuditLogHandler) write(r slog.Record) {
	entry := store.CreateAuditEntryParams{
		Level:     auditLevel(r.Level),
		Message:   r.Message,
		CreatedAt: r.Time,
	}

	meta := make(map[string]any)
	collect := func(a slog.Attr) bool {
		switch a.Key {
		case "category":
			entry.Category = a.Value.String()
		case "user_id":
			if a.Value.Kind() == slog.KindInt64 {
				entry.UserID = sql.NullInt64{Int64: a.Value.Int64(), Valid: true}
			}
		case "ip":
			entry.IPAddress = a.Value.String()
		default:
			meta[a.Key] = attrValue(a.Value)
		}
		return true
	}
	for _, a := range h.attrs {
		collect(a)
	}
	r.Attrs(collect)

	if entry.Category == "" {
		entry.Category = inferCategory(r.Message)
	}
	entry.Metadata = "{}"
	if len(meta) > 0 {
		if b, err := json.Marshal(meta); err == nil {
			entry.Metadata = string(b)
		}
	}

	// The request context may already be cancelled.
	_ = h.queries.CreateAuditEntry(context.Background(), entry)
}

func attrValue(v slog.Value) any {
	v = v.Resolve()
	switch v.Kind() {
	case slog.KindAny:
		if err, ok := v.Any().(error); ok {
			return err.Error()
		}
		return v.String()
	case slog.KindGroup:
		group := make(map[string]any)
		for _, a := range v.Group() {
			group[a.Key] = attrValue(a.Value)
		}
		return group
	case slog.KindInt64:
		return v.Int64()
	case slog.KindBool:
		return v.Bool()
	default:
		return v.String()
	}
}

func auditLevel(level slog.Level) string {
	switch {
	case level >= slog.LevelError:
		return model.AuditLevelError
	case level >= slog.LevelWarn:
		return model.AuditLevelWarning
	default:
		return model.AuditLevelInfo
	}
}

// inferCategory guesses a category from the message text.
func inferCategory(msg string) string {
	msg = strings.ToLower(msg)
	switch {
	case strings.Contains(msg, "csrf") || strings.Contains(msg, "rate limit") ||
		strings.Contains(msg, "throttle") || strings.Contains(msg, "access denied"):
		return model.AuditCategorySecurity
	case strings.Contains(msg, "login") || strings.Contains(msg, "logout") ||
		strings.Contains(msg, "session") || strings.Contains(msg, "password"):
		return model.AuditCategoryAuth
	case strings.Contains(msg, "notification") || strings.Contains(msg, "mail"):
		return model.AuditCategoryNotify
	case strings.Contains(msg, "event") || strings.Contains(msg, "image"):
		return model.AuditCategoryEvent
	case strings.Contains(msg, "teacher") || strings.Contains(msg, "account") || strings.Contains(msg, "user"):
		return model.AuditCategoryAccount
	default:
		return model.AuditCategorySystem
	}
}
