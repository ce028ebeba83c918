package model

import (
	"database/sql"
	"time"
)

// Audit levels
const (
	AuditLevelInfo    = "info"
	AuditLevelWarning = "warning"
	AuditLevelError   = "error"
)

// Audit categories
const (
	AuditCategoryAuth     = "auth"
	AuditCategoryAccount  = "account"
	AuditCategoryEvent    = "event"
	AuditCategorySecurity = "security"
	AuditCategorySystem   = "system"
	AuditCategoryNotify   = "notification"
)

// AuditEntry represents an audit log entry.
type AuditEntry struct {
	ID        int64
	Level     string
	Category  string
	Message   string
	UserID    sql.NullInt64
	IPAddress string
	Metadata  string // JSON string
	CreatedAt time.Time
}
