package sshaudit

import (
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/gluk-w/mcp-ssh/internal/database"
	"github.com/gluk-w/mcp-ssh/internal/logutil"
)

// Operation names recorded in the audit table.
const (
	OpConnect    = "connect"
	OpExecute    = "execute"
	OpUpload     = "upload"
	OpDownload   = "download"
	OpList       = "list"
	OpDisconnect = "disconnect"
)

// DefaultRetentionDays is the default number of days to keep audit logs.
const DefaultRetentionDays = 90

const maxTargetLen = 512

// Entry contains the fields needed to create an audit log entry.
type Entry struct {
	ConnectionID string
	Operation    string
	Target       string
	Success      bool
	Details      string
	DurationMs   int64
}

// Auditor writes audit records to the database and emits a log line for
// each of them.
type Auditor struct {
	mu            sync.RWMutex
	db            *gorm.DB
	retentionDays int
	nowFn         func() time.Time // injectable clock for testing
}

// NewAuditor creates an Auditor that writes to db. If retentionDays is 0,
// DefaultRetentionDays is used.
func NewAuditor(db *gorm.DB, retentionDays int) *Auditor {
	if retentionDays <= 0 {
		retentionDays = DefaultRetentionDays
	}
	return &Auditor{
		db:            db,
		retentionDays: retentionDays,
		nowFn:         time.Now,
	}
}

// Log records entry and returns the generated operation ID.
func (a *Auditor) Log(entry Entry) (string, error) {
	opID := uuid.New().String()
	record := database.AuditLog{
		OperationID:  opID,
		ConnectionID: entry.ConnectionID,
		Operation:    entry.Operation,
		Target:       logutil.Truncate(entry.Target, maxTargetLen),
		Success:      entry.Success,
		Details:      logutil.Truncate(entry.Details, maxTargetLen),
		DurationMs:   entry.DurationMs,
	}

	a.mu.Lock()
	err := a.db.Create(&record).Error
	a.mu.Unlock()
	if err != nil {
		log.Printf("[audit] failed to write audit log: %v", err)
		return "", err
	}

	log.Printf("[audit] %s op=%s id=%s success=%t target=%s (%dms)",
		opID,
		entry.Operation,
		logutil.SanitizeForLog(entry.ConnectionID),
		entry.Success,
		logutil.Truncate(entry.Target, 80),
		entry.DurationMs,
	)
	return opID, nil
}

// QueryOptions specifies filters for retrieving audit logs.
type QueryOptions struct {
	ConnectionID string
	Operation    string
	FailedOnly   bool
	Since        *time.Time
	Until        *time.Time
	Limit        int
	Offset       int
}

// QueryResult contains audit log entries and pagination metadata.
type QueryResult struct {
	Entries []database.AuditLog `json:"entries"`
	Total   int64               `json:"total"`
	Limit   int                 `json:"limit"`
	Offset  int                 `json:"offset"`
}

// Query retrieves audit log entries matching opts, newest first.
func (a *Auditor) Query(opts QueryOptions) (*QueryResult, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	tx := a.db.Model(&database.AuditLog{})

	if opts.ConnectionID != "" {
		tx = tx.Where("connection_id = ?", opts.ConnectionID)
	}
	if opts.Operation != "" {
		tx = tx.Where("operation = ?", opts.Operation)
	}
	if opts.FailedOnly {
		tx = tx.Where("success = ?", false)
	}
	if opts.Since != nil {
		tx = tx.Where("created_at >= ?", *opts.Since)
	}
	if opts.Until != nil {
		tx = tx.Where("created_at <= ?", *opts.Until)
	}

	var total int64
	if err := tx.Count(&total).Error; err != nil {
		return nil, err
	}

	if opts.Limit <= 0 {
		opts.Limit = 50
	}
	if opts.Limit > 1000 {
		opts.Limit = 1000
	}
	if opts.Offset < 0 {
		opts.Offset = 0
	}

	var entries []database.AuditLog
	if err := tx.Order("created_at DESC, id DESC").Offset(opts.Offset).Limit(opts.Limit).Find(&entries).Error; err != nil {
		return nil, err
	}

	return &QueryResult{
		Entries: entries,
		Total:   total,
		Limit:   opts.Limit,
		Offset:  opts.Offset,
	}, nil
}

// PurgeOlderThan removes entries older than days. A value of 0 or less uses
// the configured retention period. Returns the number of records deleted.
func (a *Auditor) PurgeOlderThan(days int) (int64, error) {
	if days <= 0 {
		days = a.retentionDays
	}
	cutoff := a.nowFn().AddDate(0, 0, -days)

	a.mu.Lock()
	result := a.db.Where("created_at < ?", cutoff).Delete(&database.AuditLog{})
	a.mu.Unlock()
	if result.Error != nil {
		log.Printf("[audit] purge failed: %v", result.Error)
		return 0, result.Error
	}
	if result.RowsAffected > 0 {
		log.Printf("[audit] purged %d audit log entries older than %d days", result.RowsAffected, days)
	}
	return result.RowsAffected, nil
}

// RetentionDays returns the configured retention period.
func (a *Auditor) RetentionDays() int {
	return a.retentionDays
}

// SetNowFunc sets the clock function used for testing.
func (a *Auditor) SetNowFunc(fn func() time.Time) {
	a.nowFn = fn
}
