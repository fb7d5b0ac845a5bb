package database

import "time"

// AuditLog is one recorded dispatcher operation.
type AuditLog struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	CreatedAt    time.Time `gorm:"index" json:"createdAt"`
	OperationID  string    `gorm:"size:36;uniqueIndex" json:"operationId"`
	ConnectionID string    `gorm:"index" json:"connectionId"`
	Operation    string    `gorm:"index" json:"operation"`
	Target       string    `json:"target"`
	Success      bool      `json:"success"`
	Details      string    `json:"details"`
	DurationMs   int64     `json:"durationMs"`
}
