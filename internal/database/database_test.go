package database

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestOpenCreatesDirectoryAndSchema(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "nested", "audit.db")

	db, err := Open(dbPath)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer Close(db)

	if _, err := os.Stat(dbPath); err != nil {
		t.Fatalf("database file not created: %v", err)
	}
	if !db.Migrator().HasTable(&AuditLog{}) {
		t.Fatal("audit_logs table missing")
	}

	var mode string
	if err := db.Raw("PRAGMA journal_mode").Scan(&mode).Error; err != nil {
		t.Fatalf("read journal mode: %v", err)
	}
	if mode != "wal" {
		t.Errorf("journal_mode = %q, want wal", mode)
	}
}

func TestOpenEmptyPath(t *testing.T) {
	if _, err := Open(""); err == nil {
		t.Error("expected error for empty path")
	}
}

func TestAuditLogRoundTrip(t *testing.T) {
	db, err := Open(filepath.Join(t.TempDir(), "audit.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer Close(db)

	rec := AuditLog{
		OperationID:  "3f1c8d9e-0000-4000-8000-000000000001",
		ConnectionID: "web1",
		Operation:    "execute",
		Target:       "uptime",
		Success:      true,
		DurationMs:   12,
	}
	if err := db.Create(&rec).Error; err != nil {
		t.Fatalf("create: %v", err)
	}
	if rec.ID == 0 || rec.CreatedAt.IsZero() {
		t.Fatalf("expected id and timestamp to be set, got %+v", rec)
	}

	var got AuditLog
	if err := db.First(&got, rec.ID).Error; err != nil {
		t.Fatalf("first: %v", err)
	}
	if got.ConnectionID != "web1" || got.Operation != "execute" || !got.Success {
		t.Errorf("unexpected record %+v", got)
	}
	if time.Since(got.CreatedAt) > time.Minute {
		t.Errorf("unexpected created_at %v", got.CreatedAt)
	}
}

func TestCloseNil(t *testing.T) {
	if err := Close(nil); err != nil {
		t.Errorf("Close(nil) = %v", err)
	}
}
