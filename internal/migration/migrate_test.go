package migration

import (
	"context"
	"testing"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file:"+t.Name()+"?mode=memory&cache=shared"), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	return db
}

func TestRunMigrationsIsIdempotent(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	if err := RunMigrations(ctx, db, nil); err != nil {
		t.Fatalf("first run: %v", err)
	}
	if err := RunMigrations(ctx, db, nil); err != nil {
		t.Fatalf("second run: %v", err)
	}

	var versions int64
	if err := db.Raw(`SELECT COUNT(1) FROM schema_migrations`).Scan(&versions).Error; err != nil {
		t.Fatalf("count versions: %v", err)
	}
	files, err := listMigrations()
	if err != nil {
		t.Fatalf("list migrations: %v", err)
	}
	if versions != int64(len(files)) {
		t.Fatalf("expected %d recorded versions, got %d", len(files), versions)
	}

	for _, table := range []string{"businesses", "wallets", "transactions", "customers", "callback_events", "outbox_events", "ledger_entries", "api_keys", "audit_logs"} {
		var count int64
		if err := db.Raw(`SELECT COUNT(1) FROM sqlite_master WHERE type = 'table' AND name = ?`, table).Scan(&count).Error; err != nil {
			t.Fatalf("lookup table %s: %v", table, err)
		}
		if count != 1 {
			t.Fatalf("expected table %s to exist", table)
		}
	}
}

func TestCheckoutRequestIDIsUnique(t *testing.T) {
	db := openTestDB(t)
	if err := RunMigrations(context.Background(), db, nil); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	insert := `INSERT INTO transactions (id, business_id, phone_number, amount, status, checkout_request_id, created_at, updated_at)
		VALUES (?, 1, '254712345678', 10, 'pending', ?, CURRENT_TIMESTAMP, CURRENT_TIMESTAMP)`
	if err := db.Exec(insert, 1, "ws_CO_1").Error; err != nil {
		t.Fatalf("first insert: %v", err)
	}
	if err := db.Exec(insert, 2, "ws_CO_1").Error; err == nil {
		t.Fatalf("expected unique violation on checkout_request_id")
	}
	if err := db.Exec(insert, 3, nil).Error; err != nil {
		t.Fatalf("null checkout id: %v", err)
	}
	if err := db.Exec(insert, 4, nil).Error; err != nil {
		t.Fatalf("second null checkout id: %v", err)
	}
}
