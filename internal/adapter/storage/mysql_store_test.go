package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"testing"
	"time"

	_ "github.com/go-sql-driver/mysql"

	"github.com/quangtdn/storeledger/internal/core/domain"
	"github.com/quangtdn/storeledger/internal/port"
)

func setupMySQL(t *testing.T) *MySQLStore {
	t.Helper()

	dsn := os.Getenv("MYSQL_DSN")
	if dsn == "" {
		dsn = "root:root@tcp(localhost:3306)/storeledger?parseTime=true"
	}

	db, err := sql.Open("mysql", dsn)
	if err != nil {
		t.Skipf("MySQL not available: %v", err)
	}
	if err := db.Ping(); err != nil {
		t.Skipf("MySQL not available: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return NewMySQLStore(db)
}

func testKey(t *testing.T) (string, string) {
	// Unique per run so tests do not step on leftover rows.
	return fmt.Sprintf("store-%d", time.Now().UnixNano()), "prod-1"
}

func TestMySQLWriteRecord_CreateAndUpdate(t *testing.T) {
	store := setupMySQL(t)
	ctx := context.Background()
	storeID, productID := testKey(t)

	entry := domain.NewMovement(domain.MovementIn, storeID, productID, 10, "po-1", "first delivery", "")
	rec, err := store.WriteRecord(ctx, storeID, productID, 0, 10, entry)
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if rec.Quantity != 10 || rec.Version != 1 {
		t.Errorf("got quantity %d version %d, want 10/1", rec.Quantity, rec.Version)
	}

	entry = domain.NewMovement(domain.MovementOut, storeID, productID, -4, "", "", "")
	rec, err = store.WriteRecord(ctx, storeID, productID, 10, 6, entry)
	if err != nil {
		t.Fatalf("update failed: %v", err)
	}
	if rec.Quantity != 6 || rec.Version != 2 {
		t.Errorf("got quantity %d version %d, want 6/2", rec.Quantity, rec.Version)
	}

	moves, err := store.ListMovements(ctx, storeID, productID, 10)
	if err != nil {
		t.Fatalf("ListMovements failed: %v", err)
	}
	if len(moves) != 2 {
		t.Fatalf("expected 2 movements, got %d", len(moves))
	}
	if moves[0].Kind != domain.MovementOut || moves[0].Delta != -4 {
		t.Errorf("newest movement = %s/%d, want OUT/-4", moves[0].Kind, moves[0].Delta)
	}
}

func TestMySQLWriteRecord_StaleExpectationConflicts(t *testing.T) {
	store := setupMySQL(t)
	ctx := context.Background()
	storeID, productID := testKey(t)

	entry := domain.NewMovement(domain.MovementIn, storeID, productID, 10, "", "", "")
	if _, err := store.WriteRecord(ctx, storeID, productID, 0, 10, entry); err != nil {
		t.Fatalf("create failed: %v", err)
	}

	entry = domain.NewMovement(domain.MovementOut, storeID, productID, -5, "", "", "")
	_, err := store.WriteRecord(ctx, storeID, productID, 8, 3, entry)
	if !errors.Is(err, port.ErrConcurrentModification) {
		t.Fatalf("expected ErrConcurrentModification, got %v", err)
	}

	rec, err := store.ReadRecord(ctx, storeID, productID)
	if err != nil {
		t.Fatalf("ReadRecord failed: %v", err)
	}
	if rec.Quantity != 10 {
		t.Errorf("failed write changed quantity to %d", rec.Quantity)
	}
}

func TestMySQLReadRecord_Absent(t *testing.T) {
	store := setupMySQL(t)

	rec, err := store.ReadRecord(context.Background(), "store-never", "prod-never")
	if err != nil {
		t.Fatalf("ReadRecord failed: %v", err)
	}
	if rec != nil {
		t.Errorf("expected nil for absent record, got %+v", rec)
	}
}
