package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/quangtdn/storeledger/internal/core/domain"
	"github.com/quangtdn/storeledger/internal/port"
)

// MySQLStore is the durable RecordStore. The conditional quantity update
// and the movement append run in one transaction; a stale expected
// quantity surfaces as port.ErrConcurrentModification. See schema.sql for
// the expected tables.
type MySQLStore struct {
	db *sql.DB
}

func NewMySQLStore(db *sql.DB) *MySQLStore {
	return &MySQLStore{db: db}
}

func (m *MySQLStore) ReadRecord(ctx context.Context, storeID, productID string) (*domain.InventoryRecord, error) {
	var rec domain.InventoryRecord
	err := m.db.QueryRowContext(ctx, `
		SELECT store_id, product_id, quantity, version, last_modified
		FROM inventory_records WHERE store_id = ? AND product_id = ?`,
		storeID, productID,
	).Scan(&rec.StoreID, &rec.ProductID, &rec.Quantity, &rec.Version, &rec.LastModified)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query record: %w", err)
	}
	return &rec, nil
}

func (m *MySQLStore) WriteRecord(ctx context.Context, storeID, productID string, expectedQuantity, newQuantity int, entry domain.MovementEntry) (*domain.InventoryRecord, error) {
	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx, `
		UPDATE inventory_records
		SET quantity = ?, version = version + 1, last_modified = NOW()
		WHERE store_id = ? AND product_id = ? AND quantity = ?`,
		newQuantity, storeID, productID, expectedQuantity,
	)
	if err != nil {
		return nil, fmt.Errorf("update record: %w", err)
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		if expectedQuantity != 0 {
			return nil, port.ErrConcurrentModification
		}
		// First touch of this key. A duplicate-key race with another
		// creator also counts as a conflict.
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO inventory_records (store_id, product_id, quantity, version, last_modified)
			VALUES (?, ?, ?, 1, NOW())`,
			storeID, productID, newQuantity,
		); err != nil {
			return nil, port.ErrConcurrentModification
		}
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO movements (id, store_id, product_id, delta, kind, reference_id, notes, correlation_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.ID, entry.StoreID, entry.ProductID, entry.Delta, string(entry.Kind),
		nullable(entry.ReferenceID), nullable(entry.Notes), nullable(entry.CorrelationID), entry.Timestamp,
	); err != nil {
		return nil, fmt.Errorf("insert movement: %w", err)
	}

	var rec domain.InventoryRecord
	if err := tx.QueryRowContext(ctx, `
		SELECT store_id, product_id, quantity, version, last_modified
		FROM inventory_records WHERE store_id = ? AND product_id = ?`,
		storeID, productID,
	).Scan(&rec.StoreID, &rec.ProductID, &rec.Quantity, &rec.Version, &rec.LastModified); err != nil {
		return nil, fmt.Errorf("reload record: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return &rec, nil
}

func (m *MySQLStore) ListRecords(ctx context.Context) ([]domain.InventoryRecord, error) {
	return m.queryRecords(ctx, `
		SELECT store_id, product_id, quantity, version, last_modified
		FROM inventory_records`)
}

func (m *MySQLStore) ListRecordsByStore(ctx context.Context, storeID string) ([]domain.InventoryRecord, error) {
	return m.queryRecords(ctx, `
		SELECT store_id, product_id, quantity, version, last_modified
		FROM inventory_records WHERE store_id = ?`, storeID)
}

func (m *MySQLStore) queryRecords(ctx context.Context, query string, args ...any) ([]domain.InventoryRecord, error) {
	rows, err := m.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query records: %w", err)
	}
	defer rows.Close()

	var out []domain.InventoryRecord
	for rows.Next() {
		var rec domain.InventoryRecord
		if err := rows.Scan(&rec.StoreID, &rec.ProductID, &rec.Quantity, &rec.Version, &rec.LastModified); err != nil {
			return nil, fmt.Errorf("scan record: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (m *MySQLStore) ListMovements(ctx context.Context, storeID, productID string, limit int) ([]domain.MovementEntry, error) {
	rows, err := m.db.QueryContext(ctx, `
		SELECT id, store_id, product_id, delta, kind,
		       COALESCE(reference_id, ''), COALESCE(notes, ''), COALESCE(correlation_id, ''), created_at
		FROM movements
		WHERE store_id = ? AND product_id = ?
		ORDER BY created_at DESC, id DESC
		LIMIT ?`,
		storeID, productID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query movements: %w", err)
	}
	defer rows.Close()

	var out []domain.MovementEntry
	for rows.Next() {
		var e domain.MovementEntry
		var kind string
		if err := rows.Scan(&e.ID, &e.StoreID, &e.ProductID, &e.Delta, &kind,
			&e.ReferenceID, &e.Notes, &e.CorrelationID, &e.Timestamp); err != nil {
			return nil, fmt.Errorf("scan movement: %w", err)
		}
		e.Kind = domain.MovementKind(kind)
		out = append(out, e)
	}
	return out, rows.Err()
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
