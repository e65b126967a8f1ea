// Package sqlite provides the SQLite-backed implementation of order.Store.
//
// WAL mode is enabled on Open so readers never block the writer: payment
// callbacks write while the shopper's order page polls. We use
// modernc.org/sqlite (pure Go) instead of mattn/go-sqlite3 to avoid CGO,
// which keeps Alpine/Docker builds simple.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jcmexdev/storefront-core/internal/order"

	// Register the pure-Go SQLite driver.
	_ "modernc.org/sqlite"
)

// schema is applied once on Open. Timestamps are RFC3339 TEXT (SQLite has
// no native datetime type). payment_audit is append-only: one row per
// accepted capture, never updated.
const schema = `
CREATE TABLE IF NOT EXISTS orders (
    id               TEXT PRIMARY KEY,
    principal_id     TEXT NOT NULL,

    -- At-most-once placement: cart token + checkout session.
    placement_key    TEXT NOT NULL UNIQUE,

    -- Immutable snapshot, frozen at placement.
    items            TEXT NOT NULL,
    shipping_address TEXT NOT NULL,
    payment_method   TEXT NOT NULL,
    items_total      REAL NOT NULL,
    shipping_cost    REAL NOT NULL,
    tax_amount       REAL NOT NULL,
    grand_total      REAL NOT NULL,

    -- Mutable fulfillment state, changed only via conditional UPDATEs.
    is_paid          INTEGER NOT NULL DEFAULT 0,
    paid_at          TEXT,
    payment_result   TEXT,
    is_delivered     INTEGER NOT NULL DEFAULT 0,
    delivered_at     TEXT,

    created_at       TEXT NOT NULL,
    updated_at       TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_orders_principal ON orders(principal_id, created_at);

CREATE TABLE IF NOT EXISTS payment_audit (
    id          INTEGER PRIMARY KEY AUTOINCREMENT,
    order_id    TEXT NOT NULL,
    provider    TEXT NOT NULL,
    reference   TEXT NOT NULL DEFAULT '',
    amount      REAL NOT NULL,
    payload     TEXT,
    recorded_at TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_payment_audit_order ON payment_audit(order_id);
`

var _ order.Store = (*Store)(nil)

// Store is the SQLite implementation of order.Store.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) the database at path and applies the schema.
// Use ":memory:" style DSNs in tests.
func Open(path string) (*Store, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=foreign_keys(on)&_pragma=busy_timeout(5000)", path)

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open %q: %w", path, err)
	}

	// SQLite performs best with a single writer connection.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite: apply schema: %w", err)
	}

	return &Store{db: db}, nil
}

// Close releases the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) Create(ctx context.Context, o *order.Order) error {
	items, err := json.Marshal(o.Items)
	if err != nil {
		return fmt.Errorf("sqlite: encode items for %q: %w", o.ID, err)
	}
	addr, err := json.Marshal(o.ShippingAddress)
	if err != nil {
		return fmt.Errorf("sqlite: encode address for %q: %w", o.ID, err)
	}

	const q = `
		INSERT INTO orders
			(id, principal_id, placement_key, items, shipping_address, payment_method,
			 items_total, shipping_cost, tax_amount, grand_total, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err = s.db.ExecContext(ctx, q,
		o.ID, o.PrincipalID, o.PlacementKey, string(items), string(addr), o.PaymentMethod,
		o.ItemsTotal, o.ShippingCost, o.TaxAmount, o.GrandTotal,
		formatTime(o.CreatedAt), formatTime(o.UpdatedAt),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return order.ErrDuplicatePlacement
		}
		return fmt.Errorf("sqlite: create order %q: %w", o.ID, err)
	}
	return nil
}

func (s *Store) Get(ctx context.Context, id string) (*order.Order, error) {
	return s.getWhere(ctx, "id = ?", id)
}

func (s *Store) GetByPlacementKey(ctx context.Context, key string) (*order.Order, error) {
	return s.getWhere(ctx, "placement_key = ?", key)
}

const selectColumns = `
	SELECT id, principal_id, placement_key, items, shipping_address, payment_method,
	       items_total, shipping_cost, tax_amount, grand_total,
	       is_paid, paid_at, payment_result, is_delivered, delivered_at,
	       created_at, updated_at
	FROM   orders`

func (s *Store) getWhere(ctx context.Context, where string, arg any) (*order.Order, error) {
	row := s.db.QueryRowContext(ctx, selectColumns+" WHERE "+where, arg)
	o, err := scanOrder(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, order.ErrNotFound
	}
	return o, err
}

func (s *Store) ListByPrincipal(ctx context.Context, principalID string) ([]*order.Order, error) {
	const q = ` WHERE principal_id = ? ORDER BY created_at DESC, id`
	return s.list(ctx, selectColumns+q, principalID)
}

func (s *Store) ListAll(ctx context.Context) ([]*order.Order, error) {
	return s.list(ctx, selectColumns+` ORDER BY created_at DESC, id`)
}

func (s *Store) list(ctx context.Context, q string, args ...any) ([]*order.Order, error) {
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlite: list orders: %w", err)
	}
	defer rows.Close()

	var out []*order.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

// MarkPaid flips the paid flag with a conditional UPDATE and appends the
// audit row in the same transaction. The WHERE clause is the idempotency
// guard: a duplicate gateway confirmation matches zero rows and the audit
// trail gains nothing.
func (s *Store) MarkPaid(ctx context.Context, id string, paidAt time.Time, result order.PaymentResult) error {
	resultJSON, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("sqlite: encode payment result for %q: %w", id, err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite: begin mark paid %q: %w", id, err)
	}
	defer tx.Rollback()

	const upd = `
		UPDATE orders
		SET    is_paid = 1, paid_at = ?, payment_result = ?, updated_at = ?
		WHERE  id = ? AND is_paid = 0`

	ts := formatTime(paidAt)
	res, err := tx.ExecContext(ctx, upd, ts, string(resultJSON), ts, id)
	if err != nil {
		return fmt.Errorf("sqlite: mark paid %q: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: mark paid %q: %w", id, err)
	}
	if n == 0 {
		return s.paidConflict(ctx, id)
	}

	const audit = `
		INSERT INTO payment_audit (order_id, provider, reference, amount, payload, recorded_at)
		VALUES (?, ?, ?, ?, ?, ?)`

	_, err = tx.ExecContext(ctx, audit,
		id, result.Provider, result.Reference, result.Amount,
		nullableString(string(result.Payload)), ts,
	)
	if err != nil {
		return fmt.Errorf("sqlite: audit payment %q: %w", id, err)
	}

	return tx.Commit()
}

func (s *Store) MarkDelivered(ctx context.Context, id string, deliveredAt time.Time) error {
	const upd = `
		UPDATE orders
		SET    is_delivered = 1, delivered_at = ?, updated_at = ?
		WHERE  id = ? AND is_paid = 1 AND is_delivered = 0`

	ts := formatTime(deliveredAt)
	res, err := s.db.ExecContext(ctx, upd, ts, ts, id)
	if err != nil {
		return fmt.Errorf("sqlite: mark delivered %q: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: mark delivered %q: %w", id, err)
	}
	if n == 0 {
		if _, err := s.Get(ctx, id); err != nil {
			return err
		}
		return order.ErrInvalidTransition
	}
	return nil
}

// PaymentAuditCount returns the number of audit rows for an order. Exposed
// for reconciliation and tests.
func (s *Store) PaymentAuditCount(ctx context.Context, id string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM payment_audit WHERE order_id = ?`, id).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("sqlite: count audit rows for %q: %w", id, err)
	}
	return n, nil
}

// paidConflict distinguishes "already paid" from "no such order" after a
// zero-row conditional update.
func (s *Store) paidConflict(ctx context.Context, id string) error {
	if _, err := s.Get(ctx, id); err != nil {
		return err
	}
	return order.ErrAlreadyPaid
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOrder(row rowScanner) (*order.Order, error) {
	var (
		o             order.Order
		items         string
		addr          string
		paidAt        sql.NullString
		paymentResult sql.NullString
		deliveredAt   sql.NullString
		createdAt     string
		updatedAt     string
	)

	err := row.Scan(
		&o.ID, &o.PrincipalID, &o.PlacementKey, &items, &addr, &o.PaymentMethod,
		&o.ItemsTotal, &o.ShippingCost, &o.TaxAmount, &o.GrandTotal,
		&o.IsPaid, &paidAt, &paymentResult, &o.IsDelivered, &deliveredAt,
		&createdAt, &updatedAt,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(items), &o.Items); err != nil {
		return nil, fmt.Errorf("sqlite: decode items for %q: %w", o.ID, err)
	}
	if err := json.Unmarshal([]byte(addr), &o.ShippingAddress); err != nil {
		return nil, fmt.Errorf("sqlite: decode address for %q: %w", o.ID, err)
	}
	if paymentResult.Valid {
		var pr order.PaymentResult
		if err := json.Unmarshal([]byte(paymentResult.String), &pr); err != nil {
			return nil, fmt.Errorf("sqlite: decode payment result for %q: %w", o.ID, err)
		}
		o.PaymentResult = &pr
	}

	if o.PaidAt, err = parseNullTime(paidAt); err != nil {
		return nil, err
	}
	if o.DeliveredAt, err = parseNullTime(deliveredAt); err != nil {
		return nil, err
	}
	if o.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if o.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, err
	}

	return &o, nil
}

// nullableString returns nil for empty strings so SQLite stores NULL
// instead of an empty TEXT.
func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
