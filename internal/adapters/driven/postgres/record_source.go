package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/ledgerwise/ledgerwise-core/internal/core/domain"
	"github.com/ledgerwise/ledgerwise-core/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.RecordSource = (*RecordSource)(nil)

// RecordSource reads a user's products, sales and debts.
// All three reads share one read-only snapshot.
type RecordSource struct {
	db *DB
}

// NewRecordSource creates a new RecordSource
func NewRecordSource(db *DB) *RecordSource {
	return &RecordSource{db: db}
}

// FetchUserRecords returns the most recent limit records of each kind
func (s *RecordSource) FetchUserRecords(ctx context.Context, userID string, limit int) (*domain.UserRecordSet, error) {
	if limit <= 0 {
		limit = domain.DefaultRecordLimit
	}

	set := &domain.UserRecordSet{UserID: userID}
	opts := &sql.TxOptions{Isolation: sql.LevelRepeatableRead, ReadOnly: true}

	err := s.db.Transaction(ctx, opts, func(tx *sql.Tx) error {
		err := tx.QueryRowContext(ctx, `SELECT currency FROM users WHERE id = $1`, userID).Scan(&set.Currency)
		if errors.Is(err, sql.ErrNoRows) {
			return domain.ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("load user: %w", err)
		}

		if set.Products, err = fetchProducts(ctx, tx, userID, limit); err != nil {
			return fmt.Errorf("load products: %w", err)
		}
		if set.Sales, err = fetchSales(ctx, tx, userID, limit); err != nil {
			return fmt.Errorf("load sales: %w", err)
		}
		if set.Debts, err = fetchDebts(ctx, tx, userID, limit); err != nil {
			return fmt.Errorf("load debts: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return set, nil
}

func fetchProducts(ctx context.Context, tx *sql.Tx, userID string, limit int) ([]domain.Product, error) {
	rows, err := tx.QueryContext(ctx, `
		SELECT id, user_id, name, description, quantity, acquisition_value, acquired_at,
			status, loss_reason, loss_date
		FROM products
		WHERE user_id = $1
		ORDER BY acquired_at DESC, id
		LIMIT $2
	`, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var products []domain.Product
	for rows.Next() {
		var p domain.Product
		var lossDate sql.NullTime
		if err := rows.Scan(
			&p.ID,
			&p.UserID,
			&p.Name,
			&p.Description,
			&p.Quantity,
			&p.AcquisitionValue,
			&p.AcquiredAt,
			&p.Status,
			&p.LossReason,
			&lossDate,
		); err != nil {
			return nil, err
		}
		p.LossDate = TimePtr(lossDate)
		products = append(products, p)
	}
	return products, rows.Err()
}

func fetchSales(ctx context.Context, tx *sql.Tx, userID string, limit int) ([]domain.Sale, error) {
	rows, err := tx.QueryContext(ctx, `
		SELECT s.id, s.user_id, COALESCE(s.product_id, ''),
			COALESCE(NULLIF(s.product_name, ''), p.name, ''),
			s.quantity, s.sale_value, s.sold_at, s.customer_name, s.payment_status
		FROM sales s
		LEFT JOIN products p ON p.id = s.product_id
		WHERE s.user_id = $1
		ORDER BY s.sold_at DESC, s.id
		LIMIT $2
	`, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sales []domain.Sale
	for rows.Next() {
		var s domain.Sale
		if err := rows.Scan(
			&s.ID,
			&s.UserID,
			&s.ProductID,
			&s.ProductName,
			&s.Quantity,
			&s.SaleValue,
			&s.SoldAt,
			&s.CustomerName,
			&s.PaymentStatus,
		); err != nil {
			return nil, err
		}
		sales = append(sales, s)
	}
	return sales, rows.Err()
}

func fetchDebts(ctx context.Context, tx *sql.Tx, userID string, limit int) ([]domain.Debt, error) {
	rows, err := tx.QueryContext(ctx, `
		SELECT id, user_id, description, creditor, amount, due_date, paid, paid_at
		FROM debts
		WHERE user_id = $1
		ORDER BY created_at DESC, id
		LIMIT $2
	`, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var debts []domain.Debt
	for rows.Next() {
		var d domain.Debt
		var dueDate, paidAt sql.NullTime
		if err := rows.Scan(
			&d.ID,
			&d.UserID,
			&d.Description,
			&d.Creditor,
			&d.Amount,
			&dueDate,
			&d.Paid,
			&paidAt,
		); err != nil {
			return nil, err
		}
		d.DueDate = TimePtr(dueDate)
		d.PaidAt = TimePtr(paidAt)
		debts = append(debts, d)
	}
	return debts, rows.Err()
}
