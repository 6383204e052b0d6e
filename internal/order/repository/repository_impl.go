package repository

import (
	"context"
	"strconv"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/revolutionai/storefront/internal/order/domain"
	"github.com/revolutionai/storefront/pkg/db/pagination"
	"gorm.io/gorm"
)

const orderColumns = `id, product_id, product_name, product_price, amount_cents, currency,
	customer_first_name, customer_last_name, customer_email, customer_phone,
	payment_method, status, status_reason, external_reference, redirect_url,
	created_at, updated_at`

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, order *domain.Order) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO orders (`+orderColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		order.ID,
		order.ProductID,
		order.ProductName,
		order.ProductPrice,
		order.AmountCents,
		order.Currency,
		order.CustomerFirstName,
		order.CustomerLastName,
		order.CustomerEmail,
		order.CustomerPhone,
		order.PaymentMethod,
		order.Status,
		order.StatusReason,
		order.ExternalReference,
		order.RedirectURL,
		order.CreatedAt,
		order.UpdatedAt,
	).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Order, error) {
	var order domain.Order
	err := db.WithContext(ctx).Raw(
		`SELECT `+orderColumns+` FROM orders WHERE id = ?`,
		id,
	).Scan(&order).Error
	if err != nil {
		return nil, err
	}
	if order.ID == 0 {
		return nil, nil
	}
	return &order, nil
}

func (r *repo) FindByExternalReference(ctx context.Context, db *gorm.DB, ref string) (*domain.Order, error) {
	var order domain.Order
	err := db.WithContext(ctx).Raw(
		`SELECT `+orderColumns+` FROM orders WHERE external_reference = ?`,
		ref,
	).Scan(&order).Error
	if err != nil {
		return nil, err
	}
	if order.ID == 0 {
		return nil, nil
	}
	return &order, nil
}

func (r *repo) SetExternalReference(ctx context.Context, db *gorm.DB, id snowflake.ID, ref, redirectURL string, now time.Time) (bool, error) {
	result := db.WithContext(ctx).Exec(
		`UPDATE orders SET external_reference = ?, redirect_url = ?, updated_at = ?
		 WHERE id = ? AND external_reference IS NULL`,
		ref,
		redirectURL,
		now,
		id,
	)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

func (r *repo) CompareAndSwapStatus(ctx context.Context, db *gorm.DB, id snowflake.ID, expected, next domain.Status, reason string, now time.Time) (bool, error) {
	result := db.WithContext(ctx).Exec(
		`UPDATE orders SET status = ?, status_reason = ?, updated_at = ?
		 WHERE id = ? AND status = ?`,
		next,
		reason,
		now,
		id,
		expected,
	)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

func (r *repo) InsertHistory(ctx context.Context, db *gorm.DB, entry *domain.StatusEntry) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO order_status_history (id, order_id, from_status, to_status, reason, source, occurred_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		entry.ID,
		entry.OrderID,
		entry.FromStatus,
		entry.ToStatus,
		entry.Reason,
		entry.Source,
		entry.OccurredAt,
	).Error
}

func (r *repo) ListHistory(ctx context.Context, db *gorm.DB, orderID snowflake.ID) ([]domain.StatusEntry, error) {
	var entries []domain.StatusEntry
	err := db.WithContext(ctx).Raw(
		`SELECT id, order_id, from_status, to_status, reason, source, occurred_at
		 FROM order_status_history WHERE order_id = ? ORDER BY id ASC`,
		orderID,
	).Scan(&entries).Error
	if err != nil {
		return nil, err
	}
	return entries, nil
}

func (r *repo) List(ctx context.Context, db *gorm.DB, filter domain.ListFilter, page pagination.Pagination) ([]domain.Order, error) {
	var orders []domain.Order
	stmt := db.WithContext(ctx).Model(&domain.Order{})
	if filter.Status != "" {
		stmt = stmt.Where("status = ?", filter.Status)
	}
	if filter.PaymentMethod != "" {
		stmt = stmt.Where("payment_method = ?", filter.PaymentMethod)
	}
	if filter.Email != "" {
		stmt = stmt.Where("customer_email = ?", filter.Email)
	}
	if filter.CreatedFrom != nil {
		stmt = stmt.Where("created_at >= ?", *filter.CreatedFrom)
	}
	if filter.CreatedTo != nil {
		stmt = stmt.Where("created_at <= ?", *filter.CreatedTo)
	}
	if page.PageToken != "" {
		cursor, err := pagination.DecodeCursor(page.PageToken)
		if err != nil {
			return nil, err
		}
		lastID, err := strconv.ParseInt(cursor.ID, 10, 64)
		if err != nil {
			return nil, pagination.ErrInvalidPageToken
		}
		stmt = stmt.Where("id < ?", lastID)
	}

	// one extra row tells the caller whether another page exists
	err := stmt.
		Order("id desc").
		Limit(page.Limit() + 1).
		Find(&orders).Error
	if err != nil {
		return nil, err
	}
	return orders, nil
}

func (r *repo) ListStalePending(ctx context.Context, db *gorm.DB, createdBefore time.Time, limit int) ([]domain.Order, error) {
	var orders []domain.Order
	err := db.WithContext(ctx).Raw(
		`SELECT `+orderColumns+` FROM orders
		 WHERE status = ? AND created_at < ?
		 ORDER BY created_at ASC, id ASC
		 LIMIT ?`,
		domain.StatusPending,
		createdBefore,
		limit,
	).Scan(&orders).Error
	if err != nil {
		return nil, err
	}
	return orders, nil
}
