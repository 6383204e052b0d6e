package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/revolutionai/storefront/pkg/db/pagination"
	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, order *Order) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Order, error)
	FindByExternalReference(ctx context.Context, db *gorm.DB, ref string) (*Order, error)
	SetExternalReference(ctx context.Context, db *gorm.DB, id snowflake.ID, ref, redirectURL string, now time.Time) (bool, error)
	// CompareAndSwapStatus moves the order to next only if its status is still expected.
	CompareAndSwapStatus(ctx context.Context, db *gorm.DB, id snowflake.ID, expected, next Status, reason string, now time.Time) (bool, error)
	InsertHistory(ctx context.Context, db *gorm.DB, entry *StatusEntry) error
	ListHistory(ctx context.Context, db *gorm.DB, orderID snowflake.ID) ([]StatusEntry, error)
	List(ctx context.Context, db *gorm.DB, filter ListFilter, page pagination.Pagination) ([]Order, error)
	ListStalePending(ctx context.Context, db *gorm.DB, createdBefore time.Time, limit int) ([]Order, error)
}

type ListFilter struct {
	Status        Status
	PaymentMethod string
	Email         string
	CreatedFrom   *time.Time
	CreatedTo     *time.Time
}
