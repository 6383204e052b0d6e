package repository

import (
	"context"
	"strconv"

	"github.com/revolutionai/storefront/internal/contact/domain"
	"github.com/revolutionai/storefront/pkg/db/pagination"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, b *domain.Booking) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO bookings (id, reference, first_name, last_name, email, phone, company,
			service, budget, timeline, message, ip_address, user_agent, status, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		b.ID,
		b.Reference,
		b.FirstName,
		b.LastName,
		b.Email,
		b.Phone,
		b.Company,
		b.Service,
		b.Budget,
		b.Timeline,
		b.Message,
		b.IPAddress,
		b.UserAgent,
		b.Status,
		b.CreatedAt,
	).Error
}

func (r *repo) List(ctx context.Context, db *gorm.DB, page pagination.Pagination) ([]domain.Booking, error) {
	var bookings []domain.Booking
	stmt := db.WithContext(ctx).Model(&domain.Booking{})
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
	err := stmt.Order("id desc").Limit(page.Limit() + 1).Find(&bookings).Error
	if err != nil {
		return nil, err
	}
	return bookings, nil
}
