package domain

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/revolutionai/storefront/pkg/db/pagination"
	"gorm.io/gorm"
)

const StatusNew = "new"

// Booking is a consultation request left through the contact form.
type Booking struct {
	ID        snowflake.ID `gorm:"primaryKey;autoIncrement:false" json:"id"`
	Reference string       `gorm:"type:varchar(26);not null;uniqueIndex" json:"reference"`
	FirstName string       `gorm:"type:varchar(255);not null" json:"first_name"`
	LastName  string       `gorm:"type:varchar(255);not null" json:"last_name"`
	Email     string       `gorm:"type:varchar(320);not null;index" json:"email"`
	Phone     string       `gorm:"type:varchar(64);not null;default:''" json:"phone,omitempty"`
	Company   string       `gorm:"type:varchar(255);not null;default:''" json:"company,omitempty"`
	Service   string       `gorm:"type:varchar(255);not null;default:''" json:"service,omitempty"`
	Budget    string       `gorm:"type:varchar(128);not null;default:''" json:"budget,omitempty"`
	Timeline  string       `gorm:"type:varchar(128);not null;default:''" json:"timeline,omitempty"`
	Message   string       `gorm:"type:text;not null" json:"message"`
	IPAddress string       `gorm:"type:varchar(64);not null;default:''" json:"ip_address,omitempty"`
	UserAgent string       `gorm:"type:text;not null" json:"user_agent,omitempty"`
	Status    string       `gorm:"type:varchar(16);not null" json:"status"`
	CreatedAt time.Time    `gorm:"not null" json:"created_at"`
}

func (Booking) TableName() string { return "bookings" }

func (b Booking) FullName() string {
	return strings.TrimSpace(b.FirstName + " " + b.LastName)
}

type SubmitRequest struct {
	FirstName string
	LastName  string
	Email     string
	Phone     string
	Company   string
	Service   string
	Budget    string
	Timeline  string
	Message   string
	IPAddress string
	UserAgent string
}

// Notifier delivers the visitor confirmation and the admin alert for a booking.
type Notifier interface {
	NotifyBooking(ctx context.Context, booking Booking)
}

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, booking *Booking) error
	List(ctx context.Context, db *gorm.DB, page pagination.Pagination) ([]Booking, error)
}

type ListResponse struct {
	pagination.PageInfo
	Bookings []Booking `json:"bookings"`
}

type Service interface {
	Submit(ctx context.Context, req SubmitRequest) (Booking, error)
	List(ctx context.Context, page pagination.Pagination) (ListResponse, error)
}

var ErrInvalidBooking = errors.New("invalid_booking")
