package domain

import (
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
)

// Order is a single purchase attempt. The product fields are a snapshot taken
// at creation and never change afterwards.
type Order struct {
	ID snowflake.ID `gorm:"primaryKey;autoIncrement:false" json:"id"`

	ProductID    string `gorm:"type:varchar(128);not null;index" json:"product_id"`
	ProductName  string `gorm:"type:varchar(255);not null" json:"product_name"`
	ProductPrice string `gorm:"type:varchar(32);not null" json:"product_price"`
	AmountCents  int64  `gorm:"not null" json:"amount_cents"`
	Currency     string `gorm:"type:varchar(8);not null" json:"currency"`

	CustomerFirstName string `gorm:"type:varchar(255);not null" json:"customer_first_name"`
	CustomerLastName  string `gorm:"type:varchar(255);not null" json:"customer_last_name"`
	CustomerEmail     string `gorm:"type:varchar(320);not null" json:"customer_email"`
	CustomerPhone     string `gorm:"type:varchar(64);not null" json:"customer_phone"`

	PaymentMethod     string  `gorm:"type:varchar(16);not null;index" json:"payment_method"`
	Status            Status  `gorm:"type:varchar(16);not null;index" json:"status"`
	StatusReason      string  `gorm:"type:varchar(64);not null;default:''" json:"status_reason,omitempty"`
	ExternalReference *string `gorm:"type:varchar(255);uniqueIndex" json:"external_reference,omitempty"`
	RedirectURL       string  `gorm:"type:text;not null;default:''" json:"redirect_url,omitempty"`

	CreatedAt time.Time `gorm:"not null;index" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null" json:"updated_at"`
}

func (Order) TableName() string { return "orders" }

// CustomerName joins first and last name the way the storefront displays it.
func (o Order) CustomerName() string {
	return strings.TrimSpace(o.CustomerFirstName + " " + o.CustomerLastName)
}

// Reference returns the external reference or an empty string when none is attached.
func (o Order) Reference() string {
	if o.ExternalReference == nil {
		return ""
	}
	return *o.ExternalReference
}

// StatusEntry is one row of the append-only status history.
type StatusEntry struct {
	ID         snowflake.ID `gorm:"primaryKey;autoIncrement:false" json:"id"`
	OrderID    snowflake.ID `gorm:"not null;index" json:"order_id"`
	FromStatus Status       `gorm:"type:varchar(16);not null;default:''" json:"from_status,omitempty"`
	ToStatus   Status       `gorm:"type:varchar(16);not null" json:"to_status"`
	Reason     string       `gorm:"type:varchar(64);not null;default:''" json:"reason,omitempty"`
	Source     string       `gorm:"type:varchar(255);not null" json:"source"`
	OccurredAt time.Time    `gorm:"not null" json:"occurred_at"`
}

func (StatusEntry) TableName() string { return "order_status_history" }
