package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	orderdomain "github.com/revolutionai/storefront/internal/order/domain"
	"gorm.io/datatypes"
)

// EventRecord logs every authenticated webhook delivery so redeliveries can be
// acknowledged without touching the order again.
type EventRecord struct {
	ID                snowflake.ID   `json:"id" gorm:"primaryKey;autoIncrement:false"`
	Provider          string         `json:"provider" gorm:"type:varchar(32);not null;uniqueIndex:ux_payment_events_provider_event"`
	ProviderEventID   string         `json:"provider_event_id" gorm:"type:varchar(255);not null;uniqueIndex:ux_payment_events_provider_event"`
	EventType         string         `json:"event_type" gorm:"type:varchar(64);not null"`
	ExternalReference string         `json:"external_reference" gorm:"type:varchar(255);not null;default:'';index"`
	Payload           datatypes.JSON `json:"payload" gorm:"not null"`
	ReceivedAt        time.Time      `json:"received_at" gorm:"not null"`
	ProcessedAt       *time.Time     `json:"processed_at"`
}

func (EventRecord) TableName() string { return "payment_events" }

// Event is a webhook delivery reduced to what reconciliation needs. Adapters
// only produce events whose backend type maps to an order status.
type Event struct {
	Provider        string
	ProviderEventID string
	// Type is the backend's own event name or invoice status.
	Type string
	// ExternalReference is the session or invoice id the order was created with.
	ExternalReference string
	// OrderID is the order id the backend echoes back, used when the reference is unknown.
	OrderID    string
	Target     orderdomain.Status
	Reason     string
	OccurredAt time.Time
	RawPayload []byte
}
