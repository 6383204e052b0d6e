package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/revolutionai/storefront/pkg/db/pagination"
)

// NewOrder carries the validated snapshot used to create a pending order.
type NewOrder struct {
	ProductID    string
	ProductName  string
	ProductPrice string
	AmountCents  int64
	Currency     string

	CustomerFirstName string
	CustomerLastName  string
	CustomerEmail     string
	CustomerPhone     string

	PaymentMethod string
}

type TransitionRequest struct {
	OrderID snowflake.ID
	To      Status
	Reason  string
	// Source identifies what caused the transition, e.g. "stripe:evt_123" or "sweeper".
	Source string
}

// Outcome classifies what a transition request did.
type Outcome string

const (
	OutcomeApplied   Outcome = "applied"
	OutcomeDuplicate Outcome = "duplicate"
	OutcomeStale     Outcome = "stale"
)

type TransitionResult struct {
	Outcome  Outcome
	Previous Status
	Order    Order
}

// Applied reports whether this request changed the order status.
func (r TransitionResult) Applied() bool {
	return r.Outcome == OutcomeApplied
}

type ListRequest struct {
	Status        string
	PaymentMethod string
	Email         string
	CreatedFrom   *time.Time
	CreatedTo     *time.Time
	pagination.Pagination
}

type ListResponse struct {
	pagination.PageInfo
	Orders []Order `json:"orders"`
}

type ExpireResult struct {
	Scanned int
	Expired int
}

type Service interface {
	Create(ctx context.Context, req NewOrder) (Order, error)
	AttachReference(ctx context.Context, id snowflake.ID, ref, redirectURL string) error
	Get(ctx context.Context, id snowflake.ID) (Order, error)
	FindByReference(ctx context.Context, ref string) (Order, error)
	Transition(ctx context.Context, req TransitionRequest) (TransitionResult, error)
	History(ctx context.Context, id snowflake.ID) ([]StatusEntry, error)
	List(ctx context.Context, req ListRequest) (ListResponse, error)
	ExpireStale(ctx context.Context, olderThan time.Duration, limit int) (ExpireResult, error)
}

var (
	ErrNotFound             = errors.New("order_not_found")
	ErrInvalidID            = errors.New("invalid_order_id")
	ErrInvalidStatus        = errors.New("invalid_status")
	ErrInvalidSnapshot      = errors.New("invalid_order_snapshot")
	ErrReferenceAlreadySet  = errors.New("external_reference_already_set")
	ErrEmptyReference       = errors.New("empty_external_reference")
	ErrTransitionContention = errors.New("order_transition_contention")
)
