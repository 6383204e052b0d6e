package domain

import "strings"

// Status is the lifecycle position of an order.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusConfirming Status = "confirming"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
	StatusExpired    Status = "expired"
)

// rank orders statuses along the payment lifecycle. All terminal statuses share the top rank.
func (s Status) rank() int {
	switch s {
	case StatusPending:
		return 0
	case StatusProcessing:
		return 1
	case StatusConfirming:
		return 2
	case StatusCompleted, StatusFailed, StatusExpired:
		return 3
	default:
		return -1
	}
}

func (s Status) Valid() bool {
	return s.rank() >= 0
}

// Terminal reports whether no further transitions are accepted.
func (s Status) Terminal() bool {
	return s.rank() == 3
}

// CanTransition reports whether moving from s to next is a forward move
// that the state machine accepts.
//
//	pending -> processing -> confirming -> completed
//	pending|processing|confirming -> failed
//	pending|processing -> expired
func (s Status) CanTransition(next Status) bool {
	if !s.Valid() || !next.Valid() || s.Terminal() {
		return false
	}
	if next.rank() <= s.rank() {
		return false
	}
	if next == StatusExpired {
		return s == StatusPending || s == StatusProcessing
	}
	return true
}

// ParseStatus accepts a status name case-insensitively.
func ParseStatus(raw string) (Status, bool) {
	s := Status(strings.ToLower(strings.TrimSpace(raw)))
	return s, s.Valid()
}

// Statuses lists every status in lifecycle order.
func Statuses() []Status {
	return []Status{
		StatusPending,
		StatusProcessing,
		StatusConfirming,
		StatusCompleted,
		StatusFailed,
		StatusExpired,
	}
}
