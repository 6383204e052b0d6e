package domain

import "testing"

func TestCanTransition(t *testing.T) {
	cases := []struct {
		from, to Status
		want     bool
	}{
		{StatusPending, StatusProcessing, true},
		{StatusPending, StatusConfirming, true},
		{StatusPending, StatusCompleted, true},
		{StatusPending, StatusFailed, true},
		{StatusPending, StatusExpired, true},
		{StatusProcessing, StatusConfirming, true},
		{StatusProcessing, StatusExpired, true},
		{StatusProcessing, StatusPending, false},
		{StatusConfirming, StatusProcessing, false},
		{StatusConfirming, StatusCompleted, true},
		{StatusConfirming, StatusFailed, true},
		{StatusConfirming, StatusExpired, false},
		{StatusPending, StatusPending, false},
		{StatusCompleted, StatusFailed, false},
		{StatusCompleted, StatusCompleted, false},
		{StatusFailed, StatusCompleted, false},
		{StatusExpired, StatusCompleted, false},
		{StatusPending, Status("refunded"), false},
	}
	for _, tc := range cases {
		if got := tc.from.CanTransition(tc.to); got != tc.want {
			t.Fatalf("%s -> %s: expected %v, got %v", tc.from, tc.to, tc.want, got)
		}
	}
}

func TestTerminal(t *testing.T) {
	for _, s := range Statuses() {
		want := s == StatusCompleted || s == StatusFailed || s == StatusExpired
		if s.Terminal() != want {
			t.Fatalf("%s terminal = %v, want %v", s, s.Terminal(), want)
		}
	}
}

func TestParseStatus(t *testing.T) {
	if s, ok := ParseStatus(" Completed "); !ok || s != StatusCompleted {
		t.Fatalf("expected completed, got %q %v", s, ok)
	}
	if _, ok := ParseStatus("refunded"); ok {
		t.Fatalf("expected unknown status to be rejected")
	}
}
