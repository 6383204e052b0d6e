package service_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/revolutionai/storefront/internal/clock"
	"github.com/revolutionai/storefront/internal/order/domain"
	"github.com/revolutionai/storefront/internal/order/repository"
	"github.com/revolutionai/storefront/internal/order/service"
	"github.com/revolutionai/storefront/internal/testutil"
	"github.com/revolutionai/storefront/pkg/db/pagination"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func newService(t *testing.T) (domain.Service, *gorm.DB, *clock.FakeClock) {
	t.Helper()
	db := testutil.OpenDB(t)
	clk := clock.NewFakeClock(time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC))
	svc := service.New(service.Params{
		DB:    db,
		Log:   zap.NewNop(),
		GenID: testutil.Node(t),
		Repo:  repository.Provide(),
		Clock: clk,
	})
	return svc, db, clk
}

func sampleOrder(method string) domain.NewOrder {
	return domain.NewOrder{
		ProductID:         "ai-email-assistant",
		ProductName:       "AI Email Assistant",
		ProductPrice:      "$9",
		AmountCents:       900,
		Currency:          "usd",
		CustomerFirstName: "Jane",
		CustomerLastName:  "Doe",
		CustomerEmail:     "jane@example.com",
		CustomerPhone:     "+44 20 7946 0958",
		PaymentMethod:     method,
	}
}

func TestCreateStartsPendingWithHistory(t *testing.T) {
	ctx := context.Background()
	svc, db, _ := newService(t)

	order, err := svc.Create(ctx, sampleOrder("card"))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if order.Status != domain.StatusPending {
		t.Fatalf("expected pending, got %s", order.Status)
	}
	if order.Currency != "USD" {
		t.Fatalf("expected currency normalised to USD, got %s", order.Currency)
	}

	stored, err := svc.Get(ctx, order.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if stored.ProductPrice != "$9" || stored.AmountCents != 900 || stored.ExternalReference != nil {
		t.Fatalf("unexpected stored order %+v", stored)
	}

	if got := testutil.Count(t, db, `SELECT COUNT(*) FROM order_status_history WHERE order_id = ?`, order.ID); got != 1 {
		t.Fatalf("expected 1 history row, got %d", got)
	}
}

func TestCreateRejectsIncompleteSnapshot(t *testing.T) {
	svc, db, _ := newService(t)
	req := sampleOrder("card")
	req.AmountCents = 0

	if _, err := svc.Create(context.Background(), req); !errors.Is(err, domain.ErrInvalidSnapshot) {
		t.Fatalf("expected ErrInvalidSnapshot, got %v", err)
	}
	if got := testutil.Count(t, db, `SELECT COUNT(*) FROM orders`); got != 0 {
		t.Fatalf("expected no orders persisted, got %d", got)
	}
}

func TestAttachReferenceOnce(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newService(t)
	order, err := svc.Create(ctx, sampleOrder("crypto"))
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	if err := svc.AttachReference(ctx, order.ID, "inv-uuid-1", "https://pay.example/inv-uuid-1"); err != nil {
		t.Fatalf("attach: %v", err)
	}
	// same reference again is a no-op
	if err := svc.AttachReference(ctx, order.ID, "inv-uuid-1", "https://pay.example/inv-uuid-1"); err != nil {
		t.Fatalf("re-attach same reference: %v", err)
	}
	if err := svc.AttachReference(ctx, order.ID, "inv-uuid-2", ""); !errors.Is(err, domain.ErrReferenceAlreadySet) {
		t.Fatalf("expected ErrReferenceAlreadySet, got %v", err)
	}

	found, err := svc.FindByReference(ctx, "inv-uuid-1")
	if err != nil {
		t.Fatalf("find by reference: %v", err)
	}
	if found.ID != order.ID || found.RedirectURL != "https://pay.example/inv-uuid-1" {
		t.Fatalf("unexpected order %+v", found)
	}

	if _, err := svc.FindByReference(ctx, "missing"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestTransitionFollowsStateMachine(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newService(t)
	order, err := svc.Create(ctx, sampleOrder("crypto"))
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	steps := []struct {
		to      domain.Status
		outcome domain.Outcome
		status  domain.Status
	}{
		{domain.StatusProcessing, domain.OutcomeApplied, domain.StatusProcessing},
		{domain.StatusProcessing, domain.OutcomeDuplicate, domain.StatusProcessing},
		{domain.StatusConfirming, domain.OutcomeApplied, domain.StatusConfirming},
		{domain.StatusProcessing, domain.OutcomeStale, domain.StatusConfirming},
		{domain.StatusExpired, domain.OutcomeStale, domain.StatusConfirming},
		{domain.StatusCompleted, domain.OutcomeApplied, domain.StatusCompleted},
		{domain.StatusFailed, domain.OutcomeStale, domain.StatusCompleted},
		{domain.StatusCompleted, domain.OutcomeDuplicate, domain.StatusCompleted},
	}

	for i, step := range steps {
		res, err := svc.Transition(ctx, domain.TransitionRequest{
			OrderID: order.ID,
			To:      step.to,
			Source:  "test",
		})
		if err != nil {
			t.Fatalf("step %d: transition: %v", i, err)
		}
		if res.Outcome != step.outcome {
			t.Fatalf("step %d: expected outcome %s, got %s", i, step.outcome, res.Outcome)
		}
		if res.Order.Status != step.status {
			t.Fatalf("step %d: expected status %s, got %s", i, step.status, res.Order.Status)
		}
	}

	history, err := svc.History(ctx, order.ID)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	want := []domain.Status{domain.StatusPending, domain.StatusProcessing, domain.StatusConfirming, domain.StatusCompleted}
	if len(history) != len(want) {
		t.Fatalf("expected %d history rows, got %d", len(want), len(history))
	}
	for i, entry := range history {
		if entry.ToStatus != want[i] {
			t.Fatalf("history[%d]: expected %s, got %s", i, want[i], entry.ToStatus)
		}
	}
}

func TestTransitionUnknownOrder(t *testing.T) {
	svc, _, _ := newService(t)
	_, err := svc.Transition(context.Background(), domain.TransitionRequest{OrderID: 12345, To: domain.StatusCompleted})
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	_, err = svc.Transition(context.Background(), domain.TransitionRequest{OrderID: 12345, To: "refunded"})
	if !errors.Is(err, domain.ErrInvalidStatus) {
		t.Fatalf("expected ErrInvalidStatus, got %v", err)
	}
}

func TestConcurrentCompletionAppliesOnce(t *testing.T) {
	ctx := context.Background()
	svc, db, _ := newService(t)
	order, err := svc.Create(ctx, sampleOrder("card"))
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	const workers = 8
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		applied int
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := svc.Transition(ctx, domain.TransitionRequest{
				OrderID: order.ID,
				To:      domain.StatusCompleted,
				Source:  "stripe:evt_1",
			})
			if err != nil {
				t.Errorf("transition: %v", err)
				return
			}
			if res.Applied() {
				mu.Lock()
				applied++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if applied != 1 {
		t.Fatalf("expected exactly one applied transition, got %d", applied)
	}
	if got := testutil.Count(t, db, `SELECT COUNT(*) FROM order_status_history WHERE order_id = ? AND to_status = ?`, order.ID, domain.StatusCompleted); got != 1 {
		t.Fatalf("expected one completed history row, got %d", got)
	}
}

func TestExpireStaleOnlyTouchesOldPending(t *testing.T) {
	ctx := context.Background()
	svc, _, clk := newService(t)

	old, err := svc.Create(ctx, sampleOrder("card"))
	if err != nil {
		t.Fatalf("create old: %v", err)
	}
	oldPaid, err := svc.Create(ctx, sampleOrder("crypto"))
	if err != nil {
		t.Fatalf("create old paid: %v", err)
	}
	if _, err := svc.Transition(ctx, domain.TransitionRequest{OrderID: oldPaid.ID, To: domain.StatusCompleted, Source: "test"}); err != nil {
		t.Fatalf("complete: %v", err)
	}

	clk.Advance(30 * time.Hour)
	fresh, err := svc.Create(ctx, sampleOrder("card"))
	if err != nil {
		t.Fatalf("create fresh: %v", err)
	}

	res, err := svc.ExpireStale(ctx, 26*time.Hour, 10)
	if err != nil {
		t.Fatalf("expire: %v", err)
	}
	if res.Scanned != 1 || res.Expired != 1 {
		t.Fatalf("expected 1 scanned and expired, got %+v", res)
	}

	cases := []struct {
		order domain.Order
		want  domain.Status
	}{
		{old, domain.StatusExpired},
		{oldPaid, domain.StatusCompleted},
		{fresh, domain.StatusPending},
	}
	for _, tc := range cases {
		got, err := svc.Get(ctx, tc.order.ID)
		if err != nil {
			t.Fatalf("get %s: %v", tc.order.ID, err)
		}
		if got.Status != tc.want {
			t.Fatalf("order %s: expected %s, got %s", tc.order.ID, tc.want, got.Status)
		}
	}

	expired, _ := svc.Get(ctx, old.ID)
	if expired.StatusReason != "abandoned" {
		t.Fatalf("expected abandoned reason, got %q", expired.StatusReason)
	}
}

func TestListFiltersAndPaginates(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newService(t)

	for i := 0; i < 3; i++ {
		if _, err := svc.Create(ctx, sampleOrder("card")); err != nil {
			t.Fatalf("create card: %v", err)
		}
	}
	if _, err := svc.Create(ctx, sampleOrder("crypto")); err != nil {
		t.Fatalf("create crypto: %v", err)
	}

	first, err := svc.List(ctx, domain.ListRequest{
		PaymentMethod: "card",
		Pagination:    pagination.Pagination{PageSize: 2},
	})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(first.Orders) != 2 || !first.HasMore {
		t.Fatalf("expected first page of 2 with more, got %d more=%v", len(first.Orders), first.HasMore)
	}

	second, err := svc.List(ctx, domain.ListRequest{
		PaymentMethod: "card",
		Pagination:    pagination.Pagination{PageSize: 2, PageToken: first.NextPageToken},
	})
	if err != nil {
		t.Fatalf("list page 2: %v", err)
	}
	if len(second.Orders) != 1 || second.HasMore {
		t.Fatalf("expected last page of 1, got %d more=%v", len(second.Orders), second.HasMore)
	}
	if second.Orders[0].ID >= first.Orders[1].ID {
		t.Fatalf("expected newest-first ordering across pages")
	}

	if _, err := svc.List(ctx, domain.ListRequest{Status: "refunded"}); !errors.Is(err, domain.ErrInvalidStatus) {
		t.Fatalf("expected ErrInvalidStatus, got %v", err)
	}
}
