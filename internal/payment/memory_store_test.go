package payment

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

func seedPayment(t *testing.T, store Store, id, userID string, status Status, createdAt int64) {
	t.Helper()
	err := store.Create(context.Background(), &Payment{
		ID:          id,
		UserID:      userID,
		Amount:      1,
		Currency:    "SOL",
		Recipient:   "recipient",
		TxSignature: "sig-" + id,
		Status:      status,
		CreatedAt:   createdAt,
	})
	if err != nil {
		t.Fatalf("seed payment %s: %v", id, err)
	}
}

func TestMemoryStoreCreateConflict(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	seedPayment(t, store, "p1", "u1", StatusPending, 100)
	err := store.Create(ctx, &Payment{ID: "p1", UserID: "u1", Status: StatusPending})
	if !errors.Is(err, ErrPaymentConflict) {
		t.Fatalf("expected conflict on duplicate id, got %v", err)
	}

	got, err := store.Get(ctx, "p1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.UserID != "u1" || got.Status != StatusPending {
		t.Fatalf("unexpected stored payment: %+v", got)
	}
}

func TestMemoryStoreGetNotFound(t *testing.T) {
	store := NewMemoryStore()
	if _, err := store.Get(context.Background(), "missing"); !errors.Is(err, ErrPaymentNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestMemoryStoreUpdateStatusTerminal(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	seedPayment(t, store, "p1", "u1", StatusPending, 100)

	updated, err := store.UpdateStatus(ctx, "p1", StatusConfirmed, 12345)
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.Status != StatusConfirmed || updated.ConfirmedAt != 12345 {
		t.Fatalf("unexpected updated payment: %+v", updated)
	}

	// Terminal payments must reject further transitions but still return
	// the current record so callers can observe who won.
	current, err := store.UpdateStatus(ctx, "p1", StatusFailed, 0)
	if !errors.Is(err, ErrPaymentTerminal) {
		t.Fatalf("expected terminal error, got %v", err)
	}
	if current == nil || current.Status != StatusConfirmed {
		t.Fatalf("expected current record alongside terminal error, got %+v", current)
	}
}

func TestMemoryStoreListSortAndPagination(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	for i := 1; i <= 5; i++ {
		seedPayment(t, store, fmt.Sprintf("p%d", i), "u1", StatusPending, int64(100+i))
	}

	results, err := store.List(ctx, ListOptions{})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(results) != 5 {
		t.Fatalf("expected 5 payments, got %d", len(results))
	}
	for i := 1; i < len(results); i++ {
		if results[i-1].CreatedAt < results[i].CreatedAt {
			t.Fatalf("expected createdAt descending order, got %d before %d",
				results[i-1].CreatedAt, results[i].CreatedAt)
		}
	}

	page, err := store.List(ctx, ListOptions{Offset: 2, Limit: 2})
	if err != nil {
		t.Fatalf("list page: %v", err)
	}
	if len(page) != 2 || page[0].ID != "p3" || page[1].ID != "p2" {
		t.Fatalf("unexpected page contents: %+v", page)
	}

	empty, err := store.List(ctx, ListOptions{Offset: 10})
	if err != nil {
		t.Fatalf("list past end: %v", err)
	}
	if len(empty) != 0 {
		t.Fatalf("expected empty page past the end, got %d", len(empty))
	}
}

func TestMemoryStoreListFilters(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	seedPayment(t, store, "p1", "u1", StatusPending, 101)
	seedPayment(t, store, "p2", "u1", StatusConfirmed, 102)
	seedPayment(t, store, "p3", "u2", StatusPending, 103)

	byUser, err := store.List(ctx, ListOptions{UserID: "u1"})
	if err != nil {
		t.Fatalf("list by user: %v", err)
	}
	if len(byUser) != 2 {
		t.Fatalf("expected 2 payments for u1, got %d", len(byUser))
	}

	byStatus, err := store.List(ctx, ListOptions{Statuses: []Status{StatusConfirmed}})
	if err != nil {
		t.Fatalf("list by status: %v", err)
	}
	if len(byStatus) != 1 || byStatus[0].ID != "p2" {
		t.Fatalf("unexpected status filter result: %+v", byStatus)
	}
}

func TestMemoryStoreStats(t *testing.T) {
	store := NewMemoryStore()
	seedPayment(t, store, "p1", "u1", StatusPending, 101)
	seedPayment(t, store, "p2", "u1", StatusConfirmed, 102)
	seedPayment(t, store, "p3", "u1", StatusFailed, 103)
	seedPayment(t, store, "p4", "u2", StatusPending, 104)

	stats, err := store.Stats(context.Background(), ListOptions{UserID: "u1"})
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	want := PaymentStats{Total: 3, Pending: 1, Confirmed: 1, Failed: 1}
	if stats != want {
		t.Fatalf("unexpected stats: got %+v want %+v", stats, want)
	}
}

func TestMemoryStoreCloneOnRead(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	seedPayment(t, store, "p1", "u1", StatusPending, 100)

	got, _ := store.Get(ctx, "p1")
	got.Status = StatusFailed
	got.UserID = "tampered"

	again, _ := store.Get(ctx, "p1")
	if again.Status != StatusPending || again.UserID != "u1" {
		t.Fatalf("store state leaked through returned pointer: %+v", again)
	}
}
