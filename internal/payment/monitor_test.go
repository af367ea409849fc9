package payment

import (
	"context"
	"testing"
	"time"

	"AgentPay-SDK/internal/wallet"
)

// waitForStatus polls the store until the payment reaches the wanted
// status or the deadline passes.
func waitForStatus(t *testing.T, service *Service, id string, want Status, timeout time.Duration) *Payment {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		payment, err := service.GetPayment(context.Background(), id)
		if err != nil {
			t.Fatalf("get payment: %v", err)
		}
		if payment.Status == want {
			return payment
		}
		time.Sleep(5 * time.Millisecond)
	}
	payment, _ := service.GetPayment(context.Background(), id)
	t.Fatalf("payment %s never reached %s, last status %s", id, want, payment.Status)
	return nil
}

func TestMonitorConfirmsAfterPolling(t *testing.T) {
	oracle := &fakeOracle{
		pendingRounds: 2,
		final:         wallet.SignatureStatus{Level: wallet.LevelFinalized},
	}
	service := NewService(NewMemoryStore(), &fakeSession{connected: true}, oracle,
		WithMonitorTiming(10*time.Millisecond, 10*time.Millisecond, 10),
	)
	defer service.Close()

	payment, err := service.ProcessPayment(context.Background(), &PaymentRequest{
		Amount: 1, Currency: "SOL", Recipient: "recipient-1",
	}, "user-1")
	if err != nil {
		t.Fatalf("process payment: %v", err)
	}

	confirmed := waitForStatus(t, service, payment.ID, StatusConfirmed, 2*time.Second)
	if confirmed.ConfirmedAt == 0 {
		t.Fatalf("expected confirmedAt to be set by the monitor")
	}
	if oracle.callCount() < 3 {
		t.Fatalf("expected at least 3 oracle queries, got %d", oracle.callCount())
	}
}

func TestMonitorExpiresAfterBudgetExhausted(t *testing.T) {
	// The oracle never leaves pending, so the poll budget runs out.
	oracle := &fakeOracle{pendingRounds: 1 << 20}
	service := NewService(NewMemoryStore(), &fakeSession{connected: true}, oracle,
		WithMonitorTiming(10*time.Millisecond, 10*time.Millisecond, 3),
	)
	defer service.Close()

	payment, err := service.ProcessPayment(context.Background(), &PaymentRequest{
		Amount: 1, Currency: "SOL", Recipient: "recipient-1",
	}, "user-1")
	if err != nil {
		t.Fatalf("process payment: %v", err)
	}

	waitForStatus(t, service, payment.ID, StatusExpired, 2*time.Second)
	if calls := oracle.callCount(); calls != 3 {
		t.Fatalf("expected exactly 3 oracle queries, got %d", calls)
	}
}

func TestMonitorTransientErrorsConsumeBudget(t *testing.T) {
	// Every query fails, and each failure still burns one attempt.
	oracle := &fakeOracle{err: context.DeadlineExceeded}
	service := NewService(NewMemoryStore(), &fakeSession{connected: true}, oracle,
		WithMonitorTiming(10*time.Millisecond, 10*time.Millisecond, 3),
	)
	defer service.Close()

	payment, err := service.ProcessPayment(context.Background(), &PaymentRequest{
		Amount: 1, Currency: "SOL", Recipient: "recipient-1",
	}, "user-1")
	if err != nil {
		t.Fatalf("process payment: %v", err)
	}

	waitForStatus(t, service, payment.ID, StatusExpired, 2*time.Second)
	if calls := oracle.callCount(); calls != 3 {
		t.Fatalf("expected transient failures to consume all 3 attempts, got %d", calls)
	}
}

func TestMonitorCancelStopsPolling(t *testing.T) {
	oracle := &fakeOracle{pendingRounds: 1 << 20}
	service := NewService(NewMemoryStore(), &fakeSession{connected: true}, oracle,
		WithMonitorTiming(50*time.Millisecond, 50*time.Millisecond, 100),
	)
	defer service.Close()

	payment, err := service.ProcessPayment(context.Background(), &PaymentRequest{
		Amount: 1, Currency: "SOL", Recipient: "recipient-1",
	}, "user-1")
	if err != nil {
		t.Fatalf("process payment: %v", err)
	}

	// Cancel during the initial delay, before the first oracle query.
	if _, err := service.CancelPayment(context.Background(), payment.ID); err != nil {
		t.Fatalf("cancel: %v", err)
	}

	time.Sleep(200 * time.Millisecond)
	if calls := oracle.callCount(); calls != 0 {
		t.Fatalf("expected no oracle queries after cancellation, got %d", calls)
	}
	got, err := service.GetPayment(context.Background(), payment.ID)
	if err != nil {
		t.Fatalf("get payment: %v", err)
	}
	if got.Status != StatusCancelled {
		t.Fatalf("expected cancelled, got %s", got.Status)
	}
}

func TestMonitorStopWaitsForWatchers(t *testing.T) {
	oracle := &fakeOracle{pendingRounds: 1 << 20}
	service := NewService(NewMemoryStore(), &fakeSession{connected: true}, oracle,
		WithMonitorTiming(10*time.Millisecond, 10*time.Millisecond, 100),
	)

	payment, err := service.ProcessPayment(context.Background(), &PaymentRequest{
		Amount: 1, Currency: "SOL", Recipient: "recipient-1",
	}, "user-1")
	if err != nil {
		t.Fatalf("process payment: %v", err)
	}

	if err := service.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	// No further polling may run once Close returned.
	calls := oracle.callCount()
	time.Sleep(100 * time.Millisecond)
	if oracle.callCount() != calls {
		t.Fatalf("polling continued after Close for payment %s", payment.ID)
	}
}
