package agent

import (
	"context"
	"errors"
	"fmt"
	"testing"

	xerrors "AgentPay-SDK/internal/errors"
)

func newTestService(t *testing.T) *Service {
	t.Helper()
	service := NewService(NewMemoryStore())
	t.Cleanup(func() { _ = service.Close() })
	return service
}

func TestRegisterAndGet(t *testing.T) {
	service := newTestService(t)
	ctx := context.Background()

	created, err := service.Register(ctx, Registration{
		OwnerID:       "owner-1",
		Name:          "  shopping-bot  ",
		Description:   "buys things",
		WalletAddress: "wallet-1",
		Metadata:      map[string]any{"tier": "pro"},
	})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if created.ID == "" {
		t.Fatalf("expected generated agent id")
	}
	if created.Name != "shopping-bot" {
		t.Fatalf("expected trimmed name, got %q", created.Name)
	}

	got, err := service.Get(ctx, created.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.OwnerID != "owner-1" || got.WalletAddress != "wallet-1" {
		t.Fatalf("unexpected stored agent: %+v", got)
	}
	if got.Metadata["tier"] != "pro" {
		t.Fatalf("metadata lost: %+v", got.Metadata)
	}
}

func TestRegisterValidation(t *testing.T) {
	service := newTestService(t)
	ctx := context.Background()

	cases := []struct {
		name string
		reg  Registration
	}{
		{"missing owner", Registration{Name: "bot"}},
		{"missing name", Registration{OwnerID: "owner-1"}},
		{"blank name", Registration{OwnerID: "owner-1", Name: "   "}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := service.Register(ctx, tc.reg); xerrors.CodeOf(err) != CodeAgentValidation {
				t.Fatalf("expected validation failure, got %v", err)
			}
		})
	}
}

func TestGetUnknownAgent(t *testing.T) {
	service := newTestService(t)
	if _, err := service.Get(context.Background(), "missing"); !errors.Is(err, ErrAgentNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestUpdateAgent(t *testing.T) {
	service := newTestService(t)
	ctx := context.Background()

	created, err := service.Register(ctx, Registration{OwnerID: "owner-1", Name: "bot"})
	if err != nil {
		t.Fatalf("register: %v", err)
	}

	created.Name = "renamed-bot"
	created.Description = "now with a purpose"
	updated, err := service.Update(ctx, created)
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.Name != "renamed-bot" || updated.Description != "now with a purpose" {
		t.Fatalf("unexpected updated agent: %+v", updated)
	}

	if _, err := service.Update(ctx, &Agent{ID: created.ID}); xerrors.CodeOf(err) != CodeAgentValidation {
		t.Fatalf("expected validation failure for empty name, got %v", err)
	}
	if _, err := service.Update(ctx, &Agent{ID: "missing", Name: "x"}); !errors.Is(err, ErrAgentNotFound) {
		t.Fatalf("expected not found for unknown id, got %v", err)
	}
}

func TestListAgentsByOwner(t *testing.T) {
	service := newTestService(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, err := service.Register(ctx, Registration{OwnerID: "owner-1", Name: fmt.Sprintf("bot-%d", i)}); err != nil {
			t.Fatalf("register: %v", err)
		}
	}
	if _, err := service.Register(ctx, Registration{OwnerID: "owner-2", Name: "other"}); err != nil {
		t.Fatalf("register: %v", err)
	}

	mine, err := service.List(ctx, ListOptions{OwnerID: "owner-1"})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(mine) != 3 {
		t.Fatalf("expected 3 agents for owner-1, got %d", len(mine))
	}

	limited, err := service.List(ctx, ListOptions{Limit: 2})
	if err != nil {
		t.Fatalf("list limited: %v", err)
	}
	if len(limited) != 2 {
		t.Fatalf("expected 2 agents with limit, got %d", len(limited))
	}
}

func TestDeleteAgent(t *testing.T) {
	service := newTestService(t)
	ctx := context.Background()

	created, err := service.Register(ctx, Registration{OwnerID: "owner-1", Name: "bot"})
	if err != nil {
		t.Fatalf("register: %v", err)
	}

	if err := service.Delete(ctx, created.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := service.Get(ctx, created.ID); !errors.Is(err, ErrAgentNotFound) {
		t.Fatalf("expected not found after delete, got %v", err)
	}
	if err := service.Delete(ctx, created.ID); !errors.Is(err, ErrAgentNotFound) {
		t.Fatalf("expected not found on double delete, got %v", err)
	}
}
