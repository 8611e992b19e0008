package economy

import (
	"context"
	"errors"
	"testing"
)

func TestMemoryGatewayDebitAtomic(t *testing.T) {
	g := NewMemoryGateway()
	ctx := context.Background()

	g.SetBalance(1, 99)
	err := g.Debit(ctx, 1, 100)
	if !errors.Is(err, ErrInsufficientBalance) {
		t.Fatalf("expected ErrInsufficientBalance, got %v", err)
	}
	if got := g.Balance(1); got != 99 {
		t.Fatalf("failed debit must not move the balance, got %d", got)
	}

	g.SetBalance(1, 100)
	if err := g.Debit(ctx, 1, 100); err != nil {
		t.Fatalf("covered debit failed: %v", err)
	}
	if got := g.Balance(1); got != 0 {
		t.Fatalf("expected balance 0, got %d", got)
	}
}

func TestMemoryGatewayCredit(t *testing.T) {
	g := NewMemoryGateway()
	ctx := context.Background()

	if err := g.Credit(ctx, 2, 80); err != nil {
		t.Fatalf("credit failed: %v", err)
	}
	if err := g.Credit(ctx, 2, 80); err != nil {
		t.Fatalf("credit failed: %v", err)
	}
	if got := g.Balance(2); got != 160 {
		t.Fatalf("expected balance 160, got %d", got)
	}
}

func TestMemoryGatewayResolveGiftCost(t *testing.T) {
	g := NewMemoryGateway()
	ctx := context.Background()

	g.SetGiftCost("rose", 20)

	cost, err := g.ResolveGiftCost(ctx, "rose")
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	if cost != 20 {
		t.Fatalf("expected cost 20, got %d", cost)
	}

	if _, err := g.ResolveGiftCost(ctx, "unicorn"); !errors.Is(err, ErrGiftNotFound) {
		t.Fatalf("expected ErrGiftNotFound, got %v", err)
	}
}
