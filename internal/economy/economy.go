package economy

import (
	"context"
	"errors"
	"sync"
)

var (
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrGiftNotFound        = errors.New("gift not found")
)

// Gateway is the coin-wallet collaborator consulted for gift-play debits
// and reward credits. Amounts are whole coins.
type Gateway interface {
	ResolveGiftCost(ctx context.Context, giftId string) (int64, error)
	Debit(ctx context.Context, userId int64, amount int64) error
	Credit(ctx context.Context, userId int64, amount int64) error
}

// MemoryGateway holds balances in process memory. Used by the local
// simulation and by tests; the ledger-backed gateway serves production.
type MemoryGateway struct {
	mu       sync.Mutex
	balances map[int64]int64
	gifts    map[string]int64
}

func NewMemoryGateway() *MemoryGateway {
	return &MemoryGateway{
		balances: make(map[int64]int64),
		gifts:    make(map[string]int64),
	}
}

func (g *MemoryGateway) SetBalance(userId int64, amount int64) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.balances[userId] = amount
}

func (g *MemoryGateway) Balance(userId int64) int64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.balances[userId]
}

func (g *MemoryGateway) SetGiftCost(giftId string, cost int64) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.gifts[giftId] = cost
}

func (g *MemoryGateway) ResolveGiftCost(ctx context.Context, giftId string) (int64, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	cost, ok := g.gifts[giftId]
	if !ok {
		return 0, ErrGiftNotFound
	}
	return cost, nil
}

// Debit fails atomically when the balance cannot cover the amount.
func (g *MemoryGateway) Debit(ctx context.Context, userId int64, amount int64) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.balances[userId] < amount {
		return ErrInsufficientBalance
	}
	g.balances[userId] -= amount
	return nil
}

func (g *MemoryGateway) Credit(ctx context.Context, userId int64, amount int64) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.balances[userId] += amount
	return nil
}
