package rooms

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Directory answers whether a social-audio room exists. Room lifecycle
// itself is owned by the room service; this is a read-only lookup used
// when issuing game sessions.
type Directory interface {
	RoomExists(ctx context.Context, roomId string) (bool, error)
}

type PgDirectory struct {
	db *pgxpool.Pool
}

func NewPgDirectory(db *pgxpool.Pool) *PgDirectory {
	return &PgDirectory{db: db}
}

func (d *PgDirectory) RoomExists(ctx context.Context, roomId string) (bool, error) {
	var one int

	err := d.db.QueryRow(ctx, `
        SELECT 1
        FROM rooms
        WHERE room_id = $1 AND status = 'open'
    `, roomId).Scan(&one)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("failed to look up room %s: %w", roomId, err)
	}

	return true, nil
}

// MemoryDirectory serves local play and tests.
type MemoryDirectory struct {
	mu    sync.RWMutex
	rooms map[string]bool
}

func NewMemoryDirectory(roomIds ...string) *MemoryDirectory {
	d := &MemoryDirectory{rooms: make(map[string]bool)}
	for _, id := range roomIds {
		d.rooms[id] = true
	}
	return d
}

func (d *MemoryDirectory) AddRoom(roomId string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.rooms[roomId] = true
}

func (d *MemoryDirectory) RoomExists(ctx context.Context, roomId string) (bool, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.rooms[roomId], nil
}
