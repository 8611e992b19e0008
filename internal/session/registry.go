package session

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

const (
	DefaultTTL        = 5 * time.Minute
	DefaultMaxEntries = 100000
	DefaultReapEvery  = time.Minute
)

var ErrRegistryFull = errors.New("session registry full")

// Session authorizes one user to join one room's game exactly once.
type Session struct {
	SessionId string    `json:"session_id"`
	RoomId    string    `json:"room_id"`
	UserId    int64     `json:"user_id"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Registry issues and single-use-validates game sessions.
type Registry interface {
	Create(ctx context.Context, roomId string, userId int64) (*Session, error)
	ValidateAndConsume(ctx context.Context, sessionId, roomId string, userId int64) bool
}

type entry struct {
	sess     Session
	consumed atomic.Bool
}

// MemoryRegistry keeps sessions in process memory. Expired entries are
// purged on lookup and by the reaper; the size bound is a safety valve
// against unconsumed sessions piling up.
type MemoryRegistry struct {
	sessions   sync.Map // sessionId -> *entry
	size       atomic.Int64
	ttl        time.Duration
	maxEntries int64
}

func NewMemoryRegistry(ttl time.Duration, maxEntries int64) *MemoryRegistry {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if maxEntries <= 0 {
		maxEntries = DefaultMaxEntries
	}
	return &MemoryRegistry{ttl: ttl, maxEntries: maxEntries}
}

func (r *MemoryRegistry) Create(ctx context.Context, roomId string, userId int64) (*Session, error) {
	if r.size.Load() >= r.maxEntries {
		r.Sweep()
		if r.size.Load() >= r.maxEntries {
			return nil, ErrRegistryFull
		}
	}

	e := &entry{
		sess: Session{
			SessionId: uuid.New().String(),
			RoomId:    roomId,
			UserId:    userId,
			ExpiresAt: time.Now().Add(r.ttl),
		},
	}
	r.sessions.Store(e.sess.SessionId, e)
	r.size.Add(1)
	return &e.sess, nil
}

// ValidateAndConsume succeeds at most once per session. The CAS on the
// consumed flag guarantees a single winner under concurrent validation.
// A mismatched roomId or userId fails without consuming the session, so
// the rightful owner can still use it.
func (r *MemoryRegistry) ValidateAndConsume(ctx context.Context, sessionId, roomId string, userId int64) bool {
	v, ok := r.sessions.Load(sessionId)
	if !ok {
		return false
	}
	e := v.(*entry)

	if time.Now().After(e.sess.ExpiresAt) {
		r.remove(sessionId)
		return false
	}
	if e.sess.RoomId != roomId || e.sess.UserId != userId {
		return false
	}
	if !e.consumed.CompareAndSwap(false, true) {
		return false
	}

	r.remove(sessionId)
	return true
}

// Sweep removes expired entries and returns how many were purged.
func (r *MemoryRegistry) Sweep() int {
	now := time.Now()
	purged := 0
	r.sessions.Range(func(key, value any) bool {
		if now.After(value.(*entry).sess.ExpiresAt) {
			if r.remove(key.(string)) {
				purged++
			}
		}
		return true
	})
	return purged
}

// StartReaper sweeps expired sessions on a fixed interval until the
// context is cancelled.
func (r *MemoryRegistry) StartReaper(ctx context.Context, every time.Duration) {
	if every <= 0 {
		every = DefaultReapEvery
	}
	go func() {
		ticker := time.NewTicker(every)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if n := r.Sweep(); n > 0 {
					log.Infof("session reaper purged %d expired sessions", n)
				}
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Size reports the number of stored sessions, consumed or not.
func (r *MemoryRegistry) Size() int64 {
	return r.size.Load()
}

func (r *MemoryRegistry) remove(sessionId string) bool {
	if _, loaded := r.sessions.LoadAndDelete(sessionId); loaded {
		r.size.Add(-1)
		return true
	}
	return false
}
