package interco

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/bsm/redislock"
	"github.com/redis/go-redis/v9"

	"github.com/odyssey-erp/interco/internal/shared"
)

const defaultLockTTL = 5 * time.Minute

// BillLocker serialises generation for one bill across workers.
type BillLocker struct {
	client *redislock.Client
	ttl    time.Duration
}

// NewBillLocker builds a redis backed locker.
func NewBillLocker(rdb *redis.Client, ttl time.Duration) *BillLocker {
	if ttl <= 0 {
		ttl = defaultLockTTL
	}
	return &BillLocker{client: redislock.New(rdb), ttl: ttl}
}

// WithBill runs fn while holding the lock for billID. ErrBillLocked is
// returned when another worker holds it. The lock is refreshed every half TTL
// while fn runs; if a refresh fails, fn's context is cancelled and the result
// wraps ErrBillLockLost.
func (l *BillLocker) WithBill(ctx context.Context, billID ID, fn func(context.Context) error) error {
	if l == nil || l.client == nil {
		return fn(ctx)
	}
	lock, err := l.client.Obtain(ctx, shared.ICJEBillLockKey(billID.Int64()), l.ttl, nil)
	if errors.Is(err, redislock.ErrNotObtained) {
		return fmt.Errorf("%w: bill %d", ErrBillLocked, billID)
	}
	if err != nil {
		return fmt.Errorf("obtain bill lock: %w", err)
	}

	runCtx, cancel := context.WithCancelCause(ctx)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		l.keepAlive(runCtx, cancel, lock, billID)
	}()

	err = fn(runCtx)
	lost := context.Cause(runCtx)
	cancel(nil)
	wg.Wait()
	_ = lock.Release(context.WithoutCancel(ctx))
	if errors.Is(lost, ErrBillLockLost) {
		return errors.Join(lost, err)
	}
	return err
}

func (l *BillLocker) keepAlive(ctx context.Context, cancel context.CancelCauseFunc, lock *redislock.Lock, billID ID) {
	ticker := time.NewTicker(l.ttl / 2)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := lock.Refresh(ctx, l.ttl, nil); err != nil {
				if ctx.Err() != nil {
					return
				}
				cancel(fmt.Errorf("%w: bill %d: %v", ErrBillLockLost, billID, err))
				return
			}
		}
	}
}
