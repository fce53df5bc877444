package borrow

import (
	"context"
	"errors"
)

// ErrNoChange lets a Mutate callback finish without writing.
var ErrNoChange = errors.New("borrow record unchanged")

// Mutate applies fn to a freshly read record and stores it with a version
// check. On a conflict the read-modify-write runs once more; a second
// conflict is returned to the caller.
func Mutate(ctx context.Context, repo Repository, borrowID string, fn func(r *Record) error) (*Record, error) {
	for attempt := 0; ; attempt++ {
		rec, err := repo.GetByBorrowID(ctx, borrowID)
		if err != nil {
			return nil, err
		}
		if err := fn(rec); err != nil {
			if errors.Is(err, ErrNoChange) {
				return rec, nil
			}
			return nil, err
		}
		err = repo.Update(ctx, rec)
		if err == nil {
			return rec, nil
		}
		if !errors.Is(err, ErrVersionConflict) || attempt > 0 {
			return nil, err
		}
	}
}
