package payment

import (
	"context"
	"errors"
)

// ErrNoChange lets a MutateOrder callback finish without writing.
var ErrNoChange = errors.New("payment order unchanged")

// MutateOrder is the version-checked read-modify-write for one order, with a
// single retry on conflict.
func MutateOrder(ctx context.Context, repo Repository, gatewayOrderID string, fn func(o *Order) error) (*Order, error) {
	for attempt := 0; ; attempt++ {
		o, err := repo.GetByGatewayOrderID(ctx, gatewayOrderID)
		if err != nil {
			return nil, err
		}
		if err := fn(o); err != nil {
			if errors.Is(err, ErrNoChange) {
				return o, nil
			}
			return nil, err
		}
		err = repo.Update(ctx, o)
		if err == nil {
			return o, nil
		}
		if !errors.Is(err, ErrVersionConflict) || attempt > 0 {
			return nil, err
		}
	}
}
