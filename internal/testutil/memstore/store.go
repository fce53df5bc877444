// Package memstore keeps borrow records, payment orders and users in maps
// behind the function-backed repository mocks. Updates are version-checked
// like the gorm repositories.
package memstore

import (
	"context"
	"sort"
	"sync"
	"time"

	"library-fines/internal/domain/borrow"
	"library-fines/internal/domain/payment"
	"library-fines/internal/domain/uow"
	"library-fines/internal/domain/user"
	"library-fines/internal/testutil/borrowmock"
	"library-fines/internal/testutil/ordermock"
	"library-fines/internal/testutil/uowmock"
	"library-fines/internal/testutil/usermock"
)

type Store struct {
	mu      sync.Mutex
	Borrows map[string]borrow.Record
	Orders  map[string]payment.Order
	Users   map[string]user.User
}

func New() *Store {
	return &Store{
		Borrows: map[string]borrow.Record{},
		Orders:  map[string]payment.Order{},
		Users:   map[string]user.User{},
	}
}

func (s *Store) PutBorrow(r borrow.Record) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if r.Version == 0 {
		r.Version = 1
	}
	if r.PaymentStatus == "" {
		r.PaymentStatus = borrow.PaymentNone
	}
	s.Borrows[r.BorrowID] = r
}

func (s *Store) PutOrder(o payment.Order) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if o.Version == 0 {
		o.Version = 1
	}
	s.Orders[o.GatewayOrderID] = o
}

func (s *Store) PutUser(u user.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Users[u.UserID] = u
}

func (s *Store) Borrow(id string) (borrow.Record, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.Borrows[id]
	return r, ok
}

func (s *Store) Order(gatewayOrderID string) (payment.Order, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.Orders[gatewayOrderID]
	return o, ok
}

func (s *Store) User(id string) (user.User, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.Users[id]
	return u, ok
}

func (s *Store) BorrowRepo() *borrowmock.Repo {
	return &borrowmock.Repo{
		CreateFn: func(_ context.Context, r *borrow.Record) error {
			s.PutBorrow(*r)
			return nil
		},
		GetByBorrowIDFn: func(_ context.Context, id string) (*borrow.Record, error) {
			r, ok := s.Borrow(id)
			if !ok {
				return nil, borrow.ErrNotFound
			}
			r.FineAudit = append(r.FineAudit[:0:0], r.FineAudit...)
			return &r, nil
		},
		GetByGatewayOrderIDFn: func(_ context.Context, gwID string) (*borrow.Record, error) {
			s.mu.Lock()
			defer s.mu.Unlock()
			for _, r := range s.Borrows {
				if borrow.Deref(r.GatewayOrderID) == gwID {
					r.FineAudit = append(r.FineAudit[:0:0], r.FineAudit...)
					return &r, nil
				}
			}
			return nil, borrow.ErrNotFound
		},
		ListByUserFn: func(_ context.Context, userID string, limit int) ([]borrow.Record, error) {
			s.mu.Lock()
			defer s.mu.Unlock()
			var out []borrow.Record
			for _, r := range s.Borrows {
				if r.UserID == userID {
					out = append(out, r)
				}
			}
			sort.Slice(out, func(i, j int) bool { return out[i].BorrowDate.After(out[j].BorrowDate) })
			if limit > 0 && len(out) > limit {
				out = out[:limit]
			}
			return out, nil
		},
		ListOverdueFn: func(_ context.Context, now time.Time, limit int) ([]borrow.Record, error) {
			s.mu.Lock()
			defer s.mu.Unlock()
			var out []borrow.Record
			for _, r := range s.Borrows {
				if r.IsOverdue(now) {
					out = append(out, r)
				}
			}
			sort.Slice(out, func(i, j int) bool { return out[i].DueDate.Before(out[j].DueDate) })
			if limit > 0 && len(out) > limit {
				out = out[:limit]
			}
			return out, nil
		},
		CountByPaymentStatusFn: func(context.Context) (map[borrow.PaymentStatus]int64, error) {
			s.mu.Lock()
			defer s.mu.Unlock()
			out := map[borrow.PaymentStatus]int64{}
			for _, r := range s.Borrows {
				out[r.PaymentStatus]++
			}
			return out, nil
		},
		UpdateFn: func(_ context.Context, r *borrow.Record) error {
			s.mu.Lock()
			defer s.mu.Unlock()
			cur, ok := s.Borrows[r.BorrowID]
			if !ok {
				return borrow.ErrNotFound
			}
			if cur.Version != r.Version {
				return borrow.ErrVersionConflict
			}
			r.Version++
			s.Borrows[r.BorrowID] = *r
			return nil
		},
		ReleaseOrdersFn: func(_ context.Context, ids []string) (int64, error) {
			s.mu.Lock()
			defer s.mu.Unlock()
			var n int64
			for _, id := range ids {
				for k, r := range s.Borrows {
					if r.PaymentStatus == borrow.PaymentPending && borrow.Deref(r.GatewayOrderID) == id {
						r.PaymentStatus = borrow.PaymentNone
						r.GatewayOrderID = nil
						r.Version++
						s.Borrows[k] = r
						n++
					}
				}
			}
			return n, nil
		},
	}
}

func (s *Store) OrderRepo() *ordermock.Repo {
	return &ordermock.Repo{
		CreateFn: func(_ context.Context, o *payment.Order) error {
			s.mu.Lock()
			defer s.mu.Unlock()
			if _, ok := s.Orders[o.GatewayOrderID]; ok {
				return payment.ErrDuplicateOrder
			}
			o.Version = 1
			s.Orders[o.GatewayOrderID] = *o
			return nil
		},
		GetByGatewayOrderIDFn: func(_ context.Context, gwID string) (*payment.Order, error) {
			o, ok := s.Order(gwID)
			if !ok {
				return nil, payment.ErrNotFound
			}
			return &o, nil
		},
		ListByBorrowIDFn: func(_ context.Context, borrowID string) ([]payment.Order, error) {
			s.mu.Lock()
			defer s.mu.Unlock()
			var out []payment.Order
			for _, o := range s.Orders {
				if o.BorrowID == borrowID {
					out = append(out, o)
				}
			}
			sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
			return out, nil
		},
		ListOpenSinceFn: func(_ context.Context, since time.Time) ([]payment.Order, error) {
			s.mu.Lock()
			defer s.mu.Unlock()
			var out []payment.Order
			for _, o := range s.Orders {
				if o.Status.IsOpen() && !o.CreatedAt.Before(since) {
					out = append(out, o)
				}
			}
			sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
			return out, nil
		},
		ListAbandonedSinceFn: func(_ context.Context, since time.Time) ([]payment.Order, error) {
			s.mu.Lock()
			defer s.mu.Unlock()
			var out []payment.Order
			for _, o := range s.Orders {
				if o.Status == payment.StatusAbandoned && !o.CreatedAt.Before(since) {
					out = append(out, o)
				}
			}
			sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
			return out, nil
		},
		UpdateFn: func(_ context.Context, o *payment.Order) error {
			s.mu.Lock()
			defer s.mu.Unlock()
			cur, ok := s.Orders[o.GatewayOrderID]
			if !ok {
				return payment.ErrNotFound
			}
			if cur.Version != o.Version {
				return payment.ErrVersionConflict
			}
			o.Version++
			s.Orders[o.GatewayOrderID] = *o
			return nil
		},
		MarkAbandonedFn: func(_ context.Context, before time.Time) ([]string, error) {
			s.mu.Lock()
			defer s.mu.Unlock()
			var ids []string
			for k, o := range s.Orders {
				if o.Status == payment.StatusCreated && o.CreatedAt.Before(before) {
					o.Status = payment.StatusAbandoned
					o.Version++
					s.Orders[k] = o
					ids = append(ids, k)
				}
			}
			sort.Strings(ids)
			return ids, nil
		},
		DeleteAbandonedFn: func(_ context.Context, before time.Time) (int64, error) {
			s.mu.Lock()
			defer s.mu.Unlock()
			var n int64
			for k, o := range s.Orders {
				if o.Status == payment.StatusAbandoned && o.CreatedAt.Before(before) {
					delete(s.Orders, k)
					n++
				}
			}
			return n, nil
		},
		CountByStatusFn: func(context.Context) (map[payment.Status]int64, error) {
			s.mu.Lock()
			defer s.mu.Unlock()
			out := map[payment.Status]int64{}
			for _, o := range s.Orders {
				out[o.Status]++
			}
			return out, nil
		},
	}
}

func (s *Store) UserRepo() *usermock.Repo {
	return &usermock.Repo{
		GetByUserIDFn: func(_ context.Context, id string) (*user.User, error) {
			u, ok := s.User(id)
			if !ok {
				return nil, user.ErrNotFound
			}
			u.PaymentHistory = append(u.PaymentHistory[:0:0], u.PaymentHistory...)
			return &u, nil
		},
		GetByEmailFn: func(_ context.Context, email string) (*user.User, error) {
			s.mu.Lock()
			defer s.mu.Unlock()
			for _, u := range s.Users {
				if u.Email == email {
					return &u, nil
				}
			}
			return nil, user.ErrNotFound
		},
		SaveFn: func(_ context.Context, u *user.User) error {
			s.PutUser(*u)
			return nil
		},
	}
}

// Repos returns one set of repositories over the store.
func (s *Store) Repos() uow.Repos {
	return uow.Repos{Borrows: s.BorrowRepo(), Orders: s.OrderRepo(), Users: s.UserRepo()}
}

// UoW runs transaction bodies directly against the store. Nothing is rolled
// back on error.
func (s *Store) UoW() *uowmock.UoW {
	return uowmock.Passthrough(s.Repos())
}
