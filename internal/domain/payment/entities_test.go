package payment

import (
	"errors"
	"testing"
	"time"
)

func TestCanTransition(t *testing.T) {
	tests := []struct {
		from, to Status
		want     bool
	}{
		{StatusCreated, StatusAttempted, true},
		{StatusCreated, StatusPaid, true},
		{StatusCreated, StatusAbandoned, true},
		{StatusAttempted, StatusFailed, true},
		{StatusAttempted, StatusCreated, false},
		{StatusFailed, StatusPaid, true},
		{StatusFailed, StatusAbandoned, false},
		{StatusPaid, StatusFailed, false},
		{StatusPaid, StatusCreated, false},
		{StatusAbandoned, StatusPaid, false},
		{StatusAbandoned, StatusCreated, false},
	}
	for _, tt := range tests {
		if got := CanTransition(tt.from, tt.to); got != tt.want {
			t.Fatalf("CanTransition(%s, %s) = %v, want %v", tt.from, tt.to, got, tt.want)
		}
	}
}

func TestOrder_Transition(t *testing.T) {
	now := time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC)
	o := &Order{Status: StatusCreated}

	if err := o.Transition(StatusPaid, now); err != nil {
		t.Fatalf("created -> paid: %v", err)
	}
	if !o.UpdatedAt.Equal(now) {
		t.Fatalf("UpdatedAt not set")
	}
	// same status is a no-op
	if err := o.Transition(StatusPaid, now); err != nil {
		t.Fatalf("paid -> paid should be a no-op, got %v", err)
	}
	if err := o.Transition(StatusAbandoned, now); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("paid -> abandoned: want ErrInvalidTransition, got %v", err)
	}
	if o.Status != StatusPaid {
		t.Fatalf("status changed on rejected transition: %s", o.Status)
	}
}

func TestStatus_IsOpen(t *testing.T) {
	for s, want := range map[Status]bool{
		StatusCreated:   true,
		StatusAttempted: true,
		StatusFailed:    true,
		StatusPaid:      false,
		StatusAbandoned: false,
	} {
		if s.IsOpen() != want {
			t.Fatalf("%s.IsOpen() = %v, want %v", s, !want, want)
		}
	}
}
