package domain

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

type ReservationStatus string

const (
	ReservationActive    ReservationStatus = "ACTIVE"
	ReservationConfirmed ReservationStatus = "CONFIRMED"
	ReservationCancelled ReservationStatus = "CANCELLED"
	ReservationExpired   ReservationStatus = "EXPIRED"
)

var (
	ErrReservationNotActive = errors.New("reservation is not active")
	ErrReservationTerminal  = errors.New("reservation already confirmed or cancelled")
)

// Reservation groups a set of ledger holds under one expiring ticket.
// Status transitions are one-directional: ACTIVE may become CONFIRMED or
// CANCELLED, after which the record is immutable. An ACTIVE record past
// its expiry is treated as expired by all read paths even though the
// stored status stays ACTIVE until the sweep physically cancels it.
type Reservation struct {
	ID          string
	CustomerID  string
	Items       map[ItemKey]int
	Status      ReservationStatus
	CreatedAt   time.Time
	ExpiresAt   time.Time
	ConfirmedAt time.Time
	CancelledAt time.Time
}

func NewReservation(customerID string, items map[ItemKey]int, ttl time.Duration) *Reservation {
	held := make(map[ItemKey]int, len(items))
	for k, v := range items {
		held[k] = v
	}
	now := time.Now()
	return &Reservation{
		ID:         uuid.New().String(),
		CustomerID: customerID,
		Items:      held,
		Status:     ReservationActive,
		CreatedAt:  now,
		ExpiresAt:  now.Add(ttl),
	}
}

// IsExpired reports whether an ACTIVE reservation has passed its deadline.
func (r *Reservation) IsExpired() bool {
	return r.Status == ReservationActive && time.Now().After(r.ExpiresAt)
}

// IsActive reports whether the reservation can still be confirmed.
func (r *Reservation) IsActive() bool {
	return r.Status == ReservationActive && !time.Now().After(r.ExpiresAt)
}

func (r *Reservation) Confirm() error {
	if !r.IsActive() {
		return ErrReservationNotActive
	}
	r.Status = ReservationConfirmed
	r.ConfirmedAt = time.Now()
	return nil
}

func (r *Reservation) Cancel() error {
	if r.Status == ReservationConfirmed || r.Status == ReservationCancelled {
		return ErrReservationTerminal
	}
	r.Status = ReservationCancelled
	r.CancelledAt = time.Now()
	return nil
}

// ExtendExpiry pushes the deadline out for a still-active reservation.
func (r *Reservation) ExtendExpiry(d time.Duration) error {
	if d <= 0 {
		return ErrInvalidQuantity
	}
	if !r.IsActive() {
		return ErrReservationNotActive
	}
	r.ExpiresAt = r.ExpiresAt.Add(d)
	return nil
}

// Clone returns a deep copy so callers can hand records across goroutines
// without sharing the items map.
func (r *Reservation) Clone() *Reservation {
	c := *r
	c.Items = make(map[ItemKey]int, len(r.Items))
	for k, v := range r.Items {
		c.Items[k] = v
	}
	return &c
}
