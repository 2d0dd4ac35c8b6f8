package admission

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/deskit-live/livehost/internal/broadcast"
	"github.com/deskit-live/livehost/internal/lifecycle"
)

const (
	// DefaultMaxPerSlot is the capacity invariant: at most this many non-canceled
	// reservations may share a one-hour slot
	DefaultMaxPerSlot = 3
	// DefaultMaxPerSeller caps how many open reservations a single seller may hold
	// across all slots
	DefaultMaxPerSeller = 7

	// lockWait bounds how long a single attempt may wait for the slot lock
	lockWait = 2 * time.Second
	// lockAttempts is how many times a timed-out lock acquisition is retried before
	// the failure surfaces to the caller
	lockAttempts = 3
)

// SlotTx is the work permitted inside the slot-locked critical section: counting the
// slot's occupancy and inserting the new reservation, nothing else.
type SlotTx interface {
	CountActiveReservationsInSlot(ctx context.Context, slot time.Time) (int, error)
	CreateReservation(ctx context.Context, params broadcast.CreateReservationParams) error
}

// Store is the persistence the controller needs. WithSlotLock must serialize all
// callers passing the same slot key, with a bounded wait that fails with
// ErrLockTimeout, and must roll back everything done in fn when fn returns an error.
type Store interface {
	GetBroadcastById(ctx context.Context, id uuid.UUID) (broadcast.Row, error)
	CountSellerReservationsInSlot(ctx context.Context, sellerId string, slot time.Time) (int, error)
	CountOpenReservationsBySeller(ctx context.Context, sellerId string) (int, error)
	CancelReservation(ctx context.Context, id uuid.UUID, reason string) error
	WithSlotLock(ctx context.Context, slot time.Time, wait time.Duration, fn func(tx SlotTx) error) error
}

// Request is the payload for a new reservation. Anything heavy attached to it
// (thumbnail upload etc.) must be finished before Reserve is called: the critical
// section holds the slot lock and does nothing but count and insert.
type Request struct {
	Title        string    `json:"title"`
	ScheduledAt  time.Time `json:"scheduledAt"`
	ThumbnailUrl string    `json:"thumbnailUrl"`
	Products     []string  `json:"products"`
	QCards       []string  `json:"qCards"`
}

// Controller admits or rejects reservation requests, enforcing the per-slot capacity
// invariant under concurrent requests.
type Controller struct {
	store        Store
	now          func() time.Time
	maxPerSlot   int
	maxPerSeller int
}

func NewController(store Store) *Controller {
	return &Controller{
		store:        store,
		now:          time.Now,
		maxPerSlot:   DefaultMaxPerSlot,
		maxPerSeller: DefaultMaxPerSeller,
	}
}

// SlotKey computes the hour-granularity grouping key that capacity is enforced over
func SlotKey(scheduledAt time.Time) time.Time {
	return scheduledAt.UTC().Truncate(time.Hour)
}

// Reserve admits a new reservation for the given seller and time, or rejects it with
// an *Error carrying one of the admission codes. The cheap pre-checks run before any
// lock is taken; only the capacity count and the insert happen under the slot lock.
// On a LOCK_TIMEOUT rejection no partial state exists and the call is retryable.
func (c *Controller) Reserve(ctx context.Context, sellerId string, req Request) (*broadcast.Broadcast, error) {
	if req.ScheduledAt.IsZero() || !req.ScheduledAt.After(c.now()) {
		return nil, NewError(CodeInvalidTime, "scheduledAt must be a time in the future")
	}
	if req.Title == "" {
		return nil, ErrMissingTitle
	}
	slot := SlotKey(req.ScheduledAt)

	held, err := c.store.CountSellerReservationsInSlot(ctx, sellerId, slot)
	if err != nil {
		return nil, err
	}
	if held > 0 {
		return nil, NewError(CodeSellerLimit, "seller already holds a reservation in this slot")
	}
	open, err := c.store.CountOpenReservationsBySeller(ctx, sellerId)
	if err != nil {
		return nil, err
	}
	if open >= c.maxPerSeller {
		return nil, NewError(CodeSellerLimit, "seller has too many open reservations")
	}

	created := &broadcast.Broadcast{
		Id:           uuid.New(),
		SellerId:     sellerId,
		Title:        req.Title,
		Status:       lifecycle.StatusReserved,
		ScheduledAt:  &req.ScheduledAt,
		ThumbnailUrl: req.ThumbnailUrl,
		Products:     req.Products,
		QCards:       req.QCards,
	}
	if created.Products == nil {
		created.Products = []string{}
	}

	attempt := func() error {
		return c.store.WithSlotLock(ctx, slot, lockWait, func(tx SlotTx) error {
			count, err := tx.CountActiveReservationsInSlot(ctx, slot)
			if err != nil {
				return err
			}
			if count >= c.maxPerSlot {
				return NewError(CodeSlotFull, "time slot is fully booked")
			}
			return tx.CreateReservation(ctx, broadcast.CreateReservationParams{
				Id:           created.Id,
				SellerId:     created.SellerId,
				Title:        created.Title,
				ScheduledAt:  req.ScheduledAt,
				ThumbnailUrl: created.ThumbnailUrl,
				Products:     created.Products,
				QCards:       created.QCards,
			})
		})
	}

	err = attempt()
	for i := 1; i < lockAttempts && errors.Is(err, ErrLockTimeout); i++ {
		err = attempt()
	}
	if errors.Is(err, ErrLockTimeout) {
		return nil, NewError(CodeLockTimeout, "could not acquire the slot lock; please retry")
	}
	if err != nil {
		return nil, err
	}
	return created, nil
}

// Cancel releases a reservation, freeing its slot capacity immediately. Only the
// owning seller may cancel, and only while the broadcast is still RESERVED or READY.
func (c *Controller) Cancel(ctx context.Context, sellerId string, id uuid.UUID, reason string) error {
	row, err := c.store.GetBroadcastById(ctx, id)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return err
	}
	if row.SellerId != sellerId {
		return ErrNotOwner
	}
	switch lifecycle.ParseStatus(row.Status) {
	case lifecycle.StatusReserved, lifecycle.StatusReady:
	default:
		return ErrNotCancelable
	}
	return c.store.CancelReservation(ctx, id, reason)
}
