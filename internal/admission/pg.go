package admission

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/deskit-live/livehost/internal/broadcast"
)

// lockNotAvailable is the Postgres error code raised when lock_timeout elapses
// while waiting on a row lock
const lockNotAvailable = "55P03"

// PostgresStore implements Store over the livehost schema. The slot lock is a
// SELECT ... FOR UPDATE on the slot's row in livehost.time_slot, so that concurrent
// reservations for the same hour serialize in the database while different hours
// proceed fully in parallel.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) GetBroadcastById(ctx context.Context, id uuid.UUID) (broadcast.Row, error) {
	return broadcast.NewStore(s.db).GetBroadcastById(ctx, id)
}

func (s *PostgresStore) CountSellerReservationsInSlot(ctx context.Context, sellerId string, slot time.Time) (int, error) {
	return broadcast.NewStore(s.db).CountSellerReservationsInSlot(ctx, sellerId, slot)
}

func (s *PostgresStore) CountOpenReservationsBySeller(ctx context.Context, sellerId string) (int, error) {
	return broadcast.NewStore(s.db).CountOpenReservationsBySeller(ctx, sellerId)
}

func (s *PostgresStore) CancelReservation(ctx context.Context, id uuid.UUID, reason string) error {
	return broadcast.NewStore(s.db).CancelReservation(ctx, id, reason)
}

func (s *PostgresStore) WithSlotLock(ctx context.Context, slot time.Time, wait time.Duration, fn func(tx SlotTx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	// Bound the wait for the row lock; when it elapses Postgres aborts the
	// statement with 55P03, which we surface as ErrLockTimeout
	if _, err := tx.ExecContext(ctx, fmt.Sprintf("SET LOCAL lock_timeout = '%dms'", wait.Milliseconds())); err != nil {
		return err
	}

	// The slot row is created on first use; the insert and the subsequent lock both
	// contend with concurrent reservations for the same hour, and both respect
	// lock_timeout
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO livehost.time_slot (slot_start) VALUES ($1)
		ON CONFLICT (slot_start) DO NOTHING
	`, slot); err != nil {
		return translateLockErr(err)
	}
	var locked time.Time
	if err := tx.QueryRowContext(ctx, `
		SELECT slot_start FROM livehost.time_slot WHERE slot_start = $1 FOR UPDATE
	`, slot).Scan(&locked); err != nil {
		return translateLockErr(err)
	}

	if err := fn(broadcast.NewStore(tx)); err != nil {
		return err
	}
	return tx.Commit()
}

func translateLockErr(err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && string(pqErr.Code) == lockNotAvailable {
		return ErrLockTimeout
	}
	return err
}

var _ Store = (*PostgresStore)(nil)
var _ SlotTx = (*broadcast.Store)(nil)
