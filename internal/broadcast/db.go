package broadcast

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// DBTX is the subset of database/sql behavior the store needs, satisfied by both
// *sql.DB and *sql.Tx so that the same queries run standalone or inside a
// transaction that holds a slot lock.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Store runs queries against the livehost schema.
type Store struct {
	db DBTX
}

func NewStore(db DBTX) *Store {
	return &Store{db: db}
}

// Row is a broadcast as stored in livehost.broadcast. Status and vod_visibility are
// raw stored values: callers derive the effective state via the lifecycle package.
type Row struct {
	Id                uuid.UUID
	SellerId          string
	Title             string
	Status            string
	ScheduledAt       sql.NullTime
	StartAt           sql.NullTime
	EndAt             sql.NullTime
	VodVisibility     sql.NullString
	AdminLock         bool
	ThumbnailUrl      sql.NullString
	Products          []string
	QCards            []string
	TerminationReason sql.NullString
	CancelReason      sql.NullString
}

const broadcastColumns = `
	id, seller_id, title, status,
	scheduled_at, start_at, end_at,
	vod_visibility, admin_lock, thumbnail_url,
	products, q_cards, termination_reason, cancel_reason
`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanBroadcast(s rowScanner) (Row, error) {
	var row Row
	err := s.Scan(
		&row.Id, &row.SellerId, &row.Title, &row.Status,
		&row.ScheduledAt, &row.StartAt, &row.EndAt,
		&row.VodVisibility, &row.AdminLock, &row.ThumbnailUrl,
		pq.Array(&row.Products), pq.Array(&row.QCards),
		&row.TerminationReason, &row.CancelReason,
	)
	return row, err
}

func (s *Store) GetBroadcastById(ctx context.Context, id uuid.UUID) (Row, error) {
	return scanBroadcast(s.db.QueryRowContext(ctx, `
		SELECT `+broadcastColumns+`
		FROM livehost.broadcast
		WHERE id = $1
	`, id))
}

// ListBroadcasts returns all non-deleted broadcasts, most recently scheduled first.
func (s *Store) ListBroadcasts(ctx context.Context) ([]Row, error) {
	results, err := s.db.QueryContext(ctx, `
		SELECT `+broadcastColumns+`
		FROM livehost.broadcast
		WHERE status != 'DELETED'
		ORDER BY coalesce(scheduled_at, start_at) DESC
	`)
	if err != nil {
		return nil, err
	}
	defer results.Close()

	rows := make([]Row, 0)
	for results.Next() {
		row, err := scanBroadcast(results)
		if err != nil {
			return nil, err
		}
		rows = append(rows, row)
	}
	return rows, results.Err()
}

type CreateReservationParams struct {
	Id           uuid.UUID
	SellerId     string
	Title        string
	ScheduledAt  time.Time
	ThumbnailUrl string
	Products     []string
	QCards       []string
}

// CreateReservation inserts a new broadcast in RESERVED state. When called through
// the admission controller the enclosing transaction holds the slot lock.
func (s *Store) CreateReservation(ctx context.Context, params CreateReservationParams) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO livehost.broadcast (
			id, seller_id, title, status, scheduled_at, thumbnail_url, products, q_cards
		) VALUES ($1, $2, $3, 'RESERVED', $4, $5, $6, $7)
	`,
		params.Id, params.SellerId, params.Title, params.ScheduledAt,
		params.ThumbnailUrl, pq.Array(params.Products), pq.Array(params.QCards),
	)
	return err
}

// CountActiveReservationsInSlot counts broadcasts occupying the one-hour slot that
// begins at the given time. Canceled and deleted rows free their capacity the
// instant they are marked, so they never count.
func (s *Store) CountActiveReservationsInSlot(ctx context.Context, slot time.Time) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM livehost.broadcast
		WHERE scheduled_at >= $1 AND scheduled_at < $1 + interval '1 hour'
		AND status NOT IN ('CANCELED', 'DELETED')
	`, slot).Scan(&count)
	return count, err
}

func (s *Store) CountSellerReservationsInSlot(ctx context.Context, sellerId string, slot time.Time) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM livehost.broadcast
		WHERE seller_id = $2
		AND scheduled_at >= $1 AND scheduled_at < $1 + interval '1 hour'
		AND status NOT IN ('CANCELED', 'DELETED')
	`, slot, sellerId).Scan(&count)
	return count, err
}

func (s *Store) CountOpenReservationsBySeller(ctx context.Context, sellerId string) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM livehost.broadcast
		WHERE seller_id = $1 AND status = 'RESERVED'
	`, sellerId).Scan(&count)
	return count, err
}

// CancelReservation marks a reservation CANCELED, recording the reason. The status
// guard is repeated here so that a concurrent transition can't be clobbered after
// the caller's own checks.
func (s *Store) CancelReservation(ctx context.Context, id uuid.UUID, reason string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE livehost.broadcast
		SET status = 'CANCELED', cancel_reason = $2
		WHERE id = $1 AND status IN ('RESERVED', 'READY')
	`, id, reason)
	return err
}

// SetStatusOnAir transitions a broadcast to ON_AIR, stamping its actual start time.
func (s *Store) SetStatusOnAir(ctx context.Context, id uuid.UUID, startAt time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE livehost.broadcast
		SET status = 'ON_AIR', start_at = $2
		WHERE id = $1
	`, id, startAt)
	return err
}

// SetStatusEnded transitions a broadcast to ENDED, stamping its end time.
func (s *Store) SetStatusEnded(ctx context.Context, id uuid.UUID, endAt time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE livehost.broadcast
		SET status = 'ENDED', end_at = $2
		WHERE id = $1
	`, id, endAt)
	return err
}

// RecordBroadcastStop administratively halts a broadcast: status STOPPED with the
// termination reason, recording forced private and admin-locked.
func (s *Store) RecordBroadcastStop(ctx context.Context, id uuid.UUID, reason string, endAt time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE livehost.broadcast
		SET status = 'STOPPED',
			termination_reason = $2,
			end_at = coalesce(end_at, $3),
			vod_visibility = 'PRIVATE',
			admin_lock = TRUE
		WHERE id = $1
	`, id, reason, endAt)
	return err
}

// UpdateVodVisibility persists a normalized (status, visibility, adminLock) triple.
func (s *Store) UpdateVodVisibility(ctx context.Context, id uuid.UUID, status string, visibility string, adminLock bool) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE livehost.broadcast
		SET status = $2, vod_visibility = $3, admin_lock = $4
		WHERE id = $1
	`, id, status, visibility, adminLock)
	return err
}
