package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/lib/pq"
	"github.com/srgjo27/roomshare/internal/core/domain"
	"github.com/srgjo27/roomshare/internal/core/ports"
)

// querier is satisfied by *sql.Tx; every repository runs inside a transaction.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type Store struct {
	q querier
}

func (s *Store) Quotas() ports.QuotaRepository           { return &QuotaRepository{q: s.q} }
func (s *Store) Rooms() ports.RoomRepository             { return &RoomRepository{q: s.q} }
func (s *Store) Memberships() ports.MembershipRepository { return &MembershipRepository{q: s.q} }
func (s *Store) Orders() ports.OrderRepository           { return &OrderRepository{q: s.q} }

// Transactor runs closures in REPEATABLE READ transactions and retries the
// whole closure when Postgres reports a serialization failure or deadlock.
type Transactor struct {
	db          *sql.DB
	maxAttempts int
	log         *slog.Logger
}

func NewTransactor(db *sql.DB, maxAttempts int, logger *slog.Logger) *Transactor {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Transactor{db: db, maxAttempts: maxAttempts, log: logger}
}

func (t *Transactor) WithinTx(ctx context.Context, fn func(ctx context.Context, s ports.Store) error) error {
	for attempt := 1; ; attempt++ {
		err := t.runOnce(ctx, fn)
		if err == nil || !isRetryable(err) || attempt >= t.maxAttempts {
			return err
		}
		t.log.WarnContext(ctx, "retrying transaction after conflict", "attempt", attempt, "error", err)
	}
}

func (t *Transactor) runOnce(ctx context.Context, fn func(ctx context.Context, s ports.Store) error) error {
	tx, err := t.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelRepeatableRead})
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	defer tx.Rollback()

	if err := fn(ctx, &Store{q: tx}); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", translate(err))
	}
	return nil
}

const (
	codeSerializationFailure = "40001"
	codeDeadlockDetected     = "40P01"
	codeUniqueViolation      = "23505"
)

func isRetryable(err error) bool {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return false
	}
	return pqErr.Code == codeSerializationFailure || pqErr.Code == codeDeadlockDetected
}

// translate maps constraint violations onto domain errors and leaves
// everything else untouched.
func translate(err error) error {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) || pqErr.Code != codeUniqueViolation {
		return err
	}
	switch pqErr.Constraint {
	case "room_memberships_order_id_key":
		return fmt.Errorf("%w (%s)", domain.ErrAlreadyInRoom, pqErr.Message)
	case "rooms_event_id_name_key", "room_quotas_event_id_name_key":
		return fmt.Errorf("%w (%s)", domain.ErrDuplicateName, pqErr.Message)
	}
	return err
}
