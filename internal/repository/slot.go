package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/classbeam/liveclass-server-go/internal/model"
)

type SlotRepository interface {
	FindByID(ctx context.Context, id string) (*model.Slot, error)
	LinkSession(ctx context.Context, slotID, sessionID string) error
	// MarkCancelled cancels the given slots. A non-empty tenantID restricts
	// the update to that tenant's rows.
	MarkCancelled(ctx context.Context, slotIDs []string, tenantID string) (int64, error)
	// WithTx returns a new repository that uses the given transaction
	WithTx(tx *sqlx.Tx) SlotRepository
}

// slotDB is an interface satisfied by both *sqlx.DB and *sqlx.Tx
type slotDB interface {
	GetContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

type slotRepo struct {
	db slotDB
}

func NewSlotRepository(db *sqlx.DB) SlotRepository {
	return &slotRepo{db: db}
}

func (r *slotRepo) WithTx(tx *sqlx.Tx) SlotRepository {
	return &slotRepo{db: tx}
}

func (r *slotRepo) FindByID(ctx context.Context, id string) (*model.Slot, error) {
	var slot model.Slot
	err := r.db.GetContext(ctx, &slot, `SELECT * FROM slots WHERE id = $1`, id)
	return HandleNotFound(&slot, err)
}

func (r *slotRepo) LinkSession(ctx context.Context, slotID, sessionID string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE slots SET
			session_id = $2,
			updated_at = $3
		WHERE id = $1
	`, slotID, sessionID, time.Now())
	return err
}

func (r *slotRepo) MarkCancelled(ctx context.Context, slotIDs []string, tenantID string) (int64, error) {
	result, err := r.db.ExecContext(ctx, `
		UPDATE slots SET
			status = 'Cancelled',
			updated_at = $2
		WHERE id = ANY($1)
		AND status NOT IN ('Completed', 'Cancelled')
		AND ($3 = '' OR tenant_id = $3)
	`, pq.Array(slotIDs), time.Now(), tenantID)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
