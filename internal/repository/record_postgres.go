package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/unravelhq/tripflow/internal/domain"
	apperrors "github.com/unravelhq/tripflow/internal/errors"
	"github.com/unravelhq/tripflow/internal/metrics"
)

// RecordRepository implements domain.RecordRepository using PostgreSQL.
// The record is stored as a single jsonb document per user; the flow
// always reads and writes the whole record under the user's lock, so
// column-level access buys nothing.
type RecordRepository struct {
	pool    *pgxpool.Pool
	metrics *metrics.Metrics
}

// NewRecordRepository creates a new RecordRepository.
func NewRecordRepository(pool *pgxpool.Pool, m *metrics.Metrics) *RecordRepository {
	return &RecordRepository{pool: pool, metrics: m}
}

// Get retrieves a booking record by canonical user id.
func (r *RecordRepository) Get(ctx context.Context, userID string) (*domain.BookingRecord, error) {
	ctx, cancel := WithQueryTimeout(ctx)
	defer cancel()

	start := time.Now()
	var data []byte
	err := r.pool.QueryRow(ctx,
		"SELECT data FROM booking_records WHERE user_id = $1",
		userID,
	).Scan(&data)
	r.observe("record_get", start, err)

	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperrors.ErrNotFound
	}
	if err != nil {
		return nil, apperrors.DatabaseError("repository.RecordRepository.Get", err)
	}

	var record domain.BookingRecord
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, apperrors.DatabaseError("repository.RecordRepository.Get",
			fmt.Errorf("corrupt record for %s: %w", userID, err))
	}
	return &record, nil
}

// Save upserts a booking record.
func (r *RecordRepository) Save(ctx context.Context, record *domain.BookingRecord) error {
	ctx, cancel := WithWriteTimeout(ctx)
	defer cancel()

	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to marshal booking record: %w", err)
	}

	query := `
		INSERT INTO booking_records (user_id, data, updated_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id)
		DO UPDATE SET data = EXCLUDED.data, updated_at = EXCLUDED.updated_at`

	start := time.Now()
	_, err = r.pool.Exec(ctx, query, record.UserID, data, record.UpdatedAt)
	r.observe("record_save", start, err)
	if err != nil {
		return apperrors.DatabaseError("repository.RecordRepository.Save", err)
	}
	return nil
}

// List returns all booking records. Used by the retention sweep.
func (r *RecordRepository) List(ctx context.Context) ([]*domain.BookingRecord, error) {
	ctx, cancel := WithListQueryTimeout(ctx)
	defer cancel()

	start := time.Now()
	rows, err := r.pool.Query(ctx, "SELECT data FROM booking_records ORDER BY updated_at")
	r.observe("record_list", start, err)
	if err != nil {
		return nil, apperrors.DatabaseError("repository.RecordRepository.List", err)
	}
	defer rows.Close()

	var records []*domain.BookingRecord
	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			return nil, apperrors.DatabaseError("repository.RecordRepository.List", err)
		}
		var record domain.BookingRecord
		if err := json.Unmarshal(data, &record); err != nil {
			return nil, apperrors.DatabaseError("repository.RecordRepository.List", err)
		}
		records = append(records, &record)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.DatabaseError("repository.RecordRepository.List", err)
	}
	return records, nil
}

// Delete removes a booking record. Deleting a missing record is not an error.
func (r *RecordRepository) Delete(ctx context.Context, userID string) error {
	ctx, cancel := WithWriteTimeout(ctx)
	defer cancel()

	start := time.Now()
	_, err := r.pool.Exec(ctx, "DELETE FROM booking_records WHERE user_id = $1", userID)
	r.observe("record_delete", start, err)
	if err != nil {
		return apperrors.DatabaseError("repository.RecordRepository.Delete", err)
	}
	return nil
}

func (r *RecordRepository) observe(operation string, start time.Time, err error) {
	if r.metrics == nil {
		return
	}
	r.metrics.RecordDBQuery(operation, time.Since(start), err)
}
